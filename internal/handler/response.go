package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	apperrors "github.com/jwalitptl/odontocare-api/pkg/errors"
	"github.com/jwalitptl/odontocare-api/pkg/validator"
)

type Response struct {
	Status  string      `json:"status"`
	Code    string      `json:"code,omitempty"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Status: "success",
		Data:   data,
	}
}

func NewErrorResponse(message string) *Response {
	return &Response{
		Status:  "error",
		Message: message,
	}
}

func NewKindErrorResponse(kind apperrors.Kind, message string) *Response {
	return &Response{
		Status:  "error",
		Code:    string(kind),
		Message: message,
	}
}

// Error writes err as an error envelope. Internal errors are logged with
// their cause and answered with a generic message.
func Error(c *gin.Context, err error) {
	c.JSON(errorStatus(c, err))
}

// ErrorWithData is Error with a payload, e.g. the id of an existing record
// on CONFLICT.
func ErrorWithData(c *gin.Context, err error, data interface{}) {
	status, resp := errorStatus(c, err)
	resp.Data = data
	c.JSON(status, resp)
}

func errorStatus(c *gin.Context, err error) (int, *Response) {
	appErr, ok := apperrors.As(err)
	if !ok || appErr.Kind == apperrors.KindInternal {
		zerolog.Ctx(c.Request.Context()).Error().Err(err).Msg("Request failed")
		return apperrors.HTTPStatus(apperrors.KindInternal),
			NewKindErrorResponse(apperrors.KindInternal, "internal server error")
	}
	return apperrors.HTTPStatus(appErr.Kind), NewKindErrorResponse(appErr.Kind, appErr.Message)
}

// BindError answers a failed ShouldBind* call with INVALID_INPUT.
func BindError(c *gin.Context, err error) {
	Error(c, apperrors.InvalidInput(validator.Message(err)))
}

// ParamID parses a positive integer path parameter.
func ParamID(c *gin.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.InvalidInput("invalid " + name)
	}
	return id, nil
}
