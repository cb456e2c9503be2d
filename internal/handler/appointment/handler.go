package appointment

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/odontocare-api/internal/handler"
	"github.com/jwalitptl/odontocare-api/internal/middleware"
	"github.com/jwalitptl/odontocare-api/internal/model"
)

// Service is the booking engine. Authorization happens inside it, against
// the caller passed in.
type Service interface {
	CreateAppointment(ctx context.Context, caller *model.Caller, req model.CreateAppointmentRequest) (*model.AppointmentDetail, error)
	ListAppointments(ctx context.Context, caller *model.Caller, q model.AppointmentQuery) ([]*model.AppointmentDetail, error)
	GetAppointment(ctx context.Context, caller *model.Caller, id int64) (*model.AppointmentDetail, error)
	CancelAppointment(ctx context.Context, caller *model.Caller, id int64) (*model.AppointmentDetail, error)
}

type Handler struct {
	svc  Service
	auth *middleware.AuthMiddleware
}

func NewHandler(svc Service, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{svc: svc, auth: auth}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	appointments := r.Group("/citas", h.auth.Authenticate())
	{
		appointments.POST("", h.CreateAppointment)
		appointments.GET("", h.ListAppointments)
		appointments.GET("/:id", h.GetAppointment)
		appointments.PUT("/:id", h.CancelAppointment)
	}
}

func (h *Handler) CreateAppointment(c *gin.Context) {
	var req model.CreateAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.BindError(c, err)
		return
	}

	appointment, err := h.svc.CreateAppointment(c.Request.Context(), middleware.CallerFromContext(c), req)
	if err != nil {
		handler.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(appointment.Response()))
}

func (h *Handler) ListAppointments(c *gin.Context) {
	var q model.AppointmentQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		handler.BindError(c, err)
		return
	}

	appointments, err := h.svc.ListAppointments(c.Request.Context(), middleware.CallerFromContext(c), q)
	if err != nil {
		handler.Error(c, err)
		return
	}

	resp := make([]model.AppointmentResponse, 0, len(appointments))
	for _, a := range appointments {
		resp = append(resp, a.Summary())
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(resp))
}

func (h *Handler) GetAppointment(c *gin.Context) {
	id, err := handler.ParamID(c, "id")
	if err != nil {
		handler.Error(c, err)
		return
	}

	appointment, err := h.svc.GetAppointment(c.Request.Context(), middleware.CallerFromContext(c), id)
	if err != nil {
		handler.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(appointment.Response()))
}

// CancelAppointment is the only mutation: PENDING to CANCELLED.
func (h *Handler) CancelAppointment(c *gin.Context) {
	id, err := handler.ParamID(c, "id")
	if err != nil {
		handler.Error(c, err)
		return
	}

	appointment, err := h.svc.CancelAppointment(c.Request.Context(), middleware.CallerFromContext(c), id)
	if err != nil {
		handler.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(appointment.Summary()))
}
