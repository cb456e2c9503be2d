package admin

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/odontocare-api/internal/handler"
	"github.com/jwalitptl/odontocare-api/internal/middleware"
	"github.com/jwalitptl/odontocare-api/internal/model"
	"github.com/jwalitptl/odontocare-api/internal/rbac"
	apperrors "github.com/jwalitptl/odontocare-api/pkg/errors"
)

// Service manages the directory: staff users, patients, centers and doctors.
type Service interface {
	CreateUser(ctx context.Context, req model.CreateUserRequest) (*model.User, error)
	CreatePatient(ctx context.Context, req model.CreatePatientRequest) (*model.Patient, error)
	GetPatient(ctx context.Context, id int64) (*model.Patient, error)
	ListPatients(ctx context.Context) ([]*model.Patient, error)
	UpdatePatient(ctx context.Context, id int64, req model.UpdatePatientRequest) (*model.Patient, error)
	DeletePatient(ctx context.Context, id int64) error
	CreateCenter(ctx context.Context, req model.CreateCenterRequest) (*model.Center, error)
	GetCenter(ctx context.Context, id int64) (*model.Center, error)
	CreateDoctor(ctx context.Context, req model.CreateDoctorRequest) (*model.Doctor, error)
}

type Handler struct {
	svc  Service
	auth *middleware.AuthMiddleware
}

func NewHandler(svc Service, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{svc: svc, auth: auth}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	admin := r.Group("/admin", h.auth.Authenticate())
	{
		admin.GET("/ping", h.Ping)
		admin.POST("/usuario", h.auth.RequirePermission(rbac.ActionManageUsers), h.CreateUser)

		patients := admin.Group("/pacientes")
		patients.POST("", h.auth.RequirePermission(rbac.ActionManagePatients), h.CreatePatient)
		patients.GET("", h.auth.RequirePermission(rbac.ActionListPatients), h.ListPatients)
		patients.GET("/:id", h.auth.RequirePermission(rbac.ActionManagePatients), h.GetPatient)
		patients.PUT("/:id", h.auth.RequirePermission(rbac.ActionManagePatients), h.UpdatePatient)
		patients.DELETE("/:id", h.auth.RequirePermission(rbac.ActionManagePatients), h.DeletePatient)

		admin.POST("/centros", h.auth.RequirePermission(rbac.ActionManageCenters), h.CreateCenter)
		admin.GET("/centros/:id", h.auth.RequirePermission(rbac.ActionViewCenters), h.GetCenter)

		admin.POST("/doctores", h.auth.RequirePermission(rbac.ActionManageDoctors), h.CreateDoctor)
	}
}

func (h *Handler) Ping(c *gin.Context) {
	caller := middleware.CallerFromContext(c)
	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{
		"message":  "pong",
		"username": caller.Username,
		"role":     caller.Role,
	}))
}

func (h *Handler) CreateUser(c *gin.Context) {
	var req model.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.BindError(c, err)
		return
	}

	user, err := h.svc.CreateUser(c.Request.Context(), req)
	if err != nil {
		handler.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(user.Response()))
}

func (h *Handler) CreatePatient(c *gin.Context) {
	var req model.CreatePatientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.BindError(c, err)
		return
	}

	patient, err := h.svc.CreatePatient(c.Request.Context(), req)
	if err != nil {
		handler.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(patient))
}

func (h *Handler) ListPatients(c *gin.Context) {
	patients, err := h.svc.ListPatients(c.Request.Context())
	if err != nil {
		handler.Error(c, err)
		return
	}
	if patients == nil {
		patients = []*model.Patient{}
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(patients))
}

func (h *Handler) GetPatient(c *gin.Context) {
	id, err := handler.ParamID(c, "id")
	if err != nil {
		handler.Error(c, err)
		return
	}

	patient, err := h.svc.GetPatient(c.Request.Context(), id)
	if err != nil {
		handler.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(patient))
}

func (h *Handler) UpdatePatient(c *gin.Context) {
	id, err := handler.ParamID(c, "id")
	if err != nil {
		handler.Error(c, err)
		return
	}

	var req model.UpdatePatientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.BindError(c, err)
		return
	}

	patient, err := h.svc.UpdatePatient(c.Request.Context(), id, req)
	if err != nil {
		handler.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(patient))
}

func (h *Handler) DeletePatient(c *gin.Context) {
	id, err := handler.ParamID(c, "id")
	if err != nil {
		handler.Error(c, err)
		return
	}

	if err := h.svc.DeletePatient(c.Request.Context(), id); err != nil {
		handler.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"id": id}))
}

// CreateCenter answers a duplicate name with 409 and the existing center's id.
func (h *Handler) CreateCenter(c *gin.Context) {
	var req model.CreateCenterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.BindError(c, err)
		return
	}

	center, err := h.svc.CreateCenter(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, apperrors.ErrConflict) && center != nil {
			handler.ErrorWithData(c, err, gin.H{"id": center.ID})
			return
		}
		handler.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(center))
}

func (h *Handler) GetCenter(c *gin.Context) {
	id, err := handler.ParamID(c, "id")
	if err != nil {
		handler.Error(c, err)
		return
	}

	center, err := h.svc.GetCenter(c.Request.Context(), id)
	if err != nil {
		handler.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(center))
}

func (h *Handler) CreateDoctor(c *gin.Context) {
	var req model.CreateDoctorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.BindError(c, err)
		return
	}

	doctor, err := h.svc.CreateDoctor(c.Request.Context(), req)
	if err != nil {
		handler.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(doctor))
}
