package appointment

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/odontocare-api/internal/middleware"
	"github.com/jwalitptl/odontocare-api/internal/model"
	apperrors "github.com/jwalitptl/odontocare-api/pkg/errors"
	"github.com/jwalitptl/odontocare-api/pkg/validator"
)

type mockService struct {
	mock.Mock
}

func (m *mockService) CreateAppointment(ctx context.Context, caller *model.Caller, req model.CreateAppointmentRequest) (*model.AppointmentDetail, error) {
	args := m.Called(ctx, caller, req)
	if d := args.Get(0); d != nil {
		return d.(*model.AppointmentDetail), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockService) ListAppointments(ctx context.Context, caller *model.Caller, q model.AppointmentQuery) ([]*model.AppointmentDetail, error) {
	args := m.Called(ctx, caller, q)
	if d := args.Get(0); d != nil {
		return d.([]*model.AppointmentDetail), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockService) GetAppointment(ctx context.Context, caller *model.Caller, id int64) (*model.AppointmentDetail, error) {
	args := m.Called(ctx, caller, id)
	if d := args.Get(0); d != nil {
		return d.(*model.AppointmentDetail), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockService) CancelAppointment(ctx context.Context, caller *model.Caller, id int64) (*model.AppointmentDetail, error) {
	args := m.Called(ctx, caller, id)
	if d := args.Get(0); d != nil {
		return d.(*model.AppointmentDetail), args.Error(1)
	}
	return nil, args.Error(1)
}

type tokenTable map[string]*model.Caller

func (t tokenTable) ResolveIdentity(_ context.Context, token string) (*model.Caller, error) {
	if c, ok := t[token]; ok {
		return c, nil
	}
	return nil, apperrors.Unauthorized("invalid or expired token")
}

var bob = &model.Caller{UserID: 4, Username: "bob", Role: model.RolePatient}

func detail() *model.AppointmentDetail {
	return &model.AppointmentDetail{
		Appointment: model.Appointment{
			Base:        model.Base{ID: 1},
			ScheduledAt: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
			Reason:      "checkup",
			Status:      model.AppointmentStatusPending,
		},
		PatientName:          "Bob",
		DoctorName:           "Dr. Smith",
		CenterName:           "ClinicNorth",
		RegisteredByUsername: "bob",
	}
}

func setup(t *testing.T) (*gin.Engine, *mockService) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	require.NoError(t, validator.RegisterGin())

	svc := new(mockService)
	r := gin.New()
	NewHandler(svc, middleware.NewAuthMiddleware(tokenTable{"bob": bob})).RegisterRoutes(r.Group(""))
	return r, svc
}

func request(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer bob")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCreateAppointment(t *testing.T) {
	r, svc := setup(t)
	req := model.CreateAppointmentRequest{DoctorID: 1, CenterID: 1, Date: "2025-06-01T10:00:00", Reason: "checkup"}
	svc.On("CreateAppointment", mock.Anything, bob, req).Return(detail(), nil)

	w := request(r, http.MethodPost, "/citas", `{"doctor_id":1,"centro_id":1,"fecha":"2025-06-01T10:00:00","motivo":"checkup"}`)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, `{"status":"success","data":{
		"id":1,"fecha":"2025-06-01T10:00:00","estado":"PENDING","motivo":"checkup",
		"paciente":"Bob","doctor":"Dr. Smith","centro":"ClinicNorth","usuario_registra":"bob"}}`, w.Body.String())
	svc.AssertExpectations(t)
}

func TestCreateAppointmentRejectsBadDate(t *testing.T) {
	r, svc := setup(t)

	w := request(r, http.MethodPost, "/citas", `{"doctor_id":1,"centro_id":1,"fecha":"next tuesday"}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "fecha must be an ISO-8601")
	svc.AssertNotCalled(t, "CreateAppointment", mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateAppointmentConflict(t *testing.T) {
	r, svc := setup(t)
	svc.On("CreateAppointment", mock.Anything, bob, mock.Anything).
		Return(nil, apperrors.Conflict("doctor already has an appointment at that time"))

	w := request(r, http.MethodPost, "/citas", `{"doctor_id":1,"centro_id":1,"fecha":"2025-06-01T10:00:00"}`)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), `"code":"CONFLICT"`)
}

func TestListAppointmentsPassesQuery(t *testing.T) {
	r, svc := setup(t)
	q := model.AppointmentQuery{DoctorID: "2", Date: "2025-06-01"}
	svc.On("ListAppointments", mock.Anything, bob, q).Return([]*model.AppointmentDetail{detail()}, nil)

	w := request(r, http.MethodGet, "/citas?doctor_id=2&fecha=2025-06-01", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"paciente":"Bob"`)
	assert.NotContains(t, w.Body.String(), "usuario_registra")
	svc.AssertExpectations(t)
}

func TestGetAndCancel(t *testing.T) {
	r, svc := setup(t)
	svc.On("GetAppointment", mock.Anything, bob, int64(5)).Return(nil, apperrors.NotFound("appointment"))
	svc.On("CancelAppointment", mock.Anything, bob, int64(1)).Return(nil, apperrors.Forbidden("forbidden"))

	assert.Equal(t, http.StatusNotFound, request(r, http.MethodGet, "/citas/5", "").Code)
	assert.Equal(t, http.StatusForbidden, request(r, http.MethodPut, "/citas/1", "").Code)
	assert.Equal(t, http.StatusBadRequest, request(r, http.MethodPut, "/citas/-1", "").Code)
	svc.AssertExpectations(t)
}
