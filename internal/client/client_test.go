package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/odontocare-api/internal/model"
	"github.com/jwalitptl/odontocare-api/pkg/circuitbreaker"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(Config{BaseURL: srv.URL + "/", Timeout: 5 * time.Second})
}

func TestLoginStoresToken(t *testing.T) {
	var gotAuth string
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/login":
			var req model.LoginRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "alice", req.Username)
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"status": "success",
				"data":   map[string]string{"token": "tok-1", "role": "admin"},
			})
		case "/citas/3":
			gotAuth = r.Header.Get("Authorization")
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"status": "success",
				"data":   map[string]interface{}{"id": 3, "estado": "PENDING", "fecha": "2025-06-01T10:00:00"},
			})
		default:
			http.NotFound(w, r)
		}
	})

	tok, err := c.Login(context.Background(), "alice", "pw1")
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, tok.Role)

	appt, err := c.GetAppointment(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok-1", gotAuth)
	assert.Equal(t, int64(3), appt.ID)
	assert.Equal(t, model.AppointmentStatusPending, appt.Status)
}

func TestAPIErrorCarriesCode(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusConflict, map[string]string{
			"status": "error", "code": "CONFLICT", "message": "doctor already has an appointment at that time",
		})
	})

	_, err := c.CreateAppointment(context.Background(), model.CreateAppointmentRequest{DoctorID: 1, CenterID: 1, Date: "2025-06-01T10:00:00"})

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
	assert.Equal(t, "CONFLICT", apiErr.Code)
	assert.Contains(t, err.Error(), "doctor already has an appointment")
}

func TestListAppointmentsSendsOnlySetFilters(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2", r.URL.Query().Get("doctor_id"))
		assert.False(t, r.URL.Query().Has("paciente_id"))
		writeJSON(w, http.StatusOK, map[string]interface{}{"status": "success", "data": []interface{}{}})
	})

	appts, err := c.ListAppointments(context.Background(), model.AppointmentQuery{DoctorID: "2"})
	require.NoError(t, err)
	assert.Empty(t, appts)
}

func TestImport(t *testing.T) {
	var (
		mu      sync.Mutex
		centers = map[string]bool{}
		posted  []string
	)
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		posted = append(posted, r.URL.Path)

		switch r.URL.Path {
		case "/admin/centros":
			var req model.CreateCenterRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			if centers[req.Name] {
				writeJSON(w, http.StatusConflict, map[string]interface{}{"status": "error", "code": "CONFLICT", "data": map[string]int{"id": 1}})
				return
			}
			centers[req.Name] = true
			writeJSON(w, http.StatusCreated, map[string]interface{}{"status": "success", "data": map[string]interface{}{"id": len(centers)}})
		case "/admin/pacientes":
			var req model.CreatePatientRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "ACTIVE", req.Status)
			writeJSON(w, http.StatusCreated, map[string]interface{}{"status": "success", "data": map[string]interface{}{"id": 1}})
		case "/admin/doctores":
			writeJSON(w, http.StatusNotFound, map[string]string{"status": "error", "code": "NOT_FOUND", "message": "center not found"})
		}
	})

	csvData := strings.Join([]string{
		"tipo,nombre,direccion,telefono,estado,username,password,especialidad,centro_id",
		"centro,ClinicNorth,123 Main,,,,,,",
		"centro,ClinicNorth,123 Main,,,,,,",
		"paciente,Bob,,555,ACTIVO,bob,pw3,,",
		"doctor,Dr. Smith,,,,drsmith,pw2,Ortho,9",
		"doctor,Dr. Who,,,,who,pw,Time,abc",
		"laboratorio,Lab,,,,,,,",
	}, "\n")

	var out bytes.Buffer
	result, err := NewImporter(c, nil).Import(context.Background(), strings.NewReader(csvData), &out)
	require.NoError(t, err)

	assert.Equal(t, ImportResult{Created: 2, Existing: 1, Failed: 2, Skipped: 1}, result)
	assert.Equal(t, strings.Join([]string{
		"OK → centro: ClinicNorth",
		"YA EXISTE → centro: ClinicNorth",
		"OK → paciente: Bob",
		"ERROR (404) → doctor: Dr. Smith",
		"ERROR → doctor: Dr. Who",
		"Tipo desconocido: laboratorio",
		"",
	}, "\n"), out.String())

	// the row with a non-numeric centro_id never reaches the server
	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, posted, 4)
}

func TestImportRequiresTipoColumn(t *testing.T) {
	c := New(Config{BaseURL: "http://127.0.0.1:1"})
	_, err := NewImporter(c, nil).Import(context.Background(), strings.NewReader("nombre,direccion\nA,B\n"), &bytes.Buffer{})
	assert.Error(t, err)
}

func TestImportStopsWhenServerIsDown(t *testing.T) {
	var calls atomic.Int32
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"status": "error", "code": "INTERNAL"})
	})

	rows := []string{"tipo,nombre,direccion"}
	for i := 0; i < 10; i++ {
		rows = append(rows, "centro,C"+strconv.Itoa(i)+",addr")
	}

	var out bytes.Buffer
	result, err := NewImporter(c, nil).Import(context.Background(), strings.NewReader(strings.Join(rows, "\n")), &out)

	assert.ErrorIs(t, err, circuitbreaker.ErrOpen)
	assert.Equal(t, 3, result.Failed)
	assert.Equal(t, int32(3), calls.Load())
}
