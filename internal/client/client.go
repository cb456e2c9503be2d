// Package client is a typed HTTP client for the OdontoCare API, used by the
// command line tool.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jwalitptl/odontocare-api/internal/model"
	"github.com/jwalitptl/odontocare-api/pkg/circuitbreaker"
)

// Config is read from ODONTOCARE_* environment variables.
type Config struct {
	BaseURL string        `envconfig:"BASE_URL" default:"http://127.0.0.1:8080"`
	Token   string        `envconfig:"TOKEN"`
	Timeout time.Duration `envconfig:"TIMEOUT" default:"10s"`
}

// APIError is a non-2xx answer from the server.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("api error: %d %s", e.StatusCode, e.Message)
}

type envelope struct {
	Status  string          `json:"status"`
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	breaker    *circuitbreaker.CircuitBreaker
}

func New(cfg Config) *Client {
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.Token,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		breaker: circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
			Name:        "odontocare-api",
			MaxFailures: 3,
			Timeout:     30 * time.Second,
			IsFailure:   isServerFailure,
		}),
	}
}

// isServerFailure counts transport errors and 5xx answers. Client errors
// mean the server is healthy.
func isServerFailure(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= http.StatusInternalServerError
	}
	return err != nil
}

// SetToken sets the bearer token sent with every request.
func (c *Client) SetToken(token string) {
	c.token = token
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	return c.breaker.Execute(func() error {
		return c.send(ctx, method, path, query, body, out)
	})
}

func (c *Client) send(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil && !errors.Is(err, io.EOF) {
		if resp.StatusCode >= 300 {
			return &APIError{StatusCode: resp.StatusCode}
		}
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Code: env.Code, Message: env.Message}
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("failed to decode response data: %w", err)
		}
	}
	return nil
}

// Login authenticates and keeps the returned token for later calls.
func (c *Client) Login(ctx context.Context, username, password string) (*model.TokenResponse, error) {
	var tok model.TokenResponse
	err := c.do(ctx, http.MethodPost, "/auth/login", nil, model.LoginRequest{Username: username, Password: password}, &tok)
	if err != nil {
		return nil, err
	}
	c.token = tok.Token
	return &tok, nil
}

func (c *Client) Register(ctx context.Context, req model.RegisterRequest) (*model.UserResponse, error) {
	var user model.UserResponse
	if err := c.do(ctx, http.MethodPost, "/auth/register", nil, req, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) CreateUser(ctx context.Context, req model.CreateUserRequest) (*model.UserResponse, error) {
	var user model.UserResponse
	if err := c.do(ctx, http.MethodPost, "/admin/usuario", nil, req, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) CreatePatient(ctx context.Context, req model.CreatePatientRequest) (*model.Patient, error) {
	var patient model.Patient
	if err := c.do(ctx, http.MethodPost, "/admin/pacientes", nil, req, &patient); err != nil {
		return nil, err
	}
	return &patient, nil
}

func (c *Client) ListPatients(ctx context.Context) ([]model.Patient, error) {
	var patients []model.Patient
	if err := c.do(ctx, http.MethodGet, "/admin/pacientes", nil, nil, &patients); err != nil {
		return nil, err
	}
	return patients, nil
}

func (c *Client) CreateCenter(ctx context.Context, req model.CreateCenterRequest) (*model.Center, error) {
	var center model.Center
	if err := c.do(ctx, http.MethodPost, "/admin/centros", nil, req, &center); err != nil {
		return nil, err
	}
	return &center, nil
}

func (c *Client) CreateDoctor(ctx context.Context, req model.CreateDoctorRequest) (*model.Doctor, error) {
	var doctor model.Doctor
	if err := c.do(ctx, http.MethodPost, "/admin/doctores", nil, req, &doctor); err != nil {
		return nil, err
	}
	return &doctor, nil
}

func (c *Client) CreateAppointment(ctx context.Context, req model.CreateAppointmentRequest) (*model.AppointmentResponse, error) {
	var appt model.AppointmentResponse
	if err := c.do(ctx, http.MethodPost, "/citas", nil, req, &appt); err != nil {
		return nil, err
	}
	return &appt, nil
}

// ListAppointments sends only the non-empty filters.
func (c *Client) ListAppointments(ctx context.Context, q model.AppointmentQuery) ([]model.AppointmentResponse, error) {
	query := url.Values{}
	for key, value := range map[string]string{
		"paciente_id": q.PatientID,
		"doctor_id":   q.DoctorID,
		"centro_id":   q.CenterID,
		"estado":      q.Status,
		"fecha":       q.Date,
	} {
		if value != "" {
			query.Set(key, value)
		}
	}

	var appts []model.AppointmentResponse
	if err := c.do(ctx, http.MethodGet, "/citas", query, nil, &appts); err != nil {
		return nil, err
	}
	return appts, nil
}

func (c *Client) GetAppointment(ctx context.Context, id int64) (*model.AppointmentResponse, error) {
	var appt model.AppointmentResponse
	if err := c.do(ctx, http.MethodGet, "/citas/"+strconv.FormatInt(id, 10), nil, nil, &appt); err != nil {
		return nil, err
	}
	return &appt, nil
}

func (c *Client) CancelAppointment(ctx context.Context, id int64) (*model.AppointmentResponse, error) {
	var appt model.AppointmentResponse
	if err := c.do(ctx, http.MethodPut, "/citas/"+strconv.FormatInt(id, 10), nil, nil, &appt); err != nil {
		return nil, err
	}
	return &appt, nil
}
