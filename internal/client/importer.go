package client

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/jwalitptl/odontocare-api/internal/model"
	"github.com/jwalitptl/odontocare-api/pkg/circuitbreaker"
)

// Row outcomes as printed for each imported line.
const (
	OutcomeOK      = "OK"
	OutcomeExists  = "YA EXISTE"
	OutcomeError   = "ERROR"
	OutcomeSkipped = "DESCONOCIDO"
)

// ImportResult counts the outcomes of one import run.
type ImportResult struct {
	Created  int
	Existing int
	Failed   int
	Skipped  int
}

// Importer loads centers, patients and doctors from a CSV file with a header
// row. The "tipo" column selects the record kind.
type Importer struct {
	client *Client
	logger *zap.Logger
}

func NewImporter(client *Client, logger *zap.Logger) *Importer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Importer{client: client, logger: logger}
}

// Import processes every row of r and writes one report line per row to out.
// A failing row never stops the import; only an unreadable file does.
func (im *Importer) Import(ctx context.Context, r io.Reader, out io.Writer) (ImportResult, error) {
	var result ImportResult

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return result, fmt.Errorf("failed to read csv header: %w", err)
	}
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}
	if _, ok := columns["tipo"]; !ok {
		return result, errors.New("csv header has no tipo column")
	}

	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return result, fmt.Errorf("failed to read csv line %d: %w", line, err)
		}

		field := func(name string) string {
			if i, ok := columns[name]; ok && i < len(record) {
				return strings.TrimSpace(record[i])
			}
			return ""
		}

		kind := strings.ToLower(field("tipo"))
		name := field("nombre")

		err = im.importRow(ctx, kind, field)
		if errors.Is(err, circuitbreaker.ErrOpen) {
			return result, fmt.Errorf("aborting import at line %d: %w", line, err)
		}
		switch outcome := classify(err); outcome {
		case OutcomeOK:
			result.Created++
			fmt.Fprintf(out, "%s → %s: %s\n", outcome, kind, name)
		case OutcomeExists:
			result.Existing++
			fmt.Fprintf(out, "%s → %s: %s\n", outcome, kind, name)
		case OutcomeSkipped:
			result.Skipped++
			fmt.Fprintf(out, "Tipo desconocido: %s\n", kind)
		default:
			result.Failed++
			fmt.Fprintf(out, "%s → %s: %s\n", errorLabel(err), kind, name)
			im.logger.Warn("import row failed", zap.Int("line", line), zap.String("tipo", kind), zap.Error(err))
		}
	}

	im.logger.Info("import finished",
		zap.Int("created", result.Created),
		zap.Int("existing", result.Existing),
		zap.Int("failed", result.Failed),
		zap.Int("skipped", result.Skipped),
	)
	return result, nil
}

var errUnknownKind = errors.New("unknown row type")

func (im *Importer) importRow(ctx context.Context, kind string, field func(string) string) error {
	switch kind {
	case "centro":
		_, err := im.client.CreateCenter(ctx, model.CreateCenterRequest{
			Name:    field("nombre"),
			Address: field("direccion"),
		})
		return err
	case "paciente":
		_, err := im.client.CreatePatient(ctx, model.CreatePatientRequest{
			Name:     field("nombre"),
			Phone:    field("telefono"),
			Status:   patientStatus(field("estado")),
			Username: field("username"),
			Password: field("password"),
		})
		return err
	case "doctor":
		centerID, err := strconv.ParseInt(field("centro_id"), 10, 64)
		if err != nil {
			return fmt.Errorf("invalid centro_id %q: %w", field("centro_id"), err)
		}
		_, err = im.client.CreateDoctor(ctx, model.CreateDoctorRequest{
			Name:      field("nombre"),
			Specialty: field("especialidad"),
			CenterID:  centerID,
			Username:  field("username"),
			Password:  field("password"),
		})
		return err
	default:
		return errUnknownKind
	}
}

// patientStatus accepts the Spanish spellings used by older data files.
func patientStatus(s string) string {
	switch strings.ToUpper(s) {
	case "ACTIVO":
		return string(model.PatientStatusActive)
	case "INACTIVO":
		return string(model.PatientStatusInactive)
	}
	return strings.ToUpper(s)
}

func classify(err error) string {
	var apiErr *APIError
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, errUnknownKind):
		return OutcomeSkipped
	case errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusConflict:
		return OutcomeExists
	default:
		return OutcomeError
	}
}

func errorLabel(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return fmt.Sprintf("%s (%d)", OutcomeError, apiErr.StatusCode)
	}
	return OutcomeError
}
