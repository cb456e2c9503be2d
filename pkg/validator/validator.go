// Package validator registers the domain validation tags on the
// go-playground validator used by gin binding.
package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/jwalitptl/odontocare-api/internal/model"
)

// Register adds the custom tags to v and reports fields by their JSON name.
func Register(v *validator.Validate) error {
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" || name == "" {
			return field.Name
		}
		return name
	})

	tags := map[string]validator.Func{
		"role":               validateRole,
		"patient_status":     validatePatientStatus,
		"appointment_status": validateAppointmentStatus,
		"iso8601":            validateTimestamp,
	}
	for tag, fn := range tags {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return fmt.Errorf("failed to register %s validation: %w", tag, err)
		}
	}
	return nil
}

// RegisterGin installs the tags on gin's default binding validator.
func RegisterGin() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("gin binding engine is not go-playground/validator")
	}
	return Register(v)
}

func validateRole(fl validator.FieldLevel) bool {
	_, ok := model.ParseRole(fl.Field().String())
	return ok
}

func validatePatientStatus(fl validator.FieldLevel) bool {
	return model.PatientStatus(fl.Field().String()).Valid()
}

func validateAppointmentStatus(fl validator.FieldLevel) bool {
	_, ok := model.ParseAppointmentStatus(fl.Field().String())
	return ok
}

func validateTimestamp(fl validator.FieldLevel) bool {
	_, err := model.ParseTimestamp(fl.Field().String())
	return err == nil
}

// Message turns binding errors into a short client-facing sentence.
func Message(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "invalid request body"
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", fe.Field()))
		case "role":
			msgs = append(msgs, fmt.Sprintf("%s must be one of admin, doctor, receptionist, patient", fe.Field()))
		case "patient_status":
			msgs = append(msgs, fmt.Sprintf("%s must be ACTIVE or INACTIVE", fe.Field()))
		case "appointment_status":
			msgs = append(msgs, fmt.Sprintf("%s must be PENDING or CANCELLED", fe.Field()))
		case "iso8601":
			msgs = append(msgs, fmt.Sprintf("%s must be an ISO-8601 date or date-time", fe.Field()))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of %s", fe.Field(), fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s is invalid", fe.Field()))
		}
	}
	return strings.Join(msgs, "; ")
}
