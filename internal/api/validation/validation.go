// Package validation decodes and validates search API requests.
package validation

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/form/v4"
	"github.com/go-playground/validator/v10"

	"github.com/signclips/hub/internal/api/response"
)

var (
	// Registrations are not thread-safe and happen only in init; validate.Struct and
	// decoder.Decode are safe for concurrent use afterwards.
	validate *validator.Validate
	decoder  *form.Decoder
)

// regionPattern matches region codes such as "TH", "US" or "th-north".
var regionPattern = regexp.MustCompile(`^[A-Za-z]{2}(-[A-Za-z0-9]{1,8})?$`)

func init() {
	validate = validator.New()
	decoder = form.NewDecoder()

	if err := validate.RegisterValidation("region", validateRegion); err != nil {
		slog.Error("Failed to register region validator", "error", err)
	}

	if err := validate.RegisterValidation("no_null_bytes", validateNoNullBytes); err != nil {
		slog.Error("Failed to register no_null_bytes validator", "error", err)
	}
}

// Error is a failed struct validation. Its message lists every field problem; the field
// errors stay reachable with errors.As for problem details.
type Error struct {
	fields validator.ValidationErrors
}

func (e *Error) Error() string {
	messages := make([]string, 0, len(e.fields))
	for _, fe := range e.fields {
		messages = append(messages, formatFieldError(fe))
	}

	return "validation failed: " + strings.Join(messages, "; ")
}

func (e *Error) Unwrap() error { return e.fields }

// ValidateStruct runs the validate tags of s. Field failures are returned as *Error.
func ValidateStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var fields validator.ValidationErrors
	if errors.As(err, &fields) {
		return &Error{fields: fields}
	}

	return fmt.Errorf("validate: %w", err)
}

func formatFieldError(fieldError validator.FieldError) string {
	field := fieldError.Field()

	switch fieldError.Tag() {
	case "required":
		return field + " is required"
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fieldError.Param())
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, fieldError.Param())
	case "region":
		return field + " must be a region code such as TH or US"
	case "no_null_bytes":
		return field + " must not contain NULL bytes"
	default:
		return field + " is invalid"
	}
}

// GetValidationErrorDetails returns one ErrorDetail per failed field, or nil.
func GetValidationErrorDetails(err error) []response.ErrorDetail {
	var fields validator.ValidationErrors
	if !errors.As(err, &fields) {
		return nil
	}

	details := make([]response.ErrorDetail, 0, len(fields))
	for _, fe := range fields {
		details = append(details, response.ErrorDetail{
			Location: fe.Field(),
			Message:  formatFieldError(fe),
			Value:    fe.Value(),
		})
	}

	return details
}

// RespondValidationError writes a 400 problem listing the failed fields.
func RespondValidationError(w http.ResponseWriter, err error) {
	problem := response.NewProblem(http.StatusBadRequest, err.Error())
	problem.Title = "Validation Error"
	problem.Errors = GetValidationErrorDetails(err)

	response.RespondProblem(w, problem)
}

// DecodeQueryParams decodes URL query parameters into dst using form tags.
func DecodeQueryParams(r *http.Request, dst any) error {
	if err := decoder.Decode(dst, r.URL.Query()); err != nil {
		return fmt.Errorf("failed to decode query parameters: %w", err)
	}

	return nil
}

// stringField dereferences string and *string fields. ok is false for a nil pointer
// or a non-string kind.
func stringField(fl validator.FieldLevel) (value string, isNil, ok bool) {
	field := fl.Field()

	if field.Kind() == reflect.Ptr {
		if field.IsNil() {
			return "", true, true
		}

		field = field.Elem()
	}

	if field.Kind() != reflect.String {
		return "", false, false
	}

	return field.String(), false, true
}

func validateRegion(fl validator.FieldLevel) bool {
	value, isNil, ok := stringField(fl)
	if isNil {
		return true
	}

	return ok && regionPattern.MatchString(value)
}

func validateNoNullBytes(fl validator.FieldLevel) bool {
	value, _, ok := stringField(fl)
	if !ok {
		return true
	}

	return !strings.Contains(value, "\x00")
}
