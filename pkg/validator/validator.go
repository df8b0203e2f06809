package validator

import (
	"encoding/json"
	"fmt"
	"net/http"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// phonePattern accepts local ("0712345678") and international
// ("+255712345678") numbers with optional spaces or dashes.
var phonePattern = regexp.MustCompile(`^\+?[0-9][0-9 \-]{6,18}[0-9]$`)

var validate = newValidate()

func newValidate() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
	// Report fields under the names clients send them as.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// messages holds the client-facing text per tag; %[1]s is the tag param.
var messages = map[string]string{
	"required":         "is required",
	"required_with":    "is required when %[1]s is set",
	"required_without": "is required when %[1]s is not set",
	"phone":            "must be a valid phone number",
	"latitude":         "must be a valid latitude",
	"longitude":        "must be a valid longitude",
	"oneof":            "must be one of: %[1]s",
	"min":              "must be at least %[1]s characters",
	"max":              "must be at most %[1]s characters",
	"gt":               "must be greater than %[1]s",
}

func describe(fe validator.FieldError) string {
	if fe.Tag() == "required_if" {
		field, value, _ := strings.Cut(fe.Param(), " ")
		return fmt.Sprintf("is required when %s is %s", field, value)
	}
	if format, ok := messages[fe.Tag()]; ok {
		if strings.Contains(format, "%[1]s") {
			return fmt.Sprintf(format, fe.Param())
		}
		return format
	}
	return fmt.Sprintf("failed on '%s' validation", fe.Tag())
}

// ValidationError carries every field that failed, in struct order.
type ValidationError struct {
	Errors validator.ValidationErrors
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fmt.Sprintf("field '%s' %s", fe.Field(), describe(fe))
	}
	return strings.Join(parts, "; ")
}

// Fields maps each failing field to its message.
func (e *ValidationError) Fields() map[string]string {
	out := make(map[string]string, len(e.Errors))
	for _, fe := range e.Errors {
		out[fe.Field()] = describe(fe)
	}
	return out
}

// Validate checks s against its `validate` tags.
func Validate(s any) error {
	err := validate.Struct(s)
	if fieldErrs, ok := err.(validator.ValidationErrors); ok {
		return &ValidationError{Errors: fieldErrs}
	}
	return err
}

// DecodeAndValidate decodes the JSON request body into dst and validates it.
func DecodeAndValidate(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode request body: %w", err)
	}
	return Validate(dst)
}
