// Package validator provides struct validation with the rule-query tags
// used by request DTOs.
package validator

import (
	stderrors "errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/armorlens/api/pkg/domain/rule"
)

// Validator wraps the go-playground validator with custom validations.
type Validator struct {
	validate *validator.Validate
}

// ValidationError represents a single field validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	var sb strings.Builder
	for i, e := range v {
		if i > 0 {
			sb.WriteString("; ")
		}
		fmt.Fprintf(&sb, "%s: %s", e.Field, e.Message)
	}
	return sb.String()
}

// New creates a new Validator with custom validators registered.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	_ = v.RegisterValidation("action_bucket", validateActionBucket)
	_ = v.RegisterValidation("adaptive_filter", validateAdaptiveFilter)
	_ = v.RegisterValidation("sort_field", validateSortField)
	_ = v.RegisterValidation("sort_order", validateSortOrder)
	_ = v.RegisterValidation("sheet_url", validateSheetURL)
	_ = v.RegisterValidation("object_url", validateObjectURL)

	return &Validator{validate: v}
}

// Validate validates a struct and returns ValidationErrors if validation fails.
func (v *Validator) Validate(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !stderrors.As(err, &validationErrors) {
		return err
	}

	result := make(ValidationErrors, 0, len(validationErrors))
	for _, e := range validationErrors {
		result = append(result, ValidationError{
			Field:   toSnakeCase(e.Field()),
			Message: formatErrorMessage(e),
		})
	}

	return result
}

// validateActionBucket accepts deny, allow, throttle and other.
func validateActionBucket(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	return rule.QuickAction(strings.ToLower(value)).IsValid()
}

func validateAdaptiveFilter(fl validator.FieldLevel) bool {
	return rule.AdaptiveFilter(strings.ToLower(fl.Field().String())).IsValid()
}

func validateSortField(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	_, ok := rule.ParseField(value)
	return ok
}

func validateSortOrder(fl validator.FieldLevel) bool {
	switch strings.ToLower(fl.Field().String()) {
	case "", "asc", "desc":
		return true
	}
	return false
}

// validateSheetURL requires an absolute http(s) URL with a host.
func validateSheetURL(fl validator.FieldLevel) bool {
	value := strings.TrimSpace(fl.Field().String())
	if value == "" {
		return true
	}
	u, err := url.Parse(value)
	if err != nil {
		return false
	}
	return (u.Scheme == "https" || u.Scheme == "http") && u.Host != ""
}

// validateObjectURL requires s3://bucket/key.
func validateObjectURL(fl validator.FieldLevel) bool {
	value := strings.TrimSpace(fl.Field().String())
	if value == "" {
		return true
	}
	u, err := url.Parse(value)
	if err != nil {
		return false
	}
	return u.Scheme == "s3" && u.Host != "" && strings.Trim(u.Path, "/") != ""
}

// formatErrorMessage converts validation errors to human-readable messages.
func formatErrorMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", e.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", e.Param())
	case "url":
		return "must be a valid URL"
	case "action_bucket":
		return "must be one of: deny, allow, throttle, other"
	case "adaptive_filter":
		return "must be one of: all, enabled, disabled"
	case "sort_field":
		return fmt.Sprintf("must be one of: %s", formatFields())
	case "sort_order":
		return "must be one of: asc, desc"
	case "sheet_url":
		return "must be an http or https URL"
	case "object_url":
		return "must be an s3://bucket/key URL"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", e.Param())
	default:
		return fmt.Sprintf("failed on '%s' validation", e.Tag())
	}
}

// toSnakeCase converts PascalCase/camelCase to snake_case.
func toSnakeCase(s string) string {
	var result strings.Builder
	for i, r := range s {
		if i > 0 && r >= 'A' && r <= 'Z' {
			result.WriteByte('_')
		}
		result.WriteRune(r)
	}
	return strings.ToLower(result.String())
}

func formatFields() string {
	strs := make([]string, len(rule.AllFields))
	for i, f := range rule.AllFields {
		strs[i] = string(f)
	}
	return strings.Join(strs, ", ")
}
