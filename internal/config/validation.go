package config

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
)

// ErrInvalid marks configuration that failed validation.
var ErrInvalid = errors.New("invalid configuration")

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation("semver", validateSemver); err != nil {
		panic(err)
	}
	return v
}

// validateSemver accepts versions like 1.0.0 and v2.1.0-beta.1.
func validateSemver(fl validator.FieldLevel) bool {
	_, err := semver.NewVersion(fl.Field().String())
	return err == nil
}

// Validate checks every field and reports all failures at once.
func Validate(cfg *Config) error {
	err := validate.Struct(cfg)
	if err == nil {
		return validateSecuritySchemes(cfg.SecuritySchemes)
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return errors.Wrap(err, "validate config")
	}
	msgs := make([]string, len(fieldErrs))
	for i, fe := range fieldErrs {
		msgs[i] = errorMessage(fe)
	}
	return errors.Wrap(ErrInvalid, strings.Join(msgs, "; "))
}

func errorMessage(fe validator.FieldError) string {
	field := strings.ToLower(strings.TrimPrefix(fe.Namespace(), "Config."))
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "semver":
		return fmt.Sprintf("%s must be a semantic version, got %q", field, fe.Value())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %q", field, fe.Param(), fe.Value())
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}

// validateSecuritySchemes requires every scheme to be an object with a type.
func validateSecuritySchemes(schemes map[string]any) error {
	for name, raw := range schemes {
		scheme, ok := raw.(map[string]any)
		if !ok {
			return errors.Wrapf(ErrInvalid, "securityschemes.%s must be an object", name)
		}
		if t, _ := scheme["type"].(string); t == "" {
			return errors.Wrapf(ErrInvalid, "securityschemes.%s.type is required", name)
		}
	}
	return nil
}
