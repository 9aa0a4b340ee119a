package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	ferrors "git.home.luguber.info/inful/specblocks/internal/foundation/errors"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the configuration after defaults and CLI overrides are applied.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return ferrors.WrapError(err, ferrors.CategoryConfig, "configuration validation failed").Fatal().Build()
	}
	problems := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		problems = append(problems, describe(fe))
	}
	return ferrors.ConfigError("invalid configuration: "+strings.Join(problems, "; ")).
		WithContext("fields", len(problems)).
		Build()
}

func describe(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "Config.")
	switch fe.Tag() {
	case "required_without":
		return fmt.Sprintf("%s: one of source url or path is required", field)
	case "excluded_with":
		return fmt.Sprintf("%s: source url and path are mutually exclusive", field)
	case "oneof":
		return fmt.Sprintf("%s: must be one of [%s], got %v", field, fe.Param(), fe.Value())
	default:
		if fe.Param() != "" {
			return fmt.Sprintf("%s: failed %s=%s", field, fe.Tag(), fe.Param())
		}
		return fmt.Sprintf("%s: failed %s", field, fe.Tag())
	}
}
