package service

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/sentinel-access/sentinel/server/internal/sentinel/types"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

func init() {
	// Names end up in mail headers and log lines.
	_ = validate.RegisterValidation("nocontrol", func(fl validator.FieldLevel) bool {
		return strings.IndexFunc(fl.Field().String(), unicode.IsControl) < 0
	})
	validate.RegisterStructValidation(func(sl validator.StructLevel) {
		u := sl.Current().Interface().(types.User)
		if !u.PrimaryMethod.Valid() {
			sl.ReportError(u.PrimaryMethod, "PrimaryMethod", "primary_method", "method", "")
		}
	}, types.User{})
}

// describe flattens validator errors into "field: tag" pairs.
func describe(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s: %s", fe.Namespace(), fe.Tag()))
	}
	return strings.Join(parts, ", ")
}

func check(sentinel error, v any) error {
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %s", sentinel, describe(err))
	}
	return nil
}
