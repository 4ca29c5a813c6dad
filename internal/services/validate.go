package services

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/tech-e/apiserver/internal/apperr"
)

var phonePattern = regexp.MustCompile(`^\+?[1-9]\d{1,14}$`)

// newValidator returns a validator that reports json field names and knows
// the "phone" tag.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
	return v
}

// fieldErrors converts validator failures using the messages table, keyed
// by json field name. Fields without an entry get fallback.
func fieldErrors(err error, messages map[string]string, fallback string) []apperr.FieldError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	out := make([]apperr.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		msg, ok := messages[fe.Field()]
		if !ok {
			msg = fallback
		}
		out = append(out, apperr.FieldError{Field: fe.Field(), Message: msg})
	}
	return out
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
