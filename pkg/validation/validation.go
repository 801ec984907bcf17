// Package validation wraps go-playground/validator with JSON field naming and
// flattens its errors into the field map carried by validation AppErrors.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	appErr "github.com/taskhall/engine/pkg/errors"
)

var v = New()

// New returns a validator that reports fields by their json tag name.
func New() *validator.Validate {
	val := validator.New(validator.WithRequiredStructEnabled())
	val.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	return val
}

// Struct validates s and returns a CodeInvalid AppError describing every
// failing field, or nil.
func Struct(s any) error {
	if err := v.Struct(s); err != nil {
		return toAppError(err)
	}
	return nil
}

// Var validates a single value against tag.
func Var(field any, tag string) error {
	return v.Var(field, tag)
}

func toAppError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return appErr.Wrap(err, appErr.CodeInvalid, "invalid input")
	}
	return appErr.Invalid("invalid input", Fields(verrs))
}

// Fields maps each failing field (dotted namespace without the root type) to
// a short message.
func Fields(verrs validator.ValidationErrors) map[string]string {
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		out[fieldPath(fe)] = message(fe)
	}
	return out
}

func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email"
	case "url":
		return "must be a valid URL"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "min", "gte":
		if isCollection(fe.Kind()) {
			return fmt.Sprintf("must have at least %s items", fe.Param())
		}
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		return "must be at least " + fe.Param()
	case "max", "lte":
		if isCollection(fe.Kind()) {
			return fmt.Sprintf("must have at most %s items", fe.Param())
		}
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		return "must be at most " + fe.Param()
	case "uuid", "uuid4", "uuid7":
		return "must be a valid id"
	}
	return "failed " + fe.Tag() + " check"
}

func isCollection(k reflect.Kind) bool {
	return k == reflect.Slice || k == reflect.Array || k == reflect.Map
}
