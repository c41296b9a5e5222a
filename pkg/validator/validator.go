package validator

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"prohori/pkg/e"
)

var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
}

// FirstViolation returns the first failed rule of err in struct declaration
// order. Field is the dotted json path without the root struct name, e.g.
// "location.coordinates".
func FirstViolation(err error) (field, tag string, ok bool) {
	verrs, isVerrs := err.(validator.ValidationErrors)
	if !isVerrs || len(verrs) == 0 {
		return "", "", false
	}
	fe := verrs[0]
	ns := fe.Namespace()
	if _, rest, found := strings.Cut(ns, "."); found {
		ns = rest
	}
	return ns, fe.Tag(), true
}

// Check validates s and reports only the first violation: a failed
// "required" rule as a missing field, anything else as an invalid one.
func Check(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	field, tag, ok := FirstViolation(err)
	if !ok {
		return fmt.Errorf("%v: %w", err, e.ErrInvalidInput)
	}
	if tag == "required" {
		return e.MissingField(field)
	}
	return fmt.Errorf("rule %q: %w", tag, e.InvalidField(field))
}
