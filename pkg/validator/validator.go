package validator

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var (
	v *validator.Validate
)

func init() {
	v = validator.New()
}

func Validate(i interface{}) error {
	if i == nil {
		return fmt.Errorf("data to validate is nil")
	}

	return v.Struct(i)
}

// Var validates a single value against tag, e.g. Var(id, "required,uuid4").
func Var(field interface{}, tag string) error {
	return v.Var(field, tag)
}

// RegisterStringSet registers tag as a validation which only accepts strings contained in allowed.
// Useful for closed enumerations whose members contain spaces, where the builtin oneof cannot be used.
func RegisterStringSet(tag string, allowed []string) error {
	set := make(map[string]struct{}, len(allowed))
	for _, s := range allowed {
		set[s] = struct{}{}
	}

	return v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
		_, ok := set[fl.Field().String()]
		return ok
	})
}

// MustRegisterStringSet is like RegisterStringSet but panics on error. Call it from package init only.
func MustRegisterStringSet(tag string, allowed []string) {
	if err := RegisterStringSet(tag, allowed); err != nil {
		panic(fmt.Errorf("register validation %s: %w", tag, err))
	}
}
