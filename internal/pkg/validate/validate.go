package validate

import (
	"fmt"
	"strings"

	"github.com/go-phone-auth/internal/pkg/phone"
	"github.com/go-playground/validator/v10"
)

// v is the package-level singleton validator. It is initialised once at
// package load time. Any custom type registrations must be made during init()
// before the first call to Struct.
var v = validator.New()

func init() {
	_ = v.RegisterValidation("phone", validPhone)
}

// validPhone accepts anything that normalizes to "+" followed by 4 to 15
// digits. Separators (spaces, dashes, dots, parentheses) are allowed.
func validPhone(fl validator.FieldLevel) bool {
	num := phone.Normalize(fl.Field().String())
	digits := num[1:]
	if len(digits) < 4 || len(digits) > 15 {
		return false
	}
	for _, c := range digits {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// Struct validates the given struct using its validate tags.
// Returns a human-readable error string or nil.
func Struct(s interface{}) error {
	if err := v.Struct(s); err != nil {
		ve, ok := err.(validator.ValidationErrors)
		if !ok {
			return err
		}
		var msgs []string
		for _, fe := range ve {
			msgs = append(msgs, fmt.Sprintf("field '%s' failed '%s'", fe.Field(), fe.Tag()))
		}
		return fmt.Errorf("%s", strings.Join(msgs, "; "))
	}
	return nil
}
