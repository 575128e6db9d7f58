package utils

import (
	"regexp"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var (
	phonePattern      = regexp.MustCompile(`^\+?\d{9,15}$`)
	postalCodePattern = regexp.MustCompile(`^\d{6}$`)
	phoneNoise        = regexp.MustCompile(`[^\d+]`)

	registerOnce sync.Once
)

// NormalizePhone strips everything except digits and '+' from a phone number
func NormalizePhone(phone string) string {
	return phoneNoise.ReplaceAllString(strings.TrimSpace(phone), "")
}

// IsValidPhone reports whether phone (after normalization) has 9-15 digits
// with an optional leading '+'
func IsValidPhone(phone string) bool {
	return phonePattern.MatchString(NormalizePhone(phone))
}

// IsValidPostalCode reports whether code is exactly six digits
func IsValidPostalCode(code string) bool {
	return postalCodePattern.MatchString(strings.TrimSpace(code))
}

// RegisterValidators adds the "phone" and "postal_code" tags to gin's validator.
// Safe to call more than once.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
			return IsValidPhone(fl.Field().String())
		})
		_ = v.RegisterValidation("postal_code", func(fl validator.FieldLevel) bool {
			return IsValidPostalCode(fl.Field().String())
		})
	})
}
