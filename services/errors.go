package services

import (
	"errors"
	"net/http"
	"strings"

	"gorm.io/gorm"
)

// Error is a domain failure with a stable code and the HTTP status it maps to
type Error struct {
	Code    string
	Message string
	Status  int
}

func (e *Error) Error() string {
	return e.Message
}

var (
	ErrProductNotFound  = &Error{Code: "PRODUCT_NOT_FOUND", Message: "Product not found", Status: http.StatusNotFound}
	ErrCartItemNotFound = &Error{Code: "CART_ITEM_NOT_FOUND", Message: "Item is not in the cart", Status: http.StatusNotFound}
	ErrOrderNotFound    = &Error{Code: "ORDER_NOT_FOUND", Message: "Order not found", Status: http.StatusNotFound}
	ErrUserNotFound     = &Error{Code: "USER_NOT_FOUND", Message: "User not found", Status: http.StatusNotFound}
	ErrEmptyCart        = &Error{Code: "EMPTY_CART", Message: "Cart is empty", Status: http.StatusUnprocessableEntity}
	ErrEmailTaken       = &Error{Code: "EMAIL_EXISTS", Message: "A user with this email already exists", Status: http.StatusConflict}
	ErrPhoneTaken       = &Error{Code: "PHONE_EXISTS", Message: "A user with this phone number already exists", Status: http.StatusConflict}
	ErrDuplicate        = &Error{Code: "DUPLICATE", Message: "Could not allocate a unique order number", Status: http.StatusConflict}

	ErrInvalidCredentials = &Error{Code: "INVALID_CREDENTIALS", Message: "Invalid login or password", Status: http.StatusUnauthorized}
	ErrInvalidTransition  = &Error{Code: "INVALID_STATUS_TRANSITION", Message: "Order cannot move to the requested status", Status: http.StatusConflict}
)

// ValidationError reports a single invalid input field
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// IsValidationError reports whether err carries a *ValidationError
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// isDuplicateKeyError recognises unique-constraint violations across drivers
func isDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate") || strings.Contains(msg, "unique")
}
