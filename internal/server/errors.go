// Package server exposes the query executor over HTTP. Errors travel as
// *database.Error so the HTTP status follows from the error code.
package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/vibesql/vibelite/internal/database"
)

// NewMissingFieldError creates an error for a missing required field
func NewMissingFieldError(fieldName string) *database.Error {
	return database.NewError(
		database.ErrorCodeMissingRequiredField,
		fmt.Sprintf("Missing required field: %s", fieldName),
		fmt.Sprintf("The request must include a '%s' field", fieldName),
	)
}

// NewInvalidRequestError creates an error for a malformed request body
func NewInvalidRequestError(detail string) *database.Error {
	return database.NewError(
		database.ErrorCodeInvalidRequest,
		"Invalid request",
		detail,
	)
}

func NewMethodNotAllowedError(method, path string) *database.Error {
	return database.NewError(
		database.ErrorCodeMethodNotAllowed,
		"Method not allowed",
		fmt.Sprintf("%s is not supported for %s", method, path),
	)
}

// NewBodyTooLargeError creates an error for request bodies over the limit
func NewBodyTooLargeError(maxBytes int64) *database.Error {
	return database.NewError(
		database.ErrorCodeQueryTooLarge,
		"Request body too large",
		fmt.Sprintf("Request body exceeds maximum allowed size (%d bytes)", maxBytes),
	)
}

// NewInternalError creates an error for internal server errors
func NewInternalError(detail string) *database.Error {
	return database.NewError(
		database.ErrorCodeInternalError,
		"An internal error occurred",
		detail,
	)
}

// asError returns the *database.Error carried by err, translating driver
// errors that were never wrapped.
func asError(err error) *database.Error {
	if err == nil {
		return nil
	}
	return database.TranslateError(err)
}

// validationError turns the first failed struct tag into a request error.
func validationError(err error) *database.Error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return NewInvalidRequestError(err.Error())
	}

	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return NewMissingFieldError(fe.Field())
	case "excluded_with":
		return NewInvalidRequestError(fmt.Sprintf("'%s' and '%s' cannot be used together", fe.Field(), strings.ToLower(fe.Param())))
	default:
		return NewInvalidRequestError(fmt.Sprintf("field '%s' failed '%s' validation", fe.Field(), fe.Tag()))
	}
}

// statusFor returns the HTTP status for err, defaulting to 500.
func statusFor(err *database.Error) int {
	if err == nil {
		return http.StatusInternalServerError
	}
	return database.HTTPStatus(err.Code)
}
