// Package response defines the JSON envelope shared by all API handlers.
package response

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// EmptyRequestBodyResponse is returned when the request body is empty.
var EmptyRequestBodyResponse = Response{
	Status:  StatusError,
	Message: "Request body is empty. Please provide necessary data.",
}

// BadRequestResponse is returned when the request body cannot be parsed.
var BadRequestResponse = Response{
	Status:  StatusError,
	Message: "Invalid request body. Please provide valid data.",
}

// ResourceNotFoundResponse is returned when the requested resource does not exist.
var ResourceNotFoundResponse = Response{
	Status:  StatusError,
	Message: "The requested resource was not found.",
}

// ServerErrorResponse is returned on unexpected failures.
var ServerErrorResponse = Response{
	Status:  StatusError,
	Message: "An internal server error occurred. Please try again later.",
}

// Response is the envelope for every API reply.
type Response struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Details []any  `json:"details,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// SuccessResponse builds a success envelope with an optional payload.
// Only the first data value is used.
func SuccessResponse(msg string, data ...any) Response {
	resp := Response{
		Status:  StatusSuccess,
		Message: msg,
	}

	if len(data) > 0 && data[0] != nil {
		resp.Data = data[0]
	}

	return resp
}

// ErrorResponse builds an error envelope with the given message.
func ErrorResponse(msg string) Response {
	return Response{
		Status:  StatusError,
		Message: msg,
	}
}

type validationError struct {
	Field string `json:"field"`
	Value any    `json:"value"`
	Issue string `json:"issue"`
}

func getValidationErrors(err error) []validationError {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return nil
	}

	var details []validationError

	for _, err := range validationErrs {
		detail := validationError{
			Field: err.Field(),
			Value: err.Value(),
		}

		switch err.Tag() {
		case "required":
			detail.Issue = "This field is required."
		case "url":
			detail.Issue = "Invalid url."
		case "email":
			detail.Issue = "Invalid email."
		case "min":
			detail.Issue = fmt.Sprintf("Must be at least %s characters long.", err.Param())
		case "max":
			detail.Issue = fmt.Sprintf("Must be at most %s characters long.", err.Param())
		case "alphanum":
			detail.Issue = "Must contain only letters and digits."
		default:
			detail.Issue = "Invalid value."
		}

		details = append(details, detail)
	}

	return details
}

// ValidationErrorResponse builds an error envelope describing each failed
// validation rule.
func ValidationErrorResponse(err error) Response {
	resp := Response{
		Status:  StatusError,
		Message: "Validation failed. Check the details.",
	}

	for _, detail := range getValidationErrors(err) {
		resp.Details = append(resp.Details, detail)
	}

	return resp
}
