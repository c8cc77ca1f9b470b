package api

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/gofiber/fiber/v2"
)

// ErrorHandler is the central fiber error handler: typed api errors and
// validation errors keep their status and JSON shape, everything else is
// logged and collapsed to a generic failure without internal detail.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var apiErr Error
	if errors.As(err, &apiErr) {
		return c.Status(apiErr.Code).JSON(apiErr)
	}

	var valErr ValidationError
	if errors.As(err, &valErr) {
		return c.Status(valErr.Status).JSON(valErr)
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return c.Status(fiberErr.Code).JSON(NewError(fiberErr.Code, fiberErr.Message))
	}

	slog.Default().Error("request failed", "path", c.Path(), "error", err)
	return c.Status(fiber.StatusInternalServerError).JSON(NewError(fiber.StatusInternalServerError, "internal failure"))
}

type Error struct {
	Code    int    `json:"code"`
	Message string `json:"error"`
}

type ValidationError struct {
	Status int               `json:"status"`
	Errors map[string]string `json:"errors"`
}

func (e ValidationError) Error() string {
	return "validation failed"
}

func NewValidationError(errors map[string]string) ValidationError {
	return ValidationError{
		Status: fiber.StatusUnprocessableEntity,
		Errors: errors,
	}
}

// Error implements the Error interface
func (e Error) Error() string {
	return e.Message
}

func NewError(code int, err string) Error {
	return Error{
		Code:    code,
		Message: err,
	}
}

func ErrBadRequest() Error {
	return Error{
		Code:    fiber.StatusBadRequest,
		Message: "invalid JSON request",
	}
}

func ErrInvalidID() Error {
	return Error{
		Code:    fiber.StatusBadRequest,
		Message: "invalid id given",
	}
}

func ErrUnAuthorized(msg string) Error {
	return Error{
		Code:    fiber.StatusUnauthorized,
		Message: msg,
	}
}

func ErrForbidden() Error {
	return Error{
		Code:    fiber.StatusForbidden,
		Message: "you don't have permission to access this record",
	}
}

func ErrNotFound[T any](arg T, resource string) Error {
	return Error{
		Code:    fiber.StatusNotFound,
		Message: fmt.Sprintf("%s with %v not found", resource, arg),
	}
}

func ErrUnsupportedFileType(allowed string) Error {
	return Error{
		Code:    fiber.StatusBadRequest,
		Message: fmt.Sprintf("only %s files are supported", allowed),
	}
}

func ErrFileTooLarge(maxBytes int64) Error {
	return Error{
		Code:    fiber.StatusRequestEntityTooLarge,
		Message: fmt.Sprintf("file too large, maximum size is %dMB", maxBytes/(1024*1024)),
	}
}

func ErrProcessingFailed() Error {
	return Error{
		Code:    fiber.StatusUnprocessableEntity,
		Message: "error processing document",
	}
}
