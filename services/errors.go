package services

import (
	"errors"
	"net/http"

	"gorm.io/gorm"
)

var (
	ErrNotFound          = errors.New("requested resource not found")
	ErrUnauthorized      = errors.New("unauthorized access")
	ErrForbidden         = errors.New("forbidden access")
	ErrValidation        = errors.New("validation failed")
	ErrConflict          = errors.New("resource conflict")
	ErrInsufficientFunds = errors.New("Insufficient funds")
	ErrBudgetExhausted   = errors.New("ad budget exhausted")
	ErrRoomFull          = errors.New("room is full")
	ErrRoomClosed        = errors.New("room is not accepting participants")
	ErrInvalidPassword   = errors.New("invalid room password")
	ErrInvalidState      = errors.New("operation not allowed in current room state")
)

// HTTPStatus maps domain errors to HTTP status codes.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden), errors.Is(err, ErrInvalidPassword):
		return http.StatusForbidden
	case errors.Is(err, ErrValidation),
		errors.Is(err, ErrInsufficientFunds),
		errors.Is(err, ErrBudgetExhausted),
		errors.Is(err, ErrRoomFull),
		errors.Is(err, ErrRoomClosed),
		errors.Is(err, ErrInvalidState):
		return http.StatusBadRequest
	case errors.Is(err, ErrConflict), errors.Is(err, gorm.ErrDuplicatedKey):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// PublicMessage is the client-facing text for err; internal failures are not leaked.
func PublicMessage(err error) string {
	if HTTPStatus(err) == http.StatusInternalServerError {
		return "internal server error"
	}
	// the sentinel text, without wrapping context, for the well-known billing error
	if errors.Is(err, ErrInsufficientFunds) {
		return ErrInsufficientFunds.Error()
	}
	return err.Error()
}
