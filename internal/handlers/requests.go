package handlers

import (
	"github.com/go-playground/validator/v10"
)

// CustomValidator wraps the go-playground/validator library to implement Echo's Validator interface.
type CustomValidator struct {
	validator *validator.Validate
}

// NewValidator creates a new CustomValidator.
func NewValidator() *CustomValidator {
	return &CustomValidator{validator: validator.New()}
}

// Validate implements the echo.Validator interface.
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}

// LoginRequest is the body of POST /login, JSON or form encoded. Trimming and
// length checks happen in the chat service.
type LoginRequest struct {
	Username string `json:"username" form:"username" validate:"required"`
}

// HistoryQuery holds the query parameters of GET /messages. Zero selects the
// configured default.
type HistoryQuery struct {
	Limit int `query:"limit" validate:"gte=0"`
}

// DeleteMessageRequest binds the path of DELETE /messages/:id.
type DeleteMessageRequest struct {
	ID int64 `param:"id" validate:"required,gt=0"`
}
