// Package response формирует JSON-ответы HTTP-обработчиков в едином формате.
package response

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator"
)

// Response стандартный JSON-ответ сервера.
type Response struct {
	Status string `json:"status"`
	Code   string `json:"code,omitempty"`
	Error  string `json:"error,omitempty"`
	Data   any    `json:"data,omitempty"`
}

// ErrorResponse — структура ошибки для Swagger-документации.
type ErrorResponse struct {
	Status string `json:"status" example:"Error"`
	Code   string `json:"code" example:"invalid_signature"`
	Error  string `json:"error" example:"init data signature is invalid"`
}

const (
	// StatusOK — значение статуса для успешного ответа.
	StatusOK = "OK"
	// StatusError — значение статуса для ответа с ошибкой.
	StatusError = "Error"
)

// Машиночитаемые коды ошибок.
const (
	CodeMalformedPayload = "malformed_payload"
	CodeMissingInitData  = "missing_init_data"
	CodeMissingIdentity  = "missing_identity"
	CodeInvalidSignature = "invalid_signature"
	CodeExpired          = "init_data_expired"
	CodeUnauthorized     = "unauthorized"
	CodeNotFound         = "not_found"
	CodeTrialActive      = "trial_active"
	CodeTrialEnded       = "trial_ended"
	CodeValidation       = "validation_error"
	CodeInternal         = "internal_error"
)

// OKWithData возвращает успешный Response с данными.
func OKWithData(data any) Response {
	return Response{
		Status: StatusOK,
		Data:   data,
	}
}

// Error возвращает Response с кодом и сообщением ошибки.
func Error(code, msg string) Response {
	return Response{
		Status: StatusError,
		Code:   code,
		Error:  msg,
	}
}

// ValidationError формирует Response из ошибок валидатора.
func ValidationError(errs validator.ValidationErrors) Response {
	var errsMsgs []string

	for _, err := range errs {
		switch err.ActualTag() {
		case "required":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s is a required field", err.Field()))
		case "max":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s is too long", err.Field()))
		default:
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s is not a valid", err.Field()))
		}
	}
	return Error(CodeValidation, strings.Join(errsMsgs, ", "))
}
