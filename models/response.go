package models

// APIResponse is the envelope returned by every push endpoint.
type APIResponse struct {
	Status  int    `json:"status"`
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// NewSuccessResponse builds a success envelope.
func NewSuccessResponse(status int, message string, data any) APIResponse {
	return APIResponse{Status: status, Success: true, Message: message, Data: data}
}

// NewFailResponse builds a failure envelope.
func NewFailResponse(status int, message string) APIResponse {
	return APIResponse{Status: status, Success: false, Message: message}
}

// Response messages surfaced to callers.
const (
	MsgInvalidRequest      = "invalid request"
	MsgInternalServerError = "internal server error"
	MsgTokenRegistered     = "token registered"
	MsgTokenCanceled       = "token canceled"
	MsgDuplicatedToken     = "token already registered"
	MsgTokenNotExist       = "token does not exist"
	MsgSendSuccess         = "push sent"
	MsgNoContent           = "no content"
)
