package dto

// Error codes returned in ErrorResponse
const (
	CodeBadRequest     = "BAD_REQUEST_ERROR"
	CodeNotFound       = "NOT_FOUND_ERROR"
	CodeAuthentication = "AUTHENTICATION_ERROR"
	CodeInternal       = "INTERNAL_ERROR"
)

type ErrorBody struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// ErrorResponse is the body of every non-2xx API response
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

func NewErrorResponse(code, description string) ErrorResponse {
	return ErrorResponse{Error: ErrorBody{Code: code, Description: description}}
}
