package http

// ErrorBody is the JSON body of every error response. Detail carries the
// human readable message; Errors the structured entries behind it.
type ErrorBody struct {
	Detail string      `json:"detail"`
	Errors interface{} `json:"errors,omitempty"`
}

// ValidationError represents validation error detail.
type ValidationError struct {
	Code    string                 `json:"code,omitempty" example:"ERR_REQUIRED"`
	Field   string                 `json:"field,omitempty" example:"age"`
	Message string                 `json:"message,omitempty" example:"age is required"`
	Params  map[string]interface{} `json:"params,omitempty"`
}
