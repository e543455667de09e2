package models

type ErrorResponse struct {
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Code    int               `json:"code"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// ServiceErrorBody is the optional error payload of the search service.
type ServiceErrorBody struct {
	Message string `json:"message"`
}
