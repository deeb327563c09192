package api

type (
	// StartRequest is the body of an execution start call
	StartRequest struct {
		RunID string `json:"runId,omitempty"`
	}

	// HealthResponse provides relay health information
	HealthResponse struct {
		Service string `json:"service"`
		Status  string `json:"status"`
		Sockets int    `json:"sockets"`
	}

	// MessageResponse contains a simple message string
	MessageResponse struct {
		Message string `json:"message"`
	}

	// ErrorResponse contains error details for failed requests
	ErrorResponse struct {
		Error  string `json:"error"`
		Status int    `json:"status,omitempty"`
	}
)
