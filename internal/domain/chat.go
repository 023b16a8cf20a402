package domain

// ChatRequest is the inbound body of the chat endpoint.
type ChatRequest struct {
	Message string `json:"message"`
}

// ChatResponse is returned for every accepted chat turn, including the ones
// where the upstream model failed and the reply text explains why.
type ChatResponse struct {
	Response string `json:"response"`
	Status   string `json:"status"`
}

// ErrorResponse is returned for rejected requests.
type ErrorResponse struct {
	Error string `json:"error"`
}

const StatusSuccess = "success"
