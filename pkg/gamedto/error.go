package gamedto

// DomainError is the error body returned to clients. Retryable marks
// transient failures where repeating the same request may succeed.
type DomainError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

func (e DomainError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Code != "" {
		return e.Code
	}
	return "game service error"
}

// ErrorResponse wraps a DomainError on the wire.
type ErrorResponse struct {
	Error DomainError `json:"error"`
}
