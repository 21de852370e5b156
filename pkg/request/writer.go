package request

import "net/http"

// ClientWriter wraps a ResponseWriter and records the status code written
// to it, for use by metric-recording middleware.
type ClientWriter struct {
	http.ResponseWriter
	statusCode int
}

// NewClientWriter creates a new ClientWriter.
func NewClientWriter(w http.ResponseWriter) *ClientWriter {
	return &ClientWriter{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}
}

func (w *ClientWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

// StatusCode returns the status code written to the response.
func (w *ClientWriter) StatusCode() int {
	return w.statusCode
}
