package common

import (
	"encoding/json"
	"net/http"
)

// APIResponse is the envelope every JSON endpoint returns
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorInfo  `json:"error,omitempty"`
	Meta    *MetaInfo   `json:"meta,omitempty"`
}

// ErrorInfo carries a machine-readable code alongside the message
type ErrorInfo struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// MetaInfo is the optional metadata block on successful responses
type MetaInfo struct {
	RequestID  string          `json:"request_id,omitempty"`
	Timestamp  string          `json:"timestamp,omitempty"`
	Version    string          `json:"version,omitempty"`
	Pagination *PaginationInfo `json:"pagination,omitempty"`
}

// PaginationInfo describes the page window of a list response
type PaginationInfo struct {
	Page       int  `json:"page"`
	PageSize   int  `json:"page_size"`
	Total      int  `json:"total"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
	HasPrev    bool `json:"has_prev"`
}

// RespondJSON writes data in the response envelope
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	writeEnvelope(w, status, APIResponse{
		Success: status >= 200 && status < 300,
		Data:    data,
	})
}

// RespondError writes an error envelope with a machine-readable code
func RespondError(w http.ResponseWriter, status int, code, message string) {
	writeEnvelope(w, status, APIResponse{
		Success: false,
		Error:   &ErrorInfo{Code: code, Message: message},
	})
}

// RespondWithMeta writes data together with a metadata block
func RespondWithMeta(w http.ResponseWriter, status int, data interface{}, meta *MetaInfo) {
	writeEnvelope(w, status, APIResponse{
		Success: status >= 200 && status < 300,
		Data:    data,
		Meta:    meta,
	})
}

func writeEnvelope(w http.ResponseWriter, status int, response APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response)
}

// ExtractRequestID returns the request ID from the standard headers,
// falling back to the context when no header was sent
func ExtractRequestID(r *http.Request) string {
	for _, header := range []string{"X-Request-ID", "X-Request-Id", "X-Amzn-Trace-Id"} {
		if id := r.Header.Get(header); id != "" {
			return id
		}
	}
	if id, ok := GetRequestID(r.Context()); ok {
		return id
	}
	return ""
}
