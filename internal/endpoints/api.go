package endpoints

import (
	"encoding/json"
	"net/http"
	"time"

	"sysmon-api/internal/domain"
	"sysmon-api/internal/telemetry"
)

// Options carries what every handler needs besides the store and logger.
type Options struct {
	// API tags every response so replicas behind one ingress can be told apart.
	API       string
	Telemetry *telemetry.Metrics
	Now       func() time.Time
}

func (o Options) clock() func() time.Time {
	if o.Now != nil {
		return o.Now
	}
	return time.Now
}

// APIResponse is the envelope for ingestion results and every error body.
type APIResponse struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message,omitempty"`
	API       string      `json:"api,omitempty"`
	ID        int64       `json:"id,omitempty"`
	Accepted  *int        `json:"accepted_count,omitempty"`
	Value     interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	ErrorCode int         `json:"error_code"`
	Index     *int        `json:"index,omitempty"`
}

// WriteErrorResponse derives the HTTP status from err.
func (res APIResponse) WriteErrorResponse(w http.ResponseWriter, err error) {
	res.WriteErrorResponseWithStatusCode(w, err, GetHTTPStatus(err))
}

func (res APIResponse) WriteErrorResponseWithStatusCode(w http.ResponseWriter, err error, StatusCode int) {
	res.Success = false
	res.Error = err.Error()
	res.ErrorCode = GetErrorCode(err)
	if idx, ok := domain.ItemIndex(err); ok {
		res.Index = &idx
	}

	writeJSON(w, StatusCode, res)
}

// WriteCreatedResponse reports a committed ingestion.
func (res APIResponse) WriteCreatedResponse(w http.ResponseWriter, message string, result domain.IngestResult, data interface{}) {
	res.Success = true
	res.Message = message
	res.ID = result.FirstID
	res.Accepted = &result.Accepted
	res.Value = data
	res.ErrorCode = GetErrorCode(nil)

	writeJSON(w, http.StatusCreated, res)
}

func writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	body, err := json.Marshal(v)
	if err != nil {
		statusCode = http.StatusInternalServerError
		body = []byte(`{"success":false,"error":"response encoding failed","error_code":303001}`)
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(statusCode)
	w.Write(body)
}
