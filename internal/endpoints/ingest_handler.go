package endpoints

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"sysmon-api/internal/domain"
	"sysmon-api/internal/telemetry"
	"sysmon-api/internal/util"
)

type Ingest struct {
	Response APIResponse
	logger   *util.Logger
	store    domain.MetricStore
	metrics  *telemetry.Metrics
	now      func() time.Time
}

func (h *Ingest) Init(store domain.MetricStore, webLogger *util.Logger, opts Options) {
	h.store = store
	h.logger = webLogger
	h.metrics = opts.Telemetry
	h.now = opts.clock()
	h.Response.API = opts.API
}

// PostDataHandler accepts one metric object or an array of them and stores
// the whole batch atomically.
func (h *Ingest) PostDataHandler(w http.ResponseWriter, r *http.Request) {

	if r.Method != http.MethodPost {
		h.logger.LogEvent(util.LOG_LEVEL_ERROR, "Method Not Allowed. Only POST requests are supported", r.Method)
		h.Response.WriteErrorResponse(w, ErrMethodNotAllowed)
		return
	}

	payloads, err := DecodePayload(r.Body)
	if err != nil {
		h.reject(w, "Invalid ingestion payload. Err -", err)
		return
	}

	samples, err := ParseSamples(payloads, h.now())
	if err != nil {
		h.reject(w, "Metric item failed validation. Err -", err)
		return
	}

	result, err := h.store.Ingest(r.Context(), samples)
	if err != nil {
		h.reject(w, "Occured while Ingest(). Err -", err)
		return
	}

	h.metrics.ObserveIngest(result.Accepted)
	h.logger.LogFields(util.LOG_LEVEL_DEBUG, "metrics stored",
		zap.Int("accepted", result.Accepted),
		zap.Int64("first_id", result.FirstID),
	)

	message := "Metric data stored"
	if result.Accepted > 1 {
		message = fmt.Sprintf("%d metric items stored", result.Accepted)
	}
	h.Response.WriteCreatedResponse(w, message, result, domain.ReshapeSample(result.Last).Flat())
}

func (h *Ingest) reject(w http.ResponseWriter, msg string, err error) {
	level := util.LOG_LEVEL_ERROR
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		level = util.LOG_LEVEL_WARN
	}
	h.logger.LogEvent(level, msg, err)
	h.metrics.ObserveIngestFailure(errorKind(err))
	h.Response.WriteErrorResponse(w, err)
}
