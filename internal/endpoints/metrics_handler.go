package endpoints

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"sysmon-api/internal/domain"
	"sysmon-api/internal/util"
)

// HistoryResponse lists stored rows of one category, newest first.
type HistoryResponse struct {
	Category domain.Category `json:"category"`
	Limit    int             `json:"limit"`
	Count    int             `json:"count"`
	Records  []domain.Record `json:"records"`
}

type Metrics struct {
	Response APIResponse
	logger   *util.Logger
	store    domain.MetricStore
}

func (m *Metrics) Init(store domain.MetricStore, webLogger *util.Logger, opts Options) {
	m.store = store
	m.logger = webLogger
	m.Response.API = opts.API
}

func (m *Metrics) snapshot(w http.ResponseWriter, r *http.Request) (domain.Snapshot, bool) {
	latest, err := m.store.Latest(r.Context())
	if err != nil {
		m.logger.LogEvent(util.LOG_LEVEL_ERROR, "Occured while Latest(). Err -", err)
		m.Response.WriteErrorResponse(w, err)
		return domain.Snapshot{}, false
	}
	return domain.Reshape(latest), true
}

// GetLatestHandler returns the newest value of every category. An empty
// store yields zeros, not an error.
func (m *Metrics) GetLatestHandler(w http.ResponseWriter, r *http.Request) {
	snap, ok := m.snapshot(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// GetCompleteHandler returns the latest values in the single-level form
// that ingestion accepts.
func (m *Metrics) GetCompleteHandler(w http.ResponseWriter, r *http.Request) {
	snap, ok := m.snapshot(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, snap.Flat())
}

func (m *Metrics) GetCategoryHandler(w http.ResponseWriter, r *http.Request) {
	category, ok := domain.ParseCategory(mux.Vars(r)["category"])
	if !ok {
		m.logger.LogEvent(util.LOG_LEVEL_WARN, "Unknown category requested -", mux.Vars(r)["category"])
		m.Response.WriteErrorResponse(w, ErrUnknownCategory)
		return
	}

	snap, ok := m.snapshot(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, snap.Category(category))
}

func (m *Metrics) GetHistoryHandler(w http.ResponseWriter, r *http.Request) {
	category, ok := domain.ParseCategory(mux.Vars(r)["category"])
	if !ok {
		m.logger.LogEvent(util.LOG_LEVEL_WARN, "Unknown category requested -", mux.Vars(r)["category"])
		m.Response.WriteErrorResponse(w, ErrUnknownCategory)
		return
	}

	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		m.logger.LogEvent(util.LOG_LEVEL_ERROR, "While getting limit from URL. Err -", err)
		m.Response.WriteErrorResponse(w, ErrInvalidParameters)
		return
	}

	records, err := m.store.History(r.Context(), category, limit)
	if err != nil {
		m.logger.LogEvent(util.LOG_LEVEL_ERROR, "Occured while History(). Err -", err)
		m.Response.WriteErrorResponse(w, err)
		return
	}
	if records == nil {
		records = []domain.Record{}
	}

	writeJSON(w, http.StatusOK, HistoryResponse{
		Category: category,
		Limit:    domain.HistoryLimit(limit),
		Count:    len(records),
		Records:  records,
	})
}

// parseLimit returns 0 for an absent limit so the store applies its default.
func parseLimit(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if limit < 0 {
		return 0, ErrInvalidParameters
	}
	return limit, nil
}
