package endpoints

import (
	"net/http"
	"time"

	"sysmon-api/internal/domain"
	"sysmon-api/internal/util"
)

type StatsResponse struct {
	API       string `json:"api"`
	Timestamp string `json:"timestamp"`
	domain.Stats
}

type Stats struct {
	Response APIResponse
	logger   *util.Logger
	store    domain.MetricStore
	now      func() time.Time
}

func (s *Stats) Init(store domain.MetricStore, webLogger *util.Logger, opts Options) {
	s.store = store
	s.logger = webLogger
	s.now = opts.clock()
	s.Response.API = opts.API
}

// GetStatsHandler reports row counts per table and the time span covered
// by stored samples.
func (s *Stats) GetStatsHandler(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats(r.Context())
	if err != nil {
		s.logger.LogEvent(util.LOG_LEVEL_ERROR, "Occured while Stats(). Err -", err)
		s.Response.WriteErrorResponse(w, err)
		return
	}

	writeJSON(w, http.StatusOK, StatsResponse{
		API:       s.Response.API,
		Timestamp: s.now().UTC().Format(time.RFC3339),
		Stats:     stats,
	})
}
