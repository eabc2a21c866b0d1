package domain

import "context"

// Category names a group of related fields that are cached and queried together.
type Category string

const (
	CategoryCPU       Category = "cpu"
	CategoryRAM       Category = "ram"
	CategoryProcesses Category = "procesos"
)

// Categories lists every cache key in write order.
var Categories = []Category{CategoryCPU, CategoryRAM, CategoryProcesses}

func ParseCategory(s string) (Category, bool) {
	for _, c := range Categories {
		if string(c) == s {
			return c, true
		}
	}
	return "", false
}

// CPUMetric is the CPU portion of a sample.
type CPUMetric struct {
	PorcentajeUso float64 `json:"porcentaje_uso"`
}

// RAMMetric values are kept in KB everywhere below the HTTP boundary.
type RAMMetric struct {
	Total         int64   `json:"total"`
	Libre         int64   `json:"libre"`
	Uso           int64   `json:"uso"`
	PorcentajeUso float64 `json:"porcentaje_uso"`
}

type ProcessMetric struct {
	Corriendo int64 `json:"procesos_corriendo"`
	Total     int64 `json:"total_procesos"`
	Durmiendo int64 `json:"procesos_durmiendo"`
	Zombie    int64 `json:"procesos_zombie"`
	Parados   int64 `json:"procesos_parados"`
}

// MetricSample is one ingested measurement. Timestamp is Unix seconds as
// declared by the sender (or arrival time when the sender omitted it).
type MetricSample struct {
	Timestamp int64         `json:"timestamp"`
	CPU       CPUMetric     `json:"cpu"`
	RAM       RAMMetric     `json:"ram"`
	Processes ProcessMetric `json:"procesos"`
}

// Validate enforces the non-negative and percentage bounds on a sample.
func (s MetricSample) Validate() error {
	checks := []struct {
		field string
		bad   bool
	}{
		{"porcentaje_cpu_uso", s.CPU.PorcentajeUso < 0 || s.CPU.PorcentajeUso > 100},
		{"total_ram", s.RAM.Total < 0},
		{"ram_libre", s.RAM.Libre < 0},
		{"uso_ram", s.RAM.Uso < 0},
		{"porcentaje_ram", s.RAM.PorcentajeUso < 0 || s.RAM.PorcentajeUso > 100},
		{"procesos_corriendo", s.Processes.Corriendo < 0},
		{"total_procesos", s.Processes.Total < 0},
		{"procesos_durmiendo", s.Processes.Durmiendo < 0},
		{"procesos_zombie", s.Processes.Zombie < 0},
		{"procesos_parados", s.Processes.Parados < 0},
		{"hora", s.Timestamp < 0},
	}
	for _, c := range checks {
		if c.bad {
			return &ValidationError{Index: -1, Field: c.field, Reason: "value out of range"}
		}
	}
	return nil
}

// Record is one stored row of a single category, as returned by history queries.
type Record struct {
	ID        int64          `json:"id"`
	Timestamp int64          `json:"timestamp"`
	CPU       *CPUMetric     `json:"cpu,omitempty"`
	RAM       *RAMMetric     `json:"ram,omitempty"`
	Processes *ProcessMetric `json:"procesos,omitempty"`
}

// CacheEntry is the denormalized latest value of one category.
type CacheEntry struct {
	Category  Category `json:"id"`
	Timestamp int64    `json:"timestamp"`
	Data      []byte   `json:"data"`
	UpdatedAt int64    `json:"updated_at"`
}

// LatestValues holds the newest stored values per category, in storage units.
type LatestValues struct {
	CPU                CPUMetric
	CPUTimestamp       int64
	RAM                RAMMetric
	RAMTimestamp       int64
	Processes          ProcessMetric
	ProcessesTimestamp int64
}

type IngestResult struct {
	Accepted int          `json:"accepted_count"`
	FirstID  int64        `json:"id"`
	Last     MetricSample `json:"-"`
}

type DateRange struct {
	Oldest int64 `json:"oldest"`
	Newest int64 `json:"newest"`
}

type Stats struct {
	Tables    map[string]int64 `json:"database_stats"`
	Total     int64            `json:"total_records"`
	DateRange DateRange        `json:"date_range"`
}

const (
	DefaultHistoryLimit = 10
	MaxHistoryLimit     = 100
)

// HistoryLimit applies the default to a non-positive limit and caps the rest.
func HistoryLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultHistoryLimit
	case limit > MaxHistoryLimit:
		return MaxHistoryLimit
	default:
		return limit
	}
}

// MetricStore is the persistence contract the HTTP layer depends on.
type MetricStore interface {
	Init(ctx context.Context) error
	Ingest(ctx context.Context, samples []MetricSample) (IngestResult, error)
	Latest(ctx context.Context) (LatestValues, error)
	History(ctx context.Context, category Category, limit int) ([]Record, error)
	Stats(ctx context.Context) (Stats, error)
	Ping(ctx context.Context) error
	Close() error
}
