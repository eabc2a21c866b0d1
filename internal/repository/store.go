package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"sysmon-api/internal/domain"
	"sysmon-api/internal/util"
)

// SQLStore implements domain.MetricStore on top of a Gateway.
type SQLStore struct {
	gw     *Gateway
	logger *util.Logger
	now    func() time.Time
}

func NewSQLStore(gw *Gateway, logger *util.Logger) *SQLStore {
	return &SQLStore{gw: gw, logger: logger, now: time.Now}
}

// SetClock overrides the arrival-time source used for cache rows.
func (s *SQLStore) SetClock(now func() time.Time) {
	s.now = now
}

func (s *SQLStore) Init(ctx context.Context) error {
	if err := EnsureSchema(ctx, s.gw); err != nil {
		return err
	}
	s.logger.LogEvent(util.LOG_LEVEL_INFO, "SQLStore initialized.")
	return nil
}

// Ingest writes every sample and refreshes the three cache rows in a single
// transaction. A failure at any item rolls back the whole batch.
func (s *SQLStore) Ingest(ctx context.Context, samples []domain.MetricSample) (domain.IngestResult, error) {
	if len(samples) == 0 {
		return domain.IngestResult{}, &domain.ValidationError{Index: -1, Reason: "no metric items in payload"}
	}

	arrival := s.now()
	var firstID int64

	err := s.gw.WithTx(ctx, func(tx *sql.Tx) error {
		for i, sample := range samples {
			id, err := insertSample(ctx, tx, sample)
			if err != nil {
				return &domain.PersistenceError{Op: "insert", Index: i, Err: err}
			}
			if i == 0 {
				firstID = id
			}
			if err := s.upsertCache(ctx, tx, sample, arrival); err != nil {
				return &domain.PersistenceError{Op: "cache upsert", Index: i, Err: err}
			}
		}
		return nil
	})
	if err != nil {
		return domain.IngestResult{}, classify("ingest", err)
	}

	return domain.IngestResult{
		Accepted: len(samples),
		FirstID:  firstID,
		Last:     samples[len(samples)-1],
	}, nil
}

// insertSample writes one row per category table and returns the cpu row id.
func insertSample(ctx context.Context, tx *sql.Tx, m domain.MetricSample) (int64, error) {
	res, err := tx.ExecContext(ctx,
		"INSERT INTO cpu_metrics (timestamp, porcentaje_uso) VALUES (?, ?)",
		m.Timestamp, m.CPU.PorcentajeUso)
	if err != nil {
		return 0, fmt.Errorf("error inserting cpu metric: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("error reading inserted id: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO ram_metrics (timestamp, total, libre, uso, porcentaje_uso) VALUES (?, ?, ?, ?, ?)",
		m.Timestamp, m.RAM.Total, m.RAM.Libre, m.RAM.Uso, m.RAM.PorcentajeUso)
	if err != nil {
		return 0, fmt.Errorf("error inserting ram metric: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO procesos_metrics
			(timestamp, procesos_corriendo, total_procesos, procesos_durmiendo, procesos_zombie, procesos_parados)
			VALUES (?, ?, ?, ?, ?, ?)`,
		m.Timestamp, m.Processes.Corriendo, m.Processes.Total, m.Processes.Durmiendo, m.Processes.Zombie, m.Processes.Parados)
	if err != nil {
		return 0, fmt.Errorf("error inserting procesos metric: %w", err)
	}
	return id, nil
}

func (s *SQLStore) upsertCache(ctx context.Context, tx *sql.Tx, m domain.MetricSample, arrival time.Time) error {
	entries := []struct {
		category domain.Category
		data     any
	}{
		{domain.CategoryCPU, m.CPU},
		{domain.CategoryRAM, m.RAM},
		{domain.CategoryProcesses, m.Processes},
	}
	for _, e := range entries {
		data, err := json.Marshal(e.data)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, s.gw.dialect.upsert,
			string(e.category), arrival.Unix(), string(data), arrival.UnixMilli()); err != nil {
			return fmt.Errorf("error upserting %s cache: %w", e.category, err)
		}
	}
	return nil
}

// CacheEntries returns the raw cache rows keyed by category.
func (s *SQLStore) CacheEntries(ctx context.Context) (map[domain.Category]domain.CacheEntry, error) {
	entries := make(map[domain.Category]domain.CacheEntry, len(domain.Categories))

	err := s.gw.WithConn(ctx, func(conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx, "SELECT id, timestamp, data, updated_at FROM "+cacheTable)
		if err != nil {
			return fmt.Errorf("error querying cache: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var (
				id   string
				data string
				e    domain.CacheEntry
			)
			if err := rows.Scan(&id, &e.Timestamp, &data, &e.UpdatedAt); err != nil {
				return fmt.Errorf("error scanning cache row: %w", err)
			}
			c, ok := domain.ParseCategory(id)
			if !ok {
				continue
			}
			e.Category = c
			e.Data = []byte(data)
			entries[c] = e
		}
		return rows.Err()
	})
	if err != nil {
		return nil, classify("read cache", err)
	}
	return entries, nil
}

// Latest reads the cache rows and falls back to the newest table row for a
// category whose cache row is missing or still the zero seed. An empty
// store yields zero values, not an error.
func (s *SQLStore) Latest(ctx context.Context) (domain.LatestValues, error) {
	var latest domain.LatestValues

	entries, err := s.CacheEntries(ctx)
	if err != nil {
		return latest, err
	}

	decode := func(c domain.Category, dst any, ts *int64) bool {
		e, ok := entries[c]
		if !ok || e.Timestamp == 0 {
			return false
		}
		if err := json.Unmarshal(e.Data, dst); err != nil {
			s.logger.LogEvent(util.LOG_LEVEL_WARN, "Discarding unreadable cache row", c, "Err -", err)
			return false
		}
		*ts = e.Timestamp
		return true
	}

	var missing []domain.Category
	if !decode(domain.CategoryCPU, &latest.CPU, &latest.CPUTimestamp) {
		missing = append(missing, domain.CategoryCPU)
	}
	if !decode(domain.CategoryRAM, &latest.RAM, &latest.RAMTimestamp) {
		missing = append(missing, domain.CategoryRAM)
	}
	if !decode(domain.CategoryProcesses, &latest.Processes, &latest.ProcessesTimestamp) {
		missing = append(missing, domain.CategoryProcesses)
	}

	for _, c := range missing {
		records, err := s.History(ctx, c, 1)
		if err != nil {
			return domain.LatestValues{}, err
		}
		if len(records) == 0 {
			continue
		}
		r := records[0]
		switch c {
		case domain.CategoryCPU:
			latest.CPU, latest.CPUTimestamp = *r.CPU, r.Timestamp
		case domain.CategoryRAM:
			latest.RAM, latest.RAMTimestamp = *r.RAM, r.Timestamp
		case domain.CategoryProcesses:
			latest.Processes, latest.ProcessesTimestamp = *r.Processes, r.Timestamp
		}
	}
	return latest, nil
}

// History returns up to limit rows of one category, newest write first.
func (s *SQLStore) History(ctx context.Context, category domain.Category, limit int) ([]domain.Record, error) {
	limit = domain.HistoryLimit(limit)

	var query string
	switch category {
	case domain.CategoryCPU:
		query = "SELECT id, timestamp, porcentaje_uso FROM cpu_metrics ORDER BY id DESC LIMIT ?"
	case domain.CategoryRAM:
		query = "SELECT id, timestamp, total, libre, uso, porcentaje_uso FROM ram_metrics ORDER BY id DESC LIMIT ?"
	case domain.CategoryProcesses:
		query = `SELECT id, timestamp, procesos_corriendo, total_procesos, procesos_durmiendo, procesos_zombie, procesos_parados
			FROM procesos_metrics ORDER BY id DESC LIMIT ?`
	default:
		return nil, &domain.ValidationError{Index: -1, Field: "category", Reason: fmt.Sprintf("unknown category %q", category)}
	}

	records := []domain.Record{}
	err := s.gw.WithConn(ctx, func(conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx, query, limit)
		if err != nil {
			return fmt.Errorf("error querying database: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var r domain.Record
			switch category {
			case domain.CategoryCPU:
				r.CPU = &domain.CPUMetric{}
				err = rows.Scan(&r.ID, &r.Timestamp, &r.CPU.PorcentajeUso)
			case domain.CategoryRAM:
				r.RAM = &domain.RAMMetric{}
				err = rows.Scan(&r.ID, &r.Timestamp, &r.RAM.Total, &r.RAM.Libre, &r.RAM.Uso, &r.RAM.PorcentajeUso)
			default:
				p := &domain.ProcessMetric{}
				r.Processes = p
				err = rows.Scan(&r.ID, &r.Timestamp, &p.Corriendo, &p.Total, &p.Durmiendo, &p.Zombie, &p.Parados)
			}
			if err != nil {
				return fmt.Errorf("error scanning row: %w", err)
			}
			records = append(records, r)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("error during rows iteration: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, classify("history", err)
	}
	return records, nil
}

// Stats counts rows per category table concurrently and reports the
// timestamp range of cpu_metrics.
func (s *SQLStore) Stats(ctx context.Context) (domain.Stats, error) {
	counts := make([]int64, len(categoryTables))
	var dateRange domain.DateRange

	g, gctx := errgroup.WithContext(ctx)
	for i, t := range categoryTables {
		g.Go(func() error {
			return s.gw.WithConn(gctx, func(conn *sql.Conn) error {
				return conn.QueryRowContext(gctx, "SELECT COUNT(*) FROM "+t.name).Scan(&counts[i])
			})
		})
	}
	g.Go(func() error {
		return s.gw.WithConn(gctx, func(conn *sql.Conn) error {
			var oldest, newest sql.NullInt64
			err := conn.QueryRowContext(gctx, "SELECT MIN(timestamp), MAX(timestamp) FROM cpu_metrics").Scan(&oldest, &newest)
			if err != nil {
				return err
			}
			dateRange = domain.DateRange{Oldest: oldest.Int64, Newest: newest.Int64}
			return nil
		})
	})
	if err := g.Wait(); err != nil {
		return domain.Stats{}, classify("stats", err)
	}

	stats := domain.Stats{Tables: make(map[string]int64, len(categoryTables)), DateRange: dateRange}
	for i, t := range categoryTables {
		stats.Tables[t.name] = counts[i]
		stats.Total += counts[i]
	}
	return stats, nil
}

func (s *SQLStore) Ping(ctx context.Context) error {
	return s.gw.Ping(ctx)
}

func (s *SQLStore) Close() error {
	return s.gw.Close()
}

// classify keeps typed domain errors and context errors intact and wraps
// anything else as a PersistenceError.
func classify(op string, err error) error {
	var (
		verr *domain.ValidationError
		cerr *domain.ConnectionError
		perr *domain.PersistenceError
	)
	switch {
	case errors.As(err, &verr), errors.As(err, &cerr), errors.As(err, &perr):
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w", op, err)
	default:
		return &domain.PersistenceError{Op: op, Index: -1, Err: err}
	}
}
