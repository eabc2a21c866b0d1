package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"sysmon-api/internal/domain"
	"sysmon-api/internal/util"
)

// EnsureSchema creates the category tables and the cache table when they
// are absent and seeds one zero-valued cache row per category. It relies on
// IF NOT EXISTS and insert-if-absent, so concurrent replicas may run it at
// the same time.
func EnsureSchema(ctx context.Context, g *Gateway) error {
	return g.WithConn(ctx, func(conn *sql.Conn) error {
		for _, stmt := range g.dialect.schema() {
			if _, err := conn.ExecContext(ctx, stmt); err != nil {
				name := tableNameOf(stmt)
				if name != "" && tableExists(ctx, conn, name) {
					g.logger.LogEvent(util.LOG_LEVEL_WARN, "Schema statement failed on existing table", name, "Err -", err)
					continue
				}
				return fmt.Errorf("error creating table: %w", err)
			}
		}

		for _, c := range domain.Categories {
			data, err := json.Marshal(zeroCacheData(c))
			if err != nil {
				return err
			}
			if _, err := conn.ExecContext(ctx, g.dialect.seed, string(c), 0, string(data), 0); err != nil {
				return fmt.Errorf("error seeding cache row %s: %w", c, err)
			}
		}

		g.logger.LogEvent(util.LOG_LEVEL_INFO, "Schema verified for driver", g.dialect.name)
		return nil
	})
}

func zeroCacheData(c domain.Category) any {
	switch c {
	case domain.CategoryCPU:
		return domain.CPUMetric{}
	case domain.CategoryRAM:
		return domain.RAMMetric{}
	default:
		return domain.ProcessMetric{}
	}
}

func tableNameOf(stmt string) string {
	var name string
	if _, err := fmt.Sscanf(stmt, "CREATE TABLE IF NOT EXISTS %s", &name); err != nil {
		return ""
	}
	return name
}

func tableExists(ctx context.Context, conn *sql.Conn, name string) bool {
	rows, err := conn.QueryContext(ctx, "SELECT 1 FROM "+name+" LIMIT 1")
	if err != nil {
		return false
	}
	rows.Close()
	return true
}
