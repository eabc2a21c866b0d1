package repository

import (
	"fmt"
	"net"
	"net/url"
	"strconv"

	"github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"

	"sysmon-api/internal/config"
)

const cacheTable = "metrics_cache"

// table describes one category table. Columns exclude the id column, which
// the dialect supplies.
type table struct {
	name    string
	columns []string
}

var categoryTables = []table{
	{
		name: "cpu_metrics",
		columns: []string{
			"timestamp BIGINT NOT NULL",
			"porcentaje_uso DOUBLE NOT NULL DEFAULT 0 CHECK (porcentaje_uso >= 0 AND porcentaje_uso <= 100)",
		},
	},
	{
		name: "ram_metrics",
		columns: []string{
			"timestamp BIGINT NOT NULL",
			"total BIGINT NOT NULL DEFAULT 0 CHECK (total >= 0)",
			"libre BIGINT NOT NULL DEFAULT 0 CHECK (libre >= 0)",
			"uso BIGINT NOT NULL DEFAULT 0 CHECK (uso >= 0)",
			"porcentaje_uso DOUBLE NOT NULL DEFAULT 0 CHECK (porcentaje_uso >= 0 AND porcentaje_uso <= 100)",
		},
	},
	{
		name: "procesos_metrics",
		columns: []string{
			"timestamp BIGINT NOT NULL",
			"procesos_corriendo BIGINT NOT NULL DEFAULT 0 CHECK (procesos_corriendo >= 0)",
			"total_procesos BIGINT NOT NULL DEFAULT 0 CHECK (total_procesos >= 0)",
			"procesos_durmiendo BIGINT NOT NULL DEFAULT 0 CHECK (procesos_durmiendo >= 0)",
			"procesos_zombie BIGINT NOT NULL DEFAULT 0 CHECK (procesos_zombie >= 0)",
			"procesos_parados BIGINT NOT NULL DEFAULT 0 CHECK (procesos_parados >= 0)",
		},
	},
}

// dialect holds the SQL that differs between MySQL and SQLite.
type dialect struct {
	name       string
	idColumn   string
	cacheDDL   string
	upsert     string
	seed       string
	indexInDDL bool
}

var dialects = map[string]dialect{
	"mysql": {
		name:       "mysql",
		idColumn:   "id BIGINT AUTO_INCREMENT PRIMARY KEY",
		indexInDDL: true,
		cacheDDL: `CREATE TABLE IF NOT EXISTS metrics_cache (
			id VARCHAR(32) NOT NULL PRIMARY KEY,
			timestamp BIGINT NOT NULL DEFAULT 0,
			data TEXT NOT NULL,
			updated_at BIGINT NOT NULL DEFAULT 0
		)`,
		// Assignments run left to right, so data is decided against the
		// stored timestamp before it is raised.
		upsert: `INSERT INTO metrics_cache (id, timestamp, data, updated_at) VALUES (?, ?, ?, ?)
			ON DUPLICATE KEY UPDATE
				data = IF(VALUES(timestamp) >= timestamp, VALUES(data), data),
				timestamp = GREATEST(timestamp, VALUES(timestamp)),
				updated_at = VALUES(updated_at)`,
		seed: `INSERT IGNORE INTO metrics_cache (id, timestamp, data, updated_at) VALUES (?, ?, ?, ?)`,
	},
	"sqlite3": {
		name:     "sqlite3",
		idColumn: "id INTEGER PRIMARY KEY AUTOINCREMENT",
		cacheDDL: `CREATE TABLE IF NOT EXISTS metrics_cache (
			id TEXT NOT NULL PRIMARY KEY,
			timestamp INTEGER NOT NULL DEFAULT 0,
			data TEXT NOT NULL,
			updated_at INTEGER NOT NULL DEFAULT 0
		)`,
		upsert: `INSERT INTO metrics_cache (id, timestamp, data, updated_at) VALUES (?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				data = CASE WHEN excluded.timestamp >= metrics_cache.timestamp THEN excluded.data ELSE metrics_cache.data END,
				timestamp = MAX(metrics_cache.timestamp, excluded.timestamp),
				updated_at = excluded.updated_at`,
		seed: `INSERT OR IGNORE INTO metrics_cache (id, timestamp, data, updated_at) VALUES (?, ?, ?, ?)`,
	},
}

func dialectFor(driver string) (dialect, error) {
	d, ok := dialects[driver]
	if !ok {
		return dialect{}, fmt.Errorf("unsupported database driver %q", driver)
	}
	return d, nil
}

// schema returns the DDL statements for every table, in creation order.
func (d dialect) schema() []string {
	var stmts []string
	for _, t := range categoryTables {
		ddl := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s", t.name, d.idColumn)
		for _, col := range t.columns {
			ddl += ",\n\t" + col
		}
		if d.indexInDDL {
			ddl += fmt.Sprintf(",\n\tINDEX idx_%s_timestamp (timestamp)", t.name)
		}
		ddl += "\n)"
		stmts = append(stmts, ddl)

		if !d.indexInDDL {
			stmts = append(stmts, fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_timestamp ON %s (timestamp)", t.name, t.name))
		}
	}
	return append(stmts, d.cacheDDL)
}

// dataSourceName builds the driver DSN from configuration.
func dataSourceName(cfg config.Database) (string, error) {
	switch cfg.Driver {
	case "mysql":
		mc := mysql.NewConfig()
		mc.User = cfg.User
		mc.Passwd = cfg.Password
		mc.Net = "tcp"
		mc.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
		mc.DBName = cfg.Name
		mc.Timeout = cfg.DialTimeout
		return mc.FormatDSN(), nil
	case "sqlite3":
		q := url.Values{}
		q.Set("_busy_timeout", "5000")
		q.Set("_journal_mode", "WAL")
		q.Set("_txlock", "immediate")
		return "file:" + cfg.Path + "?" + q.Encode(), nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}
