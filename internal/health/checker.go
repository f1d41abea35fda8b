// Package health exposes liveness and readiness probes.
package health

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const probeTimeout = 3 * time.Second

// Checker pings the bot's dependencies.
type Checker struct {
	db  *sql.DB
	rdb *goredis.Client
	log *slog.Logger
}

// NewChecker creates a health checker over the shared connections.
func NewChecker(db *sql.DB, rdb *goredis.Client, log *slog.Logger) *Checker {
	if log == nil {
		log = slog.Default()
	}

	return &Checker{db: db, rdb: rdb, log: log}
}

type report struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// LivenessHandler reports that the process is up.
func (c *Checker) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}

// ReadinessHandler pings Postgres and Redis and reports per-dependency state.
func (c *Checker) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
		defer cancel()

		out := report{Status: "ok", Checks: make(map[string]string)}

		if err := c.db.PingContext(ctx); err != nil {
			c.log.Warn("postgres probe failed", "error", err)
			out.Status = "degraded"
			out.Checks["postgres"] = err.Error()
		} else {
			out.Checks["postgres"] = "ok"
		}

		if err := c.rdb.Ping(ctx).Err(); err != nil {
			c.log.Warn("redis probe failed", "error", err)
			out.Status = "degraded"
			out.Checks["redis"] = err.Error()
		} else {
			out.Checks["redis"] = "ok"
		}

		w.Header().Set("Content-Type", "application/json")
		if out.Status != "ok" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(out)
	}
}
