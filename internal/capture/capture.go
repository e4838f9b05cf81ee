// Package capture runs a live EXPLAIN against a PostgreSQL connection and
// hands the resulting JSON straight to internal/parse, rather than folding
// database access into the parsing core itself.
package capture

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/pgplan-project/pgplan/internal/parse"
	"github.com/pgplan-project/pgplan/internal/plan"
	"github.com/pgplan-project/pgplan/internal/telemetry"
)

// Options controls which EXPLAIN modifiers are requested.
type Options struct {
	Analyze bool
	Verbose bool
	Buffers bool
}

// DefaultOptions matches what pgplan needs from an EXPLAIN run to populate
// the full enriched model: actuals, buffer counters, and Extras labels that
// only appear in VERBOSE output (Output, Schema).
var DefaultOptions = Options{Analyze: true, Verbose: true, Buffers: true}

// Run executes "EXPLAIN (...) <sql>" against connStr inside a rolled-back
// transaction (so ANALYZE's real execution never commits side effects),
// and parses the returned JSON plan.
func Run(ctx context.Context, connStr, sql string, opts Options) (*plan.Plan, error) {
	trimmed := strings.TrimSpace(sql)
	if strings.HasPrefix(strings.ToUpper(trimmed), "EXPLAIN") {
		return nil, fmt.Errorf("input should not include EXPLAIN prefix - provide the raw query only")
	}
	if connStr == "" {
		return nil, fmt.Errorf("capture requires a database connection")
	}

	conn, err := pgx.Connect(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	defer conn.Close(ctx)

	tx, err := conn.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	query := explainPrefix(opts) + trimmed

	telemetry.Debugf("capture: running %s", query)

	var jsonStr string
	if err := tx.QueryRow(ctx, query).Scan(&jsonStr); err != nil {
		return nil, fmt.Errorf("executing EXPLAIN: %w", err)
	}

	p, err := parse.ParseSource(jsonStr, "", trimmed)
	if err != nil {
		return nil, fmt.Errorf("parsing captured plan: %w", err)
	}

	return p, nil
}

func explainPrefix(opts Options) string {
	var mods []string
	if opts.Analyze {
		mods = append(mods, "ANALYZE")
	}
	if opts.Verbose {
		mods = append(mods, "VERBOSE")
	}
	if opts.Buffers {
		mods = append(mods, "BUFFERS")
	}
	mods = append(mods, "FORMAT JSON")
	return "EXPLAIN (" + strings.Join(mods, ", ") + ") "
}
