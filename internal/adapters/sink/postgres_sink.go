package sink

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/ghalamif/BrewFlow/internal/ports"
	"github.com/ghalamif/BrewFlow/internal/session"
)

const sampleColumns = 10

// maxRowsPerStatement keeps a single INSERT under PostgreSQL's 65535 bind
// parameter limit.
const maxRowsPerStatement = 65535 / sampleColumns

// PostgresSink archives finalized brew sessions, one row per sample. Session ids
// restart with every process, so rows are keyed by a per-process run id too.
type PostgresSink struct {
	db      *sql.DB
	table   string
	runID   uuid.UUID
	maxRows int
}

// Open connects to PostgreSQL (or TimescaleDB) through lib/pq.
func Open(connString string) (*sql.DB, error) {
	db, err := sql.Open("postgres", connString)
	if err != nil {
		return nil, fmt.Errorf("open archive db: %w", err)
	}
	return db, nil
}

func NewPostgresSink(db *sql.DB, table string) *PostgresSink {
	return &PostgresSink{db: db, table: table, runID: uuid.New(), maxRows: maxRowsPerStatement}
}

func (p *PostgresSink) Name() string { return "postgres" }

// RunID identifies this process's rows.
func (p *PostgresSink) RunID() uuid.UUID { return p.runID }

// EnsureSchema creates the archive table if it does not exist.
func (p *PostgresSink) EnsureSchema(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS "+pq.QuoteIdentifier(p.table)+` (
	run_id UUID NOT NULL,
	session_id BIGINT NOT NULL,
	seq BIGINT NOT NULL,
	state TEXT NOT NULL,
	description TEXT NOT NULL,
	weight_grams DOUBLE PRECISION NOT NULL,
	pressure_bars DOUBLE PRECISION NOT NULL,
	duty_cycle_percent DOUBLE PRECISION NOT NULL,
	flow_rate_gps DOUBLE PRECISION NOT NULL,
	brew_temp_c DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (run_id, session_id, seq)
)`)
	return err
}

// WriteSessions inserts every sample of sessions. Batches larger than one
// statement allows are split and written in a single transaction.
func (p *PostgresSink) WriteSessions(ctx context.Context, sessions []*session.BrewSession) error {
	rows := 0
	for _, s := range sessions {
		rows += s.Len()
	}
	if rows == 0 {
		return nil
	}

	args := make([]any, 0, rows*sampleColumns)
	for _, s := range sessions {
		for _, sample := range s.Samples() {
			args = append(args,
				p.runID.String(),
				int64(s.ID()),
				int64(sample.Seq),
				sample.StateName,
				sample.Description,
				sample.WeightGrams,
				sample.PressureBars,
				sample.DutyCyclePercent,
				sample.FlowRateGPS,
				sample.BrewTempC,
			)
		}
	}

	chunk := p.maxRows * sampleColumns
	if len(args) <= chunk {
		_, err := p.db.ExecContext(ctx, p.insertQuery(rows), args...)
		return err
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin archive tx: %w", err)
	}
	for start := 0; start < len(args); start += chunk {
		end := min(start+chunk, len(args))
		if _, err := tx.ExecContext(ctx, p.insertQuery((end-start)/sampleColumns), args[start:end]...); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (p *PostgresSink) insertQuery(rows int) string {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(pq.QuoteIdentifier(p.table))
	b.WriteString(" (run_id, session_id, seq, state, description, weight_grams, pressure_bars, duty_cycle_percent, flow_rate_gps, brew_temp_c) VALUES ")
	for r := 0; r < rows; r++ {
		if r > 0 {
			b.WriteString(",")
		}
		b.WriteString("(")
		for c := 1; c <= sampleColumns; c++ {
			if c > 1 {
				b.WriteString(",")
			}
			fmt.Fprintf(&b, "$%d", r*sampleColumns+c)
		}
		b.WriteString(")")
	}
	b.WriteString(" ON CONFLICT (run_id, session_id, seq) DO NOTHING")
	return b.String()
}

var _ ports.SessionSink = (*PostgresSink)(nil)
