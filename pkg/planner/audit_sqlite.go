package planner

import (
	"context"
	"database/sql"
	stderrors "errors"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
	_ "modernc.org/sqlite"

	"github.com/jllopis/conductor/pkg/errors"
	"github.com/jllopis/conductor/pkg/value"
)

// SQLiteAuditStore persists audit events in SQLite. Step results are stored
// as protobuf-encoded structpb values so number and null kinds survive.
type SQLiteAuditStore struct {
	db *sql.DB
}

// NewSQLiteAuditStore creates a SQLite-backed audit store and ensures schema.
func NewSQLiteAuditStore(db *sql.DB) (*SQLiteAuditStore, error) {
	if db == nil {
		return nil, stderrors.New("db is nil")
	}
	if err := ensurePlanAuditSchema(db); err != nil {
		return nil, err
	}
	return &SQLiteAuditStore{db: db}, nil
}

// OpenSQLiteAuditStore opens the database at path and wraps it.
func OpenSQLiteAuditStore(path string) (*SQLiteAuditStore, *sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, nil, err
	}
	store, err := NewSQLiteAuditStore(db)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return store, db, nil
}

// Record stores a single audit event.
func (s *SQLiteAuditStore) Record(ctx context.Context, event AuditEvent) error {
	result, err := proto.Marshal(event.Result.ToProto())
	if err != nil {
		return errors.New(errors.CodeInternal, "encode audit result", err).WithContext("output_key", event.OutputKey)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO plan_audit_events (
			plan_id, run_id, step_index, tool_name, output_key, status, result, code, error_text, started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		event.PlanID,
		event.RunID,
		event.StepIndex,
		event.ToolName,
		event.OutputKey,
		event.Status,
		result,
		string(event.Code),
		event.Error,
		normalizeAuditTime(event.StartedAt),
		normalizeAuditTime(event.FinishedAt),
	)
	return err
}

// List returns audit events matching the filter.
func (s *SQLiteAuditStore) List(ctx context.Context, filter AuditFilter) ([]AuditEvent, error) {
	query := `
		SELECT plan_id, run_id, step_index, tool_name, output_key, status, result, code, error_text, started_at, finished_at
		FROM plan_audit_events
	`
	var args []any
	where := ""
	addFilter := func(clause string, v any) {
		if where == "" {
			where = " WHERE " + clause
		} else {
			where += " AND " + clause
		}
		args = append(args, v)
	}
	if filter.PlanID != "" {
		addFilter("plan_id = ?", filter.PlanID)
	}
	if filter.RunID != "" {
		addFilter("run_id = ?", filter.RunID)
	}
	if filter.OutputKey != "" {
		addFilter("output_key = ?", filter.OutputKey)
	}
	if filter.Status != "" {
		addFilter("status = ?", filter.Status)
	}
	query += where + " ORDER BY id ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []AuditEvent
	for rows.Next() {
		var (
			event    AuditEvent
			result   []byte
			code     string
			started  sql.NullTime
			finished sql.NullTime
		)
		if err := rows.Scan(
			&event.PlanID,
			&event.RunID,
			&event.StepIndex,
			&event.ToolName,
			&event.OutputKey,
			&event.Status,
			&result,
			&code,
			&event.Error,
			&started,
			&finished,
		); err != nil {
			return nil, err
		}
		if len(result) > 0 {
			var pv structpb.Value
			if err := proto.Unmarshal(result, &pv); err != nil {
				return nil, errors.New(errors.CodeInternal, "decode audit result", err).WithContext("run_id", event.RunID)
			}
			event.Result = value.FromProto(&pv)
		}
		event.Code = errors.Code(code)
		if started.Valid {
			event.StartedAt = started.Time
		}
		if finished.Valid {
			event.FinishedAt = finished.Time
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

func ensurePlanAuditSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS plan_audit_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			plan_id TEXT NOT NULL,
			run_id TEXT NOT NULL,
			step_index INTEGER NOT NULL,
			tool_name TEXT NOT NULL,
			output_key TEXT NOT NULL,
			status TEXT NOT NULL,
			result BLOB,
			code TEXT NOT NULL DEFAULT '',
			error_text TEXT NOT NULL DEFAULT '',
			started_at TIMESTAMP,
			finished_at TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_plan_audit_plan ON plan_audit_events(plan_id);
		CREATE INDEX IF NOT EXISTS idx_plan_audit_run ON plan_audit_events(run_id);
		CREATE INDEX IF NOT EXISTS idx_plan_audit_status ON plan_audit_events(status);
	`)
	return err
}
