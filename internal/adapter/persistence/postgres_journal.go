package persistence

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/veracore/veracore/internal/domain"
	"github.com/veracore/veracore/internal/ports"
)

// PostgresJournal stores events in the engine_journal table. One row
// per committed operation; the insert is the unit of durability.
type PostgresJournal struct {
	db *sql.DB
}

// NewPostgresJournal wraps an open database handle.
func NewPostgresJournal(db *sql.DB) *PostgresJournal {
	return &PostgresJournal{db: db}
}

// Append inserts the event and fills in its assigned sequence number.
func (j *PostgresJournal) Append(ctx context.Context, event *ports.Event) error {
	query := `
		INSERT INTO engine_journal (id, kind, payload, actor, correlation_id, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING seq
	`
	err := j.db.QueryRowContext(ctx, query,
		event.ID,
		event.Kind,
		event.Payload,
		string(event.Actor),
		event.CorrelationID,
		event.RecordedAt,
	).Scan(&event.Seq)
	if err != nil {
		return fmt.Errorf("failed to append journal event: %w", err)
	}
	return nil
}

// Replay streams events in sequence order.
func (j *PostgresJournal) Replay(ctx context.Context, fn func(event *ports.Event) error) error {
	query := `
		SELECT seq, id, kind, payload, actor, correlation_id, recorded_at
		FROM engine_journal
		ORDER BY seq ASC
	`
	rows, err := j.db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to read journal: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ev ports.Event
		var actor string
		if err := rows.Scan(&ev.Seq, &ev.ID, &ev.Kind, &ev.Payload, &actor, &ev.CorrelationID, &ev.RecordedAt); err != nil {
			return fmt.Errorf("failed to scan journal event: %w", err)
		}
		ev.Actor = domain.Principal(actor)
		if err := fn(&ev); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate journal: %w", err)
	}
	return nil
}
