package shared

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DecisionAction enumerates decision trail actions.
type DecisionAction string

const (
	// DecisionSubmit marks a request submission.
	DecisionSubmit DecisionAction = "SUBMIT"
	// DecisionApprove marks a manager approval.
	DecisionApprove DecisionAction = "APPROVE"
	// DecisionReject marks a manager rejection.
	DecisionReject DecisionAction = "REJECT"
	// DecisionNotify marks the HR notification hand-off.
	DecisionNotify DecisionAction = "NOTIFY"
)

// DecisionEntry represents a single decision trail record.
type DecisionEntry struct {
	ID      int64
	RefID   uuid.UUID
	ActorID uuid.UUID
	Action  DecisionAction
	Note    string
	At      time.Time
}

// DecisionRecorder persists the decision trail for leave requests.
type DecisionRecorder struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewDecisionRecorder constructs DecisionRecorder.
func NewDecisionRecorder(pool *pgxpool.Pool, logger *slog.Logger) *DecisionRecorder {
	return &DecisionRecorder{pool: pool, logger: logger}
}

// Record writes a decision entry to the database.
func (r *DecisionRecorder) Record(ctx context.Context, entry DecisionEntry) error {
	if r == nil {
		return errors.New("decision recorder not initialised")
	}
	if entry.RefID == uuid.Nil {
		return errors.New("decision ref id required")
	}
	if entry.ActorID == uuid.Nil {
		return errors.New("decision actor required")
	}
	if entry.Action == "" {
		return errors.New("decision action required")
	}
	_, err := r.pool.Exec(ctx, `INSERT INTO decisoes_log (ref_id, actor_id, action, note, at)
VALUES ($1, $2, $3, $4, COALESCE(NULLIF($5, '0001-01-01 00:00:00+00'::timestamptz), NOW()))`,
		entry.RefID, entry.ActorID, string(entry.Action), entry.Note, entry.At)
	if err != nil {
		r.logger.Error("record decision", slog.Any("error", err))
		return err
	}
	return nil
}

// List returns the decision trail for a request, oldest first.
func (r *DecisionRecorder) List(ctx context.Context, ref uuid.UUID) ([]DecisionEntry, error) {
	if r == nil {
		return nil, errors.New("decision recorder not initialised")
	}
	rows, err := r.pool.Query(ctx, `SELECT id, ref_id, actor_id, action, note, at
FROM decisoes_log WHERE ref_id=$1 ORDER BY at ASC`, ref)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []DecisionEntry
	for rows.Next() {
		var e DecisionEntry
		var action string
		if err := rows.Scan(&e.ID, &e.RefID, &e.ActorID, &action, &e.Note, &e.At); err != nil {
			return nil, err
		}
		e.Action = DecisionAction(action)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// LastAction returns the most recent action for a request.
func (r *DecisionRecorder) LastAction(ctx context.Context, ref uuid.UUID) (DecisionAction, error) {
	if r == nil {
		return "", errors.New("decision recorder not initialised")
	}
	var action string
	err := r.pool.QueryRow(ctx, `SELECT action FROM decisoes_log WHERE ref_id=$1 ORDER BY at DESC LIMIT 1`, ref).Scan(&action)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	return DecisionAction(action), nil
}
