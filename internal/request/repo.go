package request

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/descanso-app/descanso/internal/shared"
)

// Repository defines the persistence surface of the store adapter.
type Repository interface {
	Create(ctx context.Context, req Request) (Request, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status, actorID uuid.UUID, at time.Time) (Request, error)
	GetByID(ctx context.Context, id uuid.UUID) (Request, error)
	ListByEmployee(ctx context.Context, employeeID uuid.UUID) ([]Request, error)
	ListAll(ctx context.Context) ([]Request, error)
	ListAllPage(ctx context.Context, limit, offset int) ([]Request, error)
	CountAll(ctx context.Context) (int, error)
	ListApprovedBefore(ctx context.Context, cutoff time.Time) ([]Request, error)
}

// Publisher emits a change feed event after a successful write.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// PGRepository implements Repository against the solicitacoes table,
// translating between the entity model and the store's wire naming.
type PGRepository struct {
	pool      *pgxpool.Pool
	publisher Publisher
	logger    *slog.Logger
}

// NewRepository constructs a PostgreSQL repository. The publisher may be nil
// when no change feed is attached (batch tooling, tests).
func NewRepository(pool *pgxpool.Pool, publisher Publisher, logger *slog.Logger) *PGRepository {
	return &PGRepository{pool: pool, publisher: publisher, logger: logger}
}

const selectColumns = `s.id, s.user_id, p.name, s.start_date, s.end_date, s.days,
s.tipo, s.fracao, s.motivo, s.status, s.created_at, s.approved_at, s.approved_by`

// Create inserts a new pending request. The store assigns id and created_at.
func (r *PGRepository) Create(ctx context.Context, req Request) (Request, error) {
	var fracao *string
	if req.Kind == KindVacation {
		f := string(req.FractionType)
		fracao = &f
	}
	var motivo *string
	if req.Notes != "" {
		motivo = &req.Notes
	}
	tipo, err := kindToWire(req.Kind)
	if err != nil {
		return Request{}, err
	}
	row := r.pool.QueryRow(ctx, `INSERT INTO solicitacoes (user_id, start_date, end_date, days, tipo, fracao, motivo, status)
VALUES ($1, $2, $3, $4, $5, $6, $7, 'pendente')
RETURNING id, created_at`,
		req.EmployeeID, req.StartDate, req.EndDate, req.Days, tipo, fracao, motivo)
	if err := row.Scan(&req.ID, &req.RequestDate); err != nil {
		if pgErr, ok := err.(*pgconn.PgError); ok && pgErr.ConstraintName != "" {
			return Request{}, fmt.Errorf("request: create: constraint %s: %w", pgErr.ConstraintName, shared.ErrValidation)
		}
		return Request{}, fmt.Errorf("request: create: %w", err)
	}
	req.Status = StatusPending
	req.ApprovalDate = nil
	req.ManagerID = nil
	r.publish(ctx, EventInsert, req)
	return req, nil
}

// UpdateStatus performs a lifecycle transition as a single conditional write:
// the row is updated only while its stored status still equals from. The
// decision stamps are written with COALESCE so they are set exactly once,
// when the status first leaves pending.
func (r *PGRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status, actorID uuid.UUID, at time.Time) (Request, error) {
	if !CanTransition(from, to) {
		return Request{}, fmt.Errorf("%w: transition %s→%s", shared.ErrValidation, from, to)
	}
	fromWire, err := statusToWire(from)
	if err != nil {
		return Request{}, err
	}
	toWireStatus, err := statusToWire(to)
	if err != nil {
		return Request{}, err
	}
	var approvedAt *time.Time
	var approvedBy *uuid.UUID
	if from == StatusPending {
		stamp := at.UTC()
		approvedAt = &stamp
		approvedBy = &actorID
	}
	row := r.pool.QueryRow(ctx, `UPDATE solicitacoes s
SET status = $1,
    approved_at = COALESCE(s.approved_at, $2),
    approved_by = COALESCE(s.approved_by, $3)
FROM profiles p
WHERE s.id = $4 AND s.status = $5 AND p.id = s.user_id
RETURNING `+selectColumns,
		toWireStatus, approvedAt, approvedBy, id, fromWire)
	req, err := scanRequest(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Request{}, r.classifyMiss(ctx, id)
		}
		return Request{}, fmt.Errorf("request: update status: %w", err)
	}
	r.publish(ctx, EventUpdate, req)
	return req, nil
}

// classifyMiss distinguishes a vanished record from a lost optimistic race.
func (r *PGRepository) classifyMiss(ctx context.Context, id uuid.UUID) error {
	var status string
	err := r.pool.QueryRow(ctx, `SELECT status FROM solicitacoes WHERE id = $1`, id).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("request %s: %w", id, shared.ErrNotFound)
		}
		return fmt.Errorf("request: classify update miss: %w", err)
	}
	return fmt.Errorf("request %s is %s: %w", id, status, shared.ErrStaleState)
}

// GetByID fetches a single request.
func (r *PGRepository) GetByID(ctx context.Context, id uuid.UUID) (Request, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+selectColumns+`
FROM solicitacoes s JOIN profiles p ON p.id = s.user_id
WHERE s.id = $1`, id)
	req, err := scanRequest(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Request{}, fmt.Errorf("request %s: %w", id, shared.ErrNotFound)
		}
		return Request{}, fmt.Errorf("request: get: %w", err)
	}
	return req, nil
}

// ListByEmployee returns the employee's requests, most recent first.
func (r *PGRepository) ListByEmployee(ctx context.Context, employeeID uuid.UUID) ([]Request, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+selectColumns+`
FROM solicitacoes s JOIN profiles p ON p.id = s.user_id
WHERE s.user_id = $1
ORDER BY s.created_at DESC`, employeeID)
	if err != nil {
		return nil, fmt.Errorf("request: list by employee: %w", err)
	}
	return collectRequests(rows)
}

// ListAll returns every request, most recent first. Visibility is enforced
// by callers: the engine only issues this load for manager-scoped viewers.
func (r *PGRepository) ListAll(ctx context.Context) ([]Request, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+selectColumns+`
FROM solicitacoes s JOIN profiles p ON p.id = s.user_id
ORDER BY s.created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("request: list all: %w", err)
	}
	return collectRequests(rows)
}

// ListAllPage returns one page of the aggregate listing.
func (r *PGRepository) ListAllPage(ctx context.Context, limit, offset int) ([]Request, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+selectColumns+`
FROM solicitacoes s JOIN profiles p ON p.id = s.user_id
ORDER BY s.created_at DESC
LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("request: list page: %w", err)
	}
	return collectRequests(rows)
}

// ListApprovedBefore returns approved requests whose approval happened at or
// before cutoff. The HR hand-off worker drains this set.
func (r *PGRepository) ListApprovedBefore(ctx context.Context, cutoff time.Time) ([]Request, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+selectColumns+`
FROM solicitacoes s JOIN profiles p ON p.id = s.user_id
WHERE s.status = 'aprovado' AND s.approved_at <= $1
ORDER BY s.approved_at ASC`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("request: list approved before: %w", err)
	}
	return collectRequests(rows)
}

// CountAll returns the total number of requests.
func (r *PGRepository) CountAll(ctx context.Context) (int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM solicitacoes`).Scan(&total); err != nil {
		return 0, fmt.Errorf("request: count: %w", err)
	}
	return total, nil
}

func (r *PGRepository) publish(ctx context.Context, evType EventType, req Request) {
	if r.publisher == nil {
		return
	}
	if err := r.publisher.Publish(ctx, Event{Type: evType, Record: toWire(req)}); err != nil {
		r.logger.Warn("publish change event", slog.String("request_id", req.ID.String()), slog.Any("error", err))
	}
}

func scanRequest(row pgx.Row) (Request, error) {
	var (
		req        Request
		tipo       string
		fracao     *string
		motivo     *string
		wireStatus string
	)
	err := row.Scan(&req.ID, &req.EmployeeID, &req.EmployeeName, &req.StartDate, &req.EndDate, &req.Days,
		&tipo, &fracao, &motivo, &wireStatus, &req.RequestDate, &req.ApprovalDate, &req.ManagerID)
	if err != nil {
		return Request{}, err
	}
	req.Kind, err = kindFromWire(tipo)
	if err != nil {
		return Request{}, err
	}
	req.Status, err = statusFromWire(wireStatus)
	if err != nil {
		return Request{}, err
	}
	if fracao != nil {
		req.FractionType = FractionType(*fracao)
	}
	if motivo != nil {
		req.Notes = *motivo
	}
	return req, nil
}

func collectRequests(rows pgx.Rows) ([]Request, error) {
	defer rows.Close()
	var out []Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

var _ Repository = (*PGRepository)(nil)
