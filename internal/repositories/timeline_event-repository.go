package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"case-system/internal/entities"
	apperrors "case-system/pkg/errors"
)

const (
	timelineTable  = "timeline_events"
	timelineFields = "id, case_id, stage, event_at, duration_in_stage, sla_breached, is_internal, company_id, branch_id, tx_id, note, created_at"
)

type TimelineEventRepositoryInterface interface {
	Append(ctx context.Context, event entities.TimelineEvent) (uint64, error)
	FindByCaseID(ctx context.Context, caseID uint64) ([]entities.TimelineEvent, error)
	FindByCompanyAndRange(ctx context.Context, companyID uint64, branchID *uint64, from, to time.Time) ([]entities.TimelineEvent, error)
	MarkBreachedInTx(ctx context.Context, tx pgx.Tx, caseID uint64, stage entities.Stage) error
}

type TimelineEventRepository struct {
	storage *pgxpool.Pool
	logger  *zap.Logger
}

func NewTimelineEventRepository(storage *pgxpool.Pool, logger *zap.Logger) TimelineEventRepositoryInterface {
	return &TimelineEventRepository{storage: storage, logger: logger}
}

func scanTimelineEvent(row pgx.Row) (*entities.TimelineEvent, error) {
	var e entities.TimelineEvent
	var duration sql.NullInt64
	var branchID sql.NullInt64
	var txID uuid.NullUUID
	var note sql.NullString

	err := row.Scan(
		&e.ID, &e.CaseID, &e.Stage, &e.EventAt, &duration,
		&e.SLABreached, &e.IsInternal, &e.CompanyID, &branchID,
		&txID, &note, &e.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка сканирования timeline_event: %w", err)
	}

	if duration.Valid {
		v := int(duration.Int64)
		e.DurationInStage = &v
	}
	if branchID.Valid {
		v := uint64(branchID.Int64)
		e.BranchID = &v
	}
	if txID.Valid {
		e.TxID = &txID.UUID
	}
	if note.Valid {
		e.Note = &note.String
	}
	return &e, nil
}

func (r *TimelineEventRepository) Append(ctx context.Context, event entities.TimelineEvent) (uint64, error) {
	query := fmt.Sprintf(`
		INSERT INTO %s (case_id, stage, event_at, duration_in_stage, sla_breached, is_internal, company_id, branch_id, tx_id, note)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`, timelineTable)

	var newID uint64
	err := r.storage.QueryRow(ctx, query,
		event.CaseID, event.Stage, event.EventAt, event.DurationInStage,
		event.SLABreached, event.IsInternal, event.CompanyID, event.BranchID,
		event.TxID, event.Note,
	).Scan(&newID)
	return newID, err
}

// FindByCaseID возвращает хронологию дела в порядке возрастания времени.
// Порядок важен: определение текущего этапа опирается на последнее событие.
func (r *TimelineEventRepository) FindByCaseID(ctx context.Context, caseID uint64) ([]entities.TimelineEvent, error) {
	query := fmt.Sprintf(
		"SELECT %s FROM %s WHERE case_id = $1 ORDER BY event_at ASC, id ASC",
		timelineFields, timelineTable,
	)
	rows, err := r.storage.Query(ctx, query, caseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]entities.TimelineEvent, 0)
	for rows.Next() {
		e, err := scanTimelineEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

func (r *TimelineEventRepository) FindByCompanyAndRange(ctx context.Context, companyID uint64, branchID *uint64, from, to time.Time) ([]entities.TimelineEvent, error) {
	query := fmt.Sprintf(
		"SELECT %s FROM %s WHERE company_id = $1 AND event_at >= $2 AND event_at < $3",
		timelineFields, timelineTable,
	)
	args := []interface{}{companyID, from, to}
	if branchID != nil {
		query += " AND branch_id = $4"
		args = append(args, *branchID)
	}
	query += " ORDER BY event_at ASC, id ASC"

	rows, err := r.storage.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]entities.TimelineEvent, 0)
	for rows.Next() {
		e, err := scanTimelineEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

// MarkBreachedInTx помечает события текущего захода этапа как просроченные.
func (r *TimelineEventRepository) MarkBreachedInTx(ctx context.Context, tx pgx.Tx, caseID uint64, stage entities.Stage) error {
	query := fmt.Sprintf(`
		UPDATE %s SET sla_breached = TRUE
		WHERE case_id = $1 AND stage = $2
		  AND event_at >= COALESCE(
			(SELECT MAX(event_at) FROM %s WHERE case_id = $1 AND stage <> $2),
			'-infinity'::timestamptz
		  )
	`, timelineTable, timelineTable)
	_, err := tx.Exec(ctx, query, caseID, stage)
	return err
}
