package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"case-system/internal/entities"
	db "case-system/internal/infrastructure/bd"
	apperrors "case-system/pkg/errors"
	"case-system/pkg/types"
)

const (
	escalationTable  = "escalations"
	escalationFields = `id, case_id, rule_id, stage, escalation_level, reason, elapsed_minutes, threshold_used, escalated_at,
		is_resolved, resolved_by, resolved_at, resolution_note,
		was_reassigned, reassigned_from, reassigned_to,
		priority_changed, old_priority, new_priority, notified_user_ids, created_at`
)

var escalationMap = map[string]string{
	"id":               "e.id",
	"case_id":          "e.case_id",
	"rule_id":          "e.rule_id",
	"stage":            "e.stage",
	"escalation_level": "e.escalation_level",
	"is_resolved":      "e.is_resolved",
	"escalated_at":     "e.escalated_at",
	"created_at":       "e.created_at",
}

type EscalationRepositoryInterface interface {
	GetEscalations(ctx context.Context, filter types.Filter) ([]entities.Escalation, uint64, error)
	FindEscalation(ctx context.Context, id uint64) (*entities.Escalation, error)
	FindByCaseID(ctx context.Context, caseID uint64) ([]entities.Escalation, error)
	FindUnresolvedByCaseAndRule(ctx context.Context, caseID, ruleID uint64) (*entities.Escalation, error)
	CreateInTx(ctx context.Context, tx pgx.Tx, escalation entities.Escalation) (uint64, error)
	ResolveLowerLevelsInTx(ctx context.Context, tx pgx.Tx, caseID, ruleID uint64, stage entities.Stage, levels []entities.EscalationLevel, note string) (int64, error)
	Resolve(ctx context.Context, id uint64, resolvedBy uint64, note *string) error
	SetActionResults(ctx context.Context, id uint64, e entities.Escalation) error
	SetNotifiedUserIDs(ctx context.Context, id uint64, userIDs []uint64) error
}

type EscalationRepository struct {
	storage *pgxpool.Pool
	logger  *zap.Logger
}

func NewEscalationRepository(storage *pgxpool.Pool, logger *zap.Logger) EscalationRepositoryInterface {
	return &EscalationRepository{storage: storage, logger: logger}
}

func scanEscalation(row pgx.Row) (*entities.Escalation, error) {
	var e entities.Escalation
	var resolvedBy, reassignedFrom, reassignedTo sql.NullInt64
	var resolvedAt sql.NullTime
	var resolutionNote sql.NullString
	var oldPriority, newPriority sql.NullInt64
	var notifiedUserIDs []byte

	err := row.Scan(
		&e.ID, &e.CaseID, &e.RuleID, &e.Stage, &e.Level, &e.Reason, &e.ElapsedMinutes, &e.ThresholdUsed, &e.EscalatedAt,
		&e.IsResolved, &resolvedBy, &resolvedAt, &resolutionNote,
		&e.WasReassigned, &reassignedFrom, &reassignedTo,
		&e.PriorityChanged, &oldPriority, &newPriority, &notifiedUserIDs, &e.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка сканирования escalation: %w", err)
	}

	if resolvedBy.Valid {
		v := uint64(resolvedBy.Int64)
		e.ResolvedBy = &v
	}
	if resolvedAt.Valid {
		e.ResolvedAt = &resolvedAt.Time
	}
	if resolutionNote.Valid {
		e.ResolutionNote = &resolutionNote.String
	}
	if reassignedFrom.Valid {
		v := uint64(reassignedFrom.Int64)
		e.ReassignedFrom = &v
	}
	if reassignedTo.Valid {
		v := uint64(reassignedTo.Int64)
		e.ReassignedTo = &v
	}
	if oldPriority.Valid {
		v := int(oldPriority.Int64)
		e.OldPriority = &v
	}
	if newPriority.Valid {
		v := int(newPriority.Int64)
		e.NewPriority = &v
	}
	if len(notifiedUserIDs) > 0 {
		if err := json.Unmarshal(notifiedUserIDs, &e.NotifiedUserIDs); err != nil {
			return nil, fmt.Errorf("ошибка разбора notified_user_ids эскалации %d: %w", e.ID, err)
		}
	}
	return &e, nil
}

func (r *EscalationRepository) GetEscalations(ctx context.Context, filter types.Filter) ([]entities.Escalation, uint64, error) {
	psql := sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

	applySearch := func(b sq.SelectBuilder) sq.SelectBuilder {
		if filter.Search != "" {
			return b.Where(sq.ILike{"e.reason": "%" + filter.Search + "%"})
		}
		return b
	}

	countBuilder := psql.Select("COUNT(e.id)").From("escalations AS e")
	countBuilder = applySearch(countBuilder)

	countFilter := filter
	countFilter.WithPagination = false
	countFilter.Sort = nil
	countBuilder = db.ApplyListParams(countBuilder, countFilter, escalationMap)

	var total uint64
	sqlCount, argsCount, _ := countBuilder.ToSql()
	if err := r.storage.QueryRow(ctx, sqlCount, argsCount...).Scan(&total); err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []entities.Escalation{}, 0, nil
	}

	baseBuilder := psql.Select(
		"e.id", "e.case_id", "e.rule_id", "e.stage", "e.escalation_level", "e.reason", "e.elapsed_minutes", "e.threshold_used", "e.escalated_at",
		"e.is_resolved", "e.resolved_by", "e.resolved_at", "e.resolution_note",
		"e.was_reassigned", "e.reassigned_from", "e.reassigned_to",
		"e.priority_changed", "e.old_priority", "e.new_priority", "e.notified_user_ids", "e.created_at",
	).From("escalations AS e")

	baseBuilder = applySearch(baseBuilder)
	if len(filter.Sort) == 0 {
		baseBuilder = baseBuilder.OrderBy("e.id DESC")
	}
	baseBuilder = db.ApplyListParams(baseBuilder, filter, escalationMap)

	query, args, err := baseBuilder.ToSql()
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.storage.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	escalations := make([]entities.Escalation, 0, filter.Limit)
	for rows.Next() {
		e, err := scanEscalation(rows)
		if err != nil {
			return nil, 0, err
		}
		escalations = append(escalations, *e)
	}
	return escalations, total, rows.Err()
}

func (r *EscalationRepository) FindEscalation(ctx context.Context, id uint64) (*entities.Escalation, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = $1", escalationFields, escalationTable)
	return scanEscalation(r.storage.QueryRow(ctx, query, id))
}

func (r *EscalationRepository) FindByCaseID(ctx context.Context, caseID uint64) ([]entities.Escalation, error) {
	query := fmt.Sprintf(
		"SELECT %s FROM %s WHERE case_id = $1 ORDER BY escalated_at DESC, id DESC",
		escalationFields, escalationTable,
	)
	rows, err := r.storage.Query(ctx, query, caseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	escalations := make([]entities.Escalation, 0)
	for rows.Next() {
		e, err := scanEscalation(rows)
		if err != nil {
			return nil, err
		}
		escalations = append(escalations, *e)
	}
	return escalations, rows.Err()
}

func (r *EscalationRepository) FindUnresolvedByCaseAndRule(ctx context.Context, caseID, ruleID uint64) (*entities.Escalation, error) {
	query := fmt.Sprintf(
		"SELECT %s FROM %s WHERE case_id = $1 AND rule_id = $2 AND NOT is_resolved LIMIT 1",
		escalationFields, escalationTable,
	)
	return scanEscalation(r.storage.QueryRow(ctx, query, caseID, ruleID))
}

func (r *EscalationRepository) CreateInTx(ctx context.Context, tx pgx.Tx, escalation entities.Escalation) (uint64, error) {
	query := fmt.Sprintf(`
		INSERT INTO %s (case_id, rule_id, stage, escalation_level, reason, elapsed_minutes, threshold_used, escalated_at,
			was_reassigned, reassigned_from, reassigned_to, priority_changed, old_priority, new_priority)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id
	`, escalationTable)

	var newID uint64
	err := tx.QueryRow(ctx, query,
		escalation.CaseID, escalation.RuleID, escalation.Stage, escalation.Level, escalation.Reason,
		escalation.ElapsedMinutes, escalation.ThresholdUsed, escalation.EscalatedAt,
		escalation.WasReassigned, escalation.ReassignedFrom, escalation.ReassignedTo,
		escalation.PriorityChanged, escalation.OldPriority, escalation.NewPriority,
	).Scan(&newID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			// Открытая эскалация по паре (дело, правило) уже существует
			return 0, apperrors.ErrConflict
		}
		return 0, err
	}
	return newID, nil
}

// ResolveLowerLevelsInTx закрывает открытые эскалации дела на младших уровнях,
// когда то же правило поднимает более высокий уровень на том же этапе.
// Эскалации других правил не трогаем: правила срабатывают независимо.
func (r *EscalationRepository) ResolveLowerLevelsInTx(ctx context.Context, tx pgx.Tx, caseID, ruleID uint64, stage entities.Stage, levels []entities.EscalationLevel, note string) (int64, error) {
	if len(levels) == 0 {
		return 0, nil
	}
	levelStrings := make([]string, 0, len(levels))
	for _, l := range levels {
		levelStrings = append(levelStrings, string(l))
	}

	psql := sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	query, args, err := psql.Update(escalationTable).
		Set("is_resolved", true).
		Set("resolved_at", time.Now()).
		Set("resolution_note", note).
		Where(sq.Eq{"case_id": caseID, "rule_id": ruleID, "stage": string(stage), "escalation_level": levelStrings, "is_resolved": false}).
		ToSql()
	if err != nil {
		return 0, err
	}

	result, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

// Resolve атомарно закрывает эскалацию. Повторный вызов по уже
// закрытой записи возвращает ErrAlreadyResolved.
func (r *EscalationRepository) Resolve(ctx context.Context, id uint64, resolvedBy uint64, note *string) error {
	query := fmt.Sprintf(`
		UPDATE %s SET is_resolved = TRUE, resolved_by = $1, resolved_at = NOW(), resolution_note = $2
		WHERE id = $3 AND NOT is_resolved
	`, escalationTable)

	result, err := r.storage.Exec(ctx, query, resolvedBy, note, id)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		if _, findErr := r.FindEscalation(ctx, id); findErr != nil {
			return findErr
		}
		return apperrors.ErrAlreadyResolved
	}
	return nil
}

// SetActionResults дописывает в уже созданную эскалацию итоги действий правила
// (переназначение, смена приоритета). Действия выполняются после фиксации
// записи, поэтому их результат сохраняется отдельным обновлением.
func (r *EscalationRepository) SetActionResults(ctx context.Context, id uint64, e entities.Escalation) error {
	query := fmt.Sprintf(`
		UPDATE %s SET
			was_reassigned = $1, reassigned_from = $2, reassigned_to = $3,
			priority_changed = $4, old_priority = $5, new_priority = $6
		WHERE id = $7
	`, escalationTable)

	_, err := r.storage.Exec(ctx, query,
		e.WasReassigned, e.ReassignedFrom, e.ReassignedTo,
		e.PriorityChanged, e.OldPriority, e.NewPriority,
		id,
	)
	return err
}

func (r *EscalationRepository) SetNotifiedUserIDs(ctx context.Context, id uint64, userIDs []uint64) error {
	raw, err := json.Marshal(userIDs)
	if err != nil {
		return fmt.Errorf("ошибка сериализации notified_user_ids: %w", err)
	}
	query := fmt.Sprintf("UPDATE %s SET notified_user_ids = $1 WHERE id = $2", escalationTable)
	_, err = r.storage.Exec(ctx, query, raw, id)
	return err
}
