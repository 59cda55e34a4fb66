package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

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
	escalationRuleTable  = "escalation_rules"
	escalationRuleFields = `id, name, is_global, company_id, branch_id, stage, applies_to, is_active, priority,
		warning_threshold, escalation_threshold, critical_threshold,
		use_business_hours, business_hours, exclude_weekends, exclude_holidays, holidays,
		escalation_level, notify_current_assignee, notify_branch_admin, notify_company_admin, notify_super_admin,
		notify_emails, escalation_to_roles, escalation_to_user_id,
		auto_reassign, auto_reassign_to_id, auto_change_priority, new_priority,
		conditions, created_at, updated_at`
)

var escalationRuleMap = map[string]string{
	"id":               "r.id",
	"name":             "r.name",
	"is_global":        "r.is_global",
	"company_id":       "r.company_id",
	"branch_id":        "r.branch_id",
	"stage":            "r.stage",
	"applies_to":       "r.applies_to",
	"is_active":        "r.is_active",
	"escalation_level": "r.escalation_level",
	"created_at":       "r.created_at",
}

type EscalationRuleRepositoryInterface interface {
	GetRules(ctx context.Context, filter types.Filter) ([]entities.EscalationRule, uint64, error)
	FindRule(ctx context.Context, id uint64) (*entities.EscalationRule, error)
	GetActiveRules(ctx context.Context) ([]entities.EscalationRule, error)
	CreateRule(ctx context.Context, rule entities.EscalationRule) (uint64, error)
	UpdateRule(ctx context.Context, id uint64, rule entities.EscalationRule) error
	DeleteRule(ctx context.Context, id uint64) error
}

type EscalationRuleRepository struct {
	storage *pgxpool.Pool
	logger  *zap.Logger
}

func NewEscalationRuleRepository(storage *pgxpool.Pool, logger *zap.Logger) EscalationRuleRepositoryInterface {
	return &EscalationRuleRepository{storage: storage, logger: logger}
}

// jsonbOrNil сериализует значение для JSONB-колонки, пустое значение пишем как NULL.
func jsonbOrNil(v interface{}, isEmpty bool) (interface{}, error) {
	if isEmpty {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации jsonb: %w", err)
	}
	return raw, nil
}

func scanEscalationRule(row pgx.Row) (*entities.EscalationRule, error) {
	var r entities.EscalationRule
	var companyID, branchID, escalationToUserID, autoReassignToID sql.NullInt64
	var warningThreshold, criticalThreshold, newPriority sql.NullInt64
	var businessHours, holidays, notifyEmails, escalationToRoles, conditions []byte

	err := row.Scan(
		&r.ID, &r.Name, &r.IsGlobal, &companyID, &branchID, &r.Stage, &r.AppliesTo, &r.IsActive, &r.Priority,
		&warningThreshold, &r.EscalationThreshold, &criticalThreshold,
		&r.UseBusinessHours, &businessHours, &r.ExcludeWeekends, &r.ExcludeHolidays, &holidays,
		&r.Level, &r.NotifyCurrentAssignee, &r.NotifyBranchAdmin, &r.NotifyCompanyAdmin, &r.NotifySuperAdmin,
		&notifyEmails, &escalationToRoles, &escalationToUserID,
		&r.AutoReassign, &autoReassignToID, &r.AutoChangePriority, &newPriority,
		&conditions, &r.CreatedAt, &r.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка сканирования escalation_rule: %w", err)
	}

	if companyID.Valid {
		v := uint64(companyID.Int64)
		r.CompanyID = &v
	}
	if branchID.Valid {
		v := uint64(branchID.Int64)
		r.BranchID = &v
	}
	if escalationToUserID.Valid {
		v := uint64(escalationToUserID.Int64)
		r.EscalationToUserID = &v
	}
	if autoReassignToID.Valid {
		v := uint64(autoReassignToID.Int64)
		r.AutoReassignToID = &v
	}
	if warningThreshold.Valid {
		v := int(warningThreshold.Int64)
		r.WarningThreshold = &v
	}
	if criticalThreshold.Valid {
		v := int(criticalThreshold.Int64)
		r.CriticalThreshold = &v
	}
	if newPriority.Valid {
		v := int(newPriority.Int64)
		r.NewPriority = &v
	}

	for _, pair := range []struct {
		raw  []byte
		dest interface{}
	}{
		{businessHours, &r.BusinessHours},
		{holidays, &r.Holidays},
		{notifyEmails, &r.NotifyEmails},
		{escalationToRoles, &r.EscalationToRoles},
		{conditions, &r.Conditions},
	} {
		if len(pair.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(pair.raw, pair.dest); err != nil {
			return nil, fmt.Errorf("ошибка разбора jsonb правила %d: %w", r.ID, err)
		}
	}

	return &r, nil
}

func (r *EscalationRuleRepository) GetRules(ctx context.Context, filter types.Filter) ([]entities.EscalationRule, uint64, error) {
	psql := sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

	applySearch := func(b sq.SelectBuilder) sq.SelectBuilder {
		if filter.Search != "" {
			return b.Where(sq.ILike{"r.name": "%" + filter.Search + "%"})
		}
		return b
	}

	countBuilder := psql.Select("COUNT(r.id)").From("escalation_rules AS r")
	countBuilder = applySearch(countBuilder)

	countFilter := filter
	countFilter.WithPagination = false
	countFilter.Sort = nil
	countBuilder = db.ApplyListParams(countBuilder, countFilter, escalationRuleMap)

	var total uint64
	sqlCount, argsCount, _ := countBuilder.ToSql()
	if err := r.storage.QueryRow(ctx, sqlCount, argsCount...).Scan(&total); err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []entities.EscalationRule{}, 0, nil
	}

	baseBuilder := psql.Select(
		"r.id", "r.name", "r.is_global", "r.company_id", "r.branch_id", "r.stage", "r.applies_to", "r.is_active", "r.priority",
		"r.warning_threshold", "r.escalation_threshold", "r.critical_threshold",
		"r.use_business_hours", "r.business_hours", "r.exclude_weekends", "r.exclude_holidays", "r.holidays",
		"r.escalation_level", "r.notify_current_assignee", "r.notify_branch_admin", "r.notify_company_admin", "r.notify_super_admin",
		"r.notify_emails", "r.escalation_to_roles", "r.escalation_to_user_id",
		"r.auto_reassign", "r.auto_reassign_to_id", "r.auto_change_priority", "r.new_priority",
		"r.conditions", "r.created_at", "r.updated_at",
	).From("escalation_rules AS r")

	baseBuilder = applySearch(baseBuilder)
	if len(filter.Sort) == 0 {
		baseBuilder = baseBuilder.OrderBy("r.id DESC")
	}
	baseBuilder = db.ApplyListParams(baseBuilder, filter, escalationRuleMap)

	query, args, err := baseBuilder.ToSql()
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.storage.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	rules := make([]entities.EscalationRule, 0, filter.Limit)
	for rows.Next() {
		rule, err := scanEscalationRule(rows)
		if err != nil {
			return nil, 0, err
		}
		rules = append(rules, *rule)
	}
	return rules, total, rows.Err()
}

func (r *EscalationRuleRepository) FindRule(ctx context.Context, id uint64) (*entities.EscalationRule, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = $1", escalationRuleFields, escalationRuleTable)
	return scanEscalationRule(r.storage.QueryRow(ctx, query, id))
}

// GetActiveRules возвращает действующие правила для фонового обхода,
// отсортированные по убыванию приоритета.
func (r *EscalationRuleRepository) GetActiveRules(ctx context.Context) ([]entities.EscalationRule, error) {
	query := fmt.Sprintf(
		"SELECT %s FROM %s WHERE is_active ORDER BY priority DESC, id ASC",
		escalationRuleFields, escalationRuleTable,
	)
	rows, err := r.storage.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rules := make([]entities.EscalationRule, 0)
	for rows.Next() {
		rule, err := scanEscalationRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, *rule)
	}
	return rules, rows.Err()
}

func (r *EscalationRuleRepository) ruleArgs(rule entities.EscalationRule) ([]interface{}, error) {
	businessHours, err := jsonbOrNil(rule.BusinessHours, len(rule.BusinessHours) == 0)
	if err != nil {
		return nil, err
	}
	holidays, err := jsonbOrNil(rule.Holidays, len(rule.Holidays) == 0)
	if err != nil {
		return nil, err
	}
	notifyEmails, err := jsonbOrNil(rule.NotifyEmails, len(rule.NotifyEmails) == 0)
	if err != nil {
		return nil, err
	}
	escalationToRoles, err := jsonbOrNil(rule.EscalationToRoles, len(rule.EscalationToRoles) == 0)
	if err != nil {
		return nil, err
	}
	conditions, err := jsonbOrNil(rule.Conditions, len(rule.Conditions) == 0)
	if err != nil {
		return nil, err
	}

	return []interface{}{
		rule.Name, rule.IsGlobal, rule.CompanyID, rule.BranchID, rule.Stage, rule.AppliesTo, rule.IsActive, rule.Priority,
		rule.WarningThreshold, rule.EscalationThreshold, rule.CriticalThreshold,
		rule.UseBusinessHours, businessHours, rule.ExcludeWeekends, rule.ExcludeHolidays, holidays,
		rule.Level, rule.NotifyCurrentAssignee, rule.NotifyBranchAdmin, rule.NotifyCompanyAdmin, rule.NotifySuperAdmin,
		notifyEmails, escalationToRoles, rule.EscalationToUserID,
		rule.AutoReassign, rule.AutoReassignToID, rule.AutoChangePriority, rule.NewPriority,
		conditions,
	}, nil
}

func (r *EscalationRuleRepository) CreateRule(ctx context.Context, rule entities.EscalationRule) (uint64, error) {
	query := fmt.Sprintf(`
		INSERT INTO %s (name, is_global, company_id, branch_id, stage, applies_to, is_active, priority,
			warning_threshold, escalation_threshold, critical_threshold,
			use_business_hours, business_hours, exclude_weekends, exclude_holidays, holidays,
			escalation_level, notify_current_assignee, notify_branch_admin, notify_company_admin, notify_super_admin,
			notify_emails, escalation_to_roles, escalation_to_user_id,
			auto_reassign, auto_reassign_to_id, auto_change_priority, new_priority, conditions)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29)
		RETURNING id
	`, escalationRuleTable)

	args, err := r.ruleArgs(rule)
	if err != nil {
		return 0, err
	}

	var newID uint64
	if err := r.storage.QueryRow(ctx, query, args...).Scan(&newID); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, apperrors.ErrConflict
		}
		return 0, err
	}
	return newID, nil
}

func (r *EscalationRuleRepository) UpdateRule(ctx context.Context, id uint64, rule entities.EscalationRule) error {
	query := fmt.Sprintf(`
		UPDATE %s SET
			name = $1, is_global = $2, company_id = $3, branch_id = $4, stage = $5, applies_to = $6, is_active = $7, priority = $8,
			warning_threshold = $9, escalation_threshold = $10, critical_threshold = $11,
			use_business_hours = $12, business_hours = $13, exclude_weekends = $14, exclude_holidays = $15, holidays = $16,
			escalation_level = $17, notify_current_assignee = $18, notify_branch_admin = $19, notify_company_admin = $20, notify_super_admin = $21,
			notify_emails = $22, escalation_to_roles = $23, escalation_to_user_id = $24,
			auto_reassign = $25, auto_reassign_to_id = $26, auto_change_priority = $27, new_priority = $28,
			conditions = $29, updated_at = NOW()
		WHERE id = $30
	`, escalationRuleTable)

	args, err := r.ruleArgs(rule)
	if err != nil {
		return err
	}
	args = append(args, id)

	result, err := r.storage.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *EscalationRuleRepository) DeleteRule(ctx context.Context, id uint64) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE id = $1", escalationRuleTable)
	result, err := r.storage.Exec(ctx, query, id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return apperrors.ErrRuleInUse
		}
		return err
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}
