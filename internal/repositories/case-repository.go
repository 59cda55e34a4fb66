package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"case-system/internal/entities"
	db "case-system/internal/infrastructure/bd"
	apperrors "case-system/pkg/errors"
	"case-system/pkg/types"
)

const (
	caseTable  = "cases"
	caseFields = "id, case_type, status, priority, category, company_id, branch_id, assigned_to, is_active, created_at, updated_at, case_closed_at"
)

var caseMap = map[string]string{
	"id":         "c.id",
	"case_type":  "c.case_type",
	"status":     "c.status",
	"priority":   "c.priority",
	"category":   "c.category",
	"company_id": "c.company_id",
	"branch_id":  "c.branch_id",
	"created_at": "c.created_at",
}

type CaseRepositoryInterface interface {
	GetCases(ctx context.Context, filter types.Filter) ([]entities.Case, uint64, error)
	FindCase(ctx context.Context, id uint64) (*entities.Case, error)
	GetActiveCases(ctx context.Context) ([]entities.Case, error)
	UpdateAssignee(ctx context.Context, caseID uint64, assigneeID uint64) error
	UpdatePriority(ctx context.Context, caseID uint64, priority int) error
}

type CaseRepository struct {
	storage *pgxpool.Pool
	logger  *zap.Logger
}

func NewCaseRepository(storage *pgxpool.Pool, logger *zap.Logger) CaseRepositoryInterface {
	return &CaseRepository{storage: storage, logger: logger}
}

func scanCase(row pgx.Row) (*entities.Case, error) {
	var c entities.Case
	var category sql.NullString
	var branchID, assignedTo sql.NullInt64
	var closedAt sql.NullTime

	err := row.Scan(
		&c.ID, &c.Type, &c.Status, &c.Priority, &category,
		&c.CompanyID, &branchID, &assignedTo, &c.IsActive,
		&c.CreatedAt, &c.UpdatedAt, &closedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка сканирования case: %w", err)
	}

	if category.Valid {
		c.Category = &category.String
	}
	if branchID.Valid {
		v := uint64(branchID.Int64)
		c.BranchID = &v
	}
	if assignedTo.Valid {
		v := uint64(assignedTo.Int64)
		c.AssignedTo = &v
	}
	if closedAt.Valid {
		c.CaseClosedAt = &closedAt.Time
	}
	return &c, nil
}

func (r *CaseRepository) GetCases(ctx context.Context, filter types.Filter) ([]entities.Case, uint64, error) {
	psql := sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

	applySearch := func(b sq.SelectBuilder) sq.SelectBuilder {
		if filter.Search != "" {
			pat := "%" + filter.Search + "%"
			return b.Where(sq.Or{
				sq.ILike{"c.category": pat},
				sq.ILike{"c.status": pat},
			})
		}
		return b
	}

	countBuilder := psql.Select("COUNT(c.id)").From("cases AS c")
	countBuilder = applySearch(countBuilder)

	countFilter := filter
	countFilter.WithPagination = false
	countFilter.Sort = nil
	countBuilder = db.ApplyListParams(countBuilder, countFilter, caseMap)

	var total uint64
	sqlCount, argsCount, _ := countBuilder.ToSql()
	if err := r.storage.QueryRow(ctx, sqlCount, argsCount...).Scan(&total); err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []entities.Case{}, 0, nil
	}

	baseBuilder := psql.Select(
		"c.id", "c.case_type", "c.status", "c.priority", "c.category",
		"c.company_id", "c.branch_id", "c.assigned_to", "c.is_active",
		"c.created_at", "c.updated_at", "c.case_closed_at",
	).From("cases AS c")

	baseBuilder = applySearch(baseBuilder)
	if len(filter.Sort) == 0 {
		baseBuilder = baseBuilder.OrderBy("c.id DESC")
	}
	baseBuilder = db.ApplyListParams(baseBuilder, filter, caseMap)

	query, args, err := baseBuilder.ToSql()
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.storage.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	cases := make([]entities.Case, 0, filter.Limit)
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, 0, err
		}
		cases = append(cases, *c)
	}
	return cases, total, rows.Err()
}

func (r *CaseRepository) FindCase(ctx context.Context, id uint64) (*entities.Case, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = $1", caseFields, caseTable)
	return scanCase(r.storage.QueryRow(ctx, query, id))
}

// GetActiveCases возвращает все дела, подлежащие проверке просрочки:
// активные и не в терминальном статусе.
func (r *CaseRepository) GetActiveCases(ctx context.Context) ([]entities.Case, error) {
	query := fmt.Sprintf(
		"SELECT %s FROM %s WHERE is_active AND status NOT IN ('resolved', 'closed') ORDER BY id",
		caseFields, caseTable,
	)
	rows, err := r.storage.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cases := make([]entities.Case, 0)
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, err
		}
		cases = append(cases, *c)
	}
	return cases, rows.Err()
}

func (r *CaseRepository) UpdateAssignee(ctx context.Context, caseID uint64, assigneeID uint64) error {
	query := fmt.Sprintf("UPDATE %s SET assigned_to = $1, updated_at = NOW() WHERE id = $2", caseTable)
	result, err := r.storage.Exec(ctx, query, assigneeID, caseID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *CaseRepository) UpdatePriority(ctx context.Context, caseID uint64, priority int) error {
	query := fmt.Sprintf("UPDATE %s SET priority = $1, updated_at = NOW() WHERE id = $2", caseTable)
	result, err := r.storage.Exec(ctx, query, priority, caseID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}
