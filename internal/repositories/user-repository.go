package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"case-system/internal/entities"
	apperrors "case-system/pkg/errors"
)

const (
	userTable  = "users"
	userFields = "id, fio, email, role, company_id, branch_id, is_active, created_at, updated_at"
)

// UserRepositoryInterface - справочник пользователей для рассылки
// уведомлений и переназначения исполнителей.
type UserRepositoryInterface interface {
	FindUser(ctx context.Context, id uint64) (*entities.User, error)
	FindBranchAdmins(ctx context.Context, branchID uint64) ([]entities.User, error)
	FindCompanyAdmins(ctx context.Context, companyID uint64) ([]entities.User, error)
	FindSuperAdmins(ctx context.Context) ([]entities.User, error)
	FindByRoles(ctx context.Context, companyID uint64, branchID *uint64, roles []string) ([]entities.User, error)
}

type UserRepository struct {
	storage *pgxpool.Pool
	logger  *zap.Logger
}

func NewUserRepository(storage *pgxpool.Pool, logger *zap.Logger) UserRepositoryInterface {
	return &UserRepository{storage: storage, logger: logger}
}

func scanUser(row pgx.Row) (*entities.User, error) {
	var u entities.User
	var companyID, branchID sql.NullInt64

	err := row.Scan(&u.ID, &u.Fio, &u.Email, &u.Role, &companyID, &branchID, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка сканирования user: %w", err)
	}

	if companyID.Valid {
		v := uint64(companyID.Int64)
		u.CompanyID = &v
	}
	if branchID.Valid {
		v := uint64(branchID.Int64)
		u.BranchID = &v
	}
	return &u, nil
}

func (r *UserRepository) queryUsers(ctx context.Context, query string, args ...interface{}) ([]entities.User, error) {
	rows, err := r.storage.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]entities.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func (r *UserRepository) FindUser(ctx context.Context, id uint64) (*entities.User, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = $1", userFields, userTable)
	return scanUser(r.storage.QueryRow(ctx, query, id))
}

func (r *UserRepository) FindBranchAdmins(ctx context.Context, branchID uint64) ([]entities.User, error) {
	query := fmt.Sprintf(
		"SELECT %s FROM %s WHERE role = $1 AND branch_id = $2 AND is_active",
		userFields, userTable,
	)
	return r.queryUsers(ctx, query, entities.RoleBranchAdmin, branchID)
}

func (r *UserRepository) FindCompanyAdmins(ctx context.Context, companyID uint64) ([]entities.User, error) {
	query := fmt.Sprintf(
		"SELECT %s FROM %s WHERE role = $1 AND company_id = $2 AND is_active",
		userFields, userTable,
	)
	return r.queryUsers(ctx, query, entities.RoleCompanyAdmin, companyID)
}

func (r *UserRepository) FindSuperAdmins(ctx context.Context) ([]entities.User, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE role = $1 AND is_active", userFields, userTable)
	return r.queryUsers(ctx, query, entities.RoleSuperAdmin)
}

// FindByRoles ищет активных пользователей заданных ролей в рамках компании,
// при указании филиала - с учётом филиала.
func (r *UserRepository) FindByRoles(ctx context.Context, companyID uint64, branchID *uint64, roles []string) ([]entities.User, error) {
	if len(roles) == 0 {
		return []entities.User{}, nil
	}
	query := fmt.Sprintf(
		"SELECT %s FROM %s WHERE role = ANY($1) AND company_id = $2 AND is_active",
		userFields, userTable,
	)
	args := []interface{}{roles, companyID}
	if branchID != nil {
		query += " AND branch_id = $3"
		args = append(args, *branchID)
	}
	return r.queryUsers(ctx, query, args...)
}
