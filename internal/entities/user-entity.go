package entities

import "case-system/pkg/types"

// Роли пользователей, участвующих в рассылке и переназначении.
const (
	RoleInvestigator = "investigator"
	RoleBranchAdmin  = "branch_admin"
	RoleCompanyAdmin = "company_admin"
	RoleSuperAdmin   = "super_admin"
)

type User struct {
	ID        uint64  `json:"id" db:"id"`
	Fio       string  `json:"fio" db:"fio"`
	Email     string  `json:"email" db:"email"`
	Role      string  `json:"role" db:"role"`
	CompanyID *uint64 `json:"company_id" db:"company_id"`
	BranchID  *uint64 `json:"branch_id" db:"branch_id"`
	IsActive  bool    `json:"is_active" db:"is_active"`

	types.BaseEntity
}
