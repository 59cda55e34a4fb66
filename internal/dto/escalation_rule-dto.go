// Файл: internal/dto/escalation_rule-dto.go
package dto

import (
	"github.com/aarondl/null/v8"

	"case-system/internal/entities"
	"case-system/pkg/calendar"
)

type CreateEscalationRuleDTO struct {
	Name      string  `json:"name" validate:"required,min=3,max=255"`
	IsGlobal  bool    `json:"is_global"`
	CompanyID *uint64 `json:"company_id" validate:"omitempty,gt=0"`
	BranchID  *uint64 `json:"branch_id" validate:"omitempty,gt=0"`

	Stage     string `json:"stage" validate:"required"`
	AppliesTo string `json:"applies_to" validate:"required,oneof=all incident feedback"`
	IsActive  *bool  `json:"is_active"`
	Priority  int    `json:"priority" validate:"gte=0"`

	WarningThreshold    *int `json:"warning_threshold" validate:"omitempty,gte=1"`
	EscalationThreshold int  `json:"escalation_threshold" validate:"required,gte=1"`
	CriticalThreshold   *int `json:"critical_threshold" validate:"omitempty,gte=1"`

	UseBusinessHours bool                   `json:"use_business_hours"`
	BusinessHours    calendar.BusinessHours `json:"business_hours"`
	ExcludeWeekends  bool                   `json:"exclude_weekends"`
	ExcludeHolidays  bool                   `json:"exclude_holidays"`
	Holidays         []string               `json:"holidays" validate:"omitempty,dive,datetime=2006-01-02"`

	EscalationLevel string `json:"escalation_level" validate:"required,oneof=level_1 level_2 level_3"`

	NotifyCurrentAssignee bool     `json:"notify_current_assignee"`
	NotifyBranchAdmin     bool     `json:"notify_branch_admin"`
	NotifyCompanyAdmin    bool     `json:"notify_company_admin"`
	NotifySuperAdmin      bool     `json:"notify_super_admin"`
	NotifyEmails          []string `json:"notify_emails" validate:"omitempty,dive,email"`
	EscalationToRoles     []string `json:"escalation_to_roles"`
	EscalationToUserID    *uint64  `json:"escalation_to_user_id" validate:"omitempty,gt=0"`

	AutoReassign       bool    `json:"auto_reassign"`
	AutoReassignToID   *uint64 `json:"auto_reassign_to_id" validate:"omitempty,gt=0"`
	AutoChangePriority bool    `json:"auto_change_priority"`
	NewPriority        *int    `json:"new_priority" validate:"omitempty,gte=1,lte=4"`

	Conditions []entities.RuleCondition `json:"conditions"`
}

type UpdateEscalationRuleDTO struct {
	Name      null.String `json:"name,omitempty"`
	IsGlobal  null.Bool   `json:"is_global,omitempty"`
	CompanyID null.Uint64 `json:"company_id,omitempty"`
	BranchID  null.Uint64 `json:"branch_id,omitempty"`

	Stage     null.String `json:"stage,omitempty"`
	AppliesTo null.String `json:"applies_to,omitempty"`
	IsActive  null.Bool   `json:"is_active,omitempty"`
	Priority  null.Int    `json:"priority,omitempty"`

	WarningThreshold    null.Int `json:"warning_threshold,omitempty"`
	EscalationThreshold null.Int `json:"escalation_threshold,omitempty"`
	CriticalThreshold   null.Int `json:"critical_threshold,omitempty"`

	UseBusinessHours null.Bool              `json:"use_business_hours,omitempty"`
	BusinessHours    calendar.BusinessHours `json:"business_hours,omitempty"`
	ExcludeWeekends  null.Bool              `json:"exclude_weekends,omitempty"`
	ExcludeHolidays  null.Bool              `json:"exclude_holidays,omitempty"`
	Holidays         []string               `json:"holidays,omitempty"`

	EscalationLevel null.String `json:"escalation_level,omitempty"`

	NotifyCurrentAssignee null.Bool   `json:"notify_current_assignee,omitempty"`
	NotifyBranchAdmin     null.Bool   `json:"notify_branch_admin,omitempty"`
	NotifyCompanyAdmin    null.Bool   `json:"notify_company_admin,omitempty"`
	NotifySuperAdmin      null.Bool   `json:"notify_super_admin,omitempty"`
	NotifyEmails          []string    `json:"notify_emails,omitempty"`
	EscalationToRoles     []string    `json:"escalation_to_roles,omitempty"`
	EscalationToUserID    null.Uint64 `json:"escalation_to_user_id,omitempty"`

	AutoReassign       null.Bool   `json:"auto_reassign,omitempty"`
	AutoReassignToID   null.Uint64 `json:"auto_reassign_to_id,omitempty"`
	AutoChangePriority null.Bool   `json:"auto_change_priority,omitempty"`
	NewPriority        null.Int    `json:"new_priority,omitempty"`

	Conditions []entities.RuleCondition `json:"conditions,omitempty"`
}

type EscalationRuleResponseDTO struct {
	ID        uint64  `json:"id"`
	Name      string  `json:"name"`
	IsGlobal  bool    `json:"is_global"`
	CompanyID *uint64 `json:"company_id,omitempty"`
	BranchID  *uint64 `json:"branch_id,omitempty"`

	Stage     string `json:"stage"`
	AppliesTo string `json:"applies_to"`
	IsActive  bool   `json:"is_active"`
	Priority  int    `json:"priority"`

	WarningThreshold    *int `json:"warning_threshold,omitempty"`
	EscalationThreshold int  `json:"escalation_threshold"`
	CriticalThreshold   *int `json:"critical_threshold,omitempty"`

	UseBusinessHours bool                   `json:"use_business_hours"`
	BusinessHours    calendar.BusinessHours `json:"business_hours,omitempty"`
	ExcludeWeekends  bool                   `json:"exclude_weekends"`
	ExcludeHolidays  bool                   `json:"exclude_holidays"`
	Holidays         []string               `json:"holidays,omitempty"`

	EscalationLevel string `json:"escalation_level"`

	NotifyCurrentAssignee bool     `json:"notify_current_assignee"`
	NotifyBranchAdmin     bool     `json:"notify_branch_admin"`
	NotifyCompanyAdmin    bool     `json:"notify_company_admin"`
	NotifySuperAdmin      bool     `json:"notify_super_admin"`
	NotifyEmails          []string `json:"notify_emails,omitempty"`
	EscalationToRoles     []string `json:"escalation_to_roles,omitempty"`
	EscalationToUserID    *uint64  `json:"escalation_to_user_id,omitempty"`

	AutoReassign       bool    `json:"auto_reassign"`
	AutoReassignToID   *uint64 `json:"auto_reassign_to_id,omitempty"`
	AutoChangePriority bool    `json:"auto_change_priority"`
	NewPriority        *int    `json:"new_priority,omitempty"`

	Conditions []entities.RuleCondition `json:"conditions,omitempty"`

	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

type EscalationRuleListResponseDTO struct {
	List       []EscalationRuleResponseDTO `json:"list"`
	TotalCount uint64                      `json:"total_count"`
}
