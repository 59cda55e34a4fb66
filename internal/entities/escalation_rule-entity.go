package entities

import (
	"case-system/pkg/calendar"
	"case-system/pkg/types"
)

// EscalationLevel - уровень создаваемой эскалации.
type EscalationLevel string

const (
	LevelOne   EscalationLevel = "level_1"
	LevelTwo   EscalationLevel = "level_2"
	LevelThree EscalationLevel = "level_3"
)

func ValidEscalationLevel(s string) bool {
	switch EscalationLevel(s) {
	case LevelOne, LevelTwo, LevelThree:
		return true
	}
	return false
}

// AppliesTo - фильтр по виду обращения.
type AppliesTo string

const (
	AppliesToAll      AppliesTo = "all"
	AppliesToIncident AppliesTo = "incident"
	AppliesToFeedback AppliesTo = "feedback"
)

// RuleCondition - одно условие произвольного отбора: поле, оператор, значение.
// Условия правила объединяются по И.
type RuleCondition struct {
	Field string      `json:"field"`
	Op    string      `json:"op"`
	Value interface{} `json:"value"`
}

// EscalationRule - конфигурация: когда и как просрочка этапа
// должна поднимать эскалацию. Область действия: branch > company > global.
type EscalationRule struct {
	ID       uint64  `json:"id" db:"id"`
	Name     string  `json:"name" db:"name"`
	IsGlobal bool    `json:"is_global" db:"is_global"`
	CompanyID *uint64 `json:"company_id" db:"company_id"`
	BranchID  *uint64 `json:"branch_id" db:"branch_id"`

	Stage     Stage     `json:"stage" db:"stage"`
	AppliesTo AppliesTo `json:"applies_to" db:"applies_to"`
	IsActive  bool      `json:"is_active" db:"is_active"`
	Priority  int       `json:"priority" db:"priority"` // выше - раньше при пересечении правил

	// Пороги в минутах: warning < escalation < critical, обязателен только escalation.
	WarningThreshold    *int `json:"warning_threshold" db:"warning_threshold"`
	EscalationThreshold int  `json:"escalation_threshold" db:"escalation_threshold"`
	CriticalThreshold   *int `json:"critical_threshold" db:"critical_threshold"`

	UseBusinessHours bool                   `json:"use_business_hours" db:"use_business_hours"`
	BusinessHours    calendar.BusinessHours `json:"business_hours" db:"business_hours"`
	ExcludeWeekends  bool                   `json:"exclude_weekends" db:"exclude_weekends"`
	ExcludeHolidays  bool                   `json:"exclude_holidays" db:"exclude_holidays"`
	Holidays         []string               `json:"holidays" db:"holidays"` // даты "2006-01-02"

	Level EscalationLevel `json:"escalation_level" db:"escalation_level"`

	NotifyCurrentAssignee bool     `json:"notify_current_assignee" db:"notify_current_assignee"`
	NotifyBranchAdmin     bool     `json:"notify_branch_admin" db:"notify_branch_admin"`
	NotifyCompanyAdmin    bool     `json:"notify_company_admin" db:"notify_company_admin"`
	NotifySuperAdmin      bool     `json:"notify_super_admin" db:"notify_super_admin"`
	NotifyEmails          []string `json:"notify_emails" db:"notify_emails"`
	EscalationToRoles     []string `json:"escalation_to_roles" db:"escalation_to_roles"`
	EscalationToUserID    *uint64  `json:"escalation_to_user_id" db:"escalation_to_user_id"`

	AutoReassign       bool    `json:"auto_reassign" db:"auto_reassign"`
	AutoReassignToID   *uint64 `json:"auto_reassign_to_id" db:"auto_reassign_to_id"`
	AutoChangePriority bool    `json:"auto_change_priority" db:"auto_change_priority"`
	NewPriority        *int    `json:"new_priority" db:"new_priority"`

	Conditions []RuleCondition `json:"conditions" db:"conditions"`

	types.BaseEntity
}

// CalendarOptions собирает параметры делового календаря из настроек правила.
func (r *EscalationRule) CalendarOptions() calendar.Options {
	return calendar.Options{
		UseBusinessHours: r.UseBusinessHours,
		Hours:            r.BusinessHours,
		ExcludeWeekends:  r.ExcludeWeekends,
		ExcludeHolidays:  r.ExcludeHolidays,
		Holidays:         calendar.HolidaySet(r.Holidays...),
	}
}

// Specificity - вес области действия для сортировки: филиал > компания > глобально.
func (r *EscalationRule) Specificity() int {
	switch {
	case r.BranchID != nil:
		return 2
	case r.CompanyID != nil:
		return 1
	default:
		return 0
	}
}
