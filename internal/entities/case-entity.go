package entities

import (
	"strings"
	"time"

	"case-system/pkg/types"
)

// CaseType - вид обращения.
type CaseType string

const (
	CaseTypeIncident CaseType = "incident"
	CaseTypeFeedback CaseType = "feedback"
)

// CaseStatus - текущий статус дела.
type CaseStatus string

const (
	CaseStatusOpen          CaseStatus = "open"
	CaseStatusAssigned      CaseStatus = "assigned"
	CaseStatusInProgress    CaseStatus = "in_progress"
	CaseStatusPendingReview CaseStatus = "pending_review"
	CaseStatusResolved      CaseStatus = "resolved"
	CaseStatusClosed        CaseStatus = "closed"
)

// ActiveCaseStatuses - статусы, по которым фоновый обход оценивает эскалации.
// Закрытые и разрешённые дела не обходим.
var ActiveCaseStatuses = []CaseStatus{
	CaseStatusOpen,
	CaseStatusAssigned,
	CaseStatusInProgress,
	CaseStatusPendingReview,
}

// Приоритеты дел: 1 - критический ... 4 - низкий.
const (
	PriorityCritical = 1
	PriorityHigh     = 2
	PriorityMedium   = 3
	PriorityLow      = 4
)

// ParsePriority принимает числовую либо строковую форму приоритета
// (low/medium/high/urgent) и нормализует к числовой.
func ParsePriority(value string) (int, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "critical", "urgent":
		return PriorityCritical, true
	case "2", "high":
		return PriorityHigh, true
	case "3", "medium":
		return PriorityMedium, true
	case "4", "low":
		return PriorityLow, true
	}
	return 0, false
}

type Case struct {
	ID           uint64     `json:"id" db:"id"`
	Type         CaseType   `json:"type" db:"case_type"`
	Status       CaseStatus `json:"status" db:"status"`
	Priority     int        `json:"priority" db:"priority"`
	Category     *string    `json:"category" db:"category"`
	CompanyID    uint64     `json:"company_id" db:"company_id"`
	BranchID     *uint64    `json:"branch_id" db:"branch_id"`
	AssignedTo   *uint64    `json:"assigned_to" db:"assigned_to"`
	IsActive     bool       `json:"is_active" db:"is_active"`
	CaseClosedAt *time.Time `json:"case_closed_at" db:"case_closed_at"`

	types.BaseEntity
}

// CreationTime возвращает время создания дела (нулевое время, если неизвестно).
func (c *Case) CreationTime() time.Time {
	if c.CreatedAt != nil {
		return *c.CreatedAt
	}
	return time.Time{}
}
