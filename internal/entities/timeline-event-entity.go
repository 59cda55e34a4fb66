package entities

import (
	"time"

	"github.com/google/uuid"
)

// Stage - этап обработки дела.
type Stage string

const (
	StageSubmission    Stage = "submission"
	StageTriage        Stage = "triage"
	StageAssignment    Stage = "assignment"
	StageInvestigation Stage = "investigation"
	StageResolution    Stage = "resolution"
)

// Stages - все этапы в порядке прохождения.
var Stages = []Stage{
	StageSubmission,
	StageTriage,
	StageAssignment,
	StageInvestigation,
	StageResolution,
}

func ValidStage(s string) bool {
	for _, stage := range Stages {
		if string(stage) == s {
			return true
		}
	}
	return false
}

// TimelineEvent - неизменяемая запись о переходе дела между этапами.
// События дела упорядочены по EventAt; последняя запись определяет текущий этап.
type TimelineEvent struct {
	ID              uint64     `json:"id" db:"id"`
	CaseID          uint64     `json:"case_id" db:"case_id"`
	Stage           Stage      `json:"stage" db:"stage"`
	EventAt         time.Time  `json:"event_at" db:"event_at"`
	DurationInStage *int       `json:"duration_in_stage" db:"duration_in_stage"` // минуты в предыдущем этапе
	SLABreached     bool       `json:"sla_breached" db:"sla_breached"`
	IsInternal      bool       `json:"is_internal" db:"is_internal"`
	CompanyID       uint64     `json:"company_id" db:"company_id"`
	BranchID        *uint64    `json:"branch_id" db:"branch_id"`
	TxID            *uuid.UUID `json:"tx_id" db:"tx_id"`
	Note            *string    `json:"note" db:"note"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
}
