package entities

import (
	"time"

	"case-system/pkg/types"
)

// Escalation - факт просрочки этапа по конкретному правилу.
// Открытая пара (case_id, rule_id) уникальна, повторная обработка не создаёт дубликат.
type Escalation struct {
	ID     uint64 `json:"id" db:"id"`
	CaseID uint64 `json:"case_id" db:"case_id"`
	RuleID uint64 `json:"rule_id" db:"rule_id"`

	Stage          Stage           `json:"stage" db:"stage"`
	Level          EscalationLevel `json:"escalation_level" db:"escalation_level"`
	Reason         string          `json:"reason" db:"reason"`
	ElapsedMinutes int             `json:"elapsed_minutes" db:"elapsed_minutes"`
	ThresholdUsed  int             `json:"threshold_used" db:"threshold_used"`
	EscalatedAt    time.Time       `json:"escalated_at" db:"escalated_at"`

	IsResolved     bool       `json:"is_resolved" db:"is_resolved"`
	ResolvedBy     *uint64    `json:"resolved_by" db:"resolved_by"`
	ResolvedAt     *time.Time `json:"resolved_at" db:"resolved_at"`
	ResolutionNote *string    `json:"resolution_note" db:"resolution_note"`

	WasReassigned  bool    `json:"was_reassigned" db:"was_reassigned"`
	ReassignedFrom *uint64 `json:"reassigned_from" db:"reassigned_from"`
	ReassignedTo   *uint64 `json:"reassigned_to" db:"reassigned_to"`

	PriorityChanged bool `json:"priority_changed" db:"priority_changed"`
	OldPriority     *int `json:"old_priority" db:"old_priority"`
	NewPriority     *int `json:"new_priority" db:"new_priority"`

	NotifiedUserIDs []uint64 `json:"notified_user_ids" db:"notified_user_ids"`

	types.BaseEntity
}
