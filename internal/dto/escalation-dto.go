// Файл: internal/dto/escalation-dto.go
package dto

type ResolveEscalationDTO struct {
	Note *string `json:"note,omitempty" validate:"omitempty,min=3"`
}

type EscalationResponseDTO struct {
	ID     uint64 `json:"id"`
	CaseID uint64 `json:"case_id"`
	RuleID uint64 `json:"rule_id"`

	RuleName       string `json:"rule_name,omitempty"`
	Stage          string `json:"stage"`
	Level          string `json:"escalation_level"`
	Reason         string `json:"reason"`
	ElapsedMinutes int    `json:"elapsed_minutes"`
	Elapsed        string `json:"elapsed"`
	ThresholdUsed  int    `json:"threshold_used"`
	EscalatedAt    string `json:"escalated_at"`

	IsResolved     bool    `json:"is_resolved"`
	ResolvedBy     *uint64 `json:"resolved_by,omitempty"`
	ResolvedAt     *string `json:"resolved_at,omitempty"`
	ResolutionNote *string `json:"resolution_note,omitempty"`

	WasReassigned  bool    `json:"was_reassigned"`
	ReassignedFrom *uint64 `json:"reassigned_from,omitempty"`
	ReassignedTo   *uint64 `json:"reassigned_to,omitempty"`

	PriorityChanged bool `json:"priority_changed"`
	OldPriority     *int `json:"old_priority,omitempty"`
	NewPriority     *int `json:"new_priority,omitempty"`

	NotifiedUserIDs []uint64 `json:"notified_user_ids,omitempty"`
}

type EscalationListResponseDTO struct {
	List       []EscalationResponseDTO `json:"list"`
	TotalCount uint64                  `json:"total_count"`
}
