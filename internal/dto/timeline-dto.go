// Файл: internal/dto/timeline-dto.go
package dto

type TimelineEventResponseDTO struct {
	ID              uint64  `json:"id"`
	CaseID          uint64  `json:"case_id"`
	Stage           string  `json:"stage"`
	EventAt         string  `json:"event_at"`
	DurationInStage *int    `json:"duration_in_stage,omitempty"`
	Duration        *string `json:"duration,omitempty"`
	SLABreached     bool    `json:"sla_breached"`
	IsInternal      bool    `json:"is_internal"`
	Note            *string `json:"note,omitempty"`
}

type TimelineResponseDTO struct {
	CaseID uint64                     `json:"case_id"`
	Events []TimelineEventResponseDTO `json:"events"`
}

// StageDurationDTO - суммарное время одного этапа с разбивкой по заходам.
type StageDurationDTO struct {
	Stage        string `json:"stage"`
	TotalMinutes int    `json:"total_minutes"`
	Total        string `json:"total"`
	Visits       int    `json:"visits"`
	SLABreached  bool   `json:"sla_breached"`
}

type DurationSummaryResponseDTO struct {
	CaseID       uint64             `json:"case_id"`
	CurrentStage string             `json:"current_stage"`
	Stages       []StageDurationDTO `json:"stages"`
	TotalMinutes int                `json:"total_minutes"`
	Total        string             `json:"total"`
}
