package entities

import "time"

// SLAReportFilter - параметры выборки для отчёта по просрочкам.
type SLAReportFilter struct {
	DateFrom  *time.Time
	DateTo    *time.Time
	CompanyID *uint64
	BranchID  *uint64
	Stages    []string
	Levels    []string
	OnlyOpen  bool
	Page      int
	PerPage   int
}

// SLAReportItem - строка отчёта: эскалация вместе с контекстом дела.
type SLAReportItem struct {
	EscalationID   uint64
	CaseID         uint64
	CaseType       string
	Category       *string
	CompanyID      uint64
	BranchID       *uint64
	RuleName       string
	Stage          string
	Level          string
	Reason         string
	ElapsedMinutes int
	ThresholdUsed  int
	EscalatedAt    time.Time
	IsResolved     bool
	ResolvedAt     *time.Time
	ResolvedByFio  *string
	ResolutionNote *string
	AssigneeFio    *string
}
