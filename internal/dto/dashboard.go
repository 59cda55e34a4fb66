package dto

import "case-system/pkg/types"

type SLADashboardDTO struct {
	Alerts           *types.DashboardAlerts        `json:"alerts"`
	SLA              *types.DashboardSLAStats      `json:"sla"`
	EscalationsByDay []types.DashboardChartData    `json:"escalations_by_day"`
	CountByStage     []types.DashboardCountByGroup `json:"count_by_stage"`
	CountByLevel     []types.DashboardCountByGroup `json:"count_by_level"`
	CountByRule      []types.DashboardCountByGroup `json:"count_by_rule"`
	TimeByStage      []types.DashboardTimeByGroup  `json:"time_by_stage"`
}
