package types

// Alerts
type DashboardAlerts struct {
	OpenEscalations     int64 `json:"open_escalations"`
	CriticalEscalations int64 `json:"critical_escalations"`
}

type DashboardSLAStats struct {
	TotalCases    int64   `json:"total_cases"`
	BreachedCases int64   `json:"breached_cases"`
	OnTimeCases   int64   `json:"on_time_cases"`
	CompliancePct float64 `json:"compliance_pct"`
}

type DashboardCountByGroup struct {
	GroupName string `json:"group_name" db:"group_name"`
	Count     int64  `json:"count" db:"count"`
}

type DashboardTimeByGroup struct {
	GroupName        string  `json:"group_name" db:"group_name"`
	AvgMinutes       float64 `json:"avg_minutes" db:"avg_minutes"`
	AvgTimeFormatted string  `json:"avg_time_formatted" db:"-"`
}

type DashboardChartData struct {
	Label string `json:"label" db:"label"`
	Value int64  `json:"value" db:"value"`
}
