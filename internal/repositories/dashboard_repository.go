package repositories

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"case-system/pkg/types"
)

type DashboardRepositoryInterface interface {
	GetAlerts(ctx context.Context, securityCondition sq.Sqlizer) (*types.DashboardAlerts, error)
	GetSLAStats(ctx context.Context, securityCondition sq.Sqlizer) (*types.DashboardSLAStats, error)
	GetEscalationsByDay(ctx context.Context, securityCondition sq.Sqlizer) ([]types.DashboardChartData, error)
	GetCountByStage(ctx context.Context, securityCondition sq.Sqlizer) ([]types.DashboardCountByGroup, error)
	GetCountByLevel(ctx context.Context, securityCondition sq.Sqlizer) ([]types.DashboardCountByGroup, error)
	GetCountByRule(ctx context.Context, securityCondition sq.Sqlizer) ([]types.DashboardCountByGroup, error)
	GetAvgTimeByStage(ctx context.Context, securityCondition sq.Sqlizer) ([]types.DashboardTimeByGroup, error)
}

type DashboardRepository struct {
	storage *pgxpool.Pool
	logger  *zap.Logger
}

func NewDashboardRepository(storage *pgxpool.Pool, logger *zap.Logger) DashboardRepositoryInterface {
	return &DashboardRepository{storage: storage, logger: logger}
}

func applySecurity(b sq.SelectBuilder, securityCondition sq.Sqlizer) sq.SelectBuilder {
	if securityCondition != nil {
		return b.Where(securityCondition)
	}
	return b
}

// Открытые и критические эскалации
func (r *DashboardRepository) GetAlerts(ctx context.Context, securityCondition sq.Sqlizer) (*types.DashboardAlerts, error) {
	base := sq.Select(
		"COUNT(CASE WHEN NOT e.is_resolved THEN 1 END)",
		"COUNT(CASE WHEN NOT e.is_resolved AND e.escalation_level = 'level_3' THEN 1 END)",
	).From("escalations e").
		Join("cases c ON e.case_id = c.id")

	base = applySecurity(base, securityCondition)
	query, args, err := base.PlaceholderFormat(sq.Dollar).ToSql()
	if err != nil {
		return nil, err
	}

	stats := &types.DashboardAlerts{}
	err = r.storage.QueryRow(ctx, query, args...).Scan(&stats.OpenEscalations, &stats.CriticalEscalations)
	return stats, err
}

// Доля дел без просрочек среди завершённых
func (r *DashboardRepository) GetSLAStats(ctx context.Context, securityCondition sq.Sqlizer) (*types.DashboardSLAStats, error) {
	base := sq.Select(
		"COUNT(c.id)",
		"COUNT(CASE WHEN EXISTS (SELECT 1 FROM escalations e WHERE e.case_id = c.id) THEN 1 END)",
	).From("cases c").
		Where(sq.Eq{"c.status": []string{"resolved", "closed"}})

	base = applySecurity(base, securityCondition)
	query, args, err := base.PlaceholderFormat(sq.Dollar).ToSql()
	if err != nil {
		return nil, err
	}

	stats := &types.DashboardSLAStats{}
	if err = r.storage.QueryRow(ctx, query, args...).Scan(&stats.TotalCases, &stats.BreachedCases); err != nil {
		return nil, err
	}
	stats.OnTimeCases = stats.TotalCases - stats.BreachedCases
	if stats.TotalCases > 0 {
		stats.CompliancePct = float64(stats.OnTimeCases) / float64(stats.TotalCases) * 100
	}
	return stats, nil
}

// Динамика эскалаций за последние 7 дней
func (r *DashboardRepository) GetEscalationsByDay(ctx context.Context, securityCondition sq.Sqlizer) ([]types.DashboardChartData, error) {
	base := sq.Select(
		"TO_CHAR(e.escalated_at, 'YYYY-MM-DD') AS label",
		"COUNT(e.id) AS value",
	).From("escalations e").
		Join("cases c ON e.case_id = c.id").
		Where("e.escalated_at >= NOW() - INTERVAL '7 days'").
		GroupBy("label").
		OrderBy("label")

	base = applySecurity(base, securityCondition)
	return r.queryChart(ctx, base)
}

func (r *DashboardRepository) GetCountByStage(ctx context.Context, securityCondition sq.Sqlizer) ([]types.DashboardCountByGroup, error) {
	base := sq.Select("e.stage AS group_name", "COUNT(e.id) AS count").
		From("escalations e").
		Join("cases c ON e.case_id = c.id").
		GroupBy("e.stage").
		OrderBy("count DESC")
	base = applySecurity(base, securityCondition)
	return r.queryCountGroups(ctx, base)
}

func (r *DashboardRepository) GetCountByLevel(ctx context.Context, securityCondition sq.Sqlizer) ([]types.DashboardCountByGroup, error) {
	base := sq.Select("e.escalation_level AS group_name", "COUNT(e.id) AS count").
		From("escalations e").
		Join("cases c ON e.case_id = c.id").
		GroupBy("e.escalation_level").
		OrderBy("count DESC")
	base = applySecurity(base, securityCondition)
	return r.queryCountGroups(ctx, base)
}

func (r *DashboardRepository) GetCountByRule(ctx context.Context, securityCondition sq.Sqlizer) ([]types.DashboardCountByGroup, error) {
	base := sq.Select("rr.name AS group_name", "COUNT(e.id) AS count").
		From("escalations e").
		Join("cases c ON e.case_id = c.id").
		Join("escalation_rules rr ON e.rule_id = rr.id").
		GroupBy("rr.name").
		OrderBy("count DESC").
		Limit(10)
	base = applySecurity(base, securityCondition)
	return r.queryCountGroups(ctx, base)
}

// Среднее время пребывания на этапе по событиям хронологии
func (r *DashboardRepository) GetAvgTimeByStage(ctx context.Context, securityCondition sq.Sqlizer) ([]types.DashboardTimeByGroup, error) {
	base := sq.Select(
		"t.stage AS group_name",
		"COALESCE(AVG(t.duration_in_stage), 0) AS avg_minutes",
	).From("timeline_events t").
		Join("cases c ON t.case_id = c.id").
		Where("t.duration_in_stage IS NOT NULL").
		GroupBy("t.stage")

	base = applySecurity(base, securityCondition)
	query, args, err := base.PlaceholderFormat(sq.Dollar).ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.storage.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]types.DashboardTimeByGroup, 0)
	for rows.Next() {
		var g types.DashboardTimeByGroup
		if err := rows.Scan(&g.GroupName, &g.AvgMinutes); err != nil {
			return nil, err
		}
		result = append(result, g)
	}
	return result, rows.Err()
}

func (r *DashboardRepository) queryCountGroups(ctx context.Context, builder sq.SelectBuilder) ([]types.DashboardCountByGroup, error) {
	query, args, err := builder.PlaceholderFormat(sq.Dollar).ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.storage.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]types.DashboardCountByGroup, 0)
	for rows.Next() {
		var g types.DashboardCountByGroup
		if err := rows.Scan(&g.GroupName, &g.Count); err != nil {
			return nil, err
		}
		result = append(result, g)
	}
	return result, rows.Err()
}

func (r *DashboardRepository) queryChart(ctx context.Context, builder sq.SelectBuilder) ([]types.DashboardChartData, error) {
	query, args, err := builder.PlaceholderFormat(sq.Dollar).ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.storage.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]types.DashboardChartData, 0)
	for rows.Next() {
		var g types.DashboardChartData
		if err := rows.Scan(&g.Label, &g.Value); err != nil {
			return nil, err
		}
		result = append(result, g)
	}
	return result, rows.Err()
}
