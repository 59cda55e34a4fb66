package services

import (
	"context"
	"sync"

	sq "github.com/Masterminds/squirrel"
	"go.uber.org/zap"

	"case-system/internal/dto"
	"case-system/internal/repositories"
	"case-system/pkg/types"
	"case-system/pkg/utils"
)

type DashboardServiceInterface interface {
	GetSLADashboard(ctx context.Context, companyID, branchID *uint64) (*dto.SLADashboardDTO, error)
}

type DashboardService struct {
	repo   repositories.DashboardRepositoryInterface
	logger *zap.Logger
}

func NewDashboardService(repo repositories.DashboardRepositoryInterface, logger *zap.Logger) DashboardServiceInterface {
	return &DashboardService{repo: repo, logger: logger}
}

// GetSLADashboard собирает сводку по просрочкам. Блоки запрашиваются
// параллельно; ошибка любого из них валит весь запрос.
func (s *DashboardService) GetSLADashboard(ctx context.Context, companyID, branchID *uint64) (*dto.SLADashboardDTO, error) {
	var securityBuilder sq.Sqlizer
	var preds []sq.Sqlizer
	if companyID != nil {
		preds = append(preds, sq.Eq{"c.company_id": *companyID})
	}
	if branchID != nil {
		preds = append(preds, sq.Eq{"c.branch_id": *branchID})
	}
	if len(preds) > 0 {
		securityBuilder = sq.And(preds)
	}

	var (
		wg       sync.WaitGroup
		alerts   *types.DashboardAlerts
		sla      *types.DashboardSLAStats
		byDay    []types.DashboardChartData
		byStage  []types.DashboardCountByGroup
		byLevel  []types.DashboardCountByGroup
		byRule   []types.DashboardCountByGroup
		timeStat []types.DashboardTimeByGroup

		errs []error
		mu   sync.Mutex
	)

	addTask := func(fn func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		}()
	}

	addTask(func() (err error) { alerts, err = s.repo.GetAlerts(ctx, securityBuilder); return })
	addTask(func() (err error) { sla, err = s.repo.GetSLAStats(ctx, securityBuilder); return })
	addTask(func() (err error) { byDay, err = s.repo.GetEscalationsByDay(ctx, securityBuilder); return })
	addTask(func() (err error) { byStage, err = s.repo.GetCountByStage(ctx, securityBuilder); return })
	addTask(func() (err error) { byLevel, err = s.repo.GetCountByLevel(ctx, securityBuilder); return })
	addTask(func() (err error) { byRule, err = s.repo.GetCountByRule(ctx, securityBuilder); return })
	addTask(func() (err error) { timeStat, err = s.repo.GetAvgTimeByStage(ctx, securityBuilder); return })

	wg.Wait()
	if len(errs) > 0 {
		s.logger.Error("Ошибка сборки сводки SLA", zap.Errors("errors", errs))
		return nil, errs[0]
	}

	for i := range timeStat {
		timeStat[i].AvgTimeFormatted = utils.FormatMinutesToHumanReadable(int(timeStat[i].AvgMinutes))
	}

	return &dto.SLADashboardDTO{
		Alerts:           alerts,
		SLA:              sla,
		EscalationsByDay: byDay,
		CountByStage:     byStage,
		CountByLevel:     byLevel,
		CountByRule:      byRule,
		TimeByStage:      timeStat,
	}, nil
}
