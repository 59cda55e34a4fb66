package services

import (
	"context"
	"time"

	"case-system/internal/dto"
	"case-system/internal/entities"
	"case-system/internal/repositories"
	"case-system/pkg/calendar"
	"case-system/pkg/utils"
)

type TimelineServiceInterface interface {
	GetTimeline(ctx context.Context, caseID uint64, includeInternal bool) (*dto.TimelineResponseDTO, error)
	GetDurationSummary(ctx context.Context, caseID uint64, opts calendar.Options) (*dto.DurationSummaryResponseDTO, error)
}

type TimelineService struct {
	caseRepo      repositories.CaseRepositoryInterface
	timelineRepo  repositories.TimelineEventRepositoryInterface
	stageResolver StageResolverServiceInterface

	now func() time.Time
}

func NewTimelineService(
	caseRepo repositories.CaseRepositoryInterface,
	timelineRepo repositories.TimelineEventRepositoryInterface,
	stageResolver StageResolverServiceInterface,
) TimelineServiceInterface {
	return &TimelineService{
		caseRepo:      caseRepo,
		timelineRepo:  timelineRepo,
		stageResolver: stageResolver,
		now:           time.Now,
	}
}

// GetTimeline возвращает хронологию дела. Служебные записи
// отдаются только по явному запросу.
func (s *TimelineService) GetTimeline(ctx context.Context, caseID uint64, includeInternal bool) (*dto.TimelineResponseDTO, error) {
	if _, err := s.caseRepo.FindCase(ctx, caseID); err != nil {
		return nil, err
	}

	events, err := s.timelineRepo.FindByCaseID(ctx, caseID)
	if err != nil {
		return nil, err
	}

	result := &dto.TimelineResponseDTO{
		CaseID: caseID,
		Events: make([]dto.TimelineEventResponseDTO, 0, len(events)),
	}
	for i := range events {
		e := &events[i]
		if e.IsInternal && !includeInternal {
			continue
		}
		item := dto.TimelineEventResponseDTO{
			ID:              e.ID,
			CaseID:          e.CaseID,
			Stage:           string(e.Stage),
			EventAt:         e.EventAt.Local().Format("2006-01-02 15:04:05"),
			DurationInStage: e.DurationInStage,
			SLABreached:     e.SLABreached,
			IsInternal:      e.IsInternal,
			Note:            e.Note,
		}
		if e.DurationInStage != nil {
			formatted := utils.FormatMinutesToHumanReadable(*e.DurationInStage)
			item.Duration = &formatted
		}
		result.Events = append(result.Events, item)
	}
	return result, nil
}

// GetDurationSummary агрегирует время дела по этапам с учётом повторных
// заходов: каждый заход суммируется в общий итог своего этапа. Минуты
// считаются тем же деловым календарём, что и у эскалаций: нулевые opts
// дают настенное время, с UseBusinessHours - только рабочие окна.
func (s *TimelineService) GetDurationSummary(ctx context.Context, caseID uint64, opts calendar.Options) (*dto.DurationSummaryResponseDTO, error) {
	c, err := s.caseRepo.FindCase(ctx, caseID)
	if err != nil {
		return nil, err
	}

	events, err := s.timelineRepo.FindByCaseID(ctx, caseID)
	if err != nil {
		return nil, err
	}

	resolution := s.stageResolver.Resolve(c, events)
	spans := stageSpans(c, events, s.now(), opts)

	type stageAccumulator struct {
		totalMinutes int
		visits       int
		breached     bool
	}
	acc := make(map[entities.Stage]*stageAccumulator)
	for _, span := range spans {
		a, ok := acc[span.stage]
		if !ok {
			a = &stageAccumulator{}
			acc[span.stage] = a
		}
		a.totalMinutes += span.minutes
		a.visits++
		a.breached = a.breached || span.breached
	}

	result := &dto.DurationSummaryResponseDTO{
		CaseID:       caseID,
		CurrentStage: string(resolution.Stage),
		Stages:       make([]dto.StageDurationDTO, 0, len(acc)),
	}
	// Этапы в канонической последовательности
	for _, stage := range entities.Stages {
		a, ok := acc[stage]
		if !ok {
			continue
		}
		result.Stages = append(result.Stages, dto.StageDurationDTO{
			Stage:        string(stage),
			TotalMinutes: a.totalMinutes,
			Total:        utils.FormatMinutesToHumanReadable(a.totalMinutes),
			Visits:       a.visits,
			SLABreached:  a.breached,
		})
		result.TotalMinutes += a.totalMinutes
	}
	result.Total = utils.FormatMinutesToHumanReadable(result.TotalMinutes)
	return result, nil
}

type stageSpan struct {
	stage    entities.Stage
	minutes  int
	breached bool
}

// stageSpans разбивает хронологию на отрезки пребывания в этапах.
// Отрезок каждого события длится до следующего события другого этапа;
// последний отрезок открыт до закрытия дела либо до текущего момента.
func stageSpans(c *entities.Case, events []entities.TimelineEvent, now time.Time, opts calendar.Options) []stageSpan {
	meaningful := make([]entities.TimelineEvent, 0, len(events))
	for _, e := range events {
		if e.IsInternal {
			continue
		}
		meaningful = append(meaningful, e)
	}
	if len(meaningful) == 0 {
		return nil
	}

	spans := make([]stageSpan, 0)
	i := 0
	for i < len(meaningful) {
		start := meaningful[i]
		breached := start.SLABreached
		j := i + 1
		for j < len(meaningful) && meaningful[j].Stage == start.Stage {
			breached = breached || meaningful[j].SLABreached
			j++
		}

		var end time.Time
		if j < len(meaningful) {
			end = meaningful[j].EventAt
		} else if c.CaseClosedAt != nil {
			end = *c.CaseClosedAt
		} else {
			end = now
		}

		minutes := calendar.ElapsedMinutes(start.EventAt, end, opts)
		spans = append(spans, stageSpan{stage: start.Stage, minutes: minutes, breached: breached})
		i = j
	}
	return spans
}
