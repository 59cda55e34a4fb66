package services

import (
	"time"

	"go.uber.org/zap"

	"case-system/internal/entities"
)

// StageResolution - текущий этап дела и момент входа в него.
type StageResolution struct {
	Stage     entities.Stage
	EnteredAt time.Time
}

type StageResolverServiceInterface interface {
	Resolve(c *entities.Case, events []entities.TimelineEvent) StageResolution
}

type StageResolverService struct {
	logger *zap.Logger
}

func NewStageResolverService(logger *zap.Logger) StageResolverServiceInterface {
	return &StageResolverService{logger: logger}
}

// statusStageFallback - соответствие статуса дела этапу, когда хронология пуста.
var statusStageFallback = map[entities.CaseStatus]entities.Stage{
	entities.CaseStatusOpen:          entities.StageSubmission,
	entities.CaseStatusAssigned:      entities.StageAssignment,
	entities.CaseStatusInProgress:    entities.StageInvestigation,
	entities.CaseStatusPendingReview: entities.StageResolution,
	entities.CaseStatusResolved:      entities.StageResolution,
	entities.CaseStatusClosed:        entities.StageResolution,
}

// Resolve определяет текущий этап по последнему событию хронологии.
// Момент входа - первое событие непрерывной завершающей серии этого этапа:
// если дело вернулось на этап повторно, прошлые заходы не учитываются.
// Служебные события (is_internal) этап не меняют.
func (s *StageResolverService) Resolve(c *entities.Case, events []entities.TimelineEvent) StageResolution {
	fallback := func() StageResolution {
		stage, ok := statusStageFallback[c.Status]
		if !ok {
			s.logger.Warn("Неизвестный статус дела, считаем этапом подачи",
				zap.Uint64("case_id", c.ID),
				zap.String("status", string(c.Status)),
			)
			stage = entities.StageSubmission
		}
		return StageResolution{Stage: stage, EnteredAt: c.CreationTime()}
	}

	// Служебные записи отбрасываем сразу
	meaningful := make([]entities.TimelineEvent, 0, len(events))
	for _, e := range events {
		if e.IsInternal {
			continue
		}
		meaningful = append(meaningful, e)
	}
	if len(meaningful) == 0 {
		return fallback()
	}

	last := meaningful[len(meaningful)-1]
	if !entities.ValidStage(string(last.Stage)) {
		s.logger.Warn("Неизвестный этап в хронологии, считаем этапом подачи",
			zap.Uint64("case_id", c.ID),
			zap.String("stage", string(last.Stage)),
		)
		return StageResolution{Stage: entities.StageSubmission, EnteredAt: c.CreationTime()}
	}

	enteredAt := last.EventAt
	for i := len(meaningful) - 1; i >= 0; i-- {
		if meaningful[i].Stage != last.Stage {
			break
		}
		enteredAt = meaningful[i].EventAt
	}

	return StageResolution{Stage: last.Stage, EnteredAt: enteredAt}
}
