package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"case-system/internal/entities"
	"case-system/internal/events"
	"case-system/internal/repositories"
	"case-system/pkg/calendar"
	"case-system/pkg/eventbus"
	apperrors "case-system/pkg/errors"
)

// EscalationDecision - решение оценщика: какое правило сработало и на каком уровне.
type EscalationDecision struct {
	Case           entities.Case
	Rule           entities.EscalationRule
	Stage          entities.Stage
	EnteredAt      time.Time
	At             time.Time
	ElapsedMinutes int
	Level          entities.EscalationLevel
	ThresholdUsed  int
}

// levelRank задаёт порядок уровней для сравнения и замещения.
var levelRank = map[entities.EscalationLevel]int{
	entities.LevelOne:   1,
	entities.LevelTwo:   2,
	entities.LevelThree: 3,
}

func lowerLevels(level entities.EscalationLevel) []entities.EscalationLevel {
	rank := levelRank[level]
	lower := make([]entities.EscalationLevel, 0, 2)
	for l, r := range levelRank {
		if r < rank {
			lower = append(lower, l)
		}
	}
	return lower
}

type EscalationEvaluatorServiceInterface interface {
	EvaluateCase(ctx context.Context, c *entities.Case) (int, error)
}

type EscalationEvaluatorService struct {
	timelineRepo   repositories.TimelineEventRepositoryInterface
	escalationRepo repositories.EscalationRepositoryInterface
	cacheRepo      repositories.CacheRepositoryInterface
	stageResolver  StageResolverServiceInterface
	ruleMatcher    RuleMatcherServiceInterface
	ruleService    EscalationRuleServiceInterface
	executor       EscalationExecutorServiceInterface
	bus            *eventbus.Bus
	logger         *zap.Logger

	// подменяется в тестах
	now func() time.Time
}

func NewEscalationEvaluatorService(
	timelineRepo repositories.TimelineEventRepositoryInterface,
	escalationRepo repositories.EscalationRepositoryInterface,
	cacheRepo repositories.CacheRepositoryInterface,
	stageResolver StageResolverServiceInterface,
	ruleMatcher RuleMatcherServiceInterface,
	ruleService EscalationRuleServiceInterface,
	executor EscalationExecutorServiceInterface,
	bus *eventbus.Bus,
	logger *zap.Logger,
) EscalationEvaluatorServiceInterface {
	return &EscalationEvaluatorService{
		timelineRepo:   timelineRepo,
		escalationRepo: escalationRepo,
		cacheRepo:      cacheRepo,
		stageResolver:  stageResolver,
		ruleMatcher:    ruleMatcher,
		ruleService:    ruleService,
		executor:       executor,
		bus:            bus,
		logger:         logger,
		now:            time.Now,
	}
}

// EvaluateCase проверяет одно дело по всем действующим правилам.
// Возвращает число поднятых эскалаций. Ошибка одного правила
// не прерывает обработку остальных.
func (s *EscalationEvaluatorService) EvaluateCase(ctx context.Context, c *entities.Case) (int, error) {
	timeline, err := s.timelineRepo.FindByCaseID(ctx, c.ID)
	if err != nil {
		return 0, fmt.Errorf("не удалось получить хронологию дела %d: %w", c.ID, err)
	}

	resolution := s.stageResolver.Resolve(c, timeline)

	rules, err := s.ruleService.GetActiveRules(ctx)
	if err != nil {
		return 0, fmt.Errorf("не удалось получить активные правила: %w", err)
	}

	matched := s.ruleMatcher.Match(c, resolution.Stage, rules)
	if len(matched) == 0 {
		return 0, nil
	}

	now := s.now()
	raised := 0

	for i := range matched {
		rule := matched[i]
		count, err := s.evaluateRule(ctx, c, &rule, resolution, now)
		if err != nil {
			s.logger.Error("Ошибка оценки правила, продолжаем со следующим",
				zap.Uint64("case_id", c.ID),
				zap.Uint64("rule_id", rule.ID),
				zap.Error(err),
			)
			continue
		}
		raised += count
	}
	return raised, nil
}

func (s *EscalationEvaluatorService) evaluateRule(ctx context.Context, c *entities.Case, rule *entities.EscalationRule, resolution StageResolution, now time.Time) (int, error) {
	if rule.EscalationThreshold < 1 {
		s.logger.Warn("Правило с некорректным порогом пропущено",
			zap.Uint64("rule_id", rule.ID),
			zap.Int("escalation_threshold", rule.EscalationThreshold),
		)
		return 0, nil
	}

	elapsed := calendar.ElapsedMinutes(resolution.EnteredAt, now, rule.CalendarOptions())

	level, threshold, crossed := effectiveLevel(rule, elapsed)
	if !crossed {
		if rule.WarningThreshold != nil && elapsed >= *rule.WarningThreshold {
			s.publishWarning(ctx, c, rule, resolution.Stage, elapsed, now)
		}
		return 0, nil
	}

	existing, err := s.escalationRepo.FindUnresolvedByCaseAndRule(ctx, c.ID, rule.ID)
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return 0, err
	}
	if existing != nil && levelRank[existing.Level] >= levelRank[level] {
		// Уже эскалировано на этом или более высоком уровне
		return 0, nil
	}

	decision := EscalationDecision{
		Case:           *c,
		Rule:           *rule,
		Stage:          resolution.Stage,
		EnteredAt:      resolution.EnteredAt,
		At:             now,
		ElapsedMinutes: elapsed,
		Level:          level,
		ThresholdUsed:  threshold,
	}

	escalation, err := s.executor.Execute(ctx, decision)
	if err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			// Параллельный проход успел раньше
			return 0, nil
		}
		return 0, err
	}
	if escalation == nil {
		return 0, nil
	}

	s.logger.Info("Поднята эскалация",
		zap.Uint64("case_id", c.ID),
		zap.Uint64("rule_id", rule.ID),
		zap.String("stage", string(resolution.Stage)),
		zap.String("level", string(level)),
		zap.Int("elapsed_minutes", elapsed),
	)
	return 1, nil
}

// effectiveLevel выбирает уровень по пройденным порогам: критический порог
// поднимает эскалацию сразу на верхний уровень.
func effectiveLevel(rule *entities.EscalationRule, elapsed int) (entities.EscalationLevel, int, bool) {
	if rule.CriticalThreshold != nil && elapsed >= *rule.CriticalThreshold {
		return entities.LevelThree, *rule.CriticalThreshold, true
	}
	if elapsed >= rule.EscalationThreshold {
		return rule.Level, rule.EscalationThreshold, true
	}
	return "", 0, false
}

// publishWarning шлёт предупреждение без записи в базу.
// Повторные предупреждения по той же паре (дело, правило) гасим через кеш.
func (s *EscalationEvaluatorService) publishWarning(ctx context.Context, c *entities.Case, rule *entities.EscalationRule, stage entities.Stage, elapsed int, now time.Time) {
	key := fmt.Sprintf("escalation:warning_sent:%d:%d", c.ID, rule.ID)
	if val, err := s.cacheRepo.Get(ctx, key); err == nil && val != "" {
		return
	}
	if err := s.cacheRepo.Set(ctx, key, "1", 24*time.Hour); err != nil {
		s.logger.Warn("Не удалось отметить отправку предупреждения", zap.Error(err))
	}

	s.bus.Publish(ctx, events.EscalationWarningEvent{
		Case:           *c,
		Rule:           *rule,
		Stage:          stage,
		ElapsedMinutes: elapsed,
		Threshold:      *rule.WarningThreshold,
		At:             now,
	})
}
