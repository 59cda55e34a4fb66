package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"case-system/internal/entities"
	"case-system/internal/events"
	"case-system/internal/repositories"
	"case-system/pkg/eventbus"
	apperrors "case-system/pkg/errors"
)

type EscalationExecutorServiceInterface interface {
	Execute(ctx context.Context, decision EscalationDecision) (*entities.Escalation, error)
}

// EscalationExecutorService фиксирует эскалацию и выполняет действия правила:
// переназначение исполнителя, смена приоритета, отметка просрочки в хронологии.
// Сама запись создаётся в транзакции; действия правила и уведомления идут
// после коммита и не могут её откатить.
type EscalationExecutorService struct {
	txManager      repositories.TxManagerInterface
	caseRepo       repositories.CaseRepositoryInterface
	escalationRepo repositories.EscalationRepositoryInterface
	timelineRepo   repositories.TimelineEventRepositoryInterface
	userRepo       repositories.UserRepositoryInterface
	bus            *eventbus.Bus
	logger         *zap.Logger
}

func NewEscalationExecutorService(
	txManager repositories.TxManagerInterface,
	caseRepo repositories.CaseRepositoryInterface,
	escalationRepo repositories.EscalationRepositoryInterface,
	timelineRepo repositories.TimelineEventRepositoryInterface,
	userRepo repositories.UserRepositoryInterface,
	bus *eventbus.Bus,
	logger *zap.Logger,
) EscalationExecutorServiceInterface {
	return &EscalationExecutorService{
		txManager:      txManager,
		caseRepo:       caseRepo,
		escalationRepo: escalationRepo,
		timelineRepo:   timelineRepo,
		userRepo:       userRepo,
		bus:            bus,
		logger:         logger,
	}
}

func (s *EscalationExecutorService) Execute(ctx context.Context, decision EscalationDecision) (*entities.Escalation, error) {
	rule := decision.Rule
	c := decision.Case

	escalation := entities.Escalation{
		CaseID: c.ID,
		RuleID: rule.ID,
		Stage:  decision.Stage,
		Level:  decision.Level,
		Reason: fmt.Sprintf("Этап '%s' просрочен: %d мин при пороге %d мин (правило '%s')",
			decision.Stage, decision.ElapsedMinutes, decision.ThresholdUsed, rule.Name),
		ElapsedMinutes: decision.ElapsedMinutes,
		ThresholdUsed:  decision.ThresholdUsed,
		EscalatedAt:    decision.At,
	}

	err := s.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		// Замещение: более высокий уровень того же правила закрывает открытые младшие
		if _, err := s.escalationRepo.ResolveLowerLevelsInTx(ctx, tx, c.ID, rule.ID, decision.Stage,
			lowerLevels(decision.Level), "Заменена эскалацией более высокого уровня"); err != nil {
			return fmt.Errorf("не удалось закрыть младшие эскалации: %w", err)
		}

		newID, err := s.escalationRepo.CreateInTx(ctx, tx, escalation)
		if err != nil {
			return err
		}
		escalation.ID = newID

		return s.timelineRepo.MarkBreachedInTx(ctx, tx, c.ID, decision.Stage)
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			return nil, apperrors.ErrConflict
		}
		return nil, err
	}

	// Действия правила идут после фиксации записи, каждое само по себе:
	// сбой переназначения или смены приоритета не отменяет саму эскалацию
	s.applyRuleActions(ctx, &escalation, &c, &rule)

	s.bus.Publish(ctx, events.EscalationRaisedEvent{
		Escalation: escalation,
		Rule:       rule,
		Case:       c,
	})

	return &escalation, nil
}

// applyRuleActions выполняет действия правила по уже созданной эскалации.
// Каждое действие самостоятельно: сбой одного логируется и не мешает
// остальным, запись об эскалации при этом остаётся.
func (s *EscalationExecutorService) applyRuleActions(ctx context.Context, escalation *entities.Escalation, c *entities.Case, rule *entities.EscalationRule) {
	changed := false

	if target := s.resolveReassignTarget(ctx, c, rule); target != nil {
		if err := s.caseRepo.UpdateAssignee(ctx, c.ID, target.ID); err != nil {
			s.logger.Warn("Не удалось переназначить дело, эскалация уже зафиксирована",
				zap.Uint64("case_id", c.ID),
				zap.Uint64("escalation_id", escalation.ID),
				zap.Uint64("target_id", target.ID),
				zap.Error(err),
			)
		} else {
			escalation.WasReassigned = true
			escalation.ReassignedFrom = c.AssignedTo
			escalation.ReassignedTo = &target.ID
			changed = true
		}
	}

	if rule.AutoChangePriority && rule.NewPriority != nil && *rule.NewPriority != c.Priority {
		if err := s.caseRepo.UpdatePriority(ctx, c.ID, *rule.NewPriority); err != nil {
			s.logger.Warn("Не удалось сменить приоритет, эскалация уже зафиксирована",
				zap.Uint64("case_id", c.ID),
				zap.Uint64("escalation_id", escalation.ID),
				zap.Int("new_priority", *rule.NewPriority),
				zap.Error(err),
			)
		} else {
			old := c.Priority
			escalation.PriorityChanged = true
			escalation.OldPriority = &old
			escalation.NewPriority = rule.NewPriority
			changed = true
		}
	}

	if changed {
		if err := s.escalationRepo.SetActionResults(ctx, escalation.ID, *escalation); err != nil {
			s.logger.Warn("Не удалось сохранить итоги действий правила",
				zap.Uint64("escalation_id", escalation.ID),
				zap.Error(err),
			)
		}
	}
}

// resolveReassignTarget находит нового исполнителя по настройкам правила.
// Явный получатель важнее ролей; среди кандидатов по ролям берём первого.
// Ошибки справочника пользователей не фатальны: без кандидата просто
// остаётся текущий исполнитель.
func (s *EscalationExecutorService) resolveReassignTarget(ctx context.Context, c *entities.Case, rule *entities.EscalationRule) *entities.User {
	if !rule.AutoReassign {
		return nil
	}

	targetID := rule.AutoReassignToID
	if targetID == nil {
		targetID = rule.EscalationToUserID
	}
	if targetID != nil {
		user, err := s.userRepo.FindUser(ctx, *targetID)
		if err != nil {
			s.logger.Warn("Получатель переназначения из правила не найден, оставляем текущего исполнителя",
				zap.Uint64("case_id", c.ID),
				zap.Uint64("rule_id", rule.ID),
				zap.Uint64("target_id", *targetID),
				zap.Error(err),
			)
			return nil
		}
		return user
	}

	if len(rule.EscalationToRoles) > 0 {
		candidates, err := s.userRepo.FindByRoles(ctx, c.CompanyID, c.BranchID, rule.EscalationToRoles)
		if err != nil {
			s.logger.Warn("Не удалось найти кандидатов по ролям",
				zap.Uint64("case_id", c.ID),
				zap.Uint64("rule_id", rule.ID),
				zap.Error(err),
			)
			return nil
		}
		if len(candidates) > 0 {
			return &candidates[0]
		}
		s.logger.Warn("Нет кандидатов для автопереназначения, оставляем текущего исполнителя",
			zap.Uint64("case_id", c.ID),
			zap.Uint64("rule_id", rule.ID),
			zap.Strings("roles", rule.EscalationToRoles),
		)
	}
	return nil
}
