package services

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"case-system/internal/entities"
	"case-system/pkg/eventbus"
	apperrors "case-system/pkg/errors"
)

type stubTxManager struct{}

func (s *stubTxManager) RunInTransaction(ctx context.Context, fn func(tx pgx.Tx) error) error {
	return fn(nil)
}

type stubUserRepo struct {
	byID    map[uint64]*entities.User
	byRoles []entities.User
}

func (s *stubUserRepo) FindUser(ctx context.Context, id uint64) (*entities.User, error) {
	if u, ok := s.byID[id]; ok {
		return u, nil
	}
	return nil, apperrors.ErrNotFound
}

func (s *stubUserRepo) FindBranchAdmins(ctx context.Context, branchID uint64) ([]entities.User, error) {
	return nil, nil
}

func (s *stubUserRepo) FindCompanyAdmins(ctx context.Context, companyID uint64) ([]entities.User, error) {
	return nil, nil
}

func (s *stubUserRepo) FindSuperAdmins(ctx context.Context) ([]entities.User, error) {
	return nil, nil
}

func (s *stubUserRepo) FindByRoles(ctx context.Context, companyID uint64, branchID *uint64, roles []string) ([]entities.User, error) {
	return s.byRoles, nil
}

type executorFixture struct {
	svc            *EscalationExecutorService
	caseRepo       *stubCaseRepo
	escalationRepo *stubEscalationRepo
	userRepo       *stubUserRepo
}

func newExecutorFixture(t *testing.T) *executorFixture {
	t.Helper()
	logger := zap.NewNop()
	f := &executorFixture{
		caseRepo:       &stubCaseRepo{byID: map[uint64]*entities.Case{}},
		escalationRepo: &stubEscalationRepo{open: map[uint64]*entities.Escalation{}},
		userRepo:       &stubUserRepo{byID: map[uint64]*entities.User{}},
	}
	f.svc = &EscalationExecutorService{
		txManager:      &stubTxManager{},
		caseRepo:       f.caseRepo,
		escalationRepo: f.escalationRepo,
		timelineRepo:   &stubTimelineRepo{},
		userRepo:       f.userRepo,
		bus:            eventbus.New(logger),
		logger:         logger,
	}
	return f
}

func decisionFor(t *testing.T, rule entities.EscalationRule) EscalationDecision {
	t.Helper()
	c := testCase(t, entities.CaseStatusInProgress, "2025-03-10 09:00")
	return EscalationDecision{
		Case:           *c,
		Rule:           rule,
		Stage:          entities.StageInvestigation,
		EnteredAt:      mustTime(t, "2025-03-10 12:00"),
		At:             mustTime(t, "2025-03-10 14:10"),
		ElapsedMinutes: 130,
		ThresholdUsed:  120,
		Level:          entities.LevelTwo,
	}
}

func TestExecute_PersistsEscalationRecord(t *testing.T) {
	f := newExecutorFixture(t)
	rule := makeRule(1, "просрочка расследования")

	escalation, err := f.svc.Execute(context.Background(), decisionFor(t, rule))
	require.NoError(t, err)

	assert.Equal(t, uint64(1), escalation.ID)
	assert.Equal(t, entities.LevelTwo, escalation.Level)
	assert.Equal(t, 130, escalation.ElapsedMinutes)
	assert.Equal(t, 120, escalation.ThresholdUsed)
	assert.Contains(t, escalation.Reason, "просрочка расследования")
	assert.False(t, escalation.WasReassigned)
	assert.False(t, escalation.PriorityChanged)

	require.Len(t, f.escalationRepo.created, 1)
	// младшие уровни закрываются в той же транзакции
	require.Len(t, f.escalationRepo.closed, 1)
	assert.ElementsMatch(t, []entities.EscalationLevel{entities.LevelOne}, f.escalationRepo.closed[0].levels)
}

func TestExecute_SupersedeScopedToOwnRule(t *testing.T) {
	f := newExecutorFixture(t)
	rule := makeRule(7, "правило со своими уровнями")

	_, err := f.svc.Execute(context.Background(), decisionFor(t, rule))
	require.NoError(t, err)

	// закрываются только младшие эскалации этого же правила:
	// открытые записи других правил по тому же делу остаются
	require.Len(t, f.escalationRepo.closed, 1)
	assert.Equal(t, uint64(7), f.escalationRepo.closed[0].ruleID)
}

func TestExecute_AutoReassignToExplicitUser(t *testing.T) {
	f := newExecutorFixture(t)
	target := uint64(15)
	f.userRepo.byID[target] = &entities.User{ID: target, Fio: "Каримов Д.Р.", Email: "d.karimov@corp.tj"}

	rule := makeRule(1, "правило с переназначением")
	rule.AutoReassign = true
	rule.AutoReassignToID = &target

	decision := decisionFor(t, rule)
	previous := uint64(3)
	decision.Case.AssignedTo = &previous

	escalation, err := f.svc.Execute(context.Background(), decision)
	require.NoError(t, err)

	assert.True(t, escalation.WasReassigned)
	require.NotNil(t, escalation.ReassignedFrom)
	assert.Equal(t, previous, *escalation.ReassignedFrom)
	require.NotNil(t, escalation.ReassignedTo)
	assert.Equal(t, target, *escalation.ReassignedTo)
	assert.Equal(t, target, f.caseRepo.assignees[decision.Case.ID])

	// итог действия дописывается в уже созданную запись
	require.Len(t, f.escalationRepo.actions, 1)
	assert.True(t, f.escalationRepo.actions[0].WasReassigned)
}

func TestExecute_AutoReassignByRole(t *testing.T) {
	f := newExecutorFixture(t)
	f.userRepo.byRoles = []entities.User{
		{ID: 21, Fio: "Саидова М.А.", Role: entities.RoleBranchAdmin},
		{ID: 22, Fio: "Рахимов Ф.С.", Role: entities.RoleBranchAdmin},
	}

	rule := makeRule(1, "переназначение на роль")
	rule.AutoReassign = true
	rule.EscalationToRoles = []string{entities.RoleBranchAdmin}

	escalation, err := f.svc.Execute(context.Background(), decisionFor(t, rule))
	require.NoError(t, err)

	require.NotNil(t, escalation.ReassignedTo)
	assert.Equal(t, uint64(21), *escalation.ReassignedTo)
}

func TestExecute_MissingReassignTargetKeepsEscalation(t *testing.T) {
	f := newExecutorFixture(t)
	missing := uint64(404)

	rule := makeRule(1, "получатель удалён")
	rule.AutoReassign = true
	rule.AutoReassignToID = &missing

	// просрочка фиксируется даже при устаревшей настройке правила:
	// само переназначение просто не выполняется
	escalation, err := f.svc.Execute(context.Background(), decisionFor(t, rule))
	require.NoError(t, err)
	require.Len(t, f.escalationRepo.created, 1)
	assert.False(t, escalation.WasReassigned)
	assert.Nil(t, escalation.ReassignedTo)
	assert.Empty(t, f.caseRepo.assignees)
	assert.Empty(t, f.escalationRepo.actions)
}

func TestExecute_SideEffectFailureKeepsEscalation(t *testing.T) {
	f := newExecutorFixture(t)
	target := uint64(15)
	f.userRepo.byID[target] = &entities.User{ID: target, Fio: "Каримов Д.Р.", Email: "d.karimov@corp.tj"}
	f.caseRepo.updateErr = apperrors.ErrNotFound

	rule := makeRule(1, "переназначение падает")
	rule.AutoReassign = true
	rule.AutoReassignToID = &target

	escalation, err := f.svc.Execute(context.Background(), decisionFor(t, rule))
	require.NoError(t, err)
	require.Len(t, f.escalationRepo.created, 1)
	assert.False(t, escalation.WasReassigned)
	assert.Empty(t, f.escalationRepo.actions)
}

func TestExecute_AutoChangePriority(t *testing.T) {
	f := newExecutorFixture(t)

	rule := makeRule(1, "повышение приоритета")
	rule.AutoChangePriority = true
	high := entities.PriorityHigh
	rule.NewPriority = &high

	decision := decisionFor(t, rule) // приоритет дела - medium
	escalation, err := f.svc.Execute(context.Background(), decision)
	require.NoError(t, err)

	assert.True(t, escalation.PriorityChanged)
	require.NotNil(t, escalation.OldPriority)
	assert.Equal(t, entities.PriorityMedium, *escalation.OldPriority)
	assert.Equal(t, entities.PriorityHigh, f.caseRepo.priorities[decision.Case.ID])

	// приоритет уже совпадает - действия нет
	f2 := newExecutorFixture(t)
	decision2 := decisionFor(t, rule)
	decision2.Case.Priority = entities.PriorityHigh
	escalation, err = f2.svc.Execute(context.Background(), decision2)
	require.NoError(t, err)
	assert.False(t, escalation.PriorityChanged)
	assert.Empty(t, f2.caseRepo.priorities)
}
