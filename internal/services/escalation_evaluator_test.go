package services

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"case-system/internal/dto"
	"case-system/internal/entities"
	"case-system/pkg/eventbus"
	apperrors "case-system/pkg/errors"
	"case-system/pkg/types"
)

// --- заглушки зависимостей ---

type stubTimelineRepo struct {
	events []entities.TimelineEvent
}

func (s *stubTimelineRepo) Append(ctx context.Context, event entities.TimelineEvent) (uint64, error) {
	return 0, nil
}

func (s *stubTimelineRepo) FindByCaseID(ctx context.Context, caseID uint64) ([]entities.TimelineEvent, error) {
	return s.events, nil
}

func (s *stubTimelineRepo) FindByCompanyAndRange(ctx context.Context, companyID uint64, branchID *uint64, from, to time.Time) ([]entities.TimelineEvent, error) {
	return nil, nil
}

func (s *stubTimelineRepo) MarkBreachedInTx(ctx context.Context, tx pgx.Tx, caseID uint64, stage entities.Stage) error {
	return nil
}

type closedLevelsCall struct {
	ruleID uint64
	levels []entities.EscalationLevel
}

type stubEscalationRepo struct {
	open    map[uint64]*entities.Escalation // rule_id -> открытая эскалация
	created []entities.Escalation
	closed  []closedLevelsCall    // аргументы ResolveLowerLevelsInTx
	actions []entities.Escalation // аргументы SetActionResults
}

func (s *stubEscalationRepo) GetEscalations(ctx context.Context, filter types.Filter) ([]entities.Escalation, uint64, error) {
	return nil, 0, nil
}

func (s *stubEscalationRepo) FindEscalation(ctx context.Context, id uint64) (*entities.Escalation, error) {
	return nil, apperrors.ErrNotFound
}

func (s *stubEscalationRepo) FindByCaseID(ctx context.Context, caseID uint64) ([]entities.Escalation, error) {
	return nil, nil
}

func (s *stubEscalationRepo) FindUnresolvedByCaseAndRule(ctx context.Context, caseID, ruleID uint64) (*entities.Escalation, error) {
	if e, ok := s.open[ruleID]; ok {
		return e, nil
	}
	return nil, apperrors.ErrNotFound
}

func (s *stubEscalationRepo) CreateInTx(ctx context.Context, tx pgx.Tx, escalation entities.Escalation) (uint64, error) {
	s.created = append(s.created, escalation)
	return uint64(len(s.created)), nil
}

func (s *stubEscalationRepo) ResolveLowerLevelsInTx(ctx context.Context, tx pgx.Tx, caseID, ruleID uint64, stage entities.Stage, levels []entities.EscalationLevel, note string) (int64, error) {
	s.closed = append(s.closed, closedLevelsCall{ruleID: ruleID, levels: levels})
	return 0, nil
}

func (s *stubEscalationRepo) Resolve(ctx context.Context, id uint64, resolvedBy uint64, note *string) error {
	return nil
}

func (s *stubEscalationRepo) SetActionResults(ctx context.Context, id uint64, e entities.Escalation) error {
	s.actions = append(s.actions, e)
	return nil
}

func (s *stubEscalationRepo) SetNotifiedUserIDs(ctx context.Context, id uint64, userIDs []uint64) error {
	return nil
}

type stubCacheRepo struct {
	data map[string]string
}

func newStubCacheRepo() *stubCacheRepo {
	return &stubCacheRepo{data: make(map[string]string)}
}

func (s *stubCacheRepo) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	s.data[key] = "1"
	return nil
}

func (s *stubCacheRepo) Get(ctx context.Context, key string) (string, error) {
	if v, ok := s.data[key]; ok {
		return v, nil
	}
	return "", apperrors.ErrNotFound
}

func (s *stubCacheRepo) Del(ctx context.Context, key ...string) error {
	for _, k := range key {
		delete(s.data, k)
	}
	return nil
}

type stubRuleService struct {
	rules []entities.EscalationRule
}

func (s *stubRuleService) GetRules(ctx context.Context, filter types.Filter) ([]dto.EscalationRuleResponseDTO, uint64, error) {
	return nil, 0, nil
}

func (s *stubRuleService) FindRule(ctx context.Context, id uint64) (*dto.EscalationRuleResponseDTO, error) {
	return nil, apperrors.ErrNotFound
}

func (s *stubRuleService) CreateRule(ctx context.Context, payload dto.CreateEscalationRuleDTO) (*dto.EscalationRuleResponseDTO, error) {
	return nil, nil
}

func (s *stubRuleService) UpdateRule(ctx context.Context, id uint64, payload dto.UpdateEscalationRuleDTO) (*dto.EscalationRuleResponseDTO, error) {
	return nil, nil
}

func (s *stubRuleService) DeleteRule(ctx context.Context, id uint64) error {
	return nil
}

func (s *stubRuleService) GetActiveRules(ctx context.Context) ([]entities.EscalationRule, error) {
	return s.rules, nil
}

type stubExecutor struct {
	calls []EscalationDecision
	err   error
}

func (s *stubExecutor) Execute(ctx context.Context, decision EscalationDecision) (*entities.Escalation, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.calls = append(s.calls, decision)
	return &entities.Escalation{ID: uint64(len(s.calls)), CaseID: decision.Case.ID, RuleID: decision.Rule.ID, Level: decision.Level}, nil
}

type evaluatorFixture struct {
	svc            *EscalationEvaluatorService
	timelineRepo   *stubTimelineRepo
	escalationRepo *stubEscalationRepo
	cache          *stubCacheRepo
	executor       *stubExecutor
}

func newEvaluatorFixture(t *testing.T, rules []entities.EscalationRule, events []entities.TimelineEvent, now time.Time) *evaluatorFixture {
	t.Helper()
	logger := zap.NewNop()
	f := &evaluatorFixture{
		timelineRepo:   &stubTimelineRepo{events: events},
		escalationRepo: &stubEscalationRepo{open: make(map[uint64]*entities.Escalation)},
		cache:          newStubCacheRepo(),
		executor:       &stubExecutor{},
	}
	f.svc = &EscalationEvaluatorService{
		timelineRepo:   f.timelineRepo,
		escalationRepo: f.escalationRepo,
		cacheRepo:      f.cache,
		stageResolver:  NewStageResolverService(logger),
		ruleMatcher:    NewRuleMatcherService(logger),
		ruleService:    &stubRuleService{rules: rules},
		executor:       f.executor,
		bus:            eventbus.New(logger),
		logger:         logger,
		now:            func() time.Time { return now },
	}
	return f
}

// --- сами тесты ---

func TestEvaluateCase_RaisesWhenThresholdCrossed(t *testing.T) {
	now := mustTime(t, "2025-03-10 14:10")
	c := testCase(t, entities.CaseStatusInProgress, "2025-03-10 09:00")
	events := []entities.TimelineEvent{
		event(t, entities.StageInvestigation, "2025-03-10 12:00"), // 130 минут назад
	}

	rule := makeRule(1, "просрочка расследования") // порог 120, level_2
	f := newEvaluatorFixture(t, []entities.EscalationRule{rule}, events, now)

	raised, err := f.svc.EvaluateCase(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, 1, raised)

	require.Len(t, f.executor.calls, 1)
	decision := f.executor.calls[0]
	assert.Equal(t, entities.LevelTwo, decision.Level)
	assert.Equal(t, 130, decision.ElapsedMinutes)
	assert.Equal(t, 120, decision.ThresholdUsed)
	assert.Equal(t, entities.StageInvestigation, decision.Stage)
	assert.Equal(t, now, decision.At)
}

func TestEvaluateCase_NothingBelowThreshold(t *testing.T) {
	now := mustTime(t, "2025-03-10 13:00")
	c := testCase(t, entities.CaseStatusInProgress, "2025-03-10 09:00")
	events := []entities.TimelineEvent{
		event(t, entities.StageInvestigation, "2025-03-10 12:00"), // всего 60 минут
	}

	f := newEvaluatorFixture(t, []entities.EscalationRule{makeRule(1, "правило")}, events, now)

	raised, err := f.svc.EvaluateCase(context.Background(), c)
	require.NoError(t, err)
	assert.Zero(t, raised)
	assert.Empty(t, f.executor.calls)
}

func TestEvaluateCase_RepeatedSweepIsIdempotent(t *testing.T) {
	now := mustTime(t, "2025-03-10 14:10")
	c := testCase(t, entities.CaseStatusInProgress, "2025-03-10 09:00")
	events := []entities.TimelineEvent{
		event(t, entities.StageInvestigation, "2025-03-10 12:00"),
	}

	rule := makeRule(1, "правило")
	f := newEvaluatorFixture(t, []entities.EscalationRule{rule}, events, now)

	// Первый проход поднимает эскалацию, второй видит открытую того же уровня.
	raised, err := f.svc.EvaluateCase(context.Background(), c)
	require.NoError(t, err)
	require.Equal(t, 1, raised)
	f.escalationRepo.open[rule.ID] = &entities.Escalation{CaseID: c.ID, RuleID: rule.ID, Level: entities.LevelTwo}

	raised, err = f.svc.EvaluateCase(context.Background(), c)
	require.NoError(t, err)
	assert.Zero(t, raised)
	assert.Len(t, f.executor.calls, 1)
}

func TestEvaluateCase_CriticalSupersedesOpenLevel(t *testing.T) {
	now := mustTime(t, "2025-03-10 18:10")
	c := testCase(t, entities.CaseStatusInProgress, "2025-03-10 09:00")
	events := []entities.TimelineEvent{
		event(t, entities.StageInvestigation, "2025-03-10 12:00"), // 370 минут
	}

	rule := makeRule(1, "правило")
	critical := 360
	rule.CriticalThreshold = &critical

	f := newEvaluatorFixture(t, []entities.EscalationRule{rule}, events, now)
	f.escalationRepo.open[rule.ID] = &entities.Escalation{CaseID: c.ID, RuleID: rule.ID, Level: entities.LevelTwo}

	raised, err := f.svc.EvaluateCase(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, 1, raised)

	require.Len(t, f.executor.calls, 1)
	assert.Equal(t, entities.LevelThree, f.executor.calls[0].Level)
	assert.Equal(t, critical, f.executor.calls[0].ThresholdUsed)
}

func TestEvaluateCase_WarningDoesNotCreateEscalation(t *testing.T) {
	now := mustTime(t, "2025-03-10 13:40")
	c := testCase(t, entities.CaseStatusInProgress, "2025-03-10 09:00")
	events := []entities.TimelineEvent{
		event(t, entities.StageInvestigation, "2025-03-10 12:00"), // 100 минут
	}

	rule := makeRule(1, "правило")
	warning := 90
	rule.WarningThreshold = &warning

	f := newEvaluatorFixture(t, []entities.EscalationRule{rule}, events, now)

	raised, err := f.svc.EvaluateCase(context.Background(), c)
	require.NoError(t, err)
	assert.Zero(t, raised)
	assert.Empty(t, f.executor.calls)

	// факт отправки предупреждения зафиксирован в кеше
	_, err = f.cache.Get(context.Background(), "escalation:warning_sent:42:1")
	assert.NoError(t, err)
}

func TestEvaluateCase_ConflictFromConcurrentSweepIsSwallowed(t *testing.T) {
	now := mustTime(t, "2025-03-10 14:10")
	c := testCase(t, entities.CaseStatusInProgress, "2025-03-10 09:00")
	events := []entities.TimelineEvent{
		event(t, entities.StageInvestigation, "2025-03-10 12:00"),
	}

	f := newEvaluatorFixture(t, []entities.EscalationRule{makeRule(1, "правило")}, events, now)
	f.executor.err = apperrors.ErrConflict

	raised, err := f.svc.EvaluateCase(context.Background(), c)
	require.NoError(t, err)
	assert.Zero(t, raised)
}
