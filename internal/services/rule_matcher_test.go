package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"case-system/internal/entities"
)

func makeRule(id uint64, name string) entities.EscalationRule {
	return entities.EscalationRule{
		ID:                  id,
		Name:                name,
		IsGlobal:            true,
		Stage:               entities.StageInvestigation,
		AppliesTo:           entities.AppliesToAll,
		IsActive:            true,
		Priority:            1,
		EscalationThreshold: 120,
		Level:               entities.LevelTwo,
	}
}

// При равных приоритете и области действия раньше идёт более новое правило,
// дата создания важнее идентификатора.
func TestRuleMatcher_NewerRuleWinsTie(t *testing.T) {
	matcher := NewRuleMatcherService(zap.NewNop())
	c := testCase(t, entities.CaseStatusInProgress, "2025-03-10 09:00")

	older := makeRule(10, "старое")
	olderAt := mustTime(t, "2025-01-01 10:00")
	older.CreatedAt = &olderAt

	// идентификатор меньше, но создано позже
	newer := makeRule(2, "новое")
	newerAt := mustTime(t, "2025-02-01 10:00")
	newer.CreatedAt = &newerAt

	matched := matcher.Match(c, entities.StageInvestigation,
		[]entities.EscalationRule{older, newer})

	require.Len(t, matched, 2)
	assert.Equal(t, "новое", matched[0].Name)
	assert.Equal(t, "старое", matched[1].Name)
}

// Фильтр по филиалу действует и для глобального правила.
func TestRuleMatcher_GlobalRuleWithBranchFilter(t *testing.T) {
	matcher := NewRuleMatcherService(zap.NewNop())

	rule := makeRule(1, "глобальное с филиалом")
	wantBranch := uint64(5)
	rule.BranchID = &wantBranch

	sameBranch := testCase(t, entities.CaseStatusInProgress, "2025-03-10 09:00")
	sameBranch.BranchID = &wantBranch
	assert.Len(t, matcher.Match(sameBranch, entities.StageInvestigation,
		[]entities.EscalationRule{rule}), 1)

	otherBranch := testCase(t, entities.CaseStatusInProgress, "2025-03-10 09:00")
	other := uint64(6)
	otherBranch.BranchID = &other
	assert.Empty(t, matcher.Match(otherBranch, entities.StageInvestigation,
		[]entities.EscalationRule{rule}))

	noBranch := testCase(t, entities.CaseStatusInProgress, "2025-03-10 09:00")
	noBranch.BranchID = nil
	assert.Empty(t, matcher.Match(noBranch, entities.StageInvestigation,
		[]entities.EscalationRule{rule}))
}

// При равном приоритете победителя выбирает узость области действия.
func TestRuleMatcher_ScopeSpecificityOrder(t *testing.T) {
	matcher := NewRuleMatcherService(zap.NewNop())
	c := testCase(t, entities.CaseStatusInProgress, "2025-03-10 09:00")
	c.CompanyID = 5
	branchID := uint64(7)
	c.BranchID = &branchID

	global := makeRule(1, "глобальное")

	company := makeRule(2, "по компании")
	company.IsGlobal = false
	companyID := uint64(5)
	company.CompanyID = &companyID

	branch := makeRule(3, "по филиалу")
	branch.IsGlobal = false
	branch.CompanyID = &companyID
	branch.BranchID = &branchID

	otherCompany := makeRule(4, "чужая компания")
	otherCompany.IsGlobal = false
	otherID := uint64(99)
	otherCompany.CompanyID = &otherID

	matched := matcher.Match(c, entities.StageInvestigation,
		[]entities.EscalationRule{global, otherCompany, company, branch})

	require.Len(t, matched, 3)
	assert.Equal(t, "по филиалу", matched[0].Name)
	assert.Equal(t, "по компании", matched[1].Name)
	assert.Equal(t, "глобальное", matched[2].Name)
}

func TestRuleMatcher_PriorityComesFirst(t *testing.T) {
	matcher := NewRuleMatcherService(zap.NewNop())
	c := testCase(t, entities.CaseStatusInProgress, "2025-03-10 09:00")
	companyID := uint64(1)

	global := makeRule(1, "глобальное фоновое")
	global.Priority = 0

	company := makeRule(2, "по компании важное")
	company.IsGlobal = false
	company.CompanyID = &companyID
	company.Priority = 10

	matched := matcher.Match(c, entities.StageInvestigation, []entities.EscalationRule{global, company})
	require.Len(t, matched, 2)
	assert.Equal(t, "по компании важное", matched[0].Name)

	// и даже без перевеса по приоритету узкая область побеждает
	company.Priority = 0
	matched = matcher.Match(c, entities.StageInvestigation, []entities.EscalationRule{global, company})
	require.Len(t, matched, 2)
	assert.Equal(t, "по компании важное", matched[0].Name)
}

func TestRuleMatcher_FiltersByStageActivityAndType(t *testing.T) {
	matcher := NewRuleMatcherService(zap.NewNop())
	c := testCase(t, entities.CaseStatusInProgress, "2025-03-10 09:00") // incident

	wrongStage := makeRule(1, "другой этап")
	wrongStage.Stage = entities.StageTriage

	inactive := makeRule(2, "выключено")
	inactive.IsActive = false

	feedbackOnly := makeRule(3, "только отзывы")
	feedbackOnly.AppliesTo = entities.AppliesToFeedback

	incidentOnly := makeRule(4, "только инциденты")
	incidentOnly.AppliesTo = entities.AppliesToIncident

	matched := matcher.Match(c, entities.StageInvestigation,
		[]entities.EscalationRule{wrongStage, inactive, feedbackOnly, incidentOnly})

	require.Len(t, matched, 1)
	assert.Equal(t, "только инциденты", matched[0].Name)
}

func TestRuleMatcher_ScopelessRuleNeverMatches(t *testing.T) {
	matcher := NewRuleMatcherService(zap.NewNop())
	c := testCase(t, entities.CaseStatusInProgress, "2025-03-10 09:00")

	// не глобальное и без привязки - мёртвая конфигурация
	rule := makeRule(1, "без области")
	rule.IsGlobal = false

	matched := matcher.Match(c, entities.StageInvestigation, []entities.EscalationRule{rule})
	assert.Empty(t, matched)
}

func TestRuleMatcher_Conditions(t *testing.T) {
	matcher := NewRuleMatcherService(zap.NewNop())
	c := testCase(t, entities.CaseStatusInProgress, "2025-03-10 09:00")
	c.Priority = entities.PriorityHigh
	category := "Сеть и доступ"
	c.Category = &category

	tests := []struct {
		name string
		cond []entities.RuleCondition
		want bool
	}{
		{"eq по типу", []entities.RuleCondition{{Field: "type", Op: "eq", Value: "incident"}}, true},
		{"neq по статусу", []entities.RuleCondition{{Field: "status", Op: "neq", Value: "closed"}}, true},
		{"lte по приоритету", []entities.RuleCondition{{Field: "priority", Op: "lte", Value: float64(2)}}, true},
		{"приоритет строкой", []entities.RuleCondition{{Field: "priority", Op: "eq", Value: "high"}}, true},
		{"gt не проходит", []entities.RuleCondition{{Field: "priority", Op: "gt", Value: float64(2)}}, false},
		{"in по статусу", []entities.RuleCondition{{Field: "status", Op: "in", Value: []interface{}{"open", "in_progress"}}}, true},
		{"not_in по типу", []entities.RuleCondition{{Field: "type", Op: "not_in", Value: []interface{}{"feedback"}}}, true},
		{"contains по категории", []entities.RuleCondition{{Field: "category", Op: "contains", Value: "сеть"}}, true},
		{"все условия по И", []entities.RuleCondition{
			{Field: "type", Op: "eq", Value: "incident"},
			{Field: "priority", Op: "eq", Value: float64(4)},
		}, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rule := makeRule(1, tc.name)
			rule.Conditions = tc.cond
			matched := matcher.Match(c, entities.StageInvestigation, []entities.EscalationRule{rule})
			assert.Equal(t, tc.want, len(matched) == 1)
		})
	}
}

func TestRuleMatcher_MalformedConditionFailsClosed(t *testing.T) {
	matcher := NewRuleMatcherService(zap.NewNop())
	c := testCase(t, entities.CaseStatusInProgress, "2025-03-10 09:00")

	tests := []entities.RuleCondition{
		{Field: "severity", Op: "eq", Value: "high"},      // неизвестное поле
		{Field: "type", Op: "between", Value: "incident"}, // неизвестный оператор
		{Field: "priority", Op: "gt", Value: "высокий"},   // нечисловое значение
		{Field: "status", Op: "in", Value: "open"},        // не список
	}
	for _, cond := range tests {
		rule := makeRule(1, "сломанное")
		rule.Conditions = []entities.RuleCondition{cond}
		matched := matcher.Match(c, entities.StageInvestigation, []entities.EscalationRule{rule})
		assert.Empty(t, matched, "условие %+v должно закрывать правило", cond)
	}
}
