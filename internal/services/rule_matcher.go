package services

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"case-system/internal/entities"
)

type RuleMatcherServiceInterface interface {
	Match(c *entities.Case, stage entities.Stage, rules []entities.EscalationRule) []entities.EscalationRule
}

type RuleMatcherService struct {
	logger *zap.Logger
}

func NewRuleMatcherService(logger *zap.Logger) RuleMatcherServiceInterface {
	return &RuleMatcherService{logger: logger}
}

// Match отбирает правила, применимые к делу на данном этапе, и сортирует их:
// сперва по приоритету, при равенстве - по узости области
// (филиал > компания > глобально), затем более новые раньше.
func (s *RuleMatcherService) Match(c *entities.Case, stage entities.Stage, rules []entities.EscalationRule) []entities.EscalationRule {
	matched := make([]entities.EscalationRule, 0)

	for _, rule := range rules {
		if !rule.IsActive || rule.Stage != stage {
			continue
		}
		if !s.scopeMatches(c, &rule) {
			continue
		}
		if rule.AppliesTo != entities.AppliesToAll && string(rule.AppliesTo) != string(c.Type) {
			continue
		}
		if !s.conditionsMatch(c, &rule) {
			continue
		}
		matched = append(matched, rule)
	}

	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].Priority != matched[j].Priority {
			return matched[i].Priority > matched[j].Priority
		}
		if matched[i].Specificity() != matched[j].Specificity() {
			return matched[i].Specificity() > matched[j].Specificity()
		}
		ci, cj := matched[i].CreatedAt, matched[j].CreatedAt
		if ci != nil && cj != nil && !ci.Equal(*cj) {
			return ci.After(*cj)
		}
		return matched[i].ID > matched[j].ID
	})

	return matched
}

func (s *RuleMatcherService) scopeMatches(c *entities.Case, rule *entities.EscalationRule) bool {
	// Фильтр по филиалу действует всегда, даже у глобального правила
	if rule.BranchID != nil {
		if c.BranchID == nil || *c.BranchID != *rule.BranchID {
			return false
		}
	}
	if rule.IsGlobal {
		return true
	}
	if rule.CompanyID != nil && *rule.CompanyID != c.CompanyID {
		return false
	}
	// Правило без области действия ни к чему не применимо
	return rule.CompanyID != nil || rule.BranchID != nil
}

// conditionsMatch проверяет произвольные условия правила, объединённые по И.
// Некорректное условие закрывает правило целиком: лучше не эскалировать,
// чем эскалировать по сломанной конфигурации.
func (s *RuleMatcherService) conditionsMatch(c *entities.Case, rule *entities.EscalationRule) bool {
	for _, cond := range rule.Conditions {
		ok, err := evalCondition(c, cond)
		if err != nil {
			s.logger.Warn("Условие правила не распознано, правило пропущено",
				zap.Uint64("rule_id", rule.ID),
				zap.String("field", cond.Field),
				zap.String("op", cond.Op),
				zap.Error(err),
			)
			return false
		}
		if !ok {
			return false
		}
	}
	return true
}

func caseFieldValue(c *entities.Case, field string) (interface{}, error) {
	switch field {
	case "type":
		return string(c.Type), nil
	case "status":
		return string(c.Status), nil
	case "priority":
		return float64(c.Priority), nil
	case "category":
		if c.Category == nil {
			return "", nil
		}
		return *c.Category, nil
	case "company_id":
		return float64(c.CompanyID), nil
	case "branch_id":
		if c.BranchID == nil {
			return float64(0), nil
		}
		return float64(*c.BranchID), nil
	}
	return nil, fmt.Errorf("неизвестное поле условия: %s", field)
}

func toNumber(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case string:
		parsed, err := strconv.ParseFloat(n, 64)
		return parsed, err == nil
	}
	return 0, false
}

func equalValues(actual, expected interface{}) bool {
	if an, ok := toNumber(actual); ok {
		if en, ok := toNumber(expected); ok {
			return an == en
		}
	}
	return strings.EqualFold(fmt.Sprintf("%v", actual), fmt.Sprintf("%v", expected))
}

// normalizePriorityValue переводит строковую форму приоритета
// (low/medium/high/urgent) в числовую для сравнения.
func normalizePriorityValue(v interface{}) interface{} {
	if s, ok := v.(string); ok {
		if p, ok := entities.ParsePriority(s); ok {
			return float64(p)
		}
	}
	return v
}

func evalCondition(c *entities.Case, cond entities.RuleCondition) (bool, error) {
	actual, err := caseFieldValue(c, cond.Field)
	if err != nil {
		return false, err
	}

	if cond.Field == "priority" {
		cond.Value = normalizePriorityValue(cond.Value)
		if list, ok := cond.Value.([]interface{}); ok {
			for i := range list {
				list[i] = normalizePriorityValue(list[i])
			}
		}
	}

	switch cond.Op {
	case "eq":
		return equalValues(actual, cond.Value), nil
	case "neq":
		return !equalValues(actual, cond.Value), nil
	case "gt", "gte", "lt", "lte":
		an, ok := toNumber(actual)
		if !ok {
			return false, fmt.Errorf("поле %s не числовое", cond.Field)
		}
		en, ok := toNumber(cond.Value)
		if !ok {
			return false, fmt.Errorf("значение условия не числовое: %v", cond.Value)
		}
		switch cond.Op {
		case "gt":
			return an > en, nil
		case "gte":
			return an >= en, nil
		case "lt":
			return an < en, nil
		default:
			return an <= en, nil
		}
	case "in", "not_in":
		list, ok := cond.Value.([]interface{})
		if !ok {
			return false, fmt.Errorf("значение условия не является списком: %v", cond.Value)
		}
		found := false
		for _, item := range list {
			if equalValues(actual, item) {
				found = true
				break
			}
		}
		if cond.Op == "in" {
			return found, nil
		}
		return !found, nil
	case "contains":
		return strings.Contains(
			strings.ToLower(fmt.Sprintf("%v", actual)),
			strings.ToLower(fmt.Sprintf("%v", cond.Value)),
		), nil
	}
	return false, fmt.Errorf("неизвестный оператор условия: %s", cond.Op)
}
