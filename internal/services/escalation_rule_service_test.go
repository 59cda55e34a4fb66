package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"case-system/internal/entities"
	"case-system/pkg/calendar"
)

func validRule() entities.EscalationRule {
	return makeRule(1, "корректное правило")
}

func TestValidateRule_AcceptsValidRule(t *testing.T) {
	rule := validRule()
	require.NoError(t, validateRule(&rule))
}

func TestValidateRule_ThresholdOrdering(t *testing.T) {
	warning := 120
	rule := validRule()
	rule.WarningThreshold = &warning // равен порогу эскалации
	assert.Error(t, validateRule(&rule))

	warning = 60
	critical := 120
	rule = validRule()
	rule.WarningThreshold = &warning
	rule.CriticalThreshold = &critical // равен порогу эскалации
	assert.Error(t, validateRule(&rule))

	critical = 240
	rule.CriticalThreshold = &critical
	assert.NoError(t, validateRule(&rule))
}

func TestValidateRule_RejectsBrokenConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *entities.EscalationRule)
	}{
		{"неизвестный этап", func(r *entities.EscalationRule) { r.Stage = "shipping" }},
		{"недопустимый уровень", func(r *entities.EscalationRule) { r.Level = entities.EscalationLevel("critical") }},
		{"без области действия", func(r *entities.EscalationRule) { r.IsGlobal = false }},
		{"нулевой порог", func(r *entities.EscalationRule) { r.EscalationThreshold = 0 }},
		{"сломанное рабочее окно", func(r *entities.EscalationRule) {
			r.UseBusinessHours = true
			r.BusinessHours = calendar.BusinessHours{"monday": {Start: "8:00", End: "25:99"}}
		}},
		{"автопереназначение без получателя", func(r *entities.EscalationRule) { r.AutoReassign = true }},
		{"автосмена приоритета без значения", func(r *entities.EscalationRule) { r.AutoChangePriority = true }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rule := validRule()
			tc.mutate(&rule)
			assert.Error(t, validateRule(&rule))
		})
	}
}
