// pkg/constants/constants.go
package constants

//============== CACHE KEYS ==============

// Префиксы для ключей в Redis/кеше.
const (
	// Ключ кеша списка активных правил эскалации.
	CacheKeyActiveRules = "escalation_rules:active"
)

//============== NOTIFICATION TEMPLATES ==============

// Темы писем об эскалациях.
const (
	TemplateEscalationRaised  = "Эскалация по делу №%d (уровень %s)"
	TemplateEscalationWarning = "Предупреждение по делу №%d: этап '%s' близок к просрочке"
)
