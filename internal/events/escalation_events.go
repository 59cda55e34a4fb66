package events

import (
	"time"

	"case-system/internal/entities"
)

// EscalationRaisedEvent возникает после фиксации эскалации в базе.
// Слушатели рассылают уведомления уже вне транзакции.
type EscalationRaisedEvent struct {
	Escalation entities.Escalation
	Rule       entities.EscalationRule
	Case       entities.Case
}

func (e EscalationRaisedEvent) Name() string {
	return "escalation.raised"
}

// EscalationWarningEvent - предупредительный порог пройден, запись не создаётся.
type EscalationWarningEvent struct {
	Case           entities.Case
	Rule           entities.EscalationRule
	Stage          entities.Stage
	ElapsedMinutes int
	Threshold      int
	At             time.Time
}

func (e EscalationWarningEvent) Name() string {
	return "escalation.warning"
}
