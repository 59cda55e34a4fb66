// Файл: internal/services/notification_service.go
package services

import (
	"sync"

	"go.uber.org/zap"
)

// EscalationAlert - одно уведомление в очереди на отправку.
type EscalationAlert struct {
	RecipientEmail string
	RecipientFio   string
	Subject        string
	Body           string
}

// NotificationServiceInterface - шлюз исходящих уведомлений.
// Отправка асинхронная: Enqueue не блокирует вызывающего.
type NotificationServiceInterface interface {
	Enqueue(alert EscalationAlert)
	Stop()
}

// mockNotificationService - реализация-заглушка, пишет в лог вместо
// реальной отправки. Очередь и воркер при этом настоящие.
type mockNotificationService struct {
	logger *zap.Logger
	queue  chan EscalationAlert
	wg     sync.WaitGroup
	once   sync.Once
}

func NewMockNotificationService(logger *zap.Logger) NotificationServiceInterface {
	s := &mockNotificationService{
		logger: logger,
		queue:  make(chan EscalationAlert, 256),
	}
	s.wg.Add(1)
	go s.run()
	return s
}

func (s *mockNotificationService) run() {
	defer s.wg.Done()
	for alert := range s.queue {
		s.send(alert)
	}
}

func (s *mockNotificationService) Enqueue(alert EscalationAlert) {
	select {
	case s.queue <- alert:
	default:
		// Очередь переполнена, уведомление теряем осознанно: эскалация уже в базе
		s.logger.Warn("Очередь уведомлений переполнена, уведомление отброшено",
			zap.String("кому", alert.RecipientEmail),
			zap.String("тема", alert.Subject),
		)
	}
}

func (s *mockNotificationService) Stop() {
	s.once.Do(func() {
		close(s.queue)
	})
	s.wg.Wait()
}

// send имитирует отправку email.
func (s *mockNotificationService) send(alert EscalationAlert) {
	// В реальном приложении здесь будет интеграция с SMTP-шлюзом или SendGrid
	s.logger.Info("!!! ИМИТАЦИЯ ОТПРАВКИ УВЕДОМЛЕНИЯ !!!",
		zap.String("кому", alert.RecipientEmail),
		zap.String("получатель", alert.RecipientFio),
		zap.String("тема", alert.Subject),
		zap.String("текст", alert.Body),
	)
}
