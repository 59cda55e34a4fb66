package listeners

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"case-system/internal/entities"
	"case-system/internal/events"
	"case-system/internal/repositories"
	"case-system/internal/services"
	"case-system/pkg/constants"
	"case-system/pkg/eventbus"
	"case-system/pkg/utils"
)

// NotificationListener превращает события эскалаций в уведомления.
// Работает вне транзакции: сбой рассылки не откатывает эскалацию.
type NotificationListener struct {
	notificationService services.NotificationServiceInterface
	userRepo            repositories.UserRepositoryInterface
	escalationRepo      repositories.EscalationRepositoryInterface
	logger              *zap.Logger
}

func NewNotificationListener(
	notificationService services.NotificationServiceInterface,
	userRepo repositories.UserRepositoryInterface,
	escalationRepo repositories.EscalationRepositoryInterface,
	logger *zap.Logger,
) *NotificationListener {
	return &NotificationListener{
		notificationService: notificationService,
		userRepo:            userRepo,
		escalationRepo:      escalationRepo,
		logger:              logger,
	}
}

func (l *NotificationListener) Register(bus *eventbus.Bus) {
	bus.Subscribe("escalation.raised", l.handleEscalationRaised)
	bus.Subscribe("escalation.warning", l.handleEscalationWarning)
}

func (l *NotificationListener) handleEscalationRaised(ctx context.Context, event eventbus.Event) error {
	e, ok := event.(events.EscalationRaisedEvent)
	if !ok {
		return fmt.Errorf("неожиданный тип события: %T", event)
	}

	recipients, emails := l.collectRecipients(ctx, &e.Case, &e.Rule)

	subject := fmt.Sprintf(constants.TemplateEscalationRaised, e.Case.ID, e.Escalation.Level)
	body := e.Escalation.Reason
	if e.Escalation.WasReassigned && e.Escalation.ReassignedTo != nil {
		body += fmt.Sprintf(". Дело переназначено пользователю %d", *e.Escalation.ReassignedTo)
	}

	notifiedIDs := make([]uint64, 0, len(recipients))
	for _, user := range recipients {
		l.notificationService.Enqueue(services.EscalationAlert{
			RecipientEmail: user.Email,
			RecipientFio:   user.Fio,
			Subject:        subject,
			Body:           body,
		})
		notifiedIDs = append(notifiedIDs, user.ID)
	}
	for _, email := range emails {
		l.notificationService.Enqueue(services.EscalationAlert{
			RecipientEmail: email,
			Subject:        subject,
			Body:           body,
		})
	}

	if len(notifiedIDs) > 0 {
		if err := l.escalationRepo.SetNotifiedUserIDs(ctx, e.Escalation.ID, notifiedIDs); err != nil {
			l.logger.Warn("Не удалось сохранить список уведомлённых",
				zap.Uint64("escalation_id", e.Escalation.ID),
				zap.Error(err),
			)
		}
	}
	return nil
}

func (l *NotificationListener) handleEscalationWarning(ctx context.Context, event eventbus.Event) error {
	e, ok := event.(events.EscalationWarningEvent)
	if !ok {
		return fmt.Errorf("неожиданный тип события: %T", event)
	}

	recipients, emails := l.collectRecipients(ctx, &e.Case, &e.Rule)

	subject := fmt.Sprintf(constants.TemplateEscalationWarning, e.Case.ID, e.Stage)
	body := fmt.Sprintf("Этап '%s' длится уже %s при предупредительном пороге %s (правило '%s')",
		e.Stage,
		utils.FormatMinutesToHumanReadable(e.ElapsedMinutes),
		utils.FormatMinutesToHumanReadable(e.Threshold),
		e.Rule.Name,
	)

	for _, user := range recipients {
		l.notificationService.Enqueue(services.EscalationAlert{
			RecipientEmail: user.Email,
			RecipientFio:   user.Fio,
			Subject:        subject,
			Body:           body,
		})
	}
	for _, email := range emails {
		l.notificationService.Enqueue(services.EscalationAlert{
			RecipientEmail: email,
			Subject:        subject,
			Body:           body,
		})
	}
	return nil
}

// collectRecipients собирает адресатов по флагам правила без дублей.
// Ошибки справочника пользователей не фатальны: шлём тем, кого нашли.
func (l *NotificationListener) collectRecipients(ctx context.Context, c *entities.Case, rule *entities.EscalationRule) ([]entities.User, []string) {
	seen := make(map[uint64]struct{})
	recipients := make([]entities.User, 0, 4)

	add := func(users ...entities.User) {
		for _, u := range users {
			if _, ok := seen[u.ID]; ok {
				continue
			}
			seen[u.ID] = struct{}{}
			recipients = append(recipients, u)
		}
	}
	lookup := func(what string, fn func() ([]entities.User, error)) {
		users, err := fn()
		if err != nil {
			l.logger.Warn("Не удалось найти получателей уведомления",
				zap.String("группа", what),
				zap.Uint64("case_id", c.ID),
				zap.Error(err),
			)
			return
		}
		add(users...)
	}

	if rule.NotifyCurrentAssignee && c.AssignedTo != nil {
		lookup("исполнитель", func() ([]entities.User, error) {
			user, err := l.userRepo.FindUser(ctx, *c.AssignedTo)
			if err != nil {
				return nil, err
			}
			return []entities.User{*user}, nil
		})
	}
	if rule.NotifyBranchAdmin && c.BranchID != nil {
		lookup("администраторы филиала", func() ([]entities.User, error) {
			return l.userRepo.FindBranchAdmins(ctx, *c.BranchID)
		})
	}
	if rule.NotifyCompanyAdmin {
		lookup("администраторы компании", func() ([]entities.User, error) {
			return l.userRepo.FindCompanyAdmins(ctx, c.CompanyID)
		})
	}
	if rule.NotifySuperAdmin {
		lookup("суперадминистраторы", func() ([]entities.User, error) {
			return l.userRepo.FindSuperAdmins(ctx)
		})
	}
	if len(rule.EscalationToRoles) > 0 {
		lookup("получатели по ролям", func() ([]entities.User, error) {
			return l.userRepo.FindByRoles(ctx, c.CompanyID, c.BranchID, rule.EscalationToRoles)
		})
	}
	if rule.EscalationToUserID != nil {
		lookup("явный получатель", func() ([]entities.User, error) {
			user, err := l.userRepo.FindUser(ctx, *rule.EscalationToUserID)
			if err != nil {
				return nil, err
			}
			return []entities.User{*user}, nil
		})
	}

	// Адреса без привязки к пользователям, тоже без дублей
	seenEmails := make(map[string]struct{}, len(recipients))
	for _, u := range recipients {
		seenEmails[strings.ToLower(u.Email)] = struct{}{}
	}
	emails := make([]string, 0, len(rule.NotifyEmails))
	for _, email := range rule.NotifyEmails {
		key := strings.ToLower(email)
		if _, ok := seenEmails[key]; ok {
			continue
		}
		seenEmails[key] = struct{}{}
		emails = append(emails, email)
	}

	return recipients, emails
}
