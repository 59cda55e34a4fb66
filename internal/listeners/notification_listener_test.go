package listeners

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"case-system/internal/entities"
	"case-system/internal/events"
	"case-system/internal/services"
	apperrors "case-system/pkg/errors"
	"case-system/pkg/types"

	"github.com/jackc/pgx/v5"
)

type capturingNotificationService struct {
	alerts []services.EscalationAlert
}

func (s *capturingNotificationService) Enqueue(alert services.EscalationAlert) {
	s.alerts = append(s.alerts, alert)
}

func (s *capturingNotificationService) Stop() {}

type fakeUserRepo struct {
	users       map[uint64]entities.User
	roleMembers []entities.User
}

func (r *fakeUserRepo) FindUser(ctx context.Context, id uint64) (*entities.User, error) {
	if u, ok := r.users[id]; ok {
		return &u, nil
	}
	return nil, apperrors.ErrNotFound
}

func (r *fakeUserRepo) FindBranchAdmins(ctx context.Context, branchID uint64) ([]entities.User, error) {
	return r.byRole(entities.RoleBranchAdmin), nil
}

func (r *fakeUserRepo) FindCompanyAdmins(ctx context.Context, companyID uint64) ([]entities.User, error) {
	return r.byRole(entities.RoleCompanyAdmin), nil
}

func (r *fakeUserRepo) FindSuperAdmins(ctx context.Context) ([]entities.User, error) {
	return r.byRole(entities.RoleSuperAdmin), nil
}

func (r *fakeUserRepo) FindByRoles(ctx context.Context, companyID uint64, branchID *uint64, roles []string) ([]entities.User, error) {
	return r.roleMembers, nil
}

func (r *fakeUserRepo) byRole(role string) []entities.User {
	var result []entities.User
	for _, u := range r.users {
		if u.Role == role {
			result = append(result, u)
		}
	}
	return result
}

type fakeEscalationRepo struct {
	notified map[uint64][]uint64
}

func (r *fakeEscalationRepo) GetEscalations(ctx context.Context, filter types.Filter) ([]entities.Escalation, uint64, error) {
	return nil, 0, nil
}

func (r *fakeEscalationRepo) FindEscalation(ctx context.Context, id uint64) (*entities.Escalation, error) {
	return nil, apperrors.ErrNotFound
}

func (r *fakeEscalationRepo) FindByCaseID(ctx context.Context, caseID uint64) ([]entities.Escalation, error) {
	return nil, nil
}

func (r *fakeEscalationRepo) FindUnresolvedByCaseAndRule(ctx context.Context, caseID, ruleID uint64) (*entities.Escalation, error) {
	return nil, apperrors.ErrNotFound
}

func (r *fakeEscalationRepo) CreateInTx(ctx context.Context, tx pgx.Tx, escalation entities.Escalation) (uint64, error) {
	return 0, nil
}

func (r *fakeEscalationRepo) ResolveLowerLevelsInTx(ctx context.Context, tx pgx.Tx, caseID, ruleID uint64, stage entities.Stage, levels []entities.EscalationLevel, note string) (int64, error) {
	return 0, nil
}

func (r *fakeEscalationRepo) SetActionResults(ctx context.Context, id uint64, e entities.Escalation) error {
	return nil
}

func (r *fakeEscalationRepo) Resolve(ctx context.Context, id uint64, resolvedBy uint64, note *string) error {
	return nil
}

func (r *fakeEscalationRepo) SetNotifiedUserIDs(ctx context.Context, id uint64, userIDs []uint64) error {
	if r.notified == nil {
		r.notified = make(map[uint64][]uint64)
	}
	r.notified[id] = userIDs
	return nil
}

func TestHandleEscalationRaised_DeduplicatesRecipients(t *testing.T) {
	branchID := uint64(7)
	assignee := uint64(10)

	// Исполнитель одновременно администратор филиала - уведомление одно.
	users := map[uint64]entities.User{
		10: {ID: 10, Fio: "Назаров А.А.", Email: "a.nazarov@corp.tj", Role: entities.RoleBranchAdmin},
		11: {ID: 11, Fio: "Шарипова Г.М.", Email: "g.sharipova@corp.tj", Role: entities.RoleCompanyAdmin},
	}

	notifications := &capturingNotificationService{}
	escalationRepo := &fakeEscalationRepo{}
	listener := NewNotificationListener(notifications, &fakeUserRepo{users: users}, escalationRepo, zap.NewNop())

	c := entities.Case{ID: 1, CompanyID: 5, BranchID: &branchID, AssignedTo: &assignee}
	rule := entities.EscalationRule{
		ID:                    2,
		Name:                  "правило",
		NotifyCurrentAssignee: true,
		NotifyBranchAdmin:     true,
		NotifyCompanyAdmin:    true,
		NotifyEmails:          []string{"duty@corp.tj", "g.sharipova@corp.tj"}, // второй уже уведомлён как пользователь
	}
	escalation := entities.Escalation{ID: 3, CaseID: 1, RuleID: 2, Level: entities.LevelTwo, Reason: "просрочка"}

	err := listener.handleEscalationRaised(context.Background(),
		events.EscalationRaisedEvent{Escalation: escalation, Rule: rule, Case: c})
	require.NoError(t, err)

	// двое пользователей + один внешний адрес
	require.Len(t, notifications.alerts, 3)
	seen := make(map[string]int)
	for _, alert := range notifications.alerts {
		seen[alert.RecipientEmail]++
	}
	assert.Equal(t, 1, seen["a.nazarov@corp.tj"])
	assert.Equal(t, 1, seen["g.sharipova@corp.tj"])
	assert.Equal(t, 1, seen["duty@corp.tj"])

	assert.ElementsMatch(t, []uint64{10, 11}, escalationRepo.notified[3])
}

func TestHandleEscalationRaised_IncludesRoleRecipients(t *testing.T) {
	users := map[uint64]entities.User{
		30: {ID: 30, Fio: "Исмоилов С.Т.", Email: "s.ismoilov@corp.tj"},
	}
	roleMembers := []entities.User{
		{ID: 31, Fio: "Холова З.Н.", Email: "z.kholova@corp.tj", Role: "investigator"},
		{ID: 30, Fio: "Исмоилов С.Т.", Email: "s.ismoilov@corp.tj"}, // уже уведомлён как исполнитель
	}

	notifications := &capturingNotificationService{}
	escalationRepo := &fakeEscalationRepo{}
	listener := NewNotificationListener(notifications,
		&fakeUserRepo{users: users, roleMembers: roleMembers}, escalationRepo, zap.NewNop())

	assignee := uint64(30)
	c := entities.Case{ID: 1, CompanyID: 5, AssignedTo: &assignee}
	rule := entities.EscalationRule{
		ID:                    2,
		Name:                  "правило с ролями",
		NotifyCurrentAssignee: true,
		EscalationToRoles:     []string{"investigator"},
	}
	escalation := entities.Escalation{ID: 4, CaseID: 1, RuleID: 2, Level: entities.LevelOne, Reason: "просрочка"}

	err := listener.handleEscalationRaised(context.Background(),
		events.EscalationRaisedEvent{Escalation: escalation, Rule: rule, Case: c})
	require.NoError(t, err)

	require.Len(t, notifications.alerts, 2)
	seen := make(map[string]int)
	for _, alert := range notifications.alerts {
		seen[alert.RecipientEmail]++
	}
	assert.Equal(t, 1, seen["s.ismoilov@corp.tj"])
	assert.Equal(t, 1, seen["z.kholova@corp.tj"])
	assert.ElementsMatch(t, []uint64{30, 31}, escalationRepo.notified[4])
}

func TestHandleEscalationWarning_SendsWithoutPersisting(t *testing.T) {
	users := map[uint64]entities.User{
		20: {ID: 20, Fio: "Юсупов Р.К.", Email: "r.yusupov@corp.tj", Role: entities.RoleSuperAdmin},
	}

	notifications := &capturingNotificationService{}
	escalationRepo := &fakeEscalationRepo{}
	listener := NewNotificationListener(notifications, &fakeUserRepo{users: users}, escalationRepo, zap.NewNop())

	c := entities.Case{ID: 1, CompanyID: 5}
	rule := entities.EscalationRule{ID: 2, Name: "правило", NotifySuperAdmin: true}

	err := listener.handleEscalationWarning(context.Background(), events.EscalationWarningEvent{
		Case:           c,
		Rule:           rule,
		Stage:          entities.StageInvestigation,
		ElapsedMinutes: 100,
		Threshold:      90,
	})
	require.NoError(t, err)

	require.Len(t, notifications.alerts, 1)
	assert.Contains(t, notifications.alerts[0].Body, "1ч 40м")
	assert.Empty(t, escalationRepo.notified)
}
