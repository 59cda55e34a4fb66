package services

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"case-system/internal/dto"
	"case-system/internal/entities"
	"case-system/internal/repositories"
	"case-system/pkg/calendar"
	"case-system/pkg/constants"
	apperrors "case-system/pkg/errors"
	"case-system/pkg/types"
)

type EscalationRuleServiceInterface interface {
	GetRules(ctx context.Context, filter types.Filter) ([]dto.EscalationRuleResponseDTO, uint64, error)
	FindRule(ctx context.Context, id uint64) (*dto.EscalationRuleResponseDTO, error)
	CreateRule(ctx context.Context, payload dto.CreateEscalationRuleDTO) (*dto.EscalationRuleResponseDTO, error)
	UpdateRule(ctx context.Context, id uint64, payload dto.UpdateEscalationRuleDTO) (*dto.EscalationRuleResponseDTO, error)
	DeleteRule(ctx context.Context, id uint64) error
	GetActiveRules(ctx context.Context) ([]entities.EscalationRule, error)
}

type EscalationRuleService struct {
	ruleRepo  repositories.EscalationRuleRepositoryInterface
	cacheRepo repositories.CacheRepositoryInterface
	cacheTTL  time.Duration
	logger    *zap.Logger
}

func NewEscalationRuleService(
	ruleRepo repositories.EscalationRuleRepositoryInterface,
	cacheRepo repositories.CacheRepositoryInterface,
	cacheTTL time.Duration,
	logger *zap.Logger,
) EscalationRuleServiceInterface {
	return &EscalationRuleService{
		ruleRepo:  ruleRepo,
		cacheRepo: cacheRepo,
		cacheTTL:  cacheTTL,
		logger:    logger,
	}
}

// validateRule проверяет согласованность настроек перед записью.
func validateRule(rule *entities.EscalationRule) error {
	if !entities.ValidStage(string(rule.Stage)) {
		return apperrors.NewInvalidInputError("неизвестный этап: %s", rule.Stage)
	}
	if !entities.ValidEscalationLevel(string(rule.Level)) {
		return apperrors.NewInvalidInputError("недопустимый уровень эскалации: %s", rule.Level)
	}
	if !rule.IsGlobal && rule.CompanyID == nil && rule.BranchID == nil {
		return apperrors.NewInvalidInputError("правило должно быть глобальным либо привязанным к компании или филиалу")
	}
	if rule.EscalationThreshold < 1 {
		return apperrors.NewInvalidInputError("порог эскалации должен быть не меньше 1 минуты")
	}
	if rule.WarningThreshold != nil && *rule.WarningThreshold >= rule.EscalationThreshold {
		return apperrors.NewInvalidInputError("порог предупреждения должен быть меньше порога эскалации")
	}
	if rule.CriticalThreshold != nil && *rule.CriticalThreshold <= rule.EscalationThreshold {
		return apperrors.NewInvalidInputError("критический порог должен быть больше порога эскалации")
	}
	if rule.UseBusinessHours {
		for day, window := range rule.BusinessHours {
			if !calendar.ValidHHMM(window.Start) || !calendar.ValidHHMM(window.End) {
				return apperrors.NewInvalidInputError("неверное рабочее окно для %s: %s-%s", day, window.Start, window.End)
			}
		}
	}
	if rule.AutoReassign && rule.AutoReassignToID == nil && len(rule.EscalationToRoles) == 0 && rule.EscalationToUserID == nil {
		return apperrors.NewInvalidInputError("для автопереназначения нужно указать получателя или роли")
	}
	if rule.AutoChangePriority && rule.NewPriority == nil {
		return apperrors.NewInvalidInputError("для автосмены приоритета нужно указать новый приоритет")
	}
	return nil
}

func (s *EscalationRuleService) GetRules(ctx context.Context, filter types.Filter) ([]dto.EscalationRuleResponseDTO, uint64, error) {
	rules, total, err := s.ruleRepo.GetRules(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	result := make([]dto.EscalationRuleResponseDTO, 0, len(rules))
	for i := range rules {
		result = append(result, ruleToDTO(&rules[i]))
	}
	return result, total, nil
}

func (s *EscalationRuleService) FindRule(ctx context.Context, id uint64) (*dto.EscalationRuleResponseDTO, error) {
	rule, err := s.ruleRepo.FindRule(ctx, id)
	if err != nil {
		return nil, err
	}
	ruleDTO := ruleToDTO(rule)
	return &ruleDTO, nil
}

func (s *EscalationRuleService) CreateRule(ctx context.Context, payload dto.CreateEscalationRuleDTO) (*dto.EscalationRuleResponseDTO, error) {
	rule := ruleFromCreateDTO(payload)
	if err := validateRule(&rule); err != nil {
		return nil, err
	}

	newID, err := s.ruleRepo.CreateRule(ctx, rule)
	if err != nil {
		return nil, err
	}
	s.invalidateCache(ctx)
	return s.FindRule(ctx, newID)
}

func (s *EscalationRuleService) UpdateRule(ctx context.Context, id uint64, payload dto.UpdateEscalationRuleDTO) (*dto.EscalationRuleResponseDTO, error) {
	rule, err := s.ruleRepo.FindRule(ctx, id)
	if err != nil {
		return nil, err
	}

	applyRulePatch(rule, payload)
	if err := validateRule(rule); err != nil {
		return nil, err
	}

	if err := s.ruleRepo.UpdateRule(ctx, id, *rule); err != nil {
		return nil, err
	}
	s.invalidateCache(ctx)
	return s.FindRule(ctx, id)
}

func (s *EscalationRuleService) DeleteRule(ctx context.Context, id uint64) error {
	if err := s.ruleRepo.DeleteRule(ctx, id); err != nil {
		return err
	}
	s.invalidateCache(ctx)
	return nil
}

// GetActiveRules отдаёт действующие правила, по возможности из кеша.
// Проблемы с кешем не мешают основному пути: идём в базу.
func (s *EscalationRuleService) GetActiveRules(ctx context.Context) ([]entities.EscalationRule, error) {
	if cached, err := s.cacheRepo.Get(ctx, constants.CacheKeyActiveRules); err == nil && cached != "" {
		var rules []entities.EscalationRule
		if err := json.Unmarshal([]byte(cached), &rules); err == nil {
			return rules, nil
		}
		s.logger.Warn("Кеш активных правил повреждён, читаем из базы")
	}

	rules, err := s.ruleRepo.GetActiveRules(ctx)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(rules); err == nil {
		if err := s.cacheRepo.Set(ctx, constants.CacheKeyActiveRules, string(raw), s.cacheTTL); err != nil {
			s.logger.Warn("Не удалось записать активные правила в кеш", zap.Error(err))
		}
	}
	return rules, nil
}

func (s *EscalationRuleService) invalidateCache(ctx context.Context) {
	if err := s.cacheRepo.Del(ctx, constants.CacheKeyActiveRules); err != nil {
		s.logger.Warn("Не удалось сбросить кеш активных правил", zap.Error(err))
	}
}

func ruleFromCreateDTO(payload dto.CreateEscalationRuleDTO) entities.EscalationRule {
	isActive := true
	if payload.IsActive != nil {
		isActive = *payload.IsActive
	}
	return entities.EscalationRule{
		Name:      payload.Name,
		IsGlobal:  payload.IsGlobal,
		CompanyID: payload.CompanyID,
		BranchID:  payload.BranchID,

		Stage:     entities.Stage(payload.Stage),
		AppliesTo: entities.AppliesTo(payload.AppliesTo),
		IsActive:  isActive,
		Priority:  payload.Priority,

		WarningThreshold:    payload.WarningThreshold,
		EscalationThreshold: payload.EscalationThreshold,
		CriticalThreshold:   payload.CriticalThreshold,

		UseBusinessHours: payload.UseBusinessHours,
		BusinessHours:    payload.BusinessHours,
		ExcludeWeekends:  payload.ExcludeWeekends,
		ExcludeHolidays:  payload.ExcludeHolidays,
		Holidays:         payload.Holidays,

		Level: entities.EscalationLevel(payload.EscalationLevel),

		NotifyCurrentAssignee: payload.NotifyCurrentAssignee,
		NotifyBranchAdmin:     payload.NotifyBranchAdmin,
		NotifyCompanyAdmin:    payload.NotifyCompanyAdmin,
		NotifySuperAdmin:      payload.NotifySuperAdmin,
		NotifyEmails:          payload.NotifyEmails,
		EscalationToRoles:     payload.EscalationToRoles,
		EscalationToUserID:    payload.EscalationToUserID,

		AutoReassign:       payload.AutoReassign,
		AutoReassignToID:   payload.AutoReassignToID,
		AutoChangePriority: payload.AutoChangePriority,
		NewPriority:        payload.NewPriority,

		Conditions: payload.Conditions,
	}
}

func applyRulePatch(rule *entities.EscalationRule, payload dto.UpdateEscalationRuleDTO) {
	if payload.Name.Valid {
		rule.Name = payload.Name.String
	}
	if payload.IsGlobal.Valid {
		rule.IsGlobal = payload.IsGlobal.Bool
	}
	if payload.CompanyID.Valid {
		v := payload.CompanyID.Uint64
		rule.CompanyID = &v
	}
	if payload.BranchID.Valid {
		v := payload.BranchID.Uint64
		rule.BranchID = &v
	}
	if payload.Stage.Valid {
		rule.Stage = entities.Stage(payload.Stage.String)
	}
	if payload.AppliesTo.Valid {
		rule.AppliesTo = entities.AppliesTo(payload.AppliesTo.String)
	}
	if payload.IsActive.Valid {
		rule.IsActive = payload.IsActive.Bool
	}
	if payload.Priority.Valid {
		rule.Priority = payload.Priority.Int
	}
	if payload.WarningThreshold.Valid {
		v := payload.WarningThreshold.Int
		rule.WarningThreshold = &v
	}
	if payload.EscalationThreshold.Valid {
		rule.EscalationThreshold = payload.EscalationThreshold.Int
	}
	if payload.CriticalThreshold.Valid {
		v := payload.CriticalThreshold.Int
		rule.CriticalThreshold = &v
	}
	if payload.UseBusinessHours.Valid {
		rule.UseBusinessHours = payload.UseBusinessHours.Bool
	}
	if payload.BusinessHours != nil {
		rule.BusinessHours = payload.BusinessHours
	}
	if payload.ExcludeWeekends.Valid {
		rule.ExcludeWeekends = payload.ExcludeWeekends.Bool
	}
	if payload.ExcludeHolidays.Valid {
		rule.ExcludeHolidays = payload.ExcludeHolidays.Bool
	}
	if payload.Holidays != nil {
		rule.Holidays = payload.Holidays
	}
	if payload.EscalationLevel.Valid {
		rule.Level = entities.EscalationLevel(payload.EscalationLevel.String)
	}
	if payload.NotifyCurrentAssignee.Valid {
		rule.NotifyCurrentAssignee = payload.NotifyCurrentAssignee.Bool
	}
	if payload.NotifyBranchAdmin.Valid {
		rule.NotifyBranchAdmin = payload.NotifyBranchAdmin.Bool
	}
	if payload.NotifyCompanyAdmin.Valid {
		rule.NotifyCompanyAdmin = payload.NotifyCompanyAdmin.Bool
	}
	if payload.NotifySuperAdmin.Valid {
		rule.NotifySuperAdmin = payload.NotifySuperAdmin.Bool
	}
	if payload.NotifyEmails != nil {
		rule.NotifyEmails = payload.NotifyEmails
	}
	if payload.EscalationToRoles != nil {
		rule.EscalationToRoles = payload.EscalationToRoles
	}
	if payload.EscalationToUserID.Valid {
		v := payload.EscalationToUserID.Uint64
		rule.EscalationToUserID = &v
	}
	if payload.AutoReassign.Valid {
		rule.AutoReassign = payload.AutoReassign.Bool
	}
	if payload.AutoReassignToID.Valid {
		v := payload.AutoReassignToID.Uint64
		rule.AutoReassignToID = &v
	}
	if payload.AutoChangePriority.Valid {
		rule.AutoChangePriority = payload.AutoChangePriority.Bool
	}
	if payload.NewPriority.Valid {
		v := payload.NewPriority.Int
		rule.NewPriority = &v
	}
	if payload.Conditions != nil {
		rule.Conditions = payload.Conditions
	}
}

func ruleToDTO(rule *entities.EscalationRule) dto.EscalationRuleResponseDTO {
	result := dto.EscalationRuleResponseDTO{
		ID:        rule.ID,
		Name:      rule.Name,
		IsGlobal:  rule.IsGlobal,
		CompanyID: rule.CompanyID,
		BranchID:  rule.BranchID,

		Stage:     string(rule.Stage),
		AppliesTo: string(rule.AppliesTo),
		IsActive:  rule.IsActive,
		Priority:  rule.Priority,

		WarningThreshold:    rule.WarningThreshold,
		EscalationThreshold: rule.EscalationThreshold,
		CriticalThreshold:   rule.CriticalThreshold,

		UseBusinessHours: rule.UseBusinessHours,
		BusinessHours:    rule.BusinessHours,
		ExcludeWeekends:  rule.ExcludeWeekends,
		ExcludeHolidays:  rule.ExcludeHolidays,
		Holidays:         rule.Holidays,

		EscalationLevel: string(rule.Level),

		NotifyCurrentAssignee: rule.NotifyCurrentAssignee,
		NotifyBranchAdmin:     rule.NotifyBranchAdmin,
		NotifyCompanyAdmin:    rule.NotifyCompanyAdmin,
		NotifySuperAdmin:      rule.NotifySuperAdmin,
		NotifyEmails:          rule.NotifyEmails,
		EscalationToRoles:     rule.EscalationToRoles,
		EscalationToUserID:    rule.EscalationToUserID,

		AutoReassign:       rule.AutoReassign,
		AutoReassignToID:   rule.AutoReassignToID,
		AutoChangePriority: rule.AutoChangePriority,
		NewPriority:        rule.NewPriority,

		Conditions: rule.Conditions,
	}
	if rule.CreatedAt != nil {
		result.CreatedAt = rule.CreatedAt.Local().Format("2006-01-02 15:04:05")
	}
	if rule.UpdatedAt != nil {
		result.UpdatedAt = rule.UpdatedAt.Local().Format("2006-01-02 15:04:05")
	}
	return result
}
