package services

import (
	"context"

	"case-system/internal/dto"
	"case-system/internal/entities"
	"case-system/internal/repositories"
	"case-system/pkg/types"
	"case-system/pkg/utils"
)

type EscalationServiceInterface interface {
	GetEscalations(ctx context.Context, filter types.Filter) ([]dto.EscalationResponseDTO, uint64, error)
	FindByCase(ctx context.Context, caseID uint64) ([]dto.EscalationResponseDTO, error)
	ResolveEscalation(ctx context.Context, id uint64, resolvedBy uint64, payload dto.ResolveEscalationDTO) (*dto.EscalationResponseDTO, error)
}

type EscalationService struct {
	escalationRepo repositories.EscalationRepositoryInterface
	caseRepo       repositories.CaseRepositoryInterface
	ruleRepo       repositories.EscalationRuleRepositoryInterface
}

func NewEscalationService(
	escalationRepo repositories.EscalationRepositoryInterface,
	caseRepo repositories.CaseRepositoryInterface,
	ruleRepo repositories.EscalationRuleRepositoryInterface,
) EscalationServiceInterface {
	return &EscalationService{
		escalationRepo: escalationRepo,
		caseRepo:       caseRepo,
		ruleRepo:       ruleRepo,
	}
}

func (s *EscalationService) GetEscalations(ctx context.Context, filter types.Filter) ([]dto.EscalationResponseDTO, uint64, error) {
	escalations, total, err := s.escalationRepo.GetEscalations(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	result := make([]dto.EscalationResponseDTO, 0, len(escalations))
	for i := range escalations {
		result = append(result, escalationToDTO(&escalations[i], ""))
	}
	return result, total, nil
}

func (s *EscalationService) FindByCase(ctx context.Context, caseID uint64) ([]dto.EscalationResponseDTO, error) {
	// Сначала убеждаемся, что дело существует
	if _, err := s.caseRepo.FindCase(ctx, caseID); err != nil {
		return nil, err
	}

	escalations, err := s.escalationRepo.FindByCaseID(ctx, caseID)
	if err != nil {
		return nil, err
	}

	// Имена правил подтягиваем одним проходом по кешу id -> name
	ruleNames := make(map[uint64]string)
	result := make([]dto.EscalationResponseDTO, 0, len(escalations))
	for i := range escalations {
		name, ok := ruleNames[escalations[i].RuleID]
		if !ok {
			if rule, err := s.ruleRepo.FindRule(ctx, escalations[i].RuleID); err == nil {
				name = rule.Name
			}
			ruleNames[escalations[i].RuleID] = name
		}
		result = append(result, escalationToDTO(&escalations[i], name))
	}
	return result, nil
}

func (s *EscalationService) ResolveEscalation(ctx context.Context, id uint64, resolvedBy uint64, payload dto.ResolveEscalationDTO) (*dto.EscalationResponseDTO, error) {
	if err := s.escalationRepo.Resolve(ctx, id, resolvedBy, payload.Note); err != nil {
		return nil, err
	}
	resolved, err := s.escalationRepo.FindEscalation(ctx, id)
	if err != nil {
		return nil, err
	}
	result := escalationToDTO(resolved, "")
	return &result, nil
}

func escalationToDTO(e *entities.Escalation, ruleName string) dto.EscalationResponseDTO {
	result := dto.EscalationResponseDTO{
		ID:     e.ID,
		CaseID: e.CaseID,
		RuleID: e.RuleID,

		RuleName:       ruleName,
		Stage:          string(e.Stage),
		Level:          string(e.Level),
		Reason:         e.Reason,
		ElapsedMinutes: e.ElapsedMinutes,
		Elapsed:        utils.FormatMinutesToHumanReadable(e.ElapsedMinutes),
		ThresholdUsed:  e.ThresholdUsed,
		EscalatedAt:    e.EscalatedAt.Local().Format("2006-01-02 15:04:05"),

		IsResolved:     e.IsResolved,
		ResolvedBy:     e.ResolvedBy,
		ResolutionNote: e.ResolutionNote,

		WasReassigned:  e.WasReassigned,
		ReassignedFrom: e.ReassignedFrom,
		ReassignedTo:   e.ReassignedTo,

		PriorityChanged: e.PriorityChanged,
		OldPriority:     e.OldPriority,
		NewPriority:     e.NewPriority,

		NotifiedUserIDs: e.NotifiedUserIDs,
	}
	if e.ResolvedAt != nil {
		formatted := e.ResolvedAt.Local().Format("2006-01-02 15:04:05")
		result.ResolvedAt = &formatted
	}
	return result
}
