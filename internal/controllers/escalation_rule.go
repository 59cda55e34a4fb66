// Файл: internal/controllers/escalation_rule.go
package controllers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"case-system/internal/dto"
	"case-system/internal/services"
	apperrors "case-system/pkg/errors"
	"case-system/pkg/utils"
)

type EscalationRuleController struct {
	service services.EscalationRuleServiceInterface
	logger  *zap.Logger
}

func NewEscalationRuleController(service services.EscalationRuleServiceInterface, logger *zap.Logger) *EscalationRuleController {
	return &EscalationRuleController{service: service, logger: logger}
}

func (c *EscalationRuleController) GetAll(ctx echo.Context) error {
	filter := utils.ParseFilterFromQuery(ctx.Request().URL.Query())
	rules, total, err := c.service.GetRules(ctx.Request().Context(), filter)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, rules, "Список правил получен", http.StatusOK, total)
}

func (c *EscalationRuleController) GetByID(ctx echo.Context) error {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil {
		return utils.ErrorResponse(ctx, apperrors.ErrBadRequest, c.logger)
	}
	rule, err := c.service.FindRule(ctx.Request().Context(), id)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, rule, "Правило найдено", http.StatusOK)
}

func (c *EscalationRuleController) Create(ctx echo.Context) error {
	var payload dto.CreateEscalationRuleDTO
	if err := ctx.Bind(&payload); err != nil {
		return utils.ErrorResponse(ctx, apperrors.NewHttpError(http.StatusBadRequest, "Неверные данные", err, nil), c.logger)
	}
	if err := ctx.Validate(&payload); err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	rule, err := c.service.CreateRule(ctx.Request().Context(), payload)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, rule, "Правило создано", http.StatusCreated)
}

func (c *EscalationRuleController) Update(ctx echo.Context) error {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil {
		return utils.ErrorResponse(ctx, apperrors.ErrBadRequest, c.logger)
	}
	var payload dto.UpdateEscalationRuleDTO
	if err := ctx.Bind(&payload); err != nil {
		return utils.ErrorResponse(ctx, apperrors.NewHttpError(http.StatusBadRequest, "Неверные данные", err, nil), c.logger)
	}
	if err := ctx.Validate(&payload); err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	rule, err := c.service.UpdateRule(ctx.Request().Context(), id, payload)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, rule, "Правило обновлено", http.StatusOK)
}

func (c *EscalationRuleController) Delete(ctx echo.Context) error {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil {
		return utils.ErrorResponse(ctx, apperrors.ErrBadRequest, c.logger)
	}
	if err := c.service.DeleteRule(ctx.Request().Context(), id); err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, struct{}{}, "Правило удалено", http.StatusOK)
}
