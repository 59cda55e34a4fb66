// Файл: internal/controllers/escalation.go
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

type EscalationController struct {
	service services.EscalationServiceInterface
	logger  *zap.Logger
}

func NewEscalationController(service services.EscalationServiceInterface, logger *zap.Logger) *EscalationController {
	return &EscalationController{service: service, logger: logger}
}

func (c *EscalationController) GetAll(ctx echo.Context) error {
	filter := utils.ParseFilterFromQuery(ctx.Request().URL.Query())
	escalations, total, err := c.service.GetEscalations(ctx.Request().Context(), filter)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, escalations, "Список эскалаций получен", http.StatusOK, total)
}

func (c *EscalationController) GetByCase(ctx echo.Context) error {
	caseID, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil {
		return utils.ErrorResponse(ctx, apperrors.ErrBadRequest, c.logger)
	}
	escalations, err := c.service.FindByCase(ctx.Request().Context(), caseID)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, escalations, "Эскалации дела получены", http.StatusOK)
}

func (c *EscalationController) Resolve(ctx echo.Context) error {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil {
		return utils.ErrorResponse(ctx, apperrors.ErrBadRequest, c.logger)
	}

	userID, err := utils.GetUserIDFromCtx(ctx.Request().Context())
	if err != nil {
		return utils.ErrorResponse(ctx, apperrors.ErrUnauthorized, c.logger)
	}

	var payload dto.ResolveEscalationDTO
	if err := ctx.Bind(&payload); err != nil {
		return utils.ErrorResponse(ctx, apperrors.NewHttpError(http.StatusBadRequest, "Неверные данные", err, nil), c.logger)
	}
	if err := ctx.Validate(&payload); err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	escalation, err := c.service.ResolveEscalation(ctx.Request().Context(), id, userID, payload)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, escalation, "Эскалация разрешена", http.StatusOK)
}
