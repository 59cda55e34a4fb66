package controllers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"case-system/internal/services"
	"case-system/pkg/utils"
)

type DashboardController struct {
	service services.DashboardServiceInterface
	logger  *zap.Logger
}

func NewDashboardController(service services.DashboardServiceInterface, logger *zap.Logger) *DashboardController {
	return &DashboardController{service: service, logger: logger}
}

func (c *DashboardController) GetSLADashboard(ctx echo.Context) error {
	parseID := func(name string) *uint64 {
		if raw := ctx.QueryParam(name); raw != "" {
			if v, err := strconv.ParseUint(raw, 10, 64); err == nil && v > 0 {
				return &v
			}
		}
		return nil
	}

	stats, err := c.service.GetSLADashboard(ctx.Request().Context(), parseID("company_id"), parseID("branch_id"))
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, stats, "Сводка SLA получена", http.StatusOK)
}
