// Файл: internal/controllers/timeline.go
package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"case-system/internal/services"
	"case-system/pkg/calendar"
	apperrors "case-system/pkg/errors"
	"case-system/pkg/utils"
)

type TimelineController struct {
	service services.TimelineServiceInterface
	logger  *zap.Logger
}

func NewTimelineController(service services.TimelineServiceInterface, logger *zap.Logger) *TimelineController {
	return &TimelineController{service: service, logger: logger}
}

func (c *TimelineController) GetTimeline(ctx echo.Context) error {
	caseID, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil {
		return utils.ErrorResponse(ctx, apperrors.ErrBadRequest, c.logger)
	}
	includeInternal := ctx.QueryParam("include_internal") == "true"
	timeline, err := c.service.GetTimeline(ctx.Request().Context(), caseID, includeInternal)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, timeline, "Хронология дела получена", http.StatusOK)
}

func (c *TimelineController) GetDurationSummary(ctx echo.Context) error {
	caseID, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil {
		return utils.ErrorResponse(ctx, apperrors.ErrBadRequest, c.logger)
	}
	summary, err := c.service.GetDurationSummary(ctx.Request().Context(), caseID, parseCalendarOptions(ctx))
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, summary, "Сводка по этапам получена", http.StatusOK)
}

// parseCalendarOptions собирает параметры делового календаря из строки запроса.
// По умолчанию считаем настенное время; business_hours=true включает учёт
// рабочих окон (стандартное расписание), holidays - список дат "2006-01-02".
func parseCalendarOptions(ctx echo.Context) calendar.Options {
	opts := calendar.Options{}
	if ctx.QueryParam("business_hours") == "true" {
		opts.UseBusinessHours = true
		opts.Hours = calendar.DefaultBusinessHours()
	}
	if ctx.QueryParam("exclude_weekends") == "true" {
		opts.ExcludeWeekends = true
	}
	if raw := ctx.QueryParam("holidays"); raw != "" {
		opts.ExcludeHolidays = true
		opts.Holidays = calendar.HolidaySet(strings.Split(raw, ",")...)
	}
	return opts
}
