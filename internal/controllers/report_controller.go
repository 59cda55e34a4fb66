package controllers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"case-system/internal/entities"
	"case-system/internal/services"
	"case-system/pkg/utils"
)

type ReportController struct {
	reportService services.ReportServiceInterface
	logger        *zap.Logger
}

func NewReportController(reportService services.ReportServiceInterface, logger *zap.Logger) *ReportController {
	return &ReportController{reportService: reportService, logger: logger}
}

func (c *ReportController) GetSLAReport(ctx echo.Context) error {
	filter := c.parseFilters(ctx, false)
	c.logger.Debug("Запрос отчёта по просрочкам", zap.Any("filters", filter))

	data, total, err := c.reportService.GetSLAReport(ctx.Request().Context(), filter)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, data, "Отчёт успешно сформирован", http.StatusOK, total)
}

func (c *ReportController) ExportSLAReport(ctx echo.Context) error {
	filter := c.parseFilters(ctx, true)
	c.logger.Debug("Экспорт отчёта по просрочкам", zap.Any("filters", filter))

	data, _, err := c.reportService.GetSLAReport(ctx.Request().Context(), filter)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return c.respondWithXLSX(ctx, data)
}

func (c *ReportController) parseFilters(ctx echo.Context, export bool) entities.SLAReportFilter {
	stdFilter := utils.ParseFilterFromQuery(ctx.Request().URL.Query())
	filter := entities.SLAReportFilter{
		Page:    stdFilter.Page,
		PerPage: stdFilter.Limit,
	}

	if export {
		filter.Page = 1
		filter.PerPage = 100000 // Выгружаем всё для экспорта
	}

	if df := ctx.QueryParam("date_from"); df != "" {
		if t, err := time.Parse(time.RFC3339, df); err == nil {
			filter.DateFrom = &t
		}
	}
	if dt := ctx.QueryParam("date_to"); dt != "" {
		if t, err := time.Parse(time.RFC3339, dt); err == nil {
			filter.DateTo = &t
		}
	}
	if raw := ctx.QueryParam("company_id"); raw != "" {
		if v, err := strconv.ParseUint(raw, 10, 64); err == nil && v > 0 {
			filter.CompanyID = &v
		}
	}
	if raw := ctx.QueryParam("branch_id"); raw != "" {
		if v, err := strconv.ParseUint(raw, 10, 64); err == nil && v > 0 {
			filter.BranchID = &v
		}
	}
	if raw := ctx.QueryParam("stages"); raw != "" {
		filter.Stages = strings.Split(raw, ",")
	}
	if raw := ctx.QueryParam("levels"); raw != "" {
		filter.Levels = strings.Split(raw, ",")
	}
	filter.OnlyOpen = ctx.QueryParam("only_open") == "true"

	return filter
}

var slaReportHeaders = []string{
	"№", "Дело", "Вид", "Категория", "Правило", "Этап", "Уровень",
	"Причина", "Прошло", "Порог", "Дата эскалации",
	"Разрешена", "Дата разрешения", "Кем разрешена", "Комментарий", "Исполнитель",
}

func slaRowToSlice(item entities.SLAReportItem) []interface{} {
	dateFmt := "02.01.2006 15:04"
	var category, resolvedAt, resolvedBy, note, assignee string
	if item.Category != nil {
		category = *item.Category
	}
	if item.ResolvedAt != nil {
		resolvedAt = item.ResolvedAt.Local().Format(dateFmt)
	}
	if item.ResolvedByFio != nil {
		resolvedBy = *item.ResolvedByFio
	}
	if item.ResolutionNote != nil {
		note = *item.ResolutionNote
	}
	if item.AssigneeFio != nil {
		assignee = *item.AssigneeFio
	}
	resolved := "нет"
	if item.IsResolved {
		resolved = "да"
	}

	return []interface{}{
		item.EscalationID, item.CaseID, item.CaseType, category, item.RuleName, item.Stage, item.Level,
		item.Reason,
		utils.FormatMinutesToHumanReadable(item.ElapsedMinutes),
		utils.FormatMinutesToHumanReadable(item.ThresholdUsed),
		item.EscalatedAt.Local().Format(dateFmt),
		resolved, resolvedAt, resolvedBy, note, assignee,
	}
}

func (c *ReportController) respondWithXLSX(ctx echo.Context, data []entities.SLAReportItem) error {
	f := excelize.NewFile()
	sheet := "Отчёт по просрочкам"
	f.SetSheetName("Sheet1", sheet)
	f.SetSheetRow(sheet, "A1", &slaReportHeaders)
	style, _ := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	f.SetCellStyle(sheet, "A1", "P1", style)

	for i, item := range data {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		row := slaRowToSlice(item)
		f.SetSheetRow(sheet, cell, &row)
	}
	f.SetColWidth(sheet, "D", "F", 20)
	f.SetColWidth(sheet, "H", "H", 50)
	f.SetColWidth(sheet, "K", "K", 20)
	f.SetColWidth(sheet, "M", "P", 25)

	fileName := fmt.Sprintf("sla_report_%s.xlsx", time.Now().Format("2006-01-02"))
	ctx.Response().Header().Set(echo.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	ctx.Response().Header().Set("Content-Disposition", "attachment; filename="+fileName)
	ctx.Response().WriteHeader(http.StatusOK)
	return f.Write(ctx.Response().Writer)
}
