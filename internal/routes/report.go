package routes

import (
	"github.com/labstack/echo/v4"

	"case-system/internal/controllers"
)

func runReportRouter(api *echo.Group, ctrl *controllers.ReportController) {
	{
		api.GET("/reports/sla", ctrl.GetSLAReport)
		api.GET("/reports/sla/export", ctrl.ExportSLAReport)
	}
}
