package routes

import (
	"github.com/labstack/echo/v4"

	"case-system/internal/controllers"
)

func runDashboardRouter(api *echo.Group, ctrl *controllers.DashboardController) {
	api.GET("/dashboard/sla", ctrl.GetSLADashboard)
}
