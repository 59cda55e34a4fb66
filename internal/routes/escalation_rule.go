package routes

import (
	"github.com/labstack/echo/v4"

	"case-system/internal/controllers"
	"case-system/pkg/middleware"
)

func runEscalationRuleRouter(api *echo.Group, ctrl *controllers.EscalationRuleController, authMW *middleware.AuthMiddleware) {
	{
		api.GET("/escalation-rules", ctrl.GetAll)
		api.GET("/escalation-rules/:id", ctrl.GetByID)
		api.POST("/escalation-rules", ctrl.Create, authMW.Auth)
		api.PUT("/escalation-rules/:id", ctrl.Update, authMW.Auth)
		api.DELETE("/escalation-rules/:id", ctrl.Delete, authMW.Auth)
	}
}
