package routes

import (
	"github.com/labstack/echo/v4"

	"case-system/internal/controllers"
	"case-system/pkg/middleware"
)

func runEscalationRouter(api *echo.Group, ctrl *controllers.EscalationController, authMW *middleware.AuthMiddleware) {
	{
		api.GET("/escalations", ctrl.GetAll)
		api.GET("/cases/:id/escalations", ctrl.GetByCase)
		api.POST("/escalations/:id/resolve", ctrl.Resolve, authMW.Auth)
	}
}
