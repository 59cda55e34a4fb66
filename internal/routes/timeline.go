package routes

import (
	"github.com/labstack/echo/v4"

	"case-system/internal/controllers"
)

func runTimelineRouter(api *echo.Group, ctrl *controllers.TimelineController) {
	{
		api.GET("/cases/:id/timeline", ctrl.GetTimeline)
		api.GET("/cases/:id/duration-summary", ctrl.GetDurationSummary)
	}
}
