package routes

import (
	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"case-system/internal/controllers"
	"case-system/internal/listeners"
	"case-system/internal/repositories"
	"case-system/internal/services"
	"case-system/internal/worker"
	"case-system/pkg/config"
	"case-system/pkg/eventbus"
	"case-system/pkg/middleware"
	"case-system/pkg/service"
)

// InitRouter собирает весь граф зависимостей и регистрирует маршруты.
// Возвращает фоновый воркер и сервис уведомлений, чтобы main мог
// корректно их остановить при завершении.
func InitRouter(
	e *echo.Echo,
	dbConn *pgxpool.Pool,
	redisClient *redis.Client,
	jwtSvc service.JWTService,
	bus *eventbus.Bus,
	logger *zap.Logger,
	cfg *config.Config,
) (*worker.SweepWorker, services.NotificationServiceInterface) {
	logger.Info("InitRouter: Начало создания маршрутов")

	// --- 0. ОБЩИЕ КОМПОНЕНТЫ ---
	api := e.Group("/api")
	authMW := middleware.NewAuthMiddleware(jwtSvc, logger)
	txManager := repositories.NewTxManager(dbConn)
	cacheRepo := repositories.NewRedisCacheRepository(redisClient)

	// --- 1. РЕПОЗИТОРИИ ---
	caseRepo := repositories.NewCaseRepository(dbConn, logger)
	timelineRepo := repositories.NewTimelineEventRepository(dbConn, logger)
	ruleRepo := repositories.NewEscalationRuleRepository(dbConn, logger)
	escalationRepo := repositories.NewEscalationRepository(dbConn, logger)
	userRepo := repositories.NewUserRepository(dbConn, logger)
	reportRepo := repositories.NewReportRepository(dbConn)
	dashboardRepo := repositories.NewDashboardRepository(dbConn, logger)

	// --- 2. СЕРВИСЫ ---
	ruleService := services.NewEscalationRuleService(ruleRepo, cacheRepo, cfg.Sweep.RuleCacheTTL, logger)
	stageResolver := services.NewStageResolverService(logger)
	ruleMatcher := services.NewRuleMatcherService(logger)
	executor := services.NewEscalationExecutorService(
		txManager, caseRepo, escalationRepo, timelineRepo, userRepo, bus, logger,
	)
	evaluator := services.NewEscalationEvaluatorService(
		timelineRepo, escalationRepo, cacheRepo,
		stageResolver, ruleMatcher, ruleService, executor, bus, logger,
	)
	escalationService := services.NewEscalationService(escalationRepo, caseRepo, ruleRepo)
	timelineService := services.NewTimelineService(caseRepo, timelineRepo, stageResolver)
	dashboardService := services.NewDashboardService(dashboardRepo, logger)
	reportService := services.NewReportService(reportRepo, logger)
	notificationService := services.NewMockNotificationService(logger)

	// --- 3. СЛУШАТЕЛИ И ВОРКЕРЫ ---
	notificationListener := listeners.NewNotificationListener(notificationService, userRepo, escalationRepo, logger)
	notificationListener.Register(bus)

	sweepWorker := worker.NewSweepWorker(caseRepo, evaluator, cfg.Sweep.Interval, cfg.Sweep.Concurrency, logger)

	// --- 4. КОНТРОЛЛЕРЫ ---
	ruleController := controllers.NewEscalationRuleController(ruleService, logger)
	escalationController := controllers.NewEscalationController(escalationService, logger)
	timelineController := controllers.NewTimelineController(timelineService, logger)
	dashboardController := controllers.NewDashboardController(dashboardService, logger)
	reportController := controllers.NewReportController(reportService, logger)

	// --- 5. РОУТЕРЫ ---
	runEscalationRuleRouter(api, ruleController, authMW)
	runEscalationRouter(api, escalationController, authMW)
	runTimelineRouter(api, timelineController)
	runDashboardRouter(api, dashboardController)
	runReportRouter(api, reportController)

	logger.Info("InitRouter: Маршруты успешно созданы")
	return sweepWorker, notificationService
}
