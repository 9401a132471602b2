package router

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"inspect-go/internal/cache"
	"inspect-go/internal/config"
	"inspect-go/internal/handler"
	"inspect-go/internal/metrics"
	"inspect-go/internal/middleware"
	"inspect-go/internal/repository"
	"inspect-go/internal/service"
	"inspect-go/internal/utils"
	"inspect-go/internal/view"
	"inspect-go/pkg/backend_client"
	"inspect-go/pkg/redis_limiter"
)

// slotTTL Redis 中处理槽位计数的过期时间，控制台异常退出后槽位最终会被释放
const slotTTL = 6 * time.Hour

// SetupRouter 设置路由，返回的 cleanup 结束 SSE 连接、任务轮询和过期会话清理，可重复调用
// redisClient 为 nil 时使用进程内缓存和本地限流
func SetupRouter(
	cfg *config.Config,
	logger *logrus.Logger,
	db *gorm.DB,
	redisClient *redis.Client,
	api backend_client.API,
) (*gin.Engine, func(), error) {
	if cfg.Server.ProductionMode {
		gin.SetMode(gin.ReleaseMode)
	}
	utils.InitValidator()

	tmpl, err := view.PageTemplates()
	if err != nil {
		return nil, nil, fmt.Errorf("解析页面模板失败: %w", err)
	}

	var (
		contextCache cache.ContextCache
		limiter      redis_limiter.Limiter
	)
	if redisClient != nil {
		contextCache = cache.NewRedisCache(redisClient, "inspect:context:", cfg.Redis.GetContextTTL())
		limiter = redis_limiter.NewRedisLimiter(redisClient, cfg.Redis.MaxProcessing, "inspect:slots:", slotTTL, logger)
	} else {
		lru, err := cache.NewLRUCache(cfg.UI.ContextCacheSize)
		if err != nil {
			return nil, nil, fmt.Errorf("创建上下文缓存失败: %w", err)
		}
		contextCache = lru
		limiter = redis_limiter.NewLocalLimiter(cfg.Redis.MaxProcessing)
	}

	// 初始化Repository
	uiStateRepo := repository.NewUIStateRepository(db)
	taskRepo := repository.NewTaskRepository(db)

	// 初始化Service
	lists := service.NewListController(api, uiStateRepo, contextCache, &cfg.UI, logger)
	stats := service.NewStatsService(api, logger)
	history := service.NewSearchHistoryService(api, &cfg.UI, logger)
	calls := service.NewCallRecordService(api, uiStateRepo, &cfg.UI, logger)
	poller := service.NewTaskPoller(api, taskRepo, cfg.UI.GetPollInterval(), service.ProcessingHooks(stats, calls, limiter), logger)
	uploads := service.NewUploadService(api, poller, limiter, taskRepo, logger)
	janitor := service.NewSessionJanitor(uiStateRepo, poller, cfg.Session.GetExpireDuration(), service.DefaultSweepInterval, logger)

	// 初始化Handler
	pageHandler := handler.NewPageHandler(tmpl, cfg.Server.Title, logger)
	listHandler := handler.NewListHandler(lists, logger)
	taskHandler := handler.NewTaskHandler(uploads, poller, cfg.Server.MaxUploadMB<<20, logger)
	callHandler := handler.NewCallRecordHandler(calls, logger)
	overviewHandler := handler.NewOverviewHandler(stats, history, logger)

	r := gin.New()

	// 全局中间件
	r.Use(gin.Recovery())
	r.Use(middleware.CORS(&cfg.CORS))

	// 健康检查
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	sessions := utils.NewSessionManager(cfg.Session.SecretKey, cfg.Session.Algorithm, cfg.Session.GetExpireDuration())
	app := r.Group("")
	app.Use(middleware.SessionMiddleware(sessions, cfg.Session.CookieName, cfg.Server.ProductionMode, logger))
	app.Use(middleware.LoggerMiddleware(logger))
	{
		app.GET("/", pageHandler.Index)

		ui := app.Group("/ui")
		{
			// 列表
			ui.GET("/search", listHandler.Search)
			ui.GET("/favorites", listHandler.Favorites)
			ui.GET("/messages", listHandler.Messages)
			ui.POST("/favorites/toggle", listHandler.ToggleFavorite)
			ui.GET("/context/:message_id", listHandler.Context)

			// 搜索历史和概览
			ui.GET("/search/history", overviewHandler.History)
			ui.POST("/search/history/clear", overviewHandler.ClearHistory)
			ui.GET("/search/suggestions", overviewHandler.Suggestions)
			ui.GET("/stats", overviewHandler.Stats)

			// 上传和任务进度
			ui.POST("/upload", taskHandler.Upload)
			ui.GET("/task/status", taskHandler.Status)
			ui.GET("/task/events", taskHandler.Events)
			ui.GET("/task/recent", taskHandler.Recent)

			// 通话记录
			ui.GET("/call-records", callHandler.Load)
			ui.POST("/call-records/chart", callHandler.UpdateChart)
			ui.GET("/call-records/download", callHandler.Download)
		}
	}

	r.NoRoute(func(c *gin.Context) {
		utils.NotFound(c, "接口不存在")
	})

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	sweepDone := make(chan struct{})
	go func() {
		defer close(sweepDone)
		janitor.Run(sweepCtx)
	}()

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			taskHandler.Close()
			poller.StopAll()
			stopSweep()
			<-sweepDone
		})
	}
	return r, cleanup, nil
}
