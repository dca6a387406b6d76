package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/wfunc/boardgame-server/internal/game"
	"github.com/wfunc/boardgame-server/internal/session"
	ws "github.com/wfunc/boardgame-server/internal/websocket"
)

// Router API路由器
type Router struct {
	engine         *gin.Engine
	db             *gorm.DB
	sessionHandler *SessionHandler
	wsHandler      *WebSocketHandler
	log            *zap.Logger
}

// NewRouter 创建路由器
func NewRouter(db *gorm.DB, manager *session.Manager, registry *game.Registry, hub *ws.Hub, log *zap.Logger) *Router {
	// 创建Gin引擎
	engine := gin.New()

	// 全局中间件
	engine.Use(gin.Recovery())
	engine.Use(gin.Logger())

	router := &Router{
		engine:         engine,
		db:             db,
		sessionHandler: NewSessionHandler(manager, registry, log),
		wsHandler:      NewWebSocketHandler(hub, manager, log),
		log:            log,
	}

	// 设置路由
	router.setupRoutes()

	return router
}

// setupRoutes 设置路由
func (r *Router) setupRoutes() {
	// 健康检查
	r.engine.GET("/health", r.healthCheck)

	// API v1路由组
	v1 := r.engine.Group("/api/v1")
	{
		games := v1.Group("/games")
		{
			games.GET("", r.sessionHandler.ListGames)
			games.POST("/:slug/sessions", r.sessionHandler.CreateSession)
			games.GET("/:slug/sessions/:id", r.sessionHandler.GetSession)
			games.GET("/:slug/sessions/:id/actions/:seat", r.sessionHandler.GetLegalActions)
			games.POST("/:slug/sessions/:id/action", r.sessionHandler.SubmitAction)
		}
	}

	// WebSocket路由
	ws := r.engine.Group("/ws")
	{
		ws.GET("/sessions/:id", r.wsHandler.SessionWebSocket)
	}

	// API文档
	registerOpenAPIRoutes(r.engine)
	registerSwaggerRoutes(r.engine)

	// 404处理
	r.engine.NoRoute(func(c *gin.Context) {
		c.JSON(404, gin.H{
			"code":    "NOT_FOUND",
			"message": "接口不存在",
		})
	})
}

// healthCheck 健康检查
func (r *Router) healthCheck(c *gin.Context) {
	// 检查数据库连接
	sqlDB, err := r.db.DB()
	if err != nil {
		c.JSON(500, gin.H{
			"status":  "unhealthy",
			"message": "数据库连接失败",
		})
		return
	}

	if err := sqlDB.Ping(); err != nil {
		c.JSON(500, gin.H{
			"status":  "unhealthy",
			"message": "数据库ping失败",
		})
		return
	}

	c.JSON(200, gin.H{
		"status":  "healthy",
		"message": "服务运行正常",
	})
}

// Run 运行服务器
func (r *Router) Run(addr string) error {
	r.log.Info("Starting API server", zap.String("address", addr))
	return r.engine.Run(addr)
}

// GetEngine 获取Gin引擎（用于测试）
func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}
