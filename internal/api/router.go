package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"greybackend/pkg/logger"
	"greybackend/pkg/otel"
	"greybackend/pkg/rbac"
)

type Router struct {
	Engine *gin.Engine
}

type RouterConfig struct {
	JWTSecret    string
	MaxBodyBytes int64
	Logger       *zap.Logger
}

func NewRouter(uploadHandler *UploadHandler, emailHandler *EmailHandler, cfg RouterConfig) *Router {
	log := logger.OrNop(cfg.Logger)

	r := gin.New()
	r.Use(gin.Recovery(), TraceMiddleware(), otel.GinMiddleware(), AccessLog(log), BodyLimit(cfg.MaxBodyBytes))

	// Public
	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "Grey Insaat API is running", "version": "2.0.0"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Protected
	auth := r.Group("/api")
	auth.Use(AuthMiddleware(cfg.JWTSecret))
	{
		auth.POST("/upload/image", RequirePermission(rbac.PermissionUploadAsset), uploadHandler.UploadImage)
		auth.POST("/upload/images", RequirePermission(rbac.PermissionUploadAsset), uploadHandler.UploadImages)

		auth.POST("/email/send", RequirePermission(rbac.PermissionSendEmail), emailHandler.Send)
		auth.GET("/email/sent", RequirePermission(rbac.PermissionReadEmailLog), emailHandler.Sent)
		auth.GET("/email/test-credentials", RequirePermission(rbac.PermissionCheckCredentials), emailHandler.TestCredentials)
	}

	r.NoRoute(func(c *gin.Context) {
		fail(c, http.StatusNotFound, "Route not found")
	})

	return &Router{Engine: r}
}

func (r *Router) Run(port string) error {
	return r.Engine.Run(port)
}
