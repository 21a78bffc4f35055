package router

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/Avadeshsharma67/edvix-learniverse-sub000/internal/config"
	"github.com/Avadeshsharma67/edvix-learniverse-sub000/internal/handler"
	"github.com/Avadeshsharma67/edvix-learniverse-sub000/internal/identity"
	"github.com/Avadeshsharma67/edvix-learniverse-sub000/internal/middleware"
)

// SetupRouter 设置路由
func SetupRouter(
	cfg *config.Config,
	tokenService *identity.TokenService,
	chatHandler *handler.ChatHandler,
) *gin.Engine {
	// 设置 Gin 模式
	gin.SetMode(cfg.App.Mode)

	r := gin.New()

	// 全局中间件
	r.Use(gin.Recovery())

	// Swagger 文档路由
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// API v1
	v1 := r.Group("/api/v1")
	{
		authenticated := v1.Group("")
		authenticated.Use(middleware.JWTAuth(tokenService))
		{
			chat := authenticated.Group("/chat")
			{
				chat.GET("/conversations", chatHandler.ListConversations)
				chat.POST("/conversations", chatHandler.StartConversation)
				chat.GET("/conversations/:id/messages", chatHandler.ListMessages)
				chat.POST("/conversations/:id/messages", chatHandler.SendMessage)
				chat.POST("/conversations/:id/read", chatHandler.MarkRead)
				chat.GET("/unread", chatHandler.TotalUnread)
			}
		}
	}

	return r
}
