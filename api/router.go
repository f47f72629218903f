package api

import (
	"github.com/gin-gonic/gin"

	"chode/api/handler"
)

// InitRouter 宿主适配器（聊天平台那头）调用的 HTTP 面
func InitRouter() *gin.Engine {
	r := gin.Default()

	chatGroup := r.Group("/chat")
	{
		chatGroup.POST("/message", handler.ChatMessage)
		chatGroup.POST("/react", handler.SuggestReaction)
		chatGroup.POST("/history", handler.ListHistory)
		chatGroup.POST("/setup", handler.SetupPersonality)
	}

	imgGroup := r.Group("/img")
	{
		imgGroup.POST("/generate", handler.GenerateImage)
	}

	musicGroup := r.Group("/music")
	{
		musicGroup.POST("/enqueue", handler.MusicEnqueue)
		musicGroup.POST("/next", handler.MusicNext)
		musicGroup.POST("/prev", handler.MusicPrev)
		musicGroup.POST("/stop", handler.MusicStop)
		musicGroup.POST("/control", handler.MusicSetControl)
		musicGroup.POST("/control/get", handler.MusicGetControl)
	}

	return r
}
