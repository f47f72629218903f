package handler

import (
	"math/rand"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"chode/config"
	"chode/internal/tools"
)

// 太短的消息不值得品
const minReactLength = 5

type FormReact struct {
	Content string `json:"content" binding:"required"`
}

// SuggestReaction 以配置的概率为一条消息挑 emoji。
// data.emoji 为空表示这次不反应
func SuggestReaction(c *gin.Context) {
	var form FormReact
	if err := c.ShouldBindBodyWith(&form, binding.JSON); err != nil {
		tools.FailWithMsg(c, err.Error())
		return
	}

	// 概率闸门在这里过，免得每条消息都打一次 LLM
	if len(form.Content) < minReactLength || rand.Float64() > config.Conf.Bot.ReactionProbability {
		tools.SuccessWithMsg(c, "ok", gin.H{"emoji": ""})
		return
	}

	emoji, err := LM.SuggestReaction(c.Request.Context(), form.Content)
	if err != nil {
		tools.FailWithMsg(c, "llm fail: "+err.Error())
		return
	}
	tools.SuccessWithMsg(c, "ok", gin.H{"emoji": emoji})
}
