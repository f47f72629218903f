package handler

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"chode/internal/proto"
	"chode/internal/tools"
)

type FormGenerateImage struct {
	GuildID       string `json:"guildId" binding:"required"`
	ChannelID     string `json:"channelId" binding:"required"`
	RequesterID   string `json:"requesterId" binding:"required"`
	RequesterName string `json:"requesterName"`
	Prompt        string `json:"prompt" binding:"required"`
}

// GenerateImage 受理一次生图请求：必要时先让 LLM 改写提示词，
// 然后投到 img.jobs，立刻返回最终使用的提示词。
// 生成和投图都在 worker 侧异步进行
func GenerateImage(c *gin.Context) {
	var form FormGenerateImage
	if err := c.ShouldBindBodyWith(&form, binding.JSON); err != nil {
		tools.FailWithMsg(c, err.Error())
		return
	}

	finalPrompt := strings.TrimSpace(form.Prompt)
	// "++" 后缀或明说了要改写，就先过一遍 reword
	if strings.HasSuffix(finalPrompt, "++") {
		reworded, err := LM.Reword(c.Request.Context(), strings.TrimSpace(strings.TrimSuffix(finalPrompt, "++")))
		if err != nil {
			tools.FailWithMsg(c, "reword fail: "+err.Error())
			return
		}
		finalPrompt = reworded
	} else if strings.Contains(strings.ToLower(finalPrompt), "make this prompt better") {
		reworded, err := LM.Reword(c.Request.Context(), finalPrompt)
		if err != nil {
			tools.FailWithMsg(c, "reword fail: "+err.Error())
			return
		}
		finalPrompt = reworded
	}

	job := &proto.ImageJob{
		GuildID:       form.GuildID,
		ChannelID:     form.ChannelID,
		RequesterID:   form.RequesterID,
		RequesterName: form.RequesterName,
		Prompt:        finalPrompt,
		RequestTime:   tools.GetNowDateTime(),
	}
	if err := LogicObj.PublishImageJob(job); err != nil {
		tools.FailWithMsg(c, "enqueue image job fail: "+err.Error())
		return
	}

	tools.SuccessWithMsg(c, "ok", gin.H{
		"reply":  fmt.Sprintf("Image generation started. Prompt used: %s", finalPrompt),
		"prompt": finalPrompt,
	})
}
