package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"chode/internal/proto"
	"chode/internal/tools"
)

type FormHistory struct {
	GuildID   string `json:"guildId" binding:"required"`
	ChannelID string `json:"channelId" binding:"required"`
	Limit     int    `json:"limit"` // 默认 100，最大 500
}

// ListHistory 拉最近 N 条对话记录
func ListHistory(c *gin.Context) {
	var form FormHistory
	if err := c.ShouldBindBodyWith(&form, binding.JSON); err != nil {
		tools.FailWithMsg(c, err.Error())
		return
	}
	if form.Limit <= 0 || form.Limit > 500 {
		form.Limit = 100
	}

	rows, err := Memory.RecentMessages(c.Request.Context(), form.GuildID, form.ChannelID, form.Limit)
	if err != nil {
		tools.FailWithMsg(c, err.Error())
		return
	}

	out := make([]proto.MemoryDTO, 0, len(rows))
	for _, r := range rows {
		out = append(out, proto.MemoryDTO{
			Id:         r.ID,
			GuildID:    r.GuildID,
			ChannelID:  r.ChannelID,
			UserID:     r.UserID,
			UserName:   r.UserName,
			Content:    r.Content,
			CreateTime: r.CreatedAt.In(time.Local).Format("2006-01-02 15:04:05"),
		})
	}
	tools.SuccessWithMsg(c, "ok", out)
}
