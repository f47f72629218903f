package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"chode/internal/tools"
)

type FormMusicGuild struct {
	GuildID string `json:"guildId" binding:"required"`
}

type FormMusicEnqueue struct {
	GuildID string `json:"guildId" binding:"required"`
	Query   string `json:"query" binding:"required"`
}

// MusicEnqueue 点播入队。正在播放与否由宿主判断，这里只记账
func MusicEnqueue(c *gin.Context) {
	var form FormMusicEnqueue
	if err := c.ShouldBindBodyWith(&form, binding.JSON); err != nil {
		tools.FailWithMsg(c, err.Error())
		return
	}
	if err := Music.Enqueue(form.GuildID, form.Query); err != nil {
		tools.FailWithMsg(c, err.Error())
		return
	}
	n, _ := Music.QueueLength(form.GuildID)
	tools.SuccessWithMsg(c, "ok", gin.H{"queued": n})
}

type FormMusicNext struct {
	GuildID string `json:"guildId" binding:"required"`
	Current string `json:"current"` // 正在放的那首，空表示没在放
}

// MusicNext 弹下一首；query 为空表示队列空了，宿主该断开了
func MusicNext(c *gin.Context) {
	var form FormMusicNext
	if err := c.ShouldBindBodyWith(&form, binding.JSON); err != nil {
		tools.FailWithMsg(c, err.Error())
		return
	}
	next, err := Music.NextSong(form.GuildID, form.Current)
	if err != nil {
		tools.FailWithMsg(c, err.Error())
		return
	}
	tools.SuccessWithMsg(c, "ok", gin.H{"query": next})
}

// MusicPrev 从历史取回上一首
func MusicPrev(c *gin.Context) {
	var form FormMusicGuild
	if err := c.ShouldBindBodyWith(&form, binding.JSON); err != nil {
		tools.FailWithMsg(c, err.Error())
		return
	}
	prev, err := Music.PrevSong(form.GuildID)
	if err != nil {
		tools.FailWithMsg(c, err.Error())
		return
	}
	tools.SuccessWithMsg(c, "ok", gin.H{"query": prev})
}

// MusicStop 清空该 guild 的全部簿记
func MusicStop(c *gin.Context) {
	var form FormMusicGuild
	if err := c.ShouldBindBodyWith(&form, binding.JSON); err != nil {
		tools.FailWithMsg(c, err.Error())
		return
	}
	if err := Music.Clear(form.GuildID); err != nil {
		tools.FailWithMsg(c, err.Error())
		return
	}
	tools.SuccessWithMsg(c, "ok", nil)
}

type FormMusicControl struct {
	GuildID   string `json:"guildId" binding:"required"`
	MessageID string `json:"messageId" binding:"required"`
}

// MusicSetControl 记录当前控制消息ID（宿主发完控制消息后回填）
func MusicSetControl(c *gin.Context) {
	var form FormMusicControl
	if err := c.ShouldBindBodyWith(&form, binding.JSON); err != nil {
		tools.FailWithMsg(c, err.Error())
		return
	}
	if err := Music.SetControlMessage(form.GuildID, form.MessageID); err != nil {
		tools.FailWithMsg(c, err.Error())
		return
	}
	tools.SuccessWithMsg(c, "ok", nil)
}

// MusicGetControl 查控制消息ID，宿主收到 reaction 时比对用
func MusicGetControl(c *gin.Context) {
	var form FormMusicGuild
	if err := c.ShouldBindBodyWith(&form, binding.JSON); err != nil {
		tools.FailWithMsg(c, err.Error())
		return
	}
	id, err := Music.ControlMessage(form.GuildID)
	if err != nil {
		tools.FailWithMsg(c, err.Error())
		return
	}
	tools.SuccessWithMsg(c, "ok", gin.H{"messageId": id})
}
