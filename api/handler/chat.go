package handler

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/sirupsen/logrus"

	"chode/guildconf"
	"chode/internal/memstore"
	"chode/internal/tools"
)

// 单条消息上限，超长回复按这个粒度分段
const messageChunkSize = 2000

type FormChatMessage struct {
	GuildID    string `json:"guildId" binding:"required"`
	ChannelID  string `json:"channelId" binding:"required"`
	UserID     string `json:"userId" binding:"required"`
	UserName   string `json:"userName"`
	Content    string `json:"content" binding:"required"`
	ServerInfo string `json:"serverInfo"` // 宿主顺手带的服务器描述，可空
}

// ChatMessage 对话主路径：先记消息，再拼上下文喂 LLM，回复也记下来。
// 回复按 2000 字符切段返回，宿主逐段发
func ChatMessage(c *gin.Context) {
	var form FormChatMessage
	if err := c.ShouldBindBodyWith(&form, binding.JSON); err != nil {
		tools.FailWithMsg(c, err.Error())
		return
	}

	// 先入库，失败不拦聊天
	if err := Memory.Save(memstore.MemoryPayload{
		GuildID:     form.GuildID,
		ChannelID:   form.ChannelID,
		UserID:      form.UserID,
		UserName:    form.UserName,
		Content:     form.Content,
		CreateTime:  tools.GetNowDateTime(),
		ClientMsgId: tools.GetSnowflakeIdForInt64(),
	}); err != nil {
		logrus.Warnf("save memory fail: %v", err)
	}

	personality := guildconf.Load(form.GuildID).Personality()
	conversation, err := Memory.RecentConversation(c.Request.Context(), form.GuildID, form.ChannelID, 10)
	if err != nil {
		logrus.Warnf("load conversation fail: %v", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "System: %s\n", personality)
	if form.ServerInfo != "" {
		fmt.Fprintf(&b, "Server Info: %s\n", form.ServerInfo)
	}
	fmt.Fprintf(&b, "Conversation History:\n%s", conversation)
	fmt.Fprintf(&b, "User %s said: %s\nRespond as Chode:", form.UserName, form.Content)

	reply, err := LM.ChatCompletion(c.Request.Context(), b.String(), personality)
	if err != nil {
		tools.FailWithMsg(c, "llm fail: "+err.Error())
		return
	}

	// 机器人自己的回复也进对话记录
	if err := Memory.Save(memstore.MemoryPayload{
		GuildID:     form.GuildID,
		ChannelID:   form.ChannelID,
		UserID:      "chode",
		UserName:    "🤖 Chode",
		Content:     reply,
		CreateTime:  tools.GetNowDateTime(),
		ClientMsgId: tools.GetSnowflakeIdForInt64(),
	}); err != nil {
		logrus.Warnf("save reply fail: %v", err)
	}

	tools.SuccessWithMsg(c, "ok", gin.H{
		"reply":  reply,
		"chunks": tools.ChunkMessage(reply, messageChunkSize),
	})
}

type FormSetup struct {
	GuildID     string `json:"guildId" binding:"required"`
	Personality string `json:"personality" binding:"required"`
}

// SetupPersonality setup 命令：改 guild 人设（权限校验在宿主侧）
func SetupPersonality(c *gin.Context) {
	var form FormSetup
	if err := c.ShouldBindBodyWith(&form, binding.JSON); err != nil {
		tools.FailWithMsg(c, err.Error())
		return
	}
	if err := guildconf.SetPersonality(form.GuildID, form.Personality); err != nil {
		tools.FailWithMsg(c, "save personality fail: "+err.Error())
		return
	}
	tools.SuccessWithMsg(c, "ok", "Personality has been updated!")
}
