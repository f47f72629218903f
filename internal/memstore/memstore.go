package memstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"chode/internal/tools"
)

// =============== 模型 ===============

// Memory 一条群聊/私聊记录，guild + channel 维度查询
type Memory struct {
	ID        int64     `gorm:"primaryKey;column:id"`
	GuildID   string    `gorm:"column:guild_id"`
	ChannelID string    `gorm:"column:channel_id"`
	UserID    string    `gorm:"column:user_id"`
	UserName  string    `gorm:"column:user_name"`
	Content   string    `gorm:"column:content"`
	CreatedAt time.Time `gorm:"column:created_at"` // 存 UTC
}

func (Memory) TableName() string { return "memory" }

// =============== Store ===============

type Store struct {
	DB *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{DB: db}
}

func (s *Store) AutoMigrate() error {
	if err := s.DB.AutoMigrate(&Memory{}); err != nil {
		return err
	}
	return s.DB.Exec(`CREATE INDEX IF NOT EXISTS idx_memory_guild_channel_time ON memory(guild_id, channel_id, created_at)`).Error
}

// =============== 入库 ===============

type MemoryPayload struct {
	GuildID     string `json:"guildId"`
	ChannelID   string `json:"channelId"`
	UserID      string `json:"userId"`
	UserName    string `json:"userName"`
	Content     string `json:"content"`
	CreateTime  string `json:"createTime"`  // "YYYY-MM-DD HH:MM:SS"（本地），可空
	ClientMsgId int64  `json:"clientMsgId"` // 建议由上游生成
}

// SaveRaw 直接吃队列里的 JSON
func (s *Store) SaveRaw(raw []byte) error {
	var p MemoryPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return err
	}
	return s.Save(p)
}

// Save 显式入库（便于单元测试）
func (s *Store) Save(p MemoryPayload) error {
	// 解析时间：本地 -> UTC
	ts := time.Now().UTC()
	if len(p.CreateTime) >= 19 {
		if t, err := time.ParseInLocation("2006-01-02 15:04:05", p.CreateTime, time.Local); err == nil {
			ts = t.UTC()
		}
	}
	id := p.ClientMsgId
	if id == 0 {
		id = tools.GetSnowflakeIdForInt64()
	}
	rec := Memory{
		ID:        id,
		GuildID:   p.GuildID,
		ChannelID: p.ChannelID,
		UserID:    p.UserID,
		UserName:  p.UserName,
		Content:   p.Content,
		CreatedAt: ts,
	}
	// 幂等：主键冲突忽略
	return s.DB.Clauses(clause.OnConflict{DoNothing: true}).Create(&rec).Error
}

// =============== 查询 ===============

// RecentMessages 取最近 limit 条，正序返回。限额越界回落默认 100（上限 500），
// 和 history 接口的口径一致
func (s *Store) RecentMessages(ctx context.Context, guildID, channelID string, limit int) ([]Memory, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var rows []Memory
	err := s.DB.WithContext(ctx).
		Where("guild_id = ? AND channel_id = ?", guildID, channelID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	// 反转成正序，老的在前
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	return rows, nil
}

// RecentConversation 渲染给 LLM 的对话上下文块
func (s *Store) RecentConversation(ctx context.Context, guildID, channelID string, limit int) (string, error) {
	rows, err := s.RecentMessages(ctx, guildID, channelID, limit)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for _, r := range rows {
		name := r.UserName
		if name == "" {
			name = r.UserID
		}
		fmt.Fprintf(&b, "User %s at %s: %s\n", name, tools.FormatTimestamp(r.CreatedAt.In(time.Local)), r.Content)
	}
	return b.String(), nil
}
