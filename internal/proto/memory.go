package proto

type MemoryDTO struct {
	Id         int64  `json:"id"`
	GuildID    string `json:"guildId"`
	ChannelID  string `json:"channelId"`
	UserID     string `json:"userId"`
	UserName   string `json:"userName"`
	Content    string `json:"content"`
	CreateTime string `json:"createTime"`
}
