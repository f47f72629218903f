package proto

// ImageJob 与 imagegen worker 约定的任务格式（kafka img.jobs）
type ImageJob struct {
	GuildID       string `json:"guildId"`
	ChannelID     string `json:"channelId"`
	RequesterID   string `json:"requesterId"`
	RequesterName string `json:"requesterName"`
	Prompt        string `json:"prompt"`       // 最终喂给 workflow 的提示词（reword 已完成）
	RequestTime   string `json:"requestTime"`  // "YYYY-MM-DD HH:MM:SS"
}

// ImageResult worker 回传的作业结果（kafka img.results）。
// 图片字节不走 kafka，由 worker 进程内的 sink 投递；这里只带回执
type ImageResult struct {
	GuildID     string `json:"guildId"`
	ChannelID   string `json:"channelId"`
	RequesterID string `json:"requesterId"`
	Prompt      string `json:"prompt"`
	PromptID    string `json:"promptId"`    // 推理服务返回的作业ID
	Delivered   int    `json:"delivered"`   // 实际投递的图片数
	Completed   bool   `json:"completed"`   // 是否收到了显式完成信号
	RequestTime string `json:"requestTime"` // 原始请求时刻，播报记录按它落库
	Err         string `json:"err,omitempty"`
	ClientMsgId int64  `json:"clientMsgId,omitempty"`
}
