package comfy

import (
	"context"
	"time"

	"github.com/google/uuid"

	"chode/config"
)

// Generator 一次图像作业的完整链路：构建 → 提交 → 流式收割（含收尾）
type Generator struct {
	Builder  *Builder
	Client   *Client
	Streamer *Streamer
}

// NewGenerator 按全局配置组装。模板在这里读一次并缓存
func NewGenerator() (*Generator, error) {
	cc := config.Conf.Comfy
	builder, err := NewBuilder(cc.WorkflowPath, cc.PromptNodeKey, cc.SeedNodeKey)
	if err != nil {
		return nil, err
	}
	client := NewClient(cc.ServerAddress)
	return &Generator{
		Builder:  builder,
		Client:   client,
		Streamer: NewStreamer(client, time.Duration(cc.RecvTimeoutSec)*time.Second),
	}, nil
}

// Generate 跑完一个作业；promptID 在提交成功后即有值。
// 三类致命错误（模板无效/提交失败/连不上事件流）会返回 error，
// 其余失败都在链路内部消化成日志
func (g *Generator) Generate(ctx context.Context, requestText string, onImage OnImage) (string, Outcome, error) {
	wf, err := g.Builder.Build(requestText)
	if err != nil {
		return "", Outcome{}, err
	}

	// 每个作业一个新的会话ID，服务端按它路由事件
	clientID := uuid.NewString()

	promptID, err := g.Client.QueuePrompt(ctx, wf, clientID)
	if err != nil {
		return "", Outcome{}, err
	}

	outcome, err := g.Streamer.Stream(ctx, promptID, clientID, onImage)
	return promptID, outcome, err
}
