package comfy

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// OnImage 产物回调。返回错误只记日志，不会中断作业
type OnImage func(nodeID string, ref ImageRef, data []byte) error

// Outcome 一次流式监听的结果
type Outcome struct {
	Completed bool // 是否等到了显式完成信号
	Delivered int  // 成功取回并交给回调的图片数
}

// Streamer 监听一个作业的事件流，边收事件边收割产物。
// 每个作业独占一条 ws 连接和一套去重表，作业间互不共享
type Streamer struct {
	Client      *Client
	RecvTimeout time.Duration // 单次接收的阻塞上限
	Dialer      *websocket.Dialer
}

func NewStreamer(client *Client, recvTimeout time.Duration) *Streamer {
	return &Streamer{
		Client:      client,
		RecvTimeout: recvTimeout,
		Dialer:      websocket.DefaultDialer,
	}
}

// 事件流消息，只认 queue_update / executing 两种，其余跳过
type streamEvent struct {
	Type  string `json:"type"`
	Delta int    `json:"delta"` // queue_update：队列长度变化
	Data  struct {
		Node     *string `json:"node"` // executing：null 表示整个作业结束
		PromptID string  `json:"prompt_id"`
	} `json:"data"`
}

// Stream 连接事件流并驱动收割，直到完成信号/接收超时/ctx取消。
// 连不上是致命错误；连上之后任何接收失败都只是"流结束"，
// 已投递的部分结果不作废。返回前必做一次收尾扫描（drain），
// 把事件阶段漏掉的产物补投出去
func (s *Streamer) Stream(ctx context.Context, promptID, clientID string, onImage OnImage) (Outcome, error) {
	conn, _, err := s.Dialer.DialContext(ctx, s.Client.WebsocketURL(clientID), nil)
	if err != nil {
		return Outcome{}, errors.Wrap(err, "connect event stream")
	}
	defer conn.Close()

	// 产物粒度去重：filename|subfolder|type
	processed := make(map[string]struct{})
	var outcome Outcome

listening:
	for {
		select {
		case <-ctx.Done():
			// 取消也要走收尾扫描，尽力把已产出的图投完
			logrus.Infof("[IMG] stream cancelled, prompt_id=%s", promptID)
			break listening
		default:
		}

		_ = conn.SetReadDeadline(time.Now().Add(s.RecvTimeout))
		_, raw, err := conn.ReadMessage()
		if err != nil {
			// 超时/断开：流到头了，收尾扫描兜底
			logrus.Infof("[IMG] stream exhausted, prompt_id=%s err=%v", promptID, err)
			break listening
		}

		var ev streamEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			logrus.Warnf("[IMG] bad stream message, skipped: %v", err)
			continue
		}

		switch ev.Type {
		case "queue_update":
			if ev.Delta == -1 {
				outcome.Delivered += s.sweep(ctx, promptID, processed, onImage)
			}
		case "executing":
			if ev.Data.Node == nil && ev.Data.PromptID == promptID {
				logrus.Infof("[IMG] execution complete, prompt_id=%s", promptID)
				outcome.Completed = true
				break listening
			}
		}
	}

	// drain：恰好一次的收尾扫描。取消场景换一个独立的限时 ctx，
	// 尽力把已经产出的图补投出去
	drainCtx := ctx
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		drainCtx, cancel = context.WithTimeout(context.Background(), s.RecvTimeout)
		defer cancel()
	}
	outcome.Delivered += s.sweep(drainCtx, promptID, processed, onImage)

	if err := ctx.Err(); err != nil {
		return outcome, err
	}
	return outcome, nil
}

// sweep 一次对账：拉历史，把还没处理过的产物逐个取回并投递。
// 单张图取失败只跳过该图；历史里还没有这个作业时什么都不做，
// 等下一次触发再来。返回本轮成功投递的张数
func (s *Streamer) sweep(ctx context.Context, promptID string, processed map[string]struct{}, onImage OnImage) int {
	outputs, err := s.Client.GetHistory(ctx, promptID)
	if err != nil {
		logrus.Warnf("[IMG] history poll failed, prompt_id=%s err=%v", promptID, err)
		return 0
	}

	delivered := 0
	for nodeID, refs := range outputs {
		for _, ref := range refs {
			key := ref.Key()
			// 两次扫描可能看到同一张图，投之前必须再查一次表
			if _, done := processed[key]; done {
				continue
			}
			data, err := s.Client.GetImage(ctx, ref)
			if err != nil {
				logrus.Warnf("[IMG] fetch failed node=%s file=%s err=%v", nodeID, ref.Filename, err)
				processed[key] = struct{}{} // 取失败也算处理过，保证只尝试一次
				continue
			}
			if err := onImage(nodeID, ref, data); err != nil {
				// 投递失败不影响记账，保证作业能往前走
				logrus.Warnf("[IMG] deliver failed node=%s file=%s err=%v", nodeID, ref.Filename, err)
			}
			processed[key] = struct{}{}
			delivered++
		}
	}
	return delivered
}
