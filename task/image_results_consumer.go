package task

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"chode/config"
	"chode/internal/memstore"
	"chode/internal/proto"
	"chode/internal/tools"
)

// InitImageResultsConsumer 在 Task 启动时调用一次。
// 图片本体已由 worker 进程内的 sink 投出去了，这里只处理回执：
// 拼一条播报文本，落到对话记录里（幂等），宿主端轮询历史就能看到
func (t *Task) InitImageResultsConsumer() error {
	brokers := strings.Split(config.Conf.Common.CommonKafka.Brokers, ",")
	topic := config.Conf.Common.CommonKafka.ImageResultsTopic
	if topic == "" {
		topic = "img.results"
	}

	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  "chode-task-img", // 图像回执消费者组
		MinBytes: 1,
		MaxBytes: 10 << 20,
	})

	go func() {
		defer r.Close()
		logrus.Infof("[IMG] results consumer started, topic=%s, brokers=%v", topic, brokers)

		ctx := context.Background()
		for {
			m, err := r.ReadMessage(ctx)
			if err != nil {
				logrus.Warnf("[IMG] read result err: %v", err)
				time.Sleep(time.Second)
				continue
			}

			var res proto.ImageResult
			if err := json.Unmarshal(m.Value, &res); err != nil {
				logrus.Warnf("[IMG] bad json: %s", string(m.Value))
				continue
			}

			// 入库（幂等：雪花ID冲突 DoNothing）
			if t.Memory != nil {
				if err := t.Memory.Save(resultMemory(&res)); err != nil {
					logrus.Warnf("[IMG] save memory fail: %v", err)
				}
			} else {
				logrus.Warn("[IMG] memory store not initialized")
			}

			logrus.Infof("[IMG] result guild=%s channel=%s prompt_id=%s delivered=%d completed=%v",
				res.GuildID, res.ChannelID, res.PromptID, res.Delivered, res.Completed)
		}
	}()

	return nil
}

// resultMemory 把一条回执拼成要落库的播报记录。
// 时间戳用请求方的发起时刻，播报在对话记录里排在原请求附近
func resultMemory(res *proto.ImageResult) memstore.MemoryPayload {
	var text string
	switch {
	case res.Err != "":
		text = fmt.Sprintf("Error generating image: %s", res.Err)
	case res.Delivered == 0:
		text = fmt.Sprintf("Image generation finished but produced nothing. Prompt used: %s", res.Prompt)
	default:
		text = fmt.Sprintf("Generated %d image(s). Prompt used: %s", res.Delivered, res.Prompt)
	}

	id := res.ClientMsgId
	if id == 0 {
		id = tools.GetSnowflakeIdForInt64()
	}
	return memstore.MemoryPayload{
		GuildID:     res.GuildID,
		ChannelID:   res.ChannelID,
		UserID:      "chode",
		UserName:    "🤖 Chode",
		Content:     text,
		CreateTime:  res.RequestTime, // 空串时 Save 落当前时间
		ClientMsgId: id,
	}
}
