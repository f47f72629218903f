package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"chode/comfy"
	"chode/config"
	"chode/internal/proto"
	"chode/internal/tools"
)

/*********** 环境配置 ***********/
var (
	// 宿主适配器的上传接口：收 multipart（caption + 图片），转发给请求者
	webhookURL = getenv("DELIVER_WEBHOOK_URL", "http://127.0.0.1:7077/upload")

	// 单个作业的总时长上限
	jobTimeout = 10 * time.Minute
)

var httpc = &http.Client{Timeout: 30 * time.Second}

/*********** 主程序 ***********/
func main() {
	brokers := strings.Split(config.Conf.Common.CommonKafka.Brokers, ",")
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    config.Conf.Common.CommonKafka.ImageJobsTopic,
		GroupID:  "imagegen-worker", // 同组可水平扩容
		MinBytes: 1,
		MaxBytes: 10 << 20,
	})
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  config.Conf.Common.CommonKafka.ImageResultsTopic,
		AllowAutoTopicCreation: true,
		BatchTimeout:           10 * time.Millisecond,
	}
	defer r.Close()
	defer w.Close()

	gen, err := comfy.NewGenerator()
	if err != nil {
		logrus.Fatalf("[IMG] init generator: %v", err)
	}

	// 投递边界：作业协程只管往 courier 里丢，webhook 投递由唯一的消费协程串行做
	courier := comfy.NewCourier(webhookSink{}, time.Duration(config.Conf.Comfy.DeliverTimeoutSec)*time.Second)
	defer courier.Close()

	logrus.Infof("[IMG] worker started | comfy=%s webhook=%s | in=%s out=%s",
		config.Conf.Comfy.ServerAddress, webhookURL,
		config.Conf.Common.CommonKafka.ImageJobsTopic, config.Conf.Common.CommonKafka.ImageResultsTopic)

	ctx := context.Background()
	for {
		msg, err := r.ReadMessage(ctx)
		if err != nil {
			logrus.Warnf("[IMG] read err: %v", err)
			time.Sleep(time.Second)
			continue
		}

		var job proto.ImageJob
		if err := json.Unmarshal(msg.Value, &job); err != nil {
			logrus.Warnf("[IMG] bad job json: %s", string(msg.Value))
			continue
		}

		res := runJob(ctx, gen, courier, &job)

		out, _ := json.Marshal(res)
		if err := w.WriteMessages(ctx, kafka.Message{Value: out}); err != nil {
			logrus.Warnf("[IMG] write result err: %v", err)
		}
	}
}

// runJob 跑完一个作业并组装回执。作业级的致命错误进回执的 Err，
// 单张图的失败在流式链路里已经消化掉了
func runJob(ctx context.Context, gen *comfy.Generator, courier *comfy.Courier, job *proto.ImageJob) proto.ImageResult {
	jobCtx, cancel := context.WithTimeout(ctx, jobTimeout)
	defer cancel()

	caption := "@" + job.RequesterName
	if job.RequesterName == "" {
		caption = "@" + job.RequesterID
	}

	onImage := func(nodeID string, ref comfy.ImageRef, data []byte) error {
		filename := ref.Filename
		if filename == "" {
			filename = fmt.Sprintf("image_%s.png", nodeID)
		}
		courier.Enqueue(comfy.Delivery{
			Recipient: job.ChannelID,
			Caption:   caption,
			Filename:  filename,
			Data:      data,
		})
		return nil
	}

	logrus.Infof("[IMG] job start guild=%s channel=%s prompt=%q", job.GuildID, job.ChannelID, job.Prompt)
	promptID, outcome, err := gen.Generate(jobCtx, job.Prompt, onImage)

	res := proto.ImageResult{
		GuildID:     job.GuildID,
		ChannelID:   job.ChannelID,
		RequesterID: job.RequesterID,
		Prompt:      job.Prompt,
		PromptID:    promptID,
		Delivered:   outcome.Delivered,
		Completed:   outcome.Completed,
		RequestTime: job.RequestTime,
		ClientMsgId: tools.GetSnowflakeIdForInt64(),
	}
	if err != nil {
		res.Err = err.Error()
		logrus.Warnf("[IMG] job failed prompt_id=%s err=%v", promptID, err)
	} else {
		logrus.Infof("[IMG] job done prompt_id=%s delivered=%d completed=%v", promptID, outcome.Delivered, outcome.Completed)
	}
	return res
}

/*********** 投递 sink ***********/

// webhookSink 把图片 multipart POST 给宿主适配器
type webhookSink struct{}

func (webhookSink) Send(ctx context.Context, recipient, caption, filename string, data []byte) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("channelId", recipient)
	_ = mw.WriteField("content", caption)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return err
	}
	if _, err := part.Write(data); err != nil {
		return err
	}
	if err := mw.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		rb, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("webhook %d: %s", resp.StatusCode, string(rb))
	}
	return nil
}

/*********** 小工具 ***********/
func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
