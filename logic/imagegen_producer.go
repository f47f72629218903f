package logic

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"chode/config"
	"chode/internal/proto"
)

var ErrImageProducerNotInit = errors.New("image kafka producer not initialized")

var (
	kafkaWriters sync.Map // topic -> *kafka.Writer  复用连接，避免每次创建
	imageWriter  *kafka.Writer
)

func getWriter(topic string) *kafka.Writer {
	if w, ok := kafkaWriters.Load(topic); ok {
		return w.(*kafka.Writer)
	}
	brokers := strings.Split(config.Conf.Common.CommonKafka.Brokers, ",")
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{}, // 同 key 有序：同一频道的作业按提交顺序跑
		AllowAutoTopicCreation: true,
		BatchTimeout:           10 * time.Millisecond,
	}
	actual, _ := kafkaWriters.LoadOrStore(topic, w)
	return actual.(*kafka.Writer)
}

// InitImageJobProducer 启动时调用一次
func (l *Logic) InitImageJobProducer() error {
	topic := config.Conf.Common.CommonKafka.ImageJobsTopic
	imageWriter = getWriter(topic)
	logrus.Infof("[IMG] kafka producer ready, topic=%s", topic)
	return nil
}

// PublishImageJob 把图像作业投到 img.jobs，worker 端消费
func (l *Logic) PublishImageJob(job *proto.ImageJob) error {
	if imageWriter == nil {
		return ErrImageProducerNotInit
	}
	payload, err := json.Marshal(job)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return imageWriter.WriteMessages(ctx, kafka.Message{
		Key:   []byte(fmt.Sprintf("channel:%s", job.ChannelID)),
		Value: payload,
		Time:  time.Now(),
	})
}

func CloseAllWriters() {
	kafkaWriters.Range(func(_, v any) bool {
		_ = v.(*kafka.Writer).Close()
		return true
	})
}
