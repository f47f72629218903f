package comfy

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Sink 宿主提供的"把产物发给请求者"的能力，可能是异步且会失败的
type Sink interface {
	Send(ctx context.Context, recipient, caption, filename string, data []byte) error
}

// Delivery 一次待投递的产物
type Delivery struct {
	Recipient string
	Caption   string
	Filename  string
	Data      []byte
}

// Courier 后台 worker 与投递 sink 之间的消息边界：
// worker 往通道里丢产物，唯一的消费协程持有 sink，严格按接收顺序投递。
// sink 的失败只记日志，永远不会反灌成作业失败
type Courier struct {
	sink    Sink
	timeout time.Duration
	ch      chan Delivery
	done    chan struct{}
}

func NewCourier(sink Sink, timeout time.Duration) *Courier {
	c := &Courier{
		sink:    sink,
		timeout: timeout,
		ch:      make(chan Delivery, 16),
		done:    make(chan struct{}),
	}
	go c.run()
	return c
}

// Enqueue 投递排队。通道满时阻塞，给 sink 一点背压
func (c *Courier) Enqueue(d Delivery) {
	c.ch <- d
}

// Close 停止接收并等在途的投递全部做完
func (c *Courier) Close() {
	close(c.ch)
	<-c.done
}

func (c *Courier) run() {
	defer close(c.done)
	for d := range c.ch {
		ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
		if err := c.sink.Send(ctx, d.Recipient, d.Caption, d.Filename, d.Data); err != nil {
			logrus.Warnf("[IMG] sink send failed file=%s err=%v", d.Filename, err)
		}
		cancel()
	}
}
