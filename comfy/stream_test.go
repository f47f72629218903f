package comfy

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPromptID = "prompt-abc"

// fakeComfy 模拟推理服务：/ws 按脚本吐事件，/history /view 照表应答
type fakeComfy struct {
	t   *testing.T
	srv *httptest.Server

	mu        sync.Mutex
	outputs   map[string][]ImageRef // nodeID => 图片引用
	fetches   map[string]int        // filename => /view 命中次数
	failFetch map[string]bool       // filename => /view 返回 500

	script func(c *websocket.Conn, f *fakeComfy)
}

func newFakeComfy(t *testing.T, script func(c *websocket.Conn, f *fakeComfy)) *fakeComfy {
	f := &fakeComfy{
		t:         t,
		outputs:   map[string][]ImageRef{},
		fetches:   map[string]int{},
		failFetch: map[string]bool{},
		script:    script,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		up := websocket.Upgrader{}
		c, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		if f.script != nil {
			f.script(c, f)
		}
		// 脚本演完之后挂着连接，等客户端那头收尾关闭
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	})
	mux.HandleFunc("/prompt", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"prompt_id": %q}`, testPromptID)
	})
	mux.HandleFunc("/history/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/history/")
		f.mu.Lock()
		defer f.mu.Unlock()
		if id != testPromptID || len(f.outputs) == 0 {
			// 还没进历史：空对象，不是错误
			fmt.Fprint(w, "{}")
			return
		}
		nodes := map[string]any{}
		for nodeID, refs := range f.outputs {
			nodes[nodeID] = map[string]any{"images": refs}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			id: map[string]any{"outputs": nodes},
		})
	})
	mux.HandleFunc("/view", func(w http.ResponseWriter, r *http.Request) {
		name := r.URL.Query().Get("filename")
		f.mu.Lock()
		f.fetches[name]++
		fail := f.failFetch[name]
		f.mu.Unlock()
		if fail {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		fmt.Fprintf(w, "png:%s", name)
	})

	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeComfy) addr() string {
	return strings.TrimPrefix(f.srv.URL, "http://")
}

func (f *fakeComfy) setOutputs(outputs map[string][]ImageRef) {
	f.mu.Lock()
	f.outputs = outputs
	f.mu.Unlock()
}

func (f *fakeComfy) fetchCount(filename string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches[filename]
}

func (f *fakeComfy) streamer(recvTimeout time.Duration) *Streamer {
	return NewStreamer(NewClient(f.addr()), recvTimeout)
}

func ref(filename string) ImageRef {
	return ImageRef{Filename: filename, Subfolder: "", Type: "output"}
}

func sendJSON(c *websocket.Conn, v any) {
	b, _ := json.Marshal(v)
	_ = c.WriteMessage(websocket.TextMessage, b)
}

func sendQueueUpdate(c *websocket.Conn, delta int) {
	sendJSON(c, map[string]any{"type": "queue_update", "delta": delta})
}

func sendExecutingDone(c *websocket.Conn, promptID string) {
	sendJSON(c, map[string]any{
		"type": "executing",
		"data": map[string]any{"node": nil, "prompt_id": promptID},
	})
}

type collected struct {
	mu    sync.Mutex
	files []string
}

func (cl *collected) onImage(nodeID string, r ImageRef, data []byte) error {
	cl.mu.Lock()
	cl.files = append(cl.files, r.Filename)
	cl.mu.Unlock()
	return nil
}

func (cl *collected) names() []string {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return append([]string(nil), cl.files...)
}

func TestStreamEventSweepThenDrainDeliversOnce(t *testing.T) {
	f := newFakeComfy(t, func(c *websocket.Conn, f *fakeComfy) {
		sendQueueUpdate(c, -1)
		sendExecutingDone(c, testPromptID)
	})
	f.setOutputs(map[string][]ImageRef{"9": {ref("a.png")}})

	var got collected
	outcome, err := f.streamer(5*time.Second).Stream(context.Background(), testPromptID, "cid", got.onImage)
	require.NoError(t, err)

	assert.True(t, outcome.Completed)
	assert.Equal(t, 1, outcome.Delivered)
	// 事件扫描投过了，收尾扫描不许再投
	assert.Equal(t, []string{"a.png"}, got.names())
	assert.Equal(t, 1, f.fetchCount("a.png"))
}

func TestStreamDrainCatchesNodesWithoutEvents(t *testing.T) {
	// 一条 queue_update 都不发，直接完成；三个节点全靠收尾扫描兜底
	f := newFakeComfy(t, func(c *websocket.Conn, f *fakeComfy) {
		sendExecutingDone(c, testPromptID)
	})
	f.setOutputs(map[string][]ImageRef{
		"3": {ref("x.png")},
		"7": {ref("y.png")},
		"9": {ref("z.png")},
	})

	var got collected
	outcome, err := f.streamer(5*time.Second).Stream(context.Background(), testPromptID, "cid", got.onImage)
	require.NoError(t, err)

	assert.True(t, outcome.Completed)
	assert.Equal(t, 3, outcome.Delivered)
	assert.ElementsMatch(t, []string{"x.png", "y.png", "z.png"}, got.names())
}

func TestStreamRecvTimeoutDrainsAndCloses(t *testing.T) {
	// 服务端沉默；一个接收超时窗口内必须收尾退出
	f := newFakeComfy(t, nil)
	f.setOutputs(map[string][]ImageRef{"9": {ref("late.png")}})

	var got collected
	start := time.Now()
	outcome, err := f.streamer(150*time.Millisecond).Stream(context.Background(), testPromptID, "cid", got.onImage)
	require.NoError(t, err)

	assert.False(t, outcome.Completed)
	assert.Equal(t, 1, outcome.Delivered)
	assert.Equal(t, []string{"late.png"}, got.names())
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestStreamSkipsMalformedMessages(t *testing.T) {
	f := newFakeComfy(t, func(c *websocket.Conn, f *fakeComfy) {
		_ = c.WriteMessage(websocket.TextMessage, []byte("not json at all"))
		sendJSON(c, map[string]any{"type": "progress", "value": 3}) // 无关类型
		sendQueueUpdate(c, 1)                                       // delta != -1，不触发扫描
		sendExecutingDone(c, testPromptID)
	})
	f.setOutputs(map[string][]ImageRef{"9": {ref("ok.png")}})

	var got collected
	outcome, err := f.streamer(5*time.Second).Stream(context.Background(), testPromptID, "cid", got.onImage)
	require.NoError(t, err)

	assert.True(t, outcome.Completed)
	assert.Equal(t, []string{"ok.png"}, got.names())
}

func TestStreamIgnoresCompletionOfOtherJobs(t *testing.T) {
	f := newFakeComfy(t, func(c *websocket.Conn, f *fakeComfy) {
		sendExecutingDone(c, "somebody-else") // 不是我们的作业
		sendExecutingDone(c, testPromptID)
	})
	f.setOutputs(map[string][]ImageRef{"9": {ref("mine.png")}})

	var got collected
	outcome, err := f.streamer(5*time.Second).Stream(context.Background(), testPromptID, "cid", got.onImage)
	require.NoError(t, err)

	assert.True(t, outcome.Completed)
	assert.Equal(t, []string{"mine.png"}, got.names())
}

func TestStreamPerArtifactTrackingPicksUpLateImages(t *testing.T) {
	// 第一轮扫描后同一个节点又多了一张图：
	// 按产物记账的实现必须把第二张也投出去
	f := newFakeComfy(t, func(c *websocket.Conn, f *fakeComfy) {
		sendQueueUpdate(c, -1)
		// 等第一张被取走
		deadline := time.Now().Add(3 * time.Second)
		for f.fetchCount("first.png") == 0 && time.Now().Before(deadline) {
			time.Sleep(10 * time.Millisecond)
		}
		f.setOutputs(map[string][]ImageRef{"9": {ref("first.png"), ref("second.png")}})
		sendExecutingDone(c, testPromptID)
	})
	f.setOutputs(map[string][]ImageRef{"9": {ref("first.png")}})

	var got collected
	outcome, err := f.streamer(5*time.Second).Stream(context.Background(), testPromptID, "cid", got.onImage)
	require.NoError(t, err)

	assert.Equal(t, 2, outcome.Delivered)
	assert.ElementsMatch(t, []string{"first.png", "second.png"}, got.names())
	assert.Equal(t, 1, f.fetchCount("first.png"))
	assert.Equal(t, 1, f.fetchCount("second.png"))
}

func TestStreamFetchFailureSkipsArtifactOnce(t *testing.T) {
	f := newFakeComfy(t, func(c *websocket.Conn, f *fakeComfy) {
		sendQueueUpdate(c, -1)
		sendExecutingDone(c, testPromptID)
	})
	f.setOutputs(map[string][]ImageRef{"9": {ref("good.png"), ref("bad.png")}})
	f.failFetch["bad.png"] = true

	var got collected
	outcome, err := f.streamer(5*time.Second).Stream(context.Background(), testPromptID, "cid", got.onImage)
	require.NoError(t, err)

	assert.Equal(t, 1, outcome.Delivered)
	assert.Equal(t, []string{"good.png"}, got.names())
	// 取失败只尝试一次，收尾扫描不重试
	assert.Equal(t, 1, f.fetchCount("bad.png"))
}

func TestStreamDeliveryFailureDoesNotAbortJob(t *testing.T) {
	f := newFakeComfy(t, func(c *websocket.Conn, f *fakeComfy) {
		sendQueueUpdate(c, -1)
		sendExecutingDone(c, testPromptID)
	})
	f.setOutputs(map[string][]ImageRef{
		"3": {ref("x.png")},
		"9": {ref("y.png")},
	})

	calls := 0
	failing := func(nodeID string, r ImageRef, data []byte) error {
		calls++
		return fmt.Errorf("sink down")
	}
	outcome, err := f.streamer(5*time.Second).Stream(context.Background(), testPromptID, "cid", failing)
	require.NoError(t, err)

	assert.True(t, outcome.Completed)
	assert.Equal(t, 2, calls)
	// 投递失败也算处理过
	assert.Equal(t, 1, f.fetchCount("x.png"))
	assert.Equal(t, 1, f.fetchCount("y.png"))
}

func TestStreamCancelStillDrains(t *testing.T) {
	f := newFakeComfy(t, func(c *websocket.Conn, f *fakeComfy) {
		// 丢一条无关消息让接收返回，循环顶部才看得到取消
		time.Sleep(100 * time.Millisecond)
		sendJSON(c, map[string]any{"type": "status"})
		time.Sleep(time.Second)
	})
	f.setOutputs(map[string][]ImageRef{"9": {ref("partial.png")}})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	var got collected
	outcome, err := f.streamer(5*time.Second).Stream(ctx, testPromptID, "cid", got.onImage)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	// 取消归取消，收尾扫描照做
	assert.Equal(t, 1, outcome.Delivered)
	assert.Equal(t, []string{"partial.png"}, got.names())
}

func TestStreamConnectFailureIsFatal(t *testing.T) {
	s := NewStreamer(NewClient("127.0.0.1:1"), time.Second)
	var got collected
	_, err := s.Stream(context.Background(), testPromptID, "cid", got.onImage)
	require.Error(t, err)
	assert.Empty(t, got.names())
}
