package comfy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
)

// Client 推理服务的 HTTP 侧：提交作业、取图、查历史。
// WS 侧见 stream.go
type Client struct {
	ServerAddress string // host:port，如 127.0.0.1:8188
	HTTPClient    *http.Client
}

func NewClient(serverAddress string) *Client {
	return &Client{
		ServerAddress: serverAddress,
		HTTPClient:    &http.Client{Timeout: 60 * time.Second},
	}
}

// ImageRef 一张产物图片的引用三元组
type ImageRef struct {
	Filename  string `json:"filename"`
	Subfolder string `json:"subfolder"`
	Type      string `json:"type"` // 存储类别 output/temp
}

// Key 去重键：按产物而不是按节点记账，节点后补的图不会被吞掉
func (r ImageRef) Key() string {
	return r.Filename + "|" + r.Subfolder + "|" + r.Type
}

func (c *Client) baseURL() string {
	return "http://" + c.ServerAddress
}

// QueuePrompt POST /prompt，返回作业ID。
// 服务端没回 prompt_id 视为提交失败
func (c *Client) QueuePrompt(ctx context.Context, wf Workflow, clientID string) (string, error) {
	payload := map[string]any{
		"prompt":    wf,
		"client_id": clientID,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", errors.Wrap(err, "marshal prompt payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL()+"/prompt", bytes.NewReader(body))
	if err != nil {
		return "", errors.Wrap(err, "build prompt request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "queue prompt")
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		rb, _ := io.ReadAll(resp.Body)
		return "", errors.Errorf("queue prompt: comfy %d: %s", resp.StatusCode, string(rb))
	}

	var out struct {
		PromptID string `json:"prompt_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", errors.Wrap(err, "decode prompt response")
	}
	if out.PromptID == "" {
		return "", errors.New("no prompt id returned")
	}
	return out.PromptID, nil
}

// GetImage GET /view，按引用三元组取回图片字节
func (c *Client) GetImage(ctx context.Context, ref ImageRef) ([]byte, error) {
	q := url.Values{}
	q.Set("filename", ref.Filename)
	q.Set("subfolder", ref.Subfolder)
	q.Set("type", ref.Type)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL()+"/view?"+q.Encode(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "build view request")
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "fetch image %s", ref.Filename)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return nil, errors.Errorf("fetch image %s: comfy %d", ref.Filename, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// GetHistory GET /history/{prompt_id}，返回 节点ID => 图片引用列表。
// 作业还没进历史时返回空表（不是错误），调用方按"还没就绪"处理
func (c *Client) GetHistory(ctx context.Context, promptID string) (map[string][]ImageRef, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL()+"/history/"+url.PathEscape(promptID), nil)
	if err != nil {
		return nil, errors.Wrap(err, "build history request")
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "get history for %s", promptID)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		rb, _ := io.ReadAll(resp.Body)
		return nil, errors.Errorf("get history: comfy %d: %s", resp.StatusCode, string(rb))
	}

	// {<prompt_id>: {outputs: {<nodeId>: {images: [...]}}}}
	var raw map[string]struct {
		Outputs map[string]struct {
			Images []ImageRef `json:"images"`
		} `json:"outputs"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, errors.Wrap(err, "decode history response")
	}

	outputs := map[string][]ImageRef{}
	entry, ok := raw[promptID]
	if !ok {
		return outputs, nil
	}
	for nodeID, node := range entry.Outputs {
		outputs[nodeID] = node.Images
	}
	return outputs, nil
}

// WebsocketURL 事件流地址，按 clientId 区分会话
func (c *Client) WebsocketURL(clientID string) string {
	return fmt.Sprintf("ws://%s/ws?clientId=%s", c.ServerAddress, url.QueryEscape(clientID))
}
