package lmstudio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"

	"chode/config"
)

const defaultSystemMessage = "You are chode the chatbot."

// Client 本地文本推理服务（OpenAI 兼容的 /v1/chat/completions）
type Client struct {
	BaseURL    string
	Model      string
	HTTPClient *http.Client
}

func NewClient() *Client {
	return &Client{
		BaseURL:    config.Conf.LMStudio.BaseURL,
		Model:      config.Conf.LMStudio.Model,
		HTTPClient: &http.Client{Timeout: 180 * time.Second},
	}
}

// ChatCompletion 一次非流式补全。systemMessage 为空用默认人设
func (c *Client) ChatCompletion(ctx context.Context, prompt, systemMessage string) (string, error) {
	if systemMessage == "" {
		systemMessage = defaultSystemMessage
	}
	reqBody := map[string]any{
		"model": c.Model,
		"messages": []map[string]string{
			{"role": "system", "content": systemMessage},
			{"role": "user", "content": prompt},
		},
	}
	b, _ := json.Marshal(reqBody)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(c.BaseURL, "/")+"/v1/chat/completions", bytes.NewBuffer(b))
	if err != nil {
		return "", errors.Wrap(err, "build lmstudio request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "call lmstudio")
	}
	defer resp.Body.Close()
	rb, _ := io.ReadAll(resp.Body)
	if resp.StatusCode/100 != 2 {
		return "", errors.Errorf("lmstudio %d: %s", resp.StatusCode, string(rb))
	}

	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(rb, &out); err != nil {
		return "", errors.Wrapf(err, "lmstudio decode, raw=%s", string(rb))
	}
	if len(out.Choices) == 0 {
		return "", errors.New("lmstudio: empty choices")
	}
	return out.Choices[0].Message.Content, nil
}

// Reword 让模型把提示词改写得更细致（genimg 的 "++" 后缀走这里）
func (c *Client) Reword(ctx context.Context, prompt string) (string, error) {
	maxTokens := config.Conf.Bot.RewordMaxTokens
	system := fmt.Sprintf(
		"Reword the following prompt to be more descriptive and detailed, "+
			"while keeping it to approximately %d tokens. Return only the reworded prompt.", maxTokens)
	out, err := c.ChatCompletion(ctx, prompt, system)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// SuggestReaction 为一条消息挑一个 emoji，不值得回应时返回空串
func (c *Client) SuggestReaction(ctx context.Context, message string) (string, error) {
	prompt := fmt.Sprintf("Given the following message:\n%q\n"+
		"Suggest one reaction emoji that best expresses an appropriate reaction to this message. "+
		"If the message is not interesting, reply with 'none'. Return only the emoji or 'none'.", message)
	out, err := c.ChatCompletion(ctx, prompt, "")
	if err != nil {
		return "", err
	}
	out = strings.TrimSpace(out)
	if strings.EqualFold(out, "none") {
		return "", nil
	}
	return out, nil
}
