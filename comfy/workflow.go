package comfy

import (
	"encoding/json"
	"math/rand"
	"os"

	"github.com/pkg/errors"
)

// Workflow 提交给推理服务的节点图：节点key => 节点对象。
// 我们只改 prompt/seed 两个节点的 inputs，其余字段原样透传
type Workflow map[string]any

const (
	promptInputName = "text"
	seedInputName   = "seed"
)

var ErrInvalidTemplate = errors.New("workflow template has no valid prompt node")

// Builder 从静态模板构造单次作业的 Workflow。
// 节点 key 来自配置（约定 "6"=提示词节点、"31"=种子节点），不要写死
type Builder struct {
	PromptNodeKey string
	SeedNodeKey   string

	template json.RawMessage
	seedFn   func() uint32 // 便于测试注入
}

// NewBuilder 读入模板文件并缓存。模板很少变，构造后不会重读；
// 要换模板就重建一个 Builder
func NewBuilder(templatePath, promptNodeKey, seedNodeKey string) (*Builder, error) {
	raw, err := os.ReadFile(templatePath)
	if err != nil {
		return nil, errors.Wrapf(err, "read workflow template %s", templatePath)
	}
	return NewBuilderFromJSON(raw, promptNodeKey, seedNodeKey)
}

func NewBuilderFromJSON(raw []byte, promptNodeKey, seedNodeKey string) (*Builder, error) {
	var probe Workflow
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, errors.Wrap(err, "parse workflow template")
	}
	return &Builder{
		PromptNodeKey: promptNodeKey,
		SeedNodeKey:   seedNodeKey,
		template:      raw,
		seedFn:        rand.Uint32,
	}, nil
}

// Build 克隆模板、注入提示词和随机种子。
// 提示词节点缺失/无 inputs 是致命错误（还没发任何网络请求）；
// 种子节点缺失只是跳过随机化
func (b *Builder) Build(requestText string) (Workflow, error) {
	// 每次从原始字节反序列化，天然深拷贝
	var wf Workflow
	if err := json.Unmarshal(b.template, &wf); err != nil {
		return nil, errors.Wrap(err, "parse workflow template")
	}

	inputs := nodeInputs(wf, b.PromptNodeKey)
	if inputs == nil {
		return nil, errors.Wrapf(ErrInvalidTemplate, "node %q", b.PromptNodeKey)
	}
	inputs[promptInputName] = requestText

	// [0, 2^32) 均匀随机；没有种子节点就算了
	if inputs := nodeInputs(wf, b.SeedNodeKey); inputs != nil {
		inputs[seedInputName] = int64(b.seedFn())
	}
	return wf, nil
}

func nodeInputs(wf Workflow, key string) map[string]any {
	node, ok := wf[key].(map[string]any)
	if !ok {
		return nil
	}
	inputs, ok := node["inputs"].(map[string]any)
	if !ok {
		return nil
	}
	return inputs
}
