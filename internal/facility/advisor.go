package facility

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/campus-card/backend/internal/llm"
	"github.com/campus-card/backend/pkg/logger"
)

const adviceSystemPrompt = "你是一个友好的校园助手，为捡到校园卡的同学提供简洁实用的校园服务建议。"

const advicePrompt = `一位同学在"%s"附近捡到了校园卡，请告诉他如何把卡送到招领点。

最近的招领点：%s
距离：%.1f个单位

要求：
1. 确认最近招领点的位置
2. 给出大致的步行时间，例如"步行5-7分钟就能到"
3. 不要提到其他地点或街道名称
4. 面向捡卡的同学，而不是丢卡的同学
请直接用中文回复，语气亲切但不要加过多语气词。`

const cannedAdvice = "最近的招领点是%s，距离约%.1f个单位。建议您前往该地点查看是否有您丢失的物品。"

// ModelClient is the chat-completion endpoint used for advice text.
type ModelClient interface {
	Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error)
}

// Advisor writes a short human-readable hint about reaching a facility.
type Advisor struct {
	model ModelClient
}

// NewAdvisor returns an advisor. With a nil model it always answers with
// canned text.
func NewAdvisor(model ModelClient) *Advisor {
	return &Advisor{model: model}
}

// Advise never fails; any model problem yields the canned text.
func (a *Advisor) Advise(ctx context.Context, location string, nearest Nearest) string {
	canned := fmt.Sprintf(cannedAdvice, nearest.Name, nearest.Distance)
	if a.model == nil {
		return canned
	}

	resp, err := a.model.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: adviceSystemPrompt,
		UserPrompt:   fmt.Sprintf(advicePrompt, location, nearest.Name, nearest.Distance),
	})
	if err != nil {
		logger.Warn("Advice generation failed",
			zap.String("location", location),
			zap.String("kind", llm.ErrorKind(err)),
			zap.Error(err),
		)
		return canned
	}

	text := strings.TrimSpace(resp.Content)
	if text == "" {
		return canned
	}
	if !strings.HasPrefix(text, "{") || !strings.HasSuffix(text, "}") {
		return text
	}

	// Some replies wrap the advice in a JSON object.
	var fields map[string]any
	if err := json.Unmarshal([]byte(text), &fields); err != nil {
		return canned
	}
	for _, k := range []string{"advice", "suggestion", "message"} {
		if s, ok := fields[k].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return canned
}
