package anthropic

import (
	"fmt"

	sdkanthropic "github.com/anthropics/anthropic-sdk-go"

	"github.com/braid-ai/braid/internal/provider"
)

// convertRequest transforms a braid Request into Anthropic SDK parameters.
// The system prompt travels in the dedicated System field; a request-level
// MaxTokens overrides the config default.
func convertRequest(req provider.Request, cfg *Config) (sdkanthropic.MessageNewParams, error) {
	messages, err := convertMessages(req.Messages)
	if err != nil {
		return sdkanthropic.MessageNewParams{}, err
	}

	params := sdkanthropic.MessageNewParams{
		Model:    sdkanthropic.Model(cfg.Model),
		Messages: messages,
	}

	if req.System != "" {
		params.System = []sdkanthropic.TextBlockParam{{Text: req.System}}
	}

	params.MaxTokens = int64(cfg.MaxTokens)
	if req.MaxTokens > 0 {
		params.MaxTokens = int64(req.MaxTokens)
	}

	switch {
	case req.Temperature != nil:
		params.Temperature = sdkanthropic.Float(*req.Temperature)
	case cfg.Temperature > 0:
		params.Temperature = sdkanthropic.Float(cfg.Temperature)
	}

	// Extended thinking: request-level budget wins over the config default.
	budget := cfg.ThinkingBudget
	if req.ThinkingBudget > 0 {
		budget = req.ThinkingBudget
	}
	if budget > 0 {
		params.Thinking = sdkanthropic.ThinkingConfigParamOfEnabled(int64(budget))
	}

	return params, nil
}

// convertMessages transforms braid messages into SDK message params,
// rejecting any role outside the user/assistant set.
func convertMessages(msgs []provider.Message) ([]sdkanthropic.MessageParam, error) {
	result := make([]sdkanthropic.MessageParam, 0, len(msgs))
	for i, msg := range msgs {
		switch msg.Role {
		case provider.RoleUser:
			result = append(result, sdkanthropic.NewUserMessage(
				sdkanthropic.NewTextBlock(msg.Content),
			))
		case provider.RoleAssistant:
			result = append(result, sdkanthropic.NewAssistantMessage(
				sdkanthropic.NewTextBlock(msg.Content),
			))
		default:
			return nil, fmt.Errorf("%w at index %d: %q", provider.ErrInvalidRole, i, msg.Role)
		}
	}
	return result, nil
}

// convertResponse extracts the text content and usage counters from an SDK
// Message. Thinking blocks are skipped; only visible text is returned.
func convertResponse(msg *sdkanthropic.Message) (provider.Response, error) {
	var content string
	for _, block := range msg.Content {
		if v, ok := block.AsAny().(sdkanthropic.TextBlock); ok {
			if content != "" {
				content += "\n"
			}
			content += v.Text
		}
	}

	resp := provider.Response{
		Content: content,
		Usage: provider.Usage{
			InputTokens:  int(msg.Usage.InputTokens),
			OutputTokens: int(msg.Usage.OutputTokens),
		},
	}

	if content == "" {
		return resp, provider.ErrEmptyReply
	}
	return resp, nil
}
