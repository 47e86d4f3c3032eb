package summarizer

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// Output budget derived from max_length, capped for every provider.
const (
	tokensPerWord = 2
	chatMaxTokens = 1024
)

const summaryPrompt = "You are a summarization engine for professional documents. " +
	"Write an abstractive summary of the text provided by the user. " +
	"The summary must be between %d and %d words long. " +
	"Output only the summary, without a title, preamble or bullet points."

// chatEngine asks an instruction-following chat model for the summary.
type chatEngine struct {
	name  string
	model model.BaseChatModel
}

func newChatEngine(name string, m model.BaseChatModel) *chatEngine {
	return &chatEngine{name: name, model: m}
}

func (e *chatEngine) Name() string { return e.name }

func (e *chatEngine) Summarize(ctx context.Context, text string, minLength, maxLength int) (string, error) {
	messages := []*schema.Message{
		{
			Role:    schema.System,
			Content: fmt.Sprintf(summaryPrompt, minLength, maxLength),
		},
		{
			Role:    schema.User,
			Content: text,
		},
	}
	maxTokens := maxLength * tokensPerWord
	if maxTokens > chatMaxTokens {
		maxTokens = chatMaxTokens
	}
	resp, err := e.model.Generate(ctx, messages,
		model.WithTemperature(0),
		model.WithMaxTokens(maxTokens),
	)
	if err != nil {
		return "", fmt.Errorf("generate summary: %w", err)
	}
	if resp == nil {
		return "", fmt.Errorf("generate summary: empty response")
	}
	return resp.Content, nil
}
