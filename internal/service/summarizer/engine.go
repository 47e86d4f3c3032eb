package summarizer

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"google.golang.org/genai"

	"lexibrief/internal/config"
)

// Engine produces an abstractive summary whose length stays within the given
// bounds. Decoding is always deterministic.
type Engine interface {
	Summarize(ctx context.Context, text string, minLength, maxLength int) (string, error)
	Name() string
}

const engineHTTPTimeout = 150 * time.Second

func newEngine(ctx context.Context, provider string, pc config.ProviderConfig) (Engine, error) {
	if provider == config.ProviderHuggingFace {
		return newHuggingFaceEngine(pc, nil), nil
	}
	chatModel, err := newChatModel(ctx, provider, pc)
	if err != nil {
		return nil, err
	}
	return newChatEngine(provider+":"+pc.Model, chatModel), nil
}

func newChatModel(ctx context.Context, provider string, pc config.ProviderConfig) (model.BaseChatModel, error) {
	if pc.APIKey == "" {
		return nil, fmt.Errorf("no api key configured for provider %s", provider)
	}
	if pc.Model == "" {
		return nil, fmt.Errorf("no model configured for provider %s", provider)
	}

	switch provider {
	case config.ProviderOpenAI:
		return openai.NewChatModel(ctx, &openai.ChatModelConfig{
			BaseURL: pc.BaseURL,
			Model:   pc.Model,
			APIKey:  pc.APIKey,
		})
	case config.ProviderGemini:
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey: pc.APIKey,
		})
		if err != nil {
			return nil, fmt.Errorf("new gemini client: %w", err)
		}
		return gemini.NewChatModel(ctx, &gemini.Config{
			Client: client,
			Model:  pc.Model,
		})
	case config.ProviderClaude:
		var baseURLPtr *string
		if pc.BaseURL != "" {
			baseURLPtr = &pc.BaseURL
		}
		return claude.NewChatModel(ctx, &claude.Config{
			APIKey:    pc.APIKey,
			Model:     pc.Model,
			BaseURL:   baseURLPtr,
			MaxTokens: chatMaxTokens,
		})
	default:
		return nil, fmt.Errorf("invalid provider: %s", provider)
	}
}
