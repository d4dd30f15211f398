package chat

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"

	"github.com/comigor/pocketchat/internal/config"
	"github.com/comigor/pocketchat/internal/llm"
	"github.com/comigor/pocketchat/internal/logger"
	"github.com/comigor/pocketchat/internal/session"
)

const defaultSystemPrompt = "You are a helpful AI assistant."

// Assistant turns a conversation into one chat completion round trip.
type Assistant struct {
	llmClient    llm.Client
	systemPrompt string
}

func NewAssistant(llmClient llm.Client, cfg config.LLMConfig) *Assistant {
	prompt := cfg.SystemPrompt
	if prompt == "" {
		prompt = defaultSystemPrompt
	}
	return &Assistant{llmClient: llmClient, systemPrompt: prompt}
}

// Complete sends the system prompt, history and text to model and returns
// the first choice. A response without choices yields an empty reply.
func (a *Assistant) Complete(ctx context.Context, model string, history []session.Message, text string) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: a.systemPrompt,
	})
	for _, m := range history {
		messages = append(messages, openai.ChatCompletionMessage{Role: m.Role(), Content: m.Text})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: text})

	resp, err := a.llmClient.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    model,
		Messages: messages,
		Stream:   false,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrRemoteRequestFailed, err)
	}
	logger.L.Debug("llm response received", "model", model, "choices", len(resp.Choices))

	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

// Models lists the model ids offered by the endpoint.
func (a *Assistant) Models(ctx context.Context) ([]string, error) {
	list, err := a.llmClient.ListModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRemoteRequestFailed, err)
	}
	ids := make([]string, len(list.Models))
	for i, m := range list.Models {
		ids[i] = m.ID
	}
	return ids, nil
}
