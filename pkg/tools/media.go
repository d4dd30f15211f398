package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/comigor/pocketchat/internal/logger"
	"github.com/comigor/pocketchat/internal/media"
)

// ImageTool builds image URLs.
type ImageTool struct {
	builder *media.ImageURLBuilder
}

func NewImageTool(builder *media.ImageURLBuilder) *ImageTool {
	return &ImageTool{builder: builder}
}

func (t *ImageTool) Definition() mcp.Tool {
	return mcp.NewTool("generate_image_url",
		mcp.WithDescription("Returns a URL that renders an image for the prompt. Fetching the URL produces the image."),
		mcp.WithString("prompt", mcp.Required(), mcp.Description("What the image should show")),
		mcp.WithString("model", mcp.Description("Image model, e.g. flux or flux-anime")),
		mcp.WithNumber("width", mcp.Description("Width in pixels")),
		mcp.WithNumber("height", mcp.Description("Height in pixels")),
	)
}

func (t *ImageTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	prompt, err := req.RequireString("prompt")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	url, err := t.builder.Build(media.ImageRequest{
		Prompt: prompt,
		Model:  req.GetString("model", ""),
		Width:  req.GetInt("width", 0),
		Height: req.GetInt("height", 0),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	logger.L.Debug("image url built", "url", url)
	return mcp.NewToolResultText(url), nil
}

// SpeechTool builds text-to-speech URLs.
type SpeechTool struct {
	builder *media.SpeechURLBuilder
}

func NewSpeechTool(builder *media.SpeechURLBuilder) *SpeechTool {
	return &SpeechTool{builder: builder}
}

func (t *SpeechTool) Definition() mcp.Tool {
	return mcp.NewTool("generate_speech_url",
		mcp.WithDescription("Returns a URL that streams the text spoken aloud."),
		mcp.WithString("text", mcp.Required(), mcp.Description("Text to speak")),
		mcp.WithString("voice", mcp.Description("Voice name, e.g. nova or echo")),
	)
}

func (t *SpeechTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	url, err := t.builder.Build(text, req.GetString("voice", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(url), nil
}
