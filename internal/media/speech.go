package media

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/comigor/pocketchat/internal/config"
)

var Voices = []Option{
	{ID: "Asaf", Name: "Asaf"},
	{ID: "echo", Name: "Echo"},
	{ID: "fable", Name: "Fable"},
	{ID: "onyx", Name: "Onyx"},
	{ID: "nova", Name: "Nova"},
	{ID: "shimmer", Name: "Shimmer"},
}

// SampleText is spoken by the "sample" action.
const SampleText = "Welcome to our AI chatbot. I'm here to help you with any questions you might have. How can I assist you today?"

type SpeechURLBuilder struct {
	cfg config.SpeechConfig
}

func NewSpeechURLBuilder(cfg config.SpeechConfig) *SpeechURLBuilder {
	return &SpeechURLBuilder{cfg: cfg}
}

// Build returns the speech URL for text read by voice, or the configured
// voice when voice is empty.
func (b *SpeechURLBuilder) Build(text, voice string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyText
	}
	if voice == "" {
		voice = b.cfg.Voice
	}
	return fmt.Sprintf("%s?voice=%s&text=%s", b.cfg.BaseURL, url.QueryEscape(voice), escape(text)), nil
}
