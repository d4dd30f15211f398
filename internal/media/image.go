// Package media builds the URLs of the image generation and text-to-speech
// services. No request is made; the caller fetches or plays the URL.
package media

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"net/url"
	"strings"

	"github.com/comigor/pocketchat/internal/config"
)

var (
	ErrEmptyPrompt = errors.New("prompt is empty")
	ErrEmptyText   = errors.New("text is empty")
)

// seedRange bounds the random seed sent with every image request.
const seedRange = 1_000_000

// Option is a selectable catalogue entry.
type Option struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Size is a selectable image size.
type Size struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Label  string `json:"label"`
}

var ImageModels = []Option{
	{ID: "flux", Name: "Flux"},
	{ID: "flux-realism", Name: "Flux Realism"},
	{ID: "flux-cablyai", Name: "Flux CablyAI"},
	{ID: "flux-anime", Name: "Flux Anime"},
	{ID: "any-dark", Name: "Any Dark"},
	{ID: "flux-3d", Name: "Flux 3D"},
}

var ImageSizes = []Size{
	{Width: 1024, Height: 1024, Label: "1:1 (1024×1024)"},
	{Width: 1024, Height: 1408, Label: "2:3 (1024×1408)"},
	{Width: 1408, Height: 1024, Label: "3:2 (1408×1024)"},
	{Width: 1920, Height: 1080, Label: "16:9 (1920×1080)"},
}

// ImageRequest describes one image. Zero fields take the builder defaults.
type ImageRequest struct {
	Prompt string `json:"prompt"`
	Model  string `json:"model"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// ImageURLBuilder formats image generation URLs.
type ImageURLBuilder struct {
	cfg  config.ImageConfig
	seed func() int
}

// NewImageURLBuilder uses cfg for the endpoint and the defaults.
func NewImageURLBuilder(cfg config.ImageConfig) *ImageURLBuilder {
	return &ImageURLBuilder{
		cfg:  cfg,
		seed: func() int { return rand.IntN(seedRange) },
	}
}

// Build returns the URL for req with a fresh random seed. The prompt is
// trimmed; a blank prompt is ErrEmptyPrompt.
func (b *ImageURLBuilder) Build(req ImageRequest) (string, error) {
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return "", ErrEmptyPrompt
	}
	model := req.Model
	if model == "" {
		model = b.cfg.Model
	}
	width, height := req.Width, req.Height
	if width <= 0 {
		width = b.cfg.Width
	}
	if height <= 0 {
		height = b.cfg.Height
	}

	return fmt.Sprintf("%s/%s?model=%s&width=%d&height=%d&seed=%d&nologo=true",
		strings.TrimRight(b.cfg.BaseURL, "/"), escape(prompt), url.QueryEscape(model), width, height, b.seed()), nil
}

// escape percent-encodes s for a path segment or query value, spaces as %20.
func escape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
