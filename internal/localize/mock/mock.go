package mock

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jo-hoe/content-localizer/internal/config"
	"github.com/jo-hoe/content-localizer/internal/localize"
)

var _ localize.Transformer = (*Transformer)(nil)

// Transformer is a deterministic transform for local runs and tests. It
// annotates the content instead of calling a model.
type Transformer struct {
	delay time.Duration
}

// New creates a mock transformer from config.
func New(cfg config.MockSettings) *Transformer {
	return &Transformer{delay: cfg.Delay}
}

// Localize returns the content annotated with the target language after an
// optional configured delay.
func (t *Transformer) Localize(ctx context.Context, req localize.Request) (localize.Result, error) {
	if t.delay > 0 {
		select {
		case <-ctx.Done():
			return localize.Result{}, ctx.Err()
		case <-time.After(t.delay):
		}
	}
	lang := strings.TrimSpace(req.TargetLanguage)
	if lang == "" {
		lang = "en"
	}
	return localize.Result{
		LocalizedText: fmt.Sprintf("%s (localized for %s)", req.Content, lang),
		CulturalNote:  fmt.Sprintf("mock adaptation for %s", lang),
		Hashtags:      []string{"#" + strings.ReplaceAll(strings.ToLower(lang), " ", "")},
		CallToAction:  "Learn more",
	}, nil
}
