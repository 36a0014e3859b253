package mock

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/jo-hoe/content-localizer/internal/config"
	"github.com/jo-hoe/content-localizer/internal/localize"
)

func TestLocalize(t *testing.T) {
	tr := New(config.MockSettings{})
	res, err := tr.Localize(context.Background(), localize.Request{
		Content:        "Check out our new feature",
		TargetLanguage: "es",
	})
	if err != nil {
		t.Fatalf("Localize: %v", err)
	}
	if !strings.Contains(res.LocalizedText, "Check out our new feature") {
		t.Fatalf("original content missing from output: %q", res.LocalizedText)
	}
	if !strings.Contains(res.LocalizedText, "es") {
		t.Fatalf("target language missing from output: %q", res.LocalizedText)
	}
	if len(res.Hashtags) == 0 || res.CallToAction == "" || res.CulturalNote == "" {
		t.Fatalf("incomplete result: %+v", res)
	}
	if localize.IsFallback(res) {
		t.Fatal("mock output must not look like fallback output")
	}
}

func TestLocalize_DelayRespectsContext(t *testing.T) {
	tr := New(config.MockSettings{Delay: time.Minute})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := tr.Localize(ctx, localize.Request{Content: "x", TargetLanguage: "fr"})
	if err == nil {
		t.Fatal("expected context error")
	}
}
