package localize

import (
	"context"
	"fmt"
	"strings"
)

// Request carries the original content and the localization context.
type Request struct {
	Content        string
	TargetLanguage string
	ContentType    string // e.g. "social post", "marketing copy"
	Tone           string
	SpecialNotes   string
}

// Result is the structured output of a localization transform.
type Result struct {
	LocalizedText string   `json:"localizedText"`
	CulturalNote  string   `json:"culturalNote"`
	Hashtags      []string `json:"hashtags"`
	CallToAction  string   `json:"callToAction"`
}

// Transformer produces culturally adapted content for a target language.
type Transformer interface {
	Localize(ctx context.Context, req Request) (Result, error)
}

// FallbackMarker identifies fallback output in the cultural note so clients
// can distinguish it from model-generated content.
const FallbackMarker = "[fallback]"

// Fallback returns deterministic localized content keyed only by target
// language. It substitutes for the transform service when the call fails or
// returns unusable output, so transform-quality issues never fail a job.
func Fallback(req Request) Result {
	lang := strings.TrimSpace(req.TargetLanguage)
	if lang == "" {
		lang = "the target language"
	}
	return Result{
		LocalizedText: req.Content,
		CulturalNote:  fmt.Sprintf("%s automatic adaptation for %s was unavailable; original content preserved", FallbackMarker, lang),
		Hashtags:      []string{},
		CallToAction:  "",
	}
}

// IsFallback reports whether res was produced by Fallback.
func IsFallback(res Result) bool {
	return strings.HasPrefix(res.CulturalNote, FallbackMarker)
}
