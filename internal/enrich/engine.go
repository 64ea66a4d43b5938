// Package enrich turns a post's text into seed-note metadata using a local
// text-generation service, falling back to a text-derived result whenever the
// service or its output lets us down.
package enrich

import (
	"context"
	"time"

	"github.com/mcao2/x-seed-notes/internal/logger"
)

// Generator produces a raw completion for a prompt
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Engine enriches post text. It never fails.
type Engine struct {
	gen Generator
	log *logger.Logger
}

// EngineOption configures an Engine
type EngineOption func(*Engine)

// WithEngineLogger sets the engine logger
func WithEngineLogger(l *logger.Logger) EngineOption {
	return func(e *Engine) {
		e.log = l
	}
}

// NewEngine creates an engine backed by gen
func NewEngine(gen Generator, opts ...EngineOption) *Engine {
	e := &Engine{
		gen: gen,
		log: logger.Named("enrich"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Enrich returns parsed metadata for text, or Fallback(text) when generation
// fails or the response carries no title
func (e *Engine) Enrich(ctx context.Context, text, authorHandle string) Result {
	prompt := BuildPrompt(text, authorHandle)

	start := time.Now()
	raw, err := e.gen.Generate(ctx, prompt)
	elapsed := time.Since(start)
	if err != nil {
		e.log.Warn().Err(err).Dur("elapsed", elapsed).Msg("generation failed; using fallback")
		return Fallback(text)
	}
	e.log.Debug().Dur("elapsed", elapsed).Int("chars", len(raw)).Str("raw", raw).Msg("model response")

	result := ParseResponse(raw)
	if result.Title == "" {
		e.log.Warn().Dur("elapsed", elapsed).Msg("response has no TITLE; using fallback")
		return Fallback(text)
	}

	e.log.Debug().Str("title", result.Title).Msg("response parsed")
	return result
}
