package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// TextGenerator sends one prompt to a generative model and returns its reply.
// Implemented by googleai.Client and openai.Client.
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}

const normalizePrompt = `You extract the search keyword from questions about sign language videos.
Reply with only the word or short phrase being asked about. No quotes, no punctuation, no explanation.

Examples:
Question: How do you say sorry in Thai Sign Language?
Keyword: sorry
Question: what is the sign for "thank you"
Keyword: thank you
Question: Show me how to sign good morning in ASL
Keyword: good morning
Question: banana
Keyword: banana

Question: %s
Keyword:`

const defaultModelCallTimeout = 10 * time.Second

// QueryNormalizer turns a conversational query into a short keyword using a language model.
// Any failure returns the raw query unchanged.
type QueryNormalizer struct {
	generator TextGenerator
	timeout   time.Duration
	logger    *slog.Logger
}

// NewQueryNormalizer creates a QueryNormalizer. A nil generator disables normalization.
func NewQueryNormalizer(generator TextGenerator, timeout time.Duration, logger *slog.Logger) *QueryNormalizer {
	if logger == nil {
		logger = slog.Default()
	}

	if timeout <= 0 {
		timeout = defaultModelCallTimeout
	}

	return &QueryNormalizer{generator: generator, timeout: timeout, logger: logger}
}

// Normalize returns the extracted keyword, or raw when the model is unavailable or replies with nothing usable.
func (n *QueryNormalizer) Normalize(ctx context.Context, raw string) string {
	if n == nil || n.generator == nil || strings.TrimSpace(raw) == "" {
		return raw
	}

	callCtx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	reply, err := n.generator.GenerateText(callCtx, fmt.Sprintf(normalizePrompt, strings.TrimSpace(raw)))
	if err != nil {
		n.logger.WarnContext(ctx, "query normalization failed, using raw query", "error", err)

		return raw
	}

	keyword := cleanKeyword(reply)
	if keyword == "" {
		n.logger.WarnContext(ctx, "query normalization returned empty keyword, using raw query")

		return raw
	}

	n.logger.DebugContext(ctx, "query normalized", "raw", raw, "keyword", keyword)

	return keyword
}

const keywordQuotes = "\"'`“”‘’"

// cleanKeyword keeps the first line of the reply and strips a "Keyword:" label,
// surrounding quotes and trailing punctuation.
func cleanKeyword(reply string) string {
	s := strings.TrimSpace(reply)
	if i := strings.IndexAny(s, "\r\n"); i >= 0 {
		s = s[:i]
	}

	s = strings.TrimSpace(s)
	if len(s) >= len("keyword:") && strings.EqualFold(s[:len("keyword:")], "keyword:") {
		s = strings.TrimSpace(s[len("keyword:"):])
	}

	for {
		trimmed := strings.TrimSpace(strings.TrimRight(strings.Trim(s, keywordQuotes), ".,!?;:"))
		if trimmed == s {
			return s
		}

		s = trimmed
	}
}
