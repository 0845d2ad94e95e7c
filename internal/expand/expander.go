// Package expand generates hypothetical questions from chunk text at
// indexing time (HyPE). Expansion failure degrades recall but never blocks
// indexing of the chunk itself.
package expand

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/seralt/askdoc/internal/ai"
)

type Expander struct {
	generator ai.IGenerator
	timeout   time.Duration
}

func New(generator ai.IGenerator, timeout time.Duration) *Expander {
	return &Expander{generator: generator, timeout: timeout}
}

// Expand returns up to k distinct questions a user might ask that the chunk
// answers. It returns however many were produced, possibly zero.
func (e *Expander) Expand(ctx context.Context, chunkText string, k int) []string {
	if e == nil || e.generator == nil || k <= 0 {
		return nil
	}
	text := strings.TrimSpace(chunkText)
	if text == "" {
		return nil
	}
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	logger := logutil.GetLogger(ctx).With(zap.Int("requested", k))
	prompt := fmt.Sprintf(`You are a question generation assistant.
From the text below, write up to %d questions a real user might ask that this text answers.
- Each question must be answerable from the text alone.
- Do not restate the text as a declarative sentence.
- Use the same language as the text.
- Return a JSON array of strings only. No extra text.

TEXT:
%s`, k, text)
	raw, err := e.generator.Generate(ctx, prompt)
	if err != nil {
		logger.Warn("question expansion failed", zap.Error(err))
		return nil
	}
	questions, err := parseQuestions(raw, k)
	if err != nil {
		logger.Warn("question expansion unparseable", zap.Error(err))
		return nil
	}
	if len(questions) < k {
		logger.Warn("question expansion incomplete", zap.Int("produced", len(questions)))
	}
	return questions
}

func parseQuestions(output string, max int) ([]string, error) {
	clean := strings.TrimSpace(output)
	clean = strings.TrimPrefix(clean, "```json")
	clean = strings.TrimPrefix(clean, "```")
	clean = strings.TrimSuffix(clean, "```")
	clean = strings.TrimSpace(clean)
	start := strings.Index(clean, "[")
	end := strings.LastIndex(clean, "]")
	if start >= 0 && end > start {
		clean = clean[start : end+1]
	}

	var questions []string
	if err := json.Unmarshal([]byte(clean), &questions); err != nil {
		return nil, fmt.Errorf("parse questions: %w", err)
	}
	uniq := make([]string, 0, len(questions))
	seen := make(map[string]bool)
	for _, q := range questions {
		normalized := strings.TrimSpace(q)
		if normalized == "" {
			continue
		}
		if seen[normalized] {
			continue
		}
		seen[normalized] = true
		uniq = append(uniq, normalized)
		if len(uniq) >= max {
			break
		}
	}
	return uniq, nil
}
