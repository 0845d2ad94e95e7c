// Package synth drives the language model to produce a grounded answer
// from retrieved context, in batch or streaming mode, with duplication
// repair applied before anything reaches the caller.
package synth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/seralt/askdoc/internal/ai"
	"github.com/seralt/askdoc/internal/model"
	appErr "github.com/seralt/askdoc/internal/pkg/errors"
	"github.com/seralt/askdoc/internal/streamrepair"
)

const (
	EventToken = "token"
	EventEnd   = "end"
	EventError = "error"
)

// Event is one record of the answer event stream, serialized one JSON
// object per line. A stream terminates with either an end event (graceful)
// or an error event (failure), never both.
type Event struct {
	Type     string `json:"type"`
	Content  string `json:"content,omitempty"`
	Message  string `json:"message,omitempty"`
	Position int    `json:"position,omitempty"`
}

type Config struct {
	// ContextCharBudget caps the total characters of context included in
	// the prompt. Lowest-scored candidates are dropped whole; text is
	// never cut mid-chunk.
	ContextCharBudget int
	Timeout           time.Duration
}

type Synthesizer struct {
	generator ai.IGenerator
	cfg       Config
}

func New(generator ai.IGenerator, cfg Config) *Synthesizer {
	if cfg.ContextCharBudget <= 0 {
		cfg.ContextCharBudget = 24000
	}
	return &Synthesizer{generator: generator, cfg: cfg}
}

// Synthesize produces the complete repaired answer in one call.
func (s *Synthesizer) Synthesize(ctx context.Context, query string, contexts []model.RetrievalCandidate) (string, error) {
	if s.generator == nil {
		return "", fmt.Errorf("%w: no chat provider configured", appErr.ErrGenerationFailed)
	}
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}
	text, err := s.generator.Generate(ctx, s.buildPrompt(query, contexts))
	if err != nil {
		return "", fmt.Errorf("%w: %v", appErr.ErrGenerationFailed, err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: empty model response", appErr.ErrGenerationFailed)
	}
	return streamrepair.Repair(text), nil
}

// SynthesizeStream emits token events in generation order, repaired before
// release, then a terminal end event carrying the assembled message. On
// failure it emits an error event and stops without an end event.
func (s *Synthesizer) SynthesizeStream(ctx context.Context, query string, contexts []model.RetrievalCandidate) (<-chan Event, error) {
	if s.generator == nil {
		return nil, fmt.Errorf("%w: no chat provider configured", appErr.ErrGenerationFailed)
	}
	cancel := context.CancelFunc(func() {})
	if s.cfg.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
	}
	chunks, err := s.generator.StreamGenerate(ctx, s.buildPrompt(query, contexts))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w: %v", appErr.ErrGenerationFailed, err)
	}
	events := make(chan Event)
	go func() {
		defer close(events)
		defer cancel()
		filter := streamrepair.NewFilter()
		position := 0
		emit := func(content string) {
			if content == "" {
				return
			}
			events <- Event{Type: EventToken, Content: content, Position: position}
			position++
		}
		for chunk := range chunks {
			if chunk.Err != nil {
				logutil.GetLogger(ctx).Error("generation stream failed", zap.Error(chunk.Err))
				events <- Event{Type: EventError, Message: chunk.Err.Error()}
				return
			}
			if chunk.Content != "" {
				emit(filter.Push(chunk.Content))
			}
			if chunk.Done {
				break
			}
		}
		emit(filter.Flush())
		events <- Event{Type: EventEnd, Message: filter.Message()}
	}()
	return events, nil
}

// buildPrompt includes the highest-scored candidates verbatim until the
// character budget is exhausted.
func (s *Synthesizer) buildPrompt(query string, contexts []model.RetrievalCandidate) string {
	var sb strings.Builder
	used := 0
	kept := 0
	for _, c := range contexts {
		if used+len(c.Text) > s.cfg.ContextCharBudget && kept > 0 {
			break
		}
		sb.WriteString(fmt.Sprintf("[%d] %s\n\n", kept+1, c.Text))
		used += len(c.Text)
		kept++
	}
	return fmt.Sprintf(`You are a helpful assistant answering questions over a private document collection.
Answer the question using ONLY the context below.
- If the context does not contain the answer, say you do not know.
- Use the same language as the question.
- Do not mention the context or its numbering in the answer.

CONTEXT:
%s
QUESTION:
%s`, sb.String(), query)
}
