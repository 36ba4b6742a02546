package steps

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"

	"github.com/yungbote/contractlens-backend/internal/modules/analysis/prompts"
	"github.com/yungbote/contractlens-backend/internal/normalization"
	"github.com/yungbote/contractlens-backend/internal/observability"
	"github.com/yungbote/contractlens-backend/internal/platform/logger"
)

const (
	MaxInputRunes   = 50000
	TruncatedMarker = "\n\n[Document truncated for analysis...]"
)

// ModelClient is the structured-output call every stage makes exactly once.
type ModelClient interface {
	GenerateJSON(ctx context.Context, system string, user string, schemaName string, schema map[string]any) (map[string]any, error)
}

// StageError is returned for any failure inside a stage: rendering, the model
// call (timeouts included) or a result that cannot be repaired.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// IsStageError reports whether err came out of a model-backed stage.
func IsStageError(err error) bool {
	var se *StageError
	return errors.As(err, &se)
}

// Truncate caps s at MaxInputRunes and appends TruncatedMarker. Already
// truncated input is returned unchanged.
func Truncate(s string) string {
	if utf8.RuneCountInString(s) <= MaxInputRunes {
		return s
	}
	runes := []rune(s)
	if len(runes) == MaxInputRunes+utf8.RuneCountInString(TruncatedMarker) && string(runes[MaxInputRunes:]) == TruncatedMarker {
		return s
	}
	return string(runes[:MaxInputRunes]) + TruncatedMarker
}

type renderFunc[In any] func(In) prompts.Input

type decodeFunc[In any, Out any] func(In, normalization.Raw) (Out, int, error)

// Stage binds one prompt to one normalizer. It holds no state between runs.
type Stage[In any, Out any] struct {
	name   string
	prompt prompts.PromptName
	model  ModelClient
	log    *logger.Logger
	render renderFunc[In]
	decode decodeFunc[In, Out]
}

func newStage[In any, Out any](name string, prompt prompts.PromptName, model ModelClient, baseLog *logger.Logger, render renderFunc[In], decode decodeFunc[In, Out]) *Stage[In, Out] {
	if baseLog == nil {
		baseLog = logger.NewNop()
	}
	return &Stage[In, Out]{
		name:   name,
		prompt: prompt,
		model:  model,
		log:    baseLog.With("stage", name),
		render: render,
		decode: decode,
	}
}

func (s *Stage[In, Out]) Name() string { return s.name }

func (s *Stage[In, Out]) Run(ctx context.Context, in In) (out Out, err error) {
	start := time.Now()
	ctx, span := observability.StartSpan(ctx, "stage."+s.name, attribute.String("stage", s.name))
	defer func() {
		status := "ok"
		if err != nil {
			status = "error"
		}
		observability.Current().ObserveStage(s.name, status, time.Since(start))
		observability.EndSpan(span, err)
	}()

	if s.model == nil {
		return out, &StageError{Stage: s.name, Err: errors.New("model client not configured")}
	}
	p, err := prompts.Build(s.prompt, s.render(in))
	if err != nil {
		return out, &StageError{Stage: s.name, Err: err}
	}
	span.SetAttributes(attribute.String("prompt.fingerprint", p.Fingerprint()))

	obj, err := s.model.GenerateJSON(ctx, p.System, p.User, p.SchemaName, p.Schema)
	if err != nil {
		return out, &StageError{Stage: s.name, Err: err}
	}
	if obj == nil {
		return out, &StageError{Stage: s.name, Err: errors.New("empty model output")}
	}

	out, skipped, err := s.decode(in, normalization.Raw(obj))
	if err != nil {
		return out, &StageError{Stage: s.name, Err: err}
	}
	if skipped > 0 {
		s.log.Warn("skipped malformed items in model output", "skipped", skipped, "prompt", p.Name)
		observability.Current().AddDecodeSkips(s.name, skipped)
	}
	s.log.Debug("stage complete", "duration_ms", time.Since(start).Milliseconds())
	return out, nil
}
