package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ShaharSGA/Project/internal/models"
	"github.com/ShaharSGA/Project/pkg/logger"
)

const (
	DefaultJudgeTimeout = 8 * time.Second

	fallbackActionableWords = 5
	fallbackConfidence      = 0.5
)

// Verdict sources.
const (
	SourceRule     = "rule"
	SourceLLM      = "llm"
	SourceFallback = "fallback"
)

type Classification struct {
	IsActionable bool    `json:"is_actionable"`
	Confidence   float64 `json:"confidence"`
	Reason       string  `json:"reason"`
	Source       string  `json:"source"`
}

// ActionabilityClassifier decides whether feedback is specific enough to learn
// from. The judge is optional; without one every multi-word text takes the
// word-count fallback.
type ActionabilityClassifier struct {
	judge   Judge
	timeout time.Duration
	metrics *Metrics
}

func NewActionabilityClassifier(judge Judge, timeout time.Duration, metrics *Metrics) *ActionabilityClassifier {
	if timeout <= 0 {
		timeout = DefaultJudgeTimeout
	}
	return &ActionabilityClassifier{judge: judge, timeout: timeout, metrics: metrics}
}

// Classify never fails: judge errors and timeouts resolve to the heuristic.
func (c *ActionabilityClassifier) Classify(ctx context.Context, text string, category models.Category, rating int) Classification {
	result := c.classify(ctx, text, category, rating)
	c.metrics.RecordVerdict(result.Source, result.IsActionable)
	return result
}

func (c *ActionabilityClassifier) classify(ctx context.Context, text string, category models.Category, rating int) Classification {
	if strings.TrimSpace(text) == "" {
		return Classification{IsActionable: false, Confidence: 0.0, Reason: "empty feedback", Source: SourceRule}
	}

	words := len(strings.Fields(text))
	if words < 2 {
		return Classification{IsActionable: false, Confidence: 0.1, Reason: "too short", Source: SourceRule}
	}

	if c.judge == nil {
		return fallbackClassification(words)
	}

	verdict, err := c.judgeWithTimeout(ctx, text, category, rating)
	if err != nil {
		logger.Warn().Err(err).Int("words", words).Msg("[Actionability] judge unavailable, using word-count fallback")
		return fallbackClassification(words)
	}
	return Classification{
		IsActionable: verdict.IsActionable,
		Confidence:   clamp01(verdict.Confidence),
		Reason:       verdict.Reason,
		Source:       SourceLLM,
	}
}

// judgeWithTimeout stops waiting once the timeout expires. The judge goroutine
// sees a cancelled context and its late result is dropped.
func (c *ActionabilityClassifier) judgeWithTimeout(ctx context.Context, text string, category models.Category, rating int) (Judgment, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	type outcome struct {
		verdict Judgment
		err     error
	}
	done := make(chan outcome, 1)
	start := time.Now()

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("judge panic: %v", r)}
			}
		}()
		v, err := c.judge.Judge(ctx, text, category, rating)
		done <- outcome{verdict: v, err: err}
	}()

	select {
	case out := <-done:
		c.metrics.ObserveJudge(time.Since(start).Seconds())
		return out.verdict, out.err
	case <-ctx.Done():
		c.metrics.ObserveJudge(time.Since(start).Seconds())
		return Judgment{}, fmt.Errorf("judge abandoned: %w", ctx.Err())
	}
}

func fallbackClassification(words int) Classification {
	return Classification{
		IsActionable: words >= fallbackActionableWords,
		Confidence:   fallbackConfidence,
		Reason:       fmt.Sprintf("fallback: %d words", words),
		Source:       SourceFallback,
	}
}
