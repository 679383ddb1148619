package intent

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Chain tries each classifier in order and returns the first known action.
// When every classifier fails, the last error is returned; when at least one
// answered but none knew the action, the result is ActionUnknown.
type Chain []Classifier

// Classify implements Classifier.
func (ch Chain) Classify(ctx context.Context, text string) (Intent, error) {
	var (
		lastErr  error
		answered bool
	)
	for _, c := range ch {
		in, err := c.Classify(ctx, text)
		if err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Msg("classifier failed, trying next")
			lastErr = err
			continue
		}
		answered = true
		if in.Action != ActionUnknown {
			return in, nil
		}
	}
	if !answered && lastErr != nil {
		return Intent{}, lastErr
	}
	return Intent{}, nil
}

// WithTimeout bounds every call to c by d. A non-positive d returns c as is.
func WithTimeout(c Classifier, d time.Duration) Classifier {
	if d <= 0 {
		return c
	}
	return ClassifierFunc(func(ctx context.Context, text string) (Intent, error) {
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		return c.Classify(ctx, text)
	})
}
