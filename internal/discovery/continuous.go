package discovery

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/prospeqta/leadgen-cli/internal/model"
)

// PageFunc fetches one page of leads. done=true stops the loop early when
// the strategy knows the result set is exhausted.
type PageFunc func(ctx context.Context, page int) (leads []model.Lead, done bool, err error)

// Continuous drives a scan strategy page after page until the context is
// cancelled, the page budget is spent, or the strategy reports exhaustion.
// Pacing between pages goes through a rate limiter so cancellation is
// observed while waiting, not only between iterations.
type Continuous struct {
	limiter  *rate.Limiter
	maxPages int
}

// NewContinuous creates a continuous-scan driver. pagesPerSec throttles
// page fetches; maxPages bounds a single run (0 means unbounded).
func NewContinuous(pagesPerSec float64, maxPages int) *Continuous {
	if pagesPerSec <= 0 {
		pagesPerSec = 0.5
	}
	return &Continuous{
		limiter:  rate.NewLimiter(rate.Limit(pagesPerSec), 1),
		maxPages: maxPages,
	}
}

// Run executes the loop, passing each page of leads to emit. A hard error
// from the strategy halts the run and is returned; context cancellation
// returns the context's error.
func (c *Continuous) Run(ctx context.Context, fetch PageFunc, emit func([]model.Lead)) error {
	for page := 1; c.maxPages == 0 || page <= c.maxPages; page++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		leads, done, err := fetch(ctx, page)
		if err != nil {
			return err
		}
		if len(leads) > 0 {
			emit(leads)
		}
		if done {
			zap.L().Debug("continuous scan exhausted", zap.Int("pages", page))
			return nil
		}
	}
	return nil
}
