package hosting

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/tbourn/go-catalog-bot/internal/media"
)

// Result is the outcome of hosting one item. Exactly one of URL and Err is
// set.
type Result struct {
	Item media.Item
	URL  string
	Err  error
}

// Pipeline fetches and uploads batches with bounded parallelism.
type Pipeline struct {
	Fetcher     Fetcher
	Uploader    Uploader
	Parallelism int
}

// Store hosts every item and returns one Result per item in input order.
// One item failing never affects the others.
func (p *Pipeline) Store(ctx context.Context, identity string, items []media.Item) []Result {
	out := make([]Result, len(items))
	limit := p.Parallelism
	if limit <= 0 {
		limit = 4
	}
	var g errgroup.Group
	g.SetLimit(limit)
	for i, it := range items {
		i, it := i, it
		g.Go(func() error {
			out[i] = p.one(ctx, identity, it)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (p *Pipeline) one(ctx context.Context, identity string, it media.Item) Result {
	raw, err := p.Fetcher.Fetch(ctx, it)
	if err != nil {
		return Result{Item: it, Err: err}
	}
	if raw.ContentType != "" && it.ContentType == "" {
		it.ContentType = raw.ContentType
	}
	url, err := p.Uploader.Upload(ctx, identity, raw)
	if err != nil {
		return Result{Item: it, Err: err}
	}
	return Result{Item: it, URL: url}
}
