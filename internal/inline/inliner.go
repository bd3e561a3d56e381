// Package inline rewrites external <image> references in a slide into
// self-contained data URIs so rendering never touches the network.
package inline

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/pwnholic/slidecap/internal"
	"github.com/pwnholic/slidecap/internal/clients"
	"github.com/pwnholic/slidecap/internal/svgdoc"
)

// Fetcher downloads one resource. *clients.Client satisfies it.
type Fetcher interface {
	FetchResource(ctx context.Context, rawURL string) (*clients.Resource, error)
}

// Report counts what a pass did with each <image> element.
type Report struct {
	Total   int
	Inlined int
	Skipped int
	Failed  int
}

type Options struct {
	// Concurrency bounds simultaneous fetches. Values below 1 mean 1.
	Concurrency int
	// RatePerSecond paces fetches; 0 disables pacing.
	RatePerSecond float64
	// CacheTTL keeps fetched resources across slides. Negative disables the cache.
	CacheTTL time.Duration
	Logger   *internal.Logger
}

type Inliner struct {
	fetch   Fetcher
	limit   int
	limiter *rate.Limiter
	cache   *cache.Cache
	log     *internal.Logger
}

func New(fetch Fetcher, opts Options) *Inliner {
	limit := opts.Concurrency
	if limit < 1 {
		limit = 1
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RatePerSecond), limit)
	}

	var c *cache.Cache
	if opts.CacheTTL >= 0 {
		ttl := opts.CacheTTL
		if ttl == 0 {
			ttl = cache.NoExpiration
		}
		c = cache.New(ttl, 2*time.Minute)
	}

	log := opts.Logger
	if log == nil {
		log = internal.GetDefaultLogger()
	}

	return &Inliner{
		fetch:   fetch,
		limit:   limit,
		limiter: limiter,
		cache:   c,
		log:     log.With("inline"),
	}
}

// job is one external reference waiting to be fetched.
type job struct {
	node *html.Node
	url  string
}

// outcome is the result of one job: either a data URI or the error that
// left the reference untouched.
type outcome struct {
	dataURI string
	err     error
}

// Inline fetches every external <image> reference in doc and rewrites it to a
// data URI. A failed fetch leaves that node exactly as it was; it never stops
// the pass. All fetches have finished when Inline returns.
func (in *Inliner) Inline(ctx context.Context, doc *svgdoc.Document) Report {
	var (
		report Report
		jobs   []job
	)

	for _, node := range doc.Images() {
		report.Total++

		ref, _ := svgdoc.Href(node)
		if ref == "" || svgdoc.IsDataURI(ref) {
			report.Skipped++
			continue
		}

		abs, err := clients.CompleteURL(ref, doc.BaseURL)
		if err != nil {
			in.log.Warn("unresolvable reference %q: %v", ref, err)
			report.Failed++
			continue
		}
		jobs = append(jobs, job{node: node, url: abs})
	}

	results := make([]outcome, len(jobs))

	g := new(errgroup.Group)
	g.SetLimit(in.limit)
	for i, j := range jobs {
		i, j := i, j
		g.Go(func() error {
			results[i] = in.resolve(ctx, j.url)
			return nil
		})
	}
	_ = g.Wait()

	for i, j := range jobs {
		res := results[i]
		if res.err != nil {
			in.log.Warn("keeping external reference %s: %v", j.url, res.err)
			report.Failed++
			continue
		}
		svgdoc.SetAttr(j.node, "href", res.dataURI)
		svgdoc.RemoveAttr(j.node, "xlink:href")
		report.Inlined++
	}

	in.log.Debug("%d images: %d inlined, %d already inline, %d failed",
		report.Total, report.Inlined, report.Skipped, report.Failed)
	return report
}

func (in *Inliner) resolve(ctx context.Context, rawURL string) outcome {
	if in.cache != nil {
		if v, ok := in.cache.Get(rawURL); ok {
			return outcome{dataURI: v.(string)}
		}
	}

	if err := in.limiter.Wait(ctx); err != nil {
		return outcome{err: fmt.Errorf("rate limiter: %w", err)}
	}

	res, err := in.fetch.FetchResource(ctx, rawURL)
	if err != nil {
		return outcome{err: err}
	}

	uri := DataURI(res.ContentType, res.Data)
	if in.cache != nil {
		in.cache.SetDefault(rawURL, uri)
	}
	in.log.Debug("inlined %s (%s, %d bytes)", rawURL, res.ContentType, len(res.Data))
	return outcome{dataURI: uri}
}

// DataURI encodes data as data:<contentType>;base64,<payload>.
func DataURI(contentType string, data []byte) string {
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
