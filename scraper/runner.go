package scraper

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"time"

	"streeteasy_scraper/cache"
	"streeteasy_scraper/config"
	"streeteasy_scraper/fetch"
	"streeteasy_scraper/models"
)

var ErrForbidden = errors.New("access forbidden (403): check your ScrapingBee credits or API key")

// Progress receives enrichment progress. It may be called zero or many
// times.
type Progress interface {
	Report(completed, total int)
}

type ProgressFunc func(completed, total int)

func (f ProgressFunc) Report(completed, total int) { f(completed, total) }

// Result is everything one search invocation gathered, including partial
// results when it ended early.
type Result struct {
	Listings     []models.Listing
	Status       models.RunStatus
	Err          error
	Usage        fetch.Usage
	SearchURL    string
	PagesFetched int
	Enriched     int
}

type Options struct {
	SiteBaseURL   string
	SearchBaseURL string
	Catalog       *config.Catalog
	PageDelay     time.Duration
	DetailDelay   time.Duration
	Cache         cache.PageCache
}

func OptionsFromConfig(cfg *config.Config, pages cache.PageCache) Options {
	return Options{
		SiteBaseURL:   cfg.Scraper.SiteBaseURL,
		SearchBaseURL: cfg.Scraper.SearchBaseURL,
		Catalog:       cfg.Catalog,
		PageDelay:     cfg.Scraper.PageDelay,
		DetailDelay:   cfg.Scraper.DetailDelay,
		Cache:         pages,
	}
}

// Runner executes searches. It holds no per-search state, so concurrent
// RunSearch calls are independent.
type Runner struct {
	factory     fetch.Factory
	cache       cache.PageCache
	urls        *URLBuilder
	parser      *Parser
	pageDelay   time.Duration
	detailDelay time.Duration
	now         func() time.Time
}

func NewRunner(factory fetch.Factory, opts Options) *Runner {
	pages := opts.Cache
	if pages == nil {
		pages = cache.Nop{}
	}
	return &Runner{
		factory:     factory,
		cache:       pages,
		urls:        NewURLBuilder(opts.SearchBaseURL, opts.Catalog),
		parser:      NewParser(opts.SiteBaseURL),
		pageDelay:   opts.PageDelay,
		detailDelay: opts.DetailDelay,
		now:         time.Now,
	}
}

func (r *Runner) SearchURL(q models.SearchQuery) string {
	return r.urls.Build(q)
}

// RunSearch crawls result pages in order until a page has no cards, the
// page limit is reached, a fetch fails or ctx is done. Whatever was gathered
// is always returned. progress may be nil.
func (r *Runner) RunSearch(ctx context.Context, query models.SearchQuery, credential string, progress Progress) *Result {
	res := &Result{
		Status:    models.RunStatusCompleted,
		SearchURL: r.urls.Build(query),
	}
	src := &pageSource{
		fetcher:     r.factory(credential),
		cache:       r.cache,
		usage:       &res.Usage,
		pagePacer:   NewPacer(r.pageDelay),
		detailPacer: NewPacer(r.detailDelay),
	}

	var all []models.Listing
	queryKey := query.Key()
	maxPages := query.Pages()

	for page := 1; page <= maxPages; page++ {
		if ctx.Err() != nil {
			res.Status = models.RunStatusCancelled
			res.Err = ctx.Err()
			break
		}

		body, err := src.get(ctx, cache.SearchPageKey(queryKey, page), PageURL(res.SearchURL, page), src.pagePacer)
		if err != nil {
			r.fail(ctx, res, page, err)
			break
		}
		res.PagesFetched++

		cards, err := r.parser.ParseCards(body)
		if err != nil {
			res.Status = models.RunStatusError
			res.Err = fmt.Errorf("page %d: %w", page, err)
			break
		}
		if len(cards) == 0 {
			log.Printf("Page %d: no listings, end of results", page)
			break
		}

		log.Printf("Page %d: %d listings", page, len(cards))
		all = append(all, cards...)
	}

	res.Listings = Dedup(all)

	if query.EnrichDetails && len(res.Listings) > 0 && res.Status != models.RunStatusCancelled {
		r.enrich(ctx, res, src, progress)
	}

	return res
}

func (r *Runner) fail(ctx context.Context, res *Result, page int, err error) {
	switch {
	case ctx.Err() != nil:
		res.Status = models.RunStatusCancelled
		res.Err = ctx.Err()
	case fetch.IsForbidden(err):
		res.Status = models.RunStatusForbidden
		res.Err = fmt.Errorf("page %d: %w: %w", page, ErrForbidden, err)
		log.Printf("Page %d: %v", page, ErrForbidden)
	default:
		res.Status = models.RunStatusError
		res.Err = fmt.Errorf("page %d: %w", page, err)
		log.Printf("Page %d: fetch error: %v", page, err)
	}
}

func (r *Runner) enrich(ctx context.Context, res *Result, src *pageSource, progress Progress) {
	enricher := &Enricher{pages: src, now: r.now}
	total := len(res.Listings)
	log.Printf("Fetching details for %d listings", total)

	for i := range res.Listings {
		if ctx.Err() != nil {
			res.Status = models.RunStatusCancelled
			res.Err = ctx.Err()
			return
		}

		l := &res.Listings[i]
		if l.URL != "" {
			details := enricher.Enrich(ctx, l.URL)
			if ctx.Err() != nil {
				res.Status = models.RunStatusCancelled
				res.Err = ctx.Err()
				return
			}
			l.Merge(details)
			r.backfillDays(l)
			if !details.Empty() {
				res.Enriched++
			}
		}

		if progress != nil {
			progress.Report(i+1, total)
		}
	}
}

func (r *Runner) backfillDays(l *models.Listing) {
	if l.ListingDate == nil || l.DaysOnMarket != nil {
		return
	}
	if days := DaysFromDateAt(*l.ListingDate, r.now()); days >= 0 {
		l.DaysOnMarket = models.IntPtr(days)
	}
}

// pageSource serves page bodies from the cache or the fetcher. Only network
// fetches are paced and counted.
type pageSource struct {
	fetcher     fetch.Fetcher
	cache       cache.PageCache
	usage       *fetch.Usage
	pagePacer   *Pacer
	detailPacer *Pacer
}

func (s *pageSource) get(ctx context.Context, key, url string, pacer *Pacer) ([]byte, error) {
	if body, ok := s.cache.Get(ctx, key); ok {
		slog.Debug("cache hit", "key", key)
		return body, nil
	}

	if err := pacer.Wait(ctx); err != nil {
		return nil, err
	}

	resp, err := s.fetcher.Fetch(ctx, url, false)
	pacer.Done()
	s.usage.Record(resp, err)
	if err != nil {
		return nil, err
	}

	s.cache.Set(ctx, key, resp.Body)
	return resp.Body, nil
}
