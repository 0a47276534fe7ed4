// Package service runs one data query end to end: validate, resolve,
// fetch, normalize and summarize.
package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"realestate/internal/apperr"
	"realestate/internal/dispatch"
	"realestate/internal/endpoint"
	"realestate/internal/model"
	"realestate/internal/normalize"
	"realestate/internal/providers"
)

const (
	DefaultMaxConcurrentCalls = 4
	DefaultCallTimeout        = 60 * time.Second
)

type Config struct {
	// MaxConcurrentCalls bounds queries in flight against the shared keys.
	MaxConcurrentCalls int64
	// CallTimeout is the outer deadline of one query, retries included.
	CallTimeout time.Duration
}

// RegionSearcher is the part of region.Resolver used for candidate search.
type RegionSearcher interface {
	Search(ctx context.Context, query string, limit int) ([]model.RegionCode, error)
}

type Engine struct {
	dispatcher *dispatch.Dispatcher
	regions    RegionSearcher
	fetcher    providers.Fetcher
	normalizer *normalize.Normalizer
	sem        *semaphore.Weighted
	config     Config
}

func New(dispatcher *dispatch.Dispatcher, regions RegionSearcher, fetcher providers.Fetcher, normalizer *normalize.Normalizer, cfg Config) *Engine {
	if cfg.MaxConcurrentCalls <= 0 {
		cfg.MaxConcurrentCalls = DefaultMaxConcurrentCalls
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultCallTimeout
	}
	if normalizer == nil {
		normalizer = normalize.New()
	}
	return &Engine{
		dispatcher: dispatcher,
		regions:    regions,
		fetcher:    fetcher,
		normalizer: normalizer,
		sem:        semaphore.NewWeighted(cfg.MaxConcurrentCalls),
		config:     cfg,
	}
}

// Result is the canonical answer to one data query. Exactly one of the
// record slices is populated, matching Kind. Filtered counts records
// removed by local filters such as min_area.
type Result struct {
	Tool        string                     `json:"tool"`
	Kind        endpoint.RecordKind        `json:"kind"`
	Region      *model.RegionCode          `json:"region,omitempty"`
	Trades      []model.TradeRecord        `json:"trades,omitempty"`
	Notices     []model.SubscriptionNotice `json:"notices,omitempty"`
	Stats       []model.SubscriptionStat   `json:"stats,omitempty"`
	Auctions    []model.AuctionItem        `json:"auctions,omitempty"`
	Regions     []model.RegionAddressInfo  `json:"regions,omitempty"`
	Codes       []model.CodeInfo           `json:"codes,omitempty"`
	TotalCount  int                        `json:"total_count"`
	Returned    int                        `json:"returned"`
	Pages       int                        `json:"pages"`
	Dropped     int                        `json:"dropped"`
	DropReasons map[string]int             `json:"drop_reasons,omitempty"`
	Filtered    int                        `json:"filtered,omitempty"`
	Summary     *TradeSummary              `json:"summary,omitempty"`
}

// Query validates params for category and returns its canonical records.
// The whole call, including region resolution and retries, runs under the
// configured outer deadline.
func (e *Engine) Query(ctx context.Context, category endpoint.Category, params dispatch.Params) (Result, error) {
	desc := dispatch.Route(category)
	logger := zerolog.Ctx(ctx).With().Str("tool", desc.Tool).Logger()
	started := time.Now()

	ctx, cancel := context.WithTimeout(ctx, e.config.CallTimeout)
	defer cancel()

	if err := e.sem.Acquire(ctx, 1); err != nil {
		return Result{}, e.deadlineError(ctx, desc, err)
	}
	defer e.sem.Release(1)

	req, err := e.dispatcher.Validate(ctx, category, params)
	if err != nil {
		return Result{}, e.deadlineError(ctx, desc, err)
	}

	pages, err := e.fetcher.FetchAll(ctx, desc, req)
	if err != nil {
		logger.Warn().Err(err).Dur("elapsed", time.Since(started)).Msg("query failed")
		return Result{}, e.deadlineError(ctx, desc, err)
	}

	batch, err := e.normalizer.Normalize(desc, pages)
	if err != nil {
		return Result{}, err
	}

	result := Result{
		Tool:        desc.Tool,
		Kind:        batch.Kind,
		Region:      req.Region,
		TotalCount:  batch.TotalCount,
		Pages:       len(pages),
		Dropped:     batch.Dropped,
		DropReasons: batch.DropReasons,
	}
	e.finish(desc, req, params, batch, &result)

	logger.Info().
		Int("pages", result.Pages).
		Int("returned", result.Returned).
		Int("dropped", result.Dropped).
		Int("total_count", result.TotalCount).
		Dur("elapsed", time.Since(started)).
		Msg("query completed")
	return result, nil
}

// SearchRegion lists region candidates for a name without picking one.
func (e *Engine) SearchRegion(ctx context.Context, query string, limit int) ([]model.RegionCode, error) {
	ctx, cancel := context.WithTimeout(ctx, e.config.CallTimeout)
	defer cancel()

	if err := e.sem.Acquire(ctx, 1); err != nil {
		return nil, e.deadlineError(ctx, endpoint.RegionCodes.Descriptor(), err)
	}
	defer e.sem.Release(1)

	regions, err := e.regions.Search(ctx, query, limit)
	if err != nil {
		return nil, e.deadlineError(ctx, endpoint.RegionCodes.Descriptor(), err)
	}
	return regions, nil
}

func (e *Engine) finish(desc endpoint.Descriptor, req model.QueryRequest, params dispatch.Params, batch normalize.Batch, result *Result) {
	switch batch.Kind {
	case endpoint.RecordTrade:
		trades := batch.Trades
		for i := range trades {
			if trades[i].RegionCode == "" && req.Region != nil {
				trades[i].RegionCode = req.Region.Code
			}
		}
		trades, result.Filtered = filterArea(trades, req.MinAreaM2, req.MaxAreaM2)
		result.Trades = truncate(trades, req.Limit)
		result.Returned = len(result.Trades)
		result.Summary = Summarize(result.Trades, desc.Lease)

	case endpoint.RecordNotice:
		result.Notices = truncate(batch.Notices, req.Limit)
		result.Returned = len(result.Notices)

	case endpoint.RecordStat:
		kind := statKind(desc, params)
		for i := range batch.Stats {
			batch.Stats[i].StatKind = kind
		}
		result.Stats = truncate(batch.Stats, req.Limit)
		result.Returned = len(result.Stats)

	case endpoint.RecordAuction:
		result.Auctions = truncate(batch.Auctions, req.Limit)
		result.Returned = len(result.Auctions)

	case endpoint.RecordRegion:
		result.Regions = truncate(batch.Regions, req.Limit)
		result.Returned = len(result.Regions)

	case endpoint.RecordCode:
		result.Codes = truncate(batch.Codes, req.Limit)
		result.Returned = len(result.Codes)
	}
}

func statKind(desc endpoint.Descriptor, params dispatch.Params) string {
	if kind := strings.ToLower(strings.TrimSpace(params.Filters["stat_kind"])); kind != "" {
		return kind
	}
	if filter, ok := desc.Filter("stat_kind"); ok {
		return filter.Default
	}
	return ""
}

func filterArea(trades []model.TradeRecord, minArea, maxArea *float64) ([]model.TradeRecord, int) {
	if minArea == nil && maxArea == nil {
		return trades, 0
	}
	kept := trades[:0]
	for _, trade := range trades {
		if minArea != nil && trade.AreaM2 < *minArea {
			continue
		}
		if maxArea != nil && trade.AreaM2 > *maxArea {
			continue
		}
		kept = append(kept, trade)
	}
	return kept, len(trades) - len(kept)
}

func truncate[T any](records []T, limit int) []T {
	if limit > 0 && len(records) > limit {
		return records[:limit]
	}
	return records
}

// deadlineError reports an expired outer deadline as OperationTimedOut,
// whatever the interrupted step returned.
func (e *Engine) deadlineError(ctx context.Context, desc endpoint.Descriptor, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(err, apperr.ErrTimedOut) {
		return apperr.Wrap(apperr.KindTimedOut, err, "%s did not finish within %s", desc.Tool, e.config.CallTimeout)
	}
	if errors.Is(ctx.Err(), context.Canceled) && apperr.KindOf(err) == "" {
		return apperr.Wrap(apperr.KindCanceled, err, "%s was canceled", desc.Tool)
	}
	return err
}
