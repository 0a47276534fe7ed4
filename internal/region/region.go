// Package region resolves place names and partial codes to legal-dong
// region codes.
//
// The full code table is fetched from the region-code endpoint the first
// time a name needs resolving, indexed once, and kept for the rest of the
// process. Numeric codes never trigger a load.
package region

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"realestate/internal/apperr"
	"realestate/internal/endpoint"
	"realestate/internal/model"
	"realestate/internal/normalize"
	"realestate/internal/providers"
	"realestate/internal/store"
)

const (
	loadPageSize  = 1000
	loadRowBudget = 100000

	DefaultSearchLimit = 20
)

type Resolver struct {
	fetcher providers.Fetcher
	index   store.RegionIndex

	mu     sync.Mutex
	loaded atomic.Bool
}

func New(fetcher providers.Fetcher, index store.RegionIndex) *Resolver {
	return &Resolver{fetcher: fetcher, index: index}
}

// Loaded reports whether the code table has been fetched.
func (r *Resolver) Loaded() bool {
	return r.loaded.Load()
}

// Resolve maps a display name, a 5-digit LAWD code or a 10-digit legal-dong
// code to a RegionCode. Numeric codes pass through unchanged, padded to ten
// digits. Names are matched exactly first, then component by component,
// then by prefix; the first stage with candidates decides the outcome.
func (r *Resolver) Resolve(ctx context.Context, input string) (model.RegionCode, error) {
	query := strings.TrimSpace(input)
	if query == "" {
		return model.RegionCode{}, apperr.Validation("region", "region is required")
	}

	if isDigits(query) {
		code, err := padCode(query)
		if err != nil {
			return model.RegionCode{}, err
		}
		return model.RegionCode{Code: code, Level: model.LevelOf(code)}, nil
	}

	candidates, err := r.candidates(ctx, query)
	if err != nil {
		return model.RegionCode{}, err
	}

	switch len(candidates) {
	case 0:
		return model.RegionCode{}, apperr.RegionNotFound(query)
	case 1:
		return candidates[0], nil
	default:
		names := make([]string, 0, len(candidates))
		for _, candidate := range candidates {
			names = append(names, fmt.Sprintf("%s (%s)", candidate.FullName, candidate.Code))
		}
		return model.RegionCode{}, apperr.AmbiguousRegion(query, names)
	}
}

// Lookup returns the indexed entry for a code, loading the table if needed.
func (r *Resolver) Lookup(ctx context.Context, code string) (model.RegionCode, error) {
	padded, err := padCode(strings.TrimSpace(code))
	if err != nil {
		return model.RegionCode{}, err
	}
	if err := r.ensureLoaded(ctx); err != nil {
		return model.RegionCode{}, err
	}
	region, err := r.index.RegionByCode(ctx, padded)
	if errors.Is(err, store.ErrNotFound) {
		return model.RegionCode{}, apperr.RegionNotFound(code)
	}
	if err != nil {
		return model.RegionCode{}, fmt.Errorf("region: lookup %s: %w", padded, err)
	}
	return region, nil
}

// Parent returns the region one level up. A top-level region has no parent
// and yields RegionNotFound.
func (r *Resolver) Parent(ctx context.Context, rc model.RegionCode) (model.RegionCode, error) {
	parent := rc.ParentCode
	if parent == "" {
		if rc.FullName == "" {
			full, err := r.Lookup(ctx, rc.Code)
			if err != nil {
				return model.RegionCode{}, err
			}
			parent = full.ParentCode
		}
		if parent == "" {
			return model.RegionCode{}, apperr.RegionNotFound(rc.Code + " parent")
		}
	}
	return r.Lookup(ctx, parent)
}

// Search lists up to limit candidates for query without deciding between
// them.
func (r *Resolver) Search(ctx context.Context, query string, limit int) ([]model.RegionCode, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperr.Validation("query", "query is required")
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	if isDigits(query) {
		region, err := r.Lookup(ctx, query)
		if errors.Is(err, apperr.ErrRegionNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return []model.RegionCode{region}, nil
	}
	candidates, err := r.candidates(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}

func (r *Resolver) candidates(ctx context.Context, query string) ([]model.RegionCode, error) {
	if err := r.ensureLoaded(ctx); err != nil {
		return nil, err
	}

	normalized := store.NormalizeName(query)
	if normalized == "" {
		return nil, apperr.Validation("region", "region %q has no searchable characters", query)
	}

	found, err := r.index.RegionsByName(ctx, normalized)
	if err != nil {
		return nil, fmt.Errorf("region: exact match: %w", err)
	}
	if len(found) > 0 {
		return found, nil
	}

	if tokens := store.NameComponents(query); len(tokens) > 1 {
		found, err = r.index.RegionsByComponents(ctx, tokens)
		if err != nil {
			return nil, fmt.Errorf("region: component match: %w", err)
		}
		if len(found) > 0 {
			return found, nil
		}
	}

	found, err = r.index.RegionsByPrefix(ctx, normalized, 0)
	if err != nil {
		return nil, fmt.Errorf("region: prefix match: %w", err)
	}
	return dropDescendants(found), nil
}

// dropDescendants removes candidates whose parent is also a candidate. A
// prefix of "서울특별시" matches every district below it; only the top
// match is a real candidate.
func dropDescendants(regions []model.RegionCode) []model.RegionCode {
	codes := make(map[string]struct{}, len(regions))
	for _, region := range regions {
		codes[region.Code] = struct{}{}
	}
	out := regions[:0:0]
	for _, region := range regions {
		if _, ok := codes[region.ParentCode]; ok {
			continue
		}
		out = append(out, region)
	}
	return out
}

// ensureLoaded fetches and indexes the code table at most once. Concurrent
// first callers wait for the same load; a failed load leaves the resolver
// unloaded so a later call can try again.
func (r *Resolver) ensureLoaded(ctx context.Context) error {
	if r.loaded.Load() {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.loaded.Load() {
		return nil
	}

	logger := zerolog.Ctx(ctx)
	started := time.Now()

	desc := endpoint.RegionCodes.Descriptor()
	req := model.QueryRequest{
		Page:     1,
		PageSize: loadPageSize,
		Limit:    loadRowBudget,
	}
	pages, err := r.fetcher.FetchAll(ctx, desc, req)
	if err != nil {
		return fmt.Errorf("region: load code table: %w", err)
	}

	batch, err := normalize.Normalize(desc, pages)
	if err != nil {
		return fmt.Errorf("region: normalize code table: %w", err)
	}
	if len(batch.Regions) == 0 {
		return apperr.New(apperr.KindUpstreamUnavailable, "region code table is empty")
	}

	if err := r.index.ReplaceRegions(ctx, batch.Regions); err != nil {
		return fmt.Errorf("region: index code table: %w", err)
	}
	r.loaded.Store(true)

	logger.Info().
		Int("regions", len(batch.Regions)).
		Int("pages", len(pages)).
		Int("dropped", batch.Dropped).
		Dur("elapsed", time.Since(started)).
		Msg("region code table loaded")
	return nil
}

func padCode(code string) (string, error) {
	if !isDigits(code) {
		return "", apperr.Validation("region", "region code %q must be numeric", code)
	}
	switch len(code) {
	case 5:
		return code + "00000", nil
	case 10:
		return code, nil
	default:
		return "", apperr.Validation("region", "region code %q must have 5 or 10 digits", code)
	}
}

func isDigits(value string) bool {
	if value == "" {
		return false
	}
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
