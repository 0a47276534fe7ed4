package region

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"realestate/internal/apperr"
	"realestate/internal/endpoint"
	"realestate/internal/model"
	"realestate/internal/providers"
	"realestate/internal/rawtree"
	"realestate/internal/store/sqlite"
)

type regionRow struct {
	code, fullName, name, parent string
}

var fixtureRows = []regionRow{
	{"1100000000", "서울특별시", "", "0000000000"},
	{"1114000000", "서울특별시 중구", "중구", "1100000000"},
	{"1168000000", "서울특별시 강남구", "강남구", "1100000000"},
	{"1168010100", "서울특별시 강남구 역삼동", "역삼동", "1168000000"},
	{"1168010800", "서울특별시 강남구 대치동", "대치동", "1168000000"},
	{"2600000000", "부산광역시", "", "0000000000"},
	{"2611000000", "부산광역시 중구", "중구", "2600000000"},
	{"4100000000", "경기도", "", "0000000000"},
	{"4111000000", "경기도 수원시", "수원시", "4100000000"},
	{"4111100000", "경기도 수원시 장안구", "장안구", "4111000000"},
}

func regionPayload(rows []regionRow) string {
	items := make([]string, 0, len(rows))
	for _, row := range rows {
		items = append(items, fmt.Sprintf(
			`{"region_cd":%q,"locatadd_nm":%q,"locallow_nm":%q,"locathigh_cd":%q}`,
			row.code, row.fullName, row.name, row.parent))
	}
	return fmt.Sprintf(`{"StanReginCd":[{"head":[{"totalCount":%d},{"numOfRows":"1000","pageNo":"1","type":"JSON"},{"RESULT":{"resultCode":"INFO-0","resultMsg":"NORMAL SERVICE"}}]},{"row":[%s]}]}`,
		len(rows), strings.Join(items, ","))
}

type fakeFetcher struct {
	calls   atomic.Int32
	failFor int32
	body    string
}

func (f *fakeFetcher) FetchAll(ctx context.Context, desc endpoint.Descriptor, req model.QueryRequest) ([]providers.Page, error) {
	call := f.calls.Add(1)
	if desc.Category != endpoint.RegionCodes {
		return nil, fmt.Errorf("unexpected category %s", desc.Category)
	}
	if call <= f.failFor {
		return nil, apperr.New(apperr.KindUpstreamUnavailable, "upstream down")
	}
	root, err := rawtree.DecodeJSON([]byte(f.body))
	if err != nil {
		return nil, err
	}
	return []providers.Page{{
		Number:     1,
		TotalCount: len(fixtureRows),
		Root:       root,
		Rows:       providers.ExtractRows(root, desc.Paging.ItemsPaths),
	}}, nil
}

func newResolver(t *testing.T, failFor int32) (*Resolver, *fakeFetcher) {
	t.Helper()
	index, err := sqlite.New(sqlite.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })

	fetcher := &fakeFetcher{failFor: failFor, body: regionPayload(fixtureRows)}
	return New(fetcher, index), fetcher
}

func TestResolveExactName(t *testing.T) {
	resolver, fetcher := newResolver(t, 0)
	ctx := context.Background()

	region, err := resolver.Resolve(ctx, "강남구")
	require.NoError(t, err)
	assert.Equal(t, "1168000000", region.Code)
	assert.Equal(t, "11680", region.LawdCode())
	assert.Equal(t, "서울특별시 강남구", region.FullName)
	assert.Equal(t, "1100000000", region.ParentCode)
	assert.Equal(t, model.LevelSigungu, region.Level)

	again, err := resolver.Resolve(ctx, " 서울특별시-강남구 ")
	require.NoError(t, err)
	assert.Equal(t, region, again)
	assert.EqualValues(t, 1, fetcher.calls.Load())
}

func TestResolveIsIdempotentUnderConcurrency(t *testing.T) {
	resolver, fetcher := newResolver(t, 0)
	ctx := context.Background()

	const workers = 16
	results := make([]model.RegionCode, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = resolver.Resolve(ctx, "역삼동")
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, results[0], results[i])
	}
	assert.Equal(t, "1168010100", results[0].Code)
	assert.EqualValues(t, 1, fetcher.calls.Load())
}

func TestResolveAmbiguousListsEveryCandidate(t *testing.T) {
	resolver, _ := newResolver(t, 0)

	_, err := resolver.Resolve(context.Background(), "중구")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrAmbiguousRegion))

	var appErr *apperr.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, []string{
		"서울특별시 중구 (1114000000)",
		"부산광역시 중구 (2611000000)",
	}, appErr.Candidates)
}

func TestResolveComponentsAndPrefix(t *testing.T) {
	resolver, _ := newResolver(t, 0)
	ctx := context.Background()

	region, err := resolver.Resolve(ctx, "부산 중구")
	require.NoError(t, err)
	assert.Equal(t, "2611000000", region.Code)

	region, err = resolver.Resolve(ctx, "서울 강남 대치")
	require.NoError(t, err)
	assert.Equal(t, "1168010800", region.Code)

	region, err = resolver.Resolve(ctx, "장안")
	require.NoError(t, err)
	assert.Equal(t, "4111100000", region.Code)

	region, err = resolver.Resolve(ctx, "서울")
	require.NoError(t, err)
	assert.Equal(t, "1100000000", region.Code)
}

func TestResolveNotFound(t *testing.T) {
	resolver, _ := newResolver(t, 0)

	_, err := resolver.Resolve(context.Background(), "없는동")
	assert.ErrorIs(t, err, apperr.ErrRegionNotFound)
}

func TestResolveNumericPassthrough(t *testing.T) {
	resolver, fetcher := newResolver(t, 0)
	ctx := context.Background()

	region, err := resolver.Resolve(ctx, "11680")
	require.NoError(t, err)
	assert.Equal(t, model.RegionCode{Code: "1168000000", Level: model.LevelSigungu}, region)

	region, err = resolver.Resolve(ctx, "1168010100")
	require.NoError(t, err)
	assert.Equal(t, "1168010100", region.Code)

	_, err = resolver.Resolve(ctx, "116801")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = resolver.Resolve(ctx, "")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	assert.EqualValues(t, 0, fetcher.calls.Load())
	assert.False(t, resolver.Loaded())
}

func TestFailedLoadIsRetried(t *testing.T) {
	resolver, fetcher := newResolver(t, 1)
	ctx := context.Background()

	_, err := resolver.Resolve(ctx, "강남구")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrUpstreamUnavailable)
	assert.False(t, resolver.Loaded())

	region, err := resolver.Resolve(ctx, "강남구")
	require.NoError(t, err)
	assert.Equal(t, "1168000000", region.Code)
	assert.EqualValues(t, 2, fetcher.calls.Load())
	assert.True(t, resolver.Loaded())
}

func TestLookupAndParent(t *testing.T) {
	resolver, _ := newResolver(t, 0)
	ctx := context.Background()

	region, err := resolver.Lookup(ctx, "11680")
	require.NoError(t, err)
	assert.Equal(t, "서울특별시 강남구", region.FullName)

	parent, err := resolver.Parent(ctx, region)
	require.NoError(t, err)
	assert.Equal(t, "1100000000", parent.Code)
	assert.Equal(t, model.LevelSido, parent.Level)

	_, err = resolver.Parent(ctx, parent)
	assert.ErrorIs(t, err, apperr.ErrRegionNotFound)

	parent, err = resolver.Parent(ctx, model.RegionCode{Code: "1168010100"})
	require.NoError(t, err)
	assert.Equal(t, "1168000000", parent.Code)
}

func TestSearch(t *testing.T) {
	resolver, _ := newResolver(t, 0)
	ctx := context.Background()

	found, err := resolver.Search(ctx, "중구", 0)
	require.NoError(t, err)
	assert.Len(t, found, 2)

	found, err = resolver.Search(ctx, "중구", 1)
	require.NoError(t, err)
	assert.Len(t, found, 1)

	found, err = resolver.Search(ctx, "1168000000", 0)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "강남구", found[0].Name)

	found, err = resolver.Search(ctx, "9999999999", 0)
	require.NoError(t, err)
	assert.Empty(t, found)

	_, err = resolver.Search(ctx, "  ", 0)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}
