package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"realestate/internal/model"
	"realestate/internal/store"
)

func fixtureRegions() []model.RegionAddressInfo {
	return []model.RegionAddressInfo{
		{Code: "1100000000", Name: "서울특별시", FullName: "서울특별시", Level: model.LevelSido},
		{Code: "1114000000", Name: "중구", FullName: "서울특별시 중구", ParentCode: "1100000000", Level: model.LevelSigungu},
		{Code: "1168000000", Name: "강남구", FullName: "서울특별시 강남구", ParentCode: "1100000000", Level: model.LevelSigungu},
		{Code: "1168010100", Name: "역삼동", FullName: "서울특별시 강남구 역삼동", ParentCode: "1168000000", Level: model.LevelEupmyeondong},
		{Code: "2600000000", Name: "부산광역시", FullName: "부산광역시", Level: model.LevelSido},
		{Code: "2611000000", Name: "중구", FullName: "부산광역시 중구", ParentCode: "2600000000", Level: model.LevelSigungu},
	}
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.ReplaceRegions(context.Background(), fixtureRegions()))
	return s
}

func codes(regions []model.RegionCode) []string {
	out := make([]string, 0, len(regions))
	for _, region := range regions {
		out = append(out, region.Code)
	}
	return out
}

func TestNewRequiresPath(t *testing.T) {
	_, err := New("")
	assert.Error(t, err)
}

func TestRegionByCode(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	region, err := s.RegionByCode(ctx, "1168000000")
	require.NoError(t, err)
	assert.Equal(t, "강남구", region.Name)
	assert.Equal(t, "서울특별시 강남구", region.FullName)
	assert.Equal(t, "1100000000", region.ParentCode)
	assert.Equal(t, model.LevelSigungu, region.Level)

	_, err = s.RegionByCode(ctx, "9999999999")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRegionsByName(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	regions, err := s.RegionsByName(ctx, store.NormalizeName("중구"))
	require.NoError(t, err)
	assert.Equal(t, []string{"1114000000", "2611000000"}, codes(regions))

	regions, err = s.RegionsByName(ctx, store.NormalizeName("서울특별시 강남구"))
	require.NoError(t, err)
	assert.Equal(t, []string{"1168000000"}, codes(regions))
}

func TestRegionsByPrefix(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	regions, err := s.RegionsByPrefix(ctx, store.NormalizeName("강남"), 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"1168000000"}, codes(regions))

	regions, err = s.RegionsByPrefix(ctx, store.NormalizeName("서울특별시"), 2)
	require.NoError(t, err)
	assert.Len(t, regions, 2)

	regions, err = s.RegionsByPrefix(ctx, "", 0)
	require.NoError(t, err)
	assert.Empty(t, regions)
}

func TestRegionsByComponents(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	regions, err := s.RegionsByComponents(ctx, []string{"서울", "강남"})
	require.NoError(t, err)
	assert.Equal(t, []string{"1168000000"}, codes(regions))

	regions, err = s.RegionsByComponents(ctx, []string{"부산", "중구"})
	require.NoError(t, err)
	assert.Equal(t, []string{"2611000000"}, codes(regions))

	regions, err = s.RegionsByComponents(ctx, []string{"서울", "강남", "역삼"})
	require.NoError(t, err)
	assert.Equal(t, []string{"1168010100"}, codes(regions))

	regions, err = s.RegionsByComponents(ctx, []string{"대구", "중구"})
	require.NoError(t, err)
	assert.Empty(t, regions)
}

func TestReplaceRegionsSwapsTable(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	count, err := s.CountRegions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 6, count)

	err = s.ReplaceRegions(ctx, []model.RegionAddressInfo{
		{Code: "4100000000", Name: "경기도", FullName: "경기도", Level: model.LevelSido},
	})
	require.NoError(t, err)

	count, err = s.CountRegions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	_, err = s.RegionByCode(ctx, "1168000000")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "서울특별시강남구", store.NormalizeName(" 서울특별시  강남구 "))
	assert.Equal(t, "abc", store.NormalizeName("A-b C"))
	assert.Equal(t, []string{"서울특별시", "강남구"}, store.NameComponents("서울특별시   강남구"))
}
