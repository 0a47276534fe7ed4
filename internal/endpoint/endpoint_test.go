package endpoint

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogCoversEveryCategory(t *testing.T) {
	all := All()
	require.Len(t, all, 15)

	tools := map[string]bool{}
	for _, category := range all {
		desc := category.Descriptor()
		assert.Equal(t, category, desc.Category)
		assert.False(t, tools[desc.Tool], "duplicate tool %s", desc.Tool)
		tools[desc.Tool] = true

		assert.NotEmpty(t, desc.Path, desc.Tool)
		assert.NotEmpty(t, desc.Paging.PageParam, desc.Tool)
		assert.NotEmpty(t, desc.Paging.ItemsPaths, desc.Tool)
		assert.Positive(t, desc.Paging.DefaultSize, desc.Tool)
		assert.LessOrEqual(t, desc.Paging.DefaultSize, desc.Paging.MaxSize, desc.Tool)
		if desc.Paging.Mode == PagingTotalCount {
			assert.NotEmpty(t, desc.Paging.TotalCountPaths, desc.Tool)
		}

		hasRequired := false
		for _, spec := range desc.Fields {
			hasRequired = hasRequired || spec.Required
		}
		assert.True(t, hasRequired, "%s has no mandatory field", desc.Tool)

		for _, filter := range desc.Filters {
			if filter.PathParam != "" {
				assert.Contains(t, desc.Path, "{"+filter.PathParam+"}", desc.Tool)
			}
		}
	}
}

func TestByTool(t *testing.T) {
	category, ok := ByTool("get_apartment_trades")
	require.True(t, ok)
	assert.Equal(t, AptTrade, category)

	_, ok = ByTool("get_commercial_rent")
	assert.False(t, ok)
}

func TestDescriptorPanicsOnUnknownCategory(t *testing.T) {
	assert.Panics(t, func() { Category(200).Descriptor() })
	assert.False(t, Category(0).Valid())
}

func TestTransactionEndpointsUseManwonPrices(t *testing.T) {
	for _, category := range []Category{AptTrade, AptRent, VillaRent, CommercialTrade} {
		desc := category.Descriptor()
		price, ok := desc.Field(FieldPrice)
		require.True(t, ok, desc.Tool)
		assert.Equal(t, UnitManwon, price.Unit, desc.Tool)
		assert.True(t, price.Required, desc.Tool)
		assert.Equal(t, RegionLawdCode, desc.Region.Mode, desc.Tool)
		assert.Equal(t, "DEAL_YMD", desc.Date.MonthParam, desc.Tool)
		assert.True(t, strings.HasPrefix(desc.Path, "/1613000/RTMSDataSvc"), desc.Tool)
	}

	rent := AptRent.Descriptor()
	assert.True(t, rent.Lease)
	deposit, _ := rent.Field(FieldPrice)
	assert.Contains(t, deposit.Keys, "deposit")
}

func TestRegionCodeDescriptor(t *testing.T) {
	desc := RegionCodes.Descriptor()
	assert.Equal(t, "Y", desc.FixedParams["flag"])
	assert.Equal(t, 1000, desc.Paging.MaxSize)
	assert.Equal(t, []string{"StanReginCd", "row"}, desc.Paging.ItemsPaths[0])
	assert.Equal(t, "data_go_kr:get_region_codes", desc.ID())
}

func TestSubscriptionStatKinds(t *testing.T) {
	filter, ok := SubscriptionStat.Descriptor().Filter("stat_kind")
	require.True(t, ok)
	assert.True(t, filter.Required)
	assert.Equal(t, "getAPTCmpetrtAreaStat", filter.Choices["cmpetrt_area"])
	assert.Len(t, filter.Choices, 4)
}
