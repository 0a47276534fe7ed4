// Package endpoint describes every upstream endpoint the engine can query.
//
// Each Category is a closed enum member that carries its Descriptor. A
// descriptor holds everything the dispatcher, client and normalizer need to
// know about one endpoint: where it lives, how it authenticates and pages,
// which parameters it takes and how its rows map onto canonical fields.
package endpoint

import (
	"realestate/internal/model"
	"realestate/internal/rawtree"
)

type Portal string

const (
	PortalDataGoKr Portal = "data_go_kr"
	PortalODCloud  Portal = "odcloud"
	PortalOnbid    Portal = "onbid"
)

// Credential names the key an endpoint is authenticated with.
type Credential string

const (
	CredentialDataGoKr Credential = "data_go_kr"
	CredentialODCloud  Credential = "odcloud"
	CredentialOnbid    Credential = "onbid"
)

type AuthMode string

const (
	// AuthServiceKey sends the key as the serviceKey query parameter.
	AuthServiceKey AuthMode = "service_key"
	// AuthHeaderOrServiceKey lets the credential configuration choose between
	// the Authorization header and the serviceKey parameter.
	AuthHeaderOrServiceKey AuthMode = "header_or_service_key"
)

type RegionMode string

const (
	RegionNone     RegionMode = "none"
	RegionLawdCode RegionMode = "lawd_code"
	RegionNames    RegionMode = "names"
)

type DateMode string

const (
	DateNone          DateMode = "none"
	DateMonthly       DateMode = "monthly"
	DateOptionalMonth DateMode = "optional_month"
	DateDailyRange    DateMode = "daily_range"
)

type PagingMode string

const (
	// PagingTotalCount stops once pageNo*pageSize reaches the reported total.
	PagingTotalCount PagingMode = "total_count"
	// PagingFullPage stops at the first page shorter than the page size.
	PagingFullPage PagingMode = "full_page"
)

type RecordKind string

const (
	RecordTrade   RecordKind = "trade"
	RecordNotice  RecordKind = "subscription_notice"
	RecordStat    RecordKind = "subscription_stat"
	RecordAuction RecordKind = "auction_item"
	RecordRegion  RecordKind = "region"
	RecordCode    RecordKind = "code"
)

type Region struct {
	Mode RegionMode
	// Param carries the 5-digit code in RegionLawdCode mode.
	Param string
	// SidoParam and SigunguParam carry names in RegionNames mode.
	SidoParam    string
	SigunguParam string
	Required     bool
}

type Date struct {
	Mode DateMode
	// MonthParam receives YYYYMM for monthly and optional-month endpoints.
	MonthParam string
	FromParam  string
	ToParam    string
	// Layout formats daily bounds.
	Layout   string
	Required bool
	Earliest model.Month
}

type Paging struct {
	PageParam       string
	SizeParam       string
	DefaultSize     int
	MaxSize         int
	Mode            PagingMode
	TotalCountPaths [][]string
	ItemsPaths      [][]string
	ResultCodePaths [][]string
	ResultMsgPaths  [][]string
}

type FilterKind string

const (
	FilterText   FilterKind = "text"
	FilterNumber FilterKind = "number"
	FilterEnum   FilterKind = "enum"
)

// Filter is a category-specific caller argument.
type Filter struct {
	Name        string
	Kind        FilterKind
	Description string
	// Param is the upstream query parameter. Empty for local filters.
	Param string
	// PathParam substitutes {PathParam} in the descriptor path.
	PathParam string
	// Choices maps accepted argument values to upstream values for enums.
	Choices  map[string]string
	Default  string
	Required bool
	// Local filters are applied after normalization instead of upstream.
	Local bool
}

type Field string

const (
	FieldPrice        Field = "price"
	FieldMonthlyRent  Field = "monthly_rent"
	FieldArea         Field = "area"
	FieldFloor        Field = "floor"
	FieldBuilding     Field = "building"
	FieldDealYear     Field = "deal_year"
	FieldDealMonth    Field = "deal_month"
	FieldDealDay      Field = "deal_day"
	FieldSigunguCode  Field = "sigungu_code"
	FieldDongCode     Field = "dong_code"
	FieldDongName     Field = "dong_name"
	FieldJibun        Field = "jibun"
	FieldBuildYear    Field = "build_year"
	FieldDealingType  Field = "dealing_type"
	FieldHouseType    Field = "house_type"
	FieldLandUse      Field = "land_use"
	FieldContractType Field = "contract_type"
	FieldCancelType   Field = "cancel_type"

	FieldID           Field = "id"
	FieldName         Field = "name"
	FieldLocation     Field = "location"
	FieldSupplyRegion Field = "supply_region"
	FieldNoticeDate   Field = "notice_date"
	FieldReceiptStart Field = "receipt_start"
	FieldReceiptEnd   Field = "receipt_end"
	FieldWinnerDate   Field = "winner_date"
	FieldHouseholds   Field = "households"
	FieldBuilder      Field = "builder"
	FieldHomepage     Field = "homepage"

	FieldStatMonth Field = "stat_month"
	FieldAreaName  Field = "area_name"
	FieldSegment   Field = "segment"
	FieldCount     Field = "count"
	FieldRate      Field = "rate"
	FieldScore     Field = "score"

	FieldUsage      Field = "usage"
	FieldAppraised  Field = "appraised"
	FieldMinimumBid Field = "minimum_bid"
	FieldWinningBid Field = "winning_bid"
	FieldBidOpen    Field = "bid_open"
	FieldBidClose   Field = "bid_close"
	FieldFailedBids Field = "failed_bids"
	FieldStatus     Field = "status"

	FieldCode       Field = "code"
	FieldFullName   Field = "full_name"
	FieldParentCode Field = "parent_code"
	FieldParentName Field = "parent_name"
)

type Unit string

const (
	UnitNone Unit = ""
	// UnitManwon values are in units of 10,000 won.
	UnitManwon Unit = "manwon"
	UnitWon    Unit = "won"
)

// FieldSpec maps one canonical field onto upstream alias keys.
type FieldSpec struct {
	Keys     []string
	Unit     Unit
	Layouts  []string
	Required bool
}

type Descriptor struct {
	Category    Category
	Tool        string
	Description string
	Portal      Portal
	Credential  Credential
	Auth        AuthMode
	// Path may contain {placeholder} segments filled from path filters.
	Path        string
	Format      rawtree.Format
	Region      Region
	Date        Date
	Paging      Paging
	FixedParams map[string]string
	Filters     []Filter
	Record      RecordKind
	Property    model.PropertyType
	Lease       bool
	Fields      map[Field]FieldSpec
}

func (d Descriptor) Filter(name string) (Filter, bool) {
	for _, filter := range d.Filters {
		if filter.Name == name {
			return filter, true
		}
	}
	return Filter{}, false
}

func (d Descriptor) Field(field Field) (FieldSpec, bool) {
	spec, ok := d.Fields[field]
	return spec, ok
}

// ID is the raw-source tag stamped on records produced by this endpoint.
func (d Descriptor) ID() string {
	return string(d.Portal) + ":" + d.Tool
}
