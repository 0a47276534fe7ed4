package model

import (
	"fmt"
	"time"
)

// KST is Korea Standard Time. Upstream dates and the current month are
// evaluated in it.
var KST = time.FixedZone("KST", 9*60*60)

type PropertyType string

const (
	PropertyApartment   PropertyType = "apartment"
	PropertyOfficetel   PropertyType = "officetel"
	PropertyVilla       PropertyType = "villa"
	PropertySingleHouse PropertyType = "single_house"
	PropertyCommercial  PropertyType = "commercial"
)

type TransactionType string

const (
	TransactionSale         TransactionType = "sale"
	TransactionLeaseDeposit TransactionType = "lease_deposit"
	TransactionLeaseMonthly TransactionType = "lease_monthly"
)

type RegionLevel string

const (
	LevelSido         RegionLevel = "sido"
	LevelSigungu      RegionLevel = "sigungu"
	LevelEupmyeondong RegionLevel = "eupmyeondong"
	LevelRi           RegionLevel = "ri"
)

// LevelOf derives the administrative level from the zero suffix of a
// 10-digit legal-dong code.
func LevelOf(code string) RegionLevel {
	if len(code) != 10 {
		return ""
	}
	switch {
	case code[2:] == "00000000":
		return LevelSido
	case code[5:] == "00000":
		return LevelSigungu
	case code[8:] == "00":
		return LevelEupmyeondong
	default:
		return LevelRi
	}
}

// RegionCode is a legal-dong code with its display names. ParentCode is a
// plain code string; the parent is looked up through the resolver.
type RegionCode struct {
	Code       string      `json:"code"`
	Name       string      `json:"name"`
	FullName   string      `json:"full_name"`
	Level      RegionLevel `json:"level"`
	ParentCode string      `json:"parent_code,omitempty"`
}

// LawdCode returns the 5-digit sigungu prefix used by the transaction endpoints.
func (r RegionCode) LawdCode() string {
	if len(r.Code) < 5 {
		return r.Code
	}
	return r.Code[:5]
}

func (r RegionCode) IsZero() bool {
	return r.Code == ""
}

type Month struct {
	Year  int
	Month time.Month
}

func MonthOf(t time.Time) Month {
	return Month{Year: t.Year(), Month: t.Month()}
}

func (m Month) Compact() string {
	return fmt.Sprintf("%04d%02d", m.Year, int(m.Month))
}

func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

func (m Month) index() int {
	return m.Year*12 + int(m.Month) - 1
}

func (m Month) Next() Month {
	return m.AddMonths(1)
}

func (m Month) AddMonths(n int) Month {
	idx := m.index() + n
	return Month{Year: idx / 12, Month: time.Month(idx%12 + 1)}
}

func (m Month) Before(other Month) bool {
	return m.index() < other.index()
}

func (m Month) After(other Month) bool {
	return m.index() > other.index()
}

// MonthsThrough counts the months from m to end inclusive.
func (m Month) MonthsThrough(end Month) int {
	return end.index() - m.index() + 1
}

func (m Month) FirstDay() time.Time {
	return time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC)
}

func (m Month) IsZero() bool {
	return m.Year == 0
}

// QueryRequest is a validated, upstream-ready query.
type QueryRequest struct {
	Region *RegionCode
	From   Month
	To     Month
	// FromDay and ToDay bound daily endpoints; zero for monthly ones.
	FromDay    time.Time
	ToDay      time.Time
	Page       int
	PageSize   int
	Limit      int
	Params     map[string]string
	PathParams map[string]string
	MinAreaM2  *float64
	MaxAreaM2  *float64
}

// Months lists every month of the request in ascending order. Requests
// without a month range yield a single zero month.
func (q QueryRequest) Months() []Month {
	if q.From.IsZero() {
		return []Month{{}}
	}
	months := make([]Month, 0, q.From.MonthsThrough(q.To))
	for m := q.From; !m.After(q.To); m = m.Next() {
		months = append(months, m)
	}
	return months
}

type TradeRecord struct {
	PropertyType    PropertyType    `json:"property_type"`
	TransactionType TransactionType `json:"transaction_type"`
	RegionCode      string          `json:"region_code"`
	DealDate        time.Time       `json:"deal_date"`
	PriceWon        int64           `json:"price_won"`
	MonthlyRentWon  *int64          `json:"monthly_rent_won,omitempty"`
	AreaM2          float64         `json:"area_m2"`
	Floor           *int            `json:"floor,omitempty"`
	BuildingName    *string         `json:"building_name,omitempty"`
	DongName        *string         `json:"dong_name,omitempty"`
	Jibun           *string         `json:"jibun,omitempty"`
	BuildYear       *int            `json:"build_year,omitempty"`
	DealingType     *string         `json:"dealing_type,omitempty"`
	HouseType       *string         `json:"house_type,omitempty"`
	LandUse         *string         `json:"land_use,omitempty"`
	ContractType    *string         `json:"contract_type,omitempty"`
	Cancelled       bool            `json:"cancelled,omitempty"`
	Source          string          `json:"source"`
}

type NoticeStatus string

const (
	NoticeUpcoming NoticeStatus = "upcoming"
	NoticeOpen     NoticeStatus = "open"
	NoticeClosed   NoticeStatus = "closed"
)

type SubscriptionNotice struct {
	NoticeID     string       `json:"notice_id"`
	HouseName    string       `json:"house_name"`
	Location     string       `json:"location"`
	SupplyRegion *string      `json:"supply_region,omitempty"`
	NoticeDate   time.Time    `json:"notice_date"`
	ReceiptStart *time.Time   `json:"receipt_start,omitempty"`
	ReceiptEnd   *time.Time   `json:"receipt_end,omitempty"`
	WinnerDate   *time.Time   `json:"winner_date,omitempty"`
	Households   *int         `json:"households,omitempty"`
	Builder      *string      `json:"builder,omitempty"`
	Homepage     *string      `json:"homepage,omitempty"`
	Status       NoticeStatus `json:"status"`
	Source       string       `json:"source"`
}

type SubscriptionStat struct {
	StatKind  string   `json:"stat_kind"`
	StatMonth *string  `json:"stat_month,omitempty"`
	Area      *string  `json:"area,omitempty"`
	Segment   *string  `json:"segment,omitempty"`
	Count     *int64   `json:"count,omitempty"`
	Rate      *float64 `json:"rate,omitempty"`
	Score     *float64 `json:"score,omitempty"`
	Source    string   `json:"source"`
}

type AuctionItem struct {
	ItemID         string     `json:"item_id"`
	Name           string     `json:"name"`
	Location       string     `json:"location"`
	Usage          *string    `json:"usage,omitempty"`
	AppraisedWon   *int64     `json:"appraised_won,omitempty"`
	MinimumBidWon  *int64     `json:"minimum_bid_won,omitempty"`
	WinningBidWon  *int64     `json:"winning_bid_won,omitempty"`
	BidOpen        *time.Time `json:"bid_open,omitempty"`
	BidClose       *time.Time `json:"bid_close,omitempty"`
	FailedBidCount *int       `json:"failed_bid_count,omitempty"`
	Status         *string    `json:"status,omitempty"`
	Source         string     `json:"source"`
}

type RegionAddressInfo struct {
	Code       string      `json:"code"`
	Name       string      `json:"name"`
	FullName   string      `json:"full_name"`
	ParentCode string      `json:"parent_code,omitempty"`
	Level      RegionLevel `json:"level"`
	Source     string      `json:"source"`
}

func (r RegionAddressInfo) RegionCode() RegionCode {
	return RegionCode{
		Code:       r.Code,
		Name:       r.Name,
		FullName:   r.FullName,
		Level:      r.Level,
		ParentCode: r.ParentCode,
	}
}

type CodeInfo struct {
	Code       string  `json:"code"`
	Name       string  `json:"name"`
	ParentCode *string `json:"parent_code,omitempty"`
	ParentName *string `json:"parent_name,omitempty"`
	Source     string  `json:"source"`
}
