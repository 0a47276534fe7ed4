// Package normalize converts decoded upstream pages into canonical records.
//
// This is the only place where upstream field names and units are known.
// Rows missing a field the descriptor marks required, rows with unparsable
// values and rows that are not objects are dropped and counted by reason;
// the rest of the batch is kept.
package normalize

import (
	"fmt"
	"strings"
	"time"

	"realestate/internal/endpoint"
	"realestate/internal/model"
	"realestate/internal/providers"
	"realestate/internal/rawtree"
)

type Batch struct {
	Kind     endpoint.RecordKind
	Trades   []model.TradeRecord
	Notices  []model.SubscriptionNotice
	Stats    []model.SubscriptionStat
	Auctions []model.AuctionItem
	Regions  []model.RegionAddressInfo
	Codes    []model.CodeInfo
	// TotalCount sums the upstream totals reported per month, falling back
	// to the rows seen when a month reports none.
	TotalCount  int
	Dropped     int
	DropReasons map[string]int
}

func (b Batch) Len() int {
	return len(b.Trades) + len(b.Notices) + len(b.Stats) + len(b.Auctions) + len(b.Regions) + len(b.Codes)
}

func (b *Batch) drop(why string) {
	if b.DropReasons == nil {
		b.DropReasons = map[string]int{}
	}
	b.Dropped++
	b.DropReasons[why]++
}

type Normalizer struct {
	now func() time.Time
}

type Option func(*Normalizer)

// WithClock fixes the clock used to derive subscription notice status.
func WithClock(now func() time.Time) Option {
	return func(n *Normalizer) {
		n.now = now
	}
}

func New(opts ...Option) *Normalizer {
	n := &Normalizer{now: time.Now}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Normalize converts pages with the process clock.
func Normalize(desc endpoint.Descriptor, pages []providers.Page) (Batch, error) {
	return New().Normalize(desc, pages)
}

func (n *Normalizer) Normalize(desc endpoint.Descriptor, pages []providers.Page) (Batch, error) {
	batch := Batch{Kind: desc.Record, DropReasons: map[string]int{}}
	source := desc.ID()
	today := dateOnly(n.now().In(KST))

	convert, err := n.converter(desc, source, today)
	if err != nil {
		return Batch{}, err
	}

	required := requiredFields(desc.Fields)
	totals := map[model.Month]int{}
	for _, page := range pages {
		if _, seen := totals[page.Month]; !seen {
			totals[page.Month] = 0
			if page.TotalCount >= 0 {
				batch.TotalCount += page.TotalCount
			}
		}
		if page.TotalCount < 0 {
			batch.TotalCount += len(page.Rows)
		}
		for _, node := range page.Rows {
			if node.Kind() != rawtree.Mapping {
				batch.drop("invalid row")
				continue
			}
			r := row{node: node, fields: desc.Fields}
			if field, missing := r.missing(required); missing {
				batch.drop(reason(errMissing, field))
				continue
			}
			if why := convert(r, &batch); why != "" {
				batch.drop(why)
			}
		}
	}
	return batch, nil
}

type converterFunc func(r row, batch *Batch) string

func (n *Normalizer) converter(desc endpoint.Descriptor, source string, today time.Time) (converterFunc, error) {
	switch desc.Record {
	case endpoint.RecordTrade:
		return func(r row, batch *Batch) string {
			record, why := tradeRecord(desc, r, source)
			if why == "" {
				batch.Trades = append(batch.Trades, record)
			}
			return why
		}, nil
	case endpoint.RecordNotice:
		return func(r row, batch *Batch) string {
			notice, why := subscriptionNotice(r, source, today)
			if why == "" {
				batch.Notices = append(batch.Notices, notice)
			}
			return why
		}, nil
	case endpoint.RecordStat:
		return func(r row, batch *Batch) string {
			stat, why := subscriptionStat(r, source)
			if why == "" {
				batch.Stats = append(batch.Stats, stat)
			}
			return why
		}, nil
	case endpoint.RecordAuction:
		return func(r row, batch *Batch) string {
			item, why := auctionItem(r, source)
			if why == "" {
				batch.Auctions = append(batch.Auctions, item)
			}
			return why
		}, nil
	case endpoint.RecordRegion:
		return func(r row, batch *Batch) string {
			region, why := regionInfo(r, source)
			if why == "" {
				batch.Regions = append(batch.Regions, region)
			}
			return why
		}, nil
	case endpoint.RecordCode:
		return func(r row, batch *Batch) string {
			code, why := codeInfo(r, source)
			if why == "" {
				batch.Codes = append(batch.Codes, code)
			}
			return why
		}, nil
	default:
		return nil, fmt.Errorf("normalize: unsupported record kind %q for %s", desc.Record, desc.Tool)
	}
}

func tradeRecord(desc endpoint.Descriptor, r row, source string) (model.TradeRecord, string) {
	price, err := r.won(endpoint.FieldPrice)
	if err != nil {
		return model.TradeRecord{}, reason(err, endpoint.FieldPrice)
	}
	if price <= 0 {
		return model.TradeRecord{}, reason(errInvalid, endpoint.FieldPrice)
	}
	area, err := r.float(endpoint.FieldArea)
	if err != nil {
		return model.TradeRecord{}, reason(err, endpoint.FieldArea)
	}
	if area <= 0 {
		return model.TradeRecord{}, reason(errInvalid, endpoint.FieldArea)
	}
	dealDate, why := dealDate(r)
	if why != "" {
		return model.TradeRecord{}, why
	}

	record := model.TradeRecord{
		PropertyType:    desc.Property,
		TransactionType: model.TransactionSale,
		RegionCode:      tradeRegionCode(r),
		DealDate:        dealDate,
		PriceWon:        price,
		AreaM2:          area,
		Floor:           r.optInt(endpoint.FieldFloor),
		BuildingName:    r.optText(endpoint.FieldBuilding),
		DongName:        r.optText(endpoint.FieldDongName),
		Jibun:           r.optText(endpoint.FieldJibun),
		BuildYear:       r.optInt(endpoint.FieldBuildYear),
		DealingType:     r.optText(endpoint.FieldDealingType),
		HouseType:       r.optText(endpoint.FieldHouseType),
		LandUse:         r.optText(endpoint.FieldLandUse),
		ContractType:    r.optText(endpoint.FieldContractType),
		Source:          source,
	}
	if desc.Lease {
		record.TransactionType = model.TransactionLeaseDeposit
		if rent := r.optWon(endpoint.FieldMonthlyRent); rent != nil && *rent > 0 {
			record.TransactionType = model.TransactionLeaseMonthly
			record.MonthlyRentWon = rent
		}
	}
	if cancel, err := r.text(endpoint.FieldCancelType); err == nil && strings.EqualFold(cancel, "O") {
		record.Cancelled = true
	}
	return record, ""
}

func dealDate(r row) (time.Time, string) {
	year, err := r.integer(endpoint.FieldDealYear)
	if err != nil {
		return time.Time{}, reason(err, endpoint.FieldDealYear)
	}
	month, err := r.integer(endpoint.FieldDealMonth)
	if err != nil {
		return time.Time{}, reason(err, endpoint.FieldDealMonth)
	}
	day, err := r.integer(endpoint.FieldDealDay)
	if err != nil {
		return time.Time{}, reason(err, endpoint.FieldDealDay)
	}
	date := time.Date(year, time.Month(month), day, 0, 0, 0, 0, KST)
	if date.Year() != year || int(date.Month()) != month || date.Day() != day {
		return time.Time{}, reason(errInvalid, "deal_date")
	}
	return date, ""
}

// tradeRegionCode joins the sigungu and eupmyeondong parts into a 10-digit
// legal-dong code when both are present.
func tradeRegionCode(r row) string {
	sgg, err := r.text(endpoint.FieldSigunguCode)
	if err != nil {
		return ""
	}
	if umd, err := r.text(endpoint.FieldDongCode); err == nil && len(sgg) == 5 && len(umd) == 5 {
		return sgg + umd
	}
	if len(sgg) == 5 {
		return sgg + "00000"
	}
	return sgg
}

func subscriptionNotice(r row, source string, today time.Time) (model.SubscriptionNotice, string) {
	noticeDate, err := r.date(endpoint.FieldNoticeDate)
	if err != nil {
		return model.SubscriptionNotice{}, reason(err, endpoint.FieldNoticeDate)
	}

	notice := model.SubscriptionNotice{
		NoticeID:     r.must(endpoint.FieldID),
		HouseName:    r.must(endpoint.FieldName),
		Location:     r.must(endpoint.FieldLocation),
		SupplyRegion: r.optText(endpoint.FieldSupplyRegion),
		NoticeDate:   noticeDate,
		ReceiptStart: r.optDate(endpoint.FieldReceiptStart),
		ReceiptEnd:   r.optDate(endpoint.FieldReceiptEnd),
		WinnerDate:   r.optDate(endpoint.FieldWinnerDate),
		Households:   r.optInt(endpoint.FieldHouseholds),
		Builder:      r.optText(endpoint.FieldBuilder),
		Homepage:     r.optText(endpoint.FieldHomepage),
		Source:       source,
	}
	notice.Status = noticeStatus(notice, today)
	return notice, ""
}

// noticeStatus compares today with the receipt window. Without a receipt
// start the notice date opens the window; without a receipt end the winner
// announcement closes it.
func noticeStatus(notice model.SubscriptionNotice, today time.Time) model.NoticeStatus {
	start := notice.NoticeDate
	if notice.ReceiptStart != nil {
		start = *notice.ReceiptStart
	}
	if today.Before(dateOnly(start)) {
		return model.NoticeUpcoming
	}
	end := notice.ReceiptEnd
	if end == nil {
		end = notice.WinnerDate
	}
	if end != nil && today.After(dateOnly(*end)) {
		return model.NoticeClosed
	}
	return model.NoticeOpen
}

func subscriptionStat(r row, source string) (model.SubscriptionStat, string) {
	month := r.must(endpoint.FieldStatMonth)
	return model.SubscriptionStat{
		StatMonth: &month,
		Area:      r.optText(endpoint.FieldAreaName),
		Segment:   r.optText(endpoint.FieldSegment),
		Count:     r.optInt64(endpoint.FieldCount),
		Rate:      r.optFloat(endpoint.FieldRate),
		Score:     r.optFloat(endpoint.FieldScore),
		Source:    source,
	}, ""
}

func auctionItem(r row, source string) (model.AuctionItem, string) {
	return model.AuctionItem{
		ItemID:         r.must(endpoint.FieldID),
		Name:           r.must(endpoint.FieldName),
		Location:       r.must(endpoint.FieldLocation),
		Usage:          r.optText(endpoint.FieldUsage),
		AppraisedWon:   r.optWon(endpoint.FieldAppraised),
		MinimumBidWon:  r.optWon(endpoint.FieldMinimumBid),
		WinningBidWon:  r.optWon(endpoint.FieldWinningBid),
		BidOpen:        r.optDate(endpoint.FieldBidOpen),
		BidClose:       r.optDate(endpoint.FieldBidClose),
		FailedBidCount: r.optInt(endpoint.FieldFailedBids),
		Status:         r.optText(endpoint.FieldStatus),
		Source:         source,
	}, ""
}

func regionInfo(r row, source string) (model.RegionAddressInfo, string) {
	code := r.must(endpoint.FieldCode)
	if len(code) != 10 || !isDigits(code) {
		return model.RegionAddressInfo{}, reason(errInvalid, endpoint.FieldCode)
	}
	fullName := strings.Join(strings.Fields(r.must(endpoint.FieldFullName)), " ")

	name, err := r.text(endpoint.FieldName)
	if err != nil {
		parts := strings.Fields(fullName)
		name = parts[len(parts)-1]
	}
	parent, _ := r.text(endpoint.FieldParentCode)
	if strings.Trim(parent, "0") == "" || parent == code {
		parent = ""
	}
	return model.RegionAddressInfo{
		Code:       code,
		Name:       name,
		FullName:   fullName,
		ParentCode: parent,
		Level:      model.LevelOf(code),
		Source:     source,
	}, ""
}

func codeInfo(r row, source string) (model.CodeInfo, string) {
	return model.CodeInfo{
		Code:       r.must(endpoint.FieldCode),
		Name:       r.must(endpoint.FieldName),
		ParentCode: r.optText(endpoint.FieldParentCode),
		ParentName: r.optText(endpoint.FieldParentName),
		Source:     source,
	}, ""
}

func dateOnly(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}

func isDigits(value string) bool {
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
