package endpoint

import (
	"fmt"
	"sort"
	"time"

	"realestate/internal/model"
	"realestate/internal/rawtree"
)

type Category uint8

const (
	AptTrade Category = iota + 1
	AptRent
	OfficetelTrade
	OfficetelRent
	VillaTrade
	VillaRent
	SingleHouseTrade
	SingleHouseRent
	CommercialTrade
	SubscriptionNotice
	SubscriptionStat
	OnbidBidResult
	KamcoAuction
	RegionCodes
	OnbidUsageCodes
)

var catalog = buildCatalog()

// Descriptor returns the endpoint descriptor of c. Categories are a closed
// set, so an unknown value is a programming error and panics.
func (c Category) Descriptor() Descriptor {
	desc, ok := catalog[c]
	if !ok {
		panic(fmt.Sprintf("endpoint: unknown category %d", uint8(c)))
	}
	return desc
}

func (c Category) Valid() bool {
	_, ok := catalog[c]
	return ok
}

func (c Category) String() string {
	if desc, ok := catalog[c]; ok {
		return desc.Tool
	}
	return fmt.Sprintf("category(%d)", uint8(c))
}

// All lists every category in declaration order.
func All() []Category {
	out := make([]Category, 0, len(catalog))
	for c := range catalog {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func ByTool(name string) (Category, bool) {
	for c, desc := range catalog {
		if desc.Tool == name {
			return c, true
		}
	}
	return 0, false
}

var (
	dataGoKrResultCodes = [][]string{
		{"response", "header", "resultCode"},
		{"OpenAPI_ServiceResponse", "cmmMsgHeader", "returnReasonCode"},
	}
	dataGoKrResultMsgs = [][]string{
		{"response", "header", "resultMsg"},
		{"OpenAPI_ServiceResponse", "cmmMsgHeader", "returnAuthMsg"},
		{"OpenAPI_ServiceResponse", "cmmMsgHeader", "errMsg"},
	}
	responseBodyItems = [][]string{{"response", "body", "items", "item"}}
	responseBodyTotal = [][]string{{"response", "body", "totalCount"}}
)

func dataGoKrPaging(defaultSize, maxSize int) Paging {
	return Paging{
		PageParam:       "pageNo",
		SizeParam:       "numOfRows",
		DefaultSize:     defaultSize,
		MaxSize:         maxSize,
		Mode:            PagingTotalCount,
		TotalCountPaths: responseBodyTotal,
		ItemsPaths:      responseBodyItems,
		ResultCodePaths: dataGoKrResultCodes,
		ResultMsgPaths:  dataGoKrResultMsgs,
	}
}

func odcloudPaging() Paging {
	return Paging{
		PageParam:       "page",
		SizeParam:       "perPage",
		DefaultSize:     100,
		MaxSize:         1000,
		Mode:            PagingTotalCount,
		TotalCountPaths: [][]string{{"totalCount"}, {"matchCount"}},
		ItemsPaths:      [][]string{{"data"}},
		ResultCodePaths: [][]string{{"code"}},
		ResultMsgPaths:  [][]string{{"msg"}},
	}
}

var (
	transactionEarliest = model.Month{Year: 2006, Month: time.January}
	applyhomeEarliest   = model.Month{Year: 2018, Month: time.January}
	onbidEarliest       = model.Month{Year: 2002, Month: time.January}
)

func keys(aliases ...string) []string {
	return aliases
}

func tradeFields(extra map[Field]FieldSpec) map[Field]FieldSpec {
	fields := map[Field]FieldSpec{
		FieldPrice:       {Keys: keys("dealAmount", "거래금액"), Unit: UnitManwon, Required: true},
		FieldArea:        {Keys: keys("excluUseAr", "전용면적"), Required: true},
		FieldFloor:       {Keys: keys("floor", "층")},
		FieldDealYear:    {Keys: keys("dealYear", "년"), Required: true},
		FieldDealMonth:   {Keys: keys("dealMonth", "월"), Required: true},
		FieldDealDay:     {Keys: keys("dealDay", "일"), Required: true},
		FieldSigunguCode: {Keys: keys("sggCd", "지역코드")},
		FieldDongCode:    {Keys: keys("umdCd")},
		FieldDongName:    {Keys: keys("umdNm", "법정동")},
		FieldJibun:       {Keys: keys("jibun", "지번")},
		FieldBuildYear:   {Keys: keys("buildYear", "건축년도")},
		FieldDealingType: {Keys: keys("dealingGbn", "거래유형")},
		FieldCancelType:  {Keys: keys("cdealType", "해제여부")},
	}
	for field, spec := range extra {
		fields[field] = spec
	}
	return fields
}

func rentFields(extra map[Field]FieldSpec) map[Field]FieldSpec {
	fields := tradeFields(map[Field]FieldSpec{
		FieldPrice:        {Keys: keys("deposit", "보증금액", "보증금"), Unit: UnitManwon, Required: true},
		FieldMonthlyRent:  {Keys: keys("monthlyRent", "월세금액", "월세"), Unit: UnitManwon},
		FieldContractType: {Keys: keys("contractType", "계약구분")},
	})
	delete(fields, FieldDealingType)
	delete(fields, FieldCancelType)
	for field, spec := range extra {
		fields[field] = spec
	}
	return fields
}

func areaFilters() []Filter {
	return []Filter{
		{Name: "min_area", Kind: FilterNumber, Local: true, Description: "minimum exclusive area in m²"},
		{Name: "max_area", Kind: FilterNumber, Local: true, Description: "maximum exclusive area in m²"},
	}
}

func rtms(category Category, tool, service string, property model.PropertyType, lease bool, fields map[Field]FieldSpec) Descriptor {
	kind := "sale"
	if lease {
		kind = "lease"
	}
	return Descriptor{
		Category:    category,
		Tool:        tool,
		Description: fmt.Sprintf("%s %s transactions by region and month", property, kind),
		Portal:      PortalDataGoKr,
		Credential:  CredentialDataGoKr,
		Auth:        AuthServiceKey,
		Path:        "/1613000/" + service + "/get" + service,
		Format:      rawtree.FormatXML,
		Region:      Region{Mode: RegionLawdCode, Param: "LAWD_CD", Required: true},
		Date: Date{
			Mode:       DateMonthly,
			MonthParam: "DEAL_YMD",
			Required:   true,
			Earliest:   transactionEarliest,
		},
		Paging:   dataGoKrPaging(100, 1000),
		Filters:  areaFilters(),
		Record:   RecordTrade,
		Property: property,
		Lease:    lease,
		Fields:   fields,
	}
}

func buildCatalog() map[Category]Descriptor {
	descriptors := []Descriptor{
		rtms(AptTrade, "get_apartment_trades", "RTMSDataSvcAptTrade", model.PropertyApartment, false,
			tradeFields(map[Field]FieldSpec{
				FieldBuilding: {Keys: keys("aptNm", "아파트")},
			})),
		rtms(AptRent, "get_apartment_rent", "RTMSDataSvcAptRent", model.PropertyApartment, true,
			rentFields(map[Field]FieldSpec{
				FieldBuilding: {Keys: keys("aptNm", "아파트")},
			})),
		rtms(OfficetelTrade, "get_officetel_trades", "RTMSDataSvcOffiTrade", model.PropertyOfficetel, false,
			tradeFields(map[Field]FieldSpec{
				FieldBuilding: {Keys: keys("offiNm", "단지")},
			})),
		rtms(OfficetelRent, "get_officetel_rent", "RTMSDataSvcOffiRent", model.PropertyOfficetel, true,
			rentFields(map[Field]FieldSpec{
				FieldBuilding: {Keys: keys("offiNm", "단지")},
			})),
		rtms(VillaTrade, "get_villa_trades", "RTMSDataSvcRHTrade", model.PropertyVilla, false,
			tradeFields(map[Field]FieldSpec{
				FieldBuilding:  {Keys: keys("mhouseNm", "연립다세대")},
				FieldHouseType: {Keys: keys("houseType", "주택유형")},
			})),
		rtms(VillaRent, "get_villa_rent", "RTMSDataSvcRHRent", model.PropertyVilla, true,
			rentFields(map[Field]FieldSpec{
				FieldBuilding:  {Keys: keys("mhouseNm", "연립다세대")},
				FieldHouseType: {Keys: keys("houseType", "주택유형")},
			})),
		rtms(SingleHouseTrade, "get_single_house_trades", "RTMSDataSvcSHTrade", model.PropertySingleHouse, false,
			tradeFields(map[Field]FieldSpec{
				FieldArea:      {Keys: keys("totalFloorAr", "연면적"), Required: true},
				FieldHouseType: {Keys: keys("houseType", "주택유형")},
			})),
		rtms(SingleHouseRent, "get_single_house_rent", "RTMSDataSvcSHRent", model.PropertySingleHouse, true,
			rentFields(map[Field]FieldSpec{
				FieldArea:      {Keys: keys("totalFloorAr", "계약면적", "연면적"), Required: true},
				FieldHouseType: {Keys: keys("houseType", "주택유형")},
			})),
		rtms(CommercialTrade, "get_commercial_trades", "RTMSDataSvcNrgTrade", model.PropertyCommercial, false,
			tradeFields(map[Field]FieldSpec{
				FieldArea:      {Keys: keys("buildingAr", "건물면적"), Required: true},
				FieldHouseType: {Keys: keys("buildingType", "유형")},
				FieldBuilding:  {Keys: keys("buildingUse", "건물주용도")},
				FieldLandUse:   {Keys: keys("landUse", "용도지역")},
			})),
		{
			Category:    SubscriptionNotice,
			Tool:        "get_apt_subscription_info",
			Description: "apartment subscription notices from Applyhome",
			Portal:      PortalODCloud,
			Credential:  CredentialODCloud,
			Auth:        AuthHeaderOrServiceKey,
			Path:        "/ApplyhomeInfoDetailSvc/v1/getAPTLttotPblancDetail",
			Format:      rawtree.FormatJSON,
			Region:      Region{Mode: RegionNone},
			Date: Date{
				Mode:      DateDailyRange,
				FromParam: "cond[RCRIT_PBLANC_DE::GTE]",
				ToParam:   "cond[RCRIT_PBLANC_DE::LTE]",
				Layout:    "2006-01-02",
				Earliest:  applyhomeEarliest,
			},
			Paging:      odcloudPaging(),
			FixedParams: map[string]string{"returnType": "JSON"},
			Filters: []Filter{
				{Name: "area", Kind: FilterText, Param: "cond[SUBSCRPT_AREA_CODE_NM::EQ]", Description: "supply area name such as 서울"},
				{Name: "house_name", Kind: FilterText, Param: "cond[HOUSE_NM::LIKE]", Description: "complex name fragment"},
			},
			Record: RecordNotice,
			Fields: map[Field]FieldSpec{
				FieldID:           {Keys: keys("HOUSE_MANAGE_NO"), Required: true},
				FieldName:         {Keys: keys("HOUSE_NM"), Required: true},
				FieldLocation:     {Keys: keys("HSSPLY_ADRES"), Required: true},
				FieldSupplyRegion: {Keys: keys("SUBSCRPT_AREA_CODE_NM")},
				FieldNoticeDate:   {Keys: keys("RCRIT_PBLANC_DE"), Layouts: []string{"2006-01-02", "20060102"}, Required: true},
				FieldReceiptStart: {Keys: keys("RCEPT_BGNDE", "SUBSCRPT_RCEPT_BGNDE"), Layouts: []string{"2006-01-02", "20060102"}},
				FieldReceiptEnd:   {Keys: keys("RCEPT_ENDDE", "SUBSCRPT_RCEPT_ENDDE"), Layouts: []string{"2006-01-02", "20060102"}},
				FieldWinnerDate:   {Keys: keys("PRZWNER_PRESNATN_DE"), Layouts: []string{"2006-01-02", "20060102"}},
				FieldHouseholds:   {Keys: keys("TOT_SUPLY_HSHLDCO")},
				FieldBuilder:      {Keys: keys("BSNS_MBY_NM", "CNSTRCT_ENTRPS_NM")},
				FieldHomepage:     {Keys: keys("HMPG_ADRES")},
			},
		},
		{
			Category:    SubscriptionStat,
			Tool:        "get_apt_subscription_results",
			Description: "apartment subscription competition, application and winner statistics",
			Portal:      PortalODCloud,
			Credential:  CredentialODCloud,
			Auth:        AuthHeaderOrServiceKey,
			Path:        "/ApplyhomeStatSvc/v1/{stat}",
			Format:      rawtree.FormatJSON,
			Region:      Region{Mode: RegionNone},
			Date: Date{
				Mode:       DateOptionalMonth,
				MonthParam: "cond[STAT_DE::EQ]",
				Earliest:   applyhomeEarliest,
			},
			Paging:      odcloudPaging(),
			FixedParams: map[string]string{"returnType": "JSON"},
			Filters: []Filter{
				{
					Name:      "stat_kind",
					Kind:      FilterEnum,
					PathParam: "stat",
					Required:  true,
					Choices: map[string]string{
						"cmpetrt_area": "getAPTCmpetrtAreaStat",
						"reqst_area":   "getAPTReqstAreaStat",
						"przwner_area": "getAPTPrzwnerAreaStat",
						"aps_przwner":  "getAPTApsPrzwnerStat",
					},
					Description: "statistic kind",
				},
			},
			Record: RecordStat,
			Fields: map[Field]FieldSpec{
				FieldStatMonth: {Keys: keys("STAT_DE"), Required: true},
				FieldAreaName:  {Keys: keys("SUBSCRPT_AREA_CODE_NM", "AREA_NM", "RESIDE_SENM")},
				FieldSegment:   {Keys: keys("AGE_SE_NM", "AGE_SE", "SPSPLY_KND_NM", "RANK", "HOUSE_TY")},
				FieldCount:     {Keys: keys("REQ_CNT", "PRZWNER_CNT", "CNT", "SUPLY_HSHLDCO")},
				FieldRate:      {Keys: keys("CMPET_RATE", "CMPETRT", "RATE")},
				FieldScore:     {Keys: keys("AVRG_SCORE", "AVG_SCORE", "LWET_SCORE")},
			},
		},
		{
			Category:    OnbidBidResult,
			Tool:        "get_onbid_bid_results",
			Description: "public auction bid results from Onbid",
			Portal:      PortalDataGoKr,
			Credential:  CredentialOnbid,
			Auth:        AuthServiceKey,
			Path:        "/B010003/OnbidCltrBidRsltListSrvc/getCltrBidRsltList",
			Format:      rawtree.FormatJSON,
			Region:      Region{Mode: RegionNames, SidoParam: "lctnSdnm", SigunguParam: "lctnSggnm"},
			Date: Date{
				Mode:      DateDailyRange,
				FromParam: "opbdDtStart",
				ToParam:   "opbdDtEnd",
				Layout:    "20060102",
				Earliest:  onbidEarliest,
			},
			Paging:      dataGoKrPaging(20, 100),
			FixedParams: map[string]string{"resultType": "json"},
			Filters: []Filter{
				{Name: "keyword", Kind: FilterText, Param: "onbidCltrNm", Description: "item name fragment"},
			},
			Record: RecordAuction,
			Fields: map[Field]FieldSpec{
				FieldID:         {Keys: keys("cltrMngNo", "onbidCltrNo", "cltrNo", "CLTR_NO"), Required: true},
				FieldName:       {Keys: keys("onbidCltrNm", "cltrNm", "CLTR_NM"), Required: true},
				FieldLocation:   {Keys: keys("lctnAddr", "ldnmAdrs", "nmrdAdrs", "LDNM_ADRS"), Required: true},
				FieldUsage:      {Keys: keys("ctgrFullNm", "CTGR_FULL_NM")},
				FieldAppraised:  {Keys: keys("apslEvlAmt", "apzAmt", "APZ_AMT"), Unit: UnitWon},
				FieldMinimumBid: {Keys: keys("lowstBidPrc", "minBidPrc", "MIN_BID_PRC"), Unit: UnitWon},
				FieldWinningBid: {Keys: keys("sccsBidAmt", "bidAmt", "SCCS_BID_AMT"), Unit: UnitWon},
				FieldBidOpen:    {Keys: keys("opbdDt", "opbdDtm", "pbctBegnDtm"), Layouts: onbidLayouts},
				FieldBidClose:   {Keys: keys("pbctClsDtm", "bidClsDtm"), Layouts: onbidLayouts},
				FieldFailedBids: {Keys: keys("usbdCnt", "uscbdCnt", "USCBD_CNT")},
				FieldStatus:     {Keys: keys("bidRsltNm", "pbctStatNm", "PBCT_CLTR_STAT_NM")},
			},
		},
		{
			Category:    KamcoAuction,
			Tool:        "get_kamco_auction_items",
			Description: "KAMCO public sale items open for bidding",
			Portal:      PortalOnbid,
			Credential:  CredentialOnbid,
			Auth:        AuthServiceKey,
			Path:        "/KamcoPblsalThingInquireSvc/getKamcoPbctCltrList",
			Format:      rawtree.FormatXML,
			Region:      Region{Mode: RegionNames, SidoParam: "SIDO", SigunguParam: "SGK"},
			Date: Date{
				Mode:      DateDailyRange,
				FromParam: "PBCT_BEGN_DTM",
				ToParam:   "PBCT_CLS_DTM",
				Layout:    "20060102",
				Earliest:  onbidEarliest,
			},
			Paging: Paging{
				PageParam:       "pageNo",
				SizeParam:       "numOfRows",
				DefaultSize:     20,
				MaxSize:         100,
				Mode:            PagingFullPage,
				ItemsPaths:      responseBodyItems,
				ResultCodePaths: dataGoKrResultCodes,
				ResultMsgPaths:  dataGoKrResultMsgs,
			},
			Filters: []Filter{
				{Name: "keyword", Kind: FilterText, Param: "CLTR_NM", Description: "item name fragment"},
				{
					Name:        "disposal",
					Kind:        FilterEnum,
					Param:       "DPSL_MTD_CD",
					Choices:     map[string]string{"sale": "0001", "lease": "0002"},
					Description: "disposal method",
				},
			},
			Record: RecordAuction,
			Fields: map[Field]FieldSpec{
				FieldID:         {Keys: keys("CLTR_NO", "PLNM_NO"), Required: true},
				FieldName:       {Keys: keys("CLTR_NM"), Required: true},
				FieldLocation:   {Keys: keys("LDNM_ADRS", "NMRD_ADRS"), Required: true},
				FieldUsage:      {Keys: keys("CTGR_FULL_NM")},
				FieldAppraised:  {Keys: keys("APZ_AMT"), Unit: UnitWon},
				FieldMinimumBid: {Keys: keys("MIN_BID_PRC"), Unit: UnitWon},
				FieldBidOpen:    {Keys: keys("PBCT_BEGN_DTM"), Layouts: onbidLayouts},
				FieldBidClose:   {Keys: keys("PBCT_CLS_DTM"), Layouts: onbidLayouts},
				FieldFailedBids: {Keys: keys("USCBD_CNT")},
				FieldStatus:     {Keys: keys("PBCT_CLTR_STAT_NM")},
			},
		},
		{
			Category:    RegionCodes,
			Tool:        "get_region_codes",
			Description: "legal-dong region codes",
			Portal:      PortalDataGoKr,
			Credential:  CredentialDataGoKr,
			Auth:        AuthServiceKey,
			Path:        "/1741000/StanReginCd/getStanReginCdList",
			Format:      rawtree.FormatJSON,
			Region:      Region{Mode: RegionNone},
			Date:        Date{Mode: DateNone},
			Paging: Paging{
				PageParam:       "pageNo",
				SizeParam:       "numOfRows",
				DefaultSize:     1000,
				MaxSize:         1000,
				Mode:            PagingTotalCount,
				TotalCountPaths: [][]string{{"StanReginCd", "head", "totalCount"}},
				ItemsPaths:      [][]string{{"StanReginCd", "row"}},
				ResultCodePaths: append([][]string{
					{"StanReginCd", "head", "RESULT", "resultCode"},
					{"RESULT", "resultCode"},
				}, dataGoKrResultCodes...),
				ResultMsgPaths: append([][]string{
					{"StanReginCd", "head", "RESULT", "resultMsg"},
					{"RESULT", "resultMsg"},
				}, dataGoKrResultMsgs...),
			},
			FixedParams: map[string]string{"type": "json", "flag": "Y"},
			Filters: []Filter{
				{Name: "name", Kind: FilterText, Param: "locatadd_nm", Description: "address name such as 서울특별시 강남구"},
			},
			Record: RecordRegion,
			Fields: map[Field]FieldSpec{
				FieldCode:       {Keys: keys("region_cd"), Required: true},
				FieldFullName:   {Keys: keys("locatadd_nm"), Required: true},
				FieldName:       {Keys: keys("locallow_nm")},
				FieldParentCode: {Keys: keys("locathigh_cd")},
			},
		},
		{
			Category:    OnbidUsageCodes,
			Tool:        "get_onbid_usage_codes",
			Description: "Onbid property usage category codes",
			Portal:      PortalOnbid,
			Credential:  CredentialOnbid,
			Auth:        AuthServiceKey,
			Path:        "/OnbidCodeInfoInquireSvc/{level}",
			Format:      rawtree.FormatXML,
			Region:      Region{Mode: RegionNone},
			Date:        Date{Mode: DateNone},
			Paging:      dataGoKrPaging(100, 1000),
			Filters: []Filter{
				{
					Name:      "level",
					Kind:      FilterEnum,
					PathParam: "level",
					Default:   "top",
					Choices: map[string]string{
						"top":    "getOnbidTopCodeInfo",
						"middle": "getOnbidMiddleCodeInfo",
						"bottom": "getOnbidBottomCodeInfo",
					},
					Description: "code hierarchy level",
				},
				{Name: "parent_id", Kind: FilterText, Param: "CTGR_ID", Description: "parent category id for middle and bottom levels"},
			},
			Record: RecordCode,
			Fields: map[Field]FieldSpec{
				FieldCode:       {Keys: keys("CTGR_ID"), Required: true},
				FieldName:       {Keys: keys("CTGR_NM"), Required: true},
				FieldParentCode: {Keys: keys("CTGR_HIRK_ID")},
				FieldParentName: {Keys: keys("CTGR_HIRK_NM")},
			},
		},
	}

	out := make(map[Category]Descriptor, len(descriptors))
	for _, desc := range descriptors {
		if _, dup := out[desc.Category]; dup {
			panic(fmt.Sprintf("endpoint: duplicate descriptor for %s", desc.Tool))
		}
		out[desc.Category] = desc
	}
	return out
}

var onbidLayouts = []string{"20060102150405", "200601021504", "20060102", "2006-01-02 15:04:05", "2006-01-02"}
