package service

import (
	"sort"

	"github.com/shopspring/decimal"

	"realestate/internal/model"
)

// TradeSummary aggregates prices over the returned trades, skipping
// cancelled deals. For leases, the price fields describe deposits and the
// monthly rent figures cover monthly leases only.
type TradeSummary struct {
	Count              int    `json:"count"`
	CancelledCount     int    `json:"cancelled_count,omitempty"`
	MedianPriceWon     int64  `json:"median_price_won"`
	MinPriceWon        int64  `json:"min_price_won"`
	MaxPriceWon        int64  `json:"max_price_won"`
	AveragePriceWon    int64  `json:"average_price_won"`
	AveragePricePerM2  int64  `json:"average_price_per_m2_won"`
	MonthlyLeaseCount  int    `json:"monthly_lease_count,omitempty"`
	AverageMonthlyRent int64  `json:"average_monthly_rent_won,omitempty"`
	MedianMonthlyRent  int64  `json:"median_monthly_rent_won,omitempty"`
	PriceBasis         string `json:"price_basis"`
}

func Summarize(trades []model.TradeRecord, lease bool) *TradeSummary {
	summary := &TradeSummary{PriceBasis: "sale_price"}
	if lease {
		summary.PriceBasis = "deposit"
	}

	prices := make([]int64, 0, len(trades))
	var rents []int64
	perM2 := decimal.Zero
	for _, trade := range trades {
		if trade.Cancelled {
			summary.CancelledCount++
			continue
		}
		prices = append(prices, trade.PriceWon)
		if trade.AreaM2 > 0 {
			perM2 = perM2.Add(decimal.NewFromInt(trade.PriceWon).Div(decimal.NewFromFloat(trade.AreaM2)))
		}
		if trade.TransactionType == model.TransactionLeaseMonthly && trade.MonthlyRentWon != nil {
			rents = append(rents, *trade.MonthlyRentWon)
		}
	}

	summary.Count = len(prices)
	if len(prices) == 0 {
		return summary
	}

	sortInt64(prices)
	summary.MinPriceWon = prices[0]
	summary.MaxPriceWon = prices[len(prices)-1]
	summary.MedianPriceWon = median(prices)
	summary.AveragePriceWon = average(prices)
	summary.AveragePricePerM2 = perM2.Div(decimal.NewFromInt(int64(len(prices)))).Round(0).IntPart()

	if len(rents) > 0 {
		sortInt64(rents)
		summary.MonthlyLeaseCount = len(rents)
		summary.AverageMonthlyRent = average(rents)
		summary.MedianMonthlyRent = median(rents)
	}
	return summary
}

func sortInt64(values []int64) {
	sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })
}

// median expects sorted values. Even counts average the middle pair.
func median(values []int64) int64 {
	mid := len(values) / 2
	if len(values)%2 == 1 {
		return values[mid]
	}
	return decimal.NewFromInt(values[mid-1]).
		Add(decimal.NewFromInt(values[mid])).
		Div(decimal.NewFromInt(2)).
		Round(0).
		IntPart()
}

func average(values []int64) int64 {
	sum := decimal.Zero
	for _, value := range values {
		sum = sum.Add(decimal.NewFromInt(value))
	}
	return sum.Div(decimal.NewFromInt(int64(len(values)))).Round(0).IntPart()
}
