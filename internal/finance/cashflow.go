package finance

import (
	"github.com/shopspring/decimal"

	"realestate/internal/apperr"
)

const MaxCashflowMonths = 1200

// DefaultLivingShare is the share of income assumed as living cost when
// none is given.
var DefaultLivingShare = decimal.NewFromFloat(0.4)

// CashflowParameters are monthly amounts in won. When Schedule is set, the
// loan payment of month i comes from the schedule (zero once it ends) and
// LoanPaymentWon is ignored. A zero LivingCostWon means 40% of income.
type CashflowParameters struct {
	Months               int           `json:"months"`
	IncomeWon            int64         `json:"income_won"`
	LoanPaymentWon       int64         `json:"loan_payment_won"`
	Schedule             []Installment `json:"schedule,omitempty"`
	OperatingExpensesWon int64         `json:"operating_expenses_won"`
	LivingCostWon        int64         `json:"living_cost_won"`
	OtherExpensesWon     int64         `json:"other_expenses_won"`
}

type MonthlyNet struct {
	Month            int   `json:"month"`
	IncomeWon        int64 `json:"income_won"`
	LoanPaymentWon   int64 `json:"loan_payment_won"`
	OperatingWon     int64 `json:"operating_expenses_won"`
	LivingCostWon    int64 `json:"living_cost_won"`
	OtherExpensesWon int64 `json:"other_expenses_won"`
	NetWon           int64 `json:"net_won"`
	CumulativeNetWon int64 `json:"cumulative_net_won"`
}

type NetCashflow struct {
	Months         []MonthlyNet `json:"months"`
	TotalNetWon    int64        `json:"total_net_won"`
	AverageNetWon  int64        `json:"average_net_won"`
	NegativeMonths int          `json:"negative_months"`
	LivingCostWon  int64        `json:"living_cost_won"`
	LivingCostAuto bool         `json:"living_cost_auto"`
}

// MonthlyCashflow computes income minus loan payment and expenses for each
// month. Negative results are legitimate outcomes, not errors.
func MonthlyCashflow(p CashflowParameters) (NetCashflow, error) {
	if p.Months == 0 {
		p.Months = 1
		if len(p.Schedule) > 0 {
			p.Months = len(p.Schedule)
		}
	}
	if p.Months < 1 || p.Months > MaxCashflowMonths {
		return NetCashflow{}, apperr.InvalidInput("months", "months must be between 1 and %d", MaxCashflowMonths)
	}

	living := p.LivingCostWon
	auto := living == 0
	if auto {
		living = decimal.NewFromInt(p.IncomeWon).Mul(DefaultLivingShare).Round(0).IntPart()
	}

	result := NetCashflow{
		Months:         make([]MonthlyNet, 0, p.Months),
		LivingCostWon:  living,
		LivingCostAuto: auto,
	}
	for month := 1; month <= p.Months; month++ {
		loan := p.LoanPaymentWon
		if p.Schedule != nil {
			loan = 0
			if month <= len(p.Schedule) {
				loan = p.Schedule[month-1].PaymentWon
			}
		}
		net := p.IncomeWon - loan - p.OperatingExpensesWon - living - p.OtherExpensesWon
		result.TotalNetWon += net
		if net < 0 {
			result.NegativeMonths++
		}
		result.Months = append(result.Months, MonthlyNet{
			Month:            month,
			IncomeWon:        p.IncomeWon,
			LoanPaymentWon:   loan,
			OperatingWon:     p.OperatingExpensesWon,
			LivingCostWon:    living,
			OtherExpensesWon: p.OtherExpensesWon,
			NetWon:           net,
			CumulativeNetWon: result.TotalNetWon,
		})
	}
	result.AverageNetWon = decimal.NewFromInt(result.TotalNetWon).
		Div(decimal.NewFromInt(int64(p.Months))).
		Round(0).
		IntPart()
	return result, nil
}
