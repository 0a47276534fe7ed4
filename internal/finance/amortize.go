// Package finance holds the network-independent calculators: loan
// amortization, compound growth and monthly cashflow.
//
// All money is in won. Intermediate arithmetic uses decimal values and is
// rounded to whole won only where an amount is reported.
package finance

import (
	"math"

	"github.com/shopspring/decimal"

	"realestate/internal/apperr"
)

type Method string

const (
	EqualInstallment Method = "equal_installment"
	EqualPrincipal   Method = "equal_principal"
)

const MaxTermMonths = 1200

var twelve = decimal.NewFromInt(12)

type LoanParameters struct {
	PrincipalWon int64   `json:"principal_won"`
	AnnualRate   float64 `json:"annual_rate"`
	TermMonths   int     `json:"term_months"`
	Method       Method  `json:"method"`
}

type Installment struct {
	Month        int   `json:"month"`
	PrincipalWon int64 `json:"principal_won"`
	InterestWon  int64 `json:"interest_won"`
	PaymentWon   int64 `json:"payment_won"`
	BalanceWon   int64 `json:"balance_won"`
}

type CashflowResult struct {
	Method            Method        `json:"method"`
	MonthlyPaymentWon int64         `json:"monthly_payment_won"`
	TotalInterestWon  int64         `json:"total_interest_won"`
	TotalPaymentWon   int64         `json:"total_payment_won"`
	Schedule          []Installment `json:"schedule"`
	Warnings          []string      `json:"warnings,omitempty"`
}

// Amortize builds the monthly schedule of a loan.
//
// Equal installments pay the annuity amount every month; equal principal
// pays principal/term plus interest on the remaining balance. In both, the
// final month settles whatever balance rounding left behind, so principal
// payments always sum to the loan principal exactly.
func Amortize(p LoanParameters) (CashflowResult, error) {
	if p.Method == "" {
		p.Method = EqualInstallment
	}
	warnings, err := validateLoan(p)
	if err != nil {
		return CashflowResult{}, err
	}

	rate := monthlyRate(p.AnnualRate)
	var schedule []Installment
	if p.Method == EqualPrincipal {
		schedule = equalPrincipal(p.PrincipalWon, rate, p.TermMonths)
	} else {
		schedule = equalInstallment(p.PrincipalWon, rate, p.TermMonths)
	}

	result := CashflowResult{
		Method:            p.Method,
		MonthlyPaymentWon: schedule[0].PaymentWon,
		Schedule:          schedule,
		Warnings:          warnings,
	}
	for _, row := range schedule {
		result.TotalInterestWon += row.InterestWon
		result.TotalPaymentWon += row.PaymentWon
	}
	return result, nil
}

func validateLoan(p LoanParameters) ([]string, error) {
	switch p.Method {
	case EqualInstallment, EqualPrincipal:
	default:
		return nil, apperr.InvalidInput("method", "method must be %s or %s", EqualInstallment, EqualPrincipal)
	}
	if p.PrincipalWon <= 0 {
		return nil, apperr.InvalidInput("principal", "principal must be positive")
	}
	if p.TermMonths < 1 || p.TermMonths > MaxTermMonths {
		return nil, apperr.InvalidInput("term_months", "term must be between 1 and %d months", MaxTermMonths)
	}
	if math.IsNaN(p.AnnualRate) || math.IsInf(p.AnnualRate, 0) {
		return nil, apperr.InvalidInput("annual_rate", "annual rate must be a finite number")
	}
	if p.AnnualRate < 0 {
		return nil, apperr.InvalidInput("annual_rate", "annual rate must not be negative")
	}

	var warnings []string
	if p.AnnualRate >= 1 {
		warnings = append(warnings, "annual rate is 100% or more; rates are fractions, 0.04 means 4%")
	}
	return warnings, nil
}

func monthlyRate(annual float64) decimal.Decimal {
	return decimal.NewFromFloat(annual).Div(twelve)
}

func equalInstallment(principal int64, rate decimal.Decimal, term int) []Installment {
	if rate.IsZero() {
		return equalPrincipal(principal, rate, term)
	}

	// payment = P * r * g / (g - 1), g = (1 + r)^n
	growth := rate.Add(decimal.NewFromInt(1)).Pow(decimal.NewFromInt(int64(term))).Round(24)
	payment := decimal.NewFromInt(principal).
		Mul(rate).
		Mul(growth).
		Div(growth.Sub(decimal.NewFromInt(1))).
		Round(0).
		IntPart()

	schedule := make([]Installment, 0, term)
	balance := principal
	for month := 1; month <= term; month++ {
		interest := interestOn(balance, rate)
		paid := payment - interest
		if month == term || paid > balance {
			paid = balance
		}
		balance -= paid
		schedule = append(schedule, Installment{
			Month:        month,
			PrincipalWon: paid,
			InterestWon:  interest,
			PaymentWon:   paid + interest,
			BalanceWon:   balance,
		})
	}
	return schedule
}

func equalPrincipal(principal int64, rate decimal.Decimal, term int) []Installment {
	base := principal / int64(term)

	schedule := make([]Installment, 0, term)
	balance := principal
	for month := 1; month <= term; month++ {
		interest := interestOn(balance, rate)
		paid := base
		if month == term {
			paid = balance
		}
		balance -= paid
		schedule = append(schedule, Installment{
			Month:        month,
			PrincipalWon: paid,
			InterestWon:  interest,
			PaymentWon:   paid + interest,
			BalanceWon:   balance,
		})
	}
	return schedule
}

func interestOn(balance int64, rate decimal.Decimal) int64 {
	if rate.IsZero() {
		return 0
	}
	return decimal.NewFromInt(balance).Mul(rate).Round(0).IntPart()
}
