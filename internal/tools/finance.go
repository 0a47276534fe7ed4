package tools

import (
	"context"

	"realestate/internal/apperr"
	"realestate/internal/finance"
)

func loanTool() Tool {
	return Tool{
		Name:        "calculate_loan",
		Description: "loan amortization schedule with equal installments or equal principal",
		InputSchema: objectSchema(map[string]any{
			"principal":   schemaProp("integer", "loan principal in won"),
			"annual_rate": schemaProp("number", "annual interest rate as a fraction, 0.04 for 4%"),
			"term_months": schemaProp("integer", "term in months"),
			"method": map[string]any{
				"type":        "string",
				"enum":        []string{string(finance.EqualInstallment), string(finance.EqualPrincipal)},
				"default":     string(finance.EqualInstallment),
				"description": "repayment method",
			},
		}, []string{"principal", "annual_rate", "term_months"}),
		run: func(ctx context.Context, args Args) (any, error) {
			params, err := loanParams(args, "principal", "annual_rate", "term_months", "method")
			if err != nil {
				return nil, err
			}
			return finance.Amortize(params)
		},
	}
}

func loanParams(args Args, principal, rate, term, method string) (finance.LoanParameters, error) {
	var params finance.LoanParameters
	var err error
	if params.PrincipalWon, err = args.Int64(principal); err != nil {
		return params, err
	}
	if params.AnnualRate, err = args.Float(rate); err != nil {
		return params, err
	}
	if params.TermMonths, err = args.Int(term); err != nil {
		return params, err
	}
	name, err := args.String(method)
	if err != nil {
		return params, err
	}
	params.Method = finance.Method(name)
	return params, nil
}

func growthTool() Tool {
	return Tool{
		Name:        "calculate_compound_growth",
		Description: "compound growth of a principal with optional contributions per compounding step",
		InputSchema: objectSchema(map[string]any{
			"principal":    schemaProp("integer", "starting amount in won"),
			"annual_rate":  schemaProp("number", "annual rate as a fraction"),
			"periods":      schemaProp("integer", "number of years"),
			"frequency":    schemaProp("integer", "compounding steps per year; defaults to 1"),
			"contribution": schemaProp("integer", "amount in won added at every compounding step"),
		}, []string{"principal", "annual_rate", "periods"}),
		run: func(ctx context.Context, args Args) (any, error) {
			var params finance.GrowthParameters
			var err error
			if params.PrincipalWon, err = args.Int64("principal"); err != nil {
				return nil, err
			}
			if params.AnnualRate, err = args.Float("annual_rate"); err != nil {
				return nil, err
			}
			if params.Periods, err = args.Int("periods"); err != nil {
				return nil, err
			}
			params.Frequency = 1
			if args.has("frequency") {
				if params.Frequency, err = args.Int("frequency"); err != nil {
					return nil, err
				}
			}
			if params.ContributionWon, err = args.Int64("contribution"); err != nil {
				return nil, err
			}
			return finance.CompoundGrowth(params)
		},
	}
}

// Cashflow is the calculate_monthly_cashflow payload. Loan is set when the
// payment was derived from loan terms.
type Cashflow struct {
	finance.NetCashflow
	Loan *finance.CashflowResult `json:"loan,omitempty"`
}

func cashflowTool() Tool {
	return Tool{
		Name:        "calculate_monthly_cashflow",
		Description: "monthly net cashflow after loan payment and expenses; living cost defaults to 40% of income",
		InputSchema: objectSchema(map[string]any{
			"months":             schemaProp("integer", "number of months; defaults to the loan term or 1"),
			"income":             schemaProp("integer", "monthly income in won"),
			"loan_payment":       schemaProp("integer", "fixed monthly loan payment in won"),
			"operating_expenses": schemaProp("integer", "monthly operating expenses in won"),
			"living_cost":        schemaProp("integer", "monthly living cost in won; 0 means 40% of income"),
			"other_expenses":     schemaProp("integer", "other monthly expenses in won"),
			"loan_principal":     schemaProp("integer", "derive the payment from a loan of this principal"),
			"loan_annual_rate":   schemaProp("number", "annual rate of that loan as a fraction"),
			"loan_term_months":   schemaProp("integer", "term of that loan in months"),
			"loan_method":        schemaProp("string", "equal_installment or equal_principal"),
		}, []string{"income"}),
		run: func(ctx context.Context, args Args) (any, error) {
			var params finance.CashflowParameters
			var err error
			if params.Months, err = args.Int("months"); err != nil {
				return nil, err
			}
			if params.IncomeWon, err = args.Int64("income"); err != nil {
				return nil, err
			}
			if params.LoanPaymentWon, err = args.Int64("loan_payment"); err != nil {
				return nil, err
			}
			if params.OperatingExpensesWon, err = args.Int64("operating_expenses"); err != nil {
				return nil, err
			}
			if params.LivingCostWon, err = args.Int64("living_cost"); err != nil {
				return nil, err
			}
			if params.OtherExpensesWon, err = args.Int64("other_expenses"); err != nil {
				return nil, err
			}

			var out Cashflow
			if args.has("loan_principal") {
				if args.has("loan_payment") {
					return nil, apperr.InvalidInput("loan_payment", "give either loan_payment or loan terms, not both")
				}
				loanArgs, err := loanParams(args, "loan_principal", "loan_annual_rate", "loan_term_months", "loan_method")
				if err != nil {
					return nil, err
				}
				loan, err := finance.Amortize(loanArgs)
				if err != nil {
					return nil, err
				}
				params.Schedule = loan.Schedule
				out.Loan = &loan
			}

			out.NetCashflow, err = finance.MonthlyCashflow(params)
			if err != nil {
				return nil, err
			}
			return out, nil
		},
	}
}
