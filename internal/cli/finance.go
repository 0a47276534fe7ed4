package cli

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// runTool executes a calculator tool with the flags that were set on cmd.
func (c *CLI) runTool(cmd *cobra.Command, tool string, names map[string]string) error {
	args := make(map[string]any)
	cmd.Flags().Visit(func(flag *pflag.Flag) {
		if arg, ok := names[flag.Name]; ok {
			args[arg] = flag.Value.String()
		}
	})
	return c.withApp(cmd, func(ctx context.Context, a *app) error {
		result, err := a.registry.Execute(ctx, tool, args)
		if emitErr := c.emit(cmd.OutOrStdout(), "", result); emitErr != nil {
			return emitErr
		}
		return err
	})
}

func (c *CLI) newLoanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "loan",
		Short:   "Print a loan amortization schedule",
		Example: "  realestate loan --principal 120000000 --rate 0.04 --term 360",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.runTool(cmd, "calculate_loan", map[string]string{
				"principal": "principal",
				"rate":      "annual_rate",
				"term":      "term_months",
				"method":    "method",
			})
		},
	}
	cmd.Flags().Int64("principal", 0, "loan principal in won")
	cmd.Flags().Float64("rate", 0, "annual rate as a fraction")
	cmd.Flags().Int("term", 0, "term in months")
	cmd.Flags().String("method", "equal_installment", "equal_installment or equal_principal")
	return cmd
}

func (c *CLI) newGrowthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "growth",
		Short: "Print compound growth per period",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.runTool(cmd, "calculate_compound_growth", map[string]string{
				"principal":    "principal",
				"rate":         "annual_rate",
				"periods":      "periods",
				"frequency":    "frequency",
				"contribution": "contribution",
			})
		},
	}
	cmd.Flags().Int64("principal", 0, "starting amount in won")
	cmd.Flags().Float64("rate", 0, "annual rate as a fraction")
	cmd.Flags().Int("periods", 0, "number of years")
	cmd.Flags().Int("frequency", 1, "compounding steps per year")
	cmd.Flags().Int64("contribution", 0, "amount added at every step")
	return cmd
}

func (c *CLI) newCashflowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cashflow",
		Short: "Print monthly net cashflow",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.runTool(cmd, "calculate_monthly_cashflow", map[string]string{
				"months":       "months",
				"income":       "income",
				"loan-payment": "loan_payment",
				"operating":    "operating_expenses",
				"living":       "living_cost",
				"other":        "other_expenses",
				"principal":    "loan_principal",
				"rate":         "loan_annual_rate",
				"term":         "loan_term_months",
				"method":       "loan_method",
			})
		},
	}
	cmd.Flags().Int("months", 0, "number of months")
	cmd.Flags().Int64("income", 0, "monthly income in won")
	cmd.Flags().Int64("loan-payment", 0, "fixed monthly loan payment")
	cmd.Flags().Int64("operating", 0, "monthly operating expenses")
	cmd.Flags().Int64("living", 0, "monthly living cost; 0 means 40% of income")
	cmd.Flags().Int64("other", 0, "other monthly expenses")
	cmd.Flags().Int64("principal", 0, "derive the loan payment from this principal")
	cmd.Flags().Float64("rate", 0, "annual rate of that loan")
	cmd.Flags().Int("term", 0, "term of that loan in months")
	cmd.Flags().String("method", "", "repayment method of that loan")
	return cmd
}
