package finance

import (
	"math"

	"github.com/shopspring/decimal"

	"realestate/internal/apperr"
)

const maxGrowthSteps = 120000

var maxWon = decimal.NewFromInt(math.MaxInt64)

// GrowthParameters describe discrete compounding over whole periods
// (usually years). Each period compounds Frequency times at
// AnnualRate/Frequency; ContributionWon is added after every compounding
// step.
type GrowthParameters struct {
	PrincipalWon    int64   `json:"principal_won"`
	AnnualRate      float64 `json:"annual_rate"`
	Periods         int     `json:"periods"`
	Frequency       int     `json:"frequency"`
	ContributionWon int64   `json:"contribution_won"`
}

type GrowthPoint struct {
	Period   int   `json:"period"`
	ValueWon int64 `json:"value_won"`
}

type GrowthResult struct {
	Values              []GrowthPoint `json:"values"`
	FinalValueWon       int64         `json:"final_value_won"`
	TotalContributedWon int64         `json:"total_contributed_won"`
	TotalGainWon        int64         `json:"total_gain_won"`
	EffectiveAnnualRate float64       `json:"effective_annual_rate"`
}

// CompoundGrowth returns the value at the end of every period, starting
// with the principal at period 0.
func CompoundGrowth(p GrowthParameters) (GrowthResult, error) {
	if err := validateGrowth(p); err != nil {
		return GrowthResult{}, err
	}

	step := decimal.NewFromFloat(p.AnnualRate).Div(decimal.NewFromInt(int64(p.Frequency)))
	factor := step.Add(decimal.NewFromInt(1))
	contribution := decimal.NewFromInt(p.ContributionWon)

	value := decimal.NewFromInt(p.PrincipalWon)
	values := make([]GrowthPoint, 0, p.Periods+1)
	values = append(values, GrowthPoint{Period: 0, ValueWon: p.PrincipalWon})
	for period := 1; period <= p.Periods; period++ {
		for i := 0; i < p.Frequency; i++ {
			value = value.Mul(factor).Add(contribution).Round(12)
		}
		if value.GreaterThan(maxWon) {
			return GrowthResult{}, apperr.InvalidInput("periods", "value exceeds the representable range after %d periods", period)
		}
		values = append(values, GrowthPoint{Period: period, ValueWon: value.Round(0).IntPart()})
	}

	final := values[len(values)-1].ValueWon
	contributed := p.PrincipalWon + p.ContributionWon*int64(p.Periods*p.Frequency)
	effective, _ := factor.Pow(decimal.NewFromInt(int64(p.Frequency))).Sub(decimal.NewFromInt(1)).Round(10).Float64()

	return GrowthResult{
		Values:              values,
		FinalValueWon:       final,
		TotalContributedWon: contributed,
		TotalGainWon:        final - contributed,
		EffectiveAnnualRate: effective,
	}, nil
}

func validateGrowth(p GrowthParameters) error {
	if p.Periods < 1 {
		return apperr.InvalidInput("periods", "periods must be at least 1")
	}
	if p.Frequency < 1 {
		return apperr.InvalidInput("frequency", "compounding frequency must be at least 1")
	}
	if p.Periods*p.Frequency > maxGrowthSteps {
		return apperr.InvalidInput("periods", "periods × frequency must not exceed %d", maxGrowthSteps)
	}
	if p.PrincipalWon < 0 {
		return apperr.InvalidInput("principal", "principal must not be negative")
	}
	if p.ContributionWon < 0 {
		return apperr.InvalidInput("contribution", "contribution must not be negative")
	}
	if math.IsNaN(p.AnnualRate) || math.IsInf(p.AnnualRate, 0) {
		return apperr.InvalidInput("annual_rate", "annual rate must be a finite number")
	}
	if p.AnnualRate/float64(p.Frequency) <= -1 {
		return apperr.InvalidInput("annual_rate", "annual rate would wipe out the balance in one step")
	}
	return nil
}
