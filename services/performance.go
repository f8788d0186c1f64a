package services

import (
	"time"

	"github.com/shopspring/decimal"
)

// riskFreeRate is the annual risk-free return, in percent, used by SharpeRatio.
var riskFreeRate = decimal.NewFromInt(2)

var tradingDaysPerYear = decimal.NewFromInt(252)

// TimeRange bounds a performance query.
type TimeRange string

const (
	RangeWeek    TimeRange = "week"
	RangeMonth   TimeRange = "month"
	RangeQuarter TimeRange = "quarter"
	RangeYear    TimeRange = "year"
	RangeAll     TimeRange = "all"
)

// Since returns the first instant included in r, counted back from now.
func (r TimeRange) Since(now time.Time) time.Time {
	switch r {
	case RangeWeek:
		return now.AddDate(0, 0, -7)
	case RangeMonth:
		return now.AddDate(0, -1, 0)
	case RangeQuarter:
		return now.AddDate(0, -3, 0)
	case RangeYear:
		return now.AddDate(-1, 0, 0)
	}
	return now.AddDate(-2, 0, 0)
}

// DailyReturn is the change from previous to current in percent, six places.
func DailyReturn(previous, current decimal.Decimal) decimal.Decimal {
	if !previous.IsPositive() {
		return decimal.Zero
	}
	return current.Sub(previous).Div(previous).Mul(hundred).Round(6)
}

// DailyReturns converts a series of end-of-day asset values into percentage returns.
func DailyReturns(assets []decimal.Decimal) []decimal.Decimal {
	if len(assets) < 2 {
		return nil
	}
	out := make([]decimal.Decimal, 0, len(assets)-1)
	for i := 1; i < len(assets); i++ {
		out = append(out, DailyReturn(assets[i-1], assets[i]))
	}
	return out
}

// MaxDrawdown is the largest peak-to-trough fall of the series, in percent.
func MaxDrawdown(assets []decimal.Decimal) decimal.Decimal {
	peak := decimal.Zero
	worst := decimal.Zero
	for _, a := range assets {
		if a.GreaterThan(peak) {
			peak = a
			continue
		}
		if !peak.IsPositive() {
			continue
		}
		if dd := peak.Sub(a).Div(peak).Mul(hundred); dd.GreaterThan(worst) {
			worst = dd
		}
	}
	return worst.Round(6)
}

// Volatility is the sample standard deviation of returns. Fewer than two points yield zero.
func Volatility(returns []decimal.Decimal) decimal.Decimal {
	if len(returns) < 2 {
		return decimal.Zero
	}
	mean := decimal.Sum(returns[0], returns[1:]...).Div(decimal.NewFromInt(int64(len(returns))))
	sq := decimal.Zero
	for _, r := range returns {
		d := r.Sub(mean)
		sq = sq.Add(d.Mul(d))
	}
	return sqrtDecimal(sq.Div(decimal.NewFromInt(int64(len(returns) - 1))))
}

// SharpeRatio annualises the mean excess daily return over its volatility.
// It is undefined (nil) for fewer than two returns or a flat series.
func SharpeRatio(returns []decimal.Decimal) *decimal.Decimal {
	vol := Volatility(returns)
	if !vol.IsPositive() {
		return nil
	}
	n := decimal.NewFromInt(int64(len(returns)))
	mean := decimal.Sum(returns[0], returns[1:]...).Div(n)
	excess := mean.Sub(riskFreeRate.Div(tradingDaysPerYear))
	ratio := excess.Div(vol).Mul(sqrtDecimal(tradingDaysPerYear)).Round(6)
	return &ratio
}
