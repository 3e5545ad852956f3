package usecase

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// minSeasonalMonths is how many distinct calendar months of history a
// product needs before its own seasonality is trusted.
const minSeasonalMonths = 3

var seasonalThreshold = decimal.NewFromInt(10)

type BuyTiming string

const (
	TimingUnknown    BuyTiming = "unknown"
	TimingBestMonth  BuyTiming = "best_month"
	TimingGoodSeason BuyTiming = "good_season"
	TimingWait       BuyTiming = "wait"
	TimingAverage    BuyTiming = "average"
)

type PriceLevel string

const (
	LevelNearAverage  PriceLevel = "near_average"
	LevelAboveAverage PriceLevel = "above_average"
	LevelBelowAverage PriceLevel = "below_average"
)

// SeasonalOutlook says when a product has historically been cheapest and
// where the current price sits against the monthly averages.
type SeasonalOutlook struct {
	HasHistory          bool
	Monthly             map[time.Month]decimal.Decimal
	BestMonth           time.Month
	WorstMonth          time.Month
	BestSavingPercent   decimal.Decimal
	CurrentVsAvgPercent decimal.Decimal
	Timing              BuyTiming
	MonthsToWait        int
	Level               PriceLevel
	CategoryTip         string
	Recommendation      string
}

type categoryTrend struct {
	keyword     string
	bestMonths  []time.Month
	worstMonths []time.Month
	tip         string
}

var categoryTrends = []categoryTrend{
	{"электроника", months(1, 2, 3, 11), months(9, 12), "Electronics get cheaper after New Year and on Black Friday."},
	{"одежда", months(1, 2, 7, 8), months(3, 4, 9, 10), "Clothing is cheapest at the seasonal sales (Jan-Feb, Jul-Aug)."},
	{"обувь", months(1, 2, 7, 8), months(3, 9, 10), "Footwear gets cheaper at the end of the season."},
	{"бытовая техника", months(1, 2, 3, 11), months(8, 9, 12), "Appliances are best bought early in the year or on Black Friday."},
	{"косметика", months(1, 3, 11), months(2, 12), "Cosmetics get pricier before March 8 and New Year."},
	{"детские товары", months(1, 2, 6), months(8, 9, 12), "Kids' goods get pricier before school (Aug-Sep) and New Year."},
	{"спорт", months(1, 2, 7), months(3, 4, 9), "Sports goods are cheaper in winter and mid-summer."},
}

var defaultTrend = categoryTrend{
	bestMonths:  months(1, 2, 11),
	worstMonths: months(12),
	tip:         "The best time to shop is right after New Year and on Black Friday.",
}

func months(values ...int) []time.Month {
	out := make([]time.Month, len(values))
	for i, v := range values {
		out[i] = time.Month(v)
	}
	return out
}

func trendFor(category string) categoryTrend {
	category = strings.ToLower(category)
	for _, trend := range categoryTrends {
		if strings.Contains(category, trend.keyword) {
			return trend
		}
	}
	return defaultTrend
}

func containsMonth(list []time.Month, month time.Month) bool {
	for _, m := range list {
		if m == month {
			return true
		}
	}
	return false
}

// seasonalOutlook builds the outlook from per-month averages. Ties on the
// best or worst month go to the earlier month.
func seasonalOutlook(monthly map[time.Month]decimal.Decimal, current decimal.Decimal, category string, now time.Month) SeasonalOutlook {
	trend := trendFor(category)
	outlook := SeasonalOutlook{
		Timing:      TimingUnknown,
		Level:       LevelNearAverage,
		CategoryTip: trend.tip,
	}
	if len(monthly) < minSeasonalMonths {
		outlook.Recommendation = "Not enough price history for a personal forecast yet.\n\n💡 " + trend.tip
		return outlook
	}

	outlook.HasHistory = true
	outlook.Monthly = monthly

	sum := decimal.Zero
	for month := time.January; month <= time.December; month++ {
		price, ok := monthly[month]
		if !ok {
			continue
		}
		sum = sum.Add(price)
		if outlook.BestMonth == 0 || price.LessThan(monthly[outlook.BestMonth]) {
			outlook.BestMonth = month
		}
		if outlook.WorstMonth == 0 || price.GreaterThan(monthly[outlook.WorstMonth]) {
			outlook.WorstMonth = month
		}
	}
	outlook.BestSavingPercent = percentBelow(monthly[outlook.WorstMonth], monthly[outlook.BestMonth]).Round(1)

	avg := sum.Div(decimal.NewFromInt(int64(len(monthly))))
	if avg.IsPositive() {
		outlook.CurrentVsAvgPercent = current.Sub(avg).Div(avg).Mul(hundred).Round(1)
	}

	best := outlook.BestMonth
	saving := outlook.BestSavingPercent.StringFixed(0)
	var recommendation string
	switch {
	case now == best:
		outlook.Timing = TimingBestMonth
		recommendation = fmt.Sprintf("🎉 Now is the best time to buy!\nHistorically %s is the cheapest month (up to %s%% lower).", best, saving)
	case containsMonth(trend.bestMonths, now):
		outlook.Timing = TimingGoodSeason
		recommendation = "✅ Good time to buy.\nThis month is usually one of the cheapest for the category."
	case containsMonth(trend.worstMonths, now):
		outlook.Timing = TimingWait
		outlook.MonthsToWait = (int(best) - int(now) + 12) % 12
		recommendation = fmt.Sprintf("⏳ Better to wait.\nThe price usually drops by %s%% in %s (in ~%d months).", saving, best, outlook.MonthsToWait)
	default:
		outlook.Timing = TimingAverage
		recommendation = fmt.Sprintf("🤔 Average period.\nThe cheapest month is %s (%s%% lower). Buying now is fine, but a lower price is possible.", best, saving)
	}

	switch diff := outlook.CurrentVsAvgPercent; {
	case diff.GreaterThan(seasonalThreshold):
		outlook.Level = LevelAboveAverage
		recommendation += fmt.Sprintf("\n\n⚠️ The current price is %s%% above average. Consider waiting.", diff.StringFixed(0))
	case diff.LessThan(seasonalThreshold.Neg()):
		outlook.Level = LevelBelowAverage
		recommendation += fmt.Sprintf("\n\n🎉 The current price is %s%% below average. Good deal!", diff.Abs().StringFixed(0))
	}
	outlook.Recommendation = recommendation
	return outlook
}
