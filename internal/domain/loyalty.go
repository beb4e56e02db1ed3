package domain

import "github.com/shopspring/decimal"

var tierThresholds = []struct {
	tier   Tier
	points decimal.Decimal
}{
	{TierElite, decimal.NewFromInt(100000)},  //nolint:mnd
	{TierPremium, decimal.NewFromInt(20000)}, //nolint:mnd
	{TierGold, decimal.NewFromInt(5000)},     //nolint:mnd
	{TierSilver, decimal.NewFromInt(1000)},   //nolint:mnd
}

// TierForPoints возвращает уровень лояльности для накопленных баллов.
func TierForPoints(points decimal.Decimal) Tier {
	for _, t := range tierThresholds {
		if points.GreaterThanOrEqual(t.points) {
			return t.tier
		}
	}
	return TierBronze
}
