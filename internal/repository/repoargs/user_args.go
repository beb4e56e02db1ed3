package repoargs

import (
	"github.com/fsdevblog/groph-invest/internal/domain"
	"github.com/shopspring/decimal"
)

type LoyaltyUpdate struct {
	UserID int64
	Points decimal.Decimal
	Tier   domain.Tier
}
