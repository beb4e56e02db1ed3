package pgrepo

import (
	"testing"
	"time"

	"github.com/fsdevblog/groph-invest/internal/domain"
	"github.com/fsdevblog/groph-invest/internal/repository/repoargs"
	"github.com/stretchr/testify/suite"
)

type LedgerQueryTestSuite struct {
	suite.Suite
}

func TestLedgerQuerySuite(t *testing.T) {
	suite.Run(t, new(LedgerQueryTestSuite))
}

func (s *LedgerQueryTestSuite) TestBuildLedgerQuery() {
	from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	query, args := buildLedgerQuery(7, repoargs.LedgerFilter{})
	s.Contains(query, "WHERE user_id = $1 ORDER BY created_at DESC, id DESC")
	s.Equal([]any{int64(7)}, args)

	query, args = buildLedgerQuery(7, repoargs.LedgerFilter{
		Types: []domain.EntryType{domain.EntryTypeDeposit, domain.EntryTypeWithdrawal},
		Asset: "usdt",
		From:  &from,
		Page:  repoargs.Page{Limit: 20, Offset: 40},
	})
	s.Contains(query, "entry_type = ANY($2)")
	s.Contains(query, "asset = $3")
	s.Contains(query, "created_at >= $4")
	s.NotContains(query, "created_at <")
	s.Contains(query, "LIMIT $5")
	s.Contains(query, "OFFSET $6")
	s.Equal([]any{int64(7), []string{"DEPOSIT", "WITHDRAWAL"}, "USDT", from, uint(20), uint(40)}, args)
}
