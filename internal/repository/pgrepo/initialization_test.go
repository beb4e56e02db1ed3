package pgrepo

import (
	"testing"

	"github.com/fsdevblog/groph-invest/internal/repository/repoargs"
	"github.com/fsdevblog/groph-invest/pkg/uow"
	"github.com/stretchr/testify/suite"
)

type RegisterTestSuite struct {
	suite.Suite
}

func TestRegisterSuite(t *testing.T) {
	suite.Run(t, new(RegisterTestSuite))
}

func (s *RegisterTestSuite) TestRegisterRepositories() {
	u := uow.NewUnitOfWork(nil)
	s.Require().NoError(RegisterRepositories(u))

	wallets, err := uow.GetRepositoryAs[*WalletRepository](u, uow.RepositoryName(repoargs.WalletRepoName))
	s.Require().NoError(err)
	s.NotNil(wallets)

	ledger, err := uow.GetRepositoryAs[*LedgerRepository](u, uow.RepositoryName(repoargs.LedgerRepoName))
	s.Require().NoError(err)
	s.NotNil(ledger)

	// повторная регистрация запрещена.
	s.Require().ErrorIs(RegisterRepositories(u), uow.ErrRepositoryAlreadyRegistered)
}
