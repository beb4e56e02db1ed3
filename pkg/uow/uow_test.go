package uow

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/suite"
)

type UOWTestSuite struct {
	suite.Suite
}

func TestUOWSuite(t *testing.T) {
	suite.Run(t, new(UOWTestSuite))
}

type fakeRepo struct {
	db DBTX
}

func (s *UOWTestSuite) TestRegister() {
	u := NewUnitOfWork(nil)
	factory := func(db DBTX) Repository { return &fakeRepo{db: db} }

	s.Require().NoError(u.Register("fake", factory))
	s.Require().ErrorIs(u.Register("fake", factory), ErrRepositoryAlreadyRegistered)

	_, err := u.GetRepository("missing")
	s.Require().ErrorIs(err, ErrRepositoryNotRegistered)

	_, err = GetRepositoryAs[fmt.Stringer](u, "fake")
	s.Require().ErrorIs(err, ErrInvalidRepositoryType)
}

func (s *UOWTestSuite) TestOptions() {
	u := NewUnitOfWork(nil, WithIsoLevel(pgx.Serializable), WithMaxRetries(5))
	s.Equal(pgx.Serializable, u.txOptions.IsoLevel)
	s.Equal(5, u.maxRetries)

	u = NewUnitOfWork(nil, WithMaxRetries(-1))
	s.Equal(defaultMaxRetries, u.maxRetries)
}

func (s *UOWTestSuite) TestTransactionGet() {
	tx := NewTransaction(nil, map[RepositoryName]RepositoryFactory{
		"fake": func(db DBTX) Repository { return &fakeRepo{db: db} },
	})

	repo, err := GetAs[*fakeRepo](tx, "fake")
	s.Require().NoError(err)
	s.NotNil(repo)

	_, err = GetAs[*fakeRepo](tx, "missing")
	s.Require().ErrorIs(err, ErrRepositoryNotRegistered)
}

func (s *UOWTestSuite) TestIsRetryable() {
	s.True(isRetryable(fmt.Errorf("wrapped: %w", &pgconn.PgError{Code: serializationFailureCode})))
	s.True(isRetryable(&pgconn.PgError{Code: deadlockDetectedCode}))
	s.False(isRetryable(&pgconn.PgError{Code: "23505"}))
	s.False(isRetryable(errors.New("boom")))
}
