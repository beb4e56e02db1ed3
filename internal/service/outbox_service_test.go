package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fsdevblog/groph-invest/internal/domain"
	"github.com/fsdevblog/groph-invest/internal/repository/repoargs"
	"github.com/fsdevblog/groph-invest/internal/service/mocks"
	"github.com/fsdevblog/groph-invest/pkg/uow"
	uowmocks "github.com/fsdevblog/groph-invest/pkg/uow/mocks"
	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
)

type OutboxServiceTestSuite struct {
	suite.Suite
	mockCtrl       *gomock.Controller
	mockUOW        *uowmocks.MockUOW
	mockTX         *uowmocks.MockTX
	mockOutboxRepo *mocks.MockOutboxRepository
	service        *OutboxService
}

func TestOutboxServiceSuite(t *testing.T) {
	suite.Run(t, new(OutboxServiceTestSuite))
}

func (s *OutboxServiceTestSuite) SetupTest() {
	s.mockCtrl = gomock.NewController(s.T())
	s.mockUOW = uowmocks.NewMockUOW(s.mockCtrl)
	s.mockTX = uowmocks.NewMockTX(s.mockCtrl)
	s.mockOutboxRepo = mocks.NewMockOutboxRepository(s.mockCtrl)

	s.mockUOW.EXPECT().
		GetRepository(uow.RepositoryName(repoargs.OutboxRepoName)).
		Return(s.mockOutboxRepo, nil).AnyTimes()

	var err error
	s.service, err = NewOutboxService(s.mockUOW)
	s.Require().NoError(err)
	s.service.SetMaxAttempts(3)
}

func (s *OutboxServiceTestSuite) TearDownTest() {
	s.mockCtrl.Finish()
}

// expectTx настраивает uow на выполнение функции транзакции с моком TX.
func (s *OutboxServiceTestSuite) expectTx() {
	s.mockUOW.EXPECT().Do(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, fn func(context.Context, uow.TX) error) error {
			return fn(ctx, s.mockTX)
		})
	s.mockTX.EXPECT().
		Get(uow.RepositoryName(repoargs.OutboxRepoName)).
		Return(s.mockOutboxRepo, nil)
}

func (s *OutboxServiceTestSuite) TestClaimPending() {
	events := []domain.OutboxEvent{
		{ID: uuid.New(), Kind: domain.EventKindEmail, UserID: 1, Status: domain.EventStatusProcessing},
	}
	s.mockOutboxRepo.EXPECT().
		Claim(gomock.Any(), repoargs.OutboxClaim{Limit: 20, StaleAfter: 5 * time.Minute}).
		Return(events, nil)

	claimed, err := s.service.ClaimPending(s.T().Context(), 20)
	s.Require().NoError(err)
	s.Equal(events, claimed)
}

func (s *OutboxServiceTestSuite) TestCompleteDelivery() {
	sent1, sent2, failed := uuid.New(), uuid.New(), uuid.New()
	s.expectTx()

	// доставленные события помечаются одним вызовом, неудачные - по одному.
	s.mockOutboxRepo.EXPECT().MarkSent(gomock.Any(), []uuid.UUID{sent1, sent2}).Return(nil)
	s.mockOutboxRepo.EXPECT().MarkFailed(gomock.Any(), repoargs.OutboxFailure{
		ID:          failed,
		Error:       "kafka: leader not available",
		MaxAttempts: 3,
	}).Return(nil)

	err := s.service.CompleteDelivery(s.T().Context(), []DeliveryResult{
		{EventID: sent1},
		{EventID: failed, Error: errors.New("kafka: leader not available")},
		{EventID: sent2},
	})
	s.Require().NoError(err)
}

func (s *OutboxServiceTestSuite) TestCompleteDeliveryOnlyFailures() {
	failed := uuid.New()
	s.expectTx()

	s.mockOutboxRepo.EXPECT().MarkSent(gomock.Any(), gomock.Any()).Times(0)
	s.mockOutboxRepo.EXPECT().MarkFailed(gomock.Any(), gomock.Any()).Return(errors.New("conn reset"))

	err := s.service.CompleteDelivery(s.T().Context(), []DeliveryResult{
		{EventID: failed, Error: domain.ErrExternalService},
	})
	s.Require().Error(err)
	s.Contains(err.Error(), "conn reset")
}
