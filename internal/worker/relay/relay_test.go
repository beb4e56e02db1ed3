package relay

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fsdevblog/groph-invest/internal/domain"
	"github.com/fsdevblog/groph-invest/internal/metrics"
	"github.com/fsdevblog/groph-invest/internal/service"
	"github.com/fsdevblog/groph-invest/internal/worker/relay/mocks"
	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/suite"
)

type RelayTestSuite struct {
	suite.Suite
	ctrl         *gomock.Controller
	mockOutbox   *mocks.MockOutbox
	mockKafka    *mocks.MockPublisher
	mockPush     *mocks.MockPublisher
	mockEmail    *mocks.MockPublisher
	mockRecorder *mocks.MockRecorder
	relay        *Relay
}

func TestRelaySuite(t *testing.T) {
	suite.Run(t, new(RelayTestSuite))
}

func (s *RelayTestSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.mockOutbox = mocks.NewMockOutbox(s.ctrl)
	s.mockKafka = mocks.NewMockPublisher(s.ctrl)
	s.mockPush = mocks.NewMockPublisher(s.ctrl)
	s.mockEmail = mocks.NewMockPublisher(s.ctrl)
	s.mockRecorder = mocks.NewMockRecorder(s.ctrl)

	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)

	s.relay = New(s.mockOutbox, logger).
		Route(domain.EventKindNotification, s.mockKafka, s.mockPush).
		Route(domain.EventKindEmail, s.mockEmail).
		SetRecorder(s.mockRecorder).
		SetWorkers(2)
}

func (s *RelayTestSuite) TearDownTest() {
	s.ctrl.Finish()
}

// TestProcess_NoEvents нет событий для доставки.
func (s *RelayTestSuite) TestProcess_NoEvents() {
	s.mockOutbox.EXPECT().ClaimPending(gomock.Any(), s.relay.limitPerIteration).Return(nil, nil)

	err := s.relay.process(s.T().Context())
	s.Require().ErrorIs(err, ErrNoEvents)
}

func (s *RelayTestSuite) TestProcess_ClaimError() {
	s.mockOutbox.EXPECT().ClaimPending(gomock.Any(), gomock.Any()).Return(nil, errors.New("conn refused"))

	err := s.relay.process(s.T().Context())
	s.Require().Error(err)
	s.NotErrorIs(err, ErrNoEvents)
}

// TestProcess_Delivery проверяет маршрутизацию по виду события и сохранение результатов доставки.
func (s *RelayTestSuite) TestProcess_Delivery() {
	notification := domain.OutboxEvent{ID: uuid.New(), Kind: domain.EventKindNotification, UserID: 1}
	email := domain.OutboxEvent{ID: uuid.New(), Kind: domain.EventKindEmail, UserID: 1}
	brokenPush := domain.OutboxEvent{ID: uuid.New(), Kind: domain.EventKindNotification, UserID: 2}
	unrouted := domain.OutboxEvent{ID: uuid.New(), Kind: domain.EventKindPush, UserID: 3}

	s.mockOutbox.EXPECT().ClaimPending(gomock.Any(), gomock.Any()).
		Return([]domain.OutboxEvent{notification, email, brokenPush, unrouted}, nil)

	s.mockKafka.EXPECT().Publish(gomock.Any(), notification).Return(nil)
	s.mockPush.EXPECT().Publish(gomock.Any(), notification).Return(nil)
	s.mockEmail.EXPECT().Publish(gomock.Any(), email).Return(nil)
	s.mockKafka.EXPECT().Publish(gomock.Any(), brokenPush).Return(nil)
	s.mockPush.EXPECT().Publish(gomock.Any(), brokenPush).Return(errors.New("redis: connection pool timeout"))

	s.mockRecorder.EXPECT().RelayEvent(string(domain.EventKindNotification), metrics.ResultSuccess)
	s.mockRecorder.EXPECT().RelayEvent(string(domain.EventKindEmail), metrics.ResultSuccess)
	s.mockRecorder.EXPECT().RelayEvent(string(domain.EventKindNotification), metrics.ResultError)
	s.mockRecorder.EXPECT().RelayEvent(string(domain.EventKindPush), metrics.ResultError)

	s.mockOutbox.EXPECT().CompleteDelivery(gomock.Any(), gomock.Len(4)).
		DoAndReturn(func(_ context.Context, results []service.DeliveryResult) error {
			byID := make(map[uuid.UUID]error, len(results))
			for _, r := range results {
				byID[r.EventID] = r.Error
			}
			s.NoError(byID[notification.ID])
			s.NoError(byID[email.ID])
			s.ErrorIs(byID[brokenPush.ID], domain.ErrExternalService)
			s.ErrorIs(byID[unrouted.ID], domain.ErrExternalService)
			return nil
		})

	s.Require().NoError(s.relay.process(s.T().Context()))
}

func (s *RelayTestSuite) TestProcess_CompleteError() {
	event := domain.OutboxEvent{ID: uuid.New(), Kind: domain.EventKindEmail}
	s.mockOutbox.EXPECT().ClaimPending(gomock.Any(), gomock.Any()).Return([]domain.OutboxEvent{event}, nil)
	s.mockEmail.EXPECT().Publish(gomock.Any(), event).Return(nil)
	s.mockRecorder.EXPECT().RelayEvent(gomock.Any(), gomock.Any())
	s.mockOutbox.EXPECT().CompleteDelivery(gomock.Any(), gomock.Any()).Return(errors.New("tx aborted"))

	s.Require().Error(s.relay.process(s.T().Context()))
}

// TestRun_StopsOnCancel цикл завершается после отмены контекста.
func (s *RelayTestSuite) TestRun_StopsOnCancel() {
	ctx, cancel := context.WithCancel(s.T().Context())
	s.relay.SetIdleInterval(10 * time.Millisecond)

	s.mockOutbox.EXPECT().ClaimPending(gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, uint) ([]domain.OutboxEvent, error) {
			cancel()
			return nil, nil
		}).MinTimes(1)

	done := make(chan struct{})
	go func() {
		s.relay.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		s.Fail("relay did not stop")
	}
}

func (s *RelayTestSuite) TestJitter() {
	for range 100 {
		d := jitterDuration(time.Second)
		s.GreaterOrEqual(d, 790*time.Millisecond)
		s.LessOrEqual(d, 1210*time.Millisecond)
	}
}
