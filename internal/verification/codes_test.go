package verification

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/fsdevblog/groph-invest/internal/domain"
	"github.com/fsdevblog/groph-invest/internal/verification/mocks"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"
)

type CodesTestSuite struct {
	suite.Suite
	mockCtrl    *gomock.Controller
	mockStorage *mocks.MockStorage
	codes       *Codes
}

func TestCodesSuite(t *testing.T) {
	suite.Run(t, new(CodesTestSuite))
}

func (s *CodesTestSuite) SetupTest() {
	s.mockCtrl = gomock.NewController(s.T())
	s.mockStorage = mocks.NewMockStorage(s.mockCtrl)
	s.codes = NewCodes(s.mockStorage).SetHashCost(bcrypt.MinCost).SetTTL(time.Minute)
}

func (s *CodesTestSuite) TearDownTest() {
	s.mockCtrl.Finish()
}

// newRedisCodes возвращает коды поверх RedisStorage с эмуляцией Redis в памяти.
func (s *CodesTestSuite) newRedisCodes() (*Codes, *fakeRedis) {
	client := &fakeRedis{data: map[string]string{}, ttl: map[string]time.Duration{}}
	codes := NewCodes(NewRedisStorage(client)).SetHashCost(bcrypt.MinCost).SetTTL(time.Minute)
	return codes, client
}

func (s *CodesTestSuite) TestIssueAndRedeem() {
	codes, client := s.newRedisCodes()
	ctx := s.T().Context()

	code, err := codes.Issue(ctx, 7)
	s.Require().NoError(err)
	s.Regexp(regexp.MustCompile(`^\d{6}$`), code)
	// в хранилище лежит хеш, а не сам код.
	s.NotEqual(code, client.data["withdraw:code:7"])
	s.Equal(time.Minute, client.ttl["withdraw:code:7"])

	s.Require().ErrorIs(codes.Redeem(ctx, 7, "000000x"), domain.ErrInvalidVerificationCode)
	s.Require().NoError(codes.Redeem(ctx, 7, code))
	s.NotContains(client.data, "withdraw:code:7")

	// погашенный код не проходит второй раз.
	s.Require().ErrorIs(codes.Redeem(ctx, 7, code), domain.ErrInvalidVerificationCode)
}

func (s *CodesTestSuite) TestAttemptLimit() {
	codes, client := s.newRedisCodes()
	codes.SetMaxAttempts(3)
	ctx := s.T().Context()

	code, err := codes.Issue(ctx, 5)
	s.Require().NoError(err)

	for range 3 {
		s.Require().ErrorIs(codes.Redeem(ctx, 5, "wrong"), domain.ErrInvalidVerificationCode)
	}
	// после исчерпания попыток даже верный код отклоняется, а сам код удаляется.
	err = codes.Redeem(ctx, 5, code)
	s.Require().ErrorIs(err, ErrTooManyAttempts)
	s.Require().ErrorIs(err, domain.ErrInvalidVerificationCode)
	s.NotContains(client.data, "withdraw:code:5")

	// новый код сбрасывает счетчик.
	code, err = codes.Issue(ctx, 5)
	s.Require().NoError(err)
	s.Require().NoError(codes.Redeem(ctx, 5, code))
}

func (s *CodesTestSuite) TestRedeemConsumedConcurrently() {
	var storedHash string

	s.mockStorage.EXPECT().
		Set(gomock.Any(), "withdraw:code:4", gomock.Any(), time.Minute).
		DoAndReturn(func(_ context.Context, _, value string, _ time.Duration) error {
			storedHash = value
			return nil
		})
	s.mockStorage.EXPECT().Delete(gomock.Any(), "withdraw:attempts:4").Return(nil)
	s.mockStorage.EXPECT().Incr(gomock.Any(), "withdraw:attempts:4", time.Minute).Return(int64(1), nil)
	s.mockStorage.EXPECT().
		Get(gomock.Any(), "withdraw:code:4").
		DoAndReturn(func(_ context.Context, _ string) (string, error) {
			return storedHash, nil
		})
	// код успел погасить другой запрос между чтением и удалением.
	s.mockStorage.EXPECT().
		DeleteIfEqual(gomock.Any(), "withdraw:code:4", gomock.Any()).
		Return(false, nil)

	code, err := s.codes.Issue(s.T().Context(), 4)
	s.Require().NoError(err)
	s.Require().ErrorIs(s.codes.Redeem(s.T().Context(), 4, code), domain.ErrInvalidVerificationCode)
}

func (s *CodesTestSuite) TestRedeemErrors() {
	storageErr := errors.New("connection refused")

	s.mockStorage.EXPECT().Incr(gomock.Any(), "withdraw:attempts:1", time.Minute).Return(int64(1), nil)
	s.mockStorage.EXPECT().Incr(gomock.Any(), "withdraw:attempts:2", time.Minute).Return(int64(1), nil)
	s.mockStorage.EXPECT().Incr(gomock.Any(), "withdraw:attempts:3", time.Minute).Return(int64(0), storageErr)
	s.mockStorage.EXPECT().Get(gomock.Any(), "withdraw:code:1").Return("", ErrCodeNotFound)
	s.mockStorage.EXPECT().Get(gomock.Any(), "withdraw:code:2").Return("", storageErr)

	cases := []struct {
		name    string
		userID  int64
		wantErr error
	}{
		{name: "expired code", userID: 1, wantErr: domain.ErrInvalidVerificationCode},
		{name: "storage failure", userID: 2, wantErr: storageErr},
		{name: "attempts counter failure", userID: 3, wantErr: storageErr},
	}
	for _, t := range cases {
		s.Run(t.name, func() {
			err := s.codes.Redeem(s.T().Context(), t.userID, "123456")
			s.Require().ErrorIs(err, t.wantErr)
		})
	}
}

func (s *CodesTestSuite) TestGenerateCode() {
	for range 50 {
		code, err := generateCode(codeDigits)
		s.Require().NoError(err)
		s.Len(code, codeDigits)
	}
}
