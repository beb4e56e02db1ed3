package tokens

import (
	"testing"
	"time"

	"github.com/fsdevblog/groph-invest/internal/domain"
	"github.com/stretchr/testify/suite"
)

type TokensTestSuite struct {
	suite.Suite
	key []byte
}

func TestTokensSuite(t *testing.T) {
	suite.Run(t, new(TokensTestSuite))
}

func (s *TokensTestSuite) SetupTest() {
	s.key = []byte("secret")
}

func (s *TokensTestSuite) TestRoundTrip() {
	token, err := GenerateUserJWT(42, domain.RoleAdmin, time.Hour, s.key)
	s.Require().NoError(err)

	claims, err := ValidateUserJWT(token, s.key)
	s.Require().NoError(err)
	s.Equal(int64(42), claims.ID)
	s.True(claims.IsAdmin())
}

func (s *TokensTestSuite) TestInvalid() {
	expired, err := GenerateUserJWT(1, domain.RoleUser, -time.Minute, s.key)
	s.Require().NoError(err)

	foreign, err := GenerateUserJWT(1, domain.RoleUser, time.Hour, []byte("other"))
	s.Require().NoError(err)

	cases := []struct {
		name    string
		token   string
		wantErr error
	}{
		{name: "expired", token: expired, wantErr: ErrTokenExpired},
		{name: "wrong key", token: foreign},
		{name: "garbage", token: "not-a-token"},
	}
	for _, t := range cases {
		s.Run(t.name, func() {
			_, vErr := ValidateUserJWT(t.token, s.key)
			s.Require().Error(vErr)
			if t.wantErr != nil {
				s.Require().ErrorIs(vErr, t.wantErr)
			}
		})
	}
}
