package logger

import (
	"bytes"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/suite"
)

type LoggerTestSuite struct {
	suite.Suite
}

func TestLoggerSuite(t *testing.T) {
	suite.Run(t, new(LoggerTestSuite))
}

func (s *LoggerTestSuite) TestRelease() {
	s.T().Setenv("GIN_MODE", "release")
	s.T().Setenv("LOG_LEVEL", "")

	var buf bytes.Buffer
	l := New(&buf)
	s.Equal(logrus.InfoLevel, l.GetLevel())

	l.WithField("component", "test").Info("started")
	s.Contains(buf.String(), `"component":"test"`)
}

func (s *LoggerTestSuite) TestLevelOverride() {
	s.T().Setenv("GIN_MODE", "debug")
	s.T().Setenv("LOG_LEVEL", "warn")

	l := New(&bytes.Buffer{})
	s.Equal(logrus.WarnLevel, l.GetLevel())
}
