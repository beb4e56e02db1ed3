package app

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type BackgroundTestSuite struct {
	suite.Suite
}

func TestBackgroundSuite(t *testing.T) {
	suite.Run(t, new(BackgroundTestSuite))
}

func (s *BackgroundTestSuite) TestStopWaitsForJobs() {
	var finished atomic.Int32
	started := make(chan struct{}, 2)

	job := func(ctx context.Context) {
		started <- struct{}{}
		<-ctx.Done()
		// имитация завершения последней итерации после отмены.
		time.Sleep(20 * time.Millisecond)
		finished.Add(1)
	}

	b := startBackground(s.T().Context(), job, job)
	<-started
	<-started
	s.Zero(finished.Load())

	b.Stop()
	s.Equal(int32(2), finished.Load())
}

func (s *BackgroundTestSuite) TestParentCancel() {
	ctx, cancel := context.WithCancel(s.T().Context())
	done := make(chan struct{})

	b := startBackground(ctx, func(jobCtx context.Context) {
		<-jobCtx.Done()
		close(done)
	})
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		s.Fail("job was not stopped by parent context")
	}
	b.Stop()
}
