// Package accrual запускает движок начисления прибыли по расписанию.
package accrual

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fsdevblog/groph-invest/internal/metrics"
	"github.com/fsdevblog/groph-invest/internal/service"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const (
	DefaultSchedule   = "@hourly"
	lockKey           = "accrual:engine"
	defaultLockTTL    = 30 * time.Minute
	defaultRunTimeout = 25 * time.Minute
	releaseTimeout    = 3 * time.Second
)

// ErrAlreadyRunning движок уже запущен другим экземпляром.
var ErrAlreadyRunning = errors.New("accrual engine is already running")

type Scheduler struct {
	engine     Engine
	locker     Locker
	recorder   Recorder
	schedule   string
	lockTTL    time.Duration
	runTimeout time.Duration
	l          *logrus.Entry
}

func New(engine Engine, schedule string, l *logrus.Logger) *Scheduler {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	return &Scheduler{
		engine:     engine,
		recorder:   nopRecorder{},
		schedule:   schedule,
		lockTTL:    defaultLockTTL,
		runTimeout: defaultRunTimeout,
		l: l.WithFields(logrus.Fields{
			"component": "accrual",
			"module":    "scheduler",
		}),
	}
}

// SetLocker включает распределенную блокировку запусков.
func (s *Scheduler) SetLocker(locker Locker) *Scheduler {
	s.locker = locker
	return s
}

func (s *Scheduler) SetRecorder(recorder Recorder) *Scheduler {
	if recorder != nil {
		s.recorder = recorder
	}
	return s
}

// SetRunTimeout задает максимальную длительность одного запуска. TTL блокировки всегда больше таймаута.
func (s *Scheduler) SetRunTimeout(timeout time.Duration) *Scheduler {
	s.runTimeout = timeout
	if s.lockTTL <= timeout {
		s.lockTTL = timeout + time.Minute
	}
	return s
}

// Run запускает движок сразу, чтобы догнать начисления, пропущенные пока сервис был остановлен, и далее по
// расписанию до отмены контекста. Пересекающиеся запуски пропускаются.
func (s *Scheduler) Run(ctx context.Context) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.PrintfLogger(s.l))))
	if _, err := c.AddFunc(s.schedule, func() { _, _ = s.RunOnce(ctx) }); err != nil {
		return fmt.Errorf("invalid accrual schedule %q: %w", s.schedule, err)
	}

	s.l.WithField("schedule", s.schedule).Info("Starting")
	_, _ = s.RunOnce(ctx)

	c.Start()
	<-ctx.Done()
	s.l.Info("Got stop signal, waiting for the running job...")
	<-c.Stop().Done()
	return nil
}

// RunOnce выполняет один запуск движка под блокировкой. Если блокировку держит другой экземпляр,
// возвращает ErrAlreadyRunning.
func (s *Scheduler) RunOnce(ctx context.Context) (*service.AccrualReport, error) {
	if s.locker != nil {
		token, ok, lockErr := s.locker.Acquire(ctx, lockKey, s.lockTTL)
		if lockErr != nil {
			s.recorder.AccrualRun(metrics.ResultError, 0)
			s.l.WithError(lockErr).Error("acquire accrual lock")
			return nil, fmt.Errorf("run accrual: %w", lockErr)
		}
		if !ok {
			s.recorder.AccrualRun(metrics.ResultSkipped, 0)
			s.l.Debug("accrual engine is running elsewhere, skip")
			return nil, ErrAlreadyRunning
		}
		defer s.release(ctx, token)
	}

	runCtx, cancel := context.WithTimeout(ctx, s.runTimeout)
	defer cancel()

	start := time.Now()
	report, err := s.engine.RunAccrualEngine(runCtx)
	duration := time.Since(start)

	if report != nil {
		s.recordReport(report)
	}
	if err != nil {
		s.recorder.AccrualRun(metrics.ResultError, duration)
		s.l.WithError(err).Error("accrual run")
		return report, fmt.Errorf("run accrual: %w", err)
	}
	s.recorder.AccrualRun(metrics.ResultSuccess, duration)

	l := s.l.WithFields(logrus.Fields{
		"due":           report.Due,
		"credited":      report.Credited,
		"matured":       report.Matured,
		"skipped":       report.Skipped,
		"failed":        report.Failed,
		"totalCredited": report.TotalCredited.String(),
		"duration":      duration,
	})
	for _, f := range report.Failures {
		s.l.WithField("investmentID", f.InvestmentID).Warn(f.Error)
	}
	l.Info("Accrual run finished")
	return report, nil
}

func (s *Scheduler) recordReport(report *service.AccrualReport) {
	s.recorder.AccrualInvestments("credited", report.Credited)
	s.recorder.AccrualInvestments("matured", report.Matured)
	s.recorder.AccrualInvestments("skipped", report.Skipped)
	s.recorder.AccrualInvestments("failed", report.Failed)
}

// release освобождает блокировку даже после отмены ctx.
func (s *Scheduler) release(ctx context.Context, token string) {
	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()
	if err := s.locker.Release(releaseCtx, lockKey, token); err != nil {
		s.l.WithError(err).Warn("release accrual lock")
	}
}

type nopRecorder struct{}

func (nopRecorder) AccrualRun(string, time.Duration) {}
func (nopRecorder) AccrualInvestments(string, int)   {}
