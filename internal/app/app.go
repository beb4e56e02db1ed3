package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/fsdevblog/groph-invest/internal/config"
	"github.com/fsdevblog/groph-invest/internal/domain"
	"github.com/fsdevblog/groph-invest/internal/metrics"
	"github.com/fsdevblog/groph-invest/internal/repository/pgrepo"
	"github.com/fsdevblog/groph-invest/internal/service"
	"github.com/fsdevblog/groph-invest/internal/transport/api"
	"github.com/fsdevblog/groph-invest/internal/transport/mq"
	"github.com/fsdevblog/groph-invest/internal/transport/push"
	"github.com/fsdevblog/groph-invest/internal/verification"
	"github.com/fsdevblog/groph-invest/internal/worker/accrual"
	"github.com/fsdevblog/groph-invest/internal/worker/relay"
	"github.com/fsdevblog/groph-invest/pkg/lock"
	"github.com/fsdevblog/groph-invest/pkg/uow"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	// driver for migration applying postgres.
	_ "github.com/golang-migrate/migrate/v4/database/postgres" //nolint:revive
	// driver to get migrations from files (*.sql in our case).
	_ "github.com/golang-migrate/migrate/v4/source/file" //nolint:revive
)

const (
	shutdownTimeout   = 10 * time.Second
	readHeaderTimeout = 5 * time.Second
)

type App struct {
	Config *config.Config
	Logger *logrus.Logger
}

func New(conf *config.Config, l *logrus.Logger) *App {
	return &App{
		Config: conf,
		Logger: l,
	}
}

func (a *App) Run() error {
	notifyCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a.Logger.WithFields(logrus.Fields{
		"address":          a.Config.RunAddress,
		"redis":            a.Config.RedisAddr,
		"kafka":            a.Config.KafkaBrokers,
		"accrual_schedule": a.Config.AccrualSchedule,
	}).Info("starting app")

	conn, connErr := pgrepo.Connect(notifyCtx, a.Config.MigrationsDir, a.Config.DatabaseDSN, a.Logger)
	if connErr != nil {
		return fmt.Errorf("app run: %w", connErr)
	}
	defer conn.Close()

	unitOfWork := uow.NewUnitOfWork(conn)
	if regErr := pgrepo.RegisterRepositories(unitOfWork); regErr != nil {
		return fmt.Errorf("app run: %w", regErr)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     a.Config.RedisAddr,
		Password: a.Config.RedisPassword,
	})
	defer func() {
		if closeErr := rdb.Close(); closeErr != nil {
			a.Logger.WithError(closeErr).Error("closing redis client")
		}
	}()
	if pingErr := rdb.Ping(notifyCtx).Err(); pingErr != nil {
		return fmt.Errorf("app run: redis ping: %w", pingErr)
	}

	codes := verification.NewCodes(verification.NewRedisStorage(rdb))
	services, sErr := service.Factory(unitOfWork, codes, service.Settings{
		RequireTxHash:               a.Config.RequireTxHash,
		RequireWithdrawVerification: a.Config.RequireWithdrawVerification,
		MinWithdrawal:               a.Config.MinWithdrawal,
		Logger:                      a.Logger,
	})
	if sErr != nil {
		return fmt.Errorf("app run: %w", sErr)
	}

	appMetrics := metrics.New()

	notificationProducer := mq.NewKafkaProducer(a.Config.KafkaBrokers, a.Config.KafkaNotificationTopic)
	emailProducer := mq.NewKafkaProducer(a.Config.KafkaBrokers, a.Config.KafkaEmailTopic)
	defer a.closeProducers(notificationProducer, emailProducer)
	pushPublisher := push.NewRedisPublisher(rdb)

	outboxRelay := relay.New(services.OutboxService, a.Logger).
		Route(domain.EventKindNotification, notificationProducer, pushPublisher).
		Route(domain.EventKindEmail, emailProducer).
		Route(domain.EventKindPush, pushPublisher).
		SetRecorder(appMetrics)

	scheduler := accrual.New(services.AccrualService, a.Config.AccrualSchedule, a.Logger).
		SetLocker(lock.NewRedisLock(rdb)).
		SetRecorder(appMetrics)

	router, rErr := api.New(api.RouterArgs{
		Logger:            a.Logger,
		Metrics:           appMetrics,
		WalletService:     services.WalletService,
		LedgerService:     services.LedgerService,
		DepositService:    services.DepositService,
		WithdrawalService: services.WithdrawalService,
		InvestmentService: services.InvestmentService,
		Accrual:           scheduler,
		JWTSecretKey:      []byte(a.Config.JWTSecret),
	})
	if rErr != nil {
		return fmt.Errorf("app run: %w", rErr)
	}

	server := &http.Server{
		Addr:              a.Config.RunAddress,
		Handler:           router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errChan := make(chan error, 2) //nolint:mnd

	go func() {
		if runErr := server.ListenAndServe(); runErr != nil && !errors.Is(runErr, http.ErrServerClosed) {
			errChan <- runErr
		}
	}()

	workers := startBackground(notifyCtx,
		func(ctx context.Context) {
			if runErr := scheduler.Run(ctx); runErr != nil {
				errChan <- runErr
			}
		},
		outboxRelay.Run,
	)

	var runErr error
	select {
	case <-notifyCtx.Done():
		runErr = notifyCtx.Err()
	case runErr = <-errChan:
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(notifyCtx), shutdownTimeout)
	defer cancel()
	if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
		a.Logger.WithError(shutdownErr).Error("http server shutdown")
	}
	// пул, Redis и Kafka закрываются отложенными вызовами, поэтому воркеры должны завершиться раньше.
	workers.Stop()
	return runErr
}

// background фоновые обработчики приложения с общей отменой.
type background struct {
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// startBackground запускает каждый job в своей горутине с контекстом, производным от ctx.
func startBackground(ctx context.Context, jobs ...func(context.Context)) *background {
	jobCtx, cancel := context.WithCancel(ctx)
	b := &background{cancel: cancel}
	for _, job := range jobs {
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			job(jobCtx)
		}()
	}
	return b
}

// Stop отменяет контекст обработчиков и ждет их завершения.
func (b *background) Stop() {
	b.cancel()
	b.wg.Wait()
}

func (a *App) closeProducers(producers ...*mq.KafkaProducer) {
	for _, p := range producers {
		if err := p.Close(); err != nil {
			a.Logger.WithError(err).Error("closing kafka producer")
		}
	}
}
