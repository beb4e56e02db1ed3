// Package relay доставляет события outbox во внешние каналы.
package relay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fsdevblog/groph-invest/internal/domain"
	"github.com/fsdevblog/groph-invest/internal/metrics"
	"github.com/fsdevblog/groph-invest/internal/service"
	"github.com/sirupsen/logrus"
)

const (
	defaultServiceTimeout         = 3 * time.Second
	defaultPublishTimeout         = 10 * time.Second
	defaultIdleInterval           = time.Second
	defaultLimitPerIteration uint = 100
	defaultWorkers           uint = 4
)

// ErrNoEvents нет событий для доставки.
var ErrNoEvents = errors.New("no events")

// Relay забирает события из outbox и публикует их через зарегистрированные для вида события каналы.
type Relay struct {
	outbox            Outbox
	publishers        map[domain.EventKind][]Publisher
	recorder          Recorder
	l                 *logrus.Entry
	limitPerIteration uint
	workers           uint
	idleInterval      time.Duration
}

func New(outbox Outbox, l *logrus.Logger) *Relay {
	return &Relay{
		outbox:     outbox,
		publishers: make(map[domain.EventKind][]Publisher),
		recorder:   nopRecorder{},
		l: l.WithFields(logrus.Fields{
			"component": "relay",
			"module":    "outbox",
		}),
		limitPerIteration: defaultLimitPerIteration,
		workers:           defaultWorkers,
		idleInterval:      defaultIdleInterval,
	}
}

// Route добавляет каналы доставки для событий вида kind. Событие считается доставленным, только если его
// приняли все каналы.
func (r *Relay) Route(kind domain.EventKind, publishers ...Publisher) *Relay {
	r.publishers[kind] = append(r.publishers[kind], publishers...)
	return r
}

func (r *Relay) SetRecorder(recorder Recorder) *Relay {
	if recorder != nil {
		r.recorder = recorder
	}
	return r
}

// SetLimitPerIteration устанавливает кол-во событий, захватываемых за одну итерацию.
func (r *Relay) SetLimitPerIteration(limit uint) *Relay {
	r.limitPerIteration = limit
	return r
}

// SetWorkers устанавливает кол-во воркеров, публикующих события.
func (r *Relay) SetWorkers(workers uint) *Relay {
	if workers > 0 {
		r.workers = workers
	}
	return r
}

func (r *Relay) SetIdleInterval(d time.Duration) *Relay {
	r.idleInterval = d
	return r
}

// Run доставляет события в бесконечном цикле до отмены контекста.
//
// Алгоритм работы:
//  1. В каждой итерации захватывает через сервисный слой пачку событий (см. SetLimitPerIteration).
//  2. Раздает события N воркерам (см. SetWorkers), которые публикуют их во все каналы вида события.
//  3. Результаты доставки сохраняются через сервисный слой: доставленные помечаются SENT, остальные
//     будут повторены.
//
// Если событий нет или произошла ошибка, делает паузу перед следующей итерацией.
func (r *Relay) Run(ctx context.Context) {
	r.l.WithFields(logrus.Fields{
		"limitPerIteration": r.limitPerIteration,
		"workers":           r.workers,
	}).Info("Starting")

	for {
		select {
		case <-ctx.Done():
			r.l.Info("Got stop signal, exiting...")
			return
		default:
			if err := r.process(ctx); err != nil {
				if !errors.Is(err, ErrNoEvents) {
					r.l.WithError(err).Error("process error")
				}
				select {
				case <-ctx.Done():
				case <-time.After(jitterDuration(r.idleInterval)):
				}
			}
		}
	}
}

// process выполняет одну итерацию доставки. Возвращает ErrNoEvents, если доставлять нечего.
func (r *Relay) process(ctx context.Context) error {
	events, claimErr := r.claim(ctx)
	if claimErr != nil {
		return fmt.Errorf("process: %w", claimErr)
	}

	results := r.runWorkers(ctx, events)
	if len(results) == 0 {
		return nil
	}

	reqCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), defaultServiceTimeout)
	defer cancel()

	if err := r.outbox.CompleteDelivery(reqCtx, results); err != nil {
		return fmt.Errorf("process: %w", err)
	}
	return nil
}

func (r *Relay) claim(ctx context.Context) ([]domain.OutboxEvent, error) {
	claimCtx, cancel := context.WithTimeout(ctx, defaultServiceTimeout)
	defer cancel()

	events, err := r.outbox.ClaimPending(claimCtx, r.limitPerIteration)
	if err != nil {
		return nil, fmt.Errorf("claim: %w", err)
	}
	if len(events) == 0 {
		return nil, ErrNoEvents
	}
	return events, nil
}

// runWorkers публикует события параллельно и ждет окончания работы воркеров (fan-out/fan-in).
func (r *Relay) runWorkers(ctx context.Context, events []domain.OutboxEvent) []service.DeliveryResult {
	var taskCh = make(chan *domain.OutboxEvent, len(events))
	for i := range events {
		taskCh <- &events[i]
	}
	close(taskCh)

	wg := new(sync.WaitGroup)
	wg.Add(int(r.workers)) // nolint:gosec

	var resultCh = make(chan service.DeliveryResult, len(events))
	for range r.workers {
		go r.worker(ctx, wg, taskCh, resultCh)
	}
	wg.Wait()
	close(resultCh)

	var results = make([]service.DeliveryResult, 0, len(events))
	for result := range resultCh {
		results = append(results, result)
	}
	return results
}

func (r *Relay) worker(
	ctx context.Context,
	wg *sync.WaitGroup,
	taskCh <-chan *domain.OutboxEvent,
	resultCh chan<- service.DeliveryResult,
) {
	defer wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-taskCh:
			if !ok {
				return
			}
			resultCh <- r.deliver(ctx, event)
		}
	}
}

// deliver публикует событие во все каналы его вида. Ошибка любого канала оборачивается в
// domain.ErrExternalService, и событие будет доставлено повторно целиком.
func (r *Relay) deliver(ctx context.Context, event *domain.OutboxEvent) service.DeliveryResult {
	l := r.l.WithFields(logrus.Fields{
		"eventID": event.ID,
		"kind":    event.Kind,
		"userID":  event.UserID,
		"attempt": event.Attempts + 1,
	})
	result := service.DeliveryResult{EventID: event.ID}

	publishers := r.publishers[event.Kind]
	if len(publishers) == 0 {
		result.Error = fmt.Errorf("no publisher for %s events: %w", event.Kind, domain.ErrExternalService)
	}
	for _, p := range publishers {
		pubCtx, cancel := context.WithTimeout(ctx, defaultPublishTimeout)
		err := p.Publish(pubCtx, *event)
		cancel()
		if err != nil {
			result.Error = fmt.Errorf("%w: %w", domain.ErrExternalService, err)
			break
		}
	}

	if result.Error != nil {
		r.recorder.RelayEvent(string(event.Kind), metrics.ResultError)
		l.WithError(result.Error).Warn("deliver event")
		return result
	}
	r.recorder.RelayEvent(string(event.Kind), metrics.ResultSuccess)
	l.Debug("Delivered")
	return result
}

type nopRecorder struct{}

func (nopRecorder) RelayEvent(string, string) {}
