// Файл: internal/worker/sweep_worker.go
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"case-system/internal/repositories"
	"case-system/internal/services"
)

// SweepWorker периодически обходит активные дела и оценивает просрочки.
// Дела внутри прохода обрабатываются параллельно с ограничением,
// ошибка одного дела не прерывает проход.
type SweepWorker struct {
	caseRepo    repositories.CaseRepositoryInterface
	evaluator   services.EscalationEvaluatorServiceInterface
	interval    time.Duration
	concurrency int
	logger      *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewSweepWorker(
	caseRepo repositories.CaseRepositoryInterface,
	evaluator services.EscalationEvaluatorServiceInterface,
	interval time.Duration,
	concurrency int,
	logger *zap.Logger,
) *SweepWorker {
	if concurrency < 1 {
		concurrency = 1
	}
	return &SweepWorker{
		caseRepo:    caseRepo,
		evaluator:   evaluator,
		interval:    interval,
		concurrency: concurrency,
		logger:      logger,
	}
}

// Start запускает фоновый цикл. Первый проход выполняется сразу,
// не дожидаясь первого тика.
func (w *SweepWorker) Start(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	w.cancel = cancel

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()

		w.logger.Info("Фоновый обход эскалаций запущен",
			zap.Duration("interval", w.interval),
			zap.Int("concurrency", w.concurrency),
		)

		w.runSweep(ctx)

		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				w.logger.Info("Фоновый обход эскалаций остановлен")
				return
			case <-ticker.C:
				w.runSweep(ctx)
			}
		}
	}()
}

// Stop останавливает цикл и дожидается завершения текущего прохода.
func (w *SweepWorker) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}

func (w *SweepWorker) runSweep(ctx context.Context) {
	runID := uuid.New().String()
	started := time.Now()

	cases, err := w.caseRepo.GetActiveCases(ctx)
	if err != nil {
		w.logger.Error("Не удалось получить активные дела, проход пропущен",
			zap.String("run_id", runID),
			zap.Error(err),
		)
		return
	}
	if len(cases) == 0 {
		return
	}

	var (
		raised int
		failed int
		mu     sync.Mutex
		wg     sync.WaitGroup
	)
	sem := make(chan struct{}, w.concurrency)

	for i := range cases {
		if ctx.Err() != nil {
			break
		}
		c := cases[i]

		sem <- struct{}{}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			defer func() {
				if p := recover(); p != nil {
					mu.Lock()
					failed++
					mu.Unlock()
					w.logger.Error("Паника при оценке дела",
						zap.String("run_id", runID),
						zap.Uint64("case_id", c.ID),
						zap.Any("panic", p),
					)
				}
			}()

			count, err := w.evaluator.EvaluateCase(ctx, &c)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed++
				w.logger.Error("Ошибка оценки дела",
					zap.String("run_id", runID),
					zap.Uint64("case_id", c.ID),
					zap.Error(err),
				)
				return
			}
			raised += count
		}()
	}
	wg.Wait()

	w.logger.Info("Проход эскалаций завершён",
		zap.String("run_id", runID),
		zap.Int("cases", len(cases)),
		zap.Int("raised", raised),
		zap.Int("failed", failed),
		zap.Duration("elapsed", time.Since(started)),
	)
}
