package workers

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"reef-chat/contract"
	"reef-chat/errors"
)

const waitTimeBeforeRestart = 200 * time.Millisecond

// Supervisor runs every registered worker in its own goroutine, recovers
// their panics and restarts them after a short delay. One crashing room
// worker must not take the fanout or the other rooms down with it.
type Supervisor struct {
	Cancel  context.CancelFunc
	wg      *sync.WaitGroup
	log     *slog.Logger
	workers []contract.Worker
}

func NewSupervisor(log *slog.Logger) *Supervisor {
	return &Supervisor{wg: &sync.WaitGroup{}, log: log}
}

// Run launches all added workers and blocks until every goroutine has
// finished. Cancellation flows both ways: the parent context stops the
// supervised workers, and Stop cancels only the supervised subtree.
func (s *Supervisor) Run(ctx context.Context) {
	supervisedCtx, cancel := context.WithCancel(ctx)
	s.Cancel = cancel
	defer s.Cancel()

	for _, worker := range s.workers {
		s.Start(supervisedCtx, worker)
	}
	s.wg.Wait()
}

// Add queues workers to be launched by Run. Workers appearing after Run
// has begun (lazily created rooms) go through Start instead.
func (s *Supervisor) Add(worker ...contract.Worker) contract.ISupervisor {
	s.workers = append(s.workers, worker...)
	return s
}

// Start runs one worker under supervision in a dedicated goroutine.
// A panic inside Run is recovered and surfaces as ErrWorkerPanic; any
// error restarts the worker after waitTimeBeforeRestart. A clean return
// retires the worker for good.
func (s *Supervisor) Start(ctx context.Context, worker contract.Worker) {
	s.wg.Add(1)
	workerName := contract.GetWorkerName(worker)

	go func() {
		defer s.wg.Done()

		for {
			if ctx.Err() != nil {
				s.log.Info(fmt.Sprintf("Stopping : %s", workerName))
				return
			}

			err := func() (err error) {
				defer func() {
					if r := recover(); r != nil {
						err = errors.ErrWorkerPanic
					}
				}()
				return worker.Run(ctx)
			}()

			if err == nil {
				s.log.Info(fmt.Sprintf("Worker finished : %s", workerName))
				return
			}

			if ctx.Err() != nil {
				s.log.Info("Worker stopped (context canceled)", "name", workerName)
				return
			}

			s.log.Warn("Worker crashed, restarting", "name", workerName, "error", err)
			select {
			case <-ctx.Done():
				// Shutdown wins over the restart delay
				return
			case <-time.After(waitTimeBeforeRestart):
			}
		}
	}()
}

// Stop cancels the supervised context; Run returns once the workers have
// drained.
func (s *Supervisor) Stop() {
	if s.Cancel != nil {
		s.Cancel()
	}
}
