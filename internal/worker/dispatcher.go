package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

var (
	ErrDispatcherBusy    = errors.New("dispatcher queue is full")
	ErrDispatcherStopped = errors.New("dispatcher stopped")
)

const (
	defaultWorkers = 1
	queueLen       = 16
)

type DispatcherConfig struct {
	Workers   int
	QueueSize int
}

// Dispatcher owns the only path into the inference engine. With one worker,
// calls are fully serialized; a full queue is reported instead of blocking.
type Dispatcher struct {
	JobQueue chan Job

	quit     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	seq      atomic.Int64
}

func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	workers := cfg.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = queueLen
	}
	d := &Dispatcher{
		JobQueue: make(chan Job, queueSize),
		quit:     make(chan struct{}),
	}
	for i := 0; i < workers; i++ {
		NewWorker(i+1, d.JobQueue, d.quit).Start(&d.wg)
	}
	return d
}

// Submit enqueues task and waits for its result or for ctx to finish.
func (d *Dispatcher) Submit(ctx context.Context, task Task) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case <-d.quit:
		return "", ErrDispatcherStopped
	default:
	}

	job := Job{
		ID:       d.seq.Add(1),
		Context:  ctx,
		Task:     task,
		resultCh: make(chan workerReturn, 1),
	}
	select {
	case d.JobQueue <- job:
	default:
		return "", ErrDispatcherBusy
	}

	select {
	case ret := <-job.resultCh:
		return ret.output, ret.err
	case <-ctx.Done():
		return "", ctx.Err()
	case <-d.quit:
		return "", ErrDispatcherStopped
	}
}

// Pending returns the number of queued jobs not yet picked up by a worker.
func (d *Dispatcher) Pending() int {
	return len(d.JobQueue)
}

// Stop signals workers to exit and waits for running jobs to finish.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		close(d.quit)
	})
	d.wg.Wait()
}
