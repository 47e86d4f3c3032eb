package worker

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

// Task is one unit of work executed against the shared inference engine.
type Task func(ctx context.Context) (string, error)

type Job struct {
	ID       int64
	Context  context.Context
	Task     Task
	resultCh chan workerReturn
}

type workerReturn struct {
	output string
	err    error
}

type Worker struct {
	id   int
	jobs <-chan Job
	quit <-chan struct{}
}

func NewWorker(id int, jobs <-chan Job, quit <-chan struct{}) *Worker {
	return &Worker{id: id, jobs: jobs, quit: quit}
}

func (w *Worker) Start(wg *sync.WaitGroup) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case job := <-w.jobs:
				w.run(job)
			case <-w.quit:
				return
			}
		}
	}()
}

// run executes a job and always delivers exactly one result, including when
// the task panics.
func (w *Worker) run(job Job) {
	ctx := job.Context
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		log.Debug().Int64("job", job.ID).Int("worker", w.id).Msg("skip job with finished context")
		job.resultCh <- workerReturn{err: err}
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Error().Int64("job", job.ID).Int("worker", w.id).Interface("panic", r).Msg("inference task panicked")
			job.resultCh <- workerReturn{err: fmt.Errorf("inference task panicked: %v", r)}
		}
	}()
	log.Debug().Int64("job", job.ID).Int("worker", w.id).Msg("run job")
	out, err := job.Task(ctx)
	job.resultCh <- workerReturn{output: out, err: err}
}
