package game

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"
)

// PathJob asks for a path for one agent.
type PathJob struct {
	AgentID uuid.UUID
	Request uint64
	Start   Cell
	Goal    Cell
}

// PathResult is the outcome of a PathJob.
type PathResult struct {
	PathJob
	Path  []Cell
	Stats SearchStats
	Err   error
}

// GridSource hands out the grid snapshot the next search should read.
type GridSource interface {
	Grid() *Grid
}

// Pool runs path searches on a fixed set of goroutines, each owning exactly
// one Worker. Jobs come from a shared buffered queue; results go out on
// Results in completion order.
type Pool struct {
	source  GridSource
	metrics *Metrics
	jobs    chan PathJob
	results chan PathResult

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
	closed    bool
	lock      sync.RWMutex
}

// NewPool starts workers goroutines searching grids from source. queueSize
// bounds the number of pending jobs. metrics may be nil.
func NewPool(source GridSource, workers, queueSize int, metrics *Metrics, options ...Option) (*Pool, error) {
	if workers < 1 {
		return nil, fmt.Errorf("worker pool needs at least one worker, got %d", workers)
	}
	if workers > MaxWorkers {
		return nil, fmt.Errorf("%d workers requested, at most %d supported: %w", workers, MaxWorkers, ErrCapacityExceeded)
	}
	if queueSize < 1 {
		queueSize = workers
	}
	grid := source.Grid()
	if grid == nil {
		return nil, fmt.Errorf("worker pool needs a grid")
	}

	searchers := make([]*Worker, workers)
	for i := range searchers {
		w, err := NewWorker(grid, options...)
		if err != nil {
			return nil, fmt.Errorf("failed to create worker %d: %w", i, err)
		}
		searchers[i] = w
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		source:  source,
		metrics: metrics,
		jobs:    make(chan PathJob, queueSize),
		results: make(chan PathResult, queueSize+workers),
		ctx:     ctx,
		cancel:  cancel,
	}
	for _, w := range searchers {
		p.wg.Add(1)
		go p.run(w)
	}
	return p, nil
}

func (p *Pool) run(w *Worker) {
	defer p.wg.Done()
	for {
		select {
		case <-p.ctx.Done():
			return
		case job := <-p.jobs:
			res := p.search(w, job)
			select {
			case p.results <- res:
			case <-p.ctx.Done():
				p.offer(res)
				return
			}
		}
	}
}

func (p *Pool) search(w *Worker, job PathJob) PathResult {
	res := PathResult{PathJob: job}
	if grid := p.source.Grid(); grid != w.Grid() {
		if err := w.SetGrid(grid); err != nil {
			res.Err = fmt.Errorf("failed to load grid: %w", err)
		}
	}
	if res.Err == nil {
		res.Path, res.Stats, res.Err = w.FindPath(p.ctx, job.Start, job.Goal)
	}
	p.metrics.Record(res.Stats, res.Err)
	if res.Err != nil && !errors.Is(res.Err, context.Canceled) {
		log.Printf("pathfinding: agent %s: %v", job.AgentID, res.Err)
	}
	return res
}

// offer delivers res without blocking. Only used while closing, when nobody
// may be reading Results any more.
func (p *Pool) offer(res PathResult) {
	select {
	case p.results <- res:
	default:
		log.Printf("pathfinding: agent %s: result dropped, results buffer full", res.AgentID)
	}
}

// Submit queues job, blocking while the queue is full.
func (p *Pool) Submit(ctx context.Context, job PathJob) error {
	p.lock.RLock()
	defer p.lock.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}
	select {
	case p.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.ctx.Done():
		return ErrPoolClosed
	}
}

// TrySubmit queues job without blocking; it returns ErrQueueFull when the
// queue has no room.
func (p *Pool) TrySubmit(job PathJob) error {
	p.lock.RLock()
	defer p.lock.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}
	select {
	case p.jobs <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// Results delivers finished searches. It is closed by Close.
func (p *Pool) Results() <-chan PathResult {
	return p.results
}

// Pending returns the number of queued jobs not yet picked up.
func (p *Pool) Pending() int {
	return len(p.jobs)
}

// Close cancels in-flight searches, stops every goroutine and closes Results.
// Jobs still queued are answered with ErrPoolClosed, so every accepted job
// gets exactly one result as long as the results buffer has room.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		// Cancel first so blocked Submit calls release the read lock.
		p.cancel()
		p.lock.Lock()
		p.closed = true
		p.lock.Unlock()

		p.wg.Wait()
		for drained := false; !drained; {
			select {
			case job := <-p.jobs:
				p.offer(PathResult{PathJob: job, Err: ErrPoolClosed})
			default:
				drained = true
			}
		}
		close(p.results)
	})
}
