// Package pool provides a fixed-size worker pool with least-loaded
// dispatch, used to spread MinHash signature computation across cores.
//
// Scheduling state (per-worker load, the dispatch queue) is owned by a
// single orchestrator goroutine and never touched by workers, so it
// needs no locks. Workers report completion and crashes over channels.
package pool

import (
	"context"
	"errors"
	"runtime"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// TaskType names a kind of work a pool can execute.
type TaskType string

// TaskMinHash computes MinHash signatures for a batch of token sets.
const TaskMinHash TaskType = "minhash"

var (
	// ErrPoolClosed rejects tasks submitted after Close.
	ErrPoolClosed = errors.New("pool: closed")

	// ErrUnknownTaskType rejects tasks with no registered handler.
	ErrUnknownTaskType = errors.New("pool: unknown task type")

	// ErrWorkerPanic rejects the future of a task whose handler panicked.
	ErrWorkerPanic = errors.New("pool: worker panicked")
)

// Handler executes one task type. Handlers run on worker goroutines and
// must not touch pool scheduling state.
type Handler func(payload any) (any, error)

// Request is the wire shape of a task handed to a worker.
type Request struct {
	Type    TaskType
	ID      string
	Payload any
}

// Response is a worker's reply: either a result or an error, matched to
// the request by ID.
type Response struct {
	ID   string
	Data any
	Err  error
}

// Future resolves to a single task's response.
type Future struct {
	ch chan Response
}

// Wait blocks until the task resolves, is rejected, or ctx ends.
func (f *Future) Wait(ctx context.Context) (any, error) {
	select {
	case resp := <-f.ch:
		if resp.Err != nil {
			return nil, resp.Err
		}
		return resp.Data, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func resolvedFuture(resp Response) *Future {
	f := &Future{ch: make(chan Response, 1)}
	f.ch <- resp
	return f
}

type task struct {
	req    Request
	future *Future
}

// Pool is a fixed-size worker pool. Size defaults to the hardware
// concurrency with a floor of two.
type Pool struct {
	size     int
	handlers map[TaskType]Handler

	submitCh chan *task
	doneCh   chan int
	crashCh  chan int
	closeCh  chan struct{}

	// queues are the per-worker task channels; a replacement worker
	// reads its predecessor's channel, so queued tasks of a crashed
	// worker are re-routed automatically.
	queues []chan *task

	closeOnce sync.Once
	wg        sync.WaitGroup
}

// New creates and starts a pool. size <= 0 selects max(NumCPU, 2).
func New(size int, handlers map[TaskType]Handler) *Pool {
	if size <= 0 {
		size = runtime.NumCPU()
	}
	if size < 2 {
		size = 2
	}

	p := &Pool{
		size:     size,
		handlers: handlers,
		submitCh: make(chan *task),
		doneCh:   make(chan int, size),
		crashCh:  make(chan int, size),
		closeCh:  make(chan struct{}),
		queues:   make([]chan *task, size),
	}

	for i := range p.queues {
		p.queues[i] = make(chan *task, 64)
		p.startWorker(i)
	}

	p.wg.Add(1)
	go p.orchestrate()
	return p
}

// Size returns the worker count.
func (p *Pool) Size() int {
	return p.size
}

// Run submits a task and returns its future. A closed pool or an
// unregistered task type yields an already-rejected future.
func (p *Pool) Run(taskType TaskType, payload any) *Future {
	id := uuid.NewString()

	if _, ok := p.handlers[taskType]; !ok {
		log.Warn().Str("type", string(taskType)).Msg("Rejecting task with unknown type")
		return resolvedFuture(Response{ID: id, Err: ErrUnknownTaskType})
	}

	t := &task{
		req:    Request{Type: taskType, ID: id, Payload: payload},
		future: &Future{ch: make(chan Response, 1)},
	}

	select {
	case p.submitCh <- t:
		return t.future
	case <-p.closeCh:
		return resolvedFuture(Response{ID: id, Err: ErrPoolClosed})
	}
}

// Close stops accepting tasks and waits for in-flight work to finish.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		close(p.closeCh)
	})
	p.wg.Wait()
}

// orchestrate owns all scheduling state: it assigns each submission to
// the least-loaded worker and tracks load from completion reports.
func (p *Pool) orchestrate() {
	defer p.wg.Done()

	load := make([]int, p.size)

	for {
		select {
		case t := <-p.submitCh:
			idx := leastLoaded(load)
			load[idx]++
			p.queues[idx] <- t

		case idx := <-p.doneCh:
			load[idx]--

		case idx := <-p.crashCh:
			load[idx]--
			log.Warn().Int("worker", idx).Msg("Worker crashed, starting replacement")
			p.startWorker(idx)

		case <-p.closeCh:
			for _, q := range p.queues {
				close(q)
			}
			return
		}
	}
}

func leastLoaded(load []int) int {
	best := 0
	for i := 1; i < len(load); i++ {
		if load[i] < load[best] {
			best = i
		}
	}
	return best
}

// startWorker launches a worker goroutine over the indexed queue.
func (p *Pool) startWorker(idx int) {
	p.wg.Add(1)
	go p.work(idx)
}

// work executes tasks until its queue closes. An escaped panic rejects
// the in-flight task and requests a replacement; queued tasks survive in
// the channel for the replacement to serve.
func (p *Pool) work(idx int) {
	defer p.wg.Done()

	var inflight *task
	defer func() {
		if r := recover(); r != nil {
			if inflight != nil {
				inflight.future.ch <- Response{ID: inflight.req.ID, Err: ErrWorkerPanic}
			}
			select {
			case p.crashCh <- idx:
			case <-p.closeCh:
			}
		}
	}()

	for t := range p.queues[idx] {
		inflight = t
		data, err := p.execute(t.req)
		t.future.ch <- Response{ID: t.req.ID, Data: data, Err: err}
		inflight = nil

		select {
		case p.doneCh <- idx:
		case <-p.closeCh:
		}
	}
}

// execute runs the handler for one request, converting a handler panic
// into a rejected response so one bad task cannot take the worker down.
func (p *Pool) execute(req Request) (data any, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Warn().Str("task", req.ID).Interface("panic", r).Msg("Task handler panicked")
			err = ErrWorkerPanic
		}
	}()

	handler, ok := p.handlers[req.Type]
	if !ok {
		return nil, ErrUnknownTaskType
	}
	return handler(req.Payload)
}
