package colorservice

import (
	"context"
	"errors"

	"github.com/nci/voxrgb/processor"
)

const DefaultQueueSizePerWorker = 50

var ErrQueueFull = errors.New("Pool TaskQueue is full")

// Task is one conversion waiting for a worker. Resp and Error must be
// buffered so a worker never blocks on a caller that gave up.
type Task struct {
	Ctx     context.Context
	Payload *processor.Conversion
	Resp    chan *processor.Result
	Error   chan error
}

func NewTask(ctx context.Context, conv *processor.Conversion) *Task {
	return &Task{
		Ctx:     ctx,
		Payload: conv,
		Resp:    make(chan *processor.Result, 1),
		Error:   make(chan error, 1),
	}
}

// WorkerPool runs queued conversions on a fixed number of goroutines.
type WorkerPool struct {
	PoolSize  int
	TaskQueue chan *Task
	done      chan struct{}
}

func CreateWorkerPool(n int) *WorkerPool {
	if n <= 0 {
		n = 1
	}
	p := &WorkerPool{
		PoolSize:  n,
		TaskQueue: make(chan *Task, DefaultQueueSizePerWorker*n),
		done:      make(chan struct{}),
	}
	for i := 0; i < n; i++ {
		go p.worker()
	}
	return p
}

// AddQueue enqueues task or fails it at once when the queue is full.
func (p *WorkerPool) AddQueue(task *Task) {
	select {
	case p.TaskQueue <- task:
	default:
		task.Error <- ErrQueueFull
	}
}

func (p *WorkerPool) worker() {
	for {
		select {
		case <-p.done:
			return
		case task := <-p.TaskQueue:
			if err := task.Ctx.Err(); err != nil {
				task.Error <- err
				continue
			}
			res, err := task.Payload.Run(task.Ctx)
			if err != nil {
				task.Error <- err
				continue
			}
			task.Resp <- res
		}
	}
}

// DeletePool stops the workers; queued tasks are abandoned.
func (p *WorkerPool) DeletePool() {
	close(p.done)
}
