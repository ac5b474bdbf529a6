package upload

import (
	"sync"
)

// workerPool runs a fixed number of workers over one queue for the life of a
// batch. A worker that finishes a task immediately dispatches the next one and
// exits once the queue is drained.
type workerPool struct {
	size  int
	queue *Queue
	drive func(worker int, t *Task)

	wg sync.WaitGroup
}

func newWorkerPool(size int, queue *Queue, drive func(worker int, t *Task)) *workerPool {
	if size <= 0 {
		size = 1
	}
	return &workerPool{
		size:  size,
		queue: queue,
		drive: drive,
	}
}

func (p *workerPool) start() {
	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

func (p *workerPool) worker(id int) {
	defer p.wg.Done()
	for {
		t, ok := p.queue.DispatchNext()
		if !ok {
			return
		}
		p.drive(id, t)
		p.queue.Complete()
	}
}

func (p *workerPool) wait() {
	p.wg.Wait()
}
