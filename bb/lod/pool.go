package lod

import (
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/KnightKu/slurm/common/stats"
)

// pool is a bounded worker pool with a task queue, one per staging
// phase. Dispatching a job enqueues a closure; a fixed set of workers
// drains the queue. The per-job in-flight markers in the store keep the
// "one active worker per job per phase" guarantee; the pool only bounds
// how many of those workers run at once.
type pool struct {
	name  string
	tasks chan func()
	wg    sync.WaitGroup
	stat  stats.StatsReceiver

	mu     sync.Mutex
	closed bool
}

func newPool(name string, workers, depth int, stat stats.StatsReceiver) *pool {
	p := &pool{
		name:  name,
		tasks: make(chan func(), depth),
		stat:  stat.Scope(name),
	}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.work()
	}
	return p
}

func (p *pool) work() {
	defer p.wg.Done()
	for task := range p.tasks {
		p.stat.Gauge("queuedGauge").Update(int64(len(p.tasks)))
		task()
	}
}

// enqueue adds a task, blocking while the queue is full. Returns false
// if the pool is stopped. The lock is held across the send so stop can
// never close the channel under a pending send; workers drain the queue
// without taking the lock, so a full queue cannot deadlock.
func (p *pool) enqueue(task func()) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	p.stat.Counter("enqueuedCounter").Inc(1)
	p.tasks <- task
	return true
}

// stop stops accepting tasks and waits for queued ones to drain.
func (p *pool) stop() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	close(p.tasks)
	p.wg.Wait()
	log.WithFields(log.Fields{"pool": p.name}).Debug("worker pool drained")
}
