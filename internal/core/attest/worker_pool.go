package attest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/zkrag/zkrag/pkg/interfaces/infrastructure/log"
)

// Proving is CPU-bound and memory-hungry, so it runs on a bounded worker
// pool. Verification is cheap and must never queue behind proving; it gets
// its own independent pool below.

// TaskStatus is the lifecycle state of a proving task.
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
	TaskStatusCancelled TaskStatus = "cancelled"
)

// ProofTask is one queued proving job.
type ProofTask struct {
	TaskID      string
	Witness     *QueryWitness
	SubmittedAt time.Time

	status atomic.Value // TaskStatus
}

// NewProofTask wraps a witness in a task with a fresh ID.
func NewProofTask(w *QueryWitness) *ProofTask {
	t := &ProofTask{
		TaskID:      uuid.NewString(),
		Witness:     w,
		SubmittedAt: time.Now(),
	}
	t.status.Store(TaskStatusPending)
	return t
}

// Status returns the task's current lifecycle state.
func (t *ProofTask) Status() TaskStatus {
	s, _ := t.status.Load().(TaskStatus)
	return s
}

func (t *ProofTask) setStatus(s TaskStatus) {
	t.status.Store(s)
}

// ProofCallback receives the outcome of a proving task. Exactly one of
// result and err is non-nil.
type ProofCallback func(task *ProofTask, result *ProofResult, err error)

// WorkerHealthStatus classifies a worker by its recent outcomes.
type WorkerHealthStatus string

const (
	WorkerHealthHealthy   WorkerHealthStatus = "healthy"
	WorkerHealthDegraded  WorkerHealthStatus = "degraded"
	WorkerHealthUnhealthy WorkerHealthStatus = "unhealthy"
)

// proveWorker pulls tasks from the shared queue and runs the prover.
type proveWorker struct {
	workerID int
	taskCh   <-chan *ProofTask
	prover   *Prover
	callback ProofCallback
	timeout  time.Duration
	logger   log.Logger

	stopCh chan struct{}
	doneCh chan struct{}

	processedCount atomic.Int64
	successCount   atomic.Int64
	errorCount     atomic.Int64
	healthStatus   atomic.Value // WorkerHealthStatus
}

func newProveWorker(workerID int, taskCh <-chan *ProofTask, prover *Prover, callback ProofCallback, timeout time.Duration, logger log.Logger) *proveWorker {
	w := &proveWorker{
		workerID: workerID,
		taskCh:   taskCh,
		prover:   prover,
		callback: callback,
		timeout:  timeout,
		logger:   logger,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	w.healthStatus.Store(WorkerHealthHealthy)
	return w
}

func (w *proveWorker) start() {
	go w.run()
}

func (w *proveWorker) stop() {
	close(w.stopCh)
	<-w.doneCh
}

func (w *proveWorker) run() {
	defer close(w.doneCh)
	for {
		select {
		case <-w.stopCh:
			return
		case task, ok := <-w.taskCh:
			if !ok {
				return
			}
			w.processTask(task)
		}
	}
}

func (w *proveWorker) processTask(task *ProofTask) {
	task.setStatus(TaskStatusRunning)

	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	// Propagate pool shutdown into the prover's cancellation checkpoints.
	go func() {
		select {
		case <-w.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	result, err := w.prover.Prove(ctx, task.Witness)
	w.processedCount.Add(1)

	switch {
	case err == nil:
		w.successCount.Add(1)
		task.setStatus(TaskStatusCompleted)
	case ctx.Err() != nil:
		w.errorCount.Add(1)
		task.setStatus(TaskStatusCancelled)
	default:
		w.errorCount.Add(1)
		task.setStatus(TaskStatusFailed)
	}

	w.updateHealth()

	if w.callback != nil {
		w.callback(task, result, err)
	}
}

func (w *proveWorker) updateHealth() {
	errors := w.errorCount.Load()
	successes := w.successCount.Load()
	switch {
	case successes == 0 && errors > 10:
		w.healthStatus.Store(WorkerHealthUnhealthy)
	case errors > 0 && float64(errors)/float64(errors+successes) > 0.5:
		w.healthStatus.Store(WorkerHealthDegraded)
	default:
		w.healthStatus.Store(WorkerHealthHealthy)
	}
}

func (w *proveWorker) health() WorkerHealthStatus {
	s, _ := w.healthStatus.Load().(WorkerHealthStatus)
	return s
}

// ProvePool runs proving tasks on a fixed number of workers with a bounded
// queue. Submit is non-blocking; a full queue is backpressure, not a wait.
type ProvePool struct {
	workers  []*proveWorker
	taskCh   chan *ProofTask
	prover   *Prover
	callback ProofCallback
	timeout  time.Duration
	logger   log.Logger

	started    bool
	startMutex sync.Mutex
}

// NewProvePool creates a pool of workerCount workers with a queueSize task
// buffer.
func NewProvePool(prover *Prover, callback ProofCallback, workerCount, queueSize int, timeout time.Duration, logger log.Logger) *ProvePool {
	if workerCount <= 0 {
		workerCount = 1
	}
	if queueSize <= 0 {
		queueSize = 64
	}
	return &ProvePool{
		taskCh:   make(chan *ProofTask, queueSize),
		prover:   prover,
		callback: callback,
		timeout:  timeout,
		logger:   logger,
		workers:  make([]*proveWorker, 0, workerCount),
	}
}

// Start launches the workers.
func (p *ProvePool) Start() {
	p.startMutex.Lock()
	defer p.startMutex.Unlock()
	if p.started {
		return
	}
	for i := 0; i < cap(p.workers); i++ {
		w := newProveWorker(i, p.taskCh, p.prover, p.callback, p.timeout, p.logger)
		p.workers = append(p.workers, w)
		w.start()
	}
	p.started = true
	p.logger.Infof("prove pool started: workers=%d, queue=%d", len(p.workers), cap(p.taskCh))
}

// Stop halts the workers. Queued tasks that have not started are dropped;
// running tasks are cancelled through their contexts.
func (p *ProvePool) Stop() {
	p.startMutex.Lock()
	defer p.startMutex.Unlock()
	if !p.started {
		return
	}
	for _, w := range p.workers {
		w.stop()
	}
	p.workers = p.workers[:0]
	p.started = false
	p.logger.Info("prove pool stopped")
}

// Submit enqueues a task without blocking.
func (p *ProvePool) Submit(task *ProofTask) error {
	if task == nil {
		return fmt.Errorf("nil task")
	}
	select {
	case p.taskCh <- task:
		return nil
	default:
		return fmt.Errorf("prove queue full (%d pending)", cap(p.taskCh))
	}
}

// Stats reports aggregate pool counters.
func (p *ProvePool) Stats() map[string]interface{} {
	p.startMutex.Lock()
	defer p.startMutex.Unlock()

	var processed, successes, errors int64
	healthy := 0
	for _, w := range p.workers {
		processed += w.processedCount.Load()
		successes += w.successCount.Load()
		errors += w.errorCount.Load()
		if w.health() == WorkerHealthHealthy {
			healthy++
		}
	}
	return map[string]interface{}{
		"worker_count":    len(p.workers),
		"queued":          len(p.taskCh),
		"total_processed": processed,
		"total_success":   successes,
		"total_errors":    errors,
		"healthy_workers": healthy,
	}
}

// VerifyPool bounds concurrent verifications with a semaphore. It is
// deliberately separate from the prove pool so cheap verification never
// queues behind expensive proving.
type VerifyPool struct {
	verifier *Verifier
	sem      chan struct{}
}

// NewVerifyPool creates a verification pool with the given concurrency bound.
func NewVerifyPool(verifier *Verifier, maxConcurrent int) *VerifyPool {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &VerifyPool{
		verifier: verifier,
		sem:      make(chan struct{}, maxConcurrent),
	}
}

// Verify runs a verification, waiting for a slot if the pool is saturated.
func (p *VerifyPool) Verify(ctx context.Context, proofBytes []byte, pub PublicInputs) (*VerificationResult, error) {
	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-p.sem }()
	return p.verifier.Verify(ctx, proofBytes, pub)
}
