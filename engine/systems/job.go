package systems

import (
	"errors"
	"fmt"
	"sync"

	"github.com/spaghettifunk/hawk/engine/core"
)

var (
	ErrNoWorkers           = errors.New("attempting to create worker pool with less than 1 worker")
	ErrNegativeChannelSize = errors.New("attempting to create worker pool with a negative channel size")
	ErrJobSystemShutdown   = errors.New("job system is shut down")
)

// JobTask is one unit of work. OnComplete or OnFailure runs on the worker
// after OnStart returns.
type JobTask struct {
	Name       string
	OnStart    func() error
	OnComplete func()
	OnFailure  func(err error)
}

/**
 * @brief A fixed pool of workers draining a buffered job queue. Jobs run in
 * no particular order.
 */
type JobSystem struct {
	numWorkers int
	jobQueue   chan JobTask
	workers    sync.WaitGroup
	inFlight   sync.WaitGroup

	mu       sync.RWMutex
	isClosed bool
}

func NewJobSystem(numWorkers int, channelSize int) (*JobSystem, error) {
	if numWorkers <= 0 {
		return nil, ErrNoWorkers
	}
	if channelSize < 0 {
		return nil, ErrNegativeChannelSize
	}
	js := &JobSystem{
		numWorkers: numWorkers,
		jobQueue:   make(chan JobTask, channelSize),
	}
	js.start()
	return js, nil
}

func (js *JobSystem) start() {
	for i := 0; i < js.numWorkers; i++ {
		js.workers.Add(1)
		go func() {
			defer js.workers.Done()
			for job := range js.jobQueue {
				js.run(job)
			}
		}()
	}
}

func (js *JobSystem) run(job JobTask) {
	defer js.inFlight.Done()
	err := job.OnStart()
	if err != nil {
		core.LogDebug("job %s failed: %s", job.Name, err)
		if job.OnFailure != nil {
			job.OnFailure(err)
		}
		return
	}
	if job.OnComplete != nil {
		job.OnComplete()
	}
}

/**
 * @brief Submits the provided job to be queued for execution. Blocks while
 * the queue is full.
 */
func (js *JobSystem) Submit(jt JobTask) error {
	if jt.OnStart == nil {
		return fmt.Errorf("job %s has no OnStart", jt.Name)
	}
	js.mu.RLock()
	defer js.mu.RUnlock()
	if js.isClosed {
		return ErrJobSystemShutdown
	}
	js.inFlight.Add(1)
	js.jobQueue <- jt
	return nil
}

// Wait blocks until every submitted job has finished.
func (js *JobSystem) Wait() {
	js.inFlight.Wait()
}

/**
 * @brief Shuts the job system down after the queued jobs have run.
 */
func (js *JobSystem) Shutdown() error {
	js.mu.Lock()
	if js.isClosed {
		js.mu.Unlock()
		return ErrJobSystemShutdown
	}
	js.isClosed = true
	close(js.jobQueue)
	js.mu.Unlock()
	js.workers.Wait()
	return nil
}
