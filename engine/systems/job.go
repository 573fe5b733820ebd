package systems

import (
	"fmt"
	"sync"

	"github.com/spaghettifunk/continuum/engine/core"
)

// JobTask is one unit of work for the job system.
type JobTask struct {
	Name string
	Run  func() error
	// Called after Run succeeded.
	OnComplete func()
	// Called with the error Run returned.
	OnFailure func(err error)
	// Called last, whatever the outcome.
	OnCompletionCallback func()
}

type JobSystem struct {
	numWorkers int
	jobQueue   chan JobTask
	wg         sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

var ErrNoWorkers = fmt.Errorf("attempting to create worker pool with less than 1 worker")
var ErrNegativeChannelSize = fmt.Errorf("attempting to create worker pool with a negative channel size")
var ErrJobSystemClosed = fmt.Errorf("job system is shut down")

func NewJobSystem(numWorkers int, channelSize int) (*JobSystem, error) {
	if numWorkers <= 0 {
		return nil, ErrNoWorkers
	}
	if channelSize < 0 {
		return nil, ErrNegativeChannelSize
	}

	jq := make(chan JobTask, channelSize)
	js := &JobSystem{
		numWorkers: numWorkers,
		jobQueue:   jq,
	}

	js.start()

	return js, nil
}

func (js *JobSystem) start() {
	for i := 0; i < js.numWorkers; i++ {
		js.wg.Add(1)
		go func() {
			defer js.wg.Done()
			for job := range js.jobQueue {
				js.run(job)
			}
		}()
	}
}

func (js *JobSystem) run(job JobTask) {
	defer func() {
		if job.OnCompletionCallback != nil {
			job.OnCompletionCallback()
		}
	}()
	if job.Run == nil {
		return
	}
	if err := job.Run(); err != nil {
		core.LogError("job '%s' failed: %s", job.Name, err)
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
 * @brief Shuts the job system down. Queued jobs still run; calling it twice is a no-op.
 */
func (js *JobSystem) Shutdown() error {
	js.mu.Lock()
	if js.closed {
		js.mu.Unlock()
		return nil
	}
	js.closed = true
	close(js.jobQueue)
	js.mu.Unlock()

	js.wg.Wait()
	return nil
}

/**
 * @brief Submits the provided job to be queued for execution.
 * @param info The description of the job to be executed.
 */
func (js *JobSystem) Submit(jt JobTask) error {
	js.mu.RLock()
	defer js.mu.RUnlock()
	if js.closed {
		return ErrJobSystemClosed
	}
	js.jobQueue <- jt
	return nil
}

// RunAll runs every task on the workers, waits for all of them and returns
// the error of the lowest-indexed task that failed. It must not be called
// from inside a job.
func (js *JobSystem) RunAll(tasks []JobTask) error {
	errs := make([]error, len(tasks))
	var wg sync.WaitGroup
	for i := range tasks {
		i := i
		task := tasks[i]
		onFailure := task.OnFailure
		done := task.OnCompletionCallback
		task.OnFailure = func(err error) {
			errs[i] = err
			if onFailure != nil {
				onFailure(err)
			}
		}
		task.OnCompletionCallback = func() {
			if done != nil {
				done()
			}
			wg.Done()
		}

		wg.Add(1)
		if err := js.Submit(task); err != nil {
			errs[i] = err
			wg.Done()
		}
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
