package systems

import (
	"fmt"
	"sync"

	"github.com/spaghettifunk/scenecull/engine/core"
	"github.com/spaghettifunk/scenecull/engine/renderer/metadata"
)

// JobSystem is a fixed pool of goroutines draining a job channel.
type JobSystem struct {
	numWorkers int
	jobQueue   chan metadata.JobTask
	wg         sync.WaitGroup

	// guards closed against sends in flight
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

	jq := make(chan metadata.JobTask, channelSize)
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

func (js *JobSystem) run(job metadata.JobTask) {
	results := make(chan interface{}, 1)
	err := job.OnStart(job.InputParams, results)
	close(results)
	if err != nil {
		core.LogError(err.Error())
		if job.OnFailure != nil {
			job.OnFailure(results)
		}
	} else if job.OnComplete != nil {
		job.OnComplete(results)
	}

	// Call the completion callback if set
	if job.OnCompletionCallback != nil {
		job.OnCompletionCallback()
	}
}

/**
 * @brief Shuts the job system down, waiting for queued jobs to finish.
 */
func (js *JobSystem) Shutdown() error {
	js.mu.Lock()
	if !js.closed {
		js.closed = true
		close(js.jobQueue)
	}
	js.mu.Unlock()
	js.wg.Wait()
	return nil
}

/**
 * @brief Submits the provided job to be queued for execution.
 * @param jt The description of the job to be executed.
 * @return ErrJobSystemClosed once the system is shut down; the job is dropped.
 */
func (js *JobSystem) Submit(jt metadata.JobTask) error {
	js.mu.RLock()
	defer js.mu.RUnlock()
	if js.closed {
		core.LogError("func Submit - %s", ErrJobSystemClosed)
		return ErrJobSystemClosed
	}
	js.jobQueue <- jt
	return nil
}

// ThreadCount returns the number of worker goroutines.
func (js *JobSystem) ThreadCount() int {
	return js.numWorkers
}

// ParallelFor runs fn(i) for i in [0, count) on the pool and waits for all
// of them. It must not be called from inside a job. After Shutdown the
// calls run on the caller.
func (js *JobSystem) ParallelFor(count int, fn func(i int)) {
	if count <= 0 {
		return
	}
	if count == 1 {
		fn(0)
		return
	}
	var done sync.WaitGroup
	done.Add(count)
	for i := 0; i < count; i++ {
		idx := i
		err := js.Submit(metadata.JobTask{
			OnStart: func(interface{}, chan<- interface{}) error {
				fn(idx)
				return nil
			},
			OnCompletionCallback: done.Done,
		})
		if err != nil {
			fn(idx)
			done.Done()
		}
	}
	done.Wait()
}
