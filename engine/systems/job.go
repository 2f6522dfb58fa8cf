package systems

import (
	"errors"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/spaghettifunk/prism/engine/core"
)

var (
	ErrNoWorkers           = errors.New("attempting to create worker pool with less than 1 worker")
	ErrNegativeChannelSize = errors.New("attempting to create worker pool with a negative channel size")
	ErrJobSystemStopped    = errors.New("job system is shut down")
)

// Job is work split in two halves: Run happens on a worker goroutine,
// OnComplete or OnFailure happen on the thread calling Update. GPU uploads
// belong in OnComplete.
type Job struct {
	Name       string
	Run        func() (any, error)
	OnComplete func(result any)
	OnFailure  func(err error)
}

type jobResult struct {
	job    Job
	result any
	err    error
}

type JobSystem struct {
	logger     *log.Logger
	numWorkers int
	jobQueue   chan Job
	wg         sync.WaitGroup

	mu      sync.Mutex
	stopped bool
	done    []jobResult
}

func NewJobSystem(logger *log.Logger, numWorkers, channelSize int) (*JobSystem, error) {
	if numWorkers <= 0 {
		return nil, ErrNoWorkers
	}
	if channelSize < 0 {
		return nil, ErrNegativeChannelSize
	}
	js := &JobSystem{
		logger:     core.OrDiscard(logger).WithPrefix("jobs"),
		numWorkers: numWorkers,
		jobQueue:   make(chan Job, channelSize),
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
				result, err := job.Run()
				if err != nil {
					js.logger.Error("job failed", "job", job.Name, "err", err)
				}
				js.mu.Lock()
				js.done = append(js.done, jobResult{job: job, result: result, err: err})
				js.mu.Unlock()
			}
		}()
	}
}

// Submit queues job, blocking while the queue is full.
func (js *JobSystem) Submit(job Job) error {
	js.mu.Lock()
	stopped := js.stopped
	js.mu.Unlock()
	if stopped {
		return ErrJobSystemStopped
	}
	js.jobQueue <- job
	return nil
}

/**
 * @brief Runs the callbacks of finished jobs. Should happen once an update
 * cycle, on the thread that owns the renderer.
 * @return The number of jobs whose callbacks ran.
 */
func (js *JobSystem) Update() int {
	js.mu.Lock()
	done := js.done
	js.done = nil
	js.mu.Unlock()
	for _, d := range done {
		if d.err != nil {
			if d.job.OnFailure != nil {
				d.job.OnFailure(d.err)
			}
			continue
		}
		if d.job.OnComplete != nil {
			d.job.OnComplete(d.result)
		}
	}
	return len(done)
}

/**
 * @brief Shuts the job system down. Queued jobs still run and their
 * callbacks fire before Shutdown returns.
 */
func (js *JobSystem) Shutdown() error {
	js.mu.Lock()
	if js.stopped {
		js.mu.Unlock()
		return nil
	}
	js.stopped = true
	js.mu.Unlock()
	close(js.jobQueue)
	js.wg.Wait()
	js.Update()
	return nil
}
