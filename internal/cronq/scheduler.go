package cronq

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"cronq/internal/config"
	"cronq/internal/constants"
	"cronq/internal/lock"
	"cronq/internal/models"
	"cronq/internal/queue"
	"cronq/internal/reporting"
	"cronq/internal/state"
	"cronq/internal/store"
)

// ErrNotRestartable is returned when an instance restart is requested for an
// instance that already completed or is currently running.
var ErrNotRestartable = errors.New("instance is not restartable")

// Scheduler converts cron-scheduled intent into timed queue messages. Each
// poll cycle scans the job catalog, claims an instance row per due fire
// instant and enqueues one dispatch message timed to arrive at that instant.
type Scheduler struct {
	jobStore      store.JobStore
	instanceStore store.InstanceStore
	queue         queue.DelayQueue
	lockManager   lock.DistributedLockManager
	reporter      reporting.FailureReporter
	instance      string
	pollInterval  time.Duration
	workerCount   int
	batchSize     int
	results       chan models.ScheduleResult
	resultsDone   chan struct{}
	stopResults   context.CancelFunc
	now           func() time.Time
}

// pendingDispatch is a claimed fire instant awaiting its queue message.
type pendingDispatch struct {
	job        models.Job
	instanceID string
	fire       time.Time
}

func NewScheduler(
	cfg *config.Config,
	jobStore store.JobStore,
	instanceStore store.InstanceStore,
	delayQueue queue.DelayQueue,
	lockManager lock.DistributedLockManager,
	reporter reporting.FailureReporter,
) *Scheduler {
	scheduler := &Scheduler{
		jobStore:      jobStore,
		instanceStore: instanceStore,
		queue:         delayQueue,
		lockManager:   lockManager,
		reporter:      reporter,
		instance:      cfg.Instance,
		pollInterval:  cfg.PollInterval,
		workerCount:   cfg.WorkerCount,
		batchSize:     cfg.BatchSize,
		results:       make(chan models.ScheduleResult, 1000),
		resultsDone:   make(chan struct{}),
		now:           time.Now,
	}
	ctx, cancel := context.WithCancel(context.Background())
	scheduler.stopResults = cancel
	go scheduler.startResultProcessor(ctx)
	return scheduler
}

// Close stops the result processor and waits for it to drain.
func (s *Scheduler) Close() {
	s.stopResults()
	<-s.resultsDone
}

// Start runs poll cycles on the configured cadence until ctx is done. The
// lookahead window equals the cadence, so consecutive windows tile the
// timeline without overlap and each fire instant is claimed exactly once.
func (s *Scheduler) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := s.RunCycle(ctx); err != nil {
				log.Printf("Scheduler: cycle failed: %v", err)
			}
		}
	}
}

// RunCycle performs one poll in two phases. The claim phase scans the
// catalog and claims every fire instant due within this cycle's window,
// fanning out per job. The enqueue phase then publishes the claimed
// messages sequentially in ascending fire order, so queue backends that
// expire messages in queue order (RabbitMQ per-message TTL) release them on
// time. A catalog read failure aborts the scan (retried on the next tick)
// but already-claimed instants are still enqueued; per-job failures never
// abort the cycle.
func (s *Scheduler) RunCycle(ctx context.Context) error {
	if err := s.lockManager.Acquire(constants.SchedulerLock); err != nil {
		return fmt.Errorf("failed to acquire scheduler lock: %w", err)
	}
	defer s.lockManager.Release(constants.SchedulerLock)

	now := s.now()
	sem := semaphore.NewWeighted(int64(s.workerCount))
	var wg sync.WaitGroup
	var mu sync.Mutex
	var pending []pendingDispatch

	var fetchErr error
	page := 1
	for {
		result, err := s.jobStore.FetchActive(ctx, page, s.batchSize)
		if err != nil {
			fetchErr = fmt.Errorf("failed to query jobs: %w", err)
			s.reporter.Report("Job queueing exception", fetchErr.Error())
			break
		}

		for _, job := range result.Items {
			if err := sem.Acquire(ctx, 1); err != nil {
				log.Println("Scheduler: semaphore error:", err)
				continue
			}
			wg.Add(1)

			go func(job models.Job) {
				defer sem.Release(1)
				defer wg.Done()
				if p, claimed := s.claimDue(ctx, job, now); claimed {
					mu.Lock()
					pending = append(pending, p)
					mu.Unlock()
				}
			}(job)
		}

		if !result.HasNextPage {
			break
		}
		page++
	}

	wg.Wait()

	sort.Slice(pending, func(i, j int) bool { return pending[i].fire.Before(pending[j].fire) })
	for _, p := range pending {
		if err := s.enqueueClaim(ctx, p.job, p.instanceID, p.fire, now); err != nil {
			s.results <- models.ScheduleResult{JobName: p.job.Name, NextFire: p.fire, Err: err}
			continue
		}
		s.results <- models.ScheduleResult{
			JobName:    p.job.Name,
			InstanceID: p.instanceID,
			NextFire:   p.fire,
		}
	}

	return fetchErr
}

// claimDue evaluates one job against this cycle's window and, if it fires
// inside it, claims the (job, fire) instance row. Claiming before enqueueing
// makes overlapping cycles safe: the loser of the insert sees claimed=false
// and sends nothing.
func (s *Scheduler) claimDue(ctx context.Context, job models.Job, now time.Time) (pendingDispatch, bool) {
	fire, due, err := dueWithin(job.CronSchedule, now, s.pollInterval)
	if err != nil {
		s.results <- models.ScheduleResult{JobName: job.Name, Err: err}
		return pendingDispatch{}, false
	}
	if !due {
		return pendingDispatch{}, false
	}

	instanceID, claimed, err := s.claimInstance(ctx, job, fire)
	if err != nil {
		s.results <- models.ScheduleResult{JobName: job.Name, NextFire: fire, Err: err}
		return pendingDispatch{}, false
	}
	if !claimed {
		s.results <- models.ScheduleResult{JobName: job.Name, NextFire: fire, Skipped: true}
		return pendingDispatch{}, false
	}

	return pendingDispatch{job: job, instanceID: instanceID, fire: fire}, true
}

func (s *Scheduler) claimInstance(ctx context.Context, job models.Job, fire time.Time) (string, bool, error) {
	instanceID := uuid.New().String()
	claimed, err := s.instanceStore.Insert(ctx, models.Instance{
		ID:        instanceID,
		JobID:     job.ID,
		Status:    state.StatusQueued,
		StartTime: fire,
	})
	if err != nil {
		return "", false, fmt.Errorf("failed to record instance for job %s: %w", job.Name, err)
	}
	return instanceID, claimed, nil
}

// enqueueClaim places the timed message for an already-claimed instance. If
// the enqueue fails, the instance is failed rather than left to stall at
// queued.
func (s *Scheduler) enqueueClaim(ctx context.Context, job models.Job, instanceID string, fire, now time.Time) error {
	payload, err := models.NewDispatchMessage(job, instanceID).Encode()
	if err != nil {
		s.failInstance(ctx, instanceID, err)
		return err
	}

	delay := fire.Sub(now)
	if delay < 0 {
		// fire instant already passed within this window: immediate dispatch
		delay = 0
	}

	if err := s.queue.Enqueue(ctx, payload, delay); err != nil {
		s.failInstance(ctx, instanceID, err)
		return fmt.Errorf("failed to queue job %s: %w", job.Name, err)
	}
	return nil
}

func (s *Scheduler) failInstance(ctx context.Context, instanceID string, cause error) {
	if err := s.instanceStore.MarkFailed(ctx, instanceID, s.now(), cause.Error()); err != nil {
		log.Printf("Scheduler: failed to mark instance %s failed: %v", instanceID, err)
	}
}

// QueueJobNow enqueues a named job immediately, bypassing its cron timing.
// A fresh instance is created with start_time = now and the message carries
// no delivery delay.
func (s *Scheduler) QueueJobNow(ctx context.Context, name string) (string, error) {
	job, err := s.jobStore.FindByName(ctx, name)
	if err != nil {
		return "", err
	}

	now := s.now()
	instanceID, claimed, err := s.claimInstance(ctx, *job, now)
	if err == nil && !claimed {
		err = fmt.Errorf("job %s already has an instance for this instant", name)
	}
	if err == nil {
		err = s.enqueueClaim(ctx, *job, instanceID, now, now)
	}
	if err != nil {
		s.reporter.Report(fmt.Sprintf("Failed to queue job %s", name), err.Error())
		return "", err
	}
	return instanceID, nil
}

// RestartInstance replays the dispatch message of a failed or stalled
// instance with its original instance id. Failed instances are reset to
// queued first; completed and running instances are not restartable.
func (s *Scheduler) RestartInstance(ctx context.Context, instanceID string) error {
	instance, err := s.instanceStore.FindByID(ctx, instanceID)
	if err != nil {
		return err
	}

	switch instance.Status {
	case state.StatusQueued:
		// stalled at queued: replay without touching the row
	case state.StatusFailed:
		if err := s.instanceStore.MarkRequeued(ctx, instanceID); err != nil {
			return fmt.Errorf("failed to requeue instance %s: %w", instanceID, err)
		}
	default:
		return fmt.Errorf("%w: instance %s is %s", ErrNotRestartable, instanceID, instance.Status)
	}

	job, err := s.jobStore.FindByID(ctx, instance.JobID)
	if err != nil {
		return err
	}

	payload, err := models.NewDispatchMessage(*job, instanceID).Encode()
	if err != nil {
		return err
	}
	if err := s.queue.Enqueue(ctx, payload, 0); err != nil {
		return fmt.Errorf("failed to queue job %s: %w", job.Name, err)
	}
	return nil
}

func (s *Scheduler) startResultProcessor(ctx context.Context) {
	defer close(s.resultsDone)
	for {
		select {
		case <-ctx.Done():
			return
		case res := <-s.results:
			switch {
			case res.Err != nil:
				s.reporter.Report(fmt.Sprintf("Failed to queue job %s", res.JobName), res.Err.Error())
			case res.Skipped:
				log.Printf("Scheduler: job %s fire %s already claimed", res.JobName, res.NextFire.Format(time.RFC3339))
			default:
				log.Printf("Scheduler: queued job %s instance %s for %s", res.JobName, res.InstanceID, res.NextFire.Format(time.RFC3339))
			}
		}
	}
}
