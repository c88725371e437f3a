package cronq

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"cronq/internal/config"
	"cronq/internal/models"
	"cronq/internal/queue"
	"cronq/internal/reporting"
	"cronq/internal/state"
	"cronq/internal/store"
)

// Dispatcher consumes released dispatch messages and turns each into an HTTP
// invocation of the job's execution endpoint, moving (and solely owning) the
// instance row out of queued.
type Dispatcher struct {
	instanceStore  store.InstanceStore
	queue          queue.DelayQueue
	client         *http.Client
	reporter       reporting.FailureReporter
	machine        string
	workerCount    int
	receiveBackoff time.Duration
	results        chan models.DispatchResult
	resultsDone    chan struct{}
	stopResults    context.CancelFunc
	now            func() time.Time
}

func NewDispatcher(
	cfg *config.Config,
	instanceStore store.InstanceStore,
	delayQueue queue.DelayQueue,
	reporter reporting.FailureReporter,
) *Dispatcher {
	dispatcher := &Dispatcher{
		instanceStore:  instanceStore,
		queue:          delayQueue,
		client:         &http.Client{Timeout: cfg.DispatchTimeout},
		reporter:       reporter,
		machine:        cfg.Instance,
		workerCount:    cfg.WorkerCount,
		receiveBackoff: time.Second,
		results:        make(chan models.DispatchResult, 1000),
		resultsDone:    make(chan struct{}),
		now:            time.Now,
	}
	ctx, cancel := context.WithCancel(context.Background())
	dispatcher.stopResults = cancel
	go dispatcher.startResultProcessor(ctx)
	return dispatcher
}

// Close stops the result processor and waits for it to drain.
func (d *Dispatcher) Close() {
	d.stopResults()
	<-d.resultsDone
}

// Start consumes the queue until ctx is done. Processing failures never stop
// the loop; each message is handled as its own unit of work.
func (d *Dispatcher) Start(ctx context.Context) error {
	sem := semaphore.NewWeighted(int64(d.workerCount))
	var wg sync.WaitGroup

	for {
		delivery, err := d.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				wg.Wait()
				log.Println("Dispatcher stopped")
				return ctx.Err()
			}
			if errors.Is(err, queue.ErrClosed) {
				wg.Wait()
				return err
			}
			// a transient receive failure must not kill the consumer loop;
			// back off and try again
			log.Printf("Dispatcher: receive failed: %v", err)
			select {
			case <-ctx.Done():
				wg.Wait()
				return ctx.Err()
			case <-time.After(d.receiveBackoff):
			}
			continue
		}

		if err := sem.Acquire(ctx, 1); err != nil {
			wg.Wait()
			return err
		}
		wg.Add(1)

		go func(delivery *queue.Delivery) {
			defer sem.Release(1)
			defer wg.Done()
			d.process(ctx, delivery)
		}(delivery)
	}
}

func (d *Dispatcher) process(ctx context.Context, delivery *queue.Delivery) {
	msg, err := models.DecodeDispatchMessage(delivery.Body)
	if err != nil {
		// poison message: record it and drop it rather than redeliver forever
		d.results <- models.DispatchResult{Err: err}
		d.ack(ctx, delivery)
		return
	}

	instance, err := d.instanceStore.FindByID(ctx, msg.InstanceID)
	if errors.Is(err, store.ErrInstanceNotFound) {
		// instance row was deleted after enqueue (job aborted): the message
		// still arrives and must be a no-op
		log.Printf("Dispatcher: no instance %s for job %s, dropping message", msg.InstanceID, msg.JobName)
		d.ack(ctx, delivery)
		return
	}
	if err != nil {
		// leave unacked; the visibility timeout redelivers it
		d.results <- models.DispatchResult{JobName: msg.JobName, InstanceID: msg.InstanceID, Err: err}
		return
	}

	if instance.Status.IsTerminal() {
		// duplicate delivery of an already-settled instance
		log.Printf("Dispatcher: instance %s already %s, dropping duplicate", msg.InstanceID, instance.Status)
		d.ack(ctx, delivery)
		return
	}

	if instance.Status == state.StatusQueued {
		if err := d.instanceStore.MarkRunning(ctx, msg.InstanceID, d.machine); err != nil {
			log.Printf("Dispatcher: failed to mark instance %s running: %v", msg.InstanceID, err)
		}
	}

	started := d.now()
	err = d.invoke(ctx, msg)
	elapsed := d.now().Sub(started)

	if err != nil {
		endTime := d.now()
		if mErr := d.instanceStore.MarkFailed(ctx, msg.InstanceID, endTime, err.Error()); mErr != nil {
			log.Printf("Dispatcher: failed to mark instance %s failed: %v", msg.InstanceID, mErr)
		}
		d.results <- models.DispatchResult{
			JobName:    msg.JobName,
			InstanceID: msg.InstanceID,
			Status:     state.StatusFailed,
			Elapsed:    elapsed,
			Err:        err,
		}
		// the failure is settled in the ledger; redelivery is not the retry
		// path, the restart endpoint is
		d.ack(ctx, delivery)
		return
	}

	if mErr := d.instanceStore.MarkCompleted(ctx, msg.InstanceID, d.now()); mErr != nil {
		log.Printf("Dispatcher: failed to mark instance %s completed: %v", msg.InstanceID, mErr)
	}
	d.results <- models.DispatchResult{
		JobName:    msg.JobName,
		InstanceID: msg.InstanceID,
		Status:     state.StatusCompleted,
		Elapsed:    elapsed,
	}
	d.ack(ctx, delivery)
}

func (d *Dispatcher) invoke(ctx context.Context, msg models.DispatchMessage) error {
	body, err := msg.RequestBody()
	if err != nil {
		return err
	}

	method := strings.ToUpper(msg.DispatchMethod)
	if method == "" {
		method = http.MethodGet
	}

	req, err := http.NewRequestWithContext(ctx, method, msg.DispatchEndpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build dispatch request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("dispatch call failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("dispatch endpoint returned %s", resp.Status)
	}
	return nil
}

func (d *Dispatcher) ack(ctx context.Context, delivery *queue.Delivery) {
	if err := d.queue.Ack(ctx, delivery); err != nil {
		log.Printf("Dispatcher: failed to ack delivery: %v", err)
	}
}

func (d *Dispatcher) startResultProcessor(ctx context.Context) {
	defer close(d.resultsDone)
	for {
		select {
		case <-ctx.Done():
			return
		case res := <-d.results:
			switch {
			case res.Err != nil && res.InstanceID == "":
				d.reporter.Report("Failed to decode dispatch message", res.Err.Error())
			case res.Err != nil:
				d.reporter.Report(
					fmt.Sprintf("Failed to start job %s with instance_id %s", res.JobName, res.InstanceID),
					res.Err.Error(),
				)
			default:
				log.Printf("Dispatcher: job %s instance %s %s in %s", res.JobName, res.InstanceID, res.Status, res.Elapsed)
			}
		}
	}
}
