package stageexec

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"slices"
	"strings"
	"sync"
	"time"

	"newsreel/internal/logging"
	"newsreel/internal/notifications"
	"newsreel/internal/queue"
	"newsreel/internal/services"
	"newsreel/internal/stage"
)

// JobStore is the slice of queue.Store that stage bookkeeping needs.
type JobStore interface {
	Commit(ctx context.Context, id int64, owner string, status queue.Status, out queue.Output) (*queue.Job, error)
	Fail(ctx context.Context, id int64, owner string, stage queue.Stage, failure queue.Failure) (queue.FailResult, error)
	Release(ctx context.Context, id int64, owner string) error
	RenewLease(ctx context.Context, id int64, owner string) error
}

// Options controls one stage execution against a claimed job.
type Options struct {
	Logger   *slog.Logger
	Store    JobStore
	Notifier notifications.Service
	Executor stage.Executor
	Stage    queue.Stage
	Owner    string
	Job      *queue.Job

	// Timeout bounds the executor call. Zero means no stage deadline.
	Timeout time.Duration
	// Heartbeat is the lease renewal interval. Zero disables renewal.
	Heartbeat time.Duration
	// Policy governs transient failures; MalformedMaxRetries caps malformed
	// output retries below Policy.MaxRetries.
	Policy              queue.RetryPolicy
	MalformedMaxRetries int
}

// Outcome reports what happened to the job.
type Outcome struct {
	Committed bool
	Job       *queue.Job
	// StageErr is the classified executor failure, when there was one.
	StageErr error
	Failure  queue.FailResult
}

// Run executes the stage for a job the caller has claimed and records the
// result: a successful run commits the executor's output, a failed run is
// classified and handed to Store.Fail. Executor failures never surface as the
// returned error; that is reserved for bookkeeping problems such as a lost
// lease or a cancelled parent context.
func Run(ctx context.Context, opts Options) (Outcome, error) {
	if opts.Executor == nil {
		return Outcome{}, fmt.Errorf("stage executor unavailable: %s", opts.Stage)
	}
	if opts.Store == nil {
		return Outcome{}, fmt.Errorf("job store is required")
	}
	if opts.Job == nil {
		return Outcome{}, fmt.Errorf("job is required")
	}
	job := opts.Job
	stageCtx := services.WithTrace(ctx, services.Trace{JobID: job.ID, Stage: string(opts.Stage), Worker: opts.Owner})
	logger := logging.WithContext(stageCtx, opts.Logger)
	stageCtx = logging.IntoContext(stageCtx, logger)

	attempt := job.Retries.For(opts.Stage) + 1
	logger.Info("stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.Int("attempt", attempt),
		logging.String("title", strings.TrimSpace(job.Title)),
	)
	started := time.Now()

	result, runErr := execute(stageCtx, opts, logger)
	if runErr != nil && ctx.Err() != nil {
		// Shutdown, not a stage failure: hand the job back untouched.
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := opts.Store.Release(releaseCtx, job.ID, opts.Owner); err != nil && !errors.Is(err, queue.ErrLeaseLost) {
			logger.Warn("failed to release lease on shutdown", logging.Error(err))
		}
		logger.Info("stage interrupted by shutdown", logging.String(logging.FieldEventType, "stage_interrupted"))
		return Outcome{}, ctx.Err()
	}

	if errors.Is(runErr, queue.ErrLeaseLost) {
		logging.WarnWithContext(logger, "lease lost during stage; abandoning job", "lease_lost",
			logging.Error(runErr),
			logging.String(logging.FieldImpact, "another worker owns the job"),
		)
		return Outcome{}, runErr
	}

	if runErr == nil && !slices.Contains(opts.Stage.Done(), result.Status) {
		runErr = services.Wrap(services.ErrConfiguration, string(opts.Stage), "commit",
			fmt.Sprintf("executor returned status %q", result.Status), queue.ErrInvalidTransition)
	}

	if runErr == nil {
		updated, err := commit(ctx, opts, logger, result)
		if err != nil {
			if errors.Is(err, queue.ErrLeaseLost) {
				logging.WarnWithContext(logger, "lease lost before commit; discarding stage output", "lease_lost",
					logging.Error(err),
					logging.String(logging.FieldImpact, "another worker owns the job"),
				)
				return Outcome{}, err
			}
			if errors.Is(err, queue.ErrInvalidTransition) {
				runErr = services.Wrap(services.ErrConfiguration, string(opts.Stage), "commit", "executor produced an invalid result", err)
			} else {
				// The stage's side effects stand; the next claim repeats them.
				logging.ErrorWithContext(logger, "stage output not persisted; releasing job", "commit_failed",
					logging.Error(err),
					logging.String(logging.FieldImpact, "stage reruns on next claim"),
				)
				if relErr := opts.Store.Release(ctx, job.ID, opts.Owner); relErr != nil {
					logger.Warn("failed to release lease after commit error", logging.Error(relErr))
				}
				return Outcome{}, fmt.Errorf("persist stage result: %w", err)
			}
		} else {
			logger.Info("stage completed",
				logging.String(logging.FieldEventType, "stage_complete"),
				logging.String("next_status", string(updated.Status)),
				logging.Duration("stage_duration", time.Since(started)),
			)
			return Outcome{Committed: true, Job: updated}, nil
		}
	}

	return recordFailure(ctx, opts, logger, runErr, attempt)
}

// commitAttempts bounds retries of a commit that failed for a reason other
// than the lease or the result itself.
const commitAttempts = 3

var commitBackoff = 100 * time.Millisecond

func commit(ctx context.Context, opts Options, logger *slog.Logger, result stage.Result) (*queue.Job, error) {
	for attempt := 1; ; attempt++ {
		updated, err := opts.Store.Commit(ctx, opts.Job.ID, opts.Owner, result.Status, result.Output)
		if err == nil || errors.Is(err, queue.ErrLeaseLost) || errors.Is(err, queue.ErrInvalidTransition) || attempt >= commitAttempts {
			return updated, err
		}
		logger.Warn("commit failed; retrying",
			logging.Int("attempt", attempt),
			logging.Error(err),
		)
		select {
		case <-ctx.Done():
			return nil, err
		case <-time.After(commitBackoff * time.Duration(attempt)):
		}
	}
}

// execute runs the executor under the stage deadline with a lease heartbeat,
// converting panics, deadlines, and unmarked errors into classified failures.
func execute(ctx context.Context, opts Options, logger *slog.Logger) (result stage.Result, err error) {
	runCtx := ctx
	var cancelRun context.CancelFunc
	if opts.Timeout > 0 {
		runCtx, cancelRun = context.WithTimeout(ctx, opts.Timeout)
	} else {
		runCtx, cancelRun = context.WithCancel(ctx)
	}
	defer cancelRun()

	var wg sync.WaitGroup
	var leaseErr error
	hbCtx, stopHeartbeat := context.WithCancel(runCtx)
	if opts.Heartbeat > 0 && opts.Owner != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			leaseErr = heartbeat(hbCtx, opts, logger)
			if leaseErr != nil {
				cancelRun()
			}
		}()
	}

	func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("stage panicked",
					logging.String(logging.FieldEventType, "stage_panic"),
					logging.Alert("stage_panic"),
					logging.Any("panic", r),
					logging.String("stack", string(debug.Stack())),
				)
				err = fmt.Errorf("stage panic: %v", r)
			}
		}()
		result, err = opts.Executor.Run(runCtx, opts.Job)
	}()
	stopHeartbeat()
	wg.Wait()

	if leaseErr != nil {
		return stage.Result{}, services.Wrap(services.ErrTransientExternal, string(opts.Stage), "heartbeat", "lease lost during stage", leaseErr)
	}
	if err == nil {
		return result, nil
	}
	if ctx.Err() != nil {
		return stage.Result{}, err
	}
	if errors.Is(err, context.DeadlineExceeded) || runCtx.Err() == context.DeadlineExceeded {
		return stage.Result{}, services.Wrap(services.ErrTransientExternal, string(opts.Stage), "run",
			fmt.Sprintf("stage timed out after %s", opts.Timeout), err)
	}
	return stage.Result{}, Classify(opts.Stage, err)
}

func heartbeat(ctx context.Context, opts Options, logger *slog.Logger) error {
	ticker := time.NewTicker(opts.Heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			err := opts.Store.RenewLease(ctx, opts.Job.ID, opts.Owner)
			switch {
			case err == nil:
			case errors.Is(err, queue.ErrLeaseLost):
				return err
			case errors.Is(err, context.Canceled):
				return nil
			default:
				logger.Warn("lease renewal failed", logging.Error(err), logging.String(logging.FieldEventType, "heartbeat_failed"))
			}
		}
	}
}

// Classify tags errors that carry no failure kind as transient external
// failures of stage.
func Classify(stg queue.Stage, err error) error {
	if err == nil {
		return nil
	}
	kind := services.KindOf(err)
	if errors.Is(err, kind.Marker()) {
		return err
	}
	return services.Wrap(services.ErrTransientExternal, string(stg), "run", "unclassified failure", err)
}

// PolicyFor narrows the retry policy for a failure kind.
func PolicyFor(kind services.Kind, base queue.RetryPolicy, malformedMax int) queue.RetryPolicy {
	policy := base
	if kind == services.KindMalformedOutput && malformedMax < policy.MaxRetries {
		policy.MaxRetries = malformedMax
	}
	return policy
}

func recordFailure(ctx context.Context, opts Options, logger *slog.Logger, stageErr error, attempt int) (Outcome, error) {
	details := services.Details(stageErr)
	message := strings.TrimSpace(details.Message)
	if message == "" {
		message = strings.TrimSpace(stageErr.Error())
	}
	if details.Cause != "" && !strings.Contains(message, details.Cause) {
		message = message + ": " + details.Cause
	}

	failure := queue.Failure{
		Kind:     details.Kind,
		Message:  message,
		Terminal: !details.Kind.Retryable(),
		Policy:   PolicyFor(details.Kind, opts.Policy, opts.MalformedMaxRetries),
	}
	res, err := opts.Store.Fail(ctx, opts.Job.ID, opts.Owner, opts.Stage, failure)
	if err != nil {
		logger.Error("failed to persist stage failure",
			logging.Error(err),
			logging.String(logging.FieldErrorKind, string(details.Kind)),
		)
		return Outcome{StageErr: stageErr}, fmt.Errorf("persist stage failure: %w", err)
	}

	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "stage_failure"),
		logging.String(logging.FieldErrorKind, string(details.Kind)),
		logging.String(logging.FieldErrorHint, details.Hint),
		logging.String("disposition", string(res.Disposition)),
		logging.String("resolved_status", string(res.Status)),
		logging.Int("attempt", attempt),
		logging.Int("max_retries", failure.Policy.MaxRetries),
		logging.Error(stageErr),
	}
	switch res.Disposition {
	case queue.DispositionRetry:
		attrs = append(attrs, logging.Duration("retry_in", time.Until(res.NextAttemptAt)))
		logging.WarnWithContext(logger, "stage failed; retry scheduled", "stage_retry", attrs...)
	default:
		attrs = append(attrs, logging.Alert("stage_failure"))
		logger.Error("stage failed", logging.Args(attrs...)...)
	}

	notify(ctx, opts, logger, res, details, message)
	return Outcome{StageErr: stageErr, Failure: res}, nil
}

func notify(ctx context.Context, opts Options, logger *slog.Logger, res queue.FailResult, details services.ErrorDetails, message string) {
	if opts.Notifier == nil {
		return
	}
	var event notifications.Event
	switch res.Disposition {
	case queue.DispositionReview:
		event = notifications.EventReview
	case queue.DispositionFailed:
		event = notifications.EventFailed
	default:
		return
	}
	if err := opts.Notifier.Publish(ctx, event, notifications.Payload{
		"title": opts.Job.Title,
		"jobID": opts.Job.ID,
		"stage": string(opts.Stage),
		"kind":  string(details.Kind),
		"error": message,
	}); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Debug("shutting down, could not send stage notification")
			return
		}
		logger.Debug("stage notification failed", logging.Error(err))
	}
}
