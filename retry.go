package steadfast

import (
	"time"

	"github.com/efritz/backoff"
	"github.com/efritz/glock"
)

type (
	// RetryPolicy bounds the number of attempts made for a command. A
	// zero MaxRetries disables retrying altogether, and failures are
	// returned as they occur. RetryInterval is the fixed delay between
	// attempts unless a different backoff is supplied.
	RetryPolicy struct {
		MaxRetries    int
		RetryInterval time.Duration
	}

	retryingExecutor struct {
		executor *executor
		policy   RetryPolicy
		backoff  backoff.Backoff
		clock    glock.Clock
		logger   Logger
	}
)

func newRetryingExecutor(
	executor *executor,
	policy RetryPolicy,
	delay backoff.Backoff,
	clock glock.Clock,
	logger Logger,
) *retryingExecutor {
	if delay == nil {
		delay = backoff.NewConstantBackoff(policy.RetryInterval)
	}

	return &retryingExecutor{
		executor: executor,
		policy:   policy,
		backoff:  delay,
		clock:    clock,
		logger:   logger,
	}
}

// execute runs a single command under the retry policy.
func (r *retryingExecutor) execute(command Command) (interface{}, error) {
	if r.policy.MaxRetries <= 0 {
		return r.executor.executeOnce(command)
	}

	var result interface{}
	err := r.retry(command.name, func() (err error) {
		result, err = r.executor.executeOnce(command)
		return err
	})

	return result, err
}

// executeBatch runs a command sequence under the retry policy. Each
// attempt resends the entire sequence on a fresh connection, so the
// sequence must be safe to resend: commands that reached the server
// before the connection broke are applied again.
func (r *retryingExecutor) executeBatch(commands []Command) ([]interface{}, error) {
	if r.policy.MaxRetries <= 0 {
		return r.executor.executeBatchOnce(commands)
	}

	var results []interface{}
	err := r.retry(describeBatch(commands), func() (err error) {
		results, err = r.executor.executeBatchOnce(commands)
		return err
	})

	return results, err
}

// executeTransaction runs a MULTI ... EXEC sequence under the retry policy
// and returns the EXEC reply. If the connection breaks after EXEC was
// written but before its reply was read, the server may already have
// committed; the retry then applies the whole transaction a second time.
// Non-idempotent transactions should use executeTransactionOnce.
func (r *retryingExecutor) executeTransaction(commands []Command) (interface{}, error) {
	if r.policy.MaxRetries <= 0 {
		return r.executor.executeTransactionOnce(commands)
	}

	var reply interface{}
	err := r.retry("transaction", func() (err error) {
		reply, err = r.executor.executeTransactionOnce(commands)
		return err
	})

	return reply, err
}

// retry invokes f until it succeeds, fails with something other than a
// connection error, or the attempts run out. The connection is closed
// after each failed attempt and the backoff interval is waited before
// the next one.
func (r *retryingExecutor) retry(description string, f func() error) error {
	r.backoff.Reset()

	var lastErr error
	for attempt := 1; attempt <= r.policy.MaxRetries; attempt++ {
		err := f()
		if err == nil || !IsConnectionError(err) {
			return err
		}

		lastErr = err
		r.logger.Errorf("Attempt %d/%d of %s failed (%s)", attempt, r.policy.MaxRetries, description, err.Error())
		r.executor.session.discard()

		if attempt == r.policy.MaxRetries {
			break
		}

		if interval := r.backoff.NextInterval(); interval > 0 {
			<-r.clock.After(interval)
		}
	}

	return &RetriesExhaustedError{
		Attempts: r.policy.MaxRetries,
		Err:      lastErr,
	}
}

func describeBatch(commands []Command) string {
	if len(commands) == 0 {
		return "empty batch"
	}

	return "batch starting with " + commands[0].name
}
