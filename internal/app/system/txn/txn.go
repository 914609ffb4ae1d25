// internal/app/system/txn/txn.go

// Package txn runs multi-document mutations inside MongoDB transactions.
//
// Every operation that spans more than one entity (endorsement
// create/revoke, group join/leave) goes through Run or RunWithRetry so
// that partial effects are never observable: either the whole callback
// commits or the whole callback rolls back.
//
// Standalone servers (dev, CI) do not support multi-document
// transactions. When the server reports that, Run degrades to executing
// the callback directly so local development keeps working; the
// conditional updates inside the stores still hold the per-document
// invariants in that mode.
package txn

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/tkeshelashvili/ateuli/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Default retry policy for RunWithRetry. Conflicting transactions abort
// with a transient error; a bounded number of re-executions with backoff
// resolves the common case without surfacing a Conflict to the caller.
const (
	DefaultAttempts = 3
	retryBaseDelay  = 25 * time.Millisecond
)

// ErrConflict is returned when a transaction kept aborting on write
// conflicts after all retry attempts. Callers may surface it as a
// retryable conflict to their own callers.
var ErrConflict = errors.New("transaction aborted repeatedly on write conflict")

// Run executes fn inside a single MongoDB transaction. The context passed
// to fn carries the session; all collection operations inside fn must use
// that context to participate in the transaction.
func Run(ctx context.Context, db *mongo.Database, log *zap.Logger, fn func(ctx context.Context) error) error {
	sess, err := db.Client().StartSession()
	if err != nil {
		if IsNotSupported(err) {
			logFallback(log, err)
			return fn(ctx)
		}
		return err
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	if err != nil && IsNotSupported(err) {
		logFallback(log, err)
		return fn(ctx)
	}
	return err
}

// RunWithRetry executes fn as Run does, retrying the whole transaction a
// bounded number of times when it aborts on a transient conflict. The
// callback must be safe to re-execute from scratch (it is: each attempt
// re-reads its preconditions inside the new snapshot). Precondition and
// validation failures returned by fn are never retried. The whole retry
// sequence, backoff included, runs under the Long timeout tier.
func RunWithRetry(ctx context.Context, db *mongo.Database, log *zap.Logger, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, timeouts.Long())
	defer cancel()

	var err error
	for attempt := 1; attempt <= DefaultAttempts; attempt++ {
		err = Run(ctx, db, log, fn)
		if err == nil || !IsTransient(err) {
			return err
		}
		if log != nil {
			log.Warn("transaction conflict, retrying",
				zap.Int("attempt", attempt),
				zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryBaseDelay << (attempt - 1)):
		}
	}
	if err != nil {
		return errors.Join(ErrConflict, err)
	}
	return err
}

// IsTransient reports whether err is a conflict the caller may safely
// retry: a transaction that aborted because a concurrent transaction
// touched the same documents.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var le interface{ HasErrorLabel(string) bool }
	if errors.As(err, &le) {
		// Labels the server attaches to retryable transaction aborts.
		if le.HasErrorLabel("TransientTransactionError") || le.HasErrorLabel("UnknownTransactionCommitResult") {
			return true
		}
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && ce.Code == 112 { // WriteConflict
		return true
	}
	return false
}

// IsNotSupported reports whether err means the server cannot run
// multi-document transactions at all (standalone deployment, old server).
// Distinct from IsTransient: not-supported is permanent for the process
// lifetime and triggers the direct-execution fallback instead of a retry.
func IsNotSupported(err error) bool {
	if err == nil {
		return false
	}

	var ce mongo.CommandError
	if errors.As(err, &ce) {
		switch ce.Code {
		case 20, 51, 263: // IllegalOperation / transaction numbers / API mismatch
			return true
		}
	}

	msg := strings.ToLower(err.Error())
	has := func(s string) bool { return strings.Contains(msg, s) }
	if has("transaction") && (has("replica set") || has("session") || has("illegal operation")) {
		return true
	}
	if has("session") && has("not supported") {
		return true
	}
	return false
}

func logFallback(log *zap.Logger, err error) {
	if log != nil {
		log.Warn("mongo transactions unavailable, executing without transaction", zap.Error(err))
	}
}
