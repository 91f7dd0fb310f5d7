// Package executor implements spec.md §4.A: running a unit of work with an
// absolute deadline, forcibly aborting it on timeout. Grounded on the
// teacher's goroutine-plus-channel service lifecycle
// (internal/communication/grpc/grpc_communicator.go's Start/Stop,
// internal/cluster_service/etcd/etcd_cluster_service.go's heartbeatLoop)
// generalized from "run a long-lived service loop" to "run one bounded
// unit of work".
package executor

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/DavidCohen17/ImpalaToGo/internal/logging"
)

// Status is the terminal disposition of a Run call, per spec.md §4.A.
type Status int

const (
	StatusOK Status = iota
	StatusTimeout
	StatusFailure
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusTimeout:
		return "TIMEOUT"
	case StatusFailure:
		return "FAILURE"
	default:
		return "UNKNOWN"
	}
}

// Work is a unit of work the executor runs. Implementations should observe
// ctx cancellation promptly; ctx is cancelled the moment the executor
// decides the work has timed out, per spec.md §9's cancellation-token-aware
// design note.
type Work func(ctx context.Context) (any, error)

// Outcome is the compound {status, result, error} value spec.md §4.B
// requires every remote call to produce.
type Outcome struct {
	Status Status
	Result any
	Err    error
}

// Executor runs Work with a bounded fan-out, shared process-wide per
// spec.md §4.A.
type Executor struct {
	ls  logging.Service
	sem chan struct{}
	eg  *errgroup.Group
}

// New builds an Executor whose worker fan-out is bounded by maxWorkers.
func New(maxWorkers int, ls logging.Service) *Executor {
	if maxWorkers <= 0 {
		maxWorkers = 1
	}
	return &Executor{
		ls:  ls.With("executor"),
		sem: make(chan struct{}, maxWorkers),
		eg:  &errgroup.Group{},
	}
}

type workResult struct {
	res any
	err error
}

// Run executes work under a deadline. On timeout, the work's context is
// cancelled immediately; the worker goroutine is detached (Go offers no
// forceful goroutine termination) but still occupies its fan-out slot
// until it actually returns, which is what bounds total concurrency even
// across abandoned workers — see spec.md §9's "resources released within a
// bounded additional delay" note: callers relying on ctx-aware work get
// that bound, callers wrapping opaque blocking code do not, and should be
// migrated to a ctx-aware primitive.
func (e *Executor) Run(parent context.Context, work Work, timeout time.Duration) Outcome {
	select {
	case e.sem <- struct{}{}:
	case <-parent.Done():
		return Outcome{Status: StatusFailure, Err: parent.Err()}
	}

	workCtx, cancel := context.WithCancel(parent)
	resultCh := make(chan workResult, 1)

	e.eg.Go(func() error {
		defer func() { <-e.sem }()
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				select {
				case resultCh <- workResult{nil, fmt.Errorf("executor: work panicked: %v", r)}:
				default:
				}
			}
		}()

		res, err := work(workCtx)
		resultCh <- workResult{res, err}
		return nil
	})

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case r := <-resultCh:
		if r.err != nil {
			return Outcome{Status: StatusFailure, Err: r.err}
		}
		return Outcome{Status: StatusOK, Result: r.res}
	case <-timer.C:
		cancel()
		e.ls.Warn(logging.Event{Message: "work unit exceeded timeout, cancelling", Metadata: map[string]any{"timeout": timeout.String()}})
		return Outcome{Status: StatusTimeout, Err: context.DeadlineExceeded}
	}
}

// Wait blocks until every worker launched by Run has returned. Intended
// for graceful shutdown of the embedding process, not for normal use.
func (e *Executor) Wait() error {
	return e.eg.Wait()
}
