package combinator

import (
	"fmt"
	"sync"
	"time"

	"github.com/dshills/taskflow-go/taskengine"
)

// Branch is a unit of parallel work: a duplicated engine runs it against
// the same token that triggered the split.
type Branch func(tok taskengine.Token, eng *taskengine.Engine)

// PARALLEL_SPLIT fires every branch on its own duplicated Engine (§5's
// "duplicated engine instance" model) and its own goroutine, sharing
// eng.ExtraData["lock"] — a *sync.Mutex lazily installed on the parent and
// copied by reference into each duplicate — so branches that touch common
// state outside the token can serialize through it themselves. The split is
// fire-and-forget: it does not wait for branches to finish, matching the
// original's asynchronous PARALLEL_SPLIT, and any transfer a branch raises
// stays local to that branch's duplicated engine (it never reaches the
// splitting engine's pending slot).
func PARALLEL_SPLIT(branches ...Branch) taskengine.Callback {
	return func(tok taskengine.Token, eng *taskengine.Engine) {
		lock := sharedLock(eng)
		for _, branch := range branches {
			dup := eng.Duplicate()
			dup.ExtraData["lock"] = lock
			go func(b Branch, d *taskengine.Engine) {
				defer func() { _ = recover() }()
				b(tok, d)
			}(branch, dup)
		}
	}
}

// sharedLock returns the parent engine's shared lock, creating it on first
// use so repeated PARALLEL_SPLIT/SYNCHRONIZE calls on the same engine all
// coordinate through the same mutex.
func sharedLock(eng *taskengine.Engine) *sync.Mutex {
	if l, ok := eng.ExtraData["lock"].(*sync.Mutex); ok {
		return l
	}
	l := &sync.Mutex{}
	eng.ExtraData["lock"] = l
	return l
}

// SYNCHRONIZE runs every branch on its own duplicated Engine and goroutine,
// waits up to timeout (eng.SynchronizeTimeout() if timeout<=0) for all of
// them to finish, then runs final on the *calling* engine — never on a
// duplicate — so final's side effects land on the original instruction
// pointer. If the timeout elapses first, final does NOT run and the
// engine raises a WorkflowError naming how many branches were still
// outstanding, mirroring the original's synchronize-or-fail contract.
func SYNCHRONIZE(timeout time.Duration, final taskengine.Callback, branches ...Branch) taskengine.Callback {
	return func(tok taskengine.Token, eng *taskengine.Engine) {
		if timeout <= 0 {
			timeout = eng.SynchronizeTimeout()
		}
		lock := sharedLock(eng)
		done := make(chan struct{}, len(branches))
		for _, branch := range branches {
			dup := eng.Duplicate()
			dup.ExtraData["lock"] = lock
			go func(b Branch, d *taskengine.Engine) {
				defer func() { _ = recover() }()
				defer func() { done <- struct{}{} }()
				b(tok, d)
			}(branch, dup)
		}

		remaining := len(branches)
		deadline := time.NewTimer(timeout)
		defer deadline.Stop()
		for remaining > 0 {
			select {
			case <-done:
				remaining--
			case <-deadline.C:
				eng.RaiseWorkflowError(fmt.Sprintf("SYNCHRONIZE timed out waiting for parallel branches: %d still outstanding", remaining), remaining)
				return
			}
		}
		if final != nil {
			final(tok, eng)
		}
	}
}
