package combinator

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dshills/taskflow-go/taskengine"
)

func TestParallelSplitRunsAllBranches(t *testing.T) {
	var count int32
	var wg sync.WaitGroup
	wg.Add(3)

	branch := Branch(func(tok taskengine.Token, eng *taskengine.Engine) {
		atomic.AddInt32(&count, 1)
		wg.Done()
	})
	cb := PARALLEL_SPLIT(branch, branch, branch)

	eng, _ := taskengine.New()
	cb(semToken{}, eng)

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for all branches to run")
	}
	if atomic.LoadInt32(&count) != 3 {
		t.Errorf("count = %d, want 3", count)
	}
}

func TestParallelSplitSharesLockAcrossBranches(t *testing.T) {
	var locks []*sync.Mutex
	var mu sync.Mutex
	var wg sync.WaitGroup
	wg.Add(2)

	branch := Branch(func(tok taskengine.Token, eng *taskengine.Engine) {
		defer wg.Done()
		l, _ := eng.ExtraData["lock"].(*sync.Mutex)
		mu.Lock()
		locks = append(locks, l)
		mu.Unlock()
	})

	eng, _ := taskengine.New()
	cb := PARALLEL_SPLIT(branch, branch)
	cb(semToken{}, eng)
	wg.Wait()

	if len(locks) != 2 || locks[0] == nil || locks[0] != locks[1] {
		t.Errorf("branches did not share a common lock: %v", locks)
	}
}

func TestSynchronizeRunsFinalAfterAllBranchesComplete(t *testing.T) {
	var order []string
	var mu sync.Mutex
	record := func(name string) Branch {
		return func(tok taskengine.Token, eng *taskengine.Engine) {
			time.Sleep(10 * time.Millisecond)
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
		}
	}
	finalRan := false
	cb := SYNCHRONIZE(time.Second, func(tok taskengine.Token, eng *taskengine.Engine) {
		finalRan = true
	}, record("a"), record("b"))

	eng, _ := taskengine.New()
	cb(semToken{}, eng)

	if !finalRan {
		t.Fatal("final should run once all branches complete within the timeout")
	}
	mu.Lock()
	defer mu.Unlock()
	if len(order) != 2 {
		t.Errorf("order = %v, want 2 entries", order)
	}
}

func TestSynchronizeTimeoutSkipsFinalAndRaisesError(t *testing.T) {
	slow := Branch(func(tok taskengine.Token, eng *taskengine.Engine) {
		time.Sleep(time.Second)
	})
	finalRan := false
	cb := SYNCHRONIZE(20*time.Millisecond, func(tok taskengine.Token, eng *taskengine.Engine) {
		finalRan = true
	}, slow)

	eng, _ := taskengine.New()
	eng.Callbacks.SetWorkflow([]taskengine.ProgramNode{taskengine.Callback(cb)})
	err := eng.Process([]taskengine.Token{semToken{}})

	if finalRan {
		t.Error("final must not run when SYNCHRONIZE times out")
	}
	if err == nil {
		t.Fatal("expected a WorkflowError on timeout")
	}
	if _, ok := err.(*taskengine.WorkflowError); !ok {
		t.Errorf("expected *taskengine.WorkflowError, got %#v", err)
	}
}
