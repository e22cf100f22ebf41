package store

import (
	"context"
	"testing"
)

func TestMemoryStoreSaveAndLoadWorkflow(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	rec := WorkflowRecord{UUID: "wf-1", Name: "demo", Status: WorkflowRunning, Objects: []string{"a", "b"}}

	if err := m.SaveWorkflow(ctx, rec); err != nil {
		t.Fatal(err)
	}
	got, err := m.LoadWorkflow(ctx, "wf-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "demo" || got.Status != WorkflowRunning || len(got.Objects) != 2 {
		t.Errorf("LoadWorkflow = %+v", got)
	}
}

func TestMemoryStoreLoadWorkflowNotFound(t *testing.T) {
	m := NewMemoryStore()
	_, err := m.LoadWorkflow(context.Background(), "missing")
	if err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStoreSaveWorkflowOverwritesExisting(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	_ = m.SaveWorkflow(ctx, WorkflowRecord{UUID: "wf-1", Status: WorkflowRunning})
	_ = m.SaveWorkflow(ctx, WorkflowRecord{UUID: "wf-1", Status: WorkflowCompleted})

	got, err := m.LoadWorkflow(ctx, "wf-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != WorkflowCompleted {
		t.Errorf("status = %v, want %v", got.Status, WorkflowCompleted)
	}
}

func TestMemoryStoreTokenStatusRoundTrip(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()

	if err := m.SaveTokenStatus(ctx, "wf-1", "tok-1", TokenRunning, []int{0, 2}); err != nil {
		t.Fatal(err)
	}
	status, err := m.LoadTokenStatus(ctx, "wf-1", "tok-1")
	if err != nil {
		t.Fatal(err)
	}
	if status != TokenRunning {
		t.Errorf("status = %v, want %v", status, TokenRunning)
	}
}

func TestMemoryStoreTaskCounterIsDefensivelyCopied(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	counter := []int{1, 2, 3}

	_ = m.SaveTokenStatus(ctx, "wf-1", "tok-1", TokenRunning, counter)
	counter[0] = 999

	m.mu.RLock()
	stored := m.counters["wf-1"]["tok-1"]
	m.mu.RUnlock()
	if stored[0] != 1 {
		t.Errorf("SaveTokenStatus should copy taskCounter defensively; stored = %v", stored)
	}
}

func TestMemoryStoreLoadTokenStatusNotFound(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()

	if _, err := m.LoadTokenStatus(ctx, "missing-wf", "tok-1"); err != ErrNotFound {
		t.Errorf("unknown workflow: expected ErrNotFound, got %v", err)
	}

	_ = m.SaveTokenStatus(ctx, "wf-1", "tok-1", TokenRunning, nil)
	if _, err := m.LoadTokenStatus(ctx, "wf-1", "missing-tok"); err != ErrNotFound {
		t.Errorf("unknown token: expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStoreSetTokenError(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()

	if err := m.SetTokenError(ctx, "wf-1", "tok-1", "boom"); err != nil {
		t.Fatal(err)
	}
	m.mu.RLock()
	msg := m.errors["wf-1"]["tok-1"]
	m.mu.RUnlock()
	if msg != "boom" {
		t.Errorf("error message = %q, want boom", msg)
	}
}
