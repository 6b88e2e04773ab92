// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package middleware

import (
	"context"
	"errors"
	"testing"
)

func TestExecuteRunsBeforeDefaultAfterInOrder(t *testing.T) {
	var order []string
	p := NewPhase[string, string]()
	p.InsertDefault("default-a", func(ctx context.Context, req string, next Next[string, string]) (string, error) {
		order = append(order, "default-a")
		return next(ctx, req)
	})
	p.InsertBefore("before-a", func(ctx context.Context, req string, next Next[string, string]) (string, error) {
		order = append(order, "before-a")
		return next(ctx, req)
	})
	p.InsertAfter("after-a", func(ctx context.Context, req string, next Next[string, string]) (string, error) {
		order = append(order, "after-a")
		return next(ctx, req)
	})

	terminal := func(ctx context.Context, req string) (string, error) {
		order = append(order, "terminal")
		return req + "-done", nil
	}

	resp, err := p.Execute(context.Background(), "req", terminal)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if resp != "req-done" {
		t.Fatalf("unexpected response: %q", resp)
	}
	want := []string{"before-a", "default-a", "after-a", "terminal"}
	if len(order) != len(want) {
		t.Fatalf("expected call order %v, got %v", want, order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("expected call order %v, got %v", want, order)
		}
	}
}

func TestInterceptorCanShortCircuit(t *testing.T) {
	p := NewPhase[string, string]()
	var terminalCalled bool
	p.InsertBefore("guard", func(ctx context.Context, req string, next Next[string, string]) (string, error) {
		return "", errors.New("denied")
	})
	terminal := func(ctx context.Context, req string) (string, error) {
		terminalCalled = true
		return "", nil
	}
	_, err := p.Execute(context.Background(), "req", terminal)
	if err == nil {
		t.Fatal("expected error from short-circuiting interceptor")
	}
	if terminalCalled {
		t.Fatal("expected terminal handler to never be called")
	}
}

func TestFindByNameLocatesAcrossBuckets(t *testing.T) {
	p := NewPhase[string, string]()
	noop := func(ctx context.Context, req string, next Next[string, string]) (string, error) {
		return next(ctx, req)
	}
	p.InsertBefore("b", noop)
	p.InsertDefault("d", noop)
	p.InsertAfter("a", noop)

	if bucket, idx, ok := p.FindByName("d"); !ok || bucket != "default" || idx != 0 {
		t.Fatalf("expected default/0, got %s/%d/%v", bucket, idx, ok)
	}
	if _, _, ok := p.FindByName("missing"); ok {
		t.Fatal("expected missing interceptor to not be found")
	}
}

func TestEmptyPhaseCallsTerminalDirectly(t *testing.T) {
	p := NewPhase[int, int]()
	resp, err := p.Execute(context.Background(), 41, func(ctx context.Context, req int) (int, error) {
		return req + 1, nil
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if resp != 42 {
		t.Fatalf("expected 42, got %d", resp)
	}
}
