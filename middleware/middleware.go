// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

// Package middleware provides an ordered interceptor pipeline ("Phase")
// wrapping a terminal handler, generalized from the teacher's frame-type
// dispatch in internal/server/handler.go into a reusable decorator chain.
package middleware

import "context"

// Handler is the terminal step a Phase wraps: it actually produces a
// response for a request, with no further interceptors downstream.
type Handler[Req, Resp any] func(ctx context.Context, req Req) (Resp, error)

// Next is what an Interceptor calls to continue the chain.
type Next[Req, Resp any] func(ctx context.Context, req Req) (Resp, error)

// Interceptor may inspect or rewrite the request, call next to continue
// the chain, and inspect or rewrite the response, or short-circuit by
// never calling next.
type Interceptor[Req, Resp any] struct {
	Name string
	Fn   func(ctx context.Context, req Req, next Next[Req, Resp]) (Resp, error)
}

// Phase holds three ordered interceptor buckets around a terminal
// Handler. Interceptors run outermost-to-innermost in the order
// Before[0..], Default[0..], After[0..].
type Phase[Req, Resp any] struct {
	Before  []Interceptor[Req, Resp]
	Default []Interceptor[Req, Resp]
	After   []Interceptor[Req, Resp]
}

// NewPhase returns an empty Phase.
func NewPhase[Req, Resp any]() *Phase[Req, Resp] {
	return &Phase[Req, Resp]{}
}

// InsertBefore appends an interceptor to the Before bucket.
func (p *Phase[Req, Resp]) InsertBefore(name string, fn func(ctx context.Context, req Req, next Next[Req, Resp]) (Resp, error)) {
	p.Before = append(p.Before, Interceptor[Req, Resp]{Name: name, Fn: fn})
}

// InsertDefault appends an interceptor to the Default bucket.
func (p *Phase[Req, Resp]) InsertDefault(name string, fn func(ctx context.Context, req Req, next Next[Req, Resp]) (Resp, error)) {
	p.Default = append(p.Default, Interceptor[Req, Resp]{Name: name, Fn: fn})
}

// InsertAfter appends an interceptor to the After bucket.
func (p *Phase[Req, Resp]) InsertAfter(name string, fn func(ctx context.Context, req Req, next Next[Req, Resp]) (Resp, error)) {
	p.After = append(p.After, Interceptor[Req, Resp]{Name: name, Fn: fn})
}

// all returns every interceptor in execution order.
func (p *Phase[Req, Resp]) all() []Interceptor[Req, Resp] {
	out := make([]Interceptor[Req, Resp], 0, len(p.Before)+len(p.Default)+len(p.After))
	out = append(out, p.Before...)
	out = append(out, p.Default...)
	out = append(out, p.After...)
	return out
}

// Execute builds the chain around terminal and runs it against req.
// Interceptors are composed outermost-to-innermost: Before[0] wraps
// everything, After[last] sits closest to terminal.
func (p *Phase[Req, Resp]) Execute(ctx context.Context, req Req, terminal Handler[Req, Resp]) (Resp, error) {
	chain := p.all()
	var next Next[Req, Resp] = Next[Req, Resp](terminal)
	for i := len(chain) - 1; i >= 0; i-- {
		interceptor := chain[i]
		downstream := next
		next = func(ctx context.Context, req Req) (Resp, error) {
			return interceptor.Fn(ctx, req, downstream)
		}
	}
	return next(ctx, req)
}

// FindByName returns the named interceptor's bucket-relative index and
// the bucket it lives in ("before", "default", "after"), or false if no
// interceptor by that name is registered.
func (p *Phase[Req, Resp]) FindByName(name string) (bucket string, index int, ok bool) {
	for i, in := range p.Before {
		if in.Name == name {
			return "before", i, true
		}
	}
	for i, in := range p.Default {
		if in.Name == name {
			return "default", i, true
		}
	}
	for i, in := range p.After {
		if in.Name == name {
			return "after", i, true
		}
	}
	return "", 0, false
}
