package preview

import (
	"context"
	"sync"
	"testing"
	"time"
)

type fakeRenderer struct {
	mu      sync.Mutex
	calls   []string
	started chan string
	blockOn string
}

func (f *fakeRenderer) Render(ctx context.Context, zpl string) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, zpl)
	f.mu.Unlock()
	if f.started != nil {
		f.started <- zpl
	}
	if zpl == f.blockOn {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return []byte("png:" + zpl), nil
}

func (f *fakeRenderer) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func waitResult(t *testing.T, ch <-chan Result) Result {
	t.Helper()
	select {
	case res := <-ch:
		return res
	case <-time.After(2 * time.Second):
		t.Fatalf("no preview delivered")
	}
	return Result{}
}

func expectNoResult(t *testing.T, ch <-chan Result) {
	t.Helper()
	select {
	case res := <-ch:
		t.Fatalf("unexpected delivery %+v", res)
	case <-time.After(60 * time.Millisecond):
	}
}

func TestDebouncerCollapsesBurst(t *testing.T) {
	r := &fakeRenderer{}
	results := make(chan Result, 4)
	d := NewDebouncer(r, 20*time.Millisecond, func(res Result) { results <- res })
	defer d.Close()

	d.Trigger("a")
	d.Trigger("b")
	gen := d.Trigger("c")

	res := waitResult(t, results)
	if res.Err != nil || string(res.Image) != "png:c" || res.Generation != gen {
		t.Fatalf("unexpected result %+v", res)
	}
	expectNoResult(t, results)
	if calls := r.Calls(); len(calls) != 1 || calls[0] != "c" {
		t.Fatalf("expected one render of c, got %v", calls)
	}
}

func TestDebouncerDropsSupersededInFlightRender(t *testing.T) {
	r := &fakeRenderer{started: make(chan string, 4), blockOn: "a"}
	results := make(chan Result, 4)
	d := NewDebouncer(r, 5*time.Millisecond, func(res Result) { results <- res })
	defer d.Close()

	d.Trigger("a")
	select {
	case <-r.started:
	case <-time.After(2 * time.Second):
		t.Fatalf("first render never started")
	}
	d.Trigger("b")

	res := waitResult(t, results)
	if res.Generation != 2 || string(res.Image) != "png:b" {
		t.Fatalf("unexpected result %+v", res)
	}
	expectNoResult(t, results)
}

func TestDebouncerFlushRendersImmediately(t *testing.T) {
	r := &fakeRenderer{}
	results := make(chan Result, 1)
	d := NewDebouncer(r, time.Hour, func(res Result) { results <- res })
	defer d.Close()

	d.Trigger("x")
	d.Flush()
	select {
	case res := <-results:
		if string(res.Image) != "png:x" {
			t.Fatalf("unexpected result %+v", res)
		}
	default:
		t.Fatalf("flush did not deliver synchronously")
	}

	d.Flush()
	if len(r.Calls()) != 1 {
		t.Fatalf("second flush rendered again: %v", r.Calls())
	}
}

func TestDebouncerCloseCancelsPending(t *testing.T) {
	r := &fakeRenderer{}
	results := make(chan Result, 1)
	d := NewDebouncer(r, 10*time.Millisecond, func(res Result) { results <- res })

	d.Trigger("x")
	d.Close()
	expectNoResult(t, results)

	d.Trigger("y")
	expectNoResult(t, results)
	if len(r.Calls()) != 0 {
		t.Fatalf("renderer called after close: %v", r.Calls())
	}
}
