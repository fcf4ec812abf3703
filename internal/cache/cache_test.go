package cache

import (
	"context"
	"errors"
	"testing"
)

type countingRenderer struct {
	calls int
	err   error
}

func (r *countingRenderer) Render(ctx context.Context, zpl string) ([]byte, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	return []byte("png:" + zpl), nil
}

func TestCachingRendererServesRepeats(t *testing.T) {
	ctx := context.Background()
	next := &countingRenderer{}
	r := Wrap(next, NewRenderCache(nil), "8dpmm/4x6")

	for range 3 {
		img, err := r.Render(ctx, "^XA^XZ")
		if err != nil || string(img) != "png:^XA^XZ" {
			t.Fatalf("render: %v %q", err, img)
		}
	}
	if next.calls != 1 {
		t.Fatalf("expected 1 upstream call, got %d", next.calls)
	}
}

func TestCachingRendererDoesNotStoreFailures(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")
	next := &countingRenderer{err: boom}
	c := NewRenderCache(nil)
	r := Wrap(next, c, "8dpmm/4x6")

	if _, err := r.Render(ctx, "^XA^XZ"); !errors.Is(err, boom) {
		t.Fatalf("expected upstream error, got %v", err)
	}
	if c.Len() != 0 {
		t.Fatalf("failure was cached")
	}
}

func TestKeyDependsOnParams(t *testing.T) {
	if Key("8dpmm/4x6", "^XA^XZ") == Key("12dpmm/4x6", "^XA^XZ") {
		t.Fatalf("keys collide across render parameters")
	}
}

func TestMemoryOnlyCacheSkipsDatabase(t *testing.T) {
	ctx := context.Background()
	c := NewRenderCache(nil)
	if err := c.EnsureSchema(ctx); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	if err := c.Preload(ctx, "p"); err != nil {
		t.Fatalf("preload: %v", err)
	}
	if _, ok := c.Get(ctx, "missing"); ok {
		t.Fatalf("unexpected hit")
	}
	if err := c.Set(ctx, "k", "p", []byte("x")); err != nil {
		t.Fatalf("set: %v", err)
	}
	if img, ok := c.Get(ctx, "k"); !ok || string(img) != "x" {
		t.Fatalf("get after set: %q %v", img, ok)
	}
}
