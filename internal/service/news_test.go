package service_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"newshub/internal/model"
	"newshub/internal/service"
)

type fakeReader struct {
	calls   atomic.Int32
	err     error
	release chan struct{}

	mu    sync.Mutex
	since time.Time
	limit int
}

func (r *fakeReader) Recent(ctx context.Context, limit int, since time.Time) ([]model.Article, error) {
	r.calls.Add(1)
	if r.release != nil {
		<-r.release
	}
	r.mu.Lock()
	r.since, r.limit = since, limit
	err := r.err
	r.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return []model.Article{{ID: uint(r.calls.Load()), URL: "https://x.example"}}, nil
}

func (r *fakeReader) Ranked(ctx context.Context, limit int) ([]model.Article, error) {
	r.calls.Add(1)
	if r.err != nil {
		return nil, r.err
	}
	score := 0.9
	return []model.Article{{ID: 1, Relevance: &score}}, nil
}

func (r *fakeReader) fail(err error) {
	r.mu.Lock()
	r.err = err
	r.mu.Unlock()
}

func TestGetRecent_CachedWithinTTL(t *testing.T) {
	reader := &fakeReader{}
	svc := service.NewNewsService(reader, 72*time.Hour, time.Minute)
	ctx := context.Background()

	first := svc.GetRecent(ctx, 50)
	second := svc.GetRecent(ctx, 50)
	if reader.calls.Load() != 1 {
		t.Fatalf("expected one store read, got %d", reader.calls.Load())
	}
	if first[0].ID != second[0].ID {
		t.Fatal("cached read returned a different result")
	}

	svc.GetRecent(ctx, 10)
	if reader.calls.Load() != 2 {
		t.Fatal("different limits should not share a cache entry")
	}
	if reader.limit != 10 {
		t.Fatalf("limit not passed through, got %d", reader.limit)
	}
	if age := time.Since(reader.since); age < 72*time.Hour-time.Minute || age > 72*time.Hour+time.Minute {
		t.Fatalf("expected a 72h read window, got %s", age)
	}
	if reader.since.Location() != time.UTC {
		t.Fatalf("read window should be expressed in UTC, got %s", reader.since.Location())
	}
}

func TestGetRecent_ExpiresByTime(t *testing.T) {
	reader := &fakeReader{}
	svc := service.NewNewsService(reader, 0, time.Nanosecond)

	svc.GetRecent(context.Background(), 50)
	time.Sleep(time.Millisecond)
	svc.GetRecent(context.Background(), 50)
	if reader.calls.Load() != 2 {
		t.Fatalf("expired entry should be reloaded, got %d reads", reader.calls.Load())
	}
	if !reader.since.IsZero() {
		t.Fatal("zero max age should read without a window")
	}
}

func TestGetRecent_StoreErrorServesStale(t *testing.T) {
	reader := &fakeReader{}
	svc := service.NewNewsService(reader, 0, time.Nanosecond)
	ctx := context.Background()

	fresh := svc.GetRecent(ctx, 50)
	reader.fail(errors.New("database is locked"))
	time.Sleep(time.Millisecond)

	got := svc.GetRecent(ctx, 50)
	if len(got) != 1 || got[0].ID != fresh[0].ID {
		t.Fatalf("expected last cached articles, got %+v", got)
	}
}

func TestGetRecent_StoreErrorWithoutCacheIsEmpty(t *testing.T) {
	reader := &fakeReader{err: errors.New("no such table")}
	got := service.NewNewsService(reader, 0, time.Minute).GetRecent(context.Background(), 50)
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil list, got %#v", got)
	}
}

func TestGetRecent_ConcurrentMissesCollapsed(t *testing.T) {
	reader := &fakeReader{release: make(chan struct{})}
	svc := service.NewNewsService(reader, 0, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if got := svc.GetRecent(context.Background(), 50); len(got) != 1 {
				t.Errorf("unexpected result %+v", got)
			}
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(reader.release)
	wg.Wait()

	if n := reader.calls.Load(); n != 1 {
		t.Fatalf("expected concurrent misses to share one read, got %d", n)
	}
}

func TestGetRanked(t *testing.T) {
	reader := &fakeReader{}
	got := service.NewNewsService(reader, 0, time.Minute).GetRanked(context.Background(), 50)
	if len(got) != 1 || got[0].Relevance == nil {
		t.Fatalf("unexpected ranked result %+v", got)
	}
}
