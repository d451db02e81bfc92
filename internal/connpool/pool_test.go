package connpool

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/kartikbazzad/bunbase/opbridge/internal/apperrors"
)

type fakeFactory struct {
	created atomic.Int64
}

func (f *fakeFactory) Create() (any, error) {
	f.created.Add(1)
	return "conn", nil
}
func (f *fakeFactory) Destroy(r any) error { return nil }
func (f *fakeFactory) Validate(r any) bool { return true }

func TestPool_AcquireReleaseReusesConnection(t *testing.T) {
	f := &fakeFactory{}
	p, err := newPool("test", f, Options{MinSize: 1, MaxSize: 2, AcquireTimeout: time.Second})
	if err != nil {
		t.Fatalf("newPool: %v", err)
	}
	defer p.Close()

	c1, err := p.Acquire()
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if err := p.Release(c1); err != nil {
		t.Fatalf("Release: %v", err)
	}
	c2, err := p.Acquire()
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if c1 != c2 {
		t.Fatalf("expected the released connection to be reused")
	}
}

func TestPool_AcquireExhaustedRetriesThenFails(t *testing.T) {
	f := &fakeFactory{}
	p, err := newPool("test", f, Options{MinSize: 1, MaxSize: 1, AcquireTimeout: 80 * time.Millisecond})
	if err != nil {
		t.Fatalf("newPool: %v", err)
	}
	defer p.Close()

	if _, err := p.Acquire(); err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	start := time.Now()
	_, err = p.Acquire()
	elapsed := time.Since(start)
	if !apperrors.Is(err, apperrors.ResourceExhausted) {
		t.Fatalf("expected ResourceExhausted, got %v", err)
	}
	if elapsed < 50*time.Millisecond {
		t.Fatalf("expected Acquire to retry for close to AcquireTimeout, took %v", elapsed)
	}
}

func TestPool_StatsReportsIdleAndActive(t *testing.T) {
	f := &fakeFactory{}
	p, err := newPool("test", f, Options{MinSize: 1, MaxSize: 2, AcquireTimeout: time.Second})
	if err != nil {
		t.Fatalf("newPool: %v", err)
	}
	defer p.Close()

	if _, err := p.Acquire(); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	stats := p.Stats()
	if stats.Active != 1 || stats.Total < 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}
