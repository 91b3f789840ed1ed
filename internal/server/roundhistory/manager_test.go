package roundhistory

import (
	"os"
	"testing"
	"time"
)

func TestManagerFlushOnThreshold(t *testing.T) {
	rec := newTestRecorder(t, 1)
	mgr := NewManager(rec, testLogger(), time.Hour) // rely on threshold requests
	t.Cleanup(mgr.Shutdown)

	rec.Append(sampleRecord(1))

	deadline := time.Now().Add(500 * time.Millisecond)
	for {
		if info, err := os.Stat(rec.dayPath()); err == nil && info.Size() > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("round history file not flushed in time")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestManagerShutdownFlushes(t *testing.T) {
	rec := newTestRecorder(t, 10)
	mgr := NewManager(rec, testLogger(), time.Hour)

	rec.Append(sampleRecord(1))
	mgr.Shutdown()

	info, err := os.Stat(rec.dayPath())
	if err != nil {
		t.Fatalf("expected day file after shutdown: %v", err)
	}
	if info.Size() == 0 {
		t.Fatal("expected day file to contain the flushed round")
	}
}
