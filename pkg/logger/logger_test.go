package logger

import (
	"sync"
	"testing"
)

// First log calls can arrive from several goroutines at once (the
// pipelined sync runner logs from two); lazy initialization must not
// race.
func TestConcurrentFirstLogCalls(t *testing.T) {
	InfoLog, WarnLog, ErrorLog = nil, nil, nil
	initOnce = sync.Once{}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			Infof("worker %d info", n)
			Warnf("worker %d warn", n)
			Errorf("worker %d error", n)
		}(i)
	}
	wg.Wait()

	if InfoLog == nil || WarnLog == nil || ErrorLog == nil {
		t.Fatal("loggers not initialized after first use")
	}
}

func TestEnsureInitKeepsConfiguredLoggers(t *testing.T) {
	InfoLog, WarnLog, ErrorLog = nil, nil, nil
	initOnce = sync.Once{}

	Init()
	configured := InfoLog
	ensureInit()
	if InfoLog != configured {
		t.Error("ensureInit replaced an already-configured logger")
	}
}

func TestMeasureReturnsWorkError(t *testing.T) {
	wantErr := errSentinel
	err := Measure("test.stage.orders", func() error { return wantErr })
	if err != wantErr {
		t.Errorf("Measure returned %v, want the work's error", err)
	}
	if err := Measure("test.stage.orders", func() error { return nil }); err != nil {
		t.Errorf("Measure returned %v for successful work", err)
	}
}

var errSentinel = &measureErr{}

type measureErr struct{}

func (*measureErr) Error() string { return "work failed" }
