package metrics

import (
	"sync"
	"testing"
	"time"
)

type mockStatsProvider struct {
	mu    sync.Mutex
	stats Stats
	calls int
}

func (m *mockStatsProvider) GetStats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.stats
}

func (m *mockStatsProvider) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type mockDBUpdater struct {
	mu    sync.Mutex
	calls int
}

func (m *mockDBUpdater) UpdateDBMetrics() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
}

func (m *mockDBUpdater) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func TestNewCollector(t *testing.T) {
	provider := &mockStatsProvider{stats: Stats{Records: 100, Postings: 900}}
	updater := &mockDBUpdater{}

	collector := NewCollector(provider, updater, 5*time.Second)

	if collector == nil {
		t.Fatal("NewCollector returned nil")
	}
	if collector.statsProvider != provider {
		t.Error("statsProvider not set correctly")
	}
	if collector.dbUpdater != updater {
		t.Error("dbUpdater not set correctly")
	}
	if collector.interval != 5*time.Second {
		t.Errorf("interval = %v, want %v", collector.interval, 5*time.Second)
	}
	if collector.stopChan == nil {
		t.Error("stopChan not initialized")
	}
}

func TestCollectWithNilDependencies(t *testing.T) {
	collector := NewCollector(nil, nil, time.Second)

	defer func() {
		if r := recover(); r != nil {
			t.Errorf("collect() panicked with nil dependencies: %v", r)
		}
	}()

	collector.collect()
}

func TestCollectorStartStop(t *testing.T) {
	provider := &mockStatsProvider{stats: Stats{Records: 50}}
	updater := &mockDBUpdater{}

	collector := NewCollector(provider, updater, 20*time.Millisecond)
	collector.Start()
	time.Sleep(100 * time.Millisecond)
	collector.Stop()

	if provider.callCount() < 2 {
		t.Errorf("GetStats called %d times, want at least 2", provider.callCount())
	}
	if updater.callCount() < 2 {
		t.Errorf("UpdateDBMetrics called %d times, want at least 2", updater.callCount())
	}
}

func TestInitializeMetricsDoesNotPanic(t *testing.T) {
	defer func() {
		if r := recover(); r != nil {
			t.Errorf("InitializeMetrics() panicked: %v", r)
		}
	}()

	InitializeMetrics([]string{"data", "backup"})
	InitializeMetrics(nil)
}

func TestMetricsExist(t *testing.T) {
	tests := []struct {
		name   string
		metric interface{}
	}{
		{"HTTPRequestsTotal", HTTPRequestsTotal},
		{"DBQueryTotal", DBQueryTotal},
		{"DBTransactionDuration", DBTransactionDuration},
		{"IndexerBatchesTotal", IndexerBatchesTotal},
		{"IndexerErrors", IndexerErrors},
		{"WatcherEventsTotal", WatcherEventsTotal},
		{"SearchRequestsTotal", SearchRequestsTotal},
		{"FilesystemRetryAttempts", FilesystemRetryAttempts},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.metric == nil {
				t.Errorf("%s metric is nil", tt.name)
			}
		})
	}
}
