package roundhistory

import (
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// Manager owns the background flush loop for a recorder.
type Manager struct {
	recorder *Recorder
	logger   *log.Logger
	flushReq chan struct{}
	stop     chan struct{}
	wg       sync.WaitGroup
}

// NewManager starts the flush loop. The recorder flushes every interval
// and whenever its buffer reaches the configured threshold.
func NewManager(recorder *Recorder, logger *log.Logger, interval time.Duration) *Manager {
	if interval <= 0 {
		interval = 30 * time.Second
	}

	m := &Manager{
		recorder: recorder,
		logger:   logger.WithPrefix("roundhistory"),
		flushReq: make(chan struct{}, 1),
		stop:     make(chan struct{}),
	}
	recorder.SetFlushNotifier(m.requestFlush)

	m.wg.Add(1)
	go m.run(interval)
	return m
}

// Shutdown stops the ticker and flushes remaining rounds.
func (m *Manager) Shutdown() {
	close(m.stop)
	m.wg.Wait()
	if err := m.recorder.Close(); err != nil {
		m.logger.Error("Round history flush on shutdown failed", "error", err)
	}
}

func (m *Manager) run(interval time.Duration) {
	defer m.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.flush()
		case <-m.flushReq:
			m.flush()
		case <-m.stop:
			return
		}
	}
}

func (m *Manager) requestFlush() {
	select {
	case m.flushReq <- struct{}{}:
	default:
	}
}

func (m *Manager) flush() {
	err := m.recorder.Flush()
	if err != nil {
		m.logger.Error("Round history flush failed", "error", err)
	}
	disabled, dropped := m.recorder.HandleFlushResult(err)
	if disabled {
		m.logger.Error("Round history recording disabled after repeated failures", "dropped", dropped)
	}
}
