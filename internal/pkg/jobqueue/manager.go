package jobqueue

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"

	"github.com/ManuelReschke/PixelMarket/internal/pkg/billing"
)

const (
	// DefaultRecoveryInterval is how often stranded received logs are re-dispatched
	DefaultRecoveryInterval = time.Minute
	// recoveryBatch bounds the logs re-dispatched per run
	recoveryBatch = 100
)

// Backend is a job queue implementation the manager can drive
type Backend interface {
	billing.Dispatcher
	billing.QueueInspector
	Start()
	Stop()
}

// Service is the part of the webhook service the manager needs
type Service interface {
	billing.Processor
	PendingLogs(ctx context.Context, limit int) ([]uint, error)
	Config() *billing.Config
	Metrics() billing.Metrics
}

// Manager manages the webhook job queue and background tasks
type Manager struct {
	service          Service
	backend          Backend
	dispatcher       billing.Dispatcher
	recoveryInterval time.Duration
	recoveryTicker   *time.Ticker
	stopCh           chan struct{}
	wg               sync.WaitGroup
	mu               sync.Mutex
	running          bool
}

var (
	globalManager *Manager
	managerOnce   sync.Once
)

// NewManager builds a manager with the backend named by the service
// configuration. The redis backend uses client, or the shared cache
// connection when client is nil.
func NewManager(service Service, client *redis.Client) *Manager {
	cfg := service.Config()
	var backend Backend
	switch cfg.Queue {
	case billing.QueueRedis:
		backend = NewQueue(client, cfg.Workers, service)
	default:
		backend = NewLocalQueue(cfg.Workers, 0, service)
	}
	return newManager(service, backend)
}

func newManager(service Service, backend Backend) *Manager {
	return &Manager{
		service: service,
		backend: backend,
		dispatcher: billing.FallbackDispatcher{
			Primary:   backend,
			Processor: service,
			Metrics:   service.Metrics(),
		},
		recoveryInterval: DefaultRecoveryInterval,
		stopCh:           make(chan struct{}),
	}
}

// InitManager creates the global manager once and returns it
func InitManager(service Service, client *redis.Client) *Manager {
	managerOnce.Do(func() {
		globalManager = NewManager(service, client)
	})
	return globalManager
}

// GetManager returns the global manager, nil before InitManager
func GetManager() *Manager {
	return globalManager
}

// Dispatcher returns the dispatcher the ingress hands received logs to.
// It falls back to a detached goroutine when the backend refuses a job.
func (m *Manager) Dispatcher() billing.Dispatcher {
	return m.dispatcher
}

// Inspector exposes the backend depth to the status endpoint
func (m *Manager) Inspector() billing.QueueInspector {
	return m.backend
}

// Start starts the job queue and background tasks
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}

	// Recreate stop channel for each start cycle so manager can be restarted safely.
	m.stopCh = make(chan struct{})
	m.running = true
	log.Infof("[JobQueue Manager] Starting %s queue and background tasks", m.backend.Mode())

	m.backend.Start()

	m.recoveryTicker = time.NewTicker(m.recoveryInterval)
	m.wg.Add(1)
	go m.recoveryWorker(m.stopCh, m.recoveryTicker)

	log.Info("[JobQueue Manager] Started successfully")
}

// Stop stops the job queue and background tasks
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	log.Info("[JobQueue Manager] Stopping job queue and background tasks...")

	if m.recoveryTicker != nil {
		m.recoveryTicker.Stop()
	}

	// Signal workers to stop
	close(m.stopCh)
	m.running = false

	// Wait for background workers to finish
	m.wg.Wait()

	m.backend.Stop()

	log.Info("[JobQueue Manager] Stopped successfully")
}

// IsRunning returns whether the manager is currently running
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// recoveryWorker periodically re-dispatches logs left received by a crash
func (m *Manager) recoveryWorker(stopCh <-chan struct{}, ticker *time.Ticker) {
	defer m.wg.Done()
	log.Infof("[JobQueue Manager] Started recovery worker (interval: %s)", m.recoveryInterval)

	for {
		select {
		case <-stopCh:
			log.Info("[JobQueue Manager] Recovery worker stopping")
			return
		case <-ticker.C:
			if _, err := m.RecoverPendingOnce(context.Background()); err != nil {
				log.Errorf("[JobQueue Manager] Recovery error: %v", err)
			}
		}
	}
}

// RecoverPendingOnce re-dispatches one batch of stranded received logs and
// returns how many were handed over.
func (m *Manager) RecoverPendingOnce(ctx context.Context) (int, error) {
	ids, err := m.service.PendingLogs(ctx, recoveryBatch)
	if err != nil {
		return 0, err
	}
	dispatched := 0
	for _, id := range ids {
		if err := m.dispatcher.Dispatch(ctx, id); err != nil {
			log.Errorf("[JobQueue Manager] Cannot re-dispatch log %d: %v", id, err)
			continue
		}
		dispatched++
	}
	if dispatched > 0 {
		log.Warnf("[JobQueue Manager] Re-dispatched %d stranded webhook logs", dispatched)
	}
	return dispatched, nil
}
