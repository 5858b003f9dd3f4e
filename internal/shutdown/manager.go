package shutdown

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"quidque.com/discord-jukebox/internal/logger"
)

type Component interface {
	Shutdown(ctx context.Context) error
	Name() string
}

type Manager struct {
	components []Component
	mu         sync.RWMutex
	shutdown   chan struct{}
	done       chan struct{}
	once       sync.Once
}

func NewManager() *Manager {
	return &Manager{
		components: make([]Component, 0),
		shutdown:   make(chan struct{}),
		done:       make(chan struct{}),
	}
}

func (m *Manager) Register(component Component) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.components = append(m.components, component)
	logger.InfoLogger.Printf("Registered shutdown component: %s", component.Name())
}

// Shutdown stops components in reverse registration order, one at a time,
// so later components can still use the ones they were built on. Only the
// first call does anything.
func (m *Manager) Shutdown(timeout time.Duration) error {
	err := errors.New("shutdown already in progress")
	m.once.Do(func() {
		err = m.run(timeout)
	})
	return err
}

func (m *Manager) run(timeout time.Duration) error {
	logger.InfoLogger.Println("Initiating graceful shutdown...")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	defer close(m.done)

	close(m.shutdown)

	m.mu.RLock()
	components := make([]Component, len(m.components))
	copy(components, m.components)
	m.mu.RUnlock()

	var errs []error
	for i := len(components) - 1; i >= 0; i-- {
		comp := components[i]
		logger.InfoLogger.Printf("Shutting down component: %s", comp.Name())

		if err := comp.Shutdown(ctx); err != nil {
			logger.ErrorLogger.Printf("Error shutting down %s: %v", comp.Name(), err)
			errs = append(errs, fmt.Errorf("%s: %w", comp.Name(), err))
		} else {
			logger.InfoLogger.Printf("Successfully shut down: %s", comp.Name())
		}

		if ctx.Err() != nil {
			logger.ErrorLogger.Println("Shutdown timed out")
			return errors.Join(append(errs, ctx.Err())...)
		}
	}

	if len(errs) == 0 {
		logger.InfoLogger.Println("All components shut down successfully")
	}
	return errors.Join(errs...)
}

func (m *Manager) IsShuttingDown() bool {
	select {
	case <-m.shutdown:
		return true
	default:
		return false
	}
}

func (m *Manager) Wait() {
	<-m.done
}
