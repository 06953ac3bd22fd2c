// Package core runs the long-lived parts of the LandVote API (HTTP server,
// deadline sweeper, notifier) as modules with an ordered lifecycle.
package core

import (
	"context"
	"errors"
	"log"
	"sync"
)

var (
	ErrAlreadyStarted = errors.New("services: manager already started")
	ErrStarted        = errors.New("services: cannot add modules after start")
)

// Module is a long-running piece of the service.
type Module interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context)
}

// Manager starts modules in registration order and stops them in reverse.
type Manager struct {
	mu      sync.Mutex
	pending []Module
	running []Module
}

// NewManager skips nil modules so optional ones can be passed unconditionally.
func NewManager(mods ...Module) *Manager {
	m := &Manager{}
	for _, mod := range mods {
		m.register(mod)
	}
	return m
}

func (m *Manager) register(mod Module) {
	if mod != nil {
		m.pending = append(m.pending, mod)
	}
}

// Add registers mod; it is only allowed before Start.
func (m *Manager) Add(mod Module) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running != nil {
		return ErrStarted
	}
	m.register(mod)
	return nil
}

// Start brings every module up. On failure the modules already running are
// stopped again and the manager can be started anew.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running != nil {
		return ErrAlreadyStarted
	}

	running := make([]Module, 0, len(m.pending))
	for _, mod := range m.pending {
		if err := mod.Start(ctx); err != nil {
			stopAll(ctx, running)
			return &StartError{Module: mod.Name(), Err: err}
		}
		log.Printf("services: %s started", mod.Name())
		running = append(running, mod)
	}
	m.running = running
	return nil
}

// Stop shuts the running modules down in reverse order. It is a no-op before
// Start.
func (m *Manager) Stop(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running == nil {
		return
	}
	stopAll(ctx, m.running)
	m.running = nil
}

// Running lists the names of the started modules in start order.
func (m *Manager) Running() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.running))
	for _, mod := range m.running {
		names = append(names, mod.Name())
	}
	return names
}

func stopAll(ctx context.Context, mods []Module) {
	for i := len(mods) - 1; i >= 0; i-- {
		mods[i].Stop(ctx)
		log.Printf("services: %s stopped", mods[i].Name())
	}
}

// StartError names the module that failed to start.
type StartError struct {
	Module string
	Err    error
}

func (e *StartError) Error() string { return "module " + e.Module + " failed: " + e.Err.Error() }

func (e *StartError) Unwrap() error { return e.Err }
