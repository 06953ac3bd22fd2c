// Package sweeper closes proposals whose voting deadline has passed.
package sweeper

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/stake-plus/landvote/src/governance"
	"github.com/stake-plus/landvote/src/services/core"
)

var _ core.Module = (*Module)(nil)

// Sweeper is the part of the controller the module drives.
type Sweeper interface {
	SweepDue(ctx context.Context) ([]governance.Proposal, error)
}

type Module struct {
	sweeper  Sweeper
	interval time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewModule(s Sweeper, interval time.Duration) *Module {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Module{sweeper: s, interval: interval}
}

func (m *Module) Name() string { return "sweeper" }

// Start runs one sweep immediately, then one per interval until Stop.
func (m *Module) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	m.cancel = cancel
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			m.RunOnce(runCtx)
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
	return nil
}

// RunOnce performs a single sweep and logs what it closed.
func (m *Module) RunOnce(ctx context.Context) []governance.Proposal {
	closed, err := m.sweeper.SweepDue(ctx)
	if err != nil && ctx.Err() == nil {
		log.Printf("sweeper: %v", err)
	}
	for _, p := range closed {
		log.Printf("sweeper: proposal %s closed as %s", p.ID, p.Status)
	}
	return closed
}

func (m *Module) Stop(context.Context) {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
}
