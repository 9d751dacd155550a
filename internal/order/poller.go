package order

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/grocery-storefront/internal/ids"
	"github.com/vasiliy-maslov/grocery-storefront/internal/session"
)

// Poller periodically refreshes the active deliveries of the logged-in driver.
type Poller struct {
	service  Service
	identity IdentitySource
	interval time.Duration
	onChange func([]Delivery)

	mu        sync.RWMutex
	active    []Delivery
	updatedAt time.Time
}

// NewPoller creates a poller. onChange, if not nil, is called after a refresh that changed the set
// of active delivery ids.
func NewPoller(service Service, identity IdentitySource, interval time.Duration, onChange func([]Delivery)) *Poller {
	return &Poller{
		service:  service,
		identity: identity,
		interval: interval,
		onChange: onChange,
	}
}

// Run refreshes immediately and then on every tick until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.refreshLogged(ctx)
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("order: delivery poller stopped")
			return
		case <-ticker.C:
			p.refreshLogged(ctx)
		}
	}
}

func (p *Poller) refreshLogged(ctx context.Context) {
	if err := p.Refresh(ctx); err != nil {
		log.Error().Err(err).Msg("order: failed to refresh active deliveries")
	}
}

// Refresh fetches the active deliveries once. Without a logged-in driver the snapshot is emptied.
func (p *Poller) Refresh(ctx context.Context) error {
	identity, ok := p.identity.Identity()
	if !ok || identity.Role != session.RoleDriver {
		p.store(nil)
		return nil
	}

	deliveries, err := p.service.ListDeliveriesForDriver(ctx, identity.ID)
	if err != nil {
		return err
	}
	p.store(ActiveDeliveries(deliveries))
	return nil
}

// Active returns the last snapshot and when it was taken.
func (p *Poller) Active() ([]Delivery, time.Time) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return slices.Clone(p.active), p.updatedAt
}

func (p *Poller) store(active []Delivery) {
	p.mu.Lock()
	changed := !slices.EqualFunc(p.active, active, func(a, b Delivery) bool {
		return ids.Same(a.ID, b.ID) && a.Status == b.Status
	})
	p.active = active
	p.updatedAt = time.Now()
	p.mu.Unlock()

	if changed {
		log.Info().Int("active_deliveries", len(active)).Msg("order: active deliveries changed")
		if p.onChange != nil {
			p.onChange(slices.Clone(active))
		}
	}
}
