package update

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tenantapp/backend/internal/domain/shared"
)

// MaintenanceKey is the cache key of the maintenance flag. Keeping it in the
// shared cache puts every node behind the flag at once.
const MaintenanceKey = "maintenance_mode"

// MaintenanceState is the stored flag value.
type MaintenanceState struct {
	Reason    string    `json:"reason,omitempty"`
	EnabledAt time.Time `json:"enabled_at"`
}

// Maintenance toggles the fleet-wide maintenance flag.
type Maintenance struct {
	cache shared.Cache
	now   func() time.Time
}

// NewMaintenance creates a new Maintenance backed by cache.
func NewMaintenance(cache shared.Cache) *Maintenance {
	return &Maintenance{cache: cache, now: time.Now}
}

// Enable raises the flag. The flag has no TTL.
func (m *Maintenance) Enable(ctx context.Context, reason string) error {
	b, err := json.Marshal(MaintenanceState{Reason: reason, EnabledAt: m.now()})
	if err != nil {
		return err
	}
	if err := m.cache.Set(ctx, MaintenanceKey, b, 0); err != nil {
		return fmt.Errorf("enable maintenance: %w", err)
	}
	return nil
}

// Disable clears the flag. Clearing an absent flag is not an error.
func (m *Maintenance) Disable(ctx context.Context) error {
	if err := m.cache.Delete(ctx, MaintenanceKey); err != nil {
		return fmt.Errorf("disable maintenance: %w", err)
	}
	return nil
}

// State returns the current flag, or nil when maintenance is off.
func (m *Maintenance) State(ctx context.Context) (*MaintenanceState, error) {
	b, found, err := m.cache.Get(ctx, MaintenanceKey)
	if err != nil || !found {
		return nil, err
	}
	var st MaintenanceState
	if err := json.Unmarshal(b, &st); err != nil {
		// A flag that cannot be decoded is still a flag.
		return &MaintenanceState{}, nil
	}
	return &st, nil
}

// IsEnabled reports whether maintenance is on.
func (m *Maintenance) IsEnabled(ctx context.Context) (bool, error) {
	st, err := m.State(ctx)
	return st != nil, err
}
