package core

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/labdesk/v2/internal/types"
	"github.com/labdesk/v2/services"
)

// Stats are the figures of the dashboard's overview panel.
type Stats struct {
	ActiveReservations int
	Rooms              int
	AvailableEquipment int
	Members            int
}

// TeardownNotifier is the part of the session the dashboard hooks into.
type TeardownNotifier interface {
	OnTeardown(fn func())
}

// DashboardManager aggregates the overview panel from the remote reservations
// and the local collections, and owns the in-memory copy of remote data.
type DashboardManager struct {
	reservations *services.ReservationService
	rooms        *LocalRepository[types.Room]
	equipment    *LocalRepository[types.Equipment]
	members      *LocalRepository[types.Member]
	log          *zap.Logger

	mu    sync.Mutex
	stats *Stats
}

func NewDashboardManager(
	reservations *services.ReservationService,
	rooms *LocalRepository[types.Room],
	equipment *LocalRepository[types.Equipment],
	members *LocalRepository[types.Member],
	log *zap.Logger,
) *DashboardManager {
	if log == nil {
		log = zap.NewNop()
	}
	return &DashboardManager{
		reservations: reservations,
		rooms:        rooms,
		equipment:    equipment,
		members:      members,
		log:          log,
	}
}

// Bind clears the manager whenever the session ends.
func (dm *DashboardManager) Bind(session TeardownNotifier) {
	session.OnTeardown(dm.Clear)
}

// Refresh recomputes the stats. Local counts are always filled in; when the
// reservations call fails its error is returned alongside them and the
// active count is left at zero.
func (dm *DashboardManager) Refresh(ctx context.Context) (Stats, error) {
	var stats Stats
	var err error

	if stats.Rooms, err = dm.rooms.Count(ctx, nil); err != nil {
		return stats, fmt.Errorf("count rooms: %w", err)
	}
	if stats.AvailableEquipment, err = dm.equipment.Count(ctx, func(e types.Equipment) bool {
		return e.Status == types.EquipmentAvailable
	}); err != nil {
		return stats, fmt.Errorf("count equipment: %w", err)
	}
	if stats.Members, err = dm.members.Count(ctx, nil); err != nil {
		return stats, fmt.Errorf("count members: %w", err)
	}

	reservations, remoteErr := dm.reservations.List(ctx)
	if remoteErr != nil {
		dm.log.Warn("dashboard reservations unavailable", zap.Error(remoteErr))
		return stats, remoteErr
	}
	stats.ActiveReservations = services.CountActive(reservations)

	dm.mu.Lock()
	dm.stats = &stats
	dm.mu.Unlock()
	return stats, nil
}

// Stats returns the last successful Refresh.
func (dm *DashboardManager) Stats() (Stats, bool) {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	if dm.stats == nil {
		return Stats{}, false
	}
	return *dm.stats, true
}

// Clear drops every piece of remote data held in memory.
func (dm *DashboardManager) Clear() {
	dm.mu.Lock()
	dm.stats = nil
	dm.mu.Unlock()
	dm.reservations.ClearCache()
}
