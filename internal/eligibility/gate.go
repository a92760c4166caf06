// Package eligibility decides whether a member id earns points.
package eligibility

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/caraudio-league/points-engine/internal/metrics"
	"github.com/caraudio-league/points-engine/internal/repository"
)

// DefaultTTL is how long a loaded eligible set is served before it is reloaded
const DefaultTTL = 5 * time.Minute

// Reserved member ids used for guests and test entries
const (
	GuestMemberID      = "999999"
	UnassignedMemberID = "0"
	NullMemberID       = "null"
	TestMemberIDPrefix = "99"
)

// IsGuestID reports whether id is a guest or test sentinel that never earns points.
func IsGuestID(id string) bool {
	id = strings.TrimSpace(id)
	switch id {
	case "", GuestMemberID, UnassignedMemberID, NullMemberID:
		return true
	}
	return strings.HasPrefix(id, TestMemberIDPrefix)
}

type eligibleSet struct {
	ids      map[string]struct{}
	loadedAt time.Time
}

// Gate answers eligibility questions from an in-memory set of eligible member ids.
//
// The set is replaced atomically. Readers always see a complete set. When the set has
// expired the first reader to notice reloads it while concurrent readers keep using the
// expired set.
type Gate struct {
	memberships repository.MembershipRepository
	ttl         time.Duration
	now         func() time.Time
	logger      *logrus.Logger

	set       atomic.Pointer[eligibleSet]
	refreshMu sync.Mutex
}

// NewGate creates a new eligibility gate. A ttl of zero uses DefaultTTL.
func NewGate(memberships repository.MembershipRepository, ttl time.Duration, logger *logrus.Logger) *Gate {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Gate{
		memberships: memberships,
		ttl:         ttl,
		now:         time.Now,
		logger:      logger,
	}
}

// IsEligible reports whether memberID is covered by a paid, active, points-eligible membership.
func (g *Gate) IsEligible(ctx context.Context, memberID string) (bool, error) {
	if IsGuestID(memberID) {
		return false, nil
	}

	set, err := g.current(ctx)
	if err != nil {
		return false, err
	}
	_, ok := set.ids[strings.TrimSpace(memberID)]
	return ok, nil
}

// Refresh reloads the eligible set now. Bulk operations call it before a pass.
func (g *Gate) Refresh(ctx context.Context) error {
	g.refreshMu.Lock()
	defer g.refreshMu.Unlock()
	return g.reload(ctx)
}

// Invalidate marks the loaded set as expired. The next read reloads it.
func (g *Gate) Invalidate() {
	if set := g.set.Load(); set != nil {
		g.set.Store(&eligibleSet{ids: set.ids})
	}
}

// Size returns the number of eligible member ids currently loaded.
func (g *Gate) Size() int {
	if set := g.set.Load(); set != nil {
		return len(set.ids)
	}
	return 0
}

// IsProfileEligible checks a profile's memberships directly, bypassing the cached set.
// Admin paths use it so a membership paid a moment ago is honoured.
func (g *Gate) IsProfileEligible(ctx context.Context, profileID uuid.UUID) (bool, error) {
	memberships, err := g.memberships.ListByProfileID(ctx, profileID)
	if err != nil {
		return false, fmt.Errorf("failed to list memberships: %w", err)
	}
	now := g.now()
	for _, m := range memberships {
		if m.IsPointsEligibleAt(now) {
			return true, nil
		}
	}
	return false, nil
}

func (g *Gate) current(ctx context.Context) (*eligibleSet, error) {
	set := g.set.Load()
	if set != nil && g.now().Sub(set.loadedAt) < g.ttl {
		return set, nil
	}

	if set == nil {
		// nothing to serve yet, so wait for whoever is loading
		g.refreshMu.Lock()
		defer g.refreshMu.Unlock()
		if loaded := g.set.Load(); loaded != nil {
			return loaded, nil
		}
		if err := g.reload(ctx); err != nil {
			return nil, err
		}
		return g.set.Load(), nil
	}

	if !g.refreshMu.TryLock() {
		return set, nil
	}
	defer g.refreshMu.Unlock()

	if latest := g.set.Load(); latest != set {
		return latest, nil
	}
	if err := g.reload(ctx); err != nil {
		g.logger.WithError(err).Warn("Failed to refresh eligible members, serving previous set")
		return set, nil
	}
	return g.set.Load(), nil
}

// reload must be called with refreshMu held.
func (g *Gate) reload(ctx context.Context) error {
	now := g.now()
	ids, err := g.memberships.ListPointsEligibleMemberIDs(ctx, now)
	if err != nil {
		return fmt.Errorf("failed to load eligible member ids: %w", err)
	}

	set := &eligibleSet{
		ids:      make(map[string]struct{}, len(ids)),
		loadedAt: now,
	}
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if IsGuestID(id) {
			continue
		}
		set.ids[id] = struct{}{}
	}
	g.set.Store(set)

	metrics.UpdateEligibleMembers(len(set.ids), float64(now.Unix()))
	g.logger.WithField("eligible_members", len(set.ids)).Debug("Eligible member set refreshed")
	return nil
}
