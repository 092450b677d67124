// Package settings implements the configuration resolver (C3): it
// merges chat-local, tier-default, and global-default layers, caches
// the GlobalSettings row in-process with a TTL, and resolves breach
// recipients by escalation level.
//
// The teacher's module-level mutable singleton (a classic Node/Python
// pattern) is replaced here by a dedicated component owning
// (value, loadedAt, mutex) explicitly, per spec.md §9. A concurrent
// refill is collapsed with singleflight so a cache-miss storm under
// load triggers exactly one store read instead of one per caller.
package settings

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/chatsla/sentinel/internal/store"
)

const cacheTTL = 5 * time.Minute

// tierDefaults is the fixed SLA threshold mapping used when a chat has
// no local override; a known tier takes precedence over the
// GlobalSettings default.
var tierDefaults = map[store.ClientTier]int{
	store.TierBasic:    120,
	store.TierStandard: 60,
	store.TierVIP:      30,
	store.TierPremium:  15,
}

// fallback constants used only when the GlobalSettings row itself is
// missing (e.g. a fresh install before the admin surface has run).
const (
	fallbackThreshold      = 60
	fallbackMaxEscalations = 3
	fallbackEscalationMin  = 30
	fallbackWarningPercent = 80
)

// Store is the subset of the persistence layer Resolver needs.
type Store interface {
	GetGlobalSettings(ctx context.Context) (*store.GlobalSettings, error)
}

// Resolver merges the three configuration layers and caches the global
// row. Reads never block on a refresh: a stale cached value (or the
// hard-coded fallback) is served immediately on any store error or
// outstanding refill, per spec.md's "serve stale on contention" design
// note. Only a caller with no cached row at all waits for the store read.
type Resolver struct {
	st Store

	mu       sync.Mutex
	cached   *store.GlobalSettings
	loadedAt time.Time

	group singleflight.Group
}

func New(st Store) *Resolver {
	return &Resolver{st: st}
}

// Invalidate clears the cached slot and timestamp, forcing the next
// Global() call to hit the store.
func (r *Resolver) Invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cached = nil
	r.loadedAt = time.Time{}
}

// Global returns the cached GlobalSettings, refreshing it if the TTL
// has elapsed. On store failure it returns the stale cache if any,
// else a hard-coded fallback row; it never returns an error, matching
// the "serve stale" policy in spec.md §9.
func (r *Resolver) Global(ctx context.Context) *store.GlobalSettings {
	r.mu.Lock()
	fresh := r.cached != nil && time.Since(r.loadedAt) < cacheTTL
	cached := r.cached
	r.mu.Unlock()
	if fresh {
		return cached
	}

	ch := r.group.DoChan("global", func() (interface{}, error) {
		gs, err := r.st.GetGlobalSettings(ctx)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.cached = gs
		r.loadedAt = time.Now()
		r.mu.Unlock()
		return gs, nil
	})
	var res singleflight.Result
	if cached != nil {
		select {
		case res = <-ch:
		default:
			return cached // refill still running: serve the stale row
		}
	} else {
		res = <-ch
	}
	if gs, ok := res.Val.(*store.GlobalSettings); ok && gs != nil {
		return gs
	}
	if cached != nil {
		return cached
	}
	return fallbackGlobalSettings()
}

func fallbackGlobalSettings() *store.GlobalSettings {
	return &store.GlobalSettings{
		Timezone:              "UTC",
		WorkingDays:           []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday},
		StartTime:             "09:00",
		EndTime:               "18:00",
		DefaultSLAThreshold:   fallbackThreshold,
		MaxEscalations:        fallbackMaxEscalations,
		EscalationIntervalMin: fallbackEscalationMin,
		SLAWarningPercent:     fallbackWarningPercent,
	}
}

// SLAThreshold resolves the effective SLA threshold minutes for a chat:
// chat-local override, else tier default, else GlobalSettings default,
// else the hard-coded fallback.
func (r *Resolver) SLAThreshold(ctx context.Context, chat *store.Chat) int {
	if chat.SLAThresholdMinutes != nil {
		return *chat.SLAThresholdMinutes
	}
	if chat.ClientTier != nil {
		if v, ok := tierDefaults[*chat.ClientTier]; ok {
			return v
		}
	}
	gs := r.Global(ctx)
	if gs.DefaultSLAThreshold > 0 {
		return gs.DefaultSLAThreshold
	}
	return fallbackThreshold
}

// RecipientTier classifies the kind of audience a resolved recipient
// list was drawn from, for logging/diagnostics.
type RecipientTier string

const (
	RecipientAccountant RecipientTier = "accountant"
	RecipientManager    RecipientTier = "manager"
	RecipientBoth       RecipientTier = "both"
	RecipientFallback   RecipientTier = "fallback"
)

// RecipientsByLevel implements C3's getRecipientsByLevel: level 1
// prefers accountants, falling back to chat managers and then global
// managers; level >= 2 unions managers and accountants, deduplicated.
func (r *Resolver) RecipientsByLevel(ctx context.Context, chatManagers, accountants []string, level int) ([]string, RecipientTier) {
	if level <= 1 {
		if len(accountants) > 0 {
			return dedupe(accountants), RecipientAccountant
		}
		if len(chatManagers) > 0 {
			return dedupe(chatManagers), RecipientManager
		}
		gs := r.Global(ctx)
		return dedupe(gs.GlobalManagerIDs), RecipientFallback
	}
	union := append(append([]string{}, chatManagers...), accountants...)
	return dedupe(union), RecipientBoth
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
