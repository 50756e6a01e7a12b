// internal/reconciler/reconciler.go
package reconciler

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"tenantgate/pkg/config"
	"tenantgate/pkg/directory"
	"tenantgate/pkg/identity"
)

// Reconciler retires stale synthetic groups. Without it the extractor's
// first-match tie-break can keep returning a superseded value forever after
// a user's source attribute changes between logins.
//
// A cycle is idempotent and safe to run concurrently with login traffic:
// membership add/remove are independent atomic directory operations, so a
// user mid-login sees either the old or the new value, never a corrupted
// one.
type Reconciler struct {
	store   directory.Store
	mapping config.Mapping
	log     *zap.SugaredLogger

	cycles        prometheus.Counter
	cycleFailures prometheus.Counter
	staleRemoved  prometheus.Counter
	groupsDeleted prometheus.Counter
}

func New(store directory.Store, mapping config.Mapping, log *zap.SugaredLogger, reg prometheus.Registerer) *Reconciler {
	f := promauto.With(reg)
	return &Reconciler{
		store:   store,
		mapping: mapping,
		log:     log,
		cycles: f.NewCounter(prometheus.CounterOpts{
			Name: "tenantgate_reconcile_cycles_total",
			Help: "Completed reconciliation cycles.",
		}),
		cycleFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "tenantgate_reconcile_cycle_failures_total",
			Help: "Reconciliation cycles abandoned on directory errors.",
		}),
		staleRemoved: f.NewCounter(prometheus.CounterOpts{
			Name: "tenantgate_stale_memberships_removed_total",
			Help: "Stale synthetic group memberships removed.",
		}),
		groupsDeleted: f.NewCounter(prometheus.CounterOpts{
			Name: "tenantgate_synthetic_groups_deleted_total",
			Help: "Synthetic groups garbage-collected after losing their last member.",
		}),
	}
}

// Cycle compares every user's current attributes against their synthetic
// group memberships and removes the ones that no longer match; groups left
// empty are deleted. Returns the first directory error so the scheduler can
// retry the whole cycle.
func (r *Reconciler) Cycle(ctx context.Context) error {
	users, err := r.store.ListUsers(ctx)
	if err != nil {
		r.cycleFailures.Inc()
		return fmt.Errorf("list users: %w", err)
	}
	for _, u := range users {
		if err := r.reconcileUser(ctx, u, r.mapping.OrgAttribute, r.mapping.OrgPrefix); err != nil {
			r.cycleFailures.Inc()
			return err
		}
		if err := r.reconcileUser(ctx, u, r.mapping.AccountAttribute, r.mapping.AccountPrefix); err != nil {
			r.cycleFailures.Inc()
			return err
		}
	}
	for _, prefix := range []string{r.mapping.OrgPrefix, r.mapping.AccountPrefix} {
		if err := r.sweepEmptyGroups(ctx, prefix); err != nil {
			r.cycleFailures.Inc()
			return err
		}
	}
	r.cycles.Inc()
	return nil
}

// sweepEmptyGroups garbage-collects every synthetic group under prefix that
// has no members left. Sweeping the whole prefix, not just groups touched
// this cycle, also picks up groups orphaned by an earlier interrupted cycle
// or by cascading user deletion.
func (r *Reconciler) sweepEmptyGroups(ctx context.Context, prefix string) error {
	groups, err := r.store.GroupsWithPrefix(ctx, prefix)
	if err != nil {
		return fmt.Errorf("groups with prefix %s: %w", prefix, err)
	}
	for _, g := range groups {
		members, err := r.store.Members(ctx, g)
		if err != nil {
			return fmt.Errorf("members of %s: %w", g, err)
		}
		if len(members) > 0 {
			continue
		}
		if err := r.store.DeleteGroup(ctx, g); err != nil {
			return fmt.Errorf("delete %s: %w", g, err)
		}
		r.groupsDeleted.Inc()
		r.log.Infow("empty synthetic group deleted", "group", g)
	}
	return nil
}

// reconcileUser handles one user/prefix pair as a unit: list memberships
// under the prefix, keep the one matching the current attribute value,
// remove the rest. Emptied groups are collected by the end-of-cycle sweep.
func (r *Reconciler) reconcileUser(ctx context.Context, u directory.User, attr, prefix string) error {
	want := ""
	if v := u.Attribute(attr); v != "" {
		want = identity.GroupName(prefix, v)
	}
	groups, err := r.store.GroupsForUser(ctx, u.Username, prefix)
	if err != nil {
		return fmt.Errorf("groups for %s: %w", u.Username, err)
	}
	for _, g := range groups {
		if g == want {
			continue
		}
		if err := r.store.RemoveMember(ctx, g, u.Username); err != nil {
			return fmt.Errorf("remove %s from %s: %w", u.Username, g, err)
		}
		r.staleRemoved.Inc()
		r.log.Infow("stale membership removed", "username", u.Username, "group", g)
	}
	return nil
}
