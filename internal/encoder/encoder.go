// internal/encoder/encoder.go
package encoder

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

// Encoder is the inverse of claims extraction: it writes each user's source
// attributes into the directory as synthetic group memberships, so the
// values survive the introspection boundary (which only forwards groups).
// Runs at directory-sync time, not per-login. Idempotent: re-running with
// unchanged attributes mutates nothing.
type Encoder struct {
	store   directory.Store
	mapping config.Mapping
	log     *zap.SugaredLogger

	usersSynced  prometheus.Counter
	usersSkipped prometheus.Counter
}

func New(store directory.Store, mapping config.Mapping, log *zap.SugaredLogger, reg prometheus.Registerer) *Encoder {
	f := promauto.With(reg)
	return &Encoder{
		store:   store,
		mapping: mapping,
		log:     log,
		usersSynced: f.NewCounter(prometheus.CounterOpts{
			Name: "tenantgate_encoder_users_synced_total",
			Help: "Users whose synthetic groups were brought up to date.",
		}),
		usersSkipped: f.NewCounter(prometheus.CounterOpts{
			Name: "tenantgate_encoder_users_skipped_total",
			Help: "Users skipped for missing source attributes.",
		}),
	}
}

// SyncUser ensures both synthetic groups exist and the user is a member.
// Users missing either attribute are skipped: encoding only one value would
// produce principals that always fail header construction.
func (e *Encoder) SyncUser(ctx context.Context, u directory.User) error {
	org := u.Attribute(e.mapping.OrgAttribute)
	acct := u.Attribute(e.mapping.AccountAttribute)
	if org == "" || acct == "" {
		e.usersSkipped.Inc()
		e.log.Warnw("user missing tenant attributes, skipping", "username", u.Username)
		return nil
	}
	for _, group := range []string{
		identity.GroupName(e.mapping.OrgPrefix, org),
		identity.GroupName(e.mapping.AccountPrefix, acct),
	} {
		if err := e.store.EnsureGroup(ctx, group); err != nil {
			return fmt.Errorf("ensure group: %w", err)
		}
		if err := e.store.AddMember(ctx, group, u.Username); err != nil {
			return fmt.Errorf("add member: %w", err)
		}
	}
	e.usersSynced.Inc()
	return nil
}

// Sync sweeps all directory users. Errors abort the sweep; the scheduler
// retries the whole cycle, which is safe because every step is idempotent.
func (e *Encoder) Sync(ctx context.Context) error {
	users, err := e.store.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}
	for _, u := range users {
		if err := e.SyncUser(ctx, u); err != nil {
			return fmt.Errorf("sync %s: %w", u.Username, err)
		}
	}
	return nil
}
