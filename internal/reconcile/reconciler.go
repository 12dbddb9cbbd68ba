// Package reconcile refreshes entity snapshot rows directly from on-chain
// account state, for the push deliveries that only say an account changed
// without saying what changed.
package reconcile

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"chainmirror/internal/chain"
	"chainmirror/internal/codec"
	"chainmirror/internal/model"
)

// AccountFetcher fetches one account's raw state.
type AccountFetcher interface {
	Account(ctx context.Context, address string) (*chain.AccountInfo, error)
}

// SnapshotStore writes entity snapshot rows.
type SnapshotStore interface {
	UpsertSubjects(ctx context.Context, subjects []model.SubjectSnapshot) error
	UpsertDisputes(ctx context.Context, disputes []model.DisputeSnapshot) error
	UpsertStakePools(ctx context.Context, pools []model.StakePoolSnapshot) error
}

// Reconciler maps fetched accounts to their snapshot tables.
type Reconciler struct {
	fetcher AccountFetcher
	store   SnapshotStore
	logger  *zap.Logger
}

// New builds a Reconciler.
func New(fetcher AccountFetcher, store SnapshotStore, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{fetcher: fetcher, store: store, logger: logger}
}

// Reconcile fetches the account at address, decodes it to a known entity
// layout, and overwrites the corresponding snapshot row. Unknown account
// types log and return nil: foreign and future account types are expected,
// not failures.
func (r *Reconciler) Reconcile(ctx context.Context, address string) error {
	info, err := r.fetcher.Account(ctx, address)
	if err != nil {
		return fmt.Errorf("fetch account %s: %w", address, err)
	}

	decoded, err := codec.DecodeAccount(info.Data)
	if err != nil {
		r.logger.Info("unknown account type",
			zap.String("address", address),
			zap.String("owner", info.Owner),
			zap.Int("data_len", len(info.Data)),
		)
		return nil
	}

	switch snap := decoded.(type) {
	case model.SubjectSnapshot:
		snap.Address = address
		if err := r.store.UpsertSubjects(ctx, []model.SubjectSnapshot{snap}); err != nil {
			return fmt.Errorf("upsert subject %s: %w", address, err)
		}
	case model.DisputeSnapshot:
		snap.Address = address
		if err := r.store.UpsertDisputes(ctx, []model.DisputeSnapshot{snap}); err != nil {
			return fmt.Errorf("upsert dispute %s: %w", address, err)
		}
	case model.StakePoolSnapshot:
		snap.Address = address
		if err := r.store.UpsertStakePools(ctx, []model.StakePoolSnapshot{snap}); err != nil {
			return fmt.Errorf("upsert stake pool %s: %w", address, err)
		}
	default:
		return fmt.Errorf("unhandled snapshot type %T for %s", decoded, address)
	}

	r.logger.Info("account reconciled", zap.String("address", address))
	return nil
}
