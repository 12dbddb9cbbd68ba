package reconcile

import (
	"context"
	"encoding/binary"
	"testing"

	"chainmirror/internal/chain"
	"chainmirror/internal/codec"
	"chainmirror/internal/model"
)

func subjectAccountData(withDiscriminator bool) []byte {
	var data []byte
	if withDiscriminator {
		disc := codec.AccountDiscriminator("Subject")
		data = append(data, disc[:]...)
	}
	data = append(data, make([]byte, 32)...) // creator
	data = append(data, 1)                   // status: Disputed
	data = binary.LittleEndian.AppendUint16(data, 3)
	data = binary.LittleEndian.AppendUint32(data, 2) // metadata length
	data = append(data, []byte("hi")...)
	data = binary.LittleEndian.AppendUint64(data, 1700000000)
	return data
}

type fakeFetcher struct {
	data []byte
}

func (f *fakeFetcher) Account(_ context.Context, _ string) (*chain.AccountInfo, error) {
	return &chain.AccountInfo{Owner: "Arb1", Data: f.data}, nil
}

type fakeSnapshotStore struct {
	subjects []model.SubjectSnapshot
	disputes []model.DisputeSnapshot
	pools    []model.StakePoolSnapshot
}

func (f *fakeSnapshotStore) UpsertSubjects(_ context.Context, s []model.SubjectSnapshot) error {
	f.subjects = append(f.subjects, s...)
	return nil
}

func (f *fakeSnapshotStore) UpsertDisputes(_ context.Context, d []model.DisputeSnapshot) error {
	f.disputes = append(f.disputes, d...)
	return nil
}

func (f *fakeSnapshotStore) UpsertStakePools(_ context.Context, p []model.StakePoolSnapshot) error {
	f.pools = append(f.pools, p...)
	return nil
}

func TestReconcileDispatchesOnDiscriminator(t *testing.T) {
	store := &fakeSnapshotStore{}
	r := New(&fakeFetcher{data: subjectAccountData(true)}, store, nil)

	if err := r.Reconcile(context.Background(), "Subj1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.subjects) != 1 {
		t.Fatalf("expected one subject snapshot, got %+v", store)
	}
	snap := store.subjects[0]
	if snap.Address != "Subj1" || snap.Status != "Disputed" || snap.CurrentRound != 3 || snap.Metadata != "hi" {
		t.Fatalf("snapshot mismatch: %+v", snap)
	}
}

func TestReconcileTrialFallbackForLegacyAccount(t *testing.T) {
	store := &fakeSnapshotStore{}
	r := New(&fakeFetcher{data: subjectAccountData(false)}, store, nil)

	if err := r.Reconcile(context.Background(), "Subj2"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.subjects) != 1 {
		t.Fatalf("legacy account should decode via trial order, got %+v", store)
	}
}

func TestReconcileUnknownAccountIsNotAnError(t *testing.T) {
	store := &fakeSnapshotStore{}
	r := New(&fakeFetcher{data: []byte{0x00, 0x01, 0x02}}, store, nil)

	if err := r.Reconcile(context.Background(), "Mystery1"); err != nil {
		t.Fatalf("unknown account type must not error: %v", err)
	}
	if len(store.subjects)+len(store.disputes)+len(store.pools) != 0 {
		t.Fatalf("nothing should be stored for unknown accounts")
	}
}

func TestReconcileIdempotentOverwrite(t *testing.T) {
	store := &fakeSnapshotStore{}
	r := New(&fakeFetcher{data: subjectAccountData(true)}, store, nil)

	if err := r.Reconcile(context.Background(), "Subj1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.Reconcile(context.Background(), "Subj1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.subjects[0] != store.subjects[1] {
		t.Fatalf("repeated reconcile must produce the same snapshot")
	}
}
