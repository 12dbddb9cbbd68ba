package backfill

import (
	"context"
	"encoding/base64"
	"fmt"
	"testing"

	"chainmirror/internal/chain"
	"chainmirror/internal/codec"
	"chainmirror/internal/model"
)

func subjectCreatedLine() string {
	disc := codec.EventDiscriminator("SubjectCreated")
	payload := append([]byte{}, disc[:]...)
	payload = append(payload, make([]byte, 32)...) // subject_id
	payload = append(payload, make([]byte, 32)...) // creator
	payload = append(payload, make([]byte, 8)...)  // timestamp
	return "Program data: " + base64.StdEncoding.EncodeToString(payload)
}

type fakeLedger struct {
	signatures []chain.SignatureInfo
	failing    map[string]bool
	txCalls    int
}

func (f *fakeLedger) SignaturesForAddress(_ context.Context, _ string, limit int, before string) ([]chain.SignatureInfo, error) {
	start := 0
	if before != "" {
		for i, sig := range f.signatures {
			if sig.Signature == before {
				start = i + 1
				break
			}
		}
	}
	end := start + limit
	if end > len(f.signatures) {
		end = len(f.signatures)
	}
	return f.signatures[start:end], nil
}

func (f *fakeLedger) Transaction(_ context.Context, signature string) (*chain.TransactionDetail, error) {
	f.txCalls++
	if f.failing[signature] {
		return nil, fmt.Errorf("rpc timeout")
	}
	bt := int64(1700000000)
	return &chain.TransactionDetail{
		Slot:        42,
		BlockTime:   &bt,
		LogMessages: []string{subjectCreatedLine()},
	}, nil
}

type fakeStore struct {
	records     []model.EventRecord
	cursor      string
	upsertCalls int
	failUpsert  map[int]bool
}

func (f *fakeStore) UpsertEventRecords(_ context.Context, records []model.EventRecord) (int, int) {
	f.upsertCalls++
	if f.failUpsert[f.upsertCalls] {
		return 0, len(records)
	}
	f.records = append(f.records, records...)
	return len(records), 0
}

func (f *fakeStore) SaveSyncCursor(_ context.Context, _ string, signature string) error {
	f.cursor = signature
	return nil
}

func newestFirstSignatures(n int) []chain.SignatureInfo {
	sigs := make([]chain.SignatureInfo, 0, n)
	for i := n; i >= 1; i-- {
		sigs = append(sigs, chain.SignatureInfo{Signature: fmt.Sprintf("s%d", i), Slot: uint64(i)})
	}
	return sigs
}

func newTestCrawler(ledger *fakeLedger, store *fakeStore) *Crawler {
	return NewCrawler(Config{
		ProgramAddress: "Arb1",
		BatchSize:      3,
	}, ledger, store, codec.NewExtractor(nil), nil, nil)
}

func TestRunPaginationHandoff(t *testing.T) {
	ledger := &fakeLedger{signatures: newestFirstSignatures(10)}
	store := &fakeStore{}
	crawler := newTestCrawler(ledger, store)

	first, err := crawler.Run(context.Background(), 5, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.LastSignature != "s6" {
		t.Fatalf("first page cursor mismatch: %q", first.LastSignature)
	}
	if !first.HasMore {
		t.Fatalf("full page should report hasMore")
	}
	if first.Processed != 5 || first.Events != 5 || first.Errors != 0 {
		t.Fatalf("first page counts mismatch: %+v", first)
	}

	second, err := crawler.Run(context.Background(), 5, first.LastSignature)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second.LastSignature != "s1" {
		t.Fatalf("second page cursor mismatch: %q", second.LastSignature)
	}
	if second.Processed != 5 {
		t.Fatalf("second page should cover s5..s1, got %+v", second)
	}

	// No overlap, no gap: every signature stored exactly once.
	seen := make(map[string]int)
	for _, rec := range store.records {
		seen[rec.Signature]++
	}
	for i := 1; i <= 10; i++ {
		sig := fmt.Sprintf("s%d", i)
		if seen[sig] != 1 {
			t.Fatalf("signature %s stored %d times", sig, seen[sig])
		}
	}
}

func TestRunContinuesPastFetchFailure(t *testing.T) {
	ledger := &fakeLedger{
		signatures: newestFirstSignatures(4),
		failing:    map[string]bool{"s3": true},
	}
	store := &fakeStore{}
	crawler := newTestCrawler(ledger, store)

	res, err := crawler.Run(context.Background(), 4, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Processed != 4 {
		t.Fatalf("all signatures should be attempted, got %d", res.Processed)
	}
	if res.Errors != 1 {
		t.Fatalf("one fetch failure expected, got %d errors", res.Errors)
	}
	if res.Events != 3 {
		t.Fatalf("three transactions should materialize, got %d", res.Events)
	}
	if res.LastSignature != "s1" {
		t.Fatalf("cursor should advance past the failed signature: %q", res.LastSignature)
	}
}

func TestRunContinuesPastStoreFailure(t *testing.T) {
	ledger := &fakeLedger{signatures: newestFirstSignatures(6)}
	store := &fakeStore{failUpsert: map[int]bool{1: true}}
	crawler := newTestCrawler(ledger, store)

	res, err := crawler.Run(context.Background(), 6, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Errors != 3 {
		t.Fatalf("failed batch should count its records, got %d errors", res.Errors)
	}
	if res.Events != 3 {
		t.Fatalf("second batch should still materialize, got %d events", res.Events)
	}
	if len(store.records) != 3 {
		t.Fatalf("expected 3 stored records, got %d", len(store.records))
	}
	for i, want := range []string{"s3", "s2", "s1"} {
		if store.records[i].Signature != want {
			t.Fatalf("record %d signature mismatch: %q", i, store.records[i].Signature)
		}
	}
	if res.LastSignature != "s1" || store.cursor != "s1" {
		t.Fatalf("cursor should advance past the failed batch: %q / %q", res.LastSignature, store.cursor)
	}
}

func TestRunEmptyHistory(t *testing.T) {
	ledger := &fakeLedger{}
	store := &fakeStore{}
	crawler := newTestCrawler(ledger, store)

	res, err := crawler.Run(context.Background(), 5, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Processed != 0 || res.HasMore || res.LastSignature != "" {
		t.Fatalf("empty history should be a no-op: %+v", res)
	}
}

func TestRunPartialLastPageClearsHasMore(t *testing.T) {
	ledger := &fakeLedger{signatures: newestFirstSignatures(3)}
	store := &fakeStore{}
	crawler := newTestCrawler(ledger, store)

	res, err := crawler.Run(context.Background(), 5, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.HasMore {
		t.Fatalf("short page must not report hasMore")
	}
	if store.cursor != "s1" {
		t.Fatalf("sync cursor should persist the oldest signature, got %q", store.cursor)
	}
}

func TestSplitBatches(t *testing.T) {
	batches, err := SplitBatches([]int{1, 2, 3, 4, 5}, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(batches) != 3 || len(batches[2]) != 1 {
		t.Fatalf("batches mismatch: %+v", batches)
	}

	if _, err := SplitBatches([]int{1}, 0); err == nil {
		t.Fatalf("expected error for zero batch size")
	}
}
