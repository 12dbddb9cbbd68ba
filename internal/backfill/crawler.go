// Package backfill pulls the program's transaction history through the
// ledger RPC, newest first, and materializes it through the same codec and
// store path the webhook uses.
package backfill

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"chainmirror/internal/chain"
	"chainmirror/internal/codec"
	"chainmirror/internal/metrics"
	"chainmirror/internal/model"
)

// MaxPageLimit is the provider-imposed ceiling on one signature page.
const MaxPageLimit = 1000

// SyncCursorName keys the persisted resume point in sync_state.
const SyncCursorName = "backfill"

// LedgerClient is the outbound RPC surface the crawler needs.
type LedgerClient interface {
	SignaturesForAddress(ctx context.Context, address string, limit int, before string) ([]chain.SignatureInfo, error)
	Transaction(ctx context.Context, signature string) (*chain.TransactionDetail, error)
}

// RecordStore is the materialization surface the crawler needs.
type RecordStore interface {
	UpsertEventRecords(ctx context.Context, records []model.EventRecord) (stored, failed int)
	SaveSyncCursor(ctx context.Context, name, signature string) error
}

// Config holds crawl settings.
type Config struct {
	ProgramAddress string
	BatchSize      int
	CallDelay      time.Duration
	MaxRetries     int
	RetryBackoff   time.Duration
}

// Result summarizes one crawl invocation.
type Result struct {
	Processed     int    `json:"processed"`
	Events        int    `json:"events"`
	Errors        int    `json:"errors"`
	LastSignature string `json:"lastSignature"`
	HasMore       bool   `json:"hasMore"`
}

// Crawler pages backward through the program's signature history.
type Crawler struct {
	cfg       Config
	client    LedgerClient
	store     RecordStore
	extractor *codec.Extractor
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

// NewCrawler builds a Crawler with its dependencies.
func NewCrawler(cfg Config, client LedgerClient, store RecordStore, extractor *codec.Extractor, m *metrics.Metrics, logger *zap.Logger) *Crawler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 25
	}
	return &Crawler{
		cfg:       cfg,
		client:    client,
		store:     store,
		extractor: extractor,
		metrics:   m,
		logger:    logger,
	}
}

// Run processes up to limit signatures starting strictly before the optional
// cursor and returns a resumable cursor plus counts. Transactions are
// fetched sequentially with a fixed inter-call delay: the RPC provider's
// throughput ceiling governs here, not this service's inbound limiter.
//
// A single fetch or decode failure only bumps the error counter; a store
// batch failure counts its records failed and the crawl moves on. Work
// already committed stays committed on cancellation.
func (c *Crawler) Run(ctx context.Context, limit int, before string) (Result, error) {
	if c.client == nil {
		return Result{}, fmt.Errorf("ledger client is nil")
	}
	if c.store == nil {
		return Result{}, fmt.Errorf("record store is nil")
	}
	if limit <= 0 || limit > MaxPageLimit {
		limit = MaxPageLimit
	}

	var sigs []chain.SignatureInfo
	err := withRetry(ctx, c.cfg.MaxRetries, c.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		sigs, err = c.client.SignaturesForAddress(ctx, c.cfg.ProgramAddress, limit, before)
		if err != nil {
			c.logger.Warn("list signatures failed", zap.Error(err), zap.String("before", before))
		}
		return err
	})
	if err != nil {
		return Result{}, fmt.Errorf("list signatures: %w", err)
	}
	c.countRPC("getSignaturesForAddress")

	if len(sigs) == 0 {
		c.logger.Info("nothing to backfill", zap.String("before", before))
		return Result{}, nil
	}

	batches, err := SplitBatches(sigs, c.cfg.BatchSize)
	if err != nil {
		return Result{}, err
	}

	result := Result{
		// Cannot tell "exactly limit remaining" from "more remaining"
		// without another call; over-reporting costs one empty page.
		HasMore: len(sigs) == limit,
	}

	for _, batch := range batches {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		records := make([]model.EventRecord, 0, len(batch))
		for _, sig := range batch {
			detail, err := c.fetchTransaction(ctx, sig.Signature)
			result.Processed++
			if err != nil {
				result.Errors++
				c.countDecodeError()
				c.logger.Warn("skip transaction", zap.String("signature", sig.Signature), zap.Error(err))
				continue
			}

			tx := model.TransactionLogBatch{
				Signature: sig.Signature,
				Slot:      detail.Slot,
				BlockTime: detail.BlockTime,
				LogLines:  detail.LogMessages,
			}
			events := c.extractor.ExtractEvents(tx.LogLines)
			recs, err := codec.ToRecords(events, tx)
			if err != nil {
				result.Errors++
				c.countDecodeError()
				c.logger.Warn("skip transaction", zap.String("signature", sig.Signature), zap.Error(err))
				continue
			}
			records = append(records, recs...)
			c.countTransaction()
		}

		stored, failed := c.store.UpsertEventRecords(ctx, records)
		result.Events += stored
		result.Errors += failed
		c.countStored(stored, failed)

		result.LastSignature = batch[len(batch)-1].Signature
		c.logger.Info("backfill batch complete",
			zap.Int("transactions", len(batch)),
			zap.Int("stored", stored),
			zap.Int("failed", failed),
			zap.String("last_signature", result.LastSignature),
		)
	}

	if err := c.store.SaveSyncCursor(ctx, SyncCursorName, result.LastSignature); err != nil {
		// Best effort: the caller still holds the returned cursor.
		c.logger.Warn("save sync cursor failed", zap.Error(err))
	}

	return result, nil
}

func (c *Crawler) fetchTransaction(ctx context.Context, signature string) (*chain.TransactionDetail, error) {
	if c.cfg.CallDelay > 0 {
		timer := time.NewTimer(c.cfg.CallDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	var detail *chain.TransactionDetail
	err := withRetry(ctx, c.cfg.MaxRetries, c.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		detail, err = c.client.Transaction(ctx, signature)
		return err
	})
	c.countRPC("getTransaction")
	return detail, err
}

func (c *Crawler) countRPC(method string) {
	if c.metrics != nil {
		c.metrics.RPCCalls.WithLabelValues(method).Inc()
	}
}

func (c *Crawler) countTransaction() {
	if c.metrics != nil {
		c.metrics.TransactionsProcessed.WithLabelValues("backfill").Inc()
	}
}

func (c *Crawler) countDecodeError() {
	if c.metrics != nil {
		c.metrics.DecodeErrors.Inc()
	}
}

func (c *Crawler) countStored(stored, failed int) {
	if c.metrics != nil {
		c.metrics.EventsStored.Add(float64(stored))
		c.metrics.StoreErrors.Add(float64(failed))
	}
}
