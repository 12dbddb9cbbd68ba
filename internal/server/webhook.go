package server

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"chainmirror/internal/codec"
	"chainmirror/internal/model"
)

// signatureHeader carries the provider's hex HMAC over the raw body.
const signatureHeader = "x-webhook-signature"

// webhookTransaction is the provider's transaction shape. Log lines arrive
// either directly or nested under meta, depending on provider version.
type webhookTransaction struct {
	Signature string   `json:"signature"`
	Slot      uint64   `json:"slot"`
	BlockTime *int64   `json:"blockTime"`
	Logs      []string `json:"logs"`
	Meta      *struct {
		LogMessages []string `json:"logMessages"`
	} `json:"meta"`
}

func (w webhookTransaction) logLines() []string {
	if len(w.Logs) > 0 {
		return w.Logs
	}
	if w.Meta != nil {
		return w.Meta.LogMessages
	}
	return nil
}

func (s *Server) handleWebhookHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "endpoint": "ledger-webhook"})
}

// handleWebhook is the push-delivery entry point. Partial row failures still
// answer 200: the provider redelivers only on 401/400/500, and redelivery
// cannot fix an internal write failure that idempotent upserts will absorb
// on the next run anyway.
func (s *Server) handleWebhook(c *gin.Context) {
	rawBody, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "unreadable body"})
		return
	}

	if !s.verifier.Verify(rawBody, c.GetHeader(signatureHeader)) {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "invalid signature"})
		return
	}

	transactions, err := normalizePayload(rawBody)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "malformed payload"})
		return
	}

	if s.store == nil {
		// Deliberately 200, not 503: a 5xx would put the provider into a
		// redelivery loop against a deployment that is not wired up yet.
		c.JSON(http.StatusOK, gin.H{
			"success": false,
			"message": "store not configured; delivery acknowledged and dropped",
		})
		return
	}

	totalStored := 0
	totalErrors := 0
	for _, wtx := range transactions {
		tx := model.TransactionLogBatch{
			Signature: wtx.Signature,
			Slot:      wtx.Slot,
			BlockTime: wtx.BlockTime,
			LogLines:  wtx.logLines(),
		}
		if !tx.TouchesProgram(s.cfg.ProgramAddress) {
			continue
		}

		events := s.extractor.ExtractEvents(tx.LogLines)
		records, err := codec.ToRecords(events, tx)
		if err != nil {
			totalErrors += len(events)
			s.logger.Warn("map transaction failed", zap.String("signature", tx.Signature), zap.Error(err))
			continue
		}

		stored, failed := s.store.UpsertEventRecords(c.Request.Context(), records)
		totalStored += stored
		totalErrors += failed
		if s.metrics != nil {
			s.metrics.TransactionsProcessed.WithLabelValues("webhook").Inc()
			s.metrics.EventsStored.Add(float64(stored))
			s.metrics.StoreErrors.Add(float64(failed))
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"events":  totalStored,
		"errors":  totalErrors,
	})
}

// normalizePayload accepts either a single transaction object or an array of
// them and returns a uniform slice.
func normalizePayload(rawBody []byte) ([]webhookTransaction, error) {
	var many []webhookTransaction
	if err := json.Unmarshal(rawBody, &many); err == nil {
		return many, nil
	}

	var one webhookTransaction
	if err := json.Unmarshal(rawBody, &one); err != nil {
		return nil, err
	}
	return []webhookTransaction{one}, nil
}
