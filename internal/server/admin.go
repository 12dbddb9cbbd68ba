package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type backfillRequest struct {
	Limit  int    `json:"limit"`
	Before string `json:"before"`
}

// handleBackfill triggers one bounded pull over the program's transaction
// history and returns the resumable cursor with granular counts.
func (s *Server) handleBackfill(c *gin.Context) {
	if s.crawler == nil || s.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"success": false,
			"error":   "rpc endpoint or store not configured",
		})
		return
	}

	var req backfillRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "malformed request body"})
			return
		}
	}

	result, err := s.crawler.Run(c.Request.Context(), req.Limit, req.Before)
	if err != nil {
		s.logger.Error("backfill failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"processed":     result.Processed,
		"events":        result.Events,
		"errors":        result.Errors,
		"lastSignature": result.LastSignature,
		"hasMore":       result.HasMore,
	})
}

type reconcileRequest struct {
	Address string `json:"address" binding:"required"`
}

// handleReconcile refreshes one account's snapshot row from chain state.
func (s *Server) handleReconcile(c *gin.Context) {
	if s.reconciler == nil || s.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"success": false,
			"error":   "rpc endpoint or store not configured",
		})
		return
	}

	var req reconcileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "address is required"})
		return
	}

	if err := s.reconciler.Reconcile(c.Request.Context(), req.Address); err != nil {
		s.logger.Error("reconcile failed", zap.String("address", req.Address), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "address": req.Address})
}

// handleReset deletes all mirror rows, dependents first, and reports
// per-table results so an operator can see partial failure directly.
func (s *Server) handleReset(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"success": false,
			"error":   "store not configured",
		})
		return
	}

	results := s.store.TruncateAll(c.Request.Context())
	success := true
	for _, res := range results {
		if !res.OK {
			success = false
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"success": success,
		"tables":  results,
	})
}
