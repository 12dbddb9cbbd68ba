package server

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"chainmirror/internal/auth"
)

// handleUpload accepts an evidence file under a wallet-issued, timestamped
// authorization token. The file is content-addressed, not stored on-box; the
// response points at the gateway.
// uploadFormOverhead allows for multipart framing and the auth fields beyond
// the file itself.
const uploadFormOverhead = 4 << 10

func (s *Server) handleUpload(c *gin.Context) {
	if c.Request.ContentLength > s.cfg.UploadMaxBytes+uploadFormOverhead {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"success": false, "error": "file exceeds size limit"})
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.UploadMaxBytes+uploadFormOverhead)

	address := c.PostForm("address")
	issuedAt := c.PostForm("timestamp")
	token := c.PostForm("token")
	if !auth.VerifyUploadToken(address, issuedAt, token, s.cfg.WebhookSecret, time.Now()) {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "invalid upload token"})
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		status := http.StatusBadRequest
		if strings.Contains(err.Error(), "request body too large") {
			status = http.StatusRequestEntityTooLarge
		}
		c.JSON(status, gin.H{"success": false, "error": "missing or oversized file"})
		return
	}
	defer file.Close()

	if header.Size > s.cfg.UploadMaxBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"success": false, "error": "file exceeds size limit"})
		return
	}

	contentType := header.Header.Get("Content-Type")
	if !s.contentTypeAllowed(contentType) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": fmt.Sprintf("content type %q not allowed", contentType)})
		return
	}

	sum := sha256.New()
	if _, err := io.Copy(sum, file); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "read file failed"})
		return
	}
	contentAddress := hex.EncodeToString(sum.Sum(nil))

	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"contentAddress": contentAddress,
		"gatewayUrl":     strings.TrimSuffix(s.cfg.GatewayURL, "/") + "/" + contentAddress,
	})
}

func (s *Server) contentTypeAllowed(contentType string) bool {
	for _, allowed := range s.cfg.UploadAllowedTypes {
		if strings.EqualFold(contentType, allowed) {
			return true
		}
	}
	return false
}
