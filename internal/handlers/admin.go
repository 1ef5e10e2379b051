package handlers

import (
	"bytes"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cmsconsultores/cmsweb/internal/auth"
	"github.com/cmsconsultores/cmsweb/internal/contacts"
	apperrors "github.com/cmsconsultores/cmsweb/pkg/errors"
	"github.com/cmsconsultores/cmsweb/pkg/logger"
)

// AdminHandler handles the authenticated admin endpoints
type AdminHandler struct {
	store    *contacts.Store
	creds    auth.Credentials
	secret   []byte
	tokenTTL time.Duration
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(store *contacts.Store, creds auth.Credentials, secret []byte, tokenTTL time.Duration) *AdminHandler {
	return &AdminHandler{store: store, creds: creds, secret: secret, tokenTTL: tokenTTL}
}

// LoginRequest represents a login request
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login exchanges the admin credentials for a bearer token
func (h *AdminHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.Username == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
		return
	}

	log := logger.FromContext(c.Request.Context(), nil)
	if err := h.creds.Verify(req.Username, req.Password); err != nil {
		log.Warn("admin login failed", "username", req.Username)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid username or password"})
		return
	}

	token, err := auth.NewToken(h.secret, req.Username, auth.RoleAdmin, h.tokenTTL)
	if err != nil {
		log.Error("failed to issue admin token", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue token"})
		return
	}
	log.Info("admin logged in", "username", req.Username)
	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"expires_at": time.Now().Add(h.tokenTTL).UTC().Format(time.RFC3339),
	})
}

// ListContacts returns every stored submission
func (h *AdminHandler) ListContacts(c *gin.Context) {
	records, corrupt, ok := h.load(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"contacts": records,
		"count":    len(records),
		"corrupt":  corrupt,
	})
}

// ExportContacts returns every stored submission as CSV
func (h *AdminHandler) ExportContacts(c *gin.Context) {
	records, _, ok := h.load(c)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := contacts.WriteCSV(&buf, records); err != nil {
		logger.FromContext(c.Request.Context(), nil).Error("failed to render contacts csv", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "export failed"})
		return
	}
	c.Header("Content-Disposition", `attachment; filename="contactos.csv"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

func (h *AdminHandler) load(c *gin.Context) ([]contacts.Record, bool, bool) {
	snap, err := h.store.List(c.Request.Context())
	if err != nil {
		logger.FromContext(c.Request.Context(), nil).Error("failed to read contact ledger", "error", err)
		msg := "Internal Server Error"
		if appErr, ok := apperrors.As(err); ok {
			msg = appErr.Message
		}
		c.JSON(apperrors.StatusOf(err), gin.H{"error": msg})
		return nil, false, false
	}
	records, skipped := snap.Ledger.Records()
	if skipped > 0 {
		logger.FromContext(c.Request.Context(), nil).Warn("ledger holds non-object entries", "skipped", skipped)
	}
	return records, snap.Corrupt, true
}
