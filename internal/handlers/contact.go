package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cmsconsultores/cmsweb/internal/contacts"
	apperrors "github.com/cmsconsultores/cmsweb/pkg/errors"
	"github.com/cmsconsultores/cmsweb/pkg/logger"
)

// ContactHandler handles the public contact form endpoint
type ContactHandler struct {
	store *contacts.Store
}

// NewContactHandler creates a new ContactHandler
func NewContactHandler(store *contacts.Store) *ContactHandler {
	return &ContactHandler{store: store}
}

// Submit appends the posted JSON object to the contact ledger
func (h *ContactHandler) Submit(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			err = apperrors.Request("request body too large", err)
		} else {
			err = apperrors.Request("could not read request body", err)
		}
		logger.FromContext(c.Request.Context(), nil).Warn("failed to read contact body", "error", err)
		respondSaveError(c, err)
		return
	}

	if _, err := h.store.Submit(c.Request.Context(), body); err != nil {
		respondSaveError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Contact saved successfully"})
}

// respondSaveError writes the failure body. Only the AppError message is
// exposed; the cause has already been logged.
func respondSaveError(c *gin.Context, err error) {
	msg := "Internal Server Error"
	if appErr, ok := apperrors.As(err); ok {
		msg = appErr.Message
	}
	c.JSON(apperrors.StatusOf(err), gin.H{
		"message": "Error saving contact",
		"error":   msg,
	})
}
