package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/institute-api/internal/service"
	appErrors "github.com/noah-isme/institute-api/pkg/errors"
	"github.com/noah-isme/institute-api/pkg/response"
)

// ReceiptHandler exposes receipt download endpoints.
type ReceiptHandler struct {
	receipts *service.ReceiptService
}

// NewReceiptHandler constructs ReceiptHandler.
func NewReceiptHandler(receipts *service.ReceiptService) *ReceiptHandler {
	return &ReceiptHandler{receipts: receipts}
}

// SignedURL godoc
// @Summary Get a signed download token for a payment receipt
// @Tags Receipts
// @Produce json
// @Param id path string true "Payment ID"
// @Success 200 {object} response.Envelope
// @Router /payments/{id}/receipt [get]
func (h *ReceiptHandler) SignedURL(c *gin.Context) {
	token, expiresAt, err := h.receipts.DownloadURL(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{
		"url":        "/api/v1/receipts/download?token=" + token,
		"expires_at": expiresAt.Format(time.RFC3339),
	}, nil)
}

// Download godoc
// @Summary Download a receipt PDF with a signed token
// @Tags Receipts
// @Produce application/pdf
// @Param token query string true "Signed download token"
// @Success 200 {file} binary "PDF file"
// @Router /receipts/download [get]
func (h *ReceiptHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	file, paymentID, err := h.receipts.Open(token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to stat receipt"))
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "receipt-"+paymentID+".pdf"))
	c.DataFromReader(http.StatusOK, info.Size(), "application/pdf", file, nil)
}
