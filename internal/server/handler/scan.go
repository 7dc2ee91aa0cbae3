package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/lenslabs/lplens/internal/domain"
)

// ScanService defines the methods that the scan handler requires.
type ScanService interface {
	StartScan(ctx context.Context, wallet string) (domain.ScanStatus, error)
	ScanStatus() domain.ScanStatus
}

// ScanHandler exposes the historical transaction scan.
type ScanHandler struct {
	scans  ScanService
	logger *slog.Logger
}

// NewScanHandler creates a ScanHandler with the given service and logger.
func NewScanHandler(scans ScanService, logger *slog.Logger) *ScanHandler {
	return &ScanHandler{
		scans:  scans,
		logger: logHandler(logger, "scan"),
	}
}

// Status reports the latest scan's progress and outcome.
// GET /api/scan/status
func (h *ScanHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.scans.ScanStatus())
}

// triggerRequest names the wallet to scan.
type triggerRequest struct {
	Wallet string `json:"wallet"`
}

// Trigger starts a background historical scan for a wallet.
// POST /api/scan/trigger
func (h *ScanHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	var req triggerRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Wallet == "" {
		writeError(w, http.StatusBadRequest, "wallet required")
		return
	}

	status, err := h.scans.StartScan(r.Context(), req.Wallet)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrScanInProgress):
			writeJSON(w, http.StatusConflict, status)
		case errors.Is(err, domain.ErrInvalidAddress):
			writeError(w, http.StatusBadRequest, "invalid wallet address")
		default:
			h.logger.ErrorContext(r.Context(), "scan trigger failed",
				slog.String("wallet", req.Wallet),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to start scan")
		}
		return
	}

	writeJSON(w, http.StatusAccepted, status)
}
