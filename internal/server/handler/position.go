package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/lenslabs/lplens/internal/domain"
	"github.com/lenslabs/lplens/internal/service"
)

// PositionService defines the methods that the position handler requires.
type PositionService interface {
	Sync(ctx context.Context, wallet string, positions []domain.LivePosition) (int, error)
	Positions(wallet string) []domain.LivePosition
	Close(ctx context.Context, wallet string, req service.CloseRequest) (domain.PositionExitRecord, error)
	RecordClaimedFees(ctx context.Context, wallet, positionID, amountA, amountB string) (domain.ClaimedFeesRecord, error)
}

// PositionHandler serves position ingest and lifecycle endpoints.
type PositionHandler struct {
	positions PositionService
	logger    *slog.Logger
}

// NewPositionHandler creates a PositionHandler with the given service and logger.
func NewPositionHandler(positions PositionService, logger *slog.Logger) *PositionHandler {
	return &PositionHandler{
		positions: positions,
		logger:    logHandler(logger, "position"),
	}
}

// syncRequest is the dashboard's position ingest payload.
type syncRequest struct {
	Wallet    string                `json:"wallet"`
	Positions []domain.LivePosition `json:"positions"`
}

// Sync replaces the wallet's live position set with the posted snapshot.
// POST /api/positions/sync
func (h *PositionHandler) Sync(w http.ResponseWriter, r *http.Request) {
	var req syncRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Wallet == "" {
		writeError(w, http.StatusBadRequest, "wallet required")
		return
	}

	accepted, err := h.positions.Sync(r.Context(), req.Wallet, req.Positions)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidAddress) {
			writeError(w, http.StatusBadRequest, "invalid wallet address")
			return
		}
		h.logger.ErrorContext(r.Context(), "sync failed",
			slog.String("wallet", req.Wallet),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to sync positions")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"accepted": accepted,
		"dropped":  len(req.Positions) - accepted,
	})
}

// listPositionsResponse wraps the list positions response.
type listPositionsResponse struct {
	Positions []domain.LivePosition `json:"positions"`
}

// ListPositions returns the wallet's current live position set.
// GET /api/positions?wallet=...
func (h *PositionHandler) ListPositions(w http.ResponseWriter, r *http.Request) {
	wallet, ok := walletParam(w, r)
	if !ok {
		return
	}

	positions := h.positions.Positions(wallet)
	if positions == nil {
		positions = []domain.LivePosition{}
	}
	writeJSON(w, http.StatusOK, listPositionsResponse{Positions: positions})
}

// closeRequest wraps a close report with its wallet.
type closeRequest struct {
	Wallet string `json:"wallet"`
	service.CloseRequest
}

// ClosePosition records a position exit reported by the dashboard.
// POST /api/positions/close
func (h *PositionHandler) ClosePosition(w http.ResponseWriter, r *http.Request) {
	var req closeRequest
	if !decodeBody(w, r, &req) {
		return
	}

	exit, err := h.positions.Close(r.Context(), req.Wallet, req.CloseRequest)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidAddress):
			writeError(w, http.StatusBadRequest, "invalid position identifier")
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "position not found")
		default:
			h.logger.ErrorContext(r.Context(), "close failed",
				slog.String("position", req.PositionID),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to close position")
		}
		return
	}

	writeJSON(w, http.StatusOK, exit)
}

// claimedFeesRequest is the fee-claim ingest payload.
type claimedFeesRequest struct {
	Wallet     string `json:"wallet"`
	PositionID string `json:"positionId"`
	AmountA    string `json:"amountA"`
	AmountB    string `json:"amountB"`
}

// RecordClaimedFees records a manual fee claim on an open position.
// POST /api/positions/fees
func (h *PositionHandler) RecordClaimedFees(w http.ResponseWriter, r *http.Request) {
	var req claimedFeesRequest
	if !decodeBody(w, r, &req) {
		return
	}

	rec, err := h.positions.RecordClaimedFees(r.Context(), req.Wallet, req.PositionID, req.AmountA, req.AmountB)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "position not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "record claimed fees failed",
			slog.String("position", req.PositionID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to record claimed fees")
		return
	}

	writeJSON(w, http.StatusOK, rec)
}
