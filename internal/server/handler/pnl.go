package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/lenslabs/lplens/internal/domain"
)

// PnLService defines the methods that the P&L handler requires.
type PnLService interface {
	PnL(ctx context.Context, wallet string) []domain.PositionPnL
	Stats(ctx context.Context, wallet string) domain.PortfolioStats
	Series(ctx context.Context, wallet string, timeframe domain.Timeframe) ([]domain.AggregatedPnLPoint, error)
}

// PnLHandler serves derived P&L views.
type PnLHandler struct {
	pnl    PnLService
	logger *slog.Logger
}

// NewPnLHandler creates a PnLHandler with the given service and logger.
func NewPnLHandler(pnl PnLService, logger *slog.Logger) *PnLHandler {
	return &PnLHandler{
		pnl:    pnl,
		logger: logHandler(logger, "pnl"),
	}
}

// listPnLResponse wraps the per-position P&L list.
type listPnLResponse struct {
	Positions []domain.PositionPnL `json:"positions"`
}

// ListPnL returns a P&L record for every live position of a wallet.
// GET /api/pnl?wallet=...
func (h *PnLHandler) ListPnL(w http.ResponseWriter, r *http.Request) {
	wallet, ok := walletParam(w, r)
	if !ok {
		return
	}

	records := h.pnl.PnL(r.Context(), wallet)
	if records == nil {
		records = []domain.PositionPnL{}
	}
	writeJSON(w, http.StatusOK, listPnLResponse{Positions: records})
}

// Stats returns the wallet's flat portfolio summary.
// GET /api/pnl/stats?wallet=...
func (h *PnLHandler) Stats(w http.ResponseWriter, r *http.Request) {
	wallet, ok := walletParam(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.pnl.Stats(r.Context(), wallet))
}

// seriesResponse wraps the aggregated series.
type seriesResponse struct {
	Timeframe domain.Timeframe            `json:"timeframe"`
	Points    []domain.AggregatedPnLPoint `json:"points"`
}

// Series returns the wallet's aggregated P&L time series.
// GET /api/pnl/series?wallet=...&timeframe=1d
func (h *PnLHandler) Series(w http.ResponseWriter, r *http.Request) {
	wallet, ok := walletParam(w, r)
	if !ok {
		return
	}

	timeframe := domain.Timeframe(r.URL.Query().Get("timeframe"))
	if timeframe == "" {
		timeframe = domain.Timeframe1D
	}

	points, err := h.pnl.Series(r.Context(), wallet, timeframe)
	if err != nil {
		if errors.Is(err, domain.ErrUnsupportedTimeframe) {
			writeError(w, http.StatusBadRequest, "unsupported timeframe")
			return
		}
		h.logger.ErrorContext(r.Context(), "series failed",
			slog.String("wallet", wallet),
			slog.String("timeframe", string(timeframe)),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to build series")
		return
	}

	if points == nil {
		points = []domain.AggregatedPnLPoint{}
	}
	writeJSON(w, http.StatusOK, seriesResponse{Timeframe: timeframe, Points: points})
}
