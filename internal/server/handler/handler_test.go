package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lenslabs/lplens/internal/domain"
	"github.com/lenslabs/lplens/internal/service"
)

const testWallet = "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU"

type fakePositionService struct {
	syncCount int
	syncErr   error
	positions []domain.LivePosition
	closeExit domain.PositionExitRecord
	closeErr  error
	feesRec   domain.ClaimedFeesRecord
	feesErr   error
}

func (f *fakePositionService) Sync(context.Context, string, []domain.LivePosition) (int, error) {
	return f.syncCount, f.syncErr
}

func (f *fakePositionService) Positions(string) []domain.LivePosition {
	return f.positions
}

func (f *fakePositionService) Close(context.Context, string, service.CloseRequest) (domain.PositionExitRecord, error) {
	return f.closeExit, f.closeErr
}

func (f *fakePositionService) RecordClaimedFees(context.Context, string, string, string, string) (domain.ClaimedFeesRecord, error) {
	return f.feesRec, f.feesErr
}

type fakePnLService struct {
	pnls      []domain.PositionPnL
	stats     domain.PortfolioStats
	series    []domain.AggregatedPnLPoint
	seriesErr error
}

func (f *fakePnLService) PnL(context.Context, string) []domain.PositionPnL { return f.pnls }

func (f *fakePnLService) Stats(context.Context, string) domain.PortfolioStats { return f.stats }

func (f *fakePnLService) Series(context.Context, string, domain.Timeframe) ([]domain.AggregatedPnLPoint, error) {
	return f.series, f.seriesErr
}

type fakeScanService struct {
	status   domain.ScanStatus
	startErr error
}

func (f *fakeScanService) StartScan(context.Context, string) (domain.ScanStatus, error) {
	return f.status, f.startErr
}

func (f *fakeScanService) ScanStatus() domain.ScanStatus { return f.status }

func postJSON(t *testing.T, h http.HandlerFunc, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func get(t *testing.T, h http.HandlerFunc, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func TestHealthCheck(t *testing.T) {
	h := NewHealthHandler(slog.Default())
	rec := get(t, h.HealthCheck, "/api/health")

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestSyncHandler(t *testing.T) {
	h := NewPositionHandler(&fakePositionService{syncCount: 2}, slog.Default())

	rec := postJSON(t, h.Sync, `{"wallet":"`+testWallet+`","positions":[{},{},{}]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2.0, body["accepted"])
	assert.Equal(t, 1.0, body["dropped"])
}

func TestSyncHandlerRejections(t *testing.T) {
	h := NewPositionHandler(&fakePositionService{}, slog.Default())

	assert.Equal(t, http.StatusBadRequest, postJSON(t, h.Sync, `not json`).Code)
	assert.Equal(t, http.StatusBadRequest, postJSON(t, h.Sync, `{"positions":[]}`).Code)

	h = NewPositionHandler(&fakePositionService{syncErr: domain.ErrInvalidAddress}, slog.Default())
	assert.Equal(t, http.StatusBadRequest, postJSON(t, h.Sync, `{"wallet":"zzz"}`).Code)
}

func TestListPositionsEmptyIsArray(t *testing.T) {
	h := NewPositionHandler(&fakePositionService{}, slog.Default())

	rec := get(t, h.ListPositions, "/api/positions?wallet="+testWallet)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"positions":[]}`, rec.Body.String())
}

func TestListPositionsRequiresWallet(t *testing.T) {
	h := NewPositionHandler(&fakePositionService{}, slog.Default())
	assert.Equal(t, http.StatusBadRequest, get(t, h.ListPositions, "/api/positions").Code)
}

func TestClosePositionStatusCodes(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"ok", nil, http.StatusOK},
		{"invalid id", domain.ErrInvalidAddress, http.StatusBadRequest},
		{"unknown position", domain.ErrNotFound, http.StatusNotFound},
		{"ledger failure", assert.AnError, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewPositionHandler(&fakePositionService{closeErr: tc.err}, slog.Default())
			rec := postJSON(t, h.ClosePosition, `{"wallet":"`+testWallet+`","positionId":"x"}`)
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestRecordClaimedFeesNotFound(t *testing.T) {
	h := NewPositionHandler(&fakePositionService{feesErr: domain.ErrNotFound}, slog.Default())
	rec := postJSON(t, h.RecordClaimedFees, `{"wallet":"`+testWallet+`","positionId":"x","amountA":"1","amountB":"0"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListPnLEmptyIsArray(t *testing.T) {
	h := NewPnLHandler(&fakePnLService{}, slog.Default())

	rec := get(t, h.ListPnL, "/api/pnl?wallet="+testWallet)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"positions":[]}`, rec.Body.String())
}

func TestStatsHandler(t *testing.T) {
	h := NewPnLHandler(&fakePnLService{stats: domain.PortfolioStats{OpenPositions: 3, NetWorthUSD: 1500}}, slog.Default())

	rec := get(t, h.Stats, "/api/pnl/stats?wallet="+testWallet)
	require.Equal(t, http.StatusOK, rec.Code)

	var stats domain.PortfolioStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 3, stats.OpenPositions)
	assert.Equal(t, 1500.0, stats.NetWorthUSD)
}

func TestSeriesDefaultsTimeframe(t *testing.T) {
	h := NewPnLHandler(&fakePnLService{}, slog.Default())

	rec := get(t, h.Series, "/api/pnl/series?wallet="+testWallet)
	require.Equal(t, http.StatusOK, rec.Code)

	var body seriesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, domain.Timeframe1D, body.Timeframe)
	assert.NotNil(t, body.Points)
}

func TestSeriesUnsupportedTimeframe(t *testing.T) {
	h := NewPnLHandler(&fakePnLService{seriesErr: domain.ErrUnsupportedTimeframe}, slog.Default())
	rec := get(t, h.Series, "/api/pnl/series?wallet="+testWallet+"&timeframe=2h")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScanTriggerStatusCodes(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"accepted", nil, http.StatusAccepted},
		{"already running", domain.ErrScanInProgress, http.StatusConflict},
		{"bad wallet", domain.ErrInvalidAddress, http.StatusBadRequest},
		{"scanner failure", assert.AnError, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewScanHandler(&fakeScanService{startErr: tc.err}, slog.Default())
			rec := postJSON(t, h.Trigger, `{"wallet":"`+testWallet+`"}`)
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestScanTriggerRequiresWallet(t *testing.T) {
	h := NewScanHandler(&fakeScanService{}, slog.Default())
	assert.Equal(t, http.StatusBadRequest, postJSON(t, h.Trigger, `{}`).Code)
}

func TestScanStatusHandler(t *testing.T) {
	h := NewScanHandler(&fakeScanService{status: domain.ScanStatus{Running: true, Wallet: testWallet}}, slog.Default())

	rec := get(t, h.Status, "/api/scan/status")
	require.Equal(t, http.StatusOK, rec.Code)

	var status domain.ScanStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.True(t, status.Running)
	assert.Equal(t, testWallet, status.Wallet)
}
