package liquidator

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ilertha/Solana-AI-agent-tool/internal/domain"
	"github.com/ilertha/Solana-AI-agent-tool/internal/inflight"
	"github.com/ilertha/Solana-AI-agent-tool/internal/notify"
	"github.com/ilertha/Solana-AI-agent-tool/internal/platform/backendsync"
	"github.com/ilertha/Solana-AI-agent-tool/internal/platform/sonar"
)

// ---------------------------------------------------------------------------
// In-memory fakes
// ---------------------------------------------------------------------------

type fakePositionStore struct {
	mu        sync.Mutex
	positions map[string]domain.Position
	listErr   error
}

func newFakePositionStore(positions ...domain.Position) *fakePositionStore {
	s := &fakePositionStore{positions: make(map[string]domain.Position)}
	for _, p := range positions {
		s.positions[p.TokenAddress] = p
	}
	return s
}

func (s *fakePositionStore) Get(_ context.Context, tokenAddress string) (domain.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pos, ok := s.positions[tokenAddress]
	if !ok {
		return domain.Position{}, domain.ErrNotFound
	}
	return pos, nil
}

func (s *fakePositionStore) Upsert(_ context.Context, pos domain.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.positions[pos.TokenAddress] = pos
	return nil
}

func (s *fakePositionStore) ListWithBalance(_ context.Context) ([]domain.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []domain.Position
	for _, p := range s.positions {
		if p.Balance > 0 {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *fakePositionStore) UpdateBalance(_ context.Context, tokenAddress string, newBalance float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	pos, ok := s.positions[tokenAddress]
	if !ok {
		return domain.ErrNotFound
	}
	pos.Balance = newBalance
	s.positions[tokenAddress] = pos
	return nil
}

type fakeTradeStore struct {
	mu       sync.Mutex
	openBuys map[string]domain.TradeRecord
	inserted []domain.TradeRecord
}

func newFakeTradeStore() *fakeTradeStore {
	return &fakeTradeStore{openBuys: make(map[string]domain.TradeRecord)}
}

func (s *fakeTradeStore) Insert(_ context.Context, rec domain.TradeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inserted = append(s.inserted, rec)
	return nil
}

func (s *fakeTradeStore) LatestOpenBuy(_ context.Context, tokenAddress, _ string, _ bool) (domain.TradeRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	buy, ok := s.openBuys[tokenAddress]
	if !ok {
		return domain.TradeRecord{}, domain.ErrNoOpenTrade
	}
	return buy, nil
}

func (s *fakeTradeStore) ListByToken(context.Context, string, int) ([]domain.TradeRecord, error) {
	return nil, nil
}

func (s *fakeTradeStore) ListBefore(context.Context, time.Time) ([]domain.TradeRecord, error) {
	return nil, nil
}

func (s *fakeTradeStore) DeleteBefore(context.Context, time.Time) (int64, error) {
	return 0, nil
}

func (s *fakeTradeStore) lastInserted(t *testing.T) domain.TradeRecord {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.inserted)
	return s.inserted[len(s.inserted)-1]
}

type fakeRecommenderStore struct {
	mu              sync.Mutex
	recommenders    map[string]domain.Recommender
	recommendations map[string][]domain.Recommendation
}

func newFakeRecommenderStore() *fakeRecommenderStore {
	return &fakeRecommenderStore{
		recommenders:    make(map[string]domain.Recommender),
		recommendations: make(map[string][]domain.Recommendation),
	}
}

func (s *fakeRecommenderStore) GetOrCreate(context.Context, string, string) (domain.Recommender, error) {
	return domain.Recommender{}, nil
}

func (s *fakeRecommenderStore) GetByID(_ context.Context, id string) (domain.Recommender, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recommenders[id]
	if !ok {
		return domain.Recommender{}, domain.ErrNotFound
	}
	return rec, nil
}

func (s *fakeRecommenderStore) InsertRecommendation(context.Context, domain.Recommendation) error {
	return nil
}

func (s *fakeRecommenderStore) RecommendationsForToken(_ context.Context, tokenAddress string) ([]domain.Recommendation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recommendations[tokenAddress], nil
}

type fakeMarket struct {
	snapshots  map[string]domain.TokenSnapshot
	quotePrice float64
	err        error
}

func (m *fakeMarket) TokenOverview(_ context.Context, tokenAddress string) (domain.TokenSnapshot, error) {
	if m.err != nil {
		return domain.TokenSnapshot{}, m.err
	}
	snap, ok := m.snapshots[tokenAddress]
	if !ok {
		return domain.TokenSnapshot{}, domain.ErrNotFound
	}
	return snap, nil
}

func (m *fakeMarket) QuotePrice(context.Context) (float64, error) {
	if m.err != nil {
		return 0, m.err
	}
	return m.quotePrice, nil
}

type fakeBackend struct {
	mu       sync.Mutex
	started  []sonar.StartRequest
	stopped  []string
	startErr error
	stopErr  error
}

func (b *fakeBackend) StartProcess(_ context.Context, req sonar.StartRequest) (json.RawMessage, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.startErr != nil {
		return nil, b.startErr
	}
	b.started = append(b.started, req)
	return json.RawMessage(`{"ok":true}`), nil
}

func (b *fakeBackend) StopProcess(_ context.Context, tokenAddress string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopErr != nil {
		return b.stopErr
	}
	b.stopped = append(b.stopped, tokenAddress)
	return nil
}

func (b *fakeBackend) startedCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.started)
}

type fakeReporter struct {
	mu      sync.Mutex
	reports []backendsync.Report
	err     error
}

func (r *fakeReporter) ReportTrade(_ context.Context, report backendsync.Report) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.reports = append(r.reports, report)
	return nil
}

func (r *fakeReporter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.reports)
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *fakeNotifier) Notify(_ context.Context, event, _, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return nil
}

func (n *fakeNotifier) eventNames() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.events...)
}

type fakeQueue struct {
	mu    sync.Mutex
	acked []string
}

func (q *fakeQueue) Receive(ctx context.Context) (domain.QueueMessage, error) {
	<-ctx.Done()
	return domain.QueueMessage{}, ctx.Err()
}

func (q *fakeQueue) Ack(_ context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.acked = append(q.acked, id)
	return nil
}

func (q *fakeQueue) Publish(context.Context, []byte) error { return nil }

func (q *fakeQueue) ackedIDs() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.acked...)
}

// ---------------------------------------------------------------------------
// Harness
// ---------------------------------------------------------------------------

type harness struct {
	coord        *Coordinator
	positions    *fakePositionStore
	trades       *fakeTradeStore
	recommenders *fakeRecommenderStore
	market       *fakeMarket
	backend      *fakeBackend
	reporter     *fakeReporter
	queue        *fakeQueue
	notifier     *fakeNotifier
	tracker      *inflight.Tracker
}

func newHarness(t *testing.T, positions ...domain.Position) *harness {
	t.Helper()
	h := &harness{
		positions:    newFakePositionStore(positions...),
		trades:       newFakeTradeStore(),
		recommenders: newFakeRecommenderStore(),
		market: &fakeMarket{
			snapshots:  make(map[string]domain.TokenSnapshot),
			quotePrice: 150,
		},
		backend:  &fakeBackend{},
		reporter: &fakeReporter{},
		queue:    &fakeQueue{},
		notifier: &fakeNotifier{},
		tracker:  inflight.NewTracker(),
	}
	h.coord = New(Options{
		Positions:     h.positions,
		Trades:        h.trades,
		Recommenders:  h.recommenders,
		Market:        h.market,
		Queue:         h.queue,
		Backend:       h.backend,
		Reporter:      h.reporter,
		Tracker:       h.tracker,
		Notifier:      h.notifier,
		ScanInterval:  time.Hour,
		ReportTimeout: time.Second,
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return h
}

const (
	testToken       = "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin"
	testRecommender = "3f6f3d93-7c7e-4b2c-9a1f-1f1df6f0a001"
)

func openPosition(balance float64) domain.Position {
	return domain.Position{
		TokenAddress:     testToken,
		Balance:          balance,
		InitialMarketCap: 1000,
		RecommenderID:    testRecommender,
	}
}

func seedRoundTrip(h *harness) {
	h.market.snapshots[testToken] = domain.TokenSnapshot{
		TokenAddress:   testToken,
		PriceUSD:       0.6,
		MarketCap:      1200,
		Liquidity:      180,
		PriceChange24h: -10,
	}
	h.trades.openBuys[testToken] = domain.TradeRecord{
		ID:           "buy-1",
		TokenAddress: testToken,
		Direction:    domain.TradeDirectionBuy,
		Amount:       100,
		ValueUSD:     50,
		MarketCap:    1000,
		Liquidity:    200,
	}
}

func sellMessage(t *testing.T, amount float64) domain.QueueMessage {
	t.Helper()
	payload, err := json.Marshal(map[string]any{
		"tokenAddress": testToken,
		"amount":       amount,
	})
	require.NoError(t, err)
	return domain.QueueMessage{ID: "msg-1", Payload: payload}
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestParseSellInstruction(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		wantErr bool
	}{
		{"valid", `{"tokenAddress":"ABC","amount":100}`, false},
		{"valid with recommender", `{"tokenAddress":"ABC","amount":1,"sell_recommender_id":"r1"}`, false},
		{"not json", `{{`, true},
		{"missing token", `{"amount":100}`, true},
		{"missing amount", `{"tokenAddress":"ABC"}`, true},
		{"negative amount", `{"tokenAddress":"ABC","amount":-5}`, true},
		{"amount wrong type", `{"tokenAddress":"ABC","amount":"100"}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseSellInstruction([]byte(tt.payload))
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, domain.ErrMalformedMessage)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestConsumeQueueMessage_SettlesSell(t *testing.T) {
	h := newHarness(t, openPosition(100))
	seedRoundTrip(h)

	h.coord.ConsumeQueueMessage(context.Background(), sellMessage(t, 100))

	rec := h.trades.lastInserted(t)
	assert.Equal(t, domain.TradeDirectionSell, rec.Direction)
	assert.InDelta(t, 60, rec.ValueUSD, 1e-9)
	assert.InDelta(t, 10, rec.ProfitUSD, 1e-9)
	assert.InDelta(t, 20, rec.ProfitPercent, 1e-9)
	assert.InDelta(t, 200, rec.MarketCapChange, 1e-9)
	assert.InDelta(t, -20, rec.LiquidityChange, 1e-9)
	assert.False(t, rec.RapidDump)
	require.NotNil(t, rec.BuyTradeID)
	assert.Equal(t, "buy-1", *rec.BuyTradeID)

	pos, err := h.positions.Get(context.Background(), testToken)
	require.NoError(t, err)
	assert.Zero(t, pos.Balance)

	// Full close releases the in-flight entry and stops the remote process.
	assert.False(t, h.tracker.Contains(testToken))
	assert.Equal(t, []string{testToken}, h.backend.stopped)
	assert.Equal(t, []string{"msg-1"}, h.queue.ackedIDs())

	assert.Eventually(t, func() bool { return h.reporter.count() == 1 }, time.Second, 10*time.Millisecond)
}

func TestConsumeQueueMessage_PartialSellKeepsInFlight(t *testing.T) {
	h := newHarness(t, openPosition(100))
	seedRoundTrip(h)

	h.coord.ConsumeQueueMessage(context.Background(), sellMessage(t, 40))

	pos, err := h.positions.Get(context.Background(), testToken)
	require.NoError(t, err)
	assert.InDelta(t, 60, pos.Balance, 1e-9)
	assert.True(t, h.tracker.Contains(testToken))
	assert.Equal(t, []string{"msg-1"}, h.queue.ackedIDs())
}

func TestConsumeQueueMessage_MalformedIsDiscarded(t *testing.T) {
	h := newHarness(t, openPosition(100))
	seedRoundTrip(h)

	h.coord.ConsumeQueueMessage(context.Background(), domain.QueueMessage{ID: "bad-1", Payload: []byte(`{"amount":1}`)})

	h.trades.mu.Lock()
	inserted := len(h.trades.inserted)
	h.trades.mu.Unlock()
	assert.Zero(t, inserted)
	assert.Equal(t, []string{"bad-1"}, h.queue.ackedIDs())
}

func TestConsumeQueueMessage_UnknownPositionIsDiscarded(t *testing.T) {
	h := newHarness(t)

	h.coord.ConsumeQueueMessage(context.Background(), sellMessage(t, 100))

	assert.Equal(t, []string{"msg-1"}, h.queue.ackedIDs())
	assert.False(t, h.tracker.Contains(testToken))
}

func TestConsumeQueueMessage_NoOpenBuyAbandonsAttempt(t *testing.T) {
	h := newHarness(t, openPosition(100))
	h.market.snapshots[testToken] = domain.TokenSnapshot{TokenAddress: testToken, PriceUSD: 0.6}
	// No open buy seeded.

	h.coord.ConsumeQueueMessage(context.Background(), sellMessage(t, 100))

	// The attempt is abandoned: no sell record, balance untouched, entry
	// released, message acknowledged so it does not loop forever.
	h.trades.mu.Lock()
	inserted := len(h.trades.inserted)
	h.trades.mu.Unlock()
	assert.Zero(t, inserted)

	pos, err := h.positions.Get(context.Background(), testToken)
	require.NoError(t, err)
	assert.InDelta(t, 100, pos.Balance, 1e-9)
	assert.False(t, h.tracker.Contains(testToken))
	assert.Equal(t, []string{"msg-1"}, h.queue.ackedIDs())
}

func TestConsumeQueueMessage_TransientFailureLeavesUnacked(t *testing.T) {
	h := newHarness(t, openPosition(100))
	seedRoundTrip(h)
	h.market.err = errors.New("birdeye down")

	h.coord.ConsumeQueueMessage(context.Background(), sellMessage(t, 100))

	assert.Empty(t, h.queue.ackedIDs())
	// Entry acquired for the attempt must be given back for the redelivery.
	assert.False(t, h.tracker.Contains(testToken))
}

func TestConsumeQueueMessage_ClampsAmountToBalance(t *testing.T) {
	h := newHarness(t, openPosition(50))
	seedRoundTrip(h)

	h.coord.ConsumeQueueMessage(context.Background(), sellMessage(t, 100))

	rec := h.trades.lastInserted(t)
	assert.InDelta(t, 50, rec.Amount, 1e-9)

	pos, err := h.positions.Get(context.Background(), testToken)
	require.NoError(t, err)
	assert.Zero(t, pos.Balance)
}

func TestConsumeQueueMessage_RapidDumpFlagged(t *testing.T) {
	h := newHarness(t, openPosition(100))
	seedRoundTrip(h)
	snap := h.market.snapshots[testToken]
	snap.PriceChange24h = -72.5
	h.market.snapshots[testToken] = snap

	h.coord.ConsumeQueueMessage(context.Background(), sellMessage(t, 100))

	rec := h.trades.lastInserted(t)
	assert.True(t, rec.RapidDump)
}

func TestConsumeQueueMessage_SimulationMarksRecordAndHash(t *testing.T) {
	pos := openPosition(100)
	pos.IsSimulation = true
	h := newHarness(t, pos)
	seedRoundTrip(h)

	h.coord.ConsumeQueueMessage(context.Background(), sellMessage(t, 100))

	rec := h.trades.lastInserted(t)
	assert.True(t, rec.IsSimulation)
	assert.Contains(t, rec.TxHash, "sim-")
}

func TestExecuteSell_AlertEventsMatchNotifierFilter(t *testing.T) {
	h := newHarness(t, openPosition(100))
	seedRoundTrip(h)
	h.reporter.err = errors.New("backend down")

	h.coord.ConsumeQueueMessage(context.Background(), sellMessage(t, 100))

	// Settlement alerts use the event names the notifier filters on, so a
	// subscription to notify.EventSellSettled actually matches.
	assert.Contains(t, h.notifier.eventNames(), notify.EventSellSettled)
	require.Eventually(t, func() bool {
		return slices.Contains(h.notifier.eventNames(), notify.EventSyncFailed)
	}, time.Second, 10*time.Millisecond)
}

func TestExecuteSell_RapidDumpAlertEvent(t *testing.T) {
	h := newHarness(t, openPosition(100))
	seedRoundTrip(h)
	snap := h.market.snapshots[testToken]
	snap.PriceChange24h = -72.5
	h.market.snapshots[testToken] = snap

	h.coord.ConsumeQueueMessage(context.Background(), sellMessage(t, 100))

	events := h.notifier.eventNames()
	assert.Contains(t, events, notify.EventRapidDump)
	assert.NotContains(t, events, notify.EventSellSettled)
}

func TestScanAndDispatch_StartsProcessOncePerAsset(t *testing.T) {
	h := newHarness(t, openPosition(100))

	h.coord.ScanAndDispatch(context.Background())

	require.Equal(t, 1, h.backend.startedCount())
	req := h.backend.started[0]
	assert.Equal(t, testToken, req.TokenAddress)
	assert.InDelta(t, 100, req.Balance, 1e-9)
	assert.Equal(t, testRecommender, req.RecommenderID)
	assert.True(t, h.tracker.Contains(testToken))

	// Second scan sees the asset in flight and does not dispatch again.
	h.coord.ScanAndDispatch(context.Background())
	assert.Equal(t, 1, h.backend.startedCount())
}

func TestScanAndDispatch_StartFailureReleasesEntry(t *testing.T) {
	h := newHarness(t, openPosition(100))
	h.backend.startErr = errors.New("sonar unavailable")

	h.coord.ScanAndDispatch(context.Background())

	assert.False(t, h.tracker.Contains(testToken))

	// Asset becomes eligible again once the backend recovers.
	h.backend.startErr = nil
	h.coord.ScanAndDispatch(context.Background())
	assert.Equal(t, 1, h.backend.startedCount())
}

func TestScanAndDispatch_UsesLatestRecommendation(t *testing.T) {
	h := newHarness(t, openPosition(100))
	h.recommenders.recommendations[testToken] = []domain.Recommendation{
		{RecommenderID: "newer-rec", TokenAddress: testToken, InitialMarketCap: 900},
		{RecommenderID: "older-rec", TokenAddress: testToken, InitialMarketCap: 500},
	}

	h.coord.ScanAndDispatch(context.Background())

	require.Equal(t, 1, h.backend.startedCount())
	assert.Equal(t, "newer-rec", h.backend.started[0].RecommenderID)
	assert.InDelta(t, 900, h.backend.started[0].InitialMarketCap, 1e-9)
}

func TestExecuteSell_SettlesWhenScanAlreadyInFlight(t *testing.T) {
	h := newHarness(t, openPosition(100))
	seedRoundTrip(h)

	// Scan path owns the entry; the settlement for the same asset must still
	// proceed under it.
	h.coord.ScanAndDispatch(context.Background())
	require.True(t, h.tracker.Contains(testToken))

	h.coord.ConsumeQueueMessage(context.Background(), sellMessage(t, 100))

	rec := h.trades.lastInserted(t)
	assert.Equal(t, domain.TradeDirectionSell, rec.Direction)
	assert.False(t, h.tracker.Contains(testToken))
}

func TestExecuteSell_StopFailureDoesNotUndoSettlement(t *testing.T) {
	h := newHarness(t, openPosition(100))
	seedRoundTrip(h)
	h.backend.stopErr = errors.New("sonar unavailable")

	h.coord.ConsumeQueueMessage(context.Background(), sellMessage(t, 100))

	rec := h.trades.lastInserted(t)
	assert.Equal(t, domain.TradeDirectionSell, rec.Direction)
	assert.Equal(t, []string{"msg-1"}, h.queue.ackedIDs())
}

func TestExecuteSell_ReportCarriesUsername(t *testing.T) {
	h := newHarness(t, openPosition(100))
	seedRoundTrip(h)
	h.recommenders.recommenders[testRecommender] = domain.Recommender{
		ID:       testRecommender,
		Username: "degen_dave",
	}

	h.coord.ConsumeQueueMessage(context.Background(), sellMessage(t, 100))

	require.Eventually(t, func() bool { return h.reporter.count() == 1 }, time.Second, 10*time.Millisecond)
	h.reporter.mu.Lock()
	report := h.reporter.reports[0]
	h.reporter.mu.Unlock()
	assert.Equal(t, "degen_dave", report.Username)
	assert.Equal(t, testRecommender, report.RecommenderID)
	assert.InDelta(t, 60, report.TradeData.SellValueUSD, 1e-9)
	assert.InDelta(t, 100, report.TradeData.BuyAmount, 1e-9)
	assert.Zero(t, report.BalanceLeft)
}
