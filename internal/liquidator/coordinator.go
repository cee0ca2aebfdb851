// Package liquidator contains the position-liquidation coordinator: the sole
// authority deciding whether and how to liquidate a held position. It
// consumes sell instructions from the durable trade queue, dispatches
// liquidation processes to the remote execution backend on periodic scans,
// settles sell economics into the performance ledger, and reports finalized
// trades to the analytics backend.
package liquidator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ilertha/Solana-AI-agent-tool/internal/domain"
	"github.com/ilertha/Solana-AI-agent-tool/internal/notify"
	"github.com/ilertha/Solana-AI-agent-tool/internal/platform/backendsync"
	"github.com/ilertha/Solana-AI-agent-tool/internal/platform/sonar"
)

// RemoteBackend controls liquidation processes on the remote execution
// service. Implemented by the sonar client.
type RemoteBackend interface {
	StartProcess(ctx context.Context, req sonar.StartRequest) (json.RawMessage, error)
	StopProcess(ctx context.Context, tokenAddress string) error
}

// TradeReporter delivers finalized trade results to the analytics backend.
type TradeReporter interface {
	ReportTrade(ctx context.Context, report backendsync.Report) error
}

// InFlightTracker is the concurrency-safe set of token addresses with an
// active liquidation attempt.
type InFlightTracker interface {
	TryAcquire(tokenAddress string) bool
	Release(tokenAddress string)
	Contains(tokenAddress string) bool
}

// Notifier pushes operator alerts. May be satisfied by the notify package or
// left nil to disable alerting.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// Options bundles the coordinator's dependencies and tunables.
type Options struct {
	Positions    domain.PositionStore
	Trades       domain.TradeStore
	Recommenders domain.RecommenderStore
	Audit        domain.AuditStore
	Market       domain.MarketDataProvider
	Queue        domain.TradeQueue
	Backend      RemoteBackend
	Reporter     TradeReporter
	Tracker      InFlightTracker
	Notifier     Notifier

	// Simulation marks every sell this coordinator settles as simulated.
	Simulation bool
	// ScanInterval is the period of the scan-and-dispatch loop.
	ScanInterval time.Duration
	// ReportTimeout bounds one fire-and-forget trade report including its
	// retries.
	ReportTimeout time.Duration

	Logger *slog.Logger
}

// Coordinator orchestrates the liquidation lifecycle for held positions.
type Coordinator struct {
	positions    domain.PositionStore
	trades       domain.TradeStore
	recommenders domain.RecommenderStore
	audit        domain.AuditStore
	market       domain.MarketDataProvider
	queue        domain.TradeQueue
	backend      RemoteBackend
	reporter     TradeReporter
	tracker      InFlightTracker
	notifier     Notifier

	simulation    bool
	scanInterval  time.Duration
	reportTimeout time.Duration
	logger        *slog.Logger
}

// New creates a Coordinator from the given options.
func New(opts Options) *Coordinator {
	scanInterval := opts.ScanInterval
	if scanInterval <= 0 {
		scanInterval = time.Minute
	}
	reportTimeout := opts.ReportTimeout
	if reportTimeout <= 0 {
		reportTimeout = 2 * time.Minute
	}
	return &Coordinator{
		positions:     opts.Positions,
		trades:        opts.Trades,
		recommenders:  opts.Recommenders,
		audit:         opts.Audit,
		market:        opts.Market,
		queue:         opts.Queue,
		backend:       opts.Backend,
		reporter:      opts.Reporter,
		tracker:       opts.Tracker,
		notifier:      opts.Notifier,
		simulation:    opts.Simulation,
		scanInterval:  scanInterval,
		reportTimeout: reportTimeout,
		logger:        opts.Logger.With(slog.String("component", "liquidator")),
	}
}

// Run starts the queue-consumer loop and the periodic scan loop, blocking
// until the context is cancelled or one of the loops fails.
func (c *Coordinator) Run(ctx context.Context) error {
	c.logger.InfoContext(ctx, "liquidation coordinator starting",
		slog.Bool("simulation", c.simulation),
		slog.Duration("scan_interval", c.scanInterval),
	)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return c.consumeLoop(ctx)
	})
	g.Go(func() error {
		return c.scanLoop(ctx)
	})

	err := g.Wait()
	c.logger.Info("liquidation coordinator stopped")
	return err
}

// ---------------------------------------------------------------------------
// Queue-driven path
// ---------------------------------------------------------------------------

// sellInstruction is the wire form of a queued liquidation instruction.
type sellInstruction struct {
	TokenAddress  string  `json:"tokenAddress"`
	Amount        float64 `json:"amount"`
	RecommenderID *string `json:"sell_recommender_id"`
}

// parseSellInstruction strictly decodes a queued payload. Missing or
// wrongly-typed fields yield domain.ErrMalformedMessage so the consumer can
// discard the message without blocking the queue.
func parseSellInstruction(raw []byte) (sellInstruction, error) {
	var in sellInstruction
	if err := json.Unmarshal(raw, &in); err != nil {
		return in, fmt.Errorf("%w: %v", domain.ErrMalformedMessage, err)
	}
	if in.TokenAddress == "" {
		return in, fmt.Errorf("%w: missing tokenAddress", domain.ErrMalformedMessage)
	}
	if in.Amount <= 0 {
		return in, fmt.Errorf("%w: amount must be positive, got %v", domain.ErrMalformedMessage, in.Amount)
	}
	return in, nil
}

func (c *Coordinator) consumeLoop(ctx context.Context) error {
	c.logger.InfoContext(ctx, "queue consumer started")
	for {
		msg, err := c.queue.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.ErrorContext(ctx, "queue receive failed",
				slog.String("error", err.Error()),
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
			}
			continue
		}
		c.ConsumeQueueMessage(ctx, msg)
	}
}

// ConsumeQueueMessage handles one queued liquidation instruction end to end.
// The message is acknowledged only after processing completes with either
// success or a classified failure; infrastructure errors leave it pending so
// the broker redelivers it.
func (c *Coordinator) ConsumeQueueMessage(ctx context.Context, msg domain.QueueMessage) {
	log := c.logger.With(slog.String("message_id", msg.ID))

	instr, err := parseSellInstruction(msg.Payload)
	if err != nil {
		log.WarnContext(ctx, "discarding malformed queue message",
			slog.String("error", err.Error()),
		)
		c.ack(ctx, msg.ID)
		return
	}

	log = log.With(slog.String("token", instr.TokenAddress))

	pos, err := c.positions.Get(ctx, instr.TokenAddress)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			log.WarnContext(ctx, "sell instruction for unknown position, discarding")
			c.ack(ctx, msg.ID)
			return
		}
		log.ErrorContext(ctx, "position load failed, leaving message for redelivery",
			slog.String("error", err.Error()),
		)
		return
	}
	if pos.Balance <= 0 {
		log.WarnContext(ctx, "sell instruction for empty position, discarding")
		c.ack(ctx, msg.ID)
		return
	}

	recommenderID := pos.RecommenderID
	if instr.RecommenderID != nil && *instr.RecommenderID != "" {
		recommenderID = *instr.RecommenderID
	}

	amount := instr.Amount
	if amount > pos.Balance {
		log.WarnContext(ctx, "sell amount exceeds balance, clamping",
			slog.Float64("requested", amount),
			slog.Float64("balance", pos.Balance),
		)
		amount = pos.Balance
	}

	decision := domain.SellDecision{
		Position:      pos,
		Amount:        amount,
		RecommenderID: recommenderID,
	}

	// A direct sell for an idle asset takes the in-flight entry for the
	// duration of the attempt; a sell for an asset the scan path already
	// started settles under the existing entry.
	acquired := c.tracker.TryAcquire(instr.TokenAddress)

	_, err = c.ExecuteSell(ctx, decision)
	switch {
	case err == nil:
		c.ack(ctx, msg.ID)
	case errors.Is(err, domain.ErrNoOpenTrade):
		// Ledger inconsistency: abandon this attempt and free the asset for
		// operator investigation and later retries.
		log.ErrorContext(ctx, "no open buy record for sell, abandoning attempt",
			slog.String("recommender", recommenderID),
		)
		c.tracker.Release(instr.TokenAddress)
		c.ack(ctx, msg.ID)
	default:
		log.ErrorContext(ctx, "sell execution failed, leaving message for redelivery",
			slog.String("error", err.Error()),
		)
		if acquired {
			c.tracker.Release(instr.TokenAddress)
		}
	}
}

func (c *Coordinator) ack(ctx context.Context, id string) {
	if err := c.queue.Ack(ctx, id); err != nil {
		c.logger.WarnContext(ctx, "queue ack failed",
			slog.String("message_id", id),
			slog.String("error", err.Error()),
		)
	}
}

// ---------------------------------------------------------------------------
// Scan-and-dispatch path
// ---------------------------------------------------------------------------

func (c *Coordinator) scanLoop(ctx context.Context) error {
	c.logger.InfoContext(ctx, "scan loop started")

	// Dispatch once on start, then on every tick.
	c.ScanAndDispatch(ctx)

	ticker := time.NewTicker(c.scanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			c.ScanAndDispatch(ctx)
		}
	}
}

// ScanAndDispatch loads every position with a non-zero balance, skips assets
// already in flight, and requests a remote liquidation process for the rest
// using their most recent recommendation.
func (c *Coordinator) ScanAndDispatch(ctx context.Context) {
	positions, err := c.positions.ListWithBalance(ctx)
	if err != nil {
		c.logger.ErrorContext(ctx, "scan: listing positions failed",
			slog.String("error", err.Error()),
		)
		return
	}

	dispatched := 0
	for _, pos := range positions {
		if c.tracker.Contains(pos.TokenAddress) {
			continue
		}

		recommenderID := pos.RecommenderID
		initialMC := pos.InitialMarketCap
		recs, err := c.recommenders.RecommendationsForToken(ctx, pos.TokenAddress)
		if err != nil {
			c.logger.WarnContext(ctx, "scan: recommendation lookup failed",
				slog.String("token", pos.TokenAddress),
				slog.String("error", err.Error()),
			)
		} else if len(recs) > 0 {
			recommenderID = recs[0].RecommenderID
			if recs[0].InitialMarketCap > 0 {
				initialMC = recs[0].InitialMarketCap
			}
		}

		if c.RequestRemoteLiquidation(ctx, pos.TokenAddress, pos.Balance, recommenderID, initialMC) {
			dispatched++
		}
	}

	if dispatched > 0 {
		c.logger.InfoContext(ctx, "scan dispatched liquidations",
			slog.Int("dispatched", dispatched),
			slog.Int("scanned", len(positions)),
		)
	}
}

// RequestRemoteLiquidation asks the remote backend to start a liquidation
// process for the asset. The in-flight entry is acquired before the call and
// released again when the backend rejects it, so a failed start stays
// eligible for the next scan.
func (c *Coordinator) RequestRemoteLiquidation(ctx context.Context, tokenAddress string, balance float64, recommenderID string, initialMarketCap float64) bool {
	if !c.tracker.TryAcquire(tokenAddress) {
		c.logger.DebugContext(ctx, "liquidation already in flight",
			slog.String("token", tokenAddress),
		)
		return false
	}

	_, err := c.backend.StartProcess(ctx, sonar.StartRequest{
		TokenAddress:     tokenAddress,
		Balance:          balance,
		IsSimulation:     c.simulation,
		InitialMarketCap: initialMarketCap,
		RecommenderID:    recommenderID,
	})
	if err != nil {
		c.tracker.Release(tokenAddress)
		c.logger.ErrorContext(ctx, "remote liquidation start rejected",
			slog.String("token", tokenAddress),
			slog.String("error", err.Error()),
		)
		return false
	}

	c.logger.InfoContext(ctx, "remote liquidation started",
		slog.String("token", tokenAddress),
		slog.Float64("balance", balance),
		slog.String("recommender", recommenderID),
	)
	c.auditLog(ctx, "liquidation_started", map[string]any{
		"token":       tokenAddress,
		"balance":     balance,
		"recommender": recommenderID,
		"initial_mc":  initialMarketCap,
	})
	return true
}

// ---------------------------------------------------------------------------
// Sell settlement
// ---------------------------------------------------------------------------

// ExecuteSell settles one sell decision: fetches market data, matches the
// latest open buy, computes the sell economics, persists the sell record and
// the balance decrement, stops the remote process, and submits the outcome to
// the analytics backend.
func (c *Coordinator) ExecuteSell(ctx context.Context, decision domain.SellDecision) (domain.SellOutcome, error) {
	token := decision.Position.TokenAddress

	snap, err := c.market.TokenOverview(ctx, token)
	if err != nil {
		return domain.SellOutcome{}, fmt.Errorf("liquidator: market snapshot %s: %w", token, err)
	}

	quotePrice, err := c.market.QuotePrice(ctx)
	if err != nil {
		return domain.SellOutcome{}, fmt.Errorf("liquidator: quote price: %w", err)
	}

	buy, err := c.trades.LatestOpenBuy(ctx, token, decision.RecommenderID, decision.Position.IsSimulation)
	if err != nil {
		if errors.Is(err, domain.ErrNoOpenTrade) {
			return domain.SellOutcome{}, err
		}
		return domain.SellOutcome{}, fmt.Errorf("liquidator: load open buy %s: %w", token, err)
	}

	econ := computeSellEconomics(decision.Amount, snap, quotePrice, buy)
	now := time.Now().UTC()

	txHash := uuid.New().String()
	if decision.Position.IsSimulation {
		txHash = "sim-" + txHash
	}

	record := domain.TradeRecord{
		ID:              uuid.New().String(),
		TokenAddress:    token,
		RecommenderID:   decision.RecommenderID,
		Direction:       domain.TradeDirectionSell,
		ExecutedAt:      now,
		Price:           snap.PriceUSD,
		Amount:          decision.Amount,
		ValueUSD:        econ.SellValueUSD,
		MarketCap:       snap.MarketCap,
		Liquidity:       snap.Liquidity,
		ProfitUSD:       econ.ProfitUSD,
		ProfitPercent:   econ.ProfitPercent,
		MarketCapChange: econ.MarketCapChange,
		LiquidityChange: econ.LiquidityChange,
		RapidDump:       econ.RapidDump,
		IsSimulation:    decision.Position.IsSimulation,
		TxHash:          txHash,
		BuyTradeID:      &buy.ID,
	}
	if err := c.trades.Insert(ctx, record); err != nil {
		return domain.SellOutcome{}, fmt.Errorf("liquidator: persist sell record %s: %w", token, err)
	}

	balanceLeft := decision.Position.Balance - decision.Amount
	if err := c.positions.UpdateBalance(ctx, token, balanceLeft); err != nil {
		return domain.SellOutcome{}, fmt.Errorf("liquidator: update balance %s: %w", token, err)
	}
	if balanceLeft == 0 {
		c.tracker.Release(token)
	}

	// Best-effort stop; the sell is already settled and must not be rolled
	// back by a partner outage.
	if err := c.backend.StopProcess(ctx, token); err != nil {
		c.logger.WarnContext(ctx, "remote process stop failed",
			slog.String("token", token),
			slog.String("error", err.Error()),
		)
	}

	outcome := domain.SellOutcome{
		TokenAddress:    token,
		RecommenderID:   decision.RecommenderID,
		Amount:          decision.Amount,
		SellPrice:       snap.PriceUSD,
		SellValueUSD:    econ.SellValueUSD,
		SellValueQuote:  econ.SellValueQuote,
		ProfitUSD:       econ.ProfitUSD,
		ProfitPercent:   econ.ProfitPercent,
		MarketCapChange: econ.MarketCapChange,
		LiquidityChange: econ.LiquidityChange,
		RapidDump:       econ.RapidDump,
		BalanceLeft:     balanceLeft,
		IsSimulation:    decision.Position.IsSimulation,
		TxHash:          txHash,
		ExecutedAt:      now,
	}

	c.logger.InfoContext(ctx, "sell settled",
		slog.String("token", token),
		slog.Float64("amount", outcome.Amount),
		slog.Float64("sell_value_usd", outcome.SellValueUSD),
		slog.Float64("profit_usd", outcome.ProfitUSD),
		slog.Float64("profit_percent", outcome.ProfitPercent),
		slog.Bool("rapid_dump", outcome.RapidDump),
		slog.Float64("balance_left", balanceLeft),
	)
	c.auditLog(ctx, "sell_settled", map[string]any{
		"token":          token,
		"amount":         outcome.Amount,
		"sell_value_usd": outcome.SellValueUSD,
		"profit_usd":     outcome.ProfitUSD,
		"rapid_dump":     outcome.RapidDump,
		"balance_left":   balanceLeft,
		"tx_hash":        txHash,
	})
	c.notifyOutcome(ctx, outcome)

	// Fire-and-forget: the report carries its own retry policy and timeout
	// and must not delay or fail the settlement.
	go c.reportOutcome(context.WithoutCancel(ctx), outcome, buy)

	return outcome, nil
}

func (c *Coordinator) notifyOutcome(ctx context.Context, outcome domain.SellOutcome) {
	if c.notifier == nil {
		return
	}

	event := notify.EventSellSettled
	title := "Sell settled"
	if outcome.RapidDump {
		event = notify.EventRapidDump
		title = "Rapid dump sell"
	}
	msg := fmt.Sprintf("%s: sold %.4f for $%.2f (profit $%.2f / %.2f%%), balance left %.4f",
		outcome.TokenAddress, outcome.Amount, outcome.SellValueUSD,
		outcome.ProfitUSD, outcome.ProfitPercent, outcome.BalanceLeft)

	if err := c.notifier.Notify(ctx, event, title, msg); err != nil {
		c.logger.WarnContext(ctx, "sell notification failed",
			slog.String("token", outcome.TokenAddress),
			slog.String("error", err.Error()),
		)
	}
}

func (c *Coordinator) reportOutcome(ctx context.Context, outcome domain.SellOutcome, buy domain.TradeRecord) {
	ctx, cancel := context.WithTimeout(ctx, c.reportTimeout)
	defer cancel()

	username := ""
	if outcome.RecommenderID != "" {
		if rec, err := c.recommenders.GetByID(ctx, outcome.RecommenderID); err == nil {
			username = rec.Username
		}
	}

	report := backendsync.Report{
		TokenAddress: outcome.TokenAddress,
		TradeData: backendsync.TradeData{
			BuyAmount:       buy.Amount,
			SellAmount:      outcome.Amount,
			SellPrice:       outcome.SellPrice,
			SellValueUSD:    outcome.SellValueUSD,
			ProfitUSD:       outcome.ProfitUSD,
			ProfitPercent:   outcome.ProfitPercent,
			MarketCapChange: outcome.MarketCapChange,
			LiquidityChange: outcome.LiquidityChange,
			RapidDump:       outcome.RapidDump,
			TxHash:          outcome.TxHash,
		},
		RecommenderID: outcome.RecommenderID,
		Username:      username,
		IsSimulation:  outcome.IsSimulation,
		BalanceLeft:   outcome.BalanceLeft,
	}

	if err := c.reporter.ReportTrade(ctx, report); err != nil {
		if c.notifier != nil {
			_ = c.notifier.Notify(ctx, notify.EventSyncFailed, "Trade report failed",
				fmt.Sprintf("%s: trade report abandoned: %v", outcome.TokenAddress, err))
		}
	}
}

func (c *Coordinator) auditLog(ctx context.Context, event string, detail map[string]any) {
	if c.audit == nil {
		return
	}
	if err := c.audit.Log(ctx, event, detail); err != nil {
		c.logger.WarnContext(ctx, "audit log failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}
