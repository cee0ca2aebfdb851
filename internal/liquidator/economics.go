package liquidator

import "github.com/ilertha/Solana-AI-agent-tool/internal/domain"

// rapidDumpThreshold is the trailing 24h price-change percentage below which
// a sell is flagged as a rapid dump.
const rapidDumpThreshold = -50.0

// sellEconomics holds the computed result of settling a sell against its
// paired buy record.
type sellEconomics struct {
	SellValueUSD    float64
	SellValueQuote  float64
	ProfitUSD       float64
	ProfitPercent   float64
	MarketCapChange float64
	LiquidityChange float64
	RapidDump       bool
}

// computeSellEconomics settles amount sold at the current market snapshot
// against the paired buy record. quotePrice converts the USD sell value into
// the native quote asset; a zero quote price leaves the quote value at zero
// rather than dividing by it.
func computeSellEconomics(amount float64, snap domain.TokenSnapshot, quotePrice float64, buy domain.TradeRecord) sellEconomics {
	econ := sellEconomics{
		SellValueUSD:    amount * snap.PriceUSD,
		MarketCapChange: snap.MarketCap - buy.MarketCap,
		LiquidityChange: snap.Liquidity - buy.Liquidity,
		RapidDump:       isRapidDump(snap.PriceChange24h),
	}

	econ.ProfitUSD = econ.SellValueUSD - buy.ValueUSD
	if buy.ValueUSD != 0 {
		econ.ProfitPercent = econ.ProfitUSD / buy.ValueUSD * 100
	}
	if quotePrice > 0 {
		econ.SellValueQuote = econ.SellValueUSD / quotePrice
	}
	return econ
}

// isRapidDump reports whether the trailing 24h change marks a rapid dump.
// Exactly -50 is not a dump; providers that cannot supply the change report
// zero, which never trips the flag.
func isRapidDump(change24h float64) bool {
	return change24h < rapidDumpThreshold
}
