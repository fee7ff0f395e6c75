// Package domain defines the core value types shared by the data, strategy,
// engine and presentation layers.
package domain

import (
	"strings"
	"time"
)

// Market identifies the exchange group a symbol's bars are filed under.
type Market string

const (
	MarketUS Market = "us"
	MarketIN Market = "in"
)

// MarketOf returns the market a ticker trades on. NSE (".NS") and BSE
// (".BO") suffixes mean India; anything else is filed under US.
func MarketOf(symbol string) Market {
	s := strings.ToUpper(symbol)
	if strings.HasSuffix(s, ".NS") || strings.HasSuffix(s, ".BO") {
		return MarketIN
	}
	return MarketUS
}

// Currency returns the symbol prices on m are quoted in.
func (m Market) Currency() string {
	if m == MarketIN {
		return "₹"
	}
	return "$"
}

// Bar is one OHLCV period of a price series. Only Close is consumed by the
// backtest engine; the remaining fields are carried through for storage and
// display.
type Bar struct {
	Symbol     string
	Timestamp  time.Time
	Open       float64
	High       float64
	Low        float64
	Close      float64
	Volume     int64
	TradeCount int64
	VWAP       float64
}

// Signal is a per-period position-change intent.
type Signal int8

const (
	SignalExit  Signal = -1
	SignalNone  Signal = 0
	SignalEnter Signal = 1
)

// Valid reports whether s is one of -1, 0, +1.
func (s Signal) Valid() bool {
	return s >= SignalExit && s <= SignalEnter
}

// Position is the engine's actual exposure in a period.
type Position int8

const (
	PositionFlat Position = 0
	PositionLong Position = 1
)

func (p Position) String() string {
	if p == PositionLong {
		return "long"
	}
	return "flat"
}

// TradeAction is the side of an executed trade. The zero value means no
// trade happened in the period.
type TradeAction string

const (
	TradeNone TradeAction = ""
	TradeBuy  TradeAction = "Buy"
	TradeSell TradeAction = "Sell"
)

// TradeEvent records a position transition executed by the engine.
type TradeEvent struct {
	Timestamp time.Time
	Action    TradeAction
	Price     float64 // period close
	Value     float64 // portfolio value after the trade
	StopLoss  bool    // exit forced by the stop-loss rule
}

// Row is one period of a backtest result, aligned with the input bar.
type Row struct {
	Timestamp       time.Time
	Position        Position
	PortfolioValue  float64
	PositionChanged bool
	TradeType       TradeAction
	Close           float64
}
