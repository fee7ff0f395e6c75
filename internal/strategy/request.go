package strategy

import (
	"backtester/internal/config"
	"backtester/internal/util"
)

// RequestFromConfig builds a Request from the backtest section of the
// configuration. Unset dates stay zero so every run resolves them against
// the current day.
func RequestFromConfig(b config.Backtest) (Request, error) {
	req := Request{
		Symbol:          b.Symbol,
		Strategy:        b.Strategy,
		Params:          Params{ShortWindow: b.ShortWindow, LongWindow: b.LongWindow},
		InitialCapital:  b.InitialCapital,
		StopLossPercent: b.StopLossPct,
	}
	var err error
	if req.Start, err = util.ParseOptionalDate(b.StartDate); err != nil {
		return Request{}, err
	}
	if req.End, err = util.ParseOptionalDate(b.EndDate); err != nil {
		return Request{}, err
	}
	return req, nil
}
