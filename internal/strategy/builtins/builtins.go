// Package builtins provides the strategies that ship with the backtester.
package builtins

import "backtester/internal/strategy"

// Registry returns a strategy.Registry with every builtin registered.
func Registry() *strategy.Registry {
	r := strategy.NewRegistry()
	r.Register(NewBuyAndHold())
	r.Register(NewSMACross())
	return r
}
