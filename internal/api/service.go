package api

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"backtester/internal/domain"
	"backtester/internal/strategy"
	"backtester/internal/util"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "backtester.v1.Backtester"

// Full method names, as they appear on the wire.
const (
	RunMethod            = "/" + ServiceName + "/Run"
	ListStrategiesMethod = "/" + ServiceName + "/ListStrategies"
)

// BacktesterServer is the server API for the Backtester service. Messages
// are google.protobuf.Struct so no generated code is needed.
type BacktesterServer interface {
	Run(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ListStrategies(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error)
}

// ServiceDesc describes the Backtester service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*BacktesterServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Run", Handler: runHandler},
		{MethodName: "ListStrategies", Handler: listStrategiesHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "backtester/v1/backtester.proto",
}

// RegisterBacktesterServer registers srv with s.
func RegisterBacktesterServer(s grpc.ServiceRegistrar, srv BacktesterServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func runHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(BacktesterServer).Run(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: RunMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(BacktesterServer).Run(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func listStrategiesHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(BacktesterServer).ListStrategies(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ListStrategiesMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(BacktesterServer).ListStrategies(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

// ---------------------------------------------------------------------------
// Service implementation
// ---------------------------------------------------------------------------

// Compile-time interface check.
var _ BacktesterServer = (*Service)(nil)

// Service runs backtests on behalf of remote clients. Fields absent from a
// request fall back to the configured defaults.
type Service struct {
	bt       *strategy.Backtester
	registry *strategy.Registry
	defaults strategy.Request
}

// NewService creates a Service. defaults supplies every request field the
// caller leaves out.
func NewService(bt *strategy.Backtester, registry *strategy.Registry, defaults strategy.Request) *Service {
	return &Service{bt: bt, registry: registry, defaults: defaults}
}

// Run decodes the request, runs the backtest and encodes the report.
func (s *Service) Run(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := s.decodeRequest(in)
	if err != nil {
		return nil, toStatus(err)
	}
	rep, err := s.bt.Run(ctx, req)
	if err != nil {
		return nil, toStatus(err)
	}
	out, err := EncodeReport(rep)
	if err != nil {
		return nil, toStatus(fmt.Errorf("encoding report: %w", err))
	}
	return out, nil
}

// ListStrategies returns the registered strategies as {name, id} pairs.
func (s *Service) ListStrategies(_ context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	var list []any
	for _, name := range s.registry.List() {
		st, _ := s.registry.Get(name)
		list = append(list, map[string]any{"name": st.Name(), "id": st.ID()})
	}
	out, err := structpb.NewStruct(map[string]any{"strategies": list})
	if err != nil {
		return nil, toStatus(err)
	}
	return out, nil
}

func (s *Service) decodeRequest(in *structpb.Struct) (strategy.Request, error) {
	req := s.defaults
	fields := in.GetFields()

	for name := range fields {
		if !knownField[name] {
			return req, fmt.Errorf("%w: unknown request field %q", domain.ErrConfiguration, name)
		}
	}

	var err error
	str := func(key string, dst *string) {
		if v, ok := fields[key]; ok && err == nil {
			sv, isStr := v.GetKind().(*structpb.Value_StringValue)
			if !isStr {
				err = fmt.Errorf("%w: %s must be a string", domain.ErrConfiguration, key)
				return
			}
			*dst = sv.StringValue
		}
	}
	num := func(key string, dst *float64) {
		if v, ok := fields[key]; ok && err == nil {
			nv, isNum := v.GetKind().(*structpb.Value_NumberValue)
			if !isNum {
				err = fmt.Errorf("%w: %s must be a number", domain.ErrConfiguration, key)
				return
			}
			*dst = nv.NumberValue
		}
	}
	integer := func(key string, dst *int) {
		f := float64(*dst)
		num(key, &f)
		if err == nil && f != math.Trunc(f) {
			err = fmt.Errorf("%w: %s must be an integer, got %v", domain.ErrConfiguration, key, f)
			return
		}
		*dst = int(f)
	}
	date := func(key string, dst *time.Time) {
		var sv string
		str(key, &sv)
		if err != nil || sv == "" {
			return
		}
		var t time.Time
		if t, err = util.ParseDate(sv); err == nil {
			*dst = t
		}
	}

	str("symbol", &req.Symbol)
	str("strategy", &req.Strategy)
	date("start", &req.Start)
	date("end", &req.End)
	integer("short_window", &req.Params.ShortWindow)
	integer("long_window", &req.Params.LongWindow)
	num("initial_capital", &req.InitialCapital)
	num("stop_loss_pct", &req.StopLossPercent)
	if err != nil {
		return req, err
	}

	req.Symbol = strings.ToUpper(strings.TrimSpace(req.Symbol))
	if req.Symbol == "" {
		return req, fmt.Errorf("%w: symbol is required", domain.ErrConfiguration)
	}
	return req, nil
}

var knownField = map[string]bool{
	"symbol": true, "strategy": true, "start": true, "end": true,
	"short_window": true, "long_window": true,
	"initial_capital": true, "stop_loss_pct": true,
}

// EncodeReport converts rep into the Run response message.
func EncodeReport(rep *strategy.Report) (*structpb.Struct, error) {
	m := rep.Metrics
	trades := make([]any, 0, len(rep.Result.Trades))
	for _, t := range rep.Result.TradeLog() {
		trades = append(trades, map[string]any{
			"date":      t.Timestamp.Format(util.DateLayout),
			"action":    string(t.Action),
			"price":     t.Price,
			"value":     t.Value,
			"stop_loss": t.StopLoss,
		})
	}
	equity := make([]any, 0, len(rep.Result.Rows))
	for _, v := range rep.Result.EquityCurve() {
		equity = append(equity, v)
	}
	positions := make([]any, 0, len(rep.Result.Rows))
	for _, p := range rep.Result.Positions() {
		positions = append(positions, p.String())
	}
	dates := make([]any, 0, rep.Frame.Len())
	for _, ts := range rep.Frame.Timestamps() {
		dates = append(dates, ts.Format(util.DateLayout))
	}

	start, end := rep.Request.Start, rep.Request.End
	if n := rep.Frame.Len(); n > 0 {
		start, end = rep.Frame.Bars[0].Timestamp, rep.Frame.Bars[n-1].Timestamp
	}

	return structpb.NewStruct(map[string]any{
		"symbol":           rep.Request.Symbol,
		"strategy":         rep.Strategy,
		"start":            start.Format(util.DateLayout),
		"end":              end.Format(util.DateLayout),
		"bars":             rep.Frame.Len(),
		"currency":         domain.MarketOf(rep.Request.Symbol).Currency(),
		"initial_capital":  rep.Request.InitialCapital,
		"final_value":      m.FinalValue,
		"total_return_pct": m.TotalReturnPct,
		"trade_count":      m.TradeCount,
		"metrics": map[string]any{
			"round_trips":      m.RoundTrips,
			"win_rate_pct":     m.WinRatePct,
			"stop_loss_exits":  m.StopLossExits,
			"max_drawdown_pct": m.MaxDrawdownPct,
			"volatility_pct":   m.VolatilityPct,
			"sharpe_ratio":     m.SharpeRatio,
			"exposure_pct":     m.ExposurePct,
		},
		"trades":    trades,
		"dates":     dates,
		"equity":    equity,
		"positions": positions,
	})
}
