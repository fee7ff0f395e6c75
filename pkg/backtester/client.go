// Package backtester is a Go client for the backtester gRPC service.
package backtester

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	runMethod            = "/backtester.v1.Backtester/Run"
	listStrategiesMethod = "/backtester.v1.Backtester/ListStrategies"
	dateLayout           = "2006-01-02"
)

// RunRequest describes a remote backtest. Zero fields are left out of the
// request so the server applies its configured defaults.
type RunRequest struct {
	Symbol         string
	Strategy       string // display name or ID
	Start, End     time.Time
	ShortWindow    int
	LongWindow     int
	InitialCapital float64
	StopLossPct    *float64 // nil uses the server default; 0 is a valid threshold
}

// Trade is one executed trade.
type Trade struct {
	Date     time.Time
	Action   string // "Buy" or "Sell"
	Price    float64
	Value    float64
	StopLoss bool
}

// RunResult is the decoded Run response.
type RunResult struct {
	Symbol         string
	Strategy       string
	Start, End     time.Time
	Bars           int
	Currency       string // "$" or "₹", from the symbol's market
	InitialCapital float64
	FinalValue     float64
	TotalReturnPct float64
	TradeCount     int
	Metrics        map[string]float64
	Trades         []Trade
	// Dates, Equity and Positions have one entry per bar.
	Dates     []time.Time
	Equity    []float64
	Positions []string // "long" or "flat"
}

// StrategyInfo names a strategy registered on the server.
type StrategyInfo struct {
	Name string
	ID   string
}

// Client calls the backtester service over a gRPC connection.
type Client struct {
	conn grpc.ClientConnInterface
	own  *grpc.ClientConn
}

// Dial connects to the server at addr without transport security.
func Dial(addr string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", addr, err)
	}
	return &Client{conn: conn, own: conn}, nil
}

// NewClient wraps an existing connection. Close does not close conn.
func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

// Close releases the connection opened by Dial.
func (c *Client) Close() error {
	if c.own == nil {
		return nil
	}
	return c.own.Close()
}

// Run executes a backtest on the server.
func (c *Client) Run(ctx context.Context, req RunRequest) (*RunResult, error) {
	fields := map[string]any{}
	if req.Symbol != "" {
		fields["symbol"] = req.Symbol
	}
	if req.Strategy != "" {
		fields["strategy"] = req.Strategy
	}
	if !req.Start.IsZero() {
		fields["start"] = req.Start.Format(dateLayout)
	}
	if !req.End.IsZero() {
		fields["end"] = req.End.Format(dateLayout)
	}
	if req.ShortWindow != 0 {
		fields["short_window"] = req.ShortWindow
	}
	if req.LongWindow != 0 {
		fields["long_window"] = req.LongWindow
	}
	if req.InitialCapital != 0 {
		fields["initial_capital"] = req.InitialCapital
	}
	if req.StopLossPct != nil {
		fields["stop_loss_pct"] = *req.StopLossPct
	}

	in, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, runMethod, in, out); err != nil {
		return nil, err
	}
	return decodeResult(out)
}

// Strategies lists the strategies the server can run.
func (c *Client) Strategies(ctx context.Context) ([]StrategyInfo, error) {
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, listStrategiesMethod, &emptypb.Empty{}, out); err != nil {
		return nil, err
	}
	var list []StrategyInfo
	for _, v := range out.GetFields()["strategies"].GetListValue().GetValues() {
		f := v.GetStructValue().GetFields()
		list = append(list, StrategyInfo{Name: f["name"].GetStringValue(), ID: f["id"].GetStringValue()})
	}
	return list, nil
}

func decodeResult(s *structpb.Struct) (*RunResult, error) {
	f := s.GetFields()
	res := &RunResult{
		Symbol:         f["symbol"].GetStringValue(),
		Strategy:       f["strategy"].GetStringValue(),
		Bars:           int(f["bars"].GetNumberValue()),
		Currency:       f["currency"].GetStringValue(),
		InitialCapital: f["initial_capital"].GetNumberValue(),
		FinalValue:     f["final_value"].GetNumberValue(),
		TotalReturnPct: f["total_return_pct"].GetNumberValue(),
		TradeCount:     int(f["trade_count"].GetNumberValue()),
		Metrics:        map[string]float64{},
	}

	var err error
	if res.Start, err = parseDate(f, "start"); err != nil {
		return nil, err
	}
	if res.End, err = parseDate(f, "end"); err != nil {
		return nil, err
	}

	for k, v := range f["metrics"].GetStructValue().GetFields() {
		res.Metrics[k] = v.GetNumberValue()
	}
	for _, v := range f["trades"].GetListValue().GetValues() {
		tf := v.GetStructValue().GetFields()
		date, err := parseDate(tf, "date")
		if err != nil {
			return nil, err
		}
		res.Trades = append(res.Trades, Trade{
			Date:     date,
			Action:   tf["action"].GetStringValue(),
			Price:    tf["price"].GetNumberValue(),
			Value:    tf["value"].GetNumberValue(),
			StopLoss: tf["stop_loss"].GetBoolValue(),
		})
	}
	for _, v := range f["dates"].GetListValue().GetValues() {
		d, err := time.Parse(dateLayout, v.GetStringValue())
		if err != nil {
			return nil, fmt.Errorf("decoding dates: %w", err)
		}
		res.Dates = append(res.Dates, d)
	}
	for _, v := range f["equity"].GetListValue().GetValues() {
		res.Equity = append(res.Equity, v.GetNumberValue())
	}
	for _, v := range f["positions"].GetListValue().GetValues() {
		res.Positions = append(res.Positions, v.GetStringValue())
	}
	return res, nil
}

func parseDate(f map[string]*structpb.Value, key string) (time.Time, error) {
	s := strings.TrimSpace(f[key].GetStringValue())
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("decoding %s: %w", key, err)
	}
	return t, nil
}
