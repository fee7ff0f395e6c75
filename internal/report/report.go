package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"backtester/internal/domain"
	"backtester/internal/indicator"
	"backtester/internal/strategy"
	"backtester/internal/util"
)

// NoTradesMessage is shown in place of an empty trade log.
const NoTradesMessage = "No trades were executed during this period."

// Field is one labelled summary value.
type Field struct {
	Label string
	Value string
}

// Summary returns the headline figures of rep in display order.
func Summary(rep *strategy.Report) []Field {
	m := rep.Metrics
	cur := Currency(rep)
	return []Field{
		{"Total Return", FormatPct(m.TotalReturnPct)},
		{"Final Value", FormatMoney(m.FinalValue, cur)},
		{"Initial Capital", FormatMoney(rep.Request.InitialCapital, cur)},
		{"Number of Trades", FormatInt(m.TradeCount)},
		{"Round Trips", FormatInt(m.RoundTrips)},
		{"Win Rate", FormatPct(m.WinRatePct)},
		{"Stop-Loss Exits", FormatInt(m.StopLossExits)},
		{"Max Drawdown", FormatPct(m.MaxDrawdownPct)},
		{"Volatility (ann.)", FormatPct(m.VolatilityPct)},
		{"Sharpe Ratio", FormatRatio(m.SharpeRatio)},
		{"Exposure", FormatPct(m.ExposurePct)},
	}
}

// TradeLogHeader names the trade log columns.
var TradeLogHeader = []string{"Date", "Action", "Price", "Portfolio Value"}

// Currency returns the currency symbol of the report's market.
func Currency(rep *strategy.Report) string {
	return domain.MarketOf(rep.Request.Symbol).Currency()
}

// TradeLogRows returns one formatted row per trade, values in currency.
func TradeLogRows(trades []domain.TradeEvent, currency string) [][]string {
	rows := make([][]string, 0, len(trades))
	for _, t := range trades {
		action := string(t.Action)
		if t.StopLoss {
			action += " (stop)"
		}
		rows = append(rows, []string{
			t.Timestamp.Format(util.DateLayout),
			action,
			FormatPrice(t.Price),
			FormatMoney(t.Value, currency),
		})
	}
	return rows
}

// Title describes the run: symbol, strategy, parameters and date range.
func Title(rep *strategy.Report) string {
	req := rep.Request
	params := ""
	if _, ok := rep.Frame.Column(indicator.ColumnName(req.Params.ShortWindow)); ok {
		params = fmt.Sprintf(" (%d/%d)", req.Params.ShortWindow, req.Params.LongWindow)
	}
	from, to := req.Start, req.End
	if n := rep.Frame.Len(); n > 0 {
		from, to = rep.Frame.Bars[0].Timestamp, rep.Frame.Bars[n-1].Timestamp
	}
	return fmt.Sprintf("%s  %s%s  %s to %s  stop %s",
		strings.ToUpper(req.Symbol), rep.Strategy, params,
		from.Format(util.DateLayout), to.Format(util.DateLayout),
		FormatPct(req.StopLossPercent))
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("4"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("15"))
	gainStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	lossStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("245"))
	buyStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	sellStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	chartStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

// Render lays out the full report for a terminal of the given width.
func Render(rep *strategy.Report, width int) string {
	if width < 40 {
		width = 80
	}
	var b strings.Builder

	b.WriteString(titleStyle.Render(padOrTrunc(" "+Title(rep), width)))
	b.WriteString("\n\n")
	b.WriteString(RenderSummary(rep))
	b.WriteString("\n")
	b.WriteString(RenderCharts(rep, width))
	b.WriteString("\n")
	b.WriteString(RenderTradeLog(rep.Result.TradeLog(), Currency(rep)))
	return b.String()
}

// RenderSummary renders the summary fields as aligned label/value pairs.
func RenderSummary(rep *strategy.Report) string {
	var b strings.Builder
	for _, f := range Summary(rep) {
		style := valueStyle
		if f.Label == "Total Return" {
			if rep.Metrics.TotalReturnPct < 0 {
				style = lossStyle
			} else {
				style = gainStyle
			}
		}
		b.WriteString(labelStyle.Render(padOrTrunc(f.Label, 20)))
		b.WriteString(style.Render(f.Value))
		b.WriteString("\n")
	}
	return b.String()
}

// RenderCharts draws the close price and the equity curve as sparklines.
func RenderCharts(rep *strategy.Report, width int) string {
	w := width - 10
	var b strings.Builder
	b.WriteString(labelStyle.Render(padOrTrunc("Price", 10)))
	b.WriteString(chartStyle.Render(Sparkline(rep.Frame.Closes(), w)))
	b.WriteString("\n")
	b.WriteString(labelStyle.Render(padOrTrunc("Equity", 10)))
	b.WriteString(chartStyle.Render(Sparkline(rep.Result.EquityCurve(), w)))
	b.WriteString("\n")
	return b.String()
}

// RenderTradeLog renders the trade log table, or NoTradesMessage.
func RenderTradeLog(trades []domain.TradeEvent, currency string) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Trade Log"))
	b.WriteString("\n")
	if len(trades) == 0 {
		b.WriteString(dimStyle.Render(NoTradesMessage))
		b.WriteString("\n")
		return b.String()
	}

	widths := []int{12, 12, 12, 18}
	for i, h := range TradeLogHeader {
		if i >= 2 {
			b.WriteString(headerStyle.Render(padLeft(h, widths[i])))
		} else {
			b.WriteString(headerStyle.Render(padOrTrunc(h, widths[i])))
		}
	}
	b.WriteString("\n")

	for i, row := range TradeLogRows(trades, currency) {
		style := buyStyle
		if trades[i].Action == domain.TradeSell {
			style = sellStyle
		}
		b.WriteString(valueStyle.Render(padOrTrunc(row[0], widths[0])))
		b.WriteString(style.Render(padOrTrunc(row[1], widths[1])))
		b.WriteString(valueStyle.Render(padLeft(row[2], widths[2])))
		b.WriteString(valueStyle.Render(padLeft(row[3], widths[3])))
		b.WriteString("\n")
	}
	return b.String()
}

// WriteTradeLogCSV writes trades as CSV with a header row. Numbers are
// written unformatted so the file can be re-read.
func WriteTradeLogCSV(w io.Writer, trades []domain.TradeEvent) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"date", "action", "price", "portfolio_value", "stop_loss"}); err != nil {
		return err
	}
	for _, t := range trades {
		rec := []string{
			t.Timestamp.Format(util.DateLayout),
			string(t.Action),
			fmt.Sprintf("%.2f", t.Price),
			fmt.Sprintf("%.2f", t.Value),
			fmt.Sprintf("%t", t.StopLoss),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
