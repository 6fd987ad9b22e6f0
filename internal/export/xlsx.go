package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/mtlprog/cryptotrack/internal/valuation"
)

const (
	portfolioSheet = "Portfolio"
	summarySheet   = "Summary"
)

// WriteXLSX writes the summary as a workbook with a "Portfolio" sheet of lots
// and a "Summary" sheet of USD-formatted totals.
func WriteXLSX(w io.Writer, s valuation.Summary) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), portfolioSheet); err != nil {
		return fmt.Errorf("renaming default sheet: %w", err)
	}
	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("creating summary sheet: %w", err)
	}

	for i, values := range portfolioValues(s) {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(portfolioSheet, cell, &values); err != nil {
			return fmt.Errorf("writing portfolio row %d: %w", i+1, err)
		}
	}

	for i, values := range summaryValues(s) {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(summarySheet, cell, &values); err != nil {
			return fmt.Errorf("writing summary row %d: %w", i+1, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

func portfolioValues(s valuation.Summary) [][]any {
	data := make([][]any, 0, len(s.Entries)+1)
	header := make([]any, len(Header))
	for i, h := range Header {
		header[i] = h
	}
	data = append(data, header)

	for _, r := range Rows(s) {
		data = append(data, []any{
			r.CoinID, r.CoinName,
			toFloat(r.Quantity), toFloat(r.BuyPrice), toFloat(r.CurrentPrice),
			toFloat(r.CurrentValue), toFloat(r.ProfitLoss),
		})
	}
	return data
}

// summaryValues lays out totals as label / value pairs.
func summaryValues(s valuation.Summary) [][]any {
	profitPct := "n/a"
	if s.ProfitPercent != nil {
		profitPct = s.ProfitPercent.StringFixed(2) + "%"
	}
	return [][]any{
		{"Invested", FormatUSD(s.Invested)},
		{"Current value", FormatUSD(s.Current)},
		{"Profit/Loss", FormatUSD(s.Profit)},
		{"Profit/Loss %", profitPct},
	}
}

// FormatUSD renders an amount as US dollars rounded to cents, e.g. "$1,234.50".
func FormatUSD(d decimal.Decimal) string {
	cents := d.Shift(2).Round(0)
	if cents.BigInt().IsInt64() {
		return money.New(cents.IntPart(), money.USD).Display()
	}

	// go-money holds int64 cents; larger amounts are grouped by hand.
	sign := ""
	if cents.IsNegative() {
		sign = "-"
	}
	whole, frac, _ := strings.Cut(cents.Abs().Shift(-2).StringFixed(2), ".")
	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return sign + "$" + b.String() + "." + frac
}

func toFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}
