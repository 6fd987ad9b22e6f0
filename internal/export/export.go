// Package export renders a valued portfolio as CSV, XLSX or a Google Sheet.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/mtlprog/cryptotrack/internal/valuation"
)

// Format is a downloadable export format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat maps a query value to a Format. Empty means CSV.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", s)
	}
}

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv"
}

// Filename returns the download name for an export taken at t.
func (f Format) Filename(t time.Time) string {
	return fmt.Sprintf("portfolio_export_%s.%s", t.UTC().Format(time.DateOnly), f)
}

// Header is the column layout shared by every format.
var Header = []string{"coinId", "coinName", "quantity", "buyPrice", "currentPrice", "currentValue", "profitLoss"}

// Row is one exported portfolio lot. Value and profit are rounded to cents;
// quantities and unit prices keep full precision.
type Row struct {
	CoinID       string
	CoinName     string
	Quantity     decimal.Decimal
	BuyPrice     decimal.Decimal
	CurrentPrice decimal.Decimal
	CurrentValue decimal.Decimal
	ProfitLoss   decimal.Decimal
}

// Rows flattens a valuation summary into export rows, in holding order.
func Rows(s valuation.Summary) []Row {
	return lo.Map(s.Entries, func(ev valuation.EntryValuation, _ int) Row {
		return Row{
			CoinID:       ev.Entry.CoinID,
			CoinName:     ev.Entry.CoinName,
			Quantity:     ev.Entry.Quantity,
			BuyPrice:     ev.Entry.BuyPrice,
			CurrentPrice: ev.CurrentPrice,
			CurrentValue: ev.Current.Round(2),
			ProfitLoss:   ev.Profit.Round(2),
		}
	})
}

func (r Row) strings() []string {
	return []string{
		r.CoinID,
		r.CoinName,
		r.Quantity.String(),
		r.BuyPrice.String(),
		r.CurrentPrice.String(),
		r.CurrentValue.StringFixed(2),
		r.ProfitLoss.StringFixed(2),
	}
}

// WriteCSV writes the summary as CSV with a header row.
func WriteCSV(w io.Writer, s valuation.Summary) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}
	for _, row := range Rows(s) {
		if err := cw.Write(row.strings()); err != nil {
			return fmt.Errorf("writing csv row %s: %w", row.CoinID, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flushing csv: %w", err)
	}
	return nil
}

// Write renders the summary in format f.
func Write(w io.Writer, f Format, s valuation.Summary) error {
	if f == FormatXLSX {
		return WriteXLSX(w, s)
	}
	return WriteCSV(w, s)
}
