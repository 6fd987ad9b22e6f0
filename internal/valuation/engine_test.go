package valuation

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mtlprog/cryptotrack/internal/domain"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func entry(id, coin string, qty, buy string) domain.PortfolioEntry {
	return domain.PortfolioEntry{ID: id, CoinID: coin, CoinName: coin, Quantity: d(qty), BuyPrice: d(buy)}
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, got.Equal(d(want)), "got %s, want %s", got, want)
}

func TestValuateBitcoinExample(t *testing.T) {
	holdings := []domain.PortfolioEntry{entry("1", "bitcoin", "0.5", "40000")}
	prices := map[string]decimal.Decimal{"bitcoin": d("45000")}

	s := Valuate(holdings, prices)

	assertDecimal(t, "20000", s.Invested)
	assertDecimal(t, "22500", s.Current)
	assertDecimal(t, "2500", s.Profit)
	require.NotNil(t, s.ProfitPercent)
	assertDecimal(t, "12.5", *s.ProfitPercent)
	require.Len(t, s.Entries, 1)
	assert.True(t, s.Entries[0].PriceKnown)
}

func TestValuateTotalsAreExactSums(t *testing.T) {
	holdings := []domain.PortfolioEntry{
		entry("1", "bitcoin", "0.1", "30000.10"),
		entry("2", "ethereum", "0.2", "1999.99"),
		entry("3", "bitcoin", "0.3", "41000.33"),
		entry("4", "stellar", "1234.5678", "0.1"),
	}
	prices := map[string]decimal.Decimal{
		"bitcoin":  d("43210.987654321"),
		"ethereum": d("2222.2222222"),
		"stellar":  d("0.0999999"),
	}

	s := Valuate(holdings, prices)

	sumCurrent, sumInvested, sumProfit := decimal.Zero, decimal.Zero, decimal.Zero
	for _, ev := range s.Entries {
		sumCurrent = sumCurrent.Add(ev.Current)
		sumInvested = sumInvested.Add(ev.Invested)
		sumProfit = sumProfit.Add(ev.Profit)
	}

	assert.True(t, s.Current.Equal(sumCurrent), "Current = %s, want exact sum %s", s.Current, sumCurrent)
	assert.True(t, s.Invested.Equal(sumInvested), "Invested = %s, want exact sum %s", s.Invested, sumInvested)
	assert.True(t, s.Profit.Equal(sumProfit), "Profit = %s, want exact sum %s", s.Profit, sumProfit)
	assert.True(t, s.Profit.Equal(s.Current.Sub(s.Invested)), "Profit = %s, want Current - Invested", s.Profit)
}

func TestValuateAllPricesMissing(t *testing.T) {
	holdings := []domain.PortfolioEntry{
		entry("1", "bitcoin", "2", "100"),
		entry("2", "dogecoin", "1000", "0.05"),
	}

	s := Valuate(holdings, map[string]decimal.Decimal{})

	assert.True(t, s.Current.IsZero())
	assert.True(t, s.Profit.Equal(s.Invested.Neg()), "Profit = %s, want -Invested", s.Profit)
	for _, ev := range s.Entries {
		assert.False(t, ev.PriceKnown, "entry %s", ev.Entry.ID)
		assert.False(t, ev.Profit.IsPositive(), "entry %s: Profit = %s", ev.Entry.ID, ev.Profit)
	}
}

func TestValuateNilPricesMap(t *testing.T) {
	s := Valuate([]domain.PortfolioEntry{entry("1", "bitcoin", "1", "10")}, nil)

	assert.True(t, s.Current.IsZero())
	assertDecimal(t, "-10", s.Profit)
}

func TestValuateEmptyHoldings(t *testing.T) {
	s := Valuate(nil, map[string]decimal.Decimal{"bitcoin": d("1")})

	assert.Empty(t, s.Entries)
	assert.True(t, s.Invested.IsZero())
	assert.True(t, s.Current.IsZero())
	assert.True(t, s.Profit.IsZero())
	assert.Nil(t, s.ProfitPercent, "nothing invested")
}

func TestDistributionKeepsZeroValueEntries(t *testing.T) {
	holdings := []domain.PortfolioEntry{
		entry("1", "bitcoin", "1", "100"),
		entry("2", "unknown-coin", "5", "1"),
		entry("3", "ethereum", "3", "10"),
	}
	prices := map[string]decimal.Decimal{"bitcoin": d("300"), "ethereum": d("100")}

	slices := Distribution(Valuate(holdings, prices))

	require.Len(t, slices, 3)
	want := []struct {
		value, share string
	}{
		{"300", "50"},
		{"0", "0"},
		{"300", "50"},
	}
	for i, w := range want {
		assert.True(t, slices[i].Value.Equal(d(w.value)), "slice %d value = %s, want %s", i, slices[i].Value, w.value)
		assert.True(t, slices[i].Share.Equal(d(w.share)), "slice %d share = %s, want %s", i, slices[i].Share, w.share)
	}
}

func TestDistributionZeroTotal(t *testing.T) {
	slices := Distribution(Valuate([]domain.PortfolioEntry{entry("1", "x", "1", "1")}, nil))

	require.Len(t, slices, 1)
	assert.True(t, slices[0].Share.IsZero())
}

func TestUnitPrices(t *testing.T) {
	quotes := map[string]domain.PriceQuote{
		"bitcoin": {CoinID: "bitcoin", USD: d("45000")},
	}

	assertDecimal(t, "45000", UnitPrices(quotes)["bitcoin"])
}
