package cartstore

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/domain"
)

func usd(amount string) domain.Money {
	return domain.Money{Amount: amount, CurrencyCode: "USD"}
}

func variant(id, amount string) domain.Variant {
	return domain.Variant{ID: id, Title: "Default", Price: usd(amount)}
}

func product(id string) domain.Product {
	return domain.Product{ID: id, Handle: id + "-handle", Title: "Product " + id}
}

func assertLineInvariants(t *testing.T, cart domain.Cart) {
	t.Helper()
	sumQty := 0
	sum := decimal.Zero
	for _, l := range cart.Lines {
		require.Positive(t, l.Quantity, "line %s", l.Merchandise.ID)
		unit, err := l.UnitAmount()
		require.NoError(t, err)
		u, err := unit.Decimal()
		require.NoError(t, err)
		total, err := l.TotalAmount.Decimal()
		require.NoError(t, err)
		assert.True(t, u.Mul(decimal.NewFromInt(int64(l.Quantity))).Equal(total), "line %s total %s", l.Merchandise.ID, l.TotalAmount.Amount)
		sumQty += l.Quantity
		sum = sum.Add(total)
	}
	assert.Equal(t, sumQty, cart.TotalQuantity)
	cartTotal, err := cart.Cost.TotalAmount.Decimal()
	require.NoError(t, err)
	assert.True(t, sum.Equal(cartTotal), "cart total %s, lines sum %s", cart.Cost.TotalAmount.Amount, sum)
	assert.Equal(t, cart.Cost.TotalAmount, cart.Cost.SubtotalAmount)
	assert.Equal(t, "0", cart.Cost.TotalTaxAmount.Amount)
}

func TestReducerScenarios(t *testing.T) {
	empty := domain.EmptyCart("USD")
	v1 := variant("v1", "10.00")
	p1 := product("p1")

	// Scenario 1
	c1, err := AddItem(empty, v1, p1, "USD")
	require.NoError(t, err)
	require.Len(t, c1.Lines, 1)
	assert.Equal(t, 1, c1.Lines[0].Quantity)
	assert.Equal(t, "10.00", c1.Lines[0].TotalAmount.Amount)
	assert.Empty(t, c1.Lines[0].ID)
	assert.Equal(t, 1, c1.TotalQuantity)
	assert.Equal(t, "10.00", c1.Cost.TotalAmount.Amount)
	assertLineInvariants(t, c1)

	// Scenario 2
	c2, err := AddItem(c1, v1, p1, "USD")
	require.NoError(t, err)
	require.Len(t, c2.Lines, 1)
	assert.Equal(t, 2, c2.Lines[0].Quantity)
	assert.Equal(t, "20.00", c2.Lines[0].TotalAmount.Amount)
	assertLineInvariants(t, c2)

	// Scenario 3
	c3, err := UpdateItem(c2, "v1", OpDecrement, "USD")
	require.NoError(t, err)
	require.Len(t, c3.Lines, 1)
	assert.Equal(t, 1, c3.Lines[0].Quantity)
	assert.Equal(t, "10.00", c3.Lines[0].TotalAmount.Amount)
	assertLineInvariants(t, c3)

	// Scenario 4
	c4, err := UpdateItem(c3, "v1", OpDecrement, "USD")
	require.NoError(t, err)
	assert.Empty(t, c4.Lines)
	assert.Equal(t, 0, c4.TotalQuantity)
	assert.Equal(t, "0", c4.Cost.TotalAmount.Amount)
	assert.Equal(t, "USD", c4.Cost.TotalAmount.CurrencyCode)

	// inputs stay untouched
	assert.Empty(t, empty.Lines)
	assert.Equal(t, 1, c1.Lines[0].Quantity)
	assert.Equal(t, 2, c2.Lines[0].Quantity)
}

func TestUpdateItemUnknownMerchandiseIsNoop(t *testing.T) {
	cart, err := AddItem(domain.EmptyCart("USD"), variant("v1", "3.50"), product("p1"), "USD")
	require.NoError(t, err)

	got, err := UpdateItem(cart, "unknown-id", OpIncrement, "USD")
	require.NoError(t, err)
	assert.Equal(t, cart, got)

	got, err = UpdateItem(domain.EmptyCart("USD"), "unknown-id", OpIncrement, "USD")
	require.NoError(t, err)
	assert.Empty(t, got.Lines)
}

func TestTwoVariantsSumAndFirstCurrency(t *testing.T) {
	cart, err := AddItem(domain.EmptyCart("USD"), domain.Variant{ID: "a", Price: domain.Money{Amount: "19.99", CurrencyCode: "EUR"}}, product("p1"), "USD")
	require.NoError(t, err)
	cart, err = AddItem(cart, domain.Variant{ID: "b", Price: domain.Money{Amount: "5.01", CurrencyCode: "EUR"}}, product("p2"), "USD")
	require.NoError(t, err)

	require.Len(t, cart.Lines, 2)
	assert.Equal(t, "25.00", cart.Cost.TotalAmount.Amount)
	assert.Equal(t, "EUR", cart.Cost.TotalAmount.CurrencyCode)
	assert.Equal(t, "a", cart.Lines[0].Merchandise.ID)
	assertLineInvariants(t, cart)
}

func TestAddItemKeepsExistingUnitPrice(t *testing.T) {
	cart, err := AddItem(domain.EmptyCart("USD"), variant("v1", "10.00"), product("p1"), "USD")
	require.NoError(t, err)

	repriced := variant("v1", "99.00")
	cart, err = AddItem(cart, repriced, product("p1"), "USD")
	require.NoError(t, err)
	assert.Equal(t, "20.00", cart.Lines[0].TotalAmount.Amount)
}

func TestRemoveDeletesLineOutright(t *testing.T) {
	cart, err := AddItem(domain.EmptyCart("USD"), variant("v1", "1.25"), product("p1"), "USD")
	require.NoError(t, err)
	cart, err = AddItem(cart, variant("v1", "1.25"), product("p1"), "USD")
	require.NoError(t, err)
	cart, err = AddItem(cart, variant("v2", "2.00"), product("p2"), "USD")
	require.NoError(t, err)

	cart, err = UpdateItem(cart, "v1", OpRemove, "USD")
	require.NoError(t, err)
	require.Len(t, cart.Lines, 1)
	assert.Equal(t, "v2", cart.Lines[0].Merchandise.ID)
	assert.Equal(t, "2.00", cart.Cost.TotalAmount.Amount)
	assertLineInvariants(t, cart)
}

func TestIncrementPreservesOddUnitPrices(t *testing.T) {
	cart := domain.Cart{Lines: []domain.LineItem{{
		ID:          "line-1",
		Quantity:    3,
		TotalAmount: usd("10.00"),
		Merchandise: domain.Merchandise{ID: "v1"},
	}}}

	cart, err := UpdateItem(cart, "v1", OpIncrement, "USD")
	require.NoError(t, err)
	assert.Equal(t, 4, cart.Lines[0].Quantity)
	assert.Equal(t, "13.33", cart.Lines[0].TotalAmount.Amount)
	assert.Equal(t, "line-1", cart.Lines[0].ID)
}

func TestManySmallAmountsDoNotDrift(t *testing.T) {
	cart := domain.EmptyCart("USD")
	var err error
	for i := 0; i < 10; i++ {
		cart, err = AddItem(cart, variant("v"+string(rune('a'+i)), "0.10"), product("p"), "USD")
		require.NoError(t, err)
	}
	assert.Equal(t, "1.00", cart.Cost.TotalAmount.Amount)
}

func TestMalformedInputsFailFast(t *testing.T) {
	cart, err := AddItem(domain.EmptyCart("USD"), variant("v1", "10.00"), product("p1"), "USD")
	require.NoError(t, err)

	_, err = UpdateItem(cart, "v1", UpdateOp("double"), "USD")
	assert.ErrorIs(t, err, domain.ErrInvalidOperation)

	_, err = AddItem(cart, variant("v2", "ten"), product("p2"), "USD")
	assert.ErrorIs(t, err, domain.ErrMalformedMoney)

	_, err = AddItem(cart, domain.Variant{Price: usd("1.00")}, product("p2"), "USD")
	assert.ErrorIs(t, err, domain.ErrInvalidOperation)

	_, err = Apply(cart, nil, "USD")
	assert.ErrorIs(t, err, domain.ErrInvalidOperation)

	bad := domain.Cart{Lines: []domain.LineItem{{Quantity: 0, TotalAmount: usd("1.00"), Merchandise: domain.Merchandise{ID: "x"}}}}
	_, _, err = RecomputeTotals(bad.Lines, "USD")
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)
}

func TestRecomputeTotalsIsOrderIndependent(t *testing.T) {
	lines := []domain.LineItem{
		{Quantity: 1, TotalAmount: usd("0.10"), Merchandise: domain.Merchandise{ID: "a"}},
		{Quantity: 2, TotalAmount: usd("0.20"), Merchandise: domain.Merchandise{ID: "b"}},
		{Quantity: 3, TotalAmount: usd("0.3"), Merchandise: domain.Merchandise{ID: "c"}},
	}
	reversed := []domain.LineItem{lines[2], lines[1], lines[0]}

	q1, c1, err := RecomputeTotals(lines, "EUR")
	require.NoError(t, err)
	q2, c2, err := RecomputeTotals(reversed, "EUR")
	require.NoError(t, err)

	assert.Equal(t, 6, q1)
	assert.Equal(t, q1, q2)
	assert.Equal(t, "0.60", c1.TotalAmount.Amount)
	assert.Equal(t, c1.TotalAmount.Amount, c2.TotalAmount.Amount)
	assert.Equal(t, "USD", c1.TotalAmount.CurrencyCode)

	q3, c3, err := RecomputeTotals(nil, "EUR")
	require.NoError(t, err)
	assert.Equal(t, 0, q3)
	assert.Equal(t, domain.ZeroMoney("EUR"), c3.TotalAmount)
}

func TestParseUpdateOp(t *testing.T) {
	for in, want := range map[string]UpdateOp{
		"increment": OpIncrement,
		"plus":      OpIncrement,
		"decrement": OpDecrement,
		"minus":     OpDecrement,
		"remove":    OpRemove,
		"delete":    OpRemove,
	} {
		got, err := ParseUpdateOp(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseUpdateOp("+")
	assert.ErrorIs(t, err, domain.ErrInvalidOperation)
}
