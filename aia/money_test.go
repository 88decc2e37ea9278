package aia_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/payapp-engine/aia"
)

// =============================================================================
// ROUNDING TESTS
// =============================================================================

func TestMoney_MulPercent_RoundsHalfUpToTheCent(t *testing.T) {
	// GIVEN: $10,000.01 at 10% retainage (exact product 100000.1 cents)
	// WHEN: Computing the retainage
	// THEN: The result is rounded once to 100000 cents

	got := aia.Cents(1000001).MulPercent(aia.WholePercent(10))
	assert.Equal(t, int64(100000), got.Cents())
}

func TestMoney_MulPercent_TiesRoundTowardPositiveInfinity(t *testing.T) {
	tests := []struct {
		name  string
		cents int64
		want  int64
	}{
		{"positive half", 5, 1},
		{"positive one and a half", 15, 2},
		{"negative half", -5, 0},
		{"negative one and a half", -15, -1},
		{"negative two and a half", -25, -2},
		{"negative below half", -26, -3},
		{"zero", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := aia.Cents(tt.cents).MulPercent(aia.WholePercent(10))
			assert.Equal(t, tt.want, got.Cents())
		})
	}
}

func TestMoney_MulFraction(t *testing.T) {
	// 100 cents split three ways rounds 33.33 down, 66.67 up
	assert.Equal(t, int64(33), aia.Cents(100).MulFraction(1, 3).Cents())
	assert.Equal(t, int64(67), aia.Cents(100).MulFraction(2, 3).Cents())
	assert.Panics(t, func() { aia.Cents(100).MulFraction(1, 0) })
}

func TestMoney_PercentOf(t *testing.T) {
	tests := []struct {
		name      string
		part      int64
		whole     int64
		wantHundr int64
	}{
		{"half", 50000, 100000, 5000},
		{"one third", 1, 3, 3333},
		{"two thirds", 2, 3, 6667},
		{"overbilled", 19250, 18000, 10694},
		{"zero scheduled value", 50000, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := aia.Cents(tt.part).PercentOf(aia.Cents(tt.whole))
			assert.True(t, aia.PercentFromHundredths(tt.wantHundr).Equal(got),
				"expected %s, got %s", aia.PercentFromHundredths(tt.wantHundr), got)
		})
	}
}

// =============================================================================
// PARSING TESTS
// =============================================================================

func TestParseMoney(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{in: "1250.00", want: 125000},
		{in: "-3.10", want: -310},
		{in: " 0.01 ", want: 1},
		{in: "12.5", wantErr: true},
		{in: "12", wantErr: true},
		{in: "1.001", wantErr: true},
		{in: "abc.00", wantErr: true},
		{in: ".50", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := aia.ParseMoney(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, aia.ErrInvalidAmount)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Cents())
		})
	}
}

func TestParsePercent_RoundsToHundredths(t *testing.T) {
	p, err := aia.ParsePercent("12.345")
	require.NoError(t, err)
	assert.Equal(t, int64(1235), p.Hundredths())

	p, err = aia.ParsePercent("10")
	require.NoError(t, err)
	assert.Equal(t, "10.00", p.String())

	_, err = aia.ParsePercent("ten")
	assert.ErrorIs(t, err, aia.ErrInvalidAmount)
}

func TestPercent_InRange(t *testing.T) {
	assert.True(t, aia.WholePercent(0).InRange())
	assert.True(t, aia.WholePercent(100).InRange())
	assert.False(t, aia.WholePercent(-1).InRange())
	assert.False(t, aia.PercentFromHundredths(10001).InRange())
}

func TestMoney_CompareAndSign(t *testing.T) {
	tests := []struct {
		name     string
		a, b     int64
		wantCmp  int
		wantSign int
	}{
		{"less", -500, 300, -1, -1},
		{"equal", 300, 300, 0, 1},
		{"greater", 301, 300, 1, 1},
		{"zero against negative", 0, -1, 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, b := aia.Cents(tt.a), aia.Cents(tt.b)

			assert.Equal(t, tt.wantCmp, a.Cmp(b))
			assert.Equal(t, -tt.wantCmp, b.Cmp(a))
			assert.Equal(t, tt.wantCmp < 0, a.LessThan(b))
			assert.Equal(t, tt.wantCmp > 0, a.GreaterThan(b))
			assert.Equal(t, tt.wantCmp == 0, a.Equal(b))
			assert.Equal(t, tt.wantSign, a.Sign())
			assert.Equal(t, tt.wantSign < 0, a.IsNegative())
			assert.Equal(t, tt.wantSign > 0, a.IsPositive())
			assert.Equal(t, -tt.a, a.Neg().Cents())
		})
	}
}

func TestMoney_SumAndWithinLimit(t *testing.T) {
	assert.Equal(t, int64(-50), aia.Sum(aia.Cents(100), aia.Cents(-200), aia.Cents(50)).Cents())
	assert.True(t, aia.Sum().IsZero())

	assert.True(t, aia.MaxAmount.WithinLimit())
	assert.True(t, aia.MaxAmount.Neg().WithinLimit())
	assert.False(t, aia.MaxAmount.Add(aia.Cents(1)).WithinLimit())
	assert.False(t, aia.MaxAmount.Neg().Sub(aia.Cents(1)).WithinLimit())
}

func TestMoney_String(t *testing.T) {
	assert.Equal(t, "-1234.05", aia.Cents(-123405).String())
	assert.Equal(t, "0.00", aia.Zero.String())
	assert.Equal(t, "1200000.00", aia.MustParseMoney("1200000.00").String())
}

// =============================================================================
// ENCODING TESTS
// =============================================================================

func TestMoney_JSON_IntegerCentsOnly(t *testing.T) {
	data, err := json.Marshal(aia.Cents(125000))
	require.NoError(t, err)
	assert.Equal(t, "125000", string(data))

	var m aia.Money
	require.NoError(t, json.Unmarshal([]byte("4200"), &m))
	assert.Equal(t, int64(4200), m.Cents())

	err = json.Unmarshal([]byte("12.50"), &m)
	assert.ErrorIs(t, err, aia.ErrInvalidAmount)
}

func TestPercent_JSON(t *testing.T) {
	data, err := json.Marshal(aia.WholePercent(10))
	require.NoError(t, err)
	assert.Equal(t, "10.00", string(data))

	var p aia.Percent
	require.NoError(t, json.Unmarshal([]byte(`"7.5"`), &p))
	assert.Equal(t, int64(750), p.Hundredths())
}

func TestMoney_Scan(t *testing.T) {
	var m aia.Money

	require.NoError(t, m.Scan(int64(990)))
	assert.Equal(t, int64(990), m.Cents())

	require.NoError(t, m.Scan([]byte("-15")))
	assert.Equal(t, int64(-15), m.Cents())

	require.NoError(t, m.Scan(nil))
	assert.True(t, m.IsZero())

	assert.Error(t, m.Scan(1.5))
}
