package payout

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testIssuer = "rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTh"

func TestAmountAccessors(t *testing.T) {
	native := NewNativeAmount(1_500_000)
	assert.True(t, native.IsNative())
	assert.Equal(t, int64(1_500_000), native.Drops())
	assert.Equal(t, "1500000", native.Value())
	assert.Empty(t, native.Currency())
	assert.Empty(t, native.Issuer())
	assert.Equal(t, "1500000 drops", native.String())

	issued := NewIssuedAmount("12.5", "USD", testIssuer)
	assert.False(t, issued.IsNative())
	assert.Zero(t, issued.Drops())
	assert.Equal(t, "12.5", issued.Value())
	assert.Equal(t, "USD", issued.Currency())
	assert.Equal(t, testIssuer, issued.Issuer())
	assert.Equal(t, "12.5 USD/"+testIssuer, issued.String())
}

func TestAmountIsZero(t *testing.T) {
	tests := []struct {
		name   string
		amount Amount
		zero   bool
	}{
		{"zero drops", NewNativeAmount(0), true},
		{"positive drops", NewNativeAmount(1), false},
		{"issued zero", NewIssuedAmount("0", "USD", testIssuer), true},
		{"issued zero decimal", NewIssuedAmount("0.000", "USD", testIssuer), true},
		{"issued positive", NewIssuedAmount("0.001", "USD", testIssuer), false},
		{"issued integer", NewIssuedAmount("42", "USD", testIssuer), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.zero, tt.amount.IsZero())
		})
	}
}

func TestAmountValidate(t *testing.T) {
	tests := []struct {
		name      string
		amount    Amount
		wantField string // empty means valid
	}{
		{"native ok", NewNativeAmount(10), ""},
		{"native zero", NewNativeAmount(0), "amount"},
		{"native negative", NewNativeAmount(-5), "amount"},
		{"native over max", NewNativeAmount(MaxNativeDrops + 1), "amount"},
		{"native exactly max", NewNativeAmount(MaxNativeDrops), ""},

		{"issued ok", NewIssuedAmount("12.5", "USD", testIssuer), ""},
		{"issued hex currency", NewIssuedAmount("1", "0158415500000000C1F76FF6ECB0BAC600000000", testIssuer), ""},
		{"issued missing value", NewIssuedAmount("", "USD", testIssuer), "amount"},
		{"issued not a number", NewIssuedAmount("12.5.6", "USD", testIssuer), "amount"},
		{"issued negative", NewIssuedAmount("-1", "USD", testIssuer), "amount"},
		{"issued zero", NewIssuedAmount("0.0", "USD", testIssuer), "amount"},
		{"issued missing currency", NewIssuedAmount("1", "", testIssuer), "currency"},
		{"issued reserved XRP", NewIssuedAmount("1", "XRP", testIssuer), "currency"},
		{"issued reserved xrp lowercase", NewIssuedAmount("1", "xrp", testIssuer), "currency"},
		{"issued bad currency length", NewIssuedAmount("1", "USDT", testIssuer), "currency"},
		{"issued bad hex currency", NewIssuedAmount("1", "ZZ58415500000000C1F76FF6ECB0BAC600000000", testIssuer), "currency"},
		{"issued missing issuer", NewIssuedAmount("1", "USD", ""), "issuer"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.amount.Validate()
			if tt.wantField == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.wantField, ve.Field)
		})
	}
}

func TestAmountFlat(t *testing.T) {
	assert.Equal(t, "2000000", NewNativeAmount(2_000_000).Flat())

	flat := NewIssuedAmount("3.14", "EUR", testIssuer).Flat()
	obj, ok := flat.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "3.14", obj["value"])
	assert.Equal(t, "EUR", obj["currency"])
	assert.Equal(t, testIssuer, obj["issuer"])
}

func TestAmountJSON(t *testing.T) {
	t.Run("native round trip", func(t *testing.T) {
		data, err := json.Marshal(NewNativeAmount(750))
		require.NoError(t, err)
		assert.Equal(t, `"750"`, string(data))

		var back Amount
		require.NoError(t, json.Unmarshal(data, &back))
		assert.Equal(t, NewNativeAmount(750), back)
	})

	t.Run("issued round trip", func(t *testing.T) {
		original := NewIssuedAmount("9.99", "USD", testIssuer)
		data, err := json.Marshal(original)
		require.NoError(t, err)

		var back Amount
		require.NoError(t, json.Unmarshal(data, &back))
		assert.Equal(t, original, back)
	})

	t.Run("garbage drops string", func(t *testing.T) {
		var a Amount
		require.Error(t, json.Unmarshal([]byte(`"ten"`), &a))
	})
}

func TestParseXRP(t *testing.T) {
	tests := []struct {
		in      string
		drops   int64
		wantErr bool
	}{
		{in: "10", drops: 10_000_000},
		{in: "0.5", drops: 500_000},
		{in: "0.000001", drops: 1},
		{in: "1.5", drops: 1_500_000},
		{in: "0", drops: 0},
		{in: "100000000000", drops: MaxNativeDrops},
		{in: "", wantErr: true},
		{in: "ten", wantErr: true},
		{in: "-1", wantErr: true},
		{in: "1.2345678", wantErr: true},
		{in: "10.", wantErr: true},
		{in: "100000000000.000001", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			drops, err := ParseXRP(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.drops, drops)
		})
	}
}
