package payout

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// DropsPerXRP is the number of drops in one XRP.
const DropsPerXRP int64 = 1_000_000

// MaxNativeDrops is the largest amount of XRP, in drops, that can exist.
const MaxNativeDrops int64 = 100_000_000_000_000_000

var (
	// Standard currency codes are three ASCII characters other than "XRP";
	// nonstandard codes are 40 hex characters.
	stdCurrencyRe = regexp.MustCompile(`^[A-Za-z0-9?!@#$%^&*<>(){}\[\]|]{3}$`)
	hexCurrencyRe = regexp.MustCompile(`^[0-9A-Fa-f]{40}$`)

	decimalRe = regexp.MustCompile(`^-?[0-9]+(\.[0-9]+)?$`)
)

// Amount is either a quantity of the native asset, counted in drops, or an
// issued-currency triple (value, currency, issuer). The tag is set at
// construction and never changes.
type Amount struct {
	native bool

	// Native form.
	drops int64

	// Issued form. Value is kept as the decimal string that goes on the
	// wire; the pipeline never does arithmetic on it.
	value    string
	currency string
	issuer   string
}

// NewNativeAmount creates an amount of the native asset from drops.
func NewNativeAmount(drops int64) Amount {
	return Amount{native: true, drops: drops}
}

// NewIssuedAmount creates an issued-currency amount from a decimal string
// value, a currency code and the issuing address.
func NewIssuedAmount(value, currency, issuer string) Amount {
	return Amount{value: value, currency: currency, issuer: issuer}
}

// IsNative reports whether this is an amount of the native asset.
func (a Amount) IsNative() bool {
	return a.native
}

// Drops returns the native quantity in drops. Zero for issued amounts.
func (a Amount) Drops() int64 {
	if !a.native {
		return 0
	}
	return a.drops
}

// Value returns the decimal value string. For native amounts this is the
// drops count.
func (a Amount) Value() string {
	if a.native {
		return strconv.FormatInt(a.drops, 10)
	}
	return a.value
}

// Currency returns the currency code of an issued amount, "" for native.
func (a Amount) Currency() string {
	return a.currency
}

// Issuer returns the issuing address of an issued amount, "" for native.
func (a Amount) Issuer() string {
	return a.issuer
}

// IsZero reports whether the amount is zero.
func (a Amount) IsZero() bool {
	if a.native {
		return a.drops == 0
	}
	v := strings.TrimLeft(strings.TrimPrefix(a.value, "-"), "0.")
	return v == ""
}

// String renders the amount for logs: "<drops> drops" or
// "<value> <currency>/<issuer>".
func (a Amount) String() string {
	if a.native {
		return fmt.Sprintf("%d drops", a.drops)
	}
	return fmt.Sprintf("%s %s/%s", a.value, a.currency, a.issuer)
}

// Flat returns the wire representation: a drops string for native amounts,
// an object with value/currency/issuer for issued ones.
func (a Amount) Flat() any {
	if a.native {
		return strconv.FormatInt(a.drops, 10)
	}
	return map[string]any{
		"value":    a.value,
		"currency": a.currency,
		"issuer":   a.issuer,
	}
}

// Validate checks the amount at the creation boundary. Issuer addresses are
// checked by the caller, which owns address validation.
func (a Amount) Validate() error {
	if a.native {
		if a.drops <= 0 {
			return NewValidationError("amount", "native amount must be a positive number of drops")
		}
		if a.drops > MaxNativeDrops {
			return NewValidationError("amount", "native amount exceeds the maximum possible drops")
		}
		return nil
	}
	if a.value == "" {
		return NewValidationError("amount", "issued amount requires a value")
	}
	if !decimalRe.MatchString(a.value) {
		return NewValidationError("amount", "issued amount value is not a decimal number")
	}
	if strings.HasPrefix(a.value, "-") || a.IsZero() {
		return NewValidationError("amount", "issued amount must be positive")
	}
	if a.currency == "" {
		return NewValidationError("currency", "issued amount requires a currency code")
	}
	if strings.EqualFold(a.currency, "XRP") {
		return NewValidationError("currency", `issued amount cannot use the reserved code "XRP"`)
	}
	if !stdCurrencyRe.MatchString(a.currency) && !hexCurrencyRe.MatchString(a.currency) {
		return NewValidationError("currency", "currency must be a 3-character code or 40 hex characters")
	}
	if a.issuer == "" {
		return NewValidationError("issuer", "issued amount requires an issuer address")
	}
	return nil
}

// MarshalJSON renders the wire form: a string for native, an object for
// issued amounts.
func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.Flat())
}

// UnmarshalJSON accepts both wire forms.
func (a *Amount) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		drops, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid drops value %q: %w", s, err)
		}
		*a = NewNativeAmount(drops)
		return nil
	}

	var obj struct {
		Value    string `json:"value"`
		Currency string `json:"currency"`
		Issuer   string `json:"issuer"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*a = NewIssuedAmount(obj.Value, obj.Currency, obj.Issuer)
	return nil
}

// ParseXRP converts a decimal XRP string ("10", "0.5") into drops.
func ParseXRP(s string) (int64, error) {
	if !decimalRe.MatchString(s) || strings.HasPrefix(s, "-") {
		return 0, fmt.Errorf("invalid XRP value %q", s)
	}
	intPart := s
	fracPart := ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, fracPart = s[:i], s[i+1:]
	}
	if len(fracPart) > 6 {
		return 0, fmt.Errorf("XRP value %q has more than 6 decimal places", s)
	}
	fracPart += strings.Repeat("0", 6-len(fracPart))

	whole, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid XRP value %q: %w", s, err)
	}
	frac, err := strconv.ParseInt(fracPart, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid XRP value %q: %w", s, err)
	}
	drops := whole*DropsPerXRP + frac
	if whole > MaxNativeDrops/DropsPerXRP || drops > MaxNativeDrops {
		return 0, fmt.Errorf("XRP value %q exceeds the maximum supply", s)
	}
	return drops, nil
}
