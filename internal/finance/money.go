package finance

import (
	"github.com/PaulBabatuyi/finance-organizer/internal/normalize"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// locales pairs each supported currency with the locale its amounts are
// written in.
var locales = map[string]language.Tag{
	"USD": language.AmericanEnglish,
	"BRL": language.BrazilianPortuguese,
}

// SupportedCurrency reports whether code can be chosen in user settings.
func SupportedCurrency(code string) bool {
	_, ok := locales[normalize.Currency(code)]
	return ok
}

// Money formats amounts in one currency.
type Money struct {
	unit    currency.Unit
	printer *message.Printer
}

// NewMoney returns a formatter for the ISO 4217 code.
func NewMoney(code string) (Money, error) {
	code = normalize.Currency(code)
	tag, ok := locales[code]
	if !ok {
		return Money{}, errors.Wrapf(ErrInvalidInput, "unsupported currency %q", code)
	}
	unit, err := currency.ParseISO(code)
	if err != nil {
		return Money{}, errors.Wrapf(ErrInvalidInput, "currency %q: %v", code, err)
	}
	return Money{unit: unit, printer: message.NewPrinter(tag)}, nil
}

// MustMoney is NewMoney for codes already validated, falling back to USD.
func MustMoney(code string) Money {
	m, err := NewMoney(code)
	if err != nil {
		m, _ = NewMoney("USD")
	}
	return m
}

// Code returns the ISO code.
func (m Money) Code() string { return m.unit.String() }

// Format renders d with the currency symbol, e.g. "$ 1,234.50".
func (m Money) Format(d decimal.Decimal) string {
	// amounts are rounded to cents before the float conversion
	return m.printer.Sprint(currency.Symbol(m.unit.Amount(d.Round(2).InexactFloat64())))
}
