package data

import (
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// ToDecimal128 converts an amount into its BSON representation.
func ToDecimal128(d decimal.Decimal) (bson.Decimal128, error) {
	v, err := bson.ParseDecimal128(d.String())
	if err != nil {
		return bson.Decimal128{}, errors.Wrapf(err, "convert amount %s", d.String())
	}
	return v, nil
}

// FromDecimal128 converts a stored amount back. Values that were never set
// (or are not finite) read as zero.
func FromDecimal128(v bson.Decimal128) decimal.Decimal {
	h, l := v.GetBytes()
	if h == 0 && l == 0 {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(v.String())
	if err != nil {
		return decimal.Zero
	}
	return d
}

// AmountDecimal returns the transaction amount.
func (t *Transaction) AmountDecimal() decimal.Decimal { return FromDecimal128(t.Amount) }
