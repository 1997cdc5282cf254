package application

import (
	"errors"

	"github.com/shopspring/decimal"
)

var cent = decimal.New(1, -2)

// SplitEqual divides amount into n shares rounded down to the cent. The
// leftover cents go one each to the first shares, so the shares always sum
// to amount and differ by at most one cent.
func SplitEqual(amount decimal.Decimal, n int) ([]decimal.Decimal, error) {
	if n <= 0 {
		return nil, errors.New("split needs at least one share")
	}
	if !amount.IsPositive() {
		return nil, errors.New("split amount must be positive")
	}
	cents := amount.Shift(2).Truncate(0)
	if !cents.Equal(amount.Shift(2)) {
		return nil, errors.New("split amount has more than two decimal places")
	}
	count := decimal.NewFromInt(int64(n))
	base, rem := cents.QuoRem(count, 0)
	remainder := rem.IntPart()

	shares := make([]decimal.Decimal, n)
	for i := range shares {
		c := base
		if int64(i) < remainder {
			c = c.Add(decimal.NewFromInt(1))
		}
		shares[i] = c.Mul(cent)
	}
	return shares, nil
}
