package market

import (
	"errors"
	"fmt"
)

// ErrNoConversion is returned when neither leg of an instrument is the
// account currency.
var ErrNoConversion = errors.New("cross conversion to account currency not supported")

// QuoteToAccount is the account-currency value of one unit of the quote
// currency, given the instrument's mid price.
func (m InstrumentMeta) QuoteToAccount(account string, mid float64) (float64, error) {
	switch account {
	case m.QuoteCurrency:
		return 1, nil
	case m.BaseCurrency:
		if mid <= 0 {
			return 0, fmt.Errorf("%s: price %v cannot convert %s to %s", m.Name, mid, m.QuoteCurrency, account)
		}
		return 1 / mid, nil
	}
	return 0, fmt.Errorf("%s: %s to %s: %w", m.Name, m.QuoteCurrency, account, ErrNoConversion)
}

// QuoteToAccountRate looks instrument up and converts its quote currency.
func QuoteToAccountRate(instrument, accountCurrency string, mid float64) (float64, error) {
	return Lookup(instrument).QuoteToAccount(accountCurrency, mid)
}
