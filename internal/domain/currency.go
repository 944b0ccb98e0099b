package domain

import (
	"fmt"
	"strings"
)

// Currency is one of the three tracked balances.
type Currency string

const (
	USDT Currency = "USDT"
	BTC  Currency = "BTC"
	ETH  Currency = "ETH"
)

// Currencies lists every tracked currency in display order.
var Currencies = []Currency{USDT, BTC, ETH}

// Valid reports whether c is a known currency.
func (c Currency) Valid() bool {
	switch c {
	case USDT, BTC, ETH:
		return true
	}
	return false
}

// IsCoin reports whether c is a priced coin (BTC or ETH).
func (c Currency) IsCoin() bool {
	return c == BTC || c == ETH
}

// ParseCurrency accepts any letter case.
func ParseCurrency(s string) (Currency, error) {
	c := Currency(strings.ToUpper(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("%w: unknown currency %q", ErrInvalidTrade, s)
	}
	return c, nil
}

// ParseCoin accepts only BTC or ETH.
func ParseCoin(s string) (Currency, error) {
	c, err := ParseCurrency(s)
	if err != nil {
		return "", err
	}
	if !c.IsCoin() {
		return "", fmt.Errorf("%w: %s is not a coin", ErrInvalidTrade, c)
	}
	return c, nil
}

// Direction is the kind of dual-currency note.
type Direction string

const (
	BuyLow   Direction = "buy_low"
	SellHigh Direction = "sell_high"
)

// Valid reports whether d is a known direction.
func (d Direction) Valid() bool {
	return d == BuyLow || d == SellHigh
}

// ParseDirection accepts "buy_low" or "sell_high".
func ParseDirection(s string) (Direction, error) {
	d := Direction(strings.ToLower(strings.TrimSpace(s)))
	if !d.Valid() {
		return "", fmt.Errorf("%w: unknown direction %q", ErrInvalidTrade, s)
	}
	return d, nil
}

// TradeStatus is the settlement state of a trade.
type TradeStatus string

const (
	StatusPending TradeStatus = "pending"
	StatusSettled TradeStatus = "settled"
)

// Valid reports whether s is a known status.
func (s TradeStatus) Valid() bool {
	return s == StatusPending || s == StatusSettled
}
