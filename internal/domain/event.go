package domain

import "time"

// SettlementEvent is published on the bus after a trade settles.
type SettlementEvent struct {
	TradeID         string    `json:"tradeId"`
	Platform        string    `json:"platform"`
	Coin            Currency  `json:"coin"`
	Direction       Direction `json:"direction"`
	Exercised       bool      `json:"exercised"`
	SettlementPrice string    `json:"settlementPrice"`
	OutputAmount    string    `json:"outputAmount"`
	OutputCurrency  Currency  `json:"outputCurrency"`
	Trigger         string    `json:"trigger"` // "manual" or "scheduled"
	SettledAt       time.Time `json:"settledAt"`
}

// PriceEvent is published on the bus after a live quote is fetched.
type PriceEvent struct {
	BTC       string    `json:"btc"`
	ETH       string    `json:"eth"`
	Source    string    `json:"source"`
	FetchedAt time.Time `json:"fetchedAt"`
}
