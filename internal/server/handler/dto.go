package handler

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/dualtrack/internal/domain"
	"github.com/alanyoungcy/dualtrack/internal/service"
	"github.com/alanyoungcy/dualtrack/internal/valuation"
)

// Amounts travel as decimal strings so no precision is lost in JSON.

type assetDTO struct {
	Currency      domain.Currency `json:"currency"`
	InitialAmount decimal.Decimal `json:"initialAmount"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

func toAssetDTO(a domain.Asset) assetDTO {
	return assetDTO{Currency: a.Currency, InitialAmount: a.InitialAmount, UpdatedAt: a.UpdatedAt}
}

type tradeDTO struct {
	ID               string             `json:"id"`
	ParentID         *string            `json:"parentId"`
	Platform         string             `json:"platform"`
	Coin             domain.Currency    `json:"coin"`
	Direction        domain.Direction   `json:"direction"`
	InputAmount      decimal.Decimal    `json:"inputAmount"`
	InputCurrency    domain.Currency    `json:"inputCurrency"`
	StrikePrice      decimal.Decimal    `json:"strikePrice"`
	ExpiryTime       time.Time          `json:"expiryTime"`
	APR              decimal.Decimal    `json:"apr"`
	Premium          decimal.Decimal    `json:"premium"`
	ExerciseAmount   decimal.Decimal    `json:"exerciseAmount"`
	ExerciseCurrency domain.Currency    `json:"exerciseCurrency"`
	Status           domain.TradeStatus `json:"status"`
	Exercised        *bool              `json:"exercised"`
	SettlementPrice  *decimal.Decimal   `json:"settlementPrice"`
	OutputAmount     *decimal.Decimal   `json:"outputAmount"`
	OutputCurrency   *domain.Currency   `json:"outputCurrency"`
	SettledAt        *time.Time         `json:"settledAt"`
	CreatedAt        time.Time          `json:"createdAt"`
}

func toTradeDTO(t domain.Trade) tradeDTO {
	return tradeDTO{
		ID:               t.ID,
		ParentID:         t.ParentID,
		Platform:         t.Platform,
		Coin:             t.Coin,
		Direction:        t.Direction,
		InputAmount:      t.InputAmount,
		InputCurrency:    t.InputCurrency,
		StrikePrice:      t.StrikePrice,
		ExpiryTime:       t.ExpiryTime,
		APR:              t.APR,
		Premium:          t.Premium,
		ExerciseAmount:   t.ExerciseAmount,
		ExerciseCurrency: t.ExerciseCurrency,
		Status:           t.Status,
		Exercised:        t.Exercised,
		SettlementPrice:  t.SettlementPrice,
		OutputAmount:     t.OutputAmount,
		OutputCurrency:   t.OutputCurrency,
		SettledAt:        t.SettledAt,
		CreatedAt:        t.CreatedAt,
	}
}

func toTradeDTOs(ts []domain.Trade) []tradeDTO {
	out := make([]tradeDTO, 0, len(ts))
	for _, t := range ts {
		out = append(out, toTradeDTO(t))
	}
	return out
}

type tradeViewDTO struct {
	tradeDTO
	Parent   *tradeDTO  `json:"parent"`
	Children []tradeDTO `json:"children"`
}

func toTradeViewDTO(v service.TradeView) tradeViewDTO {
	out := tradeViewDTO{tradeDTO: toTradeDTO(v.Trade), Children: toTradeDTOs(v.Children)}
	if v.Parent != nil {
		p := toTradeDTO(*v.Parent)
		out.Parent = &p
	}
	return out
}

type pricesDTO struct {
	BTC       decimal.Decimal `json:"BTC"`
	ETH       decimal.Decimal `json:"ETH"`
	Source    string          `json:"source,omitempty"`
	FetchedAt *time.Time      `json:"fetchedAt,omitempty"`
}

func toPricesDTO(p domain.Prices) pricesDTO {
	out := pricesDTO{BTC: p.BTC, ETH: p.ETH, Source: p.Source}
	if !p.FetchedAt.IsZero() {
		at := p.FetchedAt
		out.FetchedAt = &at
	}
	return out
}

type numeraireDTO struct {
	Initial decimal.Decimal `json:"initial"`
	Current decimal.Decimal `json:"current"`
	Profit  decimal.Decimal `json:"profit"`
	Rate    decimal.Decimal `json:"rate"`
}

func toNumeraireDTO(n valuation.Numeraire) numeraireDTO {
	return numeraireDTO{Initial: n.Initial, Current: n.Current, Profit: n.Profit, Rate: n.Rate}
}

type anchorDTO struct {
	Date string          `json:"date"`
	BTC  decimal.Decimal `json:"BTC"`
	ETH  decimal.Decimal `json:"ETH"`
}

type statsDTO struct {
	Prices              pricesDTO                  `json:"prices"`
	PriceDegraded       bool                       `json:"priceDegraded"`
	PriceStale          bool                       `json:"priceStale"`
	Holdings            valuation.Balances         `json:"holdings"`
	Locked              valuation.Balances         `json:"locked"`
	Total               valuation.Balances         `json:"total"`
	ExercisedProjection valuation.Balances         `json:"exercisedProjection"`
	NetWorthUSDT        decimal.Decimal            `json:"netWorthUSDT"`
	Numeraires          map[string]numeraireDTO    `json:"numeraires"` // keyed USDT, ETH, BTC
	ProfitByPlatform    map[string]decimal.Decimal `json:"profitByPlatform"`
	Anchor              anchorDTO                  `json:"anchor"`
	Error               string                     `json:"error,omitempty"`
	GeneratedAt         time.Time                  `json:"generatedAt"`
}

func toStatsDTO(s service.Stats) statsDTO {
	byPlatform := s.Profit.ProfitByPlatform
	if byPlatform == nil {
		byPlatform = map[string]decimal.Decimal{}
	}
	numeraires := map[string]numeraireDTO{
		string(domain.USDT): toNumeraireDTO(s.Profit.USDT),
		string(domain.ETH):  toNumeraireDTO(s.Profit.ETH),
		string(domain.BTC):  toNumeraireDTO(s.Profit.BTC),
	}
	return statsDTO{
		Prices:              toPricesDTO(s.Prices),
		PriceDegraded:       s.PriceDegraded,
		PriceStale:          s.PriceStale,
		Holdings:            s.Holdings.Available,
		Locked:              s.Holdings.Locked,
		Total:               s.Holdings.Total,
		ExercisedProjection: s.Holdings.ExercisedProjection,
		NetWorthUSDT:        s.NetWorthUSDT,
		Numeraires:          numeraires,
		ProfitByPlatform:    byPlatform,
		Anchor: anchorDTO{
			Date: s.Anchor.Date.Format("2006-01-02"),
			BTC:  s.Anchor.BTC,
			ETH:  s.Anchor.ETH,
		},
		Error:       s.Error,
		GeneratedAt: s.GeneratedAt,
	}
}
