package services

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"invest-tournament-system/config"
	"invest-tournament-system/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// FeeSchedule prices brokerage and the sell-side transaction tax.
type FeeSchedule struct {
	BrokerageRate decimal.Decimal
	MinBrokerage  decimal.Decimal
	SellTaxRate   decimal.Decimal
}

// Fees returns brokerage and tax for an order of the given gross amount.
func (f FeeSchedule) Fees(action models.TradeAction, amount decimal.Decimal) (brokerage, tax decimal.Decimal) {
	brokerage = decimal.Max(f.MinBrokerage, amount.Mul(f.BrokerageRate)).Round(2)
	tax = decimal.Zero
	if action == models.TradeActionSell {
		tax = amount.Mul(f.SellTaxRate).Round(2)
	}
	return brokerage, tax
}

// TradeRules are the per-deployment order rules.
type TradeRules struct {
	LotSize      int64
	Fees         FeeSchedule
	EnforceHours bool
	OpenHour     int
	CloseHour    int
	Location     *time.Location
	// PriceBand is how far, in percent, a client price may sit from the quote.
	PriceBand decimal.Decimal
}

// TradeRulesFromConfig builds TradeRules from the trading section of the config.
func TradeRulesFromConfig(cfg config.TradingConfig) TradeRules {
	loc, err := time.LoadLocation("Asia/Taipei")
	if err != nil {
		loc = time.UTC
	}
	return TradeRules{
		LotSize: cfg.LotSize,
		Fees: FeeSchedule{
			BrokerageRate: cfg.BrokerageRate,
			MinBrokerage:  cfg.MinBrokerageFee,
			SellTaxRate:   cfg.SellTaxRate,
		},
		EnforceHours: cfg.EnforceHours,
		OpenHour:     cfg.MarketOpenHour,
		CloseHour:    cfg.MarketCloseHour,
		Location:     loc,
		PriceBand:    cfg.PriceBandPercent,
	}
}

// ExecutionPrice returns the price an order fills at, which is always the quote.
// A client price is only an expectation: it must be positive and within PriceBand
// percent of the quote.
func (r TradeRules) ExecutionPrice(symbol string, requested, quote decimal.Decimal, quoted bool) (decimal.Decimal, error) {
	if !quoted || !quote.IsPositive() {
		return decimal.Zero, &Error{Kind: KindValidation, Message: ErrInvalidPrice.Message, Err: fmt.Errorf("no fresh quote for %s", symbol)}
	}
	if requested.IsZero() {
		return quote, nil
	}
	if requested.IsNegative() {
		return decimal.Zero, ErrInvalidPrice
	}
	if r.PriceBand.IsPositive() {
		deviation := requested.Sub(quote).Abs().Div(quote).Mul(hundred)
		if deviation.GreaterThan(r.PriceBand) {
			return decimal.Zero, &Error{Kind: KindValidation, Message: ErrPriceOutOfBand.Message,
				Err: fmt.Errorf("%s quoted at %s, order priced %s", symbol, quote.String(), requested.String())}
		}
	}
	return quote, nil
}

// Order is a validated-on-apply trade request.
type Order struct {
	Symbol   string             `json:"symbol"`
	Name     string             `json:"stock_name"`
	Action   models.TradeAction `json:"action"`
	Quantity int64              `json:"quantity"`
	Price    decimal.Decimal    `json:"price"`
}

// TradeOutcome is the new state produced by a trade. Inputs are never modified.
type TradeOutcome struct {
	Portfolio      models.TournamentPortfolio `json:"portfolio"`
	Holding        *models.TournamentHolding  `json:"holding,omitempty"`
	HoldingRemoved bool                       `json:"holding_removed"`
	Holdings       []models.TournamentHolding `json:"-"`
	Trade          models.TournamentTrade     `json:"trade"`
}

func (r TradeRules) validateOrder(t *models.Tournament, order Order, now time.Time) error {
	if strings.TrimSpace(order.Symbol) == "" {
		return Validation("symbol is required")
	}
	if order.Action != models.TradeActionBuy && order.Action != models.TradeActionSell {
		return Validation("action must be buy or sell")
	}
	if order.Quantity <= 0 {
		return ErrInvalidQuantity
	}
	if r.LotSize > 1 && order.Quantity%r.LotSize != 0 {
		return &Error{Kind: KindValidation, Message: ErrInvalidQuantity.Message, Err: Validation("quantity must be a multiple of %d", r.LotSize)}
	}
	if !order.Price.IsPositive() {
		return ErrInvalidPrice
	}
	if !t.TradingOpen(now) {
		return ErrTradingClosed
	}
	if len(t.AllowedSymbols) > 0 && !slices.Contains([]string(t.AllowedSymbols), order.Symbol) {
		return ErrInstrumentNotAllowed
	}
	if r.EnforceHours {
		loc := r.Location
		if loc == nil {
			loc = time.UTC
		}
		local := now.In(loc)
		if wd := local.Weekday(); wd == time.Saturday || wd == time.Sunday ||
			local.Hour() < r.OpenHour || local.Hour() >= r.CloseHour {
			return ErrOutsideTradingHours
		}
	}
	return nil
}

// ApplyTrade validates order against the tournament and the participant's current
// state and returns the state after execution.
func (r TradeRules) ApplyTrade(
	t *models.Tournament,
	portfolio models.TournamentPortfolio,
	holdings []models.TournamentHolding,
	order Order,
	prices PriceMap,
	now time.Time,
) (*TradeOutcome, error) {
	order.Symbol = strings.ToUpper(strings.TrimSpace(order.Symbol))
	if err := r.validateOrder(t, order, now); err != nil {
		return nil, err
	}

	next := make([]models.TournamentHolding, len(holdings))
	copy(next, holdings)
	idx := slices.IndexFunc(next, func(h models.TournamentHolding) bool { return h.Symbol == order.Symbol })

	qty := decimal.NewFromInt(order.Quantity)
	amount := order.Price.Mul(qty)
	brokerage, tax := r.Fees.Fees(order.Action, amount)
	fees := brokerage.Add(tax)

	trade := models.TournamentTrade{
		ID:           uuid.NewString(),
		TournamentID: t.ID,
		UserID:       portfolio.UserID,
		Symbol:       order.Symbol,
		StockName:    order.Name,
		Action:       order.Action,
		Quantity:     order.Quantity,
		Price:        order.Price,
		Amount:       amount,
		Fees:         fees,
		Status:       models.TradeStatusExecuted,
		ExecutedAt:   now,
	}

	marks := make(PriceMap, len(prices)+1)
	for k, v := range prices {
		marks[k] = v
	}
	marks[order.Symbol] = order.Price

	out := &TradeOutcome{Portfolio: portfolio}

	switch order.Action {
	case models.TradeActionBuy:
		total := amount.Add(fees)
		if portfolio.CashBalance.LessThan(total) {
			return nil, ErrInsufficientFunds
		}
		if t.MaxSingleStockRate.IsPositive() {
			before := ValuePortfolio(portfolio.CashBalance, portfolio.InitialBalance, holdings, marks)
			held := int64(0)
			if idx >= 0 {
				held = next[idx].Shares
			}
			position := decimal.NewFromInt(held + order.Quantity).Mul(order.Price)
			if !before.TotalAssets.IsPositive() ||
				position.Div(before.TotalAssets).Mul(hundred).GreaterThan(t.MaxSingleStockRate) {
				return nil, ErrAllocationExceeded
			}
		}

		if idx < 0 {
			next = append(next, models.TournamentHolding{
				ID:                uuid.NewString(),
				TournamentID:      t.ID,
				UserID:            portfolio.UserID,
				Symbol:            order.Symbol,
				Name:              order.Name,
				AveragePrice:      decimal.Zero,
				FirstPurchaseDate: now,
			})
			idx = len(next) - 1
		}
		h := &next[idx]
		cost := decimal.NewFromInt(h.Shares).Mul(h.AveragePrice).Add(amount)
		h.Shares += order.Quantity
		h.AveragePrice = cost.Div(decimal.NewFromInt(h.Shares)).Round(4)
		h.CurrentPrice = order.Price
		h.LastUpdated = now

		out.Portfolio.CashBalance = portfolio.CashBalance.Sub(total)
		trade.NetAmount = total.Neg()

	case models.TradeActionSell:
		if idx < 0 {
			return nil, ErrNoPosition
		}
		h := &next[idx]
		if order.Quantity > h.Shares {
			return nil, ErrInsufficientShares
		}
		net := amount.Sub(fees)
		realized := order.Price.Sub(h.AveragePrice).Mul(qty).Sub(fees)
		trade.NetAmount = net
		trade.RealizedPnL = &realized

		h.Shares -= order.Quantity
		h.CurrentPrice = order.Price
		h.LastUpdated = now

		out.Portfolio.CashBalance = portfolio.CashBalance.Add(net)
		out.Portfolio.RealizedPnL = portfolio.RealizedPnL.Add(realized)
		out.Portfolio.SellTrades++
		if realized.IsPositive() {
			out.Portfolio.WinningTrades++
		}
	}

	out.Portfolio.TotalTrades++

	held := next[idx]
	if held.Shares == 0 {
		next = slices.Delete(next, idx, idx+1)
		out.HoldingRemoved = true
		out.Holding = &held
	}

	v := ValuePortfolio(out.Portfolio.CashBalance, out.Portfolio.InitialBalance, next, marks)
	v.Apply(&out.Portfolio, next, now)
	if !out.HoldingRemoved {
		for i := range next {
			if next[i].Symbol == order.Symbol {
				h := next[i]
				out.Holding = &h
				break
			}
		}
	}
	out.Holdings = next
	out.Trade = trade
	return out, nil
}
