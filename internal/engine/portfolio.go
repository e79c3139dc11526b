package engine

import (
	"fmt"

	"golang-backtest/internal/dto"
)

// portfolio is the run-local mutable state of one simulation: cash plus open
// positions. Mutations are atomic — a fill either fully applies (cash debit
// paired with the position credit) or leaves the state untouched.
type portfolio struct {
	cash      float64
	positions map[string]*dto.SimulatedPosition
}

func newPortfolio(initialCash float64) *portfolio {
	return &portfolio{
		cash:      initialCash,
		positions: make(map[string]*dto.SimulatedPosition),
	}
}

func (p *portfolio) position(symbol string) (*dto.SimulatedPosition, bool) {
	pos, ok := p.positions[symbol]
	return pos, ok
}

func (p *portfolio) openPositions() int { return len(p.positions) }

// markToMarket refreshes currentPrice/marketValue for every open position
// that has a close on the day. Symbols without a bar carry the prior price
// forward.
func (p *portfolio) markToMarket(closes map[string]float64) {
	for symbol, pos := range p.positions {
		if close, ok := closes[symbol]; ok {
			pos.CurrentPrice = close
		}
		pos.MarketValue = float64(pos.Quantity) * pos.CurrentPrice
	}
}

func (p *portfolio) positionsValue() float64 {
	var total float64
	for _, pos := range p.positions {
		total += pos.MarketValue
	}
	return total
}

func (p *portfolio) totalValue() float64 {
	return p.cash + p.positionsValue()
}

// buy debits cash for quantity × fillPrice plus the flat commission and folds
// the fill into the position's weighted-average cost. Fails without touching
// state when cash is insufficient.
func (p *portfolio) buy(symbol string, quantity int64, fillPrice, commission float64) error {
	cost := float64(quantity)*fillPrice + commission
	if cost > p.cash {
		return fmt.Errorf("insufficient cash: need %.2f, have %.2f", cost, p.cash)
	}

	p.cash -= cost

	pos, ok := p.positions[symbol]
	if !ok {
		pos = &dto.SimulatedPosition{Symbol: symbol}
		p.positions[symbol] = pos
	}

	newQuantity := pos.Quantity + quantity
	pos.AveragePrice = (pos.AveragePrice*float64(pos.Quantity) + fillPrice*float64(quantity)) / float64(newQuantity)
	pos.Quantity = newQuantity
	pos.CostBasis = pos.AveragePrice * float64(newQuantity)
	pos.CurrentPrice = fillPrice
	pos.MarketValue = float64(newQuantity) * fillPrice
	return nil
}

// sell liquidates the entire position (no partial-sell policy), credits cash
// net of commission, and returns the filled quantity and realized P&L.
func (p *portfolio) sell(symbol string, fillPrice, commission float64) (quantity int64, pnl float64, ok bool) {
	pos, exists := p.positions[symbol]
	if !exists || pos.Quantity == 0 {
		return 0, 0, false
	}

	quantity = pos.Quantity
	pnl = float64(quantity) * (fillPrice - pos.AveragePrice)

	p.cash += float64(quantity)*fillPrice - commission
	delete(p.positions, symbol)
	return quantity, pnl, true
}
