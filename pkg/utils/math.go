package utils

import (
	"math"
	"strconv"
	"strings"
)

// OrderBookLevel — одна ценовая ступень стакана (используется при симуляции
// маркет-заявок и VWAP-оценке проскальзывания).
type OrderBookLevel struct {
	Price  float64
	Volume float64
}

func decimalPlaces(f float64) int {
	s := strconv.FormatFloat(math.Abs(f), 'f', -1, 64)
	if i := strings.IndexByte(s, '.'); i >= 0 {
		return len(s) - i - 1
	}
	return 0
}

func roundDecimals(x float64, places int) float64 {
	mult := math.Pow(10, float64(places))
	return math.Round(x*mult) / mult
}

// RoundToLotSize округляет value вниз до ближайшего кратного lotSize.
// lotSize <= 0 считается "не задан" и value возвращается без изменений.
func RoundToLotSize(value, lotSize float64) float64 {
	if lotSize <= 0 {
		return value
	}
	units := math.Floor(value/lotSize + 1e-9)
	return roundDecimals(units*lotSize, decimalPlaces(lotSize))
}

// RoundToLotSizeUp округляет value вверх до ближайшего кратного lotSize.
func RoundToLotSizeUp(value, lotSize float64) float64 {
	if lotSize <= 0 {
		return value
	}
	units := math.Ceil(value/lotSize - 1e-9)
	return roundDecimals(units*lotSize, decimalPlaces(lotSize))
}

// RoundToLotSizeNearest округляет value до ближайшего кратного lotSize
// (половина округляется вверх).
func RoundToLotSizeNearest(value, lotSize float64) float64 {
	if lotSize <= 0 {
		return value
	}
	units := math.Floor(value/lotSize + 0.5 + 1e-9)
	return roundDecimals(units*lotSize, decimalPlaces(lotSize))
}

// CalculateSpread возвращает спред в процентах: (priceHigh - priceLow) / priceLow * 100.
// priceLow <= 0 не имеет экономического смысла и даёт 0.
func CalculateSpread(priceHigh, priceLow float64) float64 {
	if priceLow <= 0 {
		return 0
	}
	return (priceHigh - priceLow) / priceLow * 100
}

// CalculateSpreadFromPrices — симметричный спред между двумя ценами без
// заранее известного порядка (какая выше/ниже).
func CalculateSpreadFromPrices(priceA, priceB float64) float64 {
	low := math.Min(priceA, priceB)
	high := math.Max(priceA, priceB)
	if low <= 0 {
		return 0
	}
	return (high - low) / low * 100
}

// CalculateNetSpread вычитает из валового спреда комиссию обеих ног round-trip
// сделки: spreadPct - 2*(feeA+feeB)*100, где feeA/feeB заданы долями (0.0004 = 0.04%).
func CalculateNetSpread(spreadPct, feeA, feeB float64) float64 {
	return spreadPct - 2*(feeA+feeB)*100
}

// CalculateNetSpreadDirect — CalculateNetSpread, посчитанный напрямую из цен.
func CalculateNetSpreadDirect(priceHigh, priceLow, feeA, feeB float64) float64 {
	return CalculateNetSpread(CalculateSpread(priceHigh, priceLow), feeA, feeB)
}

// CalculateWeightedAverage — средневзвешенное значение (VWAP-стиль).
// Отрицательные веса игнорируются; при несовпадении длин срезов или нулевой
// сумме весов возвращается 0.
func CalculateWeightedAverage(values, weights []float64) float64 {
	if len(values) == 0 || len(values) != len(weights) {
		return 0
	}
	var num, den float64
	for i, w := range weights {
		if w <= 0 {
			continue
		}
		num += values[i] * w
		den += w
	}
	if den <= 0 {
		return 0
	}
	return num / den
}

func simulateMarketFill(levels []OrderBookLevel, targetVolume float64) (avgPrice, filled float64) {
	if len(levels) == 0 || targetVolume <= 0 {
		return 0, 0
	}
	var cost, vol float64
	for _, lvl := range levels {
		if vol >= targetVolume {
			break
		}
		take := math.Min(lvl.Volume, targetVolume-vol)
		if take <= 0 {
			continue
		}
		cost += take * lvl.Price
		vol += take
	}
	if vol == 0 {
		return 0, 0
	}
	return cost / vol, vol
}

// SimulateMarketBuy проходит уровни asks от лучшего к худшему, набирая
// targetVolume, и возвращает средневзвешенную цену исполнения, фактически
// набранный объём и проскальзывание в процентах от лучшего ask.
func SimulateMarketBuy(asks []OrderBookLevel, targetVolume float64) (avgPrice, filled, slippagePct float64) {
	avgPrice, filled = simulateMarketFill(asks, targetVolume)
	if filled == 0 {
		return 0, 0, 0
	}
	best := asks[0].Price
	if best > 0 {
		slippagePct = (avgPrice - best) / best * 100
	}
	return avgPrice, filled, slippagePct
}

// SimulateMarketSell — симметрично SimulateMarketBuy для стороны bids.
func SimulateMarketSell(bids []OrderBookLevel, targetVolume float64) (avgPrice, filled, slippagePct float64) {
	avgPrice, filled = simulateMarketFill(bids, targetVolume)
	if filled == 0 {
		return 0, 0, 0
	}
	best := bids[0].Price
	if best > 0 {
		slippagePct = (avgPrice - best) / best * 100
	}
	return avgPrice, filled, slippagePct
}

// CalculatePNL считает PNL одной ноги позиции. side не чувствителен к регистру;
// неизвестная сторона даёт 0.
func CalculatePNL(side string, entryPrice, currentPrice, quantity float64) float64 {
	switch strings.ToLower(side) {
	case "long":
		return (currentPrice - entryPrice) * quantity
	case "short":
		return (entryPrice - currentPrice) * quantity
	default:
		return 0
	}
}

// CalculateTotalPNL суммирует PNL длинной и короткой ноги арбитражной пары.
func CalculateTotalPNL(longEntry, longExit, shortEntry, shortExit, quantity float64) float64 {
	return CalculatePNL("long", longEntry, longExit, quantity) +
		CalculatePNL("short", shortEntry, shortExit, quantity)
}

// SplitVolume делит totalVolume на nParts равных частей, каждая округлена
// вниз до lotSize. Возвращает nil при недопустимых параметрах.
func SplitVolume(totalVolume float64, nParts int, lotSize float64) []float64 {
	if nParts <= 0 || totalVolume <= 0 {
		return nil
	}
	part := RoundToLotSize(totalVolume/float64(nParts), lotSize)
	parts := make([]float64, nParts)
	for i := range parts {
		parts[i] = part
	}
	return parts
}

// IsSpreadSufficient сообщает, достиг ли спред порога входа.
func IsSpreadSufficient(spread, threshold float64) bool {
	return spread >= threshold
}

// ShouldExit сообщает, опустился ли спред до порога выхода.
func ShouldExit(spread, exitThreshold float64) bool {
	return spread <= exitThreshold
}

// IsStopLossHit сообщает, пробит ли stop-loss. stopLossAmount <= 0 означает
// "стоп отключён".
func IsStopLossHit(pnl, stopLossAmount float64) bool {
	if stopLossAmount <= 0 {
		return false
	}
	return pnl <= -stopLossAmount
}

// Clamp ограничивает value диапазоном [min, max].
func Clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
