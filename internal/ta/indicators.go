package ta

import "math"

func MeanStd(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	var variance float64
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(values))
	return mean, math.Sqrt(variance)
}

func EMASeries(values []float64, period int) []float64 {
	if len(values) == 0 {
		return nil
	}
	if period <= 1 {
		out := make([]float64, len(values))
		copy(out, values)
		return out
	}
	out := make([]float64, len(values))
	alpha := 2.0 / float64(period+1)
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}
	return out
}

func RSISeries(closes []float64, period int) []float64 {
	if len(closes) <= period {
		return nil
	}
	series := make([]float64, len(closes))
	for i := range series {
		series[i] = math.NaN()
	}

	var gainSum float64
	var lossSum float64
	for i := 1; i <= period; i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			gainSum += delta
		} else {
			lossSum -= delta
		}
	}
	avgGain := gainSum / float64(period)
	avgLoss := lossSum / float64(period)
	series[period] = rsiFromAvg(avgGain, avgLoss)

	for i := period + 1; i < len(closes); i++ {
		delta := closes[i] - closes[i-1]
		gain := math.Max(delta, 0)
		loss := math.Max(-delta, 0)
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		series[i] = rsiFromAvg(avgGain, avgLoss)
	}
	return series
}

func rsiFromAvg(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}

func MACDSeries(values []float64, fast, slow, signal int) ([]float64, []float64) {
	if len(values) == 0 {
		return nil, nil
	}
	fastEMA := EMASeries(values, fast)
	slowEMA := EMASeries(values, slow)
	macdLine := make([]float64, len(values))
	for i := range values {
		macdLine[i] = fastEMA[i] - slowEMA[i]
	}
	signalLine := EMASeries(macdLine, signal)
	return macdLine, signalLine
}

// TrendStrengthSeries scores trend persistence on a 0..100 scale from the
// normalized spread between a fast and a slow EMA. A 2.5% spread maps to
// the neutral 25.
func TrendStrengthSeries(closes []float64, fast, slow int) []float64 {
	if len(closes) == 0 {
		return nil
	}
	fastEMA := EMASeries(closes, fast)
	slowEMA := EMASeries(closes, slow)
	out := make([]float64, len(closes))
	for i := range closes {
		if slowEMA[i] == 0 {
			out[i] = 0
			continue
		}
		spread := math.Abs(fastEMA[i]-slowEMA[i]) / math.Abs(slowEMA[i])
		out[i] = math.Min(spread*1000, 100)
	}
	return out
}

// VolumeRatioSeries is volume over its trailing-window mean. Entries
// before a full window are NaN.
func VolumeRatioSeries(volumes []float64, window int) []float64 {
	if len(volumes) == 0 {
		return nil
	}
	out := make([]float64, len(volumes))
	for i := range volumes {
		if window <= 0 || i < window {
			out[i] = math.NaN()
			continue
		}
		mean, _ := MeanStd(volumes[i-window : i])
		if mean == 0 {
			out[i] = 1
			continue
		}
		out[i] = volumes[i] / mean
	}
	return out
}

// ReturnSeries is the one-step fractional return series. Index 0 and any
// step off a zero base are NaN.
func ReturnSeries(closes []float64) []float64 {
	if len(closes) == 0 {
		return nil
	}
	out := make([]float64, len(closes))
	out[0] = math.NaN()
	for i := 1; i < len(closes); i++ {
		if closes[i-1] == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = closes[i]/closes[i-1] - 1
	}
	return out
}

// RollingVolatilitySeries is the std dev of one-step returns over a
// trailing window. Entries before a full window are NaN.
func RollingVolatilitySeries(closes []float64, window int) []float64 {
	rets := ReturnSeries(closes)
	out := make([]float64, len(closes))
	for i := range out {
		out[i] = math.NaN()
	}
	if window <= 1 {
		return out
	}
	for i := window; i < len(rets); i++ {
		win := rets[i-window+1 : i+1]
		if anyNaN(win) {
			continue
		}
		_, std := MeanStd(win)
		out[i] = std
	}
	return out
}

// RollingSharpeSeries is mean over std of one-step returns across a
// trailing window, 0 when the window shows no variance.
func RollingSharpeSeries(closes []float64, window int) []float64 {
	rets := ReturnSeries(closes)
	out := make([]float64, len(closes))
	for i := range out {
		out[i] = math.NaN()
	}
	if window <= 1 {
		return out
	}
	for i := window; i < len(rets); i++ {
		win := rets[i-window+1 : i+1]
		if anyNaN(win) {
			continue
		}
		mean, std := MeanStd(win)
		if std == 0 {
			out[i] = 0
			continue
		}
		out[i] = mean / std
	}
	return out
}

func anyNaN(values []float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return true
		}
	}
	return false
}
