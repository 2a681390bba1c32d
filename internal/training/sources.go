package training

import (
	"math"
	"strings"

	"verdict-engine/internal/domain"
	"verdict-engine/internal/features"
	"verdict-engine/internal/ta"
)

// Indicator parameters for the bars source. These mirror the live
// technical engine so synthesized vectors land in the same feature space.
const (
	rsiPeriod  = 14
	fastPeriod = 12
	slowPeriod = 26
	signalSpan = 9
	rollWindow = 20
)

// BacktestSamples re-extracts feature vectors from stored backtest trades.
// Engines whose signal column is empty are left out of the analysis result,
// so the extractor fills their slots with neutral defaults.
func BacktestSamples(x *features.Extractor, trades []BacktestTrade) []domain.TrainingSample {
	out := make([]domain.TrainingSample, 0, len(trades))
	for _, t := range trades {
		res := domain.AnalysisResult{
			Symbol:  t.Symbol,
			Regime:  t.Regime,
			Engines: backtestEngines(t),
			At:      t.ExecutedAt,
		}
		out = append(out, domain.TrainingSample{
			Features:  x.Extract(res),
			Outcome:   t.Outcome,
			ReturnPct: t.ReturnPct,
			Source:    domain.SourceBacktest,
			At:        t.ExecutedAt,
		})
	}
	return out
}

func backtestEngines(t BacktestTrade) map[domain.EngineKind]domain.EngineOutput {
	engines := make(map[domain.EngineKind]domain.EngineOutput, 4)
	add := func(kind domain.EngineKind, signal string, confidence float64) {
		if strings.TrimSpace(signal) == "" {
			return
		}
		engines[kind] = domain.EngineOutput{
			Signal:     domain.NormalizeSignal(signal),
			Confidence: confidence,
		}
	}
	add(domain.EngineTechnical, t.TechnicalSignal, t.TechnicalConfidence)
	add(domain.EngineFundamental, t.FundamentalSignal, t.FundamentalConfidence)
	add(domain.EngineQuantitative, t.QuantitativeSignal, t.QuantitativeConfidence)
	add(domain.EngineSentiment, t.SentimentSignal, t.SentimentConfidence)
	return engines
}

// SynthesizeFromBars derives technical-only samples from OHLCV history.
// Each usable bar becomes an analysis result holding a rule-based technical
// call plus its indicator metrics; the label is whether the close moved up
// over the next horizon bars. Bars must be time-ordered oldest first.
func SynthesizeFromBars(x *features.Extractor, bars []domain.Bar, horizon int) []domain.TrainingSample {
	if horizon <= 0 || len(bars) <= horizon {
		return nil
	}

	closes := make([]float64, len(bars))
	volumes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
		volumes[i] = b.Volume
	}

	rsi := ta.RSISeries(closes, rsiPeriod)
	macdLine, signalLine := ta.MACDSeries(closes, fastPeriod, slowPeriod, signalSpan)
	trend := ta.TrendStrengthSeries(closes, fastPeriod, slowPeriod)
	volRatio := ta.VolumeRatioSeries(volumes, rollWindow)
	volatility := ta.RollingVolatilitySeries(closes, rollWindow)
	sharpe := ta.RollingSharpeSeries(closes, rollWindow)
	meanVol := finiteMean(volatility)

	out := make([]domain.TrainingSample, 0, len(bars))
	for i := range bars {
		if i+horizon >= len(bars) || closes[i] == 0 {
			continue
		}
		hist := macdLine[i] - signalLine[i]
		if anyNonFinite(rsi[i], hist, trend[i], volRatio[i], volatility[i], sharpe[i]) {
			continue
		}

		signal, confidence := technicalCall(rsi[i], macdLine[i], hist, trend[i])
		res := domain.AnalysisResult{
			Symbol: bars[i].Symbol,
			Regime: regimeTag(volatility[i], meanVol),
			Engines: map[domain.EngineKind]domain.EngineOutput{
				domain.EngineTechnical: {
					Signal:     signal,
					Confidence: confidence,
					Metrics: map[string]float64{
						"rsi":            rsi[i],
						"macd_histogram": hist,
						"trend_strength": trend[i],
						"volume_ratio":   volRatio[i],
						"volatility":     volatility[i],
						"sharpe_ratio":   sharpe[i],
					},
				},
			},
			At: bars[i].OpenTime,
		}

		futureReturn := closes[i+horizon]/closes[i] - 1
		outcome := 0
		if futureReturn > 0 {
			outcome = 1
		}
		out = append(out, domain.TrainingSample{
			Features:  x.Extract(res),
			Outcome:   outcome,
			ReturnPct: futureReturn * 100,
			Source:    domain.SourceBars,
			At:        bars[i].OpenTime,
		})
	}
	return out
}

// technicalCall votes MACD direction, histogram momentum and RSI extremes
// into a 7-point label. A strong trend reading doubles the vote.
func technicalCall(rsi, macdLine, hist, trend float64) (domain.SignalLabel, float64) {
	score := 0
	if macdLine > 0 {
		score++
	} else if macdLine < 0 {
		score--
	}
	if hist > 0 {
		score++
	} else if hist < 0 {
		score--
	}
	if rsi <= 30 {
		score++
	} else if rsi >= 70 {
		score--
	}
	if trend >= 40 {
		score *= 2
	}

	confidence := math.Min(0.45+0.05*math.Abs(float64(score)), 0.8)
	switch {
	case score >= 4:
		return domain.SignalStrongBuy, confidence
	case score >= 2:
		return domain.SignalBuy, confidence
	case score == 1:
		return domain.SignalWeakBuy, confidence
	case score == 0:
		return domain.SignalNeutral, confidence
	case score == -1:
		return domain.SignalWeakSell, confidence
	case score >= -3:
		return domain.SignalSell, confidence
	}
	return domain.SignalStrongSell, confidence
}

// regimeTag classifies volatility against the series mean so the tag
// self-scales across intervals and assets.
func regimeTag(vol, meanVol float64) string {
	if meanVol <= 0 {
		return ""
	}
	switch {
	case vol > 1.5*meanVol:
		return "high_vol"
	case vol < 0.5*meanVol:
		return "low_vol"
	}
	return ""
}

func finiteMean(values []float64) float64 {
	sum, n := 0.0, 0
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func anyNonFinite(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return true
		}
	}
	return false
}
