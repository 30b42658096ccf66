/**
 * Filename: /Users/bao/code/yahs/norm.go
 * Path: /Users/bao/code/yahs
 * Created Date: Sunday, June 27th 2021, 10:05:19 am
 * Author: bao
 *
 * Copyright (c) 2021 Haibao Tang
 */

package yahs

import (
	"gonum.org/v1/gonum/stat/distuv"
)

// NormModel stores the expected normalized link count per bin distance,
// fitted once per round from the intra matrix
type NormModel struct {
	R  int       // number of retained bands
	E  []float64 // expected count at bin distance d, d in [0, R)
	La float64   // global mean normalized count over the intra data
}

// Expected returns the expected count at a bin distance. Distances
// beyond the fitted range carry no signal.
func (n *NormModel) Expected(d int) float64 {
	if d < 0 || d >= n.R {
		return 0
	}
	return n.E[d]
}

// CalcNorms fits the distance-decay curve from the intra matrix: bucket all
// cells with usable denominators by bin distance, take the trimmed mean of
// count/denominator per bucket, drop trailing buckets with fewer than
// NormKMin samples, then enforce monotone non-increase by pool-adjacent
//-violators. Returns ErrNoBands when fewer than MinNormBands bands survive.
func CalcNorms(m *IntraMatrix) (*NormModel, error) {
	maxBand := 0
	for s := range m.Bands {
		if m.Bands[s] > maxBand {
			maxBand = m.Bands[s]
		}
	}

	samples := make([][]float64, maxBand)
	for s := range m.Cells {
		w := m.Bands[s]
		for i := 0; i < m.Bins[s]; i++ {
			for d := 0; d < w && i+d < m.Bins[s]; d++ {
				denom := m.Norms[s][i*w+d]
				if denom <= 0 {
					continue
				}
				samples[d] = append(samples[d], m.Cells[s][i*w+d]/denom)
			}
		}
	}

	// Bands are retained from distance zero up to the first underfilled one
	r := 0
	for r < maxBand && len(samples[r]) >= NormKMin {
		r++
	}
	if r < MinNormBands {
		log.Warningf("No enough bands for norm calculation (%d < %d)", r, MinNormBands)
		return nil, ErrNoBands
	}

	e := make([]float64, r)
	total, count := 0.0, 0
	for d := 0; d < r; d++ {
		e[d] = trimmedMean(samples[d], .1)
		for _, v := range samples[d] {
			total += v
		}
		count += len(samples[d])
	}
	isotonic(e)

	n := &NormModel{R: r, E: e, La: total / float64(count)}
	log.Noticef("Norm fitted over %d bands (%d cells), la = %.4g", r, count, n.La)
	return n, nil
}

// isotonic runs pool-adjacent-violators from d = 0 upward so that the curve
// is monotonically non-increasing
func isotonic(e []float64) {
	n := len(e)
	values := make([]float64, 0, n)
	weights := make([]int, 0, n)
	for _, v := range e {
		values = append(values, v)
		weights = append(weights, 1)
		for len(values) > 1 {
			k := len(values)
			if values[k-2] >= values[k-1] {
				break
			}
			merged := (values[k-2]*float64(weights[k-2]) + values[k-1]*float64(weights[k-1])) /
				float64(weights[k-2]+weights[k-1])
			weights[k-2] += weights[k-1]
			values[k-2] = merged
			values = values[:k-1]
			weights = weights[:k-1]
		}
	}
	i := 0
	for k, v := range values {
		for j := 0; j < weights[k]; j++ {
			e[i] = v
			i++
		}
	}
}

// qbinom returns the p-quantile of Binomial(n, prob): the smallest k with
// CDF(k) >= p
func qbinom(p float64, n int, prob float64) float64 {
	if n <= 0 || prob <= 0 {
		return 0
	}
	if prob >= 1 {
		return float64(n)
	}
	dist := distuv.Binomial{N: float64(n), P: prob}
	lo, hi := 0, n
	for lo < hi {
		mid := (lo + hi) / 2
		if dist.CDF(float64(mid)) >= p {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	return float64(lo)
}

// qualityThreshold is the per-pair normalized score below which an edge is
// indistinguishable from background at the 99th percentile
func qualityThreshold(n0 int, la float64) float64 {
	if n0 <= 0 {
		return 0
	}
	return qbinom(.99, n0, la) / float64(n0)
}
