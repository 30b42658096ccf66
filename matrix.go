/**
 * Filename: /Users/bao/code/yahs/matrix.go
 * Path: /Users/bao/code/yahs
 * Created Date: Saturday, June 26th 2021, 2:17:40 pm
 * Author: bao
 *
 * Copyright (c) 2021 Haibao Tang
 */

package yahs

import (
	"fmt"

	"github.com/kshedden/gonpy"
)

// MaxLinkRange is the largest genomic distance considered for intra-sequence
// links; it bounds the band width of the intra matrix at a given resolution
const MaxLinkRange = 10000000

// IntraMatrix holds the banded intra-sequence link counts of every scaffold
// at one resolution, with a parallel normalization denominator matrix.
// Cell (i, d) of scaffold s counts pairs with one end in bin i and one in
// bin i+d; a denominator of -1 marks a no-data cell.
type IntraMatrix struct {
	Resolution int
	Band       int       // global cap on stored bin distance
	Bins       []int     // bins per scaffold
	Bands      []int     // stored band width per scaffold
	Cells      [][]float64
	Norms      [][]float64
}

// bandWidth caps the stored band of a scaffold with b bins
func bandWidth(b, band int) int {
	return min(b, band)
}

// EstimateIntraRSS returns a conservative byte estimate for the intra build
func EstimateIntraRSS(l *Layout, resolution int) int64 {
	band := MaxLinkRange / resolution
	if band < 1 {
		band = 1
	}
	total := int64(0)
	for i := range l.Scaffolds {
		b := (l.Scaffolds[i].Len + resolution - 1) / resolution
		total += int64(b) * int64(bandWidth(b, band)) * 16
	}
	return total
}

// NewIntraMatrix allocates the banded matrices for a layout
func NewIntraMatrix(l *Layout, resolution int) *IntraMatrix {
	band := MaxLinkRange / resolution
	if band < 1 {
		band = 1
	}
	m := &IntraMatrix{
		Resolution: resolution,
		Band:       band,
		Bins:       make([]int, l.NumSeqs()),
		Bands:      make([]int, l.NumSeqs()),
		Cells:      make([][]float64, l.NumSeqs()),
		Norms:      make([][]float64, l.NumSeqs()),
	}
	for i := range l.Scaffolds {
		b := (l.Scaffolds[i].Len + resolution - 1) / resolution
		w := bandWidth(b, band)
		m.Bins[i] = b
		m.Bands[i] = w
		m.Cells[i] = make([]float64, b*w)
		m.Norms[i] = make([]float64, b*w)
	}
	return m
}

// Get returns the symmetric query view of cell (i, j) of scaffold s
func (m *IntraMatrix) Get(s, i, j int) float64 {
	if i > j {
		i, j = j, i
	}
	d := j - i
	if d >= m.Bands[s] || j >= m.Bins[s] {
		return 0
	}
	return m.Cells[s][i*m.Bands[s]+d]
}

// Norm returns the normalization denominator of cell (i, j), -1 when no data
func (m *IntraMatrix) Norm(s, i, j int) float64 {
	if i > j {
		i, j = j, i
	}
	d := j - i
	if d >= m.Bands[s] || j >= m.Bins[s] {
		return -1
	}
	return m.Norms[s][i*m.Bands[s]+d]
}

// IntraMatrixFromFile scans the link store and builds the intra matrix.
// Denominators combine the gap-corrected effective bin sizes with cut-site
// counts when a restriction map is supplied.
func IntraMatrixFromFile(linkfile string, l *Layout, cuts *RECuts,
	resolution, mapq int) (*IntraMatrix, error) {
	m := NewIntraMatrix(l, resolution)
	err := ScanLinks(linkfile, l, mapq, func(sa, pa, sb, pb int) {
		if sa != sb {
			return
		}
		i, j := pa/resolution, pb/resolution
		d := j - i
		if d < m.Bands[sa] {
			m.Cells[sa][i*m.Bands[sa]+d]++
		}
	})
	if err != nil {
		return nil, err
	}

	for s := range l.Scaffolds {
		eff := l.effBinSizes(s, resolution)
		// Effective sizes in bin units
		for i := range eff {
			eff[i] /= float64(resolution)
		}
		var cutCounts []float64
		if cuts != nil {
			cutCounts = cuts.cutsPerBin(l, s, resolution)
		}
		w := m.Bands[s]
		for i := 0; i < m.Bins[s]; i++ {
			for d := 0; d < w && i+d < m.Bins[s]; d++ {
				j := i + d
				var denom float64
				if cutCounts != nil {
					denom = minf(eff[i], eff[j]) * minf(cutCounts[i], cutCounts[j])
				} else {
					denom = eff[i] * eff[j]
				}
				if denom < Epsilon {
					denom = -1
				}
				m.Norms[s][i*w+d] = denom
			}
		}
	}
	return m, nil
}

// DumpNpy writes the banded count matrix of one scaffold to a .npy file
func (m *IntraMatrix) DumpNpy(s int, outfile string) error {
	w, err := gonpy.NewFileWriter(outfile)
	if err != nil {
		return err
	}
	w.Shape = []int{m.Bins[s], m.Bands[s]}
	if err := w.WriteFloat64(m.Cells[s]); err != nil {
		return err
	}
	log.Noticef("Link matrix of scaffold %d written to `%s`", s, outfile)
	return nil
}

// InterLink stores the four orientation buckets of one scaffold pair.
// Bucket j joins end j>>1 of C0 with end j&1 of C1 (0 = head, 1 = tail).
type InterLink struct {
	C0, C1 int
	N      [4]int      // raw flank pair counts
	N0     int         // contributing bin pairs per bucket
	Norms  [4]float64  // normalized scores
	LinkT  uint8       // bitmask of buckets with any evidence
}

// InterMatrix is the sparse collection of scaffold-pair link buckets
type InterMatrix struct {
	Resolution int
	Band       int // flank width in bins, from the fitted norm
	Links      map[[2]int]*InterLink
	Noise      float64 // background link density per square base
}

// EstimateInterRSS returns a conservative byte estimate for the inter build
func EstimateInterRSS(l *Layout, resolution, band int) int64 {
	n := int64(l.NumSeqs())
	return n * n * 4 * 8
}

// InterMatrixFromFile scans the link store and accumulates flank bucket
// counts for every scaffold pair with links near the respective ends
func InterMatrixFromFile(linkfile string, l *Layout, resolution, band, mapq int) (*InterMatrix, error) {
	m := &InterMatrix{
		Resolution: resolution,
		Band:       band,
		Links:      map[[2]int]*InterLink{},
	}
	flank := band * resolution
	interiorLinks := 0
	err := ScanLinks(linkfile, l, mapq, func(sa, pa, sb, pb int) {
		if sa == sb {
			return
		}
		la := l.Scaffolds[sa].Len
		lb := l.Scaffolds[sb].Len
		da := [2]int{pa, la - 1 - pa}
		db := [2]int{pb, lb - 1 - pb}
		if da[0] >= flank && da[1] >= flank && db[0] >= flank && db[1] >= flank {
			interiorLinks++
			return
		}
		key := [2]int{sa, sb}
		link, ok := m.Links[key]
		if !ok {
			link = &InterLink{C0: sa, C1: sb}
			m.Links[key] = link
		}
		for ea := 0; ea < 2; ea++ {
			for eb := 0; eb < 2; eb++ {
				if da[ea] < flank && db[eb] < flank {
					j := ea<<1 | eb
					link.N[j]++
					link.LinkT |= 1 << j
				}
			}
		}
	})
	if err != nil {
		return nil, err
	}

	// Background density from links away from every end
	interiorArea := 0.0
	totalInterior := 0.0
	for i := range l.Scaffolds {
		in := float64(max(l.Scaffolds[i].Len-2*flank, 0))
		interiorArea -= in * in
		totalInterior += in
	}
	interiorArea = (totalInterior*totalInterior + interiorArea) / 2
	if interiorArea > 0 {
		m.Noise = float64(interiorLinks) / interiorArea
	}
	log.Noticef("Inter matrix: %d linked pairs, noise = %.3g", len(m.Links), m.Noise)
	return m, nil
}

// InterNorms normalizes every bucket against the expected count under the
// hypothetical adjacency implied by its orientation, and returns la, the
// global mean normalized count per bucket
func (m *InterMatrix) InterNorms(l *Layout, norm *NormModel) float64 {
	totalRaw, totalExpected := 0.0, 0.0
	for _, link := range m.Links {
		b0 := (l.Scaffolds[link.C0].Len + m.Resolution - 1) / m.Resolution
		b1 := (l.Scaffolds[link.C1].Len + m.Resolution - 1) / m.Resolution
		m0 := min(b0, m.Band)
		m1 := min(b1, m.Band)
		expected := 0.0
		n0 := 0
		for i := 0; i < m0; i++ {
			for j := 0; j < m1 && i+j+1 < norm.R; j++ {
				expected += norm.Expected(i + j + 1)
				n0++
			}
		}
		link.N0 = n0
		for j := 0; j < 4; j++ {
			if expected > 0 {
				link.Norms[j] = float64(link.N[j]) / expected
			}
			totalRaw += float64(link.N[j])
		}
		totalExpected += 4 * expected
	}
	if totalExpected == 0 {
		return 0
	}
	la := totalRaw / totalExpected
	log.Noticef("Inter norms computed over %d pairs, la = %.4g", len(m.Links), la)
	return la
}

// LinkMat is the one-dimensional spanning-link profile of each scaffold,
// used by the break detectors. Counts[s][b] is the number of links whose two
// ends straddle bin b.
type LinkMat struct {
	Bin    int
	Counts [][]float64
}

// LinkMatFromFile builds the spanning-link profile. Links longer than
// distThres are ignored; the expected background implied by noise (per
// square base) is subtracted from every bin.
func LinkMatFromFile(linkfile string, l *Layout, mapq, distThres, bin int,
	noise float64) (*LinkMat, error) {
	m := &LinkMat{Bin: bin, Counts: make([][]float64, l.NumSeqs())}
	for i := range l.Scaffolds {
		m.Counts[i] = make([]float64, (l.Scaffolds[i].Len+bin-1)/bin)
	}
	err := ScanLinks(linkfile, l, mapq, func(sa, pa, sb, pb int) {
		if sa != sb || pb-pa > distThres {
			return
		}
		// A link supports the bins strictly between its two ends
		for b := pa/bin + 1; b < pb/bin && b < len(m.Counts[sa]); b++ {
			m.Counts[sa][b]++
		}
	})
	if err != nil {
		return nil, err
	}
	if noise > 0 {
		bg := noise * float64(bin) * float64(distThres)
		for s := range m.Counts {
			for b := range m.Counts[s] {
				m.Counts[s][b] -= bg
				if m.Counts[s][b] < 0 {
					m.Counts[s][b] = 0
				}
			}
		}
	}
	return m, nil
}

// String summarizes matrix dimensions for verbose logs
func (m *IntraMatrix) String() string {
	cells := 0
	for _, c := range m.Cells {
		cells += len(c)
	}
	return fmt.Sprintf("IntraMatrix(resolution=%d, band=%d, seqs=%d, cells=%d)",
		m.Resolution, m.Band, len(m.Bins), cells)
}
