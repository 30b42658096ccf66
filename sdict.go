/**
 * Filename: /Users/bao/code/yahs/sdict.go
 * Path: /Users/bao/code/yahs
 * Created Date: Tuesday, June 22nd 2021, 9:03:11 pm
 * Author: bao
 *
 * Copyright (c) 2021 Haibao Tang
 */

package yahs

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/shenwei356/xopen"
)

// SeqEntry stores the name and length of one contig
type SeqEntry struct {
	Name string
	Len  int
}

// SeqDict is a bijective mapping between contig names and dense indices
type SeqDict struct {
	Seqs  []SeqEntry
	index map[string]int
}

// NewSeqDict makes an empty sequence dictionary
func NewSeqDict() *SeqDict {
	return &SeqDict{index: map[string]int{}}
}

// Put registers a contig and returns its index; a duplicate name is an error
func (d *SeqDict) Put(name string, length int) (int, error) {
	if _, ok := d.index[name]; ok {
		return -1, fmt.Errorf("duplicate sequence name `%s`", name)
	}
	id := len(d.Seqs)
	d.Seqs = append(d.Seqs, SeqEntry{Name: name, Len: length})
	d.index[name] = id
	return id, nil
}

// Get returns the index of a contig, or -1 when absent
func (d *SeqDict) Get(name string) int {
	if id, ok := d.index[name]; ok {
		return id
	}
	return -1
}

// TotalLen sums the lengths of all contigs
func (d *SeqDict) TotalLen() int64 {
	total := int64(0)
	for _, s := range d.Seqs {
		total += int64(s.Len)
	}
	return total
}

// MakeSeqDictFromIndex parses a FAI index, keeping contigs of at least minLen bases.
// Only the name and length columns are read.
func MakeSeqDictFromIndex(faifile string, minLen int) (*SeqDict, error) {
	fh, err := xopen.Ropen(faifile)
	if err != nil {
		return nil, fmt.Errorf("cannot open index `%s`: %w", faifile, err)
	}
	defer fh.Close()

	d := NewSeqDict()
	for {
		row, err := fh.ReadString('\n')
		row = strings.TrimSpace(row)
		if row == "" && err == io.EOF {
			break
		}
		if row != "" {
			fields := strings.Fields(row)
			if len(fields) < 2 {
				return nil, fmt.Errorf("malformed FAI row `%s`", row)
			}
			length, perr := strconv.Atoi(fields[1])
			if perr != nil || length < 0 {
				return nil, fmt.Errorf("malformed FAI length `%s`", fields[1])
			}
			if length < minLen {
				continue
			}
			if _, perr := d.Put(fields[0], length); perr != nil {
				return nil, perr
			}
		}
		if err == io.EOF {
			break
		}
	}
	log.Noticef("Loaded %d sequences (minLen = %d) from `%s`", len(d.Seqs), minLen, faifile)
	return d, nil
}

// Segment is an oriented sub-interval of a source contig placed on a scaffold
type Segment struct {
	Scaf      int  // owning scaffold
	SeqID     int  // source contig
	SeqStart  int  // start on the source contig, 0-based
	ScafStart int  // start on the scaffold, 0-based
	Len       int
	Ori       byte // '+' or '-'
}

// SeqEnd returns the exclusive end of the segment on the source contig
func (s Segment) SeqEnd() int {
	return s.SeqStart + s.Len
}

// Scaffold is an ordered run of segments in the flat segment array of a Layout
type Scaffold struct {
	Name     string
	Len      int // includes gaps
	SegStart int
	SegCount int
}

// Layout is an assembly dictionary: scaffolds over contigs, with a coordinate
// conversion oracle from contig space into scaffold space
type Layout struct {
	Sdict     *SeqDict
	Scaffolds []Scaffold
	Segs      []Segment
	bySeq     [][]int32 // per contig: segment ids sorted by SeqStart
	index     map[string]int
}

// NumSeqs returns the number of scaffolds
func (l *Layout) NumSeqs() int {
	return len(l.Scaffolds)
}

// SegsOf returns the segments of one scaffold
func (l *Layout) SegsOf(i int) []Segment {
	s := l.Scaffolds[i]
	return l.Segs[s.SegStart : s.SegStart+s.SegCount]
}

// GetScaffold returns the index of a scaffold by name, or -1
func (l *Layout) GetScaffold(name string) int {
	if id, ok := l.index[name]; ok {
		return id
	}
	return -1
}

// finish builds the per-contig segment index used by CoordConvert
func (l *Layout) finish() {
	l.index = map[string]int{}
	for i, s := range l.Scaffolds {
		l.index[s.Name] = i
	}
	l.bySeq = make([][]int32, len(l.Sdict.Seqs))
	for i, seg := range l.Segs {
		l.bySeq[seg.SeqID] = append(l.bySeq[seg.SeqID], int32(i))
	}
	for _, segs := range l.bySeq {
		sort.Slice(segs, func(i, j int) bool {
			return l.Segs[segs[i]].SeqStart < l.Segs[segs[j]].SeqStart
		})
	}
}

// CoordConvert maps a contig position to its scaffold position and orientation.
// The last return is false when the position falls outside every placed segment.
func (l *Layout) CoordConvert(seqID, pos int) (int, int, byte, bool) {
	if seqID < 0 || seqID >= len(l.bySeq) {
		return -1, -1, 0, false
	}
	segs := l.bySeq[seqID]
	// First segment starting beyond pos; the candidate is the one before it
	k := sort.Search(len(segs), func(i int) bool {
		return l.Segs[segs[i]].SeqStart > pos
	})
	if k == 0 {
		return -1, -1, 0, false
	}
	seg := l.Segs[segs[k-1]]
	if pos >= seg.SeqEnd() {
		return -1, -1, 0, false
	}
	offset := pos - seg.SeqStart
	if seg.Ori == '-' {
		offset = seg.Len - 1 - offset
	}
	return seg.Scaf, seg.ScafStart + offset, seg.Ori, true
}

// NewLayoutFromSeqDict makes the trivial layout with one scaffold per contig
func NewLayoutFromSeqDict(d *SeqDict) *Layout {
	l := &Layout{Sdict: d}
	for i, s := range d.Seqs {
		l.Scaffolds = append(l.Scaffolds, Scaffold{
			Name:     s.Name,
			Len:      s.Len,
			SegStart: i,
			SegCount: 1,
		})
		l.Segs = append(l.Segs, Segment{
			Scaf:  i,
			SeqID: i,
			Len:   s.Len,
			Ori:   '+',
		})
	}
	l.finish()
	return l
}

// Stats computes the Nx curve of the layout: lengths[i] is the N(10*(i+1))
// length and counts[i] the number of scaffolds at or above it
func (l *Layout) Stats() (lengths [10]int64, counts [10]int) {
	sizes := make([]int64, 0, len(l.Scaffolds))
	total := int64(0)
	for _, s := range l.Scaffolds {
		sizes = append(sizes, int64(s.Len))
		total += int64(s.Len)
	}
	sort.Slice(sizes, func(i, j int) bool { return sizes[i] > sizes[j] })

	cumsize := int64(0)
	k := 0
	for i, size := range sizes {
		cumsize += size
		for k < 10 && cumsize*10 >= total*int64(k+1) {
			lengths[k] = size
			counts[k] = i + 1
			k++
		}
	}
	return
}

// LogStats prints assembly statistics the way each round reports them
func (l *Layout) LogStats(all bool) {
	lengths, counts := l.Stats()
	log.Noticef("assembly stats:")
	log.Noticef(" N50: %d (n = %d)", lengths[4], counts[4])
	log.Noticef(" N90: %d (n = %d)", lengths[8], counts[8])
	if all {
		log.Noticef(" N100: %d (n = %d)", lengths[9], counts[9])
	}
}

// gapsOf returns the gap intervals of a scaffold in scaffold coordinates,
// derived as the complement of its segments
func (l *Layout) gapsOf(i int) [][2]int {
	segs := l.SegsOf(i)
	var gaps [][2]int
	prevEnd := 0
	for _, seg := range segs {
		if seg.ScafStart > prevEnd {
			gaps = append(gaps, [2]int{prevEnd, seg.ScafStart})
		}
		prevEnd = seg.ScafStart + seg.Len
	}
	if prevEnd < l.Scaffolds[i].Len {
		gaps = append(gaps, [2]int{prevEnd, l.Scaffolds[i].Len})
	}
	return gaps
}

// effBinSizes computes the per-bin effective size of a scaffold at a given
// resolution: the bin width minus the positions falling inside gaps
func (l *Layout) effBinSizes(i, resolution int) []float64 {
	length := l.Scaffolds[i].Len
	nbins := (length + resolution - 1) / resolution
	eff := make([]float64, nbins)
	for b := 0; b < nbins; b++ {
		end := min((b+1)*resolution, length)
		eff[b] = float64(end - b*resolution)
	}
	for _, gap := range l.gapsOf(i) {
		for b := gap[0] / resolution; b <= (gap[1]-1)/resolution && b < nbins; b++ {
			lo := max(gap[0], b*resolution)
			hi := min(gap[1], (b+1)*resolution)
			eff[b] -= float64(hi - lo)
		}
	}
	return eff
}
