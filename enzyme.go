/**
 * Filename: /Users/bao/code/yahs/enzyme.go
 * Path: /Users/bao/code/yahs
 * Created Date: Friday, June 25th 2021, 8:02:33 pm
 * Author: bao
 *
 * Copyright (c) 2021 Haibao Tang
 */

package yahs

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/shenwei356/bio/seq"
	"github.com/shenwei356/bio/seqio/fastx"
)

// RECuts stores the restriction cut-site offsets of each contig, sorted
type RECuts struct {
	Motifs []string
	Sites  [][]int // indexed by contig id
}

// ExpandMotifs splits a comma-separated motif string and expands each N into
// the four nucleotides. Motifs must be alphabetic over {A,C,G,T,N}.
func ExpandMotifs(s string) ([]string, error) {
	var motifs []string
	for _, motif := range strings.Split(s, ",") {
		motif = strings.ToUpper(strings.TrimSpace(motif))
		if motif == "" {
			continue
		}
		n := -1
		for i, c := range motif {
			switch c {
			case 'A', 'C', 'G', 'T':
			case 'N':
				if n >= 0 {
					return nil, fmt.Errorf("invalid restriction site (multiple non-ACGT characters): %s", motif)
				}
				n = i
			default:
				return nil, fmt.Errorf("non-alphabetic or unknown character in restriction site: %s", motif)
			}
		}
		if n >= 0 {
			for _, c := range []byte{'A', 'C', 'G', 'T'} {
				expanded := []byte(motif)
				expanded[n] = c
				motifs = append(motifs, string(expanded))
			}
		} else {
			motifs = append(motifs, motif)
		}
	}
	if len(motifs) == 0 {
		return nil, fmt.Errorf("empty restriction site string")
	}
	return motifs, nil
}

// findSites collects every motif start offset in one sequence, sorted
func findSites(s []byte, motifs []string) []int {
	s = bytes.ToUpper(s)
	var sites []int
	for _, motif := range motifs {
		m := []byte(motif)
		for from := 0; ; {
			k := bytes.Index(s[from:], m)
			if k < 0 {
				break
			}
			sites = append(sites, from+k)
			from += k + 1
		}
	}
	sort.Ints(sites)
	return sites
}

// FindRECuts scans the assembly FASTA for restriction cut sites of every
// contig in the dictionary. Contigs absent from the dictionary are skipped.
func FindRECuts(fastafile string, d *SeqDict, motifs []string) (*RECuts, error) {
	reader, err := fastx.NewDefaultReader(fastafile)
	if err != nil {
		return nil, fmt.Errorf("cannot open FASTA `%s`: %w", fastafile, err)
	}
	seq.ValidateSeq = false // This flag makes parsing FASTA much faster

	cuts := &RECuts{
		Motifs: motifs,
		Sites:  make([][]int, len(d.Seqs)),
	}
	total := 0
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("cannot read FASTA `%s`: %w", fastafile, err)
		}
		name := strings.Fields(string(rec.Name))[0]
		id := d.Get(name)
		if id < 0 {
			continue
		}
		cuts.Sites[id] = findSites(rec.Seq.Seq, motifs)
		total += len(cuts.Sites[id])
	}
	log.Noticef("Found %d cut sites for %d motifs in `%s`", total, len(motifs), fastafile)
	return cuts, nil
}

// cutsPerBin projects the contig cut sites of one scaffold through the layout
// and counts them per bin at the given resolution
func (c *RECuts) cutsPerBin(l *Layout, scaf, resolution int) []float64 {
	length := l.Scaffolds[scaf].Len
	nbins := (length + resolution - 1) / resolution
	counts := make([]float64, nbins)
	for _, seg := range l.SegsOf(scaf) {
		sites := c.Sites[seg.SeqID]
		// Sites inside this segment's contig interval
		lo := sort.SearchInts(sites, seg.SeqStart)
		hi := sort.SearchInts(sites, seg.SeqEnd())
		for _, site := range sites[lo:hi] {
			offset := site - seg.SeqStart
			if seg.Ori == '-' {
				offset = seg.Len - 1 - offset
			}
			counts[(seg.ScafStart+offset)/resolution]++
		}
	}
	return counts
}
