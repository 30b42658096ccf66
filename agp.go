/**
 * Filename: /Users/bao/code/yahs/agp.go
 * Path: /Users/bao/code/yahs
 * Created Date: Wednesday, June 23rd 2021, 7:44:02 pm
 * Author: bao
 *
 * Copyright (c) 2021 Haibao Tang
 */

package yahs

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/shenwei356/xopen"
)

// AGPLine is a line in the AGP file
type AGPLine struct {
	object        string
	objectBeg     int
	objectEnd     int
	partNumber    int
	componentType byte
	isGap         bool
	// As a gap
	gapLength int
	// As a sequence chunk
	componentID  string
	componentBeg int
	componentEnd int
	strand       byte
}

// readAGPLines parses all rows of an AGP file
func readAGPLines(agpfile string) ([]AGPLine, error) {
	fh, err := xopen.Ropen(agpfile)
	if err != nil {
		return nil, fmt.Errorf("cannot open AGP `%s`: %w", agpfile, err)
	}
	defer fh.Close()

	var lines []AGPLine
	for {
		row, err := fh.ReadString('\n')
		row = strings.TrimSpace(row)
		if row == "" && err == io.EOF {
			break
		}
		if row != "" && !strings.HasPrefix(row, "#") {
			words := strings.Split(row, "\t")
			if len(words) < 6 {
				return nil, fmt.Errorf("malformed AGP row `%s`", row)
			}
			var line AGPLine
			line.object = words[0]
			line.objectBeg, _ = strconv.Atoi(words[1])
			line.objectEnd, _ = strconv.Atoi(words[2])
			line.partNumber, _ = strconv.Atoi(words[3])
			line.componentType = words[4][0]
			switch line.componentType {
			case 'N', 'U':
				line.isGap = true
				line.gapLength, _ = strconv.Atoi(words[5])
			case 'W':
				if len(words) < 9 {
					return nil, fmt.Errorf("malformed AGP component row `%s`", row)
				}
				line.componentID = words[5]
				line.componentBeg, _ = strconv.Atoi(words[6])
				line.componentEnd, _ = strconv.Atoi(words[7])
				line.strand = words[8][0]
				if line.strand != '+' && line.strand != '-' {
					line.strand = '+'
				}
			default:
				return nil, fmt.Errorf("unknown AGP component type `%c`", line.componentType)
			}
			lines = append(lines, line)
		}
		if err == io.EOF {
			break
		}
	}
	return lines, nil
}

// NewLayoutFromAGP builds an assembly layout from an AGP file. Contigs named
// in the AGP must exist in the sequence dictionary.
func NewLayoutFromAGP(d *SeqDict, agpfile string) (*Layout, error) {
	lines, err := readAGPLines(agpfile)
	if err != nil {
		return nil, err
	}

	l := &Layout{Sdict: d}
	cur := -1
	for _, line := range lines {
		if cur < 0 || l.Scaffolds[cur].Name != line.object {
			l.Scaffolds = append(l.Scaffolds, Scaffold{
				Name:     line.object,
				SegStart: len(l.Segs),
			})
			cur = len(l.Scaffolds) - 1
		}
		scaf := &l.Scaffolds[cur]
		if line.objectEnd > scaf.Len {
			// Trust the component list over any declared scaffold length
			scaf.Len = line.objectEnd
		}
		if line.isGap {
			continue
		}
		seqID := d.Get(line.componentID)
		if seqID < 0 {
			return nil, fmt.Errorf("AGP `%s` references unknown sequence `%s`",
				agpfile, line.componentID)
		}
		l.Segs = append(l.Segs, Segment{
			Scaf:      cur,
			SeqID:     seqID,
			SeqStart:  line.componentBeg - 1,
			ScafStart: line.objectBeg - 1,
			Len:       line.componentEnd - line.componentBeg + 1,
			Ori:       line.strand,
		})
		scaf.SegCount++
	}
	l.finish()
	log.Noticef("Loaded %d scaffolds (%d segments) from `%s`",
		len(l.Scaffolds), len(l.Segs), agpfile)
	return l, nil
}

// writeAGPRows emits one scaffold per segment list, naming objects
// scaffold_1..N and separating adjacent segments with nominal gaps
func writeAGPRows(w io.Writer, d *SeqDict, segLists [][]Segment) {
	for i, segs := range segLists {
		object := fmt.Sprintf("scaffold_%d", i+1)
		objectBeg := 1
		partNumber := 0
		for j, seg := range segs {
			if j > 0 {
				objectEnd := objectBeg + GapSize - 1
				partNumber++
				fmt.Fprintf(w, "%s\t%d\t%d\t%d\tN\t%d\tscaffold\tyes\tproximity_ligation\n",
					object, objectBeg, objectEnd, partNumber, GapSize)
				objectBeg += GapSize
			}
			objectEnd := objectBeg + seg.Len - 1
			partNumber++
			fmt.Fprintf(w, "%s\t%d\t%d\t%d\tW\t%s\t%d\t%d\t%c\n",
				object, objectBeg, objectEnd, partNumber,
				d.Seqs[seg.SeqID].Name, seg.SeqStart+1, seg.SeqEnd(), seg.Ori)
			objectBeg += seg.Len
		}
	}
}

// writeAGPFile is the shared writer entry
func writeAGPFile(d *SeqDict, segLists [][]Segment, outfile string) error {
	f, err := os.Create(outfile)
	if err != nil {
		return fmt.Errorf("cannot open file `%s` for writing: %w", outfile, err)
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	writeAGPRows(w, d, segLists)
	if err := w.Flush(); err != nil {
		return err
	}
	components := 0
	for _, segs := range segLists {
		components += len(segs)
	}
	log.Noticef("A total of %d scaffolds (%d components) written to `%s`",
		len(segLists), components, outfile)
	return nil
}

// WriteSeqDictAGP writes the trivial one-contig-per-scaffold AGP
func WriteSeqDictAGP(d *SeqDict, outfile string) error {
	segLists := make([][]Segment, len(d.Seqs))
	for i, s := range d.Seqs {
		segLists[i] = []Segment{{SeqID: i, Len: s.Len, Ori: '+'}}
	}
	return writeAGPFile(d, segLists, outfile)
}

// splitSegments cuts the segments of one scaffold at the given ascending
// scaffold positions, returning one segment list per resulting piece
func splitSegments(segs []Segment, cuts []int) [][]Segment {
	pieces := [][]Segment{}
	current := []Segment{}
	k := 0
	for _, seg := range segs {
		remaining := seg
		for k < len(cuts) && cuts[k] < remaining.ScafStart+remaining.Len {
			cut := cuts[k]
			if cut <= remaining.ScafStart {
				// Cut falls in the preceding gap
				if len(current) > 0 {
					pieces = append(pieces, current)
					current = []Segment{}
				}
				k++
				continue
			}
			o := cut - remaining.ScafStart
			left, right := remaining, remaining
			left.Len = o
			right.Len = remaining.Len - o
			right.ScafStart = cut
			if remaining.Ori == '+' {
				right.SeqStart = remaining.SeqStart + o
			} else {
				left.SeqStart = remaining.SeqStart + remaining.Len - o
			}
			current = append(current, left)
			pieces = append(pieces, current)
			current = []Segment{}
			remaining = right
			k++
		}
		current = append(current, remaining)
	}
	if len(current) > 0 {
		pieces = append(pieces, current)
	}
	return pieces
}

// WriteBreakAGP applies break points to a layout and writes the broken AGP
func WriteBreakAGP(l *Layout, breaks []BreakPoint, outfile string) error {
	cutsOf := map[int][]int{}
	for _, bp := range breaks {
		cutsOf[bp.Scaf] = append(cutsOf[bp.Scaf], bp.Pos)
	}
	var segLists [][]Segment
	for i := range l.Scaffolds {
		cuts := cutsOf[i]
		sort.Ints(cuts)
		segLists = append(segLists, splitSegments(l.SegsOf(i), cuts)...)
	}
	return writeAGPFile(l.Sdict, segLists, outfile)
}

// WritePathAGP writes the scaffolds implied by a path cover over the layout
func WritePathAGP(l *Layout, paths []ScafPath, outfile string) error {
	var segLists [][]Segment
	for _, p := range paths {
		var segs []Segment
		for i, scaf := range p.Scaffolds {
			part := append([]Segment{}, l.SegsOf(scaf)...)
			if p.Orientations[i] == '-' {
				reverseSegments(part)
			}
			segs = append(segs, part...)
		}
		segLists = append(segLists, segs)
	}
	return writeAGPFile(l.Sdict, segLists, outfile)
}

// reverseSegments flips a segment run in place, complementing orientations
func reverseSegments(segs []Segment) {
	for i, j := 0, len(segs)-1; i < j; i, j = i+1, j-1 {
		segs[i], segs[j] = segs[j], segs[i]
	}
	for i := range segs {
		if segs[i].Ori == '+' {
			segs[i].Ori = '-'
		} else {
			segs[i].Ori = '+'
		}
	}
}

// WriteSortedAGP writes the final AGP with scaffolds sorted by decreasing length
func WriteSortedAGP(l *Layout, outfile string) error {
	order := make([]int, len(l.Scaffolds))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return l.Scaffolds[order[i]].Len > l.Scaffolds[order[j]].Len
	})
	var segLists [][]Segment
	for _, i := range order {
		segLists = append(segLists, l.SegsOf(i))
	}
	return writeAGPFile(l.Sdict, segLists, outfile)
}

// AddUnplacedShort appends contigs missing from the layout as singleton
// scaffolds, used at finalization to merge back the minLen-filtered sequences
func (l *Layout) AddUnplacedShort() int {
	placed := make([]bool, len(l.Sdict.Seqs))
	for _, seg := range l.Segs {
		placed[seg.SeqID] = true
	}
	added := 0
	for i, s := range l.Sdict.Seqs {
		if placed[i] {
			continue
		}
		scaf := len(l.Scaffolds)
		l.Scaffolds = append(l.Scaffolds, Scaffold{
			Name:     s.Name,
			Len:      s.Len,
			SegStart: len(l.Segs),
			SegCount: 1,
		})
		l.Segs = append(l.Segs, Segment{
			Scaf:  scaf,
			SeqID: i,
			Len:   s.Len,
			Ori:   '+',
		})
		added++
	}
	if added > 0 {
		l.finish()
		log.Noticef("Added %d unplaced short sequences back", added)
	}
	return added
}
