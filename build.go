/**
 * Filename: /Users/bao/code/yahs/build.go
 * Path: /Users/bao/code/yahs
 * Created Date: Thursday, July 1st 2021, 10:21:08 pm
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
	"strings"

	"github.com/shenwei356/bio/seq"
	"github.com/shenwei356/bio/seqio/fastx"
)

// lineWidth is the column width of emitted FASTA sequences
const lineWidth = 60

// revCompTable complements nucleotides, preserving case
var revCompTable [128]byte

func init() {
	for i := range revCompTable {
		revCompTable[i] = byte(i)
	}
	for _, p := range [][2]byte{
		{'A', 'T'}, {'C', 'G'}, {'G', 'C'}, {'T', 'A'},
		{'a', 't'}, {'c', 'g'}, {'g', 'c'}, {'t', 'a'},
	} {
		revCompTable[p[0]] = p[1]
	}
}

// revComp reverse-complements a sequence into a fresh slice
func revComp(s []byte) []byte {
	out := make([]byte, len(s))
	for i, c := range s {
		out[len(s)-1-i] = revCompTable[c&0x7f]
	}
	return out
}

// WriteScaffoldFASTA synthesizes the scaffold sequences described by an AGP
// from the assembly FASTA: W rows copy (possibly reverse-complemented)
// contig intervals, gap rows emit runs of N
func WriteScaffoldFASTA(fastafile, agpfile, outfile string) error {
	reader, err := fastx.NewDefaultReader(fastafile)
	if err != nil {
		return fmt.Errorf("cannot open FASTA `%s`: %w", fastafile, err)
	}
	seq.ValidateSeq = false

	seqs := map[string][]byte{}
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("cannot read FASTA `%s`: %w", fastafile, err)
		}
		name := strings.Fields(string(rec.Name))[0]
		s := make([]byte, len(rec.Seq.Seq))
		copy(s, rec.Seq.Seq)
		seqs[name] = s
	}

	lines, err := readAGPLines(agpfile)
	if err != nil {
		return err
	}

	f, err := os.Create(outfile)
	if err != nil {
		return fmt.Errorf("cannot open file `%s` for writing: %w", outfile, err)
	}
	defer f.Close()
	w := bufio.NewWriter(f)

	var object string
	col := 0
	emit := func(s []byte) {
		for len(s) > 0 {
			room := lineWidth - col
			if room > len(s) {
				room = len(s)
			}
			w.Write(s[:room])
			col += room
			s = s[room:]
			if col == lineWidth {
				w.WriteByte('\n')
				col = 0
			}
		}
	}
	for _, line := range lines {
		if line.object != object {
			if object != "" && col > 0 {
				w.WriteByte('\n')
				col = 0
			}
			object = line.object
			fmt.Fprintf(w, ">%s\n", object)
		}
		if line.isGap {
			emit([]byte(strings.Repeat("N", line.gapLength)))
			continue
		}
		s, ok := seqs[line.componentID]
		if !ok {
			return fmt.Errorf("AGP `%s` references unknown sequence `%s`",
				agpfile, line.componentID)
		}
		chunk := s[line.componentBeg-1 : line.componentEnd]
		if line.strand == '-' {
			chunk = revComp(chunk)
		}
		emit(chunk)
	}
	if col > 0 {
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		return err
	}
	log.Noticef("Scaffold sequences written to `%s`", outfile)
	return nil
}
