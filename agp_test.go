/*
 *  agp_test.go
 *  yahs
 *
 *  Created by Haibao Tang on 07/04/21
 *  Copyright © 2021 Haibao Tang. All rights reserved.
 */

package yahs_test

import (
	"path/filepath"
	"testing"

	yahs "github.com/shulp2211/yahs"
)

func TestWriteBreakAGPSplitsSegments(t *testing.T) {
	dir := t.TempDir()
	fai := writeFile(t, dir, "test.fa.fai", "A\t10000\t0\t60\t61\n")
	d, _ := yahs.MakeSeqDictFromIndex(fai, 0)
	l := yahs.NewLayoutFromSeqDict(d)

	out := filepath.Join(dir, "break.agp")
	breaks := []yahs.BreakPoint{{Scaf: 0, Pos: 4000, Kind: yahs.KindInternal}}
	if err := yahs.WriteBreakAGP(l, breaks, out); err != nil {
		t.Fatal(err)
	}

	l2, err := yahs.NewLayoutFromAGP(d, out)
	if err != nil {
		t.Fatal(err)
	}
	if l2.NumSeqs() != 2 {
		t.Fatalf("Expected 2 scaffolds after break, got %d", l2.NumSeqs())
	}
	if l2.Scaffolds[0].Len != 4000 || l2.Scaffolds[1].Len != 6000 {
		t.Errorf("Piece lengths = %d, %d; want 4000, 6000",
			l2.Scaffolds[0].Len, l2.Scaffolds[1].Len)
	}
	scaf, pos, _, ok := l2.CoordConvert(0, 4500)
	if !ok || scaf != 1 || pos != 500 {
		t.Errorf("CoordConvert(A, 4500) = (%d, %d, ok=%v); want (1, 500, true)", scaf, pos, ok)
	}
}

func TestWriteBreakAGPMinusSegment(t *testing.T) {
	dir := t.TempDir()
	fai := writeFile(t, dir, "test.fa.fai", "A\t10000\t0\t60\t61\n")
	d, _ := yahs.MakeSeqDictFromIndex(fai, 0)
	agp := writeFile(t, dir, "test.agp", "scaffold_1\t1\t10000\t1\tW\tA\t1\t10000\t-\n")
	l, err := yahs.NewLayoutFromAGP(d, agp)
	if err != nil {
		t.Fatal(err)
	}

	out := filepath.Join(dir, "break.agp")
	breaks := []yahs.BreakPoint{{Scaf: 0, Pos: 4000, Kind: yahs.KindInternal}}
	if err := yahs.WriteBreakAGP(l, breaks, out); err != nil {
		t.Fatal(err)
	}
	l2, err := yahs.NewLayoutFromAGP(d, out)
	if err != nil {
		t.Fatal(err)
	}
	if l2.NumSeqs() != 2 {
		t.Fatalf("Expected 2 scaffolds after break, got %d", l2.NumSeqs())
	}
	// Scaffold position 0 was contig position 9999; the first piece holds
	// contig interval [6000, 10000) reversed
	scaf, pos, ori, ok := l2.CoordConvert(0, 9999)
	if !ok || scaf != 0 || pos != 0 || ori != '-' {
		t.Errorf("CoordConvert(A, 9999) = (%d, %d, %c, %v); want (0, 0, -, true)",
			scaf, pos, ori, ok)
	}
	// Contig position 0 ends up at the end of the second piece
	scaf, pos, _, ok = l2.CoordConvert(0, 0)
	if !ok || scaf != 1 || pos != 5999 {
		t.Errorf("CoordConvert(A, 0) = (%d, %d, ok=%v); want (1, 5999, true)", scaf, pos, ok)
	}
}

func TestWriteSortedAGP(t *testing.T) {
	dir := t.TempDir()
	fai := writeFile(t, dir, "test.fa.fai", "a\t300\t0\t60\t61\nb\t900\t0\t60\t61\nc\t600\t0\t60\t61\n")
	d, _ := yahs.MakeSeqDictFromIndex(fai, 0)
	l := yahs.NewLayoutFromSeqDict(d)
	out := filepath.Join(dir, "final.agp")
	if err := yahs.WriteSortedAGP(l, out); err != nil {
		t.Fatal(err)
	}
	l2, err := yahs.NewLayoutFromAGP(d, out)
	if err != nil {
		t.Fatal(err)
	}
	prev := 1 << 30
	for _, s := range l2.Scaffolds {
		if s.Len > prev {
			t.Fatalf("Scaffolds not sorted by decreasing length: %d after %d", s.Len, prev)
		}
		prev = s.Len
	}
	if l2.Scaffolds[0].Len != 900 {
		t.Errorf("Longest scaffold = %d; want 900", l2.Scaffolds[0].Len)
	}
}

func TestAddUnplacedShort(t *testing.T) {
	dir := t.TempDir()
	fai := writeFile(t, dir, "test.fa.fai", "A\t10000\t0\t60\t61\nshorty\t500\t0\t60\t61\n")
	d, _ := yahs.MakeSeqDictFromIndex(fai, 0)
	agp := writeFile(t, dir, "test.agp", "scaffold_1\t1\t10000\t1\tW\tA\t1\t10000\t+\n")
	l, err := yahs.NewLayoutFromAGP(d, agp)
	if err != nil {
		t.Fatal(err)
	}
	if added := l.AddUnplacedShort(); added != 1 {
		t.Fatalf("AddUnplacedShort = %d; want 1", added)
	}
	if l.NumSeqs() != 2 {
		t.Fatalf("Expected 2 scaffolds, got %d", l.NumSeqs())
	}
	scaf, pos, _, ok := l.CoordConvert(d.Get("shorty"), 100)
	if !ok || scaf != 1 || pos != 100 {
		t.Errorf("CoordConvert(shorty, 100) = (%d, %d, ok=%v); want (1, 100, true)", scaf, pos, ok)
	}
}
