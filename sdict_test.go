/*
 *  sdict_test.go
 *  yahs
 *
 *  Created by Haibao Tang on 07/03/21
 *  Copyright © 2021 Haibao Tang. All rights reserved.
 */

package yahs_test

import (
	"testing"

	yahs "github.com/shulp2211/yahs"
)

func TestSeqDictBijection(t *testing.T) {
	d := yahs.NewSeqDict()
	names := []string{"ctg1", "ctg2", "ctg3"}
	for i, name := range names {
		id, err := d.Put(name, 1000*(i+1))
		if err != nil {
			t.Fatalf("Put(%s) failed: %v", name, err)
		}
		if id != i {
			t.Errorf("Put(%s) = %d; want %d", name, id, i)
		}
	}
	for i, name := range names {
		if got := d.Get(name); got != i {
			t.Errorf("Get(%s) = %d; want %d", name, got, i)
		}
	}
	if _, err := d.Put("ctg2", 500); err == nil {
		t.Error("Put(duplicate) succeeded; want error")
	}
	if got := d.Get("nope"); got != -1 {
		t.Errorf("Get(absent) = %d; want -1", got)
	}
}

func TestMakeSeqDictFromIndex(t *testing.T) {
	dir := t.TempDir()
	fai := writeFile(t, dir, "test.fa.fai",
		"ctg1\t100000\t6\t60\t61\nctg2\t5000\t101673\t60\t61\nctg3\t200000\t106757\t60\t61\n")
	d, err := yahs.MakeSeqDictFromIndex(fai, 10000)
	if err != nil {
		t.Fatal(err)
	}
	if len(d.Seqs) != 2 {
		t.Fatalf("Expected 2 sequences after minLen filter, got %d", len(d.Seqs))
	}
	if d.Get("ctg2") != -1 {
		t.Error("Short contig ctg2 should be filtered")
	}
	if d.Seqs[d.Get("ctg3")].Len != 200000 {
		t.Error("ctg3 length mismatch")
	}
}

func TestCoordConvertRoundTrip(t *testing.T) {
	dir := t.TempDir()
	fai := writeFile(t, dir, "test.fa.fai", "A\t1000\t0\t60\t61\nB\t800\t0\t60\t61\n")
	d, err := yahs.MakeSeqDictFromIndex(fai, 0)
	if err != nil {
		t.Fatal(err)
	}
	agp := writeFile(t, dir, "test.agp",
		"scaffold_1\t1\t1000\t1\tW\tA\t1\t1000\t+\n"+
			"scaffold_1\t1001\t1100\t2\tN\t100\tscaffold\tyes\tproximity_ligation\n"+
			"scaffold_1\t1101\t1900\t3\tW\tB\t1\t800\t-\n")
	l, err := yahs.NewLayoutFromAGP(d, agp)
	if err != nil {
		t.Fatal(err)
	}
	if l.NumSeqs() != 1 || l.Scaffolds[0].Len != 1900 {
		t.Fatalf("Unexpected layout: %d scaffolds, len %d", l.NumSeqs(), l.Scaffolds[0].Len)
	}

	// Forward segment: positions map straight through
	for _, p := range []int{0, 1, 500, 999} {
		scaf, pos, ori, ok := l.CoordConvert(d.Get("A"), p)
		if !ok || scaf != 0 || pos != p || ori != '+' {
			t.Errorf("CoordConvert(A, %d) = (%d, %d, %c, %v); want (0, %d, +, true)",
				p, scaf, pos, ori, ok, p)
		}
	}
	// Reverse segment: position p maps to offset + (len-1-p)
	for _, p := range []int{0, 1, 400, 799} {
		scaf, pos, ori, ok := l.CoordConvert(d.Get("B"), p)
		want := 1100 + (800 - 1 - p)
		if !ok || scaf != 0 || pos != want || ori != '-' {
			t.Errorf("CoordConvert(B, %d) = (%d, %d, %c, %v); want (0, %d, -, true)",
				p, scaf, pos, ori, ok, want)
		}
	}
	// Outside every segment
	if _, _, _, ok := l.CoordConvert(d.Get("A"), 1000); ok {
		t.Error("CoordConvert(A, 1000) should be unmapped")
	}
}

func TestCoordConvertExcludedRegion(t *testing.T) {
	dir := t.TempDir()
	fai := writeFile(t, dir, "test.fa.fai", "A\t10000\t0\t60\t61\n")
	d, _ := yahs.MakeSeqDictFromIndex(fai, 0)
	// Only part of A is placed; the rest was excluded by a prior break
	agp := writeFile(t, dir, "test.agp",
		"scaffold_1\t1\t4000\t1\tW\tA\t1\t4000\t+\n"+
			"scaffold_2\t1\t5000\t1\tW\tA\t5001\t10000\t+\n")
	l, err := yahs.NewLayoutFromAGP(d, agp)
	if err != nil {
		t.Fatal(err)
	}
	if _, _, _, ok := l.CoordConvert(0, 4500); ok {
		t.Error("Position in excluded region should be unmapped")
	}
	scaf, pos, _, ok := l.CoordConvert(0, 5000)
	if !ok || scaf != 1 || pos != 0 {
		t.Errorf("CoordConvert(A, 5000) = (%d, %d, ok=%v); want (1, 0, true)", scaf, pos, ok)
	}
}

func TestLayoutFromAGPUnknownContig(t *testing.T) {
	dir := t.TempDir()
	fai := writeFile(t, dir, "test.fa.fai", "A\t1000\t0\t60\t61\n")
	d, _ := yahs.MakeSeqDictFromIndex(fai, 0)
	agp := writeFile(t, dir, "test.agp", "scaffold_1\t1\t500\t1\tW\tZZZ\t1\t500\t+\n")
	if _, err := yahs.NewLayoutFromAGP(d, agp); err == nil {
		t.Error("AGP with unknown contig should be rejected")
	}
}

func TestLayoutStats(t *testing.T) {
	d := yahs.NewSeqDict()
	for _, s := range []struct {
		name string
		l    int
	}{{"a", 500}, {"b", 300}, {"c", 200}} {
		if _, err := d.Put(s.name, s.l); err != nil {
			t.Fatal(err)
		}
	}
	l := yahs.NewLayoutFromSeqDict(d)
	lengths, counts := l.Stats()
	if lengths[4] != 500 || counts[4] != 1 {
		t.Errorf("N50 = %d (n=%d); want 500 (n=1)", lengths[4], counts[4])
	}
	if lengths[9] != 200 || counts[9] != 3 {
		t.Errorf("N100 = %d (n=%d); want 200 (n=3)", lengths[9], counts[9])
	}
}
