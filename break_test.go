/*
 *  break_test.go
 *  yahs
 *
 *  Created by Haibao Tang on 07/06/21
 *  Copyright © 2021 Haibao Tang. All rights reserved.
 */

package yahs_test

import (
	"path/filepath"
	"testing"

	yahs "github.com/shulp2211/yahs"
)

func TestDetectBreakPointsProfileDrop(t *testing.T) {
	// 2000 bins of solid support with a dead zone around bin 1000
	cov := make([]float64, 2000)
	for b := range cov {
		cov[b] = 500
	}
	for b := 995; b <= 1005; b++ {
		cov[b] = 0
	}
	m := &yahs.LinkMat{Bin: 1000, Counts: [][]float64{cov}}

	breaks := yahs.DetectBreakPoints(m, 100000, yahs.ECMergeThresh,
		yahs.ECDualBreakThresh, yahs.ECFoldThresh)
	if len(breaks) != 1 {
		t.Fatalf("Got %d breaks; want 1", len(breaks))
	}
	if got := breaks[0].Pos; got < 995000 || got > 1005000 {
		t.Errorf("Break at %d; want within the dead zone around 1000000", got)
	}
}

func TestDetectBreakPointsEndMarginExcluded(t *testing.T) {
	// Support ramps near the ends the way real coverage does; the margin
	// keeps those ramps from being called
	cov := make([]float64, 500)
	for b := range cov {
		cov[b] = 300
	}
	for b := 0; b < 50; b++ {
		cov[b] = float64(b * 6)
		cov[len(cov)-1-b] = float64(b * 6)
	}
	m := &yahs.LinkMat{Bin: 1000, Counts: [][]float64{cov}}
	breaks := yahs.DetectBreakPoints(m, 100000, yahs.ECMergeThresh,
		yahs.ECDualBreakThresh, yahs.ECFoldThresh)
	if len(breaks) != 0 {
		t.Errorf("Got %d breaks on a clean profile; want 0", len(breaks))
	}
}

// Mis-assembled contig: two halves sharing no cross links. The first pass
// must cut near the junction, the second pass must find nothing new.
func TestContigBreakIdempotence(t *testing.T) {
	dir := t.TempDir()
	fai := writeFile(t, dir, "test.fa.fai", "C\t2000000\t0\t60\t61\n")
	d, _ := yahs.MakeSeqDictFromIndex(fai, 0)
	l := yahs.NewLayoutFromSeqDict(d)

	var links []link
	for _, half := range []int{0, 1} {
		for k := 0; k < 8000; k++ {
			pa := half*1000000 + (k*9973)%900000
			span := 1000 + (k*61)%99000
			links = append(links, link{0, pa, 0, pa + span, 60})
		}
	}
	bin := writeLinks(t, dir, "test.bin", links)

	distThres := 100000
	m, err := yahs.LinkMatFromFile(bin, l, 0, distThres, yahs.ECBin, 0)
	if err != nil {
		t.Fatal(err)
	}
	breaks := yahs.DetectBreakPoints(m, distThres, yahs.ECMergeThresh,
		yahs.ECDualBreakThresh, yahs.ECFoldThresh)
	if len(breaks) == 0 {
		t.Fatal("Expected a break near the junction, got none")
	}
	for _, bp := range breaks {
		if bp.Pos < 900000 || bp.Pos > 1100000 {
			t.Fatalf("Break at %d; want near 1000000", bp.Pos)
		}
	}

	out := filepath.Join(dir, "break.agp")
	if err := yahs.WriteBreakAGP(l, breaks, out); err != nil {
		t.Fatal(err)
	}
	l2, err := yahs.NewLayoutFromAGP(d, out)
	if err != nil {
		t.Fatal(err)
	}
	if l2.NumSeqs() != len(breaks)+1 {
		t.Fatalf("Expected %d pieces, got %d", len(breaks)+1, l2.NumSeqs())
	}

	// Second pass on the broken layout: same evidence, no new breaks
	m2, err := yahs.LinkMatFromFile(bin, l2, 0, distThres, yahs.ECBin, 0)
	if err != nil {
		t.Fatal(err)
	}
	again := yahs.DetectBreakPoints(m2, distThres, yahs.ECMergeThresh,
		yahs.ECDualBreakThresh, yahs.ECFoldThresh)
	if len(again) != 0 {
		t.Errorf("Second pass made %d breaks; want 0", len(again))
	}
}

func TestDetectBreakPointsLocalJoint(t *testing.T) {
	dir := t.TempDir()
	fai := writeFile(t, dir, "test.fa.fai", "A\t100000\t0\t60\t61\nB\t100000\t0\t60\t61\n")
	d, _ := yahs.MakeSeqDictFromIndex(fai, 0)
	agp := writeFile(t, dir, "join.agp",
		"scaffold_1\t1\t100000\t1\tW\tA\t1\t100000\t+\n"+
			"scaffold_1\t100101\t200100\t2\tW\tB\t1\t100000\t+\n")
	l, err := yahs.NewLayoutFromAGP(d, agp)
	if err != nil {
		t.Fatal(err)
	}

	// Plenty of support inside each contig, nothing across the join
	var links []link
	links = append(links, intraLinks(0, 4000, 100000, 50000)...)
	links = append(links, intraLinks(1, 4000, 100000, 50000)...)
	bin := writeLinks(t, dir, "test.bin", links)

	flank := 50000
	m, err := yahs.LinkMatFromFile(bin, l, 0, flank*2, yahs.ECBin, 0)
	if err != nil {
		t.Fatal(err)
	}
	breaks := yahs.DetectBreakPointsLocalJoint(m, l, flank, yahs.ECFoldThresh)
	if len(breaks) != 1 {
		t.Fatalf("Got %d joint breaks; want 1", len(breaks))
	}
	if breaks[0].Pos != 100100 {
		t.Errorf("Joint break at %d; want 100100", breaks[0].Pos)
	}
	if breaks[0].Kind != yahs.KindJoint {
		t.Errorf("Break kind = %v; want KindJoint", breaks[0].Kind)
	}
}
