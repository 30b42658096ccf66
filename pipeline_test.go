/*
 *  pipeline_test.go
 *  yahs
 *
 *  Created by Haibao Tang on 07/08/21
 *  Copyright © 2021 Haibao Tang. All rights reserved.
 */

package yahs_test

import (
	"os"
	"path/filepath"
	"testing"

	yahs "github.com/shulp2211/yahs"
)

// twoContigLinks builds the canonical two-contig dataset: uniform links
// inside A and B plus a cluster joining A's tail to B's head
func twoContigLinks() []link {
	var links []link
	links = append(links, intraLinks(0, 10000, 1000000, 100000)...)
	links = append(links, intraLinks(1, 10000, 1000000, 100000)...)
	links = append(links, crossLinks(0, 1000000, 1, 500, 50000)...)
	return links
}

func scaffoldConfig(dir, prefix, fai, bin string) yahs.Config {
	return yahs.Config{
		Faifile:     fai,
		Linkfile:    bin,
		OutPrefix:   filepath.Join(dir, prefix),
		Resolutions: []int{50000},
		Mapq:        10,
		NoContigEC:  true,
		NoMemCheck:  true,
		RSSLimit:    -1,
	}
}

// readFinal loads the final AGP of a finished run
func readFinal(t *testing.T, p *yahs.Pipeline, fai string) *yahs.Layout {
	t.Helper()
	d, err := yahs.MakeSeqDictFromIndex(fai, 0)
	if err != nil {
		t.Fatal(err)
	}
	l, err := yahs.NewLayoutFromAGP(d, p.FinalAGP)
	if err != nil {
		t.Fatal(err)
	}
	return l
}

// Two contigs, one true join: a single scaffold A+ B+
func TestPipelineTrueJoin(t *testing.T) {
	dir := t.TempDir()
	fai := writeFile(t, dir, "test.fa.fai", "A\t1000000\t0\t60\t61\nB\t1000000\t0\t60\t61\n")
	bin := writeLinks(t, dir, "test.bin", twoContigLinks())

	p := &yahs.Pipeline{Config: scaffoldConfig(dir, "s1", fai, bin)}
	if err := p.Run(); err != nil {
		t.Fatal(err)
	}

	l := readFinal(t, p, fai)
	if l.NumSeqs() != 1 {
		t.Fatalf("Final layout has %d scaffolds; want 1", l.NumSeqs())
	}
	if l.Scaffolds[0].Len != 2000000+yahs.GapSize {
		t.Errorf("Final scaffold length = %d; want %d", l.Scaffolds[0].Len, 2000000+yahs.GapSize)
	}
	segs := l.SegsOf(0)
	if len(segs) != 2 {
		t.Fatalf("Final scaffold has %d segments; want 2", len(segs))
	}
	if segs[0].SeqID != 0 || segs[0].Ori != '+' || segs[1].SeqID != 1 || segs[1].Ori != '+' {
		t.Errorf("Final order = %d%c %d%c; want 0+ 1+",
			segs[0].SeqID, segs[0].Ori, segs[1].SeqID, segs[1].Ori)
	}
}

// Memory escalation: the first resolution exceeds the budget, the second
// succeeds
func TestPipelineMemoryEscalation(t *testing.T) {
	dir := t.TempDir()
	fai := writeFile(t, dir, "test.fa.fai", "A\t1000000\t0\t60\t61\nB\t1000000\t0\t60\t61\n")
	bin := writeLinks(t, dir, "test.bin", twoContigLinks())

	config := scaffoldConfig(dir, "s4", fai, bin)
	config.Resolutions = []int{20000, 50000}
	config.NoMemCheck = false
	config.RSSLimit = 20000
	p := &yahs.Pipeline{Config: config}
	if err := p.Run(); err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(filepath.Join(dir, "s4_r01.agp")); !os.IsNotExist(err) {
		t.Error("Round 1 should have been skipped with NOMEM")
	}
	if _, err := os.Stat(filepath.Join(dir, "s4_r02.agp")); err != nil {
		t.Error("Round 2 should have produced an AGP")
	}
	l := readFinal(t, p, fai)
	if l.NumSeqs() != 1 || l.Scaffolds[0].Len != 2000000+yahs.GapSize {
		t.Errorf("Final layout: %d scaffolds, len %d; want 1 scaffold of %d",
			l.NumSeqs(), l.Scaffolds[0].Len, 2000000+yahs.GapSize)
	}
}

// Rescaffolding a correct layout is a no-op
func TestPipelineRescaffoldIdempotent(t *testing.T) {
	dir := t.TempDir()
	fai := writeFile(t, dir, "test.fa.fai", "A\t1000000\t0\t60\t61\nB\t1000000\t0\t60\t61\n")
	bin := writeLinks(t, dir, "test.bin", twoContigLinks())

	p1 := &yahs.Pipeline{Config: scaffoldConfig(dir, "first", fai, bin)}
	if err := p1.Run(); err != nil {
		t.Fatal(err)
	}

	config := scaffoldConfig(dir, "second", fai, bin)
	config.AGPfile = p1.FinalAGP
	p2 := &yahs.Pipeline{Config: config}
	if err := p2.Run(); err != nil {
		t.Fatal(err)
	}

	l1 := readFinal(t, p1, fai)
	l2 := readFinal(t, p2, fai)
	if l1.NumSeqs() != l2.NumSeqs() {
		t.Fatalf("Rescaffolding changed scaffold count: %d -> %d", l1.NumSeqs(), l2.NumSeqs())
	}
	for i := range l1.Scaffolds {
		s1, s2 := l1.SegsOf(i), l2.SegsOf(i)
		if len(s1) != len(s2) {
			t.Fatalf("Scaffold %d segment count changed: %d -> %d", i, len(s1), len(s2))
		}
		for j := range s1 {
			if s1[j].SeqID != s2[j].SeqID || s1[j].SeqStart != s2[j].SeqStart ||
				s1[j].Len != s2[j].Len || s1[j].Ori != s2[j].Ori {
				t.Errorf("Scaffold %d segment %d changed: %+v -> %+v", i, j, s1[j], s2[j])
			}
		}
	}
}
