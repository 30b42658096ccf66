/**
 * Filename: /Users/bao/code/yahs/pipeline.go
 * Path: /Users/bao/code/yahs
 * Created Date: Wednesday, June 30th 2021, 8:55:21 pm
 * Author: bao
 *
 * Copyright (c) 2021 Haibao Tang
 */

package yahs

import (
	"fmt"
)

// Pipeline drives the multi-round scaffolding: optional contig error break,
// one scaffolding round per resolution, optional scaffold error break, and
// finalization. Dictionaries, matrices, norms and graphs live for one round;
// only AGP files persist between rounds.
type Pipeline struct {
	Config
	sdict    *SeqDict
	cuts     *RECuts
	rssLimit int64
	// FinalAGP is the path of the final sorted AGP after Run
	FinalAGP string
}

// Run executes the whole state machine and reports the first fatal error
func (p *Pipeline) Run() error {
	rssTotal := RAMLimit()
	p.rssLimit = p.RSSLimit
	if p.rssLimit < 0 {
		p.rssLimit = rssTotal
	}
	log.Noticef("RAM total: %.3fGB", float64(rssTotal)/GB)
	log.Noticef("RAM limit: %.3fGB", float64(p.rssLimit)/GB)
	if p.NoMemCheck {
		log.Noticef("RAM check disabled")
	}

	var err error
	p.sdict, err = MakeSeqDictFromIndex(p.Faifile, p.MinLen)
	if err != nil {
		return err
	}

	if p.Enzymes != "" {
		motifs, err := ExpandMotifs(p.Enzymes)
		if err != nil {
			return err
		}
		p.cuts, err = FindRECuts(p.Fastafile, p.sdict, motifs)
		if err != nil {
			return err
		}
	}

	// Stage 1: initial contig error break, unless a seed layout is given
	var lastAGP string
	switch {
	case p.AGPfile == "" && !p.NoContigEC:
		rounds, agp, err := p.contigErrorBreak()
		if err != nil {
			return err
		}
		log.Noticef("Performed %d rounds assembly error correction", rounds)
		lastAGP = agp
	case p.AGPfile != "":
		lastAGP = p.AGPfile
	default:
		lastAGP = p.OutPrefix + "_no_break.agp"
		if err := WriteSeqDictAGP(p.sdict, lastAGP); err != nil {
			return err
		}
	}

	layout, err := NewLayoutFromAGP(p.sdict, lastAGP)
	if err != nil {
		return err
	}
	if layout.NumSeqs() > MaxNumSeqs {
		log.Errorf("sequence number exceeds limit (%d > %d)", layout.NumSeqs(), MaxNumSeqs)
		log.Errorf("consider removing short sequences before scaffolding, or")
		log.Errorf("running without error correction (--no-contig-ec) if due to excessive contig error breaks")
		return ErrSeqLimit
	}
	layout.LogStats(true)

	// Stage 2: scaffolding rounds over ascending resolutions
	scaffolded := 0
	for r, resolution := range p.Resolutions {
		log.Noticef("Scaffolding round %d resolution = %d", r+1, resolution)
		layout, err = NewLayoutFromAGP(p.sdict, lastAGP)
		if err != nil {
			return err
		}
		lengths, _ := layout.Stats()
		if lengths[4] < int64(resolution)*10 {
			if scaffolded > 0 {
				log.Noticef("Assembly N50 (%d) too small. End of scaffolding.", lengths[4])
				break
			}
			log.Warningf("Assembly N50 (%d) too small. Scaffolding anyway...", lengths[4])
			log.Warningf("Consider running with increased memory limit if there was memory issue.")
		}

		outFn := fmt.Sprintf("%s_r%02d", p.OutPrefix, r+1)
		noise, err := p.runScaffolding(layout, resolution, outFn+".agp")
		switch err {
		case nil:
			outAGP := outFn + ".agp"
			if !p.NoScaffoldEC {
				outBreak := outFn + "_break.agp"
				if _, err := p.scaffoldErrorBreak(outAGP, resolution, noise, outBreak); err != nil {
					return err
				}
				lastAGP = outBreak
			} else {
				lastAGP = outAGP
			}
			scaffolded++
		case ErrNoMem:
			log.Noticef("No enough memory. Try higher resolutions... End of scaffolding round.")
			continue
		case ErrNoBands:
			log.Warningf("No enough bands for norm calculation... End of scaffolding round.")
		default:
			return err
		}
		if err == ErrNoBands {
			break
		}

		log.Noticef("Scaffolding round %d done", r+1)
		layout, err = NewLayoutFromAGP(p.sdict, lastAGP)
		if err != nil {
			return err
		}
		layout.LogStats(false)
	}

	return p.finalize(lastAGP)
}

// memCheck compares an estimate against the RAM limit
func (p *Pipeline) memCheck(estimate int64) error {
	if p.NoMemCheck {
		return nil
	}
	if p.rssLimit >= 0 && estimate > p.rssLimit {
		log.Noticef("RAM    limit: %.3fGB", float64(p.rssLimit)/GB)
		log.Noticef("RAM required: %.3fGB", float64(estimate)/GB)
		return ErrNoMem
	}
	return nil
}

// runScaffolding performs one round at the given resolution: intra matrix,
// norm fit, inter matrix, graph construction, pruning, path extraction, and
// the round's AGP. The returned noise feeds the scaffold error break.
func (p *Pipeline) runScaffolding(layout *Layout, resolution int, outfile string) (float64, error) {
	if err := p.memCheck(EstimateIntraRSS(layout, resolution)); err != nil {
		return 0, err
	}
	log.Noticef("Starting norm estimation...")
	intra, err := IntraMatrixFromFile(p.Linkfile, layout, p.cuts, resolution, p.Mapq)
	if err != nil {
		return 0, err
	}
	norm, err := CalcNorms(intra)
	if err != nil {
		return 0, err
	}
	if p.Verbose > 1 {
		largest := 0
		for s := range layout.Scaffolds {
			if layout.Scaffolds[s].Len > layout.Scaffolds[largest].Len {
				largest = s
			}
		}
		if err := intra.DumpNpy(largest, RemoveExt(outfile)+".npy"); err != nil {
			log.Warning(err)
		}
	}

	if err := p.memCheck(EstimateInterRSS(layout, resolution, norm.R)); err != nil {
		return 0, err
	}
	log.Noticef("Starting link estimation...")
	inter, err := InterMatrixFromFile(p.Linkfile, layout, resolution, norm.R, p.Mapq)
	if err != nil {
		return 0, err
	}
	la := inter.InterNorms(layout, norm)

	log.Noticef("Starting scaffolding graph construction...")
	g := BuildGraph(inter, layout, MinNorm, la)
	g.Prune()
	paths := g.SearchGraphPath()
	return inter.Noise, WritePathAGP(layout, paths, outfile)
}

// contigErrorBreak iterates the internal break detector until a round makes
// no cut, writing one AGP per round
func (p *Pipeline) contigErrorBreak() (int, string, error) {
	layout := NewLayoutFromSeqDict(p.sdict)
	distThres, err := EstimateDistThres(p.Linkfile, layout, 0, ECMinFrac, ECResolution)
	if err != nil {
		return 0, "", err
	}
	distThres = max(distThres, ECMinWindow)
	log.Noticef("Dist threshold for contig error break: %d", distThres)

	round, total := 0, 0
	var out string
	for {
		if round > 0 {
			var err error
			layout, err = NewLayoutFromAGP(p.sdict, out)
			if err != nil {
				return round, out, err
			}
		}
		linkMat, err := LinkMatFromFile(p.Linkfile, layout, 0, distThres, ECBin, 0)
		if err != nil {
			return round, out, err
		}
		breaks := DetectBreakPoints(linkMat, distThres, ECMergeThresh, ECDualBreakThresh, ECFoldThresh)
		round++
		out = fmt.Sprintf("%s_inital_break_%02d.agp", p.OutPrefix, round)
		if err := WriteBreakAGP(layout, breaks, out); err != nil {
			return round, out, err
		}
		total += len(breaks)
		if len(breaks) == 0 {
			break
		}
	}
	log.Noticef("Made %d breaks in %d rounds", total, round)
	return round, out, nil
}

// scaffoldErrorBreak checks the joins of a freshly scaffolded layout at the
// round's flank width and writes the broken AGP
func (p *Pipeline) scaffoldErrorBreak(agpfile string, flank int, noise float64, outfile string) (int, error) {
	layout, err := NewLayoutFromAGP(p.sdict, agpfile)
	if err != nil {
		return 0, err
	}
	linkMat, err := LinkMatFromFile(p.Linkfile, layout, p.Mapq, flank*2, ECBin, noise)
	if err != nil {
		return 0, err
	}
	breaks := DetectBreakPointsLocalJoint(linkMat, layout, flank, ECFoldThresh)
	if err := WriteBreakAGP(layout, breaks, outfile); err != nil {
		return 0, err
	}
	return len(breaks), nil
}

// finalize merges back the minLen-filtered sequences, sorts scaffolds by
// decreasing length and writes the final AGP
func (p *Pipeline) finalize(lastAGP string) error {
	sdict := p.sdict
	if p.MinLen > 0 {
		var err error
		sdict, err = MakeSeqDictFromIndex(p.Faifile, 0)
		if err != nil {
			return err
		}
	}
	layout, err := NewLayoutFromAGP(sdict, lastAGP)
	if err != nil {
		return err
	}
	layout.AddUnplacedShort()
	p.FinalAGP = p.OutPrefix + "_scaffolds_final.agp"
	if err := WriteSortedAGP(layout, p.FinalAGP); err != nil {
		return err
	}
	layout, err = NewLayoutFromAGP(sdict, p.FinalAGP)
	if err != nil {
		return err
	}
	layout.LogStats(true)
	return nil
}
