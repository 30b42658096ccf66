/**
 * Filename: /Users/bao/code/yahs/cmd/yahs.go
 * Path: /Users/bao/code/yahs/cmd
 * Created Date: Friday, July 2nd 2021, 11:21:45 am
 * Author: bao
 *
 * Copyright (c) 2021 Haibao Tang
 */

package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	logging "github.com/op/go-logging"
	yahs "github.com/shulp2211/yahs"
	"github.com/urfave/cli"
)

var log = logging.MustGetLogger("main")

// main is the entrypoint for the scaffolder
func main() {
	logging.SetBackend(yahs.BackendFormatter)

	// -v is the verbosity level, so the version flag is long-only
	cli.VersionFlag = cli.BoolFlag{Name: "version", Usage: "print the version"}
	app := cli.NewApp()
	app.Name = "yahs"
	app.Usage = "Yet another Hi-C scaffolding tool"
	app.Version = yahs.Version
	app.ArgsUsage = "<contigs.fa> <hic.bed>|<hic.bam>|<hic.bin>"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "a",
			Usage: "AGP file (for rescaffolding)",
		},
		cli.StringFlag{
			Name:  "r",
			Usage: "list of resolutions in ascending order (comma separated)",
		},
		cli.StringFlag{
			Name:  "e",
			Usage: "restriction enzyme cutting sites",
		},
		cli.IntFlag{
			Name:  "l",
			Usage: "minimum length of a contig to scaffold",
		},
		cli.IntFlag{
			Name:  "q",
			Usage: "minimum mapping quality",
			Value: yahs.DefaultMapq,
		},
		cli.BoolFlag{
			Name:  "no-contig-ec",
			Usage: "do not do contig error correction",
		},
		cli.BoolFlag{
			Name:  "no-scaffold-ec",
			Usage: "do not do scaffold error correction",
		},
		cli.BoolFlag{
			Name:  "no-mem-check",
			Usage: "do not do memory check at runtime",
		},
		cli.StringFlag{
			Name:  "o",
			Usage: "prefix of output files",
			Value: "yahs.out",
		},
		cli.IntFlag{
			Name:  "v",
			Usage: "verbose level",
		},
	}
	app.Action = run
	if err := app.Run(os.Args); err != nil {
		log.Error(err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps the recoverable error kinds onto the documented exit codes
func exitCode(err error) int {
	switch {
	case errors.Is(err, yahs.ErrNoBands):
		return yahs.ExitNoBands
	case errors.Is(err, yahs.ErrNoMem):
		return yahs.ExitNoMem
	}
	return 1
}

// run assembles the configuration and drives the pipeline
func run(c *cli.Context) error {
	if c.NArg() < 2 {
		cli.ShowAppHelp(c)
		return cli.NewExitError("missing input: two positional options required", 1)
	}

	fastafile := c.Args().Get(0)
	linkfile := c.Args().Get(1)
	faifile := fastafile + ".fai"

	mapq := c.Int("q")
	if mapq < 0 || mapq > 255 {
		return cli.NewExitError(fmt.Sprintf("invalid mapping quality threshold: %d", mapq), 1)
	}
	minLen := c.Int("l")
	if minLen < 0 {
		return cli.NewExitError(fmt.Sprintf("invalid contig length threshold: %d", minLen), 1)
	}

	config := yahs.Config{
		Fastafile:    fastafile,
		Faifile:      faifile,
		AGPfile:      c.String("a"),
		Enzymes:      c.String("e"),
		OutPrefix:    c.String("o"),
		MinLen:       minLen,
		Mapq:         mapq,
		NoContigEC:   c.Bool("no-contig-ec"),
		NoScaffoldEC: c.Bool("no-scaffold-ec"),
		NoMemCheck:   c.Bool("no-mem-check"),
		RSSLimit:     -1,
		Verbose:      c.Int("v"),
	}
	// Rescaffolding skips contig error correction
	if config.AGPfile != "" {
		config.NoContigEC = true
	}

	if restr := c.String("r"); restr != "" {
		resolutions, err := yahs.ParseResolutions(restr)
		if err != nil {
			return cli.NewExitError(err.Error(), 1)
		}
		config.Resolutions = resolutions
	} else {
		sdict, err := yahs.MakeSeqDictFromIndex(faifile, minLen)
		if err != nil {
			return cli.NewExitError(err.Error(), 1)
		}
		nr := yahs.DefaultNumResolutions(sdict.TotalLen())
		config.Resolutions = yahs.DefaultResolutions[:nr]
	}

	// Normalize the link input into the binary store
	switch {
	case strings.HasSuffix(linkfile, ".bam"):
		binfile := config.OutPrefix + ".bin"
		log.Noticef("Dump hic links (BAM) to binary file %s", binfile)
		sdict, err := yahs.MakeSeqDictFromIndex(faifile, minLen)
		if err != nil {
			return cli.NewExitError(err.Error(), 1)
		}
		if err := yahs.DumpFromBAM(linkfile, sdict, binfile); err != nil {
			return cli.NewExitError(err.Error(), 1)
		}
		config.Linkfile = binfile
	case strings.HasSuffix(linkfile, ".bed") || strings.HasSuffix(linkfile, ".bed.gz"):
		binfile := config.OutPrefix + ".bin"
		log.Noticef("Dump hic links (BED) to binary file %s", binfile)
		sdict, err := yahs.MakeSeqDictFromIndex(faifile, minLen)
		if err != nil {
			return cli.NewExitError(err.Error(), 1)
		}
		if err := yahs.DumpFromBED(linkfile, sdict, binfile); err != nil {
			return cli.NewExitError(err.Error(), 1)
		}
		config.Linkfile = binfile
	case strings.HasSuffix(linkfile, ".bin"):
		if minLen > 0 {
			log.Warningf("contig length threshold %d applied, make sure the binary file %s is up to date", minLen, linkfile)
		}
		config.Linkfile = linkfile
	default:
		return cli.NewExitError("unknown link file format. File extension .bam, .bed or .bin is expected", 1)
	}

	p := &yahs.Pipeline{Config: config}
	if err := p.Run(); err != nil {
		return cli.NewExitError(err.Error(), exitCode(err))
	}

	log.Noticef("Writing FASTA file for scaffolds")
	finalFA := config.OutPrefix + "_scaffolds_final.fa"
	if err := yahs.WriteScaffoldFASTA(fastafile, p.FinalAGP, finalFA); err != nil {
		return cli.NewExitError(err.Error(), 1)
	}

	log.Noticef("Version: %s", yahs.Version)
	log.Noticef("CMD: %s", strings.Join(os.Args, " "))
	return nil
}
