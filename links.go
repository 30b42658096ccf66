/**
 * Filename: /Users/bao/code/yahs/links.go
 * Path: /Users/bao/code/yahs
 * Created Date: Thursday, June 24th 2021, 9:21:54 pm
 * Author: bao
 *
 * Copyright (c) 2021 Haibao Tang
 */

package yahs

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/biogo/hts/bam"
	"github.com/cespare/xxhash"
	"github.com/shenwei356/xopen"
)

// LinkRecordSize is the fixed width of one on-disk link record
const LinkRecordSize = 17

// LinkRecord is one deduplicated Hi-C read pair in contig coordinates
type LinkRecord struct {
	RefA, PosA uint32
	RefB, PosB uint32
	Mapq       uint8
}

// put serializes the record into a 17-byte little-endian buffer
func (r LinkRecord) put(buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:], r.RefA)
	binary.LittleEndian.PutUint32(buf[4:], r.PosA)
	binary.LittleEndian.PutUint32(buf[8:], r.RefB)
	binary.LittleEndian.PutUint32(buf[12:], r.PosB)
	buf[16] = r.Mapq
}

// parseLinkRecord deserializes one 17-byte record
func parseLinkRecord(buf []byte) LinkRecord {
	return LinkRecord{
		RefA: binary.LittleEndian.Uint32(buf[0:]),
		PosA: binary.LittleEndian.Uint32(buf[4:]),
		RefB: binary.LittleEndian.Uint32(buf[8:]),
		PosB: binary.LittleEndian.Uint32(buf[12:]),
		Mapq: buf[16],
	}
}

// ScanLinks makes one forward pass over the binary link store. Records below
// the mapq cutoff are skipped; surviving ends are converted into scaffold
// coordinates through the layout and swapped so that scafA <= scafB, with a
// stable tie-break by position. Records with an end excluded by a prior break
// are dropped.
func ScanLinks(linkfile string, l *Layout, mapq int,
	fn func(scafA, posA, scafB, posB int)) error {
	f, err := os.Open(linkfile)
	if err != nil {
		return fmt.Errorf("cannot open link file `%s`: %w", linkfile, err)
	}
	defer f.Close()

	reader := bufio.NewReaderSize(f, 1<<20)
	buf := make([]byte, LinkRecordSize)
	nRecords, nUsed := 0, 0
	for {
		_, err := io.ReadFull(reader, buf)
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("truncated link record in `%s`: %w", linkfile, err)
		}
		nRecords++
		rec := parseLinkRecord(buf)
		if int(rec.Mapq) < mapq {
			continue
		}
		sa, pa, _, ok := l.CoordConvert(int(rec.RefA), int(rec.PosA))
		if !ok {
			continue
		}
		sb, pb, _, ok := l.CoordConvert(int(rec.RefB), int(rec.PosB))
		if !ok {
			continue
		}
		if sa > sb || (sa == sb && pa > pb) {
			sa, pa, sb, pb = sb, pb, sa, pa
		}
		nUsed++
		fn(sa, pa, sb, pb)
	}
	log.Noticef("Scanned `%s`: used %s records", linkfile, Percentage(nUsed, nRecords))
	return nil
}

// linkDumper writes deduplicated link records, one per read pair
type linkDumper struct {
	w    *bufio.Writer
	seen map[uint64]bool
	buf  [LinkRecordSize]byte
	n    int
}

// add canonicalizes, deduplicates and writes one pair
func (d *linkDumper) add(refA int, posA int, refB int, posB int, mapq int) {
	if refA > refB || (refA == refB && posA > posB) {
		refA, posA, refB, posB = refB, posB, refA, posA
	}
	rec := LinkRecord{
		RefA: uint32(refA), PosA: uint32(posA),
		RefB: uint32(refB), PosB: uint32(posB),
		Mapq: uint8(mapq),
	}
	rec.put(d.buf[:])
	key := xxhash.Sum64(d.buf[:16])
	if d.seen[key] {
		return
	}
	d.seen[key] = true
	d.w.Write(d.buf[:])
	d.n++
}

// DumpFromBED converts a (possibly gzipped) BED file of Hi-C alignments into
// the binary link store. Consecutive rows sharing a read name form a pair.
func DumpFromBED(bedfile string, d *SeqDict, outfile string) error {
	fh, err := xopen.Ropen(bedfile)
	if err != nil {
		return fmt.Errorf("cannot open BED `%s`: %w", bedfile, err)
	}
	defer fh.Close()

	f, err := os.Create(outfile)
	if err != nil {
		return fmt.Errorf("cannot open file `%s` for writing: %w", outfile, err)
	}
	defer f.Close()
	dumper := &linkDumper{w: bufio.NewWriter(f), seen: map[uint64]bool{}}

	log.Noticef("Dump Hi-C links (BED) from `%s`", bedfile)
	var prevName string
	var prevRef, prevPos, prevMapq int
	havePrev := false
	for {
		row, err := fh.ReadString('\n')
		row = strings.TrimSpace(row)
		if row == "" && err == io.EOF {
			break
		}
		if row != "" {
			words := strings.Split(row, "\t")
			if len(words) < 4 {
				return fmt.Errorf("malformed BED row `%s`", row)
			}
			ref := d.Get(words[0])
			pos, _ := strconv.Atoi(words[1])
			name := words[3]
			// Read pair suffixes are insignificant
			name = strings.TrimSuffix(strings.TrimSuffix(name, "/1"), "/2")
			mapq := 60
			if len(words) > 4 {
				mapq, _ = strconv.Atoi(words[4])
			}
			if havePrev && name == prevName {
				if ref >= 0 && prevRef >= 0 {
					dumper.add(prevRef, prevPos, ref, pos, min(mapq, prevMapq))
				}
				havePrev = false
			} else {
				prevName, prevRef, prevPos, prevMapq = name, ref, pos, mapq
				havePrev = true
			}
		}
		if err == io.EOF {
			break
		}
	}
	if err := dumper.w.Flush(); err != nil {
		return err
	}
	log.Noticef("Dumped %d link records to `%s`", dumper.n, outfile)
	return nil
}

// DumpFromBAM converts a name-sorted BAM file of Hi-C alignments into the
// binary link store, one record per read pair
func DumpFromBAM(bamfile string, d *SeqDict, outfile string) error {
	fh, err := os.Open(bamfile)
	if err != nil {
		return fmt.Errorf("cannot open BAM `%s`: %w", bamfile, err)
	}
	defer fh.Close()

	log.Noticef("Dump Hi-C links (BAM) from `%s`", bamfile)
	br, err := bam.NewReader(fh, 0)
	if err != nil {
		return fmt.Errorf("cannot read BAM `%s`: %w", bamfile, err)
	}
	defer br.Close()

	f, err := os.Create(outfile)
	if err != nil {
		return fmt.Errorf("cannot open file `%s` for writing: %w", outfile, err)
	}
	defer f.Close()
	dumper := &linkDumper{w: bufio.NewWriter(f), seen: map[uint64]bool{}}

	for {
		rec, err := br.Read()
		if err != nil {
			if err != io.EOF {
				log.Error(err)
			}
			break
		}
		// Filtering: Unmapped | MateUnmapped | Secondary | QCFail | Duplicate | Supplementary
		if rec.Flags&3852 != 0 {
			continue
		}
		// Keep one record per pair
		if rec.Ref.ID() > rec.MateRef.ID() ||
			(rec.Ref.ID() == rec.MateRef.ID() && rec.Pos > rec.MatePos) {
			continue
		}
		ai := d.Get(rec.Ref.Name())
		bi := d.Get(rec.MateRef.Name())
		if ai < 0 || bi < 0 {
			continue
		}
		dumper.add(ai, rec.Pos, bi, rec.MatePos, int(rec.MapQ))
	}
	if err := dumper.w.Flush(); err != nil {
		return err
	}
	log.Noticef("Dumped %d link records to `%s`", dumper.n, outfile)
	return nil
}
