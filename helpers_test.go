/*
 *  helpers_test.go
 *  yahs
 *
 *  Created by Haibao Tang on 07/03/21
 *  Copyright © 2021 Haibao Tang. All rights reserved.
 */

package yahs_test

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

// link is one raw test record in contig coordinates
type link struct {
	refA, posA int
	refB, posB int
	mapq       int
}

// writeFile creates a file with the given content under dir
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return p
}

// writeLinks serializes raw records into a binary link store
func writeLinks(t *testing.T, dir, name string, links []link) string {
	t.Helper()
	p := filepath.Join(dir, name)
	buf := make([]byte, 0, 17*len(links))
	rec := make([]byte, 17)
	for _, l := range links {
		binary.LittleEndian.PutUint32(rec[0:], uint32(l.refA))
		binary.LittleEndian.PutUint32(rec[4:], uint32(l.posA))
		binary.LittleEndian.PutUint32(rec[8:], uint32(l.refB))
		binary.LittleEndian.PutUint32(rec[12:], uint32(l.posB))
		rec[16] = uint8(l.mapq)
		buf = append(buf, rec...)
	}
	if err := os.WriteFile(p, buf, 0644); err != nil {
		t.Fatal(err)
	}
	return p
}

// intraLinks generates a deterministic spread of intra-contig pairs with
// spans up to maxSpan over [0, length)
func intraLinks(ref, n, length, maxSpan int) []link {
	links := make([]link, 0, n)
	for k := 0; k < n; k++ {
		pa := (k * 9973) % (length - maxSpan)
		span := 1000 + (k*61)%(maxSpan-1000)
		links = append(links, link{ref, pa, ref, pa + span, 60})
	}
	return links
}

// crossLinks generates pairs clustered within window of refA's tail and
// refB's head
func crossLinks(refA, lenA, refB, n, window int) []link {
	links := make([]link, 0, n)
	for k := 0; k < n; k++ {
		pa := lenA - window + (k*89)%window
		pb := (k * 53) % window
		links = append(links, link{refA, pa, refB, pb, 60})
	}
	return links
}
