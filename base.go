/**
 * Filename: /Users/bao/code/yahs/base.go
 * Path: /Users/bao/code/yahs
 * Created Date: Tuesday, June 22nd 2021, 8:12:46 pm
 * Author: bao
 *
 * Copyright (c) 2021 Haibao Tang
 */

package yahs

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path"
	"sort"
	"strconv"
	"strings"

	logging "github.com/op/go-logging"
)

const (
	// Version is the current version of YAHS
	Version = "1.2a.1"
	// GapSize is the nominal length of an assembly gap between joined sequences
	GapSize = 100
	// MaxNumSeqs is the hard ceiling on the number of scaffolds in a layout
	MaxNumSeqs = 45000
	// GB is the number of bytes in a gigabyte
	GB = 1 << 30
	// DefaultMapq is the default mapping quality cutoff for Hi-C pairs
	DefaultMapq = 10
	// ECMinWindow is the minimum distance window for contig error break
	ECMinWindow = 1000000
	// ECResolution is the resolution used to estimate the error break distance threshold
	ECResolution = 10000
	// ECBin is the bin size of the 1D link profile used by the break detectors
	ECBin = 1000
	// ECMergeThresh merges adjacent break candidates within this many bases
	ECMergeThresh = 10000
	// ECDualBreakThresh pairs two symmetric drops into a dual break within this range
	ECDualBreakThresh = 50000
	// ECMinFrac is the quantile of the intra-link span distribution used as distance threshold
	ECMinFrac = .8
	// ECFoldThresh is the profile drop ratio below which a break is called
	ECFoldThresh = .2
	// MinNorm is the minimum normalized link score to materialize a graph edge
	MinNorm = .1
	// NormKMin is the minimum number of samples for a band to enter the norm fit
	NormKMin = 30
	// MinNormBands is the minimum number of retained bands for a usable norm
	MinNormBands = 3
	// Epsilon is the denominator floor below which a matrix cell carries no data
	Epsilon = 1e-6
)

// Exit codes surfaced by the driver, matching ErrNoBands and ErrNoMem
const (
	ExitNoBands = 14
	ExitNoMem   = 15
)

// DefaultResolutions is the ascending resolution ladder used when -r is not given
var DefaultResolutions = []int{10000, 20000, 50000, 100000, 200000, 500000,
	1000000, 2000000, 5000000, 10000000, 20000000, 50000000,
	100000000, 200000000, 500000000}

// Recoverable and terminal conditions a scaffolding round can report
var (
	// ErrNoMem signals that the memory estimate exceeds the budget for this round
	ErrNoMem = errors.New("memory budget exceeded")
	// ErrNoBands signals that the intra matrix has too few bands to fit a norm
	ErrNoBands = errors.New("no enough bands for norm calculation")
	// ErrSeqLimit signals a pathological scaffold count
	ErrSeqLimit = errors.New("sequence number exceeds limit")
)

var log = logging.MustGetLogger("yahs")
var format = logging.MustStringFormatter(
	`%{color}%{time:15:04:05} %{shortfunc} | %{level:.6s} %{color:reset} %{message}`,
)

// Backend is the default stderr output
var Backend = logging.NewLogBackend(os.Stderr, "", 0)

// BackendFormatter contains the fancy debug formatter
var BackendFormatter = logging.NewBackendFormatter(Backend, format)

// Config collects all knobs of a scaffolding run, passed explicitly into each stage
type Config struct {
	Fastafile    string
	Faifile      string
	Linkfile     string
	AGPfile      string // seed layout, optional
	OutPrefix    string
	Resolutions  []int
	Enzymes      string // comma-separated motifs, optional
	MinLen       int    // minimum contig length to scaffold
	Mapq         int    // minimum mapping quality
	NoContigEC   bool
	NoScaffoldEC bool
	NoMemCheck   bool
	RSSLimit     int64 // <0 means use the observed system limit
	Verbose      int
}

// ErrorAbort logs the error and exits
func ErrorAbort(err error) {
	if err != nil {
		log.Fatal(err)
	}
}

// RemoveExt returns the substring minus the extension
func RemoveExt(filename string) string {
	return strings.TrimSuffix(filename, path.Ext(filename))
}

// mustOpen opens a file for reading or dies
func mustOpen(filename string) *os.File {
	f, err := os.Open(filename)
	ErrorAbort(err)
	return f
}

// abs gets the absolute value of an int
func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// min gets the minimum for two ints
func min(x, y int) int {
	if x < y {
		return x
	}
	return y
}

// max gets the maximum for two ints
func max(x, y int) int {
	if x > y {
		return x
	}
	return y
}

// minf gets the minimum for two float64s
func minf(x, y float64) float64 {
	if x < y {
		return x
	}
	return y
}

// sumf gets the sum for a float64 slice
func sumf(a []float64) float64 {
	ans := 0.0
	for _, x := range a {
		ans += x
	}
	return ans
}

// median gets the median value of an array
func median(s []float64) float64 {
	if len(s) == 0 {
		return 0
	}
	// Make a sorted copy
	numbers := make([]float64, len(s))
	copy(numbers, s)
	sort.Float64s(numbers)

	middle := len(numbers) / 2
	result := numbers[middle]
	if len(numbers)%2 == 0 {
		result = (result + numbers[middle-1]) / 2
	}
	return result
}

// trimmedMean averages a slice after dropping the top and bottom fractions
func trimmedMean(s []float64, frac float64) float64 {
	if len(s) == 0 {
		return 0
	}
	numbers := make([]float64, len(s))
	copy(numbers, s)
	sort.Float64s(numbers)
	lo := int(math.Floor(float64(len(numbers)) * frac))
	hi := len(numbers) - lo
	total := 0.0
	for _, x := range numbers[lo:hi] {
		total += x
	}
	return total / float64(hi-lo)
}

// Percentage prints a human readable message of the percentage
func Percentage(a, b int) string {
	if b == 0 {
		return fmt.Sprintf("%d of %d", a, b)
	}
	return fmt.Sprintf("%d of %d (%.1f %%)", a, b, float64(a)*100./float64(b))
}

// Round makes a round number
func Round(input float64) float64 {
	if input < 0 {
		return math.Ceil(input - 0.5)
	}
	return math.Floor(input + 0.5)
}

// ParseResolutions parses a comma-separated ascending list of resolutions
func ParseResolutions(s string) ([]int, error) {
	words := strings.Split(s, ",")
	resolutions := make([]int, 0, len(words))
	for _, word := range words {
		r, err := strconv.Atoi(word)
		if err != nil || r <= 0 {
			return nil, fmt.Errorf("invalid resolution `%s`", word)
		}
		if len(resolutions) > 0 && r <= resolutions[len(resolutions)-1] {
			return nil, fmt.Errorf("resolutions must be ascending: `%s`", s)
		}
		resolutions = append(resolutions, r)
	}
	return resolutions, nil
}

// DefaultNumResolutions picks how many rungs of the default ladder apply to a genome size
func DefaultNumResolutions(genomeSize int64) int {
	var maxRes int
	switch {
	case genomeSize < 100000000:
		maxRes = 1000000
	case genomeSize < 200000000:
		maxRes = 2000000
	case genomeSize < 500000000:
		maxRes = 5000000
	case genomeSize < 1000000000:
		maxRes = 10000000
	case genomeSize < 2000000000:
		maxRes = 20000000
	case genomeSize < 5000000000:
		maxRes = 50000000
	case genomeSize < 10000000000:
		maxRes = 100000000
	case genomeSize < 20000000000:
		maxRes = 200000000
	default:
		maxRes = 500000000
	}

	nr := 0
	for nr < len(DefaultResolutions) && DefaultResolutions[nr] <= maxRes {
		nr++
	}
	return nr
}

// RAMLimit reports the total system memory in bytes, or -1 when unknown
func RAMLimit() int64 {
	f, err := os.Open("/proc/meminfo")
	if err != nil {
		return -1
	}
	defer f.Close()
	reader := bufio.NewReader(f)
	for {
		row, err := reader.ReadString('\n')
		if strings.HasPrefix(row, "MemTotal:") {
			fields := strings.Fields(row)
			if len(fields) >= 2 {
				kb, perr := strconv.ParseInt(fields[1], 10, 64)
				if perr == nil {
					return kb * 1024
				}
			}
		}
		if err == io.EOF {
			break
		}
	}
	return -1
}
