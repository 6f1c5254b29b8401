package ingest

import (
	"bufio"
	"errors"
	"io"
	"strings"
)

// ErrEmptyFile is returned when a file contains no non-blank line.
var ErrEmptyFile = errors.New("file is empty")

// delimiterCandidates are tried in order; ties resolve to the earlier
// candidate, so comma wins a dead heat.
var delimiterCandidates = []rune{',', ';', '\t', '|'}

// Format describes the inferred layout of a raw export file.
type Format struct {
	Delimiter  rune
	HeaderLine int // zero-based line index of the header row
}

// DetectFormat scans a raw byte stream for the first non-blank line and
// picks the candidate delimiter with the highest raw occurrence count on
// that line. This is a heuristic, not a guarantee: single-column exports
// and quoted fields containing the winning delimiter can fool it, and
// callers must tolerate that.
func DetectFormat(r io.Reader) (Format, error) {
	scanner := bufio.NewScanner(StripBOM(r))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	line := 0
	for scanner.Scan() {
		text := scanner.Text()
		if strings.TrimSpace(text) == "" {
			line++
			continue
		}

		best := delimiterCandidates[0]
		bestCount := strings.Count(text, string(best))
		for _, d := range delimiterCandidates[1:] {
			if n := strings.Count(text, string(d)); n > bestCount {
				best = d
				bestCount = n
			}
		}
		return Format{Delimiter: best, HeaderLine: line}, nil
	}
	if err := scanner.Err(); err != nil {
		return Format{}, err
	}
	return Format{}, ErrEmptyFile
}

// StripBOM wraps a reader to strip a UTF-8 BOM if present.
func StripBOM(r io.Reader) io.Reader {
	buf := make([]byte, 3)
	n, err := io.ReadFull(r, buf)
	if err != nil || n < 3 {
		return io.MultiReader(strings.NewReader(string(buf[:n])), r)
	}
	if buf[0] == 0xEF && buf[1] == 0xBB && buf[2] == 0xBF {
		return r
	}
	return io.MultiReader(strings.NewReader(string(buf[:n])), r)
}
