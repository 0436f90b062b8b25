// Package chunker splits file text into bounded, symbol-aligned chunks
// and fingerprints each chunk. Everything here is a pure function of
// the file text and the options; no I/O.
package chunker

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/repoctx/repoctx/internal/models"
)

// DefaultMaxLines is the default upper bound on chunk size.
const DefaultMaxLines = 80

// Piece is one chunk candidate: a contiguous, non-overlapping line
// range of a file. Lines are 1-based and inclusive.
type Piece struct {
	StartLine int
	EndLine   int
	Text      string
	SymbolFQN string
	Kind      models.SymbolKind
}

// Normalize rewrites CRLF and bare CR line endings to LF so that the
// same content yields the same fingerprint on every platform.
func Normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.ReplaceAll(text, "\r", "\n")
}

// Hash computes the content fingerprint of a chunk: SHA-256 over the
// line-ending-normalized text. It is a pure function of the text, so
// identical content at different locations or commits hashes the same.
func Hash(text string) string {
	sum := sha256.Sum256([]byte(Normalize(text)))
	return hex.EncodeToString(sum[:])
}

// Split partitions a file's text into an ordered, non-overlapping
// sequence of pieces. Resolved symbol spans are preferred boundaries;
// a span larger than maxLines is split at blank-line boundaries, and
// regions without symbols fall back to fixed-size line windows with no
// overlap. Blank-only regions produce no piece.
func Split(text string, spans []models.Span, maxLines int) []Piece {
	if maxLines <= 0 {
		maxLines = DefaultMaxLines
	}
	norm := Normalize(text)
	if norm == "" {
		return nil
	}
	lines := strings.Split(norm, "\n")
	// a trailing newline yields one empty trailing element
	if len(lines) > 1 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	n := len(lines)

	var pieces []Piece
	cursor := 1
	for _, sp := range sanitize(spans, n) {
		if sp.StartLine > cursor {
			pieces = appendWindows(pieces, lines, cursor, sp.StartLine-1, maxLines)
		}
		pieces = appendSpan(pieces, lines, sp, maxLines)
		cursor = sp.EndLine + 1
	}
	if cursor <= n {
		pieces = appendWindows(pieces, lines, cursor, n, maxLines)
	}
	return pieces
}

// sanitize clamps spans to the file, orders them, and drops spans that
// overlap an earlier one so the output ranges never overlap.
func sanitize(spans []models.Span, n int) []models.Span {
	var out []models.Span
	for _, sp := range spans {
		if sp.StartLine < 1 || sp.EndLine < sp.StartLine || sp.StartLine > n {
			continue
		}
		if sp.EndLine > n {
			sp.EndLine = n
		}
		out = append(out, sp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartLine != out[j].StartLine {
			return out[i].StartLine < out[j].StartLine
		}
		return out[i].EndLine > out[j].EndLine
	})
	kept := out[:0]
	last := 0
	for _, sp := range out {
		if sp.StartLine <= last {
			continue
		}
		kept = append(kept, sp)
		last = sp.EndLine
	}
	return kept
}

func appendSpan(pieces []Piece, lines []string, sp models.Span, maxLines int) []Piece {
	if sp.EndLine-sp.StartLine+1 <= maxLines {
		return appendPiece(pieces, lines, sp.StartLine, sp.EndLine, sp.FQN, sp.Kind)
	}
	// oversized symbol: cut at the last blank line inside the window,
	// hard cut when there is none
	start := sp.StartLine
	for start <= sp.EndLine {
		end := start + maxLines - 1
		if end >= sp.EndLine {
			end = sp.EndLine
		} else {
			if cut := lastBlank(lines, start, end); cut > start {
				end = cut
			}
		}
		pieces = appendPiece(pieces, lines, start, end, sp.FQN, sp.Kind)
		start = end + 1
	}
	return pieces
}

func appendWindows(pieces []Piece, lines []string, from, to, maxLines int) []Piece {
	for start := from; start <= to; start += maxLines {
		end := start + maxLines - 1
		if end > to {
			end = to
		}
		pieces = appendPiece(pieces, lines, start, end, "", models.SymbolUnknown)
	}
	return pieces
}

func appendPiece(pieces []Piece, lines []string, start, end int, fqn string, kind models.SymbolKind) []Piece {
	text := strings.Join(lines[start-1:end], "\n")
	if strings.TrimSpace(text) == "" {
		return pieces
	}
	return append(pieces, Piece{
		StartLine: start,
		EndLine:   end,
		Text:      text,
		SymbolFQN: fqn,
		Kind:      kind,
	})
}

// lastBlank returns the line number of the last blank line in
// [from, to], or 0 when there is none.
func lastBlank(lines []string, from, to int) int {
	for i := to; i >= from; i-- {
		if strings.TrimSpace(lines[i-1]) == "" {
			return i
		}
	}
	return 0
}
