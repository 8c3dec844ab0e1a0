package diff

import "fmt"

// DefaultSuppressThreshold is the size in bytes above which binary diffs
// are not computed.
const DefaultSuppressThreshold = 512

// Row is one hex row of a binary diff. Values are the raw elements of the
// row; a row near the end may be shorter on one side or empty.
type Row struct {
	Offset   int
	Actual   []uint64
	Expected []uint64
	Differs  bool
}

// HexRows splits two sequences of width-byte elements into rows of
// bytesPerRow bytes and marks the rows whose contents differ. The row count
// is bounded by the longer input.
func HexRows(actual, expected []uint64, width, bytesPerRow int) []Row {
	if width <= 0 {
		width = 1
	}
	perRow := bytesPerRow / width
	if perRow <= 0 {
		perRow = 1
	}
	total := max(len(actual), len(expected))
	rows := make([]Row, 0, (total+perRow-1)/perRow)
	for off := 0; off < total; off += perRow {
		a := window(actual, off, perRow)
		b := window(expected, off, perRow)
		rows = append(rows, Row{
			Offset:   off,
			Actual:   a,
			Expected: b,
			Differs:  !sameValues(a, b),
		})
	}
	return rows
}

func window(vals []uint64, off, n int) []uint64 {
	if off >= len(vals) {
		return nil
	}
	end := min(off+n, len(vals))
	return vals[off:end]
}

func sameValues(a, b []uint64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// SuppressNote is the message of a binary diff that was not computed.
func SuppressNote(threshold int) string {
	return fmt.Sprintf("Diff suppressed due to size > %d", threshold)
}

// Binary builds the diff node for two binary values. Values larger than
// threshold bytes on either side produce a Suppressed node.
func Binary(actual, expected []uint64, width, bytesPerRow, threshold int) *Node {
	if len(actual)*width > threshold || len(expected)*width > threshold {
		return &Node{Kind: Suppressed, Width: width, Note: SuppressNote(threshold)}
	}
	n := &Node{Kind: Equal, Width: width, Rows: HexRows(actual, expected, width, bytesPerRow)}
	return n.Settle()
}
