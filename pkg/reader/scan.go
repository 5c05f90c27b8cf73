package reader

import "encoding/binary"

var (
	sigEOCD = make([]byte, 4)

	eocdMatcher *matcher
)

func init() {
	binary.LittleEndian.PutUint32(sigEOCD, directoryEndSignature)
	eocdMatcher = newMatcher(sigEOCD)
}

// matcher is a Knuth-Morris-Pratt matcher for a fixed pattern.
//
// The failure function of the reversed pattern is kept as well so the data can be scanned from
// either end in a single pass.
type matcher struct {
	pattern  []byte
	failure  []int
	reversed []byte
	rfailure []int
}

func newMatcher(pattern []byte) *matcher {
	reversed := make([]byte, len(pattern))
	for i, c := range pattern {
		reversed[len(pattern)-1-i] = c
	}

	return &matcher{
		pattern:  pattern,
		failure:  computeFailure(pattern),
		reversed: reversed,
		rfailure: computeFailure(reversed),
	}
}

// computeFailure matches the pattern against itself: failure[i] is the length of the longest proper
// prefix of pattern[:i+1] that is also its suffix.
func computeFailure(pattern []byte) []int {
	failure := make([]int, len(pattern))

	j := 0
	for i := 1; i < len(pattern); i++ {
		for j > 0 && pattern[j] != pattern[i] {
			j = failure[j-1]
		}
		if pattern[j] == pattern[i] {
			j++
		}
		failure[i] = j
	}

	return failure
}

func (m *matcher) index(data []byte) int {
	if len(m.pattern) == 0 {
		return 0
	}

	j := 0
	for i := 0; i < len(data); i++ {
		for j > 0 && m.pattern[j] != data[i] {
			j = m.failure[j-1]
		}
		if m.pattern[j] == data[i] {
			j++
		}
		if j == len(m.pattern) {
			return i - len(m.pattern) + 1
		}
	}

	return -1
}

func (m *matcher) lastIndex(data []byte) int {
	if len(m.reversed) == 0 {
		return len(data)
	}

	j := 0
	for i := len(data) - 1; i >= 0; i-- {
		for j > 0 && m.reversed[j] != data[i] {
			j = m.rfailure[j-1]
		}
		if m.reversed[j] == data[i] {
			j++
		}
		if j == len(m.reversed) {
			return i
		}
	}

	return -1
}

// IndexOf returns the lowest index of pattern in data, or -1 if pattern is not present.
//
// The search is linear in len(data) regardless of the pattern.
func IndexOf(data, pattern []byte) int {
	return newMatcher(pattern).index(data)
}

// LastIndexOf returns the highest index of pattern in data, or -1 if pattern is not present.
func LastIndexOf(data, pattern []byte) int {
	return newMatcher(pattern).lastIndex(data)
}

// FindDirectoryEnd returns the index of the EOCD signature in the given tail window, or -1.
//
// The window must end where the archive ends. Candidates are tried from the end of the window
// backward and a candidate is only accepted if its comment length places the record flush against
// the end of the window, so a signature that happens to appear inside the archive comment is
// skipped.
func FindDirectoryEnd(b []byte) int {
	end := len(b)
	for {
		p := eocdMatcher.lastIndex(b[:end])
		if p < 0 {
			return -1
		}

		if p+directoryEndLen <= len(b) {
			commentLen := int(binary.LittleEndian.Uint16(b[p+directoryEndLen-2:]))
			if p+directoryEndLen+commentLen == len(b) {
				return p
			}
		}

		end = p + len(sigEOCD) - 1
	}
}
