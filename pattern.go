package hinako

import "strconv"

// PatternByte is one position of a parsed signature: either a concrete byte
// to match, or a wildcard that matches anything. See spec §4.C /
// original_source/src/process/pattern.rs (type Byte = Option<u8>).
type PatternByte struct {
	Value    byte
	Wildcard bool
}

// Match is one location FindAll reports: the offset into the haystack and
// the concrete bytes found there (including at wildcard positions, which is
// what lets UnhookBytes reconstruct the original instruction stream later).
type Match struct {
	Offset   int
	Captured []byte
}

// ParsePattern splits text on whitespace; each token is "?"/"??" (wildcard)
// or two hex digits (a byte). A malformed token becomes byte 0x00, matching
// original_source's `u8::from_str_radix(hex, 16).unwrap_or(0)`.
func ParsePattern(text string) []PatternByte {
	var out []PatternByte
	start := -1
	flush := func(end int) {
		if start < 0 {
			return
		}
		tok := text[start:end]
		out = append(out, parseToken(tok))
		start = -1
	}
	for i := 0; i < len(text); i++ {
		if isPatternSpace(text[i]) {
			flush(i)
			continue
		}
		if start < 0 {
			start = i
		}
	}
	flush(len(text))
	return out
}

func isPatternSpace(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	default:
		return false
	}
}

func parseToken(tok string) PatternByte {
	if tok == "?" || tok == "??" {
		return PatternByte{Wildcard: true}
	}
	v, err := strconv.ParseUint(tok, 16, 8)
	if err != nil {
		return PatternByte{Value: 0}
	}
	return PatternByte{Value: byte(v)}
}

// FindAll scans haystack forward, reporting every offset at which every
// non-wildcard pattern position equals the corresponding haystack byte.
// Matches are returned in ascending offset order (spec §8, "Scanner
// completeness").
func FindAll(haystack []byte, pattern []PatternByte) []Match {
	n := len(pattern)
	if n == 0 || len(haystack) < n {
		return nil
	}
	var matches []Match
	for i := 0; i+n <= len(haystack); i++ {
		ok := true
		for j := 0; j < n; j++ {
			if !pattern[j].Wildcard && pattern[j].Value != haystack[i+j] {
				ok = false
				break
			}
		}
		if ok {
			captured := make([]byte, n)
			copy(captured, haystack[i:i+n])
			matches = append(matches, Match{Offset: i, Captured: captured})
		}
	}
	return matches
}

// UnhookBytes reconstructs the bytes that were originally at the patch
// site: pattern[i] where concrete, else the captured byte at i. Length
// equals len(pattern) (spec §4.C, §8 "Pattern round-trip").
func UnhookBytes(pattern []PatternByte, captured []byte) []byte {
	out := make([]byte, len(pattern))
	for i, pb := range pattern {
		if pb.Wildcard {
			out[i] = captured[i]
		} else {
			out[i] = pb.Value
		}
	}
	return out
}
