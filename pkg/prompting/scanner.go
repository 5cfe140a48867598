package prompting

import "strings"

const (
	madlibPrefix   = "madlib"
	variablePrefix = "var"
)

// placeholder is one ${prefix:key} occurrence inside a source string.
// The prefix never contains ':' or '}', the key never contains '}',
// and both are non-empty.
type placeholder struct {
	prefix string
	key    string
	start  int // byte offset of the '$'
	end    int // byte offset just past the closing '}'
}

// nextPlaceholder scans src from offset from for the next placeholder.
// Text that fails to complete a placeholder (a lone '$', an unmatched
// brace, an empty prefix or key) is not a match; scanning resumes one
// byte after the failed '${' so occurrences inside the failed span are
// still found, matching non-overlapping left-to-right regex behavior.
func nextPlaceholder(src string, from int) (placeholder, bool) {
	i := from
	for i < len(src) {
		j := strings.Index(src[i:], "${")
		if j < 0 {
			break
		}
		open := i + j

		prefixStart := open + 2
		prefixEnd := prefixStart
		for prefixEnd < len(src) && src[prefixEnd] != ':' && src[prefixEnd] != '}' {
			prefixEnd++
		}
		if prefixEnd == prefixStart || prefixEnd == len(src) || src[prefixEnd] != ':' {
			i = open + 1
			continue
		}

		keyStart := prefixEnd + 1
		keyEnd := keyStart
		for keyEnd < len(src) && src[keyEnd] != '}' {
			keyEnd++
		}
		if keyEnd == keyStart || keyEnd == len(src) {
			i = open + 1
			continue
		}

		return placeholder{
			prefix: src[prefixStart:prefixEnd],
			key:    src[keyStart:keyEnd],
			start:  open,
			end:    keyEnd + 1,
		}, true
	}
	return placeholder{}, false
}
