package prompting

import (
	"math/rand/v2"
	"path/filepath"
	"strings"
)

// SelectionLog records every madlib draw made during a resolution call,
// keyed by the raw placeholder key, in draw order. It is the audit trail
// a caller can persist alongside the resolved document.
type SelectionLog map[string][]string

// resolveContext is the immutable per-call bundle the resolver threads
// through the walk. Only the selection log is mutated.
type resolveContext struct {
	madlibDir  string
	vars       Variables
	rng        *rand.Rand
	store      *ChoiceStore
	selections SelectionLog
}

func (rc *resolveContext) intN(n int) int {
	if rc.rng != nil {
		return rc.rng.IntN(n)
	}
	return rand.IntN(n)
}

// resolveValue walks a document value and returns one of the same shape
// with every string passed through the placeholder grammar. Any failure
// aborts the walk; no partially resolved value is returned.
func (rc *resolveContext) resolveValue(v Value) (Value, error) {
	switch t := v.(type) {
	case String:
		resolved, err := rc.resolveString(string(t))
		if err != nil {
			return nil, err
		}
		return String(resolved), nil
	case Number:
		return t, nil
	case Bool:
		return t, nil
	case Null:
		return t, nil
	case Array:
		out := make(Array, len(t))
		for i, elem := range t {
			resolved, err := rc.resolveValue(elem)
			if err != nil {
				return nil, err
			}
			out[i] = resolved
		}
		return out, nil
	case Set:
		out := make(Set, 0, len(t))
		seen := make(map[string]struct{}, len(t))
		for _, elem := range t {
			resolved, err := rc.resolveValue(elem)
			if err != nil {
				return nil, err
			}
			key := canonicalKey(resolved)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, resolved)
		}
		return out, nil
	case Object:
		out := make(Object, len(t))
		for key, elem := range t {
			resolved, err := rc.resolveValue(elem)
			if err != nil {
				return nil, err
			}
			out[key] = resolved
		}
		return out, nil
	}
	return nil, newErrorf("unhandled document value of type %T", v)
}

// resolveString substitutes every placeholder in src in a single pass.
// Substituted text is never rescanned, so values cannot inject further
// placeholders.
func (rc *resolveContext) resolveString(src string) (string, error) {
	ph, ok := nextPlaceholder(src, 0)
	if !ok {
		return src, nil
	}

	var b strings.Builder
	last := 0
	for ok {
		b.WriteString(src[last:ph.start])
		replacement, err := rc.resolvePlaceholder(ph, src)
		if err != nil {
			return "", err
		}
		b.WriteString(replacement)
		last = ph.end
		ph, ok = nextPlaceholder(src, last)
	}
	b.WriteString(src[last:])
	return b.String(), nil
}

func (rc *resolveContext) resolvePlaceholder(ph placeholder, src string) (string, error) {
	switch ph.prefix {
	case madlibPrefix:
		return rc.selectMadlib(ph.key)
	case variablePrefix:
		return rc.lookupVariable(ph.key)
	}
	return "", newErrorf("unsupported placeholder prefix %q in %q", ph.prefix, src)
}

func (rc *resolveContext) lookupVariable(key string) (string, error) {
	v, ok := rc.vars[key]
	if !ok {
		return "", newErrorf("missing runtime variable %q for placeholder %q",
			key, "${"+variablePrefix+":"+key+"}")
	}
	return v.String(), nil
}

// selectMadlib draws one entry uniformly at random from the choice list
// named by key and appends the draw to the selection log.
func (rc *resolveContext) selectMadlib(key string) (string, error) {
	name := key
	if !strings.HasSuffix(name, ".json") {
		name += ".json"
	}
	path := filepath.Join(rc.madlibDir, name)

	choices, err := rc.store.Load(path)
	if err != nil {
		return "", err
	}
	// Unreachable when the store validated the file, but a zero-length
	// list must not panic the draw below.
	if len(choices) == 0 {
		return "", newErrorf("madlib file %s does not contain any entries", path)
	}

	choice := choices[rc.intN(len(choices))]
	if rc.selections != nil {
		rc.selections[key] = append(rc.selections[key], choice)
	}
	return choice, nil
}
