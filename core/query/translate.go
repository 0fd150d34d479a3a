package query

import (
	"sort"
)

type fragmentMode int

const (
	// the value replaces whatever is at path
	modeReplace fragmentMode = iota
	// the value is stored under the operator key of the operator object at path
	modeSet
	// like modeSet, but operator objects already stored under the key are merged
	modeMerge
)

// fragment is one piece of a native filter, produced by a single operator
type fragment struct {
	path  string
	op    string
	value interface{}
	mode  fragmentMode
	// value is an operator object built by the translation, not a caller literal
	operators bool
}

// Translate converts the semantic query q into a native filter.
//
// Translate is pure and safe for concurrent use. It panics with an *AssertionError if q
// is malformed.
func Translate(q Query) Filter {
	out, _ := translate(q)
	return out
}

// translate returns the native filter of q and the paths whose values are operator
// objects built by the translation. Only those are ever modified in place.
func translate(q Query) (Filter, map[string]bool) {
	out := Filter{}
	operators := map[string]bool{}
	for _, f := range q.Fields {
		assert(f.Path != "", f.Path, "empty field path")
		assert(!isCombinator(f.Path), f.Path, "logical combinator used as field")

		switch c := f.Cond.(type) {
		case nil:
			continue
		case Literal:
			out[f.Path] = c.Value
			delete(operators, f.Path)
		case Ops:
			fold(out, operators, translateField(f.Path, c))
		default:
			panic(assertionf(f.Path, "unsupported condition %T", c))
		}
	}

	if q.And != nil {
		out[KeyAnd] = translateList(q.And)
	}
	if q.Nor != nil {
		out[KeyNor] = translateList(q.Nor)
	}
	if q.Or != nil {
		out[KeyOr] = translateList(q.Or)
	}
	return out, operators
}

// TranslateMap parses raw, typically decoded from JSON, and translates it.
func TranslateMap(raw map[string]interface{}) (Filter, error) {
	q, err := Parse(raw)
	if err != nil {
		return nil, err
	}
	return Translate(q), nil
}

func translateList(queries []Query) []Filter {
	list := make([]Filter, len(queries))
	for i, q := range queries {
		list[i] = Translate(q)
	}
	return list
}

// translateField returns the fragments of the operator object ops at path, in order.
func translateField(path string, ops Ops) []fragment {
	var fragments []fragment
	for _, op := range ops {
		switch o := op.(type) {
		case ObjMatch:
			sub, subOperators := translate(o.Query)
			for _, key := range sortedKeys(sub) {
				fragments = append(fragments, fragment{
					path:      path + "." + key,
					value:     sub[key],
					mode:      modeReplace,
					operators: subOperators[key],
				})
			}
		case Not:
			fragments = append(fragments, translateNot(path, o)...)
		default:
			fragments = append(fragments, fragment{
				path:  path,
				op:    op.Kind().String(),
				value: operatorValue(path, op),
				mode:  modeSet,
			})
		}
	}
	return fragments
}

// translateNot distributes the negation onto every field of a nested $objMatch. All other
// operators of the negated object stay together under $not.
func translateNot(path string, n Not) []fragment {
	var (
		fragments []fragment
		rest      Ops
	)
	for _, op := range n.Ops {
		m, ok := op.(ObjMatch)
		if !ok {
			rest = append(rest, op)
			continue
		}
		sub := Translate(m.Query)
		for _, key := range sortedKeys(sub) {
			fragments = append(fragments, fragment{
				path:  path + "." + key,
				op:    OpNot.String(),
				value: sub[key],
				mode:  modeMerge,
			})
		}
	}
	if len(rest) > 0 || len(fragments) == 0 {
		fragments = append(fragments, fragment{
			path:  path,
			op:    OpNot.String(),
			value: operatorObject(path, rest),
			mode:  modeSet,
		})
	}
	return fragments
}

// operatorObject translates an operator object that stays nested under one key.
func operatorObject(path string, ops Ops) Filter {
	out := Filter{}
	for _, op := range ops {
		_, isObjMatch := op.(ObjMatch)
		assert(!isObjMatch, path, "$objMatch cannot be nested here")
		out[op.Kind().String()] = operatorValue(path, op)
	}
	return out
}

func operatorValue(path string, op Operator) interface{} {
	switch o := op.(type) {
	case Compare:
		assert(o.Op.passThrough(), path, "%s is not a comparison operator", o.Op)
		return o.Value
	case All:
		return list(o.Values)
	case AllMatch:
		matches := make([]interface{}, len(o.Queries))
		for i, q := range o.Queries {
			matches[i] = Filter{OpElemMatch.String(): Translate(q)}
		}
		return matches
	case ElemMatch:
		return Translate(o.Query)
	case Not:
		return operatorObject(path, o.Ops)
	default:
		panic(assertionf(path, "unsupported operator %T", op))
	}
}

// fold writes the fragments into out, in order. operators tracks the paths of out that
// hold operator objects built by the translation.
func fold(out Filter, operators map[string]bool, fragments []fragment) {
	for _, f := range fragments {
		switch f.mode {
		case modeReplace:
			out[f.path] = f.value
			if f.operators {
				operators[f.path] = true
			} else {
				delete(operators, f.path)
			}
		case modeSet:
			operatorsAt(out, operators, f.path)[f.op] = f.value
		case modeMerge:
			merge(operatorsAt(out, operators, f.path), Filter{f.op: f.value})
		}
	}
}

// operatorsAt returns the operator object stored at path, creating it if necessary. Any
// other value already stored at path, including a literal Filter, is kept as
// {"$eq": value}.
func operatorsAt(out Filter, operators map[string]bool, path string) Filter {
	if operators[path] {
		if ops, ok := out[path].(Filter); ok {
			return ops
		}
	}
	ops := Filter{}
	if existing, ok := out[path]; ok {
		ops[OpEq.String()] = existing
	}
	out[path] = ops
	operators[path] = true
	return ops
}

// merge merges src into dst. Filters present on both sides are merged recursively into a
// copy, any other value in src overwrites the one in dst. Filters of src or dst are never
// modified.
func merge(dst, src Filter) {
	for k, v := range src {
		if srcSub, ok := v.(Filter); ok {
			if dstSub, ok := dst[k].(Filter); ok {
				merged := make(Filter, len(dstSub)+len(srcSub))
				for dk, dv := range dstSub {
					merged[dk] = dv
				}
				merge(merged, srcSub)
				dst[k] = merged
				continue
			}
		}
		dst[k] = v
	}
}

func sortedKeys(f Filter) []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
