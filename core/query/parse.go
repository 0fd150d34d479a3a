package query

import (
	"reflect"
	"sort"
	"strings"

	"github.com/goccy/go-json"
)

// Parse builds a query from its semantic map form, typically decoded from JSON.
//
// Keys are processed in sorted order and the operators of an operator object in the
// order of their Op. A map value without any "$" key is a literal sub-document and is
// matched by equality. Structural violations are reported as *AssertionError.
func Parse(raw map[string]interface{}) (Query, error) {
	return parseQuery("", raw)
}

// MustParse is like Parse but panics if raw is malformed
func MustParse(raw map[string]interface{}) Query {
	q, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return q
}

func parseQuery(prefix string, raw map[string]interface{}) (Query, error) {
	var q Query
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := raw[key]
		path := join(prefix, key)

		if isCombinator(key) {
			list, err := parseCombinator(path, value)
			if err != nil {
				return q, err
			}
			switch key {
			case KeyAnd:
				q.And = list
			case KeyOr:
				q.Or = list
			case KeyNor:
				q.Nor = list
			}
			continue
		}

		if strings.HasPrefix(key, "$") {
			return q, assertionf(path, "unknown top level operator %s", key)
		}
		if key == "" {
			return q, assertionf(prefix, "empty field name")
		}

		m, ok := asMap(value)
		if !ok || !hasOperatorKey(m) {
			q.Fields = append(q.Fields, Field{Path: key, Cond: Literal{Value: value}})
			continue
		}
		ops, err := parseOps(path, m, 0)
		if err != nil {
			return q, err
		}
		q.Fields = append(q.Fields, Field{Path: key, Cond: ops})
	}
	return q, nil
}

func parseCombinator(path string, value interface{}) ([]Query, error) {
	items, ok := asList(value)
	if !ok {
		return nil, assertionf(path, "value must be a list of queries")
	}
	queries := make([]Query, len(items))
	for i, item := range items {
		m, ok := asMap(item)
		if !ok {
			return nil, assertionf(path, "element %d is not a query", i)
		}
		q, err := parseQuery(path, m)
		if err != nil {
			return nil, err
		}
		queries[i] = q
	}
	return queries, nil
}

// parseOps parses an operator object. notDepth is the number of $not the object is
// nested in. $objMatch is only distributed by the outermost $not.
func parseOps(path string, raw map[string]interface{}, notDepth int) (Ops, error) {
	for key := range raw {
		if _, ok := ParseOp(key); !ok {
			return nil, assertionf(path, "unknown operator %s", key)
		}
	}

	var ops Ops
	for op := OpEq; op <= OpNot; op++ {
		value, ok := raw[op.String()]
		if !ok {
			continue
		}
		if op == OpObjMatch && notDepth > 1 {
			return nil, assertionf(path, "$objMatch cannot be nested in more than one $not")
		}
		operator, err := parseOperator(path, op, value, notDepth)
		if err != nil {
			return nil, err
		}
		ops = append(ops, operator)
	}
	return ops, nil
}

func parseOperator(path string, op Op, value interface{}, notDepth int) (Operator, error) {
	switch op {
	case OpIn, OpNin:
		if !isSlice(value) {
			return nil, assertionf(path, "%s requires a list", op)
		}
	case OpExists:
		if _, ok := value.(bool); !ok {
			return nil, assertionf(path, "%s requires a boolean", op)
		}
	case OpOptions:
		if _, ok := value.(string); !ok {
			return nil, assertionf(path, "%s requires a string", op)
		}
	case OpAll:
		return parseAll(path, value)
	case OpElemMatch, OpObjMatch:
		m, ok := asMap(value)
		if !ok {
			return nil, assertionf(path, "%s requires an object", op)
		}
		q, err := parseQuery(path, m)
		if err != nil {
			return nil, err
		}
		if op == OpElemMatch {
			return ElemMatch{Query: q}, nil
		}
		return ObjMatch{Query: q}, nil
	case OpNot:
		m, ok := asMap(value)
		if !ok {
			return nil, assertionf(path, "%s requires an operator object", op)
		}
		ops, err := parseOps(path, m, notDepth+1)
		if err != nil {
			return nil, err
		}
		return Not{Ops: ops}, nil
	}
	return Compare{Op: op, Value: value}, nil
}

// parseAll decides between a literal $all and an $all of $elemMatch by looking at the
// first element, like the store does.
func parseAll(path string, value interface{}) (Operator, error) {
	items, ok := asList(value)
	if !ok {
		return nil, assertionf(path, "$all requires a list")
	}
	if len(items) == 0 {
		return All{Values: []interface{}{}}, nil
	}
	if first, ok := asMap(items[0]); !ok || first[OpElemMatch.String()] == nil {
		return All{Values: items}, nil
	}

	queries := make([]Query, len(items))
	for i, item := range items {
		m, ok := asMap(item)
		if !ok || len(m) != 1 {
			return nil, assertionf(path, "$all element %d must be an object with a single $elemMatch", i)
		}
		sub, ok := asMap(m[OpElemMatch.String()])
		if !ok {
			return nil, assertionf(path, "$all element %d must be an object with a single $elemMatch", i)
		}
		q, err := parseQuery(path, sub)
		if err != nil {
			return nil, err
		}
		queries[i] = q
	}
	return AllMatch{Queries: queries}, nil
}

// Map returns the semantic map form of q. Parse(q.Map()) yields an equivalent query.
func (q Query) Map() map[string]interface{} {
	raw := map[string]interface{}{}
	for _, f := range q.Fields {
		switch c := f.Cond.(type) {
		case Literal:
			raw[f.Path] = c.Value
		case Ops:
			raw[f.Path] = c.Map()
		}
	}
	if q.And != nil {
		raw[KeyAnd] = mapList(q.And)
	}
	if q.Or != nil {
		raw[KeyOr] = mapList(q.Or)
	}
	if q.Nor != nil {
		raw[KeyNor] = mapList(q.Nor)
	}
	return raw
}

// Map returns the semantic map form of the operator object
func (ops Ops) Map() map[string]interface{} {
	raw := map[string]interface{}{}
	for _, op := range ops {
		switch o := op.(type) {
		case Compare:
			raw[o.Op.String()] = o.Value
		case All:
			raw[OpAll.String()] = list(o.Values)
		case AllMatch:
			items := make([]interface{}, len(o.Queries))
			for i, sub := range o.Queries {
				items[i] = map[string]interface{}{OpElemMatch.String(): sub.Map()}
			}
			raw[OpAll.String()] = items
		case ElemMatch:
			raw[OpElemMatch.String()] = o.Query.Map()
		case ObjMatch:
			raw[OpObjMatch.String()] = o.Query.Map()
		case Not:
			raw[OpNot.String()] = o.Ops.Map()
		}
	}
	return raw
}

func mapList(queries []Query) []interface{} {
	items := make([]interface{}, len(queries))
	for i, q := range queries {
		items[i] = q.Map()
	}
	return items
}

// MarshalJSON encodes the semantic map form of q
func (q Query) MarshalJSON() ([]byte, error) {
	return json.Marshal(q.Map())
}

// UnmarshalJSON decodes and parses a query in its semantic map form
func (q *Query) UnmarshalJSON(data []byte) error {
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := Parse(raw)
	if err != nil {
		return err
	}
	*q = parsed
	return nil
}

func hasOperatorKey(m map[string]interface{}) bool {
	for k := range m {
		if strings.HasPrefix(k, "$") {
			return true
		}
	}
	return false
}

func asMap(v interface{}) (map[string]interface{}, bool) {
	switch m := v.(type) {
	case map[string]interface{}:
		return m, true
	case Filter:
		return m, true
	}
	return nil, false
}

func asList(v interface{}) ([]interface{}, bool) {
	switch l := v.(type) {
	case []interface{}:
		return l, true
	case []map[string]interface{}:
		items := make([]interface{}, len(l))
		for i := range l {
			items[i] = l[i]
		}
		return items, true
	}
	return nil, false
}

func isSlice(v interface{}) bool {
	if v == nil {
		return false
	}
	k := reflect.TypeOf(v).Kind()
	return k == reflect.Slice || k == reflect.Array
}

func join(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}
