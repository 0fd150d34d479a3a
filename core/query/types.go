package query

// Op is the kind of a query operator
type Op int

// All supported operators. The declaration order is the order in which operators of
// one operator object are evaluated when the object comes from an unordered map.
const (
	OpEq Op = iota
	OpNe
	OpIn
	OpNin
	OpExists
	OpRegex
	OpOptions
	OpGt
	OpGte
	OpLt
	OpLte
	OpSize
	OpAll
	OpElemMatch
	OpObjMatch
	OpNot
)

var opNames = [...]string{
	OpEq:        "$eq",
	OpNe:        "$ne",
	OpIn:        "$in",
	OpNin:       "$nin",
	OpExists:    "$exists",
	OpRegex:     "$regex",
	OpOptions:   "$options",
	OpGt:        "$gt",
	OpGte:       "$gte",
	OpLt:        "$lt",
	OpLte:       "$lte",
	OpSize:      "$size",
	OpAll:       "$all",
	OpElemMatch: "$elemMatch",
	OpObjMatch:  "$objMatch",
	OpNot:       "$not",
}

// String returns the operator key, e.g. "$gte"
func (o Op) String() string {
	if o < 0 || int(o) >= len(opNames) {
		return "$unknown"
	}
	return opNames[o]
}

// ParseOp returns the operator for the key s
func ParseOp(s string) (Op, bool) {
	for i, name := range opNames {
		if name == s {
			return Op(i), true
		}
	}
	return 0, false
}

// passThrough reports whether the operator value is copied into the native filter untouched
func (o Op) passThrough() bool {
	return o >= OpEq && o <= OpSize
}

// Logical combinator keys, only valid at the top level of a query
const (
	KeyAnd = "$and"
	KeyOr  = "$or"
	KeyNor = "$nor"
)

func isCombinator(key string) bool {
	return key == KeyAnd || key == KeyOr || key == KeyNor
}

// Filter is a native query as understood by a MongoDB-compatible store. Nested operator
// objects produced by Translate are Filters as well.
type Filter map[string]interface{}

// Condition is what a field of a query is matched against: either a Literal or Ops.
type Condition interface {
	isCondition()
}

// Literal matches a field by equality. The value is copied verbatim into the native filter.
type Literal struct {
	Value interface{}
}

func (Literal) isCondition() {}

// Ops is an operator object: all operators must match. Operators are translated in order.
type Ops []Operator

func (Ops) isCondition() {}

// Operator is one entry of an operator object. The concrete types are
// Compare, All, AllMatch, ElemMatch, ObjMatch and Not.
type Operator interface {
	Kind() Op
	isOperator()
}

// Compare is an operator whose value is passed through untouched: $eq, $ne, $in, $nin,
// $exists, $regex, $options, $gt, $gte, $lt, $lte and $size.
type Compare struct {
	Op    Op
	Value interface{}
}

// Kind returns the comparison operator
func (c Compare) Kind() Op { return c.Op }
func (Compare) isOperator() {}

// All matches arrays that contain all of the given literal values
type All struct {
	Values []interface{}
}

// Kind returns OpAll
func (All) Kind() Op { return OpAll }
func (All) isOperator() {}

// AllMatch matches arrays in which each of the queries matches at least one element.
// In the semantic form it is written as {"$all": [{"$elemMatch": q1}, {"$elemMatch": q2}]}.
type AllMatch struct {
	Queries []Query
}

// Kind returns OpAll
func (AllMatch) Kind() Op { return OpAll }
func (AllMatch) isOperator() {}

// ElemMatch matches arrays with at least one element matching Query
type ElemMatch struct {
	Query Query
}

// Kind returns OpElemMatch
func (ElemMatch) Kind() Op { return OpElemMatch }
func (ElemMatch) isOperator() {}

// ObjMatch matches a sub-document against Query. It is flattened into dotted paths.
type ObjMatch struct {
	Query Query
}

// Kind returns OpObjMatch
func (ObjMatch) Kind() Op { return OpObjMatch }
func (ObjMatch) isOperator() {}

// Not negates an operator object. An ObjMatch inside Not is negated field by field.
type Not struct {
	Ops Ops
}

// Kind returns OpNot
func (Not) Kind() Op { return OpNot }
func (Not) isOperator() {}

// Field is one field of a query. A nil Cond means the field is absent and is skipped.
// Path may contain dots; it is used as is.
type Field struct {
	Path string
	Cond Condition
}

// Query is a semantic query
type Query struct {
	Fields []Field
	And    []Query
	Or     []Query
	Nor    []Query
}

// IsEmpty returns true if the query matches everything
func (q Query) IsEmpty() bool {
	for _, f := range q.Fields {
		if f.Cond != nil {
			return false
		}
	}
	return q.And == nil && q.Or == nil && q.Nor == nil
}
