package query

// Where returns a new query with a single field
func Where(path string, cond Condition) Query {
	return Query{}.Where(path, cond)
}

// Where returns a copy of q with the field added. The receiver is not modified.
func (q Query) Where(path string, cond Condition) Query {
	fields := make([]Field, len(q.Fields), len(q.Fields)+1)
	copy(fields, q.Fields)
	q.Fields = append(fields, Field{Path: path, Cond: cond})
	return q
}

// And returns a query whose $and combinator is set to queries
func And(queries ...Query) Query { return Query{And: queries} }

// Or returns a query whose $or combinator is set to queries
func Or(queries ...Query) Query { return Query{Or: queries} }

// Nor returns a query whose $nor combinator is set to queries
func Nor(queries ...Query) Query { return Query{Nor: queries} }

// Equal returns a literal condition, i.e. implicit equality
func Equal(v interface{}) Condition { return Literal{Value: v} }

// Match returns an operator object condition
func Match(ops ...Operator) Condition { return Ops(ops) }

// Eq returns an $eq operator
func Eq(v interface{}) Operator { return Compare{Op: OpEq, Value: v} }

// Ne returns an $ne operator
func Ne(v interface{}) Operator { return Compare{Op: OpNe, Value: v} }

// In returns an $in operator
func In(values ...interface{}) Operator { return Compare{Op: OpIn, Value: list(values)} }

// Nin returns a $nin operator
func Nin(values ...interface{}) Operator { return Compare{Op: OpNin, Value: list(values)} }

// Exists returns an $exists operator
func Exists(exists bool) Operator { return Compare{Op: OpExists, Value: exists} }

// Regex returns a $regex operator. pattern is usually a string.
func Regex(pattern interface{}) Operator { return Compare{Op: OpRegex, Value: pattern} }

// Options returns the $options operator that goes along with $regex
func Options(options string) Operator { return Compare{Op: OpOptions, Value: options} }

// Gt returns a $gt operator
func Gt(v interface{}) Operator { return Compare{Op: OpGt, Value: v} }

// Gte returns a $gte operator
func Gte(v interface{}) Operator { return Compare{Op: OpGte, Value: v} }

// Lt returns a $lt operator
func Lt(v interface{}) Operator { return Compare{Op: OpLt, Value: v} }

// Lte returns a $lte operator
func Lte(v interface{}) Operator { return Compare{Op: OpLte, Value: v} }

// Size returns a $size operator
func Size(n int) Operator { return Compare{Op: OpSize, Value: n} }

// EmptyArray matches arrays of length zero. This is {"$eq": []} which, unlike
// {"$all": [], "$size": 0}, matches reliably.
func EmptyArray() Operator { return Compare{Op: OpEq, Value: []interface{}{}} }

// AllOf returns an $all operator with literal values
func AllOf(values ...interface{}) Operator { return All{Values: list(values)} }

// AllElemMatch returns an $all operator in which every query must match at least one
// array element
func AllElemMatch(queries ...Query) Operator { return AllMatch{Queries: queries} }

// ElemMatchOf returns an $elemMatch operator
func ElemMatchOf(q Query) Operator { return ElemMatch{Query: q} }

// ObjMatchOf returns an $objMatch operator
func ObjMatchOf(q Query) Operator { return ObjMatch{Query: q} }

// NotOf returns a $not operator
func NotOf(ops ...Operator) Operator { return Not{Ops: ops} }

func list(values []interface{}) []interface{} {
	if values == nil {
		return []interface{}{}
	}
	return values
}
