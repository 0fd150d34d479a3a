/*
Package query implements the semantic document query language and its translation into
native MongoDB-compatible filters.

A semantic query maps field paths to either a literal (implicit equality) or to a set
of operators. Sub-documents are matched with $objMatch, array elements with
$elemMatch and $all, and negation is expressed with $not. At the top level a query may
combine sub-queries with $and, $or and $nor.

Example:

	q := query.Where("num", query.Match(query.Gt(1), query.Lte(10))).
		Where("obj", query.Match(query.ObjMatchOf(query.Where("str", query.Match(query.Eq("x"))))))

	filter := query.Translate(q)
	// filter == query.Filter{
	//	"num":     query.Filter{"$gt": 1, "$lte": 10},
	//	"obj.str": query.Filter{"$eq": "x"},
	// }

Translation

Sub-document matches are flattened into dotted paths ("obj.str") because the store
matches nested fields through dotted top-level keys. Array operators ($elemMatch, $all)
stay nested.

$not wrapping an $objMatch is distributed onto every flattened field:

	{"obj": {"$not": {"$objMatch": {"a": 1, "b": 2}}}}

becomes

	{"obj.a": {"$not": 1}, "obj.b": {"$not": 2}}

which reads as "a is not 1 AND b is not 2", not as the negation of the whole
sub-document match. Callers rely on this, so it is kept as is.

An array that must be empty is best queried with EmptyArray(), i.e. {"$eq": []}.
The combination {"$all": [], "$size": 0} does not reliably match.

Malformed queries

Queries built in Go that violate the structure of the language (for example an
$objMatch nested in an operator object that cannot be flattened) are programming
errors: Translate panics with an *AssertionError. Queries coming from untrusted JSON
should go through Parse (or TranslateMap), which report the same error as a value.
*/
package query
