/*
Package backend implements the configurable query backend

A backend exposes MongoDB collections through a small HTTP API that accepts semantic
queries (see package query) instead of native MongoDB filters.

Configuration

The configuration is done entirely via JSON. It consists of a list of collections.

Example:
  {
	"collections": [
	  {
		"resource": "user",
		"collection": "users",
		"schema_id": "https://example.com/schemas/user.json",
		"max_page_size": 100
	  },
	  {
		"resource": "device"
	  }
	]
  }

The collection defaults to the resource name. If a schema_id is set, inserted documents are
validated against that schema, which must be known to the validator passed to the Builder.

This configuration creates the following routes for every resource:
	POST /data/{resource}/query
	POST /data/{resource}/one
	POST /data/{resource}/count
	POST /data/{resource}/exists
	POST /data/{resource}/delete
	POST /data/{resource}/update
	POST /data/{resource}/insert

plus
	POST /translate
	GET /version

Queries

The query routes take a body like

	{
	  "query": {"address": {"$objMatch": {"city": "berlin"}}, "age": {"$gte": 18}},
	  "page": 0,
	  "page_size": 20,
	  "sort": [{"field": "age", "order": -1}]
	}

A missing query matches all documents. The query is validated against the query schema and
then parsed. page is zero-based, page_size is clamped to the max_page_size of the
collection. The query route answers with

	{"items": [...], "page": 0, "page_size": 20}

count answers with {"count": n}, exists with {"exists": true}, one with the first matching
document or 404. delete and update answer with 204. update takes {"query": ..., "update":
{...}} and sets the listed fields on all matching documents. insert takes {"items": [...]}
and answers with 201 and {"inserted": n}.

/translate takes a bare query and returns the native MongoDB filter, which is useful for
debugging.

Errors

All errors are returned as

	{"errors": [{"name": "ValidationError", "message": "...", "field": "..."}]}

Malformed queries are reported as MalformedQueryError with the path of the offending field.
Server errors do not expose details, they are logged with the request ID instead.
*/
package backend
