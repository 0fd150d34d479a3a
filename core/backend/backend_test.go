package backend_test

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/relabs-tech/docquery/core/backend"
	"github.com/relabs-tech/docquery/core/data"
	"github.com/relabs-tech/docquery/core/logger"
	"github.com/relabs-tech/docquery/core/query"
	"github.com/relabs-tech/docquery/core/schema"
)

const configurationJSON = `{
	"collections": [
	  {
		"resource": "user",
		"collection": "users",
		"max_page_size": 50
	  },
	  {
		"resource": "device",
		"schema_id": "https://docquery.relabs.tech/schemas/device.json"
	  }
	]
}`

const deviceSchema = `{
	"$id": "https://docquery.relabs.tech/schemas/device.json",
	"type": "object",
	"required": ["serial"],
	"properties": {
		"serial": {"type": "string"}
	}
}`

// fakeProvider records the queries it receives. Methods not overridden panic.
type fakeProvider struct {
	data.Provider[bson.M]
	items    []bson.M
	count    int64
	err      error
	queries  []query.Query
	params   []data.ListParams
	updates  []data.Update
	inserted []bson.M
	deletes  int
}

func (p *fakeProvider) GetManyByQuery(ctx context.Context, q query.Query, params ...data.ListParams) ([]bson.M, error) {
	p.queries = append(p.queries, q)
	p.params = append(p.params, params...)
	return p.items, p.err
}

func (p *fakeProvider) AssertGetOneByQuery(ctx context.Context, q query.Query, params ...data.QueryParams) (*bson.M, error) {
	p.queries = append(p.queries, q)
	if p.err != nil {
		return nil, p.err
	}
	if len(p.items) == 0 {
		return nil, backend.NewNotFoundError("user")
	}
	return &p.items[0], nil
}

func (p *fakeProvider) CountByQuery(ctx context.Context, q query.Query, params ...data.OpParams) (int64, error) {
	p.queries = append(p.queries, q)
	return p.count, p.err
}

func (p *fakeProvider) ExistsByQuery(ctx context.Context, q query.Query, params ...data.OpParams) (bool, error) {
	p.queries = append(p.queries, q)
	return len(p.items) > 0, p.err
}

func (p *fakeProvider) DeleteManyByQuery(ctx context.Context, q query.Query, params ...data.OpParams) error {
	p.queries = append(p.queries, q)
	p.deletes++
	return p.err
}

func (p *fakeProvider) UpdateManyByQuery(ctx context.Context, q query.Query, update data.Update, params ...data.OpParams) error {
	p.queries = append(p.queries, q)
	p.updates = append(p.updates, update)
	return p.err
}

func (p *fakeProvider) InsertList(ctx context.Context, items []bson.M, params ...data.OpParams) error {
	p.inserted = append(p.inserted, items...)
	return p.err
}

type testBackend struct {
	router  *mux.Router
	users   *fakeProvider
	devices *fakeProvider
}

func newTestBackend(t *testing.T) *testBackend {
	t.Helper()
	validator, err := schema.NewValidator([]string{deviceSchema}, nil)
	require.NoError(t, err)

	tb := &testBackend{
		router:  mux.NewRouter(),
		users:   &fakeProvider{},
		devices: &fakeProvider{},
	}
	backend.New(&backend.Builder{
		Config:    configurationJSON,
		Router:    tb.router,
		Validator: validator,
		Providers: map[string]data.Provider[bson.M]{
			"user":   tb.users,
			"device": tb.devices,
		},
	})
	return tb
}

func (tb *testBackend) post(t *testing.T, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	tb.router.ServeHTTP(rr, req)
	return rr
}

type errorBody struct {
	Errors []backend.OperationError `json:"errors"`
}

func decodeErrors(t *testing.T, rr *httptest.ResponseRecorder) []backend.OperationError {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.NotEmpty(t, body.Errors)
	return body.Errors
}

func TestQueryRoute(t *testing.T) {
	tb := newTestBackend(t)
	tb.users.items = []bson.M{{"name": "alice"}, {"name": "bob"}}

	rr := tb.post(t, "/data/user/query", `{
		"query": {"address": {"$objMatch": {"city": "berlin"}}, "age": {"$gte": 18}},
		"page": 2,
		"page_size": 500,
		"sort": [{"field": "age", "order": -1}]
	}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.NotEmpty(t, rr.Header().Get(logger.RequestIDHeader))

	var response struct {
		Items    []map[string]interface{} `json:"items"`
		Page     int                      `json:"page"`
		PageSize int                      `json:"page_size"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
	assert.Len(t, response.Items, 2)
	assert.Equal(t, "alice", response.Items[0]["name"])
	assert.Equal(t, 2, response.Page)
	assert.Equal(t, 50, response.PageSize, "clamped to max_page_size")

	require.Len(t, tb.users.queries, 1)
	assert.Equal(t, query.Filter{
		"address.city": "berlin",
		"age":          query.Filter{"$gte": 18.0},
	}, query.Translate(tb.users.queries[0]))

	require.Len(t, tb.users.params, 1)
	params := tb.users.params[0]
	assert.Equal(t, 2, *params.Page)
	assert.Equal(t, 50, *params.PageSize)
	assert.Equal(t, data.Sort{{Field: "age", Order: data.Descending}}, params.Sort)
}

func TestQueryRouteDefaults(t *testing.T) {
	tb := newTestBackend(t)

	rr := tb.post(t, "/data/user/query", ``)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.JSONEq(t, `{"items": null, "page": 0, "page_size": 50}`, rr.Body.String())
	assert.True(t, tb.users.queries[0].IsEmpty())

	rr = tb.post(t, "/data/device/query", `{"page": -4}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.JSONEq(t, `{"items": null, "page": 0, "page_size": 1000}`, rr.Body.String())
}

func TestCountExistsAndOne(t *testing.T) {
	tb := newTestBackend(t)
	tb.users.count = 3

	rr := tb.post(t, "/data/user/count", `{"query": {"name": {"$in": ["a", "b"]}}}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.JSONEq(t, `{"count": 3}`, rr.Body.String())
	assert.Equal(t, query.Filter{"name": query.Filter{"$in": []interface{}{"a", "b"}}}, query.Translate(tb.users.queries[0]))

	rr = tb.post(t, "/data/user/exists", `{"query": {"name": "a"}}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.JSONEq(t, `{"exists": false}`, rr.Body.String())

	rr = tb.post(t, "/data/user/one", `{"query": {"name": "a"}}`)
	require.Equal(t, http.StatusNotFound, rr.Code, rr.Body.String())
	assert.Equal(t, "NotFoundError", decodeErrors(t, rr)[0].Name)

	tb.users.items = []bson.M{{"name": "a"}}
	rr = tb.post(t, "/data/user/exists", `{"query": {"name": "a"}}`)
	assert.JSONEq(t, `{"exists": true}`, rr.Body.String())

	rr = tb.post(t, "/data/user/one", `{"query": {"name": "a"}}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.JSONEq(t, `{"name": "a"}`, rr.Body.String())
}

func TestDeleteAndUpdate(t *testing.T) {
	tb := newTestBackend(t)

	rr := tb.post(t, "/data/user/delete", `{"query": {"tags": {"$size": 0}}}`)
	require.Equal(t, http.StatusNoContent, rr.Code, rr.Body.String())
	assert.Equal(t, 1, tb.users.deletes)
	assert.Equal(t, query.Filter{"tags": query.Filter{"$size": 0.0}}, query.Translate(tb.users.queries[0]))

	rr = tb.post(t, "/data/user/update", `{"query": {"name": "a"}, "update": {"age": 3}}`)
	require.Equal(t, http.StatusNoContent, rr.Code, rr.Body.String())
	assert.Equal(t, []data.Update{{"age": 3.0}}, tb.users.updates)

	rr = tb.post(t, "/data/user/update", `{"query": {"name": "a"}}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "update", decodeErrors(t, rr)[0].Field)
}

func TestInsertValidatesSchema(t *testing.T) {
	tb := newTestBackend(t)

	rr := tb.post(t, "/data/device/insert", `{"items": [{"serial": "a1"}, {"serial": "b2"}]}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.JSONEq(t, `{"inserted": 2}`, rr.Body.String())
	assert.Len(t, tb.devices.inserted, 2)

	rr = tb.post(t, "/data/device/insert", `{"items": [{"serial": 5}]}`)
	require.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())
	assert.Equal(t, "ValidationError", decodeErrors(t, rr)[0].Name)
	assert.Len(t, tb.devices.inserted, 2)

	// no schema for users
	rr = tb.post(t, "/data/user/insert", `{"items": [{"serial": 5}]}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
}

func TestInvalidQueries(t *testing.T) {
	tb := newTestBackend(t)

	testCases := []struct {
		name  string
		body  string
		error string
	}{
		{name: "invalid json", body: `{"query": `, error: "ValidationError"},
		{name: "unknown operator", body: `{"query": {"a": {"$near": 1}}}`, error: "ValidationError"},
		{name: "combinator is not a list", body: `{"query": {"$or": {"a": 1}}}`, error: "ValidationError"},
		{name: "mixed all", body: `{"query": {"a": {"$all": [{"$elemMatch": {"n": 1}}, 2]}}}`, error: "MalformedQueryError"},
		{name: "objMatch under nested not", body: `{"query": {"a": {"$not": {"$not": {"$objMatch": {"b": {"$eq": 1}}}}}}}`, error: "ValidationError"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rr := tb.post(t, "/data/user/count", tc.body)
			require.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())
			assert.Equal(t, tc.error, decodeErrors(t, rr)[0].Name)
		})
	}
	assert.Empty(t, tb.users.queries)

	rr := tb.post(t, "/data/user/count", `{"query": {"a": {"$all": [{"$elemMatch": {"n": 1}}, 2]}}}`)
	assert.Equal(t, "a", decodeErrors(t, rr)[0].Field)
}

func TestProviderErrorsAreHidden(t *testing.T) {
	tb := newTestBackend(t)
	tb.users.err = errors.New("connection refused to 10.0.0.1")

	rr := tb.post(t, "/data/user/count", `{}`)
	require.Equal(t, http.StatusInternalServerError, rr.Code)
	errs := decodeErrors(t, rr)
	assert.Equal(t, "ServerError", errs[0].Name)
	assert.NotContains(t, rr.Body.String(), "10.0.0.1")
}

func TestTranslateRoute(t *testing.T) {
	tb := newTestBackend(t)

	rr := tb.post(t, "/translate", `{"obj": {"$not": {"$objMatch": {"a": {"$gt": 1}}}}, "$or": [{"b": 1}]}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.JSONEq(t, `{"obj.a": {"$not": {"$gt": 1}}, "$or": [{"b": 1}]}`, rr.Body.String())

	rr = tb.post(t, "/translate", `{"$where": "1"}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = tb.post(t, "/translate", `{"a": {"$not": {"$not": {"$objMatch": {"b": {"$eq": 1}}}}}}`)
	require.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())
	assert.Equal(t, "ValidationError", decodeErrors(t, rr)[0].Name)
}

func TestUnknownResource(t *testing.T) {
	tb := newTestBackend(t)
	rr := tb.post(t, "/data/unknown/query", `{}`)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	req := httptest.NewRequest(http.MethodGet, "/data/user/query", nil)
	rr = httptest.NewRecorder()
	tb.router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestCORSPreflight(t *testing.T) {
	tb := newTestBackend(t)

	req := httptest.NewRequest(http.MethodOptions, "/data/user/query", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	tb.router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, tb.users.queries)
}

func TestCompression(t *testing.T) {
	tb := newTestBackend(t)
	tb.users.count = 7

	req := httptest.NewRequest(http.MethodPost, "/data/user/count", bytes.NewBufferString(`{}`))
	req.Header.Set("Accept-Encoding", "gzip")
	rr := httptest.NewRecorder()
	tb.router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "gzip", rr.Header().Get("Content-Encoding"))
	zr, err := gzip.NewReader(rr.Body)
	require.NoError(t, err)
	body, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.JSONEq(t, `{"count": 7}`, string(body))
}

func TestNewPanicsOnInvalidConfiguration(t *testing.T) {
	testCases := []struct {
		name    string
		builder backend.Builder
	}{
		{name: "broken json", builder: backend.Builder{Config: `{`, Router: mux.NewRouter()}},
		{name: "no router", builder: backend.Builder{Config: `{"collections": []}`}},
		{name: "no database", builder: backend.Builder{Config: `{"collections": [{"resource": "user"}]}`, Router: mux.NewRouter()}},
		{name: "unknown schema", builder: backend.Builder{
			Config:    `{"collections": [{"resource": "user", "schema_id": "https://unknown"}]}`,
			Router:    mux.NewRouter(),
			Providers: map[string]data.Provider[bson.M]{"user": &fakeProvider{}},
		}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Panics(t, func() { backend.New(&tc.builder) })
		})
	}
}
