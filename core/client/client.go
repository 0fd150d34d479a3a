/*
Package client provides easy and fast access to the query API of a backend

A client either talks to a remote backend over HTTP (NewWithURL) or directly to the mux
router of an in-process backend (NewWithRouter). The latter skips marshalling HTTP
and is perfectly suited for unit tests.
*/
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"

	"github.com/relabs-tech/docquery/core/data"
	"github.com/relabs-tech/docquery/core/pointers"
	"github.com/relabs-tech/docquery/core/query"
)

// Client provides easy access to the query API.
type Client struct {
	router     *mux.Router
	httpClient *http.Client
	url        string
	ctx        context.Context

	defaultHeaders map[string]string
}

// NewWithRouter creates a client to make pseudo-REST requests to the backend,
// through the mux router
func NewWithRouter(router *mux.Router) Client {
	return Client{
		router:         router,
		defaultHeaders: map[string]string{},
	}
}

// NewWithURL creates a client to make REST requests to the backend at url
func NewWithURL(url string) Client {
	return Client{
		url:            strings.TrimSuffix(url, "/"),
		httpClient:     &http.Client{Timeout: 20 * time.Second},
		defaultHeaders: map[string]string{},
	}
}

// WithHeader returns a new client with a default header added
func (c Client) WithHeader(key string, value string) Client {
	headers := make(map[string]string, len(c.defaultHeaders)+1)
	for k, v := range c.defaultHeaders {
		headers[k] = v
	}
	headers[key] = value
	c.defaultHeaders = headers
	return c
}

// WithContext returns a new client with specific request context
func (c Client) WithContext(ctx context.Context) Client {
	c.ctx = ctx
	return c
}

// Context returns the request context of the client
func (c Client) Context() context.Context {
	if c.ctx == nil {
		return context.Background()
	}
	return c.ctx
}

// ErrorDetail is one error reported by the backend
type ErrorDetail struct {
	Name    string `json:"name"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
	Action  string `json:"action,omitempty"`
}

// ResponseError is returned when the backend answers with an unexpected status code
type ResponseError struct {
	StatusCode int
	Errors     []ErrorDetail
	Body       string
}

func (e *ResponseError) Error() string {
	if len(e.Errors) == 0 {
		return fmt.Sprintf("unexpected status code %d: %s", e.StatusCode, e.Body)
	}
	msgs := make([]string, 0, len(e.Errors))
	for _, d := range e.Errors {
		msg := d.Name + ": " + d.Message
		if d.Field != "" {
			msg = d.Name + ": " + d.Field + ": " + d.Message
		}
		msgs = append(msgs, msg)
	}
	return fmt.Sprintf("unexpected status code %d: %s", e.StatusCode, strings.Join(msgs, "; "))
}

// Collection represents the collection of a particular resource
type Collection struct {
	client   *Client
	resource string
	pageSize *int
	sort     data.Sort
}

// Collection returns a new collection client
func (c Client) Collection(resource string) Collection {
	return Collection{client: &c, resource: resource}
}

// WithPageSize returns a new collection client that requests pages of size items
func (r Collection) WithPageSize(size int) Collection {
	r.pageSize = pointers.To(size)
	return r
}

// WithSort returns a new collection client that sorts query results
func (r Collection) WithSort(sort ...data.SortField) Collection {
	r.sort = sort
	return r
}

// Path returns the path of a route of the collection
func (r Collection) Path(verb string) string {
	return "/data/" + r.resource + "/" + verb
}

type queryBody struct {
	Query    query.Query `json:"query"`
	Page     *int        `json:"page,omitempty"`
	PageSize *int        `json:"page_size,omitempty"`
	Sort     data.Sort   `json:"sort,omitempty"`
}

type listBody struct {
	Items    []json.RawMessage `json:"items"`
	Page     int               `json:"page"`
	PageSize int               `json:"page_size"`
}

// List gets the first page of all items matching q into result, which should be a
// pointer to a slice. Returns the actual http status code.
func (r Collection) List(q query.Query, result interface{}) (int, error) {
	p := r.FirstPage(q)
	return p.Get(result)
}

// One gets the single item matching q into result. A missing item results in a
// ResponseError with http.StatusNotFound.
func (r Collection) One(q query.Query, result interface{}) (int, error) {
	return r.client.RawPost(r.Path("one"), queryBody{Query: q}, result)
}

// Count returns the number of items matching q
func (r Collection) Count(q query.Query) (int64, error) {
	var res struct {
		Count int64 `json:"count"`
	}
	_, err := r.client.RawPost(r.Path("count"), queryBody{Query: q}, &res)
	return res.Count, err
}

// Exists returns true if at least one item matches q
func (r Collection) Exists(q query.Query) (bool, error) {
	var res struct {
		Exists bool `json:"exists"`
	}
	_, err := r.client.RawPost(r.Path("exists"), queryBody{Query: q}, &res)
	return res.Exists, err
}

// Delete deletes all items matching q
func (r Collection) Delete(q query.Query) (int, error) {
	return r.client.RawPost(r.Path("delete"), queryBody{Query: q}, nil)
}

// Update sets the fields of update on all items matching q
func (r Collection) Update(q query.Query, update data.Update) (int, error) {
	body := struct {
		Query  query.Query `json:"query"`
		Update data.Update `json:"update"`
	}{Query: q, Update: update}
	return r.client.RawPost(r.Path("update"), body, nil)
}

// Insert inserts items, which must encode to a JSON list of objects. Returns the
// number of inserted items.
func (r Collection) Insert(items interface{}) (int, error) {
	body := struct {
		Items interface{} `json:"items"`
	}{Items: items}
	var res struct {
		Inserted int `json:"inserted"`
	}
	_, err := r.client.RawPost(r.Path("insert"), body, &res)
	return res.Inserted, err
}

// Page is a helper to page through the results of a query
type Page struct {
	r        Collection
	q        query.Query
	page     int
	received int
	pageSize int
	fetched  bool
}

// FirstPage returns a requester for the first page of the items matching q
func (r Collection) FirstPage(q query.Query) Page {
	return Page{r: r, q: q}
}

// HasData returns true if the page may have data (by definition true for the first page).
// A page may have data as long as the previous page was full.
func (p Page) HasData() bool {
	return p.page == 0 || p.received >= p.pageSize
}

// Number returns the page number
func (p Page) Number() int {
	return p.page
}

// Get gets one page of items into result, which should be a pointer to a slice
func (p *Page) Get(result interface{}) (int, error) {
	var res listBody
	status, err := p.r.client.RawPost(p.r.Path("query"), queryBody{
		Query:    p.q,
		Page:     pointers.To(p.page),
		PageSize: p.r.pageSize,
		Sort:     p.r.sort,
	}, &res)
	if err != nil {
		return status, err
	}
	p.received = len(res.Items)
	p.pageSize = res.PageSize
	p.fetched = true

	if result != nil {
		items, err := json.Marshal(res.Items)
		if err != nil {
			return status, err
		}
		if err := json.Unmarshal(items, result); err != nil {
			return status, err
		}
	}
	return status, nil
}

// Next returns the next page. Next must be called after Get.
func (p Page) Next() Page {
	next := Page{r: p.r, q: p.q, page: p.page + 1}
	if p.fetched {
		next.received = p.received
		next.pageSize = p.pageSize
	}
	return next
}

// Translate returns the native filter of q into result
func (c Client) Translate(q query.Query, result interface{}) (int, error) {
	return c.RawPost("/translate", q, result)
}

// Version returns the version of the backend
func (c Client) Version() (string, error) {
	var res struct {
		Version string `json:"version"`
	}
	r, _ := http.NewRequestWithContext(c.Context(), http.MethodGet, c.url+"/version", nil)
	status, body, err := c.do(r)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", responseError(status, body)
	}
	err = json.Unmarshal(body, &res)
	return res.Version, err
}

// RawPost posts body to path. Expects http.StatusOK, http.StatusCreated or http.StatusNoContent
// as valid responses, otherwise it returns a *ResponseError. Returns the actual http status code.
//
// body can also be a []byte, result can also be raw *[]byte.
// result can be nil.
func (c Client) RawPost(path string, body interface{}, result interface{}) (int, error) {
	var err error
	j, ok := body.([]byte)
	if !ok {
		j, err = json.Marshal(body)
		if err != nil {
			return http.StatusBadRequest, fmt.Errorf("POST to %s: %w", path, err)
		}
	}

	r, _ := http.NewRequestWithContext(c.Context(), http.MethodPost, c.url+path, bytes.NewBuffer(j))
	r.Header.Set("Content-Type", "application/json")
	status, resBody, err := c.do(r)
	if err != nil {
		return status, err
	}
	if status != http.StatusCreated && status != http.StatusOK && status != http.StatusNoContent {
		return status, responseError(status, resBody)
	}

	if len(resBody) > 0 && result != nil {
		if raw, ok := result.(*[]byte); ok {
			*raw = resBody
		} else {
			err = json.Unmarshal(resBody, result)
		}
	}
	return status, err
}

func (c Client) do(r *http.Request) (int, []byte, error) {
	for key, value := range c.defaultHeaders {
		r.Header.Add(key, value)
	}

	if c.router != nil {
		rec := httptest.NewRecorder()
		c.router.ServeHTTP(rec, r)
		res := rec.Result()
		return res.StatusCode, rec.Body.Bytes(), nil
	}

	res, err := c.httpClient.Do(r)
	if err != nil {
		return http.StatusInternalServerError, nil, err
	}
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return res.StatusCode, nil, err
	}
	return res.StatusCode, body, nil
}

func responseError(status int, body []byte) error {
	var res struct {
		Errors []ErrorDetail `json:"errors"`
	}
	_ = json.Unmarshal(body, &res)
	return &ResponseError{
		StatusCode: status,
		Errors:     res.Errors,
		Body:       strings.TrimSpace(string(body)),
	}
}
