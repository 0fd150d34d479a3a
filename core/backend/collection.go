package backend

import (
	"io"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/relabs-tech/docquery/core/data"
	"github.com/relabs-tech/docquery/core/logger"
	"github.com/relabs-tech/docquery/core/pointers"
	"github.com/relabs-tech/docquery/core/query"
)

// maximum size of a request body
const maxBodySize = 4 << 20

// queryRequest is the body of all query routes. Only the query route uses the pagination
// and sort fields.
type queryRequest struct {
	Query    map[string]interface{} `json:"query"`
	Page     *int                   `json:"page"`
	PageSize *int                   `json:"page_size"`
	Sort     data.Sort              `json:"sort"`
}

type updateRequest struct {
	Query  map[string]interface{} `json:"query"`
	Update data.Update            `json:"update"`
}

type insertRequest struct {
	Items []bson.M `json:"items"`
}

type listResponse struct {
	Items    []bson.M `json:"items"`
	Page     int      `json:"page"`
	PageSize int      `json:"page_size"`
}

func (b *Backend) createCollectionResource(router *mux.Router, rc collectionConfiguration) {
	resource := rc.Resource
	provider := b.providers[resource]
	prefix := "/data/" + resource
	rlog := logger.Default()
	rlog.Debugln("collection: ", resource)

	route := func(verb string, handler func(w http.ResponseWriter, r *http.Request)) {
		rlog.Debugf("  handle collection route: %s/%s POST", prefix, verb)
		router.HandleFunc(prefix+"/"+verb, func(w http.ResponseWriter, r *http.Request) {
			ctx, _ := logger.ContextWithCollection(r.Context(), resource)
			handler(w, r.WithContext(ctx))
		}).Methods(http.MethodOptions, http.MethodPost)
	}

	route("query", func(w http.ResponseWriter, r *http.Request) {
		var req queryRequest
		q, err := b.readQuery(r, &req, func() map[string]interface{} { return req.Query })
		if err != nil {
			writeError(w, r, err)
			return
		}

		page := pointers.Safe(data.GetPage(req.Page))
		pageSize := pointers.Safe(data.GetPageSize(req.PageSize, &page, rc.MaxPageSize))
		items, err := provider.GetManyByQuery(r.Context(), q, data.ListParams{
			Page:        &page,
			PageSize:    &pageSize,
			MaxPageSize: rc.MaxPageSize,
			Sort:        req.Sort,
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, listResponse{Items: items, Page: page, PageSize: pageSize})
	})

	route("one", func(w http.ResponseWriter, r *http.Request) {
		var req queryRequest
		q, err := b.readQuery(r, &req, func() map[string]interface{} { return req.Query })
		if err != nil {
			writeError(w, r, err)
			return
		}
		item, err := provider.AssertGetOneByQuery(r.Context(), q)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, item)
	})

	route("count", func(w http.ResponseWriter, r *http.Request) {
		var req queryRequest
		q, err := b.readQuery(r, &req, func() map[string]interface{} { return req.Query })
		if err != nil {
			writeError(w, r, err)
			return
		}
		count, err := provider.CountByQuery(r.Context(), q)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int64{"count": count})
	})

	route("exists", func(w http.ResponseWriter, r *http.Request) {
		var req queryRequest
		q, err := b.readQuery(r, &req, func() map[string]interface{} { return req.Query })
		if err != nil {
			writeError(w, r, err)
			return
		}
		exists, err := provider.ExistsByQuery(r.Context(), q)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"exists": exists})
	})

	route("delete", func(w http.ResponseWriter, r *http.Request) {
		var req queryRequest
		q, err := b.readQuery(r, &req, func() map[string]interface{} { return req.Query })
		if err != nil {
			writeError(w, r, err)
			return
		}
		if err := provider.DeleteManyByQuery(r.Context(), q); err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	route("update", func(w http.ResponseWriter, r *http.Request) {
		var req updateRequest
		q, err := b.readQuery(r, &req, func() map[string]interface{} { return req.Query })
		if err != nil {
			writeError(w, r, err)
			return
		}
		if len(req.Update) == 0 {
			writeError(w, r, NewValidationError("update must not be empty", "update"))
			return
		}
		if err := provider.UpdateManyByQuery(r.Context(), q, req.Update); err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	route("insert", func(w http.ResponseWriter, r *http.Request) {
		var req insertRequest
		if err := readBody(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		if rc.SchemaID != "" {
			for _, item := range req.Items {
				if err := b.validator.ValidateStruct(item, rc.SchemaID); err != nil {
					writeError(w, r, err)
					return
				}
			}
		}
		if err := provider.InsertList(r.Context(), req.Items); err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]int{"inserted": len(req.Items)})
	})
}

// handleTranslate adds a route that returns the native filter of a query
func (b *Backend) handleTranslate(router *mux.Router) {
	logger.Default().Debugln("  handle translate route: /translate POST")
	router.HandleFunc("/translate", func(w http.ResponseWriter, r *http.Request) {
		var raw map[string]interface{}
		if err := readBody(r, &raw); err != nil {
			writeError(w, r, err)
			return
		}
		filter, err := b.parseQuery(raw)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, query.Translate(filter))
	}).Methods(http.MethodOptions, http.MethodPost)
}

// readQuery decodes the body into req and parses the query that raw returns afterwards
func (b *Backend) readQuery(r *http.Request, req interface{}, raw func() map[string]interface{}) (query.Query, error) {
	if err := readBody(r, req); err != nil {
		return query.Query{}, err
	}
	return b.parseQuery(raw())
}

// parseQuery validates raw against the query schema and parses it. A missing query
// matches everything.
func (b *Backend) parseQuery(raw map[string]interface{}) (query.Query, error) {
	if raw == nil {
		raw = map[string]interface{}{}
	}
	if err := b.validator.ValidateQuery(raw); err != nil {
		return query.Query{}, err
	}
	return query.Parse(raw)
}

func readBody(r *http.Request, v interface{}) error {
	body, err := io.ReadAll(http.MaxBytesReader(nil, r.Body, maxBodySize))
	if err != nil {
		return NewValidationError("cannot read body: "+err.Error(), "")
	}
	if len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, v); err != nil {
		return NewValidationError("invalid JSON: "+err.Error(), "")
	}
	return nil
}
