package logger_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"

	"github.com/relabs-tech/docquery/core/logger"
)

func TestContextWithLogger(t *testing.T) {
	ctx, rlog := logger.ContextWithLogger(context.Background())
	assert.NotNil(t, rlog)
	id := logger.RequestIDFromContext(ctx)
	assert.NotEmpty(t, id)

	// an existing logger is kept
	again, rlog2 := logger.ContextWithLogger(ctx)
	assert.Equal(t, rlog, rlog2)
	assert.Equal(t, id, logger.RequestIDFromContext(again))

	assert.Empty(t, logger.RequestIDFromContext(context.Background()))
	assert.NotNil(t, logger.FromContext(context.Background()))
}

func TestContextWithCollection(t *testing.T) {
	ctx, _ := logger.ContextWithRequestID(context.Background(), "req-1")
	ctx, rlog := logger.ContextWithCollection(ctx, "users")

	assert.Equal(t, "users", rlog.Data["collection"])
	assert.Equal(t, "req-1", logger.RequestIDFromContext(ctx))
	assert.Equal(t, rlog, logger.FromContext(ctx))
}

func TestAddRequestID(t *testing.T) {
	router := mux.NewRouter()
	logger.AddRequestID(router)

	var seen string
	router.HandleFunc("/test", func(w http.ResponseWriter, r *http.Request) {
		seen = logger.RequestIDFromContext(r.Context())
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set(logger.RequestIDHeader, "incoming-id")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, "incoming-id", seen)
	assert.Equal(t, "incoming-id", rr.Header().Get(logger.RequestIDHeader))

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/test", nil))
	assert.NotEmpty(t, seen)
	assert.NotEqual(t, "incoming-id", seen)
	assert.Equal(t, seen, rr.Header().Get(logger.RequestIDHeader))
}
