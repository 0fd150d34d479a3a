package backend

import (
	"fmt"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/relabs-tech/docquery/core/data"
	"github.com/relabs-tech/docquery/core/logger"
	"github.com/relabs-tech/docquery/core/schema"
)

// Backend is the query backend
type Backend struct {
	config    Configuration
	router    *mux.Router
	validator *schema.Validator
	providers map[string]data.Provider[bson.M]
}

// Builder is a builder helper for the Backend
type Builder struct {
	// Config is the JSON description of all collections. This is mandatory.
	Config string
	// Router is a mux router. This is mandatory.
	Router *mux.Router
	// Database is the MongoDB database holding the collections. It is mandatory unless
	// Providers covers every configured resource.
	Database *mongo.Database
	// Providers overrides the provider of a resource. This is optional.
	Providers map[string]data.Provider[bson.M]
	// Validator validates queries and, for collections with a schema_id, documents. If
	// not set, a validator knowing only the query schema is used.
	Validator *schema.Validator
	// CORSOrigins are the allowed origins. Defaults to any origin.
	CORSOrigins []string
}

// New realizes the actual backend. It adds the routes of all configured collections to
// the router. New panics if the configuration is invalid.
func New(bb *Builder) *Backend {
	config, err := ParseConfiguration(bb.Config)
	if err != nil {
		panic(err)
	}

	if bb.Router == nil {
		panic("Router is missing")
	}

	validator := bb.Validator
	if validator == nil {
		validator, err = schema.NewValidator(nil, nil)
		if err != nil {
			panic(err)
		}
	}

	b := &Backend{
		config:    config,
		router:    bb.Router,
		validator: validator,
		providers: make(map[string]data.Provider[bson.M]),
	}

	for _, c := range config.Collections {
		if c.SchemaID != "" && !validator.HasSchema(c.SchemaID) {
			panic(fmt.Sprintf("resource %s: unknown schema %s", c.Resource, c.SchemaID))
		}
		if p, ok := bb.Providers[c.Resource]; ok {
			b.providers[c.Resource] = p
			continue
		}
		if bb.Database == nil {
			panic(fmt.Sprintf("resource %s: Database is missing", c.Resource))
		}
		b.providers[c.Resource] = data.NewMongoProvider[bson.M](
			bb.Database.Collection(c.Collection),
			data.WithNotFoundError(NewNotFoundError(c.Resource)),
		)
	}

	logger.AddRequestID(b.router)
	b.handleRecovery()
	b.handleCORS(bb.CORSOrigins)
	b.handleCompression()
	b.handleRoutes(b.router)
	return b
}

// handleRoutes adds all necessary handlers for the configuration
func (b *Backend) handleRoutes(router *mux.Router) {
	logger.Default().Debugln("backend: handle routes")

	for _, c := range b.config.Collections {
		b.createCollectionResource(router, c)
	}
	b.handleTranslate(router)
	b.handleVersion(router)
}

func (b *Backend) handleRecovery() {
	recoveryLogger := logrus.StandardLogger().WithField("component", "recovery")
	b.router.Use(handlers.RecoveryHandler(
		handlers.RecoveryLogger(recoveryLogger),
		handlers.PrintRecoveryStack(true),
	))
}

func (b *Backend) handleCORS(origins []string) {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	b.router.Use(handlers.CORS(
		handlers.AllowedOrigins(origins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Accept", "Content-Type", "Content-Length", "Accept-Encoding", logger.RequestIDHeader}),
		handlers.ExposedHeaders([]string{logger.RequestIDHeader}),
		handlers.MaxAge(86400),
	))
}

func (b *Backend) handleCompression() {
	b.router.Use(handlers.CompressHandler)
}
