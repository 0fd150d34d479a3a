package test

import (
	"context"
	"net/http/httptest"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/suite"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/relabs-tech/docquery/core/backend"
	"github.com/relabs-tech/docquery/core/client"
	"github.com/relabs-tech/docquery/core/schema"
)

// IntegrationTestSuite serves a backend for Config over HTTP, backed by a MongoDB
// container. Every test starts with empty collections.
type IntegrationTestSuite struct {
	suite.Suite

	// Config is the backend configuration
	Config string
	// Schemas are additional JSON schemas for the validator
	Schemas []string

	Mongo    *Mongo
	Database *mongo.Database
	Router   *mux.Router
	Backend  *backend.Backend
	Client   client.Client

	srv *httptest.Server
}

func (s *IntegrationTestSuite) SetupSuite() {
	ctx := context.Background()

	m, err := StartMongo(ctx)
	s.Mongo = m
	s.Require().NoError(err)
	s.Database = m.Client.Database("docquery_test")

	validator, err := schema.NewValidator(s.Schemas, nil)
	s.Require().NoError(err)

	s.Router = mux.NewRouter()
	s.Backend = backend.New(&backend.Builder{
		Config:    s.Config,
		Router:    s.Router,
		Database:  s.Database,
		Validator: validator,
	})

	s.srv = httptest.NewServer(s.Router)
	s.Client = client.NewWithURL(s.srv.URL)
}

func (s *IntegrationTestSuite) SetupTest() {
	s.Require().NoError(s.Database.Drop(context.Background()))
}

func (s *IntegrationTestSuite) TearDownSuite() {
	if s.srv != nil {
		s.srv.Close()
	}
	if s.Mongo != nil {
		s.NoError(s.Mongo.Terminate(context.Background()))
	}
}
