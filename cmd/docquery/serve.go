package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joeshaw/envdecode"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/relabs-tech/docquery/core/backend"
	"github.com/relabs-tech/docquery/core/logger"
	"github.com/relabs-tech/docquery/core/schema"
)

// Service holds the configuration for the serve command
//
// use MONGODB_URI="mongodb://localhost:27017" CONFIG_FILE="config.json"
type Service struct {
	MongoDBURI      string   `env:"MONGODB_URI,required" description:"the connection string for MongoDB"`
	MongoDBDatabase string   `env:"MONGODB_DATABASE,default=docquery" description:"the database holding the collections"`
	ConfigFile      string   `env:"CONFIG_FILE,required" description:"path to the JSON backend configuration"`
	SchemaDir       string   `env:"SCHEMA_DIR" description:"directory with JSON schemas for documents, with references in refs/"`
	Port            int      `env:"PORT,default=3000" description:"the port to listen on"`
	LogLevel        string   `env:"LOG_LEVEL,default=info" description:"the log level"`
	CORSOrigins     []string `env:"CORS_ORIGINS" description:"semicolon separated list of allowed origins"`
}

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the configured collections over HTTP",
		Long: `Serve connects to MongoDB and serves the collections of the backend configuration.

It is configured through the environment: MONGODB_URI, MONGODB_DATABASE, CONFIG_FILE,
SCHEMA_DIR, PORT, LOG_LEVEL and CORS_ORIGINS. --verbose takes precedence over LOG_LEVEL.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			service := &Service{}
			if err := envdecode.Decode(service); err != nil {
				return fmt.Errorf("cannot decode environment: %w", err)
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return service.run(ctx, opts.Verbose)
		},
	}
}

// logLevel returns the log level from LOG_LEVEL, or debug if verbose is set
func (s *Service) logLevel(verbose bool) (logrus.Level, error) {
	if verbose {
		return logrus.DebugLevel, nil
	}
	level, err := logrus.ParseLevel(s.LogLevel)
	if err != nil {
		return level, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	return level, nil
}

func (s *Service) run(ctx context.Context, verbose bool) error {
	level, err := s.logLevel(verbose)
	if err != nil {
		return err
	}
	logger.InitLogger(level)
	rlog := logger.Default()

	config, err := os.ReadFile(s.ConfigFile)
	if err != nil {
		return fmt.Errorf("cannot read configuration: %w", err)
	}

	var validator *schema.Validator
	if s.SchemaDir != "" {
		validator, err = schema.NewValidatorFromFS(os.DirFS(s.SchemaDir))
		if err != nil {
			return err
		}
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(s.MongoDBURI))
	if err != nil {
		return fmt.Errorf("cannot connect to MongoDB: %w", err)
	}
	defer func() {
		if err := client.Disconnect(context.Background()); err != nil {
			rlog.WithError(err).Error("cannot disconnect from MongoDB")
		}
	}()

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		return fmt.Errorf("cannot reach MongoDB: %w", err)
	}

	router := mux.NewRouter()
	backend.New(&backend.Builder{
		Config:      string(config),
		Router:      router,
		Database:    client.Database(s.MongoDBDatabase),
		Validator:   validator,
		CORSOrigins: s.CORSOrigins,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			rlog.WithError(err).Error("shutdown failed")
		}
	}()

	rlog.Infof("listen on port :%d", s.Port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	rlog.Info("server stopped")
	return nil
}
