/*
Package test provides a MongoDB test container and an end to end test suite that runs
the backend against it.
*/
package test

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/relabs-tech/docquery/core/logger"
)

// Mongo is a single node MongoDB replica set running in a container. Transactions
// need a replica set.
type Mongo struct {
	Container testcontainers.Container
	Client    *mongo.Client
	URI       string
}

// StartMongo starts the container, initiates the replica set and waits until the node
// is primary
func StartMongo(ctx context.Context) (*Mongo, error) {
	rlog := logger.FromContext(ctx)

	req := testcontainers.ContainerRequest{
		Image:        "mongo:7",
		ExposedPorts: []string{"27017/tcp"},
		Cmd:          []string{"--replSet", "rs0", "--bind_ip_all"},
		WaitingFor:   wait.ForLog("Waiting for connections").WithStartupTimeout(2 * time.Minute),
	}
	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("cannot start mongo container: %w", err)
	}
	m := &Mongo{Container: c}

	code, out, err := c.Exec(ctx, []string{"mongosh", "--quiet", "--eval",
		"rs.initiate({_id: 'rs0', members: [{_id: 0, host: 'localhost:27017'}]})"})
	if err != nil {
		return m, fmt.Errorf("cannot initiate replica set: %w", err)
	}
	if code != 0 {
		msg, _ := io.ReadAll(out)
		return m, fmt.Errorf("cannot initiate replica set: %s", msg)
	}

	host, err := c.Host(ctx)
	if err != nil {
		return m, err
	}
	port, err := c.MappedPort(ctx, "27017")
	if err != nil {
		return m, err
	}

	m.URI = fmt.Sprintf("mongodb://%s:%s/?directConnection=true", host, port.Port())
	m.Client, err = mongo.Connect(ctx, options.Client().ApplyURI(m.URI))
	if err != nil {
		return m, fmt.Errorf("cannot connect to %s: %w", m.URI, err)
	}

	deadline := time.Now().Add(time.Minute)
	for {
		var status bson.M
		err := m.Client.Database("admin").RunCommand(ctx, bson.D{{Key: "hello", Value: 1}}).Decode(&status)
		if err == nil && status["isWritablePrimary"] == true {
			break
		}
		if time.Now().After(deadline) {
			return m, fmt.Errorf("mongo did not become primary: %v", err)
		}
		time.Sleep(time.Second)
	}
	rlog.Infoln("mongo is ready at", m.URI)
	return m, nil
}

// Terminate disconnects the client and stops the container
func (m *Mongo) Terminate(ctx context.Context) error {
	if m.Client != nil {
		if err := m.Client.Disconnect(ctx); err != nil {
			return err
		}
	}
	if m.Container != nil {
		return m.Container.Terminate(ctx)
	}
	return nil
}
