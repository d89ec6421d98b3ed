// Package mongo implements the data layer and the token revocation store on MongoDB.
package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Provider owns the MongoDB client connection.
type Provider struct {
	client *mongo.Client
	dbName string
}

// NewProvider connects to uri and verifies the connection with a ping.
func NewProvider(ctx context.Context, uri string, dbName string, connectTimeout time.Duration) (*Provider, error) {
	clientOpts := options.Client().ApplyURI(uri)

	if clientOpts.ConnectTimeout == nil {
		if connectTimeout <= 0 {
			connectTimeout = 10 * time.Second
		}
		clientOpts.SetConnectTimeout(connectTimeout)
	}

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, err
	}

	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, err
	}

	return &Provider{
		client: client,
		dbName: dbName,
	}, nil
}

// Database returns the configured database handle.
func (p *Provider) Database() *mongo.Database {
	return p.client.Database(p.dbName)
}

// Close closes the MongoDB connection
func (p *Provider) Close(ctx context.Context) error {
	return p.client.Disconnect(ctx)
}
