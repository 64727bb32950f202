package utils

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/raushankrgupta/meal-planner/logger"
)

var Client *mongo.Client

// ConnectMongo initializes the MongoDB connection
func ConnectMongo(ctx context.Context, uri string) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	clientOptions := options.Client().ApplyURI(uri)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	// Ping the database
	err = client.Ping(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to ping mongodb: %w", err)
	}

	Client = client
	logger.Info("Connected to MongoDB!", zap.String("uri", redactURI(uri)))
	return nil
}

// GetCollection returns a handle to a MongoDB collection
func GetCollection(databaseName, collectionName string) (*mongo.Collection, error) {
	if Client == nil {
		return nil, fmt.Errorf("MongoDB client is not initialized")
	}
	return Client.Database(databaseName).Collection(collectionName), nil
}

func redactURI(uri string) string {
	opts := options.Client().ApplyURI(uri)
	if len(opts.Hosts) == 0 {
		return "mongodb"
	}
	return opts.Hosts[0]
}
