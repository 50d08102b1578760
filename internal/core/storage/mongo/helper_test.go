package mongo

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	globalTestClient     *mongo.Client
	globalTestClientOnce sync.Once
)

type TestEnv struct {
	Client *mongo.Client
	DBName string
	DB     *mongo.Database
}

func getGlobalTestClient(t *testing.T, uri string) *mongo.Client {
	globalTestClientOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
		require.NoError(t, err)
		require.NoError(t, client.Ping(ctx, nil))
		globalTestClient = client
	})
	return globalTestClient
}

func setupTestEnv(t *testing.T) *TestEnv {
	uri := os.Getenv("TOPICROUTER_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("TOPICROUTER_TEST_MONGO_URI not set")
	}
	t.Parallel()

	client := getGlobalTestClient(t, uri)

	safeName := strings.ReplaceAll(t.Name(), "/", "_")
	if len(safeName) > 20 {
		safeName = safeName[len(safeName)-20:]
	}
	dbName := fmt.Sprintf("test_topicrouter_%s_%d", safeName, time.Now().UnixNano()%100000)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = client.Database(dbName).Drop(ctx)
	})

	return &TestEnv{
		Client: client,
		DBName: dbName,
		DB:     client.Database(dbName),
	}
}

func setupTestProvider(t *testing.T) *Provider {
	env := setupTestEnv(t)
	p := newProvider(env.Client, env.DB)
	require.NoError(t, p.EnsureIndexes(context.Background()))
	return p
}
