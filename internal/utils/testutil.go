package utils

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	testMongoURI    string
	testPostgresDSN string
)

func init() {
	loadTestEnv()
}

// loadTestEnv loads the .env file from the project root, then the working directory.
func loadTestEnv() {
	_, filename, _, _ := runtime.Caller(0)
	projectRoot := filepath.Join(filepath.Dir(filename), "..", "..")
	if err := godotenv.Load(filepath.Join(projectRoot, ".env")); err != nil {
		godotenv.Load()
	}

	testMongoURI = os.Getenv("MONGO_URI")
	testPostgresDSN = os.Getenv("POSTGRES_TEST_DSN")
}

// SetupTestDB connects to the test MongoDB and drops the given collections.
// The test is skipped when MONGO_URI is not set.
func SetupTestDB(t *testing.T, dbName string, collections ...string) *mongo.Database {
	t.Helper()
	if testMongoURI == "" {
		t.Skip("MONGO_URI not set, skipping MongoDB test")
	}
	client, err := mongo.Connect(context.Background(), options.Client().ApplyURI(testMongoURI))
	require.NoError(t, err, "Failed to connect to MongoDB")
	t.Cleanup(func() { _ = client.Disconnect(context.Background()) })
	db := client.Database(dbName)

	for _, collection := range collections {
		_ = db.Collection(collection).Drop(context.Background())
	}

	return db
}

// SetupTestPostgres opens a pool on POSTGRES_TEST_DSN and truncates the given tables.
// The test is skipped when the DSN is not set.
func SetupTestPostgres(t *testing.T, migrate func(context.Context, *pgxpool.Pool) error, tables ...string) *pgxpool.Pool {
	t.Helper()
	if testPostgresDSN == "" {
		t.Skip("POSTGRES_TEST_DSN not set, skipping Postgres test")
	}
	pool, err := pgxpool.New(context.Background(), testPostgresDSN)
	require.NoError(t, err, "Failed to connect to Postgres")
	t.Cleanup(pool.Close)

	require.NoError(t, migrate(context.Background(), pool))
	for _, table := range tables {
		_, err := pool.Exec(context.Background(), "TRUNCATE TABLE "+table+" CASCADE")
		require.NoError(t, err)
	}
	return pool
}
