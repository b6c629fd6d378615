package config

import (
	"context"
	"testing"

	"github.com/draftea/booking-system/transactions-service/infrastructure"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDependencies_MemoryStore(t *testing.T) {
	cfg, err := readConfig(t.TempDir(), "absent")
	require.NoError(t, err)
	cfg.Store.Driver = DriverMemory
	cfg.Telemetry.Enabled = false

	deps, err := BuildDependencies(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, deps.Close()) })

	assert.IsType(t, &infrastructure.MemoryTransactionRepository{}, deps.TransactionRepository)
	assert.Nil(t, deps.SNSPublisher)
	assert.Nil(t, deps.EventSubscriber)
	assert.Nil(t, deps.DB)
	assert.NotNil(t, deps.TransactionHandlers)
	assert.NotNil(t, deps.EventRouter)
}

func TestBuildDependencies_DynamoDBStore(t *testing.T) {
	t.Setenv("AWS_ACCESS_KEY_ID", "test")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "test")

	cfg, err := readConfig(t.TempDir(), "absent")
	require.NoError(t, err)
	cfg.Store.Driver = DriverDynamoDB
	cfg.Store.DynamoDB.Endpoint = "http://localhost:4566"
	cfg.Telemetry.Enabled = false

	deps, err := BuildDependencies(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, deps.Close()) })

	assert.IsType(t, &infrastructure.DynamoDBTransactionRepository{}, deps.TransactionRepository)
}
