//go:build integration

package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	postgrescontainer "github.com/testcontainers/testcontainers-go/modules/postgres"
)

func TestDispatcherPublishesClaimedEvents(t *testing.T) {
	ctx := context.Background()
	pool, cleanup := setupPostgres(t, ctx)
	defer cleanup()

	userID := uuid.NewString()
	eventID := seedOutbox(t, ctx, pool, userID, EventSessionAppended)
	require.NotZero(t, eventID)

	producer := &stubProducer{}
	dispatcher := NewDispatcher(pool, producer, nil, 10*time.Millisecond, 5)

	beforeDelivered := testutil.ToFloat64(deliveredCounter)

	require.NoError(t, dispatcher.processBatch(ctx))

	require.Len(t, producer.writes, 1)
	require.Len(t, producer.writes[0], 1)
	msg := producer.writes[0][0]
	require.Equal(t, userID, string(msg.Key))
	require.Len(t, msg.Headers, 1)
	require.Equal(t, "event_type", msg.Headers[0].Key)
	require.Equal(t, EventSessionAppended, string(msg.Headers[0].Value))

	afterDelivered := testutil.ToFloat64(deliveredCounter)
	require.InDelta(t, beforeDelivered+1, afterDelivered, 0.0001)

	var published int
	require.NoError(t, pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM outbox WHERE published_at IS NOT NULL`).Scan(&published))
	require.Equal(t, 1, published)
}

func TestDispatcherLeavesFailedBatchForRetry(t *testing.T) {
	ctx := context.Background()
	pool, cleanup := setupPostgres(t, ctx)
	defer cleanup()

	userID := uuid.NewString()
	require.NotZero(t, seedOutbox(t, ctx, pool, userID, EventSessionRemoved))

	producer := &stubProducer{err: errors.New("kafka write failed")}
	dispatcher := NewDispatcher(pool, producer, nil, 10*time.Millisecond, 5)

	beforeFailed := testutil.ToFloat64(failedCounter)

	require.NoError(t, dispatcher.processBatch(ctx))

	afterFailed := testutil.ToFloat64(failedCounter)
	require.InDelta(t, beforeFailed+1, afterFailed, 0.0001)

	var published int
	require.NoError(t, pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM outbox WHERE published_at IS NOT NULL`).Scan(&published))
	require.Zero(t, published, "failed events must stay unpublished")

	// the row is picked up again once the producer recovers
	producer.err = nil
	require.NoError(t, dispatcher.processBatch(ctx))
	require.NoError(t, pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM outbox WHERE published_at IS NOT NULL`).Scan(&published))
	require.Equal(t, 1, published)
}

func TestDispatcherBatchesUpToLimit(t *testing.T) {
	ctx := context.Background()
	pool, cleanup := setupPostgres(t, ctx)
	defer cleanup()

	userID := uuid.NewString()
	for i := 0; i < 3; i++ {
		seedOutbox(t, ctx, pool, userID, EventSessionAppended)
	}

	producer := &stubProducer{}
	dispatcher := NewDispatcher(pool, producer, nil, 10*time.Millisecond, 2)

	require.NoError(t, dispatcher.processBatch(ctx))
	require.Len(t, producer.writes, 1)
	require.Len(t, producer.writes[0], 2)

	require.NoError(t, dispatcher.processBatch(ctx))
	require.Len(t, producer.writes, 2)
	require.Len(t, producer.writes[1], 1)

	var published int
	require.NoError(t, pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM outbox WHERE published_at IS NOT NULL`).Scan(&published))
	require.Equal(t, 3, published)
}

type stubProducer struct {
	mu     sync.Mutex
	err    error
	writes [][]kafka.Message
}

func (s *stubProducer) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return s.err
	}

	copied := make([]kafka.Message, len(msgs))
	copy(copied, msgs)
	s.writes = append(s.writes, copied)
	return nil
}

func seedOutbox(t *testing.T, ctx context.Context, pool *pgxpool.Pool, userID, eventType string) int64 {
	t.Helper()

	payloadBytes, err := json.Marshal(map[string]any{
		"user_id": userID,
		"date":    "2024-02-10",
	})
	require.NoError(t, err)

	var eventID int64
	err = pool.QueryRow(ctx,
		`INSERT INTO outbox (user_id, event_type, partition_key, payload)
         VALUES ($1, $2, $3, $4)
         RETURNING event_id`,
		userID, eventType, userID, payloadBytes).Scan(&eventID)
	require.NoError(t, err)
	return eventID
}

func setupPostgres(t *testing.T, ctx context.Context) (*pgxpool.Pool, func()) {
	t.Helper()

	pg, err := postgrescontainer.RunContainer(ctx,
		postgrescontainer.WithDatabase("saunalog"),
		postgrescontainer.WithUsername("saunalog"),
		postgrescontainer.WithPassword("saunalog"),
	)
	require.NoError(t, err)

	connStr, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, waitForDatabase(ctx, connStr))

	runMigrations(t, ctx, connStr)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)

	cleanup := func() {
		pool.Close()
		_ = pg.Terminate(ctx)
	}
	return pool, cleanup
}

func runMigrations(t *testing.T, ctx context.Context, connStr string) {
	t.Helper()

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	defer pool.Close()

	path := resolvePath(t, "../../db/postgres/migrations/0001_init.up.sql")
	contents, err := os.ReadFile(path)
	require.NoError(t, err)

	_, err = pool.Exec(ctx, string(contents))
	require.NoError(t, err)
}

func resolvePath(t *testing.T, rel string) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	require.True(t, ok)
	return filepath.Join(filepath.Dir(file), rel)
}

func waitForDatabase(ctx context.Context, connStr string) error {
	deadline := time.Now().Add(30 * time.Second)
	for {
		pool, err := pgxpool.New(ctx, connStr)
		if err == nil {
			err = pool.Ping(ctx)
			pool.Close()
			if err == nil {
				return nil
			}
		}
		if time.Now().After(deadline) {
			return err
		}
		time.Sleep(time.Second)
	}
}
