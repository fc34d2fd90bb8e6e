package queue_test

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newsreel/internal/queue"
	"newsreel/internal/services"
	"newsreel/internal/testsupport"
)

// openPostgres connects to NEWSREEL_TEST_POSTGRES_DSN and empties the jobs
// table. Tests skip when the variable is unset.
func openPostgres(t *testing.T) *queue.Store {
	t.Helper()
	dsn := os.Getenv("NEWSREEL_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("NEWSREEL_TEST_POSTGRES_DSN not set")
	}
	db, err := sql.Open("pgx", dsn)
	require.NoError(t, err)
	defer db.Close()
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t, testsupport.WithPostgres(dsn)))
	_, err = db.ExecContext(context.Background(), `TRUNCATE jobs RESTART IDENTITY`)
	require.NoError(t, err)
	return store
}

func TestPostgresLifecycle(t *testing.T) {
	store := openPostgres(t)
	ctx := context.Background()
	require.Equal(t, "postgres", store.Driver())

	job := testsupport.NewJob(t, store, "postgres")
	_, err := store.Create(ctx, queue.NewJob{URL: job.URL})
	require.Error(t, err)
	assert.True(t, errors.Is(err, services.ErrDuplicateInput))

	advanced := testsupport.AdvanceTo(t, store, job, queue.StageDistribution)
	assert.Equal(t, queue.StatusAssembled, advanced.Status)
	assert.Len(t, advanced.Cues, 2)

	claimed, err := store.ClaimNext(ctx, queue.StageDistribution, "pg-worker", time.Minute)
	require.NoError(t, err)
	require.NotNil(t, claimed)

	res, err := store.Fail(ctx, job.ID, "pg-worker", queue.StageDistribution, queue.Failure{
		Kind:   services.KindTransientExternal,
		Policy: queue.RetryPolicy{MaxRetries: 0},
	})
	require.NoError(t, err)
	assert.Equal(t, queue.DispositionReview, res.Disposition)

	resubmitted, err := store.Resubmit(ctx, job.ID, queue.ResubmitOptions{FromFailedStage: true})
	require.NoError(t, err)
	assert.Equal(t, queue.StatusAssembled, resubmitted.Status)
	assert.Equal(t, 0, resubmitted.Retries.Distribution)

	health, err := store.CheckHealth(ctx)
	require.NoError(t, err)
	assert.True(t, health.TableExists)
	assert.Empty(t, health.MissingColumns)
}

func TestPostgresClaimSkipsLockedRows(t *testing.T) {
	store := openPostgres(t)
	ctx := context.Background()

	first := testsupport.NewJob(t, store, "first")
	second := testsupport.NewJob(t, store, "second")

	a, err := store.ClaimNext(ctx, queue.StageScript, "a", time.Minute)
	require.NoError(t, err)
	b, err := store.ClaimNext(ctx, queue.StageScript, "b", time.Minute)
	require.NoError(t, err)
	require.NotNil(t, a)
	require.NotNil(t, b)
	assert.Equal(t, first.ID, a.ID)
	assert.Equal(t, second.ID, b.ID)

	none, err := store.ClaimNext(ctx, queue.StageScript, "c", time.Minute)
	require.NoError(t, err)
	assert.Nil(t, none)
}
