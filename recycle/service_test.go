package recycle

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rhesis-ai/rhesis-backend/domain"
	"github.com/rhesis-ai/rhesis-backend/idgen"
	"github.com/rhesis-ai/rhesis-backend/lifecycle"
	"github.com/rhesis-ai/rhesis-backend/sietch"
	"github.com/rhesis-ai/rhesis-backend/wp"
)

var (
	orgA  = lifecycle.Scope{OrganizationID: "org-a", UserID: "u1"}
	admin = lifecycle.Scope{OrganizationID: "org-a", UserID: "root", Elevated: true}
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type fixture struct {
	runs    *lifecycle.Service[domain.TestRun]
	results *lifecycle.Service[domain.TestResult]
	tests   *lifecycle.Service[domain.Test]
	svc     *Service
}

func newService[T any](name string, c *clock) *lifecycle.Service[T] {
	repo := sietch.NewInMemoryConnector[T](domain.ID[T])
	repo.AddHook(&sietch.TimestampHook[T, string]{Now: c.Now})
	return lifecycle.New[T](name, repo, lifecycle.WithClock(c.Now))
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	c := &clock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	f := &fixture{
		runs:    newService[domain.TestRun](domain.TableTestRun, c),
		results: newService[domain.TestResult](domain.TableTestResult, c),
		tests:   newService[domain.Test](domain.TableTest, c),
	}

	registry := NewRegistry().
		Register(Adapt(f.runs)).
		Register(Adapt(f.results)).
		Register(Adapt(f.tests))
	require.NoError(t, registry.AddCascade(Cascade{
		Parent:     domain.TableTestRun,
		Child:      domain.TableTestResult,
		ForeignKey: "test_run_id",
		OnDelete:   true,
		OnRestore:  true,
	}))

	f.svc = NewService(registry, opts...)
	return f
}

// seedRun creates a test run with n results
func (f *fixture) seedRun(t *testing.T, n int) (string, []string) {
	t.Helper()
	ctx := context.Background()

	run := domain.TestRun{Name: "nightly", Status: "done"}
	require.NoError(t, f.runs.Create(ctx, orgA, &run))

	ids := make([]string, n)
	for i := range ids {
		res := domain.TestResult{TestRunID: run.ID, Status: "passed"}
		require.NoError(t, f.results.Create(ctx, orgA, &res))
		ids[i] = res.ID
	}
	return run.ID, ids
}

func seedTests(t *testing.T, svc *lifecycle.Service[domain.Test], n int) []string {
	t.Helper()
	ids := make([]string, n)
	for i := range ids {
		item := domain.Test{Prompt: "p"}
		require.NoError(t, svc.Create(context.Background(), orgA, &item))
		ids[i] = item.ID
	}
	return ids
}

func TestRegistry(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, []string{"test", "test_result", "test_run"}, f.svc.Models())

	_, err := f.svc.registry.Lookup("nope")
	assert.ErrorIs(t, err, ErrUnknownType)
	assert.ErrorIs(t, err, lifecycle.ErrNotFound)

	err = f.svc.registry.AddCascade(Cascade{Parent: "test_run", Child: "nope", ForeignKey: "x"})
	assert.ErrorIs(t, err, ErrUnknownType)
	err = f.svc.registry.AddCascade(Cascade{Parent: "test_run", Child: "test"})
	assert.Error(t, err)
}

func TestService_SoftDeleteCascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	runID, resultIDs := f.seedRun(t, 3)

	item, err := f.svc.SoftDelete(ctx, domain.TableTestRun, orgA, runID)
	require.NoError(t, err)
	assert.True(t, item.(*domain.TestRun).IsDeleted())

	_, total, err := f.results.List(ctx, orgA, lifecycle.Page{})
	require.NoError(t, err)
	assert.Zero(t, total)

	n, err := f.results.CountDeleted(ctx, orgA)
	require.NoError(t, err)
	assert.EqualValues(t, len(resultIDs), n)

	_, err = f.svc.Get(ctx, domain.TableTestRun, orgA, runID)
	assert.ErrorIs(t, err, lifecycle.ErrDeleted)
}

func TestService_RestoreCascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	runID, resultIDs := f.seedRun(t, 2)
	otherRun, _ := f.seedRun(t, 1)

	_, err := f.svc.SoftDelete(ctx, domain.TableTestRun, orgA, runID)
	require.NoError(t, err)
	_, err = f.svc.SoftDelete(ctx, domain.TableTestRun, orgA, otherRun)
	require.NoError(t, err)

	res, err := f.svc.Restore(ctx, domain.TableTestRun, orgA, runID)
	require.NoError(t, err)
	assert.False(t, res.Item.(*domain.TestRun).IsDeleted())
	assert.Equal(t, map[string]int{domain.TableTestResult: len(resultIDs)}, res.Cascaded)

	for _, id := range resultIDs {
		got, err := f.results.Get(ctx, orgA, id)
		require.NoError(t, err)
		assert.Nil(t, got.DeletedAt)
	}

	n, err := f.results.CountDeleted(ctx, orgA)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n, "results of the other run stay in the bin")

	_, err = f.svc.Restore(ctx, domain.TableTestRun, orgA, runID)
	assert.ErrorIs(t, err, lifecycle.ErrNotFound)
}

func TestService_RestoreWithoutChildren(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	runID, _ := f.seedRun(t, 0)

	_, err := f.svc.SoftDelete(ctx, domain.TableTestRun, orgA, runID)
	require.NoError(t, err)

	res, err := f.svc.Restore(ctx, domain.TableTestRun, orgA, runID)
	require.NoError(t, err)
	assert.Nil(t, res.Cascaded)
}

func TestService_BulkRestore(t *testing.T) {
	tests := []struct {
		name string
		opts []Option
	}{
		{"inline", nil},
		{"pooled", []Option{WithPool(wp.NewPool(4, 8))}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.opts...)
			if f.svc.pool != nil {
				t.Cleanup(f.svc.pool.Stop)
			}
			ctx := context.Background()

			ids := seedTests(t, f.tests, 3)
			for _, id := range ids[:2] {
				_, err := f.tests.SoftDelete(ctx, orgA, id)
				require.NoError(t, err)
			}
			active, missing := ids[2], idgen.NewUUID()

			req := []string{ids[0], missing, "not-a-uuid", ids[1], active, ids[0]}
			res, err := f.svc.BulkRestore(ctx, domain.TableTest, orgA, req)
			require.NoError(t, err)

			assert.Equal(t, []string{ids[0], ids[1]}, res.Restored)
			assert.Equal(t, []string{missing, active}, res.NotFound)
			require.Len(t, res.Failed, 1)
			assert.Equal(t, "not-a-uuid", res.Failed[0].ID)
			assert.NotEmpty(t, res.Failed[0].Error)

			require.Len(t, res.Results, 5)
			assert.Equal(t, Outcome{ID: ids[0], Status: StatusRestored}, res.Results[0])
			assert.Equal(t, StatusNotFound, res.Results[1].Status)
			assert.Equal(t, StatusFailed, res.Results[2].Status)

			for _, id := range ids[:2] {
				_, err := f.tests.Get(ctx, orgA, id)
				assert.NoError(t, err)
			}
		})
	}
}

func TestService_BulkRestoreValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.BulkRestore(ctx, domain.TableTest, orgA, nil)
	assert.ErrorIs(t, err, lifecycle.ErrInvalidArgument)

	_, err = f.svc.BulkRestore(ctx, domain.TableTest, orgA, make([]string, MaxBulkIDs+1))
	assert.ErrorIs(t, err, lifecycle.ErrInvalidArgument)

	_, err = f.svc.BulkRestore(ctx, "nope", orgA, []string{idgen.NewUUID()})
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestService_BulkRestoreEmptyBuckets(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.BulkRestore(context.Background(), domain.TableTest, orgA, []string{idgen.NewUUID()})
	require.NoError(t, err)
	assert.NotNil(t, res.Restored)
	assert.Empty(t, res.Restored)
	assert.NotNil(t, res.Failed)
	assert.Len(t, res.NotFound, 1)
}

func TestService_PurgeAndEmpty(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ids := seedTests(t, f.tests, 4)
	for _, id := range ids[:3] {
		_, err := f.tests.SoftDelete(ctx, orgA, id)
		require.NoError(t, err)
	}

	assert.ErrorIs(t, f.svc.Purge(ctx, domain.TableTest, admin, ids[0], false), lifecycle.ErrInvalidArgument)
	assert.ErrorIs(t, f.svc.Purge(ctx, domain.TableTest, orgA, ids[0], true), lifecycle.ErrUnauthorized)
	require.NoError(t, f.svc.Purge(ctx, domain.TableTest, admin, ids[0], true))

	_, err := f.tests.GetIncludingDeleted(ctx, orgA, ids[0])
	assert.ErrorIs(t, err, lifecycle.ErrNotFound)

	_, err = f.svc.Empty(ctx, domain.TableTest, admin, false)
	assert.ErrorIs(t, err, lifecycle.ErrInvalidArgument)

	n, err := f.svc.Empty(ctx, domain.TableTest, admin, true)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, total, err := f.tests.List(ctx, orgA, lifecycle.Page{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
}

func TestService_Counts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	runID, _ := f.seedRun(t, 2)
	_, err := f.svc.SoftDelete(ctx, domain.TableTestRun, orgA, runID)
	require.NoError(t, err)
	ids := seedTests(t, f.tests, 2)
	_, err = f.tests.SoftDelete(ctx, orgA, ids[0])
	require.NoError(t, err)

	counts, err := f.svc.Counts(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{
		domain.TableTest:       1,
		domain.TableTestResult: 2,
		domain.TableTestRun:    1,
	}, counts)

	_, err = f.svc.Counts(ctx, lifecycle.Scope{})
	assert.ErrorIs(t, err, lifecycle.ErrUnauthorized)
}

func TestService_ListDeleted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ids := seedTests(t, f.tests, 3)
	for _, id := range ids {
		_, err := f.tests.SoftDelete(ctx, orgA, id)
		require.NoError(t, err)
	}

	items, total, err := f.svc.ListDeleted(ctx, domain.TableTest, admin, lifecycle.Page{Limit: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	require.Len(t, items, 2)
	assert.Equal(t, ids[2], items[0].(*domain.Test).ID)
	assert.Equal(t, ids[1], items[1].(*domain.Test).ID)

	_, _, err = f.svc.ListDeleted(ctx, "nope", admin, lifecycle.Page{})
	assert.ErrorIs(t, err, ErrUnknownType)
}

type recordingTx struct {
	calls int
}

func (r *recordingTx) WithTx(ctx context.Context, fn sietch.MultiRepoTxFunc) error {
	r.calls++
	return fn(ctx)
}

func TestService_UsesTxRunner(t *testing.T) {
	tx := &recordingTx{}
	f := newFixture(t, WithTxRunner(tx))
	ctx := context.Background()
	runID, _ := f.seedRun(t, 1)

	_, err := f.svc.SoftDelete(ctx, domain.TableTestRun, orgA, runID)
	require.NoError(t, err)
	_, err = f.svc.Restore(ctx, domain.TableTestRun, orgA, runID)
	require.NoError(t, err)
	assert.Equal(t, 2, tx.calls)
}
