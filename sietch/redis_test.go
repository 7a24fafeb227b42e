package sietch

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/rhesis-ai/rhesis-backend/sietch/internal/testutils"
)

func setupRedisTest(t *testing.T) (*redis.Client, *RedisConnector[testutils.Document, string]) {
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   1, // Use test database
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		t.Skip("Redis not available for testing:", err)
	}

	client.FlushDB(ctx)

	connector := NewRedisConnector[testutils.Document, string](
		client,
		5*time.Minute,
		testutils.DocumentID,
		func(id string) string { return "document:" + id },
	)

	return client, connector
}

func TestRedisConnector_CreateGet(t *testing.T) {
	client, repo := setupRedisTest(t)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	doc := testutils.Document{Record: testutils.Record{ID: "1"}, Title: "hello"}
	if err := repo.Create(ctx, &doc); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := repo.Get(ctx, "1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Title != "hello" {
		t.Errorf("expected title hello, got %s", got.Title)
	}

	if _, err := repo.Get(ctx, "missing"); !errors.Is(err, ErrItemNotFound) {
		t.Errorf("expected ErrItemNotFound, got %v", err)
	}
}

func TestRedisConnector_SoftDeletedEntries(t *testing.T) {
	client, repo := setupRedisTest(t)
	defer client.Close()
	ctx := context.Background()

	doc := testutils.Document{Record: testutils.Record{ID: "1"}}
	MarkDeleted(&doc, time.Now())
	_ = repo.Upsert(ctx, &doc)

	if _, err := repo.Get(ctx, "1"); !errors.Is(err, ErrItemNotFound) {
		t.Errorf("expected deleted entry hidden, got %v", err)
	}
	got, err := repo.Get(ctx, "1", IncludingDeleted())
	if err != nil || !got.IsDeleted() {
		t.Errorf("expected deleted entry with IncludingDeleted, got %v %v", got, err)
	}
	exists, _ := repo.Exists(ctx, "1")
	if exists {
		t.Error("deleted entry must not exist for default reads")
	}
}

func TestRedisConnector_BatchAndUnsupported(t *testing.T) {
	client, repo := setupRedisTest(t)
	defer client.Close()
	ctx := context.Background()

	docs := make([]testutils.Document, 3)
	ids := make([]string, 3)
	for i := range docs {
		ids[i] = strconv.Itoa(i)
		docs[i] = testutils.Document{Record: testutils.Record{ID: ids[i]}}
	}
	if err := repo.BatchCreate(ctx, docs); err != nil {
		t.Fatalf("BatchCreate failed: %v", err)
	}
	if err := repo.BatchDelete(ctx, ids); err != nil {
		t.Fatalf("BatchDelete failed: %v", err)
	}
	if err := repo.Delete(ctx, "0"); !errors.Is(err, ErrItemNotFound) {
		t.Errorf("expected ErrItemNotFound, got %v", err)
	}

	if _, err := repo.Query(ctx, NewQuery()); !errors.Is(err, ErrUnsupportedOperation) {
		t.Errorf("expected ErrUnsupportedOperation, got %v", err)
	}
	if _, err := repo.Count(ctx, NewQuery()); !errors.Is(err, ErrUnsupportedOperation) {
		t.Errorf("expected ErrUnsupportedOperation, got %v", err)
	}
}
