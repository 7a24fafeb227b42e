package sietch

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rhesis-ai/rhesis-backend/sietch/internal/testutils"
)

func TestInMemoryConnector_CreateGet(t *testing.T) {
	repo := NewInMemoryConnector[testutils.Account](func(a *testutils.Account) int64 { return a.ID })
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	tests := []struct {
		name        string
		account     testutils.Account
		expectError bool
	}{
		{"create a valid account", testutils.Account{ID: 1, Balance: 100}, false},
		{"create duplicated account", testutils.Account{ID: 1, Balance: 200}, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := repo.Create(ctx, &tc.account)
			if (err != nil) != tc.expectError {
				t.Errorf("expected error %v, got: %v", tc.expectError, err)
			}
		})
	}

	acc, err := repo.Get(ctx, 1)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if acc.Balance != 100 {
		t.Errorf("expected balance 100, got %d", acc.Balance)
	}

	acc.Balance = 999
	again, _ := repo.Get(ctx, 1)
	if again.Balance != 100 {
		t.Errorf("Get must return a copy, stored balance changed to %d", again.Balance)
	}

	if _, err = repo.Get(ctx, 999); !errors.Is(err, ErrItemNotFound) {
		t.Errorf("expected ErrItemNotFound, got %v", err)
	}
}

func TestInMemoryConnector_UpdateDelete(t *testing.T) {
	repo := NewInMemoryConnector[testutils.Account](func(a *testutils.Account) int64 { return a.ID })
	ctx := context.Background()

	if err := repo.BatchCreate(ctx, []testutils.Account{{ID: 1, Balance: 10}, {ID: 2, Balance: 20}}); err != nil {
		t.Fatalf("BatchCreate failed: %v", err)
	}

	if err := repo.Update(ctx, &testutils.Account{ID: 1, Balance: 15}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if err := repo.Update(ctx, &testutils.Account{ID: 3}); !errors.Is(err, ErrNoUpdateItem) {
		t.Errorf("expected ErrNoUpdateItem, got %v", err)
	}

	if err := repo.Upsert(ctx, &testutils.Account{ID: 3, Balance: 30}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if n := repo.Len(); n != 3 {
		t.Errorf("expected 3 rows, got %d", n)
	}

	if err := repo.Delete(ctx, 2); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := repo.Delete(ctx, 2); !errors.Is(err, ErrNoDeleteItem) {
		t.Errorf("expected ErrNoDeleteItem, got %v", err)
	}

	exists, err := repo.Exists(ctx, 1)
	if err != nil || !exists {
		t.Errorf("expected account 1 to exist, got %v %v", exists, err)
	}
	exists, err = repo.Exists(ctx, 2)
	if err != nil || exists {
		t.Errorf("expected account 2 to be gone, got %v %v", exists, err)
	}
}

func TestInMemoryConnector_QueryOperators(t *testing.T) {
	repo := NewInMemoryConnector[testutils.Account](func(a *testutils.Account) int64 { return a.ID })
	ctx := context.Background()
	for i := int64(1); i <= 5; i++ {
		_ = repo.Create(ctx, &testutils.Account{ID: i, Balance: int(i * 100)})
	}

	tests := []struct {
		name string
		q    *Query
		want []int64
	}{
		{"greater than", NewQuery().Where("balance", OpGreaterThan, 300), []int64{4, 5}},
		{"in list", NewQuery().Where("id", OpIn, []int64{1, 3}), []int64{1, 3}},
		{"not in list", NewQuery().Where("id", OpNotIn, []int{1, 2, 3}), []int64{4, 5}},
		{"or group", NewQuery().Filtered(NewFilter().Or(
			Condition{Field: "id", Operator: OpEqual, Value: 1},
			Condition{Field: "balance", Operator: OpGreaterOrEqual, Value: 500},
		).Build()), []int64{1, 5}},
		{"not group", NewQuery().Filtered(NewFilter().Not(
			Condition{Field: "balance", Operator: OpLessOrEqual, Value: 300},
		).Build()), []int64{4, 5}},
		{"ordered desc with limit", NewQuery().OrderBy("balance", Desc).WithLimit(2), []int64{5, 4}},
		{"offset past the end", NewQuery().WithOffset(10), nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := repo.Query(ctx, tc.q)
			if err != nil {
				t.Fatalf("Query failed: %v", err)
			}
			if len(got) != len(tc.want) {
				t.Fatalf("expected %d results, got %d (%+v)", len(tc.want), len(got), got)
			}
			for i, id := range tc.want {
				if got[i].ID != id {
					t.Errorf("result %d: expected id %d, got %d", i, id, got[i].ID)
				}
			}
		})
	}

	t.Run("unknown field is rejected", func(t *testing.T) {
		_, err := repo.Query(ctx, NewQuery().Where("nope", OpEqual, 1))
		if !errors.Is(err, ErrInvalidFilter) {
			t.Errorf("expected ErrInvalidFilter, got %v", err)
		}
	})
}

func TestInMemoryConnector_LikeOperator(t *testing.T) {
	repo := NewInMemoryConnector[testutils.Document](testutils.DocumentID)
	ctx := context.Background()
	for i, title := range []string{"alpha test", "beta test", "gamma"} {
		_ = repo.Create(ctx, &testutils.Document{Record: testutils.Record{ID: fmt.Sprintf("d%d", i)}, Title: title})
	}

	got, err := repo.Query(ctx, NewQuery().Where("title", OpLike, "%test"))
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("expected 2 matches, got %d", len(got))
	}

	got, _ = repo.Query(ctx, NewQuery().Where("title", OpLike, "g_mma"))
	if len(got) != 1 {
		t.Errorf("expected 1 match, got %d", len(got))
	}
}

// seedDocuments creates total documents and soft-deletes the first deleted ones
func seedDocuments(t *testing.T, repo *InMemoryConnector[testutils.Document, string], total, deleted int) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < total; i++ {
		doc := testutils.Document{
			Record: testutils.Record{ID: fmt.Sprintf("doc-%02d", i)},
			Owner:  "acme",
			Rank:   i,
		}
		if i < deleted {
			MarkDeleted(&doc, base.Add(time.Duration(i)*time.Minute))
		}
		if err := repo.Create(ctx, &doc); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}
}

func TestInMemoryConnector_SoftDeleteFiltering(t *testing.T) {
	repo := NewInMemoryConnector[testutils.Document](testutils.DocumentID)
	seedDocuments(t, repo, 15, 5)
	ctx := context.Background()

	t.Run("limit is applied after filtering", func(t *testing.T) {
		got, err := repo.Query(ctx, NewQuery().WithLimit(10))
		if err != nil {
			t.Fatalf("Query failed: %v", err)
		}
		if len(got) != 10 {
			t.Fatalf("expected 10 active documents, got %d", len(got))
		}
		for _, d := range got {
			if d.IsDeleted() {
				t.Errorf("deleted document %s returned by default read", d.ID)
			}
		}
	})

	t.Run("offset is applied after filtering", func(t *testing.T) {
		got, err := repo.Query(ctx, NewQuery().WithOffset(10))
		if err != nil {
			t.Fatalf("Query failed: %v", err)
		}
		if len(got) != 0 {
			t.Errorf("expected no documents past the 10 active ones, got %d", len(got))
		}
	})

	t.Run("count excludes deleted rows", func(t *testing.T) {
		n, err := repo.Count(ctx, NewQuery().WithLimit(3))
		if err != nil {
			t.Fatalf("Count failed: %v", err)
		}
		if n != 10 {
			t.Errorf("expected 10, got %d", n)
		}
	})

	t.Run("explicit filters are combined with the predicate", func(t *testing.T) {
		got, _ := repo.Query(ctx, NewQuery().Where("rank", OpLessThan, 7))
		if len(got) != 2 {
			t.Errorf("expected ranks 5 and 6 only, got %d documents", len(got))
		}
	})

	t.Run("OR root still excludes deleted rows", func(t *testing.T) {
		q := &Query{Filter: &Filter{Logic: LogicOr, Conditions: []Condition{
			{Field: "rank", Operator: OpEqual, Value: 0},
			{Field: "rank", Operator: OpEqual, Value: 14},
		}}}
		got, _ := repo.Query(ctx, q)
		if len(got) != 1 || got[0].Rank != 14 {
			t.Errorf("expected only rank 14, got %+v", got)
		}
	})

	t.Run("per-query modes", func(t *testing.T) {
		all, _ := repo.Count(ctx, NewQuery().WithDeleted())
		only, _ := repo.Query(ctx, NewQuery().OnlyDeleted().OrderBy(DeletedAtField, Desc))
		if all != 15 {
			t.Errorf("expected 15 with deleted, got %d", all)
		}
		if len(only) != 5 {
			t.Fatalf("expected 5 deleted, got %d", len(only))
		}
		if only[0].ID != "doc-04" {
			t.Errorf("expected newest deleted first, got %s", only[0].ID)
		}
	})

	t.Run("scoped override includes deleted rows", func(t *testing.T) {
		_ = WithoutSoftDeleteFilter(ctx, func(ctx context.Context) error {
			n, _ := repo.Count(ctx, nil)
			if n != 15 {
				t.Errorf("expected 15 inside override, got %d", n)
			}
			return nil
		})
		n, _ := repo.Count(ctx, nil)
		if n != 10 {
			t.Errorf("expected 10 after override, got %d", n)
		}
	})

	t.Run("Get honours the deletion state", func(t *testing.T) {
		if _, err := repo.Get(ctx, "doc-00"); !errors.Is(err, ErrItemNotFound) {
			t.Errorf("expected ErrItemNotFound, got %v", err)
		}
		if d, err := repo.Get(ctx, "doc-00", IncludingDeleted()); err != nil || !d.IsDeleted() {
			t.Errorf("expected deleted document, got %v %v", d, err)
		}
		if _, err := repo.Get(ctx, "doc-10", OnlyIfDeleted()); !errors.Is(err, ErrItemNotFound) {
			t.Errorf("expected ErrItemNotFound for active row, got %v", err)
		}
		if _, err := repo.Get(IncludeDeleted(ctx), "doc-00"); err != nil {
			t.Errorf("expected context override to apply to Get, got %v", err)
		}
		exists, _ := repo.Exists(ctx, "doc-00")
		if exists {
			t.Error("deleted document must not exist for default reads")
		}
	})

	t.Run("physical delete works on deleted rows", func(t *testing.T) {
		if err := repo.Delete(ctx, "doc-01"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if repo.Len() != 14 {
			t.Errorf("expected 14 rows, got %d", repo.Len())
		}
	})
}

func TestInMemoryConnector_Transactions(t *testing.T) {
	repo := NewInMemoryConnector[testutils.Account](func(a *testutils.Account) int64 { return a.ID })
	ctx := context.Background()
	_ = repo.Create(ctx, &testutils.Account{ID: 1, Balance: 100})

	t.Run("commit keeps changes", func(t *testing.T) {
		err := repo.WithTx(ctx, func(ctx context.Context, tx Repository[testutils.Account, int64]) error {
			return tx.Create(ctx, &testutils.Account{ID: 2, Balance: 50})
		})
		if err != nil {
			t.Fatalf("WithTx failed: %v", err)
		}
		if repo.Len() != 2 {
			t.Errorf("expected 2 rows, got %d", repo.Len())
		}
	})

	t.Run("error rolls back", func(t *testing.T) {
		boom := errors.New("boom")
		err := repo.WithTx(ctx, func(ctx context.Context, tx Repository[testutils.Account, int64]) error {
			_ = tx.Create(ctx, &testutils.Account{ID: 3})
			_ = tx.Delete(ctx, 1)
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("expected boom, got %v", err)
		}
		if repo.Len() != 2 {
			t.Errorf("expected rollback to 2 rows, got %d", repo.Len())
		}
		if _, err := repo.Get(ctx, 1); err != nil {
			t.Errorf("expected account 1 restored, got %v", err)
		}
	})

	t.Run("panic rolls back", func(t *testing.T) {
		func() {
			defer func() { _ = recover() }()
			_ = repo.WithTx(ctx, func(ctx context.Context, tx Repository[testutils.Account, int64]) error {
				_ = tx.Create(ctx, &testutils.Account{ID: 4})
				panic("boom")
			})
		}()
		if repo.Len() != 2 {
			t.Errorf("expected rollback to 2 rows, got %d", repo.Len())
		}
	})

	t.Run("RunInTx uses the connector transaction", func(t *testing.T) {
		err := RunInTx[testutils.Account, int64](ctx, repo, func(ctx context.Context, tx Repository[testutils.Account, int64]) error {
			_ = tx.Create(ctx, &testutils.Account{ID: 5})
			return errors.New("abort")
		})
		if err == nil {
			t.Fatal("expected error")
		}
		if repo.Len() != 2 {
			t.Errorf("expected rollback to 2 rows, got %d", repo.Len())
		}
	})

	t.Run("rollback keeps writes of other callers", func(t *testing.T) {
		err := repo.WithTx(ctx, func(txCtx context.Context, tx Repository[testutils.Account, int64]) error {
			_ = tx.Create(txCtx, &testutils.Account{ID: 6})

			done := make(chan error, 1)
			go func() {
				done <- repo.Create(ctx, &testutils.Account{ID: 7, Balance: 10})
			}()
			if err := <-done; err != nil {
				t.Errorf("concurrent create failed: %v", err)
			}
			return errors.New("abort")
		})
		if err == nil {
			t.Fatal("expected error")
		}
		if _, err := repo.Get(ctx, 6); !errors.Is(err, ErrItemNotFound) {
			t.Errorf("expected account 6 rolled back, got %v", err)
		}
		if _, err := repo.Get(ctx, 7); err != nil {
			t.Errorf("expected concurrent account 7 kept, got %v", err)
		}
		_ = repo.Delete(ctx, 7)
	})

	t.Run("outer rollback undoes a committed inner transaction", func(t *testing.T) {
		err := repo.WithTx(ctx, func(ctx context.Context, tx Repository[testutils.Account, int64]) error {
			inner := RunInTx[testutils.Account, int64](ctx, repo, func(ctx context.Context, tx Repository[testutils.Account, int64]) error {
				acc, err := tx.Get(ctx, 1)
				if err != nil {
					return err
				}
				acc.Balance = 0
				return tx.Update(ctx, acc)
			})
			if inner != nil {
				return inner
			}
			return errors.New("abort")
		})
		if err == nil {
			t.Fatal("expected error")
		}
		acc, err := repo.Get(ctx, 1)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if acc.Balance != 100 {
			t.Errorf("expected balance restored to 100, got %d", acc.Balance)
		}
	})
}
