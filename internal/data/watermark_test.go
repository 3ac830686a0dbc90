package data

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/DevRickLin/social-reactor/internal/biz/domain"
	"github.com/DevRickLin/social-reactor/internal/biz/repo"
)

func newTestWatermarkRepo(t *testing.T) repo.WatermarkRepo {
	t.Helper()
	r, err := NewWatermarkRepo(filepath.Join(t.TempDir(), "nested", "watermarks.db"))
	if err != nil {
		t.Fatalf("Failed to create repo: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func TestWatermarkRepo_AbsentIsDistinctFromEmpty(t *testing.T) {
	r := newTestWatermarkRepo(t)
	ctx := context.Background()

	_, found, err := r.Get(ctx, "agent:mentions")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if found {
		t.Error("Expected absent key")
	}

	if _, err := r.Advance(ctx, "agent:mentions", ""); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	value, found, err := r.Get(ctx, "agent:mentions")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !found || value != "" {
		t.Errorf("Expected present empty value, got %q found=%v", value, found)
	}
}

func TestWatermarkRepo_AdvanceIsMonotonic(t *testing.T) {
	r := newTestWatermarkRepo(t)
	ctx := context.Background()
	key := "agent:mentions"

	steps := []struct {
		value    string
		advanced bool
		stored   string
	}{
		{"9", true, "9"},
		{"10", true, "10"},
		{"2", false, "10"},
		{"10", false, "10"},
		{"100", true, "100"},
	}

	for _, step := range steps {
		advanced, err := r.Advance(ctx, key, step.value)
		if err != nil {
			t.Fatalf("Advance(%s): %v", step.value, err)
		}
		if advanced != step.advanced {
			t.Errorf("Advance(%s): expected advanced=%v, got %v", step.value, step.advanced, advanced)
		}
		got, _, _ := r.Get(ctx, key)
		if got != step.stored {
			t.Errorf("After Advance(%s): expected %s, got %s", step.value, step.stored, got)
		}
	}
}

func TestWatermarkRepo_KeysAreIndependent(t *testing.T) {
	r := newTestWatermarkRepo(t)
	ctx := context.Background()

	r.Advance(ctx, "agent:mentions", "50")
	r.Advance(ctx, "agent:news", "1713268800000")
	r.Advance(ctx, "other:mentions", "7")

	marks, err := r.List(ctx, "agent:")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(marks) != 2 {
		t.Fatalf("Expected 2 watermarks, got %d", len(marks))
	}
	if marks[0].Key != "agent:mentions" || marks[0].Value != "50" {
		t.Errorf("Unexpected first watermark: %+v", marks[0])
	}
	if marks[1].UpdatedAt.IsZero() {
		t.Error("Expected updated_at to be set")
	}
}

func TestWatermarkRepo_Reset(t *testing.T) {
	r := newTestWatermarkRepo(t)
	ctx := context.Background()

	r.Advance(ctx, "agent:mentions", "50")
	if err := r.Reset(ctx, "agent:mentions"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if _, found, _ := r.Get(ctx, "agent:mentions"); found {
		t.Error("Expected key to be gone after reset")
	}

	// After a reset an older id may be stored again
	if advanced, _ := r.Advance(ctx, "agent:mentions", "3"); !advanced {
		t.Error("Expected advance after reset")
	}
}

func TestWatermarkRepo_ConcurrentAdvance(t *testing.T) {
	r := newTestWatermarkRepo(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 1; i <= 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			r.Advance(ctx, "agent:mentions", domainID(n))
		}(i)
	}
	wg.Wait()

	got, _, err := r.Get(ctx, "agent:mentions")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got != "20" {
		t.Errorf("Expected highest id 20 to win, got %s", got)
	}
}

func domainID(n int) string {
	ids := []string{"0", "1", "2", "3", "4", "5", "6", "7", "8", "9", "10",
		"11", "12", "13", "14", "15", "16", "17", "18", "19", "20"}
	return ids[n]
}

func TestWatermarkRepo_GetUnavailable(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()
	r := newWatermarkRepoWithDB(db)

	mock.ExpectQuery("SELECT value FROM watermarks").
		WithArgs("agent:mentions").
		WillReturnError(errors.New("disk I/O error"))

	_, _, err = r.Get(context.Background(), "agent:mentions")
	if !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Errorf("Expected ErrStoreUnavailable, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestWatermarkRepo_AdvanceUnavailable(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()
	r := newWatermarkRepoWithDB(db)

	mock.ExpectBegin().WillReturnError(errors.New("database is locked"))

	_, err = r.Advance(context.Background(), "agent:mentions", "9")
	if !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Errorf("Expected ErrStoreUnavailable on begin, got %v", err)
	}

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT value FROM watermarks").
		WithArgs("agent:mentions").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow("5"))
	mock.ExpectExec("INSERT INTO watermarks").
		WithArgs("agent:mentions", "9", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit().WillReturnError(errors.New("disk full"))

	advanced, err := r.Advance(context.Background(), "agent:mentions", "9")
	if !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Errorf("Expected ErrStoreUnavailable on commit, got %v", err)
	}
	if advanced {
		t.Error("Expected advanced=false when commit fails")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestWatermarkRepo_AdvanceSkipsRegressionWithoutWrite(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()
	r := newWatermarkRepoWithDB(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT value FROM watermarks").
		WithArgs("agent:mentions").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow("10"))
	mock.ExpectRollback()

	advanced, err := r.Advance(context.Background(), "agent:mentions", "9")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if advanced {
		t.Error("Expected regression to be ignored")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}
