package docstore

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
)

func newMockPG(t *testing.T) (*PG, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewPG(db), mock
}

func TestPGCreateConflict(t *testing.T) {
	store, mock := newMockPG(t)
	mock.ExpectQuery("insert into documents").
		WithArgs("role_permissions", "owner_STAFF_READ", sqlmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	_, err := store.Create(context.Background(), "role_permissions", "owner_STAFF_READ", map[string]any{"roleId": "owner"})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPGCreateAndGet(t *testing.T) {
	store, mock := newMockPG(t)
	now := time.Now().UTC()
	mock.ExpectQuery("insert into documents").
		WithArgs("staff", "u1", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"data", "created_at", "updated_at"}).
			AddRow([]byte(`{"userId":"u1","status":"active"}`), now, now))
	mock.ExpectQuery("select data, created_at, updated_at\\s+from documents").
		WithArgs("staff", "missing").
		WillReturnError(sql.ErrNoRows)

	doc, err := store.Create(context.Background(), "staff", "u1", map[string]any{"userId": "u1", "status": "active"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if doc.String("status") != "active" || !doc.CreatedAt.Equal(now) {
		t.Fatalf("unexpected document %+v", doc)
	}
	if _, err := store.Get(context.Background(), "staff", "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPGListByID(t *testing.T) {
	store, mock := newMockPG(t)
	now := time.Now().UTC()
	mock.ExpectQuery(`select count\(\*\) from documents where collection = \$1 and id in \(\$2, \$3\)`).
		WithArgs("permissions", "STAFF_READ", "KENO_TICKETS_CREATE").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectQuery(`select id, data, created_at, updated_at\s+from documents\s+where collection = \$1 and id in \(\$2, \$3\)\s+order by created_at, id\s+limit \$4 offset \$5`).
		WithArgs("permissions", "STAFF_READ", "KENO_TICKETS_CREATE", 100, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "data", "created_at", "updated_at"}).
			AddRow("KENO_TICKETS_CREATE", []byte(`{"key":"KENO_TICKETS_CREATE","group":"KENO"}`), now, now).
			AddRow("STAFF_READ", []byte(`{"key":"STAFF_READ","group":"STAFF"}`), now, now))

	q := NewQuery(Equal(IDAttribute, "STAFF_READ", "KENO_TICKETS_CREATE")).WithLimit(MaxLimit)
	list, err := store.List(context.Background(), "permissions", q)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if list.Total != 2 || len(list.Documents) != 2 || list.Documents[1].String("group") != "STAFF" {
		t.Fatalf("unexpected list %+v", list)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPGListAttributeFilterAndOrder(t *testing.T) {
	store, mock := newMockPG(t)
	mock.ExpectQuery(`select count\(\*\) from documents where collection = \$1 and \(data->>'roleId' in \(\$2\)`).
		WithArgs("role_permissions", "r1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(`order by data->>'permissionId' desc, created_at, id`).
		WithArgs("role_permissions", "r1", 5, 10).
		WillReturnRows(sqlmock.NewRows([]string{"id", "data", "created_at", "updated_at"}))

	q := NewQuery(Equal("roleId", "r1")).OrderDesc("permissionId").WithLimit(5).WithOffset(10)
	list, err := store.List(context.Background(), "role_permissions", q)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if list.Total != 0 || len(list.Documents) != 0 {
		t.Fatalf("unexpected list %+v", list)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPGUpdateAndDeleteMissing(t *testing.T) {
	store, mock := newMockPG(t)
	mock.ExpectQuery("update documents").
		WithArgs("staff", "ghost", sqlmock.AnyArg()).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec("delete from documents").
		WithArgs("venues", "ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if _, err := store.Update(context.Background(), "staff", "ghost", map[string]any{"status": "inactive"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found on update, got %v", err)
	}
	if err := store.Delete(context.Background(), "venues", "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found on delete, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPGNilDB(t *testing.T) {
	store := &PG{}
	if _, err := store.Get(context.Background(), "staff", "x"); err == nil {
		t.Fatal("expected error without database")
	}
}
