package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/hitoshi/doorman/internal/model"
)

func permColumns() []string {
	return []string{"door_id", "user_id", "can_edit", "can_open"}
}

func TestPostgresPermissionRepo_ImplementsInterface(t *testing.T) {
	var _ PermissionRepository = (*PostgresPermissionRepo)(nil)
}

func TestPostgresPermissionRepo_Find_NotFound_ReturnsNil(t *testing.T) {
	db, mock := newSQLMockDB(t)
	repo := NewPostgresPermissionRepo(db)

	mock.ExpectQuery(`SELECT door_id, user_id, can_edit, can_open`).
		WithArgs("door-1", "stranger").
		WillReturnError(sql.ErrNoRows)

	perm, err := repo.Find(context.Background(), "door-1", "stranger")
	if err != nil {
		t.Fatalf("expected nil error for absent permission, got %v", err)
	}
	if perm != nil {
		t.Errorf("expected nil permission, got %+v", perm)
	}
}

func TestPostgresPermissionRepo_Find_Found(t *testing.T) {
	db, mock := newSQLMockDB(t)
	repo := NewPostgresPermissionRepo(db)

	mock.ExpectQuery(`SELECT door_id, user_id, can_edit, can_open`).
		WithArgs("door-1", "user-1").
		WillReturnRows(sqlmock.NewRows(permColumns()).
			AddRow("door-1", "user-1", true, false))

	perm, err := repo.Find(context.Background(), "door-1", "user-1")
	if err != nil {
		t.Fatalf("Find returned error: %v", err)
	}
	if perm == nil {
		t.Fatal("expected permission, got nil")
	}
	if !perm.CanEdit || perm.CanOpen {
		t.Errorf("flags = (edit=%v, open=%v), want (true, false)", perm.CanEdit, perm.CanOpen)
	}
}

// Upsertは複合主キー(door_id, user_id)の衝突時にフラグのみを更新すること。
func TestPostgresPermissionRepo_Upsert_OnConflictUpdatesFlags(t *testing.T) {
	db, mock := newSQLMockDB(t)
	repo := NewPostgresPermissionRepo(db)

	mock.ExpectExec(regexp.QuoteMeta(
		`ON CONFLICT (door_id, user_id)
		 DO UPDATE SET can_edit = EXCLUDED.can_edit, can_open = EXCLUDED.can_open`)).
		WithArgs("door-1", "user-1", false, true).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Upsert(context.Background(), &model.DoorPermission{
		DoorID:  "door-1",
		UserID:  "user-1",
		CanEdit: false,
		CanOpen: true,
	})
	if err != nil {
		t.Fatalf("Upsert returned error: %v", err)
	}
}

// Deleteは冪等であること。0行削除でもエラーにならない。
func TestPostgresPermissionRepo_Delete_Idempotent(t *testing.T) {
	db, mock := newSQLMockDB(t)
	repo := NewPostgresPermissionRepo(db)

	mock.ExpectExec(`DELETE FROM door_permissions WHERE door_id = \$1 AND user_id = \$2`).
		WithArgs("door-1", "never-granted").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.Delete(context.Background(), "door-1", "never-granted"); err != nil {
		t.Fatalf("Delete should be idempotent, got error: %v", err)
	}
}

func TestPostgresPermissionRepo_ListByDoorID(t *testing.T) {
	db, mock := newSQLMockDB(t)
	repo := NewPostgresPermissionRepo(db)

	mock.ExpectQuery(`FROM door_permissions\s+WHERE door_id = \$1`).
		WithArgs("door-1").
		WillReturnRows(sqlmock.NewRows(permColumns()).
			AddRow("door-1", "user-1", true, true).
			AddRow("door-1", "user-2", false, true))

	perms, err := repo.ListByDoorID(context.Background(), "door-1")
	if err != nil {
		t.Fatalf("ListByDoorID returned error: %v", err)
	}
	if len(perms) != 2 {
		t.Fatalf("len(perms) = %d, want 2", len(perms))
	}
}
