package ordering

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"devfolio/internal/database"
)

var testDBSeq atomic.Int64

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:ordering%d?mode=memory&cache=shared", testDBSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&database.User{}, &database.Project{}, &database.Certification{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedUser(t *testing.T, db *gorm.DB, username string) uint {
	t.Helper()
	user := database.User{Username: username, PasswordHash: "x"}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user.ID
}

func seedProject(t *testing.T, db *gorm.DB, ownerID uint, title string) uint {
	t.Helper()
	project := database.Project{UserID: ownerID, Title: title}
	if err := db.Create(&project).Error; err != nil {
		t.Fatalf("seed project: %v", err)
	}
	return project.ID
}

func loadProject(t *testing.T, db *gorm.DB, id uint) database.Project {
	t.Helper()
	var project database.Project
	if err := db.First(&project, id).Error; err != nil {
		t.Fatalf("load project: %v", err)
	}
	return project
}

func intp(v int) *int { return &v }

func TestAssignOrUpdatePin_FirstPinGetsOrderOne(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, nil)
	owner := seedUser(t, db, "alice")
	id := seedProject(t, db, owner, "first")

	pin, err := svc.AssignOrUpdatePin(context.Background(), owner, KindProject, id, true, nil)
	if err != nil {
		t.Fatalf("pin: %v", err)
	}
	if !pin.IsPinned || pin.PinOrder == nil || *pin.PinOrder != 1 {
		t.Fatalf("expected pinned with order 1, got %+v", pin)
	}
}

func TestAssignOrUpdatePin_AutoOrderIsMaxPlusOne(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, nil)
	owner := seedUser(t, db, "alice")
	ctx := context.Background()

	first := seedProject(t, db, owner, "a")
	second := seedProject(t, db, owner, "b")
	third := seedProject(t, db, owner, "c")

	if _, err := svc.AssignOrUpdatePin(ctx, owner, KindProject, first, true, nil); err != nil {
		t.Fatalf("pin first: %v", err)
	}
	// 留出空洞：显式置为 5，验证 MAX+1 而非密集递增。
	if _, err := svc.AssignOrUpdatePin(ctx, owner, KindProject, second, true, intp(5)); err != nil {
		t.Fatalf("pin second: %v", err)
	}

	pin, err := svc.AssignOrUpdatePin(ctx, owner, KindProject, third, true, nil)
	if err != nil {
		t.Fatalf("pin third: %v", err)
	}
	if pin.PinOrder == nil || *pin.PinOrder != 6 {
		t.Fatalf("expected order 6, got %+v", pin.PinOrder)
	}
}

func TestAssignOrUpdatePin_ExplicitConflictRejectedAndStateUnchanged(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, nil)
	owner := seedUser(t, db, "alice")
	ctx := context.Background()

	x := seedProject(t, db, owner, "x")
	y := seedProject(t, db, owner, "y")

	if _, err := svc.AssignOrUpdatePin(ctx, owner, KindProject, y, true, intp(2)); err != nil {
		t.Fatalf("pin y: %v", err)
	}

	_, err := svc.AssignOrUpdatePin(ctx, owner, KindProject, x, true, intp(2))
	if !IsConflict(err) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	var conflict *ConflictError
	errors.As(err, &conflict)
	if conflict.Order != 2 {
		t.Fatalf("conflict should name order 2, got %d", conflict.Order)
	}

	// 双方状态都不得变化。
	gotX := loadProject(t, db, x)
	if gotX.IsPinned || gotX.PinOrder != nil {
		t.Fatalf("x must stay unpinned, got %+v", gotX)
	}
	gotY := loadProject(t, db, y)
	if !gotY.IsPinned || gotY.PinOrder == nil || *gotY.PinOrder != 2 {
		t.Fatalf("y must keep order 2, got %+v", gotY)
	}
}

func TestAssignOrUpdatePin_ReorderToOwnOrderIsNoop(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, nil)
	owner := seedUser(t, db, "alice")
	ctx := context.Background()

	id := seedProject(t, db, owner, "p")
	if _, err := svc.AssignOrUpdatePin(ctx, owner, KindProject, id, true, intp(3)); err != nil {
		t.Fatalf("pin: %v", err)
	}

	pin, err := svc.AssignOrUpdatePin(ctx, owner, KindProject, id, true, intp(3))
	if err != nil {
		t.Fatalf("re-pin with own order: %v", err)
	}
	if pin.PinOrder == nil || *pin.PinOrder != 3 {
		t.Fatalf("expected order 3, got %+v", pin.PinOrder)
	}
}

func TestAssignOrUpdatePin_PinnedWithoutOrderRetainsCurrent(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, nil)
	owner := seedUser(t, db, "alice")
	ctx := context.Background()

	id := seedProject(t, db, owner, "p")
	if _, err := svc.AssignOrUpdatePin(ctx, owner, KindProject, id, true, intp(7)); err != nil {
		t.Fatalf("pin: %v", err)
	}

	pin, err := svc.AssignOrUpdatePin(ctx, owner, KindProject, id, true, nil)
	if err != nil {
		t.Fatalf("update without order: %v", err)
	}
	if pin.PinOrder == nil || *pin.PinOrder != 7 {
		t.Fatalf("expected retained order 7, got %+v", pin.PinOrder)
	}
}

func TestAssignOrUpdatePin_ReorderPinned(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, nil)
	owner := seedUser(t, db, "alice")
	ctx := context.Background()

	id := seedProject(t, db, owner, "p")
	if _, err := svc.AssignOrUpdatePin(ctx, owner, KindProject, id, true, intp(1)); err != nil {
		t.Fatalf("pin: %v", err)
	}

	pin, err := svc.AssignOrUpdatePin(ctx, owner, KindProject, id, true, intp(4))
	if err != nil {
		t.Fatalf("reorder: %v", err)
	}
	if pin.PinOrder == nil || *pin.PinOrder != 4 {
		t.Fatalf("expected order 4, got %+v", pin.PinOrder)
	}
}

func TestAssignOrUpdatePin_UnpinClearsOrderDespiteExplicitOrder(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, nil)
	owner := seedUser(t, db, "alice")
	ctx := context.Background()

	id := seedProject(t, db, owner, "p")
	if _, err := svc.AssignOrUpdatePin(ctx, owner, KindProject, id, true, nil); err != nil {
		t.Fatalf("pin: %v", err)
	}

	// 取消置顶时一并提交的顺序必须被忽略。
	pin, err := svc.AssignOrUpdatePin(ctx, owner, KindProject, id, false, intp(9))
	if err != nil {
		t.Fatalf("unpin: %v", err)
	}
	if pin.IsPinned || pin.PinOrder != nil {
		t.Fatalf("expected unpinned with nil order, got %+v", pin)
	}

	got := loadProject(t, db, id)
	if got.IsPinned || got.PinOrder != nil {
		t.Fatalf("stored state must be unpinned, got %+v", got)
	}
}

func TestAssignOrUpdatePin_UnpinUnpinnedIsNoop(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, nil)
	owner := seedUser(t, db, "alice")
	id := seedProject(t, db, owner, "p")

	pin, err := svc.AssignOrUpdatePin(context.Background(), owner, KindProject, id, false, nil)
	if err != nil {
		t.Fatalf("unpin: %v", err)
	}
	if pin.IsPinned || pin.PinOrder != nil {
		t.Fatalf("expected unpinned, got %+v", pin)
	}
}

func TestAssignOrUpdatePin_WrongOwnerIsNotFound(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, nil)
	alice := seedUser(t, db, "alice")
	bob := seedUser(t, db, "bob")
	id := seedProject(t, db, alice, "p")

	_, err := svc.AssignOrUpdatePin(context.Background(), bob, KindProject, id, true, nil)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if got := loadProject(t, db, id); got.IsPinned {
		t.Fatalf("cross-owner request must not mutate, got %+v", got)
	}
}

func TestAssignOrUpdatePin_MissingRecordIsNotFound(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, nil)
	owner := seedUser(t, db, "alice")

	_, err := svc.AssignOrUpdatePin(context.Background(), owner, KindProject, 9999, true, nil)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAssignOrUpdatePin_OwnersDoNotContend(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, nil)
	alice := seedUser(t, db, "alice")
	bob := seedUser(t, db, "bob")
	ctx := context.Background()

	ap := seedProject(t, db, alice, "a")
	bp := seedProject(t, db, bob, "b")

	if _, err := svc.AssignOrUpdatePin(ctx, alice, KindProject, ap, true, intp(1)); err != nil {
		t.Fatalf("pin alice: %v", err)
	}
	// 同一顺序值在不同 owner 作用域下互不冲突。
	if _, err := svc.AssignOrUpdatePin(ctx, bob, KindProject, bp, true, intp(1)); err != nil {
		t.Fatalf("pin bob: %v", err)
	}
}

func TestAssignOrUpdatePin_KindsDoNotContend(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, nil)
	owner := seedUser(t, db, "alice")
	ctx := context.Background()

	project := seedProject(t, db, owner, "p")
	cert := database.Certification{UserID: owner, Name: "c"}
	if err := db.Create(&cert).Error; err != nil {
		t.Fatalf("seed cert: %v", err)
	}

	if _, err := svc.AssignOrUpdatePin(ctx, owner, KindProject, project, true, intp(1)); err != nil {
		t.Fatalf("pin project: %v", err)
	}
	if _, err := svc.AssignOrUpdatePin(ctx, owner, KindCertification, cert.ID, true, intp(1)); err != nil {
		t.Fatalf("pin certification: %v", err)
	}
}

func TestAssignOrUpdatePin_NoDuplicateOrdersAfterManyPins(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, nil)
	owner := seedUser(t, db, "alice")
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		id := seedProject(t, db, owner, fmt.Sprintf("p%d", i))
		if _, err := svc.AssignOrUpdatePin(ctx, owner, KindProject, id, true, nil); err != nil {
			t.Fatalf("pin %d: %v", i, err)
		}
	}

	var orders []int
	if err := db.Model(&database.Project{}).
		Where("user_id = ? AND pin_order IS NOT NULL", owner).
		Order("pin_order ASC").
		Pluck("pin_order", &orders).Error; err != nil {
		t.Fatalf("pluck orders: %v", err)
	}
	if len(orders) != 6 {
		t.Fatalf("expected 6 pinned rows, got %d", len(orders))
	}
	seen := map[int]bool{}
	for _, order := range orders {
		if seen[order] {
			t.Fatalf("duplicate pin order %d in %v", order, orders)
		}
		seen[order] = true
	}
}

func TestNextOrder(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, nil)
	owner := seedUser(t, db, "alice")
	ctx := context.Background()

	order, err := svc.NextOrder(ctx, owner, KindProject)
	if err != nil {
		t.Fatalf("next order: %v", err)
	}
	if order != 1 {
		t.Fatalf("empty set should suggest 1, got %d", order)
	}

	id := seedProject(t, db, owner, "p")
	if _, err := svc.AssignOrUpdatePin(ctx, owner, KindProject, id, true, intp(8)); err != nil {
		t.Fatalf("pin: %v", err)
	}

	order, err = svc.NextOrder(ctx, owner, KindProject)
	if err != nil {
		t.Fatalf("next order: %v", err)
	}
	if order != 9 {
		t.Fatalf("expected 9, got %d", order)
	}
}

func TestReserveTx_ExcludesSelf(t *testing.T) {
	db := newTestDB(t)
	owner := seedUser(t, db, "alice")
	svc := NewService(db, nil)

	id := seedProject(t, db, owner, "p")
	if _, err := svc.AssignOrUpdatePin(context.Background(), owner, KindProject, id, true, intp(2)); err != nil {
		t.Fatalf("pin: %v", err)
	}

	if err := ReserveTx(db, owner, KindProject, 2, id); err != nil {
		t.Fatalf("own order must not conflict with itself: %v", err)
	}
	if err := ReserveTx(db, owner, KindProject, 2, 0); err == nil {
		t.Fatal("expected conflict for another record")
	}
}

func TestReserveTx_RejectsNonPositiveOrder(t *testing.T) {
	db := newTestDB(t)
	owner := seedUser(t, db, "alice")

	if err := ReserveTx(db, owner, KindProject, 0, 0); err == nil {
		t.Fatal("expected error for order 0")
	}
	if err := ReserveTx(db, owner, KindProject, -3, 0); err == nil {
		t.Fatal("expected error for negative order")
	}
}
