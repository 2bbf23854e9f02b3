package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"devfolio/internal/collection"
	"devfolio/internal/database"
	"devfolio/internal/ordering"
	"devfolio/internal/relation"
)

var testDBSeq atomic.Int64

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:api%d?mode=memory&cache=shared", testDBSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := database.AutoMigrate(db); err != nil {
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

func jsonRequest(t *testing.T, method, target string, payload any) *http.Request {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestUpdatePin_ConflictReturns409(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newTestDB(t)
	owner := seedUser(t, db, "alice")

	pins := ordering.NewService(db, nil)
	h := NewProjectHandler(db, pins, relation.NewSyncer(db, nil))

	occupied := 3
	blocker := database.Project{UserID: owner, Title: "blocker", IsPinned: true, PinOrder: &occupied}
	if err := db.Create(&blocker).Error; err != nil {
		t.Fatalf("seed blocker: %v", err)
	}
	target := database.Project{UserID: owner, Title: "target"}
	if err := db.Create(&target).Error; err != nil {
		t.Fatalf("seed target: %v", err)
	}

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = jsonRequest(t, http.MethodPatch, "/v1/projects/"+strconv.Itoa(int(target.ID))+"/pin", gin.H{
		"pinned":    true,
		"pin_order": occupied,
	})
	c.Params = gin.Params{{Key: "id", Value: strconv.Itoa(int(target.ID))}}
	c.Set("userID", owner)

	h.UpdatePin(c)

	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d body=%s", w.Code, w.Body.String())
	}

	var stored database.Project
	if err := db.First(&stored, target.ID).Error; err != nil {
		t.Fatalf("reload target: %v", err)
	}
	if stored.IsPinned || stored.PinOrder != nil {
		t.Fatalf("conflict must leave target unchanged, got %+v", stored)
	}
}

func TestUpdatePin_AutoAssignReturnsNextOrder(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newTestDB(t)
	owner := seedUser(t, db, "alice")

	pins := ordering.NewService(db, nil)
	h := NewProjectHandler(db, pins, relation.NewSyncer(db, nil))

	project := database.Project{UserID: owner, Title: "p"}
	if err := db.Create(&project).Error; err != nil {
		t.Fatalf("seed project: %v", err)
	}

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = jsonRequest(t, http.MethodPatch, "/v1/projects/1/pin", gin.H{"pinned": true})
	c.Params = gin.Params{{Key: "id", Value: strconv.Itoa(int(project.ID))}}
	c.Set("userID", owner)

	h.UpdatePin(c)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%s", w.Code, w.Body.String())
	}

	var resp struct {
		Pinned   bool `json:"pinned"`
		PinOrder *int `json:"pin_order"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Pinned || resp.PinOrder == nil || *resp.PinOrder != 1 {
		t.Fatalf("expected pinned with order 1, got %+v", resp)
	}
}

func TestUpdatePin_ForeignProjectReturns404(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newTestDB(t)
	alice := seedUser(t, db, "alice")
	bob := seedUser(t, db, "bob")

	pins := ordering.NewService(db, nil)
	h := NewProjectHandler(db, pins, relation.NewSyncer(db, nil))

	project := database.Project{UserID: alice, Title: "p"}
	if err := db.Create(&project).Error; err != nil {
		t.Fatalf("seed project: %v", err)
	}

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = jsonRequest(t, http.MethodPatch, "/v1/projects/1/pin", gin.H{"pinned": true})
	c.Params = gin.Params{{Key: "id", Value: strconv.Itoa(int(project.ID))}}
	c.Set("userID", bob)

	h.UpdatePin(c)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d body=%s", w.Code, w.Body.String())
	}
}

func TestReplaceEducation_ReturnsRowsInSubmittedOrder(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newTestDB(t)
	owner := seedUser(t, db, "alice")

	h := NewProfileHandler(db, collection.NewReplacer(db, nil), relation.NewSyncer(db, nil))

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = jsonRequest(t, http.MethodPut, "/v1/profile/education", gin.H{
		"items": []gin.H{
			{"school": "MIT", "degree": "BSc"},
			{"school": "CMU", "degree": "MSc"},
		},
	})
	c.Set("userID", owner)

	h.ReplaceEducation(c)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%s", w.Code, w.Body.String())
	}

	var rows []database.Education
	if err := json.Unmarshal(w.Body.Bytes(), &rows); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].School != "MIT" || rows[0].SortOrder != 0 || rows[1].School != "CMU" || rows[1].SortOrder != 1 {
		t.Fatalf("unexpected rows: %+v", rows)
	}
}

func TestUpdateProject_PinConflictRollsBackFieldUpdate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newTestDB(t)
	owner := seedUser(t, db, "alice")

	pins := ordering.NewService(db, nil)
	h := NewProjectHandler(db, pins, relation.NewSyncer(db, nil))

	occupied := 1
	blocker := database.Project{UserID: owner, Title: "blocker", IsPinned: true, PinOrder: &occupied}
	if err := db.Create(&blocker).Error; err != nil {
		t.Fatalf("seed blocker: %v", err)
	}
	target := database.Project{UserID: owner, Title: "old title"}
	if err := db.Create(&target).Error; err != nil {
		t.Fatalf("seed target: %v", err)
	}

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = jsonRequest(t, http.MethodPut, "/v1/projects/1", gin.H{
		"title":     "new title",
		"pinned":    true,
		"pin_order": occupied,
	})
	c.Params = gin.Params{{Key: "id", Value: strconv.Itoa(int(target.ID))}}
	c.Set("userID", owner)

	h.UpdateProject(c)

	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d body=%s", w.Code, w.Body.String())
	}

	// 字段更新必须随置顶冲突一起回滚。
	var stored database.Project
	if err := db.First(&stored, target.ID).Error; err != nil {
		t.Fatalf("reload target: %v", err)
	}
	if stored.Title != "old title" {
		t.Fatalf("field update must roll back, got title %q", stored.Title)
	}
	if stored.IsPinned || stored.PinOrder != nil {
		t.Fatalf("pin state must roll back, got %+v", stored)
	}
}
