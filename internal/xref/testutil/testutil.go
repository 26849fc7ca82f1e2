package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Nickin919/WAIGO-sub001/internal/middleware"
	"github.com/Nickin919/WAIGO-sub001/internal/xref/entity"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	JWTSecret = "waigo-test-secret"
	JWTIssuer = "waigo"
)

var dbSeq atomic.Int64

// SetupTestDB opens an isolated in-memory sqlite database with every table migrated.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := fmt.Sprintf("file:xref_test_%d_%d?mode=memory&cache=shared", time.Now().UnixNano(), dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(name), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	// 内存库只允许一个连接，避免并发写锁冲突
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("Failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := Migrate(db); err != nil {
		t.Fatalf("Failed to migrate test tables: %v", err)
	}

	t.Cleanup(func() {
		sqlDB.Close()
	})
	return db
}

// Migrate creates every engine table.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&entity.WagoPart{},
		&entity.CrossReference{},
		&entity.NonWagoProduct{},
		&entity.FailureLog{},
		&entity.Project{},
		&entity.ProjectItem{},
	)
}

// SetupRouter creates a gin test router
func SetupRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(gin.Recovery())
	return r
}

// AuthGroup creates an API group with JWT auth middleware for testing
func AuthGroup(r *gin.Engine, path string) *gin.RouterGroup {
	return r.Group(path, middleware.JWTAuth(JWTSecret, JWTIssuer))
}

// GenerateTestToken creates a valid JWT token for testing
func GenerateTestToken(userID, name string, roles []string) string {
	if roles == nil {
		roles = []string{}
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   userID,
		"uid":   userID,
		"name":  name,
		"roles": roles,
		"iss":   JWTIssuer,
		"iat":   now.Unix(),
		"exp":   now.Add(time.Hour).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, _ := token.SignedString([]byte(JWTSecret))
	return tokenString
}

// UserToken returns a token for a regular user
func UserToken(userID string) string {
	return GenerateTestToken(userID, "User "+userID, []string{"user"})
}

// AdminToken returns a token carrying the admin role
func AdminToken(userID string) string {
	return GenerateTestToken(userID, "Admin "+userID, []string{middleware.RoleAdmin})
}

// DoRequest executes a JSON request against the test router
func DoRequest(r *gin.Engine, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	var reqBody io.Reader = bytes.NewBuffer(nil)
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBytes)
	}
	return DoRawRequest(r, method, path, "application/json", reqBody, token)
}

// DoRawRequest executes a request with an explicit content type
func DoRawRequest(r *gin.Engine, method, path, contentType string, body io.Reader, token string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// ParseResponse parses the JSON response envelope
func ParseResponse(w *httptest.ResponseRecorder) map[string]interface{} {
	var result map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &result)
	return result
}

// ResponseData returns the data object of the envelope
func ResponseData(w *httptest.ResponseRecorder) map[string]interface{} {
	data, _ := ParseResponse(w)["data"].(map[string]interface{})
	return data
}

// SeedWagoPart creates a catalog part
func SeedWagoPart(t *testing.T, db *gorm.DB, partNumber, catalogID string) *entity.WagoPart {
	t.Helper()
	part := &entity.WagoPart{
		ID:          entity.NewID(),
		PartNumber:  partNumber,
		Description: "WAGO " + partNumber,
		CatalogID:   catalogID,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	if err := db.Create(part).Error; err != nil {
		t.Fatalf("Failed to seed wago part: %v", err)
	}
	return part
}

// SeedCrossReference creates a cross reference with the given score
func SeedCrossReference(t *testing.T, db *gorm.DB, manufacturer, partNumber string, part *entity.WagoPart, score float64) *entity.CrossReference {
	t.Helper()
	xref := &entity.CrossReference{
		ID:                   entity.NewID(),
		OriginalManufacturer: manufacturer,
		OriginalPartNumber:   partNumber,
		WagoPartID:           part.ID,
		CompatibilityScore:   score,
		CreatedAt:            time.Now(),
		UpdatedAt:            time.Now(),
	}
	if err := db.Create(xref).Error; err != nil {
		t.Fatalf("Failed to seed cross reference: %v", err)
	}
	return xref
}

// SeedProject creates a project in the given status with one item per part number
func SeedProject(t *testing.T, db *gorm.DB, ownerID, status string, items ...entity.ProjectItem) *entity.Project {
	t.Helper()
	project := &entity.Project{
		ID:        entity.NewID(),
		Name:      "BOM " + ownerID,
		OwnerID:   ownerID,
		Status:    status,
		Revision:  1,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := db.Create(project).Error; err != nil {
		t.Fatalf("Failed to seed project: %v", err)
	}
	for i := range items {
		item := items[i]
		item.ID = entity.NewID()
		item.ProjectID = project.ID
		item.Revision = 1
		item.ItemNumber = i + 1
		if item.Quantity == 0 {
			item.Quantity = 1
		}
		item.CreatedAt = time.Now()
		item.UpdatedAt = time.Now()
		if err := db.Create(&item).Error; err != nil {
			t.Fatalf("Failed to seed project item: %v", err)
		}
		project.Items = append(project.Items, item)
	}
	return project
}

// Item is shorthand for a project item with manufacturer and part number
func Item(manufacturer, partNumber string) entity.ProjectItem {
	return entity.ProjectItem{Manufacturer: manufacturer, PartNumber: strings.TrimSpace(partNumber)}
}
