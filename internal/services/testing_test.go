package services

import (
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/canopyhq/entitlement-backend/internal/database"
	"github.com/canopyhq/entitlement-backend/internal/models"
	"github.com/canopyhq/entitlement-backend/internal/pki"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// openTestDB opens a migrated sqlite database in t.TempDir. A file-backed
// database with a busy timeout keeps the concurrency tests honest; in-memory
// sqlite serializes differently than the real thing.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "test.db") + "?_busy_timeout=5000&_journal_mode=WAL"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func createOwner(t *testing.T, db *gorm.DB) *models.Owner {
	t.Helper()
	owner := &models.Owner{
		ID:          uuid.New(),
		Key:         "owner-" + uuid.NewString()[:8],
		DisplayName: "Test Owner",
	}
	if err := db.Create(owner).Error; err != nil {
		t.Fatalf("create owner: %v", err)
	}
	return owner
}

func createProduct(t *testing.T, db *gorm.DB, id, name string, multiplier int64) *models.Product {
	t.Helper()
	product := &models.Product{ID: id, Name: name, Multiplier: multiplier}
	if err := db.Create(product).Error; err != nil {
		t.Fatalf("create product: %v", err)
	}
	return product
}

func createConsumer(t *testing.T, db *gorm.DB, owner *models.Owner) *models.Consumer {
	t.Helper()
	consumer := &models.Consumer{
		ID:         uuid.New(),
		OwnerID:    owner.ID,
		Name:       "test-system",
		SystemUUID: uuid.NewString(),
	}
	if err := db.Create(consumer).Error; err != nil {
		t.Fatalf("create consumer: %v", err)
	}
	return consumer
}

// createPool persists a pool directly, bypassing derivation, for tests that
// need precise control over the window and quantities.
func createPool(t *testing.T, db *gorm.DB, owner *models.Owner, productID string, quantity int64, start, end time.Time, provided ...string) *models.Pool {
	t.Helper()
	pool := &models.Pool{
		ID:                 uuid.New(),
		OwnerID:            owner.ID,
		ProductID:          productID,
		ProductName:        productID,
		ProvidedProductIDs: models.ProductIDSet(provided),
		Quantity:           quantity,
		StartDate:          start,
		EndDate:            end,
	}
	if err := db.Create(pool).Error; err != nil {
		t.Fatalf("create pool: %v", err)
	}
	return pool
}

func date(year, month, day int) time.Time {
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

// testKey is shared across fake authorities; generating RSA keys per test
// run is what makes crypto suites slow.
var (
	testKey     *rsa.PrivateKey
	testKeyOnce sync.Once
)

func sharedTestKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	testKeyOnce.Do(func() {
		var err error
		testKey, err = rsa.GenerateKey(rand.Reader, 1024)
		if err != nil {
			t.Fatalf("generate test key: %v", err)
		}
	})
	return testKey
}

// fakeAuthority implements pki.Authority without real signing. failSigns
// makes the first N Sign calls fail; onSign runs before each attempt.
type fakeAuthority struct {
	key       *rsa.PrivateKey
	mu        sync.Mutex
	failSigns int
	signCalls int
	lastReq   *pki.Request
	onSign    func()
}

func newFakeAuthority(t *testing.T) *fakeAuthority {
	return &fakeAuthority{key: sharedTestKey(t)}
}

func (f *fakeAuthority) GenerateKeyPair() (*rsa.PrivateKey, error) {
	return f.key, nil
}

func (f *fakeAuthority) Sign(req *pki.Request, key *rsa.PrivateKey) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signCalls++
	f.lastReq = req
	if f.onSign != nil {
		f.onSign()
	}
	if f.signCalls <= f.failSigns {
		return nil, errors.New("hsm unavailable")
	}
	return []byte(fmt.Sprintf("der-%s", req.Serial)), nil
}

func (f *fakeAuthority) PEMEncodeCert(der []byte) []byte {
	return append([]byte("CERT:"), der...)
}

func (f *fakeAuthority) PEMEncodeKey(key *rsa.PrivateKey) []byte {
	return []byte("KEY")
}
