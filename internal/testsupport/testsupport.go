package testsupport

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/karloscodes/cartridge"
	ctestsupport "github.com/karloscodes/cartridge/testsupport"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"trailmark/internal/database"
	"trailmark/internal/events"
	"trailmark/internal/sites"
)

// testDBCache caches test databases by test name to allow multiple calls
// within the same test to share the same database
var testDBCache = make(map[string]*gorm.DB)
var testDBCacheMu sync.Mutex

// TestDBManager wraps cartridge's TestDBManager with trailmark's interface
type TestDBManager struct {
	*ctestsupport.TestDBManager
}

// NewTestDBManager creates a TestDBManager that implements cartridge.DBManager
func NewTestDBManager(db *gorm.DB) *TestDBManager {
	return &TestDBManager{
		TestDBManager: ctestsupport.NewTestDBManager(db),
	}
}

// Ensure TestDBManager implements cartridge.DBManager
var _ cartridge.DBManager = (*TestDBManager)(nil)

// SetupTestDB creates a test database with all trailmark models migrated.
// Uses a named in-memory database with cache=shared to allow multiple
// connections to share the same database within a test. Caches the database
// by test name so multiple calls within the same test return the same one.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	testName := t.Name()

	// Use root test name for caching to handle closure issues where
	// setup functions capture the outer t while t.Run has subtest t
	rootName := testName
	if idx := strings.Index(testName, "/"); idx > 0 {
		rootName = testName[:idx]
	}

	testDBCacheMu.Lock()
	if db, exists := testDBCache[rootName]; exists {
		testDBCacheMu.Unlock()
		return db
	}
	testDBCacheMu.Unlock()

	sanitizedName := strings.ReplaceAll(rootName, "/", "_")
	dsn := fmt.Sprintf("file:test_%s_%d?mode=memory&cache=shared", sanitizedName, time.Now().UnixNano())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("testsupport: failed to open test database: %v", err)
	}

	db.Exec("PRAGMA foreign_keys = ON")
	db.Exec("PRAGMA journal_mode = WAL")

	if err := db.AutoMigrate(database.Models()...); err != nil {
		t.Fatalf("testsupport: failed to migrate models: %v", err)
	}

	testDBCacheMu.Lock()
	testDBCache[rootName] = db
	testDBCacheMu.Unlock()

	t.Cleanup(func() {
		testDBCacheMu.Lock()
		delete(testDBCache, rootName)
		testDBCacheMu.Unlock()
		sqlDB, err := db.DB()
		if err == nil {
			sqlDB.Close()
		}
	})

	return db
}

// CleanAllTables clears all non-system tables in the database
func CleanAllTables(db *gorm.DB) {
	var tableNames []string
	db.Raw("SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%'").Scan(&tableNames)

	var tables []string
	for _, name := range tableNames {
		if name != "migrations" && name != "schema_migrations" {
			tables = append(tables, name)
		}
	}

	if len(tables) == 0 {
		return
	}

	db.Exec("PRAGMA foreign_keys = OFF")
	defer db.Exec("PRAGMA foreign_keys = ON")

	db.Transaction(func(tx *gorm.DB) error {
		for _, table := range tables {
			tx.Exec("DELETE FROM " + table)
			tx.Exec("DELETE FROM sqlite_sequence WHERE name=?", table)
		}
		return nil
	})
}

// CreateTestSite creates a test site in the database
func CreateTestSite(t *testing.T, db *gorm.DB, domain string) sites.Site {
	t.Helper()

	var site sites.Site
	if db.Where("domain = ?", domain).First(&site).Error == nil {
		return site
	}
	site = sites.Site{Domain: domain, CreatedAt: time.Now().UTC()}
	require.NoError(t, db.Create(&site).Error)
	return site
}

// GetLogger returns a test logger
func GetLogger() *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError})
	return slog.New(handler)
}

// EventOption mutates an event before it is persisted.
type EventOption func(*events.Event)

func WithUTM(source, medium, campaign string) EventOption {
	return func(ev *events.Event) {
		ev.UTMSource = source
		ev.UTMMedium = medium
		ev.UTMCampaign = campaign
	}
}

func WithGeo(country, city string) EventOption {
	return func(ev *events.Event) {
		ev.Country = country
		ev.City = city
	}
}

func WithDevice(deviceType, browser, os string) EventOption {
	return func(ev *events.Event) {
		ev.DeviceType = deviceType
		ev.Browser = browser
		ev.OS = os
	}
}

func WithEventType(eventType string) EventOption {
	return func(ev *events.Event) {
		ev.EventType = eventType
	}
}

func WithPageURL(pageURL string) EventOption {
	return func(ev *events.Event) {
		ev.PageURL = pageURL
	}
}

// CreateTestEvent persists a pageview event with sensible defaults; options
// override individual fields.
func CreateTestEvent(t *testing.T, db *gorm.DB, siteID uint, visitorID, sessionID string, timestamp time.Time, opts ...EventOption) events.Event {
	t.Helper()

	ev := events.Event{
		SiteID:     siteID,
		VisitorID:  visitorID,
		SessionID:  sessionID,
		EventType:  events.EventTypePageView,
		PageURL:    "https://example.com/",
		Country:    "US",
		City:       "New York",
		DeviceType: "desktop",
		Browser:    "chrome",
		OS:         "linux",
		Timestamp:  timestamp.UTC(),
		CreatedAt:  time.Now().UTC(),
	}
	for _, opt := range opts {
		opt(&ev)
	}
	require.NoError(t, db.Create(&ev).Error)
	return ev
}
