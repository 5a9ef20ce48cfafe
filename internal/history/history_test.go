package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/tphakala/leafscan/internal/conf"
	"github.com/tphakala/leafscan/internal/conversation"
	"github.com/tphakala/leafscan/internal/errors"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "data", "history.db"), 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestNewStore_MigrationFailureClosesPool(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "history.db")
	db, err := gorm.Open(sqlite.Open(path), gormConfig(0))
	require.NoError(t, err)
	// A view with the table's name makes the migration fail.
	require.NoError(t, db.Exec("CREATE VIEW history AS SELECT 1 AS id").Error)

	s, err := newStore(db, "sqlite", path)
	require.Error(t, err)
	assert.Nil(t, s)
	assert.ErrorIs(t, err, ErrPersistence)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.ErrorContains(t, sqlDB.Ping(), "database is closed")
}

func TestSave(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	rec := &Record{UserID: "farmer@example.com", Label: "rust", Advice: "remove leaves", ImagePath: "/tmp/leaf.jpg"}
	require.NoError(t, s.Save(ctx, rec))
	require.NotZero(t, rec.ID)

	got, err := s.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "farmer@example.com", got.UserID)
	assert.Equal(t, "rust", got.Label)
	assert.Equal(t, "remove leaves", got.Advice)
	assert.Equal(t, "/tmp/leaf.jpg", got.ImagePath)
	assert.Equal(t, "[]", got.Conversation)
	assert.False(t, got.CreatedAt.IsZero())
	assert.Equal(t, "sqlite", s.Backend())
}

func TestSave_NoUserSkips(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	rec := &Record{Label: "rust"}
	require.NoError(t, s.Save(ctx, rec))
	assert.Zero(t, rec.ID)

	var count int64
	require.NoError(t, s.db.Model(&Record{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestList_NewestFirst(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

	for i, label := range []string{"miner", "rust", "phoma"} {
		require.NoError(t, s.Save(ctx, &Record{UserID: "a", Label: label, CreatedAt: base.Add(time.Duration(i) * time.Hour)}))
	}
	require.NoError(t, s.Save(ctx, &Record{UserID: "b", Label: "nodisease", CreatedAt: base}))

	records, err := s.List(ctx, "a", 0)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "phoma", records[0].Label)
	assert.Equal(t, "rust", records[1].Label)
	assert.Equal(t, "miner", records[2].Label)

	limited, err := s.List(ctx, "a", 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	none, err := s.List(ctx, "nobody", 0)
	require.NoError(t, err)
	assert.Empty(t, none)

	latest, err := s.Latest(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "phoma", latest.Label)

	_, err = s.Latest(ctx, "nobody")
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestAttachConversation(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	first := &Record{UserID: "a", Label: "rust"}
	second := &Record{UserID: "a", Label: "miner"}
	require.NoError(t, s.Save(ctx, first))
	require.NoError(t, s.Save(ctx, second))

	turns := []conversation.Turn{
		{Sender: conversation.SenderAssistant, Message: "You can now ask questions about the disease or remedies."},
		{Sender: conversation.SenderUser, Message: "rust?"},
	}
	require.NoError(t, s.AttachConversation(ctx, first.ID, turns))

	got, err := s.Get(ctx, first.ID)
	require.NoError(t, err)
	stored, err := got.Turns()
	require.NoError(t, err)
	assert.Equal(t, turns, stored)

	// the newer record is untouched
	other, err := s.Get(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, "[]", other.Conversation)

	err = s.AttachConversation(ctx, 9999, turns)
	assert.ErrorIs(t, err, ErrRecordNotFound)
	assert.True(t, errors.IsNotFound(err))
}

func TestAttachConversationToLatest(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

	older := &Record{UserID: "a", Label: "rust", CreatedAt: base}
	newer := &Record{UserID: "a", Label: "miner", CreatedAt: base.Add(time.Minute)}
	require.NoError(t, s.Save(ctx, older))
	require.NoError(t, s.Save(ctx, newer))

	turns := []conversation.Turn{{Sender: conversation.SenderUser, Message: "hi"}}
	require.NoError(t, s.AttachConversationToLatest(ctx, "a", turns))

	got, err := s.Get(ctx, newer.ID)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"sender":"User","message":"hi"}]`, got.Conversation)

	untouched, err := s.Get(ctx, older.ID)
	require.NoError(t, err)
	assert.Equal(t, "[]", untouched.Conversation)

	assert.ErrorIs(t, s.AttachConversationToLatest(ctx, "nobody", turns), ErrRecordNotFound)
	assert.NoError(t, s.AttachConversationToLatest(ctx, "", turns))
}

func TestDelete(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	rec := &Record{UserID: "a", Label: "rust"}
	require.NoError(t, s.Save(ctx, rec))
	require.NoError(t, s.Delete(ctx, rec.ID))

	_, err := s.Get(ctx, rec.ID)
	assert.ErrorIs(t, err, ErrRecordNotFound)
	assert.ErrorIs(t, s.Delete(ctx, rec.ID), ErrRecordNotFound)
}

func TestClosedStoreReportsPersistenceError(t *testing.T) {
	t.Parallel()

	s, err := OpenSQLite(filepath.Join(t.TempDir(), "history.db"), 0)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	err = s.Save(context.Background(), &Record{UserID: "a", Label: "rust"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPersistence)
	assert.True(t, errors.IsCategory(err, errors.CategoryDatabase))
}

func TestOpen(t *testing.T) {
	t.Parallel()

	_, err := Open(conf.HistorySettings{})
	assert.ErrorIs(t, err, ErrNoBackend)

	s, err := Open(conf.HistorySettings{SQLite: conf.SQLiteSettings{Enabled: true, Path: filepath.Join(t.TempDir(), "h.db")}})
	require.NoError(t, err)
	assert.Equal(t, "sqlite", s.Backend())
	require.NoError(t, s.Close())

	_, err = OpenSQLite("", 0)
	require.Error(t, err)
}

func TestMySQLDSN(t *testing.T) {
	t.Parallel()

	dsn := mysqlDSN(conf.MySQLSettings{
		Host:     "db.local",
		Port:     "3306",
		Username: "coffee",
		Password: "p@ss/word",
		Database: "coffee_disease_db",
	})
	assert.Contains(t, dsn, "coffee:p@ss/word@tcp(db.local:3306)/coffee_disease_db?")
	assert.Contains(t, dsn, "parseTime=true")
	assert.Contains(t, dsn, "charset=utf8mb4")
}
