package history

import (
	"context"
	"fmt"
	"io"
	"time"

	"gorm.io/gorm"

	"github.com/tphakala/leafscan/internal/conf"
	"github.com/tphakala/leafscan/internal/conversation"
	"github.com/tphakala/leafscan/internal/errors"
	"github.com/tphakala/leafscan/internal/logger"
)

var (
	// ErrPersistence wraps every database failure.
	ErrPersistence = errors.NewStd("history persistence failed")
	// ErrRecordNotFound is returned when no row matches.
	ErrRecordNotFound = errors.NewStd("history record not found")
	// ErrNoBackend is returned by Open when no backend is enabled.
	ErrNoBackend = errors.NewStd("no history backend enabled")
)

// Store reads and writes history records.
type Store struct {
	db      *gorm.DB
	backend string
}

// Open connects to the backend enabled in settings. MySQL takes precedence
// when both are enabled.
func Open(settings conf.HistorySettings) (*Store, error) {
	switch {
	case settings.MySQL.Enabled:
		return OpenMySQL(settings.MySQL, settings.SlowThreshold)
	case settings.SQLite.Enabled:
		return OpenSQLite(settings.SQLite.Path, settings.SlowThreshold)
	default:
		return nil, errors.New(ErrNoBackend).
			Component("history").
			Category(errors.CategoryConfiguration).
			Build()
	}
}

func newStore(db *gorm.DB, backend, location string) (*Store, error) {
	start := time.Now()
	if err := db.AutoMigrate(&Record{}); err != nil {
		closePool(db)
		return nil, errors.New(fmt.Errorf("%w: migrate %s: %w", ErrPersistence, backend, err)).
			Component("history").
			Category(errors.CategoryDatabase).
			Context("operation", "auto_migrate").
			Context("backend", backend).
			Build()
	}
	GetLogger().Info("history store ready",
		logger.String("backend", backend),
		logger.String("location", location),
		logger.Duration("migration", time.Since(start)))
	return &Store{db: db, backend: backend}, nil
}

// closePool releases the connections of a db that never became a Store.
func closePool(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
		return
	}
	if c, ok := db.ConnPool.(io.Closer); ok {
		_ = c.Close()
	}
}

func gormConfig(slowThreshold time.Duration) *gorm.Config {
	return &gorm.Config{
		Logger: logger.NewGormLoggerAdapter(GetLogger(), slowThreshold),
	}
}

// Backend names the database in use.
func (s *Store) Backend() string {
	return s.backend
}

// Save inserts rec and sets its ID. Records without a user are not written.
func (s *Store) Save(ctx context.Context, rec *Record) error {
	if rec.UserID == "" {
		GetLogger().Debug("no user on detection, history not written", logger.String("disease", rec.Label))
		return nil
	}
	if rec.Conversation == "" {
		rec.Conversation = "[]"
	}
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return s.dbError(err, "save")
	}
	GetLogger().Debug("history record saved",
		logger.Uint64("id", uint64(rec.ID)),
		logger.String("disease", rec.Label))
	return nil
}

// AttachConversation replaces the transcript on the record with id.
func (s *Store) AttachConversation(ctx context.Context, id uint, turns []conversation.Turn) error {
	data, err := conversation.Encode(turns)
	if err != nil {
		return s.dbError(err, "encode_conversation")
	}
	res := s.db.WithContext(ctx).Model(&Record{}).Where("id = ?", id).Update("conversations", data)
	if res.Error != nil {
		return s.dbError(res.Error, "attach_conversation")
	}
	if res.RowsAffected == 0 {
		return notFound(id)
	}
	return nil
}

// AttachConversationToLatest replaces the transcript on the user's newest
// record. Two sessions of the same user can overwrite each other's
// transcript this way; prefer AttachConversation.
func (s *Store) AttachConversationToLatest(ctx context.Context, user string, turns []conversation.Turn) error {
	if user == "" {
		return nil
	}
	data, err := conversation.Encode(turns)
	if err != nil {
		return s.dbError(err, "encode_conversation")
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var latest Record
		if err := tx.Where("email = ?", user).Order("created_at DESC, id DESC").First(&latest).Error; err != nil {
			return err
		}
		return tx.Model(&Record{}).Where("id = ?", latest.ID).Update("conversations", data).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errors.New(fmt.Errorf("%w: no records for user", ErrRecordNotFound)).
			Component("history").
			Category(errors.CategoryNotFound).
			Build()
	}
	if err != nil {
		return s.dbError(err, "attach_conversation_latest")
	}
	return nil
}

// Get returns the record with id.
func (s *Store) Get(ctx context.Context, id uint) (*Record, error) {
	var rec Record
	err := s.db.WithContext(ctx).First(&rec, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, s.dbError(err, "get")
	}
	return &rec, nil
}

// Latest returns the user's newest record.
func (s *Store) Latest(ctx context.Context, user string) (*Record, error) {
	var rec Record
	err := s.db.WithContext(ctx).Where("email = ?", user).Order("created_at DESC, id DESC").First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.New(fmt.Errorf("%w: no records for user", ErrRecordNotFound)).
			Component("history").
			Category(errors.CategoryNotFound).
			Build()
	}
	if err != nil {
		return nil, s.dbError(err, "latest")
	}
	return &rec, nil
}

// List returns the user's records, newest first. A limit of zero or less
// returns everything.
func (s *Store) List(ctx context.Context, user string, limit int) ([]Record, error) {
	q := s.db.WithContext(ctx).Where("email = ?", user).Order("created_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	records := []Record{}
	if err := q.Find(&records).Error; err != nil {
		return nil, s.dbError(err, "list")
	}
	return records, nil
}

// Delete removes the record with id.
func (s *Store) Delete(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&Record{}, id)
	if res.Error != nil {
		return s.dbError(res.Error, "delete")
	}
	if res.RowsAffected == 0 {
		return notFound(id)
	}
	GetLogger().Info("history record deleted", logger.Uint64("id", uint64(id)))
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return s.dbError(err, "close")
	}
	if err := sqlDB.Close(); err != nil {
		return s.dbError(err, "close")
	}
	return nil
}

func (s *Store) dbError(err error, operation string) error {
	return errors.New(fmt.Errorf("%w: %s: %w", ErrPersistence, operation, err)).
		Component("history").
		Category(errors.CategoryDatabase).
		Context("operation", operation).
		Context("backend", s.backend).
		Build()
}

func notFound(id uint) error {
	return errors.New(fmt.Errorf("%w: id %d", ErrRecordNotFound, id)).
		Component("history").
		Category(errors.CategoryNotFound).
		Context("id", id).
		Build()
}
