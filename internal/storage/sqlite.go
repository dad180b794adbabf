package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"media-resolver/pkg/models"
)

// SQLite implements the Storage interface using SQLite
type SQLite struct {
	db *gorm.DB
}

// NewSQLite creates a new SQLite storage
func NewSQLite(path string) (*SQLite, error) {
	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("error creating database directory: %w", err)
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}

	if err := db.AutoMigrate(
		&models.ResolutionRecord{},
		&models.User{},
	); err != nil {
		return nil, fmt.Errorf("error migrating database: %w", err)
	}

	return &SQLite{db: db}, nil
}

// SaveRecord saves a resolution record
func (s *SQLite) SaveRecord(rec *models.ResolutionRecord) error {
	return s.db.Save(rec).Error
}

// GetRecord retrieves a resolution record by ID
func (s *SQLite) GetRecord(id string) (*models.ResolutionRecord, error) {
	var rec models.ResolutionRecord
	if err := s.db.Where("id = ?", id).First(&rec).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

// ListRecords lists resolution records with filters
func (s *SQLite) ListRecords(filter models.HistoryFilter) ([]*models.ResolutionRecord, error) {
	var records []*models.ResolutionRecord
	query := s.db.Model(&models.ResolutionRecord{})

	if filter.Platform != nil {
		query = query.Where("platform = ?", *filter.Platform)
	}

	if filter.Format != nil {
		query = query.Where("format = ?", *filter.Format)
	}

	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}

	if filter.ClientID != nil {
		query = query.Where("client_id = ?", *filter.ClientID)
	}

	if filter.StartDate != nil {
		query = query.Where("created_at >= ?", *filter.StartDate)
	}

	if filter.EndDate != nil {
		query = query.Where("created_at <= ?", *filter.EndDate)
	}

	query = query.Order("created_at DESC")

	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	if err := query.Find(&records).Error; err != nil {
		return nil, err
	}

	return records, nil
}

// DeleteRecord deletes a resolution record by ID
func (s *SQLite) DeleteRecord(id string) error {
	return s.db.Delete(&models.ResolutionRecord{}, "id = ?", id).Error
}

// GetStats returns aggregate resolution statistics
func (s *SQLite) GetStats() (*models.Stats, error) {
	stats := &models.Stats{ByPlatform: make(map[string]int64)}

	if err := s.db.Model(&models.ResolutionRecord{}).Count(&stats.TotalResolutions).Error; err != nil {
		return nil, err
	}

	if err := s.db.Model(&models.ResolutionRecord{}).
		Where("status = ?", models.StatusSuccess).
		Count(&stats.SuccessCount).Error; err != nil {
		return nil, err
	}
	stats.FailedCount = stats.TotalResolutions - stats.SuccessCount

	if stats.TotalResolutions > 0 {
		stats.SuccessRate = float64(stats.SuccessCount) / float64(stats.TotalResolutions) * 100
	}

	today := time.Now().Truncate(24 * time.Hour)
	if err := s.db.Model(&models.ResolutionRecord{}).
		Where("created_at >= ?", today).
		Count(&stats.ResolutionsToday).Error; err != nil {
		return nil, err
	}

	var perPlatform []struct {
		Platform string
		Count    int64
	}
	if err := s.db.Model(&models.ResolutionRecord{}).
		Select("platform, count(*) as count").
		Group("platform").
		Scan(&perPlatform).Error; err != nil {
		return nil, err
	}
	for _, row := range perPlatform {
		stats.ByPlatform[row.Platform] = row.Count
	}

	var avg struct {
		Avg float64
	}
	if err := s.db.Model(&models.ResolutionRecord{}).
		Select("avg(duration) as avg").
		Scan(&avg).Error; err != nil {
		return nil, err
	}
	stats.AvgDurationMillis = avg.Avg

	return stats, nil
}

// SaveUser saves a user account
func (s *SQLite) SaveUser(user *models.User) error {
	return s.db.Save(user).Error
}

// GetUserByUsername retrieves a user by username
func (s *SQLite) GetUserByUsername(username string) (*models.User, error) {
	var user models.User
	if err := s.db.Where("username = ?", username).First(&user).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("user not found: %s", username)
		}
		return nil, err
	}
	return &user, nil
}

// GetUserByID retrieves a user by ID
func (s *SQLite) GetUserByID(id string) (*models.User, error) {
	var user models.User
	if err := s.db.Where("id = ?", id).First(&user).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// UpdateUser updates a user account
func (s *SQLite) UpdateUser(user *models.User) error {
	return s.db.Save(user).Error
}

// Close closes the storage connection
func (s *SQLite) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
