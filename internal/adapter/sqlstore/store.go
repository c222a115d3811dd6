// Package sqlstore keeps the published long table in a SQL database through gorm.
package sqlstore

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/couchcryptid/vaccination-data-etl/internal/domain"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormLogger "gorm.io/gorm/logger"
)

const batchSize = 500

// Vaccination is one location-day of the long table.
type Vaccination struct {
	Location                        string    `gorm:"primaryKey;size:128"`
	Date                            time.Time `gorm:"primaryKey;type:date"`
	ISOCode                         string    `gorm:"size:16;index"`
	Vaccine                         string
	SourceURL                       string
	TotalVaccinations               *int64
	PeopleVaccinated                *int64
	PeopleFullyVaccinated           *int64
	DailyVaccinationsRaw            *int64
	DailyVaccinations               *int64
	DailyVaccinationsPerMillion     *int64
	TotalVaccinationsPerHundred     *float64
	PeopleVaccinatedPerHundred      *float64
	PeopleFullyVaccinatedPerHundred *float64
	Aggregate                       bool
	RunID                           string `gorm:"size:36;index"`
}

// Run records one successful load.
type Run struct {
	ID                   string `gorm:"primaryKey;size:36"`
	GeneratedAt          time.Time
	Rows                 int
	Locations            int
	WorldPopulationShare float64
}

// Store implements pipeline.Loader on a gorm database.
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
}

// Open connects to dsn and migrates the schema. DSNs starting with
// postgres:// or postgresql:// use the Postgres driver; anything else is a
// SQLite database path.
func Open(dsn string, logger *slog.Logger) (*Store, error) {
	gormLog := gormLogger.New(
		slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
		gormLogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(dialector(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := db.AutoMigrate(&Vaccination{}, &Run{}); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

func dialector(dsn string) gorm.Dialector {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return postgres.Open(dsn)
	}
	return sqlite.Open(dsn)
}

// Name implements pipeline.Loader.
func (s *Store) Name() string { return "sql" }

// Load upserts every record of the dataset, removes rows the run no longer
// publishes and records the run, all in one transaction.
func (s *Store) Load(ctx context.Context, ds domain.Dataset) error {
	records := ds.Records()
	rows := make([]Vaccination, len(records))
	for i, r := range records {
		rows[i] = newVaccination(r, ds.IsAggregate(r.Location), ds.RunID)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(rows) > 0 {
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "location"}, {Name: "date"}},
				UpdateAll: true,
			}).CreateInBatches(&rows, batchSize).Error; err != nil {
				return fmt.Errorf("upsert vaccinations: %w", err)
			}
		}
		stale := tx.Where("run_id <> ?", ds.RunID).Delete(&Vaccination{})
		if stale.Error != nil {
			return fmt.Errorf("delete stale vaccinations: %w", stale.Error)
		}
		if stale.RowsAffected > 0 {
			s.logger.Info("removed stale rows", "rows", stale.RowsAffected)
		}
		return tx.Create(&Run{
			ID:                   ds.RunID,
			GeneratedAt:          ds.GeneratedAt,
			Rows:                 len(rows),
			Locations:            ds.Coverage.Locations,
			WorldPopulationShare: ds.Coverage.WorldPopulationShare,
		}).Error
	})
	if err != nil {
		return err
	}
	s.logger.Info("long table stored", "rows", len(rows))
	return nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func newVaccination(r domain.Record, aggregate bool, runID string) Vaccination {
	return Vaccination{
		Location:                        r.Location,
		Date:                            r.Date,
		ISOCode:                         r.ISOCode,
		Vaccine:                         r.Vaccine,
		SourceURL:                       r.SourceURL,
		TotalVaccinations:               r.TotalVaccinations,
		PeopleVaccinated:                r.PeopleVaccinated,
		PeopleFullyVaccinated:           r.PeopleFullyVaccinated,
		DailyVaccinationsRaw:            r.DailyVaccinationsRaw,
		DailyVaccinations:               r.DailyVaccinations,
		DailyVaccinationsPerMillion:     r.DailyVaccinationsPerMillion,
		TotalVaccinationsPerHundred:     r.TotalVaccinationsPerHundred,
		PeopleVaccinatedPerHundred:      r.PeopleVaccinatedPerHundred,
		PeopleFullyVaccinatedPerHundred: r.PeopleFullyVaccinatedPerHundred,
		Aggregate:                       aggregate,
		RunID:                           runID,
	}
}
