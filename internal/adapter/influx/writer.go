// Package influx publishes the long table to InfluxDB, one point per
// location and day.
package influx

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/vaccination-data-etl/internal/config"
	"github.com/couchcryptid/vaccination-data-etl/internal/domain"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement is the InfluxDB measurement written by the sink.
const Measurement = "vaccinations"

// batchSize bounds the number of points per blocking write.
const batchSize = 5000

// pointWriter is the subset of api.WriteAPIBlocking the sink uses.
type pointWriter interface {
	WritePoint(ctx context.Context, point ...*write.Point) error
}

// Writer implements pipeline.Loader on an InfluxDB bucket.
type Writer struct {
	client   influxdb2.Client
	writeAPI pointWriter
	logger   *slog.Logger
}

// NewWriter connects to the configured InfluxDB bucket.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	client := influxdb2.NewClient(cfg.InfluxURL, cfg.InfluxToken)
	return &Writer{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.InfluxOrg, cfg.InfluxBucket),
		logger:   logger,
	}
}

// Name implements pipeline.Loader.
func (w *Writer) Name() string { return "influx" }

// Load writes every record of the dataset as a point tagged by location.
func (w *Writer) Load(ctx context.Context, ds domain.Dataset) error {
	records := ds.Records()
	points := make([]*write.Point, 0, min(len(records), batchSize))
	written := 0
	for _, r := range records {
		p := NewPoint(r, ds.IsAggregate(r.Location))
		if p == nil {
			continue
		}
		points = append(points, p)
		if len(points) == batchSize {
			if err := w.writeAPI.WritePoint(ctx, points...); err != nil {
				return fmt.Errorf("write points: %w", err)
			}
			written += len(points)
			points = points[:0]
		}
	}
	if len(points) > 0 {
		if err := w.writeAPI.WritePoint(ctx, points...); err != nil {
			return fmt.Errorf("write points: %w", err)
		}
		written += len(points)
	}
	w.logger.Info("points written to influxdb", "points", written)
	return nil
}

// Close releases the client's connections.
func (w *Writer) Close() error {
	if w.client != nil {
		w.client.Close()
	}
	return nil
}

// NewPoint converts a record into a point. Only known metrics become fields;
// a record with no known metric yields nil.
func NewPoint(r domain.Record, aggregate bool) *write.Point {
	fields := make(map[string]interface{}, 9)
	addInt(fields, "total_vaccinations", r.TotalVaccinations)
	addInt(fields, "people_vaccinated", r.PeopleVaccinated)
	addInt(fields, "people_fully_vaccinated", r.PeopleFullyVaccinated)
	addInt(fields, "daily_vaccinations_raw", r.DailyVaccinationsRaw)
	addInt(fields, "daily_vaccinations", r.DailyVaccinations)
	addInt(fields, "daily_vaccinations_per_million", r.DailyVaccinationsPerMillion)
	addFloat(fields, "total_vaccinations_per_hundred", r.TotalVaccinationsPerHundred)
	addFloat(fields, "people_vaccinated_per_hundred", r.PeopleVaccinatedPerHundred)
	addFloat(fields, "people_fully_vaccinated_per_hundred", r.PeopleFullyVaccinatedPerHundred)
	if len(fields) == 0 {
		return nil
	}

	tags := map[string]string{
		"location":  r.Location,
		"aggregate": fmt.Sprintf("%t", aggregate),
	}
	if r.ISOCode != "" {
		tags["iso_code"] = r.ISOCode
	}
	return influxdb2.NewPoint(Measurement, tags, fields, r.Date)
}

func addInt(fields map[string]interface{}, key string, v *int64) {
	if v != nil {
		fields[key] = *v
	}
}

func addFloat(fields map[string]interface{}, key string, v *float64) {
	if v != nil {
		fields[key] = *v
	}
}
