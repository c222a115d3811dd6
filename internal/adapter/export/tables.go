package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"
	"time"

	"github.com/couchcryptid/vaccination-data-etl/internal/domain"
)

const dateLayout = "2006-01-02"

// GrapherEpoch is day zero of the grapher table's Year column.
var GrapherEpoch = time.Date(2021, time.January, 1, 0, 0, 0, 0, time.UTC)

// RawColumns is the header of a per-location raw table.
var RawColumns = []string{
	"location", "date", "vaccine", "source_url",
	"total_vaccinations", "people_vaccinated", "people_fully_vaccinated",
}

// LongColumns is the header of the long table.
var LongColumns = []string{
	"location", "iso_code", "date", "vaccine", "source_url",
	"total_vaccinations", "people_vaccinated", "people_fully_vaccinated",
	"daily_vaccinations_raw", "daily_vaccinations", "daily_vaccinations_per_million",
	"total_vaccinations_per_hundred", "people_vaccinated_per_hundred", "people_fully_vaccinated_per_hundred",
}

// metricColumns are the long-table columns carried by the grapher table and
// the JSON document.
var metricColumns = LongColumns[5:]

// LocationsColumns is the header of the locations summary.
var LocationsColumns = []string{
	"location", "iso_code", "vaccines", "last_observation_date", "source_name", "source_website",
}

func formatInt(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}

func formatFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

// metricFields returns the metrics of r in metricColumns order.
func metricFields(r domain.Record) []string {
	return []string{
		formatInt(r.TotalVaccinations),
		formatInt(r.PeopleVaccinated),
		formatInt(r.PeopleFullyVaccinated),
		formatInt(r.DailyVaccinationsRaw),
		formatInt(r.DailyVaccinations),
		formatInt(r.DailyVaccinationsPerMillion),
		formatFloat(r.TotalVaccinationsPerHundred),
		formatFloat(r.PeopleVaccinatedPerHundred),
		formatFloat(r.PeopleFullyVaccinatedPerHundred),
	}
}

func writeCSV(w io.Writer, header []string, rows func(emit func([]string) error) error) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	if err := rows(cw.Write); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

func writeRaw(w io.Writer, obs []domain.Observation) error {
	return writeCSV(w, RawColumns, func(emit func([]string) error) error {
		for _, o := range obs {
			err := emit([]string{
				o.Location, o.Date.Format(dateLayout), o.Vaccine, o.SourceURL,
				formatInt(o.TotalVaccinations), formatInt(o.PeopleVaccinated), formatInt(o.PeopleFullyVaccinated),
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func writeLongTable(w io.Writer, records []domain.Record) error {
	return writeCSV(w, LongColumns, func(emit func([]string) error) error {
		for _, r := range records {
			row := append([]string{r.Location, r.ISOCode, r.Date.Format(dateLayout), r.Vaccine, r.SourceURL}, metricFields(r)...)
			if err := emit(row); err != nil {
				return err
			}
		}
		return nil
	})
}

// GrapherYear is the day offset of date from GrapherEpoch.
func GrapherYear(date time.Time) int {
	return int(domain.Truncate(date).Sub(GrapherEpoch).Hours() / 24)
}

func writeGrapher(w io.Writer, records []domain.Record) error {
	header := append([]string{"Country", "Year"}, metricColumns...)
	return writeCSV(w, header, func(emit func([]string) error) error {
		for _, r := range records {
			row := append([]string{r.Location, strconv.Itoa(GrapherYear(r.Date))}, metricFields(r)...)
			if err := emit(row); err != nil {
				return err
			}
		}
		return nil
	})
}

// CountryDocument is one element of the JSON output.
type CountryDocument struct {
	Country string     `json:"country"`
	ISOCode string     `json:"iso_code"`
	Data    []DayEntry `json:"data"`
}

// DayEntry is one dated entry of a CountryDocument. Unknown metrics are omitted.
type DayEntry struct {
	Date                            string   `json:"date"`
	TotalVaccinations               *int64   `json:"total_vaccinations,omitempty"`
	PeopleVaccinated                *int64   `json:"people_vaccinated,omitempty"`
	PeopleFullyVaccinated           *int64   `json:"people_fully_vaccinated,omitempty"`
	DailyVaccinationsRaw            *int64   `json:"daily_vaccinations_raw,omitempty"`
	DailyVaccinations               *int64   `json:"daily_vaccinations,omitempty"`
	DailyVaccinationsPerMillion     *int64   `json:"daily_vaccinations_per_million,omitempty"`
	TotalVaccinationsPerHundred     *float64 `json:"total_vaccinations_per_hundred,omitempty"`
	PeopleVaccinatedPerHundred      *float64 `json:"people_vaccinated_per_hundred,omitempty"`
	PeopleFullyVaccinatedPerHundred *float64 `json:"people_fully_vaccinated_per_hundred,omitempty"`
}

// CountryDocuments groups records by location, keeping only locations with
// an ISO code. Records arrive grouped and date-sorted per location, so
// document and entry order follow the long table.
func CountryDocuments(records []domain.Record) []CountryDocument {
	var docs []CountryDocument
	for _, r := range records {
		if r.ISOCode == "" {
			continue
		}
		if len(docs) == 0 || docs[len(docs)-1].Country != r.Location {
			docs = append(docs, CountryDocument{Country: r.Location, ISOCode: r.ISOCode})
		}
		doc := &docs[len(docs)-1]
		doc.Data = append(doc.Data, DayEntry{
			Date:                            r.Date.Format(dateLayout),
			TotalVaccinations:               r.TotalVaccinations,
			PeopleVaccinated:                r.PeopleVaccinated,
			PeopleFullyVaccinated:           r.PeopleFullyVaccinated,
			DailyVaccinationsRaw:            r.DailyVaccinationsRaw,
			DailyVaccinations:               r.DailyVaccinations,
			DailyVaccinationsPerMillion:     r.DailyVaccinationsPerMillion,
			TotalVaccinationsPerHundred:     r.TotalVaccinationsPerHundred,
			PeopleVaccinatedPerHundred:      r.PeopleVaccinatedPerHundred,
			PeopleFullyVaccinatedPerHundred: r.PeopleFullyVaccinatedPerHundred,
		})
	}
	return docs
}

func writeJSON(w io.Writer, records []domain.Record) error {
	docs := CountryDocuments(records)
	if docs == nil {
		docs = []CountryDocument{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(docs)
}

// LocationSummary is one row of the locations table.
type LocationSummary struct {
	Location            string
	ISOCode             string
	Vaccines            string
	LastObservationDate time.Time
	SourceName          string
	SourceWebsite       string
}

// Locations summarizes every real location with published data, in metadata order.
func Locations(ds domain.Dataset) []LocationSummary {
	var out []LocationSummary
	for _, m := range ds.Metadata {
		obs := ds.Raw[m.Location]
		if len(obs) == 0 {
			continue
		}
		var vaccines []string
		for _, o := range obs {
			vaccines = append(vaccines, domain.SplitVaccines(o.Vaccine)...)
		}
		out = append(out, LocationSummary{
			Location:            m.Location,
			ISOCode:             ds.ISOCodes[m.Location],
			Vaccines:            domain.JoinVaccines(vaccines),
			LastObservationDate: obs[len(obs)-1].Date,
			SourceName:          m.SourceName,
			SourceWebsite:       m.SourceURL,
		})
	}
	return out
}

func writeLocations(w io.Writer, ds domain.Dataset) error {
	return writeCSV(w, LocationsColumns, func(emit func([]string) error) error {
		for _, l := range Locations(ds) {
			err := emit([]string{
				l.Location, l.ISOCode, l.Vaccines, l.LastObservationDate.Format(dateLayout), l.SourceName, l.SourceWebsite,
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
}
