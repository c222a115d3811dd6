package domain

import "time"

// Record is one row of the published long table: a location-day with every
// derived metric. Nil fields are published as empty values.
type Record struct {
	Location                        string    `json:"location"`
	ISOCode                         string    `json:"iso_code"`
	Date                            time.Time `json:"date"`
	Vaccine                         string    `json:"vaccine"`
	SourceURL                       string    `json:"source_url"`
	TotalVaccinations               *int64    `json:"total_vaccinations"`
	PeopleVaccinated                *int64    `json:"people_vaccinated"`
	PeopleFullyVaccinated           *int64    `json:"people_fully_vaccinated"`
	DailyVaccinationsRaw            *int64    `json:"daily_vaccinations_raw"`
	DailyVaccinations               *int64    `json:"daily_vaccinations"`
	DailyVaccinationsPerMillion     *int64    `json:"daily_vaccinations_per_million"`
	TotalVaccinationsPerHundred     *float64  `json:"total_vaccinations_per_hundred"`
	PeopleVaccinatedPerHundred      *float64  `json:"people_vaccinated_per_hundred"`
	PeopleFullyVaccinatedPerHundred *float64  `json:"people_fully_vaccinated_per_hundred"`
}

// NewRecord flattens one row of a series.
func NewRecord(location, isoCode string, r Row) Record {
	return Record{
		Location:                        location,
		ISOCode:                         isoCode,
		Date:                            r.Date,
		Vaccine:                         r.Vaccine,
		SourceURL:                       r.SourceURL,
		TotalVaccinations:               r.TotalVaccinations,
		PeopleVaccinated:                r.PeopleVaccinated,
		PeopleFullyVaccinated:           r.PeopleFullyVaccinated,
		DailyVaccinationsRaw:            r.NewVaccinations,
		DailyVaccinations:               r.NewVaccinationsSmoothed,
		DailyVaccinationsPerMillion:     r.DailyVaccinationsPerMillion,
		TotalVaccinationsPerHundred:     r.TotalVaccinationsPerHundred,
		PeopleVaccinatedPerHundred:      r.PeopleVaccinatedPerHundred,
		PeopleFullyVaccinatedPerHundred: r.PeopleFullyVaccinatedPerHundred,
	}
}

// Records flattens every series of the dataset in series order, one record
// per location and date.
func (d Dataset) Records() []Record {
	n := 0
	for _, s := range d.Series {
		n += len(s.Rows)
	}
	out := make([]Record, 0, n)
	for _, s := range d.Series {
		iso := d.ISOCodes[s.Location]
		for _, r := range s.Rows {
			out = append(out, NewRecord(s.Location, iso, r))
		}
	}
	return out
}

// MetadataFor returns the metadata of a real location.
func (d Dataset) MetadataFor(location string) (Metadata, bool) {
	for _, m := range d.Metadata {
		if m.Location == location {
			return m, true
		}
	}
	return Metadata{}, false
}
