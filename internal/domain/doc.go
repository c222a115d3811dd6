// Package domain reconstructs per-location vaccination time series and derives
// the cross-comparable dataset published by the ETL.
//
// # Input Conventions
//
// Each location reports cumulative counters on its own cadence:
//
//	total_vaccinations >= people_vaccinated >= people_fully_vaccinated >= 0
//
// Any counter may be missing on a given report. Dates are calendar days in
// ISO format ("2021-01-15"); the vaccine column is a comma-joined list drawn
// from a fixed brand vocabulary (see [Vaccines]). Reports dated before
// [EarliestDate] or after the run date are schema violations.
//
// # Series Reconstruction
//
// Reports are turned into a daily series in fixed order:
//
//	merge same-day rows -> drop partial day -> trim leading empty rows
//	-> grid (one row per day) -> zero-fill unreported dose counters
//	-> forward-fill -> raw deltas -> interpolated deltas -> smoothed rate
//
// A location that never reported people_vaccinated (or people_fully_vaccinated)
// carries 0 for that counter so aggregate sums stay defined. The 0 is a
// placeholder: [DerivePerCapita] nulls a fully-vaccinated 0 again before output.
//
// The smoothed rate is a trailing mean over linearly interpolated deltas. Its
// window widens from 1 to 7 days over the first week of a series, so early
// values are not diluted by days that were never observed.
//
// # Aggregates
//
// World, the European Union and the continents are synthetic locations built
// by [BuildAggregate]: every member is forward-filled on the union of member
// dates and the members are summed per day. Members are picked by an include
// list or an exclude list, never both, and never another aggregate.
//
// # Failure Semantics
//
// Nothing here degrades gracefully. Schema violations ([ErrSchema]), a location
// without population ([ErrMissingPopulation]) and post-transform anomalies
// ([ErrSanity]) all abort the run.
package domain
