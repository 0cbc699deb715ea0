// Package mains resolves the local electrical mains frequency from the
// system timezone. Steady mains hum (50 or 60 Hz plus harmonics) sits
// inside the kick-drum analysis band and can masquerade as low-frequency
// onset energy, so the detector masks the hum bins for the local grid.
package mains

import (
	"strings"

	tz "github.com/medama-io/go-timezone-country"
	"github.com/thlib/go-timezone-local/tzlocal"
)

// Frequency returns the local mains frequency in Hz (50 or 60).
// Returns 50Hz if detection fails or the timezone is ambiguous.
func Frequency() int {
	timezone, err := tzlocal.RuntimeTZ()
	if err != nil {
		return 50 // Default fallback
	}
	return FrequencyForTimezone(timezone)
}

// FrequencyForTimezone returns the mains frequency for a given IANA timezone.
// Exported for testing with specific timezones.
func FrequencyForTimezone(timezone string) int {
	// UTC/GMT carry no country association, default to 50Hz
	if timezone == "UTC" || timezone == "GMT" || strings.HasPrefix(timezone, "Etc/") {
		return 50
	}

	tzMap, err := tz.NewTimezoneCountryMap()
	if err != nil {
		return 50
	}

	country, err := tzMap.GetCountry(timezone)
	if err != nil {
		return 50
	}

	return frequencyForCountry(country)
}

// frequencyForCountry returns the mains frequency for a country name.
// Returns 50Hz for unknown countries (more common globally).
func frequencyForCountry(country string) int {
	// Japan splits 50/60Hz by region; default to 50Hz (Tokyo grid)
	if country == "Japan" {
		return 50
	}

	if hz60Countries[country] {
		return 60
	}
	return 50
}

// hz60Countries lists countries using 60Hz mains power. All other
// countries use 50Hz.
// Source: https://en.wikipedia.org/wiki/Mains_electricity_by_country
//
// Jamaica is deliberately NOT in this set: the island runs 110V like its
// 60Hz neighbours but the grid itself is 50Hz. Material recorded in
// Kingston studios hums at 50Hz, which matters more to this tool than
// most places.
var hz60Countries = map[string]bool{
	// North America
	"United States": true,
	"Canada":        true,
	"Mexico":        true,

	// Central America
	"Belize":      true,
	"Costa Rica":  true,
	"El Salvador": true,
	"Guatemala":   true,
	"Honduras":    true,
	"Nicaragua":   true,
	"Panama":      true,

	// Caribbean (Jamaica excluded, see above)
	"Bahamas":             true,
	"Barbados":            true,
	"Cayman Islands":      true,
	"Cuba":                true,
	"Dominican Republic":  true,
	"Haiti":               true,
	"Puerto Rico":         true,
	"Trinidad and Tobago": true,
	"U.S. Virgin Islands": true,

	// South America (partial; most of the continent is 50Hz)
	"Brazil":    true, // Mixed 50/60Hz regions; 60Hz predominant
	"Colombia":  true,
	"Ecuador":   true,
	"Guyana":    true,
	"Peru":      true,
	"Suriname":  true,
	"Venezuela": true,

	// Asia (partial)
	"South Korea":  true,
	"Taiwan":       true,
	"Philippines":  true,
	"Saudi Arabia": true,

	// Pacific
	"Guam":             true,
	"American Samoa":   true,
	"Marshall Islands": true,
	"Micronesia":       true,
	"Palau":            true,
}

// HumBins returns the hum fundamental and second harmonic in Hz for a
// mains frequency, the frequencies the kick-band onset envelope masks
// out. A non-positive frequency disables the guard (empty slice).
func HumBins(mainsHz int) []float64 {
	if mainsHz <= 0 {
		return nil
	}
	f := float64(mainsHz)
	return []float64{f, 2 * f}
}
