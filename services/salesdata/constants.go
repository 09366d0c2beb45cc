package salesdata

import (
	"strings"

	"sales_portal_backend/config"
)

// CentralBillingTerr is the customer territory sentinel that overrides the
// order header territory during resolution.
const CentralBillingTerr = "900"

// territoryMapUS maps US territory codes to display names.
var territoryMapUS = map[string]string{
	"000": "LA",
	"001": "LA",
	"010": "China",
	"114": "Seattle",
	"126": "Denver",
	"204": "Columbus",
	"206": "Jacksonville",
	"210": "Houston",
	"211": "Dallas",
	"218": "San Antonio",
	"221": "Kansas City",
	"302": "Nashville",
	"305": "Levittown,PA",
	"307": "Charlotte",
	"312": "Atlanta",
	"324": "Indianapolis",
	"900": "Central Billing",
}

// territoryMapCA maps Canada territory codes to display names.
var territoryMapCA = map[string]string{
	"501": "Vancouver",
	"502": "Toronto",
	"503": "Montreal",
}

// Exclusions holds the row-level exclusion sets applied during aggregation.
// The sets are configuration, not algorithm; DefaultExclusions carries the
// production values.
type Exclusions struct {
	Customers    map[string]bool
	ProductLines map[string]bool
	LineStatuses map[string]bool
	OrderTypes   map[string]bool
}

// DefaultExclusions returns the standard exclusion sets shared by bookings
// and open orders: internal/test customer accounts, tax line items, and
// voided/cancelled/blanket/return codes.
func DefaultExclusions() Exclusions {
	return Exclusions{
		Customers: map[string]bool{
			"W1VAN":     true,
			"W1TOR":     true,
			"W1MON":     true,
			"MISC":      true,
			"TWGMARKET": true,
			"EMP-US":    true,
			"TEST123":   true,
		},
		ProductLines: map[string]bool{
			"TAX": true,
		},
		LineStatuses: map[string]bool{
			"V": true,
			"X": true,
		},
		OrderTypes: map[string]bool{
			"B": true,
			"R": true,
		},
	}
}

// ExcludesCustomer reports whether a customer code is on the exclusion list.
// Codes are compared trimmed and upper-cased, the way the sources store them.
func (e Exclusions) ExcludesCustomer(custno string) bool {
	return e.Customers[strings.ToUpper(strings.TrimSpace(custno))]
}

// ExcludesProductLine reports whether a product line code is excluded.
func (e Exclusions) ExcludesProductLine(plinid string) bool {
	return e.ProductLines[strings.ToUpper(strings.TrimSpace(plinid))]
}

// ExcludesStatus reports whether a line status or order type is excluded.
func (e Exclusions) ExcludesStatus(sostat, sotype string) bool {
	return e.LineStatuses[strings.TrimSpace(sostat)] || e.OrderTypes[strings.TrimSpace(sotype)]
}

// ResolveTerritoryCode picks which territory code applies to a line.
// A customer flagged for central billing keeps its own territory; every
// other line belongs to the order header's territory.
func ResolveTerritoryCode(custTerr, headerTerr string) string {
	cu := strings.TrimSpace(custTerr)
	if cu == CentralBillingTerr {
		return cu
	}
	return strings.TrimSpace(headerTerr)
}

// MapTerritory maps a resolved territory code to its display name for a
// region. Unmapped codes land in the "Others" bucket.
func MapTerritory(code, region string) string {
	code = strings.TrimSpace(code)
	if region == config.RegionCA {
		if name, ok := territoryMapCA[code]; ok {
			return name
		}
		return "Others"
	}
	if name, ok := territoryMapUS[code]; ok {
		return name
	}
	return "Others"
}
