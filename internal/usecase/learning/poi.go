package learning

import "strings"

// poiRow maps a venue-name fragment to the objects a camera is likely
// to see around that venue.
type poiRow struct {
	fragment string
	names    []string
}

// poiTable is matched by case-insensitive substring. One POI name may
// hit several rows; every hit contributes all its names.
var poiTable = []poiRow{
	{"starbucks", []string{"coffee shop sign", "menu board", "coffee cup"}},
	{"coffee", []string{"coffee shop sign", "menu board"}},
	{"cafe", []string{"coffee shop sign", "menu board"}},
	{"bank", []string{"atm", "bank sign"}},
	{"atm", []string{"atm"}},
	{"hospital", []string{"hospital sign", "wheelchair"}},
	{"clinic", []string{"hospital sign", "wheelchair"}},
	{"pharmacy", []string{"pharmacy sign", "medicine bottle"}},
	{"drugstore", []string{"pharmacy sign", "medicine bottle"}},
	{"school", []string{"school sign", "backpack"}},
	{"university", []string{"school sign", "backpack"}},
	{"restaurant", []string{"restaurant sign", "menu board"}},
	{"grill", []string{"restaurant sign", "menu board"}},
	{"diner", []string{"restaurant sign", "menu board"}},
	{"grocery", []string{"shopping cart", "store sign"}},
	{"market", []string{"shopping cart", "store sign"}},
	{"supermarket", []string{"shopping cart", "store sign"}},
	{"hotel", []string{"hotel sign", "luggage"}},
	{"inn", []string{"hotel sign", "luggage"}},
	{"library", []string{"book shelf", "library sign"}},
	{"gym", []string{"gym sign", "exercise equipment"}},
	{"fitness", []string{"gym sign", "exercise equipment"}},
	{"gas", []string{"gas pump"}},
	{"fuel", []string{"gas pump"}},
	{"petrol", []string{"gas pump"}},
	{"station", []string{"platform sign", "ticket machine"}},
	{"church", []string{"worship sign"}},
	{"temple", []string{"worship sign"}},
	{"mosque", []string{"worship sign"}},
}

// candidatesForPOI returns every table match for a lowercased POI name.
// No match falls back to a generic "<poi> sign" candidate.
func candidatesForPOI(lower string) []string {
	var out []string
	for _, row := range poiTable {
		if strings.Contains(lower, row.fragment) {
			out = append(out, row.names...)
		}
	}
	if len(out) == 0 {
		return []string{lower + " sign"}
	}
	return out
}
