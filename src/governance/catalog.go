package governance

import "strings"

// Catalog lists the regions and categories proposals may use. An empty list
// accepts any value.
type Catalog struct {
	Regions    []string `json:"regions"`
	Categories []string `json:"categories"`
}

// DefaultCatalog returns the launch regions and categories.
func DefaultCatalog() Catalog {
	return Catalog{
		Regions: []string{
			"Downtown District",
			"Riverfront Area",
			"Northern Sector",
			"Southern Hills",
			"East Industrial Zone",
			"West Residential",
		},
		Categories: []string{
			"Zoning Amendment",
			"Infrastructure Development",
			"Environmental Protection",
			"Public Transportation",
			"Housing Policy",
			"Commercial Development",
			"Green Spaces",
			"Public Safety",
		},
	}
}

// HasRegion reports whether region is accepted.
func (c Catalog) HasRegion(region string) bool { return contains(c.Regions, region) }

// HasCategory reports whether category is accepted.
func (c Catalog) HasCategory(category string) bool { return contains(c.Categories, category) }

func contains(list []string, v string) bool {
	if len(list) == 0 {
		return true
	}
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

// SplitList parses a comma separated configuration value.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
