package factory

import (
	"cmp"
	"slices"
)

// =============================================================================
// CSI MASTERFORMAT CATALOG
// =============================================================================

// Division is one MasterFormat division.
type Division struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Catalog maps two-digit division codes to names.
type Catalog map[string]string

// MasterFormat is the 2018 CSI MasterFormat division list.
var MasterFormat = Catalog{
	"00": "Procurement and Contracting Requirements",
	"01": "General Requirements",
	"02": "Existing Conditions",
	"03": "Concrete",
	"04": "Masonry",
	"05": "Metals",
	"06": "Wood, Plastics, and Composites",
	"07": "Thermal and Moisture Protection",
	"08": "Openings",
	"09": "Finishes",
	"10": "Specialties",
	"11": "Equipment",
	"12": "Furnishings",
	"13": "Special Construction",
	"14": "Conveying Equipment",
	"21": "Fire Suppression",
	"22": "Plumbing",
	"23": "Heating, Ventilating, and Air Conditioning (HVAC)",
	"25": "Integrated Automation",
	"26": "Electrical",
	"27": "Communications",
	"28": "Electronic Safety and Security",
	"31": "Earthwork",
	"32": "Exterior Improvements",
	"33": "Utilities",
	"34": "Transportation",
	"35": "Waterway and Marine Construction",
	"40": "Process Interconnections",
	"41": "Material Processing and Handling Equipment",
	"42": "Process Heating, Cooling, and Drying Equipment",
	"43": "Process Gas and Liquid Handling, Purification, and Storage Equipment",
	"44": "Pollution and Waste Control Equipment",
	"45": "Industry-Specific Manufacturing Equipment",
	"46": "Water and Wastewater Equipment",
	"48": "Electrical Power Generation",
}

// Name returns the division name, or "" for codes the catalog reserves.
func (c Catalog) Name(code string) string {
	return c[code]
}

// Divisions returns every division in code order.
func (c Catalog) Divisions() []Division {
	divs := make([]Division, 0, len(c))
	for code, name := range c {
		divs = append(divs, Division{Code: code, Name: name})
	}
	slices.SortFunc(divs, func(a, b Division) int { return cmp.Compare(a.Code, b.Code) })
	return divs
}
