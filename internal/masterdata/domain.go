// Package masterdata holds the reference data shared by the production and
// inventory reports.
package masterdata

// Shop is a production shop.
type Shop struct {
	ID   int64  `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

// Category groups inventory items.
type Category struct {
	ID          int64  `db:"id" json:"id"`
	Name        string `db:"name" json:"name"`
	Description string `db:"description" json:"description"`
}

// Unit is the measurement unit of an inventory item.
type Unit string

// Supported units.
const (
	UnitPieces Unit = "pcs"
	UnitMeters Unit = "m"
	UnitKilos  Unit = "kg"
	UnitPack   Unit = "pack"
	UnitSet    Unit = "set"
)

var unitLabels = map[Unit]string{
	UnitPieces: "pcs",
	UnitMeters: "m",
	UnitKilos:  "kg",
	UnitPack:   "packs",
	UnitSet:    "sets",
}

// Label returns the display name of the unit. Unknown codes are shown as is.
func (u Unit) Label() string {
	if label, ok := unitLabels[u]; ok {
		return label
	}
	return string(u)
}
