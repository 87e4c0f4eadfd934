package models

// Plot is an agricultural plot (corresponds to the plots table). The
// monitoring core only reads plots; CRUD is owned by the management layer.
type Plot struct {
	PlotID       string   `json:"plot_id" db:"plot_id"`
	OwnerID      int64    `json:"owner_id" db:"owner_id"`
	AgronomistID *int64   `json:"agronomist_id,omitempty" db:"agronomist_id"`
	Latitude     *float64 `json:"latitude,omitempty" db:"latitude"`
	Longitude    *float64 `json:"longitude,omitempty" db:"longitude"`
}

// HasCoordinates reports whether the plot has a usable geolocation.
func (p *Plot) HasCoordinates() bool {
	return p.Latitude != nil && p.Longitude != nil
}
