package plans

import "errors"

// ErrUnknownPlan indicates the requested plan id is not in the catalogue.
var ErrUnknownPlan = errors.New("unknown plan")

// Plan ids. The catalogue is static and read-only at runtime.
const (
	FreeID    = "free"
	CreatorID = "creator"
	ProID     = "pro"
)

// Definition is a static catalogue entry. Prices are in millionths of the
// wallet currency unit; a zero price marks the free tier.
type Definition struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	PriceMicros int64    `json:"price_micros"`
	Interval    string   `json:"interval"`
	Features    []string `json:"features"`
}

var catalogue = []Definition{
	{
		ID:       FreeID,
		Name:     "Free",
		Interval: "year",
		Features: []string{"profile_page", "5_links"},
	},
	{
		ID:          CreatorID,
		Name:        "Creator",
		PriceMicros: 10_000_000,
		Interval:    "year",
		Features:    []string{"profile_page", "unlimited_links", "ad_unlock_wall"},
	},
	{
		ID:          ProID,
		Name:        "Pro",
		PriceMicros: 25_000_000,
		Interval:    "year",
		Features:    []string{"profile_page", "unlimited_links", "ad_unlock_wall", "custom_templates", "link_analytics"},
	},
}

// All returns the full catalogue.
func All() []Definition {
	out := make([]Definition, len(catalogue))
	copy(out, catalogue)
	return out
}

// Lookup finds a plan by id.
func Lookup(id string) (Definition, error) {
	for _, d := range catalogue {
		if d.ID == id {
			return d, nil
		}
	}
	return Definition{}, ErrUnknownPlan
}

// Free reports whether the plan carries no charge and therefore skips the
// payment handshake.
func (d Definition) Free() bool {
	return d.PriceMicros == 0
}
