package domain

import "time"

// MinAdmissionPrice is the floor a listing price must exceed to be stored.
const MinAdmissionPrice = 10000

const (
	FallbackAddress      = "Da verificare"
	FallbackAuctionDate  = "Da definire"
	FallbackPropertyType = "Immobile"
)

type Listing struct {
	ID           string       `json:"id"`
	Locality     string       `json:"locality"`
	Address      string       `json:"address"`
	AuctionDate  string       `json:"auctionDate"`
	Price        int64        `json:"price"`
	PropertyType string       `json:"propertyType"`
	Description  string       `json:"description"`
	Link         string       `json:"link"`
	Source       string       `json:"source"`
	Coordinates  *Coordinates `json:"coordinates"`
	LastUpdated  time.Time    `json:"lastUpdated"`
}

// Coordinates are carried through from sources that expose them; they are never computed.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type PriceHistoryEntry struct {
	ListingID  string    `json:"listingId" db:"listing_id"`
	Price      int64     `json:"price" db:"price"`
	ObservedAt time.Time `json:"observedAt" db:"observed_at"`
}
