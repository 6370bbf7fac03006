package domain

type EventAction string

const (
	EventCreate      EventAction = "create"
	EventPriceChange EventAction = "price_change"
)

// ListingEvent announces a new listing or a new price for a known one.
// PreviousPrice is zero for EventCreate.
type ListingEvent struct {
	Action        EventAction
	Listing       Listing
	PreviousPrice int64
}
