package model

// EventKind identifies what a feed Event carries.
type EventKind int

const (
	EventTrade EventKind = iota
	EventNews
)

// Event is one decoded inbound feed message. Trade events carry one or more
// ticks in arrival order; news events carry a single NewsEvent.
type Event struct {
	Kind  EventKind
	Ticks []PriceTick
	News  NewsEvent
}
