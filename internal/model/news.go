package model

import (
	"strings"
	"time"
)

// NewsKind distinguishes economic-calendar entries from plain news items.
type NewsKind string

const (
	NewsCalendar NewsKind = "economic_calendar"
	NewsItem     NewsKind = "news"
)

// NewsEvent is a news or economic-calendar notification from the feed.
type NewsEvent struct {
	Kind     NewsKind  `json:"kind"`
	Impact   string    `json:"impact"` // low, medium, high; empty for plain news
	Headline string    `json:"headline"`
	TS       time.Time `json:"ts"`
}

// HighImpact reports whether the event is a calendar entry marked high impact.
func (n NewsEvent) HighImpact() bool {
	return n.Kind == NewsCalendar && strings.EqualFold(strings.TrimSpace(n.Impact), "high")
}
