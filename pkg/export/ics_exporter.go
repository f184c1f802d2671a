package export

import (
	"fmt"
	"time"

	ics "github.com/arran4/golang-ical"
)

// Event is one calendar entry.
type Event struct {
	UID         string
	Summary     string
	Description string
	Location    string
	Start       time.Time
	End         time.Time
	Tentative   bool
	Cancelled   bool
}

// ICSExporter renders events as an iCalendar feed.
type ICSExporter struct {
	productID string
}

// NewICSExporter constructs an ICS exporter.
func NewICSExporter(productID string) *ICSExporter {
	if productID == "" {
		productID = "-//room-reservation-api//EN"
	}
	return &ICSExporter{productID: productID}
}

// Render serialises the events under the given calendar name.
func (e *ICSExporter) Render(events []Event, name string) ([]byte, error) {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(e.productID)
	if name != "" {
		cal.SetXWRCalName(name)
	}

	stamp := time.Now().UTC()
	for _, ev := range events {
		if ev.UID == "" {
			return nil, fmt.Errorf("ics event requires a uid")
		}
		if !ev.Start.Before(ev.End) {
			return nil, fmt.Errorf("ics event %s ends before it starts", ev.UID)
		}
		vevent := cal.AddEvent(ev.UID)
		vevent.SetDtStampTime(stamp)
		vevent.SetStartAt(ev.Start)
		vevent.SetEndAt(ev.End)
		vevent.SetSummary(ev.Summary)
		if ev.Description != "" {
			vevent.SetDescription(ev.Description)
		}
		if ev.Location != "" {
			vevent.SetLocation(ev.Location)
		}
		switch {
		case ev.Cancelled:
			vevent.SetStatus(ics.ObjectStatusCancelled)
		case ev.Tentative:
			vevent.SetStatus(ics.ObjectStatusTentative)
		default:
			vevent.SetStatus(ics.ObjectStatusConfirmed)
		}
	}
	return []byte(cal.Serialize()), nil
}
