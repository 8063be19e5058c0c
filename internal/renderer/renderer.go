// Package renderer substitutes recipient and event attributes into message
// templates. It is a flat literal replacement pass over a fixed set of
// placeholders; there is no expression language.
package renderer

import (
	"strings"

	"github.com/popeskul/gathering-dispatch/internal/models"
)

const (
	PlaceholderName          = "{name}"
	PlaceholderEventName     = "{event_name}"
	PlaceholderEventDate     = "{event_date}"
	PlaceholderEventTime     = "{event_time}"
	PlaceholderEventLocation = "{event_location}"
	PlaceholderEventTopic    = "{event_topic}"
)

const eventDateLayout = "2006-01-02"

var placeholders = []string{
	PlaceholderName,
	PlaceholderEventName,
	PlaceholderEventDate,
	PlaceholderEventTime,
	PlaceholderEventLocation,
	PlaceholderEventTopic,
}

// Placeholders returns the supported placeholder tokens.
func Placeholders() []string {
	out := make([]string, len(placeholders))
	copy(out, placeholders)
	return out
}

// Render replaces every supported placeholder in text. Values missing from
// the context, including all event values when event is nil, become "".
func Render(text string, person *models.Person, event *models.Event) string {
	if text == "" {
		return ""
	}
	return newReplacer(person, event).Replace(text)
}

func newReplacer(person *models.Person, event *models.Event) *strings.Replacer {
	var name string
	if person != nil {
		name = person.FullName()
	}

	var eventName, eventDate, eventTime, eventLocation, eventTopic string
	if event != nil {
		eventName = event.Name
		if !event.Date.IsZero() {
			eventDate = event.Date.Format(eventDateLayout)
		}
		eventTime = event.Time
		eventLocation = event.Location.String
		eventTopic = event.Topic.String
	}

	return strings.NewReplacer(
		PlaceholderName, name,
		PlaceholderEventName, eventName,
		PlaceholderEventDate, eventDate,
		PlaceholderEventTime, eventTime,
		PlaceholderEventLocation, eventLocation,
		PlaceholderEventTopic, eventTopic,
	)
}
