package renderer_test

import (
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/popeskul/gathering-dispatch/internal/models"
	"github.com/popeskul/gathering-dispatch/internal/renderer"
)

func fullEvent() *models.Event {
	return &models.Event{
		Name:     "Sunday Gathering",
		Topic:    sql.NullString{String: "Hope", Valid: true},
		Date:     time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		Time:     "18:30:00",
		Location: sql.NullString{String: "Accra", Valid: true},
	}
}

func TestRender(t *testing.T) {
	ama := &models.Person{FirstName: "Ama"}
	kofi := &models.Person{FirstName: "Kofi", LastName: "Mensah"}

	tests := []struct {
		name     string
		text     string
		person   *models.Person
		event    *models.Event
		expected string
	}{
		{
			name:     "invitation",
			text:     "Hi {name}, join us at {event_location} on {event_date}",
			person:   ama,
			event:    fullEvent(),
			expected: "Hi Ama, join us at Accra on 2025-03-01",
		},
		{
			name:     "all placeholders",
			text:     "{name}|{event_name}|{event_date}|{event_time}|{event_location}|{event_topic}",
			person:   kofi,
			event:    fullEvent(),
			expected: "Kofi Mensah|Sunday Gathering|2025-03-01|18:30:00|Accra|Hope",
		},
		{
			name:     "no event",
			text:     "Hi {name}! {event_name} at {event_location} ({event_topic})",
			person:   ama,
			expected: "Hi Ama!  at  ()",
		},
		{
			name:   "event with missing optional values",
			text:   "[{event_location}][{event_topic}][{event_date}]",
			person: ama,
			event: &models.Event{
				Name: "Quiet Meeting",
			},
			expected: "[][][]",
		},
		{
			name:     "repeated placeholder",
			text:     "{name} {name}",
			person:   ama,
			expected: "Ama Ama",
		},
		{
			name:     "unknown tokens are kept",
			text:     "Hi {nickname}",
			person:   ama,
			expected: "Hi {nickname}",
		},
		{
			name:     "empty text",
			text:     "",
			person:   ama,
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, renderer.Render(tt.text, tt.person, tt.event))
		})
	}
}

func TestRender_LeavesNoPlaceholders(t *testing.T) {
	text := strings.Join(renderer.Placeholders(), " ")

	for _, event := range []*models.Event{fullEvent(), nil} {
		out := renderer.Render(text, &models.Person{FirstName: "Ama"}, event)
		for _, p := range renderer.Placeholders() {
			assert.NotContains(t, out, p)
		}
	}
}

func TestPlaceholders_ReturnsCopy(t *testing.T) {
	p := renderer.Placeholders()
	p[0] = "changed"
	assert.Equal(t, renderer.PlaceholderName, renderer.Placeholders()[0])
}
