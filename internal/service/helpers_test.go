package service_test

import (
	"database/sql"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/mock/gomock"

	"github.com/popeskul/gathering-dispatch/internal/cache"
	"github.com/popeskul/gathering-dispatch/internal/config"
	emailmocks "github.com/popeskul/gathering-dispatch/internal/email/mocks"
	"github.com/popeskul/gathering-dispatch/internal/models"
	providermocks "github.com/popeskul/gathering-dispatch/internal/provider/mocks"
	"github.com/popeskul/gathering-dispatch/internal/repository/mocks"
)

type testDeps struct {
	repo      *mocks.MockRepository
	logs      *mocks.MockMessageLogRepository
	templates *mocks.MockTemplateRepository
	people    *mocks.MockPersonRepository
	events    *mocks.MockEventRepository
	sms       *providermocks.MockSender
	mail      *emailmocks.MockSender
	store     *cache.Store
	redis     *miniredis.Miniredis
}

func newTestDeps(t *testing.T) *testDeps {
	t.Helper()
	ctrl := gomock.NewController(t)

	d := &testDeps{
		repo:      mocks.NewMockRepository(ctrl),
		logs:      mocks.NewMockMessageLogRepository(ctrl),
		templates: mocks.NewMockTemplateRepository(ctrl),
		people:    mocks.NewMockPersonRepository(ctrl),
		events:    mocks.NewMockEventRepository(ctrl),
		sms:       providermocks.NewMockSender(ctrl),
		mail:      emailmocks.NewMockSender(ctrl),
	}
	d.repo.EXPECT().MessageLog().Return(d.logs).AnyTimes()
	d.repo.EXPECT().Template().Return(d.templates).AnyTimes()
	d.repo.EXPECT().Person().Return(d.people).AnyTimes()
	d.repo.EXPECT().Event().Return(d.events).AnyTimes()
	d.sms.EXPECT().Name().Return("mock").AnyTimes()

	d.redis = miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: d.redis.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	d.store = cache.NewStore(client)

	return d
}

func testConfig() *config.Config {
	return &config.Config{
		Provider: config.ProviderConfig{
			SenderID:      "TheGathering",
			SendTimeout:   5,
			StatusTimeout: 1,
		},
		Dispatch: config.DispatchConfig{
			Workers:        2,
			PersistTimeout: 2,
		},
		Reconciler: config.ReconcilerConfig{
			IntervalMinutes: 10,
			Limit:           50,
			WindowHours:     24,
			Workers:         2,
			LockTTL:         60,
		},
		Reminders: config.RemindersConfig{
			TemplateName:  "Event Reminder",
			IntervalHours: 24,
		},
	}
}

func testPerson(first, phone, email string) *models.Person {
	p := &models.Person{
		ID:                     uuid.New(),
		FirstName:              first,
		PhoneNumber:            phone,
		NotificationPreference: models.PreferenceSMS,
		IsActive:               true,
	}
	if email != "" {
		p.Email = sql.NullString{String: email, Valid: true}
	}
	return p
}

func smsTemplate() *models.MessageTemplate {
	return &models.MessageTemplate{
		ID:       3,
		Name:     "Invite",
		Channel:  models.ChannelSMS,
		Body:     "Hi {name}, join us at {event_location} on {event_date}",
		IsActive: true,
	}
}

func emailTemplate() *models.MessageTemplate {
	return &models.MessageTemplate{
		ID:       4,
		Name:     "Reminder",
		Channel:  models.ChannelEmail,
		Subject:  sql.NullString{String: "Reminder for {event_name}", Valid: true},
		Body:     "Dear {name}, {event_name} starts at {event_time}.",
		IsActive: true,
	}
}

func testEvent() *models.Event {
	return &models.Event{
		ID:       9,
		Name:     "Dawn Prayer",
		Date:     time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		Time:     "06:00:00",
		Location: sql.NullString{String: "Accra", Valid: true},
		IsActive: true,
	}
}
