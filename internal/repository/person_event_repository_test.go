package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/popeskul/gathering-dispatch/internal/models"
	"github.com/popeskul/gathering-dispatch/internal/repository"
)

func TestPersonRepository(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	repo := repository.NewPersonRepository(db)

	ama := insertTestPerson(t, db, testPerson{first: "Ama", last: "Mensah", phone: "+233244000000", email: "ama@example.com", pref: models.PreferenceSMS})
	kofi := insertTestPerson(t, db, testPerson{first: "Kofi", last: "Owusu", phone: "+233244000001"})
	insertTestPerson(t, db, testPerson{first: "Old", last: "Member", phone: "+233244000002", inactive: true})

	t.Run("get by id", func(t *testing.T) {
		p, err := repo.GetByID(ctx, ama)
		require.NoError(t, err)
		assert.Equal(t, "Ama Mensah", p.FullName())
		assert.Equal(t, "ama@example.com", p.Email.String)
		assert.Equal(t, models.PreferenceSMS, p.NotificationPreference)

		_, err = repo.GetByID(ctx, uuid.New())
		assert.True(t, errors.Is(err, repository.ErrNotFound))
	})

	t.Run("get by ids ignores unknown ids", func(t *testing.T) {
		people, err := repo.GetByIDs(ctx, []uuid.UUID{kofi, ama, uuid.New()})
		require.NoError(t, err)
		require.Len(t, people, 2)
		assert.Equal(t, ama, people[0].ID)
		assert.Equal(t, kofi, people[1].ID)

		people, err = repo.GetByIDs(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, people)
	})

	t.Run("list active", func(t *testing.T) {
		people, err := repo.ListActive(ctx)
		require.NoError(t, err)
		assert.Len(t, people, 2)
		for _, p := range people {
			assert.True(t, p.IsActive)
			assert.False(t, p.Email.Valid && p.ID == kofi)
		}
	})
}

func TestEventRepository(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	repo := repository.NewEventRepository(db)

	tomorrow := time.Now().AddDate(0, 0, 1)
	evening := insertTestEvent(t, db, "Evening Prayer", tomorrow, "19:30", "Kumasi", true)
	morning := insertTestEvent(t, db, "Morning Gathering", tomorrow, "09:00", "Accra", true)
	insertTestEvent(t, db, "Cancelled", tomorrow, "12:00", "Tema", false)
	insertTestEvent(t, db, "Next Week", tomorrow.AddDate(0, 0, 7), "09:00", "Accra", true)

	t.Run("get by id", func(t *testing.T) {
		e, err := repo.GetByID(ctx, morning)
		require.NoError(t, err)
		assert.Equal(t, "Morning Gathering", e.Name)
		assert.Equal(t, "09:00:00", e.Time)
		assert.Equal(t, "Accra", e.Location.String)
		assert.Equal(t, tomorrow.Format("2006-01-02"), e.Date.Format("2006-01-02"))

		_, err = repo.GetByID(ctx, 9999)
		assert.True(t, errors.Is(err, repository.ErrNotFound))
	})

	t.Run("list active on date", func(t *testing.T) {
		events, err := repo.ListActiveOn(ctx, tomorrow)
		require.NoError(t, err)
		require.Len(t, events, 2)
		assert.Equal(t, morning, events[0].ID)
		assert.Equal(t, evening, events[1].ID)
	})
}
