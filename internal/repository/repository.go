package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

const pingTimeout = 2 * time.Second

// repositoryImpl is the concrete implementation of Repository interface.
type repositoryImpl struct {
	db         *sqlx.DB
	messageLog MessageLogRepository
	template   TemplateRepository
	person     PersonRepository
	event      EventRepository
}

// NewRepository creates a new repository instance.
func NewRepository(db *sqlx.DB) Repository {
	return &repositoryImpl{
		db:         db,
		messageLog: NewMessageLogRepository(db),
		template:   NewTemplateRepository(db),
		person:     NewPersonRepository(db),
		event:      NewEventRepository(db),
	}
}

func (r *repositoryImpl) MessageLog() MessageLogRepository {
	return r.messageLog
}

func (r *repositoryImpl) Template() TemplateRepository {
	return r.template
}

func (r *repositoryImpl) Person() PersonRepository {
	return r.person
}

func (r *repositoryImpl) Event() EventRepository {
	return r.event
}

// Ping checks if the database connection is healthy.
func (r *repositoryImpl) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	return r.db.PingContext(ctx)
}
