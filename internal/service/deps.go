package service

import (
	"context"
	"time"
)

// MessageIndex maps provider message ids to log ids.
type MessageIndex interface {
	PutMessage(ctx context.Context, externalID string, logID int64) error
	LookupMessage(ctx context.Context, externalID string) (logID int64, ok bool, err error)
}

// Locker hands out named locks shared by every process of the service.
type Locker interface {
	TryLock(ctx context.Context, name string, ttl time.Duration) (release func(context.Context) error, ok bool, err error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// BreakerStatus is implemented by senders guarded by a circuit breaker.
type BreakerStatus interface {
	State() string
	Counts() (requests, failures uint32)
}
