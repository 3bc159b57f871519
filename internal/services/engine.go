// engine.go
//
// Permit application document review and workflow service
// Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC
//
// This file is part of permit-review.
// permit-review is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published by the Free Software
// Foundation, either version 3 of the License, or (at your option) any later version.
// permit-review is distributed in the hope that it will be useful, but WITHOUT ANY WARRANTY;
// without even the implied warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU Affero General Public License for more details.
// You should have received a copy of the GNU Affero General Public License along with permit-review.
// If not, see <https://www.gnu.org/licenses/>.
// Additional terms under GNU AGPL version 3 section 7:
// a) The reasonable legal notice of original copyright and author attribution must be preserved
//    by including the string: "Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC"
//    in this material, copies, or source code of derived works.

package services

import (
	"context"
	"sync"
	"time"

	"github.com/localnerve/permit-review/internal/blob"
	"github.com/localnerve/permit-review/internal/email"
	"github.com/localnerve/permit-review/internal/events"
	"github.com/localnerve/permit-review/internal/logger"
	"github.com/localnerve/permit-review/internal/metrics"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	defaultVersionAttempts = 5
	defaultMailTimeout     = 10 * time.Second
	publishTimeout         = 3 * time.Second
)

// Engine runs the document workflow over a relational store. Primary
// mutations are transactional; e-mail, change events and blob cleanup
// happen after commit and never fail the caller.
type Engine struct {
	db              *gorm.DB
	blobs           blob.Store
	events          events.Publisher
	mailer          email.Sender
	log             *zap.Logger
	appURL          string
	mailTimeout     time.Duration
	versionAttempts int
	now             func() time.Time
	pending         sync.WaitGroup
}

// Option configures an Engine
type Option func(*Engine)

// WithBlobStore keeps document content in s instead of the documents table
func WithBlobStore(s blob.Store) Option {
	return func(e *Engine) { e.blobs = s }
}

// WithPublisher sends change events to p
func WithPublisher(p events.Publisher) Option {
	return func(e *Engine) {
		if p != nil {
			e.events = p
		}
	}
}

// WithMailer delivers notification e-mail through s
func WithMailer(s email.Sender, timeout time.Duration) Option {
	return func(e *Engine) {
		e.mailer = s
		if timeout > 0 {
			e.mailTimeout = timeout
		}
	}
}

// WithLogger sets the structured logger
func WithLogger(log *zap.Logger) Option {
	return func(e *Engine) { e.log = logger.Service(log, "workflow") }
}

// WithAppURL sets the base URL used for links in e-mail
func WithAppURL(url string) Option {
	return func(e *Engine) { e.appURL = url }
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithVersionAttempts bounds the retries when concurrent uploads race for a version
func WithVersionAttempts(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.versionAttempts = n
		}
	}
}

// New creates an Engine over db
func New(db *gorm.DB, opts ...Option) *Engine {
	e := &Engine{
		db:              db,
		events:          events.Nop{},
		log:             zap.NewNop(),
		mailTimeout:     defaultMailTimeout,
		versionAttempts: defaultVersionAttempts,
		now:             func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// DB returns the underlying connection
func (e *Engine) DB() *gorm.DB {
	return e.db
}

// Wait blocks until background e-mail deliveries finish
func (e *Engine) Wait() {
	e.pending.Wait()
}

// quiet silences the gorm logger for lookups where not found is expected
func quiet(tx *gorm.DB) *gorm.DB {
	return tx.Session(&gorm.Session{Logger: tx.Logger.LogMode(gormlogger.Silent)})
}

func (e *Engine) publish(change events.Change) {
	if change.At.IsZero() {
		change.At = e.now()
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if err := e.events.Publish(ctx, change); err != nil {
		metrics.ChangeEventFailures.Inc()
		e.log.Warn("change event not published",
			zap.String("entity", change.Entity),
			zap.Uint64("entityId", change.EntityID),
			zap.String("op", change.Op),
			zap.Error(err))
	}
}

// sendEmail delivers msg in the background. Failures are counted and logged.
func (e *Engine) sendEmail(msg email.Message) {
	if e.mailer == nil || !e.mailer.IsConfigured() || len(msg.To) == 0 {
		return
	}

	e.pending.Add(1)
	go func() {
		defer e.pending.Done()

		ctx, cancel := context.WithTimeout(context.Background(), e.mailTimeout)
		defer cancel()

		if err := e.mailer.Send(ctx, msg); err != nil {
			metrics.NotificationEmailFailures.Inc()
			e.log.Warn("notification email failed",
				zap.Strings("to", msg.To),
				zap.String("subject", msg.Subject),
				zap.Error(err))
		}
	}()
}

func (e *Engine) removeBlobs(keys []string) {
	if e.blobs == nil {
		return
	}
	for _, key := range keys {
		if key == "" {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		if err := e.blobs.Delete(ctx, key); err != nil {
			e.log.Warn("document content not removed", zap.String("key", key), zap.Error(err))
		}
		cancel()
	}
}
