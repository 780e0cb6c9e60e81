// Package audit drains the admin activity queue into the admin_activity
// table and fans each entry out on redis for live dashboards.
package audit

import (
	"context"
	"errors"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/Abhinavmohindersingh/bigslick-admin/domain"
	"github.com/Abhinavmohindersingh/bigslick-admin/storage"
	"github.com/Abhinavmohindersingh/bigslick-admin/tables"
)

// DefaultChannel is the redis channel audit entries are published on.
const DefaultChannel = "admin-activity"

// Source is the queue side of the processor.
type Source interface {
	Dequeue(ctx context.Context) (*storage.QueuedMessage, error)
	Delete(ctx context.Context, id, popReceipt string) error
}

// Writer persists audit rows.
type Writer interface {
	Insert(ctx context.Context, table string, records ...tables.Record) ([]tables.Record, error)
}

// Processor applies one queue message at a time.
type Processor struct {
	source  Source
	writer  Writer
	redis   *redis.Client
	channel string
	idle    time.Duration
	log     *log.Logger
}

// Options tunes a Processor. Zero values fall back to defaults.
type Options struct {
	Channel string
	Idle    time.Duration
}

func NewProcessor(source Source, writer Writer, rc *redis.Client, opts Options, logger *log.Logger) *Processor {
	if opts.Channel == "" {
		opts.Channel = DefaultChannel
	}
	if opts.Idle <= 0 {
		opts.Idle = time.Second
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Processor{
		source:  source,
		writer:  writer,
		redis:   rc,
		channel: opts.Channel,
		idle:    opts.Idle,
		log:     logger,
	}
}

// Record converts an envelope into an admin_activity row.
func Record(env domain.ActivityEnvelope) tables.Record {
	return tables.Record{
		"id":         env.Activity.ID,
		"user_id":    env.UserID,
		"action":     env.Activity.Action,
		"table_name": env.Activity.Table,
		"data":       string(env.Activity.Data),
		"created_at": time.Unix(0, env.Activity.Timestamp).UTC().Format(time.RFC3339Nano),
	}
}

// Step handles at most one message. It reports whether a message was
// found. Messages that fail to apply stay on the queue and reappear once
// their visibility timeout expires.
func (p *Processor) Step(ctx context.Context) (bool, error) {
	msg, err := p.source.Dequeue(ctx)
	if err != nil {
		return false, err
	}
	if msg == nil {
		return false, nil
	}

	var env domain.ActivityEnvelope
	if err := sonic.UnmarshalString(msg.Text, &env); err != nil || env.Activity.ID == "" {
		p.log.WithField("message_id", msg.ID).WithError(err).Warn("dropping undecodable activity")
		return true, p.source.Delete(ctx, msg.ID, msg.PopReceipt)
	}
	if err := p.apply(ctx, env, msg.Text); err != nil {
		return true, err
	}
	return true, p.source.Delete(ctx, msg.ID, msg.PopReceipt)
}

func (p *Processor) apply(ctx context.Context, env domain.ActivityEnvelope, payload string) error {
	_, err := p.writer.Insert(ctx, domain.TableAdminActivity, Record(env))
	switch {
	case errors.Is(err, storage.ErrConflict):
		p.log.WithField("activity_id", env.Activity.ID).Debug("activity already recorded")
	case err != nil:
		return err
	}
	if p.redis == nil {
		return nil
	}
	if err := p.redis.Publish(ctx, p.channel, payload).Err(); err != nil {
		p.log.WithError(err).Errorf("Unable to publish activity to %s", p.channel)
	}
	return nil
}

// Run loops until ctx is done, sleeping when the queue is empty or
// unreachable.
func (p *Processor) Run(ctx context.Context) error {
	for {
		found, err := p.Step(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.log.WithError(err).Error("audit step failed")
		}
		if found && err == nil {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.idle):
		}
	}
}
