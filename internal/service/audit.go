package service

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// AuditAction names an auditable engine event.
type AuditAction int

const (
	AuditItemSold AuditAction = iota + 1
	AuditBatchRun
	AuditProtectionChanged
)

func (a AuditAction) String() string {
	switch a {
	case AuditItemSold:
		return "item_sold"
	case AuditBatchRun:
		return "batch_run"
	case AuditProtectionChanged:
		return "protection_changed"
	default:
		return "unknown"
	}
}

// AuditEvent is one entry of the audit trail.
type AuditEvent struct {
	Action    AuditAction
	UserID    string
	ItemID    string
	RunID     string
	Mode      string
	Credits   int64
	Protected bool
	Summary   string
	At        time.Time
}

func (e AuditEvent) fields() map[string]interface{} {
	f := map[string]interface{}{
		"action":  e.Action.String(),
		"user_id": e.UserID,
		"at":      e.At.UnixMilli(),
	}
	if e.ItemID != "" {
		f["item_id"] = e.ItemID
	}
	if e.RunID != "" {
		f["run_id"] = e.RunID
	}
	if e.Mode != "" {
		f["mode"] = e.Mode
	}
	switch e.Action {
	case AuditItemSold, AuditBatchRun:
		f["credits"] = strconv.FormatInt(e.Credits, 10)
	case AuditProtectionChanged:
		f["protected"] = strconv.FormatBool(e.Protected)
	}
	if e.Summary != "" {
		f["summary"] = e.Summary
	}
	return f
}

// AuditSink receives audit events. Failures never undo the audited operation.
type AuditSink interface {
	Record(ctx context.Context, event AuditEvent) error
}

// LogAuditSink writes audit events to a structured logger.
type LogAuditSink struct {
	log zerolog.Logger
}

// NewLogAuditSink creates a log-backed audit sink.
func NewLogAuditSink(log zerolog.Logger) *LogAuditSink {
	return &LogAuditSink{log: log.With().Str("component", "audit").Logger()}
}

// Record logs the event.
func (s *LogAuditSink) Record(ctx context.Context, event AuditEvent) error {
	s.log.Info().Fields(event.fields()).Msg("Audit")
	return nil
}

// RedisStreamAuditSink appends audit events to a capped Redis stream.
type RedisStreamAuditSink struct {
	client *redis.Client
	stream string
	maxLen int64
}

// NewRedisStreamAuditSink creates a stream sink. maxLen <= 0 keeps 100000 entries.
func NewRedisStreamAuditSink(client *redis.Client, stream string, maxLen int64) *RedisStreamAuditSink {
	if maxLen <= 0 {
		maxLen = 100000
	}
	return &RedisStreamAuditSink{client: client, stream: stream, maxLen: maxLen}
}

// Record appends the event with XADD.
func (s *RedisStreamAuditSink) Record(ctx context.Context, event AuditEvent) error {
	return s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		MaxLen: s.maxLen,
		Approx: true,
		Values: event.fields(),
	}).Err()
}

// MultiAuditSink fans an event out to several sinks.
type MultiAuditSink []AuditSink

// Record delivers to every sink and joins their errors.
func (m MultiAuditSink) Record(ctx context.Context, event AuditEvent) error {
	var errs []error
	for _, s := range m {
		if err := s.Record(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var (
	_ AuditSink = (*LogAuditSink)(nil)
	_ AuditSink = (*RedisStreamAuditSink)(nil)
	_ AuditSink = MultiAuditSink(nil)
)
