// Package accounting tallies per-user monthly engagement: message counts and
// voice-channel sessions.
//
// Buckets are keyed by calendar month only, so the same month of different
// years shares a bucket.
//
// A voice record is created by a join. Leaves without an open session,
// moves and mute toggles touch nothing, so members who never joined during
// the month have no voice line in the report.
package accounting

import (
	"context"
	"time"

	"github.com/dmitrijs2005/guildkeeper/internal/logging"
	"github.com/dmitrijs2005/guildkeeper/internal/timex"
)

type Engine struct {
	ledger Ledger
	clock  timex.Clock
	logger logging.Logger
}

func NewEngine(ledger Ledger, clock timex.Clock, logger logging.Logger) *Engine {
	if clock == nil {
		clock = timex.SystemClock
	}
	return &Engine{ledger: ledger, clock: clock, logger: logger.With("module", "accounting")}
}

// CurrentMonth is the bucket events are recorded into right now.
func (e *Engine) CurrentMonth() time.Month {
	return e.clock().Month()
}

// CountMessage records one qualifying message and returns the user's new
// count for the current month.
func (e *Engine) CountMessage(ctx context.Context, userID string) int {
	month := e.CurrentMonth()
	n := e.ledger.IncrementMessages(userID, month)
	e.logger.Debug(ctx, "message counted", "user_id", userID, "month", int(month), "count", n)
	return n
}

// TrackVoice applies a voice-state change. A join while a session is already
// open restarts the session and the earlier elapsed time is dropped. A leave
// without an open session in the current month records nothing.
func (e *Engine) TrackVoice(ctx context.Context, userID, oldChannelID, newChannelID string) Transition {
	tr := DeriveTransition(oldChannelID, newChannelID)
	now := e.clock()
	month := now.Month()

	switch tr {
	case Joined:
		e.ledger.UpdateVoice(userID, month, func(rec *VoiceRecord) bool {
			if rec.JoinTime != nil {
				e.logger.Warn(ctx, "voice session overwritten by rejoin", "user_id", userID)
			}
			rec.Entries++
			joined := now
			rec.JoinTime = &joined
			return true
		})
		e.logger.Debug(ctx, "voice joined", "user_id", userID, "channel_id", newChannelID)

	case Left:
		e.ledger.UpdateVoice(userID, month, func(rec *VoiceRecord) bool {
			if rec.JoinTime == nil {
				return false
			}
			d := now.Sub(*rec.JoinTime).Seconds()
			rec.TotalDuration += d
			rec.JoinTime = nil
			e.logger.Debug(ctx, "voice left", "user_id", userID, "channel_id", oldChannelID, "seconds", d)
			return true
		})
	}
	return tr
}

// Messages lists message counts for month in first-seen order.
func (e *Engine) Messages(month time.Month) []MessageStat {
	return e.ledger.Messages(month)
}

// VoiceRecords lists voice participation for month in first-seen order.
func (e *Engine) VoiceRecords(month time.Month) []VoiceStat {
	return e.ledger.VoiceRecords(month)
}
