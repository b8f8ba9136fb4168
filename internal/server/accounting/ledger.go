package accounting

import (
	"sync"
	"time"
)

// VoiceRecord is the voice participation of one user in one month.
// JoinTime is non-nil exactly while a session is open.
type VoiceRecord struct {
	Entries       int
	TotalDuration float64 // seconds
	JoinTime      *time.Time
}

type MessageStat struct {
	UserID string
	Count  int
}

type VoiceStat struct {
	UserID string
	VoiceRecord
}

// Ledger stores engagement counters keyed by (user id, month). Listings
// return users in the order they were first recorded for that month.
type Ledger interface {
	IncrementMessages(userID string, month time.Month) int
	MessageCount(userID string, month time.Month) int
	Messages(month time.Month) []MessageStat

	// UpdateVoice runs fn atomically on the user's record for month. fn gets
	// a zero record when none exists; the record is stored only if fn
	// returns true.
	UpdateVoice(userID string, month time.Month, fn func(rec *VoiceRecord) bool)
	Voice(userID string, month time.Month) (VoiceRecord, bool)
	VoiceRecords(month time.Month) []VoiceStat
}

type monthBucket struct {
	messages     map[string]int
	messageOrder []string
	voice        map[string]*VoiceRecord
	voiceOrder   []string
}

// MemoryLedger is an unbounded in-process Ledger. Counters are lost on
// restart.
type MemoryLedger struct {
	mu     sync.Mutex
	months map[time.Month]*monthBucket
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{months: make(map[time.Month]*monthBucket)}
}

func (l *MemoryLedger) bucket(month time.Month) *monthBucket {
	b, ok := l.months[month]
	if !ok {
		b = &monthBucket{
			messages: make(map[string]int),
			voice:    make(map[string]*VoiceRecord),
		}
		l.months[month] = b
	}
	return b
}

func (l *MemoryLedger) IncrementMessages(userID string, month time.Month) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.bucket(month)
	if _, ok := b.messages[userID]; !ok {
		b.messageOrder = append(b.messageOrder, userID)
	}
	b.messages[userID]++
	return b.messages[userID]
}

func (l *MemoryLedger) MessageCount(userID string, month time.Month) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	if b, ok := l.months[month]; ok {
		return b.messages[userID]
	}
	return 0
}

func (l *MemoryLedger) Messages(month time.Month) []MessageStat {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.months[month]
	if !ok {
		return nil
	}
	out := make([]MessageStat, 0, len(b.messageOrder))
	for _, id := range b.messageOrder {
		out = append(out, MessageStat{UserID: id, Count: b.messages[id]})
	}
	return out
}

func (l *MemoryLedger) UpdateVoice(userID string, month time.Month, fn func(rec *VoiceRecord) bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.bucket(month)
	cur, exists := b.voice[userID]
	rec := VoiceRecord{}
	if exists {
		rec = copyRecord(*cur)
	}
	if !fn(&rec) {
		return
	}
	if !exists {
		b.voiceOrder = append(b.voiceOrder, userID)
	}
	b.voice[userID] = &rec
}

func (l *MemoryLedger) Voice(userID string, month time.Month) (VoiceRecord, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if b, ok := l.months[month]; ok {
		if rec, ok := b.voice[userID]; ok {
			return copyRecord(*rec), true
		}
	}
	return VoiceRecord{}, false
}

func (l *MemoryLedger) VoiceRecords(month time.Month) []VoiceStat {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.months[month]
	if !ok {
		return nil
	}
	out := make([]VoiceStat, 0, len(b.voiceOrder))
	for _, id := range b.voiceOrder {
		out = append(out, VoiceStat{UserID: id, VoiceRecord: copyRecord(*b.voice[id])})
	}
	return out
}

func copyRecord(r VoiceRecord) VoiceRecord {
	if r.JoinTime != nil {
		t := *r.JoinTime
		r.JoinTime = &t
	}
	return r
}
