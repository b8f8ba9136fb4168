// Package report renders the monthly engagement report for members holding
// the viewer role.
package report

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/guildkeeper/internal/logging"
	"github.com/dmitrijs2005/guildkeeper/internal/server/accounting"
)

// ErrForbidden is returned when the requester lacks the viewer role.
var ErrForbidden = errors.New("report requires the viewer role")

const (
	header = "Engagement report:"
	// isoMillis matches the millisecond UTC timestamps members are used to.
	isoMillis = "2006-01-02T15:04:05.000Z07:00"
)

// Stats is the read side of the accounting engine.
type Stats interface {
	CurrentMonth() time.Month
	Messages(month time.Month) []accounting.MessageStat
	VoiceRecords(month time.Month) []accounting.VoiceStat
}

// Directory answers membership questions about the community.
type Directory interface {
	HasRole(ctx context.Context, userID, roleID string) (bool, error)
	// MemberJoinedAt reports when the user joined; ok is false when unknown.
	MemberJoinedAt(ctx context.Context, userID string) (t time.Time, ok bool, err error)
}

// Archiver keeps a copy of each rendered report.
type Archiver interface {
	Store(ctx context.Context, body string) (key string, err error)
}

type Generator struct {
	stats        Stats
	directory    Directory
	viewerRoleID string
	archive      Archiver
	logger       logging.Logger
}

// NewGenerator builds a Generator. archive may be nil.
func NewGenerator(stats Stats, directory Directory, viewerRoleID string, archive Archiver, logger logging.Logger) *Generator {
	return &Generator{
		stats:        stats,
		directory:    directory,
		viewerRoleID: viewerRoleID,
		archive:      archive,
		logger:       logger.With("module", "report"),
	}
}

// Generate renders the current month's report for requesterID.
func (g *Generator) Generate(ctx context.Context, requesterID string) (string, error) {
	allowed, err := g.directory.HasRole(ctx, requesterID, g.viewerRoleID)
	if err != nil {
		return "", fmt.Errorf("role lookup: %w", err)
	}
	if !allowed {
		g.logger.Info(ctx, "report denied", "user_id", requesterID)
		return "", ErrForbidden
	}

	month := g.stats.CurrentMonth()
	body := g.render(ctx, month)

	if g.archive != nil {
		if key, err := g.archive.Store(ctx, body); err != nil {
			g.logger.Error(ctx, "report archive failed", "error", err)
		} else {
			g.logger.Info(ctx, "report archived", "key", key)
		}
	}
	return body, nil
}

func (g *Generator) render(ctx context.Context, month time.Month) string {
	var b strings.Builder
	b.WriteString(header)
	b.WriteByte('\n')

	for _, v := range g.stats.VoiceRecords(month) {
		fmt.Fprintf(&b, "<@%s>: Entries: %d, Total duration: %.2f seconds\n", v.UserID, v.Entries, v.TotalDuration)
	}

	messages := g.stats.Messages(month)
	for _, m := range messages {
		fmt.Fprintf(&b, "<@%s>: Messages: %d\n", m.UserID, m.Count)
	}

	// Join dates are listed for message authors only.
	for _, m := range messages {
		joined, ok, err := g.directory.MemberJoinedAt(ctx, m.UserID)
		if err != nil {
			g.logger.Warn(ctx, "join date lookup failed", "user_id", m.UserID, "error", err)
			continue
		}
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "<@%s>: Joined server: %s\n", m.UserID, joined.UTC().Format(isoMillis))
	}
	return b.String()
}
