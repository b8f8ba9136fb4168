// Package dispatcher routes platform events to the auth flow, the
// accounting engine and the report generator, and turns their results into
// replies. No other package decides what users are told.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/guildkeeper/internal/logging"
	"github.com/dmitrijs2005/guildkeeper/internal/server/accounting"
	"github.com/dmitrijs2005/guildkeeper/internal/server/auth"
	"github.com/dmitrijs2005/guildkeeper/internal/server/metrics"
	"github.com/dmitrijs2005/guildkeeper/internal/server/models"
	"github.com/dmitrijs2005/guildkeeper/internal/server/report"
)

// Platform is everything the bot needs from the chat platform.
type Platform interface {
	auth.Platform
	report.Directory
	SendChannelMessage(ctx context.Context, channelID, text string) error
}

type Authenticator interface {
	Register(ctx context.Context, userID string) error
	CompleteRegistration(ctx context.Context, userID, content string) (*models.Credential, error)
	Login(ctx context.Context, userID string, args []string) (*auth.LoginResult, error)
}

type Accountant interface {
	CountMessage(ctx context.Context, userID string) int
	TrackVoice(ctx context.Context, userID, oldChannelID, newChannelID string) accounting.Transition
}

type Reporter interface {
	Generate(ctx context.Context, requesterID string) (string, error)
}

// Options carries the routing configuration.
type Options struct {
	GatedChannelID string
	BotAuthorID    string
	CommandPrefix  string
}

type Router struct {
	platform Platform
	auth     Authenticator
	engine   Accountant
	reports  Reporter
	metrics  *metrics.Metrics
	opts     Options
	logger   logging.Logger
}

func NewRouter(p Platform, a Authenticator, e Accountant, r Reporter, m *metrics.Metrics, opts Options, logger logging.Logger) *Router {
	return &Router{
		platform: p,
		auth:     a,
		engine:   e,
		reports:  r,
		metrics:  m,
		opts:     opts,
		logger:   logger.With("module", "dispatcher"),
	}
}

// HandleMessage classifies and handles one inbound message.
func (r *Router) HandleMessage(ctx context.Context, m Message) {
	switch {
	case m.FromSelf, r.opts.BotAuthorID != "" && m.AuthorID == r.opts.BotAuthorID:
		r.event("bot")
	case m.ChannelID == r.opts.GatedChannelID:
		r.event("auth")
		r.handleAuthCommand(ctx, m)
	case m.Private:
		r.event("private")
		r.handleRegistration(ctx, m)
	case r.isCommand(m.Content, "report", true):
		r.event("report")
		r.handleReport(ctx, m)
	default:
		r.event("message")
		r.engine.CountMessage(ctx, m.AuthorID)
	}
}

// HandleVoiceState applies one voice-state change.
func (r *Router) HandleVoiceState(ctx context.Context, v VoiceStateChange) {
	r.event("voice")
	tr := r.engine.TrackVoice(ctx, v.UserID, v.OldChannelID, v.NewChannelID)
	r.metrics.VoiceSessions.WithLabelValues(tr.String()).Inc()
}

func (r *Router) event(route string) {
	r.metrics.Events.WithLabelValues(route).Inc()
}

func (r *Router) command(name string, err error) {
	r.metrics.Commands.WithLabelValues(name, outcome(err)).Inc()
}

// commandWord returns the first token of content without the prefix. ok is
// false when the prefix is required and missing.
func (r *Router) commandWord(content string, prefixRequired bool) (word string, args []string, ok bool) {
	fields := strings.Fields(content)
	if len(fields) == 0 {
		return "", nil, false
	}
	word, hadPrefix := strings.CutPrefix(fields[0], r.opts.CommandPrefix)
	if prefixRequired && !hadPrefix {
		return "", nil, false
	}
	return word, fields[1:], true
}

func (r *Router) isCommand(content, name string, prefixRequired bool) bool {
	word, _, ok := r.commandWord(content, prefixRequired)
	return ok && word == name
}

func (r *Router) reply(ctx context.Context, channelID, text string) {
	if err := r.platform.SendChannelMessage(ctx, channelID, text); err != nil {
		r.logger.Error(ctx, "reply failed", "channel_id", channelID, "error", err)
	}
}

func (r *Router) handleAuthCommand(ctx context.Context, m Message) {
	word, args, ok := r.commandWord(m.Content, false)
	if !ok {
		return
	}

	switch word {
	case "register":
		err := r.auth.Register(ctx, m.AuthorID)
		r.command("register", err)
		r.reply(ctx, m.ChannelID, r.registerReply(ctx, err))
	case "login":
		res, err := r.auth.Login(ctx, m.AuthorID, args)
		r.command("login", err)
		r.reply(ctx, m.ChannelID, r.loginReply(ctx, res, err))
	}
}

func (r *Router) registerReply(ctx context.Context, err error) string {
	switch {
	case err == nil:
		return replyPromptSent
	case errors.Is(err, auth.ErrAlreadyRegistered):
		return replyAlreadyRegistered
	case errors.Is(err, auth.ErrDeliveryFailed):
		return replyDeliveryFailed
	default:
		r.logger.Error(ctx, "register failed", "error", err)
		return replyApology
	}
}

func (r *Router) loginReply(ctx context.Context, res *auth.LoginResult, err error) string {
	switch {
	case err == nil && res.ModuleFound:
		return fmt.Sprintf(replyModuleLink, res.Module, res.URL)
	case err == nil:
		return replyModuleMissing
	case errors.Is(err, auth.ErrUsage):
		return fmt.Sprintf(replyUsage, r.opts.CommandPrefix)
	case errors.Is(err, auth.ErrUserNotFound):
		return replyUserNotFound
	case errors.Is(err, auth.ErrIncorrectPassword):
		return replyIncorrectPassword
	case errors.Is(err, auth.ErrRoleGrant):
		return replyRoleGrant
	default:
		r.logger.Error(ctx, "login failed", "error", err)
		return replyApology
	}
}

func (r *Router) handleRegistration(ctx context.Context, m Message) {
	c, err := r.auth.CompleteRegistration(ctx, m.AuthorID, m.Content)
	r.command("complete_registration", err)

	var text string
	switch {
	case err == nil:
		text = fmt.Sprintf(replyRegistered, c.Username)
	case errors.Is(err, auth.ErrInvalidFormat):
		text = replyInvalidFormat
	case errors.Is(err, auth.ErrAlreadyRegistered):
		text = replyAlreadyRegistered
	default:
		r.logger.Error(ctx, "registration failed", "error", err)
		text = replyApology
	}
	r.reply(ctx, m.ChannelID, text)
}

// handleReport posts the report in the requesting channel. A denial goes to
// the requester privately and falls back to the channel if that fails.
func (r *Router) handleReport(ctx context.Context, m Message) {
	body, err := r.reports.Generate(ctx, m.AuthorID)
	r.command("report", err)

	switch {
	case err == nil:
		r.reply(ctx, m.ChannelID, body)
	case errors.Is(err, report.ErrForbidden):
		if dmErr := r.platform.SendPrivateMessage(ctx, m.AuthorID, replyForbidden); dmErr != nil {
			r.logger.Warn(ctx, "denial not delivered privately", "user_id", m.AuthorID, "error", dmErr)
			r.reply(ctx, m.ChannelID, replyForbidden)
		}
	default:
		r.logger.Error(ctx, "report failed", "user_id", m.AuthorID, "error", err)
		r.reply(ctx, m.ChannelID, replyApology)
	}
}
