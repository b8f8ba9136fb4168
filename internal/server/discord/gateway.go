// Package discord adapts a discordgo session to the dispatcher: it turns
// gateway events into dispatcher events and implements dispatcher.Platform.
package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/dmitrijs2005/guildkeeper/internal/common"
	"github.com/dmitrijs2005/guildkeeper/internal/logging"
	"github.com/dmitrijs2005/guildkeeper/internal/server/dispatcher"
)

// Intents requested at identify time.
const Intents = discordgo.IntentsGuilds |
	discordgo.IntentsGuildMessages |
	discordgo.IntentsGuildVoiceStates |
	discordgo.IntentsDirectMessages |
	discordgo.IntentsMessageContent

// Session is the subset of *discordgo.Session the gateway uses.
type Session interface {
	Open() error
	Close() error
	AddHandler(handler interface{}) func()
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	UserChannelCreate(recipientID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	GuildMemberRoleAdd(guildID, userID, roleID string, options ...discordgo.RequestOption) error
	GuildMember(guildID, userID string, options ...discordgo.RequestOption) (*discordgo.Member, error)
}

// EventHandler receives translated events.
type EventHandler interface {
	HandleMessage(ctx context.Context, m dispatcher.Message)
	HandleVoiceState(ctx context.Context, v dispatcher.VoiceStateChange)
}

type Gateway struct {
	session Session
	// cached reads the session state cache; nil disables it.
	cached  func(guildID, userID string) (*discordgo.Member, error)
	guildID string
	logger  logging.Logger

	mu sync.Mutex

	// opened is set between a successful Open and Close; connected follows
	// the live websocket and drops while discordgo reconnects.
	opened    bool
	connected bool
	selfID    string
	listeners []func(connected bool)
}

// NewSession creates a discordgo session for a bot token with the required
// intents.
func NewSession(token string) (*discordgo.Session, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	s.Identify.Intents = Intents
	return s, nil
}

// New wraps s. When s is a *discordgo.Session its state cache is consulted
// before REST member lookups.
func New(s Session, guildID string, logger logging.Logger) *Gateway {
	g := &Gateway{session: s, guildID: guildID, logger: logger.With("module", "discord")}
	if ds, ok := s.(*discordgo.Session); ok && ds.State != nil {
		g.cached = ds.State.Member
	}
	return g
}

// Attach registers gateway handlers that forward events to h. Messages
// authored by the bot account itself are marked FromSelf.
func (g *Gateway) Attach(h EventHandler) {
	g.session.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) {
		if r.User != nil {
			g.mu.Lock()
			g.selfID = r.User.ID
			g.mu.Unlock()
			g.logger.Info(context.Background(), "logged in", "user", r.User.String())
		}
		g.linkStatus(true)
	})
	g.session.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageCreate) {
		if msg, ok := toMessage(m, g.self()); ok {
			h.HandleMessage(context.Background(), msg)
		}
	})
	g.session.AddHandler(func(_ *discordgo.Session, v *discordgo.VoiceStateUpdate) {
		if vs, ok := toVoiceStateChange(v); ok {
			h.HandleVoiceState(context.Background(), vs)
		}
	})
	g.session.AddHandler(func(_ *discordgo.Session, _ *discordgo.Disconnect) {
		g.linkStatus(false)
	})
	g.session.AddHandler(func(_ *discordgo.Session, _ *discordgo.Resumed) {
		g.linkStatus(true)
	})
}

func (g *Gateway) self() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.selfID
}

// linkStatus records a websocket drop or recovery. It is ignored outside
// Connect/Close so a deliberate Close is not reported twice.
func (g *Gateway) linkStatus(up bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.opened || g.connected == up {
		return
	}
	g.setConnected(up)
	if up {
		g.logger.Info(context.Background(), "gateway link restored")
	} else {
		g.logger.Warn(context.Background(), "gateway link lost")
	}
}

func toMessage(m *discordgo.MessageCreate, selfID string) (dispatcher.Message, bool) {
	if m == nil || m.Message == nil || m.Author == nil {
		return dispatcher.Message{}, false
	}
	return dispatcher.Message{
		AuthorID:  m.Author.ID,
		ChannelID: m.ChannelID,
		Content:   m.Content,
		Private:   m.GuildID == "",
		FromSelf:  selfID != "" && m.Author.ID == selfID,
	}, true
}

func toVoiceStateChange(v *discordgo.VoiceStateUpdate) (dispatcher.VoiceStateChange, bool) {
	if v == nil || v.VoiceState == nil {
		return dispatcher.VoiceStateChange{}, false
	}
	vs := dispatcher.VoiceStateChange{UserID: v.UserID, NewChannelID: v.ChannelID}
	if v.BeforeUpdate != nil {
		vs.OldChannelID = v.BeforeUpdate.ChannelID
	}
	return vs, true
}

// OnStatusChange registers fn to be called whenever the connection state
// changes.
func (g *Gateway) OnStatusChange(fn func(connected bool)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.listeners = append(g.listeners, fn)
}

func (g *Gateway) setConnected(v bool) {
	g.connected = v
	for _, fn := range g.listeners {
		fn(v)
	}
}

// Connect opens the gateway connection unless it is already open.
func (g *Gateway) Connect(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.opened {
		return nil
	}
	if err := g.session.Open(); err != nil {
		return fmt.Errorf("discord open: %w", err)
	}
	g.opened = true
	g.setConnected(true)
	g.logger.Info(ctx, "gateway connected")
	return nil
}

func (g *Gateway) Connected() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.connected
}

// Close closes the session. The lock is released first because discordgo
// may deliver the resulting Disconnect event synchronously.
func (g *Gateway) Close() error {
	g.mu.Lock()
	if !g.opened {
		g.mu.Unlock()
		return nil
	}
	g.opened = false
	if g.connected {
		g.setConnected(false)
	}
	g.mu.Unlock()

	return g.session.Close()
}

func (g *Gateway) SendChannelMessage(ctx context.Context, channelID, text string) error {
	if _, err := g.session.ChannelMessageSend(channelID, text, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("send to channel %s: %w", channelID, err)
	}
	return nil
}

func (g *Gateway) SendPrivateMessage(ctx context.Context, userID, text string) error {
	ch, err := g.session.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("open private channel: %w", err)
	}
	return g.SendChannelMessage(ctx, ch.ID, text)
}

// GrantRole adds roleID to the member. Adding a role the member already
// has succeeds.
func (g *Gateway) GrantRole(ctx context.Context, userID, roleID string) error {
	if err := g.session.GuildMemberRoleAdd(g.guildID, userID, roleID, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("grant role %s: %w", roleID, err)
	}
	return nil
}

// member returns the guild member, or common.ErrorNotFound when the user is
// not in the guild.
func (g *Gateway) member(ctx context.Context, userID string) (*discordgo.Member, error) {
	if g.cached != nil {
		if m, err := g.cached(g.guildID, userID); err == nil && m != nil {
			return m, nil
		}
	}

	m, err := g.session.GuildMember(g.guildID, userID, discordgo.WithContext(ctx))
	if err != nil {
		var rerr *discordgo.RESTError
		if errors.As(err, &rerr) && rerr.Response != nil && rerr.Response.StatusCode == http.StatusNotFound {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("guild member %s: %w", userID, err)
	}
	return m, nil
}

func (g *Gateway) HasRole(ctx context.Context, userID, roleID string) (bool, error) {
	m, err := g.member(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return false, nil
		}
		return false, err
	}
	return slices.Contains(m.Roles, roleID), nil
}

func (g *Gateway) MemberJoinedAt(ctx context.Context, userID string) (time.Time, bool, error) {
	m, err := g.member(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, err
	}
	if m.JoinedAt.IsZero() {
		return time.Time{}, false, nil
	}
	return m.JoinedAt, true, nil
}
