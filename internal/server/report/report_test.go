package report

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/guildkeeper/internal/logging"
	"github.com/dmitrijs2005/guildkeeper/internal/server/accounting"
)

const viewerRole = "role-viewer"

type fakeDirectory struct {
	roles   map[string]bool
	roleErr error
	joined  map[string]time.Time
	joinErr map[string]error
}

func (d *fakeDirectory) HasRole(ctx context.Context, userID, roleID string) (bool, error) {
	if d.roleErr != nil {
		return false, d.roleErr
	}
	return roleID == viewerRole && d.roles[userID], nil
}

func (d *fakeDirectory) MemberJoinedAt(ctx context.Context, userID string) (time.Time, bool, error) {
	if err := d.joinErr[userID]; err != nil {
		return time.Time{}, false, err
	}
	t, ok := d.joined[userID]
	return t, ok, nil
}

type fakeArchive struct {
	bodies []string
	err    error
}

func (a *fakeArchive) Store(ctx context.Context, body string) (string, error) {
	if a.err != nil {
		return "", a.err
	}
	a.bodies = append(a.bodies, body)
	return "reports/key.txt", nil
}

func seededEngine(t *testing.T) *accounting.Engine {
	t.Helper()
	now := time.Date(2024, time.July, 10, 12, 0, 0, 0, time.UTC)
	e := accounting.NewEngine(accounting.NewMemoryLedger(), func() time.Time { return now }, logging.Nop{})
	ctx := context.Background()

	e.CountMessage(ctx, "carol")
	e.CountMessage(ctx, "alice")
	e.CountMessage(ctx, "carol")

	e.TrackVoice(ctx, "bob", "", "voice")
	now = now.Add(125 * time.Second)
	e.TrackVoice(ctx, "bob", "voice", "")
	e.TrackVoice(ctx, "dave", "", "voice")

	// another month must not leak into July
	now = time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)
	e.CountMessage(ctx, "erin")
	now = time.Date(2024, time.July, 20, 0, 0, 0, 0, time.UTC)
	return e
}

func TestGenerate_RendersSectionsInOrder(t *testing.T) {
	dir := &fakeDirectory{
		roles: map[string]bool{"viewer": true},
		joined: map[string]time.Time{
			"carol": time.Date(2023, time.January, 2, 3, 4, 5, 6_000_000, time.UTC),
			"bob":   time.Date(2022, time.May, 1, 0, 0, 0, 0, time.UTC),
		},
	}
	g := NewGenerator(seededEngine(t), dir, viewerRole, nil, logging.Nop{})

	got, err := g.Generate(context.Background(), "viewer")
	require.NoError(t, err)

	want := "Engagement report:\n" +
		"<@bob>: Entries: 1, Total duration: 125.00 seconds\n" +
		"<@dave>: Entries: 1, Total duration: 0.00 seconds\n" +
		"<@carol>: Messages: 2\n" +
		"<@alice>: Messages: 1\n" +
		"<@carol>: Joined server: 2023-01-02T03:04:05.006Z\n"
	assert.Equal(t, want, got)
}

func TestGenerate_DeniedWithoutViewerRole(t *testing.T) {
	archive := &fakeArchive{}
	g := NewGenerator(seededEngine(t), &fakeDirectory{}, viewerRole, archive, logging.Nop{})

	got, err := g.Generate(context.Background(), "carol")
	require.ErrorIs(t, err, ErrForbidden)
	assert.Empty(t, got)
	assert.Empty(t, archive.bodies)
}

func TestGenerate_RoleLookupFailure(t *testing.T) {
	g := NewGenerator(seededEngine(t), &fakeDirectory{roleErr: errors.New("rest 500")}, viewerRole, nil, logging.Nop{})

	_, err := g.Generate(context.Background(), "viewer")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrForbidden)
	assert.Contains(t, err.Error(), "rest 500")
}

func TestGenerate_JoinLookupFailureOmitsLine(t *testing.T) {
	dir := &fakeDirectory{
		roles:   map[string]bool{"viewer": true},
		joined:  map[string]time.Time{"alice": time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)},
		joinErr: map[string]error{"carol": errors.New("unknown member")},
	}
	g := NewGenerator(seededEngine(t), dir, viewerRole, nil, logging.Nop{})

	got, err := g.Generate(context.Background(), "viewer")
	require.NoError(t, err)
	assert.NotContains(t, got, "<@carol>: Joined")
	assert.Contains(t, got, "<@alice>: Joined server: 2020-01-01T00:00:00.000Z\n")
}

func TestGenerate_EmptyMonth(t *testing.T) {
	now := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	e := accounting.NewEngine(accounting.NewMemoryLedger(), func() time.Time { return now }, logging.Nop{})
	g := NewGenerator(e, &fakeDirectory{roles: map[string]bool{"viewer": true}}, viewerRole, nil, logging.Nop{})

	got, err := g.Generate(context.Background(), "viewer")
	require.NoError(t, err)
	assert.Equal(t, "Engagement report:\n", got)
}

func TestGenerate_ArchivesAndToleratesArchiveFailure(t *testing.T) {
	dir := &fakeDirectory{roles: map[string]bool{"viewer": true}}

	archive := &fakeArchive{}
	g := NewGenerator(seededEngine(t), dir, viewerRole, archive, logging.Nop{})
	got, err := g.Generate(context.Background(), "viewer")
	require.NoError(t, err)
	assert.Equal(t, []string{got}, archive.bodies)

	g = NewGenerator(seededEngine(t), dir, viewerRole, &fakeArchive{err: errors.New("bucket missing")}, logging.Nop{})
	got, err = g.Generate(context.Background(), "viewer")
	require.NoError(t, err)
	assert.Contains(t, got, "Engagement report:")
}
