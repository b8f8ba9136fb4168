package admin

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/guildkeeper/internal/server/config"
	"github.com/dmitrijs2005/guildkeeper/internal/server/models"
	"github.com/dmitrijs2005/guildkeeper/internal/server/repositories/credentials"
)

type openerSpy struct {
	repo   *credentials.MemoryRepository
	cfg    *config.Config
	closed bool
	err    error
}

func (o *openerSpy) open(ctx context.Context, cfg *config.Config) (credentials.Repository, func() error, error) {
	o.cfg = cfg
	if o.err != nil {
		return nil, nil, o.err
	}
	return o.repo, func() error { o.closed = true; return nil }, nil
}

func runCommand(t *testing.T, spy *openerSpy, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand(spy.open)
	out := &bytes.Buffer{}
	root.SetOut(out)
	root.SetErr(out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRootCommand_FlagsReachConfig(t *testing.T) {
	spy := &openerSpy{repo: credentials.NewMemoryRepository()}

	_, err := runCommand(t, spy, "-b", "sqlite", "-d", "file:admin.db", "list")
	require.NoError(t, err)

	require.NotNil(t, spy.cfg)
	assert.Equal(t, config.BackendSQLite, spy.cfg.CredentialBackend)
	assert.Equal(t, "file:admin.db", spy.cfg.DatabaseDSN)
	assert.True(t, spy.closed)
}

func TestRootCommand_ShowAndRename(t *testing.T) {
	spy := &openerSpy{repo: credentials.NewMemoryRepository()}
	require.NoError(t, spy.repo.Create(context.Background(),
		&models.Credential{UserID: "42", Username: "neo", PasswordHash: "h"}))

	out, err := runCommand(t, spy, "rename", "42", "trinity")
	require.NoError(t, err)
	assert.Contains(t, out, "renamed 42 to trinity")

	out, err = runCommand(t, spy, "show", "42")
	require.NoError(t, err)
	assert.Contains(t, out, "username: trinity")
}

func TestRootCommand_ArgsValidated(t *testing.T) {
	spy := &openerSpy{repo: credentials.NewMemoryRepository()}

	_, err := runCommand(t, spy, "show")
	require.Error(t, err)
	assert.Nil(t, spy.cfg)
}

func TestRootCommand_OpenError(t *testing.T) {
	spy := &openerSpy{err: errors.New("no table")}

	_, err := runCommand(t, spy, "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open credential store")
}

func TestRootCommand_PasswdReadsFromTerminal(t *testing.T) {
	orig := readPassword
	t.Cleanup(func() { readPassword = orig })
	readPassword = func(fd int) ([]byte, error) { return []byte("hunter2"), nil }

	spy := &openerSpy{repo: credentials.NewMemoryRepository()}
	require.NoError(t, spy.repo.Create(context.Background(),
		&models.Credential{UserID: "1", Username: "u", PasswordHash: "old"}))

	out, err := runCommand(t, spy, "passwd", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "New password:")
	assert.Contains(t, out, "password updated for 1")

	c, err := spy.repo.GetByID(context.Background(), "1")
	require.NoError(t, err)
	assert.NotEqual(t, "old", c.PasswordHash)
}

func TestRootCommand_PasswdReadError(t *testing.T) {
	orig := readPassword
	t.Cleanup(func() { readPassword = orig })
	readPassword = func(fd int) ([]byte, error) { return nil, errors.New("not a terminal") }

	spy := &openerSpy{repo: credentials.NewMemoryRepository()}
	_, err := runCommand(t, spy, "passwd", "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a terminal")
}

func TestOpenRepository_Memory(t *testing.T) {
	repo, closeFn, err := OpenRepository(context.Background(), &config.Config{CredentialBackend: config.BackendMemory})
	require.NoError(t, err)
	require.NotNil(t, repo)
	assert.NoError(t, closeFn())
}

func TestOpenRepository_UnknownBackend(t *testing.T) {
	_, _, err := OpenRepository(context.Background(), &config.Config{CredentialBackend: "etcd"})
	require.Error(t, err)
}
