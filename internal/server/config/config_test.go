package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.Equal(t, ":8080", c.EndpointAddrHTTP)
	assert.Equal(t, ":50051", c.EndpointAddrGRPC)
	assert.Equal(t, "!", c.CommandPrefix)
	assert.Equal(t, BackendDynamoDB, c.CredentialBackend)
	assert.Equal(t, "users", c.CredentialTableName)
	assert.Equal(t, "us-east-1", c.AWSRegion)
	assert.Equal(t, "info", c.LogLevel)
	assert.Equal(t, 10*time.Second, c.ShutdownTimeout)
	assert.Equal(t, "http://link-para-o-modulo1.com", c.Modules["modulo1"])
	assert.Len(t, c.Modules, 3)
	assert.False(t, c.ArchiveEnabled())
}

func TestLoad_NoSourcesUsesDefaults(t *testing.T) {
	c, err := Load(nil)
	require.NoError(t, err)
	require.NotNil(t, c)

	var want Config
	want.LoadDefaults()
	assert.Equal(t, want.EndpointAddrHTTP, c.EndpointAddrHTTP)
	assert.Equal(t, want.CredentialBackend, c.CredentialBackend)
	assert.Equal(t, want.Modules, c.Modules)
}

func TestLoad_FlagsOverrideEnv(t *testing.T) {
	t.Setenv("SECRET_KEY", "from-env")
	t.Setenv("USERS_TABLE", "env-table")

	c, err := Load([]string{"-s", "from-flag"})
	require.NoError(t, err)

	assert.Equal(t, "from-flag", c.LoginToken)
	assert.Equal(t, "env-table", c.CredentialTableName)
}

func TestValidateServer(t *testing.T) {
	var c Config
	c.LoadDefaults()

	err := c.ValidateServer()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingLoginToken)
	assert.ErrorIs(t, err, ErrMissingGuild)
	assert.ErrorIs(t, err, ErrMissingGate)

	c.LoginToken = "token"
	c.GuildID = "guild"
	c.GatedChannelID = "auth"
	assert.NoError(t, c.ValidateServer())
}
