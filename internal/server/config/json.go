package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/guildkeeper/internal/flagx"
	"github.com/dmitrijs2005/guildkeeper/internal/timex"
)

// JsonConfig is the on-disk shape of the config file. Durations use
// timex.Duration so they can be written as "10s" or as nanoseconds.
type JsonConfig struct {
	EndpointAddrHTTP    string            `json:"endpoint_addr_http"`
	EndpointAddrGRPC    string            `json:"endpoint_addr_grpc"`
	LoginToken          string            `json:"login_token"`
	GuildID             string            `json:"guild_id"`
	ViewerRoleID        string            `json:"viewer_role_id"`
	AuthenticatedRoleID string            `json:"authenticated_role_id"`
	GatedChannelID      string            `json:"gated_channel_id"`
	BotAuthorID         string            `json:"bot_author_id"`
	CommandPrefix       string            `json:"command_prefix"`
	CredentialBackend   string            `json:"credential_backend"`
	CredentialTableName string            `json:"credential_table_name"`
	DatabaseDSN         string            `json:"database_dsn"`
	AWSRegion           string            `json:"aws_region"`
	DynamoDBEndpoint    string            `json:"dynamodb_endpoint"`
	S3RootUser          string            `json:"s3_root_user"`
	S3RootPassword      string            `json:"s3_root_password"`
	S3Bucket            string            `json:"s3_bucket"`
	S3Region            string            `json:"s3_region"`
	S3BaseEndpoint      string            `json:"s3_base_endpoint"`
	Modules             map[string]string `json:"modules"`
	LogLevel            string            `json:"log_level"`
	ShutdownTimeout     timex.Duration    `json:"shutdown_timeout"`
}

// parseJson overlays Config with the JSON file named by -c/-config.
// Keys missing from the file keep their current values. A missing flag
// means no file is read.
func parseJson(config *Config, args []string) error {
	path := flagx.ConfigFile(args)
	if path == "" {
		return nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		return fmt.Errorf("decode config file: %w", err)
	}

	overlay := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}

	overlay(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	overlay(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	overlay(&config.LoginToken, c.LoginToken)
	overlay(&config.GuildID, c.GuildID)
	overlay(&config.ViewerRoleID, c.ViewerRoleID)
	overlay(&config.AuthenticatedRoleID, c.AuthenticatedRoleID)
	overlay(&config.GatedChannelID, c.GatedChannelID)
	overlay(&config.BotAuthorID, c.BotAuthorID)
	overlay(&config.CommandPrefix, c.CommandPrefix)
	overlay(&config.CredentialBackend, c.CredentialBackend)
	overlay(&config.CredentialTableName, c.CredentialTableName)
	overlay(&config.DatabaseDSN, c.DatabaseDSN)
	overlay(&config.AWSRegion, c.AWSRegion)
	overlay(&config.DynamoDBEndpoint, c.DynamoDBEndpoint)
	overlay(&config.S3RootUser, c.S3RootUser)
	overlay(&config.S3RootPassword, c.S3RootPassword)
	overlay(&config.S3Bucket, c.S3Bucket)
	overlay(&config.S3Region, c.S3Region)
	overlay(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	overlay(&config.LogLevel, c.LogLevel)

	if len(c.Modules) > 0 {
		config.Modules = c.Modules
	}
	if c.ShutdownTimeout.Duration > 0 {
		config.ShutdownTimeout = c.ShutdownTimeout.Duration
	}

	return nil
}
