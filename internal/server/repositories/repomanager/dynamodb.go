package repomanager

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/dmitrijs2005/guildkeeper/internal/server/config"
	"github.com/dmitrijs2005/guildkeeper/internal/server/repositories/credentials"
)

var (
	loadDefaultAWSConfig = awsconfig.LoadDefaultConfig

	newDynamoClientFromConfig = func(cfg aws.Config, optFns ...func(*dynamodb.Options)) credentials.DynamoAPI {
		return dynamodb.NewFromConfig(cfg, optFns...)
	}
)

// DynamoRepositoryManager serves credentials from a DynamoDB table. The
// table is provisioned outside the bot, so there is nothing to migrate.
type DynamoRepositoryManager struct {
	repo *credentials.DynamoRepository
}

// NewDynamoRepositoryManager resolves AWS credentials the standard way
// (environment, shared config, instance role). DynamoDBEndpoint, when set,
// points the client at a local emulator.
func NewDynamoRepositoryManager(ctx context.Context, cfg *config.Config) (*DynamoRepositoryManager, error) {
	awsCfg, err := loadDefaultAWSConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := newDynamoClientFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.DynamoDBEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.DynamoDBEndpoint)
		}
	})

	return &DynamoRepositoryManager{
		repo: credentials.NewDynamoRepository(client, cfg.CredentialTableName),
	}, nil
}

func (m *DynamoRepositoryManager) RunMigrations(ctx context.Context) error { return nil }

func (m *DynamoRepositoryManager) Credentials() credentials.Repository { return m.repo }

func (m *DynamoRepositoryManager) Close() error { return nil }
