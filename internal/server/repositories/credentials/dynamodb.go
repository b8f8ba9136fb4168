package credentials

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/dmitrijs2005/guildkeeper/internal/common"
	"github.com/dmitrijs2005/guildkeeper/internal/server/models"
)

// Attribute names of the users table. They match the table the bot was
// first deployed against so existing data keeps working.
const (
	attrUserID   = "UserId"
	attrUsername = "username"
	attrPassword = "password"

	// BatchWriteItem accepts at most 25 requests.
	batchWriteLimit = 25
)

// DynamoAPI is the subset of *dynamodb.Client used by DynamoRepository.
type DynamoAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Scan(ctx context.Context, in *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	BatchWriteItem(ctx context.Context, in *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
}

// DynamoRepository stores credentials in a DynamoDB table keyed by UserId.
type DynamoRepository struct {
	client DynamoAPI
	table  string
}

func NewDynamoRepository(client DynamoAPI, table string) *DynamoRepository {
	return &DynamoRepository{client: client, table: table}
}

func (r *DynamoRepository) key(userID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		attrUserID: &types.AttributeValueMemberS{Value: userID},
	}
}

// item is the stored shape of a credential.
type item struct {
	UserID   string `dynamodbav:"UserId"`
	Username string `dynamodbav:"username"`
	Password string `dynamodbav:"password"`
}

func toItem(c *models.Credential) (map[string]types.AttributeValue, error) {
	av, err := attributevalue.MarshalMap(item{UserID: c.UserID, Username: c.Username, Password: c.PasswordHash})
	if err != nil {
		return nil, fmt.Errorf("dynamodb marshal: %w", err)
	}
	return av, nil
}

func fromItem(av map[string]types.AttributeValue) (*models.Credential, error) {
	var it item
	if err := attributevalue.UnmarshalMap(av, &it); err != nil {
		return nil, fmt.Errorf("dynamodb unmarshal: %w", err)
	}
	return &models.Credential{UserID: it.UserID, Username: it.Username, PasswordHash: it.Password}, nil
}

func isConditionFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}

func (r *DynamoRepository) GetAll(ctx context.Context) (map[string]*models.Credential, error) {
	out := make(map[string]*models.Credential)

	p := dynamodb.NewScanPaginator(r.client, &dynamodb.ScanInput{TableName: aws.String(r.table)})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("dynamodb scan: %w", err)
		}
		for _, av := range page.Items {
			c, err := fromItem(av)
			if err != nil {
				return nil, err
			}
			out[c.UserID] = c
		}
	}
	return out, nil
}

func (r *DynamoRepository) GetByID(ctx context.Context, userID string) (*models.Credential, error) {
	res, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.table),
		Key:       r.key(userID),
	})
	if err != nil {
		return nil, fmt.Errorf("dynamodb get: %w", err)
	}
	if len(res.Item) == 0 {
		return nil, common.ErrorNotFound
	}
	return fromItem(res.Item)
}

// Create writes the item only if no item with the same UserId exists.
func (r *DynamoRepository) Create(ctx context.Context, c *models.Credential) error {
	av, err := toItem(c)
	if err != nil {
		return err
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(r.table),
		Item:                     av,
		ConditionExpression:      aws.String("attribute_not_exists(#id)"),
		ExpressionAttributeNames: map[string]string{"#id": attrUserID},
	})
	if err != nil {
		if isConditionFailed(err) {
			return common.ErrorAlreadyExists
		}
		return fmt.Errorf("dynamodb put: %w", err)
	}
	return nil
}

func (r *DynamoRepository) PutAll(ctx context.Context, creds map[string]*models.Credential) error {
	requests := make([]types.WriteRequest, 0, len(creds))
	for _, c := range creds {
		av, err := toItem(c)
		if err != nil {
			return err
		}
		requests = append(requests, types.WriteRequest{PutRequest: &types.PutRequest{Item: av}})
	}

	for start := 0; start < len(requests); start += batchWriteLimit {
		end := min(start+batchWriteLimit, len(requests))

		res, err := r.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: map[string][]types.WriteRequest{r.table: requests[start:end]},
		})
		if err != nil {
			return fmt.Errorf("dynamodb batch write: %w", err)
		}
		if left := len(res.UnprocessedItems[r.table]); left > 0 {
			return fmt.Errorf("dynamodb batch write: %d items unprocessed", left)
		}
	}
	return nil
}

func (r *DynamoRepository) Update(ctx context.Context, c *models.Credential) error {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.table),
		Key:                 r.key(c.UserID),
		UpdateExpression:    aws.String("SET #u = :username, #p = :password"),
		ConditionExpression: aws.String("attribute_exists(#id)"),
		ExpressionAttributeNames: map[string]string{
			"#id": attrUserID,
			"#u":  attrUsername,
			"#p":  attrPassword,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":username": &types.AttributeValueMemberS{Value: c.Username},
			":password": &types.AttributeValueMemberS{Value: c.PasswordHash},
		},
	})
	if err != nil {
		if isConditionFailed(err) {
			return common.ErrorNotFound
		}
		return fmt.Errorf("dynamodb update: %w", err)
	}
	return nil
}

func (r *DynamoRepository) Delete(ctx context.Context, userID string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:                aws.String(r.table),
		Key:                      r.key(userID),
		ConditionExpression:      aws.String("attribute_exists(#id)"),
		ExpressionAttributeNames: map[string]string{"#id": attrUserID},
	})
	if err != nil {
		if isConditionFailed(err) {
			return common.ErrorNotFound
		}
		return fmt.Errorf("dynamodb delete: %w", err)
	}
	return nil
}
