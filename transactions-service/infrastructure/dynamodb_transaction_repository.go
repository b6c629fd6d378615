package infrastructure

import (
	"context"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/draftea/booking-system/shared/models"
	"github.com/draftea/booking-system/transactions-service/domain"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

var _ domain.TransactionRepository = (*DynamoDBTransactionRepository)(nil)

// UserIndexName is the GSI keyed by user_id with created_at as range key
const UserIndexName = "user_id-index"

// sortableTime keeps a fixed width so the GSI range key orders lexically
const sortableTime = "2006-01-02T15:04:05.000000000Z"

// DynamoDBAPI is the subset of the DynamoDB client used by the repository
type DynamoDBAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// DynamoDBTransactionRepository implements TransactionRepository on a single
// DynamoDB table with a conditional put per write
type DynamoDBTransactionRepository struct {
	client    DynamoDBAPI
	tableName string
}

func NewDynamoDBTransactionRepository(client DynamoDBAPI, tableName string) *DynamoDBTransactionRepository {
	return &DynamoDBTransactionRepository{
		client:    client,
		tableName: tableName,
	}
}

type dynamoTransaction struct {
	ID          string `dynamodbav:"id"`
	UserID      string `dynamodbav:"user_id"`
	Kind        string `dynamodbav:"kind"`
	Amount      string `dynamodbav:"amount"`
	Reference   string `dynamodbav:"reference,omitempty"`
	State       string `dynamodbav:"state"`
	CreatedAt   string `dynamodbav:"created_at"`
	UpdatedAt   string `dynamodbav:"updated_at"`
	CompletedAt string `dynamodbav:"completed_at,omitempty"`
	Version     int    `dynamodbav:"version"`
}

func (r *DynamoDBTransactionRepository) Create(ctx context.Context, tx *domain.Transaction) error {
	item, err := attributevalue.MarshalMap(toDynamoTransaction(tx))
	if err != nil {
		return errors.Wrap(err, "failed to marshal transaction")
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(id)"),
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return errors.Wrap(domain.ErrTransactionAlreadyExists, tx.ID.String())
		}
		return errors.Wrap(err, "failed to put transaction")
	}

	return nil
}

func (r *DynamoDBTransactionRepository) Update(ctx context.Context, tx *domain.Transaction, expectedVersion int) error {
	item, err := attributevalue.MarshalMap(toDynamoTransaction(tx))
	if err != nil {
		return errors.Wrap(err, "failed to marshal transaction")
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_exists(id) AND version = :expected"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":expected": &types.AttributeValueMemberN{Value: strconv.Itoa(expectedVersion)},
		},
	})
	if err == nil {
		return nil
	}
	if !isConditionalCheckFailed(err) {
		return errors.Wrap(err, "failed to put transaction")
	}

	stored, err := r.FindByID(ctx, tx.ID)
	if err != nil {
		return err
	}
	if stored == nil {
		return domain.ErrTransactionNotFound
	}
	return errors.Wrapf(domain.ErrVersionConflict, "expected version %d, found %d", expectedVersion, stored.Version.Value)
}

func (r *DynamoDBTransactionRepository) FindByID(ctx context.Context, id models.ID) (*domain.Transaction, error) {
	output, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            map[string]types.AttributeValue{"id": &types.AttributeValueMemberS{Value: id.String()}},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to get transaction")
	}
	if len(output.Item) == 0 {
		return nil, nil
	}

	var item dynamoTransaction
	if err := attributevalue.UnmarshalMap(output.Item, &item); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal transaction")
	}
	return item.toDomain()
}

// FindByUserID walks the user index newest first. DynamoDB has no offset, so
// the first offset items are read and discarded.
func (r *DynamoDBTransactionRepository) FindByUserID(ctx context.Context, userID string, limit, offset int) ([]*domain.Transaction, error) {
	want := offset + limit
	if limit <= 0 {
		return []*domain.Transaction{}, nil
	}

	var (
		items    []dynamoTransaction
		startKey map[string]types.AttributeValue
	)

	for {
		output, err := r.client.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(r.tableName),
			IndexName:              aws.String(UserIndexName),
			KeyConditionExpression: aws.String("user_id = :user_id"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":user_id": &types.AttributeValueMemberS{Value: userID},
			},
			ScanIndexForward:  aws.Bool(false),
			Limit:             aws.Int32(int32(want - len(items))),
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, errors.Wrap(err, "failed to query transactions by user ID")
		}

		var page []dynamoTransaction
		if err := attributevalue.UnmarshalListOfMaps(output.Items, &page); err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal transactions")
		}
		items = append(items, page...)

		startKey = output.LastEvaluatedKey
		if len(startKey) == 0 || len(items) >= want {
			break
		}
	}

	if offset >= len(items) {
		return []*domain.Transaction{}, nil
	}
	items = items[offset:]

	txs := make([]*domain.Transaction, 0, len(items))
	for i := range items {
		tx, err := items[i].toDomain()
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	return txs, nil
}

func isConditionalCheckFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}

func toDynamoTransaction(tx *domain.Transaction) *dynamoTransaction {
	item := &dynamoTransaction{
		ID:        tx.ID.String(),
		UserID:    tx.UserID,
		Kind:      string(tx.Kind),
		Amount:    tx.Amount.String(),
		Reference: tx.Reference,
		State:     tx.State().String(),
		CreatedAt: tx.Timestamps.CreatedAt.UTC().Format(sortableTime),
		UpdatedAt: tx.Timestamps.UpdatedAt.UTC().Format(sortableTime),
		Version:   tx.Version.Value,
	}
	if tx.CompletedAt != nil {
		item.CompletedAt = tx.CompletedAt.UTC().Format(sortableTime)
	}
	return item
}

func (d *dynamoTransaction) toDomain() (*domain.Transaction, error) {
	amount, err := decimal.NewFromString(d.Amount)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid amount for transaction %s", d.ID)
	}

	createdAt, err := time.Parse(sortableTime, d.CreatedAt)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid created_at for transaction %s", d.ID)
	}
	updatedAt, err := time.Parse(sortableTime, d.UpdatedAt)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid updated_at for transaction %s", d.ID)
	}

	var completedAt *time.Time
	if d.CompletedAt != "" {
		t, err := time.Parse(sortableTime, d.CompletedAt)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid completed_at for transaction %s", d.ID)
		}
		completedAt = &t
	}

	return domain.RehydrateTransaction(
		models.ID(d.ID),
		d.UserID,
		domain.TransactionKind(d.Kind),
		amount,
		d.Reference,
		domain.TransactionState(d.State),
		models.Timestamps{CreatedAt: createdAt, UpdatedAt: updatedAt},
		completedAt,
		models.Version{Value: d.Version},
	), nil
}
