package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/oklog/ulid/v2"

	"line-memo-relay/internal/domain"
)

const skMode = "MODE#"

// dynamodbAPI is the minimal DynamoDB interface required by DynamoStore.
// Defined here for testability.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// DynamoStore keeps every user's lists and mode in one table.
//
//	PK = USER#<userId>
//	SK = MODE#             mode item
//	SK = <KIND>#<ulid>     one item per list entry, ordered by insertion
type DynamoStore struct {
	api       dynamodbAPI
	tableName string
	newID     func() string
}

// NewDynamoStore creates a DynamoStore over tableName.
func NewDynamoStore(api dynamodbAPI, tableName string) (*DynamoStore, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &DynamoStore{
		api:       api,
		tableName: tableName,
		newID:     func() string { return ulid.Make().String() },
	}, nil
}

// userPK returns the partition key for a user.
func userPK(userID string) string {
	return "USER#" + userID
}

// entryPrefix returns the sort-key prefix for a list.
func entryPrefix(kind domain.ListKind) string {
	return string(kind) + "#"
}

// Append stores text as the last entry of the list. ULIDs are monotonic, so
// the sort key preserves insertion order.
func (s *DynamoStore) Append(ctx context.Context, userID string, kind domain.ListKind, text string) error {
	if !kind.Valid() {
		return fmt.Errorf("repository: Append: unsupported list kind %q", kind)
	}
	_, err := s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item: map[string]types.AttributeValue{
			"PK":   &types.AttributeValueMemberS{Value: userPK(userID)},
			"SK":   &types.AttributeValueMemberS{Value: entryPrefix(kind) + s.newID()},
			"text": &types.AttributeValueMemberS{Value: text},
		},
		ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
	})
	if err != nil {
		return fmt.Errorf("repository: Append: %w", err)
	}
	return nil
}

// List returns the entries of a list in insertion order.
func (s *DynamoStore) List(ctx context.Context, userID string, kind domain.ListKind) ([]string, error) {
	items, err := s.queryEntries(ctx, userID, kind)
	if err != nil {
		return nil, fmt.Errorf("repository: List: %w", err)
	}
	entries := make([]string, 0, len(items))
	for _, item := range items {
		text, err := strAttr(item, "text")
		if err != nil {
			return nil, fmt.Errorf("repository: List unmarshal: %w", err)
		}
		entries = append(entries, text)
	}
	return entries, nil
}

// DeleteAt removes the entry at the 1-based index. Later entries move up by
// one because ordering comes from the sort key, not a stored position.
func (s *DynamoStore) DeleteAt(ctx context.Context, userID string, kind domain.ListKind, index int) error {
	items, err := s.queryEntries(ctx, userID, kind)
	if err != nil {
		return fmt.Errorf("repository: DeleteAt: %w", err)
	}
	if index < 1 || index > len(items) {
		return domain.ErrIndexOutOfRange
	}
	sk, err := strAttr(items[index-1], "SK")
	if err != nil {
		return fmt.Errorf("repository: DeleteAt unmarshal: %w", err)
	}
	_, err = s.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: userPK(userID)},
			"SK": &types.AttributeValueMemberS{Value: sk},
		},
		ConditionExpression: aws.String("attribute_exists(SK)"),
	})
	if err != nil {
		return fmt.Errorf("repository: DeleteAt: %w", err)
	}
	return nil
}

func (s *DynamoStore) queryEntries(ctx context.Context, userID string, kind domain.ListKind) ([]map[string]types.AttributeValue, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("unsupported list kind %q", kind)
	}
	in := &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: userPK(userID)},
			":prefix": &types.AttributeValueMemberS{Value: entryPrefix(kind)},
		},
		ScanIndexForward: aws.Bool(true),
		ConsistentRead:   aws.Bool(true),
	}

	var items []map[string]types.AttributeValue
	for {
		out, err := s.api.Query(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("query: %w", err)
		}
		if out == nil {
			break
		}
		items = append(items, out.Items...)
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		in.ExclusiveStartKey = out.LastEvaluatedKey
	}
	return items, nil
}

// GetMode returns the stored mode, Idle when none is stored.
func (s *DynamoStore) GetMode(ctx context.Context, userID string) (domain.UserMode, error) {
	out, err := s.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            modeKey(userID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return domain.ModeIdle, fmt.Errorf("repository: GetMode get item: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return domain.ModeIdle, nil
	}
	raw, err := strAttr(out.Item, "mode")
	if err != nil {
		return domain.ModeIdle, fmt.Errorf("repository: GetMode decode mode: %w", err)
	}
	mode, err := domain.ParseUserMode(raw)
	if err != nil {
		return domain.ModeIdle, fmt.Errorf("repository: GetMode: %w", err)
	}
	return mode, nil
}

// SetMode stores mode, replacing any previous value. Setting Idle clears it.
func (s *DynamoStore) SetMode(ctx context.Context, userID string, mode domain.UserMode) error {
	if mode == domain.ModeIdle {
		return s.ClearMode(ctx, userID)
	}
	item := modeKey(userID)
	item["mode"] = &types.AttributeValueMemberS{Value: mode.String()}
	_, err := s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("repository: SetMode: %w", err)
	}
	return nil
}

// ClearMode removes the stored mode.
func (s *DynamoStore) ClearMode(ctx context.Context, userID string) error {
	_, err := s.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key:       modeKey(userID),
	})
	if err != nil {
		return fmt.Errorf("repository: ClearMode: %w", err)
	}
	return nil
}

func modeKey(userID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: userPK(userID)},
		"SK": &types.AttributeValueMemberS{Value: skMode},
	}
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("repository: missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("repository: attribute %q is not a string", key)
	}
	return s.Value, nil
}
