package dynamo

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-phone-auth/internal/domain"
)

// maxTransactItems is DynamoDB's per-transaction item limit.
const maxTransactItems = 100

// KVStore is a TTL-aware key-value store on a DynamoDB table keyed by "key".
// Expiry is stored as epoch seconds in expires_at. DynamoDB's TTL sweep runs
// lazily, so every read treats a row whose expires_at has passed as absent.
type KVStore struct {
	client    API
	tableName string
	now       func() time.Time
}

func NewKVStore(client API, tableName string) *KVStore {
	return &KVStore{client: client, tableName: tableName, now: time.Now}
}

// Get returns domain.ErrNotFound when the key is absent or expired.
func (s *KVStore) Get(ctx context.Context, key string) (string, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            strKey(fieldKey, key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("dynamo get: %w", err)
	}
	if out.Item == nil || s.expired(out.Item) {
		return "", fmt.Errorf("key %s: %w", key, domain.ErrNotFound)
	}
	switch v := out.Item[fieldValue].(type) {
	case *types.AttributeValueMemberS:
		return v.Value, nil
	case *types.AttributeValueMemberN:
		return v.Value, nil
	}
	return "", fmt.Errorf("key %s: unexpected value type", key)
}

// Set overwrites key. A ttl <= 0 stores the value without expiry.
func (s *KVStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	item := map[string]types.AttributeValue{
		fieldKey:   &types.AttributeValueMemberS{Value: key},
		fieldValue: &types.AttributeValueMemberS{Value: value},
	}
	if ttl > 0 {
		item[fieldExpiresAt] = s.deadline(ttl)
	}
	_, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("dynamo put: %w", err)
	}
	return nil
}

// Incr atomically adds one to the counter at key and returns the new value.
// A missing or expired counter restarts at 1 without expiry.
func (s *KVStore) Incr(ctx context.Context, key string) (int64, error) {
	for i := 0; i < 3; i++ {
		now := s.epoch()
		out, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
			TableName:                 aws.String(s.tableName),
			Key:                       strKey(fieldKey, key),
			UpdateExpression:          aws.String("ADD #v :one"),
			ConditionExpression:       aws.String("attribute_not_exists(#e) OR #e > :now"),
			ExpressionAttributeNames:  map[string]string{"#v": fieldValue, "#e": fieldExpiresAt},
			ExpressionAttributeValues: map[string]types.AttributeValue{":one": numAttr(1), ":now": numAttr(now)},
			ReturnValues:              types.ReturnValueUpdatedNew,
		})
		if err == nil {
			n, ok := out.Attributes[fieldValue].(*types.AttributeValueMemberN)
			if !ok {
				return 0, fmt.Errorf("dynamo incr %s: counter is not a number", key)
			}
			return strconv.ParseInt(n.Value, 10, 64)
		}
		if !isConditionFailed(err) {
			return 0, fmt.Errorf("dynamo incr: %w", err)
		}

		// Expired but not yet swept: replace it with a fresh counter unless a
		// concurrent caller already did.
		_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
			TableName: aws.String(s.tableName),
			Item: map[string]types.AttributeValue{
				fieldKey:   &types.AttributeValueMemberS{Value: key},
				fieldValue: numAttr(1),
			},
			ConditionExpression:       aws.String("#e <= :now"),
			ExpressionAttributeNames:  map[string]string{"#e": fieldExpiresAt},
			ExpressionAttributeValues: map[string]types.AttributeValue{":now": numAttr(now)},
		})
		if err == nil {
			return 1, nil
		}
		if !isConditionFailed(err) {
			return 0, fmt.Errorf("dynamo incr reset: %w", err)
		}
	}
	return 0, fmt.Errorf("dynamo incr %s: too much contention", key)
}

// Expire sets a new TTL on a live key. Like Redis EXPIRE, a missing key is
// left alone.
func (s *KVStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.tableName),
		Key:                       strKey(fieldKey, key),
		UpdateExpression:          aws.String("SET #e = :exp"),
		ConditionExpression:       aws.String("attribute_exists(#k) AND (attribute_not_exists(#e) OR #e > :now)"),
		ExpressionAttributeNames:  map[string]string{"#k": fieldKey, "#e": fieldExpiresAt},
		ExpressionAttributeValues: map[string]types.AttributeValue{":exp": s.deadline(ttl), ":now": numAttr(s.epoch())},
	})
	if err != nil && !isConditionFailed(err) {
		return fmt.Errorf("dynamo expire: %w", err)
	}
	return nil
}

// Del removes every key. More than one key is deleted in a single
// transaction so the removal is all-or-nothing.
func (s *KVStore) Del(ctx context.Context, keys ...string) error {
	switch {
	case len(keys) == 0:
		return nil
	case len(keys) == 1:
		_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName: aws.String(s.tableName),
			Key:       strKey(fieldKey, keys[0]),
		})
		if err != nil {
			return fmt.Errorf("dynamo delete: %w", err)
		}
		return nil
	case len(keys) > maxTransactItems:
		return fmt.Errorf("dynamo delete: %d keys exceeds transaction limit", len(keys))
	}

	items := make([]types.TransactWriteItem, 0, len(keys))
	for _, k := range keys {
		items = append(items, types.TransactWriteItem{Delete: &types.Delete{
			TableName: aws.String(s.tableName),
			Key:       strKey(fieldKey, k),
		}})
	}
	if _, err := s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items}); err != nil {
		return fmt.Errorf("dynamo delete: %w", err)
	}
	return nil
}

func (s *KVStore) Exists(ctx context.Context, key string) (bool, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:                aws.String(s.tableName),
		Key:                      strKey(fieldKey, key),
		ConsistentRead:           aws.Bool(true),
		ProjectionExpression:     aws.String("#k, #e"),
		ExpressionAttributeNames: map[string]string{"#k": fieldKey, "#e": fieldExpiresAt},
	})
	if err != nil {
		return false, fmt.Errorf("dynamo get: %w", err)
	}
	return out.Item != nil && !s.expired(out.Item), nil
}

// Ping is used by the health check.
func (s *KVStore) Ping(ctx context.Context) error {
	_, err := s.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(s.tableName)})
	return err
}

func (s *KVStore) expired(item map[string]types.AttributeValue) bool {
	n, ok := item[fieldExpiresAt].(*types.AttributeValueMemberN)
	if !ok {
		return false
	}
	exp, err := strconv.ParseInt(n.Value, 10, 64)
	if err != nil {
		return false
	}
	return exp <= s.epoch()
}

func (s *KVStore) epoch() int64 { return s.now().Unix() }

func (s *KVStore) deadline(ttl time.Duration) types.AttributeValue {
	return numAttr(s.now().Add(ttl).Unix())
}

func numAttr(n int64) *types.AttributeValueMemberN {
	return &types.AttributeValueMemberN{Value: strconv.FormatInt(n, 10)}
}
