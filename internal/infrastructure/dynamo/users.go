package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-phone-auth/internal/domain"
)

const phoneIndex = "phone-index"

// phoneGuardPrefix marks the rows that reserve a phone number. A guard row
// lives in the users table under user_id "phone#<number>" with the owning
// user's id in owner_id. It carries no phone attribute, so it never shows up
// in phone-index.
const phoneGuardPrefix = "phone#"

// UserRepo provides typed DynamoDB operations for the users table. Phone
// uniqueness is enforced by writing a guard row in the same transaction as the
// user row, since a GSI cannot reject duplicates.
type UserRepo struct {
	client    API
	tableName string
}

func NewUserRepo(client API, tableName string) *UserRepo {
	return &UserRepo{client: client, tableName: tableName}
}

// FindByID returns domain.ErrNotFound for missing or soft-deleted users.
func (r *UserRepo) FindByID(ctx context.Context, userID string) (*domain.User, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            strKey(fieldUserID, userID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if out.Item == nil {
		return nil, fmt.Errorf("user %s: %w", userID, domain.ErrNotFound)
	}
	var u domain.User
	if err := attributevalue.UnmarshalMap(out.Item, &u); err != nil {
		return nil, fmt.Errorf("unmarshal user: %w", err)
	}
	if u.DeletedAt != nil {
		return nil, fmt.Errorf("user %s: %w", userID, domain.ErrNotFound)
	}
	return &u, nil
}

// FindByPhone looks the number up through phone-index. The index is
// eventually consistent, so a user created a moment ago may not be visible yet.
func (r *UserRepo) FindByPhone(ctx context.Context, phone string) (*domain.User, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		IndexName:                 aws.String(phoneIndex),
		KeyConditionExpression:    aws.String("#a = :v"),
		ExpressionAttributeNames:  map[string]string{"#a": fieldPhone},
		ExpressionAttributeValues: map[string]types.AttributeValue{":v": &types.AttributeValueMemberS{Value: phone}},
	})
	if err != nil {
		return nil, fmt.Errorf("query users by phone: %w", err)
	}
	var users []domain.User
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &users); err != nil {
		return nil, fmt.Errorf("unmarshal users: %w", err)
	}
	for i := range users {
		if users[i].DeletedAt == nil {
			return &users[i], nil
		}
	}
	return nil, fmt.Errorf("user with phone %s: %w", phone, domain.ErrNotFound)
}

// Create writes a new user and, when it has a phone, the guard reserving it.
// It returns domain.ErrConflict when the id or the phone is already taken.
func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	item, err := attributevalue.MarshalMap(u)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}
	items := []types.TransactWriteItem{{
		Put: &types.Put{
			TableName:                aws.String(r.tableName),
			Item:                     item,
			ConditionExpression:      aws.String("attribute_not_exists(#id)"),
			ExpressionAttributeNames: map[string]string{"#id": fieldUserID},
		},
	}}
	if u.Phone != nil {
		items = append(items, r.reservePhone(*u.Phone, u.UserID))
	}
	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items})
	if isTransactionCanceled(err) {
		return fmt.Errorf("create user %s: %w", u.PhoneValue(), domain.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r *UserRepo) UpdateVerification(ctx context.Context, userID string, verified bool) error {
	return r.Update(ctx, userID, map[string]interface{}{fieldPhoneVerified: verified})
}

func (r *UserRepo) UpdateRefreshToken(ctx context.Context, userID, token string) error {
	return r.Update(ctx, userID, map[string]interface{}{fieldRefreshToken: token})
}

// AttachPhone moves u onto phone as an unverified number. The new number is
// reserved and the old reservation, if any, released in one transaction.
// Returns domain.ErrConflict when another user holds the number.
func (r *UserRepo) AttachPhone(ctx context.Context, u *domain.User, phone string) error {
	ue, err := buildUpdateExpr(map[string]interface{}{
		fieldPhone:         phone,
		fieldPhoneVerified: false,
		fieldUpdatedAt:     time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	ue.Names["#id"] = fieldUserID
	items := []types.TransactWriteItem{
		r.reservePhone(phone, u.UserID),
		{Update: &types.Update{
			TableName:                 aws.String(r.tableName),
			Key:                       strKey(fieldUserID, u.UserID),
			UpdateExpression:          aws.String(ue.Expr),
			ConditionExpression:       aws.String("attribute_exists(#id)"),
			ExpressionAttributeNames:  ue.Names,
			ExpressionAttributeValues: ue.Values,
		}},
	}
	if old := u.PhoneValue(); old != "" && old != phone {
		items = append(items, types.TransactWriteItem{Delete: &types.Delete{
			TableName:                 aws.String(r.tableName),
			Key:                       strKey(fieldUserID, phoneGuardPrefix+old),
			ConditionExpression:       aws.String("attribute_not_exists(#id) OR #o = :owner"),
			ExpressionAttributeNames:  map[string]string{"#id": fieldUserID, "#o": fieldOwnerID},
			ExpressionAttributeValues: map[string]types.AttributeValue{":owner": &types.AttributeValueMemberS{Value: u.UserID}},
		}})
	}
	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items})
	if isTransactionCanceled(err) {
		return fmt.Errorf("attach phone %s: %w", phone, domain.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("attach phone: %w", err)
	}
	return nil
}

// Update applies a partial update to an existing user and stamps updated_at.
// Returns domain.ErrNotFound when the user does not exist.
func (r *UserRepo) Update(ctx context.Context, userID string, updates map[string]interface{}) error {
	updates[fieldUpdatedAt] = time.Now().UTC()
	ue, err := buildUpdateExpr(updates)
	if err != nil {
		return err
	}
	ue.Names["#id"] = fieldUserID
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey(fieldUserID, userID),
		UpdateExpression:          aws.String(ue.Expr),
		ConditionExpression:       aws.String("attribute_exists(#id)"),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	if isConditionFailed(err) {
		return fmt.Errorf("user %s: %w", userID, domain.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

// reservePhone claims phone for ownerID. Re-claiming a number the owner
// already holds succeeds.
func (r *UserRepo) reservePhone(phone, ownerID string) types.TransactWriteItem {
	return types.TransactWriteItem{Put: &types.Put{
		TableName: aws.String(r.tableName),
		Item: map[string]types.AttributeValue{
			fieldUserID:  &types.AttributeValueMemberS{Value: phoneGuardPrefix + phone},
			fieldOwnerID: &types.AttributeValueMemberS{Value: ownerID},
		},
		ConditionExpression:       aws.String("attribute_not_exists(#id) OR #o = :owner"),
		ExpressionAttributeNames:  map[string]string{"#id": fieldUserID, "#o": fieldOwnerID},
		ExpressionAttributeValues: map[string]types.AttributeValue{":owner": &types.AttributeValueMemberS{Value: ownerID}},
	}}
}
