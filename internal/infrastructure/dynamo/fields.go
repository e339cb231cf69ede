package dynamo

// DynamoDB attribute names used in expressions across the repos.
const (
	fieldUserID        = "user_id"
	fieldPhone         = "phone"
	fieldPhoneVerified = "phone_verified"
	fieldRefreshToken  = "refresh_token"
	fieldUpdatedAt     = "updated_at"
	fieldOwnerID       = "owner_id"

	fieldKey       = "key"
	fieldValue     = "value"
	fieldExpiresAt = "expires_at"
)
