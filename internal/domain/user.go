package domain

import "time"

// User is the minimal account record needed to attach a verified phone number.
// Phone is nil until a number is attached; it is unique across users once verified.
type User struct {
	UserID        string     `json:"id" dynamodbav:"user_id"`
	Phone         *string    `json:"phone" dynamodbav:"phone,omitempty"`
	Email         *string    `json:"email" dynamodbav:"email,omitempty"`
	PhoneVerified bool       `json:"is_phone_verified" dynamodbav:"phone_verified"`
	RefreshToken  *string    `json:"-" dynamodbav:"refresh_token,omitempty"`
	CreatedAt     time.Time  `json:"created" dynamodbav:"created_at"`
	UpdatedAt     time.Time  `json:"updated" dynamodbav:"updated_at"`
	DeletedAt     *time.Time `json:"deleted_at,omitempty" dynamodbav:"deleted_at,omitempty"`
}

// PhoneValue returns the phone number or "" when none is attached.
func (u *User) PhoneValue() string {
	if u == nil || u.Phone == nil {
		return ""
	}
	return *u.Phone
}

type AttachPhoneRequest struct {
	PhoneNumber string `json:"phone_number" validate:"required,phone"`
}
