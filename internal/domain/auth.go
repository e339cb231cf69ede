package domain

// PhoneRequest starts or repeats the OTP flow for a phone number.
type PhoneRequest struct {
	PhoneNumber string `json:"phone_number" validate:"required,phone"`
}

type VerifyOTPRequest struct {
	PhoneNumber string `json:"phone_number" validate:"required,phone"`
	OTP         string `json:"otp" validate:"required,numeric,min=4,max=10"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}
