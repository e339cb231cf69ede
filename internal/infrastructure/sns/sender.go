package sns

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/aws/smithy-go"
	"github.com/go-phone-auth/internal/config"
	"github.com/go-phone-auth/internal/pkg/notify"
)

type publisher interface {
	Publish(ctx context.Context, in *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// Sender delivers transactional SMS through AWS SNS.
type Sender struct {
	client   publisher
	senderID string
	timeout  time.Duration
}

// NewClient creates an SNS client. AWSEndpointURL redirects it to LocalStack.
func NewClient(ctx context.Context, cfg *config.Config) (*sns.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.SNSRegion),
	}
	if cfg.AWSAccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	clientOpts := []func(*sns.Options){}
	if cfg.AWSEndpointURL != "" {
		clientOpts = append(clientOpts, func(o *sns.Options) {
			o.BaseEndpoint = aws.String(cfg.AWSEndpointURL)
		})
	}
	return sns.NewFromConfig(awsCfg, clientOpts...), nil
}

func NewSender(client publisher, senderID string, timeout time.Duration) *Sender {
	return &Sender{client: client, senderID: senderID, timeout: timeout}
}

// SendSMS publishes body to the phone number and returns the SNS message id.
// Failures are returned as *notify.Error.
func (s *Sender) SendSMS(ctx context.Context, to, body string) (string, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	attrs := map[string]types.MessageAttributeValue{
		"AWS.SNS.SMS.SMSType": {DataType: aws.String("String"), StringValue: aws.String("Transactional")},
	}
	if s.senderID != "" {
		attrs["AWS.SNS.SMS.SenderID"] = types.MessageAttributeValue{DataType: aws.String("String"), StringValue: aws.String(s.senderID)}
	}

	out, err := s.client.Publish(ctx, &sns.PublishInput{
		PhoneNumber:       aws.String(to),
		Message:           aws.String(body),
		MessageAttributes: attrs,
	})
	if err != nil {
		return "", classify(err)
	}
	return aws.ToString(out.MessageId), nil
}

// classify maps an SNS API error onto a notify.Reason.
func classify(err error) *notify.Error {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return &notify.Error{Reason: notify.ReasonUnknown, Detail: err.Error()}
	}
	code, msg := apiErr.ErrorCode(), apiErr.ErrorMessage()
	ne := &notify.Error{Reason: notify.ReasonUnknown, Code: code, Detail: msg}

	switch {
	case strings.Contains(strings.ToLower(msg), "sandbox"):
		ne.Reason = notify.ReasonUnverifiedTrialNumber
	case code == "VerificationException", code == "UserErrorException":
		ne.Reason = notify.ReasonUnverifiedTrialNumber
	case code == "InvalidParameter", code == "InvalidParameterValue":
		ne.Reason = notify.ReasonInvalidPhoneFormat
	case code == "AuthorizationError", code == "OptedOut":
		ne.Reason = notify.ReasonPermissionDenied
	case code == "EndpointDisabled":
		ne.Reason = notify.ReasonNotMobileNumber
	}
	return ne
}
