// Package mailer delivers authcodes by email through Amazon SES.
package mailer

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
)

const (
	subject  = "Your login code"
	bodyText = "Your one-time login code is:\n\n    %s\n\nIt expires in a few minutes. If you did not request it, ignore this email."
)

// SendEmailAPI is the slice of the SES client this package uses.
type SendEmailAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SES sends authcode emails from a fixed verified sender address.
type SES struct {
	api  SendEmailAPI
	from string
}

func NewSES(api SendEmailAPI, from string) *SES {
	return &SES{api: api, from: from}
}

func (s *SES) Send(ctx context.Context, email, code string) error {
	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(s.from),
		Destination: &types.Destination{
			ToAddresses: []string{email},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(subject)},
				Body: &types.Body{
					Text: &types.Content{Data: aws.String(fmt.Sprintf(bodyText, code))},
				},
			},
		},
	}

	if _, err := s.api.SendEmail(ctx, input); err != nil {
		return fmt.Errorf("ses send to %s: %w", email, err)
	}
	return nil
}
