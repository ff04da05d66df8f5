package report

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
)

// SESSink sends mail through Amazon SES.
type SESSink struct {
	client *sesv2.Client
	from   string
}

var _ NotificationSink = (*SESSink)(nil)

func NewSESSink(client *sesv2.Client, from string) *SESSink {
	return &SESSink{client: client, from: from}
}

func (s *SESSink) Send(ctx context.Context, recipient, subject, body string) error {
	if s.client == nil {
		return fmt.Errorf("ses sink not configured")
	}

	_, err := s.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(s.from),
		Destination: &types.Destination{
			ToAddresses: []string{recipient},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{
					Data:    aws.String(subject),
					Charset: aws.String("UTF-8"),
				},
				Body: &types.Body{
					Html: &types.Content{
						Data:    aws.String(body),
						Charset: aws.String("UTF-8"),
					},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("send via ses: %w", err)
	}
	return nil
}
