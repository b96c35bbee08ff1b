package services

import (
	"context"
	"fmt"
	"log"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/example/comcin/internal/metrics"
)

// Mailer delivers plaintext email.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SESMailer sends mail through Amazon SES v2.
type SESMailer struct {
	client *sesv2.Client
	from   string
}

// NewSESMailer builds an SES client from static credentials.
func NewSESMailer(ctx context.Context, accessKey, secretKey, session, region, from string) (*SESMailer, error) {
	if accessKey == "" || secretKey == "" {
		return nil, fmt.Errorf("accessKey or secretKey is empty")
	}

	cred := credentials.NewStaticCredentialsProvider(accessKey, secretKey, session)
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithCredentialsProvider(cred), awsconfig.WithRegion(region))
	if err != nil {
		return nil, err
	}

	return &SESMailer{client: sesv2.NewFromConfig(cfg), from: from}, nil
}

// Send delivers a plaintext message to a single recipient.
func (m *SESMailer) Send(ctx context.Context, to, subject, body string) error {
	input := &sesv2.SendEmailInput{
		FromEmailAddress: &m.from,
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: &subject},
				Body: &types.Body{
					Text: &types.Content{Data: &body},
				},
			},
		},
	}

	output, err := m.client.SendEmail(ctx, input)
	if err != nil {
		return err
	}
	if output == nil {
		return fmt.Errorf("output is nil")
	}
	return nil
}

// LogMailer writes messages to the log. Used when SES is not configured.
type LogMailer struct{}

func (LogMailer) Send(_ context.Context, to, subject, body string) error {
	log.Printf("[Mailer] to=%s subject=%q body=%q", to, subject, body)
	return nil
}

// sendBestEffort sends mail without failing the caller.
func sendBestEffort(ctx context.Context, mailer Mailer, to, subject, body string) {
	if mailer == nil {
		return
	}
	if err := mailer.Send(ctx, to, subject, body); err != nil {
		metrics.MailFailures.Inc()
		log.Printf("[Mailer] failed to send %q to %s: %v", subject, to, err)
	}
}
