package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// EmailMessage is one outgoing plain text mail
type EmailMessage struct {
	From    string
	To      []string
	Subject string
	Text    string
}

// EmailSender delivers mail
type EmailSender interface {
	Send(ctx context.Context, msg EmailMessage) error
}

// SESAPI is the part of the SES client used for delivery
type SESAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESEmailSender sends emails using AWS SES
type SESEmailSender struct {
	client SESAPI
	logger *slog.Logger
}

// NewSESEmailSender loads the default AWS credential chain for region
func NewSESEmailSender(ctx context.Context, region string, logger *slog.Logger) (*SESEmailSender, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewSESEmailSenderWithClient(ses.NewFromConfig(cfg), logger), nil
}

func NewSESEmailSenderWithClient(client SESAPI, logger *slog.Logger) *SESEmailSender {
	return &SESEmailSender{client: client, logger: logger}
}

func (s *SESEmailSender) Send(ctx context.Context, msg EmailMessage) error {
	input := &ses.SendEmailInput{
		Source: aws.String(msg.From),
		Destination: &types.Destination{
			ToAddresses: msg.To,
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(msg.Subject)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(msg.Text)},
			},
		},
	}

	result, err := s.client.SendEmail(ctx, input)
	if err != nil {
		s.logger.Error("failed to send email via SES", slog.Any("error", err))
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Info("email sent", slog.String("message_id", aws.ToString(result.MessageId)))
	return nil
}

// LogEmailSender writes mail to the log instead of delivering it. Used when
// SES is not enabled.
type LogEmailSender struct {
	logger *slog.Logger
}

func NewLogEmailSender(logger *slog.Logger) *LogEmailSender {
	return &LogEmailSender{logger: logger}
}

func (s *LogEmailSender) Send(ctx context.Context, msg EmailMessage) error {
	s.logger.InfoContext(ctx, "email delivery disabled, message dropped",
		slog.String("subject", msg.Subject),
		slog.Int("recipients", len(msg.To)),
	)
	return nil
}
