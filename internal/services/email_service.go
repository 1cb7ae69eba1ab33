package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/attested/roster/internal/models"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// AWSSESEmailService sends account emails using AWS SES
type AWSSESEmailService struct {
	sesClient   *ses.Client
	fromAddress string
	baseURL     string
	logger      *slog.Logger
}

// NewAWSSESEmailService creates a new AWS SES email service
func NewAWSSESEmailService(region, fromAddress, baseURL string, logger *slog.Logger) (*AWSSESEmailService, error) {
	cfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &AWSSESEmailService{
		sesClient:   ses.NewFromConfig(cfg),
		fromAddress: fromAddress,
		baseURL:     baseURL,
		logger:      logger,
	}, nil
}

// SendConfirmation emails the target user that their account awaits
// confirmation, including the self-service activation link when the
// account still holds an invite code.
func (s *AWSSESEmailService) SendConfirmation(ctx context.Context, user *models.User) error {
	subject := "Confirm your account"

	textBody := fmt.Sprintf(`Hi %s,

Your account is waiting for confirmation.
`, user.Username)

	if user.InviteCode != "" {
		confirmLink := fmt.Sprintf("%s/users/%s/confirm?invite_code=%s", s.baseURL, user.Username, user.InviteCode)
		textBody += fmt.Sprintf(`
Use the link below to activate it:

%s
`, confirmLink)
	}

	textBody += `
If you did not request this account, you can ignore this email.
`

	return s.send(ctx, user, subject, textBody)
}

// SendPasswordReset emails an activated user that has no password set.
func (s *AWSSESEmailService) SendPasswordReset(ctx context.Context, user *models.User) error {
	subject := "Set your password"

	resetLink := fmt.Sprintf("%s/users/%s/password-reset", s.baseURL, user.Username)

	textBody := fmt.Sprintf(`Hi %s,

Your account is active, but no password has been set yet.
Visit the link below to choose one:

%s

If you did not request this, you can ignore this email.
`, user.Username, resetLink)

	return s.send(ctx, user, subject, textBody)
}

func (s *AWSSESEmailService) send(ctx context.Context, user *models.User, subject, textBody string) error {
	input := &ses.SendEmailInput{
		Source: aws.String(s.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{user.Email},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data: aws.String(subject),
			},
			Body: &types.Body{
				Text: &types.Content{
					Data: aws.String(textBody),
				},
			},
		},
	}

	result, err := s.sesClient.SendEmail(ctx, input)
	if err != nil {
		s.logger.Error("failed to send email via SES",
			slog.String("user_id", user.ID),
			slog.Any("error", err))
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Info("email sent",
		slog.String("user_id", user.ID),
		slog.String("message_id", *result.MessageId))

	return nil
}
