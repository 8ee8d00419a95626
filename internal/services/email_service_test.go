package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BradenHooton/csm/internal/models"
	"github.com/BradenHooton/csm/internal/repositories"
)

func newEmailTestService(t *testing.T) (*EmailService, *MockEmailSender, *MockAuditor) {
	t.Helper()
	env := newTestEnv(t)
	sender := &MockEmailSender{}
	svc := NewEmailService(repositories.NewEmailConfigRepository(env.store.EmailConfig), sender, "csm@localhost.localdomain", env.auditor, discardLogger())
	svc.now = fixedClock(testNow)
	return svc, sender, env.auditor
}

func TestEmailService_ShowDefaults(t *testing.T) {
	svc, _, _ := newEmailTestService(t)

	view, err := svc.Show(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "csm@localhost.localdomain", view.Sender)
	assert.Empty(t, view.Subscribers)
	assert.Empty(t, view.UpdatedTime)
}

func TestEmailService_SubscribeIsIdempotent(t *testing.T) {
	svc, _, auditor := newEmailTestService(t)
	ctx := context.Background()

	_, err := svc.Subscribe(ctx, " Ops@Example.com ")
	require.NoError(t, err)
	view, err := svc.Subscribe(ctx, "ops@example.com")
	require.NoError(t, err)

	assert.Equal(t, []string{"ops@example.com"}, view.Subscribers)
	assert.Equal(t, "2024-06-01T09:30:00Z", view.UpdatedTime)
	assert.Len(t, auditor.Records, 1)
}

func TestEmailService_ConcurrentSubscribesKeepEveryAddress(t *testing.T) {
	svc, _, _ := newEmailTestService(t)
	ctx := context.Background()

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.Subscribe(ctx, fmt.Sprintf("ops%d@example.com", i))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	view, err := svc.Show(ctx)
	require.NoError(t, err)
	assert.Len(t, view.Subscribers, n)

	for i := 0; i < n; i += 2 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.Unsubscribe(ctx, fmt.Sprintf("ops%d@example.com", i))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	view, err = svc.Show(ctx)
	require.NoError(t, err)
	assert.Len(t, view.Subscribers, n/2)
	assert.NotContains(t, view.Subscribers, "ops0@example.com")
	assert.Contains(t, view.Subscribers, "ops1@example.com")
}

func TestEmailService_InvalidAddress(t *testing.T) {
	svc, _, _ := newEmailTestService(t)
	ctx := context.Background()

	for _, addr := range []string{"", "not-an-address", "a@"} {
		_, err := svc.Subscribe(ctx, addr)
		assert.Equal(t, models.KeyEmailInvalidAddress, models.ErrorKey(err), addr)
	}

	_, err := svc.Configure(ctx, "nobody", true)
	assert.ErrorIs(t, err, models.ErrInvalidRequest)
	assert.Equal(t, models.KeyEmailInvalidAddress, models.ErrorKey(err))
}

func TestEmailService_Unsubscribe(t *testing.T) {
	svc, _, _ := newEmailTestService(t)
	ctx := context.Background()

	_, err := svc.Unsubscribe(ctx, "ops@example.com")
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.Equal(t, models.KeyEmailNotSubscribed, models.ErrorKey(err))

	_, err = svc.Subscribe(ctx, "ops@example.com")
	require.NoError(t, err)
	_, err = svc.Subscribe(ctx, "dev@example.com")
	require.NoError(t, err)

	view, err := svc.Unsubscribe(ctx, "OPS@example.com")
	require.NoError(t, err)
	assert.Equal(t, []string{"dev@example.com"}, view.Subscribers)
}

func TestEmailService_ConfigureAndReset(t *testing.T) {
	svc, _, _ := newEmailTestService(t)
	ctx := context.Background()

	_, err := svc.Subscribe(ctx, "ops@example.com")
	require.NoError(t, err)

	view, err := svc.Configure(ctx, "alerts@example.com", true)
	require.NoError(t, err)
	assert.Equal(t, "alerts@example.com", view.Sender)
	assert.True(t, view.WeeklyReport)
	assert.Equal(t, []string{"ops@example.com"}, view.Subscribers)

	require.NoError(t, svc.Reset(ctx))

	view, err = svc.Show(ctx)
	require.NoError(t, err)
	assert.Equal(t, "csm@localhost.localdomain", view.Sender)
	assert.Empty(t, view.Subscribers)
}

func TestEmailService_SendTest(t *testing.T) {
	svc, sender, _ := newEmailTestService(t)
	ctx := context.Background()

	err := svc.SendTest(ctx)
	assert.ErrorIs(t, err, models.ErrInvalidRequest)
	assert.Equal(t, models.KeyEmailNotConfigured, models.ErrorKey(err))

	_, err = svc.Subscribe(ctx, "ops@example.com")
	require.NoError(t, err)
	require.NoError(t, svc.SendTest(ctx))

	require.Len(t, sender.Sent, 1)
	msg := sender.Sent[0]
	assert.Equal(t, "csm@localhost.localdomain", msg.From)
	assert.Equal(t, []string{"ops@example.com"}, msg.To)
	assert.Contains(t, msg.Text, "2024-06-01T09:30:00Z")
}

func TestEmailService_SendFailureIsUnavailable(t *testing.T) {
	svc, sender, _ := newEmailTestService(t)
	ctx := context.Background()
	sender.SendFunc = func(context.Context, EmailMessage) error { return errors.New("throttled") }

	_, err := svc.Subscribe(ctx, "ops@example.com")
	require.NoError(t, err)

	err = svc.SendTest(ctx)
	assert.ErrorIs(t, err, models.ErrServiceUnavailable)
}

func TestEmailService_NotifyAlert(t *testing.T) {
	svc, sender, _ := newEmailTestService(t)
	ctx := context.Background()
	alert := &models.Alert{AlertID: 7, Severity: models.SeverityCritical, Module: "disk", CreatedTime: testNow}

	require.NoError(t, svc.NotifyAlert(ctx, alert))
	assert.Empty(t, sender.Sent, "no subscribers, nothing sent")

	_, err := svc.Subscribe(ctx, "ops@example.com")
	require.NoError(t, err)
	require.NoError(t, svc.NotifyAlert(ctx, alert))

	require.Len(t, sender.Sent, 1)
	assert.Equal(t, "[CSM] CRITICAL alert 7 on disk", sender.Sent[0].Subject)
}

type fakeSES struct {
	input *ses.SendEmailInput
	err   error
}

func (f *fakeSES) SendEmail(_ context.Context, in *ses.SendEmailInput, _ ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	f.input = in
	if f.err != nil {
		return nil, f.err
	}
	return &ses.SendEmailOutput{MessageId: aws.String("msg-1")}, nil
}

func TestSESEmailSender(t *testing.T) {
	client := &fakeSES{}
	sender := NewSESEmailSenderWithClient(client, discardLogger())

	err := sender.Send(context.Background(), EmailMessage{
		From:    "csm@example.com",
		To:      []string{"ops@example.com"},
		Subject: "hello",
		Text:    "body",
	})
	require.NoError(t, err)

	require.NotNil(t, client.input)
	assert.Equal(t, "csm@example.com", aws.ToString(client.input.Source))
	assert.Equal(t, []string{"ops@example.com"}, client.input.Destination.ToAddresses)
	assert.Equal(t, "hello", aws.ToString(client.input.Message.Subject.Data))
	assert.Equal(t, "body", aws.ToString(client.input.Message.Body.Text.Data))

	client.err = errors.New("rejected")
	assert.Error(t, sender.Send(context.Background(), EmailMessage{From: "a@b.c"}))
}

func TestLogEmailSender(t *testing.T) {
	assert.NoError(t, NewLogEmailSender(discardLogger()).Send(context.Background(), EmailMessage{Subject: "x"}))
}
