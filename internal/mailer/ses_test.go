package mailer

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/stretchr/testify/require"
)

type fakeSES struct {
	input *sesv2.SendEmailInput
	err   error
}

func (f *fakeSES) SendEmail(_ context.Context, params *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &sesv2.SendEmailOutput{}, nil
}

func TestSendBuildsMessage(t *testing.T) {
	fake := &fakeSES{}
	m := NewSES(fake, "auth@example.com")

	err := m.Send(context.Background(), "reader@example.com", "code-12345678")
	require.NoError(t, err)

	require.NotNil(t, fake.input)
	require.Equal(t, "auth@example.com", *fake.input.FromEmailAddress)
	require.Equal(t, []string{"reader@example.com"}, fake.input.Destination.ToAddresses)
	require.Contains(t, *fake.input.Content.Simple.Body.Text.Data, "code-12345678")
	require.Equal(t, subject, *fake.input.Content.Simple.Subject.Data)
}

func TestSendWrapsFailure(t *testing.T) {
	fake := &fakeSES{err: errors.New("throttled")}
	m := NewSES(fake, "auth@example.com")

	err := m.Send(context.Background(), "reader@example.com", "code-12345678")
	require.Error(t, err)
	require.Contains(t, err.Error(), "reader@example.com")
}
