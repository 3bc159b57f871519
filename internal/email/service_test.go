package email

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsConfigured(t *testing.T) {
	tests := []struct {
		name   string
		config Config
		want   bool
	}{
		{"empty", Config{}, false},
		{"no from", Config{Host: "smtp.example.com", Port: "587"}, false},
		{"complete", Config{Host: "smtp.example.com", Port: "587", From: "permits@example.com"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewService(tt.config).IsConfigured())
		})
	}
}

func TestSendNotConfigured(t *testing.T) {
	err := NewService(Config{}).Send(context.Background(), Message{To: []string{"a@example.com"}})
	assert.True(t, errors.Is(err, ErrNotConfigured))
}

func TestSendComposesMultipart(t *testing.T) {
	s := NewService(Config{Host: "smtp.example.com", Port: "25", From: "permits@example.com", FromName: "Permit Review"})

	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte
	s.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		return nil
	}

	msg, err := TaskAssigned("pat@example.com", TaskAssignedData{
		UserName:    "Pat",
		ProjectName: "Warehouse 12",
		TaskLabel:   "Provide document",
		Category:    "Fire Protection",
		Description: "Upload hydraulic calcs",
	})
	require.NoError(t, err)
	require.NoError(t, s.Send(context.Background(), msg))

	assert.Equal(t, "smtp.example.com:25", gotAddr)
	assert.Equal(t, "permits@example.com", gotFrom)
	assert.Equal(t, []string{"pat@example.com"}, gotTo)

	raw := string(gotMsg)
	assert.Contains(t, raw, "From: Permit Review <permits@example.com>\r\n")
	assert.Contains(t, raw, "Subject: New task on Warehouse 12: Provide document\r\n")
	assert.Contains(t, raw, "multipart/alternative")
	assert.Contains(t, raw, "Upload hydraulic calcs")
	assert.True(t, strings.HasSuffix(raw, "--boundary-permit-review--\r\n"))
}

func TestSendHonorsContext(t *testing.T) {
	s := NewService(Config{Host: "smtp.example.com", Port: "25", From: "permits@example.com"})
	release := make(chan struct{})
	defer close(release)
	s.send = func(string, smtp.Auth, string, []string, []byte) error {
		<-release
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := s.Send(ctx, Message{To: []string{"a@example.com"}, TextBody: "hi"})
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestSendPropagatesRelayError(t *testing.T) {
	s := NewService(Config{Host: "smtp.example.com", Port: "25", From: "permits@example.com"})
	s.send = func(string, smtp.Auth, string, []string, []byte) error {
		return errors.New("550 mailbox unavailable")
	}
	err := s.Send(context.Background(), Message{To: []string{"a@example.com"}})
	assert.ErrorContains(t, err, "550")
}

func TestDocumentReviewedEscapesHTML(t *testing.T) {
	msg, err := DocumentReviewed("u@example.com", ReviewData{
		ProjectName: "Warehouse",
		FileName:    "Fire.pdf",
		Version:     3,
		OldStatus:   "Pending Review",
		NewStatus:   "Rejected",
		Comments:    "<b>missing signature</b>",
	})
	require.NoError(t, err)

	assert.Equal(t, "Fire.pdf Rejected", msg.Subject)
	assert.Contains(t, msg.TextBody, "Fire.pdf v3 on Warehouse is now Rejected (was Pending Review).")
	assert.Contains(t, msg.HTMLBody, "&lt;b&gt;missing signature&lt;/b&gt;")
}

func TestComposeKeepsHeadersOnOneLine(t *testing.T) {
	s := NewService(Config{Host: "smtp.example.com", Port: "25", From: "permits@example.com", FromName: "Permit\r\nReview"})

	msg, err := DocumentReviewed("u@example.com", ReviewData{
		ProjectName: "Warehouse",
		FileName:    "Site.pdf\r\nBcc: attacker@evil.example",
		Version:     1,
		OldStatus:   "Pending Review",
		NewStatus:   "Approved",
	})
	require.NoError(t, err)

	raw := string(s.compose(msg))
	headers, _, found := strings.Cut(raw, "\r\n\r\n")
	require.True(t, found)
	for _, line := range strings.Split(headers, "\r\n") {
		assert.False(t, strings.HasPrefix(line, "Bcc:"), line)
	}
	assert.Contains(t, headers, "Subject: Site.pdf Bcc: attacker@evil.example Approved\r\n")
	assert.Contains(t, headers, "From: Permit Review <permits@example.com>\r\n")
}

func TestComposeEncodesNonASCIISubject(t *testing.T) {
	s := NewService(Config{Host: "smtp.example.com", Port: "25", From: "permits@example.com"})

	raw := string(s.compose(Message{To: []string{"u@example.com"}, Subject: "Façade.pdf Approved", TextBody: "ok"}))
	assert.Contains(t, raw, "Subject: =?utf-8?q?")
	assert.NotContains(t, raw, "Façade")
}
