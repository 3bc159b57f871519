// service.go
//
// Permit application document review and workflow service
// Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC
//
// This file is part of permit-review.
// permit-review is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published by the Free Software
// Foundation, either version 3 of the License, or (at your option) any later version.
// permit-review is distributed in the hope that it will be useful, but WITHOUT ANY WARRANTY;
// without even the implied warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU Affero General Public License for more details.
// You should have received a copy of the GNU Affero General Public License along with permit-review.
// If not, see <https://www.gnu.org/licenses/>.
// Additional terms under GNU AGPL version 3 section 7:
// a) The reasonable legal notice of original copyright and author attribution must be preserved
//    by including the string: "Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC"
//    in this material, copies, or source code of derived works.

// Package email provides notification e-mail delivery via SMTP.
package email

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime"
	"net/smtp"
	"strings"
)

// ErrNotConfigured is returned when sending without an SMTP host
var ErrNotConfigured = errors.New("email not configured")

// Message is a rendered e-mail
type Message struct {
	To       []string
	Subject  string
	TextBody string
	HTMLBody string
}

// Sender delivers messages
type Sender interface {
	IsConfigured() bool
	Send(ctx context.Context, msg Message) error
}

// Config holds SMTP configuration
type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	FromName string
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Service sends mail through an SMTP relay
type Service struct {
	config Config
	server string
	auth   smtp.Auth
	send   sendFunc
}

// NewService creates a new SMTP sender
func NewService(config Config) *Service {
	var auth smtp.Auth
	if config.Username != "" {
		auth = smtp.PlainAuth("", config.Username, config.Password, config.Host)
	}

	return &Service{
		config: config,
		server: config.Host + ":" + config.Port,
		auth:   auth,
		send:   smtp.SendMail,
	}
}

// IsConfigured returns true if email is configured
func (s *Service) IsConfigured() bool {
	return s.config.Host != "" && s.config.Port != "" && s.config.From != ""
}

// Send delivers msg. smtp.SendMail cannot be cancelled, so when ctx ends first
// Send returns ctx.Err() and the dial finishes in the background.
func (s *Service) Send(ctx context.Context, msg Message) error {
	if !s.IsConfigured() {
		return ErrNotConfigured
	}
	if len(msg.To) == 0 {
		return fmt.Errorf("email has no recipients")
	}

	raw := s.compose(msg)
	done := make(chan error, 1)
	go func() {
		done <- s.send(s.server, s.auth, s.config.From, msg.To, raw)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("send mail: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) compose(msg Message) []byte {
	from := headerValue(s.config.From)
	if s.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", mime.QEncoding.Encode("utf-8", headerValue(s.config.FromName)), from)
	}
	to := make([]string, len(msg.To))
	for i, addr := range msg.To {
		to[i] = headerValue(addr)
	}

	const boundary = "boundary-permit-review"

	var b bytes.Buffer
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", headerValue(msg.Subject)))
	fmt.Fprintf(&b, "MIME-Version: 1.0\r\n")

	if msg.HTMLBody == "" {
		fmt.Fprintf(&b, "Content-Type: text/plain; charset=UTF-8\r\n\r\n")
		fmt.Fprintf(&b, "%s\r\n", msg.TextBody)
		return b.Bytes()
	}

	fmt.Fprintf(&b, "Content-Type: multipart/alternative; boundary=\"%s\"\r\n\r\n", boundary)
	fmt.Fprintf(&b, "--%s\r\n", boundary)
	fmt.Fprintf(&b, "Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	fmt.Fprintf(&b, "%s\r\n\r\n", msg.TextBody)
	fmt.Fprintf(&b, "--%s\r\n", boundary)
	fmt.Fprintf(&b, "Content-Type: text/html; charset=UTF-8\r\n\r\n")
	fmt.Fprintf(&b, "%s\r\n\r\n", msg.HTMLBody)
	fmt.Fprintf(&b, "--%s--\r\n", boundary)
	return b.Bytes()
}

// headerValue folds line breaks into spaces so a value cannot start a new header
func headerValue(v string) string {
	return strings.Join(strings.FieldsFunc(v, func(r rune) bool { return r == '\r' || r == '\n' }), " ")
}
