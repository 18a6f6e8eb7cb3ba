// Package notify delivers approval notifications. Delivery is best-effort:
// the workflow never depends on a dispatch succeeding.
package notify

import (
	"github.com/sirupsen/logrus"
	gomail "gopkg.in/gomail.v2"
)

type Message struct {
	To      string
	Subject string
	Body    string
}

type Dispatcher interface {
	Dispatch(msg Message) error
}

// Noop drops every message; the default when SMTP is not configured.
type Noop struct{}

func (Noop) Dispatch(Message) error { return nil }

type SMTPOptions struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

// SMTP sends mail through gomail. Callers treat errors as advisory.
type SMTP struct {
	opts SMTPOptions
}

func NewSMTP(opts SMTPOptions) *SMTP {
	return &SMTP{opts: opts}
}

func (s *SMTP) Dispatch(msg Message) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.opts.From)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Body)

	d := gomail.NewDialer(s.opts.Host, s.opts.Port, s.opts.User, s.opts.Password)
	return d.DialAndSend(m)
}

// Logging wraps a dispatcher so failures are recorded and swallowed.
type Logging struct {
	inner Dispatcher
	log   *logrus.Logger
}

func NewLogging(inner Dispatcher, log *logrus.Logger) *Logging {
	return &Logging{inner: inner, log: log}
}

func (l *Logging) Dispatch(msg Message) error {
	if err := l.inner.Dispatch(msg); err != nil {
		l.log.WithField("to", msg.To).WithError(err).Warn("notification dispatch failed")
	}
	return nil
}
