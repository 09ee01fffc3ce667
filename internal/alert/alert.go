// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package alert sends mail alerts when a board operation fails.
package alert // import "github.com/go-lpc/adrv903x/internal/alert"

import (
	"crypto/tls"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	mail "gopkg.in/gomail.v2"
)

// MaxAlerts is the number of alerts sent for a given subject.
const MaxAlerts = 5

var ErrConfig = errors.New("alert: missing credentials")

// Config describes the mail account alerts are sent from.
type Config struct {
	Server   string   `yaml:"server"`
	Port     int      `yaml:"port"`
	User     string   `yaml:"user"`
	Password string   `yaml:"password"`
	To       []string `yaml:"to"`
}

// ConfigFromEnv returns the configuration described by the MAIL_USERNAME,
// MAIL_PASSWORD, MAIL_SERVER, MAIL_PORT and MAIL_TGTS environment variables.
func ConfigFromEnv() Config {
	port, _ := strconv.Atoi(os.Getenv("MAIL_PORT"))
	cfg := Config{
		Server:   os.Getenv("MAIL_SERVER"),
		Port:     port,
		User:     os.Getenv("MAIL_USERNAME"),
		Password: os.Getenv("MAIL_PASSWORD"),
	}
	if tgts := os.Getenv("MAIL_TGTS"); tgts != "" {
		cfg.To = strings.Split(tgts, ",")
	}
	return cfg
}

// Valid reports whether cfg holds everything needed to send a mail.
func (cfg Config) Valid() bool {
	return cfg.Server != "" && cfg.Port != 0 &&
		cfg.User != "" && cfg.Password != "" &&
		len(cfg.To) != 0
}

// Mailer sends alerts, at most MaxAlerts per subject.
type Mailer struct {
	cfg  Config
	name string // prefix of subjects

	mu     sync.Mutex
	alerts map[string]int
	sender mail.Sender // nil: dial the configured server
}

// New returns a mailer sending alerts on behalf of the named process.
func New(name string, cfg Config) *Mailer {
	return &Mailer{
		cfg:    cfg,
		name:   name,
		alerts: make(map[string]int),
	}
}

// Alert sends a mail with the given subject and body.
// Alert returns nil without sending anything once MaxAlerts mails with that
// subject have been sent.
func (m *Mailer) Alert(subject, body string) error {
	if !m.cfg.Valid() {
		return ErrConfig
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.alerts[subject] >= MaxAlerts {
		return nil
	}
	m.alerts[subject]++

	msg := mail.NewMessage()
	msg.SetHeader("From", m.cfg.User)
	msg.SetHeader("Bcc", m.cfg.To...)
	msg.SetHeader("Subject", fmt.Sprintf("[%s] %s", m.name, subject))
	msg.SetBody("text/plain", body)

	var err error
	switch m.sender {
	case nil:
		dial := mail.NewDialer(m.cfg.Server, m.cfg.Port, m.cfg.User, m.cfg.Password)
		dial.TLSConfig = &tls.Config{
			ServerName: m.cfg.Server,
		}
		err = dial.DialAndSend(msg)
	default:
		err = mail.Send(m.sender, msg)
	}
	if err != nil {
		return fmt.Errorf("alert: could not send mail %q: %w", subject, err)
	}
	return nil
}
