package templates

import (
	"time"

	"github.com/oksasatya/campus-identity/config"
)

// Option pattern
type Option func(*EmailData)

func WithIP(ip string) Option        { return func(d *EmailData) { d.IP = ip } }
func WithUserAgent(ua string) Option { return func(d *EmailData) { d.UserAgent = ua } }
func WithResetURL(url string) Option { return func(d *EmailData) { d.ResetURL = url } }

func WithTime(t time.Time) Option {
	return func(d *EmailData) {
		utc := t.UTC()
		d.TimeAt = utc
		d.Time = utc.Format("02 January 2006, 15:04")
	}
}

func WithExpiresIn(dur time.Duration) Option {
	return func(d *EmailData) {
		utc := time.Now().Add(dur).UTC()
		d.ExpiresAt = utc
		d.ExpiresAtText = utc.Format("02 January 2006, 15:04")
	}
}

func newBase(cfg *config.Config, typ, name, email string, opts ...Option) EmailData {
	d := EmailData{
		Name:           name,
		Email:          email,
		RecipientEmail: email,
		Type:           typ,
	}
	if cfg != nil {
		d.AppName = cfg.AppName
		d.CompanyName = cfg.CompanyName
		d.SupportURL = cfg.SupportURL
		d.LoginURL = cfg.LoginURL
	}
	for _, opt := range opts {
		opt(&d)
	}
	return d
}

func NewForgotPasswordData(cfg *config.Config, name, email string, opts ...Option) map[string]any {
	return ToMap(newBase(cfg, ForgotPassword, name, email, opts...))
}

func NewWelcomeData(cfg *config.Config, name, email, institution string, verified bool, opts ...Option) map[string]any {
	d := newBase(cfg, Welcome, name, email, opts...)
	d.Institution = institution
	d.Verified = verified
	return ToMap(d)
}

func NewPasswordChangedData(cfg *config.Config, name, email string, opts ...Option) map[string]any {
	return ToMap(newBase(cfg, PasswordChanged, name, email, opts...))
}
