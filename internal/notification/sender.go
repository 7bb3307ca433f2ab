package notification

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"net/smtp"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

//go:embed templates/*.html
var templateFS embed.FS

// ErrUnknownTemplate is returned for a job whose template is not embedded
var ErrUnknownTemplate = errors.New("unknown notification template")

// Sender delivers a job on one channel
type Sender interface {
	Send(ctx context.Context, job *Job) error
}

// Renderer renders the subject, HTML body and plain text of a template
type Renderer struct {
	templates map[string]*template.Template
}

// NewRenderer parses the embedded templates
func NewRenderer() (*Renderer, error) {
	entries, err := templateFS.ReadDir("templates")
	if err != nil {
		return nil, err
	}
	r := &Renderer{templates: make(map[string]*template.Template, len(entries))}
	for _, e := range entries {
		name := strings.TrimSuffix(e.Name(), ".html")
		tpl, err := template.New(name).Option("missingkey=zero").ParseFS(templateFS, "templates/"+e.Name())
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		r.templates[name] = tpl
	}
	return r, nil
}

// Rendered is a template rendered for one job
type Rendered struct {
	Subject string
	HTML    string
	Text    string
}

// Render executes the subject, body and text blocks of the job's template
func (r *Renderer) Render(job *Job) (*Rendered, error) {
	tpl, ok := r.templates[job.Template]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTemplate, job.Template)
	}
	data := job.Data
	if data == nil {
		data = map[string]any{}
	}

	out := &Rendered{}
	for block, dst := range map[string]*string{"subject": &out.Subject, "body": &out.HTML, "text": &out.Text} {
		var buf bytes.Buffer
		if err := tpl.ExecuteTemplate(&buf, block, data); err != nil {
			return nil, fmt.Errorf("render %s/%s: %w", job.Template, block, err)
		}
		*dst = strings.TrimSpace(buf.String())
	}
	return out, nil
}

// SMTPConfig holds outbound mail settings
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// EmailSender sends rendered templates over SMTP
type EmailSender struct {
	cfg      SMTPConfig
	renderer *Renderer
	sendMail sendMailFunc
}

// NewEmailSender creates an SMTP sender
func NewEmailSender(cfg SMTPConfig, renderer *Renderer) *EmailSender {
	return &EmailSender{cfg: cfg, renderer: renderer, sendMail: smtp.SendMail}
}

func (s *EmailSender) Send(ctx context.Context, job *Job) error {
	if s.cfg.Host == "" {
		return fmt.Errorf("smtp host not configured")
	}
	msg, err := s.renderer.Render(job)
	if err != nil {
		return err
	}

	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	if err := s.sendMail(addr, auth, s.cfg.From, []string{job.To}, buildMIME(s.cfg.From, job.To, msg)); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

func buildMIME(from, to string, msg *Rendered) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + strings.NewReplacer("\r", "", "\n", "").Replace(msg.Subject) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(msg.HTML)
	return []byte(b.String())
}

// MessagingConfig holds the SMS and WhatsApp HTTP provider settings
type MessagingConfig struct {
	SMSURL      string
	WhatsAppURL string
	APIKey      string
	Timeout     time.Duration
}

// MessagingSender posts the plain-text rendering to an SMS or WhatsApp provider
type MessagingSender struct {
	cfg      MessagingConfig
	renderer *Renderer
	http     *http.Client
}

// NewMessagingSender creates a messaging sender
func NewMessagingSender(cfg MessagingConfig, renderer *Renderer) *MessagingSender {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &MessagingSender{cfg: cfg, renderer: renderer, http: &http.Client{Timeout: cfg.Timeout, Transport: otelhttp.NewTransport(http.DefaultTransport)}}
}

type messagingRequest struct {
	To      string `json:"to"`
	Channel string `json:"channel"`
	Body    string `json:"body"`
}

func (s *MessagingSender) Send(ctx context.Context, job *Job) error {
	url := s.cfg.SMSURL
	if job.Channel == ChannelWhatsApp {
		url = s.cfg.WhatsAppURL
	}
	if url == "" {
		return fmt.Errorf("%s provider not configured", job.Channel)
	}
	msg, err := s.renderer.Render(job)
	if err != nil {
		return err
	}

	body, err := json.Marshal(messagingRequest{To: job.To, Channel: string(job.Channel), Body: msg.Text})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s send: %w", job.Channel, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s send: status %d: %s", job.Channel, resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	return nil
}
