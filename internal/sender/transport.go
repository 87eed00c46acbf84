package sender

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/acornlabs/outreach/internal/metrics"
	mail "github.com/go-mail/mail"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type Message struct {
	To             string
	Subject        string
	HTML           string
	UnsubscribeURL string
}

// SendResult reports one transport attempt. Failures are carried in Err, a
// transport never panics past its caller.
type SendResult struct {
	Success   bool
	MessageId string
	Err       error
}

type Transport interface {
	Send(ctx context.Context, msg Message) SendResult
	Verify(ctx context.Context) error
}

type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 3,
		BaseDelay:  1 * time.Second,
		MaxDelay:   10 * time.Second,
	}
}

// Backoff is the pre-retry wait for attempt n (1-indexed), exponential from
// BaseDelay and capped at MaxDelay.
func (rc RetryConfig) Backoff(attempt int) time.Duration {
	delay := rc.BaseDelay * (1 << (attempt - 1))
	if delay > rc.MaxDelay {
		return rc.MaxDelay
	}
	return delay
}

// SendWithRetry attempts a send up to MaxRetries+1 times, sleeping the backoff
// before every attempt but the first. It returns the first success or the last
// failure. The wait honors ctx so a shutdown does not hang on backoff.
func SendWithRetry(ctx context.Context, transport Transport, msg Message, rc RetryConfig, log *logrus.Logger) SendResult {

	var res SendResult
	for attempt := 0; attempt <= rc.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := rc.Backoff(attempt)
			log.WithField("to", msg.To).Warnf("retry attempt %d after %s delay", attempt, delay)
			metrics.SendRetries.Inc()
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				res.Err = ctx.Err()
				return res
			}
		}

		res = transport.Send(ctx, msg)
		if res.Success {
			return res
		}
		log.WithError(res.Err).WithField("to", msg.To).Warnf("attempt %d failed", attempt+1)
	}

	log.WithField("to", msg.To).Errorf("all %d attempts failed", rc.MaxRetries+1)
	return res
}

type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	FromName string
}

func NewSMTP(cfg SMTPConfig, log *logrus.Logger) *SMTP {
	if log == nil {
		log = logrus.New()
	}
	return &SMTP{cfg: cfg, log: log}
}

// SMTP sends a single HTML email through a relay.
type SMTP struct {
	cfg SMTPConfig
	log *logrus.Logger
}

func (s *SMTP) dialer() *mail.Dialer {
	return mail.NewDialer(s.cfg.Host, s.cfg.Port, s.cfg.User, s.cfg.Password)
}

func (s *SMTP) Send(ctx context.Context, msg Message) SendResult {

	messageId := newMessageId()

	m := mail.NewMessage()
	m.SetAddressHeader("From", s.cfg.From, s.cfg.FromName)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetHeader("Message-Id", fmt.Sprintf("<%s>", messageId))
	if msg.UnsubscribeURL != "" {
		m.SetHeader("List-Unsubscribe", fmt.Sprintf("<%s>", msg.UnsubscribeURL))
	}
	m.SetBody("text/html", msg.HTML)

	err := s.dialer().DialAndSend(m)
	if err != nil {
		s.log.WithError(err).WithField("to", msg.To).Error("failed to send email")
		return SendResult{Err: fmt.Errorf("smtp send: %w", err)}
	}

	s.log.WithFields(logrus.Fields{"to": msg.To, "message_id": messageId}).Info("email sent")
	return SendResult{Success: true, MessageId: messageId}
}

// Verify opens and closes a connection to the relay, used as a CLI preflight.
func (s *SMTP) Verify(ctx context.Context) error {
	closer, err := s.dialer().Dial()
	if err != nil {
		return fmt.Errorf("smtp connection failed: %w", err)
	}
	return closer.Close()
}

func newMessageId() string {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "localhost"
	}
	return fmt.Sprintf("%s@%s", uuid.New().String(), hostname)
}
