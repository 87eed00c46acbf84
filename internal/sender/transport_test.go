package sender

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

type fakeTransport struct {
	attempts  int
	failUntil int // attempts before this index fail
	err       error
}

func (f *fakeTransport) Send(ctx context.Context, msg Message) SendResult {
	f.attempts++
	if f.attempts <= f.failUntil {
		err := f.err
		if err == nil {
			err = errors.New("connection refused")
		}
		return SendResult{Err: err}
	}
	return SendResult{Success: true, MessageId: "mid"}
}

func (f *fakeTransport) Verify(ctx context.Context) error {
	return nil
}

func quietLog() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func fastRetry() RetryConfig {
	return RetryConfig{MaxRetries: 3, BaseDelay: 5 * time.Millisecond, MaxDelay: 50 * time.Millisecond}
}

func TestBackoffDoublesAndCaps(t *testing.T) {
	rc := RetryConfig{MaxRetries: 5, BaseDelay: 1 * time.Second, MaxDelay: 10 * time.Second}

	assert.Equal(t, 1*time.Second, rc.Backoff(1))
	assert.Equal(t, 2*time.Second, rc.Backoff(2))
	assert.Equal(t, 4*time.Second, rc.Backoff(3))
	assert.Equal(t, 8*time.Second, rc.Backoff(4))
	assert.Equal(t, 10*time.Second, rc.Backoff(5), "capped at MaxDelay")
}

func TestSendWithRetryFirstAttemptSucceeds(t *testing.T) {
	transport := &fakeTransport{}

	res := SendWithRetry(context.Background(), transport, Message{To: "a@b.c"}, fastRetry(), quietLog())

	assert.True(t, res.Success)
	assert.Equal(t, 1, transport.attempts)
}

func TestSendWithRetryRecoversAfterFailures(t *testing.T) {
	transport := &fakeTransport{failUntil: 2}

	res := SendWithRetry(context.Background(), transport, Message{To: "a@b.c"}, fastRetry(), quietLog())

	assert.True(t, res.Success)
	assert.Equal(t, 3, transport.attempts)
}

func TestSendWithRetryExhaustsAllAttempts(t *testing.T) {
	transport := &fakeTransport{failUntil: 100, err: errors.New("550 mailbox unavailable")}
	rc := fastRetry()

	start := time.Now()
	res := SendWithRetry(context.Background(), transport, Message{To: "a@b.c"}, rc, quietLog())
	elapsed := time.Since(start)

	assert.False(t, res.Success)
	assert.ErrorContains(t, res.Err, "550")
	assert.Equal(t, rc.MaxRetries+1, transport.attempts)
	// backoff before attempts 2..4 is 5ms + 10ms + 20ms
	assert.GreaterOrEqual(t, elapsed, 35*time.Millisecond)
}

func TestSendWithRetryHonorsContext(t *testing.T) {
	transport := &fakeTransport{failUntil: 100}
	rc := RetryConfig{MaxRetries: 3, BaseDelay: 1 * time.Hour, MaxDelay: 1 * time.Hour}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	res := SendWithRetry(ctx, transport, Message{To: "a@b.c"}, rc, quietLog())

	assert.False(t, res.Success)
	assert.ErrorIs(t, res.Err, context.DeadlineExceeded)
	assert.Equal(t, 1, transport.attempts, "no second attempt once ctx is done")
}
