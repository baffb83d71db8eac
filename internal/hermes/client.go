// Package hermes carries commit context over NATS.
package hermes

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// SubjectCommitContext is published once per commit by the post-commit hook.
const SubjectCommitContext = "sayu.commit.context"

// dialTimeout bounds a hook's connection attempt when ctx has no deadline.
const dialTimeout = 2 * time.Second

// CommitContext is the payload on SubjectCommitContext.
type CommitContext struct {
	Repo      string `json:"repo"`
	Hash      string `json:"hash"`
	Subject   string `json:"subject"`
	Author    string `json:"author"`
	Timestamp int64  `json:"ts"`
	Trailer   string `json:"trailer,omitempty"`
}

// DecodeCommitContext parses a SubjectCommitContext message.
func DecodeCommitContext(data []byte) (CommitContext, error) {
	var cc CommitContext
	if err := json.Unmarshal(data, &cc); err != nil {
		return CommitContext{}, fmt.Errorf("decode commit context: %w", err)
	}
	return cc, nil
}

type Client struct {
	conn   *nats.Conn
	subs   []*nats.Subscription
	logger *slog.Logger
}

// NewClient connects for a long-running subscriber and keeps reconnecting
// when the server goes away.
func NewClient(ctx context.Context, url, token string, logger *slog.Logger) (*Client, error) {
	opts := []nats.Option{
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(60),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("nats reconnected")
		}),
	}
	return dial(url, token, logger, opts)
}

// Connect dials once without retrying. Hooks use it so an unreachable
// server costs at most the dial timeout.
func Connect(ctx context.Context, url, token string, logger *slog.Logger) (*Client, error) {
	timeout := dialTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	if timeout <= 0 {
		return nil, fmt.Errorf("nats connect: %w", context.DeadlineExceeded)
	}
	return dial(url, token, logger, []nats.Option{
		nats.Timeout(timeout),
		nats.NoReconnect(),
	})
}

func dial(url, token string, logger *slog.Logger, opts []nats.Option) (*Client, error) {
	if token != "" {
		opts = append(opts, nats.Token(token))
	}
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return &Client{conn: nc, logger: logger}, nil
}

func (c *Client) Publish(subject string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	return c.conn.Publish(subject, payload)
}

// Flush waits until the server has acknowledged everything published so far.
func (c *Client) Flush(ctx context.Context) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, dialTimeout)
		defer cancel()
	}
	return c.conn.FlushWithContext(ctx)
}

func (c *Client) Subscribe(subject string, handler func(subject string, data []byte)) error {
	sub, err := c.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Subject, msg.Data)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", subject, err)
	}
	c.subs = append(c.subs, sub)
	c.logger.Info("subscribed", "subject", subject)
	return nil
}

func (c *Client) Close() {
	for _, sub := range c.subs {
		_ = sub.Unsubscribe()
	}
	c.conn.Close()
}
