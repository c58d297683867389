package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/aretw0/switchboard/pkg/domain"
)

// Reply statuses.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// ErrNoReply is returned by AwaitReply when nothing arrives in time.
var ErrNoReply = errors.New("redis: no reply before timeout")

// Message is a request pushed onto the queue.
type Message struct {
	ID      string `json:"id"`
	Action  string `json:"action"`
	Params  any    `json:"params,omitempty"`
	ReplyTo string `json:"reply_to,omitempty"`
}

// Reply is pushed onto the message's reply_to list.
type Reply struct {
	ID     string        `json:"id"`
	Status string        `json:"status"`
	Data   any           `json:"data,omitempty"`
	Error  *domain.Error `json:"error,omitempty"`
}

func failed(id string, e *domain.Error) Reply {
	return Reply{ID: id, Status: StatusFailed, Error: e}
}

// Enqueue pushes msg onto queue.
func Enqueue(ctx context.Context, client *backend.Client, queue string, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	if err := client.RPush(ctx, queue, data).Err(); err != nil {
		return fmt.Errorf("push message: %w", err)
	}
	return nil
}

// AwaitReply pops the next reply from key, waiting up to timeout.
func AwaitReply(ctx context.Context, client *backend.Client, key string, timeout time.Duration) (Reply, error) {
	res, err := client.BLPop(ctx, timeout, key).Result()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return Reply{}, ErrNoReply
		}
		return Reply{}, fmt.Errorf("pop reply: %w", err)
	}

	var reply Reply
	dec := json.NewDecoder(strings.NewReader(res[1]))
	dec.UseNumber()
	if err := dec.Decode(&reply); err != nil {
		return Reply{}, fmt.Errorf("decode reply: %w", err)
	}
	return reply, nil
}
