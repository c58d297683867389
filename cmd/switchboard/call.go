package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	backend "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/aretw0/switchboard/pkg/adapters/redis"
)

const replyPrefix = "switchboard:reply:"

var callCmd = &cobra.Command{
	Use:   "call <action> [json-params]",
	Short: "Invoke an action through the Redis queue and print the reply",
	Long: `Pushes one request onto the Redis request queue, waits for the reply and
prints it as JSON. The command fails when the reply carries an error.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		timeout, _ := cmd.Flags().GetDuration("timeout")

		var params any
		if len(args) == 2 {
			if params, err = decodeParams(args[1]); err != nil {
				return err
			}
		}

		client := backend.NewClient(&backend.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()

		reply, err := call(cmd.Context(), client, cfg.Redis.Queue, args[0], params, timeout)
		if err != nil {
			return err
		}
		return printReply(cmd.OutOrStdout(), reply)
	},
}

func init() {
	rootCmd.AddCommand(callCmd)
	callCmd.Flags().Duration("timeout", 10*time.Second, "How long to wait for the reply")
}

// call enqueues a request with a fresh reply list and waits for the answer.
func call(ctx context.Context, client *backend.Client, queue, action string, params any, timeout time.Duration) (redis.Reply, error) {
	id := uuid.NewString()
	msg := redis.Message{
		ID:      id,
		Action:  action,
		Params:  params,
		ReplyTo: replyPrefix + id,
	}
	if err := redis.Enqueue(ctx, client, queue, msg); err != nil {
		return redis.Reply{}, err
	}
	return redis.AwaitReply(ctx, client, msg.ReplyTo, timeout)
}

func decodeParams(raw string) (any, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	var params any
	if err := dec.Decode(&params); err != nil {
		return nil, fmt.Errorf("params are not valid JSON: %w", err)
	}
	return params, nil
}

func printReply(w io.Writer, reply redis.Reply) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if reply.Status != redis.StatusOK {
		if err := enc.Encode(reply.Error); err != nil {
			return err
		}
		if reply.Error != nil {
			return reply.Error
		}
		return errors.New("action failed")
	}
	return enc.Encode(reply.Data)
}
