package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kleeedolinux/resocket/socket"
)

func sendCmd(a *app) *cobra.Command {
	var (
		wait    string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "send <json>",
		Short: "Connect, send one JSON frame and optionally wait for a reply event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var frame interface{}
			if err := json.Unmarshal([]byte(args[0]), &frame); err != nil {
				return fmt.Errorf("frame is not valid JSON: %w", err)
			}

			opened := make(chan struct{}, 1)
			failed := make(chan error, 1)
			reply := make(chan interface{}, 1)

			client := a.newSocket(nil, socket.WithReconnectAttempts(0))
			client.On(socket.EventOpen, func(interface{}) {
				select {
				case opened <- struct{}{}:
				default:
				}
			})
			client.On(socket.EventError, func(data interface{}) {
				err, _ := data.(error)
				if err == nil {
					err = errors.New("connection error")
				}
				select {
				case failed <- err:
				default:
				}
			})
			if wait != "" {
				client.On(socket.Event(wait), func(data interface{}) {
					select {
					case reply <- data:
					default:
					}
				})
			}

			if err := client.Connect(); err != nil {
				return err
			}
			defer client.Close()

			ctx := cmd.Context()
			deadline := time.After(timeout)

			select {
			case <-opened:
			case err := <-failed:
				return err
			case <-deadline:
				return errors.New("timed out waiting for the connection")
			case <-ctx.Done():
				return ctx.Err()
			}

			if !client.Send(frame) {
				return errors.New("frame was not sent")
			}
			if wait == "" {
				return nil
			}

			select {
			case data := <-reply:
				printPayload(cmd.OutOrStdout(), data)
				return nil
			case err := <-failed:
				return err
			case <-deadline:
				return fmt.Errorf("timed out waiting for %q", wait)
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	}

	cmd.Flags().StringVar(&wait, "wait", "", "wait for this event and print it")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "overall time limit")
	return cmd
}
