package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/kleeedolinux/resocket/socket"
	"github.com/kleeedolinux/resocket/ui"
)

func listenCmd(a *app) *cobra.Command {
	var (
		metricsAddr string
		events      []string
	)

	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Connect and print every inbound event until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			var reg prometheus.Registerer
			if metricsAddr != "" {
				r := prometheus.NewRegistry()
				stop := serveMetrics(metricsAddr, r)
				defer stop()
				reg = r
			}

			out := cmd.OutOrStdout()
			board := ui.NewAlertBoard()
			client := a.newSocket(reg)
			watchLifecycle(client, board, cmd.ErrOrStderr(), a.cfg.Backoff())

			client.On(socket.EventMessage, func(data interface{}) {
				printPayload(out, data)
			})
			for _, name := range events {
				name := socket.Event(name)
				client.On(name, func(data interface{}) {
					log.Info().Str("event", string(name)).Msg("event received")
				})
			}

			if err := client.Connect(); err != nil {
				return err
			}
			defer client.Close()

			<-ctx.Done()
			return nil
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "expose Prometheus metrics on this address")
	cmd.Flags().StringSliceVar(&events, "event", nil, "also log arrivals of these application events")
	return cmd
}

// watchLifecycle turns connection lifecycle events into alerts on w.
func watchLifecycle(c *socket.Client, board *ui.AlertBoard, w io.Writer, backoff socket.Backoff) {
	show := func(msg string, kind ui.AlertKind) {
		board.Show(msg, kind)
		board.Render(w)
	}

	c.On(socket.EventOpen, func(interface{}) {
		show("Connected", ui.AlertSuccess)
	})
	c.On(socket.EventError, func(data interface{}) {
		if err, ok := data.(error); ok {
			show("Connection error: "+err.Error(), ui.AlertDanger)
			return
		}
		show("Connection error", ui.AlertDanger)
	})
	c.On(socket.EventClose, func(data interface{}) {
		show(closeNotice(data, c.Attempts(), backoff))
	})
}

// closeNotice describes a close event. The close handler runs before the
// client schedules its next attempt, so attempts is the count so far.
func closeNotice(data interface{}, attempts int, b socket.Backoff) (string, ui.AlertKind) {
	if data == nil {
		return "Disconnected", ui.AlertInfo
	}
	if !b.Allows(attempts) {
		return fmt.Sprintf("Disconnected, giving up after %d reconnect attempts", attempts), ui.AlertDanger
	}
	return fmt.Sprintf("Disconnected, reconnect attempt %d in %s", attempts+1, b.Delay(attempts+1)), ui.AlertWarning
}

func printPayload(w io.Writer, data interface{}) {
	line, err := json.Marshal(data)
	if err != nil {
		log.Warn().Err(err).Msg("could not print payload")
		return
	}
	fmt.Fprintln(w, string(line))
}

func serveMetrics(addr string, reg *prometheus.Registry) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Str("addr", addr).Msg("metrics server failed")
		}
	}()
	log.Info().Str("addr", addr).Msg("serving metrics")

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
}
