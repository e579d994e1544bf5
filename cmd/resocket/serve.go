package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/kleeedolinux/resocket/devserver"
	"github.com/kleeedolinux/resocket/ui"
)

func serveCmd(_ *app) *cobra.Command {
	var (
		addr       string
		token      string
		bufferSize int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the local development hub",
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts := []devserver.ServerOption{devserver.WithBufferSize(bufferSize)}
			if token != "" {
				opts = append(opts, devserver.WithAuthorizer(devserver.StaticToken(token)))
			}
			hub := devserver.NewServer(opts...)

			srv := &http.Server{Addr: addr, Handler: hub, ReadHeaderTimeout: 5 * time.Second}
			errCh := make(chan error, 1)
			go func() {
				errCh <- srv.ListenAndServe()
			}()
			log.Info().Str("addr", addr).Msg("development hub listening")

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			case <-cmd.Context().Done():
			}

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := hub.Shutdown(ctx); err != nil {
				log.Warn().Err(err).Msg("hub shutdown incomplete")
			}
			return srv.Shutdown(ctx)
		},
	}

	f := cmd.Flags()
	f.StringVar(&addr, "addr", ":8000", "listen address")
	f.StringVar(&token, "token", "", "accept only this token (any non-empty token when unset)")
	f.IntVar(&bufferSize, "buffer", devserver.DefaultConfig().BufferSize, "per-peer outbound queue length")
	return cmd
}

func fmtTimeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fmt-time <ms>",
		Short: "Format milliseconds as M:SS",
		Args:  cobra.ExactArgs(1),
		// Pure formatting needs no config or token store.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			ms, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), ui.FormatTime(ms))
			return nil
		},
	}
}
