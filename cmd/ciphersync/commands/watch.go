package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ciphersync/internal/app"
	"ciphersync/internal/relay"
)

func watchCmd() *cobra.Command {
	var (
		metricsAddr string
		retryEvery  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow the relay websocket and sync whenever a message arrives",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			e, err := engine(printingListeners())
			if err != nil {
				return err
			}
			defer e.Close()
			log := e.Logger.With(zap.String("module", "watch"))

			if metricsAddr != "" {
				srv := &http.Server{
					Addr:              metricsAddr,
					Handler:           promhttp.HandlerFor(e.Registry, promhttp.HandlerOpts{}),
					ReadHeaderTimeout: 5 * time.Second,
				}
				go func() {
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						log.Error("metrics server", zap.Error(err))
					}
				}()
				defer srv.Close()
			}

			if _, err := e.WellKnown.Warm(ctx); err != nil {
				log.Warn("warm well-known cache", zap.Error(err))
			}
			go retryLoop(ctx, e, retryEvery, log)
			return watchLoop(ctx, e, log)
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9090)")
	cmd.Flags().DurationVar(&retryEvery, "retry-every", 30*time.Second, "how often unresolved queries are retried")
	return cmd
}

// watchLoop syncs once, then again on every relay notice, reconnecting with
// capped backoff until ctx ends.
func watchLoop(ctx context.Context, e *app.Engine, log *zap.Logger) error {
	runSync := func() {
		rep, err := e.Syncer.Sync(ctx, e.Owned())
		if err != nil {
			log.Warn("sync failed", zap.Error(err))
			return
		}
		log.Info("synced", zap.Int("new", rep.Created), zap.Int("deleted", rep.Deleted))
	}
	runSync()

	backoff := time.Second
	for ctx.Err() == nil {
		wsURL, err := webSocketURL(ctx, e)
		if err == nil {
			var token string
			token, err = e.Tokens.ServerSessionToken(ctx, e.Owned())
			if err == nil {
				fmt.Fprintf(os.Stderr, "watching %s\n", wsURL)
				backoff = time.Second
				err = relay.Watch(ctx, wsURL, token, func(n relay.Notice) {
					if n.Type == relay.NoticeMessage {
						runSync()
					}
				})
			}
		}
		if err == nil || ctx.Err() != nil {
			continue
		}
		e.Tokens.Invalidate()
		log.Warn("watch interrupted", zap.Error(err), zap.Duration("retry_in", backoff))
		select {
		case <-ctx.Done():
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, time.Minute)
	}
	return nil
}

// webSocketURL reads the ws url from the well-known cache, fetching it on a
// cold start.
func webSocketURL(ctx context.Context, e *app.Engine) (string, error) {
	ws, ok, err := e.WellKnown.WSURL(ctx, e.Server)
	if err != nil {
		return "", err
	}
	if ok && ws != "" {
		return ws, nil
	}
	res := <-e.WellKnown.Refresh(ctx, e.Server)
	if res.Err != nil {
		return "", res.Err
	}
	if res.Entry.WSURL == "" {
		return "", fmt.Errorf("relay %s advertises no websocket", e.Server)
	}
	return res.Entry.WSURL, nil
}

func retryLoop(ctx context.Context, e *app.Engine, every time.Duration, log *zap.Logger) {
	if every <= 0 {
		return
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n, err := e.Dispatcher.RetryDue(ctx); err != nil {
				log.Warn("query retry", zap.Error(err))
			} else if n > 0 {
				log.Info("queries retransmitted", zap.Int("count", n))
			}
		}
	}
}
