package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ciphersync/internal/auth"
	"ciphersync/internal/logging"
	"ciphersync/internal/metrics"
	"ciphersync/internal/relay"
	"ciphersync/internal/relayserver"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		addr       string
		secret     string
		adminToken string
		logLevel   string
		turnURLs   []string
		addressURL string
		ttl        time.Duration
	)
	cmd := &cobra.Command{
		Use:          "relay",
		Short:        "In-memory ciphersync relay for development",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := logging.New(logging.Config{Level: logLevel})
			if err != nil {
				return err
			}
			defer logger.Sync()

			if secret == "" {
				secret = os.Getenv("CIPHERSYNC_RELAY_SECRET")
			}
			if secret == "" {
				return errors.New("token secret required (--secret or CIPHERSYNC_RELAY_SECRET)")
			}

			gin.SetMode(gin.ReleaseMode)
			reg := prometheus.NewRegistry()
			srv := relayserver.New(relayserver.Config{
				TokenConfig: auth.DefaultTokenConfig(secret),
				WellKnown: relay.WellKnownDocument{
					TURNURLs:   turnURLs,
					AddressURL: addressURL,
					TTLSeconds: int64(ttl / time.Second),
				},
				AdminToken: adminToken,
			}, logger, metrics.New(reg))

			router := srv.Router()
			router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

			hs := &http.Server{Addr: addr, Handler: router, ReadHeaderTimeout: 10 * time.Second}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			go func() {
				<-ctx.Done()
				shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = hs.Shutdown(shutdown)
			}()

			logger.Info("relay listening", zap.String("addr", addr))
			if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&addr, "addr", ":8080", "listen address")
	f.StringVar(&secret, "secret", "", "HMAC secret for session tokens")
	f.StringVar(&adminToken, "admin-token", "", "bearer token guarding /v1/admin (empty leaves it open)")
	f.StringVar(&logLevel, "log-level", "info", "debug, info, warn or error")
	f.StringSliceVar(&turnURLs, "turn", nil, "TURN URL advertised in the well-known document (repeatable)")
	f.StringVar(&addressURL, "address-url", "", "address service URL advertised in the well-known document")
	f.DurationVar(&ttl, "wellknown-ttl", time.Hour, "time-to-live advertised for the well-known document")
	return cmd
}
