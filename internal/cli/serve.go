package cli

import (
	"github.com/spf13/cobra"

	"github.com/matzehuels/anchorstack/internal/config"
	"github.com/matzehuels/anchorstack/pkg/cache"
	"github.com/matzehuels/anchorstack/pkg/pipeline"
	"github.com/matzehuels/anchorstack/pkg/server"
)

// serveCommand creates the serve command: run the HTTP API until
// interrupted.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		scope   string
		noCache bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the solver over HTTP",
		Long: `Serve starts the HTTP API:

  GET  /healthz       liveness and build information
  POST /v1/solve      solve a document (JSON or TOML body)
  POST /v1/validate   check a document without solving it

Solved layouts are cached with the configured backend. --cache-scope
prefixes every key so several deployments can share one Redis.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := loggerFromContext(ctx)

			cc, err := c.newCache(ctx, noCache)
			if err != nil {
				return err
			}
			var keyer cache.Keyer
			if scope != "" {
				keyer = cache.NewScopedKeyer(nil, scope+":")
			}
			runner := pipeline.NewRunner(cc, keyer, logger)
			defer runner.Close()

			s := c.Config.Server
			srv := server.New(runner, server.Config{
				Addr:         s.Addr,
				Timeout:      s.Timeout,
				MaxBodyBytes: s.MaxBodyBytes,
				Logger:       logger,
			})

			stderr := cmd.ErrOrStderr()
			printInfo(stderr, "Listening on %s", StyleLink.Render("http://"+s.Addr))
			backend := c.Config.Cache.Backend
			if noCache {
				backend = config.CacheNone
			}
			printKeyValue(stderr, "cache", backend)
			printKeyValue(stderr, "timeout", s.Timeout.String())
			printNextStep(stderr, "Try", "curl -H 'Content-Type: application/json' --data-binary @examples/review.json http://"+s.Addr+"/v1/solve")
			return srv.ListenAndServe(ctx)
		},
	}

	fs := cmd.Flags()
	fs.String("addr", server.DefaultAddr, "listen address")
	fs.Duration("timeout", server.DefaultTimeout, "per-request timeout")
	fs.Int64("max-body", server.DefaultMaxBodyBytes, "maximum request body in bytes")
	fs.String("cache", "file", "cache backend: file, redis, none")
	fs.String("redis", "localhost:6379", "redis address for --cache redis")
	fs.StringVar(&scope, "cache-scope", "", "prefix for cache keys")
	fs.BoolVar(&noCache, "no-cache", false, "disable the layout cache")

	bindConfig(fs, "addr", "server.addr")
	bindConfig(fs, "timeout", "server.timeout")
	bindConfig(fs, "max-body", "server.max_body_bytes")
	bindConfig(fs, "cache", "cache.backend")
	bindConfig(fs, "redis", "cache.redis.addr")

	return cmd
}
