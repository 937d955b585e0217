package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/syssam/unigraph"
	"github.com/syssam/unigraph/client"
	"github.com/syssam/unigraph/dialect"
)

// fileConfig is the YAML layout of --config.
//
//	dialect: neo4j
//	hosts: [db1, db2]
//	port: 7687
//	username: neo4j
//	password: secret
//	timeout: 10s
//	options:
//	  scheme: neo4j+s
type fileConfig struct {
	Dialect         string `yaml:"dialect"`
	unigraph.Config `yaml:",inline"`
}

// globals holds the persistent flags.
type globals struct {
	config   string
	dialect  string
	hosts    []string
	port     int
	database string
	username string
	password string
	timeout  time.Duration
	maxConns int
	options  []string
	verbose  bool
	slow     time.Duration
	json     bool
}

func newRootCmd() *cobra.Command { return rootCmd(&globals{}) }

func rootCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "unigraph",
		Short:         "Check and query graph databases",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{msg: err.Error()}
	})
	f := cmd.PersistentFlags()
	f.StringVarP(&g.config, "config", "c", "", "YAML configuration file")
	f.StringVarP(&g.dialect, "dialect", "d", "", "adapter name ("+strings.Join(dialect.Dialects(), ", ")+")")
	f.StringSliceVar(&g.hosts, "host", nil, "server host, repeatable")
	f.IntVar(&g.port, "port", 0, "server port (adapter default when 0)")
	f.StringVar(&g.database, "database", "", "database or graph name")
	f.StringVarP(&g.username, "user", "u", "", "user name")
	f.StringVar(&g.password, "password", "", "password")
	f.DurationVar(&g.timeout, "timeout", 0, "connection timeout")
	f.IntVar(&g.maxConns, "max-connections", 0, "connection pool size")
	f.StringArrayVarP(&g.options, "option", "o", nil, "provider option key=value, repeatable")
	f.BoolVarP(&g.verbose, "verbose", "v", false, "log every operation")
	f.DurationVar(&g.slow, "slow", 0, "log operations slower than this")
	f.BoolVar(&g.json, "json", false, "print JSON")

	cmd.AddCommand(
		newPingCmd(g),
		newStatsCmd(g),
		newQueryCmd(g),
		newSchemaCmd(g),
		newDialectsCmd(),
	)
	return cmd
}

// load merges the configuration file with the flags set on cmd.
func (g *globals) load(cmd *cobra.Command) (string, unigraph.Config, error) {
	var fc fileConfig
	if g.config != "" {
		b, err := os.ReadFile(g.config)
		if err != nil {
			return "", unigraph.Config{}, err
		}
		if err := yaml.Unmarshal(b, &fc); err != nil {
			return "", unigraph.Config{}, usagef("%s: %v", g.config, err)
		}
	}
	flags := cmd.Flags()
	if flags.Changed("dialect") {
		fc.Dialect = g.dialect
	}
	if flags.Changed("host") {
		fc.Hosts = g.hosts
	}
	if flags.Changed("port") {
		fc.Port = g.port
	}
	if flags.Changed("database") {
		fc.Database = g.database
	}
	if flags.Changed("user") {
		fc.Username = g.username
	}
	if flags.Changed("password") {
		fc.Password = g.password
	}
	if flags.Changed("timeout") {
		fc.Timeout = g.timeout
	}
	if flags.Changed("max-connections") {
		fc.MaxConnections = g.maxConns
	}
	for _, kv := range g.options {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return "", unigraph.Config{}, usagef("option %q: want key=value", kv)
		}
		if fc.Options == nil {
			fc.Options = make(map[string]string)
		}
		fc.Options[k] = v
	}
	if fc.Dialect == "" {
		return "", unigraph.Config{}, usagef("no dialect: use --dialect or set dialect in the configuration file")
	}
	if len(fc.Hosts) == 0 {
		fc.Hosts = []string{"localhost"}
	}
	return fc.Dialect, fc.Config, nil
}

func (g *globals) logger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelWarn
	if g.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

// open connects to the configured graph.
func (g *globals) open(cmd *cobra.Command) (*client.Graph, error) {
	name, cfg, err := g.load(cmd)
	if err != nil {
		return nil, err
	}
	log := g.logger(cmd)
	opts := []client.Option{client.WithLogger(log)}
	if g.verbose {
		opts = append(opts, client.WithObserver(dialect.NewDebugObserver(log)))
	}
	if g.slow > 0 {
		opts = append(opts, client.WithObserver(dialect.NewStatsObserver(
			dialect.WithSlowOpLog(log),
			dialect.WithSlowThreshold(g.slow),
		)))
	}
	log.Debug("connecting", "dialect", name, "hosts", cfg.Hosts)
	return client.Open(cmd.Context(), name, cfg, opts...)
}

// withGraph opens the graph, runs fn and closes the graph.
func (g *globals) withGraph(cmd *cobra.Command, fn func(ctx context.Context, gr *client.Graph) error) (err error) {
	gr, err := g.open(cmd)
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(cmd.Context()), 10*time.Second)
		defer cancel()
		if cerr := gr.Close(ctx); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(cmd.Context(), gr)
}

func newDialectsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dialects",
		Short: "List the adapters linked into this binary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, name := range dialect.Dialects() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}
