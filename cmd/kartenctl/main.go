package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/ZanzyTHEbar/karten-melder/internal/config"
	"github.com/ZanzyTHEbar/karten-melder/internal/database"
	"github.com/ZanzyTHEbar/karten-melder/internal/errors"
	"github.com/ZanzyTHEbar/karten-melder/internal/feedback"
	"github.com/ZanzyTHEbar/karten-melder/internal/plz"
	"github.com/ZanzyTHEbar/karten-melder/internal/privacy"
	"github.com/ZanzyTHEbar/karten-melder/internal/ranking"
	"github.com/ZanzyTHEbar/karten-melder/internal/security"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr, clockwork.NewRealClock()); err != nil {
		os.Exit(1)
	}
}

// cli holds the services opened for one command invocation
type cli struct {
	configPath string
	dataDir    string
	verbose    bool

	clock        clockwork.Clock
	cfg          *config.Config
	db           *database.DB
	repo         *database.Repository
	postal       *plz.Service
	rankings     *ranking.Service
	rankingCache *ranking.RankingCache
	feedback     *feedback.Service
	privacy      *privacy.PrivacyService
}

func run(args []string, stdout, stderr io.Writer, clock clockwork.Clock) error {
	c := &cli{clock: clock}
	defer c.close()

	root := c.rootCommand()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return root.Execute()
}

func (c *cli) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "kartenctl",
		Short: "Admin tool for the Karten-Melder database",
		Long: `kartenctl works directly on the Karten-Melder SQLite file.

It reads the same config file and environment variables as the server,
so it can be run next to it for rankings, lookups and maintenance.`,
		SilenceUsage:      true,
		PersistentPreRunE: c.open,
	}

	root.PersistentFlags().StringVar(&c.configPath, "config", "config.yaml", "path to the YAML config file")
	root.PersistentFlags().StringVar(&c.dataDir, "data-dir", "", "override DATA_DIR")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		c.rankingsCommand(),
		c.phoneCommand(),
		c.plzCommand(),
		c.feedbackCommand(),
		c.exportCommand(),
		c.importCommand(),
		c.cleanupCommand(),
	)
	return root
}

func (c *cli) open(cmd *cobra.Command, args []string) error {
	level := slog.LevelWarn
	if c.verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))

	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	if c.dataDir != "" {
		cfg.DataDir = c.dataDir
	}
	c.cfg = cfg

	db, err := database.NewDB(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	c.db = db
	c.repo = database.NewRepository(db)

	c.postal, err = plz.NewService(c.repo, c.clock)
	if err != nil {
		return err
	}

	// each invocation computes rankings once
	c.rankingCache = ranking.NewRankingCache(time.Minute, c.clock, nil)
	c.rankings = ranking.NewService(c.repo, c.rankingCache, c.clock)
	c.feedback = feedback.NewService(c.repo, security.NewSecurityMiddleware(security.DefaultSecurityConfig()), nil, c.clock)
	c.privacy = privacy.NewService(c.repo, nil, c.clock, cfg.RetentionDays)
	return nil
}

func (c *cli) close() {
	if c.rankingCache != nil {
		c.rankingCache.Close()
	}
	if c.db != nil {
		errors.SafeClose(c.db, "database")
	}
}
