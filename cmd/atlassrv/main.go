package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/tansive/atlas/internal/atlassrv/apis"
	"github.com/tansive/atlas/internal/atlassrv/auth"
	"github.com/tansive/atlas/internal/atlassrv/catalog"
	"github.com/tansive/atlas/internal/atlassrv/config"
	"github.com/tansive/atlas/internal/atlassrv/contentstore"
	"github.com/tansive/atlas/internal/atlassrv/db"
	"github.com/tansive/atlas/internal/atlassrv/inheritance"
	"github.com/tansive/atlas/internal/atlassrv/reconcile"
	"github.com/tansive/atlas/internal/atlassrv/server"
	"github.com/tansive/atlas/internal/atlassrv/versioning"
	"github.com/tansive/atlas/internal/atlassrv/webhook"
	"github.com/tansive/atlas/internal/common/logtrace"
	"github.com/tansive/atlas/internal/common/uuid"
)

func init() {
	logtrace.InitLogger()
}

type cmdoptions struct {
	configFile string
	envFile    string
	issueToken string
	admin      bool
	tokenTTL   time.Duration
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		log.Error().Err(err).Msg("server failed")
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	slog := log.With().Str("state", "init").Logger()

	opt := parseFlags()

	if err := godotenv.Load(opt.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading env file: %w", err)
	}

	slog.Info().Str("config_file", opt.configFile).Msg("loading config file")
	if err := config.LoadConfig(opt.configFile); err != nil {
		return fmt.Errorf("loading config file: %w", err)
	}
	cfg := config.Config()
	logtrace.InitLogger(cfg.LogLevel)

	authn := auth.NewAuthenticator(cfg.Auth)
	if opt.issueToken != "" {
		return printToken(authn, opt)
	}

	store, err := createContentStore(cfg)
	if err != nil {
		return fmt.Errorf("creating content store: %w", err)
	}
	index, err := db.NewIndex(ctx, cfg)
	if err != nil {
		return fmt.Errorf("creating metadata index: %w", err)
	}
	defer index.Close()
	slog.Info().Str("content_store", cfg.ContentStore.Kind).Str("index", cfg.DB.Kind).Msg("adapters ready")

	engine := reconcile.NewEngine(store, index, uuid.MustParse(cfg.Reconcile.SystemUserID))
	var worker *webhook.Worker
	var ingestOpts []webhook.Option
	if cfg.Webhook.ProcessAsync {
		worker = webhook.NewWorker(engine, cfg.Webhook.QueueSize)
		worker.Start(ctx)
		ingestOpts = append(ingestOpts, webhook.WithWorker(worker))
	}
	vs := versioning.NewService(store, index)
	services := &apis.Services{
		Auth:       authn,
		Engine:     engine,
		Ingestor:   webhook.NewIngestor(cfg.Webhook.Secret, engine, ingestOpts...),
		Versioning: vs,
		Resolver:   inheritance.NewResolver(store, index, vs),
		Catalog:    catalog.NewService(store, index, catalog.WithSerializer(engine)),
		Teams:      index,
	}

	serverErrors, shutdownServer, err := createAtlasServer(ctx, services, index)
	if err != nil {
		return fmt.Errorf("creating atlas server: %w", err)
	}

	// Channel to listen for an interrupt or terminate signal from the OS.
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if worker != nil {
			worker.Stop()
		}
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		slog.Info().Str("signal", sig.String()).Msg("shutdown signal received")
		shutdownServer()
		if worker != nil {
			worker.Stop()
		}
	}

	slog.Info().Msg("server stopped")
	return nil
}

func createContentStore(cfg *config.ConfigParam) (contentstore.Store, error) {
	cs := cfg.ContentStore
	switch cs.Kind {
	case config.StoreKindMemory:
		var opts []contentstore.MemoryOption
		if cs.AuthorName != "" {
			opts = append(opts, contentstore.WithAuthor(cs.AuthorName))
		}
		return contentstore.NewMemoryStore(opts...), nil
	case config.StoreKindGitHub:
		return contentstore.NewGitHubStore(contentstore.GitHubOptions{
			APIURL:      cs.APIURL,
			Owner:       cs.Owner,
			Repo:        cs.Repo,
			Branch:      cs.Branch,
			Token:       cs.Token,
			Timeout:     cs.GetTimeout(),
			MaxRetries:  cs.MaxRetries,
			AuthorName:  cs.AuthorName,
			AuthorEmail: cs.AuthorEmail,
		})
	}
	return nil, fmt.Errorf("unknown content store kind: %s", cs.Kind)
}

func createAtlasServer(ctx context.Context, services *apis.Services, index server.Pinger) (chan error, func(), error) {
	slog := log.With().Str("state", "init").Logger()
	s, err := server.CreateNewServer(services, index)
	if err != nil {
		return nil, nil, fmt.Errorf("creating server: %w", err)
	}
	s.MountHandlers()

	srv := &http.Server{
		Addr:              ":" + config.Config().ServerPort,
		Handler:           s.Router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErrors := make(chan error, 1)

	go func() {
		slog.Info().Str("port", config.Config().ServerPort).Msg("server started")
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := func() {
		// Give outstanding requests 5 seconds to complete and initiate the shutdown.
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error().Err(err).Msg("could not stop server gracefully")
			if err := srv.Close(); err != nil {
				slog.Error().Err(err).Msg("could not stop server")
			}
		}
	}

	return serverErrors, shutdown, nil
}

// printToken mints a bearer token for local use and exits.
func printToken(authn *auth.Authenticator, opt cmdoptions) error {
	userID, err := uuid.Parse(opt.issueToken)
	if err != nil {
		return fmt.Errorf("invalid user id: %w", err)
	}
	token, expiry, tokenErr := authn.CreateToken(userID, opt.admin, opt.tokenTTL)
	if tokenErr != nil {
		return tokenErr
	}
	fmt.Println(token)
	fmt.Fprintf(os.Stderr, "expires %s\n", expiry.Format(time.RFC3339))
	return nil
}

const DefaultConfigFile = "/etc/atlas/atlassrv.conf"

func parseFlags() cmdoptions {
	var opt cmdoptions
	flag.StringVar(&opt.configFile, "config", DefaultConfigFile, "Path to the config file")
	flag.StringVar(&opt.envFile, "env", ".env", "Path to an optional env file holding secrets")
	flag.StringVar(&opt.issueToken, "issue-token", "", "Print a bearer token for this user id and exit")
	flag.BoolVar(&opt.admin, "admin", false, "With -issue-token, grant the admin claim")
	flag.DurationVar(&opt.tokenTTL, "token-ttl", 24*time.Hour, "With -issue-token, token lifetime")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [options]\n\n", os.Args[0])
		fmt.Println("Options:")
		flag.PrintDefaults()
	}
	flag.Parse()
	return opt
}
