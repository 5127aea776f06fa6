package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/dvloznov/bankfeed/internal/config"
	"github.com/dvloznov/bankfeed/internal/connector"
	"github.com/dvloznov/bankfeed/internal/logger"
	"github.com/dvloznov/bankfeed/internal/notify"
	"github.com/dvloznov/bankfeed/internal/poller"
	providerplaid "github.com/dvloznov/bankfeed/internal/providers/plaid"
	"github.com/dvloznov/bankfeed/internal/storage"
)

func main() {
	log := logger.New()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "init":
		runInit(log)
	case "fetch":
		runFetch(log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("bankfeed - bank account polling")
	fmt.Println("\nUsage:")
	fmt.Println("  bankfeed <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  init      Set up and enable configured accounts (interactive)")
	fmt.Println("  fetch     Poll all enabled accounts and notify about new transactions")
	fmt.Println("  help      Show this help message")
	fmt.Println("\nRun 'bankfeed <command> -h' for more information on a command.")
}

func runInit(log zerolog.Logger) {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	configPath := fs.String("config", config.DefaultPath(), "Path to the configuration file")
	fs.Parse(os.Args[2:])

	ctx := logger.WithContext(context.Background(), log)

	p, store := buildPoller(ctx, log, *configPath)
	defer store.Close(ctx)

	log.Info().Msg("Starting account setup")

	if err := p.Init(ctx); err != nil {
		var setupErr *connector.SetupError
		if errors.As(err, &setupErr) {
			log.Fatal().Err(setupErr.Err).Str("account", setupErr.Ref.String()).Msg("Account setup failed")
		}
		log.Fatal().Err(err).Msg("Init failed")
	}

	fmt.Println("All configured accounts are set up.")
}

func runFetch(log zerolog.Logger) {
	fs := flag.NewFlagSet("fetch", flag.ExitOnError)
	configPath := fs.String("config", config.DefaultPath(), "Path to the configuration file")
	fs.Parse(os.Args[2:])

	ctx := logger.WithContext(context.Background(), log)

	p, store := buildPoller(ctx, log, *configPath)
	defer store.Close(ctx)

	log.Info().Msg("Starting fetch run")

	if err := p.Fetch(ctx); err != nil {
		log.Fatal().Err(err).Msg("Fetch failed")
	}
}

// buildPoller wires configuration, storage, the provider registry and
// the notification sinks into a ready Poller. Any wiring failure is
// fatal; partial setups are not useful for either command.
func buildPoller(ctx context.Context, log zerolog.Logger, configPath string) (*poller.Poller, *storage.MongoStore) {
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Loading configuration failed")
	}

	store, err := storage.NewMongoStore(ctx, cfg.Storage.Mongo, cfg.Window())
	if err != nil {
		log.Fatal().Err(err).Msg("Connecting to storage failed")
	}

	registry := connector.NewRegistry()
	registry.Register(ctx, providerplaid.Registration())

	notifiers := notify.Multi{notify.NewWebhookNotifier(cfg.Notification.Endpoints)}
	if notion := cfg.Notification.Notion; notion != nil {
		client := notify.NewNotionClient(notion.Token)
		notifiers = append(notifiers, notify.NewNotionNotifier(client, notion.DatabaseID))
	}

	return poller.New(registry, cfg, store, notifiers), store
}
