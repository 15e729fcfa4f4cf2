package cmd

import (
	"context"
	"fmt"

	"dndbot/bot"
	"dndbot/config"
	"dndbot/database"
	"dndbot/domain/interfaces"
	"dndbot/domain/services"
	"dndbot/repository"
	"dndbot/schema"
	"dndbot/store"
	"dndbot/store/dynamo"
	"dndbot/store/memory"
	"dndbot/store/postgres"

	log "github.com/sirupsen/logrus"
)

// App is the wired service graph over one store
type App struct {
	Store       store.Store
	Catalog     *schema.Catalog
	Provisioner interfaces.Provisioner
	Services    bot.Services
}

// OpenStore connects the backend selected by STORE_BACKEND
func OpenStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.StoreBackend {
	case config.BackendDynamo:
		client, err := dynamo.NewClient(ctx, dynamo.ClientConfig{
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretKey,
			Region:          cfg.AWSRegion,
			Endpoint:        cfg.DynamoDBEndpoint,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create dynamodb client: %w", err)
		}
		return dynamo.New(client), nil

	case config.BackendPostgres:
		url := cfg.GetDatabaseURL()
		if err := database.RunMigrationsWithURL(url); err != nil {
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		db, err := database.NewConnection(ctx, url)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		return postgres.New(db), nil

	case config.BackendMemory:
		return memory.New(), nil

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

// NewApp builds repositories and services over s
func NewApp(cfg *config.Config, s store.Store, publisher interfaces.EventPublisher) *App {
	catalog := schema.NewCatalog(cfg.TablePrefix)

	retry := services.DefaultRetryPolicy()
	retry.MaxAttempts = cfg.WalletMaxAttempts
	opts := []services.Option{services.WithRetryPolicy(retry)}

	currencies := services.NewCurrencyRegistry(repository.NewCurrencyRepository(s, catalog), publisher, opts...)
	transactions := repository.NewTransactionRepository(s, catalog)
	ledger := services.NewLedgerService(transactions, publisher, opts...)

	app := &App{
		Store:   s,
		Catalog: catalog,
		Services: bot.Services{
			Currencies: currencies,
			Wallets:    services.NewWalletService(repository.NewWalletRepository(s, catalog), transactions, ledger, opts...),
			Ledger:     ledger,
			Settings:   services.NewGuildSettingsService(repository.NewGuildSettingsRepository(s, catalog), opts...),
			Characters: services.NewCharacterService(repository.NewCharacterRepository(s, catalog), publisher, opts...),
		},
	}

	app.Provisioner = services.NewProvisioner(s, catalog,
		services.WithSettleTimeout(cfg.ProvisionSettleTimeout),
		services.WithRecreateHook(func(t schema.Table) {
			// cached currencies point at records that no longer exist
			if t.ID == schema.Currencies {
				currencies.Purge()
			}
			log.WithField("table", t.Name).Info("Table recreated")
		}),
	)
	return app
}

// Close releases the store
func (a *App) Close() error {
	return a.Store.Close()
}
