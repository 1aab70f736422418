package backend

import (
	"context"
	"fmt"

	"notimo/internal/log"
	"notimo/internal/source/google"
	"notimo/internal/source/memory"
	"notimo/internal/source/remote"
	"notimo/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.Default(log.ComponentBackend)
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.Logger == nil {
		config.Logger = f.logger
	}

	switch config.Type {
	case SQLiteBackend:
		return f.createSQLiteBackend(ctx, config)
	case SheetsBackend:
		return f.createSheetsBackend(ctx, config)
	case RemoteBackend:
		return f.createRemoteBackend(config)
	case MemoryBackend:
		return f.createMemoryBackend(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSQLiteBackend(ctx context.Context, config Config) (*BackendResult, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath,
		storage.WithLocation(config.Location),
		storage.WithLogger(config.Logger.WithComponent(log.ComponentStorage)))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	if err := f.seedSQLite(ctx, repo, config); err != nil {
		_ = repo.Close()
		return nil, err
	}

	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)

	return &BackendResult{
		Backend: repo,
		Cleanup: repo.Close,
		Ping:    repo.Ping,
	}, nil
}

// seedSQLite imports the seed transactions into an empty database.
func (f *DefaultFactory) seedSQLite(ctx context.Context, repo *storage.SQLiteRepository, config Config) error {
	if config.SeedDir == "" {
		return nil
	}
	n, err := repo.Count(ctx)
	if err != nil {
		return fmt.Errorf("count stored transactions: %w", err)
	}
	if n > 0 {
		return nil
	}

	seed, err := memory.NewFromFiles(config.SeedDir, config.Location)
	if err != nil {
		return fmt.Errorf("load seed data from %s: %w", config.SeedDir, err)
	}
	txs, err := seed.ListTransactions(ctx, "")
	if err != nil {
		return err
	}
	if len(txs) == 0 {
		return nil
	}
	imported, err := repo.Import(ctx, txs)
	if err != nil {
		return fmt.Errorf("import seed transactions: %w", err)
	}
	f.logger.Info("Seeded SQLite database", "seed_dir", config.SeedDir, log.FieldCount, imported)
	return nil
}

func (f *DefaultFactory) createSheetsBackend(ctx context.Context, config Config) (*BackendResult, error) {
	client, err := google.New(ctx, google.Config{
		SpreadsheetID:     config.GoogleSpreadsheetID,
		TransactionsSheet: config.GoogleSheetName,
		CategoriesSheet:   config.GoogleCategoriesSheet,
		CredentialsJSON:   config.GoogleServiceAccountJSON,
		CredentialsFile:   config.GoogleServiceAccountFile,
		OAuth: google.OAuthCredentials{
			ClientJSON: config.GoogleOAuthClientJSON,
			ClientFile: config.GoogleOAuthClientFile,
			TokenFile:  config.GoogleOAuthTokenFile,
		},
		Location: config.Location,
		Logger:   config.Logger.WithComponent(log.ComponentSheets),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}

	f.logger.Info("Initialized Google Sheets backend", "spreadsheet_id", config.GoogleSpreadsheetID)

	return &BackendResult{
		Backend: client,
		Cleanup: func() error { return nil },
	}, nil
}

func (f *DefaultFactory) createRemoteBackend(config Config) (*BackendResult, error) {
	client, err := remote.New(remote.Config{
		BaseURL:  config.APIURL,
		Token:    config.APIToken,
		Timeout:  config.APITimeout,
		Location: config.Location,
		Logger:   config.Logger.WithComponent(log.ComponentRemote),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize remote API client: %w", err)
	}

	f.logger.Info("Initialized remote backend", "api_url", config.APIURL)

	return &BackendResult{
		Backend: client,
		Cleanup: func() error { return nil },
	}, nil
}

func (f *DefaultFactory) createMemoryBackend(config Config) (*BackendResult, error) {
	dir := config.SeedDir
	if dir == "" {
		dir = "data"
	}
	store, err := memory.NewFromFiles(dir, config.Location)
	if err != nil {
		return nil, fmt.Errorf("failed to load memory backend data: %w", err)
	}

	f.logger.Info("Initialized memory backend", "seed_dir", dir)

	return &BackendResult{
		Backend: store,
		Cleanup: func() error { return nil },
	}, nil
}
