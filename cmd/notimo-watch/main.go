// Command notimo-watch tails the ledger events published by notimo and
// logs them.
package main

import (
	"context"
	"errors"

	"notimo/internal/amqp"
	"notimo/internal/cli"
	"notimo/internal/log"
)

func main() {
	cfg, logger := cli.MustLoadConfig()
	if cfg.AMQPURL == "" {
		cli.Fatal(logger, "Nothing to watch", errors.New("AMQP_URL is not set"))
	}

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger.WithComponent(log.ComponentAMQP))
	if err != nil {
		cli.Fatal(logger, "Failed to connect to AMQP", err)
	}
	defer client.Close()

	logger.Info("Watching ledger events", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	err = client.Consume(ctx, amqp.Handlers{
		ViewChanged: func(ctx context.Context, m *amqp.ViewChangedMessage) error {
			logger.InfoContext(ctx, "View changed",
				log.FieldModule, m.Module,
				"filter", m.Filter,
				"income", m.Income,
				"expense", m.Expense,
				"balance", m.Balance,
				log.FieldCount, m.Visible,
				log.FieldVersion, m.Version)
			return nil
		},
		TransactionDeleted: func(ctx context.Context, m *amqp.TransactionDeletedMessage) error {
			logger.InfoContext(ctx, "Transaction deleted",
				log.FieldModule, m.Module,
				log.FieldTransactionID, m.TransactionID)
			return nil
		},
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		cli.Fatal(logger, "Consumer stopped", err)
	}
	logger.Info("Watcher stopped")
}
