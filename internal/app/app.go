// Package app wires configuration into the services shared by the binaries.
package app

import (
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"dealdesk/internal/audit"
	"dealdesk/internal/auth"
	"dealdesk/internal/crm"
	"dealdesk/internal/events"
	"dealdesk/internal/lineitems"
	"dealdesk/internal/metrics"
	"dealdesk/pkg/database"
	"dealdesk/pkg/utils"
)

type App struct {
	Config  *utils.Config
	Log     *zap.Logger
	DB      *sql.DB
	Metrics *metrics.Registry

	Aggregator *lineitems.Aggregator
	Tracker    *lineitems.Tracker
	Runs       *audit.Repo
	Clients    *auth.Repo
	Tokens     auth.TokenService
	Hub        *events.Hub

	kafka *events.KafkaPublisher
}

// New opens the database and builds the aggregation stack.
func New(cfg *utils.Config, log *zap.Logger) (*App, error) {
	policy, err := lineitems.ParsePolicy(cfg.Aggregator.DealFetchPolicy)
	if err != nil {
		return nil, err
	}

	db, err := database.OpenAndMigrate(database.Config{Path: cfg.DB.Path})
	if err != nil {
		return nil, err
	}

	a := &App{
		Config:  cfg,
		Log:     log,
		DB:      db,
		Metrics: metrics.NewRegistry(),
		Runs:    audit.NewRepo(db),
		Clients: auth.NewRepo(db),
		Hub:     events.NewHub(),
		Tokens: auth.TokenService{
			Secret:   []byte(cfg.Auth.JWTSecret),
			Issuer:   cfg.Auth.JWTIssuer,
			Duration: cfg.Auth.JWTDuration,
		},
	}

	a.Aggregator = NewAggregator(cfg, log, a.Metrics, policy)

	publishers := []events.Publisher{a.Hub}
	if len(cfg.Kafka.Brokers) > 0 {
		a.kafka = events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		publishers = append(publishers, a.kafka)
		log.Info("publishing aggregation events to kafka",
			zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	}
	a.Tracker = lineitems.NewTracker(a.Aggregator, a.Runs, events.NewMultiPublisher(publishers...), log)

	return a, nil
}

// NewAggregator builds an aggregator that talks to the configured CRM. It
// needs no database, which lets the CLI run without one.
func NewAggregator(cfg *utils.Config, log *zap.Logger, reg *metrics.Registry, policy lineitems.Policy) *lineitems.Aggregator {
	connect := func(token string) crm.Client {
		c := crm.NewHTTPClient(cfg.CRM.BaseURL, token, cfg.CRM.Timeout)
		c.Logger = log.Named("crm")
		c.Observer = reg.ObserveCRM
		return c
	}
	return lineitems.New(connect, lineitems.StaticToken(cfg.CRM.AccessToken), lineitems.Options{
		Policy:  policy,
		Timeout: cfg.Aggregator.Timeout,
		Logger:  log.Named("lineitems"),
		Metrics: reg,
	})
}

func (a *App) Close() error {
	var errs []error
	if a.kafka != nil {
		errs = append(errs, a.kafka.Close())
	}
	errs = append(errs, a.DB.Close())
	return errors.Join(errs...)
}
