package main

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/urfave/cli/v2"

	"github.com/wyfcoding/revmgmt/algorithm/revenue"
	"github.com/wyfcoding/revmgmt/api"
	"github.com/wyfcoding/revmgmt/app"
	"github.com/wyfcoding/revmgmt/config"
	"github.com/wyfcoding/revmgmt/health"
	"github.com/wyfcoding/revmgmt/idgen"
	"github.com/wyfcoding/revmgmt/inventory"
	"github.com/wyfcoding/revmgmt/messagequeue/kafka"
)

var serveCmd = &cli.Command{
	Name:  "serve",
	Usage: "Start the HTTP service",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Value:   "./configs/revmgmt/config.toml",
			Usage:   "path to the TOML config file",
			EnvVars: []string{"REVMGMT_CONFIG"},
		},
		&cli.BoolFlag{
			Name:  "watch",
			Value: true,
			Usage: "hot-reload optimizer, rate limit and log level on config change",
		},
	},
	Action: func(ctx *cli.Context) error {
		var cfg config.Config
		if err := config.Load(ctx.String("config"), &cfg); err != nil {
			return err
		}
		if cfg.Version == "" {
			cfg.Version = version
		}
		if err := idgen.Init(cfg.Snowflake); err != nil {
			return fmt.Errorf("init id generator: %w", err)
		}

		a, err := app.NewBuilder(cfg.Server.Name).
			WithConfig(&cfg).
			WithService(initService).
			WithGin(registerRoutes).
			Build()
		if err != nil {
			return err
		}

		config.PrintWithMask(&cfg)
		if ctx.Bool("watch") {
			config.Watch(&cfg)
		}
		return a.Run()
	},
}

type deps struct {
	svc    *inventory.Service
	checks *health.Registry
	name   string
}

func initService(c *app.Components) (any, func(), error) {
	cfg := c.Config
	opts := []inventory.Option{
		inventory.WithLogger(c.Logger.WithModule("inventory").Logger),
	}

	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, c.Metrics, c.Logger.Logger)
		opts = append(opts, inventory.WithPublisher(inventory.NewKafkaPublisher(producer)))
		c.Health.Register("kafka", health.KafkaTopicChecker(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.DialTimeout))
		c.Lifecycle.Append(app.Hook{
			Name:   "kafka-producer",
			OnStop: func(context.Context) error { return producer.Close() },
		})
	}

	svc, err := inventory.NewService(cfg.Optimizer, c.Metrics, opts...)
	if err != nil {
		return nil, nil, err
	}
	config.RegisterReloadHook(svc.ReloadHook())
	c.Health.Register("optimizer", optimizerProbe(svc))

	return &deps{svc: svc, checks: c.Health, name: cfg.Server.Name}, func() {}, nil
}

// optimizerProbe 以两舱位确定性输入验证当前 Optimizer 可用.
func optimizerProbe(svc *inventory.Service) health.Checker {
	classes := revenue.FareClasses{Fares: []float64{200, 100}, Demands: []float64{10, 10}}
	return func() error {
		levels, err := svc.Optimizer().ProtectionLevels(classes, revenue.MethodEMSRb, 0)
		if err != nil {
			return err
		}
		if len(levels) != 2 || levels[1].Value != 10 {
			return fmt.Errorf("unexpected probe levels %v", levels)
		}
		return nil
	}
}

func registerRoutes(engine *gin.Engine, svc any) {
	d := svc.(*deps)
	api.NewHandler(d.svc, d.checks, d.name).Register(engine)
}
