package main

import (
	"os"

	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	_ "github.com/jackc/pgx/v4/stdlib"

	"github.com/lumilive/seminar/internal/api"
	"github.com/lumilive/seminar/internal/config"
	"github.com/lumilive/seminar/internal/coordinator"
	"github.com/lumilive/seminar/internal/core"
	"github.com/lumilive/seminar/internal/engine"
	"github.com/lumilive/seminar/internal/eventbus"
)

func main() {
	app := &cli.App{
		Name:        "seminar-server",
		Usage:       "Live seminar session coordinator",
		Description: "",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "env",
				Usage: "environment: either 'development' or 'production'",
			},
			&cli.StringFlag{
				Name:  "address",
				Usage: "listen IP and port, example: ':80' for listen on 0.0.0.0:80",
			},
			&cli.StringFlag{
				Name:  "config",
				Usage: "path to a yaml configuration file",
			},
		},
		Action: startServer,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("")
	}
}

func startServer(c *cli.Context) error {
	conf, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	// flags win over file and environment
	if env := c.String("env"); env != "" {
		conf.Env = core.Environment(env)
	}
	if address := c.String("address"); address != "" {
		conf.Address = address
	}

	db, err := sqlx.Connect("pgx", conf.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr: conf.RedisAddr,
		DB:   conf.RedisDB,
	})
	defer rdb.Close()

	bus := eventbus.RedisPubSub(rdb)

	rtcConf, err := config.NewWebRTCConfig(conf)
	if err != nil {
		return err
	}

	dispatcher := coordinator.NewDispatcher(coordinator.Options{
		Store:  core.NewMeetingsRepository(db),
		Engine: engine.NewWebRTCEngine(rtcConf),
		Bus:    bus,
	})

	apiApp := api.New(api.AppOptions{
		Env:              conf.Env,
		Address:          conf.Address,
		Dispatcher:       dispatcher,
		EventsSubscriber: bus,
		AuthServiceAddr:  conf.AuthServiceAddr,
	})

	return apiApp.Start()
}
