package main

import (
	"context"
	"errors"
	"os/signal"
	"proof_bridge/internal/config"
	"proof_bridge/internal/protocol/router"
	"proof_bridge/internal/repository/partition"
	"proof_bridge/internal/service/background"
	redisSvc "proof_bridge/internal/service/redis"
	"proof_bridge/internal/service/server"
	"proof_bridge/internal/service/store"
	"proof_bridge/internal/service/verify"
	"proof_bridge/internal/utils/log"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the background server",
	Long:  `Run the background server using the given configuration file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("config")
		conf, err := config.Load(path)
		if err != nil {
			return err
		}
		if err := log.Init(&conf.Logger); err != nil {
			return err
		}
		defer log.Sync()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return run(ctx, conf)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringP("config", "c", config.DefaultFile, "Path to server configuration file")
}

func run(ctx context.Context, conf *config.Config) error {
	backend, closeBackend, err := newBackend(ctx, conf)
	if err != nil {
		return err
	}
	defer closeBackend()

	bg := router.NewBackground(conf.RouterConfig())
	defer bg.Close()

	svc := background.New(bg, store.New(backend),
		verify.NewClient(conf.Verify.URL, conf.Verify.Timeout.Duration),
		background.Config{ResourceBaseURL: conf.Resources.BaseURL})
	srv := server.NewHttpServer(conf.Server.Listen, bg, svc)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(ctx) })
	g.Go(func() error { return bg.Run(ctx) })
	g.Go(func() error { return svc.Init(ctx) })

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	log.Info("server stopped", zap.Error(err))
	return err
}

func newBackend(ctx context.Context, conf *config.Config) (store.Backend, func(), error) {
	switch conf.Store.Backend {
	case config.BackendRedis:
		rs := redisSvc.NewRedis(redis.NewClient(&redis.Options{
			Addr:     conf.Redis.Addr,
			Password: conf.Redis.Password,
			DB:       conf.Redis.DB,
		}))
		if err := rs.Ping(ctx); err != nil {
			rs.Close()
			return nil, nil, err
		}
		return store.NewRedisBackend(rs, conf.Redis.Prefix), func() { rs.Close() }, nil

	case config.BackendMongo:
		client, err := initMongo(ctx, conf.Mongo.URI)
		if err != nil {
			return nil, nil, err
		}
		repo := partition.NewPartitionRepo(client.Database(conf.Mongo.Database))
		return store.NewMongoBackend(repo), func() { client.Disconnect(context.Background()) }, nil
	}
	return store.NewMemoryBackend(), func() {}, nil
}

func initMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	return client, client.Ping(ctx, nil)
}
