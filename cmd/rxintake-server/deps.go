package main

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/rxintake/rxintake/internal/config"
	"github.com/rxintake/rxintake/internal/domain/admin"
	"github.com/rxintake/rxintake/internal/domain/intake"
	"github.com/rxintake/rxintake/internal/domain/review"
	"github.com/rxintake/rxintake/internal/platform/auth"
	"github.com/rxintake/rxintake/internal/platform/blobstore"
	"github.com/rxintake/rxintake/internal/platform/credential"
	"github.com/rxintake/rxintake/internal/platform/db"
	"github.com/rxintake/rxintake/internal/platform/notify"
	"github.com/rxintake/rxintake/internal/platform/session"
)

// deps holds the collaborators shared by serve, console and admin.
type deps struct {
	cfg    *config.Config
	logger zerolog.Logger
	pool   *pgxpool.Pool

	store     blobstore.ObjectStore
	memStore  *blobstore.InMemory
	publisher notify.Publisher

	intake    *intake.Service
	review    *review.Service
	directory *admin.Directory
	authn     *admin.Authenticator
}

func openDeps(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*deps, error) {
	limit, err := cfg.UploadLimit()
	if err != nil {
		return nil, err
	}

	pool, err := db.Open(ctx, db.PoolOptions{URL: cfg.DatabaseURL, MaxConns: cfg.DBMaxConns, MinConns: cfg.DBMinConns})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	d := &deps{cfg: cfg, logger: logger, pool: pool}

	var awsCfg *aws.Config
	loadAWS := func() (aws.Config, error) {
		if awsCfg == nil {
			c, err := awsconfig.LoadDefaultConfig(ctx)
			if err != nil {
				return aws.Config{}, fmt.Errorf("load aws config: %w", err)
			}
			awsCfg = &c
		}
		return *awsCfg, nil
	}

	if d.store, d.memStore, err = buildStore(cfg, loadAWS); err != nil {
		pool.Close()
		return nil, err
	}
	if d.publisher, err = buildPublisher(cfg, loadAWS); err != nil {
		pool.Close()
		return nil, err
	}

	hasher := credential.NewHasher(cfg.BcryptCost)
	submissions := intake.NewSubmissionRepo(pool)
	accounts := admin.NewAccountRepo(pool)
	inTx := func(ctx context.Context, fn func(ctx context.Context) error) error {
		return db.InTx(ctx, pool, fn)
	}

	d.intake = intake.NewService(submissions, d.store, d.publisher, logger, intake.Options{
		Bucket:          cfg.StorageBucket,
		MaxArtifactSize: limit,
	})
	d.review = review.NewService(submissions, logger)
	d.directory = admin.NewDirectory(accounts, hasher, inTx, logger)
	d.authn = admin.NewAuthenticator(accounts, hasher, cfg.RehashLegacyPasswords, logger)
	return d, nil
}

func (d *deps) Close() {
	d.pool.Close()
}

func buildStore(cfg *config.Config, loadAWS func() (aws.Config, error)) (blobstore.ObjectStore, *blobstore.InMemory, error) {
	switch cfg.StorageBackend {
	case "s3":
		awsCfg, err := loadAWS()
		if err != nil {
			return nil, nil, err
		}
		return blobstore.NewS3Store(blobstore.NewS3Client(awsCfg, cfg.S3Endpoint), cfg.StoragePublicBaseURL), nil, nil
	case "memory", "":
		mem := blobstore.NewInMemory(cfg.StoragePublicBaseURL)
		return mem, mem, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

func buildPublisher(cfg *config.Config, loadAWS func() (aws.Config, error)) (notify.Publisher, error) {
	if cfg.NotifyQueueURL == "" {
		return notify.Nop{}, nil
	}
	awsCfg, err := loadAWS()
	if err != nil {
		return nil, err
	}
	return notify.NewSQSPublisher(notify.NewSQSClient(awsCfg, ""), cfg.NotifyQueueURL), nil
}

// buildSlot returns the persisted session slot and a function releasing it.
func buildSlot(cfg *config.Config) (session.Slot, func(), error) {
	switch cfg.SessionStore {
	case "redis":
		client, err := dialRedis(cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		return session.NewRedisSlot(client, cfg.SessionSlotKey), closeRedis(client), nil
	case "file", "":
		return session.NewFileSlot(cfg.SessionFile, cfg.SessionSlotKey), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown session store %q", cfg.SessionStore)
	}
}

// buildRevocations keeps revoked bearer tokens in Redis when REDIS_URL is
// set so that logouts survive a restart, and in memory otherwise.
func buildRevocations(cfg *config.Config) (auth.Revocations, func(), error) {
	if cfg.RedisURL == "" {
		mem := auth.NewRevocationStore(time.Minute)
		return mem, mem.Close, nil
	}
	client, err := dialRedis(cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	return auth.NewRedisRevocationStore(client), closeRedis(client), nil
}

// dialRedis connects and pings so that a bad address fails at startup.
func dialRedis(redisURL string) (*redis.Client, error) {
	client, err := session.ConnectRedis(redisURL)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return client, nil
}

func closeRedis(client *redis.Client) func() {
	return func() { _ = client.Close() }
}
