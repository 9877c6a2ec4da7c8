package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/phantomlaunch/identity-server/internal/config"
	"github.com/phantomlaunch/identity-server/internal/logger"
	"github.com/phantomlaunch/identity-server/internal/model"
	"github.com/phantomlaunch/identity-server/internal/repository/memory"
	"github.com/phantomlaunch/identity-server/internal/repository/postgres"
	"github.com/phantomlaunch/identity-server/internal/security"
	"github.com/phantomlaunch/identity-server/internal/service"
	vault "github.com/phantomlaunch/identity-server/internal/storage/minio"
	"github.com/phantomlaunch/identity-server/internal/token"
	"github.com/phantomlaunch/identity-server/internal/wallet"
)

var (
	buildVersion = "N/A" // set by ldflags
	buildDate    = "N/A" // set by ldflags
	buildCommit  = "N/A" // set by ldflags
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, os.Interrupt)
	defer stop()

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}
	logger := logger.New(cfg.LogLevel)

	cipher, err := security.NewKeyCipher(cfg.Encryption.Key)
	if err != nil {
		logger.Fatal("failed to initialize key cipher", "error", err)
	}

	var store model.IdentityStore
	var keys model.KeyStore

	switch cfg.Store.Mode {
	case "postgres":
		db, err := postgres.NewConnection(ctx, cfg.Database.DSN)
		if err != nil {
			logger.Fatal("failed to initialize storage", "error", err)
		}
		defer db.Close()
		store = postgres.NewIdentityRepository(db)
		keys = postgres.NewKeyRepository(db)
	case "memory":
		store = memory.NewStore()
		keys = memory.NewKeyStore()
	default:
		logger.Fatal("unknown store mode", "mode", cfg.Store.Mode)
	}

	if cfg.Vault.Enabled {
		minioClient, err := minio.New(cfg.Vault.Endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.Vault.AccessKey, cfg.Vault.SecretKey, ""),
			Secure: cfg.Vault.UseSSL,
		})
		if err != nil {
			logger.Fatal("failed to create minio client", "error", err)
		}
		keys, err = vault.NewKeyVault(ctx, minioClient, cfg.Vault.Bucket)
		if err != nil {
			logger.Fatal("failed to initialize key vault", "error", err)
		}
	}

	proofs := token.NewProofManager(cfg.Proof.Secret, time.Duration(cfg.Proof.TTLMinutes)*time.Minute)
	sweeps := service.NewLogSweepSink(logger)

	identityService := service.NewIdentity(
		store,
		keys,
		wallet.NewProvisioner(),
		cipher,
		proofs,
		sweeps,
		logger,
	)

	logAppVersion()
	logger.Info("identity service ready", "store", cfg.Store.Mode, "vault", cfg.Vault.Enabled)

	interval := time.Duration(cfg.Report.IntervalMinutes) * time.Minute
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			reportPhantomPopulation(ctx, logger, identityService)
		case <-ctx.Done():
			logger.Info("received interruption signal, shutting down")
			logger.Info("shutdown complete")
			return
		}
	}
}

// reportPhantomPopulation logs live unclaimed users so operators can see
// sweep candidates accumulating.
func reportPhantomPopulation(ctx context.Context, logger *logger.Logger, identityService *service.Identity) {
	phantoms, err := identityService.ListPhantomUsers(ctx)
	if err != nil {
		logger.Error("failed to list phantom users", "error", err)
		return
	}

	logger.Info("phantom population report", "count", len(phantoms))
	for _, user := range phantoms {
		logger.Debug("unclaimed phantom user",
			"user_id", user.ID,
			"wallet_address", user.WalletAddress,
			"created_at", user.CreatedAt)
	}
}

func logAppVersion() {
	tmpl := `
Build version: %s
Build date: %s
Build commit: %s
`

	fmt.Printf(tmpl, buildVersion, buildDate, buildCommit)
}
