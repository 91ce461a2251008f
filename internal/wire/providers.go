package wire

import (
	"context"
	"log"
	"os"
	"strconv"
	"time"

	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/option"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"orghub/internal/api"
	"orghub/internal/bridge"
	"orghub/internal/common"
	"orghub/internal/config"
	"orghub/internal/dbmongo"
	"orghub/internal/dbmysql"
	"orghub/internal/dispatch"
	"orghub/internal/pushreg"
	"orghub/internal/unread"
	"orghub/internal/viewed"
)

// Application is the fully wired notification service.
type Application struct {
	Config     *config.Config
	DB         *gorm.DB
	Mongo      *dbmongo.MongoClient
	Aggregator *unread.Aggregator
	Dispatcher *dispatch.Dispatcher
	Bridge     *bridge.Bridge
	Server     *api.Server
}

func ProvideConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Host:         getEnvOrDefault("SERVER_HOST", "0.0.0.0"),
			Port:         getEnvOrDefault("SERVER_PORT", "8080"),
			ReadTimeout:  15,
			WriteTimeout: 15,
			Environment:  getEnvOrDefault("ENVIRONMENT", "development"),
		},
		Mongo: config.MongoConfig{
			URI:      getEnvOrDefault("MONGO_URI", ""),
			Host:     getEnvOrDefault("MONGO_HOST", "localhost"),
			Port:     getEnvOrDefault("MONGO_PORT", "27017"),
			Database: getEnvOrDefault("MONGO_DB", "orghub"),
		},
		Database: config.DatabaseConfig{
			Host:         getEnvOrDefault("DB_HOST", "localhost"),
			Port:         getEnvOrDefault("DB_PORT", "3306"),
			Username:     getEnvOrDefault("DB_USER", "orghub_user"),
			Password:     getEnvOrDefault("DB_PASSWORD", ""),
			DatabaseName: getEnvOrDefault("DB_NAME", "orghub_db"),
			MaxOpenConns: 25,
			MaxIdleConns: 5,
		},
		Firebase: config.FirebaseConfig{
			ProjectID:           getEnvOrDefault("FIREBASE_PROJECT_ID", ""),
			CredentialsFilePath: getEnvOrDefault("FIREBASE_CREDENTIALS_PATH", ""),
			Enabled:             getEnvOrDefault("FIREBASE_ENABLED", "false") == "true",
		},
		Notification: config.NotificationConfig{
			WindowSize:       int64(getEnvIntOrDefault("UNREAD_WINDOW_SIZE", 100)),
			ChunkSize:        getEnvIntOrDefault("VIEWED_CHUNK_SIZE", 10),
			ChunkDelayMS:     getEnvIntOrDefault("VIEWED_CHUNK_DELAY_MS", 50),
			SetupTimeoutSec:  getEnvIntOrDefault("SUBSCRIPTION_SETUP_TIMEOUT_SEC", 10),
			NoticeDismissSec: getEnvIntOrDefault("NOTICE_DISMISS_SEC", 6),
		},
	}
}

func ProvideMongoConnection(cfg *config.Config) (*dbmongo.MongoClient, error) {
	log.Printf("Connecting to MongoDB at %s", cfg.GetMongoURI())
	return dbmongo.NewMongoConnection(cfg)
}

func ProvideEntityStore(mongoClient *dbmongo.MongoClient, cfg *config.Config) common.EntityStore {
	return dbmongo.NewEntityStore(mongoClient, cfg)
}

func ProvideTokenStore(mongoClient *dbmongo.MongoClient) common.TokenStore {
	return dbmongo.NewTokenStore(mongoClient)
}

func ProvideDatabaseConnection(cfg *config.Config) (*gorm.DB, error) {
	log.Printf("Connecting to MySQL at %s:%s/%s",
		cfg.Database.Host, cfg.Database.Port, cfg.Database.DatabaseName)

	db, err := gorm.Open(mysql.Open(cfg.DSN()), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&dbmysql.DeliveryLog{}); err != nil {
		log.Printf("Migration warning: %v", err)
	}

	return db, nil
}

func ProvideFirebaseApp(cfg *config.Config) *firebase.App {
	if !cfg.Firebase.Enabled {
		log.Println("Firebase disabled")
		return nil
	}

	if cfg.Firebase.CredentialsFilePath == "" {
		log.Println("Firebase credentials not provided")
		return nil
	}

	opt := option.WithCredentialsFile(cfg.Firebase.CredentialsFilePath)
	firebaseConfig := &firebase.Config{
		ProjectID: cfg.Firebase.ProjectID,
	}

	app, err := firebase.NewApp(context.Background(), firebaseConfig, opt)
	if err != nil {
		log.Printf("Firebase initialization failed: %v", err)
		return nil
	}

	return app
}

func ProvideMulticastSender(app *firebase.App) dispatch.MulticastSender {
	if app == nil {
		log.Println("Firebase app not available, push transport disabled")
		return nil
	}

	client, err := app.Messaging(context.Background())
	if err != nil {
		log.Printf("Failed to create FCM client: %v", err)
		return nil
	}

	return client
}

func ProvideBatchMarker(tracker *viewed.Tracker, cfg *config.Config) *viewed.BatchMarker {
	return viewed.NewBatchMarker(
		tracker,
		cfg.Notification.ChunkSize,
		time.Duration(cfg.Notification.ChunkDelayMS)*time.Millisecond,
	)
}

// ProvideBridge hooks foreground deliveries to the aggregator so a push
// arriving ahead of the store's own propagation triggers a re-pull.
func ProvideBridge(cfg *config.Config, aggregator *unread.Aggregator) *bridge.Bridge {
	b := bridge.NewBridge(
		bridge.LogNotifier{},
		time.Duration(cfg.Notification.NoticeDismissSec)*time.Second,
	)
	b.OnForegroundEvent(aggregator.HandleRefresh)
	return b
}

func ProvideServer(
	aggregator *unread.Aggregator,
	registry *pushreg.Registry,
	dispatcher *dispatch.Dispatcher,
	marker *viewed.BatchMarker,
	b *bridge.Bridge,
	logs dbmysql.DeliveryLogRepository,
) *api.Server {
	return api.NewServer(aggregator, registry, dispatcher, marker, b, logs)
}

func getEnvOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvIntOrDefault(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}
