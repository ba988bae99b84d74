package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/cinemasync/server/internal/app"
)

type configVar[T any] struct {
	envKey       string
	flagKey      string
	defaultValue T
}

var (
	secret = configVar[string]{
		envKey:       "SERVER_SECRET",
		flagKey:      "secret",
		defaultValue: "",
	}
	port = configVar[int]{
		envKey:       "SERVER_PORT",
		flagKey:      "port",
		defaultValue: 5000,
	}
	host = configVar[string]{
		envKey:       "SERVER_HOST",
		flagKey:      "host",
		defaultValue: "0.0.0.0",
	}
	logLevel = configVar[string]{
		envKey:       "SERVER_LOG_LEVEL",
		flagKey:      "log-level",
		defaultValue: "INFO",
	}
	maxParticipants = configVar[int]{
		envKey:       "SERVER_MAX_PARTICIPANTS",
		flagKey:      "max-participants",
		defaultValue: 10,
	}
	roomCodeLength = configVar[int]{
		envKey:       "SERVER_ROOM_CODE_LENGTH",
		flagKey:      "room-code-length",
		defaultValue: 8,
	}
	deactivationDelay = configVar[int]{
		envKey:       "SERVER_DEACTIVATION_DELAY",
		flagKey:      "deactivation-delay",
		defaultValue: 60,
	}
	mongoURI = configVar[string]{
		envKey:       "MONGODB_URI",
		flagKey:      "mongo-uri",
		defaultValue: "mongodb://localhost:27017",
	}
	mongoDB = configVar[string]{
		envKey:       "MONGODB_DB_NAME",
		flagKey:      "mongo-db",
		defaultValue: "cinemasync",
	}
	redisHost = configVar[string]{
		envKey:       "REDIS_HOST",
		flagKey:      "redis-host",
		defaultValue: "localhost",
	}
	redisPort = configVar[int]{
		envKey:       "REDIS_PORT",
		flagKey:      "redis-port",
		defaultValue: 6379,
	}
	redisPassword = configVar[string]{
		envKey:       "REDIS_PASSWORD",
		flagKey:      "redis-password",
		defaultValue: "",
	}
)

func loadAppConfig() *app.AppConfig {
	pflag.String(secret.flagKey, secret.defaultValue, "Secret used to verify identity tokens")
	pflag.Int(port.flagKey, port.defaultValue, "Server port")
	pflag.String(host.flagKey, host.defaultValue, "Server host")
	pflag.String(logLevel.flagKey, logLevel.defaultValue, "Logging level")
	pflag.Int(maxParticipants.flagKey, maxParticipants.defaultValue, "Default maximum number of participants in a room")
	pflag.Int(roomCodeLength.flagKey, roomCodeLength.defaultValue, "Length of generated room codes")
	pflag.Int(deactivationDelay.flagKey, deactivationDelay.defaultValue, "Seconds an empty room survives before deactivation")
	pflag.String(mongoURI.flagKey, mongoURI.defaultValue, "MongoDB connection URI")
	pflag.String(mongoDB.flagKey, mongoDB.defaultValue, "MongoDB database name")
	pflag.String(redisHost.flagKey, redisHost.defaultValue, "Redis host")
	pflag.Int(redisPort.flagKey, redisPort.defaultValue, "Redis port")
	pflag.String(redisPassword.flagKey, redisPassword.defaultValue, "Redis password")
	pflag.Parse()

	viper.BindPFlags(pflag.CommandLine)

	viper.BindEnv(secret.flagKey, secret.envKey)
	viper.BindEnv(port.flagKey, port.envKey)
	viper.BindEnv(host.flagKey, host.envKey)
	viper.BindEnv(logLevel.flagKey, logLevel.envKey)
	viper.BindEnv(maxParticipants.flagKey, maxParticipants.envKey)
	viper.BindEnv(roomCodeLength.flagKey, roomCodeLength.envKey)
	viper.BindEnv(deactivationDelay.flagKey, deactivationDelay.envKey)
	viper.BindEnv(mongoURI.flagKey, mongoURI.envKey)
	viper.BindEnv(mongoDB.flagKey, mongoDB.envKey)
	viper.BindEnv(redisHost.flagKey, redisHost.envKey)
	viper.BindEnv(redisPort.flagKey, redisPort.envKey)
	viper.BindEnv(redisPassword.flagKey, redisPassword.envKey)

	viper.SetDefault(secret.flagKey, secret.defaultValue)
	viper.SetDefault(port.flagKey, port.defaultValue)
	viper.SetDefault(host.flagKey, host.defaultValue)
	viper.SetDefault(logLevel.flagKey, logLevel.defaultValue)
	viper.SetDefault(maxParticipants.flagKey, maxParticipants.defaultValue)
	viper.SetDefault(roomCodeLength.flagKey, roomCodeLength.defaultValue)
	viper.SetDefault(deactivationDelay.flagKey, deactivationDelay.defaultValue)
	viper.SetDefault(mongoURI.flagKey, mongoURI.defaultValue)
	viper.SetDefault(mongoDB.flagKey, mongoDB.defaultValue)
	viper.SetDefault(redisHost.flagKey, redisHost.defaultValue)
	viper.SetDefault(redisPort.flagKey, redisPort.defaultValue)
	viper.SetDefault(redisPassword.flagKey, redisPassword.defaultValue)

	return &app.AppConfig{
		Secret:            viper.GetString(secret.flagKey),
		Host:              viper.GetString(host.flagKey),
		Port:              viper.GetInt(port.flagKey),
		LogLevel:          viper.GetString(logLevel.flagKey),
		MaxParticipants:   viper.GetInt(maxParticipants.flagKey),
		RoomCodeLength:    viper.GetInt(roomCodeLength.flagKey),
		DeactivationDelay: viper.GetInt(deactivationDelay.flagKey),
		MongoURI:          viper.GetString(mongoURI.flagKey),
		MongoDB:           viper.GetString(mongoDB.flagKey),
		RedisHost:         viper.GetString(redisHost.flagKey),
		RedisPort:         viper.GetInt(redisPort.flagKey),
		RedisPassword:     viper.GetString(redisPassword.flagKey),
	}
}

func main() {
	ctx := context.Background()

	// local development keeps connection settings in a .env file
	godotenv.Load()

	appConfig := loadAppConfig()

	jsonConfig, _ := json.MarshalIndent(appConfig, "", "  ")
	fmt.Printf("starting app with config: %s\n", jsonConfig)

	log.Fatal(app.Run(ctx, appConfig))
}
