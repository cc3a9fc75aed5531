package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	Config struct {
		Env             string
		Build           string
		AppName         string
		Debug           bool
		TestMode        bool
		SecretKey       string
		WorkDir         string
		FrontendBaseURL string
		RollbarToken    string
		SendgridApiKey  string

		defaultFromEmail string

		Server      ServerConfig
		Database    DatabaseConfig
		Deliverable DeliverableConfig
		Storage     StorageConfig
		Notify      NotifyConfig
	}

	ServerConfig struct {
		Host            string
		DebugHost       string
		ReadTimeout     time.Duration
		WriteTimeout    time.Duration
		ShutdownTimeout time.Duration
		BodyLimit       string
		TokenTTL        time.Duration
	}

	DatabaseConfig struct {
		Engine        string
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	DeliverableConfig struct {
		TransferTimeout time.Duration
		HistoryPageSize int
	}

	StorageConfig struct {
		Backend   string // local | b2
		UploadDir string
		B2KeyID   string
		B2AppKey  string
		B2Bucket  string
	}

	NotifyConfig struct {
		WebhookURL     string
		WebhookTimeout time.Duration
	}
)

// DefaultFromEmail parses the configured sender address, falling back to the bare address.
func (conf *Config) DefaultFromEmail() mail.Address {
	addr, err := mail.ParseAddress(conf.defaultFromEmail)
	if err != nil {
		return mail.Address{Name: conf.AppName, Address: conf.defaultFromEmail}
	}
	if addr.Name == "" {
		addr.Name = conf.AppName
	}
	return *addr
}

func (dbc DatabaseConfig) Address() string {
	return net.JoinHostPort(dbc.Host, dbc.Port)
}

// NewConfig loads the configuration from defaults, the optional `config/.env.<env>` file and the environment.
func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("build", "dev")
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("appName", "Scolab")
	v.SetDefault("secretKey", "ct9-v)3b@o5!fz_0n4x$7w=kq2(hgsm+e1#d8uy&r6lpj")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("defaultFromEmail", "noreply@localhost")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("sendgridApiKey", "")

	v.SetDefault("server.host", ":8000")
	v.SetDefault("server.debugHost", ":4000")
	v.SetDefault("server.readTimeout", 5*time.Second)
	v.SetDefault("server.writeTimeout", 2*time.Minute)
	v.SetDefault("server.shutdownTimeout", 10*time.Second)
	v.SetDefault("server.bodyLimit", "25M")
	v.SetDefault("server.tokenTTL", 24*time.Hour)

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.name", "scolab")
	v.SetDefault("database.user", "scolab")
	v.SetDefault("database.password", "scolab")
	v.SetDefault("database.adminUser", "")
	v.SetDefault("database.adminPassword", "")
	v.SetDefault("database.disableTLS", true)

	v.SetDefault("deliverable.transferTimeout", 90*time.Second)
	v.SetDefault("deliverable.historyPageSize", 20)

	v.SetDefault("storage.backend", "local")
	v.SetDefault("storage.uploadDir", "uploads")
	v.SetDefault("storage.b2KeyID", "")
	v.SetDefault("storage.b2AppKey", "")
	v.SetDefault("storage.b2Bucket", "")

	v.SetDefault("notify.webhookURL", "")
	v.SetDefault("notify.webhookTimeout", 5*time.Second)

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	wd, err := os.Getwd()
	if err != nil {
		log.Fatalf("config.os.Getwd: %v", err)
	}

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	return &Config{
		Env:              env,
		Build:            v.GetString("build"),
		AppName:          v.GetString("appName"),
		Debug:            v.GetBool("debug"),
		TestMode:         v.GetBool("testMode"),
		SecretKey:        v.GetString("secretKey"),
		WorkDir:          wd,
		FrontendBaseURL:  strings.TrimRight(v.GetString("frontendBaseURL"), "/"),
		RollbarToken:     v.GetString("rollbarToken"),
		SendgridApiKey:   v.GetString("sendgridApiKey"),
		defaultFromEmail: v.GetString("defaultFromEmail"),
		Server: ServerConfig{
			Host:            v.GetString("server.host"),
			DebugHost:       v.GetString("server.debugHost"),
			ReadTimeout:     v.GetDuration("server.readTimeout"),
			WriteTimeout:    v.GetDuration("server.writeTimeout"),
			ShutdownTimeout: v.GetDuration("server.shutdownTimeout"),
			BodyLimit:       v.GetString("server.bodyLimit"),
			TokenTTL:        v.GetDuration("server.tokenTTL"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("database.engine"),
			Host:          v.GetString("database.host"),
			Port:          v.GetString("database.port"),
			Name:          v.GetString("database.name"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.adminUser"),
			AdminPassword: v.GetString("database.adminPassword"),
			DisableTLS:    v.GetBool("database.disableTLS"),
		},
		Deliverable: DeliverableConfig{
			TransferTimeout: v.GetDuration("deliverable.transferTimeout"),
			HistoryPageSize: v.GetInt("deliverable.historyPageSize"),
		},
		Storage: StorageConfig{
			Backend:   strings.ToLower(v.GetString("storage.backend")),
			UploadDir: v.GetString("storage.uploadDir"),
			B2KeyID:   v.GetString("storage.b2KeyID"),
			B2AppKey:  v.GetString("storage.b2AppKey"),
			B2Bucket:  v.GetString("storage.b2Bucket"),
		},
		Notify: NotifyConfig{
			WebhookURL:     v.GetString("notify.webhookURL"),
			WebhookTimeout: v.GetDuration("notify.webhookTimeout"),
		},
	}
}

// NewTestConfig returns a Config for tests: debug & test modes on, short timeouts and small history pages.
func NewTestConfig() *Config {
	conf := NewConfig()
	conf.Debug = true
	conf.TestMode = true
	conf.Deliverable.TransferTimeout = 2 * time.Second
	conf.Deliverable.HistoryPageSize = 2
	return conf
}
