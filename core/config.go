package core

import (
	"fmt"
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
	ServerConfig struct {
		Host                      string
		DebugHost                 string
		DisableReqLogs            bool
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
		ShutdownTimeout           time.Duration
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

	BlobConfig struct {
		Driver        string // s3 | memory
		Bucket        string
		Region        string
		Endpoint      string
		PathStyle     bool
		PublicBaseURL string
	}

	RedisConfig struct {
		Addr            string
		Password        string
		DB              int
		OverdueCacheTTL time.Duration
	}

	LogConfig struct {
		Level  string
		Format string
	}

	Config struct {
		Env                string
		Build              string
		Debug              bool
		TestMode           bool
		AppName            string
		WorkDir            string
		SecretKey          string
		FrontendBaseURL    string
		InviteTimeoutDelta time.Duration
		RollbarToken       string
		SendgridApiKey     string

		defaultFromEmail string

		Server   ServerConfig
		Database DatabaseConfig
		Blob     BlobConfig
		Redis    RedisConfig
		Log      LogConfig
	}
)

func (c DatabaseConfig) Address() string {
	return net.JoinHostPort(c.Host, c.Port)
}

func (c *Config) DefaultFromEmail() mail.Address {
	if addr, err := mail.ParseAddress(c.defaultFromEmail); err == nil {
		return *addr
	}
	return mail.Address{Name: c.AppName, Address: c.defaultFromEmail}
}

func newViper() *viper.Viper {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("build", "develop")
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("appName", "Acolher")
	v.SetDefault("secretKey", "k3v!9w)q2n$+41=ab&uoxh2(h!x)#*c7(#pz4h^$ceqm8lmy")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("defaultFromEmail", "Acolher <noreply@localhost>")
	v.SetDefault("inviteTimeoutDelta", 7*24*time.Hour)
	v.SetDefault("rollbarToken", "")
	v.SetDefault("sendgridApiKey", "")

	v.SetDefault("server_host", "0.0.0.0:8000")
	v.SetDefault("server_debugHost", "0.0.0.0:4000")
	v.SetDefault("server_disableReqLogs", false)
	v.SetDefault("server_jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("server_jwtRefreshExpirationDelta", 4*time.Hour)
	v.SetDefault("server_shutdownTimeout", 5*time.Second)

	v.SetDefault("database_engine", "postgres")
	v.SetDefault("database_host", "localhost")
	v.SetDefault("database_port", "5432")
	v.SetDefault("database_name", "acolher")
	v.SetDefault("database_user", "acolher")
	v.SetDefault("database_password", "")
	v.SetDefault("database_adminUser", "")
	v.SetDefault("database_adminPassword", "")
	v.SetDefault("database_disableTLS", true)

	v.SetDefault("blob_driver", "memory")
	v.SetDefault("blob_bucket", "")
	v.SetDefault("blob_region", "us-east-1")
	v.SetDefault("blob_endpoint", "")
	v.SetDefault("blob_pathStyle", false)
	v.SetDefault("blob_publicBaseURL", "")

	v.SetDefault("redis_addr", "")
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)
	v.SetDefault("redis_overdueCacheTTL", 5*time.Minute)

	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")
	return v
}

// NewConfig loads the configuration for the current ENV (DEV by default).
// Values are read from `<ENV>_<KEY>` environment variables, optionally seeded from config/.env.<env>.
func NewConfig() *Config {
	v := newViper()

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	case "PROD":
		v.SetDefault("debug", false)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	workDir := Getwd()

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(workDir, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	return &Config{
		Env:                env,
		Build:              v.GetString("build"),
		Debug:              v.GetBool("debug"),
		TestMode:           v.GetBool("testMode"),
		AppName:            v.GetString("appName"),
		WorkDir:            workDir,
		SecretKey:          v.GetString("secretKey"),
		FrontendBaseURL:    strings.TrimSuffix(v.GetString("frontendBaseURL"), "/"),
		InviteTimeoutDelta: v.GetDuration("inviteTimeoutDelta"),
		RollbarToken:       v.GetString("rollbarToken"),
		SendgridApiKey:     v.GetString("sendgridApiKey"),
		defaultFromEmail:   v.GetString("defaultFromEmail"),
		Server: ServerConfig{
			Host:                      v.GetString("server_host"),
			DebugHost:                 v.GetString("server_debugHost"),
			DisableReqLogs:            v.GetBool("server_disableReqLogs"),
			JWTExpirationDelta:        v.GetDuration("server_jwtExpirationDelta"),
			JWTRefreshExpirationDelta: v.GetDuration("server_jwtRefreshExpirationDelta"),
			ShutdownTimeout:           v.GetDuration("server_shutdownTimeout"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("database_engine"),
			Host:          v.GetString("database_host"),
			Port:          v.GetString("database_port"),
			Name:          v.GetString("database_name"),
			User:          v.GetString("database_user"),
			Password:      v.GetString("database_password"),
			AdminUser:     v.GetString("database_adminUser"),
			AdminPassword: v.GetString("database_adminPassword"),
			DisableTLS:    v.GetBool("database_disableTLS"),
		},
		Blob: BlobConfig{
			Driver:        v.GetString("blob_driver"),
			Bucket:        v.GetString("blob_bucket"),
			Region:        v.GetString("blob_region"),
			Endpoint:      v.GetString("blob_endpoint"),
			PathStyle:     v.GetBool("blob_pathStyle"),
			PublicBaseURL: strings.TrimSuffix(v.GetString("blob_publicBaseURL"), "/"),
		},
		Redis: RedisConfig{
			Addr:            v.GetString("redis_addr"),
			Password:        v.GetString("redis_password"),
			DB:              v.GetInt("redis_db"),
			OverdueCacheTTL: v.GetDuration("redis_overdueCacheTTL"),
		},
		Log: LogConfig{
			Level:  v.GetString("log_level"),
			Format: v.GetString("log_format"),
		},
	}
}

// NewTestConfig returns the TEST configuration without touching the environment.
func NewTestConfig() *Config {
	v := newViper()
	return &Config{
		Env:                "TEST",
		Build:              "test",
		TestMode:           true,
		AppName:            v.GetString("appName"),
		WorkDir:            Getwd(),
		SecretKey:          "test-secret",
		FrontendBaseURL:    v.GetString("frontendBaseURL"),
		InviteTimeoutDelta: v.GetDuration("inviteTimeoutDelta"),
		defaultFromEmail:   v.GetString("defaultFromEmail"),
		Server: ServerConfig{
			DisableReqLogs:            true,
			JWTExpirationDelta:        v.GetDuration("server_jwtExpirationDelta"),
			JWTRefreshExpirationDelta: v.GetDuration("server_jwtRefreshExpirationDelta"),
			ShutdownTimeout:           v.GetDuration("server_shutdownTimeout"),
		},
		Blob:  BlobConfig{Driver: "memory", PublicBaseURL: "https://files.test"},
		Redis: RedisConfig{OverdueCacheTTL: v.GetDuration("redis_overdueCacheTTL")},
		Log:   LogConfig{Level: "error", Format: "console"},
	}
}

func (c *Config) String() string {
	return fmt.Sprintf("%s(%s) env=%s debug=%t", c.AppName, c.Build, c.Env, c.Debug)
}
