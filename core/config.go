package core

import (
	"log"
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
		Host            string
		DebugHost       string
		ShutdownTimeout time.Duration
		ReadTimeout     time.Duration
		WriteTimeout    time.Duration
		MaxUploadSize   string // echo BodyLimit format, eg. "64M"
	}

	APIConfig struct {
		BaseURL       string
		Timeout       time.Duration
		KeepAliveSpec string // cron spec; empty disables the pinger
	}

	SessionConfig struct {
		Store      string // memory | bolt | redis
		BoltPath   string
		RedisAddr  string
		RedisDB    int
		CookieName string
		TTL        time.Duration
		SweepSpec  string
	}

	UploadConfig struct {
		Pause      time.Duration
		StagingDir string
		University string
		Category   string
	}

	QuizConfig struct {
		RevealDelay time.Duration
	}

	ToastConfig struct {
		Duration time.Duration
	}

	Config struct {
		Debug    bool
		TestMode bool
		Env      string
		Build    string
		WorkDir  string

		AppName          string
		SecretKey        string
		RollbarToken     string
		FrontendBaseURL  string
		DefaultFromEmail mail.Address
		SendgridApiKey   string

		Server  ServerConfig
		API     APIConfig
		Session SessionConfig
		Upload  UploadConfig
		Quiz    QuizConfig
		Toast   ToastConfig
	}
)

// NewConfig loads the configuration of the current environment.
// ENV selects DEV (local; default), TEST, QA or PROD; values are read from `config/.env.<env>` when present,
// then from environment variables prefixed with the env name (eg. PROD_API_BASE_URL).
func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("build", "dev")
	v.SetDefault("appName", "Placement Portal")
	v.SetDefault("secretKey", "q8#wz1-k!t7m@x^3v$9n+b&c2(h)e*r4s_p6u=y0o")
	v.SetDefault("frontendBaseURL", "http://localhost:8000")
	v.SetDefault("defaultFromEmail", "noreply@localhost")
	v.SetDefault("server_host", "0.0.0.0:8000")
	v.SetDefault("server_debugHost", "0.0.0.0:4000")
	v.SetDefault("server_shutdownTimeout", 5*time.Second)
	v.SetDefault("server_readTimeout", 10*time.Second)
	v.SetDefault("server_writeTimeout", 60*time.Second)
	v.SetDefault("server_maxUploadSize", "64M")
	v.SetDefault("api_baseURL", "http://localhost:8080/api")
	v.SetDefault("api_timeout", 30*time.Second)
	v.SetDefault("api_keepAliveSpec", "@every 10m")
	v.SetDefault("session_store", "bolt")
	v.SetDefault("session_boltPath", "sessions.db")
	v.SetDefault("session_redisAddr", "localhost:6379")
	v.SetDefault("session_redisDB", 0)
	v.SetDefault("session_cookieName", "session_id")
	v.SetDefault("session_ttl", 7*24*time.Hour)
	v.SetDefault("session_sweepSpec", "@every 1h")
	v.SetDefault("upload_pause", 500*time.Millisecond)
	v.SetDefault("upload_stagingDir", filepath.Join(os.TempDir(), "placement-portal"))
	v.SetDefault("upload_university", "DAVV")
	v.SetDefault("upload_category", "End-Sem")
	v.SetDefault("quiz_revealDelay", 1200*time.Millisecond)
	v.SetDefault("toast_duration", 5*time.Second)

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
		v.SetDefault("session_store", "memory")
		v.SetDefault("api_keepAliveSpec", "")
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	wd := Getwd()
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	conf := &Config{
		Debug:           v.GetBool("debug"),
		TestMode:        v.GetBool("testMode"),
		Env:             env,
		Build:           v.GetString("build"),
		WorkDir:         wd,
		AppName:         v.GetString("appName"),
		SecretKey:       v.GetString("secretKey"),
		RollbarToken:    v.GetString("rollbarToken"),
		FrontendBaseURL: v.GetString("frontendBaseURL"),
		SendgridApiKey:  v.GetString("sendgridApiKey"),
		Server: ServerConfig{
			Host:            v.GetString("server_host"),
			DebugHost:       v.GetString("server_debugHost"),
			ShutdownTimeout: v.GetDuration("server_shutdownTimeout"),
			ReadTimeout:     v.GetDuration("server_readTimeout"),
			WriteTimeout:    v.GetDuration("server_writeTimeout"),
			MaxUploadSize:   v.GetString("server_maxUploadSize"),
		},
		API: APIConfig{
			BaseURL:       strings.TrimSuffix(v.GetString("api_baseURL"), "/"),
			Timeout:       v.GetDuration("api_timeout"),
			KeepAliveSpec: v.GetString("api_keepAliveSpec"),
		},
		Session: SessionConfig{
			Store:      strings.ToLower(v.GetString("session_store")),
			BoltPath:   v.GetString("session_boltPath"),
			RedisAddr:  v.GetString("session_redisAddr"),
			RedisDB:    v.GetInt("session_redisDB"),
			CookieName: v.GetString("session_cookieName"),
			TTL:        v.GetDuration("session_ttl"),
			SweepSpec:  v.GetString("session_sweepSpec"),
		},
		Upload: UploadConfig{
			Pause:      v.GetDuration("upload_pause"),
			StagingDir: v.GetString("upload_stagingDir"),
			University: v.GetString("upload_university"),
			Category:   v.GetString("upload_category"),
		},
		Quiz: QuizConfig{
			RevealDelay: v.GetDuration("quiz_revealDelay"),
		},
		Toast: ToastConfig{
			Duration: v.GetDuration("toast_duration"),
		},
	}

	from, err := mail.ParseAddress(v.GetString("defaultFromEmail"))
	if err != nil {
		log.Fatalf("config.defaultFromEmail: %v", err)
	}
	conf.DefaultFromEmail = *from

	return conf
}

// NewTestConfig returns a config suitable for tests: no persistence, no pauses, no background jobs.
func NewTestConfig() *Config {
	return &Config{
		Debug:            false,
		TestMode:         true,
		Env:              "TEST",
		Build:            "test",
		AppName:          "Placement Portal",
		SecretKey:        "test",
		FrontendBaseURL:  "http://localhost:8000",
		DefaultFromEmail: mail.Address{Name: "Placement Portal", Address: "noreply@localhost"},
		Server: ServerConfig{
			ShutdownTimeout: time.Second,
			MaxUploadSize:   "8M",
		},
		API: APIConfig{Timeout: 5 * time.Second},
		Session: SessionConfig{
			Store:      "memory",
			CookieName: "session_id",
			TTL:        time.Hour,
		},
		Upload: UploadConfig{
			StagingDir: filepath.Join(os.TempDir(), "placement-portal-test"),
			University: "DAVV",
			Category:   "End-Sem",
		},
		Quiz:  QuizConfig{RevealDelay: 1200 * time.Millisecond},
		Toast: ToastConfig{Duration: 5 * time.Second},
	}
}
