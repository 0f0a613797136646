package config

import (
	"flag"
	"log"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type (
	Config struct {
		App     `yaml:"app"`
		HTTP    `yaml:"http"`
		API     `yaml:"api"`
		Log     `yaml:"logger"`
		Metrics `yaml:"metrics"`
	}

	App struct {
		Env             string `yaml:"env"              env-default:"local"`
		Name            string `yaml:"name"             env-default:"dav-bridge"`
		Version         string `yaml:"version"          env-required:"true"    env:"APP_VERSION"`
		PrincipalPrefix string `yaml:"principal_prefix" env-default:"principals"`
		CalDAVPrefix    string `yaml:"caldav_prefix"    env-default:"calendars"`
		CardDAVPrefix   string `yaml:"carddav_prefix"   env-default:"contacts"`
	}

	HTTP struct {
		IP         string        `yaml:"ip"           env-default:"0.0.0.0"`
		Port       string        `yaml:"port"         env-default:"8082"`
		Timeout    time.Duration `yaml:"timeout"      env-default:"4s"`
		IdleTimout time.Duration `yaml:"idle_timeout" env-default:"60s"`
		CORS       struct {
			AllowedMethods     []string `yaml:"allowed_methods"`
			AllowedOrigins     []string `yaml:"allowed_origins"`
			AllowCredentials   bool     `yaml:"allow_credentials"`
			AllowedHeaders     []string `yaml:"allowed_headers"`
			OptionsPassthrough bool     `yaml:"options_passthrough"`
			ExposedHeaders     []string `yaml:"exposed_headers"`
			Debug              bool     `yaml:"debug"`
		} `yaml:"cors"`
	}

	// API locates the REST backend. BaseURL covers all three services;
	// per-service hosts override it when the backend is split.
	API struct {
		BaseURL     string        `yaml:"base_url"     env-required:"true" env:"API_BASE_URL"`
		DAVHost     string        `yaml:"dav_host"`
		CalDAVHost  string        `yaml:"caldav_host"`
		CardDAVHost string        `yaml:"carddav_host"`
		DAVPath     string        `yaml:"dav_path"     env-default:"api/dav/v1"`
		CalDAVPath  string        `yaml:"caldav_path"  env-default:"api/caldav/v1"`
		CardDAVPath string        `yaml:"carddav_path" env-default:"api/carddav/v1"`
		Timeout     time.Duration `yaml:"timeout"      env-default:"30s"`
	}

	Log struct {
		Level string `yaml:"log_level" env-required:"true" env:"LOG_LEVEL"`
	}

	Metrics struct {
		Enabled bool   `yaml:"enabled" env-default:"false"`
		Port    string `yaml:"port"    env-default:"9090"`
	}
)

const (
	EnvConfigPathName  = "CONFIG-PATH"
	FlagConfigPathName = "config"
)

var (
	configPath string
	instance   *Config
	once       sync.Once
)

// GetConfig returns app configs.
func GetConfig() *Config {
	once.Do(func() {
		flag.StringVar(
			&configPath,
			FlagConfigPathName,
			"./configs/config.yml",
			"this is app config file",
		)
		flag.Parse()

		log.Print("config init")

		if configPath == "" {
			configPath = os.Getenv(EnvConfigPathName)
		}

		if configPath == "" {
			log.Fatal("config path is required")
		}

		instance = &Config{}

		if err := cleanenv.ReadConfig(configPath, instance); err != nil {
			helpText := "DAV-Bridge - CalDAV+CardDAV gateway to a REST backend"
			help, _ := cleanenv.GetDescription(instance, &helpText)
			log.Print(help)
			log.Fatal(err)
		}
	})
	return instance
}

// DAVHostURL composes the principals service endpoint.
func (a API) DAVHostURL() string {
	return buildHost(a.BaseURL, a.DAVHost, a.DAVPath)
}

// CalDAVHostURL composes the calendars service endpoint.
func (a API) CalDAVHostURL() string {
	return buildHost(a.BaseURL, a.CalDAVHost, a.CalDAVPath)
}

// CardDAVHostURL composes the contacts service endpoint.
func (a API) CardDAVHostURL() string {
	return buildHost(a.BaseURL, a.CardDAVHost, a.CardDAVPath)
}

func buildHost(baseHost, host, servicePath string) string {
	h := strings.TrimRight(baseHost, "/")
	if host != "" {
		h = strings.TrimRight(host, "/")
	}
	u, err := url.Parse(h)
	if err != nil {
		return h + "/" + strings.Trim(servicePath, "/")
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.Trim(servicePath, "/")
	return u.String()
}
