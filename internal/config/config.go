package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	HTTP     HTTPConfig     `yaml:"http" mapstructure:"http"`
	Cache    CacheConfig    `yaml:"cache" mapstructure:"cache"`
	Datasets DatasetsConfig `yaml:"datasets" mapstructure:"datasets"`
	Registry RegistryConfig `yaml:"registry" mapstructure:"registry"`
	Analysis AnalysisConfig `yaml:"analysis" mapstructure:"analysis"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// HTTPConfig configures the shared upstream HTTP client.
type HTTPConfig struct {
	TimeoutSecs int `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

func (c HTTPConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// CacheConfig configures the on-disk registry cache.
type CacheConfig struct {
	Dir     string `yaml:"dir" mapstructure:"dir"`
	TTLDays int    `yaml:"ttl_days" mapstructure:"ttl_days"`
}

// DatasetsConfig points at the dataset definition files.
type DatasetsConfig struct {
	Dir             string `yaml:"dir" mapstructure:"dir"`
	LocalGeolettDir string `yaml:"local_geolett_dir" mapstructure:"local_geolett_dir"`
}

// RegistryConfig holds the Geonorge registry endpoints.
type RegistryConfig struct {
	KartkatalogAPI  string `yaml:"kartkatalog_api" mapstructure:"kartkatalog_api"`
	GeolettAPI      string `yaml:"geolett_api" mapstructure:"geolett_api"`
	KartgrunnlagAPI string `yaml:"kartgrunnlag_api" mapstructure:"kartgrunnlag_api"`
	DokStatusAPI    string `yaml:"dok_status_api" mapstructure:"dok_status_api"`
	CodelistAPI     string `yaml:"codelist_api" mapstructure:"codelist_api"`
	AdminUnitsWFS   string `yaml:"admin_units_wfs" mapstructure:"admin_units_wfs"`
}

// AnalysisConfig tunes the per-request analysis fan-out.
type AnalysisConfig struct {
	MaxConcurrent int `yaml:"max_concurrent" mapstructure:"max_concurrent"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("DOKANALYSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("http.timeout_secs", 20)
	v.SetDefault("cache.dir", "cache")
	v.SetDefault("cache.ttl_days", 7)
	v.SetDefault("datasets.dir", "datasets")
	v.SetDefault("datasets.local_geolett_dir", "")
	v.SetDefault("analysis.max_concurrent", 10)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("registry.kartkatalog_api", "https://kartkatalog.geonorge.no/api/getdata/")
	v.SetDefault("registry.geolett_api", "https://register.geonorge.no/geolett/api/")
	v.SetDefault("registry.kartgrunnlag_api", "https://register.geonorge.no/api/det-offentlige-kartgrunnlaget-kommunalt.json")
	v.SetDefault("registry.dok_status_api", "https://register.geonorge.no/api/dok-statusregisteret.json")
	v.SetDefault("registry.codelist_api", "https://register.geonorge.no/api/sosi-kodelister/temadata/fullstendighetsdekningskart/")
	v.SetDefault("registry.admin_units_wfs", "https://wfs.geonorge.no/skwms1/wfs.administrative_enheter")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings the server cannot run without.
func (c *Config) Validate() error {
	var problems []string
	if c.Server.Port <= 0 {
		problems = append(problems, "server.port must be > 0")
	}
	if c.HTTP.TimeoutSecs <= 0 {
		problems = append(problems, "http.timeout_secs must be > 0")
	}
	if c.Cache.TTLDays < 0 {
		problems = append(problems, "cache.ttl_days must be >= 0")
	}
	if c.Analysis.MaxConcurrent < 1 || c.Analysis.MaxConcurrent > 50 {
		problems = append(problems, "analysis.max_concurrent must be between 1 and 50")
	}
	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
