package models

// MConfig Structure
type MConfig struct {
	Name     string         `yaml:"name"`
	Host     string         `yaml:"host"`
	Port     int            `yaml:"port"`
	LogLevel string         `yaml:"log_level"`
	GrpcHost string         `yaml:"grpc_host"`
	GrpcPort int            `yaml:"grpc_port"`
	Storage  MStorageConfig `yaml:"storage"`
	Network  MNetworkConfig `yaml:"network"`
	Quotes   MQuotesConfig  `yaml:"quotes"`
}

type MStorageConfig struct {
	DBType             string `yaml:"db_type"` // sqlite, postgres or redis
	DBPath             string `yaml:"db_path"`
	DBConnectionString string `yaml:"db_connection_string"`
	RedisAddr          string `yaml:"redis_addr"`
}

type MNetworkConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Proxies        []string `yaml:"proxies"`
	RequestTimeout int      `yaml:"timeout"`
	MaxRetries     int      `yaml:"retries"`
	UserAgent      string   `yaml:"user_agent"`
}

type MQuotesConfig struct {
	DefaultSymbols         []string `yaml:"default_symbols"`
	RefreshIntervalMinutes int      `yaml:"refresh_interval_minutes"`
	AlphaVantageAPIKey     string   `yaml:"alpha_vantage_api_key"` // Optional
	AlphaVantagePerMinute  int      `yaml:"alpha_vantage_per_minute"`
	YahooBaseURL           string   `yaml:"yahoo_base_url"`
	AlphaVantageBaseURL    string   `yaml:"alpha_vantage_base_url"`
	CoinGeckoBaseURL       string   `yaml:"coingecko_base_url"`
}
