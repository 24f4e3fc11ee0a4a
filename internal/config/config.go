package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App struct {
		Env      string
		Timezone string
	} `mapstructure:"app"`

	HTTP struct {
		Addr string
	} `mapstructure:"http"`

	Postgres struct {
		DSN string
	} `mapstructure:"postgres"`

	Metrics struct {
		Enabled bool
	} `mapstructure:"metrics"`

	Telegram struct {
		Token       string
		SendTimeout time.Duration `mapstructure:"send_timeout"`
	} `mapstructure:"telegram"`

	Ledger struct {
		WarnThresholdDays int           `mapstructure:"warn_threshold_days"`
		ScanInterval      time.Duration `mapstructure:"scan_interval"`
		// Substitution priority: key is the requested service type name,
		// value lists the types allowed to cover for it, best first.
		// Not symmetric: "brain: [pulse]" does not imply "pulse: [brain]".
		Substitutions map[string][]string `mapstructure:"substitutions"`
	} `mapstructure:"ledger"`
}

func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("APP")
	v.AutomaticEnv()

	v.SetDefault("ledger.warn_threshold_days", 7)
	v.SetDefault("ledger.scan_interval", "24h")
	v.SetDefault("telegram.send_timeout", "5s")

	var c Config
	if err := v.ReadInConfig(); err != nil {
		return c, err
	}
	if err := v.Unmarshal(&c); err != nil {
		return c, err
	}
	return c, nil
}
