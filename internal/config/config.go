package config

import (
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

type Client struct {
	ApplicationName      string  `mapstructure:"application_name"`
	SessionTimeout       float64 `mapstructure:"session_timeout_ms"`
	ConnectTimeout       int64   `mapstructure:"connect_timeout_ms"`
	MaxReferencesPerNode uint32  `mapstructure:"max_references_per_node"`
	MaxDepth             int     `mapstructure:"max_depth"`
	TypeCacheTTL         int     `mapstructure:"type_cache_ttl_seconds"`
}

type Logger struct {
	Level            string `mapstructure:"level"`
	Format           string `mapstructure:"format"`
	DisableTimestamp bool   `mapstructure:"disable_timestamp"`
}

type Cfg struct {
	ClientConfig Client `mapstructure:"client"`
	LoggerConfig Logger `mapstructure:"logger"`
}

// GetConfigs loads the optional JSON config file from ./configs, falling
// back to built-in defaults when no file is present. Values can be
// overridden with UAENUM_ prefixed environment variables.
func GetConfigs() Cfg {
	var configs Cfg
	logger := logrus.New()
	v := viper.New()

	v.SetConfigName("config") // name of config file (without extension)
	v.SetConfigType("json")   // REQUIRED if the config file does not have the extension in the name
	v.AddConfigPath("./configs/")
	v.AddConfigPath(".")
	v.SetEnvPrefix("UAENUM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefault(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			logger.Errorln("Config file was found but another error was produced")
			panic(err)
		}
		// Config file not found, defaults apply
	}

	if err := v.Unmarshal(&configs); err != nil {
		logger.Errorln("Unable to unmarshal configs")
		panic(err)
	}
	return configs
}

func setDefault(v *viper.Viper) {
	v.SetDefault("client.application_name", "uaenum")
	v.SetDefault("client.session_timeout_ms", float64(120000))
	v.SetDefault("client.connect_timeout_ms", int64(5000))
	v.SetDefault("client.max_references_per_node", uint32(1000))
	v.SetDefault("client.max_depth", 64)
	v.SetDefault("client.type_cache_ttl_seconds", 300)

	v.SetDefault("logger.level", "INFO")
	v.SetDefault("logger.format", "TEXT")
	v.SetDefault("logger.disable_timestamp", true)
}
