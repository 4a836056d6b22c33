package config

import (
	"log"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	App     AppConfig     `mapstructure:"app"`
	Chain   ChainConfig   `mapstructure:"chain"`
	Staking StakingConfig `mapstructure:"staking"`
	DB      DBConfig      `mapstructure:"db"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Kafka   KafkaConfig   `mapstructure:"kafka"`
	Wallet  WalletConfig  `mapstructure:"wallet"`
}

type AppConfig struct {
	Env      string `mapstructure:"env"`
	HttpPort string `mapstructure:"http_port"`
}

// ChainConfig 描述链节点和合约地址
type ChainConfig struct {
	NodeURL   string            `mapstructure:"node_url"`
	ChainID   int64             `mapstructure:"chain_id"`
	ChainTag  uint8             `mapstructure:"chain_tag"`
	AppID     string            `mapstructure:"app_id"`
	AppName   string            `mapstructure:"app_name"`
	Contracts map[string]string `mapstructure:"contracts"`
}

// StakingConfig 质押相关的限额和窗口配置
type StakingConfig struct {
	TokenDecimals         int    `mapstructure:"token_decimals"`
	MinStakeWei           string `mapstructure:"min_stake_wei"`
	MaxStakeWei           string `mapstructure:"max_stake_wei"`
	MaxOperationsPerMin   int    `mapstructure:"max_operations_per_min"`
	BalanceStaleSeconds   int    `mapstructure:"balance_stale_seconds"`
	IdentityStaleSeconds  int    `mapstructure:"identity_stale_seconds"`
	CacheMaxAgeMinutes    int    `mapstructure:"cache_max_age_minutes"`
	AuthValidWindowMinute int    `mapstructure:"auth_valid_window_minute"`
}

type DBConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	MQType   string `mapstructure:"mq_type"` // "redis" or "kafka"
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
}

type WalletConfig struct {
	Mnemonic string `mapstructure:"mnemonic"` // CLI 本地签名用，通过环境变量 WALLET_MNEMONIC 传入
	Path     string `mapstructure:"path"`     // 派生路径
}

var Global Config

func Init() {
	viper.SetConfigName("config") // name of config file (without extension)
	viper.SetConfigType("yaml")   // REQUIRED if the config file does not have the extension in the name
	viper.AddConfigPath(".")      // optionally look for config in the working directory
	viper.AddConfigPath("./config")

	// 环境变量设置
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// 设置默认值
	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; ignore error if desired
			log.Printf("Warning: Config file not found, using defaults and environment variables")
		} else {
			// Config file was found but another error was produced
			log.Fatalf("Fatal error config file: %s \n", err)
		}
	}

	if err := viper.Unmarshal(&Global); err != nil {
		log.Fatalf("Unable to decode into struct, %v", err)
	}

	log.Printf("Configuration loaded successfully. Env: %s", Global.App.Env)
}

func setDefaults() {
	viper.SetDefault("app.env", "development")
	viper.SetDefault("app.http_port", "8080")

	viper.SetDefault("chain.node_url", "https://mainnet.vechain.org")
	viper.SetDefault("chain.chain_id", 100009)
	viper.SetDefault("chain.chain_tag", 0x4a)
	viper.SetDefault("chain.app_id", "0x68c854d0aef9f5517d58d4772395d0ab44d914070fa6ca5a96f2146ca1449248")
	viper.SetDefault("chain.app_name", "BigBottle")
	viper.SetDefault("chain.contracts", map[string]string{
		"vedelegate": "0xfc32a9895C78CE00A1047d602Bd81Ea8134CC32b",
		"b3tr":       "0x5ef79995FE8a89e0812330E4378eB2660ceDe699",
		"vot3":       "0x76Ca782B59C74d088C7D2Cce2f211BC00836c602",
		"passport":   "0x35a267671d8EDD607B2056A9a13E7ba7CF53c8b3",
		"dao":        "0x89A00Bb0947a30FF95BEeF77a66AEdE3842Fe5B7",
		"rewardpool": "0x838A33AF756a6366f93e201423E1425f67eC0Fa7",
	})

	viper.SetDefault("staking.token_decimals", 18)
	viper.SetDefault("staking.min_stake_wei", "1000000000000000")          // 0.001 tokens
	viper.SetDefault("staking.max_stake_wei", "1000000000000000000000000") // 1M tokens
	viper.SetDefault("staking.max_operations_per_min", 5)
	viper.SetDefault("staking.balance_stale_seconds", 15)
	viper.SetDefault("staking.identity_stale_seconds", 180)
	viper.SetDefault("staking.cache_max_age_minutes", 30)
	viper.SetDefault("staking.auth_valid_window_minute", 60)

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.user", "staking_user")
	viper.SetDefault("db.password", "staking_password")
	viper.SetDefault("db.name", "staking_db")

	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.mq_type", "redis")

	viper.SetDefault("kafka.brokers", []string{"localhost:9092"})

	viper.SetDefault("wallet.path", "m/44'/818'/0'/0/0")
}
