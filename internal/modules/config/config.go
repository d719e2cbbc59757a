package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"
)

const (
	configFilePathENV = "CONFIG_FILE"
	tokenTelegramENV  = "TELEGRAM_TOKEN"
	databaseDSN       = "DATABASE_DSN"
	llmAPIKeyENV      = "LLM_API_KEY"
	bridgeAPIKeyENV   = "BRIDGE_API_KEY"
)

// Config ...
type Config struct {
	Telegram struct {
		Token          string `yaml:"token"`
		ChannelID      int64  `yaml:"channel_id"`       // сигнальный канал
		OperatorChatID int64  `yaml:"operator_chat_id"` // чат для статусов и подтверждений
	} `yaml:"telegram"`

	LLM struct {
		Endpoint    string        `yaml:"endpoint"`
		APIKey      string        `yaml:"api_key"`
		Model       string        `yaml:"model"`
		Temperature float64       `yaml:"temperature"`
		HistorySize int           `yaml:"history_size"`
		Timeout     time.Duration
	} `yaml:"llm"`

	Bridge struct {
		BaseURL    string        `yaml:"base_url"`
		WSURL      string        `yaml:"ws_url"`
		APIKey     string        `yaml:"api_key"`
		Timeout    time.Duration
		RetryMax   int           `yaml:"retry_max"`   // бюджет реквотов
		RetryPause time.Duration // пауза между попытками
	} `yaml:"bridge"`

	DB string `yaml:"db_dsn"`

	Trading struct {
		DefaultLot  float64 `yaml:"default_lot"`
		MaxLot      float64 `yaml:"max_lot"`
		DefaultPair string  `yaml:"default_pair"`

		// Серия рыночных/стоповых суб-ордеров с частичным закрытием по TP
		SequentialPartialClose bool `yaml:"sequential_partial_close"`

		// midpoint | closest | farthest | distributed
		EntryRangeStrategy string `yaml:"entry_range_strategy"`

		// none | first_tp_first_trade | custom_mapping
		TPAssignMode string `yaml:"tp_assign_mode"`
		TPMapping    []int  `yaml:"tp_mapping"` // индексы TP по порядку суб-сделок

		// TP только у первой суб-сделки, остальные без тейка
		PartialTPFree bool `yaml:"partial_tp_free"`

		MarketConfirm     bool          `yaml:"market_confirm"` // подтверждение рыночных входов кнопками
		ConfirmTimeout    time.Duration
		CooldownPerSymbol time.Duration

		// limit | stop — что ставить при равенстве цены входа и рынка
		EqualPriceOrderType string `yaml:"equal_price_order_type"`
	} `yaml:"trading"`

	Decision struct {
		PriceActionWeight float64 `yaml:"price_action_weight"`
		SentimentWeight   float64 `yaml:"sentiment_weight"`
		Threshold         float64 `yaml:"threshold"`
	} `yaml:"decision"`

	// Флаги команд-обновлений
	Updates struct {
		AllowModifySLTP    bool `yaml:"allow_modify_sltp"`
		AllowMoveSL        bool `yaml:"allow_move_sl"`
		AllowSetBE         bool `yaml:"allow_set_be"`
		AllowClose         bool `yaml:"allow_close"`
		AllowPartialClose  bool `yaml:"allow_partial_close"`
		AllowCancelPending bool `yaml:"allow_cancel_pending"`
		AllowModifyEntry   bool `yaml:"allow_modify_entry"`
	} `yaml:"updates"`

	AutoSL struct {
		Enabled      bool          `yaml:"enabled"`
		Delay        time.Duration
		DistancePips float64       `yaml:"distance_pips"`
	} `yaml:"auto_sl"`

	AutoTP struct {
		Enabled      bool    `yaml:"enabled"`
		DistancePips float64 `yaml:"distance_pips"`
	} `yaml:"auto_tp"`

	DedupCapacity   int           `yaml:"dedup_capacity"`
	MonitorInterval time.Duration

	Logging struct {
		File       string `yaml:"file"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAgeDays int    `yaml:"max_age_days"`
	} `yaml:"logging"`

	Tracing struct {
		Enabled bool   `yaml:"enabled"`
		Host    string `yaml:"host"`
		Port    int    `yaml:"port"`
	} `yaml:"tracing"`
}

func NewConfig() (*Config, error) {

	configFileName := os.Getenv(configFilePathENV)
	if configFileName == "" {
		configFileName = "values_local.yaml"
	}
	file, err := os.Open("configs/" + configFileName)
	if err != nil {
		log.Fatalf("Failed to open config file: %v", err)
	}

	defer func() {
		_ = file.Close()
	}()

	decoder := yaml.NewDecoder(file)
	config := Config{}

	config.Trading.DefaultLot = floatFromEnv("DEFAULT_LOT", 0.01)
	config.Trading.MaxLot = floatFromEnv("MAX_LOT", 5.0)
	config.Trading.EntryRangeStrategy = getenvDefault("ENTRY_RANGE_STRATEGY", "midpoint")
	config.Trading.TPAssignMode = getenvDefault("TP_ASSIGN_MODE", "first_tp_first_trade")
	config.Trading.MarketConfirm = boolFromEnv("MARKET_CONFIRM", true)
	config.Trading.ConfirmTimeout = durationFromEnv("CONFIRM_TIMEOUT", "60s")
	config.Trading.CooldownPerSymbol = durationFromEnv("COOLDOWN_PER_SYMBOL", "60s")
	config.Trading.EqualPriceOrderType = getenvDefault("EQUAL_PRICE_ORDER_TYPE", "limit")

	config.Decision.PriceActionWeight = floatFromEnv("DECISION_PRICE_ACTION_W", 0.5)
	config.Decision.SentimentWeight = floatFromEnv("DECISION_SENTIMENT_W", 0.5)
	config.Decision.Threshold = floatFromEnv("DECISION_THRESHOLD", 0.6)

	config.Updates.AllowModifySLTP = boolFromEnv("ALLOW_MODIFY_SLTP", true)
	config.Updates.AllowMoveSL = boolFromEnv("ALLOW_MOVE_SL", true)
	config.Updates.AllowSetBE = boolFromEnv("ALLOW_SET_BE", true)
	config.Updates.AllowClose = boolFromEnv("ALLOW_CLOSE", true)
	config.Updates.AllowPartialClose = boolFromEnv("ALLOW_PARTIAL_CLOSE", true)
	config.Updates.AllowCancelPending = boolFromEnv("ALLOW_CANCEL_PENDING", true)
	config.Updates.AllowModifyEntry = boolFromEnv("ALLOW_MODIFY_ENTRY", true)

	config.AutoSL.Delay = durationFromEnv("AUTO_SL_DELAY", "3m")
	config.AutoSL.DistancePips = floatFromEnv("AUTO_SL_DISTANCE_PIPS", 30)
	config.AutoTP.DistancePips = floatFromEnv("AUTO_TP_DISTANCE_PIPS", 50)

	config.DedupCapacity = intFromEnv("DEDUP_CAPACITY", 500)
	config.MonitorInterval = durationFromEnv("MONITOR_INTERVAL", "15s")

	config.Bridge.Timeout = durationFromEnv("BRIDGE_TIMEOUT", "10s")
	config.Bridge.RetryMax = intFromEnv("BRIDGE_RETRY_MAX", 3)
	config.Bridge.RetryPause = durationFromEnv("BRIDGE_RETRY_PAUSE", "500ms")

	config.LLM.Timeout = durationFromEnv("LLM_TIMEOUT", "30s")
	config.LLM.HistorySize = intFromEnv("LLM_HISTORY_SIZE", 10)

	err = decoder.Decode(&config)
	if err != nil {
		log.Fatalf("Failed to decode config file: %v", err)
	}

	if token := os.Getenv(tokenTelegramENV); token != "" {
		config.Telegram.Token = token
	}
	if dsn := os.Getenv(databaseDSN); dsn != "" {
		config.DB = dsn
	}
	if key := os.Getenv(llmAPIKeyENV); key != "" {
		config.LLM.APIKey = key
	}
	if key := os.Getenv(bridgeAPIKeyENV); key != "" {
		config.Bridge.APIKey = key
	}

	return &config, nil
}

func getenvRequired(key string) string {
	v := os.Getenv(key)
	if v == "" {
		panic(fmt.Sprintf("env %s is required", key))
	}
	return v
}

func intFromEnv(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func floatFromEnv(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func boolFromEnv(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if v == "1" || v == "true" || v == "TRUE" {
			return true
		}
		if v == "0" || v == "false" || v == "FALSE" {
			return false
		}
	}
	return def
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func durationFromEnv(key, def string) time.Duration {
	val := getenvDefault(key, def)
	d, err := time.ParseDuration(val)
	if err != nil {
		d, _ = time.ParseDuration(def)
	}
	return d
}
