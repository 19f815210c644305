package serverconfig

import (
	"flag"
	"os"
)

type ConfigStore struct {
	FlagRunAddr     string
	FlagDatabase    string
	FlagLogLevel    string
	FlagBaseURL     string
	FlagEmailAPIURL string
	FlagEmailAPIKey string
	FlagEmailFrom   string
	// cron-выражение для фонового созревания кешбека, пусто - выключено
	FlagSweepSpec string
}

func NewConfigStore() *ConfigStore {
	return &ConfigStore{}
}

// ParseFlags обрабатывает аргументы командной строки
// и переопределяет их переменными окружения
func (configStore *ConfigStore) ParseFlags() {
	flag.StringVar(&configStore.FlagRunAddr, "a", ":8080", "address and port to run server")
	flag.StringVar(&configStore.FlagDatabase, "d", "", "data for connecting to db")
	flag.StringVar(&configStore.FlagLogLevel, "l", "info", "log level")
	flag.StringVar(&configStore.FlagBaseURL, "b", "http://localhost:8080", "public base url for referral links")
	flag.StringVar(&configStore.FlagEmailAPIURL, "e", "https://api.resend.com/emails", "email API url")
	flag.StringVar(&configStore.FlagEmailAPIKey, "k", "", "email API key, empty disables notifications")
	flag.StringVar(&configStore.FlagEmailFrom, "f", "onboarding@resend.dev", "email sender address")
	flag.StringVar(&configStore.FlagSweepSpec, "s", "", "cron spec for cashback maturation sweep")
	flag.Parse()

	if envRunAddr := os.Getenv("RUN_ADDRESS"); envRunAddr != "" {
		configStore.FlagRunAddr = envRunAddr
	}
	if envDatabase := os.Getenv("DATABASE_URI"); envDatabase != "" {
		configStore.FlagDatabase = envDatabase
	}
	if envLogLevel := os.Getenv("LOG_LEVEL"); envLogLevel != "" {
		configStore.FlagLogLevel = envLogLevel
	}
	if envBaseURL := os.Getenv("BASE_URL"); envBaseURL != "" {
		configStore.FlagBaseURL = envBaseURL
	}
	if envEmailAPIURL := os.Getenv("EMAIL_API_URL"); envEmailAPIURL != "" {
		configStore.FlagEmailAPIURL = envEmailAPIURL
	}
	if envEmailAPIKey := os.Getenv("EMAIL_API_KEY"); envEmailAPIKey != "" {
		configStore.FlagEmailAPIKey = envEmailAPIKey
	}
	if envEmailFrom := os.Getenv("EMAIL_FROM"); envEmailFrom != "" {
		configStore.FlagEmailFrom = envEmailFrom
	}
	if envSweepSpec := os.Getenv("CASHBACK_SWEEP_SPEC"); envSweepSpec != "" {
		configStore.FlagSweepSpec = envSweepSpec
	}
}
