package config

import "github.com/caarlos0/env/v10"

// Config centraliza la configuración del bridge.
type Config struct {
	HTTPPort  string `env:"HTTP_PORT" envDefault:"8765"`
	AssetRoot string `env:"ASSET_ROOT,required"`

	// Persistencia opcional del historial; vacío = solo memoria.
	DatabaseURL string `env:"DATABASE_URL"`
	// SessionID estable para que un reinicio del proceso recupere el
	// historial persistido.
	SessionID string `env:"SESSION_ID" envDefault:"main"`

	LLMAPIKey       string `env:"LLM_API_KEY"`
	LLMBaseURL      string `env:"LLM_BASE_URL" envDefault:"https://api.openai.com/v1"`
	LLMModel        string `env:"LLM_MODEL" envDefault:"gpt-4o-mini"`
	TranscribeModel string `env:"TRANSCRIBE_MODEL" envDefault:"whisper-1"`

	ExecutorBaseURL        string `env:"EXECUTOR_BASE_URL" envDefault:"http://127.0.0.1:8777"`
	ExecutorTimeoutSeconds int    `env:"EXECUTOR_TIMEOUT_SECONDS" envDefault:"30"`

	HeartbeatSeconds int `env:"HEARTBEAT_SECONDS" envDefault:"30"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	GenRateWindowSeconds int `env:"GEN_RATE_WINDOW_SECONDS" envDefault:"60"`
	GenRateMax           int `env:"GEN_RATE_MAX" envDefault:"20"`
}

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
