package utils

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Configurazione del backend remoto
type ServerConfig struct {
	BaseURL   string `json:"baseUrl"`
	SocketURL string `json:"socketUrl"`
	UploadURL string `json:"uploadUrl"`
}

// Configurazione dei file locali del client
type StorageConfig struct {
	SessionPath string `json:"sessionPath"`
	CachePath   string `json:"cachePath"`
}

// Configurazione della riconnessione del socket
type SocketConfig struct {
	ReconnectDelayMs    int `json:"reconnectDelayMs"`
	ReconnectDelayMaxMs int `json:"reconnectDelayMaxMs"`
	ReconnectAttempts   int `json:"reconnectAttempts"`
}

// Configurazione completa
type Config struct {
	Server           ServerConfig  `json:"server"`
	Storage          StorageConfig `json:"storage"`
	Socket           SocketConfig  `json:"socket"`
	MaxRecordSeconds int           `json:"maxRecordSeconds"`
}

// DefaultConfig restituisce la configurazione predefinita
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			BaseURL:   "http://localhost:3000",
			SocketURL: "ws://localhost:3000/socket",
			UploadURL: "http://localhost:3000",
		},
		Storage: StorageConfig{
			SessionPath: "session.db",
			CachePath:   "cache.db",
		},
		Socket: SocketConfig{
			ReconnectDelayMs:    1000,
			ReconnectDelayMaxMs: 5000,
			ReconnectAttempts:   5,
		},
		MaxRecordSeconds: 600,
	}
}

// Carica la configurazione dal file, con override dalle variabili
// d'ambiente (anche da un eventuale file .env)
func LoadConfig(filePath string) (*Config, error) {
	godotenv.Load()

	config := DefaultConfig()

	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("errore nell'apertura del file di configurazione: %v", err)
	}
	defer file.Close()

	decoder := json.NewDecoder(file)
	if err := decoder.Decode(config); err != nil {
		return nil, fmt.Errorf("errore nella decodifica del file di configurazione: %v", err)
	}

	applyEnvOverrides(config)
	return config, nil
}

func applyEnvOverrides(config *Config) {
	if v := os.Getenv("CHAT_SERVER_URL"); v != "" {
		config.Server.BaseURL = v
	}
	if v := os.Getenv("CHAT_SOCKET_URL"); v != "" {
		config.Server.SocketURL = v
	}
	if v := os.Getenv("CHAT_UPLOAD_URL"); v != "" {
		config.Server.UploadURL = v
	}
	if v := os.Getenv("CHAT_SESSION_PATH"); v != "" {
		config.Storage.SessionPath = v
	}
	if v := os.Getenv("CHAT_CACHE_PATH"); v != "" {
		config.Storage.CachePath = v
	}
	if v := os.Getenv("CHAT_MAX_RECORD_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.MaxRecordSeconds = n
		}
	}
}
