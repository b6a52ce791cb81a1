// Package config, uygulamanın tüm konfigürasyonunu merkezi olarak yönetir.
// Environment variable'lardan okur, .env dosyasını da destekler.
//
// Config struct'ı tüm ayarları tek bir yerde toplar, böylece
// her yerde ayrı ayrı os.Getenv() çağırmak yerine tek bir Config nesnesi taşırız.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/nexushq/nexus/pkg/ratelimit"
)

// Config, uygulamanın tüm konfigürasyon değerlerini taşır.
// Her alt bölüm ayrı bir struct — her struct tek bir concern'ü temsil eder.
type Config struct {
	Server    ServerConfig
	Store     StoreConfig
	JWT       JWTConfig
	Voice     VoiceConfig
	Gif       GifConfig
	Upload    UploadConfig
	RateLimit map[string]ratelimit.Rule
}

// ServerConfig, HTTP server ayarları.
type ServerConfig struct {
	Host string
	Port int
}

// StoreConfig, SQLite store ayarları.
type StoreConfig struct {
	URL string // SQLite dosya yolu (ör: ./data/nexus.db)
}

// JWTConfig, JWT token ayarları.
type JWTConfig struct {
	Secret             string // Token imzalama anahtarı — GİZLİ TUTULMALI
	AccessTokenExpiry  int    // Dakika cinsinden (varsayılan: 60)
	RefreshTokenExpiry int    // Gün cinsinden (varsayılan: 7)
}

// ICEServer, client'lara verilen tek bir STUN/TURN sunucu tanımı.
// WebRTC RTCIceServer şekliyle aynıdır — client doğrudan kullanır.
type ICEServer struct {
	URLs       []string `json:"urls"`
	Username   string   `json:"username,omitempty"`
	Credential string   `json:"credential,omitempty"`
}

// VoiceConfig, WebRTC signaling için ICE sunucu listesi.
type VoiceConfig struct {
	// ICEServers: TURN_SERVERS env'den parse edilen liste.
	// Boşsa DefaultICEServers kullanılır (public STUN).
	ICEServers []ICEServer
}

// GifConfig, GIF provider proxy ayarları.
type GifConfig struct {
	GiphyAPIKey string
}

// UploadConfig, avatar/icon upload ayarları.
type UploadConfig struct {
	MaxBytes int64 // base64 data URL boyut sınırı (varsayılan: 2 MiB)
}

// DefaultICEServers, TURN_SERVERS verilmediğinde kullanılan public STUN listesi.
func DefaultICEServers() []ICEServer {
	return []ICEServer{
		{URLs: []string{"stun:stun.l.google.com:19302", "stun:stun1.l.google.com:19302"}},
	}
}

// Load, environment variable'lardan Config oluşturur.
// .env dosyası varsa önce onu yükler (development kolaylığı için).
func Load() (*Config, error) {
	// .env dosyası yoksa hata vermez, sessizce devam eder.
	// Production'da bu dosya olmaz, gerçek env variable'lar kullanılır.
	_ = godotenv.Load()

	port, err := strconv.Atoi(getEnv("PORT", "9090"))
	if err != nil {
		return nil, fmt.Errorf("invalid PORT: %w", err)
	}

	accessExpiry, err := strconv.Atoi(getEnv("JWT_ACCESS_EXPIRY_MINUTES", "60"))
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_ACCESS_EXPIRY_MINUTES: %w", err)
	}

	refreshExpiry, err := strconv.Atoi(getEnv("JWT_REFRESH_EXPIRY_DAYS", "7"))
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_REFRESH_EXPIRY_DAYS: %w", err)
	}

	maxUpload, err := strconv.ParseInt(getEnv("MAX_UPLOAD_BYTES", "2097152"), 10, 64) // 2 MiB
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_UPLOAD_BYTES: %w", err)
	}

	jwtSecret := getEnv("JWT_SECRET", "")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is required")
	}

	iceServers := DefaultICEServers()
	if raw := getEnv("TURN_SERVERS", ""); raw != "" {
		var parsed []ICEServer
		if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
			return nil, fmt.Errorf("invalid TURN_SERVERS (expected JSON array): %w", err)
		}
		// TURN sunucuları varsayılan STUN listesine eklenir — STUN her zaman denenir.
		iceServers = append(iceServers, parsed...)
	}

	rules, err := loadRateLimitRules()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("HOST", "0.0.0.0"),
			Port: port,
		},
		Store: StoreConfig{
			URL: getEnv("STORE_URL", "./data/nexus.db"),
		},
		JWT: JWTConfig{
			Secret:             jwtSecret,
			AccessTokenExpiry:  accessExpiry,
			RefreshTokenExpiry: refreshExpiry,
		},
		Voice: VoiceConfig{
			ICEServers: iceServers,
		},
		Gif: GifConfig{
			GiphyAPIKey: getEnv("GIPHY_API_KEY", ""),
		},
		Upload: UploadConfig{
			MaxBytes: maxUpload,
		},
		RateLimit: rules,
	}

	return cfg, nil
}

// loadRateLimitRules, varsayılan bucket limitlerini RATE_LIMIT_* env
// variable'ları ile override eder.
//
// Format: RATE_LIMIT_MESSAGE_SEND="20/10s" → message.send bucket'ı
// 10 saniyede 20 istek. Bucket adı upper-snake-case'e çevrilir:
// "message.send" → "MESSAGE_SEND".
func loadRateLimitRules() (map[string]ratelimit.Rule, error) {
	rules := ratelimit.DefaultRules()

	for bucket := range rules {
		envKey := "RATE_LIMIT_" + strings.ToUpper(strings.NewReplacer(".", "_").Replace(bucket))
		raw := getEnv(envKey, "")
		if raw == "" {
			continue
		}

		parts := strings.SplitN(raw, "/", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid %s (expected max/window, e.g. 10/10s)", envKey)
		}
		max, err := strconv.Atoi(strings.TrimSpace(parts[0]))
		if err != nil {
			return nil, fmt.Errorf("invalid %s max: %w", envKey, err)
		}
		window, err := time.ParseDuration(strings.TrimSpace(parts[1]))
		if err != nil {
			return nil, fmt.Errorf("invalid %s window: %w", envKey, err)
		}
		rules[bucket] = ratelimit.Rule{Max: max, Window: window}
	}

	return rules, nil
}

// Addr, HTTP server'ın dinleyeceği adresi döner (ör: "0.0.0.0:9090").
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// getEnv, environment variable'ı okur, yoksa fallback değeri döner.
func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}
