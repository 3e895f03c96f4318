// internal/common/config/config.go
package config

// Config is the main application configuration struct.
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Backend    BackendConfig    `mapstructure:"backend"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Upload     UploadConfig     `mapstructure:"upload"`
	Validation ValidationConfig `mapstructure:"validation"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// BackendConfig locates the loan-origination API.
type BackendConfig struct {
	BaseURL   string          `mapstructure:"base_url"`
	Timeout   int             `mapstructure:"timeout"` // milliseconds
	Endpoints EndpointsConfig `mapstructure:"endpoints"`
}

// EndpointsConfig holds paths relative to BaseURL.
type EndpointsConfig struct {
	Applications string `mapstructure:"applications"`
	IDCardTypes  string `mapstructure:"id_card_types"`
	ProductTypes string `mapstructure:"product_types"`
	SelfieUpload string `mapstructure:"selfie_upload"`
	FileUpload   string `mapstructure:"file_upload"`
}

// AuthConfig holds the OAuth2 password-grant settings and officer credentials.
type AuthConfig struct {
	TokenURL     string `mapstructure:"token_url"`
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	Timeout      int    `mapstructure:"timeout"` // milliseconds
}

// UploadConfig holds pre-flight limits. Sizes are bytes.
type UploadConfig struct {
	MaxImageBytes    int64    `mapstructure:"max_image_bytes"`
	MaxDocumentBytes int64    `mapstructure:"max_document_bytes"`
	AllowedTypes     []string `mapstructure:"allowed_types"`
	Timeout          int      `mapstructure:"timeout"` // milliseconds
}

type ValidationConfig struct {
	PhoneRegion string `mapstructure:"phone_region"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

type MetricsConfig struct {
	ListenAddress string `mapstructure:"listen_address"`
}
