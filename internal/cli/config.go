package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the default name of the config file
const DefaultConfigFile = "config.yaml"

// Config represents the configuration for the Atlas CLI
// It contains server connection details and authentication information
type Config struct {
	// Version of the configuration file format
	Version string `yaml:"version"`
	// ServerURL is the URL and port of the Atlas server
	ServerURL string `yaml:"server_url"`
	// Token is the bearer token issued for the user
	Token string `yaml:"token"`
	// TokenExpiry is when the token expires, RFC 3339
	TokenExpiry string `yaml:"token_expiry,omitempty"`
}

var config *Config

// GetDefaultConfigPath returns the default path for the config file
// It uses the OS-specific config directory (e.g., ~/.config/atlas on Linux)
func GetDefaultConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}
	return filepath.Join(configDir, "atlas", DefaultConfigFile), nil
}

// LoadConfig loads the configuration from the specified file
// If no file is specified, it uses the default config location
func LoadConfig(file string) error {
	if file == "" {
		var err error
		file, err = GetDefaultConfigPath()
		if err != nil {
			return fmt.Errorf("failed to get default config path: %w", err)
		}
	}

	yamlStr, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("unable to read config file: %w", err)
	}

	var c Config
	if err = yaml.Unmarshal(yamlStr, &c); err != nil {
		return fmt.Errorf("unable to parse config file: %w", err)
	}

	if c.ServerURL == "" {
		return errors.New("server_url is required")
	}

	c.ServerURL = MorphServer(c.ServerURL)

	config = &c
	return nil
}

// GetConfig returns the current configuration
func GetConfig() *Config {
	return config
}

// WriteConfig writes the configuration to the specified file
func (cfg *Config) WriteConfig(file string) error {
	if file == "" {
		return errors.New("file path cannot be empty")
	}

	err := os.MkdirAll(filepath.Dir(file), 0o700)
	if err != nil {
		return fmt.Errorf("unable to create config directory: %w", err)
	}

	yamlStr, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("unable to generate configuration: %w", err)
	}

	err = os.WriteFile(file, yamlStr, os.FileMode(0600))
	if err != nil {
		return fmt.Errorf("unable to write config file: %w", err)
	}

	return nil
}

// MorphServer ensures the server URL is properly formatted
// Adds https:// prefix if missing and removes trailing slashes
func MorphServer(server string) string {
	if server == "" {
		return server
	}

	server = strings.TrimRight(server, "/")

	if !strings.HasPrefix(server, "http://") && !strings.HasPrefix(server, "https://") {
		server = "https://" + server
	}

	return server
}

// GetServerURL returns the properly formatted server URL
func (cfg *Config) GetServerURL() string {
	return MorphServer(cfg.ServerURL)
}

// GetToken returns the bearer token from the configuration
func (cfg *Config) GetToken() string {
	return cfg.Token
}

// GetTokenExpiry returns the token expiry time from the configuration
func (cfg *Config) GetTokenExpiry() time.Time {
	if cfg.TokenExpiry == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, cfg.TokenExpiry)
	if err != nil {
		return time.Time{}
	}
	return t
}

// tokenExpiry reads the exp claim without verifying the signature. The
// server verifies; the CLI only needs to know when to stop sending it.
func tokenExpiry(token string) (time.Time, error) {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, fmt.Errorf("token is not a valid JWT: %w", err)
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, nil
	}
	return claims.ExpiresAt.Time, nil
}

// newLoginCmd creates and returns a new login command
func newLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store the server address and your bearer token",
		Long: `Store the Atlas server address and a bearer token in the CLI configuration file.
Tokens are issued by an administrator (atlassrv -issue-token <user-id>).

Examples:
  atlas login --server atlas.example.com:8678 --token <token>
  atlas login --token <new token>   # keep the stored server`,
		RunE: runLogin,
	}

	cmd.Flags().String("server", "", "Server URL and port (e.g., atlas.example.com:8678)")
	cmd.Flags().String("token", "", "Bearer token")
	return cmd
}

// runLogin handles the login command execution
func runLogin(cmd *cobra.Command, args []string) error {
	server, _ := cmd.Flags().GetString("server")
	token, _ := cmd.Flags().GetString("token")

	cfg := &Config{Version: "0.1.0"}
	if err := LoadConfig(configFile); err == nil {
		cfg = GetConfig()
	}
	if server != "" {
		if !strings.Contains(server, ":") {
			return errors.New("server must include port number (e.g., atlas.example.com:8678)")
		}
		cfg.ServerURL = MorphServer(server)
	}
	if cfg.ServerURL == "" {
		return errors.New("no server configured. Use --server")
	}
	if token != "" {
		expiry, err := tokenExpiry(token)
		if err != nil {
			return err
		}
		cfg.Token = token
		cfg.TokenExpiry = ""
		if !expiry.IsZero() {
			if expiry.Before(time.Now()) {
				return errors.New("token has already expired")
			}
			cfg.TokenExpiry = expiry.UTC().Format(time.RFC3339)
		}
	}

	if err := cfg.WriteConfig(configFile); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		printJSON(out, map[string]any{
			"result":       1,
			"server":       cfg.ServerURL,
			"config_file":  configFile,
			"token_expiry": cfg.TokenExpiry,
		})
		return nil
	}
	okLabel.Fprintln(out, "✓ Configuration saved")
	fmt.Fprintf(out, "Server: %s\n", cfg.ServerURL)
	if cfg.TokenExpiry != "" {
		fmt.Fprintf(out, "Token expires at: %s\n", cfg.TokenExpiry)
	}
	return nil
}
