package cli

import (
	"os"
	"path/filepath"
	"strings"
)

// Config holds CLI configuration
type Config struct {
	ServerURL  string
	Token      string
	TokenFile  string
	OwnerToken string
	OwnerFile  string
	Output     string
	Verbose    bool
}

// DefaultConfig returns a Config with default values
func DefaultConfig() *Config {
	return &Config{
		ServerURL: getEnvOrDefault("PUZZLECTL_SERVER", "http://localhost:8080"),
		Token:     os.Getenv("PUZZLECTL_TOKEN"),
		TokenFile: getEnvOrDefault("PUZZLECTL_TOKEN_FILE", defaultStateFile("token")),
		OwnerFile: getEnvOrDefault("PUZZLECTL_OWNER_FILE", defaultStateFile("owner")),
		Output:    "text",
		Verbose:   false,
	}
}

// LoadToken loads the player token from file if not already set
func (c *Config) LoadToken() error {
	if c.Token != "" {
		return nil
	}
	token, err := readStateFile(c.TokenFile)
	if err != nil {
		return err
	}
	c.Token = token
	return nil
}

// SaveToken saves the player token to the token file
func (c *Config) SaveToken(token string) error {
	c.Token = token
	return writeStateFile(c.TokenFile, token)
}

// ClearToken forgets the player token
func (c *Config) ClearToken() error {
	c.Token = ""
	if err := os.Remove(c.TokenFile); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// LoadOwner loads the signed anonymous owner token, if one was saved
func (c *Config) LoadOwner() error {
	token, err := readStateFile(c.OwnerFile)
	if err != nil {
		return err
	}
	c.OwnerToken = token
	return nil
}

// SaveOwner saves the signed anonymous owner token issued by the server
func (c *Config) SaveOwner(token string) error {
	c.OwnerToken = token
	return writeStateFile(c.OwnerFile, token)
}

func readStateFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func writeStateFile(path, value string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(value), 0600)
}

func defaultStateFile(name string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".puzzlectl", name)
	}
	return filepath.Join(home, ".puzzlectl", name)
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
