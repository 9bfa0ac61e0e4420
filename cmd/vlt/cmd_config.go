package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage credentials and settings",
}

var configSetKeyCmd = &cobra.Command{
	Use:   "set-key <api-key>",
	Short: "Store the chat/embedding API key",
	Long: `Store the API key in the per-user credentials file. The
VLT_API_KEY environment variable takes precedence when set.`,
	Args: cobra.ExactArgs(1),
	RunE: runConfigSetKey,
}

func init() {
	configCmd.AddCommand(configSetKeyCmd)
}

// storedCredentials is the per-user credentials file, kept out of the
// project tree so it is never committed.
type storedCredentials struct {
	APIKey string `toml:"api_key"`
}

func credentialsPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "vlt", "credentials.toml"), nil
}

func loadStoredKey() (string, error) {
	path, err := credentialsPath()
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	var creds storedCredentials
	if err := toml.Unmarshal(data, &creds); err != nil {
		return "", fmt.Errorf("credentials %s: %w", path, err)
	}
	return creds.APIKey, nil
}

func runConfigSetKey(cmd *cobra.Command, args []string) error {
	path, err := credentialsPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	data, err := toml.Marshal(storedCredentials{APIKey: args[0]})
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return err
	}
	fmt.Println("stored API key in", path)
	return nil
}
