package cli

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"github.com/zana-AI/zana-planner/internal/config"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon status",
	Long:  `Query the running daemon's admin endpoint for health and model quota state.`,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if !cfg.Admin.Enabled {
		return fmt.Errorf("admin endpoint is disabled in config; status is unavailable")
	}

	base := fmt.Sprintf("http://%s:%d", cfg.Admin.Host, cfg.Admin.Port)
	client := &http.Client{Timeout: 3 * time.Second}

	health, err := fetchJSON(client, base+"/healthz")
	if err != nil {
		cmd.Println("Daemon: not running")
		return nil
	}
	cmd.Printf("Daemon: %v (uptime %v)\n", health["status"], health["uptime"])

	quota, err := fetchJSON(client, base+"/api/quota")
	if err != nil {
		return nil
	}
	if blocks, ok := quota["blocks"].(map[string]interface{}); ok && len(blocks) > 0 {
		cmd.Println("Rate-limited models:")
		for key := range blocks {
			cmd.Printf("  %s\n", key)
		}
	} else {
		cmd.Println("No rate-limited models")
	}
	return nil
}

func fetchJSON(client *http.Client, url string) (map[string]interface{}, error) {
	resp, err := client.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var body map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}
	return body, nil
}
