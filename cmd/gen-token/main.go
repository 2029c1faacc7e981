package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/jay8860/DD-TaskDashboardClone/api"
)

func main() {
	var (
		count  int
		prefix string
		start  int
		ttl    time.Duration
		output string
	)
	cmd := &cobra.Command{
		Use:   "gen-token [user-id]",
		Short: "Sign bearer tokens for a server running with LOCAL_AUTH_SECRET",
		Long: `gen-token signs HS256 tokens with LOCAL_AUTH_SECRET, LOCAL_AUTH_AUDIENCE
and LOCAL_AUTH_ISSUER. The first token is printed; --output also writes all of
them to a JSON array file.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(_ *cobra.Command, args []string) error {
			if count < 1 || start < 1 {
				return fmt.Errorf("count and start must be at least 1")
			}
			if len(args) > 0 && count > 1 {
				return fmt.Errorf("explicit user ID cannot be provided when generating multiple tokens")
			}
			cfg := api.AuthConfig{
				SharedSecret: os.Getenv("LOCAL_AUTH_SECRET"),
				Audience:     os.Getenv("LOCAL_AUTH_AUDIENCE"),
				Issuer:       os.Getenv("LOCAL_AUTH_ISSUER"),
			}
			now := time.Now()
			tokens := make([]string, count)
			for i := range tokens {
				userID := prefix
				switch {
				case len(args) > 0:
					userID = args[0]
				case count > 1:
					userID = fmt.Sprintf("%s-%d", prefix, start+i)
				}
				tok, err := api.IssueToken(cfg, userID, ttl, now)
				if err != nil {
					return err
				}
				tokens[i] = tok
			}
			if output != "" {
				if err := writeTokens(output, tokens); err != nil {
					return err
				}
			}
			fmt.Print(tokens[0])
			return nil
		},
	}
	f := cmd.Flags()
	f.IntVar(&count, "count", 1, "number of tokens to generate")
	f.StringVar(&prefix, "prefix", "planner", "user ID, or its prefix when count > 1")
	f.IntVar(&start, "start", 1, "first index when count > 1")
	f.DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	f.StringVar(&output, "output", "", "file to write all tokens to as a JSON array")

	if err := cmd.Execute(); err != nil {
		log.Fatalf("gen-token: %v", err)
	}
}

func writeTokens(path string, tokens []string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	data, err := sonic.Marshal(tokens)
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o600)
}
