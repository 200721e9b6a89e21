package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagedriver/internal/config"
	"github.com/xkilldash9x/pagedriver/internal/observability"
	"github.com/xkilldash9x/pagedriver/internal/session"
)

// newFetchCmd creates and configures the `fetch` command.
func newFetchCmd() *cobra.Command {
	var (
		awaitSelector   string
		collectSelector string
		collectAttr     string
		download        bool
	)

	fetchCmd := &cobra.Command{
		Use:   "fetch [url]",
		Short: "Opens a URL in the browser session and optionally collects or downloads linked files",
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			// Flag overrides win over config file and environment values.
			if err := viper.BindPFlag("browser.headless", cmd.Flags().Lookup("headless")); err != nil {
				return err
			}
			if err := viper.BindPFlag("browser.proxy_url", cmd.Flags().Lookup("proxy")); err != nil {
				return err
			}
			return viper.BindPFlag("download.work_dir", cmd.Flags().Lookup("out"))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			// Use the context passed from main.go (signal-aware).
			ctx := cmd.Context()
			logger := observability.GetLogger()

			var cfg config.Config
			if err := viper.Unmarshal(&cfg); err != nil {
				return fmt.Errorf("failed to re-unmarshal config with flag overrides: %w", err)
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			url := args[0]
			sess := session.New(cfg, logger)
			defer sess.Close()

			logger.Info("Fetching page.",
				zap.String("url", url),
				zap.String("session_id", sess.ID()),
				zap.String("await_selector", awaitSelector))

			if err := sess.OpenURL(ctx, url, awaitSelector); err != nil {
				return fmt.Errorf("failed to open %q: %w", url, err)
			}

			if collectSelector == "" {
				source, err := sess.PageSource(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), source)
				return nil
			}

			values, err := sess.GetElementsAttributeValue(ctx, collectSelector, collectAttr)
			if err != nil {
				return fmt.Errorf("failed to collect %q from %q: %w", collectAttr, collectSelector, err)
			}
			logger.Info("Collected elements.",
				zap.String("selector", collectSelector), zap.Int("count", len(values)))

			for _, value := range values {
				if value == "" {
					continue
				}
				if !download {
					fmt.Fprintln(cmd.OutOrStdout(), value)
					continue
				}
				if path := sess.DownloadFile(ctx, value); path != "" {
					fmt.Fprintln(cmd.OutOrStdout(), path)
				}
			}
			return nil
		},
	}

	fetchCmd.Flags().StringVar(&awaitSelector, "await", "body", "selector that must appear before the page counts as loaded")
	fetchCmd.Flags().StringVar(&collectSelector, "collect", "", "selector whose matches to collect instead of printing the page source")
	fetchCmd.Flags().StringVar(&collectAttr, "attr", "href", "attribute to read from collected elements")
	fetchCmd.Flags().BoolVar(&download, "download", false, "download each collected value through the session's cookie-bridged client")
	fetchCmd.Flags().Bool("headless", true, "run the browser headless")
	fetchCmd.Flags().String("proxy", "", "upstream HTTP proxy URL for the browser and downloader")
	fetchCmd.Flags().String("out", ".", "directory downloaded files are stored in")

	return fetchCmd
}

func init() {
	rootCmd.AddCommand(newFetchCmd())
}
