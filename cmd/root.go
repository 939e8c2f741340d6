package cmd

import (
	"errors"
	"fmt"
	"os"

	"sauna-briefing/internal/config"
	"sauna-briefing/internal/logging"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	appCfg  config.Config
)

// rootCmd is the base command called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "sauna-briefing",
	Short: "The London Sauna newsletter pipeline",
	Long: "Gathers London sauna news from venue pages, newsletters and web search, " +
		"then drafts, critiques and publishes the weekly issue to Notion.",
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
	_ = viper.BindPFlag("app.log_level", rootCmd.PersistentFlags().Lookup("log-level"))
}

// secretEnv maps config keys to the environment variables that may supply them.
var secretEnv = map[string]string{
	"openai.api_key":        "OPENAI_API_KEY",
	"gemini.api_key":        "GEMINI_API_KEY",
	"perplexity.api_key":    "PERPLEXITY_API_KEY",
	"notion.api_key":        "NOTION_API_KEY",
	"notion.database_id":    "NOTION_DRAFT_NEWSLETTERS_DB_ID",
	"cloudflare.api_token":  "CLOUDFLARE_API_TOKEN",
	"cloudflare.account_id": "CLOUDFLARE_ACCOUNT_ID",
	"redis.addr":            "REDIS_ADDR",
}

func initConfig() {
	v := viper.GetViper()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/sauna-briefing")
		v.AddConfigPath("configs")
	}
	for key, env := range secretEnv {
		_ = v.BindEnv(key, env)
	}

	if err := v.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if !errors.As(err, &nf) {
			fmt.Fprintf(os.Stderr, "error reading config: %v\n", err)
			os.Exit(1)
		}
	} else {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", v.ConfigFileUsed())
	}

	if err := v.Unmarshal(&appCfg); err != nil {
		fmt.Fprintf(os.Stderr, "error parsing config: %v\n", err)
		os.Exit(1)
	}

	appCfg.FillDefaults()
	logging.Setup(os.Stderr, appCfg.App.LogLevel)
}

// GetConfig exposes the loaded configuration to subcommands.
func GetConfig() config.Config {
	return appCfg
}
