package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tintoy/kubeclient/cmd/kubeclient/commands"
	"github.com/tintoy/kubeclient/internal/constants"
	"github.com/tintoy/kubeclient/pkg/kubeclient"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "kubeclient",
	Short: "Kubernetes API client",
	Long: `A command-line interface for the kubeclient request pipeline.

It renders URI templates, fetches resources through the standard pipeline
and shows how that pipeline is assembled.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.kubeclient/config.yml)")
	rootCmd.PersistentFlags().StringP("api", "a", "", "API server URL")
	rootCmd.PersistentFlags().StringP("token", "t", "", "bearer token")
	rootCmd.PersistentFlags().String("output", "", "output format (table, json, yaml); table on a terminal, json otherwise")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "log every request")
	rootCmd.PersistentFlags().Bool("skip-ssl-validation", false, "skip TLS certificate validation")
	rootCmd.PersistentFlags().String("ca-file", "", "PEM bundle used to verify the API server")

	// Bind flags to viper
	for key, flag := range map[string]string{
		"config":              "config",
		"api":                 "api",
		"token":               "token",
		"output":              "output",
		"verbose":             "verbose",
		"skip_ssl_validation": "skip-ssl-validation",
		"ca_file":             "ca-file",
	} {
		_ = viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag))
	}

	rootCmd.AddCommand(commands.NewVersionCommand(version, commit, date))
	rootCmd.AddCommand(commands.NewRenderCommand())
	rootCmd.AddCommand(commands.NewGetCommand())
	rootCmd.AddCommand(commands.NewRolesCommand())
}

func initConfig() {
	cfgFile := viper.GetString("config")

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}

		configDir := filepath.Join(home, ".kubeclient")
		if err := os.MkdirAll(configDir, constants.ConfigDirPerm); err != nil {
			fmt.Fprintf(os.Stderr, "Error creating config directory: %v\n", err)
		}

		viper.AddConfigPath(configDir)
		viper.SetConfigType("yml")
		viper.SetConfigName("config")
	}

	kubeclient.ConfigureViper(viper.GetViper())

	if err := viper.ReadInConfig(); err == nil {
		if viper.GetBool("verbose") {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
