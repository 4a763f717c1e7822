package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/1broseidon/floatdrop/internal/config"
)

var printDefaults bool

var configCmd = &cobra.Command{
	Use:     "config",
	Short:   "Inspect the configuration file",
	GroupID: "service",
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := loadConfigWithSources()
		if err != nil {
			return err
		}
		src := res.File
		if src == "" {
			src = "built-in defaults"
		}
		printSuccess("config ok (" + src + ")")
		return nil
	},
}

var configPrintCmd = &cobra.Command{
	Use:   "print",
	Short: "Print the effective configuration as YAML",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if printDefaults {
			return writeYAML(config.DefaultConfig(), nil)
		}
		res, err := loadConfigWithSources()
		if err != nil {
			return err
		}
		var header []string
		if res.File != "" {
			header = append(header, "# file: "+res.File)
		}
		if len(res.EnvOverrides) > 0 {
			header = append(header, "# env: "+strings.Join(res.EnvOverrides, ", "))
		}
		return writeYAML(res.Config, header)
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the default config file location",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := config.DefaultConfigPath()
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, path)
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the built-in defaults to the config file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.DefaultConfig()
		path := configPath
		var err error
		if path == "" {
			path, err = config.DefaultConfigPath()
			if err != nil {
				return err
			}
		}
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists", path)
		}
		if err := cfg.SaveTo(path); err != nil {
			return err
		}
		printSuccess("wrote " + path)
		return nil
	},
}

func writeYAML(v any, header []string) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return err
	}
	for _, h := range header {
		fmt.Fprintln(stdout, h)
	}
	_, err = stdout.Write(data)
	return err
}

func init() {
	configPrintCmd.Flags().BoolVar(&printDefaults, "defaults", false, "print built-in defaults (no files)")
	configCmd.AddCommand(configValidateCmd, configPrintCmd, configPathCmd, configInitCmd)
	rootCmd.AddCommand(configCmd)
}
