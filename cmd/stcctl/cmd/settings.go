// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/netascode/go-testcenter"
)

// Settings are the connection settings shared by all commands
type Settings struct {
	API          string `yaml:"api" mapstructure:"api"`
	Server       string `yaml:"server" mapstructure:"server"`
	Port         int    `yaml:"port" mapstructure:"port"`
	Session      string `yaml:"session,omitempty" mapstructure:"session"`
	User         string `yaml:"user,omitempty" mapstructure:"user"`
	Join         bool   `yaml:"join" mapstructure:"join"`
	KillExisting bool   `yaml:"kill-existing" mapstructure:"kill-existing"`
	InstallDir   string `yaml:"install-dir,omitempty" mapstructure:"install-dir"`
	Tclsh        string `yaml:"tclsh" mapstructure:"tclsh"`
	LabServer    string `yaml:"lab-server,omitempty" mapstructure:"lab-server"`
	Terminate    bool   `yaml:"terminate" mapstructure:"terminate"`
	Debug        bool   `yaml:"debug" mapstructure:"debug"`
}

// loadSettings reads the merged flag, environment and file settings
func loadSettings(v *viper.Viper) (Settings, error) {
	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return s, err
	}
	if _, err := testcenter.ParseAPIType(s.API); err != nil {
		return s, err
	}
	return s, nil
}

// configCmd groups config file commands
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the stcctl config file",
}

// configInitCmd writes the current settings as a YAML config file
var configInitCmd = &cobra.Command{
	Use:   "init [file]",
	Short: "Write the current settings to a config file",
	Long: `Write the settings resolved from flags, environment and any existing
config file to a YAML file (default $HOME/.stcctl.yaml).`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadSettings(viper.GetViper())
		if err != nil {
			return err
		}
		path := ""
		if len(args) == 1 {
			path = args[0]
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return err
			}
			path = home + string(os.PathSeparator) + ".stcctl.yaml"
		}
		force, _ := cmd.Flags().GetBool("force")
		if err := writeSettings(path, s, force); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
		return nil
	},
}

// writeSettings marshals s to path, refusing to overwrite unless force is set
func writeSettings(path string, s Settings, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
	}
	data, err := yaml.Marshal(s)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configInitCmd.Flags().Bool("force", false, "overwrite an existing file")
}
