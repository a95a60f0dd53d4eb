// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

// Package cmd implements the stcctl commands.
package cmd

import (
	goflag "flag"
	"fmt"
	"os"
	"strings"

	log "github.com/golang/glog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment variables that override flags
const EnvPrefix = "STC"

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "stcctl",
	Short: "Drive a Spirent TestCenter session",
	Long: `stcctl connects to a Spirent TestCenter automation backend (REST server,
Tcl package or native binding), runs one operation and disconnects.

Settings come from flags, STC_* environment variables or a YAML config
file written by "stcctl config init".`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and runs it
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Flush()
		os.Exit(1)
	}
	log.Flush()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().AddGoFlagSet(goflag.CommandLine) // for glog
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default $HOME/.stcctl.yaml)")

	fs := rootCmd.PersistentFlags()
	fs.String("api", "rest", "backend API: rest, tcl or native")
	fs.String("server", "localhost", "REST server address")
	fs.Int("port", 80, "REST server port")
	fs.String("session", "", "REST session name (generated when empty)")
	fs.String("user", "", "REST user name (current user when empty)")
	fs.Bool("join", false, "join an existing REST session")
	fs.Bool("kill-existing", false, "delete an existing REST session with the same name")
	fs.String("install-dir", "", "TestCenter install directory for the tcl and native APIs")
	fs.String("tclsh", "tclsh", "Tcl shell executable for the tcl API")
	fs.String("lab-server", "", "lab server to connect through")
	fs.Bool("terminate", true, "terminate the backend session on exit")
	fs.Bool("debug", false, "log transport traffic")

	if err := bindSettings(viper.GetViper(), fs); err != nil {
		panic(err)
	}
}

// bindSettings mirrors the setting flags of fs into v
func bindSettings(v *viper.Viper, fs *pflag.FlagSet) error {
	for _, name := range settingKeys {
		flag := fs.Lookup(name)
		if flag == nil {
			return fmt.Errorf("flag %q is not defined", name)
		}
		if err := v.BindPFlag(name, flag); err != nil {
			return err
		}
	}
	return nil
}

// settingKeys are the persistent flags mirrored into viper
var settingKeys = []string{
	"api", "server", "port", "session", "user", "join", "kill-existing",
	"install-dir", "tclsh", "lab-server", "terminate", "debug",
}

// initConfig reads in config file and ENV variables if set
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".stcctl")
	}

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		log.V(1).Infof("Using config file: %s", viper.ConfigFileUsed())
	} else if cfgFile != "" {
		fmt.Fprintf(os.Stderr, "cannot read config file %s: %v\n", cfgFile, err)
		os.Exit(1)
	}
}
