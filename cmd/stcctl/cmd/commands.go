// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package cmd

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/netascode/go-testcenter"
)

// loadCmd loads a saved configuration and lists its ports
var loadCmd = &cobra.Command{
	Use:   "load <file>",
	Short: "Load a .tcc or .xml configuration",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd.Context(), func(ctx context.Context, session *testcenter.Session) error {
			if err := session.LoadConfig(ctx, args[0]); err != nil {
				return err
			}
			return printPorts(ctx, cmd.OutOrStdout(), session)
		})
	},
}

// portsCmd lists the ports of the current configuration
var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List configured ports",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withSession(cmd.Context(), func(ctx context.Context, session *testcenter.Session) error {
			return printPorts(ctx, cmd.OutOrStdout(), session)
		})
	},
}

func printPorts(ctx context.Context, w io.Writer, session *testcenter.Session) error {
	ports, err := session.Project().Ports(ctx)
	if err != nil {
		return err
	}
	for _, p := range ports {
		name, err := p.Name(ctx)
		if err != nil {
			return err
		}
		location, err := p.GetAttribute(ctx, "Location")
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", p.Handle(), name, location)
	}
	return nil
}

// devicesCmd groups device commands
var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "Start or stop all emulated devices",
}

var devicesStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start all emulated devices",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withSession(cmd.Context(), func(ctx context.Context, session *testcenter.Session) error {
			return session.StartDevices(ctx)
		})
	},
}

var devicesStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop all emulated devices",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withSession(cmd.Context(), func(ctx context.Context, session *testcenter.Session) error {
			return session.StopDevices(ctx)
		})
	},
}

// trafficCmd groups traffic commands
var trafficCmd = &cobra.Command{
	Use:   "traffic",
	Short: "Start or stop traffic on all ports",
}

var trafficStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start traffic on all ports",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		blocking, _ := cmd.Flags().GetBool("wait")
		return withSession(cmd.Context(), func(ctx context.Context, session *testcenter.Session) error {
			return session.StartTraffic(ctx, blocking)
		})
	},
}

var trafficStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop traffic on all ports",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withSession(cmd.Context(), func(ctx context.Context, session *testcenter.Session) error {
			return session.StopTraffic(ctx)
		})
	},
}

// performCmd runs an arbitrary command and prints its result
var performCmd = &cobra.Command{
	Use:   "perform <command> [name=value...]",
	Short: "Perform a command and print its result",
	Example: `  stcctl perform GetObjects ClassName=port
  stcctl perform ResultsClearAll PortList="port1 port2"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		params, err := parseParams(args[1:])
		if err != nil {
			return err
		}
		check, _ := cmd.Flags().GetBool("check")
		return withSession(cmd.Context(), func(ctx context.Context, session *testcenter.Session) error {
			res, err := session.Perform(ctx, args[0], params)
			if err != nil {
				return err
			}
			printResult(cmd.OutOrStdout(), res)
			if check {
				return res.Check("Status")
			}
			return nil
		})
	},
}

// parseParams converts name=value arguments to command parameters
func parseParams(args []string) (testcenter.Attrs, error) {
	params := make(testcenter.Attrs, len(args))
	for _, arg := range args {
		name, value, ok := strings.Cut(arg, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid parameter %q (expected name=value)", arg)
		}
		params[name] = value
	}
	return params, nil
}

func printResult(w io.Writer, res testcenter.CommandResult) {
	keys := make([]string, 0, len(res))
	for k := range res {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "%s: %s\n", k, res[k])
	}
}

func init() {
	rootCmd.AddCommand(loadCmd, portsCmd, devicesCmd, trafficCmd, performCmd)
	devicesCmd.AddCommand(devicesStartCmd, devicesStopCmd)
	trafficCmd.AddCommand(trafficStartCmd, trafficStopCmd)

	trafficStartCmd.Flags().Bool("wait", false, "block until traffic stops")
	performCmd.Flags().Bool("check", false, "fail unless the Status parameter passed")
}
