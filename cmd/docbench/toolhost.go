package main

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/docbench/docbench/internal/config"
	"github.com/docbench/docbench/internal/toolhost"
)

var toolhostCmd = &cobra.Command{
	Use:   "toolhost",
	Short: "Manage self-hosted tool service containers",
	Long: `Manage the Docker containers behind "remote" tool backends.

Services are declared under toolhost.services in the config file; each entry
names a Docker image, a host port, and a health path. Remote tools reach the
services over HTTP on localhost.

Examples:
  docbench toolhost start            # Start every configured service
  docbench toolhost start marker     # Start one service
  docbench toolhost status           # Check all services
  docbench toolhost logs marker      # View one service's logs
  docbench toolhost stop             # Stop every service (containers kept)`,
}

var toolhostStartCmd = &cobra.Command{
	Use:   "start [service...]",
	Short: "Start tool service containers",
	Long: `Start tool service containers and wait for each to answer its health
endpoint. Containers that don't exist are created; stopped ones are
restarted; running ones are left alone.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		mgrs, err := getServiceManagers(args)
		if err != nil {
			return err
		}
		defer closeManagers(mgrs)

		for _, mgr := range mgrs {
			fmt.Printf("Starting %s...\n", mgr.Service())
			if err := mgr.Start(ctx); err != nil {
				return fmt.Errorf("failed to start %s: %w", mgr.Service(), err)
			}
			fmt.Printf("%s is running at %s\n", mgr.Service(), mgr.URL())
		}
		return nil
	},
}

var toolhostStopCmd = &cobra.Command{
	Use:   "stop [service...]",
	Short: "Stop tool service containers",
	Long: `Stop tool service containers. Containers are kept, so a later start
reuses them.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		mgrs, err := getServiceManagers(args)
		if err != nil {
			return err
		}
		defer closeManagers(mgrs)

		for _, mgr := range mgrs {
			fmt.Printf("Stopping %s...\n", mgr.Service())
			if err := mgr.Stop(ctx); err != nil {
				return fmt.Errorf("failed to stop %s: %w", mgr.Service(), err)
			}
		}
		fmt.Println("Stopped")
		return nil
	},
}

var toolhostStatusCmd = &cobra.Command{
	Use:   "status [service...]",
	Short: "Show tool service container status",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		mgrs, err := getServiceManagers(args)
		if err != nil {
			return err
		}
		defer closeManagers(mgrs)

		for _, mgr := range mgrs {
			status, err := mgr.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get %s status: %w", mgr.Service(), err)
			}

			switch status {
			case toolhost.StatusRunning:
				fmt.Printf("%s: %s at %s\n", mgr.Service(), status, mgr.URL())
			case toolhost.StatusStopped:
				fmt.Printf("%s: %s (use 'docbench toolhost start %s' to start)\n", mgr.Service(), status, mgr.Service())
			case toolhost.StatusNotFound:
				fmt.Printf("%s: %s (use 'docbench toolhost start %s' to create)\n", mgr.Service(), status, mgr.Service())
			default:
				fmt.Printf("%s: %s\n", mgr.Service(), status)
			}
		}
		return nil
	},
}

var toolhostLogsTail string

var toolhostLogsCmd = &cobra.Command{
	Use:   "logs <service>",
	Short: "Show one tool service's container logs",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		mgrs, err := getServiceManagers(args)
		if err != nil {
			return err
		}
		defer closeManagers(mgrs)

		logs, err := mgrs[0].Logs(ctx, toolhostLogsTail)
		if err != nil {
			return fmt.Errorf("failed to get logs: %w", err)
		}
		fmt.Print(logs)
		return nil
	},
}

var toolhostRemoveCmd = &cobra.Command{
	Use:   "remove [service...]",
	Short: "Remove tool service containers",
	Long:  `Stop and remove tool service containers. Images are kept.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		mgrs, err := getServiceManagers(args)
		if err != nil {
			return err
		}
		defer closeManagers(mgrs)

		for _, mgr := range mgrs {
			fmt.Printf("Removing %s...\n", mgr.ContainerName())
			if err := mgr.Remove(ctx); err != nil {
				return fmt.Errorf("failed to remove %s: %w", mgr.Service(), err)
			}
		}
		fmt.Println("Removed")
		return nil
	},
}

var toolhostWaitCmd = &cobra.Command{
	Use:   "wait [service...]",
	Short: "Wait for tool services to be ready",
	Long: `Wait for tool services to answer their health endpoints. Useful in
scripts between 'toolhost start' and 'docbench run'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		mgrs, err := getServiceManagers(args)
		if err != nil {
			return err
		}
		defer closeManagers(mgrs)

		timeout, _ := cmd.Flags().GetDuration("timeout")
		for _, mgr := range mgrs {
			fmt.Printf("Waiting for %s (timeout: %s)...\n", mgr.Service(), timeout)
			if err := mgr.WaitReady(ctx, timeout); err != nil {
				return fmt.Errorf("%s not ready: %w", mgr.Service(), err)
			}
		}
		fmt.Println("Ready")
		return nil
	},
}

func init() {
	toolhostCmd.AddCommand(toolhostStartCmd)
	toolhostCmd.AddCommand(toolhostStopCmd)
	toolhostCmd.AddCommand(toolhostStatusCmd)
	toolhostCmd.AddCommand(toolhostLogsCmd)
	toolhostCmd.AddCommand(toolhostRemoveCmd)
	toolhostCmd.AddCommand(toolhostWaitCmd)

	toolhostLogsCmd.Flags().StringVar(&toolhostLogsTail, "tail", "100", "Number of lines to show from the end")
	toolhostWaitCmd.Flags().Duration("timeout", 120*time.Second, "Timeout waiting per service")

	rootCmd.AddCommand(toolhostCmd)
}

// getServiceManagers builds a manager per named service, or for every
// configured service when no names are given.
func getServiceManagers(names []string) ([]*toolhost.Manager, error) {
	cm, err := getConfig()
	if err != nil {
		return nil, err
	}
	services := cm.Get().Toolhost.Services
	if len(services) == 0 {
		return nil, fmt.Errorf("no toolhost services configured (add toolhost.services entries to the config)")
	}

	if len(names) == 0 {
		for name := range services {
			names = append(names, name)
		}
		sort.Strings(names)
	}

	configured := make([]string, 0, len(services))
	for name := range services {
		configured = append(configured, name)
	}
	sort.Strings(configured)

	mgrs := make([]*toolhost.Manager, 0, len(names))
	for _, name := range names {
		svc, ok := services[name]
		if !ok {
			closeManagers(mgrs)
			return nil, fmt.Errorf("service %q not configured (configured: %v)", name, configured)
		}

		env := make(map[string]string, len(svc.Env))
		for k, v := range svc.Env {
			env[k] = config.ResolveEnvVars(v)
		}

		mgr, err := toolhost.NewManager(toolhost.ServiceConfig{
			Name:          name,
			Image:         svc.Image,
			ContainerName: svc.ContainerName,
			HostPort:      svc.Port,
			ContainerPort: svc.ContainerPort,
			HealthPath:    svc.HealthPath,
			Env:           env,
		})
		if err != nil {
			closeManagers(mgrs)
			return nil, err
		}
		mgrs = append(mgrs, mgr)
	}
	return mgrs, nil
}

func closeManagers(mgrs []*toolhost.Manager) {
	for _, mgr := range mgrs {
		mgr.Close()
	}
}
