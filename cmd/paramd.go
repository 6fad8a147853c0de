package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"paramd/config"
	"paramd/control"
	"paramd/server"
	"paramd/workspace"
)

var paramdConfigFile string

// ServerRootCmd is the paramd daemon's command tree: a single long-running
// serve action plus a version subcommand, in the spirit of
// the teacher's single-purpose root.go.
var ServerRootCmd = &cobra.Command{
	Use:           "paramd",
	Short:         "Shared-memory parameter service",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

func init() {
	fs := pflag.NewFlagSet("paramd", pflag.ContinueOnError)
	config.BindFlags(fs)
	ServerRootCmd.Flags().AddFlagSet(fs)
	ServerRootCmd.Flags().StringVar(&paramdConfigFile, "config", "", "path to a config file")

	ServerRootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the paramd version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("paramd", Version)
			return nil
		},
	})
}

// Execute runs the paramd server command tree. Before any cobra parsing,
// it intercepts the hidden "shell-init" re-exec target PARAM_SHELL uses
// (control.RunShellInit never returns on success), the same way the
// teacher's main.go special-cased "exec-init" ahead of its own dispatch.
func Execute() error {
	if len(os.Args) > 1 && os.Args[1] == control.ShellInitArg {
		control.RunShellInit(os.Args[2:])
		return nil
	}
	return ServerRootCmd.Execute()
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cmd.Flags(), paramdConfigFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := setupLogging(cfg)

	dac, err := workspace.OpenFile(cfg.DACWorkspacePath, cfg.WorkspaceCapacityBytes)
	if err != nil {
		return fmt.Errorf("open dac workspace: %w", err)
	}
	def, err := workspace.OpenFile(cfg.DefaultWorkspacePath, cfg.WorkspaceCapacityBytes)
	if err != nil {
		return fmt.Errorf("open default workspace: %w", err)
	}
	per, err := workspace.OpenFile(cfg.PersistWorkspacePath, cfg.WorkspaceCapacityBytes)
	if err != nil {
		return fmt.Errorf("open persist workspace: %w", err)
	}

	hooks := defaultHooks()

	srv := server.New(cfg, dac, def, per, hooks, logger)
	if err := srv.Bootstrap(); err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}

	ctx := signalContext()
	stop := make(chan struct{})
	srv.StartPersistFlusher(stop)
	defer close(stop)

	ctl := control.New(cfg, srv, logger)

	errs := make(chan error, 2)
	go func() { errs <- srv.Serve(ctx) }()
	go func() { errs <- ctl.Serve(ctx) }()

	logger.Info("paramd: serving", "server_socket", cfg.ServerSocketPath, "control_socket", cfg.ControlSocketPath)

	if err := <-errs; err != nil {
		return err
	}
	return <-errs
}
