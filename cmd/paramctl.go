package cmd

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"paramd/client"
	"paramd/config"
)

var paramctlConfigFile string

// ClientRootCmd is the paramctl command tree: one subcommand per
// client-side verb, mirroring the teacher's one-file-per-verb cmd/*.go
// layout but as cobra subcommands of a single binary.
var ClientRootCmd = &cobra.Command{
	Use:           "paramctl",
	Short:         "Parameter service client",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	fs := pflag.NewFlagSet("paramctl", pflag.ContinueOnError)
	config.BindFlags(fs)
	ClientRootCmd.PersistentFlags().AddFlagSet(fs)
	ClientRootCmd.PersistentFlags().StringVar(&paramctlConfigFile, "config", "", "path to a config file")

	ClientRootCmd.AddCommand(
		getCmd(),
		setCmd(),
		waitCmd(),
		saveCmd(),
		dumpCmd(),
		watchCmd(),
		shellCmd(),
		sandboxCmd(),
		moduleCmd(),
		metricsCmd(),
	)
}

// ClientExecute runs the paramctl command tree.
func ClientExecute() error {
	return ClientRootCmd.Execute()
}

func loadClientConfig(cmd *cobra.Command) (config.Config, error) {
	return config.Load(cmd.Flags(), paramctlConfigFile)
}

func getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <name>",
		Short: "Read a parameter's current value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadClientConfig(cmd)
			if err != nil {
				return err
			}
			r := client.NewReader(cfg.DACWorkspacePath, cfg.DefaultWorkspacePath, cfg.PersistWorkspacePath, cfg.WorkspaceCapacityBytes)
			value, err := r.Get(args[0])
			if err != nil {
				return err
			}
			fmt.Println(value)
			return nil
		},
	}
}

func setCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <name> <value>",
		Short: "Write a parameter",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadClientConfig(cmd)
			if err != nil {
				return err
			}
			return client.New(cfg.ServerSocketPath).Set(args[0], args[1])
		},
	}
}

func waitCmd() *cobra.Command {
	var timeoutS int
	c := &cobra.Command{
		Use:   "wait <name> <pattern>",
		Short: "Block until a parameter matches pattern or the timeout elapses",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadClientConfig(cmd)
			if err != nil {
				return err
			}
			timeout := cfg.WaitDefaultTimeout()
			if timeoutS > 0 {
				timeout = time.Duration(timeoutS) * time.Second
			}
			value, err := client.New(cfg.ServerSocketPath).Wait(args[0], args[1], timeout)
			if err != nil {
				return err
			}
			fmt.Println(value)
			return nil
		},
	}
	c.Flags().IntVar(&timeoutS, "timeout", 0, "wait timeout in seconds (not sent to the server, which always applies its configured default)")
	return c
}

func saveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "save",
		Short: "Force a persistence flush",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadClientConfig(cmd)
			if err != nil {
				return err
			}
			return client.New(cfg.ServerSocketPath).Save()
		},
	}
}

func dumpCmd() *cobra.Command {
	var follow bool
	c := &cobra.Command{
		Use:   "dump [prefix]",
		Short: "Print a human-readable parameter snapshot via the control channel",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadClientConfig(cmd)
			if err != nil {
				return err
			}
			line := "DUMP"
			if len(args) == 1 {
				line += " " + args[0]
			}
			if follow {
				line += " --follow"
			}
			return controlRoundTrip(cfg.ControlSocketPath, line, os.Stdout, "END")
		},
	}
	c.Flags().BoolVar(&follow, "follow", false, "keep streaming further writes")
	return c
}

func watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch <prefix>",
		Short: "Stream writes under prefix until interrupted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadClientConfig(cmd)
			if err != nil {
				return err
			}
			ctx := signalContext()
			events, err := client.New(cfg.ServerSocketPath).Watch(ctx, args[0])
			if err != nil {
				return err
			}
			for ev := range events {
				fmt.Printf("%s=%s\n", ev.Name, ev.Value)
			}
			return nil
		},
	}
}

func sandboxCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sandbox <service-name>",
		Short: "Send SANDBOX for a running service on a one-off control connection (the selection is not kept for later commands)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadClientConfig(cmd)
			if err != nil {
				return err
			}
			return controlRoundTrip(cfg.ControlSocketPath, "SANDBOX "+args[0], os.Stdout, "")
		},
	}
}

func moduleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "module <install:path|uninstall:path|list>",
		Short: "Forward a module-manager command over the control channel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadClientConfig(cmd)
			if err != nil {
				return err
			}
			return controlRoundTrip(cfg.ControlSocketPath, "MODULE "+args[0], os.Stdout, "")
		},
	}
}

func metricsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "metrics",
		Short: "Print NO_SPACE alarm, dirty-flush, and waiter-queue-depth counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadClientConfig(cmd)
			if err != nil {
				return err
			}
			return controlRoundTrip(cfg.ControlSocketPath, "METRICS", os.Stdout, "END")
		},
	}
}

func shellCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "shell <path> [args...]",
		Short: "Run a privilege-dropped shell over the control channel",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadClientConfig(cmd)
			if err != nil {
				return err
			}
			return runParamShell(cfg.ControlSocketPath, strings.Join(args, " "))
		},
	}
}

// controlRoundTrip sends one line to the control socket and copies the
// reply to out, stopping after an "END" sentinel line if until is
// non-empty, or after the first line otherwise.
func controlRoundTrip(socketPath, line string, out io.Writer, until string) error {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return fmt.Errorf("dial control socket: %w", err)
	}
	defer conn.Close()

	if _, err := fmt.Fprintln(conn, line); err != nil {
		return err
	}

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		text := scanner.Text()
		if until != "" && text == until {
			return nil
		}
		fmt.Fprintln(out, text)
		if until == "" {
			return nil
		}
	}
	return scanner.Err()
}

// runParamShell sends PARAM_SHELL over the control socket, then puts the
// local terminal into raw mode and pipes it to the connection until the
// remote side closes — the teacher's execWithPTY raw-mode dance, but over
// a unix socket instead of a local pty pair.
func runParamShell(socketPath, rest string) error {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return fmt.Errorf("dial control socket: %w", err)
	}
	defer conn.Close()

	if _, err := fmt.Fprintf(conn, "PARAM_SHELL %s\n", rest); err != nil {
		return err
	}

	stdinFd := int(os.Stdin.Fd())
	var oldState *term.State
	if term.IsTerminal(stdinFd) {
		oldState, err = term.MakeRaw(stdinFd)
		if err != nil {
			return fmt.Errorf("make terminal raw: %w", err)
		}
		defer term.Restore(stdinFd, oldState)
	}

	done := make(chan struct{})
	go func() {
		io.Copy(conn, os.Stdin)
		close(done)
	}()
	io.Copy(os.Stdout, conn)
	<-done
	return nil
}
