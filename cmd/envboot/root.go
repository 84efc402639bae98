package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"envboot/internal/config"
	"envboot/internal/execx"
	"envboot/internal/handoff"
	"envboot/internal/interp"
	"envboot/internal/logx"
	"envboot/internal/pipeline"
	"envboot/pkg/types"
)

// run executes the CLI and returns the process exit code: 0 on success, the
// failing child's exit status when one exists, otherwise 1.
func run(args []string) int {
	root := buildRootCmd()
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		return exitCode(err)
	}
	return 0
}

// exitCode propagates the failing step's exit status to the deployment
// platform; the exit code is the only machine-readable contract.
func exitCode(err error) int {
	var se *pipeline.StepError
	if errors.As(err, &se) && se.ExitCode > 0 {
		return se.ExitCode
	}
	var pe *pipeline.PinError
	if errors.As(err, &pe) && pe.ExitCode > 0 {
		return pe.ExitCode
	}
	return 1
}

func buildRootCmd() *cobra.Command {
	var (
		logLevel     string
		manifestPath string
		execService  bool
	)

	root := &cobra.Command{
		Use:           "envboot",
		Short:         "Deployment-time bootstrapper: resolve a Python interpreter, pin pip, install the declared packages",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level",
		envStr("ENVBOOT_LOG_LEVEL", "info"), "Log level: debug|info|warn|error")
	root.PersistentFlags().StringVar(&manifestPath, "manifest",
		envStr("ENVBOOT_MANIFEST", ""), "Manifest file (yaml|json|toml); built-in defaults when empty")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the full pipeline: locate interpreter, pin pip, install all steps in order",
		Example: "  envboot run\n" +
			"  envboot run --manifest bootstrap.yaml\n" +
			"  envboot run --exec",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logx.New(os.Stderr, logLevel)
			m, err := loadManifest(manifestPath)
			if err != nil {
				return err
			}
			log.Info().Msg("custom bootstrap in effect")

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			loc := interp.NewLocator(m.Interpreter, log)
			p := pipeline.New(loc, execx.NewRunner(), m, log)
			python, err := p.Run(ctx)
			if err != nil {
				return err
			}
			if execService {
				argv := handoff.Command(python, m.Service)
				log.Info().Strs("argv", argv).Msg("handing off to service")
				return handoff.Exec(python, m.Service, os.Environ())
			}
			return nil
		},
	}
	runCmd.Flags().BoolVar(&execService, "exec", false, "Exec the service process after a successful run")

	resolveCmd := &cobra.Command{
		Use:   "resolve",
		Short: "Run interpreter discovery only and print the resolved path",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logx.New(os.Stderr, logLevel)
			m, err := loadManifest(manifestPath)
			if err != nil {
				return err
			}
			python, err := interp.NewLocator(m.Interpreter, log).Resolve()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), python)
			return nil
		},
	}

	manifestCmd := &cobra.Command{
		Use:   "manifest",
		Short: "Print the effective manifest as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := loadManifest(manifestPath)
			if err != nil {
				return err
			}
			b, err := yaml.Marshal(m)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(b)
			return err
		},
	}

	root.AddCommand(runCmd, resolveCmd, manifestCmd)

	completionCmd := &cobra.Command{Use: "completion", Short: "Generate the autocompletion script for the specified shell"}
	completionCmd.AddCommand(&cobra.Command{Use: "bash", Short: "Bash completion", RunE: func(cmd *cobra.Command, args []string) error { return root.GenBashCompletion(os.Stdout) }})
	completionCmd.AddCommand(&cobra.Command{Use: "zsh", Short: "Zsh completion", RunE: func(cmd *cobra.Command, args []string) error { return root.GenZshCompletion(os.Stdout) }})
	completionCmd.AddCommand(&cobra.Command{Use: "fish", Short: "Fish completion", RunE: func(cmd *cobra.Command, args []string) error { return root.GenFishCompletion(os.Stdout, true) }})
	completionCmd.AddCommand(&cobra.Command{Use: "powershell", Short: "PowerShell completion", RunE: func(cmd *cobra.Command, args []string) error { return root.GenPowerShellCompletionWithDesc(os.Stdout) }})
	root.AddCommand(completionCmd)

	return root
}

func loadManifest(path string) (types.Manifest, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
