package cli

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/spf13/cobra"

	acfg "github.com/bjornrobertsson/coder-audit-simple/internal/config"
	"github.com/bjornrobertsson/coder-audit-simple/internal/keychain"
)

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage coder-audit configuration",
	}
	cmd.AddCommand(
		newConfigViewCmd(),
		newConfigGetCmd(),
		newConfigSetCmd(a),
		newConfigResetCmd(a),
		newConfigEditCmd(),
		newConfigPathCmd(),
		newConfigTokenCmd(a),
	)
	return cmd
}

func newConfigTokenCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage the session token in the system keychain",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "set <token>",
			Short: "Store the session token in the system keychain",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if !keychain.Available() {
					return fmt.Errorf("no system keychain available; put the token in %s instead", "~/.coder-audit/token")
				}
				if err := keychain.Set(keychain.Service, keychain.TokenAccount, strings.TrimSpace(args[0])); err != nil {
					return err
				}
				fmt.Fprintln(a.stdout, "Session token stored in system keychain")
				return nil
			},
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Remove the session token from the system keychain",
			RunE: func(cmd *cobra.Command, _ []string) error {
				if err := keychain.Delete(keychain.Service, keychain.TokenAccount); err != nil {
					return err
				}
				fmt.Fprintln(a.stdout, "Session token removed from system keychain")
				return nil
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Report where the session token would be read from",
			RunE: func(cmd *cobra.Command, _ []string) error {
				tok, err := a.cfg.ResolveToken()
				if err != nil {
					return err
				}
				if tok == "" {
					fmt.Fprintln(a.stdout, "No session token found")
					return nil
				}
				fmt.Fprintf(a.stdout, "Session token present (%d chars)\n", len(tok))
				return nil
			},
		},
	)
	return cmd
}

func newConfigViewCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "view",
		Short: "Show effective configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := acfg.Load()
			if err != nil {
				return err
			}
			switch strings.ToLower(strings.TrimSpace(output)) {
			case "", "yaml":
				v, err := cfg.ToYAML()
				if err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), v)
				return nil
			case "json":
				v, err := cfg.ToJSON()
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), v)
				return nil
			default:
				return fmt.Errorf("unsupported --output %q (supported: yaml, json)", output)
			}
		},
	}
	cmd.Flags().StringVar(&output, "output", "yaml", "output format: yaml|json")
	return cmd
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a config value by key path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := acfg.Load()
			if err != nil {
				return err
			}
			v, err := cfg.GetByKey(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), v)
			return nil
		},
	}
}

func newConfigSetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a config value by key path",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := acfg.Load()
			if err != nil {
				return err
			}
			if err := cfg.SetByKey(args[0], args[1]); err != nil {
				return err
			}
			if err := acfg.Save(cfg); err != nil {
				return err
			}
			a.cfg = cfg
			fmt.Fprintf(cmd.OutOrStdout(), "Updated %s\n", args[0])
			return nil
		},
	}
}

func newConfigResetCmd(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Reset configuration to defaults",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return fmt.Errorf("refusing to reset config without --yes")
			}
			cfg := acfg.Default()
			if err := acfg.Save(cfg); err != nil {
				return err
			}
			a.cfg = cfg
			fmt.Fprintln(cmd.OutOrStdout(), "Configuration reset to defaults")
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm reset")
	return cmd
}

func newConfigEditCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "edit",
		Short: "Open config file in your editor",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := acfg.EnsureExists()
			if err != nil {
				return err
			}
			editor := strings.TrimSpace(os.Getenv("VISUAL"))
			if editor == "" {
				editor = strings.TrimSpace(os.Getenv("EDITOR"))
			}
			if editor == "" {
				editor = "vi"
			}
			ep := strings.Fields(editor)
			if len(ep) == 0 {
				return fmt.Errorf("invalid editor command")
			}
			args := append(ep[1:], path)
			proc := exec.Command(ep[0], args...)
			proc.Stdin = cmd.InOrStdin()
			proc.Stdout = cmd.OutOrStdout()
			proc.Stderr = cmd.ErrOrStderr()
			if err := proc.Run(); err != nil {
				return err
			}
			if _, err := acfg.Load(); err != nil {
				return fmt.Errorf("edited config is invalid: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Configuration validated")
			return nil
		},
	}
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the config file location",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := acfg.FilePath()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
}
