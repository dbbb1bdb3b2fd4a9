package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/bjornrobertsson/coder-audit-simple/internal/coderd"
	cacfg "github.com/bjornrobertsson/coder-audit-simple/internal/config"
	"github.com/bjornrobertsson/coder-audit-simple/internal/version"
)

type app struct {
	url        string
	token      string
	tokenFile  string
	timeout    time.Duration
	cfg        *cacfg.Config
	cfgErr     error
	clientOnce sync.Once
	client     *coderd.Client
	clientErr  error
	stdin      io.Reader
	stdout     io.Writer
	stderr     io.Writer
}

func NewRootCommand() *cobra.Command {
	return newRootCommand(os.Stdin, os.Stdout, os.Stderr)
}

func NewRootCommandWithIO(in io.Reader, out, errOut io.Writer) *cobra.Command {
	return newRootCommand(in, out, errOut)
}

func newRootCommand(in io.Reader, out, errOut io.Writer) *cobra.Command {
	cfg, cfgErr := cacfg.Load()
	if cfg == nil {
		cfg = cacfg.Default()
	}
	a := &app{
		timeout: 30 * time.Second,
		cfg:     cfg,
		cfgErr:  cfgErr,
		stdin:   in,
		stdout:  out,
		stderr:  errOut,
	}
	if !cfg.Output.Colors {
		disableColors()
	}

	cmd := &cobra.Command{
		Use:           "coder-audit",
		Short:         "Audit-log reports for a Coder deployment",
		Long:          "coder-audit reads the audit log of a Coder deployment and derives session history (like the Unix last command), connection counts, workspace TTL/cost reports, and a live activity dashboard.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version.Version,
	}

	cmd.PersistentFlags().StringVar(&a.url, "url", "", "Coder deployment URL (default: CODER_URL or server.url from config)")
	cmd.PersistentFlags().StringVar(&a.token, "token", "", "Coder session token (default: CODER_SESSION_TOKEN, CODER_TOKEN, or token file)")
	cmd.PersistentFlags().StringVar(&a.tokenFile, "token-file", "", "path to a file containing the session token")
	cmd.PersistentFlags().DurationVar(&a.timeout, "timeout", 30*time.Second, "per-request API timeout")

	cmd.AddCommand(
		newLastCmd(a),
		newCountCmd(a),
		newStatusCmd(a),
		newUsersCmd(a),
		newDeletedCmd(a),
		newCostCmd(a),
		newTTLCmd(a),
		newDashboardCmd(a),
		newConfigCmd(a),
		newVersionCmd(a),
	)

	cmd.SetVersionTemplate(fmt.Sprintf("coder-audit {{.Version}} (commit %s, built %s)\n", version.Commit, version.BuildDate))

	cmd.AddGroup(
		&cobra.Group{ID: "audit", Title: "Audit Reports:"},
		&cobra.Group{ID: "workspace", Title: "Workspace State:"},
	)

	cmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		if a.cfgErr != nil {
			return fmt.Errorf("invalid %s: %w", configPathSafe(), a.cfgErr)
		}
		return nil
	}

	cmd.SetErrPrefix("coder-audit: ")
	cmd.SetOut(a.stdout)
	cmd.SetErr(a.stderr)
	return cmd
}

// apiClient resolves URL and token once and builds the coderd client. The
// flag values win over env vars, which win over the config file.
func (a *app) apiClient() (*coderd.Client, error) {
	a.clientOnce.Do(func() {
		url := strings.TrimSpace(a.url)
		if url == "" {
			url = a.cfg.ResolvedURL()
		}
		token := strings.TrimSpace(a.token)
		if token == "" && a.tokenFile != "" {
			b, err := os.ReadFile(a.tokenFile)
			if err != nil {
				a.clientErr = fmt.Errorf("read token file %s: %w", a.tokenFile, err)
				return
			}
			token = strings.TrimSpace(string(b))
		}
		if token == "" {
			var err error
			token, err = a.cfg.ResolveToken()
			if err != nil {
				a.clientErr = err
				return
			}
		}
		a.client, a.clientErr = coderd.New(coderd.Config{URL: url, Token: token, Timeout: a.timeout})
	})
	return a.client, a.clientErr
}

func configPathSafe() string {
	p, err := cacfg.FilePath()
	if err != nil {
		return "~/.coder-audit/config.yaml"
	}
	return p
}
