package main

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/mimic-ml/mimic/api"
	"github.com/mimic-ml/mimic/internal/engine"
	"github.com/mimic-ml/mimic/internal/envconfig"
	"github.com/mimic-ml/mimic/internal/server"
	"github.com/mimic-ml/mimic/version"
)

func appendEnvDocs(cmd *cobra.Command, envs []envconfig.EnvVar) {
	if len(envs) == 0 {
		return
	}

	envUsage := `
Environment Variables:
`
	for _, e := range envs {
		envUsage += fmt.Sprintf("      %-24s   %s\n", e.Name, e.Description)
	}

	cmd.SetUsageTemplate(cmd.UsageTemplate() + envUsage)
}

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoWrapText(false)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	return table
}

// NewCLI builds the mimic command tree.
func NewCLI() *cobra.Command {
	cobra.EnableCommandSorting = false

	rootCmd := &cobra.Command{
		Use:           "mimic",
		Short:         "Run neural network graphs in another process",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		Run: func(cmd *cobra.Command, args []string) {
			if v, _ := cmd.Flags().GetBool("version"); v {
				versionHandler(cmd, args)
				return
			}
			cmd.Print(cmd.UsageString())
		},
	}
	rootCmd.Flags().BoolP("version", "v", false, "Show version information")

	serveCmd := &cobra.Command{
		Use:     "serve",
		Aliases: []string{"start"},
		Short:   "Start the mimic session server",
		Args:    cobra.ExactArgs(0),
		RunE:    RunServer,
	}

	runCmd := newRunCmd()

	backendsCmd := &cobra.Command{
		Use:   "backends",
		Short: "List execution backends",
		Args:  cobra.ExactArgs(0),
		RunE:  BackendsHandler,
	}
	backendsCmd.Flags().Bool("local", false, "List the backends built into this binary")

	psCmd := &cobra.Command{
		Use:   "ps",
		Short: "List open sessions",
		Args:  cobra.ExactArgs(0),
		RunE:  ListSessionsHandler,
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.ExactArgs(0),
		Run:   versionHandler,
	}

	envVars := envconfig.AsMap()
	appendEnvDocs(serveCmd, []envconfig.EnvVar{
		envVars["MIMIC_DEBUG"],
		envVars["MIMIC_HOST"],
		envVars["MIMIC_BACKEND"],
		envVars["MIMIC_DEVICE"],
		envVars["MIMIC_KEEP_ALIVE"],
		envVars["MIMIC_MAX_SESSIONS"],
		envVars["MIMIC_NUM_PARALLEL"],
	})
	appendEnvDocs(runCmd, []envconfig.EnvVar{envVars["MIMIC_HOST"], envVars["MIMIC_BACKEND"], envVars["MIMIC_DEVICE"]})
	for _, cmd := range []*cobra.Command{backendsCmd, psCmd} {
		appendEnvDocs(cmd, []envconfig.EnvVar{envVars["MIMIC_HOST"]})
	}

	rootCmd.AddCommand(serveCmd, runCmd, backendsCmd, psCmd, versionCmd)
	return rootCmd
}

func RunServer(_ *cobra.Command, _ []string) error {
	ln, err := net.Listen("tcp", envconfig.Host().Host)
	if err != nil {
		return err
	}

	err = server.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func BackendsHandler(cmd *cobra.Command, _ []string) error {
	var (
		names []string
		def   string
	)
	if local, _ := cmd.Flags().GetBool("local"); local {
		names, def = engine.Backends(), envconfig.Backend()
	} else {
		client, err := api.ClientFromEnvironment()
		if err != nil {
			return err
		}
		resp, err := client.Backends(cmd.Context())
		if err != nil {
			return err
		}
		names, def = resp.Backends, resp.Default
	}

	table := newTable(cmd.OutOrStdout(), "NAME", "DEFAULT")
	for _, name := range names {
		mark := ""
		if name == def {
			mark = "*"
		}
		table.Append([]string{name, mark})
	}
	table.Render()
	return nil
}

func ListSessionsHandler(cmd *cobra.Command, _ []string) error {
	client, err := api.ClientFromEnvironment()
	if err != nil {
		return err
	}
	resp, err := client.Sessions(cmd.Context())
	if err != nil {
		return err
	}

	table := newTable(cmd.OutOrStdout(), "ID", "BACKEND", "KIND", "STATE", "EPOCH", "BATCH")
	for _, s := range resp.Sessions {
		p := s.Progress
		table.Append([]string{
			s.ID,
			s.Backend,
			s.Kind.String(),
			p.State.String(),
			fmt.Sprintf("%d/%d", p.Epoch, p.Epochs),
			fmt.Sprintf("%d/%d", p.Batch, p.BatchesPerEpoch),
		})
	}
	table.Render()
	return nil
}

func versionHandler(cmd *cobra.Command, _ []string) {
	out := cmd.OutOrStdout()
	client, err := api.ClientFromEnvironment()
	if err != nil {
		return
	}

	serverVersion, err := client.Version(cmd.Context())
	if err != nil {
		fmt.Fprintln(out, "Warning: could not connect to a running mimic server")
	}
	if serverVersion != "" {
		fmt.Fprintf(out, "mimic server version is %s\n", serverVersion)
	}
	if serverVersion != version.Version {
		fmt.Fprintf(out, "Warning: client version is %s\n", version.Version)
	}
}
