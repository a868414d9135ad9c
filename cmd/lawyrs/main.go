package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/PabloGalante/lawyrs-chat/internal/app/agentflow"
	"github.com/PabloGalante/lawyrs-chat/internal/observability"
	"github.com/PabloGalante/lawyrs-chat/internal/render/citation"
	"github.com/PabloGalante/lawyrs-chat/internal/render/markdown"
)

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "lawyrs",
	Short: "Chat interface for the Lawyrs legal practice assistant",
	Long: `lawyrs serves the chat layer of the practice app: chat sessions with the
specialist agents, the dashboard summary and agent memories.

Run "lawyrs serve" to start the HTTP server.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if configPath != "" {
			if err := os.Setenv("LAWYRS_CONFIG", configPath); err != nil {
				return fmt.Errorf("setting config path: %w", err)
			}
		}
		if logLevel != "" {
			observability.SetLevel(logLevel)
		}
		return nil
	},
}

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render agent markdown from stdin as chat HTML",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		in, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("reading stdin: %w", err)
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), markdown.Render(string(in)))
		return err
	},
}

var citeKind string

var citeCmd = &cobra.Command{
	Use:   "cite <citation>",
	Short: "Print the lookup links for a citation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind := citation.ParseKind(citeKind)
		out := map[string]any{
			"citation": args[0],
			"kind":     kind,
			"style":    citation.Style(kind),
			"links":    citation.Generate(args[0], kind),
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

var classifyCmd = &cobra.Command{
	Use:   "classify <message>",
	Short: "Show which specialist agent a message would be routed to",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := fmt.Fprintln(cmd.OutOrStdout(), agentflow.Classify(args[0]))
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to the YAML config (default ~/.lawyrs.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error")

	citeCmd.Flags().StringVar(&citeKind, "kind", "case_law", "citation kind: ks_statute, mo_statute, federal_statute, case_law")

	rootCmd.AddCommand(serveCmd, renderCmd, citeCmd, classifyCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
