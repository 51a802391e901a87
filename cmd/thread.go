package cmd

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sklonger/sklonger/internal/reference"
)

func newThreadCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "thread <bsky-url>",
		Short: "Render one thread to HTML",
		Long: `Resolves the thread containing the given bsky.app post link and writes the
complete HTML document to stdout, or to --out.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := reference.Parse(args[0])
			if err != nil {
				return err
			}
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}

			// Buffer so a failed walk never leaves a partial file behind.
			var buf bytes.Buffer
			if err := appInstance.RenderThread(cmd.Context(), &buf, ref); err != nil {
				return fmt.Errorf("render %s: %w", ref.URL(), err)
			}
			if out == "" {
				_, err := cmd.OutOrStdout().Write(buf.Bytes())
				return err
			}
			if err := os.WriteFile(out, buf.Bytes(), 0o644); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "write the document to this file instead of stdout")
	return cmd
}
