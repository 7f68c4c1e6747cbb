package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	httpserver "github.com/fyrsmithlabs/fixd/internal/http"
	"github.com/fyrsmithlabs/fixd/internal/remediation"
)

// languageByExt maps file extensions to request languages.
var languageByExt = map[string]string{
	".py":   "python",
	".go":   "go",
	".js":   "javascript",
	".mjs":  "javascript",
	".ts":   "typescript",
	".java": "java",
	".rb":   "ruby",
	".php":  "php",
	".cs":   "c#",
	".c":    "c",
	".cpp":  "c++",
	".rs":   "rust",
	".kt":   "kotlin",
	".sh":   "bash",
}

type fixOptions struct {
	*options
	file     string
	language string
	cwe      string
	noRAG    bool
	output   string
	timeout  time.Duration
}

func newFixCmd(root *options) *cobra.Command {
	opts := &fixOptions{options: root}
	cmd := &cobra.Command{
		Use:   "fix",
		Short: "Remediate a vulnerable code snippet",
		Long: `Send a code snippet to fixd and print the remediated code.

Examples:
  # Fix a SQL injection, language inferred from the extension
  fixctl fix --file query.py --cwe CWE-89

  # Read from stdin without retrieval guidance
  cat handler.go | fixctl fix --language go --cwe 78 --no-rag

  # Full JSON result
  fixctl fix --file app.js --cwe CWE-79 -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runFix(cmd, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.file, "file", "f", "-", "file to fix, or - for stdin")
	cmd.Flags().StringVarP(&opts.language, "language", "l", "", "source language (default: inferred from --file)")
	cmd.Flags().StringVar(&opts.cwe, "cwe", "", "weakness category, e.g. CWE-89")
	cmd.Flags().BoolVar(&opts.noRAG, "no-rag", false, "skip recipe retrieval")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "text", "output format: text, code, diff or json")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 10*time.Minute, "request timeout")
	_ = cmd.MarkFlagRequired("cwe")
	return cmd
}

func runFix(cmd *cobra.Command, opts *fixOptions) error {
	code, err := readSource(cmd.InOrStdin(), opts.file)
	if err != nil {
		return err
	}
	if strings.TrimSpace(string(code)) == "" {
		return fmt.Errorf("no code to fix")
	}

	language := opts.language
	if language == "" {
		language = languageByExt[strings.ToLower(filepath.Ext(opts.file))]
		if language == "" {
			return fmt.Errorf("cannot infer language from %q, use --language", opts.file)
		}
	}

	req := httpserver.FixRequest{
		Language: language,
		CWE:      opts.cwe,
		Code:     string(code),
	}
	if opts.noRAG {
		useRAG := false
		req.UseRAG = &useRAG
	}

	var res remediation.Result
	c := newClient(opts.serverURL, opts.timeout)
	if err := c.do(cmd.Context(), "POST", "/local_fix", req, &res); err != nil {
		return err
	}
	return printResult(cmd.OutOrStdout(), cmd.ErrOrStderr(), opts.output, &res)
}

func readSource(stdin io.Reader, file string) ([]byte, error) {
	if file == "" || file == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read from stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", file, err)
	}
	return data, nil
}

func printResult(out, errOut io.Writer, format string, res *remediation.Result) error {
	switch format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	case "code":
		_, err := fmt.Fprintln(out, strings.TrimRight(res.FixedCode, "\n"))
		return err
	case "diff":
		_, err := fmt.Fprint(out, res.Diff)
		return err
	case "text":
		fmt.Fprintln(out, strings.TrimRight(res.FixedCode, "\n"))
		fmt.Fprintf(errOut, "\n%s\n", res.Diff)
		fmt.Fprintf(errOut, "%s\n\n", res.Explanation)
		fmt.Fprintf(errOut, "[fixctl] model=%s tokens=%d/%d latency=%dms\n",
			res.ModelUsed, res.TokenUsage.InputTokens, res.TokenUsage.OutputTokens, res.LatencyMS)
		return nil
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}
