package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dvorasec/errsqli/internal/detector"
	"github.com/dvorasec/errsqli/internal/engine"
	"github.com/dvorasec/errsqli/internal/technique"
	"github.com/dvorasec/errsqli/internal/technique/errorbased"
	"github.com/dvorasec/errsqli/internal/transport"
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract a SQL expression's value from a known-injectable parameter",
	Long: `Extract drives the error-based extraction engine directly against a single
target parameter, skipping the heuristic detection and fingerprinting scan
performs. Use this once a parameter is already known to be injectable.`,
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().String("parameter", "", "Name of the injectable parameter (defaults to the first parsed parameter)")
	extractCmd.Flags().String("query", "", "SQL expression to extract, e.g. \"@@version\" or \"SELECT user,password FROM users\" (required)")
	extractCmd.Flags().Bool("dump", false, "Expand the query into a multi-row dump instead of a single scalar")
	extractCmd.Flags().Int("start", 0, "1-based first row to dump (only consulted with --dump)")
	extractCmd.Flags().Int("stop", 0, "1-based last row to dump (only consulted with --dump)")
	extractCmd.Flags().Float64("rate", 0, "Maximum requests per second against the target (0 = unlimited)")
	_ = extractCmd.MarkFlagRequired("query")
}

// runExtract is the extract command handler. It wires the same transport
// and target-building steps as scan, but skips heuristic detection and
// fingerprinting: it calls errorbased.Extract directly against one
// already-known-injectable parameter.
func runExtract(cmd *cobra.Command, args []string) error {
	fmt.Println("[!] Legal disclaimer: Usage of sqleech for attacking targets without prior mutual consent is illegal.")

	targetURL, _ := cmd.Flags().GetString("url")
	if targetURL == "" {
		return fmt.Errorf("target URL is required (use --url or -u)")
	}
	query, _ := cmd.Flags().GetString("query")
	paramName, _ := cmd.Flags().GetString("parameter")

	method, _ := cmd.Flags().GetString("method")
	data, _ := cmd.Flags().GetString("data")
	cookieStr, _ := cmd.Flags().GetString("cookie")
	rawHeaders, _ := cmd.Flags().GetStringArray("header")
	proxyURL, _ := cmd.Flags().GetString("proxy")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	forceSSL, _ := cmd.Flags().GetBool("force-ssl")
	randomAgent, _ := cmd.Flags().GetBool("random-agent")
	verbose, _ := cmd.Flags().GetInt("verbose")
	dbmsHint, _ := cmd.Flags().GetString("dbms")
	threads, _ := cmd.Flags().GetInt("threads")
	dump, _ := cmd.Flags().GetBool("dump")
	start, _ := cmd.Flags().GetInt("start")
	stop, _ := cmd.Flags().GetInt("stop")
	rate, _ := cmd.Flags().GetFloat64("rate")

	if forceSSL {
		targetURL = strings.Replace(targetURL, "http://", "https://", 1)
		if !strings.HasPrefix(targetURL, "https://") {
			targetURL = "https://" + targetURL
		}
	}
	if data != "" && method == "GET" {
		method = "POST"
	}

	headers := parseHeaders(rawHeaders)
	cookies := parseCookieString(cookieStr)

	client, err := transport.NewClient(transport.ClientOptions{
		Timeout:         timeout,
		ProxyURL:        proxyURL,
		FollowRedirects: true,
		RandomUserAgent: randomAgent,
		MaxRPS:          rate,
	})
	if err != nil {
		return fmt.Errorf("failed to create HTTP client: %w", err)
	}

	target := &engine.ScanTarget{
		URL:     targetURL,
		Method:  method,
		Headers: headers,
		Body:    data,
		Cookies: cookies,
	}
	if data != "" {
		if _, hasContentType := headers["Content-Type"]; !hasContentType {
			target.ContentType = "application/x-www-form-urlencoded"
		}
	}

	param, err := resolveExtractParameter(target, paramName)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	var infoWriter io.Writer = io.Discard
	if verbose > 0 {
		infoWriter = os.Stdout
		fmt.Printf("[*] Target: %s\n", targetURL)
		fmt.Printf("[*] Parameter: %s\n", param.Name)
		fmt.Printf("[*] Query: %s\n", query)
	}

	req := &technique.ExtractionRequest{
		InjectionRequest: technique.InjectionRequest{
			Target:    target,
			Parameter: param,
			DBMS:      dbmsHint,
			Client:    client,
		},
		Query:      query,
		Dump:       dump,
		LimitStart: start,
		LimitStop:  stop,
		Threads:    threads,
		InfoWriter: infoWriter,
	}

	result, err := errorbased.New().Extract(ctx, req)
	if err != nil {
		return fmt.Errorf("extract error: %w", err)
	}

	printExtractResult(result)
	return nil
}

// resolveExtractParameter parses the target's query string and body for
// candidate parameters and picks the one matching name, or the first
// discovered parameter when name is empty.
func resolveExtractParameter(target *engine.ScanTarget, name string) (*engine.Parameter, error) {
	params := detector.ParseParameters(target.URL, target.Body, target.ContentType)
	if len(params) == 0 {
		return nil, fmt.Errorf("no parameters found on the target URL or body")
	}

	if name == "" {
		p := params[0]
		return &p, nil
	}

	for _, p := range params {
		if p.Name == name {
			return &p, nil
		}
	}
	return nil, fmt.Errorf("parameter %q not found among: %s", name, parameterNames(params))
}

func parameterNames(params []engine.Parameter) string {
	names := make([]string, len(params))
	for i, p := range params {
		names[i] = p.Name
	}
	return strings.Join(names, ", ")
}

// printExtractResult renders an ExtractionResult to stdout: a single value,
// or one line per row for a multi-row dump.
func printExtractResult(result *technique.ExtractionResult) {
	if len(result.Rows) > 0 {
		for i, row := range result.Rows {
			fmt.Printf("[%d] %s\n", i, formatExtractRow(row))
		}
		return
	}

	if result.Partial {
		fmt.Println("[!] Extraction failed: no data recovered")
		return
	}
	fmt.Println(result.Value)
}

func formatExtractRow(row any) string {
	switch v := row.(type) {
	case *string:
		if v == nil {
			return "<NULL>"
		}
		return *v
	case []*string:
		fields := make([]string, len(v))
		for i, f := range v {
			if f == nil {
				fields[i] = "<NULL>"
			} else {
				fields[i] = *f
			}
		}
		return strings.Join(fields, ", ")
	default:
		return fmt.Sprintf("%v", v)
	}
}
