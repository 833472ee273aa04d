package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/mihaimyh/goexplain/internal/config"
	"github.com/mihaimyh/goexplain/internal/httputil"
	"github.com/mihaimyh/goexplain/pkg/goexplain"
)

// sampleEvent is sent when no input is given.
const sampleEvent = `{
  "id": "evt_123456789",
  "object": "event",
  "type": "invoice.payment_failed",
  "data": {
    "object": {
      "id": "in_12345",
      "object": "invoice",
      "amount_due": 2999,
      "currency": "usd",
      "customer": "cus_987654321",
      "customer_email": "customer@example.com",
      "status": "open",
      "attempt_count": 1,
      "billing_reason": "subscription_cycle"
    }
  }
}`

const maxInputBytes = 4 << 20

func newAnalyzeCmd(configPath *string) *cobra.Command {
	var (
		url     string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "analyze [file|-]",
		Short: "Explain a single event locally or against a running service",
		Long: `Explain one Stripe event and print the result as JSON.

The event is read from the given file, from stdin when the argument is "-",
or a sample invoice.payment_failed event is used when no argument is given.

Examples:
  goexplain analyze
  goexplain analyze event.json
  cat event.json | goexplain analyze -
  goexplain analyze --url http://localhost:8000/explain_event`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input, err := readInput(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			var result []byte
			if url != "" {
				result, err = postEvent(ctx, url, input)
			} else {
				result, err = analyzeLocal(ctx, *configPath, input, cmd.ErrOrStderr())
			}
			if err != nil {
				return err
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(result))
			return err
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "POST the event to a running service instead of analyzing locally")
	cmd.Flags().DurationVar(&timeout, "timeout", 60*time.Second, "overall timeout")

	return cmd
}

func readInput(stdin io.Reader, args []string) ([]byte, error) {
	if len(args) == 0 {
		return []byte(sampleEvent), nil
	}
	if args[0] == "-" {
		return httputil.ReadAllLimited(stdin, maxInputBytes)
	}
	f, err := os.Open(args[0])
	if err != nil {
		return nil, fmt.Errorf("open event: %w", err)
	}
	defer f.Close()
	return httputil.ReadAllLimited(f, maxInputBytes)
}

func analyzeLocal(ctx context.Context, configPath string, input []byte, logOut io.Writer) ([]byte, error) {
	event, err := goexplain.ParseEvent(input)
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	zl := newZerolog(cfg.Log, logOut)
	analyzer, err := newAnalyzer(cfg, wrapLogger(&zl), newMetrics(prometheus.NewRegistry()))
	if err != nil {
		return nil, err
	}

	return json.MarshalIndent(analyzer.Analyze(ctx, event), "", "  ")
}

func postEvent(ctx context.Context, url string, input []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(input))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post event: %w", err)
	}
	defer resp.Body.Close()

	body, err := httputil.ReadAllLimited(resp.Body, maxInputBytes)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("service returned %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, body, "", "  "); err != nil {
		return body, nil
	}
	return pretty.Bytes(), nil
}
