package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/fact-oracle/internal/model"
	"github.com/sells-group/fact-oracle/internal/resilience"
)

var askRetries int

var askCmd = &cobra.Command{
	Use:   "ask <domain> <question>",
	Short: "Answer one question locally without payment",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		domain, ok := model.ParseDomain(args[0])
		if !ok {
			return model.Errorf(model.KindUnknownDomain, "unknown domain %q", args[0])
		}
		question := strings.Join(args[1:], " ")

		env, err := initOracle(ctx, cfg, "ask")
		if err != nil {
			return err
		}
		defer env.Close()

		result, err := resilience.DoVal(ctx, askRetryConfig(askRetries), func(ctx context.Context) (*model.VerificationResult, error) {
			r, err := env.Oracle.Answer(ctx, domain, question)
			if err != nil {
				return nil, err
			}
			return r, resultError(r)
		})
		if result == nil {
			return err
		}

		out, merr := json.MarshalIndent(result, "", "  ")
		if merr != nil {
			return eris.Wrap(merr, "ask: marshal result")
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	},
}

// resultError surfaces a failed result's kind so the retry loop can see it.
func resultError(r *model.VerificationResult) error {
	if r == nil || r.Success {
		return nil
	}
	return model.Errorf(r.Error, "%s", r.ErrorMessage)
}

// askRetryConfig retries only rate limits and network errors. Zero retries
// means a single attempt.
func askRetryConfig(retries int) resilience.RetryConfig {
	rc := resilience.DefaultRetryConfig()
	rc.MaxAttempts = max(retries, 0) + 1
	rc.ShouldRetry = func(err error) bool {
		switch model.KindOf(err) {
		case model.KindRateLimited, model.KindNetwork:
			return true
		}
		return false
	}
	rc.OnRetry = resilience.RetryLogger("ask", "answer")
	return rc
}

func init() {
	askCmd.Flags().IntVar(&askRetries, "retries", 0, "retries for rate_limited and network_error results")
	rootCmd.AddCommand(askCmd)
}
