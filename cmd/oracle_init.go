package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/fact-oracle/internal/config"
	"github.com/sells-group/fact-oracle/internal/oracle"
	"github.com/sells-group/fact-oracle/internal/parser"
	"github.com/sells-group/fact-oracle/internal/payment"
	"github.com/sells-group/fact-oracle/internal/safety"
	"github.com/sells-group/fact-oracle/internal/scorer"
	"github.com/sells-group/fact-oracle/internal/source"
	"github.com/sells-group/fact-oracle/internal/stats"
	"github.com/sells-group/fact-oracle/pkg/espn"
	"github.com/sells-group/fact-oracle/pkg/payments"
	"github.com/sells-group/fact-oracle/pkg/reddit"
)

// oracleEnv holds the store and the wired oracle used by serve and ask.
type oracleEnv struct {
	Store    stats.Store
	Governor *safety.Governor
	Oracle   *oracle.Oracle
}

// Close releases the store.
func (e *oracleEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initStore opens and migrates the configured stats store.
func initStore(ctx context.Context, c *config.Config) (stats.Store, error) {
	st, err := stats.Open(ctx, c.Store)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// initOracle validates cfg for mode and builds the full pipeline. Callers
// should defer env.Close().
func initOracle(ctx context.Context, c *config.Config, mode string) (*oracleEnv, error) {
	if err := c.Validate(mode); err != nil {
		return nil, err
	}
	if err := scorer.ValidateConfig(c.Scoring); err != nil {
		return nil, err
	}

	aliases := parser.DefaultAliases()
	if c.Parser.AliasesFile != "" {
		loaded, err := parser.LoadAliases(c.Parser.AliasesFile)
		if err != nil {
			return nil, err
		}
		aliases = loaded
		zap.L().Info("loaded team aliases",
			zap.String("path", c.Parser.AliasesFile),
			zap.Int("aliases", aliases.Len()),
		)
	}

	st, err := initStore(ctx, c)
	if err != nil {
		return nil, err
	}

	loc := c.Safety.Location()
	governor := safety.New(st, c.Safety)

	espnClient := espn.NewClient(
		espn.WithBaseURL(c.ESPN.BaseURL),
		espn.WithTimeout(seconds(c.ESPN.TimeoutSecs)),
	)
	redditClient := reddit.NewClient(
		reddit.WithBaseURL(c.Reddit.BaseURL),
		reddit.WithUserAgent(c.Reddit.UserAgent),
		reddit.WithTimeout(seconds(c.Reddit.TimeoutSecs)),
	)

	// ask runs without payment; serve gates every request.
	payCfg := c.Payment
	var payClient payments.Client
	if mode == "ask" {
		payCfg.Enabled = false
	} else if payCfg.Enabled {
		payClient = payments.NewClient(payCfg.BaseURL, payCfg.APIKey,
			payments.WithTimeout(seconds(payCfg.TimeoutSecs)))
	}

	o := oracle.New(
		parser.New(parser.WithLocation(loc), parser.WithAliases(aliases)),
		governor,
		scorer.New(c.Scoring),
		payment.New(payClient, payCfg),
		[]source.Adapter{source.NewSports(espnClient), source.NewReddit(redditClient)},
		oracle.WithTimeouts(
			seconds(max(c.ESPN.TimeoutSecs, c.Reddit.TimeoutSecs)),
			seconds(payCfg.TimeoutSecs),
		),
	)

	return &oracleEnv{Store: st, Governor: governor, Oracle: o}, nil
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
