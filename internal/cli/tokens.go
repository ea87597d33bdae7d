package cli

import (
	"context"

	"github.com/ilhicas/webex-partner-ops/internal/tokens"
	"github.com/ilhicas/webex-partner-ops/internal/webex"
)

// RunTokens refreshes every integration of the token master file.
func RunTokens(ctx context.Context, env Env) error {
	report, summary := env.start("OAuth token refresh", "tokens")
	cfg := env.Config.Tokens

	refresh := func(ctx context.Context, creds webex.Credentials) (webex.RefreshedToken, error) {
		return webex.RefreshToken(ctx, env.Config.Webex.BaseURL, env.HTTPClient, creds)
	}
	res, runErr := tokens.Run(ctx, tokens.Options{
		MasterFile: cfg.MasterFile,
		BackupDir:  cfg.BackupDir,
		LogDir:     cfg.LogDir,
		Now:        env.Now,
		Logger:     env.Logger,
	}, refresh)
	if res == nil {
		return runErr
	}

	report.AddFile(res.BackupPath)
	report.AddFile(cfg.MasterFile)
	report.AddFile(res.LogPath)

	var problems [][]string
	for _, le := range res.Log {
		if le.Status == tokens.StatusSuccess {
			continue
		}
		msg := ""
		if le.Error != nil {
			msg = *le.Error
		}
		problems = append(problems, []string{le.Org, le.Status, msg})
	}

	summary.Succeeded = res.Refreshed
	summary.Failed = res.Failed
	summary.Flagged = res.Skipped

	report.Counts["refreshed"] = res.Refreshed
	report.Counts["skipped"] = res.Skipped
	report.Counts["failed"] = res.Failed
	report.AddSection("Not refreshed", []string{"Org", "Status", "Error"}, problems)

	if err := env.finish(ctx, report, summary); err != nil {
		return err
	}
	return runErr
}
