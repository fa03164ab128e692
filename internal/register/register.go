// Package register creates the push webhook on a GitHub repository.
package register

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"updatehook/internal/security"

	"github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"
)

// Options describes the webhook to register.
type Options struct {
	// OwnerRepo is the repository in "owner/repo" form.
	OwnerRepo string
	// URL is the public payload URL of the listener.
	URL    string
	Secret string
	// InsecureSSL disables TLS certificate verification on GitHub's side.
	InsecureSSL bool
}

// Result reports what EnsureHook did.
type Result struct {
	Hook    *github.Hook
	Created bool
}

// NewClient creates an authenticated GitHub client. apiURL overrides the
// API endpoint (GitHub Enterprise or tests); empty means api.github.com.
func NewClient(ctx context.Context, token, apiURL string) (*github.Client, error) {
	if token == "" {
		return nil, fmt.Errorf("a GitHub token is required")
	}

	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: token},
	)
	client := github.NewClient(oauth2.NewClient(ctx, ts))

	if apiURL != "" {
		if !strings.HasSuffix(apiURL, "/") {
			apiURL += "/"
		}
		base, err := url.Parse(apiURL)
		if err != nil {
			return nil, fmt.Errorf("invalid API URL %q: %w", apiURL, err)
		}
		client.BaseURL = base
	}

	return client, nil
}

// Validate checks the options before any API call is made.
func (o Options) Validate() error {
	if _, _, err := security.ValidateOwnerRepo(o.OwnerRepo); err != nil {
		return err
	}

	u, err := url.Parse(o.URL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("invalid webhook URL %q: must be an absolute http(s) URL", o.URL)
	}

	if err := security.ValidateSecret(o.Secret); err != nil {
		return fmt.Errorf("invalid webhook secret: %w", err)
	}

	return nil
}

// EnsureHook creates an active push webhook for opts.URL unless one with
// the same URL already exists.
func EnsureHook(ctx context.Context, client *github.Client, opts Options, logger *slog.Logger) (*Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	owner, repo, _ := security.ValidateOwnerRepo(opts.OwnerRepo)

	existing, err := findHook(ctx, client, owner, repo, opts.URL)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		logger.Info("Webhook already exists on GitHub", "repo", opts.OwnerRepo, "id", existing.GetID())
		return &Result{Hook: existing}, nil
	}

	insecureSSL := "0"
	if opts.InsecureSSL {
		insecureSSL = "1"
	}

	hookConfig := map[string]interface{}{
		"url":          opts.URL,
		"content_type": "json",
		"secret":       opts.Secret,
		"insecure_ssl": insecureSSL,
	}

	active := true
	hookReq := &github.Hook{
		Events: []string{"push"},
		Active: &active,
		Config: hookConfig,
	}

	hook, _, err := client.Repositories.CreateHook(ctx, owner, repo, hookReq)
	if err != nil {
		return nil, fmt.Errorf("creating webhook: %w", err)
	}

	logger.Info("Created GitHub webhook", "repo", opts.OwnerRepo, "id", hook.GetID(), "url", opts.URL)
	return &Result{Hook: hook, Created: true}, nil
}

// findHook pages through the repository's hooks looking for payloadURL.
func findHook(ctx context.Context, client *github.Client, owner, repo, payloadURL string) (*github.Hook, error) {
	opts := &github.ListOptions{PerPage: 100}
	for {
		hooks, resp, err := client.Repositories.ListHooks(ctx, owner, repo, opts)
		if err != nil {
			return nil, fmt.Errorf("listing webhooks: %w", err)
		}

		for _, hook := range hooks {
			if hook.Config == nil {
				continue
			}
			if u, ok := hook.Config["url"].(string); ok && u == payloadURL {
				return hook, nil
			}
		}

		if resp == nil || resp.NextPage == 0 {
			return nil, nil
		}
		opts.Page = resp.NextPage
	}
}
