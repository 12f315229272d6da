package services

import (
	"context"
	"net/http"
	"os"

	"github.com/google/go-github/v71/github"
	"golang.org/x/oauth2"
)

// NewGitHubClient builds a GitHub API client. Without GITHUB_TOKEN it is
// unauthenticated, which is enough for public repository lookups.
func NewGitHubClient() *github.Client {
	token := os.Getenv("GITHUB_TOKEN")
	if token == "" {
		return github.NewClient(nil)
	}

	ctx := context.Background()
	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: token},
	)
	tc := oauth2.NewClient(ctx, ts)
	return github.NewClient(tc)
}

// RepositoryExists checks whether owner/name exists on GitHub. A definite
// 404 returns false; any other API failure returns the error so the caller
// can decide to proceed best-effort.
func RepositoryExists(ctx context.Context, client *github.Client, owner, name string) (bool, error) {
	_, resp, err := client.Repositories.Get(ctx, owner, name)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
