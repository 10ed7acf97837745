package isolation

import (
	"context"
	"fmt"

	"github.com/google/go-github/v74/github"
)

// PullRequest is the result of HostAdapter.CreatePR.
type PullRequest struct {
	URL    string
	Number int
}

// HostAdapter is the external HostAdapter collaborator from spec.md §6:
// create_pr(repo, head, base, title, body) -> {url}; check_access(repo) -> bool.
type HostAdapter interface {
	CreatePR(ctx context.Context, repo, head, base, title, body string) (PullRequest, error)
	CheckAccess(ctx context.Context, repo string) (bool, error)
}

// GitHubAdapter implements HostAdapter against the GitHub REST API. repo is
// always "owner/name".
type GitHubAdapter struct {
	Client *github.Client
}

// NewGitHubAdapter builds a GitHubAdapter authenticated with a personal
// access token, the same token-based auth pattern the teacher's host
// integrations use.
func NewGitHubAdapter(token string) *GitHubAdapter {
	return &GitHubAdapter{Client: github.NewClient(nil).WithAuthToken(token)}
}

func (a *GitHubAdapter) CreatePR(ctx context.Context, repo, head, base, title, body string) (PullRequest, error) {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return PullRequest{}, err
	}
	pr, _, err := a.Client.PullRequests.Create(ctx, owner, name, &github.NewPullRequest{
		Title: &title,
		Head:  &head,
		Base:  &base,
		Body:  &body,
	})
	if err != nil {
		return PullRequest{}, fmt.Errorf("isolation: create PR for %s: %w", repo, err)
	}
	return PullRequest{URL: pr.GetHTMLURL(), Number: pr.GetNumber()}, nil
}

func (a *GitHubAdapter) CheckAccess(ctx context.Context, repo string) (bool, error) {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return false, err
	}
	perm, _, err := a.Client.Repositories.Get(ctx, owner, name)
	if err != nil {
		return false, nil
	}
	if perm.GetPermissions() == nil {
		return false, nil
	}
	return perm.GetPermissions()["push"], nil
}

func splitRepo(repo string) (owner, name string, err error) {
	for i := 0; i < len(repo); i++ {
		if repo[i] == '/' {
			return repo[:i], repo[i+1:], nil
		}
	}
	return "", "", fmt.Errorf("isolation: repo %q is not in owner/name form", repo)
}
