package github

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	gh "github.com/google/go-github/v66/github"

	"github.com/paylinkbridge/checkout/internal/checkout/domain"
)

// IssueTracker files a GitHub issue per recorded customer. Without a token it
// is a no-op, matching the optional nature of the integration.
type IssueTracker struct {
	log    *slog.Logger
	client *gh.Client
	owner  string
	repo   string
}

func NewIssueTracker(log *slog.Logger, token, owner, repo string) *IssueTracker {
	t := &IssueTracker{log: log, owner: owner, repo: repo}
	if token == "" {
		log.Warn("github token not set, issue creation disabled")
		return t
	}
	t.client = gh.NewClient(nil).WithAuthToken(token)
	return t
}

func (t *IssueTracker) CreateIssue(ctx context.Context, customer domain.Customer) (string, error) {
	if t.client == nil {
		return "", nil
	}

	body := fmt.Sprintf(`## New Customer Registration

**Customer ID**: %s

### Payment Information
- **Plan**: %s
- **Amount**: $%s %s
- **Order ID**: %s
- **License Key**: %s

### Customer Details
- **Email**: %s
- **Full Name**: %s
- **Payment Date**: %s
`,
		customer.ID, customer.Plan, customer.Amount, customer.Currency,
		customer.OrderID, customer.License, customer.Email, customer.FullName,
		customer.CreatedAt.Format("2006-01-02 15:04:05 MST"))

	req := &gh.IssueRequest{
		Title:  gh.String(fmt.Sprintf("New License - %s - %s", strings.ToUpper(customer.Plan), customer.FullName)),
		Body:   gh.String(body),
		Labels: &[]string{"customer", "license-issued"},
	}
	issue, _, err := t.client.Issues.Create(ctx, t.owner, t.repo, req)
	if err != nil {
		return "", err
	}
	t.log.Info("github issue created", "url", issue.GetHTMLURL(), "customer_id", customer.ID)
	return issue.GetHTMLURL(), nil
}
