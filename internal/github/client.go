// Package github wraps the gh CLI to provide GitHub API access without
// additional dependencies. The gh binary handles OAuth token refresh,
// rate limiting, and outputs parseable JSON. It is the versioned store
// for agent prompt documents: one markdown file per agent under the
// prompts directory of the configured repository.
package github

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os/exec"
	"sort"
	"strings"
)

// promptFiles maps agent names to their prompt documents.
var promptFiles = map[string]string{
	"router":          "router-agent.md",
	"finance":         "finance-agent.md",
	"calendar":        "calendar-agent.md",
	"reminder":        "reminder-agent.md",
	"shopping":        "shopping-agent.md",
	"vehicle":         "vehicle-agent.md",
	"qa":              "qa-agent.md",
	"prompt-improver": "prompt-improver-agent.md",
}

// Error is returned for all GitHub prompt-store failures.
type Error struct {
	Op      string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("github %s: %s", e.Op, e.Message)
}

// CommitResult references the commit produced by a prompt update.
type CommitResult struct {
	CommitSHA string `json:"commit_sha"`
	CommitURL string `json:"commit_url"`
}

// Client reads and writes agent prompt documents in a GitHub repository
// via the gh CLI.
type Client struct {
	repo       string // owner/name
	branch     string
	promptsDir string
	token      string // optional; if empty, gh uses its stored credentials
}

// NewClient creates a prompt store client for the given repository.
func NewClient(repo, branch, promptsDir, token string) *Client {
	if branch == "" {
		branch = "main"
	}
	if promptsDir == "" {
		promptsDir = "docs/prompts"
	}
	return &Client{repo: repo, branch: branch, promptsDir: promptsDir, token: token}
}

// IsConfigured reports whether the client has enough configuration to
// reach the repository.
func (c *Client) IsConfigured() bool {
	return c.repo != "" && c.token != ""
}

// gh runs a gh CLI command and returns raw JSON output.
func (c *Client) gh(ctx context.Context, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "gh", args...)
	if c.token != "" {
		cmd.Env = append(cmd.Environ(), "GH_TOKEN="+c.token)
	}
	out, err := cmd.CombinedOutput()
	if err != nil {
		return nil, &Error{
			Op:      "gh " + strings.Join(args, " "),
			Message: fmt.Sprintf("%v: %s", err, strings.TrimSpace(string(out))),
		}
	}
	return out, nil
}

// promptPath returns the in-repo path of an agent's prompt document.
func (c *Client) promptPath(agentName string) (string, error) {
	filename, ok := promptFiles[agentName]
	if !ok {
		return "", &Error{Op: "resolve", Message: "no prompt file configured for agent " + agentName}
	}
	return c.promptsDir + "/" + filename, nil
}

// contentsFile is the GitHub contents API response for a single file.
type contentsFile struct {
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
	SHA      string `json:"sha"`
}

func decodeContents(data []byte) (text, sha string, err error) {
	var f contentsFile
	if err := json.Unmarshal(data, &f); err != nil {
		return "", "", fmt.Errorf("parse contents response: %w", err)
	}
	if f.Encoding != "base64" {
		return "", "", fmt.Errorf("unexpected contents encoding %q", f.Encoding)
	}
	// The API wraps base64 at 60 columns.
	raw, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(f.Content, "\n", ""))
	if err != nil {
		return "", "", fmt.Errorf("decode contents: %w", err)
	}
	return string(raw), f.SHA, nil
}

// GetPrompt returns the current prompt document for an agent. Fails
// closed: any error (unreachable, missing file, bad encoding) is
// surfaced, never an empty document.
func (c *Client) GetPrompt(ctx context.Context, agentName string) (string, error) {
	text, _, err := c.getPromptWithSHA(ctx, agentName)
	return text, err
}

func (c *Client) getPromptWithSHA(ctx context.Context, agentName string) (string, string, error) {
	path, err := c.promptPath(agentName)
	if err != nil {
		return "", "", err
	}

	out, err := c.gh(ctx, "api",
		fmt.Sprintf("repos/%s/contents/%s?ref=%s", c.repo, path, c.branch))
	if err != nil {
		return "", "", err
	}

	text, sha, err := decodeContents(out)
	if err != nil {
		return "", "", &Error{Op: "get " + path, Message: err.Error()}
	}
	return text, sha, nil
}

// updateResponse is the GitHub contents API response for a file update.
type updateResponse struct {
	Commit struct {
		SHA     string `json:"sha"`
		HTMLURL string `json:"html_url"`
	} `json:"commit"`
}

// UpdatePrompt commits a new version of an agent's prompt document and
// returns the commit reference. The author string is recorded in the
// commit message so the revision history names who triggered the edit.
func (c *Client) UpdatePrompt(ctx context.Context, agentName, content, author string) (*CommitResult, error) {
	path, err := c.promptPath(agentName)
	if err != nil {
		return nil, err
	}

	// The contents API requires the current blob SHA for updates.
	_, sha, err := c.getPromptWithSHA(ctx, agentName)
	if err != nil {
		return nil, err
	}

	message := fmt.Sprintf("Update %s agent prompt\n\nUpdated by: %s", agentName, author)
	encoded := base64.StdEncoding.EncodeToString([]byte(content))

	out, err := c.gh(ctx, "api", "-X", "PUT",
		fmt.Sprintf("repos/%s/contents/%s", c.repo, path),
		"-f", "message="+message,
		"-f", "content="+encoded,
		"-f", "sha="+sha,
		"-f", "branch="+c.branch,
	)
	if err != nil {
		return nil, err
	}

	var resp updateResponse
	if err := json.Unmarshal(out, &resp); err != nil {
		return nil, &Error{Op: "update " + path, Message: "parse update response: " + err.Error()}
	}
	if resp.Commit.SHA == "" {
		return nil, &Error{Op: "update " + path, Message: "update response missing commit sha"}
	}

	return &CommitResult{
		CommitSHA: resp.Commit.SHA,
		CommitURL: resp.Commit.HTMLURL,
	}, nil
}

// KnownAgents returns the agent names with a configured prompt file,
// excluding the analysis template.
func KnownAgents() []string {
	names := make([]string, 0, len(promptFiles))
	for name := range promptFiles {
		if name == "prompt-improver" {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
