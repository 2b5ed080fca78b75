package stages

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"pubsub2inbox/internal/common/errors"
)

const cloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"

// GoogleClientFunc returns an HTTP client authorized for Google APIs and the
// project of the credentials it uses, which may be empty
type GoogleClientFunc func(ctx context.Context) (*http.Client, string, error)

// DefaultGoogleClient authorizes with Application Default Credentials,
// layering the token transport over base
func DefaultGoogleClient(base *http.Client) GoogleClientFunc {
	return func(ctx context.Context) (*http.Client, string, error) {
		creds, err := google.FindDefaultCredentials(ctx, cloudPlatformScope)
		if err != nil {
			return nil, "", errors.ConfigError(fmt.Sprintf("no application default credentials: %v", err))
		}
		if base != nil {
			ctx = context.WithValue(ctx, oauth2.HTTPClient, base)
		}
		return oauth2.NewClient(ctx, creds.TokenSource), credentialsProject(creds.ProjectID, creds.JSON), nil
	}
}

// credentialsProject falls back to the quota project of the credentials file
// when the credentials name no project
func credentialsProject(projectID string, raw []byte) string {
	if projectID != "" || len(raw) == 0 {
		return projectID
	}
	var file struct {
		QuotaProjectID string `json:"quota_project_id"`
	}
	if err := json.Unmarshal(raw, &file); err != nil {
		return ""
	}
	return file.QuotaProjectID
}

// StaticGoogleClient always returns client and project
func StaticGoogleClient(client *http.Client, project string) GoogleClientFunc {
	return func(context.Context) (*http.Client, string, error) {
		return client, project, nil
	}
}
