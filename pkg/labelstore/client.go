// Package labelstore is a GraphQL client for the hosted annotation platform.
// It covers the handful of operations the labeling loop consumes: reading a
// project's interface schema, paging assets, bulk asset ingest, and writing
// model predictions back as pre-filled suggestions.
package labelstore

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	graphql "github.com/hasura/go-graphql-client"
	"github.com/rs/zerolog/log"

	"github.com/labelforge/labelforge/internal/domain"
)

type apiKeyTransport struct {
	apiKey    string
	transport http.RoundTripper
}

func (t *apiKeyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("Authorization", t.apiKey)
	return t.transport.RoundTrip(req)
}

// Client talks to one annotation store endpoint.
type Client struct {
	config *ClientConfig
	gql    *graphql.Client
}

// NewClient creates a store client with the given options.
func NewClient(opts ...ClientOption) *Client {
	config := DefaultConfig()
	for _, opt := range opts {
		opt(config)
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Transport: &apiKeyTransport{
				apiKey:    config.APIKey,
				transport: http.DefaultTransport,
			},
		}
	}

	return &Client{
		config: config,
		gql:    graphql.NewClient(config.Endpoint, httpClient),
	}
}

// exec runs one GraphQL operation under the per-call deadline, retrying
// transient failures with a flat backoff.
func (c *Client) exec(ctx context.Context, query string, response any, vars map[string]any) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	operation := func() error {
		err := c.gql.Exec(ctx, query, response, vars)
		if err == nil {
			return nil
		}
		err = classify(err)
		if storeErr, ok := AsStoreError(err); ok && storeErr.IsRetryable() {
			return err
		}
		return backoff.Permanent(err)
	}

	attempts := c.config.RetryAttempts
	if attempts < 1 {
		attempts = 1
	}
	policy := backoff.WithContext(
		backoff.WithMaxRetries(
			backoff.NewConstantBackOff(c.config.RetryDelay),
			uint64(attempts-1),
		),
		ctx,
	)

	return backoff.Retry(operation, policy)
}

type signInResponse struct {
	SignIn struct {
		Token string `json:"token"`
		User  struct {
			ID    string `json:"id"`
			Email string `json:"email"`
		} `json:"user"`
	} `json:"signIn"`
}

// SignIn exchanges email/password credentials for a session token. The loop
// itself runs on a long-lived API key; this exists for session bootstrap
// parity with the platform SDK.
func (c *Client) SignIn(ctx context.Context, email, password string) (string, error) {
	var response signInResponse

	vars := map[string]any{
		"email":    email,
		"password": password,
	}

	if err := c.exec(ctx, signInMutation, &response, vars); err != nil {
		return "", fmt.Errorf("failed to sign in: %w", err)
	}

	if response.SignIn.Token == "" {
		return "", &Error{StatusCode: 401, Message: "sign in returned no token"}
	}

	return response.SignIn.Token, nil
}

type projectResponse struct {
	Project *struct {
		ID        string `json:"id"`
		Title     string `json:"title"`
		Interface struct {
			Jobs []struct {
				Name       string `json:"name"`
				Categories []struct {
					Name string `json:"name"`
				} `json:"categories"`
			} `json:"jobs"`
		} `json:"interface"`
	} `json:"project"`
}

// Project reads a project's interface schema: its jobs and their ordered
// category lists.
func (c *Client) Project(ctx context.Context, projectID string) (domain.Project, error) {
	var response projectResponse

	vars := map[string]any{
		"projectID": graphql.ID(projectID),
	}

	if err := c.exec(ctx, projectQuery, &response, vars); err != nil {
		return domain.Project{}, fmt.Errorf("failed to get project %s: %w", projectID, err)
	}

	if response.Project == nil {
		return domain.Project{}, &Error{StatusCode: 404, Message: fmt.Sprintf("project %s not found", projectID)}
	}

	project := domain.Project{
		ID:    response.Project.ID,
		Title: response.Project.Title,
	}
	for _, job := range response.Project.Interface.Jobs {
		categories := make([]string, 0, len(job.Categories))
		for _, category := range job.Categories {
			categories = append(categories, category.Name)
		}
		project.Jobs = append(project.Jobs, domain.Job{
			Name:       job.Name,
			Categories: categories,
		})
	}

	return project, nil
}

type assetNode struct {
	ID         string `json:"id"`
	ExternalID string `json:"externalId"`
	Content    string `json:"content"`
	Labels     []struct {
		ID           string `json:"id"`
		LabelType    string `json:"labelType"`
		CreatedAt    string `json:"createdAt"`
		JSONResponse string `json:"jsonResponse"`
	} `json:"labels"`
}

type assetsResponse struct {
	Assets []assetNode `json:"assets"`
}

// Assets reads one page of assets with their labels.
func (c *Client) Assets(ctx context.Context, projectID string, first, skip int) ([]domain.Asset, error) {
	var response assetsResponse

	vars := map[string]any{
		"projectID": graphql.ID(projectID),
		"first":     first,
		"skip":      skip,
	}

	if err := c.exec(ctx, assetsQuery, &response, vars); err != nil {
		return nil, fmt.Errorf("failed to get assets for project %s: %w", projectID, err)
	}

	assets := make([]domain.Asset, 0, len(response.Assets))
	for _, node := range response.Assets {
		asset := domain.Asset{
			ID:         node.ID,
			ExternalID: node.ExternalID,
			Content:    node.Content,
		}
		for _, labelNode := range node.Labels {
			label := domain.Label{
				ID:   labelNode.ID,
				Type: domain.LabelType(labelNode.LabelType),
			}
			if labelNode.CreatedAt != "" {
				createdAt, err := time.Parse(time.RFC3339, labelNode.CreatedAt)
				if err == nil {
					label.CreatedAt = createdAt
				}
			}
			if labelNode.JSONResponse != "" {
				var parsed domain.Response
				if err := json.Unmarshal([]byte(labelNode.JSONResponse), &parsed); err != nil {
					log.Warn().
						Str("asset_id", node.ID).
						Str("label_id", labelNode.ID).
						Err(err).
						Msg("Skipping label with malformed response payload")
					continue
				}
				label.Response = parsed
			}
			asset.Labels = append(asset.Labels, label)
		}
		assets = append(assets, asset)
	}

	return assets, nil
}

type appendManyResponse struct {
	AppendManyToDataset []struct {
		ID string `json:"id"`
	} `json:"appendManyToDataset"`
}

// AppendAssets bulk-ingests contents under the given external ids. Used for
// initial project seeding, never by the loop.
func (c *Client) AppendAssets(ctx context.Context, projectID string, contents, externalIDs []string) error {
	if len(contents) != len(externalIDs) {
		return fmt.Errorf("contents and external ids must be the same length: %d != %d", len(contents), len(externalIDs))
	}

	var response appendManyResponse

	vars := map[string]any{
		"projectID":       graphql.ID(projectID),
		"contentArray":    contents,
		"externalIDArray": externalIDs,
	}

	if err := c.exec(ctx, appendManyToDatasetMutation, &response, vars); err != nil {
		return fmt.Errorf("failed to append %d assets to project %s: %w", len(contents), projectID, err)
	}

	return nil
}

type createPredictionsResponse struct {
	CreatePredictions []struct {
		ID         string `json:"id"`
		ExternalID string `json:"externalId"`
	} `json:"createPredictions"`
}

// CreatePredictions writes one batch of model predictions and returns the
// external ids the store accepted. The store may accept a subset; callers
// compare the returned ids against what they submitted.
func (c *Client) CreatePredictions(ctx context.Context, batch domain.PredictionBatch) ([]string, error) {
	if len(batch.ExternalIDs) != len(batch.ModelNames) || len(batch.ExternalIDs) != len(batch.Responses) {
		return nil, fmt.Errorf("prediction batch slices must be the same length: ids=%d models=%d responses=%d",
			len(batch.ExternalIDs), len(batch.ModelNames), len(batch.Responses))
	}

	jsonResponses := make([]string, 0, len(batch.Responses))
	for _, r := range batch.Responses {
		encoded, err := json.Marshal(r)
		if err != nil {
			return nil, fmt.Errorf("failed to encode prediction response: %w", err)
		}
		jsonResponses = append(jsonResponses, string(encoded))
	}

	var response createPredictionsResponse

	vars := map[string]any{
		"projectID":         graphql.ID(batch.ProjectID),
		"externalIDArray":   batch.ExternalIDs,
		"modelNameArray":    batch.ModelNames,
		"jsonResponseArray": jsonResponses,
	}

	if err := c.exec(ctx, createPredictionsMutation, &response, vars); err != nil {
		return nil, fmt.Errorf("failed to create %d predictions in project %s: %w", len(batch.ExternalIDs), batch.ProjectID, err)
	}

	accepted := make([]string, 0, len(response.CreatePredictions))
	for _, created := range response.CreatePredictions {
		accepted = append(accepted, created.ExternalID)
	}

	return accepted, nil
}
