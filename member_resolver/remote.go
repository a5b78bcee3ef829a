package member_resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"dimfilter/models"

	"github.com/ONSdigital/dp-healthcheck/healthcheck"
	"github.com/pkg/errors"
)

const serviceName = "member-service"

// HTTPClient is the subset of *http.Client used by Remote.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Remote resolves members from a member service:
//
//	GET {base}/dimensions/{key}/members -> [{"id": "...", "label": "..."}]
//
// It never retries; a failed lookup is returned to the caller, which degrades it.
type Remote struct {
	baseURL string
	client  HTTPClient
}

// NewRemote returns a resolver for the member service at baseURL. A nil client uses http.DefaultClient.
func NewRemote(baseURL string, client HTTPClient) *Remote {
	if client == nil {
		client = http.DefaultClient
	}
	return &Remote{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

// Resolve fetches the members of dimensionKey. The source is not consulted.
func (r *Remote) Resolve(
	ctx context.Context,
	_ *models.DataSource,
	dimensionKey string,
) ([]models.Member, error) {
	uri := fmt.Sprintf("%s/dimensions/%s/members", r.baseURL, url.PathEscape(dimensionKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build member request")
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "member request for %q failed", dimensionKey)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("member service returned %d for %q", resp.StatusCode, dimensionKey)
	}

	var fetched []models.Member
	if err = json.NewDecoder(resp.Body).Decode(&fetched); err != nil {
		return nil, errors.Wrap(err, "failed to decode members")
	}

	members := []models.Member{}
	seen := map[string]struct{}{}
	for _, m := range fetched {
		if m.ID == "" {
			continue
		}
		if _, ok := seen[m.ID]; ok {
			continue
		}
		seen[m.ID] = struct{}{}
		if m.Label == "" {
			m.Label = m.ID
		}
		members = append(members, m)
	}
	return members, nil
}

// Checker reports the member service's health to dp-healthcheck.
func (r *Remote) Checker(ctx context.Context, state *healthcheck.CheckState) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/health", nil)
	if err != nil {
		return err
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return state.Update(healthcheck.StatusCritical, serviceName+" unreachable: "+err.Error(), 0)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return state.Update(healthcheck.StatusCritical, serviceName+" is unhealthy", resp.StatusCode)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return state.Update(healthcheck.StatusWarning, serviceName+" is degraded", resp.StatusCode)
	}
	return state.Update(healthcheck.StatusOK, serviceName+" is ok", resp.StatusCode)
}

// Fallback tries Primary and, should it fail, resolves with Secondary instead.
type Fallback struct {
	Primary   Resolver
	Secondary Resolver
}

func (f *Fallback) Resolve(
	ctx context.Context,
	source *models.DataSource,
	dimensionKey string,
) ([]models.Member, error) {
	members, err := f.Primary.Resolve(ctx, source, dimensionKey)
	if err == nil {
		return members, nil
	}
	members, fallbackErr := f.Secondary.Resolve(ctx, source, dimensionKey)
	if fallbackErr != nil {
		return nil, errors.Wrapf(fallbackErr, "fallback after %v", err)
	}
	return members, nil
}
