package streamer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/lalith-99/marginalia/internal/models"
	"github.com/lalith-99/marginalia/internal/sidebar"
	"github.com/lalith-99/marginalia/internal/sidebar/activity"
	"go.uber.org/zap"
)

// searchResponse is the body of GET /v1/annotations.
type searchResponse struct {
	Total int                 `json:"total"`
	Rows  []models.Annotation `json:"rows"`
}

// Loader performs the sidebar's initial fetch of a group's annotations.
type Loader struct {
	client  *http.Client
	baseURL string
	token   string
	logger  *zap.Logger
}

func NewLoader(client *http.Client, baseURL, token string, logger *zap.Logger) *Loader {
	if client == nil {
		client = http.DefaultClient
	}
	return &Loader{client: client, baseURL: baseURL, token: token, logger: logger}
}

// Load fetches up to limit annotations in group into sb, tracking the
// fetch in the activity module.
func (l *Loader) Load(ctx context.Context, sb *sidebar.Store, group string, limit int) error {
	if err := sb.Dispatch(activity.AnnotationFetchStarted()); err != nil {
		return err
	}
	res, fetchErr := l.fetch(ctx, group, limit)
	if err := sb.Dispatch(activity.AnnotationFetchFinished()); err != nil {
		return err
	}
	if fetchErr != nil {
		return fetchErr
	}

	if err := sb.AddAnnotations(res.Rows); err != nil {
		return fmt.Errorf("add fetched annotations: %w", err)
	}
	if err := sb.Dispatch(activity.SetAnnotationResultCount(res.Total)); err != nil {
		return err
	}
	l.logger.Info("annotations loaded",
		zap.String("group", group),
		zap.Int("count", len(res.Rows)),
		zap.Int("total", res.Total),
	)
	return nil
}

func (l *Loader) fetch(ctx context.Context, group string, limit int) (*searchResponse, error) {
	q := url.Values{}
	q.Set("group", group)
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.baseURL+"/v1/annotations?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if l.token != "" {
		req.Header.Set("Authorization", "Bearer "+l.token)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch annotations: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch annotations: unexpected status %d", resp.StatusCode)
	}
	var out searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode annotations: %w", err)
	}
	return &out, nil
}
