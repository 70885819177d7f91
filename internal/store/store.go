package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/antosikiss/replicator/internal/config"
	"github.com/antosikiss/replicator/internal/store/model"
	"go.uber.org/zap"
)

const (
	GenerationTable    = "Generation"
	ConfigurationTable = "Configuration"

	defaultBaseURL = "https://api.airtable.com/v0"
	requestTimeout = 30 * time.Second

	// A record is pending when it has an input (link or uploaded video),
	// a character reference, no output yet and is not claimed by another
	// running instance.
	pendingFormula = `AND(OR({Link} != "", {Source_Video} != ""), {AI_Character} != "", {Output_Video} = "", {Status} != "Processing")`
)

// Store is the record-store surface the pipeline depends on. Airtable is the
// only production implementation; tests substitute fakes.
type Store interface {
	ListPending(ctx context.Context) ([]model.Record, error)
	Get(ctx context.Context, id string) (*model.Record, error)
	Update(ctx context.Context, id string, fields map[string]any) error
	Settings(ctx context.Context) (*model.Settings, error)
}

type AirtableStore struct {
	baseURL string
	baseID  string
	token   string
	client  *http.Client
}

var _ Store = (*AirtableStore)(nil)

func NewAirtableStore(cfg *config.Config) *AirtableStore {
	return &AirtableStore{
		baseURL: defaultBaseURL,
		baseID:  cfg.Airtable.BaseID,
		token:   cfg.Airtable.APIKey,
		client:  &http.Client{Timeout: requestTimeout},
	}
}

// WithBaseURL overrides the API endpoint. Used by tests.
func (s *AirtableStore) WithBaseURL(u string) *AirtableStore {
	s.baseURL = u
	return s
}

type listResponse struct {
	Records []model.Record `json:"records"`
	Offset  string         `json:"offset,omitempty"`
}

func (s *AirtableStore) tableURL(table string) string {
	return fmt.Sprintf("%s/%s/%s", s.baseURL, s.baseID, url.PathEscape(table))
}

func (s *AirtableStore) do(ctx context.Context, method, rawURL string, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("airtable request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrRecordNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("airtable error: status %d: %s", resp.StatusCode, truncate(string(data), 300))
	}
	return data, nil
}

// List fetches records of a table, optionally constrained by an Airtable
// filterByFormula expression. Follows pagination offsets until exhausted.
func (s *AirtableStore) List(ctx context.Context, table, formula string) ([]model.Record, error) {
	records := []model.Record{}
	offset := ""

	for {
		u := s.tableURL(table)
		q := url.Values{}
		if formula != "" {
			q.Set("filterByFormula", formula)
		}
		if offset != "" {
			q.Set("offset", offset)
		}
		if len(q) > 0 {
			u += "?" + q.Encode()
		}

		data, err := s.do(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}

		var page listResponse
		if err := json.Unmarshal(data, &page); err != nil {
			return nil, fmt.Errorf("airtable list: decoding response: %w", err)
		}
		records = append(records, page.Records...)

		if page.Offset == "" {
			return records, nil
		}
		offset = page.Offset
	}
}

func (s *AirtableStore) ListPending(ctx context.Context) ([]model.Record, error) {
	return s.List(ctx, GenerationTable, pendingFormula)
}

func (s *AirtableStore) Get(ctx context.Context, id string) (*model.Record, error) {
	data, err := s.do(ctx, http.MethodGet, s.tableURL(GenerationTable)+"/"+id, nil)
	if err != nil {
		return nil, err
	}
	var record model.Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("airtable get: decoding response: %w", err)
	}
	return &record, nil
}

func (s *AirtableStore) Update(ctx context.Context, id string, fields map[string]any) error {
	_, err := s.do(ctx, http.MethodPatch, s.tableURL(GenerationTable)+"/"+id, map[string]any{"fields": fields})
	return err
}

// Settings reads the first row of the Configuration table. A missing table
// or empty result is not an error; the defaults apply.
func (s *AirtableStore) Settings(ctx context.Context) (*model.Settings, error) {
	settings := model.DefaultSettings()

	data, err := s.do(ctx, http.MethodGet, s.tableURL(ConfigurationTable), nil)
	if err != nil {
		zap.S().Named("store").Warnf("reading configuration table: %s, using defaults", err)
		return settings, nil
	}

	var page struct {
		Records []struct {
			Fields struct {
				Provider   string  `json:"API_Provider"`
				ImageModel string  `json:"Image_Model"`
				NumImages  float64 `json:"num_images"`
				Resolution string  `json:"Video_Resolution"`
				EnableNSFW bool    `json:"Enable_NSFW"`
			} `json:"fields"`
		} `json:"records"`
	}
	if err := json.Unmarshal(data, &page); err != nil {
		return nil, fmt.Errorf("airtable settings: decoding response: %w", err)
	}
	if len(page.Records) == 0 {
		return settings, nil
	}

	f := page.Records[0].Fields
	if f.Provider != "" {
		settings.Provider = f.Provider
	}
	if f.ImageModel != "" {
		settings.ImageModel = f.ImageModel
	}
	if f.NumImages > 0 {
		settings.NumImages = int(f.NumImages)
	}
	if f.Resolution != "" {
		settings.VideoResolution = f.Resolution
	}
	settings.EnableNSFW = f.EnableNSFW

	return settings, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
