package recordstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Airtable talks to the Airtable REST API (v0). Filtering is rendered to
// filterByFormula; deletes go out in batches of DeleteBatchSize because the
// API rejects larger ones.
type Airtable struct {
	Endpoint string
	BaseID   string
	APIKey   string
	HTTP     *http.Client
}

// NewAirtable creates a client for one base.
func NewAirtable(endpoint, baseID, apiKey string) *Airtable {
	return &Airtable{
		Endpoint: strings.TrimRight(endpoint, "/"),
		BaseID:   baseID,
		APIKey:   apiKey,
		HTTP: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type airtableRecord struct {
	ID     string         `json:"id"`
	Fields map[string]any `json:"fields"`
}

type airtableList struct {
	Records []airtableRecord `json:"records"`
	Offset  string           `json:"offset"`
}

// Query lists records, following pagination offsets until the filter is
// exhausted or MaxRecords is reached.
func (a *Airtable) Query(ctx context.Context, table string, opts QueryOptions) ([]Record, error) {
	params := url.Values{}
	if opts.Filter != nil {
		params.Set("filterByFormula", Formula(opts.Filter))
	}
	if opts.SortField != "" {
		params.Set("sort[0][field]", opts.SortField)
		direction := "asc"
		if opts.SortDesc {
			direction = "desc"
		}
		params.Set("sort[0][direction]", direction)
	}
	if opts.MaxRecords > 0 {
		params.Set("maxRecords", strconv.Itoa(opts.MaxRecords))
	}

	var out []Record
	offset := ""
	for {
		if offset != "" {
			params.Set("offset", offset)
		}
		var page airtableList
		if err := a.do(ctx, http.MethodGet, a.tableURL(table)+"?"+params.Encode(), nil, &page); err != nil {
			return nil, err
		}
		for _, rec := range page.Records {
			out = append(out, Record{ID: rec.ID, Fields: rec.Fields})
		}
		if page.Offset == "" || (opts.MaxRecords > 0 && len(out) >= opts.MaxRecords) {
			break
		}
		offset = page.Offset
	}
	if opts.MaxRecords > 0 && len(out) > opts.MaxRecords {
		out = out[:opts.MaxRecords]
	}
	return out, nil
}

// Get fetches one record by id via the single-record endpoint. The API's 404
// answer means a clean miss, not a service failure.
func (a *Airtable) Get(ctx context.Context, table, id string) (Record, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.tableURL(table)+"/"+url.PathEscape(id), nil)
	if err != nil {
		return Record{}, false, err
	}
	req.Header.Set("Authorization", "Bearer "+a.APIKey)

	resp, err := a.HTTP.Do(req)
	if err != nil {
		return Record{}, false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return Record{}, false, nil
	}
	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return Record{}, false, fmt.Errorf("%w: airtable %s: %s", ErrStoreUnavailable, resp.Status, strings.TrimSpace(string(detail)))
	}
	var rec airtableRecord
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		return Record{}, false, fmt.Errorf("%w: decode response: %v", ErrStoreUnavailable, err)
	}
	return Record{ID: rec.ID, Fields: rec.Fields}, true, nil
}

// Create inserts one record.
func (a *Airtable) Create(ctx context.Context, table string, fields map[string]any) (Record, error) {
	body := map[string]any{"fields": fields}
	var rec airtableRecord
	if err := a.do(ctx, http.MethodPost, a.tableURL(table), body, &rec); err != nil {
		return Record{}, err
	}
	return Record{ID: rec.ID, Fields: rec.Fields}, nil
}

// DeleteRecords destroys records in sequential batches. The first failing
// batch aborts the rest; earlier batches stay deleted.
func (a *Airtable) DeleteRecords(ctx context.Context, table string, ids []string) error {
	for _, batch := range chunkIDs(ids) {
		params := url.Values{}
		for _, id := range batch {
			params.Add("records[]", id)
		}
		if err := a.do(ctx, http.MethodDelete, a.tableURL(table)+"?"+params.Encode(), nil, nil); err != nil {
			return err
		}
	}
	return nil
}

// CreateIfAbsent is check-then-create: the REST API has no conditional write,
// so two concurrent callers can still both pass the check. Deployments that
// need the write to be atomic should use the Postgres backend.
func (a *Airtable) CreateIfAbsent(ctx context.Context, table string, fields map[string]any, guard Filter) (Record, bool, error) {
	existing, err := a.Query(ctx, table, QueryOptions{Filter: guard, MaxRecords: 1})
	if err != nil {
		return Record{}, false, err
	}
	if len(existing) > 0 {
		return existing[0], false, nil
	}
	rec, err := a.Create(ctx, table, fields)
	if err != nil {
		return Record{}, false, err
	}
	return rec, true, nil
}

func (a *Airtable) tableURL(table string) string {
	return a.Endpoint + "/v0/" + a.BaseID + "/" + url.PathEscape(table)
}

func (a *Airtable) do(ctx context.Context, method, rawURL string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+a.APIKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%w: airtable %s: %s", ErrStoreUnavailable, resp.Status, strings.TrimSpace(string(detail)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Formula renders a filter to an Airtable filterByFormula expression.
// Equality becomes {Field} = '...', conjunction becomes AND(...), and the
// time bounds lean on IS_BEFORE so the comparison respects date semantics.
func Formula(f Filter) string {
	switch f := f.(type) {
	case EqFilter:
		return "{" + f.Field + "} = '" + escapeFormula(f.Value) + "'"
	case AndFilter:
		if len(f.Terms) == 0 {
			return "TRUE()"
		}
		parts := make([]string, 0, len(f.Terms))
		for _, term := range f.Terms {
			parts = append(parts, Formula(term))
		}
		return "AND(" + strings.Join(parts, ", ") + ")"
	case AtOrAfterFilter:
		return "NOT(IS_BEFORE({" + f.Field + "}, '" + f.Instant.UTC().Format(time.RFC3339) + "'))"
	case BeforeFilter:
		return "IS_BEFORE({" + f.Field + "}, '" + f.Instant.UTC().Format(time.RFC3339) + "')"
	default:
		return "TRUE()"
	}
}

func escapeFormula(s string) string {
	return strings.ReplaceAll(s, "'", "\\'")
}
