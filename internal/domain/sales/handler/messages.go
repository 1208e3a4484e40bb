package handler

import (
	"time"

	"github.com/FACorreiaa/sales-insight/internal/domain/sales/loader"
	"github.com/FACorreiaa/sales-insight/internal/domain/sales/query"
	"github.com/FACorreiaa/sales-insight/internal/domain/sales/repository"
	"github.com/FACorreiaa/sales-insight/internal/domain/sales/service"
)

// LoadDatasetRequest carries a raw export. Data is base64 in JSON.
type LoadDatasetRequest struct {
	Name    string                `json:"name"`
	Data    []byte                `json:"data"`
	Columns *loader.ColumnMapping `json:"columns,omitempty"`
}

type LoadDatasetResponse struct {
	DatasetID   string               `json:"dataset_id"`
	Name        string               `json:"name"`
	Fingerprint string               `json:"fingerprint"`
	Headers     []string             `json:"headers"`
	Rows        int                  `json:"rows"`
	HasDates    bool                 `json:"has_dates"`
	Warnings    []string             `json:"warnings,omitempty"`
	ProfileUsed bool                 `json:"profile_used"`
	Cached      bool                 `json:"cached"`
	Suggested   loader.ColumnMapping `json:"suggested_columns"`
}

type SaveProfileRequest struct {
	Fingerprint     string               `json:"fingerprint"`
	Name            string               `json:"name,omitempty"`
	Columns         loader.ColumnMapping `json:"columns"`
	Delimiter       string               `json:"delimiter,omitempty"`
	Encoding        string               `json:"encoding,omitempty"`
	ThousandsPolicy string               `json:"thousands_policy,omitempty"`
}

type Profile struct {
	ID              string               `json:"id"`
	Fingerprint     string               `json:"fingerprint"`
	Name            string               `json:"name,omitempty"`
	Columns         loader.ColumnMapping `json:"columns"`
	Delimiter       string               `json:"delimiter"`
	Encoding        string               `json:"encoding"`
	ThousandsPolicy string               `json:"thousands_policy"`
	CreatedAt       time.Time            `json:"created_at"`
	UpdatedAt       time.Time            `json:"updated_at"`
}

type ListProfilesRequest struct{}

type ListProfilesResponse struct {
	Profiles []Profile `json:"profiles"`
}

type DeleteProfileRequest struct {
	Fingerprint string `json:"fingerprint"`
}

type DeleteProfileResponse struct{}

// QueryRequest runs either an explicit intent or a catalog category. With a
// category, the intent's filters (and a positive limit) are applied on top.
type QueryRequest struct {
	DatasetID string         `json:"dataset_id"`
	Category  query.Category `json:"category,omitempty"`
	Intent    query.Intent   `json:"intent"`
}

type AskRequest struct {
	DatasetID string `json:"dataset_id"`
	Question  string `json:"question"`
}

// AnswerResponse is returned by both Query and Ask.
type AnswerResponse struct {
	Intent    query.Intent `json:"intent"`
	Result    query.Result `json:"result"`
	Text      string       `json:"text"`
	Narrative string       `json:"narrative,omitempty"`
	Source    string       `json:"source"`
}

type InvalidateDatasetRequest struct {
	DatasetID string `json:"dataset_id"`
}

type InvalidateDatasetResponse struct {
	Invalidated bool `json:"invalidated"`
}

type ListCategoriesRequest struct{}

type CategoryInfo struct {
	Category query.Category `json:"category"`
	Intent   query.Intent   `json:"intent"`
}

type ListCategoriesResponse struct {
	Categories []CategoryInfo `json:"categories"`
}

func toLoadResponse(r *service.LoadResult) *LoadDatasetResponse {
	return &LoadDatasetResponse{
		DatasetID:   r.DatasetID,
		Name:        r.Name,
		Fingerprint: r.Fingerprint,
		Headers:     r.Headers,
		Rows:        r.Rows,
		HasDates:    r.HasDates,
		Warnings:    r.Warnings,
		ProfileUsed: r.ProfileUsed,
		Cached:      r.Cached,
		Suggested:   r.Suggested,
	}
}

func toProfile(p *repository.ColumnProfile) Profile {
	out := Profile{
		ID:              p.ID.String(),
		Fingerprint:     p.Fingerprint,
		Columns:         p.Columns(),
		Delimiter:       p.Delimiter,
		Encoding:        p.Encoding,
		ThousandsPolicy: p.ThousandsPolicy,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}
	if p.Name != nil {
		out.Name = *p.Name
	}
	return out
}

func toAnswer(a *service.Answer) *AnswerResponse {
	rows := a.Result.Rows
	if rows == nil {
		rows = []query.Row{}
	}
	result := a.Result
	result.Rows = rows
	return &AnswerResponse{
		Intent:    a.Intent,
		Result:    result,
		Text:      a.Text,
		Narrative: a.Narrative,
		Source:    string(a.Source),
	}
}
