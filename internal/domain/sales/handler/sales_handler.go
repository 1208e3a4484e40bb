// Package handler implements the SalesService Connect RPC handlers.
package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"connectrpc.com/connect"

	"github.com/FACorreiaa/sales-insight/internal/domain/common"
	"github.com/FACorreiaa/sales-insight/internal/domain/sales/assistant"
	"github.com/FACorreiaa/sales-insight/internal/domain/sales/interpret"
	"github.com/FACorreiaa/sales-insight/internal/domain/sales/loader"
	"github.com/FACorreiaa/sales-insight/internal/domain/sales/query"
	"github.com/FACorreiaa/sales-insight/internal/domain/sales/service"
)

const SalesServiceName = "sales.v1.SalesService"

const (
	LoadDatasetProcedure       = "/" + SalesServiceName + "/LoadDataset"
	SaveProfileProcedure       = "/" + SalesServiceName + "/SaveProfile"
	ListProfilesProcedure      = "/" + SalesServiceName + "/ListProfiles"
	DeleteProfileProcedure     = "/" + SalesServiceName + "/DeleteProfile"
	QueryProcedure             = "/" + SalesServiceName + "/Query"
	AskProcedure               = "/" + SalesServiceName + "/Ask"
	InvalidateDatasetProcedure = "/" + SalesServiceName + "/InvalidateDataset"
	ListCategoriesProcedure    = "/" + SalesServiceName + "/ListCategories"
)

// SalesHandler implements the SalesService Connect handlers.
type SalesHandler struct {
	salesSvc *service.SalesService
}

// NewSalesHandler constructs a new handler.
func NewSalesHandler(salesSvc *service.SalesService) *SalesHandler {
	return &SalesHandler{salesSvc: salesSvc}
}

// NewSalesServiceHandler builds an HTTP handler serving every SalesService
// procedure, returning the path prefix to mount it on.
func NewSalesServiceHandler(h *SalesHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(jsonCodec{})}, opts...)

	mux := http.NewServeMux()
	mux.Handle(LoadDatasetProcedure, connect.NewUnaryHandler(LoadDatasetProcedure, h.LoadDataset, opts...))
	mux.Handle(SaveProfileProcedure, connect.NewUnaryHandler(SaveProfileProcedure, h.SaveProfile, opts...))
	mux.Handle(ListProfilesProcedure, connect.NewUnaryHandler(ListProfilesProcedure, h.ListProfiles, opts...))
	mux.Handle(DeleteProfileProcedure, connect.NewUnaryHandler(DeleteProfileProcedure, h.DeleteProfile, opts...))
	mux.Handle(QueryProcedure, connect.NewUnaryHandler(QueryProcedure, h.Query, opts...))
	mux.Handle(AskProcedure, connect.NewUnaryHandler(AskProcedure, h.Ask, opts...))
	mux.Handle(InvalidateDatasetProcedure, connect.NewUnaryHandler(InvalidateDatasetProcedure, h.InvalidateDataset, opts...))
	mux.Handle(ListCategoriesProcedure, connect.NewUnaryHandler(ListCategoriesProcedure, h.ListCategories, opts...))
	return "/" + SalesServiceName + "/", mux
}

// LoadDataset reads an uploaded export into the dataset cache.
func (h *SalesHandler) LoadDataset(
	ctx context.Context,
	req *connect.Request[LoadDatasetRequest],
) (*connect.Response[LoadDatasetResponse], error) {
	if len(req.Msg.Data) == 0 {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("data is required"))
	}

	result, err := h.salesSvc.LoadDataset(ctx, req.Msg.Name, req.Msg.Data, req.Msg.Columns)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(toLoadResponse(result)), nil
}

// SaveProfile stores the column profile for a header fingerprint.
func (h *SalesHandler) SaveProfile(
	ctx context.Context,
	req *connect.Request[SaveProfileRequest],
) (*connect.Response[Profile], error) {
	profile, err := h.salesSvc.SaveProfile(ctx, service.ProfileRequest{
		Fingerprint:     req.Msg.Fingerprint,
		Name:            req.Msg.Name,
		Columns:         req.Msg.Columns,
		Delimiter:       req.Msg.Delimiter,
		Encoding:        req.Msg.Encoding,
		ThousandsPolicy: req.Msg.ThousandsPolicy,
	})
	if err != nil {
		return nil, toConnectError(err)
	}
	out := toProfile(profile)
	return connect.NewResponse(&out), nil
}

// ListProfiles returns the stored column profiles.
func (h *SalesHandler) ListProfiles(
	ctx context.Context,
	_ *connect.Request[ListProfilesRequest],
) (*connect.Response[ListProfilesResponse], error) {
	profiles, err := h.salesSvc.ListProfiles(ctx)
	if err != nil {
		return nil, toConnectError(err)
	}
	out := &ListProfilesResponse{Profiles: make([]Profile, 0, len(profiles))}
	for _, p := range profiles {
		out.Profiles = append(out.Profiles, toProfile(p))
	}
	return connect.NewResponse(out), nil
}

// DeleteProfile removes the profile for a fingerprint.
func (h *SalesHandler) DeleteProfile(
	ctx context.Context,
	req *connect.Request[DeleteProfileRequest],
) (*connect.Response[DeleteProfileResponse], error) {
	if strings.TrimSpace(req.Msg.Fingerprint) == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("fingerprint is required"))
	}
	if err := h.salesSvc.DeleteProfile(ctx, req.Msg.Fingerprint); err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&DeleteProfileResponse{}), nil
}

// Query executes a structured intent or a catalog category.
func (h *SalesHandler) Query(
	ctx context.Context,
	req *connect.Request[QueryRequest],
) (*connect.Response[AnswerResponse], error) {
	intent := req.Msg.Intent
	if req.Msg.Category != "" {
		tmpl, ok := query.Lookup(req.Msg.Category)
		if !ok {
			return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("unknown category %q", req.Msg.Category))
		}
		tmpl.Filters = intent.Filters
		if intent.Limit > 0 {
			tmpl.Limit = intent.Limit
		}
		intent = tmpl
	}

	answer, err := h.salesSvc.Query(ctx, req.Msg.DatasetID, intent)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(toAnswer(answer)), nil
}

// Ask answers a free-text question.
func (h *SalesHandler) Ask(
	ctx context.Context,
	req *connect.Request[AskRequest],
) (*connect.Response[AnswerResponse], error) {
	answer, err := h.salesSvc.Ask(ctx, req.Msg.DatasetID, req.Msg.Question)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(toAnswer(answer)), nil
}

// InvalidateDataset drops a dataset from the cache.
func (h *SalesHandler) InvalidateDataset(
	_ context.Context,
	req *connect.Request[InvalidateDatasetRequest],
) (*connect.Response[InvalidateDatasetResponse], error) {
	return connect.NewResponse(&InvalidateDatasetResponse{
		Invalidated: h.salesSvc.Invalidate(req.Msg.DatasetID),
	}), nil
}

// ListCategories describes the questions answered without the assistant.
func (h *SalesHandler) ListCategories(
	_ context.Context,
	_ *connect.Request[ListCategoriesRequest],
) (*connect.Response[ListCategoriesResponse], error) {
	categories := query.Categories()
	out := &ListCategoriesResponse{Categories: make([]CategoryInfo, 0, len(categories))}
	for _, c := range categories {
		intent, _ := query.Lookup(c)
		out.Categories = append(out.Categories, CategoryInfo{Category: c, Intent: intent})
	}
	return connect.NewResponse(out), nil
}

func toConnectError(err error) error {
	var connectErr *connect.Error
	if errors.As(err, &connectErr) {
		return err
	}

	code := connect.CodeInternal
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		code = connect.CodeDeadlineExceeded
	case errors.Is(err, context.Canceled):
		code = connect.CodeCanceled
	case errors.Is(err, interpret.ErrIntentUnparseable),
		errors.Is(err, common.ErrBadRequest),
		errors.Is(err, loader.ErrEmptyFile),
		errors.Is(err, loader.ErrNoHeader),
		errors.Is(err, loader.ErrMissingColumn),
		errors.Is(err, loader.ErrUnsupportedEncoding):
		code = connect.CodeInvalidArgument
	case errors.Is(err, common.ErrNotFound):
		code = connect.CodeNotFound
	case errors.Is(err, assistant.ErrUnauthorized):
		code = connect.CodeUnauthenticated
	case errors.Is(err, assistant.ErrUnavailable):
		code = connect.CodeUnavailable
	}
	return connect.NewError(code, err)
}
