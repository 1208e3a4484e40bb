package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/sales-insight/internal/domain/common"
	"github.com/FACorreiaa/sales-insight/internal/domain/sales/assistant"
	"github.com/FACorreiaa/sales-insight/internal/domain/sales/cache"
	"github.com/FACorreiaa/sales-insight/internal/domain/sales/interpret"
	"github.com/FACorreiaa/sales-insight/internal/domain/sales/loader"
	"github.com/FACorreiaa/sales-insight/internal/domain/sales/query"
	"github.com/FACorreiaa/sales-insight/internal/domain/sales/repository"
)

// MockAssistant is a mock implementation of IntentAssistant
type MockAssistant struct {
	mock.Mock
}

func (m *MockAssistant) InterpretIntent(ctx context.Context, question string, summary interpret.Summary) (query.Intent, error) {
	args := m.Called(ctx, question, summary)
	return args.Get(0).(query.Intent), args.Error(1)
}

func (m *MockAssistant) Narrate(ctx context.Context, question, answer string, rows []query.Row) (string, error) {
	args := m.Called(ctx, question, answer, rows)
	return args.String(0), args.Error(1)
}

const export = "Vendedor;Marca;Razón Social;Fecha Emisión;Total;Costo;Cantidad\n" +
	"A;ACME;C1;15/03/2024;1.000;600;1\n" +
	"A;BETA;C2;16/03/2024;500;500;2\n" +
	"B;ACME;C1;02/04/2024;2.000;1.000;3\n"

func setupSalesServiceTest(t *testing.T, asst IntentAssistant, narrate bool) (*SalesService, *repository.MemoryProfileRepository) {
	t.Helper()
	datasets, err := cache.NewDatasetCache(4)
	require.NoError(t, err)
	repo := repository.NewMemoryProfileRepository()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	opts := Options{Load: loader.DefaultOptions(), MaxBytes: 1 << 20, Narrate: narrate}
	opts.Load.Encoding = loader.EncodingUTF8
	return NewSalesService(repo, datasets, asst, nil, opts, logger), repo
}

func TestSalesService_LoadDatasetCachesByContent(t *testing.T) {
	svc, _ := setupSalesServiceTest(t, nil, false)
	ctx := context.Background()

	first, err := svc.LoadDataset(ctx, "ventas.csv", []byte(export), nil)
	require.NoError(t, err)
	assert.Equal(t, 3, first.Rows)
	assert.False(t, first.Cached)
	assert.False(t, first.ProfileUsed)
	assert.Equal(t, "Total", first.Suggested.Sale)

	second, err := svc.LoadDataset(ctx, "ventas.csv", []byte(export), nil)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.DatasetID, second.DatasetID)

	assert.True(t, svc.Invalidate(first.DatasetID))
	_, err = svc.Query(ctx, first.DatasetID, query.Intent{})
	assert.ErrorIs(t, err, common.ErrDatasetNotFound)
}

func TestSalesService_LoadDatasetUsesSavedProfile(t *testing.T) {
	svc, _ := setupSalesServiceTest(t, nil, false)
	ctx := context.Background()
	data := []byte("Rep;Net;Purchase\nAna;1.200;100\n")

	_, err := svc.LoadDataset(ctx, "odd.csv", data, nil)
	require.ErrorIs(t, err, loader.ErrMissingColumn)

	headers, err := loader.Headers(data, loader.DefaultOptions())
	require.NoError(t, err)
	_, err = svc.SaveProfile(ctx, ProfileRequest{
		Fingerprint:     loader.Fingerprint(headers),
		Name:            "odd export",
		Columns:         loader.ColumnMapping{Sale: "Net", Cost: "Purchase", Seller: "Rep"},
		ThousandsPolicy: "dot_decimal",
	})
	require.NoError(t, err)

	res, err := svc.LoadDataset(ctx, "odd.csv", data, nil)
	require.NoError(t, err)
	assert.True(t, res.ProfileUsed)

	answer, err := svc.Query(ctx, res.DatasetID, query.Intent{Metric: query.MetricSales})
	require.NoError(t, err)
	require.Len(t, answer.Result.Rows, 1)
	assert.InDelta(t, 1.2, answer.Result.Rows[0].Sales, 1e-9)
}

func TestSalesService_LoadDatasetRejectsLargeFiles(t *testing.T) {
	svc, _ := setupSalesServiceTest(t, nil, false)
	svc.opts.MaxBytes = 10

	_, err := svc.LoadDataset(context.Background(), "big.csv", []byte(export), nil)
	assert.ErrorIs(t, err, common.ErrFileTooLarge)
	assert.ErrorIs(t, err, common.ErrBadRequest)
}

func TestSalesService_SaveProfileValidation(t *testing.T) {
	svc, _ := setupSalesServiceTest(t, nil, false)
	ctx := context.Background()

	_, err := svc.SaveProfile(ctx, ProfileRequest{Columns: loader.ColumnMapping{Sale: "Total"}})
	assert.ErrorIs(t, err, common.ErrBadRequest)

	_, err = svc.SaveProfile(ctx, ProfileRequest{Fingerprint: "fp"})
	assert.ErrorIs(t, err, common.ErrBadRequest)

	_, err = svc.SaveProfile(ctx, ProfileRequest{Fingerprint: "fp", Columns: loader.ColumnMapping{Sale: "Total"}, ThousandsPolicy: "weird"})
	assert.ErrorIs(t, err, common.ErrBadRequest)

	profile, err := svc.SaveProfile(ctx, ProfileRequest{Fingerprint: "fp", Columns: loader.ColumnMapping{Sale: "Total"}, Delimiter: ","})
	require.NoError(t, err)
	assert.Equal(t, ",", profile.Delimiter)

	profiles, err := svc.ListProfiles(ctx)
	require.NoError(t, err)
	assert.Len(t, profiles, 1)
	require.NoError(t, svc.DeleteProfile(ctx, "fp"))
	assert.ErrorIs(t, svc.DeleteProfile(ctx, "fp"), common.ErrNotFound)
}

func TestSalesService_QueryBySeller(t *testing.T) {
	svc, _ := setupSalesServiceTest(t, nil, false)
	ctx := context.Background()
	res, err := svc.LoadDataset(ctx, "ventas.csv", []byte(export), nil)
	require.NoError(t, err)

	answer, err := svc.Query(ctx, res.DatasetID, query.Intent{
		Metric: query.MetricSales, GroupBy: query.GroupSeller,
		Sort: query.Sort{By: query.MetricSales, Order: query.OrderDesc}, Limit: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, SourceStructured, answer.Source)
	require.Len(t, answer.Result.Rows, 2)
	assert.Equal(t, "B", answer.Result.Rows[0].Group)
	assert.Equal(t, "A", answer.Result.Rows[1].Group)
	assert.InDelta(t, 26.67, answer.Result.Rows[1].MarginPct, 0.005)

	empty, err := svc.Query(ctx, res.DatasetID, query.Intent{Filters: query.Filters{Month: query.IntPtr(11)}})
	require.NoError(t, err)
	assert.True(t, empty.Result.IsEmpty())
	assert.Equal(t, query.NoDataMessage, empty.Text)
}

func TestSalesService_AskLocalMatchSkipsAssistant(t *testing.T) {
	asst := new(MockAssistant)
	svc, _ := setupSalesServiceTest(t, asst, true)
	ctx := context.Background()
	res, err := svc.LoadDataset(ctx, "ventas.csv", []byte(export), nil)
	require.NoError(t, err)

	answer, err := svc.Ask(ctx, res.DatasetID, "ventas por vendedor en marzo")
	require.NoError(t, err)
	assert.Equal(t, SourceLocal, answer.Source)
	require.Len(t, answer.Result.Rows, 1)
	assert.Equal(t, "A", answer.Result.Rows[0].Group)
	asst.AssertNotCalled(t, "InterpretIntent", mock.Anything, mock.Anything, mock.Anything)
}

func TestSalesService_AskUsesAssistant(t *testing.T) {
	asst := new(MockAssistant)
	svc, _ := setupSalesServiceTest(t, asst, true)
	ctx := context.Background()
	res, err := svc.LoadDataset(ctx, "ventas.csv", []byte(export), nil)
	require.NoError(t, err)

	question := "which client bought the most units?"
	asst.On("InterpretIntent", mock.Anything, question, mock.AnythingOfType("interpret.Summary")).
		Return(query.Intent{Metric: query.MetricUnits, GroupBy: query.GroupClient}, nil).Once()
	asst.On("Narrate", mock.Anything, question, mock.Anything, mock.Anything).
		Return("", errors.New("quota")).Once()

	answer, err := svc.Ask(ctx, res.DatasetID, question)
	require.NoError(t, err)
	assert.Equal(t, SourceAssistant, answer.Source)
	assert.Equal(t, "C1", answer.Result.Rows[0].Group)
	assert.Contains(t, answer.Text, "C1")
	assert.Empty(t, answer.Narrative, "narration failure keeps the computed answer")
	asst.AssertExpectations(t)
}

func TestSalesService_AskUncoveredQuestionsReachAssistant(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		question string
		intent   query.Intent
		group    string
		sales    float64
	}{
		{
			question: "Which seller had the lowest sales?",
			intent:   query.Intent{Metric: query.MetricSales, GroupBy: query.GroupSeller, Sort: query.Sort{Order: query.OrderAsc}},
			group:    "A",
			sales:    1500,
		},
		{
			question: "ventas totales del cliente C2",
			intent:   query.Intent{Metric: query.MetricSales, Filters: query.Filters{Client: "C2"}},
			group:    "",
			sales:    500,
		},
	}

	for _, tt := range tests {
		t.Run(tt.question, func(t *testing.T) {
			asst := new(MockAssistant)
			svc, _ := setupSalesServiceTest(t, asst, false)
			res, err := svc.LoadDataset(ctx, "ventas.csv", []byte(export), nil)
			require.NoError(t, err)

			asst.On("InterpretIntent", mock.Anything, tt.question, mock.AnythingOfType("interpret.Summary")).
				Return(tt.intent, nil).Once()

			answer, err := svc.Ask(ctx, res.DatasetID, tt.question)
			require.NoError(t, err)
			assert.Equal(t, SourceAssistant, answer.Source)
			require.NotEmpty(t, answer.Result.Rows)
			assert.Equal(t, tt.group, answer.Result.Rows[0].Group)
			assert.InDelta(t, tt.sales, answer.Result.Rows[0].Sales, 1e-9)
			asst.AssertExpectations(t)
		})
	}
}

func TestSalesService_AskErrors(t *testing.T) {
	ctx := context.Background()

	noAssistant, _ := setupSalesServiceTest(t, nil, false)
	res, err := noAssistant.LoadDataset(ctx, "ventas.csv", []byte(export), nil)
	require.NoError(t, err)
	_, err = noAssistant.Ask(ctx, res.DatasetID, "tell me a story")
	assert.ErrorIs(t, err, assistant.ErrUnavailable)

	_, err = noAssistant.Ask(ctx, res.DatasetID, "   ")
	assert.ErrorIs(t, err, common.ErrBadRequest)

	_, err = noAssistant.Ask(ctx, "missing", "ventas")
	assert.ErrorIs(t, err, common.ErrDatasetNotFound)

	asst := new(MockAssistant)
	svc, _ := setupSalesServiceTest(t, asst, false)
	res, err = svc.LoadDataset(ctx, "ventas.csv", []byte(export), nil)
	require.NoError(t, err)
	asst.On("InterpretIntent", mock.Anything, "tell me a story", mock.Anything).
		Return(query.Intent{}, interpret.ErrIntentUnparseable).Once()

	_, err = svc.Ask(ctx, res.DatasetID, "tell me a story")
	assert.ErrorIs(t, err, interpret.ErrIntentUnparseable)
	assert.NotErrorIs(t, err, assistant.ErrUnavailable)
}
