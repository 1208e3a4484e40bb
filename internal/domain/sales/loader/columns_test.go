package loader

import (
	"testing"
)

func TestSuggestColumns(t *testing.T) {
	tests := []struct {
		name     string
		headers  []string
		expected ColumnMapping
	}{
		{
			name:    "spanish export",
			headers: []string{"Fecha Emisión", "Nro Comprobante", "Razón Social", "Vendedor", "Marca", "Rubro", "Cantidad", "Total Costo", "Total"},
			expected: ColumnMapping{
				Sale:     "Total",
				Cost:     "Total Costo",
				Quantity: "Cantidad",
				Seller:   "Vendedor",
				Brand:    "Marca",
				Category: "Rubro",
				Client:   "Razón Social",
				Date:     "Fecha Emisión",
			},
		},
		{
			name:    "english export",
			headers: []string{"Date", "Salesperson", "Customer", "Brand", "Category", "Qty", "Amount", "Cost"},
			expected: ColumnMapping{
				Sale:     "Amount",
				Cost:     "Cost",
				Quantity: "Qty",
				Seller:   "Salesperson",
				Brand:    "Brand",
				Category: "Category",
				Client:   "Customer",
				Date:     "Date",
			},
		},
		{
			name:     "nothing recognizable",
			headers:  []string{"a", "b"},
			expected: ColumnMapping{},
		},
	}

	for _, tc := range tests {
		got := SuggestColumns(tc.headers)
		if got != tc.expected {
			t.Errorf("%s: SuggestColumns() = %+v, want %+v", tc.name, got, tc.expected)
		}
	}
}

func TestResolveColumns_ConfiguredNamesWin(t *testing.T) {
	headers := []string{"Importe", "Total"}
	idx := resolveColumns(headers, ColumnMapping{Sale: "importe"})
	if idx[roleSale] != 0 {
		t.Fatalf("expected sale at 0, got %d", idx[roleSale])
	}
}

func TestColumnMapping_Merge(t *testing.T) {
	got := ColumnMapping{Sale: "Neto"}.Merge(DefaultColumns())
	if got.Sale != "Neto" || got.Cost != "Costo" || got.Client != "Razón Social" {
		t.Fatalf("unexpected merge result: %+v", got)
	}
}

func TestFingerprint(t *testing.T) {
	a := Fingerprint([]string{" Razón Social ", "Total"})
	b := Fingerprint([]string{"razon social", "TOTAL"})
	if a != b {
		t.Errorf("expected equal fingerprints, got %s and %s", a, b)
	}
	if a == Fingerprint([]string{"Total", "Razón Social"}) {
		t.Error("expected header order to change the fingerprint")
	}
	if len(a) != 64 {
		t.Errorf("expected 64-char hex fingerprint, got %d", len(a))
	}
}
