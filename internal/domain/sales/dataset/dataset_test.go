package dataset

import (
	"reflect"
	"testing"
)

func TestDataset_Years(t *testing.T) {
	ds := &Dataset{Records: []Record{
		{HasDate: true, Year: 2024},
		{HasDate: false},
		{HasDate: true, Year: 2023},
		{HasDate: true, Year: 2024},
	}}

	if got, want := ds.Years(), []int{2024, 2023}; !reflect.DeepEqual(got, want) {
		t.Errorf("Years() = %v, want %v", got, want)
	}
	if got := ds.Len(); got != 4 {
		t.Errorf("Len() = %d, want 4", got)
	}
}

func TestDataset_NilSafe(t *testing.T) {
	var ds *Dataset
	if ds.Len() != 0 {
		t.Error("nil dataset should have no records")
	}
	if ds.Years() != nil {
		t.Error("nil dataset should have no years")
	}
}
