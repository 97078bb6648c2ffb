package types

import (
	"encoding/json"
	"fmt"
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestColumnMapping_OutputColumns(t *testing.T) {
	m := ColumnMapping{
		Regression:     []string{"reg_b", "reg_a"},
		Classification: []string{"clf_x"},
	}
	want := []string{"compound_id", "reg_b", "reg_a", "clf_x", "clf_x_bin"}
	if got := m.OutputColumns(); !reflect.DeepEqual(got, want) {
		t.Errorf("OutputColumns() = %v, want %v", got, want)
	}
}

func TestColumnMapping_Validate(t *testing.T) {
	dup := ColumnMapping{Regression: []string{"a"}, Classification: []string{"a"}}
	if err := dup.Validate(); err == nil {
		t.Error("expected error for task mapped under both kinds")
	}
	ok := ColumnMapping{Regression: []string{"a"}}
	if err := ok.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestColumnMapping_NormalizeEncodesEmptyArrays(t *testing.T) {
	data, err := json.Marshal(ColumnMapping{Regression: []string{"reg_a"}}.Normalize())
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	want := `{"regression":["reg_a"],"classification":[]}`
	if string(data) != want {
		t.Errorf("got %s, want %s", data, want)
	}
}

// TestProperty_ColumnMappingRoundTrip checks that encoding then decoding a
// mapping preserves the exact order of both task lists.
func TestProperty_ColumnMappingRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("JSON round trip preserves task order", prop.ForAll(
		func(nReg, nClf int, seed int64) bool {
			m := ColumnMapping{Regression: []string{}, Classification: []string{}}
			for i := 0; i < nReg; i++ {
				m.Regression = append(m.Regression, fmt.Sprintf("reg_%d_%d", seed%97, nReg-i))
			}
			for i := 0; i < nClf; i++ {
				m.Classification = append(m.Classification, fmt.Sprintf("clf_%d_%d", seed%89, (i*7)%(nClf+3)))
			}

			data, err := json.Marshal(m)
			if err != nil {
				return false
			}
			var decoded ColumnMapping
			if err := json.Unmarshal(data, &decoded); err != nil {
				return false
			}
			return reflect.DeepEqual(m, decoded)
		},
		gen.IntRange(0, 20),
		gen.IntRange(0, 20),
		gen.Int64(),
	))

	properties.TestingRun(t)
}
