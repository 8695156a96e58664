package output

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridml/netcase/pkg/application/dto"
)

func sampleResult() *dto.TrainingResult {
	return &dto.TrainingResult{
		RunID:       uuid.MustParse("7d444840-9dc0-11d1-b245-5ffdce74fad2"),
		BusCount:    2,
		BranchCount: 1,
		Train: []dto.TrainingSample{
			{Case: 0, Network: "twobus", Pattern: "Base", Factor: 0.5, Converged: true, Iterations: 3,
				Input: []float64{0, 0.25, 0, 0.1}, Output: []float64{1, 0.98, 0, -0.05}, BranchFlow: []float64{0.2512}},
			{Case: 1, Network: "twobus", Pattern: "Base", Factor: 1.0, Converged: true, Iterations: 3,
				Input: []float64{0, 0.5, 0, 0.2}, Output: []float64{1, 0.95, 0, -0.1}, BranchFlow: []float64{0.5049}},
		},
		Test: []dto.TrainingSample{
			{Case: 2, Network: "twobus", Pattern: "Base", Factor: 1.3, Converged: false, Iterations: 20, Mismatch: 0.01,
				Input: []float64{0, 0.65, 0, 0.26}, Output: []float64{1, 0.9, 0, -0.2}, BranchFlow: []float64{0.66}},
		},
	}
}

func TestGenerate_Text(t *testing.T) {
	var buf bytes.Buffer
	err := Generate(sampleResult(), Config{Format: "text", Verbose: true, Writer: &buf})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "Run ID: 7d444840-9dc0-11d1-b245-5ffdce74fad2")
	assert.Contains(t, out, "Train Cases: 2")
	assert.Contains(t, out, "Not Converged: 1")
	assert.Contains(t, out, "Base")
	assert.Contains(t, out, "Features (2x4)")
}

func TestGenerate_JSON(t *testing.T) {
	dir := t.TempDir()
	err := Generate(sampleResult(), Config{Format: "json", OutputDir: dir, Writer: &bytes.Buffer{}})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "training_data.json"))
	require.NoError(t, err)
	var decoded dto.TrainingResult
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, sampleResult().RunID, decoded.RunID)
	assert.Len(t, decoded.Train, 2)
	assert.Equal(t, 0.5049, decoded.Train[1].BranchFlow[0])
}

func TestGenerate_JSON_DivergedSample(t *testing.T) {
	result := sampleResult()
	diverged := &result.Test[0]
	diverged.Mismatch = math.NaN()
	diverged.Output[1] = math.NaN()
	diverged.BranchFlow[0] = math.Inf(1)

	var buf bytes.Buffer
	require.NoError(t, Generate(result, Config{Format: "json", Writer: &buf}))

	var decoded struct {
		Train []map[string]any
		Test  []map[string]any
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded.Test, 1)
	sample := decoded.Test[0]
	assert.Nil(t, sample["Mismatch"])
	assert.Equal(t, []any{1.0, nil, 0.0, -0.2}, sample["Output"])
	assert.Equal(t, []any{nil}, sample["BranchFlow"])
	assert.Equal(t, 1.3, sample["Factor"])
	assert.Equal(t, false, sample["Converged"])
	assert.Equal(t, 0.0, decoded.Train[0]["Mismatch"])
}

func TestGenerate_CSV(t *testing.T) {
	dir := t.TempDir()
	err := Generate(sampleResult(), Config{Format: "csv", OutputDir: dir, Precision: 3})
	require.NoError(t, err)

	f, err := os.Open(filepath.Join(dir, "train.csv"))
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	require.Len(t, rows, 3)
	assert.Equal(t, []string{
		"case", "network", "pattern", "factor", "converged", "iterations", "mismatch",
		"p_0", "p_1", "q_0", "q_1", "vmag_0", "vmag_1", "vang_0", "vang_1", "flow_0",
	}, rows[0])
	assert.Equal(t, []string{
		"0", "twobus", "Base", "0.500", "true", "3", "0.000",
		"0.000", "0.250", "0.000", "0.100", "1.000", "0.980", "0.000", "-0.050", "0.251",
	}, rows[1])

	_, err = os.Stat(filepath.Join(dir, "test.csv"))
	assert.NoError(t, err)
}

func TestGenerate_Errors(t *testing.T) {
	assert.ErrorContains(t, Generate(sampleResult(), Config{Format: "xml"}), "unsupported output format")
	assert.ErrorContains(t, Generate(sampleResult(), Config{Format: "csv"}), "output directory required")
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "0.333333", FormatValue(1.0/3, 6))
	assert.Equal(t, "-1.50", FormatValue(-1.5, 2))
	assert.Equal(t, "NaN", FormatValue(math.NaN(), 6))
	assert.Equal(t, "+Inf", FormatValue(math.Inf(1), 6))
}
