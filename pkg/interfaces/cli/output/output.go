package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/mat"

	"github.com/gridml/netcase/pkg/application/dto"
	"github.com/gridml/netcase/pkg/application/services/traindata"
)

// Config holds configuration for output generation
type Config struct {
	Format    string
	OutputDir string
	Verbose   bool
	Elapsed   time.Duration
	// Precision is the number of decimals written per value
	Precision int32
	// Writer receives console output, os.Stdout when nil
	Writer io.Writer
}

func (c Config) writer() io.Writer {
	if c.Writer == nil {
		return os.Stdout
	}
	return c.Writer
}

func (c Config) precision() int32 {
	if c.Precision <= 0 {
		return 6
	}
	return c.Precision
}

// Generate creates output in the specified format
func Generate(result *dto.TrainingResult, config Config) error {
	switch config.Format {
	case "text":
		return generateTextOutput(result, config)
	case "json":
		return generateJSONOutput(result, config)
	case "csv":
		return generateCSVOutput(result, config)
	default:
		return fmt.Errorf("unsupported output format: %s", config.Format)
	}
}

// generateTextOutput prints a run summary and a preview of the feature matrix
func generateTextOutput(result *dto.TrainingResult, config Config) error {
	w := config.writer()
	summary := traindata.Summarize(result, config.Elapsed)

	fmt.Fprintf(w, "Training Data Summary\n")
	fmt.Fprintf(w, "=====================\n\n")
	fmt.Fprintf(w, "Run ID: %s\n", summary.RunID)
	fmt.Fprintf(w, "Buses: %d  Branches: %d\n", result.BusCount, result.BranchCount)
	fmt.Fprintf(w, "Train Cases: %d\n", summary.TrainCases)
	fmt.Fprintf(w, "Test Cases: %d\n", summary.TestCases)
	fmt.Fprintf(w, "Not Converged: %d\n", summary.NotConverged)
	fmt.Fprintf(w, "Elapsed: %v\n\n", summary.Elapsed)

	if len(summary.Patterns) > 0 {
		names := make([]string, 0, len(summary.Patterns))
		for name := range summary.Patterns {
			names = append(names, name)
		}
		sort.Strings(names)

		fmt.Fprintf(w, "%-20s %-8s\n", "Pattern", "Cases")
		fmt.Fprintf(w, "%-20s %-8s\n", "--------------------", "--------")
		for _, name := range names {
			label := name
			if label == "" {
				label = "(none)"
			}
			fmt.Fprintf(w, "%-20s %-8d\n", label, summary.Patterns[name])
		}
		fmt.Fprintln(w)
	}

	set, err := traindata.NewSampleSet(result.RunID, result.BusCount, result.BranchCount, result.Train)
	if err != nil {
		return err
	}
	if features := set.Features(); features != nil && config.Verbose {
		rows, cols := features.Dims()
		preview := features.Slice(0, min(rows, 3), 0, cols)
		fmt.Fprintf(w, "Features (%dx%d), first rows:\n", rows, cols)
		fmt.Fprintf(w, "%.4v\n\n", mat.Formatted(preview, mat.Prefix(""), mat.Squeeze()))
	}
	return nil
}

// generateJSONOutput writes the full result as JSON
func generateJSONOutput(result *dto.TrainingResult, config Config) error {
	jsonData, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if config.OutputDir == "" {
		fmt.Fprintln(config.writer(), string(jsonData))
		return nil
	}

	if err := os.MkdirAll(config.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	filename := filepath.Join(config.OutputDir, "training_data.json")
	if err := os.WriteFile(filename, jsonData, 0644); err != nil {
		return fmt.Errorf("failed to write JSON file: %w", err)
	}
	if config.Verbose {
		fmt.Fprintf(config.writer(), "JSON results saved to: %s\n", filename)
	}
	return nil
}

// generateCSVOutput writes train.csv and test.csv, one sample per row
func generateCSVOutput(result *dto.TrainingResult, config Config) error {
	if config.OutputDir == "" {
		return fmt.Errorf("output directory required for CSV format")
	}
	if err := os.MkdirAll(config.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	trainFile := filepath.Join(config.OutputDir, "train.csv")
	if err := writeSamplesCSV(trainFile, result, result.Train, config.precision()); err != nil {
		return fmt.Errorf("failed to write train CSV: %w", err)
	}
	testFile := filepath.Join(config.OutputDir, "test.csv")
	if err := writeSamplesCSV(testFile, result, result.Test, config.precision()); err != nil {
		return fmt.Errorf("failed to write test CSV: %w", err)
	}

	if config.Verbose {
		fmt.Fprintf(config.writer(), "CSV results saved to:\n")
		fmt.Fprintf(config.writer(), "  Train: %s\n", trainFile)
		fmt.Fprintf(config.writer(), "  Test: %s\n", testFile)
	}
	return nil
}

func writeSamplesCSV(filename string, result *dto.TrainingResult, samples []dto.TrainingSample, precision int32) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write(CSVHeader(result.BusCount, result.BranchCount)); err != nil {
		return err
	}
	for _, s := range samples {
		if err := w.Write(CSVRecord(s, precision)); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return file.Close()
}

// CSVHeader returns the column names of the sample CSV files
func CSVHeader(buses, branches int) []string {
	header := []string{"case", "network", "pattern", "factor", "converged", "iterations", "mismatch"}
	for _, prefix := range []string{"p", "q"} {
		for i := 0; i < buses; i++ {
			header = append(header, fmt.Sprintf("%s_%d", prefix, i))
		}
	}
	for _, prefix := range []string{"vmag", "vang"} {
		for i := 0; i < buses; i++ {
			header = append(header, fmt.Sprintf("%s_%d", prefix, i))
		}
	}
	for i := 0; i < branches; i++ {
		header = append(header, fmt.Sprintf("flow_%d", i))
	}
	return header
}

// CSVRecord formats one sample in CSVHeader column order
func CSVRecord(s dto.TrainingSample, precision int32) []string {
	record := []string{
		strconv.Itoa(s.Case),
		s.Network,
		s.Pattern,
		FormatValue(s.Factor, precision),
		strconv.FormatBool(s.Converged),
		strconv.Itoa(s.Iterations),
		FormatValue(s.Mismatch, precision),
	}
	for _, list := range [][]float64{s.Input, s.Output, s.BranchFlow} {
		for _, v := range list {
			record = append(record, FormatValue(v, precision))
		}
	}
	return record
}

// FormatValue renders a value with a fixed number of decimals
func FormatValue(v float64, precision int32) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return decimal.NewFromFloat(v).StringFixed(precision)
}
