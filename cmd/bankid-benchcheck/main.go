// Command bankid-benchcheck compares two `go test -bench` outputs and fails
// when a tracked goBankID benchmark regressed past the threshold.
//
//	go test -run '^$' -bench . -count 5 ./... > new.txt
//	bankid-benchcheck -baseline old.txt -candidate new.txt
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
)

const defaultThreshold = 0.30

var trackedMetrics = map[string][]string{
	"BenchmarkCollectPending":  {"ns/op", "allocs/op"},
	"BenchmarkCollectTerminal": {"ns/op", "allocs/op"},
	"BenchmarkValidateSession": {"ns/op", "allocs/op"},
	"BenchmarkRender":          {"ns/op"},
}

// sampleSet holds benchmark -> unit -> samples.
type sampleSet map[string]map[string][]float64

type comparison struct {
	Benchmark string
	Metric    string
	Baseline  float64
	Candidate float64
	Delta     float64
}

func main() {
	var (
		baselinePath  string
		candidatePath string
		threshold     float64
	)

	flag.StringVar(&baselinePath, "baseline", "", "path to baseline benchmark output")
	flag.StringVar(&candidatePath, "candidate", "", "path to candidate benchmark output")
	flag.Float64Var(&threshold, "threshold", defaultThreshold, "maximum allowed regression ratio (0.30 = +30%)")
	flag.Parse()

	if baselinePath == "" || candidatePath == "" {
		fmt.Fprintln(os.Stderr, "-baseline and -candidate are required")
		os.Exit(2)
	}
	if threshold < 0 {
		fmt.Fprintln(os.Stderr, "-threshold must be >= 0")
		os.Exit(2)
	}

	baseline, err := parseBenchmarkFile(baselinePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "parse baseline: %v\n", err)
		os.Exit(1)
	}
	candidate, err := parseBenchmarkFile(candidatePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "parse candidate: %v\n", err)
		os.Exit(1)
	}

	rows, failures := compare(baseline, candidate, threshold)

	fmt.Println("benchmark metric baseline candidate delta")
	for _, row := range rows {
		fmt.Printf("%s %s %.3f %.3f %+0.2f%%\n", row.Benchmark, row.Metric, row.Baseline, row.Candidate, row.Delta*100)
	}

	if len(failures) > 0 {
		fmt.Fprintln(os.Stderr, "benchmark regression threshold exceeded:")
		for _, failure := range failures {
			fmt.Fprintf(os.Stderr, "  - %s\n", failure)
		}
		os.Exit(1)
	}
}

// compare reports one row per tracked metric present in both sets, in a
// stable order, plus a failure line for every missing or regressed metric.
func compare(baseline, candidate sampleSet, threshold float64) ([]comparison, []string) {
	names := make([]string, 0, len(trackedMetrics))
	for name := range trackedMetrics {
		names = append(names, name)
	}
	sort.Strings(names)

	var (
		rows     []comparison
		failures []string
	)
	for _, benchmark := range names {
		for _, metric := range trackedMetrics[benchmark] {
			baseSamples := baseline[benchmark][metric]
			candidateSamples := candidate[benchmark][metric]
			if len(baseSamples) == 0 || len(candidateSamples) == 0 {
				failures = append(failures, fmt.Sprintf("missing samples for %s %s", benchmark, metric))
				continue
			}

			baseMedian := median(baseSamples)
			candidateMedian := median(candidateSamples)

			var delta float64
			switch {
			case baseMedian > 0:
				delta = (candidateMedian - baseMedian) / baseMedian
			case candidateMedian > 0:
				// 0 allocs/op growing to anything is a regression.
				failures = append(failures, fmt.Sprintf("%s %s grew from zero to %.3f", benchmark, metric, candidateMedian))
			}

			rows = append(rows, comparison{
				Benchmark: benchmark,
				Metric:    metric,
				Baseline:  baseMedian,
				Candidate: candidateMedian,
				Delta:     delta,
			})
			if delta > threshold {
				failures = append(failures, fmt.Sprintf("%s %s regressed by %+0.2f%% (limit %+0.2f%%)", benchmark, metric, delta*100, threshold*100))
			}
		}
	}

	return rows, failures
}

func parseBenchmarkFile(path string) (sampleSet, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return parseBenchmarks(file)
}

func parseBenchmarks(r io.Reader) (sampleSet, error) {
	samples := sampleSet{}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "Benchmark") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 4 {
			continue
		}

		name := normalizeBenchmarkName(fields[0])
		if _, ok := trackedMetrics[name]; !ok {
			continue
		}

		if _, ok := samples[name]; !ok {
			samples[name] = map[string][]float64{}
		}

		// fields[1] is the iteration count; value/unit pairs follow.
		for i := 2; i+1 < len(fields); i += 2 {
			value, err := strconv.ParseFloat(fields[i], 64)
			if err != nil {
				continue
			}
			unit := fields[i+1]
			samples[name][unit] = append(samples[name][unit], value)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return samples, nil
}

// normalizeBenchmarkName strips the -GOMAXPROCS suffix.
func normalizeBenchmarkName(raw string) string {
	if idx := strings.LastIndexByte(raw, '-'); idx > 0 {
		if _, err := strconv.Atoi(raw[idx+1:]); err == nil {
			return raw[:idx]
		}
	}
	return raw
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	copied := make([]float64, len(values))
	copy(copied, values)
	sort.Float64s(copied)

	mid := len(copied) / 2
	if len(copied)%2 == 1 {
		return copied[mid]
	}
	return (copied[mid-1] + copied[mid]) / 2
}
