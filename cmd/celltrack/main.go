// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2025.9.21
//

package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	m "github.com/cellgeo/celltrack"
)

func main() {
	args, err := parseArgs()
	if err != nil {
		flag.Usage()
		os.Exit(1)
	}

	if err := runApplication(args); err != nil {
		logrus.WithError(err).Error("celltrack failed")
		os.Exit(1)
	}
}

type cmdOpt struct {
	inFn        string
	configFn    string
	outFn       string
	methodFlag  string
	metricsAddr string
}

func parseArgs() (a cmdOpt, err error) {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `
[Usage]
	%s -in observations.jsonl [Options]

[Options]
`, filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	flag.StringVar(&a.inFn, "in", "", "Path to a JSON-lines file of Observation records (required).")
	flag.StringVar(&a.configFn, "config", "", "Path to a YAML PathLossConfig file overriding the defaults.")
	flag.StringVar(&a.outFn, "out", "", "Path to write the resulting []Estimate as JSON. If omitted, a one-line summary per cell is printed to stdout.")
	flag.StringVar(&a.methodFlag, "method", "", "Override the configured method: centroid|intersection|wls|robust.")
	flag.StringVar(&a.metricsAddr, "metrics-addr", "", "If set, serve Prometheus metrics at this address (e.g. :9100) while running.")
	flag.Parse()

	if a.inFn == "" {
		return a, fmt.Errorf("the -in option is required")
	}
	return a, nil
}

func runApplication(args cmdOpt) error {
	cfg, err := loadConfig(args)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	observations, err := readObservations(args.inFn)
	if err != nil {
		return fmt.Errorf("failed to read observations: %w", err)
	}

	var collector *m.DispatchCollector
	if args.metricsAddr != "" {
		collector, err = m.NewDispatchCollector(nil)
		if err != nil {
			return fmt.Errorf("failed to register metrics: %w", err)
		}
		go serveMetrics(args.metricsAddr, collector)
	}

	groups := m.GroupByCell(observations)
	estimates := m.EstimatePositionsWithMetrics(groups, cfg, collector)

	return writeOutput(args, estimates)
}

func loadConfig(args cmdOpt) (m.PathLossConfig, error) {
	cfg := m.DefaultPathLossConfig()
	var err error
	if args.configFn != "" {
		cfg, err = m.LoadPathLossConfig(args.configFn)
		if err != nil {
			return cfg, err
		}
	}
	if args.methodFlag != "" {
		if err := cfg.Method.Set(args.methodFlag); err != nil {
			return cfg, err
		}
	}
	return cfg, nil
}

func readObservations(fn string) ([]m.Observation, error) {
	f, err := os.Open(fn)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var observations []m.Observation
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var o m.Observation
		if err := json.Unmarshal(line, &o); err != nil {
			return nil, fmt.Errorf("parse observation line: %w", err)
		}
		observations = append(observations, o)
	}
	return observations, scanner.Err()
}

func writeOutput(args cmdOpt, estimates []m.Estimate) error {
	if args.outFn == "" {
		for _, e := range estimates {
			printEstimateLine(os.Stdout, e)
		}
		return nil
	}

	f, err := os.Create(args.outFn)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(estimates)
}

func printEstimateLine(w io.Writer, e m.Estimate) {
	if e.Lat == nil || e.Lon == nil {
		fmt.Fprintf(w, "cell=%s tech=%s count=%d lat=? lon=?\n", e.CellID, e.Tech, e.Count)
		return
	}
	fmt.Fprintf(w, "cell=%s tech=%s count=%d lat=%.6f lon=%.6f\n", e.CellID, e.Tech, e.Count, *e.Lat, *e.Lon)
}

func serveMetrics(addr string, collector *m.DispatchCollector) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		logrus.WithError(err).Error("metrics server stopped")
	}
}
