package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/optm/optm/internal/domain/optm"
)

func analyzeCmd() *cobra.Command {
	var currentPath, previousPath string
	var visualize bool

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Compare two snapshot JSON files offline and print the analysis",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd.OutOrStdout(), currentPath, previousPath, visualize, time.Now().UTC())
		},
	}
	cmd.Flags().StringVar(&currentPath, "current", "", "Path to the current snapshot (JSON)")
	cmd.Flags().StringVar(&previousPath, "previous", "", "Path to the previous snapshot (JSON)")
	cmd.Flags().BoolVar(&visualize, "visualize", false, "Print chart-ready visualization data instead")
	_ = cmd.MarkFlagRequired("current")
	return cmd
}

func runAnalyze(w io.Writer, currentPath, previousPath string, visualize bool, at time.Time) error {
	current, err := readSnapshot(currentPath)
	if err != nil {
		return err
	}
	var previous *optm.PatientSnapshot
	if previousPath != "" {
		if previous, err = readSnapshot(previousPath); err != nil {
			return err
		}
	}

	result := optm.AnalyzeAt(current, previous, at)

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if visualize {
		return enc.Encode(optm.PrepareVisualizationData(current, previous, result))
	}
	return enc.Encode(result)
}

func readSnapshot(path string) (*optm.PatientSnapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	var snap optm.PatientSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", path, err)
	}
	return &snap, nil
}
