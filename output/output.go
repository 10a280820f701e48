// Package output renders a report for people or other programs.
package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"duplicateimagefinder/types"

	"github.com/samber/lo"
)

// Format selects a renderer
type Format string

const (
	FormatHuman Format = "human"
	FormatJSON  Format = "json"
	FormatCSV   Format = "csv"
	FormatTable Format = "table"
)

// Formats lists every supported format
var Formats = []Format{FormatHuman, FormatJSON, FormatCSV, FormatTable}

// ParseFormat resolves a user supplied format name; "default" means human
func ParseFormat(name string) (Format, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" || name == "default" {
		return FormatHuman, nil
	}
	for _, f := range Formats {
		if string(f) == name {
			return f, nil
		}
	}
	return "", &types.ConfigurationError{
		Field:  "format",
		Reason: fmt.Sprintf("unknown format %q, expected one of %v", name, Formats),
	}
}

// Write renders report to w in the given format
func Write(w io.Writer, format Format, report *types.Report) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, report)
	case FormatCSV:
		return writeCSV(w, report)
	case FormatTable:
		return writeTable(w, report)
	default:
		return writeHuman(w, report)
	}
}

func writeHuman(w io.Writer, report *types.Report) error {
	if report.IndexOnly {
		_, err := fmt.Fprintf(w, "Indexed %d images, %d skipped\n", report.Stats.ImagesIndexed, report.Stats.ImagesSkipped)
		return err
	}

	if len(report.Groups) == 0 {
		fmt.Fprintln(w, "No similar images found")
	}
	for _, g := range report.Groups {
		fmt.Fprintf(w, "Group %d: %d images, up to %d%% similar\n", g.Index, len(g.Members), g.MaxConfidence)
		for _, p := range g.Pairs {
			fmt.Fprintf(w, "  %s is %d%% similar to %s\n", p.A.Path, p.Confidence, p.B.Path)
		}
		fmt.Fprintln(w)
	}

	if len(report.Skipped) > 0 {
		fmt.Fprintf(w, "Skipped %d unreadable files:\n", len(report.Skipped))
		for _, s := range report.Skipped {
			fmt.Fprintf(w, "  %s: %v\n", s.Ref.Path, s.Err)
		}
	}
	if len(report.ComparisonFailures) > 0 {
		fmt.Fprintf(w, "%d comparisons failed:\n", len(report.ComparisonFailures))
		for _, f := range report.ComparisonFailures {
			fmt.Fprintf(w, "  %v\n", f)
		}
	}

	_, err := fmt.Fprintf(w, "Compared %d pairs of %d images in %s\n",
		report.Stats.PairsCompared, report.Stats.ImagesIndexed, describeFilter(report))
	return err
}

func describeFilter(report *types.Report) string {
	if report.Inverse {
		return fmt.Sprintf("inverse mode (below %d%%)", report.Threshold)
	}
	return fmt.Sprintf("%d%% confidence", report.Threshold)
}

type jsonPair struct {
	Image1     string `json:"image1"`
	Image2     string `json:"image2"`
	Similarity int    `json:"similarity"`
	Distance   int    `json:"distance"`
}

type jsonGroup struct {
	Index         int        `json:"index"`
	Members       []string   `json:"members"`
	Pairs         []jsonPair `json:"pairs"`
	MaxSimilarity int        `json:"max_similarity"`
}

type jsonProblem struct {
	Path  string `json:"path"`
	Other string `json:"other,omitempty"`
	Error string `json:"error"`
}

type jsonReport struct {
	Threshold          int           `json:"threshold"`
	Inverse            bool          `json:"inverse"`
	IndexOnly          bool          `json:"index_only"`
	Groups             []jsonGroup   `json:"groups"`
	Skipped            []jsonProblem `json:"skipped"`
	ComparisonFailures []jsonProblem `json:"comparison_failures"`
	Stats              types.Stats   `json:"stats"`
}

func toJSONPair(p types.PairResult) jsonPair {
	return jsonPair{Image1: p.A.Path, Image2: p.B.Path, Similarity: p.Confidence, Distance: p.Distance}
}

func writeJSON(w io.Writer, report *types.Report) error {
	doc := jsonReport{
		Threshold: report.Threshold,
		Inverse:   report.Inverse,
		IndexOnly: report.IndexOnly,
		Stats:     report.Stats,
		Groups: lo.Map(report.Groups, func(g types.DuplicateGroup, _ int) jsonGroup {
			return jsonGroup{
				Index:         g.Index,
				Members:       lo.Map(g.Members, func(r types.ImageRef, _ int) string { return r.Path }),
				Pairs:         lo.Map(g.Pairs, func(p types.PairResult, _ int) jsonPair { return toJSONPair(p) }),
				MaxSimilarity: g.MaxConfidence,
			}
		}),
		Skipped: lo.Map(report.Skipped, func(s *types.DecodeFailure, _ int) jsonProblem {
			return jsonProblem{Path: s.Ref.Path, Error: fmt.Sprint(s.Err)}
		}),
		ComparisonFailures: lo.Map(report.ComparisonFailures, func(f *types.ComparisonFailure, _ int) jsonProblem {
			return jsonProblem{Path: f.A.Path, Other: f.B.Path, Error: fmt.Sprint(f.Err)}
		}),
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

func writeCSV(w io.Writer, report *types.Report) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"group", "image1", "image2", "similarity", "distance"}); err != nil {
		return err
	}
	for _, g := range report.Groups {
		for _, p := range g.Pairs {
			record := []string{
				strconv.Itoa(g.Index),
				p.A.Path,
				p.B.Path,
				strconv.Itoa(p.Confidence),
				strconv.Itoa(p.Distance),
			}
			if err := cw.Write(record); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeTable(w io.Writer, report *types.Report) error {
	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintln(tw, "GROUP\tSIMILARITY\tIMAGE 1\tIMAGE 2")
	fmt.Fprintln(tw, "-----\t----------\t-------\t-------")
	for _, g := range report.Groups {
		for _, p := range g.Pairs {
			fmt.Fprintf(tw, "%d\t%d%%\t%s\t%s\n", g.Index, p.Confidence, p.A.Path, p.B.Path)
		}
	}
	for _, s := range report.Skipped {
		fmt.Fprintf(tw, "-\tskipped\t%s\t%v\n", s.Ref.Path, s.Err)
	}
	return tw.Flush()
}
