package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"groups/export"
	"groups/grouper"
)

type rosterEntry struct {
	ID          string   `json:"id" yaml:"id"`
	Name        string   `json:"name" yaml:"name"`
	Preferences []string `json:"preferences" yaml:"preferences"`
}

// loadRoster reads a JSON or YAML list of students. Entries without an id are
// numbered by their position in the file.
func loadRoster(path string) ([]grouper.Student, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var entries []rosterEntry
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &entries)
	case ".json", "":
		err = json.Unmarshal(data, &entries)
	default:
		return nil, fmt.Errorf("unsupported roster format %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	students := make([]grouper.Student, len(entries))
	seen := map[string]bool{}
	for i, e := range entries {
		if e.ID == "" {
			e.ID = strconv.Itoa(i + 1)
		}
		if seen[e.ID] {
			return nil, fmt.Errorf("duplicate student id %q", e.ID)
		}
		seen[e.ID] = true
		students[i] = grouper.Student{ID: e.ID, Name: e.Name, Preferences: e.Preferences}
	}
	return students, nil
}

func loadAndGroup(path string, size int) ([]grouper.Group, error) {
	students, err := loadRoster(path)
	if err != nil {
		return nil, err
	}
	if err := grouper.CheckRequest(len(students), size); err != nil {
		return nil, err
	}
	return grouper.Build(students, size), nil
}

func newRootCmd() *cobra.Command {
	var (
		file string
		size int
	)
	root := &cobra.Command{
		Use:           "group-preview",
		Short:         "Preview preference-based student groups from a roster file",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&file, "file", "f", "roster.json", "roster file (.json, .yaml or .yml)")
	root.PersistentFlags().IntVarP(&size, "size", "s", 3, "students per group")

	var (
		format string
		top    int
	)
	buildCmd := &cobra.Command{
		Use:   "build",
		Short: "Generate groups and print them",
		RunE: func(cmd *cobra.Command, args []string) error {
			groups, err := loadAndGroup(file, size)
			if err != nil {
				return err
			}
			if top > 0 {
				for i := range groups {
					groups[i].CommonPreferences = groups[i].TopPreferences(top)
				}
			}
			return writeGroups(cmd.OutOrStdout(), groups, format)
		},
	}
	buildCmd.Flags().StringVar(&format, "format", "text", "output format: text, csv or json")
	buildCmd.Flags().IntVar(&top, "top", 0, "show at most this many common interests per group (0 = all)")

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize how well the generated groups overlap",
		RunE: func(cmd *cobra.Command, args []string) error {
			start := time.Now()
			groups, err := loadAndGroup(file, size)
			if err != nil {
				return err
			}
			printStats(cmd.OutOrStdout(), groups, time.Since(start))
			return nil
		},
	}

	root.AddCommand(buildCmd, statsCmd)
	return root
}

func writeGroups(w io.Writer, groups []grouper.Group, format string) error {
	switch format {
	case "text":
		if err := export.Text(w, groups); err != nil {
			return err
		}
		_, err := fmt.Fprintln(w)
		return err
	case "csv":
		return export.CSV(w, groups)
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(groups)
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

// assemblyScore replays group assembly: each member after the seed is scored
// against the members that joined before it.
func assemblyScore(g grouper.Group) int {
	total := 0
	for i := 1; i < len(g.Students); i++ {
		total += grouper.MatchScore(g.Students[:i], g.Students[i])
	}
	return total
}

func printStats(w io.Writer, groups []grouper.Group, elapsed time.Duration) {
	sizes := map[int]int{}
	students, noCommon, totalScore := 0, 0, 0
	for _, g := range groups {
		sizes[len(g.Students)]++
		students += len(g.Students)
		if len(g.CommonPreferences) == 0 {
			noCommon++
		}
		totalScore += assemblyScore(g)
	}

	fmt.Fprintf(w, "Students: %d, Groups: %d\n", students, len(groups))
	fmt.Fprintf(w, "  time: %v\n", elapsed)
	fmt.Fprintf(w, "  size distribution:\n")
	keys := make([]int, 0, len(sizes))
	for k := range sizes {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	slices.Reverse(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "    size %d: %d groups\n", k, sizes[k])
	}
	fmt.Fprintf(w, "  groups without common interests: %d\n", noCommon)
	if len(groups) > 0 {
		fmt.Fprintf(w, "  avg assembly score: %.1f\n", float64(totalScore)/float64(len(groups)))
	}
	for _, g := range groups {
		fmt.Fprintf(w, "  %s: score %d, common %v\n", g.ID, assemblyScore(g), g.TopPreferences(3))
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
