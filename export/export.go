// Package export renders generated groups for download or clipboard use.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"groups/grouper"
)

var csvHeader = []string{"Group", "Student Name", "Common Interests"}

// CSV writes one row per student. The group label and its common interests
// appear only on the first row of each group.
func CSV(w io.Writer, groups []grouper.Group) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for gi, g := range groups {
		for si, s := range g.Students {
			label, interests := "", ""
			if si == 0 {
				label = fmt.Sprintf("Group %d", gi+1)
				interests = strings.Join(g.CommonPreferences, "; ")
			}
			if err := cw.Write([]string{label, s.Name, interests}); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// Text writes a human-readable summary, one paragraph per group.
func Text(w io.Writer, groups []grouper.Group) error {
	var b strings.Builder
	for gi, g := range groups {
		if gi > 0 {
			b.WriteString("\n\n")
		}
		names := make([]string, len(g.Students))
		for i, s := range g.Students {
			names[i] = s.Name
		}
		fmt.Fprintf(&b, "Group %d: %s", gi+1, strings.Join(names, ", "))
		if len(g.CommonPreferences) > 0 {
			fmt.Fprintf(&b, "\n  Common interests: %s", strings.Join(g.CommonPreferences, ", "))
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func FileName(t time.Time) string {
	return "student-groups-" + t.Format("2006-01-02") + ".csv"
}
