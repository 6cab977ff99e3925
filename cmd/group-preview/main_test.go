package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"groups/grouper"
)

const yamlRoster = `
- name: Ada
  preferences: [Finance, Launch]
- name: Bob
  preferences: [Marketing]
- name: Cy
  preferences: [Finance, Launch]
`

const jsonRoster = `[
  {"id": "a", "name": "Ada", "preferences": ["Finance", "Launch"]},
  {"id": "b", "name": "Bob", "preferences": ["Marketing"]},
  {"id": "c", "name": "Cy", "preferences": ["Finance", "Launch"]}
]`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadRosterYAML(t *testing.T) {
	students, err := loadRoster(writeFile(t, "roster.yaml", yamlRoster))
	require.NoError(t, err)
	require.Len(t, students, 3)
	assert.Equal(t, grouper.Student{ID: "1", Name: "Ada", Preferences: []string{"Finance", "Launch"}}, students[0])
	assert.Equal(t, "3", students[2].ID)
}

func TestLoadRosterJSON(t *testing.T) {
	students, err := loadRoster(writeFile(t, "roster.json", jsonRoster))
	require.NoError(t, err)
	require.Len(t, students, 3)
	assert.Equal(t, "b", students[1].ID)
	assert.Equal(t, []string{"Marketing"}, students[1].Preferences)
}

func TestLoadRosterErrors(t *testing.T) {
	_, err := loadRoster(writeFile(t, "roster.txt", jsonRoster))
	assert.ErrorContains(t, err, "unsupported")

	_, err = loadRoster(writeFile(t, "roster.json", `{"not": "a list"}`))
	assert.Error(t, err)

	_, err = loadRoster(writeFile(t, "roster.json", `[{"id":"a","name":"A"},{"id":"a","name":"B"}]`))
	assert.ErrorContains(t, err, "duplicate")

	_, err = loadRoster(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestBuildCommand(t *testing.T) {
	path := writeFile(t, "roster.json", jsonRoster)

	out, err := run(t, "build", "--file", path, "--size", "2")
	require.NoError(t, err)
	assert.Equal(t, "Group 1: Ada, Cy\n  Common interests: Finance, Launch\n\nGroup 2: Bob\n  Common interests: Marketing\n", out)

	out, err = run(t, "build", "-f", path, "-s", "2", "--top", "1", "--format", "csv")
	require.NoError(t, err)
	assert.Equal(t, "Group,Student Name,Common Interests\nGroup 1,Ada,Finance\n,Cy,\nGroup 2,Bob,Marketing\n", out)

	out, err = run(t, "build", "-f", path, "-s", "2", "--format", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"common_preferences"`)

	_, err = run(t, "build", "-f", path, "-s", "2", "--format", "xml")
	assert.ErrorContains(t, err, "unknown format")
}

func TestBuildCommandValidates(t *testing.T) {
	path := writeFile(t, "roster.json", jsonRoster)
	_, err := run(t, "build", "-f", path, "-s", "9")
	assert.ErrorIs(t, err, grouper.ErrGroupSize)

	single := writeFile(t, "one.json", `[{"name":"Ada","preferences":["X"]}]`)
	_, err = run(t, "build", "-f", single, "-s", "2")
	assert.ErrorIs(t, err, grouper.ErrTooFewStudents)
}

func TestStatsCommand(t *testing.T) {
	path := writeFile(t, "roster.yaml", yamlRoster)
	out, err := run(t, "stats", "-f", path, "-s", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "Students: 3, Groups: 2")
	assert.Contains(t, out, "size 2: 1 groups")
	assert.Contains(t, out, "size 1: 1 groups")
	assert.Contains(t, out, "group-1: score 4")
	assert.True(t, strings.Contains(out, "avg assembly score: 2.0"), out)
}
