package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func writeTestFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func createSampleRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeTestFile(t, dir, "src/auth.js", `const { findUser } = require('./db');

function loginUser(user, password) {
  return findUser(user);
}

function logoutUser(session) {
  session.clear();
}

module.exports = { loginUser, logoutUser };
`)
	writeTestFile(t, dir, "src/db.js", `function findUser(name) {
  return name;
}

module.exports = { findUser };
`)
	writeTestFile(t, dir, "src/chart.js", `export class Chart {
  render(data) {
    return data;
  }
}
`)
	return dir
}

// runOK runs the CLI and fails the test on error, returning stdout.
func runOK(t *testing.T, args ...string) string {
	t.Helper()
	var stdout, stderr bytes.Buffer
	if err := run(args, &stdout, &stderr); err != nil {
		t.Fatalf("run %v: %v\nstderr: %s", args, err, stderr.String())
	}
	return stdout.String()
}

func TestRunIndex(t *testing.T) {
	t.Parallel()
	dir := createSampleRepo(t)

	out := runOK(t, "index", dir)
	for _, want := range []string{
		"root: " + filepath.Base(dir),
		"indexed: 3",
		"files[3]{path,language,size,rank}:",
		"functions[3]{file,name,params,start,end}:",
		"src/auth.js,loginUser,user password,3,5",
		"classes[1]{file,name,methods,start,end}:",
		"src/chart.js,Chart,render,1,5",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}

	// db.js is required by auth.js, so it outranks it.
	if strings.Index(out, "  src/db.js,") > strings.Index(out, "  src/auth.js,") {
		t.Errorf("src/db.js should rank above src/auth.js:\n%s", out)
	}
}

func TestRunIndexRootFlag(t *testing.T) {
	t.Parallel()
	dir := createSampleRepo(t)

	out := runOK(t, "-C", dir, "index")
	if !strings.Contains(out, "files[3]") {
		t.Errorf("expected 3 files, got:\n%s", out)
	}
}

func TestRunIndexMaxFiles(t *testing.T) {
	t.Parallel()
	dir := createSampleRepo(t)

	out := runOK(t, "index", "-n", "1", dir)
	if !strings.Contains(out, "files[1]") {
		t.Errorf("expected 1 file, got:\n%s", out)
	}
}

func TestRunIndexFileFilter(t *testing.T) {
	t.Parallel()
	dir := createSampleRepo(t)

	out := runOK(t, "index", "--file", "chart", dir)
	if !strings.Contains(out, "files[1]") || !strings.Contains(out, "src/chart.js") {
		t.Errorf("expected only chart.js, got:\n%s", out)
	}
	if strings.Contains(out, "loginUser") {
		t.Errorf("auth.js declarations should be filtered out:\n%s", out)
	}
}

func TestRunIndexSymbolFilter(t *testing.T) {
	t.Parallel()
	dir := createSampleRepo(t)

	out := runOK(t, "index", "--symbol", "findUser", dir)
	// findUser plus its caller loginUser.
	if !strings.Contains(out, "functions[2]") {
		t.Errorf("expected 2 functions, got:\n%s", out)
	}
	if !strings.Contains(out, "loginUser") {
		t.Errorf("caller loginUser missing:\n%s", out)
	}
	if strings.Contains(out, "logoutUser") {
		t.Errorf("unrelated logoutUser present:\n%s", out)
	}
}

func TestRunIndexJSON(t *testing.T) {
	t.Parallel()
	dir := createSampleRepo(t)

	out := runOK(t, "--format", "json", "index", dir)
	var got struct {
		Stats struct {
			FilesIndexed int `json:"filesIndexed"`
		} `json:"stats"`
		Ranks []struct {
			Path string `json:"path"`
		} `json:"ranks"`
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out)
	}
	if len(got.Ranks) != 3 {
		t.Errorf("got %d ranks, want 3", len(got.Ranks))
	}
}

func TestRunIndexNoFiles(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeTestFile(t, dir, "readme.txt", "nothing here")

	var stdout, stderr bytes.Buffer
	err := run([]string{"index", dir}, &stdout, &stderr)
	if err == nil {
		t.Fatal("expected error for no indexable files")
	}
	if !strings.Contains(err.Error(), "no indexable files") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestRunMissingRoot(t *testing.T) {
	t.Parallel()

	var stdout, stderr bytes.Buffer
	err := run([]string{"index", filepath.Join(t.TempDir(), "missing")}, &stdout, &stderr)
	if err == nil {
		t.Fatal("expected error for missing root")
	}
}

func TestRunVersion(t *testing.T) {
	t.Parallel()

	out := runOK(t, "--version")
	if out != "codemap dev\n" {
		t.Errorf("version output: %q", out)
	}
}

func TestRunUnsupportedFormat(t *testing.T) {
	t.Parallel()

	var stdout, stderr bytes.Buffer
	err := run([]string{"--format", "xml", "index", t.TempDir()}, &stdout, &stderr)
	if err == nil || !strings.Contains(err.Error(), "unsupported format") {
		t.Errorf("expected unsupported format error, got %v", err)
	}
}

func TestRunSearch(t *testing.T) {
	t.Parallel()
	dir := createSampleRepo(t)

	out := runOK(t, "-C", dir, "search", "--type", "function", "login", "user")
	if !strings.Contains(out, "query: login user") {
		t.Errorf("missing query header:\n%s", out)
	}
	if !strings.Contains(out, "function,src/auth.js,loginUser,3,") {
		t.Errorf("loginUser missing from results:\n%s", out)
	}
	if strings.Contains(out, "\n  file,") {
		t.Errorf("file results should be filtered out:\n%s", out)
	}
}

func TestRunSearchByName(t *testing.T) {
	t.Parallel()
	dir := createSampleRepo(t)

	out := runOK(t, "-C", dir, "search", "--name", "user")
	if !strings.Contains(out, "matches[3]{type,file,name,line}:") {
		t.Errorf("expected 3 name matches, got:\n%s", out)
	}
}

func TestRunDeps(t *testing.T) {
	t.Parallel()
	dir := createSampleRepo(t)

	out := runOK(t, "-C", dir, "deps", "file:src/auth.js", "--type", "requires")
	if !strings.Contains(out, `"file:src/db.js",file`) {
		t.Errorf("auth.js should require db.js:\n%s", out)
	}

	out = runOK(t, "-C", dir, "deps", "function:src/db.js:findUser", "--direction", "incoming", "--type", "calls")
	if !strings.Contains(out, `"function:src/auth.js:loginUser"`) {
		t.Errorf("loginUser should call findUser:\n%s", out)
	}
}

func TestRunDepsUnknownNode(t *testing.T) {
	t.Parallel()
	dir := createSampleRepo(t)

	var stdout, stderr bytes.Buffer
	if err := run([]string{"-C", dir, "deps", "file:nope.js"}, &stdout, &stderr); err == nil {
		t.Fatal("expected error for unknown node")
	}
}

func TestRunMap(t *testing.T) {
	t.Parallel()
	dir := createSampleRepo(t)

	out := runOK(t, "-C", dir, "map",
		"--id", "task-1",
		"--description", "allow a user to log in with a password",
		"-k", "login", "-k", "user",
		"User", "login")
	if !strings.Contains(out, "task: task-1") || !strings.Contains(out, "title: User login") {
		t.Errorf("missing task header:\n%s", out)
	}
	lines := strings.Split(out, "\n")
	if len(lines) < 4 || !strings.HasPrefix(lines[3], "  function,src/auth.js,loginUser,") {
		t.Errorf("loginUser should be the top mapping:\n%s", out)
	}
}

func TestRunMapTaskFile(t *testing.T) {
	t.Parallel()
	dir := createSampleRepo(t)
	task := filepath.Join(t.TempDir(), "task.yaml")
	writeTestFile(t, filepath.Dir(task), "task.yaml", `id: chart-7
title: Render chart
description: render the chart data
keywords: [chart, render]
`)

	out := runOK(t, "-C", dir, "--format", "yaml", "map", "--task", task)
	var results []struct {
		TaskID string `yaml:"taskId"`
	}
	if err := yaml.Unmarshal([]byte(out), &results); err != nil {
		t.Fatalf("invalid YAML: %v\n%s", err, out)
	}
	if len(results) == 0 {
		t.Fatalf("no mappings:\n%s", out)
	}
	if results[0].TaskID != "chart-7" {
		t.Errorf("task id = %q, want chart-7", results[0].TaskID)
	}
	if !strings.Contains(out, "src/chart.js") {
		t.Errorf("chart.js missing:\n%s", out)
	}
}

func TestRunMapGeneratesID(t *testing.T) {
	t.Parallel()
	dir := createSampleRepo(t)

	out := runOK(t, "-C", dir, "map", "--title", "render chart")
	first := strings.SplitN(out, "\n", 2)[0]
	id := strings.TrimPrefix(first, "task: ")
	if len(id) != 36 || strings.Count(id, "-") != 4 {
		t.Errorf("expected a generated UUID, got %q", first)
	}
}

func TestRunMapInvalidTask(t *testing.T) {
	t.Parallel()
	dir := createSampleRepo(t)

	var stdout, stderr bytes.Buffer
	err := run([]string{"-C", dir, "map", "--description", "no title"}, &stdout, &stderr)
	if err == nil || !strings.Contains(err.Error(), "invalid task") {
		t.Errorf("expected invalid task error, got %v", err)
	}
}

func TestRunImpact(t *testing.T) {
	t.Parallel()
	dir := createSampleRepo(t)

	out := runOK(t, "-C", dir, "impact", "-k", "login", "-k", "user", "User", "login")
	for _, want := range []string{
		"risk: low",
		"plan[",
		"src/auth.js,high,modify,",
		"dependencies[",
		"src/db.js,",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
}

func TestRunSuggest(t *testing.T) {
	t.Parallel()
	dir := createSampleRepo(t)

	out := runOK(t, "-C", dir, "suggest", "-k", "login", "-k", "user", "User", "login")
	if !strings.Contains(out, "src/auth.js,high,") || !strings.Contains(out, "Implement User login here") {
		t.Errorf("missing suggestion for auth.js:\n%s", out)
	}
}

func TestRunConfigFile(t *testing.T) {
	t.Parallel()
	dir := createSampleRepo(t)
	writeTestFile(t, dir, "lib/legacy.py", "def legacy():\n    return 1\n")
	cfg := filepath.Join(t.TempDir(), "codemap.yaml")
	writeTestFile(t, filepath.Dir(cfg), "codemap.yaml", "fileExtensions: [py]\n")

	out := runOK(t, "--config", cfg, "index", dir)
	if !strings.Contains(out, "files[1]") || !strings.Contains(out, "lib/legacy.py") {
		t.Errorf("expected only the python file, got:\n%s", out)
	}
}

func TestRunMetricsFile(t *testing.T) {
	t.Parallel()
	dir := createSampleRepo(t)
	path := filepath.Join(t.TempDir(), "codemap.prom")

	runOK(t, "--metrics-file", path, "index", dir)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("metrics file not written: %v", err)
	}
	if !strings.Contains(string(data), "codemap_graph_nodes") {
		t.Errorf("graph gauge missing:\n%s", data)
	}
}
