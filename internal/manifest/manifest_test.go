package manifest

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeManifest(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_JSON(t *testing.T) {
	path := writeManifest(t, "examples.json", `[
  {"file": "initial.sv", "result_dir": "test_result", "aplan_dir": "aplan"},
  {"file": "/abs/fifo.sv", "result_dir": "fifo/out", "aplan_dir": "fifo/aplan"}
]`)
	dir := filepath.Dir(path)

	examples, err := Load(path)
	require.NoError(t, err)
	require.Len(t, examples, 2)

	assert.Equal(t, Example{
		File:      filepath.Join(dir, "initial.sv"),
		ResultDir: filepath.Join(dir, "test_result"),
		AplanDir:  filepath.Join(dir, "aplan"),
	}, examples[0])
	assert.Equal(t, "/abs/fifo.sv", examples[1].File)
}

func TestLoad_YAML(t *testing.T) {
	path := writeManifest(t, "examples.yaml", `
- file: a.vhdl
  result_dir: a/result
  aplan_dir: a/aplan
- file: b.vhdl
  result_dir: b/result
  aplan_dir: b/aplan
`)

	examples, err := Load(path)
	require.NoError(t, err)
	require.Len(t, examples, 2)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "b.vhdl"), examples[1].File)
}

func TestLoad_PreservesOrder(t *testing.T) {
	path := writeManifest(t, "examples.json", `[
  {"file": "3.sv", "result_dir": "r3", "aplan_dir": "a3"},
  {"file": "1.sv", "result_dir": "r1", "aplan_dir": "a1"},
  {"file": "2.sv", "result_dir": "r2", "aplan_dir": "a2"}
]`)

	examples, err := LoadWithOptions(path, Options{BaseDir: "/base"})
	require.NoError(t, err)

	var files []string
	for _, ex := range examples {
		files = append(files, ex.File)
	}
	assert.Equal(t, []string{"/base/3.sv", "/base/1.sv", "/base/2.sv"}, files)
}

func TestLoad_MissingFieldReportsIndex(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		index int
		field string
	}{
		{
			name:  "missing file",
			body:  `[{"file":"a.sv","result_dir":"r","aplan_dir":"a"}, {"result_dir":"r2","aplan_dir":"a2"}]`,
			index: 1,
			field: FieldFile,
		},
		{
			name:  "missing result_dir",
			body:  `[{"file":"a.sv","aplan_dir":"a"}]`,
			index: 0,
			field: FieldResultDir,
		},
		{
			name:  "missing aplan_dir",
			body:  `[{"file":"a.sv","result_dir":"r","aplan_dir":"a"}, {"file":"b.sv","result_dir":"r","aplan_dir":"a"}, {"file":"c.sv","result_dir":"r"}]`,
			index: 2,
			field: FieldAplanDir,
		},
		{
			name:  "blank file",
			body:  `[{"file":"  ","result_dir":"r","aplan_dir":"a"}]`,
			index: 0,
			field: FieldFile,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeManifest(t, "m.json", tt.body)

			examples, err := Load(path)
			require.Error(t, err)
			assert.Nil(t, examples)

			var mErr *ManifestError
			require.True(t, errors.As(err, &mErr))
			assert.Equal(t, tt.index, mErr.Index)
			assert.Equal(t, tt.field, mErr.Field)
			assert.Equal(t, path, mErr.Path)
		})
	}
}

func TestLoad_DefaultResultDir(t *testing.T) {
	path := writeManifest(t, "m.json", `[
  {"file":"counter/counter.sv","aplan_dir":"counter/aplan"},
  {"file":"fifo/fifo.sv","aplan_dir":"fifo/aplan"},
  {"file":"alu.sv","result_dir":"alu_out","aplan_dir":"alu_aplan"}
]`)
	dir := filepath.Dir(path)

	examples, err := LoadWithOptions(path, Options{DefaultResultDir: "test_result"})
	require.NoError(t, err)
	require.Len(t, examples, 3)
	assert.Equal(t, filepath.Join(dir, "counter", "test_result"), examples[0].ResultDir)
	assert.Equal(t, filepath.Join(dir, "fifo", "test_result"), examples[1].ResultDir)
	assert.Equal(t, filepath.Join(dir, "alu_out"), examples[2].ResultDir)
}

func TestLoad_SharedDirectoryRejected(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		index int
		want  string
	}{
		{
			name:  "shared result_dir",
			body:  `[{"file":"a.sv","result_dir":"out","aplan_dir":"a"}, {"file":"b.sv","result_dir":"./out","aplan_dir":"b"}]`,
			index: 1,
			want:  `result_dir "`,
		},
		{
			name:  "shared aplan_dir",
			body:  `[{"file":"a.sv","result_dir":"ra","aplan_dir":"ref"}, {"file":"b.sv","result_dir":"rb","aplan_dir":"x/../ref"}]`,
			index: 1,
			want:  `aplan_dir "`,
		},
		{
			name:  "result_dir reused as another aplan_dir",
			body:  `[{"file":"a.sv","result_dir":"ra","aplan_dir":"a"}, {"file":"b.sv","result_dir":"rb","aplan_dir":"b"}, {"file":"c.sv","result_dir":"rc","aplan_dir":"ra"}]`,
			index: 2,
			want:  "already used by entry 0",
		},
		{
			name:  "default result_dir in one directory",
			body:  `[{"file":"a.sv","aplan_dir":"a"}, {"file":"b.sv","aplan_dir":"b"}]`,
			index: 1,
			want:  "already used by entry 0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeManifest(t, "m.json", tt.body)

			examples, err := LoadWithOptions(path, Options{DefaultResultDir: "test_result"})
			require.Error(t, err)
			assert.Nil(t, examples)

			var mErr *ManifestError
			require.True(t, errors.As(err, &mErr))
			assert.Equal(t, tt.index, mErr.Index)
			assert.Empty(t, mErr.Field)
			assert.Equal(t, path, mErr.Path)
			assert.Contains(t, err.Error(), tt.want)
			assert.NotContains(t, err.Error(), "is required")
		})
	}
}

func TestLoad_SameResultAndAplanDir(t *testing.T) {
	path := writeManifest(t, "m.json", `[{"file":"a.sv","result_dir":"out","aplan_dir":"./out"}]`)

	_, err := Load(path)
	var mErr *ManifestError
	require.True(t, errors.As(err, &mErr))
	assert.Equal(t, 0, mErr.Index)
	assert.Contains(t, err.Error(), "must differ")
}

func TestLoad_UnknownFieldRejected(t *testing.T) {
	path := writeManifest(t, "m.yaml", `
- file: a.sv
  result_dir: r
  aplan_dirr: a
`)

	_, err := Load(path)
	var mErr *ManifestError
	require.True(t, errors.As(err, &mErr))
	assert.Equal(t, -1, mErr.Index)
	assert.Contains(t, err.Error(), "aplan_dirr")
}

func TestLoad_NotAList(t *testing.T) {
	path := writeManifest(t, "m.json", `{"file":"a.sv","result_dir":"r","aplan_dir":"a"}`)

	_, err := Load(path)
	var mErr *ManifestError
	require.True(t, errors.As(err, &mErr))
	assert.Equal(t, -1, mErr.Index)
}

func TestLoad_EmptyListAndEmptyFile(t *testing.T) {
	examples, err := Load(writeManifest(t, "m.json", `[]`))
	require.NoError(t, err)
	assert.Empty(t, examples)

	_, err = Load(writeManifest(t, "empty.json", ``))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "manifest is empty")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))

	var mErr *ManifestError
	require.True(t, errors.As(err, &mErr))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestLoad_CUEList(t *testing.T) {
	path := writeManifest(t, "examples.cue", `
[
	{file: "counter.sv", result_dir: "counter/result", aplan_dir: "counter/aplan"},
]
`)

	examples, err := Load(path)
	require.NoError(t, err)
	require.Len(t, examples, 1)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "counter/aplan"), examples[0].AplanDir)
}

func TestLoad_CUEExamplesField(t *testing.T) {
	path := writeManifest(t, "examples.cue", `
#Example: {
	file:       string
	result_dir: *"\(file)_result" | string
	aplan_dir:  string
}

examples: [...#Example] & [
	{file: "a.sv", aplan_dir: "a/aplan"},
	{file: "b.sv", result_dir: "b/out", aplan_dir: "b/aplan"},
]
`)

	examples, err := Load(path)
	require.NoError(t, err)
	require.Len(t, examples, 2)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "a.sv_result"), examples[0].ResultDir)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "b/out"), examples[1].ResultDir)
}

func TestLoad_CUEMissingExamples(t *testing.T) {
	path := writeManifest(t, "examples.cue", `name: "nothing here"`)

	_, err := Load(path)
	var mErr *ManifestError
	require.True(t, errors.As(err, &mErr))
	assert.Contains(t, err.Error(), "examples list")
}

func TestManifestError_Messages(t *testing.T) {
	assert.Equal(t,
		"manifest m.json: entry 2: file is required",
		(&ManifestError{Path: "m.json", Index: 2, Field: FieldFile}).Error())
	assert.Equal(t,
		"manifest m.json: boom",
		(&ManifestError{Path: "m.json", Index: -1, Err: errors.New("boom")}).Error())
}
