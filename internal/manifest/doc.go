// Package manifest loads batch specifications: ordered lists of examples to
// test or regenerate.
//
// # Manifest Format
//
// A manifest is a list of records. JSON and YAML files are decoded directly;
// CUE files are evaluated first and must produce either a top-level list or
// an "examples" field holding one.
//
//	[
//	  {"file": "counter/counter.sv", "result_dir": "counter/test_result", "aplan_dir": "counter/aplan"},
//	  {"file": "fifo/fifo.sv",       "result_dir": "fifo/test_result",    "aplan_dir": "fifo/aplan"}
//	]
//
// Relative paths are resolved against the directory holding the manifest
// unless Options.BaseDir says otherwise. With Options.DefaultResultDir set,
// an entry may omit result_dir and gets a directory of that name beside its
// source file.
//
// # Validation
//
// Loading is all-or-nothing. Unknown keys are rejected, and the first entry
// missing a required field produces a *ManifestError carrying that entry's
// index. Two entries may not share a result_dir or aplan_dir, nor use one
// entry's result_dir as another's aplan_dir. No partial list is ever
// returned.
package manifest
