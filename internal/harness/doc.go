// Package harness runs translations and verifies them against golden
// reference trees.
//
// # Sessions
//
// A Tool starts unconfigured. Configure selects the source variant exactly
// once and returns a Session; every operation lives on Session, so nothing
// can translate before a variant is chosen:
//
//	tool := harness.New(registry, harness.Options{Logger: logger})
//	session, err := tool.Configure(translate.SV)
//	if err != nil {
//	    return err
//	}
//	report, err := session.RunTests(ctx, "examples.json")
//
// # Operations
//
//   - Start translates one source file and writes the tree to a result
//     directory (DefaultResultDir when none is given).
//   - RunTests translates every manifest entry into its result_dir and
//     compares it with aplan_dir.
//   - Regenerate translates every manifest entry and replaces its aplan_dir.
//   - RegenerateFile does the same for a single source; the reference
//     directory defaults to DefaultReferenceDir(source).
//
// # Failure Policy
//
// A manifest that fails to load aborts the batch before any example runs.
// Once the batch is dispatched, every example gets exactly one
// ExampleReport: translation and filesystem failures become ERROR, content
// differences become FAIL, and neither interrupts sibling examples.
//
// # Concurrency
//
// Options.Workers bounds how many examples run at once (default 1).
// BatchReport.Examples is always in manifest order, whatever the completion
// order was. Running tests and regeneration over the same manifest at the
// same time is not supported.
package harness
