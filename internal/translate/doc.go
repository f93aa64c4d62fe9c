// Package translate defines the translator capability and the registry that
// maps a source-language variant to its implementation.
//
// A Translator converts one HDL source file into an artifact.Tree. It must be
// a pure function of the source content: translating the same file twice
// yields identical trees. The harness never interprets or repairs a source a
// translator rejects; it only records the TranslationError.
//
// New source variants are added by registering a Translator, never by
// branching on language tags in callers:
//
//	reg := translate.NewRegistry()
//	if err := reg.Register(translate.SV, svTranslator); err != nil {
//	    return err
//	}
//	tr, err := reg.Resolve(translate.SV)
package translate
