package translate

import "fmt"

// UnsupportedVariantError reports a variant with no registered Translator,
// or a tag that names no variant at all.
type UnsupportedVariantError struct {
	Variant Variant
	Tag     string // set when parsing an unknown tag
}

func (e *UnsupportedVariantError) Error() string {
	if e.Tag != "" {
		return fmt.Sprintf("unsupported source variant %q (expected one of sv, vhdl)", e.Tag)
	}
	return fmt.Sprintf("no translator registered for variant %s", e.Variant)
}

// TranslationError reports a source file the translator rejected.
type TranslationError struct {
	Source string
	Detail string
	Err    error
}

func (e *TranslationError) Error() string {
	msg := fmt.Sprintf("translate %s", e.Source)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

func (e *TranslationError) Unwrap() error {
	return e.Err
}
