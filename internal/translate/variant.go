package translate

import (
	"fmt"
	"strings"
)

// Variant identifies the source language of an HDL file.
// The zero value is not a valid variant.
type Variant int

const (
	// SV is SystemVerilog.
	SV Variant = iota + 1
	// VHDL is VHDL.
	VHDL
)

// Variants lists every supported variant in declaration order.
var Variants = []Variant{SV, VHDL}

var variantNames = map[Variant]string{
	SV:   "sv",
	VHDL: "vhdl",
}

// String returns the lowercase tag used in configuration and on the CLI.
func (v Variant) String() string {
	if name, ok := variantNames[v]; ok {
		return name
	}
	return fmt.Sprintf("variant(%d)", int(v))
}

// Valid reports whether v is one of the declared variants.
func (v Variant) Valid() bool {
	_, ok := variantNames[v]
	return ok
}

// Extension returns the file extension sources of this variant carry.
func (v Variant) Extension() string {
	if !v.Valid() {
		return ""
	}
	return "." + variantNames[v]
}

// ParseVariant converts a tag such as "sv" or "VHDL" into a Variant.
func ParseVariant(tag string) (Variant, error) {
	normalized := strings.ToLower(strings.TrimSpace(tag))
	for v, name := range variantNames {
		if name == normalized {
			return v, nil
		}
	}
	return 0, &UnsupportedVariantError{Tag: tag}
}

// MarshalText implements encoding.TextMarshaler.
func (v Variant) MarshalText() ([]byte, error) {
	if !v.Valid() {
		return nil, &UnsupportedVariantError{Variant: v}
	}
	return []byte(v.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (v *Variant) UnmarshalText(text []byte) error {
	parsed, err := ParseVariant(string(text))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
