package bloat

import (
	"regexp"
	"strings"

	"github.com/ianlancetaylor/demangle"
)

// Mangling is the name mangling scheme of a symbol.
type Mangling int

const (
	// ManglingUnknown is any symbol that isn't a Rust symbol, for example C
	// or C++ functions.
	ManglingUnknown Mangling = iota
	// ManglingLegacy is the _ZN...17h<hash>E Rust scheme.
	ManglingLegacy
	// ManglingV0 is the _R Rust scheme.
	ManglingV0
)

func (m Mangling) String() string {
	switch m {
	case ManglingLegacy:
		return "legacy"
	case ManglingV0:
		return "v0"
	default:
		return "unknown"
	}
}

// Symbol is a function recovered from a binary's symbol table.
type Symbol struct {
	Name    SymbolName
	Address uint64
	Size    uint64
}

// SymbolName is a demangled symbol name.
type SymbolName struct {
	// Complete is the demangled name including the hash suffix.
	Complete string
	// Trimmed is Complete without the hash suffix and crate disambiguators.
	Trimmed string
	// CrateName is set when the mangling encodes the defining crate.
	CrateName string
	// Mangled is the name as stored in the binary.
	Mangled string
	Kind    Mangling
}

const legacyHashLen = 16

var v0Disambiguator = regexp.MustCompile(`\[[0-9a-f]+\]`)

// DemangleSymbol demangles a raw symbol name.
func DemangleSymbol(raw string) SymbolName {
	name := raw
	// Mach-O adds an underscore to every C level name.
	if strings.HasPrefix(name, "__ZN") || strings.HasPrefix(name, "__R") {
		name = name[1:]
	}
	if i := strings.Index(name, ".llvm."); i > 0 {
		name = name[:i]
	}

	if hash, ok := legacyHash(name); ok {
		if s, err := demangle.ToString(name); err == nil {
			trimmed := strings.TrimSuffix(s, "::h"+hash)
			return SymbolName{
				Complete: trimmed + "::h" + hash,
				Trimmed:  trimmed,
				Mangled:  raw,
				Kind:     ManglingLegacy,
			}
		}
	}

	if strings.HasPrefix(name, "_R") {
		if s, err := demangle.ToString(name); err == nil {
			return SymbolName{
				Complete:  s,
				Trimmed:   v0Disambiguator.ReplaceAllString(s, ""),
				CrateName: v0CrateName(name),
				Mangled:   raw,
				Kind:      ManglingV0,
			}
		}
	}

	complete := raw
	if s := demangle.Filter(name); s != name {
		complete = s
	}
	return SymbolName{Complete: complete, Trimmed: complete, Mangled: raw, Kind: ManglingUnknown}
}

// legacyHash returns the hash of a legacy Rust symbol, _ZN...17h<16 hex>E.
func legacyHash(name string) (string, bool) {
	const suffix = 3 + legacyHashLen + 1 // "17h" + hash + "E"
	if !strings.HasPrefix(name, "_ZN") || !strings.HasSuffix(name, "E") || len(name) <= 3+suffix {
		return "", false
	}
	tail := name[len(name)-suffix:]
	if !strings.HasPrefix(tail, "17h") {
		return "", false
	}
	hash := tail[3 : 3+legacyHashLen]
	for i := 0; i < len(hash); i++ {
		if !isHexDigit(hash[i]) {
			return "", false
		}
	}
	return hash, true
}
