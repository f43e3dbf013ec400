package bloat

// PDBLoader loads function symbols from the PDB debug info of a PE file.
// Binaries built with the MSVC toolchain keep no COFF function symbols, so
// their sizes can only come from the PDB.
//
// Symbol addresses must be relative to the start of the code section,
// like COFF symbol values.
type PDBLoader interface {
	Symbols(exePath string, textSize uint64) ([]Symbol, error)
}

// PDBLoaderFunc adapts a function to the PDBLoader interface.
type PDBLoaderFunc func(exePath string, textSize uint64) ([]Symbol, error)

// Symbols calls f.
func (f PDBLoaderFunc) Symbols(exePath string, textSize uint64) ([]Symbol, error) {
	return f(exePath, textSize)
}
