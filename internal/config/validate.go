// CUE schema validation code
package config

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueyaml "cuelang.org/go/encoding/yaml"
)

// ValidateYAML checks YAML data against definition def (for example
// "#Config") of a CUE schema.
func ValidateYAML(schema []byte, def, filename string, data []byte) error {
	ctx := cuecontext.New()

	schemaVal := ctx.CompileBytes(schema, cue.Filename("schema.cue"))
	if err := schemaVal.Err(); err != nil {
		return fmt.Errorf("compile CUE schema: %w", err)
	}
	defVal := schemaVal.LookupPath(cue.ParsePath(def))
	if !defVal.Exists() {
		return fmt.Errorf("schema has no definition %s", def)
	}

	file, err := cueyaml.Extract(filename, data)
	if err != nil {
		return fmt.Errorf("cannot parse YAML %s: %w", filename, err)
	}
	dataVal := ctx.BuildFile(file)
	if err := dataVal.Err(); err != nil {
		return fmt.Errorf("cannot build YAML %s: %w", filename, err)
	}

	final := defVal.Unify(dataVal)
	if err := final.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return nil
}
