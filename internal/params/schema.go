package params

import (
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/TheFermiSea/crystalmath/internal/domain"
)

// coreSchema constrains the typed scf core of the parameter tree. Keys outside
// the core are solver-specific overrides and pass through unvalidated.
const coreSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "properties": {
    "scf": {
      "type": "object",
      "properties": {
        "mixing_percent":  {"type": "number", "minimum": 1, "maximum": 99},
        "level_shift_ev":  {"type": "number", "minimum": 0, "maximum": 5},
        "max_cycles":      {"type": "integer", "minimum": 1, "maximum": 1000},
        "convergence_tol": {"type": "number", "exclusiveMinimum": 0}
      },
      "additionalProperties": true
    }
  },
  "additionalProperties": true
}`

var coreValidator = jsonschema.MustCompileString("scf-core.json", coreSchema)

// ValidateCore checks the tree's scf core against the schema.
func ValidateCore(t *Tree) error {
	if err := coreValidator.Validate(t.Snapshot()); err != nil {
		return domain.NewEngineError(domain.ErrParameterSchema.Code,
			fmt.Sprintf("%s: %v", domain.ErrParameterSchema.Message, err))
	}
	return nil
}
