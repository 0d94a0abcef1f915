package cmd

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/spf13/cobra"

	"github.com/zenlearn/helix/internal/tubes"
)

//go:embed manifest.schema.json
var manifestSchema string

// manifest is the learning-path seed file format.
type manifest struct {
	UserID        string              `json:"user_id"`
	BoundaryLevel int                 `json:"boundary_level"`
	Tubes         map[string][]string `json:"tubes"`
}

var seedCmd = &cobra.Command{
	Use:   "seed <manifest.json>",
	Short: "Initialize a learner's three tubes from a manifest file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read manifest: %w", err)
		}
		m, err := parseManifest(data)
		if err != nil {
			return err
		}

		eng, st, log, err := openEngine(cmd)
		if err != nil {
			return err
		}
		defer st.Close()
		defer log.Sync()

		ctx := cmd.Context()
		seed := make(map[tubes.ID][]string, len(m.Tubes))
		for name, ids := range m.Tubes {
			tube, err := tubes.ParseID(name)
			if err != nil {
				return fmt.Errorf("manifest tube %q: %w", name, err)
			}
			seed[tube] = ids
		}

		if err := eng.InitializeTubes(ctx, m.UserID, seed); err != nil {
			return err
		}
		if m.BoundaryLevel > 0 {
			if _, err := eng.SetBoundaryLevel(ctx, m.UserID, m.BoundaryLevel); err != nil {
				return err
			}
		}

		total := 0
		for _, ids := range m.Tubes {
			total += len(ids)
		}
		fmt.Printf("Seeded user %s: %d stitches across %d tubes (boundary level %d)\n",
			m.UserID, total, len(m.Tubes), m.BoundaryLevel)
		return nil
	},
}

// parseManifest validates the manifest against the embedded JSON schema
// before decoding it, so malformed files fail with a field-level error
// instead of a half-seeded user.
func parseManifest(data []byte) (*manifest, error) {
	schemaDoc, err := jsonschema.UnmarshalJSON(strings.NewReader(manifestSchema))
	if err != nil {
		return nil, fmt.Errorf("load embedded schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("manifest.schema.json", schemaDoc); err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	schema, err := compiler.Compile("manifest.schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}

	instance, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if err := schema.Validate(instance); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}

	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	return &m, nil
}
