package attestation

import (
	"fmt"
	"strings"

	apperrors "revattest/internal/errors"

	"github.com/Masterminds/semver/v3"
)

// SupportedVersions is the range of schemaVersion values Verify accepts.
const SupportedVersions = "^1.0.0"

var supported = semver.MustParse(SchemaVersion)

// Verification reports the outcome of Verify.
type Verification struct {
	Valid         bool   `json:"valid"`
	Computed      string `json:"computed"`
	Expected      string `json:"expected"`
	SchemaVersion string `json:"schemaVersion"`
}

// Verify recomputes the hash of doc as given and compares it with expected.
// doc may be an *models.AttestationV1, a json.RawMessage, or any value that
// marshals to the document's JSON; fields unknown to the struct are hashed
// too. Hashes compare case-insensitively. A schema version outside
// SupportedVersions fails with errors.ErrUnsupportedSchemaVersion before any
// hashing, and a SchemaVersion document that breaks the schema fails with
// errors.ErrSchema.
func Verify(doc interface{}, expected string) (Verification, error) {
	generic, err := toGeneric(doc)
	if err != nil {
		return Verification{}, err
	}
	obj, ok := generic.(map[string]interface{})
	if !ok {
		return Verification{}, apperrors.Wrap(apperrors.ErrSchema, "document is not an object")
	}
	version, _ := obj["schemaVersion"].(string)
	if err := CheckVersion(version); err != nil {
		return Verification{}, err
	}
	if version == SchemaVersion {
		if err := Validate(generic); err != nil {
			return Verification{}, err
		}
	}
	computed, err := Hash(generic)
	if err != nil {
		return Verification{}, err
	}
	return Verification{
		Valid:         strings.EqualFold(computed, strings.TrimSpace(expected)),
		Computed:      computed,
		Expected:      expected,
		SchemaVersion: version,
	}, nil
}

// CheckVersion reports whether version falls in SupportedVersions.
func CheckVersion(version string) error {
	v, err := semver.NewVersion(version)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrUnsupportedSchemaVersion, "%q: %v", version, err)
	}
	c, err := semver.NewConstraint(SupportedVersions)
	if err != nil {
		return fmt.Errorf("version constraint: %w", err)
	}
	if !c.Check(v) {
		return apperrors.Wrap(apperrors.ErrUnsupportedSchemaVersion, "%s not in %s (built %s)", version, SupportedVersions, supported)
	}
	return nil
}
