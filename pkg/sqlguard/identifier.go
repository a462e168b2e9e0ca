// Package sqlguard screens identifiers that arrive from configuration before they
// reach generated SQL. Dialect builders still quote every identifier.
package sqlguard

import (
	"fmt"
	"unicode"

	libinjection "github.com/corazawaf/libinjection-go"

	"github.com/ekaya-inc/ekaya-pipeline/pkg/apperrors"
)

// MaxIdentifierLength covers the longest limit among supported dialects (SQL Server, 128).
const MaxIdentifierLength = 128

// IdentifierCheckResult describes why an identifier was rejected.
type IdentifierCheckResult struct {
	Kind        string // "table", "column", ...
	Name        string
	Reason      string
	Fingerprint string // libinjection fingerprint when Reason is an injection match
}

func (r *IdentifierCheckResult) Error() string {
	if r.Fingerprint != "" {
		return fmt.Sprintf("%s name %q rejected: %s (fingerprint %s)", r.Kind, r.Name, r.Reason, r.Fingerprint)
	}
	return fmt.Sprintf("%s name %q rejected: %s", r.Kind, r.Name, r.Reason)
}

// CheckIdentifier returns nil if name is acceptable as a table or column identifier.
func CheckIdentifier(kind, name string) *IdentifierCheckResult {
	if name == "" {
		return &IdentifierCheckResult{Kind: kind, Name: name, Reason: "empty"}
	}
	if len(name) > MaxIdentifierLength {
		return &IdentifierCheckResult{Kind: kind, Name: name, Reason: "too long"}
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return &IdentifierCheckResult{Kind: kind, Name: name, Reason: "control character"}
		}
	}
	if isSQLi, fingerprint := libinjection.IsSQLi(name); isSQLi {
		return &IdentifierCheckResult{Kind: kind, Name: name, Reason: "SQL injection pattern", Fingerprint: string(fingerprint)}
	}
	return nil
}

// ValidateIdentifier wraps CheckIdentifier as a configuration error.
func ValidateIdentifier(kind, name string) error {
	if res := CheckIdentifier(kind, name); res != nil {
		return fmt.Errorf("%w: %s", apperrors.ErrInvalidConfig, res.Error())
	}
	return nil
}

// ValidateIdentifiers checks every name and reports the first rejection.
func ValidateIdentifiers(kind string, names []string) error {
	for _, name := range names {
		if err := ValidateIdentifier(kind, name); err != nil {
			return err
		}
	}
	return nil
}
