// Package safety classifies statements before they reach a database.
//
// Classification is keyword based and does not parse SQL. A WHERE inside a
// comment or string literal satisfies the WHERE check, and a WHERE hidden in a
// comment can make an otherwise filtered statement look unfiltered. Both are
// known limitations of the heuristic.
package safety

import (
	"regexp"
	"strings"
)

// Decision is the outcome of Classify.
type Decision int

const (
	Allowed Decision = iota
	Blocked
	NeedsConfirmation
)

func (d Decision) String() string {
	switch d {
	case Allowed:
		return "allowed"
	case Blocked:
		return "blocked"
	case NeedsConfirmation:
		return "needs_confirmation"
	default:
		return "unknown"
	}
}

// ConfirmationKind names the statement class that needs explicit approval.
type ConfirmationKind string

const (
	DropTable  ConfirmationKind = "DROP_TABLE"
	Truncate   ConfirmationKind = "TRUNCATE"
	AlterTable ConfirmationKind = "ALTER_TABLE"
)

// Block reasons.
const (
	ReasonDeleteWithoutWhere = "DELETE requires WHERE"
	ReasonUpdateWithoutWhere = "UPDATE requires WHERE"
)

// Verdict is the classification of one statement. Kind is set only for NeedsConfirmation.
type Verdict struct {
	Decision Decision
	Kind     ConfirmationKind
	Reason   string
}

var (
	deletePattern     = regexp.MustCompile(`(?i)^\s*DELETE\s+FROM\s+`)
	updatePattern     = regexp.MustCompile(`(?i)^\s*UPDATE\s+`)
	wherePattern      = regexp.MustCompile(`(?i)\bWHERE\b`)
	dropTablePattern  = regexp.MustCompile(`(?i)^\s*DROP\s+TABLE\b`)
	truncatePattern   = regexp.MustCompile(`(?i)^\s*TRUNCATE\b`)
	alterTablePattern = regexp.MustCompile(`(?i)^\s*ALTER\s+TABLE\b`)
)

// Classify applies the rules in order: unfiltered DELETE and UPDATE are
// blocked; DROP TABLE, TRUNCATE and ALTER TABLE need confirmation; anything
// else is allowed.
func Classify(statement string) Verdict {
	s := strings.TrimSpace(statement)

	if deletePattern.MatchString(s) && !wherePattern.MatchString(s) {
		return Verdict{Decision: Blocked, Reason: ReasonDeleteWithoutWhere}
	}
	if updatePattern.MatchString(s) && !wherePattern.MatchString(s) {
		return Verdict{Decision: Blocked, Reason: ReasonUpdateWithoutWhere}
	}

	switch {
	case dropTablePattern.MatchString(s):
		return confirm(DropTable, "DROP TABLE requires confirmation")
	case truncatePattern.MatchString(s):
		return confirm(Truncate, "TRUNCATE requires confirmation")
	case alterTablePattern.MatchString(s):
		return confirm(AlterTable, "ALTER TABLE requires confirmation")
	}

	return Verdict{Decision: Allowed}
}

func confirm(kind ConfirmationKind, reason string) Verdict {
	return Verdict{Decision: NeedsConfirmation, Kind: kind, Reason: reason}
}

// Operation is the write verb recorded on a preview.
type Operation string

const (
	OpInsert  Operation = "INSERT"
	OpUpdate  Operation = "UPDATE"
	OpDelete  Operation = "DELETE"
	OpUnknown Operation = "UNKNOWN"
)

// DetectOperation returns the leading write verb of statement.
func DetectOperation(statement string) Operation {
	upper := strings.ToUpper(strings.TrimSpace(statement))
	for _, op := range []Operation{OpInsert, OpUpdate, OpDelete} {
		if strings.HasPrefix(upper, string(op)) {
			return op
		}
	}
	return OpUnknown
}
