package vtab

import "github.com/nuuskamummu/sqlite3-partitioner/internal/predicate"

// Host constraint opcodes, as defined by SQLite's virtual-table ABI
// (sqlite3.h SQLITE_INDEX_CONSTRAINT_*) and mirrored by go-sqlite3's
// InfoConstraint.Op.
const (
	opEQ     = 2
	opGT     = 4
	opLE     = 8
	opLT     = 16
	opGE     = 32
	opMATCH  = 64
	opLIKE   = 65
	opGLOB   = 66
	opREGEXP = 67
	opNE     = 68
	opISNOT  = 69
	opISNULL = 71
	opIS     = 72
)

// mapOp translates a host opcode into the module's internal predicate.Op.
// Opcodes this module doesn't model for pushdown (NE, ISNULL/ISNOTNULL,
// LIMIT/OFFSET) report ok=false; BestIndex leaves those constraints for the
// host to recheck.
func mapOp(hostOp byte) (predicate.Op, bool) {
	switch int(hostOp) {
	case opEQ:
		return predicate.OpEQ, true
	case opGT:
		return predicate.OpGT, true
	case opLE:
		return predicate.OpLE, true
	case opLT:
		return predicate.OpLT, true
	case opGE:
		return predicate.OpGE, true
	case opIS:
		return predicate.OpIS, true
	case opISNOT:
		return predicate.OpISNOT, true
	case opMATCH:
		return predicate.OpMATCH, true
	case opLIKE:
		return predicate.OpLIKE, true
	case opGLOB:
		return predicate.OpGLOB, true
	case opREGEXP:
		return predicate.OpREGEXP, true
	default:
		return 0, false
	}
}
