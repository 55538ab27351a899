// Package errors provides structured error handling for the game core.
package errors

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Combat engine contract errors
	CodeCombatUnknownTarget  Code = "COMBAT_UNKNOWN_TARGET"
	CodeCombatMissingTarget  Code = "COMBAT_MISSING_TARGET"
	CodeCombatNegativeCommit Code = "COMBAT_NEGATIVE_COMMIT"
	CodeCombatUnknownAction  Code = "COMBAT_UNKNOWN_ACTION"

	// Encounter errors
	CodeEncounterNotFound     Code = "ENCOUNTER_NOT_FOUND"
	CodeEncounterAlreadyEnded Code = "ENCOUNTER_ALREADY_ENDED"
	CodeEncounterTooFew       Code = "ENCOUNTER_TOO_FEW_COMBATANTS"
	CodeParticipantNotFound   Code = "PARTICIPANT_NOT_FOUND"
	CodeAlreadyInCombat       Code = "COMBAT_ALREADY_ENGAGED"

	// Garrison errors
	CodeGarrisonNotFound        Code = "GARRISON_NOT_FOUND"
	CodeGarrisonNotOwner        Code = "GARRISON_NOT_OWNER"
	CodeGarrisonInvalidMode     Code = "GARRISON_INVALID_MODE"
	CodeGarrisonInvalidToll     Code = "GARRISON_INVALID_TOLL"
	CodeGarrisonInvalidFighters Code = "GARRISON_INVALID_FIGHTERS"
	CodeGarrisonOwnerInTransit  Code = "GARRISON_OWNER_IN_HYPERSPACE"
	CodeCharacterInHyperspace   Code = "CHARACTER_IN_HYPERSPACE"

	// Trade errors
	CodeTradePortNotFound       Code = "TRADE_PORT_NOT_FOUND"
	CodeTradeUnknownCommodity   Code = "TRADE_UNKNOWN_COMMODITY"
	CodeTradeInsufficientStock  Code = "TRADE_INSUFFICIENT_STOCK"
	CodeTradeInsufficientCredit Code = "TRADE_INSUFFICIENT_CREDITS"
	CodeTradeInsufficientCargo  Code = "TRADE_INSUFFICIENT_CARGO"
	CodeTradeInvalidQuantity    Code = "TRADE_INVALID_QUANTITY"

	// Rankings errors
	CodeRankingsSnapshotMissing Code = "RANKINGS_SNAPSHOT_MISSING"
	CodeRankingsSchemaMismatch  Code = "RANKINGS_SCHEMA_MISMATCH"

	// Universe errors
	CodeSectorNotFound  Code = "SECTOR_NOT_FOUND"
	CodeMoveNotAdjacent Code = "MOVE_NOT_ADJACENT"

	// Transport errors
	CodeMethodNotFound Code = "METHOD_NOT_FOUND"

	// Storage errors
	CodeNotFound Code = "NOT_FOUND"
)

// Status is the transport-agnostic status class carried alongside a code.
// The RPC boundary serializes it verbatim into error envelopes.
type Status string

const (
	StatusInvalidArgument    Status = "invalid_argument"
	StatusNotFound           Status = "not_found"
	StatusPermissionDenied   Status = "permission_denied"
	StatusFailedPrecondition Status = "failed_precondition"
	StatusUnavailable        Status = "unavailable"
	StatusInternal           Status = "internal"
)

// RPCStatus maps domain codes to wire status classes.
func (c Code) RPCStatus() Status {
	switch c {
	// invalid_argument - validation failures, bad input
	case CodeCombatUnknownTarget,
		CodeCombatMissingTarget,
		CodeCombatNegativeCommit,
		CodeCombatUnknownAction,
		CodeGarrisonInvalidMode,
		CodeGarrisonInvalidToll,
		CodeGarrisonInvalidFighters,
		CodeTradeUnknownCommodity,
		CodeTradeInvalidQuantity,
		CodeMoveNotAdjacent:
		return StatusInvalidArgument

	// not_found - the referenced entity does not exist
	case CodeEncounterNotFound,
		CodeParticipantNotFound,
		CodeGarrisonNotFound,
		CodeTradePortNotFound,
		CodeSectorNotFound,
		CodeRankingsSnapshotMissing,
		CodeMethodNotFound,
		CodeNotFound:
		return StatusNotFound

	// permission_denied - caller is not allowed to mutate the entity
	case CodeGarrisonNotOwner:
		return StatusPermissionDenied

	// failed_precondition - state doesn't allow the operation
	case CodeEncounterAlreadyEnded,
		CodeEncounterTooFew,
		CodeAlreadyInCombat,
		CodeGarrisonOwnerInTransit,
		CodeCharacterInHyperspace,
		CodeTradeInsufficientStock,
		CodeTradeInsufficientCredit,
		CodeTradeInsufficientCargo:
		return StatusFailedPrecondition

	// unavailable - derived data is not currently readable
	case CodeRankingsSchemaMismatch:
		return StatusUnavailable

	default:
		return StatusInternal
	}
}
