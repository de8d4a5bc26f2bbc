// Package errors provides standardized error handling for the matching engine.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeInvalidProfile       ErrorCode = "INVALID_PROFILE"
	ErrCodeEmptyGroup           ErrorCode = "EMPTY_GROUP"
	ErrCodeIncompatibleMember   ErrorCode = "INCOMPATIBLE_MEMBER"
	ErrCodeGroupNotForming      ErrorCode = "GROUP_NOT_FORMING"
	ErrCodeNotAMember           ErrorCode = "NOT_A_MEMBER"
	ErrCodeProposalClosed       ErrorCode = "PROPOSAL_CLOSED"
	ErrCodeInvalidVote          ErrorCode = "INVALID_VOTE"
	ErrCodeDuplicateProposal    ErrorCode = "DUPLICATE_PROPOSAL"
	ErrCodeQuorumNotMet         ErrorCode = "QUORUM_NOT_MET"
	ErrCodeConfirmationConflict ErrorCode = "CONFIRMATION_CONFLICT"
	ErrCodeConflict             ErrorCode = "CONFLICT"
	ErrCodeNotFound             ErrorCode = "NOT_FOUND"
	ErrCodeInvitationExpired    ErrorCode = "INVITATION_EXPIRED"
)

// Sentinel errors for errors.Is checks at call boundaries.
var (
	ErrInvalidProfile       = errors.New("INVALID_PROFILE")
	ErrEmptyGroup           = errors.New("EMPTY_GROUP")
	ErrIncompatibleMember   = errors.New("INCOMPATIBLE_MEMBER")
	ErrGroupNotForming      = errors.New("GROUP_NOT_FORMING")
	ErrNotAMember           = errors.New("NOT_A_MEMBER")
	ErrProposalClosed       = errors.New("PROPOSAL_CLOSED")
	ErrInvalidVote          = errors.New("INVALID_VOTE")
	ErrDuplicateProposal    = errors.New("DUPLICATE_PROPOSAL")
	ErrQuorumNotMet         = errors.New("QUORUM_NOT_MET")
	ErrConfirmationConflict = errors.New("CONFIRMATION_CONFLICT")
	ErrConflict             = errors.New("CONFLICT")
	ErrNotFound             = errors.New("NOT_FOUND")
	ErrInvitationExpired    = errors.New("INVITATION_EXPIRED")
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`

	sentinel error
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// Unwrap lets callers match with errors.Is against the package sentinels.
func (e *StandardError) Unwrap() error {
	return e.sentinel
}

// ==========================
// 2. Error Constructors
// ==========================

// NewInvalidProfileError rejects a profile missing required axes or violating
// range invariants. Never retryable; the profile itself is the problem.
func NewInvalidProfileError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidProfile,
		Message:   "Preference profile is missing required axes or violates constraints",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
		sentinel:  ErrInvalidProfile,
	}
}

// NewEmptyGroupError rejects group scoring with fewer than two profiles.
func NewEmptyGroupError(got int) *StandardError {
	return &StandardError{
		Code:      ErrCodeEmptyGroup,
		Message:   "Group scoring requires at least two profiles",
		Details:   fmt.Sprintf("profiles supplied: %d", got),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		sentinel:  ErrEmptyGroup,
	}
}

// NewIncompatibleMemberError rejects a member add that falls below the
// minimum-viability threshold against an existing member.
func NewIncompatibleMemberError(candidateID, memberID string, score, threshold float64) *StandardError {
	return &StandardError{
		Code:      ErrCodeIncompatibleMember,
		Message:   "Candidate is below the minimum-viability threshold with an existing member",
		Details:   fmt.Sprintf("candidate %s vs member %s: score %.1f < threshold %.1f", candidateID, memberID, score, threshold),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		sentinel:  ErrIncompatibleMember,
	}
}

// NewGroupNotFormingError rejects membership mutations outside the forming state.
func NewGroupNotFormingError(groupID, status string) *StandardError {
	return &StandardError{
		Code:      ErrCodeGroupNotForming,
		Message:   "Group membership can only change while the group is forming",
		Details:   fmt.Sprintf("group %s is %s", groupID, status),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		sentinel:  ErrGroupNotForming,
	}
}

// NewNotAMemberError rejects an action by a user outside the group.
func NewNotAMemberError(userID, groupID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotAMember,
		Message:   "User is not a member of the group",
		Details:   fmt.Sprintf("user %s, group %s", userID, groupID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		sentinel:  ErrNotAMember,
	}
}

// NewProposalClosedError rejects votes on a resolved or expired proposal.
// Late votes after the deadline land here as well.
func NewProposalClosedError(proposalID, status string) *StandardError {
	return &StandardError{
		Code:      ErrCodeProposalClosed,
		Message:   "Proposal is no longer open for voting",
		Details:   fmt.Sprintf("proposal %s is %s", proposalID, status),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		sentinel:  ErrProposalClosed,
	}
}

// NewInvalidVoteError rejects a vote value outside approve/reject/abstain
// before anything is persisted.
func NewInvalidVoteError(proposalID, value string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidVote,
		Message:   "Vote value must be approve, reject or abstain",
		Details:   fmt.Sprintf("proposal %s, value %q", proposalID, value),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		sentinel:  ErrInvalidVote,
	}
}

// NewDuplicateProposalError rejects opening a second proposal of a kind that
// already has one open with a different payload. An identical reopen is
// treated as idempotent by the caller and never reaches here.
func NewDuplicateProposalError(groupID, kind string) *StandardError {
	return &StandardError{
		Code:      ErrCodeDuplicateProposal,
		Message:   "A proposal of this kind is already open with a different payload",
		Details:   fmt.Sprintf("group %s, kind %s", groupID, kind),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		sentinel:  ErrDuplicateProposal,
	}
}

// NewQuorumNotMetError is an informational outcome, not a failure: the
// proposal expired because too few members cast a non-abstain vote.
func NewQuorumNotMetError(proposalID string, cast, total int) *StandardError {
	return &StandardError{
		Code:      ErrCodeQuorumNotMet,
		Message:   "Quorum was not met before the deadline",
		Details:   fmt.Sprintf("proposal %s: %d of %d members cast a non-abstain vote", proposalID, cast, total),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		sentinel:  ErrQuorumNotMet,
	}
}

// NewConfirmationConflictError rejects a confirmation arriving after the
// application was already withdrawn.
func NewConfirmationConflictError(applicationID, memberID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeConfirmationConflict,
		Message:   "Confirmation recorded after the application was withdrawn",
		Details:   fmt.Sprintf("application %s, member %s", applicationID, memberID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		sentinel:  ErrConfirmationConflict,
	}
}

// NewConflictError surfaces a lost optimistic-concurrency race on a group's
// consistency domain. Retryable: the caller reloads and reattempts.
func NewConflictError(entity, id string) *StandardError {
	return &StandardError{
		Code:      ErrCodeConflict,
		Message:   "Concurrent update detected, reload and retry",
		Details:   fmt.Sprintf("%s %s", entity, id),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		sentinel:  ErrConflict,
	}
}

// NewNotFoundError reports a missing entity.
func NewNotFoundError(entity, id string) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotFound,
		Message:   fmt.Sprintf("%s not found", entity),
		Details:   id,
		Retryable: false,
		Timestamp: time.Now().UTC(),
		sentinel:  ErrNotFound,
	}
}

// NewInvitationExpiredError rejects responses to an invitation past its expiry.
func NewInvitationExpiredError(invitationID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvitationExpired,
		Message:   "Invitation has expired",
		Details:   invitationID,
		Retryable: false,
		Timestamp: time.Now().UTC(),
		sentinel:  ErrInvitationExpired,
	}
}

// ==========================
// 3. Utility Functions
// ==========================

// IsRetryable reports whether the error carries a retryable code.
func IsRetryable(err error) bool {
	var se *StandardError
	if errors.As(err, &se) {
		return se.Retryable
	}
	return false
}

// CodeOf extracts the ErrorCode, or "" for foreign errors.
func CodeOf(err error) ErrorCode {
	var se *StandardError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}
