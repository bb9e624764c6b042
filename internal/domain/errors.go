package domain

import "errors"

var (
	// ErrTeamNotFound is returned when the referenced team does not exist.
	ErrTeamNotFound = errors.New("team not found")
	// ErrTeamExists is returned when a registration reuses a team name.
	ErrTeamExists = errors.New("team name already taken")
	// ErrQuestionSetUnavailable indicates the question bank could not supply a set.
	ErrQuestionSetUnavailable = errors.New("question set unavailable")
	// ErrAlreadyCompleted rejects a submission for an already-completed slot or round.
	ErrAlreadyCompleted = errors.New("already completed")
	// ErrAttemptsExhausted rejects an aptitude attempt past the cap.
	ErrAttemptsExhausted = errors.New("attempts exhausted")
	// ErrQuestionLocked rejects a submission for a slot that is not yet unlocked.
	ErrQuestionLocked = errors.New("question locked")
	// ErrInvalidChallengeType rejects an unknown coding challenge type.
	ErrInvalidChallengeType = errors.New("invalid challenge type")
	// ErrInvalidStatus rejects an unknown competition status before any write.
	ErrInvalidStatus = errors.New("invalid competition status")
	// ErrConflict indicates a racing write lost the compare-and-swap check.
	ErrConflict = errors.New("concurrent modification")
	// ErrInvalidCredentials is returned on a failed login.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrCodeInvalid is returned when a round access code does not match or is inactive.
	ErrCodeInvalid = errors.New("invalid round code")
	// ErrValidation flags malformed input, rejected before any state is read.
	ErrValidation = errors.New("validation failed")
)
