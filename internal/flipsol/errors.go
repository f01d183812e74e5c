package flipsol

// Program error codes (Anchor custom errors start at 6000).
const (
	ErrCodeInvalidSide uint32 = 6000 + iota
	ErrCodeRoundExpired
	ErrCodeRoundSettled
	ErrCodeAlreadyBet
	ErrCodeRoundNotExpired
	ErrCodeAlreadySettled
	ErrCodeNoBets
	ErrCodeRoundNotSettled
	ErrCodeAlreadyClaimed
	ErrCodeNotWinner
	ErrCodeNoWinners
	ErrCodeUnauthorized
	ErrCodeInvalidDuration
)

// Anchor framework account constraint codes.
const (
	ErrCodeConstraintSeeds              uint32 = 2006
	ErrCodeAccountDiscriminatorNotFound uint32 = 3001
	ErrCodeAccountDiscriminatorMismatch uint32 = 3002
	ErrCodeAccountOwnedByWrongProgram   uint32 = 3007
	ErrCodeAccountNotInitialized        uint32 = 3012
)

// IsAccountDependencyCode reports codes meaning an auxiliary account is
// missing, mis-owned or at the wrong address, as opposed to the round itself
// being in the wrong state.
func IsAccountDependencyCode(code uint32) bool {
	switch code {
	case ErrCodeConstraintSeeds,
		ErrCodeAccountDiscriminatorNotFound,
		ErrCodeAccountDiscriminatorMismatch,
		ErrCodeAccountOwnedByWrongProgram,
		ErrCodeAccountNotInitialized:
		return true
	}
	return false
}
