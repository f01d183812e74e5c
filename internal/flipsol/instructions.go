package flipsol

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"time"

	"flipsol-keeper/internal/chain"
)

// MaxRoundDuration is the longest round start_round accepts.
const MaxRoundDuration = 24 * time.Hour

var ErrInvalidDuration = errors.New("round duration must be between 1s and 24h")

var (
	closeRoundDiscriminator         = instructionDiscriminator("close_round")
	distributeToCreditDiscriminator = instructionDiscriminator("distribute_to_credit")
	startRoundDiscriminator         = instructionDiscriminator("start_round")
)

func instructionDiscriminator(name string) []byte {
	sum := sha256.Sum256([]byte("global:" + name))
	return sum[:8]
}

type CloseRoundAccounts struct {
	GlobalState chain.PublicKey
	Round       chain.PublicKey
	Treasury    chain.PublicKey
	Authority   chain.PublicKey
}

// NewCloseRoundInstruction settles a round. Account order is fixed by the
// program; the retired jackpot account is not part of it.
func NewCloseRoundInstruction(program chain.PublicKey, acc CloseRoundAccounts) chain.Instruction {
	return chain.Instruction{
		ProgramID: program,
		Accounts: []chain.AccountMeta{
			chain.Readonly(acc.GlobalState),
			chain.Writable(acc.Round),
			chain.Writable(acc.Treasury),
			chain.Signer(acc.Authority, true),
			chain.Readonly(chain.SystemProgramID),
		},
		Data: append([]byte(nil), closeRoundDiscriminator...),
	}
}

type DistributeAccounts struct {
	GlobalState chain.PublicKey
	Round       chain.PublicKey
	UserBet     chain.PublicKey
	UserCredit  chain.PublicKey
	Authority   chain.PublicKey
}

func NewDistributeToCreditInstruction(program chain.PublicKey, acc DistributeAccounts) chain.Instruction {
	return chain.Instruction{
		ProgramID: program,
		Accounts: []chain.AccountMeta{
			chain.Readonly(acc.GlobalState),
			chain.Writable(acc.Round),
			chain.Writable(acc.UserBet),
			chain.Writable(acc.UserCredit),
			chain.Signer(acc.Authority, true),
			chain.Readonly(chain.SystemProgramID),
		},
		Data: append([]byte(nil), distributeToCreditDiscriminator...),
	}
}

type StartRoundAccounts struct {
	GlobalState chain.PublicKey
	Round       chain.PublicKey
	Authority   chain.PublicKey
}

func NewStartRoundInstruction(program chain.PublicKey, acc StartRoundAccounts, duration time.Duration) (chain.Instruction, error) {
	if duration < time.Second || duration > MaxRoundDuration {
		return chain.Instruction{}, ErrInvalidDuration
	}
	data := make([]byte, 16)
	copy(data, startRoundDiscriminator)
	binary.LittleEndian.PutUint64(data[8:], uint64(int64(duration/time.Second)))
	return chain.Instruction{
		ProgramID: program,
		Accounts: []chain.AccountMeta{
			chain.Writable(acc.GlobalState),
			chain.Writable(acc.Round),
			chain.Signer(acc.Authority, true),
			chain.Readonly(chain.SystemProgramID),
		},
		Data: data,
	}, nil
}
