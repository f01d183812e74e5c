package chain

import (
	"errors"
	"fmt"
)

var (
	ErrNoInstructions   = errors.New("transaction has no instructions")
	ErrMissingSigner    = errors.New("missing signer")
	ErrUnexpectedSigner = errors.New("keypair is not a required signer")
)

type AccountMeta struct {
	PublicKey  PublicKey
	IsSigner   bool
	IsWritable bool
}

func Writable(pk PublicKey) AccountMeta { return AccountMeta{PublicKey: pk, IsWritable: true} }

func Readonly(pk PublicKey) AccountMeta { return AccountMeta{PublicKey: pk} }

func Signer(pk PublicKey, writable bool) AccountMeta {
	return AccountMeta{PublicKey: pk, IsSigner: true, IsWritable: writable}
}

type Instruction struct {
	ProgramID PublicKey
	Accounts  []AccountMeta
	Data      []byte
}

type MessageHeader struct {
	NumRequiredSignatures       uint8
	NumReadonlySignedAccounts   uint8
	NumReadonlyUnsignedAccounts uint8
}

type CompiledInstruction struct {
	ProgramIDIndex uint8
	AccountIndexes []uint8
	Data           []byte
}

// Message is a legacy transaction message.
type Message struct {
	Header          MessageHeader
	AccountKeys     []PublicKey
	RecentBlockhash Hash
	Instructions    []CompiledInstruction
}

// CompileMessage orders accounts as fee payer, writable signers, readonly
// signers, writable non-signers, readonly non-signers. Flags for a key that
// appears more than once are merged.
func CompileMessage(feePayer PublicKey, blockhash Hash, ixs ...Instruction) (Message, error) {
	if len(ixs) == 0 {
		return Message{}, ErrNoInstructions
	}

	order := []PublicKey{feePayer}
	metas := map[PublicKey]*AccountMeta{feePayer: {PublicKey: feePayer, IsSigner: true, IsWritable: true}}
	add := func(m AccountMeta) {
		if existing, ok := metas[m.PublicKey]; ok {
			existing.IsSigner = existing.IsSigner || m.IsSigner
			existing.IsWritable = existing.IsWritable || m.IsWritable
			return
		}
		cp := m
		metas[m.PublicKey] = &cp
		order = append(order, m.PublicKey)
	}
	for _, ix := range ixs {
		for _, acc := range ix.Accounts {
			add(acc)
		}
		add(Readonly(ix.ProgramID))
	}

	var buckets [4][]PublicKey
	for _, pk := range order[1:] {
		m := metas[pk]
		switch {
		case m.IsSigner && m.IsWritable:
			buckets[0] = append(buckets[0], pk)
		case m.IsSigner:
			buckets[1] = append(buckets[1], pk)
		case m.IsWritable:
			buckets[2] = append(buckets[2], pk)
		default:
			buckets[3] = append(buckets[3], pk)
		}
	}
	keys := make([]PublicKey, 0, len(order))
	keys = append(keys, feePayer)
	for _, b := range buckets {
		keys = append(keys, b...)
	}
	if len(keys) > 256 {
		return Message{}, fmt.Errorf("too many accounts: %d", len(keys))
	}

	index := make(map[PublicKey]uint8, len(keys))
	for i, pk := range keys {
		index[pk] = uint8(i)
	}

	msg := Message{
		Header: MessageHeader{
			NumRequiredSignatures:       uint8(1 + len(buckets[0]) + len(buckets[1])),
			NumReadonlySignedAccounts:   uint8(len(buckets[1])),
			NumReadonlyUnsignedAccounts: uint8(len(buckets[3])),
		},
		AccountKeys:     keys,
		RecentBlockhash: blockhash,
	}
	for _, ix := range ixs {
		ci := CompiledInstruction{
			ProgramIDIndex: index[ix.ProgramID],
			AccountIndexes: make([]uint8, len(ix.Accounts)),
			Data:           ix.Data,
		}
		for i, acc := range ix.Accounts {
			ci.AccountIndexes[i] = index[acc.PublicKey]
		}
		msg.Instructions = append(msg.Instructions, ci)
	}
	return msg, nil
}

func (m Message) Serialize() []byte {
	out := []byte{m.Header.NumRequiredSignatures, m.Header.NumReadonlySignedAccounts, m.Header.NumReadonlyUnsignedAccounts}
	out = appendCompactU16(out, len(m.AccountKeys))
	for _, k := range m.AccountKeys {
		out = append(out, k[:]...)
	}
	out = append(out, m.RecentBlockhash[:]...)
	out = appendCompactU16(out, len(m.Instructions))
	for _, ix := range m.Instructions {
		out = append(out, ix.ProgramIDIndex)
		out = appendCompactU16(out, len(ix.AccountIndexes))
		out = append(out, ix.AccountIndexes...)
		out = appendCompactU16(out, len(ix.Data))
		out = append(out, ix.Data...)
	}
	return out
}

type Transaction struct {
	Signatures []Signature
	Message    Message
}

func NewTransaction(feePayer PublicKey, blockhash Hash, ixs ...Instruction) (*Transaction, error) {
	msg, err := CompileMessage(feePayer, blockhash, ixs...)
	if err != nil {
		return nil, err
	}
	return &Transaction{
		Signatures: make([]Signature, msg.Header.NumRequiredSignatures),
		Message:    msg,
	}, nil
}

// Sign fills the signature slot of every given keypair.
func (tx *Transaction) Sign(signers ...Keypair) error {
	payload := tx.Message.Serialize()
	required := tx.Message.AccountKeys[:tx.Message.Header.NumRequiredSignatures]
	for _, kp := range signers {
		pk := kp.PublicKey()
		found := false
		for i, key := range required {
			if key == pk {
				tx.Signatures[i] = kp.Sign(payload)
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("%w: %s", ErrUnexpectedSigner, pk)
		}
	}
	return nil
}

func (tx *Transaction) Serialize() ([]byte, error) {
	for i, sig := range tx.Signatures {
		if sig.IsZero() {
			return nil, fmt.Errorf("%w: %s", ErrMissingSigner, tx.Message.AccountKeys[i])
		}
	}
	out := appendCompactU16(nil, len(tx.Signatures))
	for _, sig := range tx.Signatures {
		out = append(out, sig[:]...)
	}
	return append(out, tx.Message.Serialize()...), nil
}

func appendCompactU16(b []byte, n int) []byte {
	for {
		elem := byte(n & 0x7f)
		n >>= 7
		if n == 0 {
			return append(b, elem)
		}
		b = append(b, elem|0x80)
	}
}
