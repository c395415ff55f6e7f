package transfer

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/pkg/errors"
)

// EncodePayload serializes p as an RLP list.
func EncodePayload(p *Payload) ([]byte, error) {
	if p.Amount == nil || p.Amount.Sign() < 0 {
		return nil, errors.Wrap(ErrInvalidOrder, "payload amount must be non-negative")
	}

	b, err := rlp.EncodeToBytes(p)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode payload")
	}

	return b, nil
}

// DecodePayload parses a transfer payload. Bodies that are not transfer
// payloads fail with ErrUnknownOp or a decoding error.
func DecodePayload(body []byte) (*Payload, error) {
	if len(body) == 0 {
		return nil, errors.New("empty payload")
	}

	var p Payload
	if err := rlp.DecodeBytes(body, &p); err != nil {
		return nil, errors.Wrap(err, "failed to decode payload")
	}

	if p.Op != OpTransfer {
		return nil, errors.Wrapf(ErrUnknownOp, "op 0x%08x", p.Op)
	}

	return &p, nil
}

type unsignedEnvelope struct {
	Seqno  uint64
	From   common.Address
	To     common.Address
	Value  *big.Int
	Body   []byte
	Bounce bool
}

func (e *Envelope) unsigned() *unsignedEnvelope {
	value := e.Value
	if value == nil {
		value = new(big.Int)
	}

	return &unsignedEnvelope{
		Seqno:  e.Seqno,
		From:   e.From,
		To:     e.To,
		Value:  value,
		Body:   e.Body,
		Bounce: e.Bounce,
	}
}

// SigningHash is keccak256 of the envelope without its signature.
func (e *Envelope) SigningHash() (common.Hash, error) {
	b, err := rlp.EncodeToBytes(e.unsigned())
	if err != nil {
		return common.Hash{}, errors.Wrap(err, "failed to encode envelope")
	}

	return crypto.Keccak256Hash(b), nil
}

// Reference identifies the envelope in logs.
func (e *Envelope) Reference() string {
	hash, err := e.SigningHash()
	if err != nil {
		return ""
	}

	return hash.Hex()
}

// EncodeEnvelope serializes a signed envelope.
func EncodeEnvelope(e *Envelope) ([]byte, error) {
	if e.Value == nil {
		e.Value = new(big.Int)
	}

	b, err := rlp.EncodeToBytes(e)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode envelope")
	}

	return b, nil
}

// DecodeEnvelope parses a signed envelope.
func DecodeEnvelope(raw []byte) (*Envelope, error) {
	var e Envelope
	if err := rlp.DecodeBytes(raw, &e); err != nil {
		return nil, errors.Wrap(err, "failed to decode envelope")
	}

	return &e, nil
}

// RecoverSender returns the address that signed e.
func RecoverSender(e *Envelope) (common.Address, error) {
	if len(e.Signature) != crypto.SignatureLength {
		return common.Address{}, ErrInvalidSignature
	}

	hash, err := e.SigningHash()
	if err != nil {
		return common.Address{}, err
	}

	pub, err := crypto.SigToPub(hash.Bytes(), e.Signature)
	if err != nil {
		return common.Address{}, errors.Wrap(ErrInvalidSignature, err.Error())
	}

	return crypto.PubkeyToAddress(*pub), nil
}
