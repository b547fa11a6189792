// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package mint

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ipfs/go-datastore"
	"github.com/project-illium/mintd/repo"
	"github.com/project-illium/mintd/types"
	"google.golang.org/protobuf/encoding/protowire"
)

// KeyPath is the binary form of a key inside a namespace. Every segment
// has a fixed layout so the byte order of paths is the order of the keys
// they encode.
type KeyPath [][]byte

// KeySchema binds a namespace tag to the key and value types stored
// under it.
type KeySchema[K any, V any] interface {
	Tag() byte
	EncodeKey(K) KeyPath
	DecodeKey(KeyPath) (K, error)
	EncodeValue(V) ([]byte, error)
	DecodeValue([]byte) (V, error)
}

// namespaceKey returns the datastore key for a path in the namespace.
// Segments are written as lower case hex which sorts the same as the
// raw bytes. A path that is a prefix of another path selects exactly the
// keys beneath it in a prefix query.
func namespaceKey(tag byte, path KeyPath) datastore.Key {
	var sb strings.Builder
	sb.WriteString(repo.MintDatastoreRoot)
	sb.WriteByte('/')
	sb.WriteString(hex.EncodeToString([]byte{tag}))
	for _, seg := range path {
		sb.WriteByte('/')
		sb.WriteString(hex.EncodeToString(seg))
	}
	return datastore.NewKey(sb.String())
}

// parseNamespaceKey is the reverse of namespaceKey.
func parseNamespaceKey(tag byte, key string) (KeyPath, error) {
	root := namespaceKey(tag, nil).String()
	if key == root {
		return KeyPath{}, nil
	}
	if !strings.HasPrefix(key, root+"/") {
		return nil, fmt.Errorf("key is not in namespace %s", repo.NamespaceName(tag))
	}
	parts := strings.Split(key[len(root)+1:], "/")
	path := make(KeyPath, 0, len(parts))
	for _, p := range parts {
		seg, err := hex.DecodeString(p)
		if err != nil {
			return nil, err
		}
		path = append(path, seg)
	}
	return path, nil
}

func checkPath(path KeyPath, sizes ...int) error {
	if len(path) != len(sizes) {
		return fmt.Errorf("expected %d key segments, got %d", len(sizes), len(path))
	}
	for i, size := range sizes {
		if len(path[i]) != size {
			return fmt.Errorf("key segment %d must be %d bytes", i, size)
		}
	}
	return nil
}

// NonceSchema stores spent note nonces. The value is empty.
type NonceSchema struct{}

func (NonceSchema) Tag() byte { return repo.NoteNonceTag }

func (NonceSchema) EncodeKey(n types.Nonce) KeyPath {
	return KeyPath{n.Bytes()}
}

func (NonceSchema) DecodeKey(path KeyPath) (types.Nonce, error) {
	if err := checkPath(path, types.NonceSize); err != nil {
		return types.Nonce{}, err
	}
	return types.NewNonce(path[0]), nil
}

func (NonceSchema) EncodeValue(struct{}) ([]byte, error) {
	return []byte{}, nil
}

func (NonceSchema) DecodeValue(b []byte) (struct{}, error) {
	if len(b) != 0 {
		return struct{}{}, errors.New("nonce marker must be empty")
	}
	return struct{}{}, nil
}

// ProposedShareSchema stores our own signature shares awaiting
// inclusion by consensus.
type ProposedShareSchema struct{}

func (ProposedShareSchema) Tag() byte { return repo.ProposedPartialSigTag }

func (ProposedShareSchema) EncodeKey(op types.OutPoint) KeyPath {
	return KeyPath{op.Bytes()}
}

func (ProposedShareSchema) DecodeKey(path KeyPath) (types.OutPoint, error) {
	if err := checkPath(path, types.OutPointSize); err != nil {
		return types.OutPoint{}, err
	}
	return types.NewOutPointFromBytes(path[0])
}

func (ProposedShareSchema) EncodeValue(share SignatureShare) ([]byte, error) {
	return encodeShare(share), nil
}

func (ProposedShareSchema) DecodeValue(b []byte) (SignatureShare, error) {
	return decodeShare(b)
}

// ReceivedShareKey identifies the share one peer contributed to an output.
type ReceivedShareKey struct {
	OutPoint types.OutPoint `json:"outpoint"`
	Peer     types.PeerID   `json:"peer"`
}

// ReceivedShareSchema stores shares delivered by consensus, keyed by
// outpoint then peer so all shares of an output are one prefix scan.
type ReceivedShareSchema struct{}

func (ReceivedShareSchema) Tag() byte { return repo.ReceivedPartialSigTag }

func (ReceivedShareSchema) EncodeKey(k ReceivedShareKey) KeyPath {
	return KeyPath{k.OutPoint.Bytes(), k.Peer.Bytes()}
}

func (ReceivedShareSchema) DecodeKey(path KeyPath) (ReceivedShareKey, error) {
	if err := checkPath(path, types.OutPointSize, types.PeerIDSize); err != nil {
		return ReceivedShareKey{}, err
	}
	op, err := types.NewOutPointFromBytes(path[0])
	if err != nil {
		return ReceivedShareKey{}, err
	}
	peer, err := types.NewPeerIDFromBytes(path[1])
	if err != nil {
		return ReceivedShareKey{}, err
	}
	return ReceivedShareKey{OutPoint: op, Peer: peer}, nil
}

func (ReceivedShareSchema) EncodeValue(share SignatureShare) ([]byte, error) {
	return encodeShare(share), nil
}

func (ReceivedShareSchema) DecodeValue(b []byte) (SignatureShare, error) {
	return decodeShare(b)
}

// outPointPrefix selects every received share of an output.
func (ReceivedShareSchema) outPointPrefix(op types.OutPoint) KeyPath {
	return KeyPath{op.Bytes()}
}

// OutcomeSchema stores the terminal outcome of each output.
type OutcomeSchema struct{}

func (OutcomeSchema) Tag() byte { return repo.OutputOutcomeTag }

func (OutcomeSchema) EncodeKey(op types.OutPoint) KeyPath {
	return KeyPath{op.Bytes()}
}

func (OutcomeSchema) DecodeKey(path KeyPath) (types.OutPoint, error) {
	if err := checkPath(path, types.OutPointSize); err != nil {
		return types.OutPoint{}, err
	}
	return types.NewOutPointFromBytes(path[0])
}

func (OutcomeSchema) EncodeValue(o OutputOutcome) ([]byte, error) {
	if o.Status != StatusFinalized && o.Status != StatusFailed {
		return nil, fmt.Errorf("outcome status %s is not terminal", o.Status)
	}
	b := protowire.AppendTag(nil, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(o.Status))
	b = protowire.AppendTag(b, 2, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(o.Amount))
	b = protowire.AppendTag(b, 3, protowire.BytesType)
	b = protowire.AppendBytes(b, o.Signature)
	b = protowire.AppendTag(b, 4, protowire.BytesType)
	b = protowire.AppendString(b, o.Reason)
	for _, p := range o.Culprits {
		b = protowire.AppendTag(b, 5, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(p))
	}
	return b, nil
}

func (OutcomeSchema) DecodeValue(b []byte) (OutputOutcome, error) {
	var (
		o OutputOutcome
		r = fieldReader{b: b}
	)
	for {
		num, typ, ok := r.next()
		if !ok {
			break
		}
		switch {
		case num == 1 && typ == protowire.VarintType:
			o.Status = OutcomeStatus(r.varint())
		case num == 2 && typ == protowire.VarintType:
			o.Amount = types.Amount(r.varint())
		case num == 3 && typ == protowire.BytesType:
			o.Signature = r.bytes()
		case num == 4 && typ == protowire.BytesType:
			o.Reason = string(r.bytes())
		case num == 5 && typ == protowire.VarintType:
			p := r.varint()
			if p > 0xffff {
				return o, errors.New("culprit peer id out of range")
			}
			o.Culprits = append(o.Culprits, types.PeerID(p))
		default:
			return o, fmt.Errorf("unexpected field %d", num)
		}
	}
	if r.err != nil {
		return o, r.err
	}
	if o.Status != StatusFinalized && o.Status != StatusFailed {
		return o, fmt.Errorf("outcome status %d is not terminal", o.Status)
	}
	return o, nil
}

// AuditItemSchema stores the issuance and redemption ledger.
type AuditItemSchema struct{}

func (AuditItemSchema) Tag() byte { return repo.MintAuditItemTag }

func (AuditItemSchema) EncodeKey(k AuditItemKey) KeyPath {
	switch k.Kind {
	case AuditIssuance:
		return KeyPath{{byte(k.Kind)}, k.OutPoint.Bytes()}
	case AuditRedemption:
		return KeyPath{{byte(k.Kind)}, k.Nonce.Bytes()}
	default:
		return KeyPath{{byte(k.Kind)}}
	}
}

func (AuditItemSchema) DecodeKey(path KeyPath) (AuditItemKey, error) {
	if len(path) == 0 || len(path[0]) != 1 {
		return AuditItemKey{}, errors.New("missing audit item kind")
	}
	switch kind := AuditItemKind(path[0][0]); kind {
	case AuditIssuance:
		if err := checkPath(path, 1, types.OutPointSize); err != nil {
			return AuditItemKey{}, err
		}
		op, err := types.NewOutPointFromBytes(path[1])
		if err != nil {
			return AuditItemKey{}, err
		}
		return IssuanceKey(op), nil
	case AuditRedemption:
		if err := checkPath(path, 1, types.NonceSize); err != nil {
			return AuditItemKey{}, err
		}
		return RedemptionKey(types.NewNonce(path[1])), nil
	case AuditIssuanceTotal, AuditRedemptionTotal:
		if err := checkPath(path, 1); err != nil {
			return AuditItemKey{}, err
		}
		return AuditItemKey{Kind: kind}, nil
	default:
		return AuditItemKey{}, fmt.Errorf("unknown audit item kind %d", kind)
	}
}

func (AuditItemSchema) EncodeValue(a types.Amount) ([]byte, error) {
	return a.ToBytes(), nil
}

func (AuditItemSchema) DecodeValue(b []byte) (types.Amount, error) {
	return types.NewAmountFromBytes(b)
}

// kindPrefix selects all audit items of one kind.
func (AuditItemSchema) kindPrefix(kind AuditItemKind) KeyPath {
	return KeyPath{{byte(kind)}}
}

// BackupSchema stores the latest backup snapshot of each user.
type BackupSchema struct{}

func (BackupSchema) Tag() byte { return repo.EcashBackupTag }

func (BackupSchema) EncodeKey(id types.BackupID) KeyPath {
	return KeyPath{id.Bytes()}
}

func (BackupSchema) DecodeKey(path KeyPath) (types.BackupID, error) {
	if err := checkPath(path, types.BackupIDSize); err != nil {
		return types.BackupID{}, err
	}
	return types.NewBackupIDFromBytes(path[0])
}

func (BackupSchema) EncodeValue(s BackupSnapshot) ([]byte, error) {
	// Seconds and nanos are stored apart, as google.protobuf.Timestamp
	// does, so every time.Time round trips.
	b := protowire.AppendTag(nil, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(s.Timestamp.Unix()))
	b = protowire.AppendTag(b, 2, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(s.Timestamp.Nanosecond()))
	b = protowire.AppendTag(b, 3, protowire.BytesType)
	b = protowire.AppendBytes(b, s.Data)
	return b, nil
}

func (BackupSchema) DecodeValue(b []byte) (BackupSnapshot, error) {
	var (
		s       BackupSnapshot
		r       = fieldReader{b: b}
		seconds int64
		nanos   uint64
		seenTS  bool
	)
	for {
		num, typ, ok := r.next()
		if !ok {
			break
		}
		switch {
		case num == 1 && typ == protowire.VarintType:
			seconds = int64(r.varint())
			seenTS = true
		case num == 2 && typ == protowire.VarintType:
			nanos = r.varint()
		case num == 3 && typ == protowire.BytesType:
			s.Data = r.bytes()
		default:
			return s, fmt.Errorf("unexpected field %d", num)
		}
	}
	if r.err != nil {
		return s, r.err
	}
	if !seenTS {
		return s, errors.New("backup snapshot missing timestamp")
	}
	if nanos >= uint64(time.Second) {
		return s, errors.New("backup timestamp nanos out of range")
	}
	s.Timestamp = time.Unix(seconds, int64(nanos))
	if s.Data == nil {
		s.Data = []byte{}
	}
	return s, nil
}

// EpochSchema stores the last consensus epoch that was applied under a
// single fixed key. The key has one segment so the entry is visible to
// prefix scans of the namespace.
type EpochSchema struct{}

func (EpochSchema) Tag() byte { return repo.ConsensusEpochTag }

func (EpochSchema) EncodeKey(struct{}) KeyPath {
	return KeyPath{{0x00}}
}

func (EpochSchema) DecodeKey(path KeyPath) (struct{}, error) {
	if err := checkPath(path, 1); err != nil {
		return struct{}{}, err
	}
	if path[0][0] != 0x00 {
		return struct{}{}, errors.New("unexpected epoch key")
	}
	return struct{}{}, nil
}

func (EpochSchema) EncodeValue(epoch uint64) ([]byte, error) {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, epoch)
	return b, nil
}

func (EpochSchema) DecodeValue(b []byte) (uint64, error) {
	if len(b) != 8 {
		return 0, errors.New("epoch must be 8 bytes")
	}
	return binary.BigEndian.Uint64(b), nil
}

func encodeShare(share SignatureShare) []byte {
	b := protowire.AppendTag(nil, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(share.Amount))
	b = protowire.AppendTag(b, 2, protowire.BytesType)
	return protowire.AppendBytes(b, share.Share)
}

func decodeShare(b []byte) (SignatureShare, error) {
	var (
		share SignatureShare
		r     = fieldReader{b: b}
	)
	for {
		num, typ, ok := r.next()
		if !ok {
			break
		}
		switch {
		case num == 1 && typ == protowire.VarintType:
			share.Amount = types.Amount(r.varint())
		case num == 2 && typ == protowire.BytesType:
			share.Share = r.bytes()
		default:
			return share, fmt.Errorf("unexpected field %d", num)
		}
	}
	if r.err != nil {
		return share, r.err
	}
	if share.Share == nil {
		share.Share = []byte{}
	}
	return share, nil
}

// fieldReader walks the fields of a protobuf wire format message. The
// first error sticks and ends the walk.
type fieldReader struct {
	b   []byte
	err error
}

func (r *fieldReader) next() (protowire.Number, protowire.Type, bool) {
	if r.err != nil || len(r.b) == 0 {
		return 0, 0, false
	}
	num, typ, n := protowire.ConsumeTag(r.b)
	if n < 0 {
		r.err = protowire.ParseError(n)
		return 0, 0, false
	}
	r.b = r.b[n:]
	return num, typ, true
}

func (r *fieldReader) varint() uint64 {
	if r.err != nil {
		return 0
	}
	v, n := protowire.ConsumeVarint(r.b)
	if n < 0 {
		r.err = protowire.ParseError(n)
		return 0
	}
	r.b = r.b[n:]
	return v
}

func (r *fieldReader) bytes() []byte {
	if r.err != nil {
		return nil
	}
	v, n := protowire.ConsumeBytes(r.b)
	if n < 0 {
		r.err = protowire.ParseError(n)
		return nil
	}
	r.b = r.b[n:]
	c := make([]byte, len(v))
	copy(c, v)
	return c
}
