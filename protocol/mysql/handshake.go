// Package mysql is a demo protocol module for the DCB core. Ops (ops.go)
// implements dcb.ProtocolOps over plain TCP against the DCB read and
// write queue paths; this file holds a minimal, MySQL-flavoured
// handshake codec over protobuf wire encoding, which Ops does not call.
package mysql

import (
	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

const (
	fieldConnectionID protowire.Number = 1
	fieldAuthSeed      protowire.Number = 2
)

// ErrMalformedHandshake is returned by DecodeHandshake when b is not a
// well-formed handshake payload.
var ErrMalformedHandshake = errors.New("mysql: malformed handshake payload")

// EncodeHandshake serializes a connection id and auth seed using raw
// protobuf wire encoding: a varint field and a length-delimited bytes
// field, matching the shape (if not the full schema) of a MySQL initial
// handshake packet's connection-id/auth-plugin-data pair.
func EncodeHandshake(connID uint64, seed []byte) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldConnectionID, protowire.VarintType)
	b = protowire.AppendVarint(b, connID)
	b = protowire.AppendTag(b, fieldAuthSeed, protowire.BytesType)
	b = protowire.AppendBytes(b, seed)
	return b
}

// DecodeHandshake parses a payload produced by EncodeHandshake. Unknown
// fields are skipped rather than rejected, matching protobuf's
// forward-compatibility convention.
func DecodeHandshake(b []byte) (connID uint64, seed []byte, err error) {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return 0, nil, errors.Wrap(ErrMalformedHandshake, "tag")
		}
		b = b[n:]
		switch {
		case num == fieldConnectionID && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return 0, nil, errors.Wrap(ErrMalformedHandshake, "connection id")
			}
			connID = v
			b = b[n:]
		case num == fieldAuthSeed && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return 0, nil, errors.Wrap(ErrMalformedHandshake, "auth seed")
			}
			seed = append([]byte{}, v...)
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return 0, nil, errors.Wrap(ErrMalformedHandshake, "unknown field")
			}
			b = b[n:]
		}
	}
	return connID, seed, nil
}
