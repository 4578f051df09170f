package models

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"gumball/pkg/domain"
)

// Wire layout of a Config record, little-endian:
//
//	tag(8) owner(32) bump(1) status(1) total(4) current(4) flags(1)
//	[pass_token(32)] [collection(32)] count(4) entries(count * 33)
//
// Optional fields are present per the flags byte. Readers size the record
// from the stored entry count, never from a compile-time constant, because
// the allow-list section grows over the record's lifetime.
var recordTag = [8]byte{'g', 'u', 'm', 'b', 'c', 'f', 'g', 1}

const (
	flagPassToken  = 1 << 0
	flagCollection = 1 << 1

	headerSize = 8 + domain.IdentitySize + 1 + 1 + 4 + 4 + 1

	// EntrySize is the wire size of one allow-list entry: user + quota.
	EntrySize = domain.IdentitySize + 1
)

// EncodedSize returns the exact serialized size of the record.
func EncodedSize(cfg *Config) int {
	n := headerSize
	if cfg.PassToken != nil {
		n += domain.IdentitySize
	}
	if cfg.Collection != nil {
		n += domain.IdentitySize
	}
	return n + 4 + len(cfg.AllowList)*EntrySize
}

// Encode serializes the record into its wire layout.
func Encode(cfg *Config) []byte {
	buf := make([]byte, 0, EncodedSize(cfg))
	buf = append(buf, recordTag[:]...)
	buf = append(buf, cfg.Owner[:]...)
	buf = append(buf, cfg.Bump, uint8(cfg.Status))
	buf = binary.LittleEndian.AppendUint32(buf, cfg.TotalSupply)
	buf = binary.LittleEndian.AppendUint32(buf, cfg.CurrentSupply)

	var flags uint8
	if cfg.PassToken != nil {
		flags |= flagPassToken
	}
	if cfg.Collection != nil {
		flags |= flagCollection
	}
	buf = append(buf, flags)
	if cfg.PassToken != nil {
		buf = append(buf, cfg.PassToken[:]...)
	}
	if cfg.Collection != nil {
		buf = append(buf, cfg.Collection[:]...)
	}

	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(cfg.AllowList)))
	for _, e := range cfg.AllowList {
		buf = append(buf, e.User[:]...)
		buf = append(buf, e.Quota)
	}
	return buf
}

// Decode parses a serialized record, validating the tag and sizing the
// allow-list from the stored count.
func Decode(raw []byte) (*Config, error) {
	if len(raw) < headerSize {
		return nil, fmt.Errorf("record too short: %d bytes", len(raw))
	}
	if !bytes.Equal(raw[:8], recordTag[:]) {
		return nil, fmt.Errorf("record tag mismatch")
	}
	cfg := &Config{}
	off := 8
	off += copy(cfg.Owner[:], raw[off:off+domain.IdentitySize])
	cfg.Bump = raw[off]
	off++
	cfg.Status = domain.TreeStatus(raw[off])
	off++
	if !cfg.Status.IsValid() {
		return nil, fmt.Errorf("record carries unknown status %d", cfg.Status)
	}
	cfg.TotalSupply = binary.LittleEndian.Uint32(raw[off:])
	off += 4
	cfg.CurrentSupply = binary.LittleEndian.Uint32(raw[off:])
	off += 4
	flags := raw[off]
	off++

	if flags&flagPassToken != 0 {
		if len(raw) < off+domain.IdentitySize {
			return nil, fmt.Errorf("record truncated in pass token")
		}
		var pt domain.Identity
		off += copy(pt[:], raw[off:off+domain.IdentitySize])
		cfg.PassToken = &pt
	}
	if flags&flagCollection != 0 {
		if len(raw) < off+domain.IdentitySize {
			return nil, fmt.Errorf("record truncated in collection")
		}
		var col domain.Identity
		off += copy(col[:], raw[off:off+domain.IdentitySize])
		cfg.Collection = &col
	}

	if len(raw) < off+4 {
		return nil, fmt.Errorf("record truncated before allow-list count")
	}
	count := binary.LittleEndian.Uint32(raw[off:])
	off += 4
	if len(raw) != off+int(count)*EntrySize {
		return nil, fmt.Errorf("record size %d does not match %d allow-list entries", len(raw), count)
	}
	if count > 0 {
		cfg.AllowList = make([]AllowListEntry, count)
		for i := range cfg.AllowList {
			off += copy(cfg.AllowList[i].User[:], raw[off:off+domain.IdentitySize])
			cfg.AllowList[i].Quota = raw[off]
			off++
		}
	}
	return cfg, nil
}
