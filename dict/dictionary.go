// Package dict implements the Dictionary wire format: a flat, ordered
// string-to-string record with an escaped serialization and an optional
// detached signature.
//
// Keys beginning with "~!" are reserved for signature bookkeeping fields.
// The three signature fields (~!ed25519, ~!sigid, ~!sigts) are excluded
// from the buffer a signature covers; any other key is included.
package dict

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"go4.org/mem"
	"golang.org/x/crypto/blake2s"

	"github.com/meshcore/engine/address"
)

// Reserved keys written and consumed by Sign/Verify.
const (
	sigKey      = "~!ed25519"
	sigIdentKey = "~!sigid"
	sigTimeKey  = "~!sigts"
)

// ErrMalformed is returned by Parse for input that doesn't tokenize into
// key=value lines.
var ErrMalformed = errors.New("dict: malformed serialization")

// Dictionary is an ordered set of string key/value pairs. The zero value
// is an empty, ready-to-use Dictionary.
type Dictionary struct {
	m    map[string]string
	keys []string // insertion order, for stable iteration; not required by the wire format but useful for callers building %v-style dumps
}

// New returns an empty Dictionary.
func New() *Dictionary {
	return &Dictionary{m: make(map[string]string)}
}

func (d *Dictionary) ensure() {
	if d.m == nil {
		d.m = make(map[string]string)
	}
}

// Set stores value under key, overwriting any existing value.
func (d *Dictionary) Set(key, value string) {
	d.ensure()
	if _, exists := d.m[key]; !exists {
		d.keys = append(d.keys, key)
	}
	d.m[key] = value
}

// SetUint stores an unsigned integer as its decimal string form.
func (d *Dictionary) SetUint(key string, value uint64) {
	d.Set(key, strconv.FormatUint(value, 10))
}

// SetHex stores an unsigned integer as its lowercase hex string form.
func (d *Dictionary) SetHex(key string, value uint64) {
	d.Set(key, strconv.FormatUint(value, 16))
}

// SetBool stores a boolean as "1" or "0".
func (d *Dictionary) SetBool(key string, value bool) {
	if value {
		d.Set(key, "1")
	} else {
		d.Set(key, "0")
	}
}

// Get returns the value for key and whether it was present.
func (d *Dictionary) Get(key string) (string, bool) {
	if d.m == nil {
		return "", false
	}
	v, ok := d.m[key]
	return v, ok
}

// GetUint returns key parsed as a decimal unsigned integer, or dfl if
// absent or unparseable.
func (d *Dictionary) GetUint(key string, dfl uint64) uint64 {
	v, ok := d.Get(key)
	if !ok {
		return dfl
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return dfl
	}
	return n
}

// GetHexUint returns key parsed as a hex unsigned integer, or dfl if
// absent or unparseable.
func (d *Dictionary) GetHexUint(key string, dfl uint64) uint64 {
	v, ok := d.Get(key)
	if !ok {
		return dfl
	}
	n, err := strconv.ParseUint(v, 16, 64)
	if err != nil {
		return dfl
	}
	return n
}

// GetBool reports whether key's value starts with a truthy character
// ('1', 't', 'T', 'y', 'Y').
func (d *Dictionary) GetBool(key string, dfl bool) bool {
	v, ok := d.Get(key)
	if !ok || v == "" {
		return dfl
	}
	switch v[0] {
	case '1', 't', 'T', 'y', 'Y':
		return true
	}
	return false
}

// Delete removes key, if present.
func (d *Dictionary) Delete(key string) {
	if d.m == nil {
		return
	}
	if _, ok := d.m[key]; !ok {
		return
	}
	delete(d.m, key)
	for i, k := range d.keys {
		if k == key {
			d.keys = append(d.keys[:i], d.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the dictionary's keys in insertion order.
func (d *Dictionary) Keys() []string {
	out := make([]string, len(d.keys))
	copy(out, d.keys)
	return out
}

func appendEscaped(b *strings.Builder, s string) {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '\\', '=', '\r', '\n', 0:
			b.WriteByte('\\')
		}
		b.WriteByte(c)
	}
}

// String serializes the dictionary as key=value lines in insertion
// order, escaping '\', '=', '\r', '\n', and NUL with a leading
// backslash.
func (d *Dictionary) String() string {
	var b strings.Builder
	for _, k := range d.keys {
		appendEscaped(&b, k)
		b.WriteByte('=')
		appendEscaped(&b, d.m[k])
		b.WriteByte('\n')
	}
	return b.String()
}

// Parse decodes a serialized Dictionary. It accepts trailing '\r' before
// each newline and tolerates a final line with no trailing newline.
func Parse(s string) (*Dictionary, error) {
	return ParseMem(mem.S(s))
}

// ParseMem decodes a serialized Dictionary directly from a read-only
// byte view, avoiding the allocation of an intermediate string when the
// caller already holds the bytes as a packet payload slice (via
// wirebuf.Buffer.MemAt) rather than a string.
func ParseMem(m mem.RO) (*Dictionary, error) {
	d := New()
	var key, value strings.Builder
	inValue := false
	escaped := false
	flush := func() error {
		if key.Len() == 0 && value.Len() == 0 && !inValue {
			return nil // blank line
		}
		d.Set(key.String(), value.String())
		key.Reset()
		value.Reset()
		inValue = false
		return nil
	}
	for i := 0; i < m.Len(); i++ {
		c := m.At(i)
		if escaped {
			cur := &key
			if inValue {
				cur = &value
			}
			cur.WriteByte(c)
			escaped = false
			continue
		}
		switch c {
		case '\\':
			escaped = true
		case '=':
			if inValue {
				return nil, ErrMalformed
			}
			inValue = true
		case '\r':
			// swallowed; a bare CR immediately preceding LF is part of
			// a CRLF line ending, not data
		case '\n':
			if err := flush(); err != nil {
				return nil, err
			}
		default:
			if inValue {
				value.WriteByte(c)
			} else {
				key.WriteByte(c)
			}
		}
	}
	if escaped {
		return nil, ErrMalformed
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return d, nil
}

// sigBuf returns the bytes a signature covers: every key/value pair
// except the reserved signature fields, sorted by key so that signing
// and verifying agree regardless of insertion order.
func (d *Dictionary) sigBuf() []byte {
	keys := make([]string, 0, len(d.keys))
	for _, k := range d.keys {
		if k == sigKey || k == sigIdentKey || k == sigTimeKey {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		appendEscaped(&b, k)
		b.WriteByte('=')
		appendEscaped(&b, d.m[k])
		b.WriteByte('\n')
	}
	return []byte(b.String())
}

// sigHash returns the digest a signature is computed over: the unkeyed
// blake2s-256 sum of the sorted, escaped key=value buffer.
func (d *Dictionary) sigHash() [blake2s.Size]byte {
	return blake2s.Sum256(d.sigBuf())
}

// HasSignature reports whether the dictionary carries a signature.
func (d *Dictionary) HasSignature() bool {
	_, ok := d.Get(sigKey)
	return ok
}

// RemoveSignature deletes all signature-related fields.
func (d *Dictionary) RemoveSignature() {
	d.Delete(sigKey)
	d.Delete(sigIdentKey)
	d.Delete(sigTimeKey)
}

// Sign computes a signature over every field except the reserved
// signature fields, then stores the signature, the signer's address,
// and the timestamp under the reserved keys. id must hold a private
// key.
func (d *Dictionary) Sign(id address.Identity, timestampMillis uint64) error {
	if !id.HasPrivate() {
		return fmt.Errorf("dict: cannot sign without a private key")
	}
	d.RemoveSignature()
	d.SetUint(sigTimeKey, timestampMillis)
	hash := d.sigHash()
	sig, err := id.Sign(hash[:])
	if err != nil {
		return err
	}
	d.Set(sigIdentKey, id.Address().String())
	d.Set(sigKey, encodeHex(sig))
	return nil
}

// Verify reports whether the dictionary's stored signature validates
// against id's public key. It returns false, without error, for any
// malformed or absent signature.
func (d *Dictionary) Verify(id address.Identity) bool {
	sigHex, ok := d.Get(sigKey)
	if !ok {
		return false
	}
	sig, err := decodeHex(sigHex)
	if err != nil {
		return false
	}
	hash := d.sigHash()
	return id.Verify(hash[:], sig)
}

// SignatureTimestamp returns the signature's recorded timestamp in
// milliseconds since epoch, or 0 if unsigned.
func (d *Dictionary) SignatureTimestamp() uint64 {
	return d.GetUint(sigTimeKey, 0)
}

func encodeHex(b []byte) string {
	const hexdigits = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, c := range b {
		out[i*2] = hexdigits[c>>4]
		out[i*2+1] = hexdigits[c&0xf]
	}
	return string(out)
}

func decodeHex(s string) ([]byte, error) {
	if len(s)%2 != 0 {
		return nil, errors.New("dict: odd-length hex string")
	}
	out := make([]byte, len(s)/2)
	for i := range out {
		hi, err := hexVal(s[i*2])
		if err != nil {
			return nil, err
		}
		lo, err := hexVal(s[i*2+1])
		if err != nil {
			return nil, err
		}
		out[i] = hi<<4 | lo
	}
	return out, nil
}

func hexVal(c byte) (byte, error) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', nil
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, nil
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, nil
	default:
		return 0, fmt.Errorf("dict: invalid hex digit %q", c)
	}
}
