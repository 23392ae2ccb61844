package adblock

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"math"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/c2h5oh/datasize"
	"github.com/klauspost/compress/zstd"
	"github.com/webmacs/adblock/rules"
)

// Blob format errors.
const (
	// ErrBadMagic is returned when the data is not a rule blob at all.
	ErrBadMagic errors.Error = "not a rule blob"

	// ErrUnsupportedVersion is returned when the blob has a format version
	// this package cannot read.
	ErrUnsupportedVersion errors.Error = "unsupported blob version"

	// ErrTruncated is returned when the blob is shorter than its header says.
	ErrTruncated errors.Error = "truncated blob"

	// ErrChecksum is returned when the blob body doesn't match its checksum.
	ErrChecksum errors.Error = "blob checksum mismatch"

	// ErrMalformed is returned when the blob body is structurally invalid.
	ErrMalformed errors.Error = "malformed blob"

	// ErrTooLarge is returned when the blob exceeds the configured size limit.
	ErrTooLarge errors.Error = "blob is too large"
)

// BlobVersion is the current version of the blob format.
const BlobVersion uint16 = 1

// blobMagic starts every blob.
const blobMagic = "ABLK"

// blobHeaderLen is the length of the fixed blob header: magic, version, flags,
// reserved byte, body length and checksum.
const blobHeaderLen = len(blobMagic) + 2 + 1 + 1 + 4 + 4

// Header flags.
const (
	blobFlagZstd uint8 = 1 << 0

	blobFlagsAll = blobFlagZstd
)

// Rule flags.
const (
	ruleFlagException uint8 = 1 << 0
	ruleFlagRegex     uint8 = 1 << 1

	ruleFlagsAll = ruleFlagException | ruleFlagRegex
)

// optionsAll is the mask of all known rule options.
const optionsAll = rules.OptionThirdParty | rules.OptionMatchCase

// zstdEncoder is shared since EncodeAll is safe for concurrent use.
var zstdEncoder = errors.Must(zstd.NewWriter(nil, zstd.WithEncoderConcurrency(1)))

// blobContents is the decoded body of a blob.
type blobContents struct {
	rules      []*rules.NetworkRule
	nextListID int
}

// encodeBlob returns the blob with the given rules.
func encodeBlob(c *blobContents, compress bool) (b []byte) {
	body := binary.AppendUvarint(nil, uint64(c.nextListID))
	body = binary.AppendUvarint(body, uint64(len(c.rules)))
	for _, r := range c.rules {
		body = appendRule(body, r.Data())
	}

	var flags uint8
	if compress {
		body = zstdEncoder.EncodeAll(body, nil)
		flags |= blobFlagZstd
	}

	b = make([]byte, 0, blobHeaderLen+len(body))
	b = append(b, blobMagic...)
	b = binary.BigEndian.AppendUint16(b, BlobVersion)
	b = append(b, flags, 0)
	b = binary.BigEndian.AppendUint32(b, uint32(len(body)))
	b = binary.BigEndian.AppendUint32(b, crc32.ChecksumIEEE(body))

	return append(b, body...)
}

// appendRule appends the encoded rule to b.
func appendRule(b []byte, d *rules.RuleData) (res []byte) {
	var flags uint8
	if d.Whitelist {
		flags |= ruleFlagException
	}

	if len(d.Tokens) == 1 && d.Tokens[0].Kind == rules.TokenRegex {
		flags |= ruleFlagRegex
	}

	b = binary.AppendUvarint(b, uint64(d.FilterListID))
	b = appendString(b, d.Text)
	b = append(b, flags)
	b = binary.AppendUvarint(b, uint64(d.PermittedTypes))
	b = binary.AppendUvarint(b, uint64(d.RestrictedTypes))
	b = binary.AppendUvarint(b, uint64(d.EnabledOptions))
	b = binary.AppendUvarint(b, uint64(d.DisabledOptions))

	b = binary.AppendUvarint(b, uint64(len(d.Tokens)))
	for _, t := range d.Tokens {
		b = append(b, byte(t.Kind))
		b = appendString(b, t.Text)
	}

	b = appendStrings(b, d.PermittedDomains)
	b = appendStrings(b, d.RestrictedDomains)

	return appendStrings(b, d.UnknownOptions)
}

// appendString appends the length-prefixed s to b.
func appendString(b []byte, s string) (res []byte) {
	b = binary.AppendUvarint(b, uint64(len(s)))

	return append(b, s...)
}

// appendStrings appends the count-prefixed list of strings to b.
func appendStrings(b []byte, ss []string) (res []byte) {
	b = binary.AppendUvarint(b, uint64(len(ss)))
	for _, s := range ss {
		b = appendString(b, s)
	}

	return b
}

// decodeBlob decodes the blob.  maxSize limits both the stored and the
// decompressed body.
func decodeBlob(b []byte, maxSize datasize.ByteSize) (c *blobContents, err error) {
	body, err := blobBody(b, maxSize)
	if err != nil {
		// Don't wrap the error, it's informative enough as is.
		return nil, err
	}

	r := &blobReader{b: body}

	c = &blobContents{}
	nextListID, err := r.readUvarint(math.MaxInt32)
	if err != nil {
		return nil, fmt.Errorf("next list id: %w", err)
	} else if nextListID == 0 {
		return nil, fmt.Errorf("next list id: zero: %w", ErrMalformed)
	}

	c.nextListID = int(nextListID)

	// Every rule takes more than one byte, so a count exceeding the rest of
	// the body is impossible.
	n, err := r.readUvarint(uint64(r.remaining()))
	if err != nil {
		return nil, fmt.Errorf("rule count: %w", err)
	}

	c.rules = make([]*rules.NetworkRule, 0, n)
	for i := range n {
		var f *rules.NetworkRule
		f, err = r.readRule(c.nextListID)
		if err != nil {
			return nil, fmt.Errorf("rule at index %d: %w", i, err)
		}

		c.rules = append(c.rules, f)
	}

	if r.remaining() != 0 {
		return nil, fmt.Errorf("%d trailing bytes: %w", r.remaining(), ErrMalformed)
	}

	return c, nil
}

// blobBody validates the blob header and returns the decompressed body.
func blobBody(b []byte, maxSize datasize.ByteSize) (body []byte, err error) {
	n := min(len(b), len(blobMagic))
	if string(b[:n]) != blobMagic[:n] {
		return nil, ErrBadMagic
	}

	if len(b) < blobHeaderLen {
		return nil, fmt.Errorf("header: %d bytes: %w", len(b), ErrTruncated)
	}

	hdr := b[len(blobMagic):blobHeaderLen]
	if v := binary.BigEndian.Uint16(hdr[0:2]); v != BlobVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, v)
	}

	flags, reserved := hdr[2], hdr[3]
	if flags&^blobFlagsAll != 0 || reserved != 0 {
		return nil, fmt.Errorf("header flags %#x, %#x: %w", flags, reserved, ErrMalformed)
	}

	bodyLen := uint64(binary.BigEndian.Uint32(hdr[4:8]))
	if bodyLen > maxSize.Bytes() {
		return nil, fmt.Errorf("body of %d bytes: %w", bodyLen, ErrTooLarge)
	}

	body = b[blobHeaderLen:]
	switch l := uint64(len(body)); {
	case l < bodyLen:
		return nil, fmt.Errorf("body: %d of %d bytes: %w", l, bodyLen, ErrTruncated)
	case l > bodyLen:
		return nil, fmt.Errorf("body: %d bytes after the end: %w", l-bodyLen, ErrMalformed)
	}

	if crc32.ChecksumIEEE(body) != binary.BigEndian.Uint32(hdr[8:12]) {
		return nil, ErrChecksum
	}

	if flags&blobFlagZstd == 0 {
		return body, nil
	}

	return decompress(body, maxSize)
}

// decompress decompresses the zstd-compressed body.
func decompress(body []byte, maxSize datasize.ByteSize) (res []byte, err error) {
	dec, err := zstd.NewReader(
		nil,
		zstd.WithDecoderConcurrency(1),
		zstd.WithDecoderMaxMemory(maxSize.Bytes()),
	)
	if err != nil {
		return nil, fmt.Errorf("creating decoder: %w", err)
	}
	defer dec.Close()

	res, err = dec.DecodeAll(body, nil)
	if errors.Is(err, zstd.ErrDecoderSizeExceeded) || errors.Is(err, zstd.ErrWindowSizeExceeded) {
		return nil, fmt.Errorf("decompressed body: %w", ErrTooLarge)
	} else if err != nil {
		return nil, fmt.Errorf("%w: decompressing: %w", ErrMalformed, err)
	}

	return res, nil
}

// blobReader reads the blob body.  All its errors wrap [ErrMalformed], since
// the body has already passed the length and checksum checks.
type blobReader struct {
	b   []byte
	off int
}

// remaining returns the number of unread bytes.
func (r *blobReader) remaining() (n int) {
	return len(r.b) - r.off
}

// readByte reads a single byte.
func (r *blobReader) readByte() (c byte, err error) {
	if r.remaining() < 1 {
		return 0, fmt.Errorf("offset %d: unexpected end: %w", r.off, ErrMalformed)
	}

	c = r.b[r.off]
	r.off++

	return c, nil
}

// readUvarint reads an unsigned varint which must not exceed limit.
func (r *blobReader) readUvarint(limit uint64) (v uint64, err error) {
	v, n := binary.Uvarint(r.b[r.off:])
	if n <= 0 {
		return 0, fmt.Errorf("offset %d: bad varint: %w", r.off, ErrMalformed)
	}

	if v > limit {
		return 0, fmt.Errorf("offset %d: value %d exceeds %d: %w", r.off, v, limit, ErrMalformed)
	}

	r.off += n

	return v, nil
}

// readString reads a length-prefixed string.
func (r *blobReader) readString() (s string, err error) {
	l, err := r.readUvarint(uint64(r.remaining()))
	if err != nil {
		return "", err
	}

	// readUvarint has already advanced the offset, so check again.
	if int(l) > r.remaining() {
		return "", fmt.Errorf("offset %d: string of %d bytes: %w", r.off, l, ErrMalformed)
	}

	s = string(r.b[r.off : r.off+int(l)])
	r.off += int(l)

	return s, nil
}

// readStrings reads a count-prefixed list of strings.  It returns nil for an empty
// list.
func (r *blobReader) readStrings() (ss []string, err error) {
	n, err := r.readUvarint(uint64(r.remaining()))
	if err != nil {
		return nil, err
	}

	for range n {
		var s string
		s, err = r.readString()
		if err != nil {
			return nil, err
		}

		ss = append(ss, s)
	}

	return ss, nil
}

// readRule reads a single rule.  List IDs must be less than nextListID.
func (r *blobReader) readRule(nextListID int) (f *rules.NetworkRule, err error) {
	d := &rules.RuleData{}

	listID, err := r.readUvarint(uint64(nextListID - 1))
	if err != nil {
		return nil, fmt.Errorf("list id: %w", err)
	}

	d.FilterListID = int(listID)

	if d.Text, err = r.readString(); err != nil {
		return nil, fmt.Errorf("text: %w", err)
	}

	flags, err := r.readByte()
	if err != nil {
		return nil, fmt.Errorf("flags: %w", err)
	} else if flags&^ruleFlagsAll != 0 {
		return nil, fmt.Errorf("flags %#x: %w", flags, ErrMalformed)
	}

	d.Whitelist = flags&ruleFlagException != 0

	err = r.readRuleOptions(d)
	if err != nil {
		return nil, err
	}

	n, err := r.readUvarint(uint64(r.remaining()))
	if err != nil {
		return nil, fmt.Errorf("token count: %w", err)
	}

	d.Tokens = make([]rules.Token, 0, n)
	for range n {
		var t rules.Token
		t, err = r.readToken()
		if err != nil {
			return nil, fmt.Errorf("token: %w", err)
		}

		d.Tokens = append(d.Tokens, t)
	}

	if d.PermittedDomains, err = r.readStrings(); err != nil {
		return nil, fmt.Errorf("permitted domains: %w", err)
	}

	if d.RestrictedDomains, err = r.readStrings(); err != nil {
		return nil, fmt.Errorf("restricted domains: %w", err)
	}

	if d.UnknownOptions, err = r.readStrings(); err != nil {
		return nil, fmt.Errorf("unknown options: %w", err)
	}

	f, err = rules.NewNetworkRuleFromData(d)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	if f.IsRegexRule() != (flags&ruleFlagRegex != 0) {
		return nil, fmt.Errorf("regex flag mismatch: %w", ErrMalformed)
	}

	return f, nil
}

// readRuleOptions reads the type and option masks of a rule into d.
func (r *blobReader) readRuleOptions(d *rules.RuleData) (err error) {
	permitted, err := r.readUvarint(uint64(rules.TypeAll))
	if err != nil {
		return fmt.Errorf("permitted types: %w", err)
	}

	restricted, err := r.readUvarint(uint64(rules.TypeAll))
	if err != nil {
		return fmt.Errorf("restricted types: %w", err)
	}

	enabled, err := r.readUvarint(uint64(optionsAll))
	if err != nil {
		return fmt.Errorf("enabled options: %w", err)
	}

	disabled, err := r.readUvarint(uint64(optionsAll))
	if err != nil {
		return fmt.Errorf("disabled options: %w", err)
	}

	d.PermittedTypes = rules.FilterOption(permitted)
	d.RestrictedTypes = rules.FilterOption(restricted)
	d.EnabledOptions = rules.NetworkRuleOption(enabled)
	d.DisabledOptions = rules.NetworkRuleOption(disabled)

	return nil
}

// readToken reads a single pattern token.
func (r *blobReader) readToken() (t rules.Token, err error) {
	kind, err := r.readByte()
	if err != nil {
		return t, err
	} else if rules.TokenKind(kind) > rules.TokenRegex {
		return t, fmt.Errorf("kind %d: %w", kind, ErrMalformed)
	}

	t.Kind = rules.TokenKind(kind)
	t.Text, err = r.readString()

	return t, err
}
