package filterlist

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"log/slog"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/c2h5oh/datasize"
	"github.com/webmacs/adblock/rules"
)

// MaxRuleLength is the maximum length of a single line of a filter list.
// Longer lines are skipped as invalid.
const MaxRuleLength = 64 * datasize.KB

// RuleScanner implements an interface for reading filtering rules.  Lines
// which are empty, comments, unsupported, invalid or too long are skipped.
type RuleScanner struct {
	// logger is used to report the skipped lines.
	logger *slog.Logger

	// reader is the underlying reader.
	reader *bufio.Reader

	// currentRule is the last successfully parsed rule.
	currentRule *rules.NetworkRule

	// err is the first non-EOF reading error.
	err error

	// line is the buffer for the current line.
	line []byte

	// listID is the ID of the filter list being read.
	listID int

	// currentPos is the byte offset of the line of currentRule.
	currentPos int

	// pos is the byte offset of the next line.
	pos int

	// invalid is the number of lines rejected as invalid or unsupported.
	invalid int
}

// NewRuleScanner returns a new RuleScanner reading r.  listID is the filter
// list ID assigned to every rule.  logger must not be nil.
func NewRuleScanner(r io.Reader, listID int, logger *slog.Logger) (s *RuleScanner) {
	return &RuleScanner{
		logger: logger,
		reader: bufio.NewReader(r),
		listID: listID,
	}
}

// Scan advances the RuleScanner to the next rule, which will then be available
// through the Rule method.  It returns false when the scan stops, either by
// reaching the end of the input or an error.  Use [RuleScanner.Err] to tell
// these cases apart.
func (s *RuleScanner) Scan() (ok bool) {
	ctx := context.Background()

	for {
		line, n, tooLong, err := s.readLine()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.err = err
			}

			break
		}

		linePos := s.pos
		s.pos += n

		if tooLong {
			s.invalid++
			s.logger.DebugContext(ctx, "skipping too long line", "pos", linePos, "len", n)

			continue
		}

		r, err := rules.NewRule(string(line), s.listID)
		if err != nil {
			s.invalid++
			s.logger.DebugContext(ctx, "skipping rule", "pos", linePos, slogutil.KeyError, err)

			continue
		} else if r == nil {
			continue
		}

		for _, opt := range r.DroppedOptions() {
			s.logger.DebugContext(ctx, "dropped malformed modifier", "rule", r.Text(), "modifier", opt)
		}

		s.currentRule = r
		s.currentPos = linePos

		return true
	}

	s.currentRule = nil

	return false
}

// readLine reads the next line without the line terminator.  n is the number
// of bytes consumed, terminator included.  tooLong is true if the line is
// longer than [MaxRuleLength], the whole line is consumed anyway.  err is
// [io.EOF] only if there is no more data.
func (s *RuleScanner) readLine() (line []byte, n int, tooLong bool, err error) {
	maxLen := int(MaxRuleLength.Bytes())

	s.line = s.line[:0]
	for {
		var chunk []byte
		chunk, err = s.reader.ReadSlice('\n')
		n += len(chunk)

		if !tooLong {
			s.line = append(s.line, chunk...)

			// Allow for the "\r\n" terminator.
			tooLong = len(s.line) > maxLen+2
		}

		if !errors.Is(err, bufio.ErrBufferFull) {
			break
		}
	}

	if errors.Is(err, io.EOF) && n > 0 {
		err = nil
	}

	if err != nil {
		return nil, n, false, err
	}

	line = bytes.TrimSuffix(s.line, []byte("\n"))
	line = bytes.TrimSuffix(line, []byte("\r"))
	if tooLong || len(line) > maxLen {
		return nil, n, true, nil
	}

	return line, n, false, nil
}

// Rule returns the most recent rule generated by a call to Scan, and the index
// of this rule's text, which is the byte offset of its line.
func (s *RuleScanner) Rule() (r *rules.NetworkRule, idx int) {
	return s.currentRule, s.currentPos
}

// Invalid returns the number of lines skipped as invalid or unsupported so
// far.
func (s *RuleScanner) Invalid() (n int) {
	return s.invalid
}

// Err returns the first non-EOF error encountered while reading.
func (s *RuleScanner) Err() (err error) {
	return errors.Annotate(s.err, "reading list %d: %w", s.listID)
}

// ReadAll scans everything from s and returns the rules in order.
func (s *RuleScanner) ReadAll() (rs []*rules.NetworkRule, err error) {
	for s.Scan() {
		r, _ := s.Rule()
		rs = append(rs, r)
	}

	return rs, s.Err()
}
