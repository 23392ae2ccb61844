// Package adblock implements a filtering engine for adblock-style network
// rules.  It parses filter lists, answers whether a request must be blocked,
// and persists the parsed rules in a versioned binary blob.
package adblock

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/c2h5oh/datasize"
	"github.com/google/renameio/v2/maybe"
	"github.com/webmacs/adblock/filterlist"
	"github.com/webmacs/adblock/rules"
)

// DefaultMaxBlobSize is the blob size limit used when [Config.MaxBlobSize] is
// zero.
const DefaultMaxBlobSize = 256 * datasize.MB

// Config is the configuration of an [Engine].  The zero value is usable.
type Config struct {
	// Logger is used to log parsing problems and index statistics.  If nil,
	// nothing is logged.
	Logger *slog.Logger

	// MaxBlobSize is the maximum size of a blob accepted by
	// [Engine.Deserialize] and [Engine.Load], both as stored and as
	// decompressed.  If zero, [DefaultMaxBlobSize] is used.
	MaxBlobSize datasize.ByteSize

	// Compress makes [Engine.Serialize] compress the blob body with zstd.
	Compress bool

	// DetectThirdParty makes the engine compare the registrable domains of the
	// request and of the document if the caller has set neither
	// [rules.FlagThirdParty] nor [rules.FlagFirstParty].
	DetectThirdParty bool
}

// engineState is a published state of an [Engine].
type engineState struct {
	network *NetworkEngine

	// nextListID is the filter list ID for the next parsed text.
	nextListID int
}

// Engine is the filtering engine.  Its methods are safe for concurrent use.
// Matching never blocks: parsing and loading build a new index and swap it in,
// so readers see either the previous or the new set of rules in full.
type Engine struct {
	logger *slog.Logger

	// mu serializes the writers.
	mu *sync.Mutex

	state atomic.Pointer[engineState]

	maxBlobSize      datasize.ByteSize
	compress         bool
	detectThirdParty bool
}

// NewEngine returns a new empty engine.  c may be nil, which is the same as a
// zero Config.
func NewEngine(c *Config) (e *Engine) {
	if c == nil {
		c = &Config{}
	}

	e = &Engine{
		logger:           c.Logger,
		mu:               &sync.Mutex{},
		maxBlobSize:      c.MaxBlobSize,
		compress:         c.Compress,
		detectThirdParty: c.DetectThirdParty,
	}

	if e.logger == nil {
		e.logger = slogutil.NewDiscardLogger()
	}

	if e.maxBlobSize == 0 {
		e.maxBlobSize = DefaultMaxBlobSize
	}

	e.state.Store(e.newState(context.Background(), nil, 1))

	return e
}

// newState builds the index over rs.
func (e *Engine) newState(ctx context.Context, rs []*rules.NetworkRule, nextListID int) (st *engineState) {
	return &engineState{
		network:    NewNetworkEngine(ctx, filterlist.NewRuleStorage(rs), e.logger),
		nextListID: nextListID,
	}
}

// Parse adds the rules from the filter list text to the engine as a new filter
// list.  Lines that are empty, comments, cosmetic or invalid rules are skipped
// and logged.  Identical rules are all kept.  It returns the number of rules
// added.
func (e *Engine) Parse(text string) (added int) {
	ctx := context.Background()

	e.mu.Lock()
	defer e.mu.Unlock()

	prev := e.state.Load()
	listID := prev.nextListID

	sc := filterlist.NewRuleScanner(strings.NewReader(text), listID, e.logger)
	rs, err := sc.ReadAll()
	if err != nil {
		e.logger.WarnContext(ctx, "filter list is read partially", "list_id", listID, slogutil.KeyError, err)
	}

	storage := prev.network.Storage().With(rs)
	e.state.Store(&engineState{
		network:    NewNetworkEngine(ctx, storage, e.logger),
		nextListID: listID + 1,
	})

	e.logger.InfoContext(
		ctx,
		"parsed filter list",
		"list_id", listID,
		"rules", len(rs),
		"skipped", sc.Invalid(),
		"total", storage.Len(),
	)

	return len(rs)
}

// Match returns true if the request to url made by a document from domain with
// the resource type and party flags opts must be blocked.  Empty url or domain
// never match.
func (e *Engine) Match(url string, opts rules.FilterOption, domain string) (ok bool) {
	_, ok = e.MatchRequest(rules.NewRequest(url, domain, opts))

	return ok
}

// MatchRequest is like [Engine.Match] but also returns the rule that decided
// the result: the matching exception rule if any, or a matching blocking rule
// otherwise.  rule is nil if nothing matches.
func (e *Engine) MatchRequest(r *rules.Request) (rule *rules.NetworkRule, ok bool) {
	if r.URL == "" || r.SourceHostname == "" {
		return nil, false
	}

	if e.detectThirdParty {
		r.DetectThirdParty()
	}

	return e.state.Load().network.Match(r)
}

// RulesCount returns the number of rules in the engine, duplicates included.
func (e *Engine) RulesCount() (n int) {
	return e.state.Load().network.RulesCount()
}

// Serialize returns the binary blob with all the rules of the engine.  The
// lookup index is not stored, it is rebuilt by [Engine.Deserialize].
func (e *Engine) Serialize() (b []byte) {
	st := e.state.Load()

	return encodeBlob(&blobContents{
		rules:      st.network.Storage().Rules(),
		nextListID: st.nextListID,
	}, e.compress)
}

// Deserialize replaces the rules of the engine with the ones from the blob b.
// If b is not a valid blob, the error wraps one of the blob format errors, for
// example [ErrUnsupportedVersion], and the engine is left unchanged.
func (e *Engine) Deserialize(b []byte) (err error) {
	c, err := decodeBlob(b, e.maxBlobSize)
	if err != nil {
		return fmt.Errorf("decoding blob: %w", err)
	}

	ctx := context.Background()

	e.mu.Lock()
	defer e.mu.Unlock()

	e.state.Store(e.newState(ctx, c.rules, c.nextListID))

	e.logger.InfoContext(ctx, "loaded rules", "rules", len(c.rules), "lists", c.nextListID-1)

	return nil
}

// Save writes the blob with all the rules of the engine to the file at path.
// Where the platform allows it, the file is replaced atomically.
func (e *Engine) Save(path string) (err error) {
	b := e.Serialize()

	err = maybe.WriteFile(path, b, 0o644)
	if err != nil {
		return fmt.Errorf("writing blob: %w", err)
	}

	e.logger.InfoContext(context.Background(), "saved rules", "path", path, "size", datasize.ByteSize(len(b)))

	return nil
}

// Load replaces the rules of the engine with the ones from the blob file at
// path.  On error the engine is left unchanged.
func (e *Engine) Load(path string) (err error) {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening blob: %w", err)
	}
	defer func() { err = errors.WithDeferred(err, f.Close()) }()

	limit := int64(e.maxBlobSize.Bytes()) + int64(blobHeaderLen)
	b, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return fmt.Errorf("reading blob: %w", err)
	} else if int64(len(b)) > limit {
		return fmt.Errorf("reading blob: more than %s: %w", e.maxBlobSize, ErrTooLarge)
	}

	return e.Deserialize(b)
}
