package xframe

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/syssam/xframe/compiler"
	"github.com/syssam/xframe/dialect"
	"github.com/syssam/xframe/expr"
	"github.com/syssam/xframe/materialize"
	"github.com/syssam/xframe/query"
	"github.com/syssam/xframe/schema"
)

// DefaultBatchSize is the number of pending statements sent in one round
// trip by SubmitChanges, and the number of rows per bulk INSERT.
const DefaultBatchSize = compiler.DefaultBatchSize

// Session compiles statements for one driver and queues writes until they
// are submitted together. Reads run immediately. A Session is safe for
// concurrent use.
type Session struct {
	driver       dialect.Driver
	compiler     *compiler.Compiler
	materializer *materialize.Materializer
	statements   *StatementCache
	log          *slog.Logger
	batchSize    int

	mu         sync.Mutex
	pending    []pendingWrite
	submitting bool
}

// pendingWrite is a queued statement.
type pendingWrite struct {
	entity string
	kind   string
	text   string
}

// sessionConfig collects options before the session is assembled.
type sessionConfig struct {
	compiler  *compiler.Compiler
	registry  *schema.Registry
	cache     Cache
	cacheTTL  time.Duration
	log       *slog.Logger
	batchSize int
}

// Option configures a Session.
type Option func(*sessionConfig) error

// WithBatchSize sets the number of statements per round trip and rows per
// bulk INSERT.
func WithBatchSize(n int) Option {
	return func(c *sessionConfig) error {
		if n <= 0 {
			return fmt.Errorf("xframe: batch size must be positive, got %d", n)
		}
		c.batchSize = n
		return nil
	}
}

// WithLogger sets the logger batch submission is reported to.
func WithLogger(l *slog.Logger) Option {
	return func(c *sessionConfig) error {
		if l == nil {
			return fmt.Errorf("xframe: nil logger")
		}
		c.log = l
		return nil
	}
}

// WithCompiler sets the compiler. The dialect of the driver is then not
// consulted.
func WithCompiler(comp *compiler.Compiler) Option {
	return func(c *sessionConfig) error {
		c.compiler = comp
		return nil
	}
}

// WithRegistry sets the registry entity metadata is read from.
func WithRegistry(r *schema.Registry) Option {
	return func(c *sessionConfig) error {
		c.registry = r
		return nil
	}
}

// WithStatementCache stores compiled statements in cache for ttl.
func WithStatementCache(cache Cache, ttl time.Duration) Option {
	return func(c *sessionConfig) error {
		if cache == nil {
			cache = NewMemoryCache()
		}
		c.cache, c.cacheTTL = cache, ttl
		return nil
	}
}

// NewSession returns a session executing on drv.
func NewSession(drv dialect.Driver, opts ...Option) (*Session, error) {
	cfg := &sessionConfig{
		registry:  schema.Default(),
		log:       slog.Default(),
		batchSize: DefaultBatchSize,
	}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}
	if cfg.compiler == nil {
		comp, err := compiler.New(
			compiler.WithDialect(drv.Dialect()),
			compiler.WithRegistry(cfg.registry),
			compiler.WithBatchSize(cfg.batchSize),
		)
		if err != nil {
			return nil, err
		}
		cfg.compiler = comp
	}
	s := &Session{
		driver:       drv,
		compiler:     cfg.compiler,
		materializer: materialize.New(cfg.compiler.Registry()),
		log:          cfg.log,
		batchSize:    cfg.batchSize,
	}
	if cfg.cache != nil {
		s.statements = NewStatementCache(cfg.compiler, cfg.cache, cfg.cacheTTL)
	}
	return s, nil
}

// Compiler returns the compiler of s.
func (s *Session) Compiler() *compiler.Compiler { return s.compiler }

// Driver returns the driver of s.
func (s *Session) Driver() dialect.Driver { return s.driver }

// Compile compiles chain, through the statement cache when one is set.
func (s *Session) Compile(ctx context.Context, chain *query.Chain) (*compiler.Statement, error) {
	if s.statements != nil {
		return s.statements.Compile(ctx, chain)
	}
	return s.compiler.Compile(chain)
}

// Queue compiles the write chain and adds it to the pending statements.
func (s *Session) Queue(ctx context.Context, chain *query.Chain) error {
	st, err := s.Compile(ctx, chain)
	if err != nil {
		return NewMutationError(label(chain.Elem()), "queue", err)
	}
	if st.Kind == query.KindSelect {
		return NewMutationError(label(chain.Elem()), "queue", fmt.Errorf("%w: select statement", ErrNotSupported))
	}
	s.enqueue(pendingWrite{entity: label(chain.Elem()), kind: st.Kind.String(), text: st.Text})
	return nil
}

// AddSQL queues a raw statement.
func (s *Session) AddSQL(text string) {
	s.enqueue(pendingWrite{entity: "raw", kind: "SQL", text: text})
}

func (s *Session) enqueue(w pendingWrite) {
	s.mu.Lock()
	s.pending = append(s.pending, w)
	s.mu.Unlock()
}

// Pending returns the text of the queued statements.
func (s *Session) Pending() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.pending))
	for i, w := range s.pending {
		out[i] = w.text
	}
	return out
}

// Discard drops every queued statement.
func (s *Session) Discard() {
	s.mu.Lock()
	s.pending = nil
	s.mu.Unlock()
}

// SubmitChanges runs the queued statements in one transaction, batchSize
// statements per round trip, and returns the total number of affected
// rows. On failure the transaction is rolled back and the statements stay
// queued.
func (s *Session) SubmitChanges(ctx context.Context) (int64, error) {
	s.mu.Lock()
	if s.submitting {
		s.mu.Unlock()
		return 0, ErrTxStarted
	}
	pending := s.pending
	s.submitting = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.submitting = false
		s.mu.Unlock()
	}()
	if len(pending) == 0 {
		return 0, nil
	}
	total, err := s.submit(ctx, pending)
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	if len(s.pending) >= len(pending) {
		s.pending = s.pending[len(pending):]
	}
	s.mu.Unlock()
	return total, nil
}

func (s *Session) submit(ctx context.Context, pending []pendingWrite) (int64, error) {
	tx, err := s.driver.Tx(ctx)
	if err != nil {
		return 0, NewMutationError("session", "submit", fmt.Errorf("begin: %w", err))
	}
	var total int64
	for start := 0; start < len(pending); start += s.batchSize {
		end := min(start+s.batchSize, len(pending))
		texts := make([]string, 0, end-start)
		for _, w := range pending[start:end] {
			texts = append(texts, w.text)
		}
		s.log.DebugContext(ctx, "submitting batch",
			slog.Int("statements", end-start),
			slog.Int("offset", start),
			slog.Int("pending", len(pending)),
		)
		var n int64
		if err := tx.Exec(ctx, strings.Join(texts, ";\n"), nil, &n); err != nil {
			return 0, s.rollback(tx, NewMutationError(pending[start].entity, strings.ToLower(pending[start].kind), constraint(err)))
		}
		total += n
	}
	if err := tx.Commit(); err != nil {
		return 0, NewMutationError("session", "submit", fmt.Errorf("commit: %w", err))
	}
	s.log.DebugContext(ctx, "changes submitted", slog.Int("statements", len(pending)), slog.Int64("affected", total))
	return total, nil
}

// rollback rolls tx back after err. A failed rollback is reported
// together with err.
func (s *Session) rollback(tx dialect.Tx, err error) error {
	if rerr := tx.Rollback(); rerr != nil {
		return NewAggregateError(err, &RollbackError{Err: rerr})
	}
	return err
}

// label returns the entity name errors report for t.
func label(t reflect.Type) string {
	if t = schema.Indirect(t); t == nil {
		return "unknown"
	}
	return t.Name()
}

// Insert queues the insert of entity.
func Insert[T any](ctx context.Context, s *Session, entity T) error {
	return s.Queue(ctx, query.Insert(entity))
}

// InsertBulk queues the insert of entities, written as multi-row INSERTs
// of at most the batch size rows each.
func InsertBulk[T any](ctx context.Context, s *Session, entities []T) error {
	if len(entities) == 0 {
		return nil
	}
	return s.Queue(ctx, query.InsertSlice(entities))
}

// InsertSelect queues the copy of the rows of q into the table of T.
func InsertSelect[T any](ctx context.Context, s *Session, q query.Query[T]) error {
	return s.Queue(ctx, query.InsertSelect(q))
}

// Update queues the update of every non-key column of entity.
func Update[T any](ctx context.Context, s *Session, entity T) error {
	return s.Queue(ctx, query.UpdateEntity(entity))
}

// UpdateWhere queues the update of the rows of q with the assignments of
// set, an expr.New initializer of T.
func UpdateWhere[T any](ctx context.Context, s *Session, q query.Query[T], set expr.Node) error {
	return s.Queue(ctx, q.Update(set))
}

// Delete queues the delete of entity.
func Delete[T any](ctx context.Context, s *Session, entity T) error {
	return s.Queue(ctx, query.DeleteEntity(entity))
}

// DeleteWhere queues the delete of the rows of q.
func DeleteWhere[T any](ctx context.Context, s *Session, q query.Query[T]) error {
	return s.Queue(ctx, q.Delete())
}
