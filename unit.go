package criteria

import (
	"go.uber.org/zap"

	"github.com/lemmego/criteria/metamodel"
)

// DefaultUnitName is the name of the unit used when none is given.
const DefaultUnitName = "default"

// =====================================
// Persistence Unit
// =====================================

// Unit bundles the metamodel, builder, provider and configuration that
// queries are built and executed with.
type Unit struct {
	name      string
	config    Config
	metamodel *metamodel.Metamodel
	builder   *Builder
	provider  Provider
	logger    *zap.Logger
}

// UnitOption configures a Unit.
type UnitOption func(*Unit)

// WithUnitConfig sets the unit configuration.
func WithUnitConfig(cfg Config) UnitOption {
	return func(u *Unit) {
		u.config = cfg
	}
}

// WithProvider sets the provider directly instead of creating it from the
// configured provider name.
func WithProvider(p Provider) UnitOption {
	return func(u *Unit) {
		u.provider = p
	}
}

// WithLogger sets the unit logger. It is shared with the unit's builder.
func WithLogger(logger *zap.Logger) UnitOption {
	return func(u *Unit) {
		if logger != nil {
			u.logger = logger
		}
	}
}

// NewUnit creates a unit over mm.
//
// Example:
//
//	unit, err := criteria.NewUnit(mm,
//	    criteria.WithUnitConfig(cfg),
//	    criteria.WithLogger(logger),
//	)
func NewUnit(mm *metamodel.Metamodel, opts ...UnitOption) (*Unit, error) {
	u := &Unit{
		config:    DefaultConfig(),
		metamodel: mm,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(u)
	}
	if err := u.config.Validate(); err != nil {
		return nil, err
	}
	u.name = u.config.Name
	if u.name == "" {
		u.name = DefaultUnitName
	}
	if u.provider == nil && u.config.Provider != "" {
		p, err := NewProvider(u.config.Provider, u.config)
		if err != nil {
			return nil, err
		}
		u.provider = p
	}
	u.builder = NewBuilder(mm, WithConfig(u.config), WithBuilderLogger(u.logger))

	fields := []zap.Field{zap.String("unit", u.name)}
	if u.provider != nil {
		fields = append(fields, zap.String("provider", u.provider.ProviderInfo().Name))
	}
	u.logger.Debug("persistence unit created", fields...)
	return u, nil
}

// OpenUnit loads the YAML configuration at path and creates a unit from it.
// The logger is built from the configured log level unless one is given.
func OpenUnit(path string, mm *metamodel.Metamodel, opts ...UnitOption) (*Unit, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	logger, err := cfg.NewLogger()
	if err != nil {
		return nil, err
	}
	return NewUnit(mm, append([]UnitOption{WithUnitConfig(cfg), WithLogger(logger)}, opts...)...)
}

func (u *Unit) Name() string                    { return u.name }
func (u *Unit) Config() Config                  { return u.config }
func (u *Unit) Metamodel() *metamodel.Metamodel { return u.metamodel }
func (u *Unit) Builder() *Builder               { return u.builder }
func (u *Unit) Provider() Provider              { return u.provider }
func (u *Unit) Logger() *zap.Logger             { return u.logger }

// CreateQuery creates an executable query from a select, update or delete
// criteria. Criteria with construction errors are refused.
func (u *Unit) CreateQuery(c CommonAbstractCriteria) (*Query, error) {
	if isNil(c) {
		return nil, errorf(ErrorTypeInvalidArgument, "criteria must not be nil")
	}
	if _, ok := c.(SubqueryExpression); ok {
		return nil, errorf(ErrorTypeInvalidArgument, "a subquery cannot be executed on its own")
	}
	if err := c.Err(); err != nil {
		return nil, err
	}
	exprs := c.Parameters()
	params := make([]QueryParameter, len(exprs))
	for i, p := range exprs {
		params[i] = p
	}
	return newQuery(u, c, "", params), nil
}

// CreateNativeQuery creates a query from a statement in the provider's own
// language. Its parameters are the :name and ?N placeholders of the statement.
func (u *Unit) CreateNativeQuery(statement string) (*Query, error) {
	if statement == "" {
		return nil, errorf(ErrorTypeInvalidArgument, "native statement must not be empty")
	}
	return newQuery(u, nil, statement, nativeParameters(statement)), nil
}

// CreateStoredProcedureQuery creates a call of the named stored procedure.
func (u *Unit) CreateStoredProcedureQuery(name string) (*StoredProcedureQuery, error) {
	if name == "" {
		return nil, errorf(ErrorTypeInvalidArgument, "procedure name must not be empty")
	}
	return newStoredProcedureQuery(u, name), nil
}

// Close releases the unit's provider.
func (u *Unit) Close() error {
	if u.provider == nil {
		return nil
	}
	if err := u.provider.Close(); err != nil {
		return NewErrorWithCause(ErrorTypeProvider, "failed to close unit "+u.name, err)
	}
	return nil
}
