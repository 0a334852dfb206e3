package criteria

// =====================================
// Node Kinds
// =====================================

// NodeKind tags every node of a criteria tree with its capability.
type NodeKind string

const (
	KindLiteral    NodeKind = "LITERAL"
	KindParameter  NodeKind = "PARAMETER"
	KindPath       NodeKind = "PATH"
	KindRoot       NodeKind = "ROOT"
	KindJoin       NodeKind = "JOIN"
	KindTreat      NodeKind = "TREAT"
	KindFetch      NodeKind = "FETCH"
	KindOperation  NodeKind = "OPERATION"
	KindPredicate  NodeKind = "PREDICATE"
	KindIn         NodeKind = "IN"
	KindCase       NodeKind = "CASE"
	KindSimpleCase NodeKind = "SIMPLE_CASE"
	KindCoalesce   NodeKind = "COALESCE"
	KindSubquery   NodeKind = "SUBQUERY"
	KindCompound   NodeKind = "COMPOUND"
	KindOrder      NodeKind = "ORDER"
	KindQuery      NodeKind = "QUERY"
	KindUpdate     NodeKind = "UPDATE"
	KindDelete     NodeKind = "DELETE"
)

// =====================================
// Operators
// =====================================

// Operator identifies what an Operation computes.
type Operator string

const (
	// Comparisons
	OpEqual              Operator = "="
	OpNotEqual           Operator = "!="
	OpGreaterThan        Operator = ">"
	OpGreaterThanOrEqual Operator = ">="
	OpLessThan           Operator = "<"
	OpLessThanOrEqual    Operator = "<="
	OpBetween            Operator = "BETWEEN"
	OpLike               Operator = "LIKE"
	OpIn                 Operator = "IN"
	OpIsNull             Operator = "IS NULL"
	OpIsTrue             Operator = "IS TRUE"
	OpIsFalse            Operator = "IS FALSE"
	OpIsEmpty            Operator = "IS EMPTY"
	OpMemberOf           Operator = "MEMBER OF"
	OpExists             Operator = "EXISTS"

	// Subquery quantifiers
	OpAll  Operator = "ALL"
	OpSome Operator = "SOME"
	OpAny  Operator = "ANY"

	// Arithmetic
	OpNeg      Operator = "NEG"
	OpAdd      Operator = "+"
	OpSubtract Operator = "-"
	OpMultiply Operator = "*"
	OpDivide   Operator = "/"
	OpMod      Operator = "MOD"
	OpAbs      Operator = "ABS"
	OpSqrt     Operator = "SQRT"
	OpSign     Operator = "SIGN"
	OpCeiling  Operator = "CEILING"
	OpFloor    Operator = "FLOOR"
	OpExp      Operator = "EXP"
	OpLn       Operator = "LN"
	OpPower    Operator = "POWER"
	OpRound    Operator = "ROUND"

	// Aggregates
	OpAvg           Operator = "AVG"
	OpSum           Operator = "SUM"
	OpMax           Operator = "MAX"
	OpMin           Operator = "MIN"
	OpGreatest      Operator = "GREATEST"
	OpLeast         Operator = "LEAST"
	OpCount         Operator = "COUNT"
	OpCountDistinct Operator = "COUNT_DISTINCT"

	// Strings
	OpConcat    Operator = "CONCAT"
	OpSubstring Operator = "SUBSTRING"
	OpTrim      Operator = "TRIM"
	OpLower     Operator = "LOWER"
	OpUpper     Operator = "UPPER"
	OpLength    Operator = "LENGTH"
	OpLocate    Operator = "LOCATE"
	OpLeft      Operator = "LEFT"
	OpRight     Operator = "RIGHT"
	OpReplace   Operator = "REPLACE"

	// Temporal
	OpCurrentDate      Operator = "CURRENT_DATE"
	OpCurrentTime      Operator = "CURRENT_TIME"
	OpCurrentTimestamp Operator = "CURRENT_TIMESTAMP"
	OpLocalDate        Operator = "LOCAL DATE"
	OpLocalTime        Operator = "LOCAL TIME"
	OpLocalDateTime    Operator = "LOCAL DATETIME"
	OpExtract          Operator = "EXTRACT"

	// Collections and maps
	OpSize   Operator = "SIZE"
	OpIndex  Operator = "INDEX"
	OpKeys   Operator = "KEYS"
	OpValues Operator = "VALUES"
	OpEntry  Operator = "ENTRY"

	// Miscellaneous
	OpCast     Operator = "CAST"
	OpAs       Operator = "AS"
	OpNullif   Operator = "NULLIF"
	OpFunction Operator = "FUNCTION"
	OpType     Operator = "TYPE"
)

// IsComparison reports whether the operator yields a boolean test.
func (o Operator) IsComparison() bool {
	switch o {
	case OpEqual, OpNotEqual, OpGreaterThan, OpGreaterThanOrEqual, OpLessThan, OpLessThanOrEqual,
		OpBetween, OpLike, OpIn, OpIsNull, OpIsTrue, OpIsFalse, OpIsEmpty, OpMemberOf, OpExists:
		return true
	}
	return false
}

// IsAggregate reports whether the operator aggregates over groups.
func (o Operator) IsAggregate() bool {
	switch o {
	case OpAvg, OpSum, OpMax, OpMin, OpCount, OpCountDistinct:
		return true
	}
	return false
}

// BooleanOperator combines the expressions of a Predicate.
type BooleanOperator string

const (
	BooleanAnd BooleanOperator = "AND"
	BooleanOr  BooleanOperator = "OR"
)

// =====================================
// Joins, Ordering and Locking
// =====================================

// JoinType represents the type of join
type JoinType string

const (
	JoinInner JoinType = "INNER"
	JoinLeft  JoinType = "LEFT"
	JoinRight JoinType = "RIGHT"
)

// IsPortable reports whether every provider is required to support the join type.
func (j JoinType) IsPortable() bool {
	return j == JoinInner || j == JoinLeft
}

// SortDirection represents sort direction
type SortDirection string

const (
	SortAsc  SortDirection = "ASC"
	SortDesc SortDirection = "DESC"
)

// NullPrecedence places nulls relative to non-null values when ordering.
type NullPrecedence string

const (
	NullsNone  NullPrecedence = "NONE"
	NullsFirst NullPrecedence = "FIRST"
	NullsLast  NullPrecedence = "LAST"
)

// LockModeType represents the lock requested for query results
type LockModeType string

const (
	LockNone                      LockModeType = "NONE"
	LockRead                      LockModeType = "READ"
	LockWrite                     LockModeType = "WRITE"
	LockOptimistic                LockModeType = "OPTIMISTIC"
	LockOptimisticForceIncrement  LockModeType = "OPTIMISTIC_FORCE_INCREMENT"
	LockPessimisticRead           LockModeType = "PESSIMISTIC_READ"
	LockPessimisticWrite          LockModeType = "PESSIMISTIC_WRITE"
	LockPessimisticForceIncrement LockModeType = "PESSIMISTIC_FORCE_INCREMENT"
)

// FlushModeType controls when pending changes are flushed before a query runs.
type FlushModeType string

const (
	FlushAuto   FlushModeType = "AUTO"
	FlushCommit FlushModeType = "COMMIT"
)

// ParameterMode is the direction of a stored procedure parameter.
type ParameterMode string

const (
	ModeIn        ParameterMode = "IN"
	ModeInOut     ParameterMode = "INOUT"
	ModeOut       ParameterMode = "OUT"
	ModeRefCursor ParameterMode = "REF_CURSOR"
)

// IsOutput reports whether the procedure writes a value back through the parameter.
func (m ParameterMode) IsOutput() bool {
	return m == ModeOut || m == ModeInOut || m == ModeRefCursor
}

// TrimSpec selects which side of a string Trim removes characters from.
type TrimSpec string

const (
	TrimLeading  TrimSpec = "LEADING"
	TrimTrailing TrimSpec = "TRAILING"
	TrimBoth     TrimSpec = "BOTH"
)

// TemporalField names the part of a date or time Extract returns.
type TemporalField string

const (
	FieldYear    TemporalField = "YEAR"
	FieldQuarter TemporalField = "QUARTER"
	FieldMonth   TemporalField = "MONTH"
	FieldWeek    TemporalField = "WEEK"
	FieldDay     TemporalField = "DAY"
	FieldHour    TemporalField = "HOUR"
	FieldMinute  TemporalField = "MINUTE"
	FieldSecond  TemporalField = "SECOND"
	FieldDate    TemporalField = "DATE"
	FieldTime    TemporalField = "TIME"
)

// =====================================
// Diagnostics
// =====================================

// FlagKind classifies a construct that is legal but not fully specified.
type FlagKind string

const (
	// FlagNonPortable marks features providers may reject, such as RIGHT joins.
	FlagNonPortable FlagKind = "non_portable"
	// FlagAmbiguous marks combinations whose translation is implementation-defined.
	FlagAmbiguous FlagKind = "ambiguous"
)

// Flag records a non-portable or ambiguous construct on the node that introduced it.
type Flag struct {
	Kind    FlagKind
	Message string
}

func (f Flag) String() string {
	return string(f.Kind) + ": " + f.Message
}

// ErrorType represents the type of error
type ErrorType string

const (
	ErrorTypeInvalidArgument  ErrorType = "invalid_argument"
	ErrorTypeInvalidState     ErrorType = "invalid_state"
	ErrorTypeUnknownType      ErrorType = "unknown_type"
	ErrorTypeMultipleRoots    ErrorType = "multiple_roots"
	ErrorTypeUnboundParameter ErrorType = "unbound_parameter"
	ErrorTypeNoResult         ErrorType = "no_result"
	ErrorTypeNonUniqueResult  ErrorType = "non_unique_result"
	ErrorTypeUnsupported      ErrorType = "unsupported"
	ErrorTypeProvider         ErrorType = "provider"
	ErrorTypeTimeout          ErrorType = "timeout"
	ErrorTypeConfiguration    ErrorType = "configuration"
)
