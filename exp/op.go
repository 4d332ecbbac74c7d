package exp

// Op identifies the kind of an expression node.
type Op uint8

// Expression node kinds.
const (
	OpInvalid Op = iota
	OpAnd
	OpOr
	OpNot
	OpEQ
	OpNEQ
	OpLT
	OpLTE
	OpGT
	OpGTE
	OpBetween
	OpNotBetween
	OpIn
	OpNotIn
	OpLike
	OpNotLike
	OpLikeIgnoreCase
	OpNotLikeIgnoreCase
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpNegate
	OpObjPath
	OpDbPath
	OpScalar
	OpList
	OpParam
	OpTrue
	OpFalse
	endOps
)

var sqlTokens = [...]string{
	OpAnd:               "AND",
	OpOr:                "OR",
	OpNot:               "NOT",
	OpEQ:                "=",
	OpNEQ:               "<>",
	OpLT:                "<",
	OpLTE:               "<=",
	OpGT:                ">",
	OpGTE:               ">=",
	OpBetween:           "BETWEEN",
	OpNotBetween:        "NOT BETWEEN",
	OpIn:                "IN",
	OpNotIn:             "NOT IN",
	OpLike:              "LIKE",
	OpNotLike:           "NOT LIKE",
	OpLikeIgnoreCase:    "LIKE",
	OpNotLikeIgnoreCase: "NOT LIKE",
	OpAdd:               "+",
	OpSub:               "-",
	OpMul:               "*",
	OpDiv:               "/",
	OpNegate:            "-",
	OpTrue:              "1=1",
	OpFalse:             "1=0",
	endOps:              "",
}

var textTokens = [...]string{
	OpInvalid:           "invalid",
	OpAnd:               "and",
	OpOr:                "or",
	OpNot:               "not",
	OpEQ:                "=",
	OpNEQ:               "!=",
	OpLT:                "<",
	OpLTE:               "<=",
	OpGT:                ">",
	OpGTE:               ">=",
	OpBetween:           "between",
	OpNotBetween:        "not between",
	OpIn:                "in",
	OpNotIn:             "not in",
	OpLike:              "like",
	OpNotLike:           "not like",
	OpLikeIgnoreCase:    "likeIgnoreCase",
	OpNotLikeIgnoreCase: "not likeIgnoreCase",
	OpAdd:               "+",
	OpSub:               "-",
	OpMul:               "*",
	OpDiv:               "/",
	OpNegate:            "-",
	OpObjPath:           "objpath",
	OpDbPath:            "dbpath",
	OpScalar:            "scalar",
	OpList:              "list",
	OpParam:             "param",
	OpTrue:              "true",
	OpFalse:             "false",
}

// SQL returns the SQL operator token of the op. Leaf kinds (paths, scalars,
// lists and parameters) have no token and return an empty string.
func (o Op) SQL() string {
	if o < endOps {
		return sqlTokens[o]
	}
	return ""
}

// String returns the token used by the expression syntax.
func (o Op) String() string {
	if o < endOps {
		return textTokens[o]
	}
	return "invalid"
}

// Valid reports if the op is a known node kind.
func (o Op) Valid() bool { return o > OpInvalid && o < endOps }

// IsComparison reports whether the op is one of =, <>, <, <=, >, >=.
func (o Op) IsComparison() bool { return o >= OpEQ && o <= OpGTE }

// IsArithmetic reports whether the op is a binary arithmetic operator.
func (o Op) IsArithmetic() bool { return o >= OpAdd && o <= OpDiv }

// IsLike reports whether the op is one of the pattern matching operators.
func (o Op) IsLike() bool { return o >= OpLike && o <= OpNotLikeIgnoreCase }

// IsCondition reports whether nodes of this kind evaluate to a boolean.
func (o Op) IsCondition() bool {
	return o >= OpAnd && o <= OpNotLikeIgnoreCase || o == OpTrue || o == OpFalse
}

// Negate returns the complementary op of a negatable condition and false
// when the op has no complement.
func (o Op) Negate() (Op, bool) {
	switch o {
	case OpEQ:
		return OpNEQ, true
	case OpNEQ:
		return OpEQ, true
	case OpLT:
		return OpGTE, true
	case OpGTE:
		return OpLT, true
	case OpGT:
		return OpLTE, true
	case OpLTE:
		return OpGT, true
	case OpBetween:
		return OpNotBetween, true
	case OpNotBetween:
		return OpBetween, true
	case OpIn:
		return OpNotIn, true
	case OpNotIn:
		return OpIn, true
	case OpLike:
		return OpNotLike, true
	case OpNotLike:
		return OpLike, true
	case OpLikeIgnoreCase:
		return OpNotLikeIgnoreCase, true
	case OpNotLikeIgnoreCase:
		return OpLikeIgnoreCase, true
	case OpTrue:
		return OpFalse, true
	case OpFalse:
		return OpTrue, true
	}
	return o, false
}

// Precedence levels used when encoding nested expressions.
const (
	precOr = iota + 1
	precAnd
	precNot
	precCompare
	precAdd
	precMul
	precUnary
	precLeaf
)

func (o Op) precedence() int {
	switch {
	case o == OpOr:
		return precOr
	case o == OpAnd:
		return precAnd
	case o == OpNot:
		return precNot
	case o.IsComparison(), o.IsLike(), o >= OpBetween && o <= OpNotIn:
		return precCompare
	case o == OpAdd, o == OpSub:
		return precAdd
	case o == OpMul, o == OpDiv:
		return precMul
	case o == OpNegate:
		return precUnary
	}
	return precLeaf
}
