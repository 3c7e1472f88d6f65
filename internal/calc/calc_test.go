package calc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract(t *testing.T) {
	tbl := []struct {
		in   string
		want string
		err  error
	}{
		{"2 + 2", "2+2", nil},
		{"calculate 15 + 25", "15+25", nil},
		{"what's 100 / 4?", "100/4", nil},
		{"compute (7 * 8) - 1", "(7*8)-1", nil},
		{"delete everything", "", ErrNoExpression},
		{"", "", ErrNoExpression},
	}

	for _, tt := range tbl {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Extract(tt.in)
			if tt.err != nil {
				require.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEval(t *testing.T) {
	tbl := []struct {
		expr string
		want float64
	}{
		{"2+2", 4},
		{"2 + 3 * 4", 14},
		{"(2+3)*4", 20},
		{"100/4", 25},
		{"7/2", 3.5},
		{"1-2-3", -4},
		{"-3+5", 2},
		{"--2", 2},
		{"-(2+3)", -5},
		{"2.5*2", 5},
		{".5+.5", 1},
		{"10.", 10},
		{"((((1))))", 1},
	}

	for _, tt := range tbl {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := Eval(tt.expr)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestEvalErrors(t *testing.T) {
	tbl := []struct {
		expr string
		err  error
	}{
		{"", ErrSyntax},
		{"2+", ErrSyntax},
		{"(2+3", ErrSyntax},
		{"2+3)", ErrSyntax},
		{"()", ErrSyntax},
		{"1..2", ErrSyntax},
		{".", ErrSyntax},
		{"2 2", ErrSyntax},
		{"5/0", ErrDivisionByZero},
		{"5/(2-2)", ErrDivisionByZero},
		{"2+a", ErrUnsafeCharacter},
		{"os.exit(1)", ErrUnsafeCharacter},
	}

	for _, tt := range tbl {
		t.Run(tt.expr, func(t *testing.T) {
			_, err := Eval(tt.expr)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestEvalDeepNesting(t *testing.T) {
	expr := ""
	for i := 0; i < 1000; i++ {
		expr += "("
	}
	expr += "1"
	for i := 0; i < 1000; i++ {
		expr += ")"
	}
	_, err := Eval(expr)
	assert.ErrorIs(t, err, ErrSyntax)
}

func TestCalculate(t *testing.T) {
	v, err := Calculate("Calculate 15 + 25")
	require.NoError(t, err)
	assert.Equal(t, "40", Format(v))

	v, err = Calculate("What's 7 / 2?")
	require.NoError(t, err)
	assert.Equal(t, "3.5", Format(v))

	_, err = Calculate("delete everything")
	assert.ErrorIs(t, err, ErrNoExpression)
}
