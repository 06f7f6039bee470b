package validator

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateSQLAcceptsSimpleSelect(t *testing.T) {
	v := New(nil)
	require.NoError(t, v.ValidateSQL("SELECT * FROM users WHERE id = :id"))
}

func TestValidateSQLAcceptsWithSelectCTE(t *testing.T) {
	v := New(nil)
	require.NoError(t, v.ValidateSQL("WITH recent AS (SELECT * FROM orders) SELECT * FROM recent"))
}

func TestValidateSQLRejectsNonSelectLeadingToken(t *testing.T) {
	v := New(nil)
	err := v.ValidateSQL("DELETE FROM users")
	require.ErrorIs(t, err, ErrNotReadOnly)
}

func TestValidateSQLRejectsWriteKeywordAnywhere(t *testing.T) {
	v := New(nil)
	err := v.ValidateSQL("SELECT * FROM users; --comment\nUPDATE users SET x=1")
	require.Error(t, err)

	err = v.ValidateSQL("SELECT * FROM users WHERE EXISTS (DELETE FROM users)")
	require.ErrorIs(t, err, ErrNotReadOnly)
}

func TestValidateSQLRejectsMultipleStatements(t *testing.T) {
	v := New(nil)
	err := v.ValidateSQL("SELECT 1; SELECT 2")
	require.ErrorIs(t, err, ErrMultipleStatements)
}

func TestValidateSQLToleratesSingleTrailingSemicolon(t *testing.T) {
	v := New(nil)
	require.NoError(t, v.ValidateSQL("SELECT 1;"))
}

func TestValidateSQLRejectsEmptyStatement(t *testing.T) {
	v := New(nil)
	err := v.ValidateSQL("   ")
	require.ErrorIs(t, err, ErrInvalidStructure)
}

func TestValidateSQLIgnoresLineCommentDashesInStringLiteral(t *testing.T) {
	v := New(nil)
	require.NoError(t, v.ValidateSQL("SELECT * FROM users WHERE note = 'a--b'"))
}

func TestValidateSQLStripsBlockComments(t *testing.T) {
	v := New(nil)
	require.NoError(t, v.ValidateSQL("SELECT 1 /* this is a DELETE-looking comment */"))
}

func TestValidateDDLAcceptsCreateTable(t *testing.T) {
	v := New(nil)
	require.NoError(t, v.ValidateDDL("CREATE TABLE widgets (id INTEGER PRIMARY KEY)"))
}

func TestValidateDDLRejectsSelect(t *testing.T) {
	v := New(nil)
	err := v.ValidateDDL("SELECT 1")
	require.ErrorIs(t, err, ErrInvalidStructure)
}

func TestValidateDDLRejectsMultipleStatements(t *testing.T) {
	v := New(nil)
	err := v.ValidateDDL("DROP TABLE a; DROP TABLE b")
	require.ErrorIs(t, err, ErrMultipleStatements)
}
