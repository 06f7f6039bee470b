package chain

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateAcceptsBackwardReferences(t *testing.T) {
	steps := []Step{
		{ID: "a", Tool: "t1", Args: map[string]any{}},
		{ID: "b", Tool: "t2", Args: map[string]any{"x": "${a}"}},
	}
	require.NoError(t, Validate(steps))
}

func TestValidateRejectsDuplicateStepID(t *testing.T) {
	steps := []Step{
		{ID: "a", Tool: "t1"},
		{ID: "a", Tool: "t2"},
	}
	err := Validate(steps)
	require.ErrorIs(t, err, ErrDuplicateStepID)
}

func TestValidateRejectsForwardReference(t *testing.T) {
	steps := []Step{
		{ID: "a", Tool: "t1", Args: map[string]any{"x": "${b}"}},
		{ID: "b", Tool: "t2"},
	}
	err := Validate(steps)
	require.ErrorIs(t, err, ErrForwardReference)
}

func TestValidateRejectsUnknownReference(t *testing.T) {
	steps := []Step{
		{ID: "a", Tool: "t1", Args: map[string]any{"x": "${ghost}"}},
	}
	err := Validate(steps)
	require.ErrorIs(t, err, ErrForwardReference)
}

func TestRunSubstitutesWholeValueReferencePreservingType(t *testing.T) {
	dispatch := func(ctx context.Context, tool string, args map[string]any) (any, error) {
		switch tool {
		case "producer":
			return map[string]any{"count": 42}, nil
		case "consumer":
			return args["count"], nil
		}
		return nil, nil
	}
	e := New(dispatch)
	steps := []Step{
		{ID: "p", Tool: "producer"},
		{ID: "c", Tool: "consumer", Args: map[string]any{"count": "${p.count}"}},
	}
	report, err := e.Run(context.Background(), steps)
	require.NoError(t, err)
	require.False(t, report.Failed)
	require.Equal(t, 42, report.Steps[1].Output)
	require.Equal(t, 42, report.Results["c"])
}

func TestRunSubstitutesEmbeddedReferenceTextually(t *testing.T) {
	dispatch := func(ctx context.Context, tool string, args map[string]any) (any, error) {
		switch tool {
		case "producer":
			return "world", nil
		case "consumer":
			return args["message"], nil
		}
		return nil, nil
	}
	e := New(dispatch)
	steps := []Step{
		{ID: "p", Tool: "producer"},
		{ID: "c", Tool: "consumer", Args: map[string]any{"message": "hello ${p}!"}},
	}
	report, err := e.Run(context.Background(), steps)
	require.NoError(t, err)
	require.Equal(t, "hello world!", report.Steps[1].Output)
}

func TestRunStopsAtFirstFailureAndReportsPartialSteps(t *testing.T) {
	dispatch := func(ctx context.Context, tool string, args map[string]any) (any, error) {
		if tool == "fails" {
			return nil, require.AnError
		}
		return "ok", nil
	}
	e := New(dispatch)
	steps := []Step{
		{ID: "a", Tool: "ok1"},
		{ID: "b", Tool: "fails"},
		{ID: "c", Tool: "ok2", Args: map[string]any{"x": "${a}"}},
	}
	report, err := e.Run(context.Background(), steps)
	require.NoError(t, err)
	require.True(t, report.Failed)
	require.Len(t, report.Steps, 2)
	require.NotEmpty(t, report.Steps[1].Error)
}

func TestResolveRefFieldNotFound(t *testing.T) {
	dispatch := func(ctx context.Context, tool string, args map[string]any) (any, error) {
		return "not-a-map", nil
	}
	e := New(dispatch)
	steps := []Step{
		{ID: "a", Tool: "t1"},
		{ID: "b", Tool: "t2", Args: map[string]any{"x": "${a.field}"}},
	}
	report, err := e.Run(context.Background(), steps)
	require.NoError(t, err)
	require.True(t, report.Failed)
	require.Contains(t, report.Steps[1].Error, "field not found")
}
