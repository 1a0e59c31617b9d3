package tui

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpinnerModel_WorkDone(t *testing.T) {
	m := newSpinnerModel(context.Background(), "Loading orders...", func(context.Context) (string, error) {
		return "120 rows loaded", nil
	})
	defer m.cancel()

	assert.Contains(t, m.View(), "Loading orders...")

	next, cmd := m.Update(workDoneMsg{result: "120 rows loaded"})
	final := next.(spinnerModel)

	require.NotNil(t, cmd)
	assert.True(t, final.done)
	assert.NoError(t, final.err)
	assert.Contains(t, final.View(), "120 rows loaded")
	assert.True(t, strings.HasSuffix(final.View(), "\n"))
}

func TestSpinnerModel_WorkFailed(t *testing.T) {
	m := newSpinnerModel(context.Background(), "Loading...", nil)
	defer m.cancel()

	next, _ := m.Update(workDoneMsg{err: errors.New("table already exists")})
	final := next.(spinnerModel)

	assert.EqualError(t, final.err, "table already exists")
	assert.Contains(t, final.View(), "table already exists")
}

func TestSpinnerModel_CtrlCCancelsWork(t *testing.T) {
	m := newSpinnerModel(context.Background(), "Loading...", nil)

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	interrupted := next.(spinnerModel)

	assert.Nil(t, cmd, "the program keeps running until the work reports back")
	assert.ErrorIs(t, interrupted.ctx.Err(), context.Canceled)

	next, _ = interrupted.Update(workDoneMsg{err: context.Canceled})
	assert.ErrorIs(t, next.(spinnerModel).err, ErrInterrupted)
}

func TestSpinnerModel_InitRunsWork(t *testing.T) {
	called := false
	m := newSpinnerModel(context.Background(), "x", func(ctx context.Context) (string, error) {
		called = true
		return "ok", nil
	})
	defer m.cancel()

	batch, ok := m.Init()().(tea.BatchMsg)
	require.True(t, ok)

	var done workDoneMsg
	for _, c := range batch {
		if msg, ok := c().(workDoneMsg); ok {
			done = msg
		}
	}
	assert.True(t, called)
	assert.Equal(t, "ok", done.result)
}
