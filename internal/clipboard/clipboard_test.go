package clipboard

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSelection struct {
	limit int
	err   error
	got   []Item
}

func (f *fakeSelection) Set(items []Item) error {
	if f.err != nil {
		return f.err
	}
	f.got = items
	return nil
}

func (f *fakeSelection) MaxDataSize() int { return f.limit }

type recorder struct {
	text  []string
	calls [][]string
	stdin [][]byte
}

func newTestSystem(sel Selection, rec *recorder) *System {
	s := NewSystem(sel)
	s.writeText = func(text string) error {
		rec.text = append(rec.text, text)
		return nil
	}
	s.run = func(stdin []byte, name string, args ...string) error {
		rec.calls = append(rec.calls, append([]string{name}, args...))
		rec.stdin = append(rec.stdin, stdin)
		return nil
	}
	return s
}

func TestWriteUsesSelectionForAllTargets(t *testing.T) {
	sel := &fakeSelection{limit: 1024}
	rec := &recorder{}
	s := newTestSystem(sel, rec)

	items := []Item{
		{Target: TargetURIList, Data: []byte("file:///tmp/a.txt\r\n")},
		{Target: TargetText, Data: []byte("/tmp/a.txt")},
	}
	require.NoError(t, s.Write(items))

	assert.Equal(t, items, sel.got)
	assert.Empty(t, rec.calls)
	assert.Empty(t, rec.text)
}

func TestWriteFallsBackWhenTooLarge(t *testing.T) {
	sel := &fakeSelection{limit: 4}
	rec := &recorder{}
	s := newTestSystem(sel, rec)

	require.NoError(t, s.Write([]Item{{Target: TargetPNG, Data: []byte("0123456789")}}))

	assert.Nil(t, sel.got)
	require.Len(t, rec.calls, 1)
	assert.Equal(t, []string{"xclip", "-selection", "clipboard", "-t", TargetPNG, "-i"}, rec.calls[0])
	assert.Equal(t, []byte("0123456789"), rec.stdin[0])
}

func TestWriteFallsBackOnSelectionError(t *testing.T) {
	sel := &fakeSelection{limit: 1024, err: errors.New("no owner")}
	rec := &recorder{}
	s := newTestSystem(sel, rec)

	require.NoError(t, s.Write([]Item{{Target: TargetText, Data: []byte("hello")}}))
	assert.Equal(t, []string{"hello"}, rec.text)
	assert.Empty(t, rec.calls)
}

func TestWriteWithoutSelectionUsesPreferredTarget(t *testing.T) {
	rec := &recorder{}
	s := newTestSystem(nil, rec)

	err := s.Write([]Item{
		{Target: TargetURIList, Data: []byte("file:///x\r\n")},
		{Target: TargetHTML, Data: []byte("<a></a>")},
	})
	require.NoError(t, err)
	require.Len(t, rec.calls, 1)
	assert.Contains(t, rec.calls[0], TargetURIList)
}

func TestWriteEmpty(t *testing.T) {
	s := newTestSystem(nil, &recorder{})
	assert.ErrorIs(t, s.Write(nil), ErrEmpty)
}

func TestWriteCommandError(t *testing.T) {
	s := NewSystem(nil)
	s.run = func([]byte, string, ...string) error { return errors.New("exit status 1") }

	err := s.Write([]Item{{Target: TargetPNG, Data: []byte{1}}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), TargetPNG)
}
