package output

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLineSink_OneLinePerSnapshot(t *testing.T) {
	var buf bytes.Buffer
	s := NewLineSink(&buf, "stdout")

	require.NoError(t, s.Write([]byte(`[]`)))
	require.NoError(t, s.Write([]byte(`[{"title":"shell","class":"term","tasks":[]}]`)))

	assert.Equal(t, "[]\n[{\"title\":\"shell\",\"class\":\"term\",\"tasks\":[]}]\n", buf.String())
	assert.Equal(t, "stdout", s.Name())
}

func TestLineSink_RejectsEmbeddedNewline(t *testing.T) {
	var buf bytes.Buffer
	s := NewLineSink(&buf, "stdout")

	assert.Error(t, s.Write([]byte("[\n]")))
	assert.Empty(t, buf.String())
}

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) { return 0, errors.New("broken pipe") }

func TestLineSink_WriteError(t *testing.T) {
	s := NewLineSink(failingWriter{}, "stdout")
	err := s.Write([]byte(`[]`))
	assert.ErrorContains(t, err, "broken pipe")
}

func TestLineSink_ConcurrentWritesStayWhole(t *testing.T) {
	var buf bytes.Buffer
	s := NewLineSink(&buf, "stdout")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Write([]byte(`[{"title":"x","class":"y","tasks":[]}]`))
		}()
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 50)
	for _, line := range lines {
		assert.Equal(t, `[{"title":"x","class":"y","tasks":[]}]`, line)
	}
}
