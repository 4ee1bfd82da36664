package lib

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestSetAddReportsNewness(t *testing.T) {
	s := NewSet[string]()
	assert.True(t, s.Add("a"))
	assert.False(t, s.Add("a"))
	assert.True(t, s.Contains("a"))
	assert.Equal(t, 1, s.Size())

	s.Remove("a")
	assert.False(t, s.Contains("a"))

	s.Add("c")
	s.Add("b")
	assert.Equal(t, []string{"b", "c"}, Sorted(s))

	s.Clear()
	assert.Zero(t, s.Size())
}

func TestQueueIsFIFO(t *testing.T) {
	q := NewQueue[int]()
	_, ok := q.Dequeue()
	assert.False(t, ok)

	for i := 1; i <= 3; i++ {
		q.Enqueue(i)
	}
	assert.Equal(t, []int{1, 2, 3}, q.Items())

	for want := 1; want <= 3; want++ {
		got, ok := q.Dequeue()
		require.True(t, ok)
		assert.Equal(t, want, got)
	}
	assert.Zero(t, q.Size())

	q.Enqueue(9)
	q.Clear()
	assert.Zero(t, q.Size())
}

func TestDurationUnmarshal(t *testing.T) {
	var fromJSON struct {
		A Duration `json:"a"`
		B Duration `json:"b"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a": "50ms", "b": 1000}`), &fromJSON))
	assert.Equal(t, 50*time.Millisecond, fromJSON.A.Duration)
	assert.Equal(t, time.Microsecond, fromJSON.B.Duration)

	var fromYAML struct {
		A Duration `yaml:"a"`
		B Duration `yaml:"b"`
	}
	require.NoError(t, yaml.Unmarshal([]byte("a: 2.5s\nb: 1000\n"), &fromYAML))
	assert.Equal(t, 2500*time.Millisecond, fromYAML.A.Duration)
	assert.Equal(t, time.Microsecond, fromYAML.B.Duration)

	var bad Duration
	assert.Error(t, json.Unmarshal([]byte(`true`), &bad))
	assert.Error(t, json.Unmarshal([]byte(`"soon"`), &bad))
}

func TestParseSLogLevel(t *testing.T) {
	level, err := ParseSLogLevel("debug")
	require.NoError(t, err)
	assert.Equal(t, "DEBUG", level.String())

	_, err = ParseSLogLevel("loud")
	assert.Error(t, err)
}
