package predicate

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counter struct {
	Count int    `json:"count"`
	Label string `json:"label,omitempty"`
}

func ptr[T any](v T) *T { return &v }

func TestDeepEqual(t *testing.T) {
	a := &counter{Count: 1}

	assert.True(t, DeepEqual(a, a), "identical pointers")
	assert.True(t, DeepEqual[counter](nil, nil))
	assert.False(t, DeepEqual(a, nil))
	assert.False(t, DeepEqual(nil, a))
	assert.True(t, DeepEqual(a, &counter{Count: 1}), "structural equality")
	assert.False(t, DeepEqual(a, &counter{Count: 2}))

	assert.True(t, DeepEqual(ptr(3), ptr(3)))
	assert.False(t, DeepEqual(ptr("a"), ptr("b")))
	assert.True(t, DeepEqual(ptr([]int{1, 2}), ptr([]int{1, 2})))
	assert.True(t, DeepEqual(
		ptr(map[string]any{"nested": []any{1.0, "x"}}),
		ptr(map[string]any{"nested": []any{1.0, "x"}}),
	))
}

func TestAll(t *testing.T) {
	positive := func(v *int) bool { return v != nil && *v > 0 }
	even := func(v *int) bool { return v != nil && *v%2 == 0 }

	both := All[int](positive, nil, even)
	assert.True(t, both(ptr(4)))
	assert.False(t, both(ptr(3)))
	assert.False(t, both(ptr(-2)))

	assert.True(t, All[int]()(ptr(-1)), "no validators accept everything")
	assert.True(t, Always[int](nil))
}

func TestToDocument(t *testing.T) {
	doc, err := ToDocument(&counter{Count: 2, Label: "x"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"count": 2.0, "label": "x"}, doc)

	doc, err = ToDocument[counter](nil)
	require.NoError(t, err)
	assert.Nil(t, doc)

	_, err = ToDocument(ptr(make(chan int)))
	assert.Error(t, err)
}

// ruleCases holds the same rule in every language: count must be a non-negative number
var ruleCases = map[string]string{
	"cue":  `{count: int & >=0, ...}`,
	"expr": `count >= 0`,
	"cel":  `value.count >= 0`,
	"js":   `typeof value.count === "number" && value.count >= 0`,
}

func TestChecks(t *testing.T) {
	for language, source := range ruleCases {
		t.Run(language, func(t *testing.T) {
			check, err := Compile(language, source)
			require.NoError(t, err)
			assert.Equal(t, language, check.Language())
			assert.Equal(t, source, check.Source())

			valid := FromCheck[counter](check)
			assert.True(t, valid(&counter{Count: 0}))
			assert.True(t, valid(&counter{Count: 5, Label: "five"}))
			assert.False(t, valid(&counter{Count: -1}))

			notAnObject := FromCheck[string](check)
			assert.False(t, notAnObject(ptr("not-an-object")))
		})
	}
}

func TestChecksConcurrentUse(t *testing.T) {
	for language, source := range ruleCases {
		check, err := Compile(language, source)
		require.NoError(t, err)
		valid := FromCheck[counter](check)

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				assert.Equal(t, i%2 == 0, valid(&counter{Count: 1 - (i%2)*2}), language)
			}(i)
		}
		wg.Wait()
	}
}

func TestCompileErrors(t *testing.T) {
	invalid := map[string]string{
		"cue":  `{count: `,
		"expr": `count >=`,
		"cel":  `value.count >=`,
		"js":   `value.count >=`,
	}
	for language, source := range invalid {
		_, err := Compile(language, source)
		assert.Error(t, err, language)

		_, err = Compile(language, "")
		assert.Error(t, err, "%s: empty source", language)
	}

	_, err := Compile("lua", "x")
	assert.Error(t, err)
}

func TestCELRejectsNonBool(t *testing.T) {
	_, err := NewCEL(`"a string"`)
	assert.Error(t, err)
}

func TestCUEClosedSchema(t *testing.T) {
	check, err := NewCUE(`close({count: number})`)
	require.NoError(t, err)

	valid := FromCheck[map[string]any](check)
	assert.True(t, valid(&map[string]any{"count": 1}))
	assert.False(t, valid(&map[string]any{"count": 1, "extra": true}))
	assert.False(t, valid(&map[string]any{"count": "one"}))
}
