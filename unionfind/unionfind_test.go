package unionfind_test

import (
	"sort"
	"testing"

	"github.com/crddagt/taskgraph/unionfind"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fill(t *testing.T, n int) *unionfind.IterableUnionFind[int] {
	t.Helper()
	u := unionfind.New[int]()
	for i := 0; i < n; i++ {
		idx, err := u.MakeSet()
		require.NoError(t, err)
		require.Equal(t, i, idx)
	}
	return u
}

func TestMakeSet_Singletons(t *testing.T) {
	u := fill(t, 5)
	for i := 0; i < 5; i++ {
		size, err := u.ClassSize(i)
		require.NoError(t, err)
		assert.Equal(t, 1, size)
	}
	assert.Equal(t, 5, u.NumClasses())
}

func TestUnite_MergesAndSizeTotality(t *testing.T) {
	u := fill(t, 6)

	changed, err := u.Unite(0, 1)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = u.Unite(1, 2)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = u.Unite(0, 2)
	require.NoError(t, err)
	assert.False(t, changed, "already merged, should be idempotent")

	size, err := u.ClassSize(0)
	require.NoError(t, err)
	assert.Equal(t, 3, size)

	// Every element belongs to exactly one class, so sizes over every root sum to n.
	total := 0
	for _, r := range u.GetClassRepresentatives() {
		s, err := u.ClassSize(r)
		require.NoError(t, err)
		total += s
	}
	assert.Equal(t, u.Len(), total)
}

func TestFind_Idempotent(t *testing.T) {
	u := fill(t, 4)
	_, err := u.Unite(0, 1)
	require.NoError(t, err)
	_, err = u.Unite(2, 3)
	require.NoError(t, err)
	_, err = u.Unite(1, 2)
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		r1, err := u.Find(i)
		require.NoError(t, err)
		r2, err := u.Find(r1)
		require.NoError(t, err)
		assert.Equal(t, r1, r2, "find(find(x)) == find(x)")

		cr, err := u.ClassRoot(i)
		require.NoError(t, err)
		assert.Equal(t, r1, cr)
	}
}

func TestGetClassMembers_ContainsXAndMatchesSize(t *testing.T) {
	u := fill(t, 7)
	_, _ = u.Unite(0, 3)
	_, _ = u.Unite(3, 5)

	members, err := u.GetClassMembers(5, nil)
	require.NoError(t, err)
	sort.Ints(members)
	assert.Equal(t, []int{0, 3, 5}, members)

	size, err := u.ClassSize(0)
	require.NoError(t, err)
	assert.Equal(t, len(members), size)

	// x itself must always be in its own class members.
	assert.Contains(t, members, 5)
}

func TestIndexOutOfRange(t *testing.T) {
	u := fill(t, 2)
	_, err := u.Find(5)
	assert.ErrorIs(t, err, unionfind.ErrIndexOutOfRange)

	_, err = u.ClassRoot(-1)
	assert.ErrorIs(t, err, unionfind.ErrIndexOutOfRange)

	_, err = u.Unite(0, 9)
	assert.ErrorIs(t, err, unionfind.ErrIndexOutOfRange)
}

func TestOverflow_SmallIndexType(t *testing.T) {
	u := unionfind.New[int8]()
	for i := 0; i < 128; i++ {
		_, err := u.MakeSet()
		require.NoError(t, err)
	}
	_, err := u.MakeSet()
	assert.ErrorIs(t, err, unionfind.ErrOverflow)
}

// TestUnite_DeterministicTieBreak locks in that, on equal rank, a's root
// always wins — repeated runs over the same sequence must pick the same
// root so GraphCore's field-equivalence classes stay stable.
func TestUnite_DeterministicTieBreak(t *testing.T) {
	u := fill(t, 2)
	_, err := u.Unite(0, 1)
	require.NoError(t, err)

	r0, _ := u.ClassRoot(0)
	r1, _ := u.ClassRoot(1)
	assert.Equal(t, 0, r0)
	assert.Equal(t, 0, r1)
}

// TestUnion_LargeChain checks a longer sequence: every prefix union keeps
// size totality and idempotent find.
func TestUnion_LargeChain(t *testing.T) {
	const n = 64
	u := fill(t, n)
	for i := 1; i < n; i++ {
		_, err := u.Unite(i-1, i)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, u.NumClasses())

	size, err := u.ClassSize(0)
	require.NoError(t, err)
	assert.Equal(t, n, size)

	members, err := u.GetClassMembers(n-1, nil)
	require.NoError(t, err)
	assert.Len(t, members, n)
}
