package dataobj_test

import (
	"testing"

	"github.com/crddagt/taskgraph/crdgraph"
	"github.com/crddagt/taskgraph/dataobj"
	"github.com/crddagt/taskgraph/vardata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	creatorToken dataobj.Token = 1
	readerToken  dataobj.Token = 2
	destroyToken dataobj.Token = 3
)

func newTestData() *dataobj.Data {
	return dataobj.New(crdgraph.TypeTagOf[int](), map[dataobj.Token]crdgraph.Usage{
		creatorToken: crdgraph.Create,
		readerToken:  crdgraph.Read,
		destroyToken: crdgraph.Destroy,
	})
}

func TestSetValue_ThenGetValue(t *testing.T) {
	d := newTestData()
	require.NoError(t, d.SetValue(creatorToken, 42))

	v, err := d.GetValue(readerToken)
	require.NoError(t, err)
	got, err := vardata.As[int](v)
	require.NoError(t, err)
	assert.Equal(t, 42, got)
}

func TestGetValue_BeforeCreate(t *testing.T) {
	d := newTestData()
	_, err := d.GetValue(readerToken)
	assert.ErrorIs(t, err, dataobj.ErrDataNotInitialized)
}

func TestSetValue_DoubleCreate(t *testing.T) {
	d := newTestData()
	require.NoError(t, d.SetValue(creatorToken, 1))

	err := d.SetValue(creatorToken, 2)
	assert.ErrorIs(t, err, dataobj.ErrAlreadyCreated)
}

func TestRemoveValue_ThenDoubleDestroy(t *testing.T) {
	d := newTestData()
	require.NoError(t, d.SetValue(creatorToken, 7))

	v, err := d.RemoveValue(destroyToken)
	require.NoError(t, err)
	got, err := vardata.As[int](v)
	require.NoError(t, err)
	assert.Equal(t, 7, got)

	_, err = d.RemoveValue(destroyToken)
	assert.ErrorIs(t, err, dataobj.ErrAlreadyDestroyed)
}

func TestGetValue_AfterDestroy(t *testing.T) {
	d := newTestData()
	require.NoError(t, d.SetValue(creatorToken, 7))
	_, err := d.RemoveValue(destroyToken)
	require.NoError(t, err)

	_, err = d.GetValue(readerToken)
	assert.ErrorIs(t, err, dataobj.ErrDataNotInitialized)
}

func TestRemoveValue_BeforeCreate(t *testing.T) {
	d := newTestData()
	_, err := d.RemoveValue(destroyToken)
	assert.ErrorIs(t, err, dataobj.ErrDataNotInitialized)
}

func TestUnauthorizedToken(t *testing.T) {
	d := newTestData()

	err := d.SetValue(readerToken, 1) // reader token has no Create right
	assert.ErrorIs(t, err, dataobj.ErrUnauthorizedAccess)

	require.NoError(t, d.SetValue(creatorToken, 1))
	_, err = d.GetValue(destroyToken) // destroy token has no Read right
	assert.ErrorIs(t, err, dataobj.ErrUnauthorizedAccess)

	const unknown dataobj.Token = 999
	_, err = d.GetValue(unknown)
	assert.ErrorIs(t, err, dataobj.ErrUnauthorizedAccess)
}

func TestMultipleReadersConcurrently(t *testing.T) {
	d := newTestData()
	require.NoError(t, d.SetValue(creatorToken, 5))

	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func() {
			_, err := d.GetValue(readerToken)
			assert.NoError(t, err)
			done <- struct{}{}
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}
}
